package catalog

import "fmt"

// prettySize renders a byte count the way pg_size_pretty does, for engines
// that only report raw byte totals.
func prettySize(bytes int64) string {
	if bytes < 0 {
		return ""
	}
	units := []string{"bytes", "kB", "MB", "GB", "TB"}
	size := float64(bytes)
	i := 0
	for size >= 1024 && i < len(units)-1 {
		size /= 1024
		i++
	}
	if i == 0 {
		return fmt.Sprintf("%d bytes", bytes)
	}
	return fmt.Sprintf("%.0f %s", size, units[i])
}
