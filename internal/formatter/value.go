// Package formatter turns a schema snapshot and its relationship graph into
// the audit outputs: a graphviz diagram description, a raster image rendered
// through an external tool, and a markdown report.
package formatter

import (
	"encoding/hex"
	"fmt"
	"html"
	"strconv"
	"strings"
	"time"
	"unicode/utf8"
)

// ValueContext selects the escaping rules for a formatted cell value.
type ValueContext int

const (
	// DiagramCell escapes for graphviz HTML-like labels.
	DiagramCell ValueContext = iota
	// DocumentCell escapes for markdown table cells.
	DocumentCell
)

const (
	nullToken       = "NULL"
	truncateMarker  = "…"
	maxDisplayRunes = 64
)

// FormatValue renders one sampled cell value as a safe, bounded display
// string. It is a pure function of value and context: nulls render as a
// fixed sentinel, long values are truncated with a marker, and characters
// that are structurally significant in the target output are escaped.
// It never fails and never logs; values of unknown kind degrade to a
// best-effort string visible in the output itself.
func FormatValue(v any, ctx ValueContext) string {
	raw, truncated := truncate(stringify(v))
	out := escape(raw, ctx)
	if truncated {
		out += truncateMarker
	}
	return out
}

// stringify converts a value of unknown origin type to its raw display
// string.
func stringify(v any) string {
	switch val := v.(type) {
	case nil:
		return nullToken
	case bool:
		return strconv.FormatBool(val)
	case int:
		return strconv.FormatInt(int64(val), 10)
	case int8:
		return strconv.FormatInt(int64(val), 10)
	case int16:
		return strconv.FormatInt(int64(val), 10)
	case int32:
		return strconv.FormatInt(int64(val), 10)
	case int64:
		return strconv.FormatInt(val, 10)
	case uint:
		return strconv.FormatUint(uint64(val), 10)
	case uint8:
		return strconv.FormatUint(uint64(val), 10)
	case uint16:
		return strconv.FormatUint(uint64(val), 10)
	case uint32:
		return strconv.FormatUint(uint64(val), 10)
	case uint64:
		return strconv.FormatUint(val, 10)
	case float32:
		return strconv.FormatFloat(float64(val), 'g', -1, 32)
	case float64:
		return strconv.FormatFloat(val, 'g', -1, 64)
	case string:
		return val
	case []byte:
		// Drivers report text columns as []byte; only render real binary
		// as hex.
		if utf8.Valid(val) {
			return string(val)
		}
		return `\x` + hex.EncodeToString(val)
	case time.Time:
		return val.Format(time.RFC3339)
	default:
		return safeSprint(val)
	}
}

// safeSprint guards the fallback branch: a broken Stringer must degrade to a
// placeholder, not take the audit down.
func safeSprint(v any) (s string) {
	defer func() {
		if recover() != nil {
			s = "(unprintable value)"
		}
	}()
	return fmt.Sprintf("%v", v)
}

func truncate(s string) (string, bool) {
	if utf8.RuneCountInString(s) <= maxDisplayRunes {
		return s, false
	}
	runes := []rune(s)
	return string(runes[:maxDisplayRunes]), true
}

var documentEscaper = strings.NewReplacer(
	"|", `\|`,
	"`", "'",
	"\r", "",
	"\n", " ",
)

func escape(s string, ctx ValueContext) string {
	switch ctx {
	case DiagramCell:
		return html.EscapeString(s)
	default:
		return documentEscaper.Replace(s)
	}
}
