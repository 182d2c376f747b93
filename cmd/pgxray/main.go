package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"github.com/t6891/pgxray"
)

var (
	dbURL         string
	mysqlURL      string
	sqlitePath    string
	reportPath    string
	dotPath       string
	pngPath       string
	configPath    string
	tables        string
	excludeTables string
	schemaName    string
	sampleLimit   int
	verbose       bool

	tableList   []string
	excludeList []string
)

var rootCmd = &cobra.Command{
	Use:   "pgxray",
	Short: "Database audit report and ER diagram generator",
	Long: `pgXRay introspects a PostgreSQL, MySQL, or SQLite database and produces a
markdown audit report plus an ER diagram (graphviz DOT text and, when the
dot tool is installed, a PNG image).`,
	RunE: run,
}

func init() {
	rootCmd.Flags().StringVar(&dbURL, "db-url", "", "PostgreSQL connection string")
	rootCmd.Flags().StringVar(&mysqlURL, "mysql-url", "", "MySQL connection string")
	rootCmd.Flags().StringVar(&sqlitePath, "sqlite", "", "SQLite database file path")
	rootCmd.Flags().StringVar(&reportPath, "md", "", "Markdown report path (default: audit_report.md)")
	rootCmd.Flags().StringVar(&dotPath, "dot", "", "DOT file path (default: er_diagram.dot)")
	rootCmd.Flags().StringVar(&pngPath, "png", "", "PNG file path (default: er_diagram.png)")
	rootCmd.Flags().StringVarP(&configPath, "config", "c", "", "YAML config file (flags override it)")
	rootCmd.Flags().StringVarP(&tables, "tables", "t", "", "Specific tables (comma-separated, optional)")
	rootCmd.Flags().StringVarP(&excludeTables, "exclude-tables", "x", "", "Tables to exclude (comma-separated, optional)")
	rootCmd.Flags().StringVarP(&schemaName, "schema", "s", "", "MySQL database name when not in the connection string")
	rootCmd.Flags().IntVar(&sampleLimit, "sample-limit", 0, "Sample rows per table (default: 10, negative disables)")
	rootCmd.Flags().BoolVarP(&verbose, "verbose", "v", false, "Log informational messages, not just warnings")
}

func run(cmd *cobra.Command, args []string) error {
	if tables != "" {
		tableList = splitList(tables)
	}
	if excludeTables != "" {
		excludeList = splitList(excludeTables)
	}

	if configPath != "" {
		cfg, err := loadConfig(configPath)
		if err != nil {
			return err
		}
		applyConfig(cfg)
	}

	// Validate database flags
	dbCount := 0
	if dbURL != "" {
		dbCount++
	}
	if mysqlURL != "" {
		dbCount++
	}
	if sqlitePath != "" {
		dbCount++
	}
	if dbCount == 0 {
		return fmt.Errorf("one of --db-url, --mysql-url, or --sqlite must be specified")
	}
	if dbCount > 1 {
		return fmt.Errorf("only one of --db-url, --mysql-url, or --sqlite can be specified")
	}

	level := slog.LevelWarn
	if verbose {
		level = slog.LevelInfo
	}
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))

	databaseURL := dbURL
	switch {
	case mysqlURL != "":
		databaseURL = "mysql://" + strings.TrimPrefix(mysqlURL, "mysql://")
	case sqlitePath != "":
		databaseURL = "sqlite://" + strings.TrimPrefix(sqlitePath, "sqlite://")
	}

	opts := &pgxray.Options{
		Tables:        tableList,
		ExcludeTables: excludeList,
		SampleLimit:   sampleLimit,
		SchemaName:    schemaName,
		Logger:        logger,
	}
	out := &pgxray.OutputOptions{
		ReportPath:  reportPath,
		DOTPath:     dotPath,
		ImagePath:   pngPath,
		GeneratedAt: time.Now(),
	}

	if err := pgxray.Audit(context.Background(), databaseURL, opts, out); err != nil {
		return err
	}

	report := out.ReportPath
	if report == "" {
		report = pgxray.DefaultReportPath
	}
	fmt.Printf("[+] All done! Report is available at %s\n", report)
	return nil
}

func splitList(s string) []string {
	parts := strings.Split(s, ",")
	for i, p := range parts {
		parts[i] = strings.TrimSpace(p)
	}
	return parts
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
