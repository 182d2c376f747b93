package main

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// fileConfig mirrors the command-line flags so recurring audits can keep
// their settings in a YAML file. Flags set on the command line win.
type fileConfig struct {
	DBURL         string   `yaml:"db_url"`
	MySQLURL      string   `yaml:"mysql_url"`
	SQLitePath    string   `yaml:"sqlite"`
	ReportPath    string   `yaml:"report"`
	DOTPath       string   `yaml:"dot"`
	PNGPath       string   `yaml:"png"`
	SampleLimit   int      `yaml:"sample_limit"`
	Tables        []string `yaml:"tables"`
	ExcludeTables []string `yaml:"exclude_tables"`
	SchemaName    string   `yaml:"schema"`
}

func loadConfig(path string) (*fileConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	var cfg fileConfig
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}
	return &cfg, nil
}

// applyConfig fills in every flag the user did not set explicitly.
func applyConfig(cfg *fileConfig) {
	if dbURL == "" {
		dbURL = cfg.DBURL
	}
	if mysqlURL == "" {
		mysqlURL = cfg.MySQLURL
	}
	if sqlitePath == "" {
		sqlitePath = cfg.SQLitePath
	}
	if reportPath == "" {
		reportPath = cfg.ReportPath
	}
	if dotPath == "" {
		dotPath = cfg.DOTPath
	}
	if pngPath == "" {
		pngPath = cfg.PNGPath
	}
	if sampleLimit == 0 {
		sampleLimit = cfg.SampleLimit
	}
	if tables == "" && len(cfg.Tables) > 0 {
		tableList = cfg.Tables
	}
	if excludeTables == "" && len(cfg.ExcludeTables) > 0 {
		excludeList = cfg.ExcludeTables
	}
	if schemaName == "" {
		schemaName = cfg.SchemaName
	}
}
