package main

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/BurntSushi/toml"
)

// MigrationConfig holds the full TOML-driven migration configuration.
type MigrationConfig struct {
	Notion            NotionConfig `toml:"notion"`
	Target            TargetConfig `toml:"target"`
	Schema            string       `toml:"schema"`
	OnSchemaExists    string       `toml:"on_schema_exists"` // keep|recreate|error
	RequestsPerSecond float64      `toml:"requests_per_second"`
	PageSize          int          `toml:"page_size"`
	MaxRetries        int          `toml:"max_retries"`
	ExtractContent    bool         `toml:"extract_content"`
	Verbose           bool         `toml:"verbose"`
	Yes               bool         `toml:"yes"` // skip the confirmation prompt
	IncludeDatabases  []string     `toml:"include_databases"`
	Hooks             HooksConfig  `toml:"hooks"`

	// configDir is the directory containing the TOML file, used to resolve relative SQL paths.
	configDir string
}

// NotionConfig identifies the source workspace integration.
type NotionConfig struct {
	Token      string `toml:"token"`
	APIVersion string `toml:"api_version"`
	BaseURL    string `toml:"base_url"`
}

type TargetConfig struct {
	DSN string `toml:"dsn"`
}

// HooksConfig lists SQL files executed around the data phases.
type HooksConfig struct {
	BeforeData []string `toml:"before_data"`
	AfterData  []string `toml:"after_data"`
	AfterAll   []string `toml:"after_all"`
}

// loadConfig reads a TOML config file and returns a MigrationConfig with
// defaults applied. NOTION_TOKEN and POSTGRES_DSN environment variables
// override the file values.
func loadConfig(path string) (*MigrationConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}

	cfg := MigrationConfig{
		Schema:            "notion",
		OnSchemaExists:    "keep",
		RequestsPerSecond: 3,
		PageSize:          100,
		MaxRetries:        5,
	}
	md, err := toml.Decode(string(data), &cfg)
	if err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	if unknown := md.Undecoded(); len(unknown) > 0 {
		keys := make([]string, len(unknown))
		for i, k := range unknown {
			keys[i] = k.String()
		}
		return nil, fmt.Errorf("unknown config keys: %s", strings.Join(keys, ", "))
	}

	absPath, err := filepath.Abs(path)
	if err != nil {
		return nil, fmt.Errorf("resolve config path: %w", err)
	}
	cfg.configDir = filepath.Dir(absPath)

	if v := os.Getenv("NOTION_TOKEN"); v != "" {
		cfg.Notion.Token = v
	}
	if v := os.Getenv("POSTGRES_DSN"); v != "" {
		cfg.Target.DSN = v
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *MigrationConfig) validate() error {
	c.Schema = strings.TrimSpace(c.Schema)
	if c.Schema == "" {
		return fmt.Errorf("schema is required")
	}

	switch c.OnSchemaExists {
	case "keep", "recreate", "error":
	default:
		return fmt.Errorf("on_schema_exists must be one of: keep, recreate, error")
	}

	if c.RequestsPerSecond <= 0 {
		return fmt.Errorf("requests_per_second must be positive")
	}
	if c.PageSize < 1 || c.PageSize > 100 {
		return fmt.Errorf("page_size must be between 1 and 100")
	}
	if c.MaxRetries < 1 {
		return fmt.Errorf("max_retries must be at least 1")
	}

	if c.Notion.Token == "" {
		return fmt.Errorf("notion.token is required (or set NOTION_TOKEN)")
	}
	if c.Notion.APIVersion == "" {
		c.Notion.APIVersion = "2022-06-28"
	}
	if c.Notion.BaseURL == "" {
		c.Notion.BaseURL = "https://api.notion.com"
	}

	if c.Target.DSN == "" {
		return fmt.Errorf("target.dsn is required (or set POSTGRES_DSN)")
	}
	return nil
}

// resolvePath resolves a path relative to the config file directory.
func (c *MigrationConfig) resolvePath(p string) string {
	if filepath.IsAbs(p) {
		return p
	}
	return filepath.Join(c.configDir, p)
}

// databaseIncluded applies the include_databases allow-list; an empty list
// includes everything.
func (c *MigrationConfig) databaseIncluded(title string) bool {
	if len(c.IncludeDatabases) == 0 {
		return true
	}
	for _, want := range c.IncludeDatabases {
		if want == title {
			return true
		}
	}
	return false
}
