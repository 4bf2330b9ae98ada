package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
)

// Config represents the application configuration
type Config struct {
	Database DatabaseConfig `json:"database" envPrefix:"REPORT_ENGINE_"`
	Catalog  CatalogConfig  `json:"catalog"  envPrefix:"REPORT_ENGINE_"`
	Export   ExportConfig   `json:"export"   envPrefix:"REPORT_ENGINE_"`
	Logging  LoggingConfig  `json:"logging"  envPrefix:"REPORT_ENGINE_"`
}

// DatabaseConfig represents database configuration
type DatabaseConfig struct {
	Path            string `json:"path"               env:"DB_PATH"               envDefault:"~/.config/report-engine/reports.db"`
	MaxConnections  int    `json:"max_connections"    env:"DB_MAX_CONNECTIONS"    envDefault:"10"`
	MaxIdleConns    int    `json:"max_idle_conns"     env:"DB_MAX_IDLE_CONNS"     envDefault:"5"`
	ConnMaxLifetime string `json:"conn_max_lifetime"  env:"DB_CONN_MAX_LIFETIME"  envDefault:"30m"`
	ConnMaxIdleTime string `json:"conn_max_idle_time" env:"DB_CONN_MAX_IDLE_TIME" envDefault:"5m"`
	QueryTimeout    string `json:"query_timeout"      env:"DB_QUERY_TIMEOUT"      envDefault:"30s"`
}

// CatalogConfig represents schema catalog configuration
type CatalogConfig struct {
	SchemaFile string `json:"schema_file" env:"CATALOG_SCHEMA_FILE" envDefault:"~/.config/report-engine/schema.json"`
	CacheTTL   string `json:"cache_ttl"   env:"CATALOG_CACHE_TTL"   envDefault:"5m"`
}

// ExportConfig represents export output configuration
type ExportConfig struct {
	Directory string `json:"directory" env:"EXPORT_DIR"      envDefault:"~/.local/share/report-engine/exports"`
	BaseURL   string `json:"base_url"  env:"EXPORT_BASE_URL" envDefault:"/exports"`
}

// LoggingConfig represents logging configuration
type LoggingConfig struct {
	Level  string `json:"level"  env:"LOG_LEVEL"  envDefault:"info"`                                  // debug, info, warn, error
	Format string `json:"format" env:"LOG_FORMAT" envDefault:"text"`                                  // text, json
	Output string `json:"output" env:"LOG_OUTPUT" envDefault:"stdout"`                                // stdout, stderr, file
	File   string `json:"file"   env:"LOG_FILE"   envDefault:"~/.config/report-engine/logs/app.log"` // log file path when output is file
}

// LoadConfig loads configuration from file and environment variables
func LoadConfig() (*Config, error) {
	return LoadConfigWithOverrides(nil)
}

// LoadConfigWithOverrides loads configuration with optional command-line flag overrides
func LoadConfigWithOverrides(flagOverrides map[string]interface{}) (*Config, error) {
	// Start with empty configuration (defaults will be set by env.Parse)
	config := &Config{}

	// Load from config file if it exists
	configPath := getConfigPath()
	if _, err := os.Stat(configPath); err == nil {
		if err := loadConfigFromFile(config, configPath); err != nil {
			return nil, fmt.Errorf("failed to load config file: %w", err)
		}
	}

	// Apply environment variable overrides using env library (also sets defaults)
	if err := env.ParseWithOptions(config, env.Options{
		Prefix: "REPORT_ENGINE_",
	}); err != nil {
		return nil, fmt.Errorf("failed to parse environment variables: %w", err)
	}

	// Apply command-line flag overrides
	if flagOverrides != nil {
		applyFlagOverrides(config, flagOverrides)
	}

	// Validate configuration
	if err := validateConfig(config); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return config, nil
}

// loadConfigFromFile loads configuration from a JSON file
func loadConfigFromFile(config *Config, configPath string) error {
	data, err := os.ReadFile(configPath)
	if err != nil {
		return fmt.Errorf("failed to read config file: %w", err)
	}

	// Parse JSON into a temporary struct to merge with defaults
	var fileConfig Config
	if err := json.Unmarshal(data, &fileConfig); err != nil {
		return fmt.Errorf("failed to parse config file: %w", err)
	}

	// Merge file config with defaults
	mergeConfigs(config, &fileConfig)

	return nil
}

// applyFlagOverrides applies command-line flag overrides to configuration
func applyFlagOverrides(config *Config, overrides map[string]interface{}) {
	for key, value := range overrides {
		switch key {
		case "db-path":
			if str, ok := value.(string); ok && str != "" {
				config.Database.Path = str
			}
		case "schema-file":
			if str, ok := value.(string); ok && str != "" {
				config.Catalog.SchemaFile = str
			}
		case "export-dir":
			if str, ok := value.(string); ok && str != "" {
				config.Export.Directory = str
			}
		case "log-level":
			if str, ok := value.(string); ok && str != "" {
				config.Logging.Level = str
			}
		}
	}
}

// mergeConfigs merges source configuration into target configuration
func mergeConfigs(target, source *Config) {
	var mergeValues func(t, s reflect.Value)
	mergeValues = func(t, s reflect.Value) {
		if t.Kind() != s.Kind() {
			return
		}

		if t.Kind() == reflect.Struct {
			for i := range s.NumField() {
				mergeValues(t.Field(i), s.Field(i))
			}
		} else if !s.IsZero() {
			t.Set(s)
		}
	}

	mergeValues(reflect.ValueOf(target).Elem(), reflect.ValueOf(source).Elem())
}

// validateConfig validates the configuration for common errors
func validateConfig(config *Config) error {
	// Validate log level
	validLogLevels := map[string]bool{
		"debug": true, "info": true, "warn": true, "error": true,
	}
	if !validLogLevels[strings.ToLower(config.Logging.Level)] {
		return fmt.Errorf(
			"invalid log level: %s (must be debug, info, warn, or error)",
			config.Logging.Level,
		)
	}

	// Validate log format
	validLogFormats := map[string]bool{
		"text": true, "json": true,
	}
	if !validLogFormats[strings.ToLower(config.Logging.Format)] {
		return fmt.Errorf("invalid log format: %s (must be text or json)", config.Logging.Format)
	}

	// Validate log output
	validLogOutputs := map[string]bool{
		"stdout": true, "stderr": true, "file": true,
	}
	if !validLogOutputs[strings.ToLower(config.Logging.Output)] {
		return fmt.Errorf(
			"invalid log output: %s (must be stdout, stderr, or file)",
			config.Logging.Output,
		)
	}

	// Validate timeout durations
	if _, err := time.ParseDuration(config.Database.QueryTimeout); err != nil {
		return fmt.Errorf("invalid database query timeout: %s", config.Database.QueryTimeout)
	}

	if _, err := time.ParseDuration(config.Catalog.CacheTTL); err != nil {
		return fmt.Errorf("invalid catalog cache TTL: %s", config.Catalog.CacheTTL)
	}

	// Validate numeric values
	if config.Database.MaxConnections <= 0 {
		return fmt.Errorf(
			"database max connections must be positive: %d",
			config.Database.MaxConnections,
		)
	}

	return nil
}

// QueryTimeoutDuration returns the parsed query timeout ceiling
func (c *Config) QueryTimeoutDuration() time.Duration {
	d, err := time.ParseDuration(c.Database.QueryTimeout)
	if err != nil {
		return 30 * time.Second
	}

	return d
}

// CacheTTLDuration returns the parsed catalog cache TTL
func (c *Config) CacheTTLDuration() time.Duration {
	d, err := time.ParseDuration(c.Catalog.CacheTTL)
	if err != nil {
		return 5 * time.Minute
	}

	return d
}

// getConfigPath returns the path to the configuration file
func getConfigPath() string {
	// Check for custom config path from environment
	if configPath := os.Getenv("REPORT_ENGINE_CONFIG"); configPath != "" {
		return expandPath(configPath)
	}

	homeDir, err := os.UserHomeDir()
	if err != nil {
		return "./config.json"
	}

	return filepath.Join(homeDir, ".config", "report-engine", "config.json")
}

// expandPath expands ~ to home directory in file paths
func expandPath(path string) string {
	if !strings.HasPrefix(path, "~") {
		return path
	}

	homeDir, err := os.UserHomeDir()
	if err != nil {
		return path
	}

	if path == "~" {
		return homeDir
	}

	if strings.HasPrefix(path, "~/") {
		return filepath.Join(homeDir, path[2:])
	}

	return path
}

// ExpandAllPaths expands all paths in the configuration
func (c *Config) ExpandAllPaths() {
	c.Database.Path = expandPath(c.Database.Path)
	c.Catalog.SchemaFile = expandPath(c.Catalog.SchemaFile)
	c.Export.Directory = expandPath(c.Export.Directory)
	c.Logging.File = expandPath(c.Logging.File)
}

// EnsureDirectories creates necessary directories for the configuration
func (c *Config) EnsureDirectories() error {
	dirs := []string{
		filepath.Dir(c.Database.Path),
		c.Export.Directory,
		filepath.Dir(c.Logging.File),
	}

	for _, dir := range dirs {
		if dir != "" && dir != "." {
			if err := os.MkdirAll(dir, 0755); err != nil {
				return fmt.Errorf("failed to create directory %s: %w", dir, err)
			}
		}
	}

	return nil
}
