// Package cmd implements the report-engine command-line interface.
package cmd

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/kyleking/report-engine/internal/catalog"
	"github.com/kyleking/report-engine/internal/config"
	enginerrors "github.com/kyleking/report-engine/internal/errors"
	"github.com/kyleking/report-engine/internal/logging"
	"github.com/kyleking/report-engine/internal/report"
	"github.com/kyleking/report-engine/internal/storage"
)

var (
	flagDBPath     string
	flagSchemaFile string
	flagExportDir  string
	flagLogLevel   string
)

var rootCmd = &cobra.Command{
	Use:   "report-engine",
	Short: "Run declarative reports against a local DuckDB database",
	Long: `report-engine validates, compiles, and executes declarative report
configurations. A JSON configuration names a table from the schema
catalog, the columns to select, filters, grouping, and sorting; the
engine resolves relationships into joins, generates parameterized SQL,
and renders the result as a table or an exported file.`,
	SilenceUsage:  true,
	SilenceErrors: true,
}

func Execute() error {
	ctx := context.Background()
	return rootCmd.ExecuteContext(ctx)
}

func init() {
	rootCmd.PersistentFlags().StringVar(&flagDBPath, "db-path", "", "Path to the DuckDB database file")
	rootCmd.PersistentFlags().StringVar(&flagSchemaFile, "schema-file", "", "Path to the schema catalog JSON file")
	rootCmd.PersistentFlags().StringVar(&flagExportDir, "export-dir", "", "Directory for exported report files")
	rootCmd.PersistentFlags().StringVar(&flagLogLevel, "log-level", "", "Log level (debug, info, warn, error)")
}

// loadConfig merges file, environment, and flag configuration and
// initializes logging
func loadConfig() (*config.Config, error) {
	cfg, err := config.LoadConfigWithOverrides(map[string]interface{}{
		"db-path":     flagDBPath,
		"schema-file": flagSchemaFile,
		"export-dir":  flagExportDir,
		"log-level":   flagLogLevel,
	})
	if err != nil {
		return nil, err
	}

	cfg.ExpandAllPaths()

	if err := logging.InitializeLogger(cfg.Logging); err != nil {
		return nil, enginerrors.Wrap(err, enginerrors.ErrTypeConfig, "failed to initialize logging")
	}

	return cfg, nil
}

// loadCatalog builds the registry from the configured schema file
func loadCatalog(cfg *config.Config) (*catalog.Registry, error) {
	registry := catalog.NewRegistry(cfg.CacheTTLDuration())

	count, err := catalog.LoadFile(registry, cfg.Catalog.SchemaFile)
	if err != nil {
		_ = registry.Close()

		return nil, enginerrors.Wrapf(err, enginerrors.ErrTypeCatalog,
			"failed to load schema catalog from %s", cfg.Catalog.SchemaFile)
	}

	logging.GetLogger().Debugf("Loaded %d tables from %s", count, cfg.Catalog.SchemaFile)

	return registry, nil
}

// openDatabase opens the configured database and applies migrations
func openDatabase(ctx context.Context, cfg *config.Config) (*storage.DB, error) {
	db, err := storage.NewDB(cfg.Database)
	if err != nil {
		return nil, enginerrors.Wrap(err, enginerrors.ErrTypeConnection, "failed to open database")
	}

	if err := db.Initialize(ctx); err != nil {
		_ = db.Close()

		return nil, enginerrors.Wrap(err, enginerrors.ErrTypeDatabase, "failed to initialize database schema")
	}

	return db, nil
}

// readQueryConfig loads and parses a report configuration file
func readQueryConfig(path string) (*report.QueryConfig, error) {
	cfg, err := report.ParseConfigFile(path)
	if err != nil {
		return nil, enginerrors.Wrapf(err, enginerrors.ErrTypeValidation,
			"failed to parse report configuration %s", path)
	}

	return cfg, nil
}

func printWarnings(warnings []string) {
	for _, warning := range warnings {
		fmt.Printf("  warning: %s\n", warning)
	}
}
