package cmd

import (
	"fmt"
	"time"

	"github.com/briandowns/spinner"
	"github.com/spf13/cobra"

	"github.com/kyleking/report-engine/internal/classify"
	"github.com/kyleking/report-engine/internal/compile"
	enginerrors "github.com/kyleking/report-engine/internal/errors"
	"github.com/kyleking/report-engine/internal/export"
	"github.com/kyleking/report-engine/internal/validate"
)

var (
	exportFormat   string
	exportOutput   string
	exportTitle    string
	exportBOM      bool
	exportPretty   bool
	exportCurrency string
	exportDelim    string
)

var exportCmd = &cobra.Command{
	Use:   "export <config.json>",
	Short: "Run a report and export the result to a file",
	Long: `Run a report and write the result into the export directory in the
requested format.

Examples:
  report-engine export --format csv report.json
  report-engine export --format xlsx --output monthly_orders report.json
  report-engine export --format csv --bom --delimiter ";" report.json`,
	Args: cobra.ExactArgs(1),
	RunE: runExport,
}

func init() {
	exportCmd.Flags().StringVarP(&exportFormat, "format", "f", "csv", "Export format: csv, xlsx, json, xml, html")
	exportCmd.Flags().StringVarP(&exportOutput, "output", "o", "", "Output filename (extension added automatically)")
	exportCmd.Flags().StringVar(&exportTitle, "title", "", "Report title used in metadata")
	exportCmd.Flags().BoolVar(&exportBOM, "bom", false, "Prefix CSV output with a UTF-8 BOM for Excel")
	exportCmd.Flags().BoolVar(&exportPretty, "pretty", true, "Pretty-print JSON output")
	exportCmd.Flags().StringVar(&exportCurrency, "currency", "$", "Currency symbol for currency columns")
	exportCmd.Flags().StringVar(&exportDelim, "delimiter", ",", "CSV field delimiter")

	rootCmd.AddCommand(exportCmd)
}

func runExport(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()

	format := export.Format(exportFormat)
	if !export.KnownFormat(format) {
		return enginerrors.Newf(enginerrors.ErrTypeValidation,
			"unsupported export format %q, must be csv, xlsx, json, xml, or html", exportFormat)
	}

	var delimiter rune
	for _, r := range exportDelim {
		delimiter = r
		break
	}

	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	registry, err := loadCatalog(cfg)
	if err != nil {
		return err
	}
	defer registry.Close()

	queryCfg, err := readQueryConfig(args[0])
	if err != nil {
		return err
	}

	validation := validate.NewValidator(registry).Validate(queryCfg)
	if !validation.Valid {
		for _, msg := range validation.Errors {
			fmt.Printf("  error: %s\n", msg)
		}

		return enginerrors.Newf(enginerrors.ErrTypeValidation,
			"configuration is invalid (%d errors)", len(validation.Errors))
	}

	printWarnings(validation.Warnings)

	db, err := openDatabase(ctx, cfg)
	if err != nil {
		return err
	}
	defer db.Close()

	executor := compile.NewExecutor(db, compile.NewCompiler(registry), cfg.QueryTimeoutDuration())

	indicator := spinner.New(spinner.CharSets[14], 100*time.Millisecond)
	indicator.Suffix = " Running and exporting report..."
	indicator.Start()

	result, err := executor.Execute(ctx, queryCfg)
	if err != nil {
		indicator.Stop()

		response := classify.Handle(err, classify.Context{Operation: "export"})
		fmt.Printf("Export failed [%s]: %s (correlation %s)\n",
			response.Code, response.Message, response.CorrelationID)

		return err
	}

	exporter := export.NewExporter(cfg.Export.Directory, cfg.Export.BaseURL)

	exported, err := exporter.Export(exportSource(result), export.Options{
		Format:         format,
		Filename:       exportOutput,
		Title:          exportTitle,
		Delimiter:      delimiter,
		IncludeBOM:     exportBOM,
		Pretty:         exportPretty,
		CurrencySymbol: exportCurrency,
	})

	indicator.Stop()

	if err != nil {
		response := classify.Handle(err, classify.Context{Operation: "export"})
		fmt.Printf("Export failed [%s]: %s (correlation %s)\n",
			response.Code, response.Message, response.CorrelationID)

		return err
	}

	fmt.Printf("Exported %d rows to %s (%d bytes)\n",
		exported.Rows, exported.Filepath, exported.Size)

	return nil
}

// exportSource adapts an execution result to the exporter's input shape
func exportSource(result *compile.ExecutionResult) export.Source {
	columns := make([]export.Column, len(result.Columns))
	for i, col := range result.Columns {
		columns[i] = export.Column{
			Name:  col.Name,
			Label: col.Label,
			Type:  string(col.Type),
		}
	}

	return export.Source{Columns: columns, Rows: result.Rows}
}
