package cmd

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/briandowns/spinner"
	"github.com/spf13/cobra"

	"github.com/kyleking/report-engine/internal/classify"
	"github.com/kyleking/report-engine/internal/compile"
	enginerrors "github.com/kyleking/report-engine/internal/errors"
	"github.com/kyleking/report-engine/internal/validate"
)

var (
	runFormat  string
	runShowSQL bool
)

var runCmd = &cobra.Command{
	Use:   "run <config.json>",
	Short: "Validate, compile, and execute a report configuration",
	Long: `Run a report end to end: validate the configuration, compile it to
parameterized SQL, execute it against the database, and print the
result.

Examples:
  report-engine run report.json
  report-engine run --format json report.json
  report-engine run --show-sql report.json`,
	Args: cobra.ExactArgs(1),
	RunE: runReport,
}

func init() {
	runCmd.Flags().StringVar(&runFormat, "format", "table", "Output format: table or json")
	runCmd.Flags().BoolVar(&runShowSQL, "show-sql", false, "Print the generated SQL before the results")

	rootCmd.AddCommand(runCmd)
}

func runReport(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()

	if runFormat != "table" && runFormat != "json" {
		return enginerrors.Newf(enginerrors.ErrTypeValidation,
			"invalid format %q, must be table or json", runFormat)
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
	indicator.Suffix = " Running report..."
	indicator.Start()

	result, err := executor.Execute(ctx, queryCfg)

	indicator.Stop()

	if err != nil {
		response := classify.Handle(err, classify.Context{Operation: "run"})
		fmt.Printf("Report failed [%s]: %s (correlation %s)\n",
			response.Code, response.Message, response.CorrelationID)

		for _, suggestion := range response.Suggestions {
			fmt.Printf("  hint: %s\n", suggestion)
		}

		return err
	}

	if runShowSQL {
		fmt.Printf("SQL: %s\n", result.SQL)
		fmt.Printf("Bindings: %v\n", result.Bindings)

		for _, joined := range result.JoinedTables {
			fmt.Printf("Join: %s\n", joined)
		}

		fmt.Println()
	}

	if runFormat == "json" {
		return printResultJSON(result)
	}

	printResultTable(result)
	fmt.Printf("\n%d rows in %dms\n", result.RowCount, result.ElapsedMS)

	return nil
}

func printResultTable(result *compile.ExecutionResult) {
	writer := tabwriter.NewWriter(os.Stdout, 2, 4, 2, ' ', 0)

	headers := make([]string, len(result.Columns))
	for i, col := range result.Columns {
		headers[i] = col.Label
	}

	fmt.Fprintln(writer, strings.Join(headers, "\t"))

	for _, row := range result.Rows {
		cells := make([]string, len(row))
		for i, value := range row {
			if value == nil {
				cells[i] = ""
			} else {
				cells[i] = fmt.Sprintf("%v", value)
			}
		}

		fmt.Fprintln(writer, strings.Join(cells, "\t"))
	}

	_ = writer.Flush()
}

func printResultJSON(result *compile.ExecutionResult) error {
	payload := map[string]interface{}{
		"row_count":     result.RowCount,
		"elapsed_ms":    result.ElapsedMS,
		"columns":       result.Columns,
		"rows":          result.Rows,
		"joined_tables": result.JoinedTables,
	}

	encoded, err := json.MarshalIndent(payload, "", "  ")
	if err != nil {
		return enginerrors.Wrap(err, enginerrors.ErrTypeInternal, "failed to encode result")
	}

	fmt.Println(string(encoded))

	return nil
}
