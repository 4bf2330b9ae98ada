package cmd

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	enginerrors "github.com/kyleking/report-engine/internal/errors"
	"github.com/kyleking/report-engine/internal/validate"
)

var validateJSON bool

var validateCmd = &cobra.Command{
	Use:   "validate <config.json>",
	Short: "Validate a report configuration without running it",
	Long: `Check a report configuration against the schema catalog: column and
relationship references, operators and value shapes, limits, and
security screens. Warnings do not block execution; errors do.

Examples:
  report-engine validate report.json
  report-engine validate --json report.json`,
	Args: cobra.ExactArgs(1),
	RunE: runValidate,
}

func init() {
	validateCmd.Flags().BoolVar(&validateJSON, "json", false, "Print the full validation result as JSON")

	rootCmd.AddCommand(validateCmd)
}

func runValidate(_ *cobra.Command, args []string) error {
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

	result := validate.NewValidator(registry).Validate(queryCfg)

	if validateJSON {
		encoded, err := json.MarshalIndent(result, "", "  ")
		if err != nil {
			return enginerrors.Wrap(err, enginerrors.ErrTypeInternal, "failed to encode result")
		}

		fmt.Println(string(encoded))

		if !result.Valid {
			return enginerrors.New(enginerrors.ErrTypeValidation, "configuration is invalid")
		}

		return nil
	}

	for _, msg := range result.Errors {
		fmt.Printf("  error: %s\n", msg)
	}

	printWarnings(result.Warnings)

	fmt.Printf("\nSummary: %d columns, %d joins, %d conditions (complexity: %s, estimated: %s)\n",
		result.Summary.TotalColumns, result.Summary.TotalJoins, result.Summary.TotalConditions,
		result.Summary.Complexity, result.Summary.EstimatedPerformance)

	if !result.Valid {
		return enginerrors.Newf(enginerrors.ErrTypeValidation,
			"configuration is invalid (%d errors)", len(result.Errors))
	}

	fmt.Println("Configuration is valid.")

	return nil
}
