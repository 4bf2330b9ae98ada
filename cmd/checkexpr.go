package cmd

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	enginerrors "github.com/kyleking/report-engine/internal/errors"
	"github.com/kyleking/report-engine/internal/expr"
)

var checkExprJSON bool

var checkExprCmd = &cobra.Command{
	Use:   "check-expr <table> <expression>",
	Short: "Validate a computed-column expression against the catalog",
	Long: `Screen a computed-column SQL expression before it may be embedded in a
report: forbidden keywords, the function allow-list, dangerous
operators, and column references are all checked against the schema
catalog. Nothing is executed.

Examples:
  report-engine check-expr orders "ROUND(total * (1 - discount_rate), 2)"
  report-engine check-expr orders "CONCAT(customer.name, ' <', customer.email, '>')"
  report-engine check-expr --json orders "YEAR(created_at)"`,
	Args: cobra.ExactArgs(2),
	RunE: runCheckExpr,
}

func init() {
	checkExprCmd.Flags().BoolVar(&checkExprJSON, "json", false, "Print the result as JSON")

	rootCmd.AddCommand(checkExprCmd)
}

func runCheckExpr(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	registry, err := loadCatalog(cfg)
	if err != nil {
		return err
	}
	defer registry.Close()

	result := expr.NewValidator(registry).Validate(args[1], args[0], nil)

	if checkExprJSON {
		encoded, err := json.MarshalIndent(result, "", "  ")
		if err != nil {
			return enginerrors.Wrap(err, enginerrors.ErrTypeInternal, "failed to encode result")
		}

		fmt.Println(string(encoded))
	} else {
		for _, msg := range result.Errors {
			fmt.Printf("  error: %s\n", msg)
		}

		if result.Valid {
			fmt.Println("Expression is valid")
		}
	}

	if !result.Valid {
		return enginerrors.Newf(enginerrors.ErrTypeValidation,
			"expression is invalid (%d errors)", len(result.Errors))
	}

	return nil
}
