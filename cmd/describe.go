package cmd

import (
	"fmt"
	"os"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	enginerrors "github.com/kyleking/report-engine/internal/errors"
)

var describeCmd = &cobra.Command{
	Use:   "describe [table]",
	Short: "List the tables available for reporting, or one table's columns",
	Long: `Without arguments, list every table registered in the schema catalog.
With a table name, show its reportable columns and relationships.

Examples:
  report-engine describe
  report-engine describe orders`,
	Args: cobra.MaximumNArgs(1),
	RunE: runDescribe,
}

func init() {
	rootCmd.AddCommand(describeCmd)
}

func runDescribe(_ *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	registry, err := loadCatalog(cfg)
	if err != nil {
		return err
	}
	defer registry.Close()

	if len(args) == 0 {
		writer := tabwriter.NewWriter(os.Stdout, 2, 4, 2, ' ', 0)
		fmt.Fprintln(writer, "TABLE\tLABEL\tCATEGORY\tCOLUMNS")

		for _, table := range registry.Tables() {
			fmt.Fprintf(writer, "%s\t%s\t%s\t%d\n",
				table.Name, table.Label, table.Category, len(table.VisibleColumns()))
		}

		return writer.Flush()
	}

	name := args[0]

	table, ok := registry.Get(name)
	if !ok {
		return enginerrors.NewTableNotFound(name)
	}

	fmt.Printf("Table: %s", table.Name)

	if table.Label != "" {
		fmt.Printf(" (%s)", table.Label)
	}

	fmt.Println()

	if table.Description != "" {
		fmt.Println(table.Description)
	}

	if table.MaxRows > 0 {
		fmt.Printf("Row cap: %d\n", table.MaxRows)
	}

	fmt.Println("\nColumns:")

	writer := tabwriter.NewWriter(os.Stdout, 2, 4, 2, ' ', 0)
	fmt.Fprintln(writer, "  NAME\tLABEL\tTYPE")

	for _, col := range table.VisibleColumns() {
		fmt.Fprintf(writer, "  %s\t%s\t%s\n", col.Name, col.Label, col.Type)
	}

	if err := writer.Flush(); err != nil {
		return err
	}

	if len(table.Relationships) > 0 {
		fmt.Println("\nRelationships:")

		writer = tabwriter.NewWriter(os.Stdout, 2, 4, 2, ' ', 0)
		fmt.Fprintln(writer, "  NAME\tTARGET\tJOIN\tMODE")

		for _, rel := range table.Relationships {
			fmt.Fprintf(writer, "  %s\t%s\t%s\t%s\n",
				rel.Name, rel.Table, strings.ToUpper(string(rel.JoinType)), rel.Mode)
		}

		return writer.Flush()
	}

	return nil
}
