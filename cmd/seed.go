package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var seedWriteSchema bool

// demoSchema matches the tables created by the initial migration
const demoSchema = `{
  "tables": [
    {
      "name": "customers",
      "label": "Customers",
      "category": "sales",
      "supports_aggregates": true,
      "columns": [
        {"name": "uuid", "type": "string", "hidden": true},
        {"name": "name", "label": "Customer Name", "type": "string"},
        {"name": "email", "label": "Email", "type": "string"},
        {"name": "country", "label": "Country", "type": "string"},
        {"name": "created_at", "label": "Customer Since", "type": "datetime"}
      ]
    },
    {
      "name": "orders",
      "label": "Orders",
      "category": "sales",
      "supports_aggregates": true,
      "max_rows": 10000,
      "columns": [
        {"name": "id", "label": "Order ID", "type": "number"},
        {"name": "status", "label": "Status", "type": "string"},
        {"name": "total", "label": "Order Total", "type": "currency"},
        {"name": "discount_rate", "label": "Discount", "type": "percentage"},
        {"name": "metadata", "label": "Metadata", "type": "json"},
        {"name": "created_at", "label": "Ordered At", "type": "datetime"},
        {"name": "customer_uuid", "type": "string", "hidden": true}
      ],
      "relationships": [
        {
          "name": "customer",
          "label": "Customer",
          "table": "customers",
          "join_type": "left",
          "local_key": "customer_uuid",
          "foreign_key": "uuid",
          "mode": "auto"
        },
        {
          "name": "items",
          "label": "Line Items",
          "table": "order_items",
          "join_type": "left",
          "local_key": "id",
          "foreign_key": "order_id",
          "mode": "manual"
        }
      ]
    },
    {
      "name": "order_items",
      "label": "Order Items",
      "category": "sales",
      "supports_aggregates": true,
      "columns": [
        {"name": "id", "label": "Item ID", "type": "number"},
        {"name": "order_id", "label": "Order ID", "type": "number"},
        {"name": "sku", "label": "SKU", "type": "string"},
        {"name": "quantity", "label": "Quantity", "type": "number"},
        {"name": "unit_price", "label": "Unit Price", "type": "currency"}
      ]
    }
  ]
}
`

var seedCmd = &cobra.Command{
	Use:   "seed",
	Short: "Initialize the database with the demo schema and sample data",
	Long: `Create the reporting tables and load a small fixed data set for trying
the engine out. Seeding is idempotent; an already populated database is
left untouched.

Examples:
  report-engine seed
  report-engine seed --write-schema`,
	Args: cobra.NoArgs,
	RunE: runSeed,
}

func init() {
	seedCmd.Flags().BoolVar(&seedWriteSchema, "write-schema", true,
		"Write the demo schema catalog file if it does not exist")

	rootCmd.AddCommand(seedCmd)
}

func runSeed(cmd *cobra.Command, _ []string) error {
	ctx := cmd.Context()

	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	if err := cfg.EnsureDirectories(); err != nil {
		return err
	}

	db, err := openDatabase(ctx, cfg)
	if err != nil {
		return err
	}
	defer db.Close()

	if err := db.SeedDemoData(ctx); err != nil {
		return err
	}

	fmt.Printf("Database ready at %s\n", db.Path())

	if seedWriteSchema {
		if _, err := os.Stat(cfg.Catalog.SchemaFile); os.IsNotExist(err) {
			if err := os.WriteFile(cfg.Catalog.SchemaFile, []byte(demoSchema), 0644); err != nil {
				return fmt.Errorf("failed to write schema file: %w", err)
			}

			fmt.Printf("Schema catalog written to %s\n", cfg.Catalog.SchemaFile)
		}
	}

	return nil
}
