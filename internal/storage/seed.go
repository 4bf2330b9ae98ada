package storage

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

type demoCustomer struct {
	name    string
	email   string
	country string
}

type demoOrder struct {
	customer int
	status   string
	total    string
	discount float64
	metadata string
	items    []demoItem
}

type demoItem struct {
	sku       string
	quantity  int
	unitPrice string
}

var demoCustomers = []demoCustomer{
	{"Acme Corp", "billing@acme.example", "US"},
	{"Globex", "ap@globex.example", "DE"},
	{"Initech", "finance@initech.example", "US"},
	{"Umbrella Ltd", "orders@umbrella.example", "GB"},
}

var demoOrders = []demoOrder{
	{0, "shipped", "1250.00", 0.05, `{"source":"web","campaign":"spring"}`, []demoItem{
		{"SKU-100", 2, "500.00"},
		{"SKU-210", 1, "250.00"},
	}},
	{0, "pending", "330.50", 0, `{"source":"phone"}`, []demoItem{
		{"SKU-210", 1, "330.50"},
	}},
	{1, "shipped", "980.00", 0.10, `{"source":"web"}`, []demoItem{
		{"SKU-100", 1, "500.00"},
		{"SKU-305", 4, "120.00"},
	}},
	{2, "cancelled", "75.25", 0, `{"source":"web","campaign":"retarget"}`, []demoItem{
		{"SKU-018", 1, "75.25"},
	}},
	{3, "shipped", "2100.00", 0.15, `{"source":"partner"}`, []demoItem{
		{"SKU-100", 4, "500.00"},
		{"SKU-018", 2, "50.00"},
	}},
	{3, "pending", "410.00", 0, `{"source":"web"}`, []demoItem{
		{"SKU-305", 2, "205.00"},
	}},
}

// SeedDemoData populates the reporting tables with a small fixed data
// set for demos and local development. It is idempotent: an already
// seeded database is left untouched.
func (d *DB) SeedDemoData(ctx context.Context) error {
	var count int
	if err := d.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM customers").Scan(&count); err != nil {
		return fmt.Errorf("failed to check existing data: %w", err)
	}

	if count > 0 {
		return nil
	}

	tx, err := d.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}

	defer func() { _ = tx.Rollback() }()

	now := time.Now().UTC()
	customerIDs := make([]string, len(demoCustomers))

	for i, customer := range demoCustomers {
		customerIDs[i] = uuid.New().String()

		_, err := tx.ExecContext(ctx,
			"INSERT INTO customers (uuid, name, email, country, created_at) VALUES (?, ?, ?, ?, ?)",
			customerIDs[i], customer.name, customer.email, customer.country,
			now.AddDate(0, -6, i),
		)
		if err != nil {
			return fmt.Errorf("failed to seed customer %q: %w", customer.name, err)
		}
	}

	orderID := 0
	itemID := 0

	for i, order := range demoOrders {
		orderID++

		total, err := decimal.NewFromString(order.total)
		if err != nil {
			return fmt.Errorf("invalid seed total %q: %w", order.total, err)
		}

		_, err = tx.ExecContext(ctx,
			`INSERT INTO orders (id, customer_uuid, status, total, discount_rate, metadata, created_at)
			 VALUES (?, ?, ?, ?, ?, ?, ?)`,
			orderID, customerIDs[order.customer], order.status,
			total.StringFixed(2), order.discount, order.metadata,
			now.AddDate(0, 0, -len(demoOrders)+i),
		)
		if err != nil {
			return fmt.Errorf("failed to seed order %d: %w", orderID, err)
		}

		for _, item := range order.items {
			itemID++

			price, err := decimal.NewFromString(item.unitPrice)
			if err != nil {
				return fmt.Errorf("invalid seed unit price %q: %w", item.unitPrice, err)
			}

			_, err = tx.ExecContext(ctx,
				"INSERT INTO order_items (id, order_id, sku, quantity, unit_price) VALUES (?, ?, ?, ?, ?)",
				itemID, orderID, item.sku, item.quantity, price.StringFixed(2),
			)
			if err != nil {
				return fmt.Errorf("failed to seed order item %q: %w", item.sku, err)
			}
		}
	}

	return tx.Commit()
}
