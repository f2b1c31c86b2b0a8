package testutil

import (
	"context"
	"testing"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/require"
)

// SeedLaboratory inserts a laboratory and returns its id
func SeedLaboratory(t *testing.T, db *sqlx.DB, name string) int64 {
	t.Helper()

	var id int64
	err := db.GetContext(context.Background(), &id,
		`INSERT INTO laboratories (name) VALUES ($1) RETURNING id`, name)
	require.NoError(t, err)
	return id
}

// SeedProduct inserts a product and returns its id
func SeedProduct(t *testing.T, db *sqlx.DB, laboratoryID int64, name string, salesPrice int64) int64 {
	t.Helper()

	var id int64
	err := db.GetContext(context.Background(), &id,
		`INSERT INTO products (laboratory_id, name, sales_price) VALUES ($1, $2, $3) RETURNING id`,
		laboratoryID, name, salesPrice)
	require.NoError(t, err)
	return id
}

// SeedBatch inserts a batch and returns its id
func SeedBatch(t *testing.T, db *sqlx.DB, productID int64, batchName string, expiration time.Time, quantity int, unitCost int64) int64 {
	t.Helper()

	var id int64
	err := db.GetContext(context.Background(), &id,
		`INSERT INTO product_batches (product_id, batch_name, expiration_date, quantity, unit_cost, total_cost, entry_date)
		 VALUES ($1, $2, $3, $4, $5, $6, $7) RETURNING id`,
		productID, batchName, expiration, quantity, unitCost, unitCost*int64(quantity), expiration.AddDate(-1, 0, 0))
	require.NoError(t, err)
	return id
}

// BatchQuantities returns the product's batch quantities in FIFO order
func BatchQuantities(t *testing.T, db *sqlx.DB, productID int64) []int {
	t.Helper()

	var quantities []int
	err := db.SelectContext(context.Background(), &quantities,
		`SELECT quantity FROM product_batches WHERE product_id = $1 ORDER BY expiration_date ASC, id ASC`,
		productID)
	require.NoError(t, err)
	return quantities
}
