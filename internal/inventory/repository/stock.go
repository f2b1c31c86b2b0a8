package repository

import (
	"context"
	"database/sql"
	"time"

	"github.com/farmastock/farmastock-backend/pkg/database"
	"github.com/farmastock/farmastock-backend/pkg/errors"
)

// ProductStock is the aggregated stock view of one product. Stock is always
// derived from batch quantities, never stored on the product.
type ProductStock struct {
	ID           int64   `db:"id" json:"id"`
	Name         string  `db:"name" json:"name"`
	LaboratoryID int64   `db:"laboratory_id" json:"laboratory_id"`
	Laboratory   string  `db:"laboratory" json:"laboratory"`
	Description  *string `db:"description" json:"description,omitempty"`
	SalesPrice   *int64  `db:"sales_price" json:"sales_price,omitempty"`
	Stock        int     `db:"stock" json:"stock"`
}

// ExpiringBatchRow is one batch inside the expiry horizon, joined with its
// product for grouping.
type ExpiringBatchRow struct {
	ProductID      int64     `db:"product_id" json:"product_id"`
	ProductName    string    `db:"product_name" json:"product_name"`
	Laboratory     string    `db:"laboratory" json:"laboratory"`
	SalesPrice     *int64    `db:"sales_price" json:"sales_price,omitempty"`
	BatchID        int64     `db:"batch_id" json:"batch_id"`
	BatchName      string    `db:"batch_name" json:"batch_name"`
	ExpirationDate time.Time `db:"expiration_date" json:"expiration_date"`
	Quantity       int       `db:"quantity" json:"quantity"`
	EntryDate      time.Time `db:"entry_date" json:"entry_date"`
}

// StockRepository provides read-only aggregated stock views. These queries
// run outside write transactions; a slightly stale snapshot is fine for
// browsing but never feeds a deduction decision.
type StockRepository struct {
	db *database.DB
}

// NewStockRepository creates a new stock repository
func NewStockRepository(db *database.DB) *StockRepository {
	return &StockRepository{db: db}
}

const stockSelect = `
	SELECT p.id, p.name, p.laboratory_id, l.name AS laboratory, p.description,
	       p.sales_price, COALESCE(SUM(pb.quantity), 0) AS stock
	FROM products p
	LEFT JOIN laboratories l ON p.laboratory_id = l.id
	LEFT JOIN product_batches pb ON p.id = pb.product_id
	GROUP BY p.id, p.name, p.laboratory_id, l.name, p.description, p.sales_price
`

// ListAll returns every product with its aggregated stock, ordered by name.
func (r *StockRepository) ListAll(ctx context.Context) ([]*ProductStock, error) {
	var products []*ProductStock
	query := stockSelect + ` ORDER BY p.name ASC`
	if err := r.db.SelectContext(ctx, &products, query); err != nil {
		return nil, err
	}
	return products, nil
}

// ListForSale returns products with stock > 0, ordered by name.
func (r *StockRepository) ListForSale(ctx context.Context) ([]*ProductStock, error) {
	var products []*ProductStock
	query := stockSelect + ` HAVING COALESCE(SUM(pb.quantity), 0) > 0 ORDER BY p.name ASC`
	if err := r.db.SelectContext(ctx, &products, query); err != nil {
		return nil, err
	}
	return products, nil
}

// GetByID returns one product with its aggregated stock.
func (r *StockRepository) GetByID(ctx context.Context, productID int64) (*ProductStock, error) {
	var product ProductStock
	query := `
		SELECT p.id, p.name, p.laboratory_id, l.name AS laboratory, p.description,
		       p.sales_price, COALESCE(SUM(pb.quantity), 0) AS stock
		FROM products p
		LEFT JOIN laboratories l ON p.laboratory_id = l.id
		LEFT JOIN product_batches pb ON p.id = pb.product_id
		WHERE p.id = $1
		GROUP BY p.id, p.name, p.laboratory_id, l.name, p.description, p.sales_price
	`
	if err := r.db.GetContext(ctx, &product, query, productID); err != nil {
		if err == sql.ErrNoRows {
			return nil, errors.NotFound("product")
		}
		return nil, err
	}
	return &product, nil
}

// ExpiringBatches returns non-empty batches expiring in [from, to), joined
// with product metadata, ordered by expiration then product name.
func (r *StockRepository) ExpiringBatches(ctx context.Context, from, to time.Time) ([]*ExpiringBatchRow, error) {
	var rows []*ExpiringBatchRow
	query := `
		SELECT p.id AS product_id, p.name AS product_name, l.name AS laboratory,
		       p.sales_price, pb.id AS batch_id, pb.batch_name, pb.expiration_date,
		       pb.quantity, pb.entry_date
		FROM product_batches pb
		JOIN products p ON pb.product_id = p.id
		JOIN laboratories l ON p.laboratory_id = l.id
		WHERE pb.quantity > 0
		  AND pb.expiration_date >= $1
		  AND pb.expiration_date < $2
		ORDER BY pb.expiration_date ASC, p.name ASC
	`
	if err := r.db.SelectContext(ctx, &rows, query, from, to); err != nil {
		return nil, err
	}
	return rows, nil
}
