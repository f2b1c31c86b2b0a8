package repository

import (
	"context"
	"database/sql"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/farmastock/farmastock-backend/pkg/database"
	"github.com/farmastock/farmastock-backend/pkg/errors"
)

// PurchaseBill is the header of a committed purchase order.
type PurchaseBill struct {
	ID        int64     `db:"id" json:"id"`
	Value     int64     `db:"value" json:"value"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
}

// PurchaseLine is one line of a purchase order. It references the bill, the
// product, and the batch the line created, so order history never depends on
// entry-date correlation.
type PurchaseLine struct {
	ID        int64 `db:"id" json:"id"`
	BillID    int64 `db:"bill_id" json:"bill_id"`
	ProductID int64 `db:"product_id" json:"product_id"`
	BatchID   int64 `db:"batch_id" json:"batch_id"`
	UnitCost  int64 `db:"unit_cost" json:"unit_cost"`
	Quantity  int   `db:"quantity" json:"quantity"`
	Total     int64 `db:"total" json:"total"`
}

// PurchaseLineDetail is a purchase line joined with product metadata for
// order history views.
type PurchaseLineDetail struct {
	PurchaseLine
	ProductName string `db:"product_name" json:"product_name"`
}

// OrderRepository handles purchase bill and line persistence
type OrderRepository struct {
	db *database.DB
}

// NewOrderRepository creates a new order repository
func NewOrderRepository(db *database.DB) *OrderRepository {
	return &OrderRepository{db: db}
}

// InsertBill inserts a purchase bill header with the given total value.
func (r *OrderRepository) InsertBill(ctx context.Context, q sqlx.ExtContext, value int64) (*PurchaseBill, error) {
	bill := &PurchaseBill{Value: value}
	query := `INSERT INTO purchase_bills (value) VALUES ($1) RETURNING id, created_at`
	if err := sqlx.GetContext(ctx, q, bill, query, value); err != nil {
		return nil, err
	}
	return bill, nil
}

// InsertLine inserts a purchase line.
func (r *OrderRepository) InsertLine(ctx context.Context, q sqlx.ExtContext, line *PurchaseLine) error {
	query := `
		INSERT INTO purchase_lines (bill_id, product_id, batch_id, unit_cost, quantity, total)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING id
	`
	return sqlx.GetContext(ctx, q, &line.ID, query,
		line.BillID, line.ProductID, line.BatchID, line.UnitCost, line.Quantity, line.Total,
	)
}

// List returns all purchase bills, newest first.
func (r *OrderRepository) List(ctx context.Context) ([]*PurchaseBill, error) {
	var bills []*PurchaseBill
	query := `SELECT id, value, created_at FROM purchase_bills ORDER BY created_at DESC`
	if err := r.db.SelectContext(ctx, &bills, query); err != nil {
		return nil, err
	}
	return bills, nil
}

// GetByID returns a bill with its lines joined to product names.
func (r *OrderRepository) GetByID(ctx context.Context, billID int64) (*PurchaseBill, []*PurchaseLineDetail, error) {
	var bill PurchaseBill
	query := `SELECT id, value, created_at FROM purchase_bills WHERE id = $1`
	if err := r.db.GetContext(ctx, &bill, query, billID); err != nil {
		if err == sql.ErrNoRows {
			return nil, nil, errors.NotFound("order")
		}
		return nil, nil, err
	}

	var lines []*PurchaseLineDetail
	linesQuery := `
		SELECT pl.id, pl.bill_id, pl.product_id, pl.batch_id, pl.unit_cost,
		       pl.quantity, pl.total, p.name AS product_name
		FROM purchase_lines pl
		JOIN products p ON pl.product_id = p.id
		WHERE pl.bill_id = $1
		ORDER BY pl.id ASC
	`
	if err := r.db.SelectContext(ctx, &lines, linesQuery, billID); err != nil {
		return nil, nil, err
	}

	return &bill, lines, nil
}
