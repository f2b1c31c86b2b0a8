package repository

import (
	"context"
	"database/sql"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/farmastock/farmastock-backend/pkg/database"
	"github.com/farmastock/farmastock-backend/pkg/errors"
)

// Batch is one dated lot of a product. Batches are never deleted; a drained
// batch stays at zero quantity as purchase history.
type Batch struct {
	ID             int64     `db:"id" json:"id"`
	ProductID      int64     `db:"product_id" json:"product_id"`
	BatchName      string    `db:"batch_name" json:"batch_name"`
	ExpirationDate time.Time `db:"expiration_date" json:"expiration_date"`
	Quantity       int       `db:"quantity" json:"quantity"`
	UnitCost       int64     `db:"unit_cost" json:"unit_cost"`
	TotalCost      int64     `db:"total_cost" json:"total_cost"`
	EntryDate      time.Time `db:"entry_date" json:"entry_date"`
	CreatedAt      time.Time `db:"created_at" json:"created_at"`
	UpdatedAt      time.Time `db:"updated_at" json:"updated_at"`
}

// BatchRepository is the batch ledger: mechanical access to batch rows with
// no business rules. Methods take an sqlx.ExtContext so the same queries run
// on the pool or inside a transaction.
type BatchRepository struct {
	db *database.DB
}

// NewBatchRepository creates a new batch repository
func NewBatchRepository(db *database.DB) *BatchRepository {
	return &BatchRepository{db: db}
}

// AvailableStock sums the remaining quantity over all batches of a product.
// Returns 0 when the product has no batches.
func (r *BatchRepository) AvailableStock(ctx context.Context, q sqlx.ExtContext, productID int64) (int, error) {
	var total sql.NullInt64
	query := `SELECT COALESCE(SUM(quantity), 0) FROM product_batches WHERE product_id = $1`
	if err := sqlx.GetContext(ctx, q, &total, query, productID); err != nil {
		return 0, err
	}
	return int(total.Int64), nil
}

// BatchesForDeduction returns the product's non-empty batches in FIFO order
// (soonest expiration first, then lowest id), locked FOR UPDATE. It must run
// inside the transaction that will deplete them: the locks are what serialize
// concurrent sales on the same product.
func (r *BatchRepository) BatchesForDeduction(ctx context.Context, tx *sqlx.Tx, productID int64) ([]*Batch, error) {
	var batches []*Batch
	query := `
		SELECT id, product_id, batch_name, expiration_date, quantity,
		       unit_cost, total_cost, entry_date, created_at, updated_at
		FROM product_batches
		WHERE product_id = $1 AND quantity > 0
		ORDER BY expiration_date ASC, id ASC
		FOR UPDATE
	`
	if err := sqlx.SelectContext(ctx, tx, &batches, query, productID); err != nil {
		return nil, err
	}
	return batches, nil
}

// ListByProduct lists all batches of a product, drained ones included.
func (r *BatchRepository) ListByProduct(ctx context.Context, productID int64) ([]*Batch, error) {
	var batches []*Batch
	query := `
		SELECT id, product_id, batch_name, expiration_date, quantity,
		       unit_cost, total_cost, entry_date, created_at, updated_at
		FROM product_batches
		WHERE product_id = $1
		ORDER BY expiration_date ASC, id ASC
	`
	if err := r.db.SelectContext(ctx, &batches, query, productID); err != nil {
		return nil, err
	}
	return batches, nil
}

// Create inserts a new batch. Quantity must be positive; the total cost is
// fixed at creation as unit cost times original quantity.
func (r *BatchRepository) Create(ctx context.Context, q sqlx.ExtContext, batch *Batch) error {
	if batch.Quantity <= 0 {
		return errors.Validation(map[string]string{"quantity": "must be greater than zero"})
	}

	batch.TotalCost = batch.UnitCost * int64(batch.Quantity)

	query := `
		INSERT INTO product_batches (product_id, batch_name, expiration_date, quantity, unit_cost, total_cost, entry_date)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING id, created_at, updated_at
	`

	return sqlx.GetContext(ctx, q, batch, query,
		batch.ProductID, batch.BatchName, batch.ExpirationDate, batch.Quantity,
		batch.UnitCost, batch.TotalCost, batch.EntryDate,
	)
}

// Deplete sets the remaining quantity of a batch. The caller guarantees
// 0 <= newQuantity <= previous quantity and holds the row lock.
func (r *BatchRepository) Deplete(ctx context.Context, tx *sqlx.Tx, batchID int64, newQuantity int) error {
	if newQuantity < 0 {
		return errors.Internal("attempted to set negative batch quantity")
	}

	query := `UPDATE product_batches SET quantity = $2, updated_at = NOW() WHERE id = $1`
	result, err := tx.ExecContext(ctx, query, batchID, newQuantity)
	if err != nil {
		return err
	}

	affected, _ := result.RowsAffected()
	if affected == 0 {
		return errors.NotFound("batch")
	}

	return nil
}
