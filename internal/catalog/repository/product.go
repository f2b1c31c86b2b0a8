package repository

import (
	"context"
	"database/sql"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"github.com/farmastock/farmastock-backend/pkg/database"
	"github.com/farmastock/farmastock-backend/pkg/errors"
)

// Product is plain catalog metadata. Stock never lives here; it is derived
// from the batch ledger.
type Product struct {
	ID           int64     `db:"id" json:"id"`
	LaboratoryID int64     `db:"laboratory_id" json:"laboratory_id"`
	Name         string    `db:"name" json:"name"`
	Description  *string   `db:"description" json:"description,omitempty"`
	SalesPrice   *int64    `db:"sales_price" json:"sales_price,omitempty"`
	CreatedAt    time.Time `db:"created_at" json:"created_at"`
	UpdatedAt    time.Time `db:"updated_at" json:"updated_at"`
}

// ProductRepository handles product persistence and existence lookups
type ProductRepository struct {
	db *database.DB
}

// NewProductRepository creates a new product repository
func NewProductRepository(db *database.DB) *ProductRepository {
	return &ProductRepository{db: db}
}

// GetByID returns a product by id.
func (r *ProductRepository) GetByID(ctx context.Context, id int64) (*Product, error) {
	var product Product
	query := `
		SELECT id, laboratory_id, name, description, sales_price, created_at, updated_at
		FROM products WHERE id = $1
	`
	if err := r.db.GetContext(ctx, &product, query, id); err != nil {
		if err == sql.ErrNoRows {
			return nil, errors.NotFound("product")
		}
		return nil, err
	}
	return &product, nil
}

// ExistingIDs filters the given product ids down to those that exist. Order
// intake and sale processing call this inside their transactions before
// writing anything.
func (r *ProductRepository) ExistingIDs(ctx context.Context, q sqlx.ExtContext, ids []int64) ([]int64, error) {
	var existing []int64
	query := `SELECT id FROM products WHERE id = ANY($1)`
	if err := sqlx.SelectContext(ctx, q, &existing, query, pq.Array(ids)); err != nil {
		return nil, err
	}
	return existing, nil
}

// Insert inserts a new product row.
func (r *ProductRepository) Insert(ctx context.Context, q sqlx.ExtContext, product *Product) error {
	query := `
		INSERT INTO products (laboratory_id, name, description, sales_price)
		VALUES ($1, $2, $3, $4)
		RETURNING id, created_at, updated_at
	`
	if err := sqlx.GetContext(ctx, q, product, query,
		product.LaboratoryID, product.Name, product.Description, product.SalesPrice,
	); err != nil {
		if appErr := database.MapPQError(err); appErr != nil {
			return appErr
		}
		return err
	}
	return nil
}

// ExistsByName reports whether the laboratory already has a product with
// this name (case-insensitive), excluding excludeID (0 to exclude nothing).
func (r *ProductRepository) ExistsByName(ctx context.Context, q sqlx.ExtContext, laboratoryID int64, name string, excludeID int64) (bool, error) {
	var exists bool
	query := `
		SELECT EXISTS (
			SELECT 1 FROM products
			WHERE laboratory_id = $1 AND LOWER(name) = LOWER($2) AND id != $3
		)
	`
	if err := sqlx.GetContext(ctx, q, &exists, query, laboratoryID, name, excludeID); err != nil {
		return false, err
	}
	return exists, nil
}

// Update applies the non-nil fields to a product row.
func (r *ProductRepository) Update(ctx context.Context, q sqlx.ExtContext, product *Product) error {
	query := `
		UPDATE products
		SET laboratory_id = $2, name = $3, description = $4, sales_price = $5, updated_at = NOW()
		WHERE id = $1
	`
	result, err := q.ExecContext(ctx, query,
		product.ID, product.LaboratoryID, product.Name, product.Description, product.SalesPrice,
	)
	if err != nil {
		if appErr := database.MapPQError(err); appErr != nil {
			return appErr
		}
		return err
	}

	affected, _ := result.RowsAffected()
	if affected == 0 {
		return errors.NotFound("product")
	}

	return nil
}
