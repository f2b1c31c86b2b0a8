package repository

import (
	"context"
	"database/sql"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/farmastock/farmastock-backend/pkg/database"
	"github.com/farmastock/farmastock-backend/pkg/errors"
)

// Sale is the header of a committed sale.
type Sale struct {
	ID          int64     `db:"id" json:"id"`
	Value       int64     `db:"value" json:"value"`
	SaleDate    time.Time `db:"sale_date" json:"sale_date"`
	Description *string   `db:"description" json:"description,omitempty"`
	CreatedAt   time.Time `db:"created_at" json:"created_at"`
}

// SaleLine is one line of a sale. The unit price is caller-supplied and
// independent of any batch's purchase cost.
type SaleLine struct {
	ID        int64 `db:"id" json:"id"`
	SaleID    int64 `db:"sale_id" json:"sale_id"`
	ProductID int64 `db:"product_id" json:"product_id"`
	UnitPrice int64 `db:"unit_price" json:"unit_price"`
	Quantity  int   `db:"quantity" json:"quantity"`
	Total     int64 `db:"total" json:"total"`
}

// SaleLineDetail is a sale line joined with product and laboratory names for
// sale history views.
type SaleLineDetail struct {
	SaleLine
	ProductName string `db:"product_name" json:"product_name"`
	Laboratory  string `db:"laboratory" json:"laboratory"`
}

// SaleRepository handles sale header and line persistence
type SaleRepository struct {
	db *database.DB
}

// NewSaleRepository creates a new sale repository
func NewSaleRepository(db *database.DB) *SaleRepository {
	return &SaleRepository{db: db}
}

// InsertSale inserts a sale header.
func (r *SaleRepository) InsertSale(ctx context.Context, q sqlx.ExtContext, value int64, saleDate time.Time, description string) (*Sale, error) {
	sale := &Sale{}
	var desc *string
	if description != "" {
		desc = &description
	}
	query := `
		INSERT INTO sales (value, sale_date, description)
		VALUES ($1, $2, $3)
		RETURNING id, value, sale_date, description, created_at
	`
	if err := sqlx.GetContext(ctx, q, sale, query, value, saleDate, desc); err != nil {
		return nil, err
	}
	return sale, nil
}

// InsertLine inserts a sale line.
func (r *SaleRepository) InsertLine(ctx context.Context, q sqlx.ExtContext, line *SaleLine) error {
	query := `
		INSERT INTO sale_lines (sale_id, product_id, unit_price, quantity, total)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING id
	`
	return sqlx.GetContext(ctx, q, &line.ID, query,
		line.SaleID, line.ProductID, line.UnitPrice, line.Quantity, line.Total,
	)
}

// List returns all sales, newest first.
func (r *SaleRepository) List(ctx context.Context) ([]*Sale, error) {
	var sales []*Sale
	query := `
		SELECT id, value, sale_date, description, created_at
		FROM sales
		ORDER BY sale_date DESC, created_at DESC
	`
	if err := r.db.SelectContext(ctx, &sales, query); err != nil {
		return nil, err
	}
	return sales, nil
}

// GetByID returns a sale with its lines joined to product and laboratory
// names.
func (r *SaleRepository) GetByID(ctx context.Context, saleID int64) (*Sale, []*SaleLineDetail, error) {
	var sale Sale
	query := `SELECT id, value, sale_date, description, created_at FROM sales WHERE id = $1`
	if err := r.db.GetContext(ctx, &sale, query, saleID); err != nil {
		if err == sql.ErrNoRows {
			return nil, nil, errors.NotFound("sale")
		}
		return nil, nil, err
	}

	var lines []*SaleLineDetail
	linesQuery := `
		SELECT sl.id, sl.sale_id, sl.product_id, sl.unit_price, sl.quantity, sl.total,
		       p.name AS product_name, l.name AS laboratory
		FROM sale_lines sl
		JOIN products p ON sl.product_id = p.id
		JOIN laboratories l ON p.laboratory_id = l.id
		WHERE sl.sale_id = $1
		ORDER BY sl.id ASC
	`
	if err := r.db.SelectContext(ctx, &lines, linesQuery, saleID); err != nil {
		return nil, nil, err
	}

	return &sale, lines, nil
}
