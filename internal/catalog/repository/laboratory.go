package repository

import (
	"context"
	"database/sql"
	"time"

	"github.com/farmastock/farmastock-backend/pkg/database"
	"github.com/farmastock/farmastock-backend/pkg/errors"
)

// Laboratory is a product manufacturer. Names are unique case-insensitively.
type Laboratory struct {
	ID        int64     `db:"id" json:"id"`
	Name      string    `db:"name" json:"name"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
	UpdatedAt time.Time `db:"updated_at" json:"updated_at"`
}

// LaboratoryRepository handles laboratory persistence
type LaboratoryRepository struct {
	db *database.DB
}

// NewLaboratoryRepository creates a new laboratory repository
func NewLaboratoryRepository(db *database.DB) *LaboratoryRepository {
	return &LaboratoryRepository{db: db}
}

// List returns all laboratories ordered by name.
func (r *LaboratoryRepository) List(ctx context.Context) ([]*Laboratory, error) {
	var labs []*Laboratory
	query := `SELECT id, name, created_at, updated_at FROM laboratories ORDER BY name ASC`
	if err := r.db.SelectContext(ctx, &labs, query); err != nil {
		return nil, err
	}
	return labs, nil
}

// GetByID returns a laboratory by id.
func (r *LaboratoryRepository) GetByID(ctx context.Context, id int64) (*Laboratory, error) {
	var lab Laboratory
	query := `SELECT id, name, created_at, updated_at FROM laboratories WHERE id = $1`
	if err := r.db.GetContext(ctx, &lab, query, id); err != nil {
		if err == sql.ErrNoRows {
			return nil, errors.NotFound("laboratory")
		}
		return nil, err
	}
	return &lab, nil
}

// Create inserts a new laboratory. A duplicate name surfaces as a conflict.
func (r *LaboratoryRepository) Create(ctx context.Context, lab *Laboratory) error {
	query := `INSERT INTO laboratories (name) VALUES ($1) RETURNING id, created_at, updated_at`
	if err := r.db.GetContext(ctx, lab, query, lab.Name); err != nil {
		if appErr := database.MapPQError(err); appErr != nil {
			return appErr
		}
		return err
	}
	return nil
}

// Exists reports whether a laboratory with the given id exists.
func (r *LaboratoryRepository) Exists(ctx context.Context, id int64) (bool, error) {
	var exists bool
	query := `SELECT EXISTS (SELECT 1 FROM laboratories WHERE id = $1)`
	if err := r.db.GetContext(ctx, &exists, query, id); err != nil {
		return false, err
	}
	return exists, nil
}
