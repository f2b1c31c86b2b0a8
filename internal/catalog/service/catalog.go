package service

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/jmoiron/sqlx"

	catalogrepo "github.com/farmastock/farmastock-backend/internal/catalog/repository"
	inventoryrepo "github.com/farmastock/farmastock-backend/internal/inventory/repository"
	"github.com/farmastock/farmastock-backend/pkg/clock"
	"github.com/farmastock/farmastock-backend/pkg/database"
	"github.com/farmastock/farmastock-backend/pkg/errors"
	"github.com/farmastock/farmastock-backend/pkg/logger"
)

// ProductInput carries a new product and its optional initial batch. A
// product created with opening stock gets its first ledger batch in the same
// transaction.
type ProductInput struct {
	LaboratoryID int64
	Name         string
	Description  *string
	SalesPrice   *int64

	BatchName      string
	ExpirationDate time.Time
	Quantity       int
	UnitCost       int64
}

// ProductUpdate carries the fields of a product edit; nil means unchanged.
// Edits never touch stock.
type ProductUpdate struct {
	LaboratoryID *int64
	Name         *string
	Description  *string
	SalesPrice   *int64
}

// CatalogService owns laboratory and product lifecycle.
type CatalogService struct {
	db       *database.DB
	labs     *catalogrepo.LaboratoryRepository
	products *catalogrepo.ProductRepository
	ledger   *inventoryrepo.BatchRepository
	clock    clock.Clock
	logger   *logger.Logger
}

// NewCatalogService creates a new catalog service
func NewCatalogService(
	db *database.DB,
	labs *catalogrepo.LaboratoryRepository,
	products *catalogrepo.ProductRepository,
	ledger *inventoryrepo.BatchRepository,
	clk clock.Clock,
	log *logger.Logger,
) *CatalogService {
	return &CatalogService{
		db:       db,
		labs:     labs,
		products: products,
		ledger:   ledger,
		clock:    clk,
		logger:   log,
	}
}

// Laboratory operations

// ListLaboratories returns all laboratories.
func (s *CatalogService) ListLaboratories(ctx context.Context) ([]*catalogrepo.Laboratory, error) {
	return s.labs.List(ctx)
}

// GetLaboratory returns a laboratory by id.
func (s *CatalogService) GetLaboratory(ctx context.Context, id int64) (*catalogrepo.Laboratory, error) {
	return s.labs.GetByID(ctx, id)
}

// CreateLaboratory creates a new laboratory.
func (s *CatalogService) CreateLaboratory(ctx context.Context, name string) (*catalogrepo.Laboratory, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, errors.Validation(map[string]string{"name": "this field is required"})
	}

	lab := &catalogrepo.Laboratory{Name: name}
	if err := s.labs.Create(ctx, lab); err != nil {
		return nil, err
	}

	s.logger.Info().Int64("laboratory_id", lab.ID).Str("name", lab.Name).Msg("laboratory created")
	return lab, nil
}

// Product operations

// GetProduct returns a product by id.
func (s *CatalogService) GetProduct(ctx context.Context, id int64) (*catalogrepo.Product, error) {
	return s.products.GetByID(ctx, id)
}

// CreateProduct creates a product and, when opening stock is provided, its
// initial batch, atomically.
func (s *CatalogService) CreateProduct(ctx context.Context, input ProductInput) (*catalogrepo.Product, error) {
	if err := validateProductInput(input); err != nil {
		return nil, err
	}

	product := &catalogrepo.Product{
		LaboratoryID: input.LaboratoryID,
		Name:         strings.TrimSpace(input.Name),
		Description:  input.Description,
		SalesPrice:   input.SalesPrice,
	}

	err := s.db.Transaction(ctx, func(tx *sqlx.Tx) error {
		exists, err := s.laboratoryExists(ctx, tx, input.LaboratoryID)
		if err != nil {
			return err
		}
		if !exists {
			return errors.Reference("laboratory")
		}

		duplicate, err := s.products.ExistsByName(ctx, tx, input.LaboratoryID, product.Name, 0)
		if err != nil {
			return fmt.Errorf("failed to check product name: %w", err)
		}
		if duplicate {
			return errors.Conflict("a product with this name already exists in the laboratory")
		}

		if err := s.products.Insert(ctx, tx, product); err != nil {
			return err
		}

		if input.Quantity > 0 {
			batch := &inventoryrepo.Batch{
				ProductID:      product.ID,
				BatchName:      input.BatchName,
				ExpirationDate: input.ExpirationDate,
				Quantity:       input.Quantity,
				UnitCost:       input.UnitCost,
				EntryDate:      clock.Midnight(s.clock.Now()),
			}
			if err := s.ledger.Create(ctx, tx, batch); err != nil {
				return fmt.Errorf("failed to create initial batch: %w", err)
			}
		}

		return nil
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info().Int64("product_id", product.ID).Str("name", product.Name).Msg("product created")
	return product, nil
}

// UpdateProduct edits product metadata. Nil fields keep their current value.
func (s *CatalogService) UpdateProduct(ctx context.Context, id int64, update ProductUpdate) (*catalogrepo.Product, error) {
	if update.LaboratoryID == nil && update.Name == nil && update.Description == nil && update.SalesPrice == nil {
		return nil, errors.Validation(map[string]string{"body": "no fields to update"})
	}

	var product *catalogrepo.Product
	err := s.db.Transaction(ctx, func(tx *sqlx.Tx) error {
		current, err := s.getProductTx(ctx, tx, id)
		if err != nil {
			return err
		}

		if update.LaboratoryID != nil {
			exists, err := s.laboratoryExists(ctx, tx, *update.LaboratoryID)
			if err != nil {
				return err
			}
			if !exists {
				return errors.Reference("laboratory")
			}
			current.LaboratoryID = *update.LaboratoryID
		}
		if update.Name != nil {
			current.Name = strings.TrimSpace(*update.Name)
			if current.Name == "" {
				return errors.Validation(map[string]string{"name": "this field is required"})
			}
		}
		if update.Description != nil {
			current.Description = update.Description
		}
		if update.SalesPrice != nil {
			if *update.SalesPrice < 0 {
				return errors.Validation(map[string]string{"sales_price": "must not be negative"})
			}
			current.SalesPrice = update.SalesPrice
		}

		duplicate, err := s.products.ExistsByName(ctx, tx, current.LaboratoryID, current.Name, id)
		if err != nil {
			return fmt.Errorf("failed to check product name: %w", err)
		}
		if duplicate {
			return errors.Conflict("a product with this name already exists in the laboratory")
		}

		if err := s.products.Update(ctx, tx, current); err != nil {
			return err
		}

		product = current
		return nil
	})
	if err != nil {
		return nil, err
	}

	return product, nil
}

func (s *CatalogService) getProductTx(ctx context.Context, tx *sqlx.Tx, id int64) (*catalogrepo.Product, error) {
	var product catalogrepo.Product
	query := `
		SELECT id, laboratory_id, name, description, sales_price, created_at, updated_at
		FROM products WHERE id = $1
	`
	if err := tx.GetContext(ctx, &product, query, id); err != nil {
		if err == sql.ErrNoRows {
			return nil, errors.NotFound("product")
		}
		return nil, err
	}
	return &product, nil
}

func (s *CatalogService) laboratoryExists(ctx context.Context, tx *sqlx.Tx, id int64) (bool, error) {
	var exists bool
	query := `SELECT EXISTS (SELECT 1 FROM laboratories WHERE id = $1)`
	if err := tx.GetContext(ctx, &exists, query, id); err != nil {
		return false, fmt.Errorf("failed to check laboratory: %w", err)
	}
	return exists, nil
}

func validateProductInput(input ProductInput) error {
	if input.LaboratoryID <= 0 {
		return errors.Validation(map[string]string{"laboratory_id": "must be a positive id"})
	}
	if strings.TrimSpace(input.Name) == "" {
		return errors.Validation(map[string]string{"name": "this field is required"})
	}
	if input.SalesPrice != nil && *input.SalesPrice < 0 {
		return errors.Validation(map[string]string{"sales_price": "must not be negative"})
	}
	if input.Quantity < 0 {
		return errors.Validation(map[string]string{"quantity": "must not be negative"})
	}
	if input.Quantity > 0 {
		if input.BatchName == "" {
			return errors.Validation(map[string]string{"batch_name": "required when opening stock is provided"})
		}
		if input.ExpirationDate.IsZero() {
			return errors.Validation(map[string]string{"expiration_date": "required when opening stock is provided"})
		}
		if input.UnitCost < 0 {
			return errors.Validation(map[string]string{"unit_cost": "must not be negative"})
		}
	}
	return nil
}
