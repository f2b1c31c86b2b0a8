package service

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"

	"github.com/farmastock/farmastock-backend/internal/inventory/events"
	"github.com/farmastock/farmastock-backend/internal/inventory/repository"
	"github.com/farmastock/farmastock-backend/pkg/clock"
	"github.com/farmastock/farmastock-backend/pkg/database"
	"github.com/farmastock/farmastock-backend/pkg/errors"
	"github.com/farmastock/farmastock-backend/pkg/logger"
	"github.com/farmastock/farmastock-backend/pkg/messaging"
)

// SaleLineInput is one requested sale line. The unit price is caller-supplied
// and carries no relationship to any batch's purchase cost.
type SaleLineInput struct {
	ProductID int64
	UnitPrice int64
	Quantity  int
}

// SaleSummary summarizes a committed sale.
type SaleSummary struct {
	ProductCount int   `json:"product_count"`
	TotalItems   int   `json:"total_items"`
	TotalValue   int64 `json:"total_value"`
}

// SaleResult is the outcome of a committed sale.
type SaleResult struct {
	Sale    *repository.Sale       `json:"sale"`
	Lines   []*repository.SaleLine `json:"lines"`
	Summary SaleSummary            `json:"summary"`
}

// StockCheck is the advisory result of a non-binding availability probe. It
// is browsing information only; the sale transaction re-reads availability
// under row locks before deducting.
type StockCheck struct {
	Sufficient bool `json:"sufficient"`
	Available  int  `json:"available"`
	Required   int  `json:"required"`
}

// SaleService records sales and depletes batches earliest-expiration-first.
// The availability check and the depleting writes run in one transaction on
// FOR UPDATE-locked rows, so two concurrent sales of the same product cannot
// both consume the same units.
type SaleService struct {
	db        *database.DB
	sales     *repository.SaleRepository
	ledger    *repository.BatchRepository
	products  ProductDirectory
	publisher *events.InventoryEventPublisher
	clock     clock.Clock
	logger    *logger.Logger
}

// NewSaleService creates a new sale service
func NewSaleService(
	db *database.DB,
	sales *repository.SaleRepository,
	ledger *repository.BatchRepository,
	products ProductDirectory,
	publisher *events.InventoryEventPublisher,
	clk clock.Clock,
	log *logger.Logger,
) *SaleService {
	return &SaleService{
		db:        db,
		sales:     sales,
		ledger:    ledger,
		products:  products,
		publisher: publisher,
		clock:     clk,
		logger:    log,
	}
}

// CreateSale atomically records a sale and deducts the sold quantities from
// the batch ledger. If any line asks for more than its product has, the
// whole sale is rejected and no batch is modified.
func (s *SaleService) CreateSale(ctx context.Context, description string, lines []SaleLineInput) (*SaleResult, error) {
	if err := validateSaleLines(lines); err != nil {
		return nil, err
	}

	// Total required per product, first-appearance order. Duplicate product
	// lines are legal and must be checked against their combined demand.
	required := make(map[int64]int, len(lines))
	var productOrder []int64
	for _, line := range lines {
		if _, ok := required[line.ProductID]; !ok {
			productOrder = append(productOrder, line.ProductID)
		}
		required[line.ProductID] += line.Quantity
	}

	var result *SaleResult
	var depletedProducts []int64

	err := s.db.Transaction(ctx, func(tx *sqlx.Tx) error {
		// Re-verify references at commit time; a caller-side pre-check may
		// be stale.
		existing, err := s.products.ExistingIDs(ctx, tx, productOrder)
		if err != nil {
			return fmt.Errorf("failed to check product ids: %w", err)
		}
		if missing := missingIDs(productOrder, existing); len(missing) > 0 {
			return errors.Reference("product").WithDetails(map[string]string{
				"product_ids": joinIDs(missing),
			})
		}

		// Checking: lock every candidate batch and verify availability for
		// all products before any deduction. The locks hold until commit,
		// so the quantities cannot change underneath the walk below.
		for _, productID := range productOrder {
			batches, err := s.ledger.BatchesForDeduction(ctx, tx, productID)
			if err != nil {
				return fmt.Errorf("failed to read batches for product %d: %w", productID, err)
			}

			available := 0
			for _, batch := range batches {
				available += batch.Quantity
			}

			if available < required[productID] {
				return errors.InsufficientStock(productID, available, required[productID])
			}

			if available == required[productID] {
				depletedProducts = append(depletedProducts, productID)
			}
		}

		// Deducting: walk each line's batches soonest-expiration-first. The
		// re-read sees this transaction's own earlier updates, which is what
		// makes duplicate product lines deduct correctly.
		for _, line := range lines {
			if err := s.deductFIFO(ctx, tx, line.ProductID, line.Quantity); err != nil {
				return err
			}
		}

		// Committing: header first, then lines.
		var totalValue int64
		totalItems := 0
		for _, line := range lines {
			totalValue += line.UnitPrice * int64(line.Quantity)
			totalItems += line.Quantity
		}

		sale, err := s.sales.InsertSale(ctx, tx, totalValue, clock.Midnight(s.clock.Now()), description)
		if err != nil {
			return fmt.Errorf("failed to insert sale: %w", err)
		}

		createdLines := make([]*repository.SaleLine, 0, len(lines))
		for _, line := range lines {
			saleLine := &repository.SaleLine{
				SaleID:    sale.ID,
				ProductID: line.ProductID,
				UnitPrice: line.UnitPrice,
				Quantity:  line.Quantity,
				Total:     line.UnitPrice * int64(line.Quantity),
			}
			if err := s.sales.InsertLine(ctx, tx, saleLine); err != nil {
				return fmt.Errorf("failed to insert sale line: %w", err)
			}
			createdLines = append(createdLines, saleLine)
		}

		result = &SaleResult{
			Sale:  sale,
			Lines: createdLines,
			Summary: SaleSummary{
				ProductCount: len(productOrder),
				TotalItems:   totalItems,
				TotalValue:   totalValue,
			},
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info().
		Int64("sale_id", result.Sale.ID).
		Int("total_items", result.Summary.TotalItems).
		Int64("total_value", result.Summary.TotalValue).
		Msg("sale recorded")

	s.publisher.PublishSaleCompleted(ctx, messaging.SaleCompletedEvent{
		SaleID:       result.Sale.ID,
		ProductCount: result.Summary.ProductCount,
		TotalItems:   result.Summary.TotalItems,
		TotalValue:   result.Summary.TotalValue,
	})
	for _, productID := range depletedProducts {
		s.publisher.PublishStockDepleted(ctx, messaging.StockDepletedEvent{
			ProductID: productID,
			SaleID:    result.Sale.ID,
		})
	}

	return result, nil
}

// deductFIFO consumes quantity units from the product's batches in
// ascending expiration order, never moving a batch below zero. Running out
// of batches here means a concurrent writer slipped past the locks — an
// invariant violation, not a business rejection — so the transaction aborts.
func (s *SaleService) deductFIFO(ctx context.Context, tx *sqlx.Tx, productID int64, quantity int) error {
	batches, err := s.ledger.BatchesForDeduction(ctx, tx, productID)
	if err != nil {
		return fmt.Errorf("failed to read batches for product %d: %w", productID, err)
	}

	remaining := quantity
	for _, batch := range batches {
		if remaining <= 0 {
			break
		}

		take := batch.Quantity
		if take > remaining {
			take = remaining
		}

		if err := s.ledger.Deplete(ctx, tx, batch.ID, batch.Quantity-take); err != nil {
			return fmt.Errorf("failed to deplete batch %d: %w", batch.ID, err)
		}

		remaining -= take
	}

	if remaining > 0 {
		s.logger.Error().
			Int64("product_id", productID).
			Int("requested", quantity).
			Int("undeducted", remaining).
			Msg("FIFO walk exhausted before quantity reached zero")
		return errors.Internal("stock changed during sale processing")
	}

	return nil
}

// CheckStock reports whether a product currently has at least the requested
// quantity available. Advisory only.
func (s *SaleService) CheckStock(ctx context.Context, productID int64, quantity int) (*StockCheck, error) {
	if quantity <= 0 {
		return nil, errors.Validation(map[string]string{"quantity": "must be greater than zero"})
	}

	available, err := s.ledger.AvailableStock(ctx, s.db, productID)
	if err != nil {
		return nil, err
	}

	return &StockCheck{
		Sufficient: available >= quantity,
		Available:  available,
		Required:   quantity,
	}, nil
}

// ListSales returns all sales.
func (s *SaleService) ListSales(ctx context.Context) ([]*repository.Sale, error) {
	return s.sales.List(ctx)
}

// SaleDetail is a sale with its lines.
type SaleDetail struct {
	Sale  *repository.Sale             `json:"sale"`
	Lines []*repository.SaleLineDetail `json:"lines"`
}

// GetSale returns a sale with its lines joined to product and laboratory
// names.
func (s *SaleService) GetSale(ctx context.Context, saleID int64) (*SaleDetail, error) {
	sale, lines, err := s.sales.GetByID(ctx, saleID)
	if err != nil {
		return nil, err
	}
	return &SaleDetail{Sale: sale, Lines: lines}, nil
}

func validateSaleLines(lines []SaleLineInput) error {
	if len(lines) == 0 {
		return errors.Validation(map[string]string{"lines": "must not be empty"})
	}

	for i, line := range lines {
		field := func(name string) string { return fmt.Sprintf("lines[%d].%s", i, name) }
		if line.ProductID <= 0 {
			return errors.Validation(map[string]string{field("product_id"): "must be a positive id"})
		}
		if line.Quantity <= 0 {
			return errors.Validation(map[string]string{field("quantity"): "must be greater than zero"})
		}
		if line.UnitPrice < 0 {
			return errors.Validation(map[string]string{field("unit_price"): "must not be negative"})
		}
	}
	return nil
}
