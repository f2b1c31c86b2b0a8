package service

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/farmastock/farmastock-backend/internal/inventory/events"
	"github.com/farmastock/farmastock-backend/internal/inventory/repository"
	"github.com/farmastock/farmastock-backend/pkg/clock"
	"github.com/farmastock/farmastock-backend/pkg/database"
	"github.com/farmastock/farmastock-backend/pkg/errors"
	"github.com/farmastock/farmastock-backend/pkg/logger"
	"github.com/farmastock/farmastock-backend/pkg/messaging"
)

// ProductDirectory is the catalog lookup the inventory core consumes. The
// core does not own product lifecycle; it only needs existence checks.
type ProductDirectory interface {
	ExistingIDs(ctx context.Context, q sqlx.ExtContext, ids []int64) ([]int64, error)
}

// OrderLineInput is one requested purchase line.
type OrderLineInput struct {
	ProductID      int64
	BatchName      string
	ExpirationDate time.Time
	Quantity       int
	UnitCost       int64
}

// OrderSummary summarizes a committed order.
type OrderSummary struct {
	BatchCount           int   `json:"batch_count"`
	DistinctProductCount int   `json:"distinct_product_count"`
	TotalValue           int64 `json:"total_value"`
}

// OrderResult is the outcome of a committed order.
type OrderResult struct {
	Bill    *repository.PurchaseBill   `json:"bill"`
	Lines   []*repository.PurchaseLine `json:"lines"`
	Batches []*repository.Batch        `json:"batches"`
	Summary OrderSummary               `json:"summary"`
}

// OrderService records purchase orders: one bill, one line and one new batch
// per requested lot, all in a single transaction.
type OrderService struct {
	db        *database.DB
	orders    *repository.OrderRepository
	ledger    *repository.BatchRepository
	products  ProductDirectory
	publisher *events.InventoryEventPublisher
	clock     clock.Clock
	logger    *logger.Logger
}

// NewOrderService creates a new order service
func NewOrderService(
	db *database.DB,
	orders *repository.OrderRepository,
	ledger *repository.BatchRepository,
	products ProductDirectory,
	publisher *events.InventoryEventPublisher,
	clk clock.Clock,
	log *logger.Logger,
) *OrderService {
	return &OrderService{
		db:        db,
		orders:    orders,
		ledger:    ledger,
		products:  products,
		publisher: publisher,
		clock:     clk,
		logger:    log,
	}
}

// CreateOrder atomically records a purchase order. Every referenced product
// is verified before any row is written; a missing product aborts the whole
// operation with a reference error and no bill, line, or batch is left
// behind.
func (s *OrderService) CreateOrder(ctx context.Context, lines []OrderLineInput) (*OrderResult, error) {
	if err := validateOrderLines(lines); err != nil {
		return nil, err
	}

	distinct := distinctProductIDs(orderProductIDs(lines))

	var result *OrderResult
	err := s.db.Transaction(ctx, func(tx *sqlx.Tx) error {
		existing, err := s.products.ExistingIDs(ctx, tx, distinct)
		if err != nil {
			return fmt.Errorf("failed to check product ids: %w", err)
		}
		if missing := missingIDs(distinct, existing); len(missing) > 0 {
			return errors.Reference("product").WithDetails(map[string]string{
				"product_ids": joinIDs(missing),
			})
		}

		var totalValue int64
		for _, line := range lines {
			totalValue += line.UnitCost * int64(line.Quantity)
		}

		bill, err := s.orders.InsertBill(ctx, tx, totalValue)
		if err != nil {
			return fmt.Errorf("failed to insert purchase bill: %w", err)
		}

		entryDate := clock.Midnight(s.clock.Now())
		createdLines := make([]*repository.PurchaseLine, 0, len(lines))
		createdBatches := make([]*repository.Batch, 0, len(lines))

		for _, line := range lines {
			batch := &repository.Batch{
				ProductID:      line.ProductID,
				BatchName:      line.BatchName,
				ExpirationDate: line.ExpirationDate,
				Quantity:       line.Quantity,
				UnitCost:       line.UnitCost,
				EntryDate:      entryDate,
			}
			if err := s.ledger.Create(ctx, tx, batch); err != nil {
				return fmt.Errorf("failed to create batch: %w", err)
			}

			purchaseLine := &repository.PurchaseLine{
				BillID:    bill.ID,
				ProductID: line.ProductID,
				BatchID:   batch.ID,
				UnitCost:  line.UnitCost,
				Quantity:  line.Quantity,
				Total:     line.UnitCost * int64(line.Quantity),
			}
			if err := s.orders.InsertLine(ctx, tx, purchaseLine); err != nil {
				return fmt.Errorf("failed to insert purchase line: %w", err)
			}

			createdLines = append(createdLines, purchaseLine)
			createdBatches = append(createdBatches, batch)
		}

		result = &OrderResult{
			Bill:    bill,
			Lines:   createdLines,
			Batches: createdBatches,
			Summary: OrderSummary{
				BatchCount:           len(createdBatches),
				DistinctProductCount: len(distinct),
				TotalValue:           totalValue,
			},
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info().
		Int64("bill_id", result.Bill.ID).
		Int("batch_count", result.Summary.BatchCount).
		Int64("total_value", result.Summary.TotalValue).
		Msg("purchase order recorded")

	s.publisher.PublishOrderCreated(ctx, messaging.OrderCreatedEvent{
		BillID:       result.Bill.ID,
		BatchCount:   result.Summary.BatchCount,
		ProductCount: result.Summary.DistinctProductCount,
		TotalValue:   result.Summary.TotalValue,
	})

	return result, nil
}

// ListOrders returns all purchase bills.
func (s *OrderService) ListOrders(ctx context.Context) ([]*repository.PurchaseBill, error) {
	return s.orders.List(ctx)
}

// OrderDetail is a bill with its lines.
type OrderDetail struct {
	Bill  *repository.PurchaseBill        `json:"bill"`
	Lines []*repository.PurchaseLineDetail `json:"lines"`
}

// GetOrder returns a bill with its lines joined to product names.
func (s *OrderService) GetOrder(ctx context.Context, billID int64) (*OrderDetail, error) {
	bill, lines, err := s.orders.GetByID(ctx, billID)
	if err != nil {
		return nil, err
	}
	return &OrderDetail{Bill: bill, Lines: lines}, nil
}

func validateOrderLines(lines []OrderLineInput) error {
	if len(lines) == 0 {
		return errors.Validation(map[string]string{"lines": "must not be empty"})
	}

	for i, line := range lines {
		field := func(name string) string { return fmt.Sprintf("lines[%d].%s", i, name) }
		if line.ProductID <= 0 {
			return errors.Validation(map[string]string{field("product_id"): "must be a positive id"})
		}
		if line.BatchName == "" {
			return errors.Validation(map[string]string{field("batch_name"): "this field is required"})
		}
		if line.ExpirationDate.IsZero() {
			return errors.Validation(map[string]string{field("expiration_date"): "this field is required"})
		}
		if line.Quantity <= 0 {
			return errors.Validation(map[string]string{field("quantity"): "must be greater than zero"})
		}
		if line.UnitCost < 0 {
			return errors.Validation(map[string]string{field("unit_cost"): "must not be negative"})
		}
	}
	return nil
}

func orderProductIDs(lines []OrderLineInput) []int64 {
	ids := make([]int64, len(lines))
	for i, line := range lines {
		ids[i] = line.ProductID
	}
	return ids
}

// distinctProductIDs keeps first-appearance order.
func distinctProductIDs(ids []int64) []int64 {
	seen := make(map[int64]struct{}, len(ids))
	distinct := make([]int64, 0, len(ids))
	for _, id := range ids {
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		distinct = append(distinct, id)
	}
	return distinct
}

func missingIDs(wanted, existing []int64) []int64 {
	have := make(map[int64]struct{}, len(existing))
	for _, id := range existing {
		have[id] = struct{}{}
	}

	var missing []int64
	for _, id := range wanted {
		if _, ok := have[id]; !ok {
			missing = append(missing, id)
		}
	}
	return missing
}

func joinIDs(ids []int64) string {
	parts := make([]string, len(ids))
	for i, id := range ids {
		parts[i] = strconv.FormatInt(id, 10)
	}
	return strings.Join(parts, ",")
}
