package service

import (
	"context"
	"sort"
	"time"

	"github.com/farmastock/farmastock-backend/internal/inventory/repository"
	"github.com/farmastock/farmastock-backend/pkg/clock"
	"github.com/farmastock/farmastock-backend/pkg/errors"
	"github.com/farmastock/farmastock-backend/pkg/logger"
)

// ExpiringBatch is one batch summary inside an expiry report group.
type ExpiringBatch struct {
	BatchID        int64     `json:"batch_id"`
	BatchName      string    `json:"batch_name"`
	ExpirationDate time.Time `json:"expiration_date"`
	Quantity       int       `json:"quantity"`
	EntryDate      time.Time `json:"entry_date"`
	DaysToExpire   int       `json:"days_to_expire"`
}

// ExpiringProduct groups a product's batches inside the expiry horizon.
type ExpiringProduct struct {
	ProductID   int64           `json:"product_id"`
	ProductName string          `json:"product_name"`
	Laboratory  string          `json:"laboratory"`
	SalesPrice  *int64          `json:"sales_price,omitempty"`
	TotalStock  int             `json:"total_stock"`
	Batches     []ExpiringBatch `json:"batches"`
}

// StockService serves the read-only stock views: aggregated stock per
// product and the expiry scan. It never mutates the ledger.
type StockService struct {
	stock  *repository.StockRepository
	clock  clock.Clock
	logger *logger.Logger
}

// NewStockService creates a new stock service
func NewStockService(stock *repository.StockRepository, clk clock.Clock, log *logger.Logger) *StockService {
	return &StockService{
		stock:  stock,
		clock:  clk,
		logger: log,
	}
}

// ListStock returns every product with its aggregated stock.
func (s *StockService) ListStock(ctx context.Context) ([]*repository.ProductStock, error) {
	return s.stock.ListAll(ctx)
}

// ListForSale returns products with available stock.
func (s *StockService) ListForSale(ctx context.Context) ([]*repository.ProductStock, error) {
	return s.stock.ListForSale(ctx)
}

// GetStock returns one product with its aggregated stock.
func (s *StockService) GetStock(ctx context.Context, productID int64) (*repository.ProductStock, error) {
	return s.stock.GetByID(ctx, productID)
}

// ScanExpiring reports batches expiring within horizonDays, grouped per
// product. Groups are ordered by the soonest-expiring batch they contain, so
// the most urgent product comes first regardless of its other batches.
func (s *StockService) ScanExpiring(ctx context.Context, horizonDays int) ([]*ExpiringProduct, error) {
	if horizonDays < 1 {
		return nil, errors.Validation(map[string]string{"days": "must be at least 1"})
	}

	today := clock.Midnight(s.clock.Now())
	rows, err := s.stock.ExpiringBatches(ctx, today, today.AddDate(0, 0, horizonDays))
	if err != nil {
		return nil, err
	}

	groups := make(map[int64]*ExpiringProduct)
	var order []int64

	for _, row := range rows {
		group, ok := groups[row.ProductID]
		if !ok {
			group = &ExpiringProduct{
				ProductID:   row.ProductID,
				ProductName: row.ProductName,
				Laboratory:  row.Laboratory,
				SalesPrice:  row.SalesPrice,
			}
			groups[row.ProductID] = group
			order = append(order, row.ProductID)
		}

		days := int(clock.Midnight(row.ExpirationDate).Sub(today).Hours() / 24)
		group.TotalStock += row.Quantity
		group.Batches = append(group.Batches, ExpiringBatch{
			BatchID:        row.BatchID,
			BatchName:      row.BatchName,
			ExpirationDate: row.ExpirationDate,
			Quantity:       row.Quantity,
			EntryDate:      row.EntryDate,
			DaysToExpire:   days,
		})
	}

	report := make([]*ExpiringProduct, 0, len(groups))
	for _, productID := range order {
		report = append(report, groups[productID])
	}

	// Rows arrive sorted by expiration, so each group's first batch is its
	// soonest one.
	sort.SliceStable(report, func(i, j int) bool {
		return report[i].Batches[0].DaysToExpire < report[j].Batches[0].DaysToExpire
	})

	return report, nil
}
