package messaging

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// Event types
const (
	EventOrderCreated   = "inventory.order.created"
	EventSaleCompleted  = "inventory.sale.completed"
	EventStockDepleted  = "inventory.stock.depleted"
	EventBatchExpiring  = "inventory.batch.expiring"
)

// Exchange names
const (
	ExchangeInventoryEvents = "farmastock.inventory.events"
)

// Event is the base event structure
type Event struct {
	ID            string          `json:"id"`
	Type          string          `json:"type"`
	Source        string          `json:"source"`
	Timestamp     time.Time       `json:"timestamp"`
	CorrelationID string          `json:"correlation_id"`
	Data          json.RawMessage `json:"data"`
}

// NewEvent creates a new event with the given type and data
func NewEvent(eventType, source, correlationID string, data interface{}) (*Event, error) {
	dataBytes, err := json.Marshal(data)
	if err != nil {
		return nil, err
	}

	return &Event{
		ID:            uuid.New().String(),
		Type:          eventType,
		Source:        source,
		Timestamp:     time.Now().UTC(),
		CorrelationID: correlationID,
		Data:          dataBytes,
	}, nil
}

// OrderCreatedEvent is emitted after a purchase order commits
type OrderCreatedEvent struct {
	BillID        int64 `json:"bill_id"`
	BatchCount    int   `json:"batch_count"`
	ProductCount  int   `json:"product_count"`
	TotalValue    int64 `json:"total_value"`
}

// SaleCompletedEvent is emitted after a sale commits
type SaleCompletedEvent struct {
	SaleID       int64 `json:"sale_id"`
	ProductCount int   `json:"product_count"`
	TotalItems   int   `json:"total_items"`
	TotalValue   int64 `json:"total_value"`
}

// StockDepletedEvent is emitted when a sale drains a product to zero stock
type StockDepletedEvent struct {
	ProductID int64 `json:"product_id"`
	SaleID    int64 `json:"sale_id"`
}
