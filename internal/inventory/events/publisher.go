package events

import (
	"context"

	"github.com/farmastock/farmastock-backend/pkg/logger"
	"github.com/farmastock/farmastock-backend/pkg/messaging"
)

// InventoryEventPublisher publishes inventory-related events. Publishing is
// best-effort: a broker failure is logged, never surfaced to the caller, and
// never rolls back a committed transaction.
type InventoryEventPublisher struct {
	publisher *messaging.Publisher
	logger    *logger.Logger
}

// NewInventoryEventPublisher creates a new inventory event publisher
func NewInventoryEventPublisher(rmq *messaging.RabbitMQ, log *logger.Logger) (*InventoryEventPublisher, error) {
	publisher, err := messaging.NewPublisher(rmq, messaging.ExchangeInventoryEvents, "inventory-service", log)
	if err != nil {
		return nil, err
	}

	return &InventoryEventPublisher{
		publisher: publisher,
		logger:    log,
	}, nil
}

// PublishOrderCreated publishes an order created event
func (p *InventoryEventPublisher) PublishOrderCreated(ctx context.Context, data messaging.OrderCreatedEvent) {
	if p == nil {
		return
	}

	if err := p.publisher.Publish(ctx, messaging.EventOrderCreated, data); err != nil {
		p.logger.Error().Err(err).Int64("bill_id", data.BillID).Msg("failed to publish order created event")
	}
}

// PublishSaleCompleted publishes a sale completed event
func (p *InventoryEventPublisher) PublishSaleCompleted(ctx context.Context, data messaging.SaleCompletedEvent) {
	if p == nil {
		return
	}

	if err := p.publisher.Publish(ctx, messaging.EventSaleCompleted, data); err != nil {
		p.logger.Error().Err(err).Int64("sale_id", data.SaleID).Msg("failed to publish sale completed event")
	}
}

// PublishStockDepleted publishes a stock depleted event
func (p *InventoryEventPublisher) PublishStockDepleted(ctx context.Context, data messaging.StockDepletedEvent) {
	if p == nil {
		return
	}

	if err := p.publisher.Publish(ctx, messaging.EventStockDepleted, data); err != nil {
		p.logger.Error().Err(err).Int64("product_id", data.ProductID).Msg("failed to publish stock depleted event")
	}
}
