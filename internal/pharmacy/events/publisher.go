package events

import (
	"context"

	"github.com/halgurdkamal/pos-system-api-sub000/internal/pharmacy/domain"
	"github.com/halgurdkamal/pos-system-api-sub000/pkg/logger"
	"github.com/halgurdkamal/pos-system-api-sub000/pkg/messaging"
)

// PharmacyEventPublisher publishes stock, pricing and transfer events
type PharmacyEventPublisher struct {
	publisher *messaging.Publisher
	logger    *logger.Logger
}

// NewPharmacyEventPublisher creates a new pharmacy event publisher
func NewPharmacyEventPublisher(rmq *messaging.RabbitMQ, log *logger.Logger) (*PharmacyEventPublisher, error) {
	publisher, err := messaging.NewPublisher(rmq, messaging.ExchangePharmacyEvents, "pharmacy-service", log)
	if err != nil {
		return nil, err
	}

	return &PharmacyEventPublisher{
		publisher: publisher,
		logger:    log,
	}, nil
}

// PublishStockMovement publishes a stock received/reduced/relocated event
func (p *PharmacyEventPublisher) PublishStockMovement(ctx context.Context, eventType string, data messaging.StockMovementEvent) {
	if p == nil {
		return
	}
	if err := p.publisher.Publish(ctx, eventType, data); err != nil {
		p.logger.Error().Err(err).
			Str("shop_id", data.ShopID).
			Str("drug_id", data.DrugID).
			Msg("failed to publish stock movement event")
	}
}

// PublishBatchExpired publishes a batch expired event
func (p *PharmacyEventPublisher) PublishBatchExpired(ctx context.Context, shopID, drugID string, batch domain.Batch) {
	if p == nil {
		return
	}
	data := messaging.BatchExpiredEvent{
		ShopID:      shopID,
		DrugID:      drugID,
		BatchNumber: batch.BatchNumber,
		ExpiryDate:  batch.ExpiryDate,
		Quantity:    batch.QuantityOnHand,
	}
	if err := p.publisher.Publish(ctx, messaging.EventBatchExpired, data); err != nil {
		p.logger.Error().Err(err).
			Str("batch_number", batch.BatchNumber).
			Msg("failed to publish batch expired event")
	}
}

// PublishLowStock publishes a low stock alert event
func (p *PharmacyEventPublisher) PublishLowStock(ctx context.Context, inv *domain.ShopInventory) {
	if p == nil {
		return
	}
	data := messaging.LowStockEvent{
		ShopID:       inv.ShopID,
		DrugID:       inv.DrugID,
		TotalStock:   inv.TotalStock,
		ReorderPoint: inv.ReorderPoint,
	}
	if err := p.publisher.Publish(ctx, messaging.EventLowStock, data); err != nil {
		p.logger.Error().Err(err).
			Str("shop_id", inv.ShopID).
			Str("drug_id", inv.DrugID).
			Msg("failed to publish low stock event")
	}
}

// PublishPriceCascaded publishes a packaging price cascade event
func (p *PharmacyEventPublisher) PublishPriceCascaded(ctx context.Context, inv *domain.ShopInventory, batchNumber string, changes int) {
	if p == nil {
		return
	}
	data := messaging.PriceCascadedEvent{
		ShopID:      inv.ShopID,
		DrugID:      inv.DrugID,
		BatchNumber: batchNumber,
		Changes:     changes,
	}
	if err := p.publisher.Publish(ctx, messaging.EventPriceCascaded, data); err != nil {
		p.logger.Error().Err(err).
			Str("shop_id", inv.ShopID).
			Str("drug_id", inv.DrugID).
			Msg("failed to publish price cascade event")
	}
}

// PublishTransfer publishes a transfer lifecycle event
func (p *PharmacyEventPublisher) PublishTransfer(ctx context.Context, eventType string, t *domain.StockTransfer) {
	if p == nil {
		return
	}
	data := messaging.TransferEvent{
		TransferID: t.ID,
		FromShopID: t.FromShopID,
		ToShopID:   t.ToShopID,
		DrugID:     t.DrugID,
		Quantity:   t.Quantity,
		Status:     string(t.Status),
	}
	if err := p.publisher.Publish(ctx, eventType, data); err != nil {
		p.logger.Error().Err(err).
			Str("transfer_id", t.ID).
			Str("status", string(t.Status)).
			Msg("failed to publish transfer event")
	}
}
