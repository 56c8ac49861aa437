package service

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/halgurdkamal/pos-system-api-sub000/internal/pharmacy/domain"
	"github.com/halgurdkamal/pos-system-api-sub000/internal/pharmacy/events"
	"github.com/halgurdkamal/pos-system-api-sub000/pkg/actor"
	"github.com/halgurdkamal/pos-system-api-sub000/pkg/errors"
	"github.com/halgurdkamal/pos-system-api-sub000/pkg/logger"
	"github.com/halgurdkamal/pos-system-api-sub000/pkg/messaging"
	"github.com/halgurdkamal/pos-system-api-sub000/pkg/tenant"
)

// StockService orchestrates stock movements against shop-drug aggregates.
// Each operation is a load-mutate-save sequence serialized per aggregate
// key; different aggregates run fully in parallel.
type StockService struct {
	inventoryStore InventoryStore
	cascade        *PriceCascade
	publisher      *events.PharmacyEventPublisher
	locks          *aggregateLocks
	logger         *logger.Logger
}

// NewStockService creates a new stock service
func NewStockService(inventoryStore InventoryStore, cascade *PriceCascade, publisher *events.PharmacyEventPublisher, log *logger.Logger) *StockService {
	return &StockService{
		inventoryStore: inventoryStore,
		cascade:        cascade,
		publisher:      publisher,
		locks:          newAggregateLocks(),
		logger:         log,
	}
}

func (s *StockService) lockAggregate(ctx context.Context, shopID, drugID string) func() {
	tenantID, _ := tenant.TenantID(ctx)
	return s.locks.Acquire(fmt.Sprintf("%s|%s|%s", tenantID, shopID, drugID))
}

// GetInventory loads the aggregate, failing with NotFound when the shop has
// never stocked the drug.
func (s *StockService) GetInventory(ctx context.Context, shopID, drugID string) (*domain.ShopInventory, error) {
	inv, err := s.inventoryStore.GetShopInventory(ctx, shopID, drugID)
	if err != nil {
		return nil, err
	}
	if inv == nil {
		return nil, errors.NotFound("shop inventory")
	}
	return inv, nil
}

// ReceiveStock records a stock receipt. The aggregate is created on the
// first receipt for a shop-drug pair. After the batch is added the price
// cascade refreshes per-unit prices from the active batch.
func (s *StockService) ReceiveStock(ctx context.Context, shopID, drugID string, batch domain.Batch) (*domain.ShopInventory, []PriceChange, error) {
	release := s.lockAggregate(ctx, shopID, drugID)
	defer release()

	inv, err := s.inventoryStore.GetShopInventory(ctx, shopID, drugID)
	if err != nil {
		return nil, nil, err
	}
	if inv == nil {
		inv = domain.NewShopInventory(shopID, drugID)
	}

	if batch.ID == "" {
		batch.ID = uuid.New().String()
	}
	inv.AddBatch(batch, time.Now().UTC())

	var changes []PriceChange
	if active := inv.ActiveBatch(); active != nil {
		changes, err = s.cascade.UpdateFromActiveBatch(ctx, inv, active)
		if err != nil {
			return nil, nil, err
		}
	}

	if err := s.inventoryStore.SaveShopInventory(ctx, inv); err != nil {
		return nil, nil, err
	}

	s.logger.WithShopDrug(shopID, drugID).Info().
		Str("batch_number", batch.BatchNumber).
		Int64("quantity", batch.QuantityOnHand).
		Int64("total_stock", inv.TotalStock).
		Msg("stock received")

	s.publisher.PublishStockMovement(ctx, messaging.EventStockReceived, s.movementEvent(ctx, inv, batch.BatchNumber, batch.QuantityOnHand, "receive"))
	if len(changes) > 0 {
		s.publisher.PublishPriceCascaded(ctx, inv, batch.BatchNumber, len(changes))
	}

	return inv, changes, nil
}

// ReduceStock consumes stock FIFO for a sale. When the requested quantity
// exceeds availability the reduction under-fulfils without error; the
// returned consumptions show what was actually drawn.
func (s *StockService) ReduceStock(ctx context.Context, shopID, drugID string, quantity int64) (*domain.ShopInventory, []domain.BatchConsumption, error) {
	if quantity <= 0 {
		return nil, nil, errors.BadRequest("quantity must be positive")
	}

	release := s.lockAggregate(ctx, shopID, drugID)
	defer release()

	inv, err := s.GetInventory(ctx, shopID, drugID)
	if err != nil {
		return nil, nil, err
	}

	consumed := inv.ReduceStock(quantity)

	if err := s.inventoryStore.SaveShopInventory(ctx, inv); err != nil {
		return nil, nil, err
	}

	var total int64
	for _, c := range consumed {
		total += c.Quantity
	}

	s.logger.WithShopDrug(shopID, drugID).Info().
		Int64("requested", quantity).
		Int64("consumed", total).
		Int64("total_stock", inv.TotalStock).
		Msg("stock reduced")

	s.publisher.PublishStockMovement(ctx, messaging.EventStockReduced, s.movementEvent(ctx, inv, "", total, "reduce"))
	if inv.IsLowStock() {
		s.publisher.PublishLowStock(ctx, inv)
	}

	return inv, consumed, nil
}

// RestockShopFloor moves stock from storage onto the shop floor, earliest
// expiry first.
func (s *StockService) RestockShopFloor(ctx context.Context, shopID, drugID string, quantity int64, batchNumber string) (*domain.ShopInventory, error) {
	return s.relocate(ctx, shopID, drugID, quantity, batchNumber, "restock_floor", func(inv *domain.ShopInventory) error {
		return inv.RestockShopFloor(quantity, batchNumber)
	})
}

// ReturnToStorage moves stock from the shop floor back into storage.
func (s *StockService) ReturnToStorage(ctx context.Context, shopID, drugID string, quantity int64, batchNumber string) (*domain.ShopInventory, error) {
	return s.relocate(ctx, shopID, drugID, quantity, batchNumber, "return_storage", func(inv *domain.ShopInventory) error {
		return inv.ReturnToStorage(quantity, batchNumber)
	})
}

func (s *StockService) relocate(ctx context.Context, shopID, drugID string, quantity int64, batchNumber, movement string, move func(*domain.ShopInventory) error) (*domain.ShopInventory, error) {
	if quantity <= 0 {
		return nil, errors.BadRequest("quantity must be positive")
	}

	release := s.lockAggregate(ctx, shopID, drugID)
	defer release()

	inv, err := s.GetInventory(ctx, shopID, drugID)
	if err != nil {
		return nil, err
	}

	if err := move(inv); err != nil {
		return nil, err
	}

	if err := s.inventoryStore.SaveShopInventory(ctx, inv); err != nil {
		return nil, err
	}

	s.logger.WithShopDrug(shopID, drugID).Info().
		Str("movement", movement).
		Int64("quantity", quantity).
		Msg("stock relocated")

	s.publisher.PublishStockMovement(ctx, messaging.EventStockRelocated, s.movementEvent(ctx, inv, batchNumber, quantity, movement))

	return inv, nil
}

// MarkExpiredBatches sweeps one aggregate for expired batches.
func (s *StockService) MarkExpiredBatches(ctx context.Context, shopID, drugID string) ([]domain.Batch, error) {
	release := s.lockAggregate(ctx, shopID, drugID)
	defer release()

	inv, err := s.GetInventory(ctx, shopID, drugID)
	if err != nil {
		return nil, err
	}

	expired := inv.MarkExpiredBatches(time.Now().UTC())
	if len(expired) == 0 {
		return nil, nil
	}

	if err := s.inventoryStore.SaveShopInventory(ctx, inv); err != nil {
		return nil, err
	}

	for _, b := range expired {
		s.logger.WithShopDrug(shopID, drugID).Warn().
			Str("batch_number", b.BatchNumber).
			Time("expiry_date", b.ExpiryDate).
			Msg("batch expired")
		s.publisher.PublishBatchExpired(ctx, shopID, drugID, b)
	}
	if inv.IsLowStock() {
		s.publisher.PublishLowStock(ctx, inv)
	}

	return expired, nil
}

// GetExpiringBatches returns the aggregate's batches expiring within days.
func (s *StockService) GetExpiringBatches(ctx context.Context, shopID, drugID string, days int) ([]domain.Batch, error) {
	inv, err := s.GetInventory(ctx, shopID, drugID)
	if err != nil {
		return nil, err
	}
	return inv.GetExpiringBatches(days, time.Now().UTC()), nil
}

// ListShopInventories lists the shop's aggregates without batch detail.
func (s *StockService) ListShopInventories(ctx context.Context, shopID string) ([]*domain.ShopInventory, error) {
	return s.inventoryStore.ListShopInventories(ctx, shopID)
}

// ListLowStock returns the shop's aggregates at or below their reorder
// point.
func (s *StockService) ListLowStock(ctx context.Context, shopID string) ([]*domain.ShopInventory, error) {
	return s.inventoryStore.ListLowStock(ctx, shopID)
}

// ListShopExpiringBatches returns the shop's active batches expiring within
// the given window, across all drugs.
func (s *StockService) ListShopExpiringBatches(ctx context.Context, shopID string, withinDays int) ([]domain.ExpiringBatch, error) {
	return s.inventoryStore.ListExpiringBatches(ctx, shopID, withinDays)
}

func (s *StockService) movementEvent(ctx context.Context, inv *domain.ShopInventory, batchNumber string, quantity int64, movement string) messaging.StockMovementEvent {
	performedBy := ""
	if a := actor.FromContext(ctx); a != nil {
		performedBy = a.ID
	}
	return messaging.StockMovementEvent{
		ShopID:      inv.ShopID,
		DrugID:      inv.DrugID,
		BatchNumber: batchNumber,
		Quantity:    quantity,
		TotalStock:  inv.TotalStock,
		Movement:    movement,
		PerformedBy: performedBy,
	}
}
