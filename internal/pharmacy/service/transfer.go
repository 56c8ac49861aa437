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

// TransferService moves stock between two shops of the same tenant via a
// pending/approved/in_transit/completed state machine. Sender stock is
// withdrawn at dispatch and the consumed lots are kept on the transfer so
// they can be recreated at the receiver on completion, or restored to the
// sender when an in-transit transfer is cancelled.
type TransferService struct {
	transferStore  TransferStore
	inventoryStore InventoryStore
	locks          *aggregateLocks
	publisher      *events.PharmacyEventPublisher
	logger         *logger.Logger
}

// NewTransferService creates a new transfer service
func NewTransferService(transferStore TransferStore, inventoryStore InventoryStore, publisher *events.PharmacyEventPublisher, log *logger.Logger) *TransferService {
	return &TransferService{
		transferStore:  transferStore,
		inventoryStore: inventoryStore,
		locks:          newAggregateLocks(),
		publisher:      publisher,
		logger:         log,
	}
}

func (s *TransferService) lockAggregate(ctx context.Context, shopID, drugID string) func() {
	tenantID, _ := tenant.TenantID(ctx)
	return s.locks.Acquire(fmt.Sprintf("%s|%s|%s", tenantID, shopID, drugID))
}

// CreateTransfer opens a pending transfer request.
func (s *TransferService) CreateTransfer(ctx context.Context, fromShopID, toShopID, drugID string, quantity int64, notes *string) (*domain.StockTransfer, error) {
	if fromShopID == toShopID {
		return nil, errors.BadRequest("source and destination shop must differ")
	}
	if quantity <= 0 {
		return nil, errors.BadRequest("quantity must be positive")
	}

	createdBy := ""
	if a := actor.FromContext(ctx); a != nil {
		createdBy = a.ID
	}

	now := time.Now().UTC()
	t := &domain.StockTransfer{
		ID:         uuid.New().String(),
		FromShopID: fromShopID,
		ToShopID:   toShopID,
		DrugID:     drugID,
		Quantity:   quantity,
		Status:     domain.TransferPending,
		Notes:      notes,
		CreatedBy:  createdBy,
		CreatedAt:  now,
		UpdatedAt:  now,
	}

	if err := s.transferStore.CreateTransfer(ctx, t); err != nil {
		return nil, err
	}

	s.logger.Info().
		Str("transfer_id", t.ID).
		Str("from_shop_id", fromShopID).
		Str("to_shop_id", toShopID).
		Str("drug_id", drugID).
		Int64("quantity", quantity).
		Msg("transfer created")

	s.publisher.PublishTransfer(ctx, messaging.EventTransferCreated, t)
	return t, nil
}

// GetTransfer loads a transfer by ID.
func (s *TransferService) GetTransfer(ctx context.Context, id string) (*domain.StockTransfer, error) {
	return s.transferStore.GetTransfer(ctx, id)
}

// ListTransfersByShop lists transfers touching the shop, newest first.
func (s *TransferService) ListTransfersByShop(ctx context.Context, shopID string) ([]*domain.StockTransfer, error) {
	return s.transferStore.ListTransfersByShop(ctx, shopID)
}

// ApproveTransfer moves a pending transfer to approved. No stock moves yet.
func (s *TransferService) ApproveTransfer(ctx context.Context, id string) (*domain.StockTransfer, error) {
	t, err := s.transferStore.GetTransfer(ctx, id)
	if err != nil {
		return nil, err
	}

	expected := t.Status
	if err := t.Transition(domain.TransferApproved); err != nil {
		return nil, err
	}
	t.UpdatedAt = time.Now().UTC()

	if err := s.transferStore.UpdateTransfer(ctx, t, expected); err != nil {
		return nil, err
	}

	s.publisher.PublishTransfer(ctx, messaging.EventTransferUpdated, t)
	return t, nil
}

// DispatchTransfer withdraws the stock from the sender and marks the
// transfer in transit. The sender must cover the full quantity; nothing is
// withdrawn when it cannot.
func (s *TransferService) DispatchTransfer(ctx context.Context, id string) (*domain.StockTransfer, error) {
	t, err := s.transferStore.GetTransfer(ctx, id)
	if err != nil {
		return nil, err
	}
	if !t.Status.CanTransition(domain.TransferInTransit) {
		return nil, errors.InvalidTransition(string(t.Status), string(domain.TransferInTransit))
	}

	release := s.lockAggregate(ctx, t.FromShopID, t.DrugID)
	defer release()

	inv, err := s.inventoryStore.GetShopInventory(ctx, t.FromShopID, t.DrugID)
	if err != nil {
		return nil, err
	}
	if inv == nil {
		return nil, errors.NotFound("shop inventory")
	}
	if inv.TotalStock < t.Quantity {
		return nil, errors.InsufficientStock(t.Quantity, inv.TotalStock)
	}

	expected := t.Status
	t.Lines = inv.ReduceStock(t.Quantity)
	if err := t.Transition(domain.TransferInTransit); err != nil {
		return nil, err
	}
	t.UpdatedAt = time.Now().UTC()

	if err := s.inventoryStore.SaveShopInventory(ctx, inv); err != nil {
		return nil, err
	}
	if err := s.transferStore.UpdateTransfer(ctx, t, expected); err != nil {
		return nil, err
	}

	s.logger.Info().
		Str("transfer_id", t.ID).
		Str("from_shop_id", t.FromShopID).
		Int("lines", len(t.Lines)).
		Msg("transfer dispatched")

	s.publisher.PublishTransfer(ctx, messaging.EventTransferUpdated, t)
	return t, nil
}

// CompleteTransfer delivers an in-transit transfer. Each withdrawn lot is
// recreated at the receiver in storage, keeping its batch number, expiry
// and prices. The receiver's aggregate is created if the shop has never
// stocked the drug.
func (s *TransferService) CompleteTransfer(ctx context.Context, id string) (*domain.StockTransfer, error) {
	t, err := s.transferStore.GetTransfer(ctx, id)
	if err != nil {
		return nil, err
	}
	if !t.Status.CanTransition(domain.TransferCompleted) {
		return nil, errors.InvalidTransition(string(t.Status), string(domain.TransferCompleted))
	}

	release := s.lockAggregate(ctx, t.ToShopID, t.DrugID)
	defer release()

	now := time.Now().UTC()
	inv, err := s.inventoryStore.GetShopInventory(ctx, t.ToShopID, t.DrugID)
	if err != nil {
		return nil, err
	}
	if inv == nil {
		inv = domain.NewShopInventory(t.ToShopID, t.DrugID)
	}

	s.addLines(inv, t.Lines, now)

	expected := t.Status
	if err := t.Transition(domain.TransferCompleted); err != nil {
		return nil, err
	}
	t.UpdatedAt = now

	if err := s.inventoryStore.SaveShopInventory(ctx, inv); err != nil {
		return nil, err
	}
	if err := s.transferStore.UpdateTransfer(ctx, t, expected); err != nil {
		return nil, err
	}

	s.logger.Info().
		Str("transfer_id", t.ID).
		Str("to_shop_id", t.ToShopID).
		Int64("quantity", t.Quantity).
		Msg("transfer completed")

	s.publisher.PublishTransfer(ctx, messaging.EventTransferCompleted, t)
	return t, nil
}

// CancelTransfer cancels a non-terminal transfer. Cancelling an in-transit
// transfer returns the withdrawn lots to the sender's storage.
func (s *TransferService) CancelTransfer(ctx context.Context, id string) (*domain.StockTransfer, error) {
	t, err := s.transferStore.GetTransfer(ctx, id)
	if err != nil {
		return nil, err
	}
	if !t.Status.CanTransition(domain.TransferCancelled) {
		return nil, errors.InvalidTransition(string(t.Status), string(domain.TransferCancelled))
	}

	now := time.Now().UTC()
	wasInTransit := t.Status == domain.TransferInTransit

	if wasInTransit {
		release := s.lockAggregate(ctx, t.FromShopID, t.DrugID)
		defer release()

		inv, err := s.inventoryStore.GetShopInventory(ctx, t.FromShopID, t.DrugID)
		if err != nil {
			return nil, err
		}
		if inv == nil {
			inv = domain.NewShopInventory(t.FromShopID, t.DrugID)
		}
		s.addLines(inv, t.Lines, now)
		if err := s.inventoryStore.SaveShopInventory(ctx, inv); err != nil {
			return nil, err
		}
	}

	expected := t.Status
	if err := t.Transition(domain.TransferCancelled); err != nil {
		return nil, err
	}
	t.UpdatedAt = now

	if err := s.transferStore.UpdateTransfer(ctx, t, expected); err != nil {
		return nil, err
	}

	s.logger.Info().
		Str("transfer_id", t.ID).
		Bool("stock_returned", wasInTransit).
		Msg("transfer cancelled")

	s.publisher.PublishTransfer(ctx, messaging.EventTransferCancelled, t)
	return t, nil
}

// addLines recreates withdrawn lots as storage batches on the aggregate.
func (s *TransferService) addLines(inv *domain.ShopInventory, lines domain.TransferLines, now time.Time) {
	for _, line := range lines {
		inv.AddBatch(domain.Batch{
			ID:             uuid.New().String(),
			BatchNumber:    line.BatchNumber,
			SupplierID:     line.SupplierID,
			QuantityOnHand: line.Quantity,
			ReceivedDate:   now,
			ExpiryDate:     line.ExpiryDate,
			PurchasePrice:  line.PurchasePrice,
			SellingPrice:   line.SellingPrice,
			Location:       domain.LocationStorage,
			Status:         domain.BatchActive,
		}, now)
	}
}
