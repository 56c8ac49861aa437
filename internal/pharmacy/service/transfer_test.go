package service_test

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/halgurdkamal/pos-system-api-sub000/internal/pharmacy/domain"
	"github.com/halgurdkamal/pos-system-api-sub000/internal/pharmacy/service"
	apperrors "github.com/halgurdkamal/pos-system-api-sub000/pkg/errors"
	"github.com/halgurdkamal/pos-system-api-sub000/pkg/testutil"
)

type fakeTransferStore struct {
	transfers map[string]*domain.StockTransfer
}

func newFakeTransferStore() *fakeTransferStore {
	return &fakeTransferStore{transfers: make(map[string]*domain.StockTransfer)}
}

func (f *fakeTransferStore) CreateTransfer(_ context.Context, t *domain.StockTransfer) error {
	if t.ID == "" {
		t.ID = uuid.New().String()
	}
	cp := *t
	f.transfers[t.ID] = &cp
	return nil
}

func (f *fakeTransferStore) GetTransfer(_ context.Context, id string) (*domain.StockTransfer, error) {
	t, ok := f.transfers[id]
	if !ok {
		return nil, apperrors.NotFound("transfer")
	}
	cp := *t
	return &cp, nil
}

func (f *fakeTransferStore) UpdateTransfer(_ context.Context, t *domain.StockTransfer, expected domain.TransferStatus) error {
	current, ok := f.transfers[t.ID]
	if !ok {
		return apperrors.NotFound("transfer")
	}
	if current.Status != expected {
		return apperrors.Conflict("transfer was modified concurrently")
	}
	cp := *t
	f.transfers[t.ID] = &cp
	return nil
}

func (f *fakeTransferStore) ListTransfersByShop(_ context.Context, shopID string) ([]*domain.StockTransfer, error) {
	var out []*domain.StockTransfer
	for _, t := range f.transfers {
		if t.FromShopID == shopID || t.ToShopID == shopID {
			cp := *t
			out = append(out, &cp)
		}
	}
	return out, nil
}

func newTransferFixture(t *testing.T) (*service.TransferService, *fakeInventoryStore, *fakeTransferStore) {
	t.Helper()
	invStore := newFakeInventoryStore()
	trStore := newFakeTransferStore()
	svc := service.NewTransferService(trStore, invStore, nil, testLogger())
	return svc, invStore, trStore
}

func senderInventory(invStore *fakeInventoryStore, qty int64) *domain.ShopInventory {
	now := time.Date(2026, 8, 1, 0, 0, 0, 0, time.UTC)
	inv := fixtures.Inventory("shop-a", "drug-1", fixtures.Batch(
		testutil.WithBatchNumber("LOT-1"),
		testutil.WithSupplierID("supplier-1"),
		testutil.WithQuantity(qty),
		testutil.WithReceivedDate(now),
		testutil.WithExpiryDate(now.AddDate(1, 0, 0)),
		testutil.WithLocation(domain.LocationStorage),
	))
	invStore.put(inv)
	return inv
}

func TestTransferLifecycle_Complete(t *testing.T) {
	svc, invStore, _ := newTransferFixture(t)
	senderInventory(invStore, 100)
	ctx := testutil.TenantContext(testutil.NewTestTenant("pharma-one"))

	tr, err := svc.CreateTransfer(ctx, "shop-a", "shop-b", "drug-1", 30, nil)
	require.NoError(t, err)
	assert.Equal(t, domain.TransferPending, tr.Status)

	tr, err = svc.ApproveTransfer(ctx, tr.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.TransferApproved, tr.Status)

	tr, err = svc.DispatchTransfer(ctx, tr.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.TransferInTransit, tr.Status)
	require.Len(t, tr.Lines, 1)
	assert.Equal(t, int64(30), tr.Lines[0].Quantity)
	assert.Equal(t, "supplier-1", tr.Lines[0].SupplierID)

	// Sender lost the stock at dispatch.
	sender, _ := invStore.GetShopInventory(ctx, "shop-a", "drug-1")
	assert.Equal(t, int64(70), sender.TotalStock)

	tr, err = svc.CompleteTransfer(ctx, tr.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.TransferCompleted, tr.Status)

	// Receiver gained the lot in storage, keeping the batch number.
	receiver, _ := invStore.GetShopInventory(ctx, "shop-b", "drug-1")
	require.NotNil(t, receiver)
	assert.Equal(t, int64(30), receiver.TotalStock)
	require.Len(t, receiver.Batches, 1)
	assert.Equal(t, "LOT-1", receiver.Batches[0].BatchNumber)
	assert.Equal(t, "supplier-1", receiver.Batches[0].SupplierID)
	assert.Equal(t, domain.LocationStorage, receiver.Batches[0].Location)
}

func TestDispatchTransfer_InsufficientStock(t *testing.T) {
	svc, invStore, _ := newTransferFixture(t)
	senderInventory(invStore, 10)
	ctx := context.Background()

	tr, err := svc.CreateTransfer(ctx, "shop-a", "shop-b", "drug-1", 30, nil)
	require.NoError(t, err)
	_, err = svc.ApproveTransfer(ctx, tr.ID)
	require.NoError(t, err)

	_, err = svc.DispatchTransfer(ctx, tr.ID)
	require.Error(t, err)
	assert.True(t, apperrors.Is(err, apperrors.ErrInsufficientStock))

	// Nothing was withdrawn.
	sender, _ := invStore.GetShopInventory(ctx, "shop-a", "drug-1")
	assert.Equal(t, int64(10), sender.TotalStock)
}

func TestCancelTransfer_InTransitReturnsStock(t *testing.T) {
	svc, invStore, _ := newTransferFixture(t)
	senderInventory(invStore, 100)
	ctx := context.Background()

	tr, err := svc.CreateTransfer(ctx, "shop-a", "shop-b", "drug-1", 40, nil)
	require.NoError(t, err)
	_, err = svc.ApproveTransfer(ctx, tr.ID)
	require.NoError(t, err)
	_, err = svc.DispatchTransfer(ctx, tr.ID)
	require.NoError(t, err)

	sender, _ := invStore.GetShopInventory(ctx, "shop-a", "drug-1")
	require.Equal(t, int64(60), sender.TotalStock)

	tr, err = svc.CancelTransfer(ctx, tr.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.TransferCancelled, tr.Status)

	sender, _ = invStore.GetShopInventory(ctx, "shop-a", "drug-1")
	assert.Equal(t, int64(100), sender.TotalStock)
}

func TestCancelTransfer_PendingMovesNoStock(t *testing.T) {
	svc, invStore, _ := newTransferFixture(t)
	senderInventory(invStore, 100)
	ctx := context.Background()

	tr, err := svc.CreateTransfer(ctx, "shop-a", "shop-b", "drug-1", 40, nil)
	require.NoError(t, err)

	tr, err = svc.CancelTransfer(ctx, tr.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.TransferCancelled, tr.Status)

	sender, _ := invStore.GetShopInventory(ctx, "shop-a", "drug-1")
	assert.Equal(t, int64(100), sender.TotalStock)
}

func TestTransfer_InvalidTransitions(t *testing.T) {
	svc, invStore, _ := newTransferFixture(t)
	senderInventory(invStore, 100)
	ctx := context.Background()

	tr, err := svc.CreateTransfer(ctx, "shop-a", "shop-b", "drug-1", 10, nil)
	require.NoError(t, err)

	// Pending cannot be dispatched or completed.
	_, err = svc.DispatchTransfer(ctx, tr.ID)
	assert.True(t, apperrors.Is(err, apperrors.ErrInvalidTransition))
	_, err = svc.CompleteTransfer(ctx, tr.ID)
	assert.True(t, apperrors.Is(err, apperrors.ErrInvalidTransition))

	// Terminal states reject everything.
	_, err = svc.CancelTransfer(ctx, tr.ID)
	require.NoError(t, err)
	_, err = svc.ApproveTransfer(ctx, tr.ID)
	assert.True(t, apperrors.Is(err, apperrors.ErrInvalidTransition))
}

func TestCreateTransfer_Validation(t *testing.T) {
	svc, _, _ := newTransferFixture(t)
	ctx := context.Background()

	_, err := svc.CreateTransfer(ctx, "shop-a", "shop-a", "drug-1", 10, nil)
	assert.True(t, apperrors.Is(err, apperrors.ErrBadRequest))

	_, err = svc.CreateTransfer(ctx, "shop-a", "shop-b", "drug-1", 0, nil)
	assert.True(t, apperrors.Is(err, apperrors.ErrBadRequest))
}
