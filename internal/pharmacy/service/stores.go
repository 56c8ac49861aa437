package service

import (
	"context"

	"github.com/shopspring/decimal"

	"github.com/halgurdkamal/pos-system-api-sub000/internal/pharmacy/domain"
)

// PackagingStore is the repository boundary for packaging configuration.
type PackagingStore interface {
	// GetDrugPackagingLevels returns a drug's global packaging hierarchy,
	// failing with a NotFound error if the drug does not exist.
	GetDrugPackagingLevels(ctx context.Context, drugID string) ([]domain.PackagingLevel, error)

	// GetShopPackagingOverrides returns the shop's overrides and custom
	// levels for a drug. An empty slice means no overrides.
	GetShopPackagingOverrides(ctx context.Context, shopID, drugID string) ([]domain.ShopPackagingOverride, error)

	// GetDrugSuggestedRetailPrice returns the drug's global suggested retail
	// price, or nil when none is set.
	GetDrugSuggestedRetailPrice(ctx context.Context, drugID string) (*decimal.Decimal, error)
}

// PackagingConfigStore is the write side of packaging configuration.
type PackagingConfigStore interface {
	SaveShopPackagingOverride(ctx context.Context, o *domain.ShopPackagingOverride) error
	DeleteShopPackagingOverride(ctx context.Context, id string) error
}

// InventoryStore is the repository boundary for the shop-drug aggregate.
type InventoryStore interface {
	// GetShopInventory loads the full aggregate, or nil when the shop has
	// never stocked the drug.
	GetShopInventory(ctx context.Context, shopID, drugID string) (*domain.ShopInventory, error)

	// SaveShopInventory persists the full aggregate including the batch
	// collection and the pricing map in one transaction.
	SaveShopInventory(ctx context.Context, inv *domain.ShopInventory) error

	// ListStockedPairs returns every (shop, drug) pair that currently holds
	// stock, for the expiry sweep.
	ListStockedPairs(ctx context.Context) ([]domain.InventoryKey, error)

	// ListShopInventories lists a shop's aggregates without batch detail.
	ListShopInventories(ctx context.Context, shopID string) ([]*domain.ShopInventory, error)

	// ListLowStock returns a shop's aggregates at or below their reorder
	// point, without batch detail.
	ListLowStock(ctx context.Context, shopID string) ([]*domain.ShopInventory, error)

	// ListExpiringBatches returns a shop's active batches expiring within
	// the given number of days, ascending by expiry date.
	ListExpiringBatches(ctx context.Context, shopID string, withinDays int) ([]domain.ExpiringBatch, error)
}

// TransferStore is the repository boundary for cross-shop transfer records.
type TransferStore interface {
	CreateTransfer(ctx context.Context, t *domain.StockTransfer) error
	GetTransfer(ctx context.Context, id string) (*domain.StockTransfer, error)

	// UpdateTransfer persists status and lines, guarded by the expected
	// current status so concurrent transitions lose cleanly.
	UpdateTransfer(ctx context.Context, t *domain.StockTransfer, expected domain.TransferStatus) error

	// ListTransfersByShop lists transfers where the shop is the sender or
	// the receiver, newest first.
	ListTransfersByShop(ctx context.Context, shopID string) ([]*domain.StockTransfer, error)
}
