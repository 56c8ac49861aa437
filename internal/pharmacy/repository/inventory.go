package repository

import (
	"context"
	"database/sql"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/shopspring/decimal"

	"github.com/halgurdkamal/pos-system-api-sub000/internal/pharmacy/domain"
	"github.com/halgurdkamal/pos-system-api-sub000/pkg/database"
)

// inventoryRow is the flat persistence shape of the aggregate root.
type inventoryRow struct {
	ID                   string           `db:"id"`
	ShopID               string           `db:"shop_id"`
	DrugID               string           `db:"drug_id"`
	TotalStock           int64            `db:"total_stock"`
	IsAvailable          bool             `db:"is_available"`
	ReorderPoint         int64            `db:"reorder_point"`
	ShopSpecificSellUnit *string          `db:"shop_specific_sell_unit"`
	MinimumSaleQuantity  *decimal.Decimal `db:"minimum_sale_quantity"`
	CostPrice            decimal.Decimal  `db:"cost_price"`
	SellingPrice         decimal.Decimal  `db:"selling_price"`
	DiscountRate         decimal.Decimal  `db:"discount_rate"`
	TaxRate              decimal.Decimal  `db:"tax_rate"`
	Currency             string           `db:"currency"`
	PackagingLevelPrices domain.PriceMap  `db:"packaging_level_prices"`
	LastRestockDate      *time.Time       `db:"last_restock_date"`
	LastPriceUpdate      *time.Time       `db:"last_price_update"`
	CreatedAt            time.Time        `db:"created_at"`
	UpdatedAt            time.Time        `db:"updated_at"`
}

func (row *inventoryRow) toDomain() *domain.ShopInventory {
	return &domain.ShopInventory{
		ID:                   row.ID,
		ShopID:               row.ShopID,
		DrugID:               row.DrugID,
		TotalStock:           row.TotalStock,
		IsAvailable:          row.IsAvailable,
		ReorderPoint:         row.ReorderPoint,
		ShopSpecificSellUnit: row.ShopSpecificSellUnit,
		MinimumSaleQuantity:  row.MinimumSaleQuantity,
		Pricing: domain.ShopPricing{
			CostPrice:            row.CostPrice,
			SellingPrice:         row.SellingPrice,
			DiscountRate:         row.DiscountRate,
			TaxRate:              row.TaxRate,
			Currency:             row.Currency,
			PackagingLevelPrices: row.PackagingLevelPrices,
		},
		LastRestockDate: row.LastRestockDate,
		LastPriceUpdate: row.LastPriceUpdate,
		CreatedAt:       row.CreatedAt,
		UpdatedAt:       row.UpdatedAt,
	}
}

// InventoryRepository handles the shop-drug aggregate persistence
type InventoryRepository struct {
	db *database.DB
}

// NewInventoryRepository creates a new inventory repository
func NewInventoryRepository(db *database.DB) *InventoryRepository {
	return &InventoryRepository{db: db}
}

// GetShopInventory loads the full aggregate including its batch collection.
// Returns nil, nil when the shop has never stocked the drug.
func (r *InventoryRepository) GetShopInventory(ctx context.Context, shopID, drugID string) (*domain.ShopInventory, error) {
	var row inventoryRow
	query := `SELECT * FROM shop_inventories WHERE shop_id = $1 AND drug_id = $2`
	if err := r.db.GetContext(ctx, &row, query, shopID, drugID); err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, err
	}

	inv := row.toDomain()

	batches := []domain.Batch{}
	batchQuery := `
		SELECT id, batch_number, supplier_id, quantity_on_hand, received_date,
		       expiry_date, purchase_price, selling_price, location, status
		FROM inventory_batches
		WHERE inventory_id = $1
		ORDER BY received_date, batch_number
	`
	if err := r.db.SelectContext(ctx, &batches, batchQuery, inv.ID); err != nil {
		return nil, err
	}
	inv.Batches = batches

	return inv, nil
}

// SaveShopInventory persists the full aggregate in one transaction: the
// inventory row is upserted and the batch collection is replaced wholesale.
// The aggregate is always written as a unit so derived totals and batches
// never drift apart.
func (r *InventoryRepository) SaveShopInventory(ctx context.Context, inv *domain.ShopInventory) error {
	if inv.ID == "" {
		inv.ID = uuid.New().String()
	}

	return r.db.Transaction(ctx, func(tx *sqlx.Tx) error {
		query := `
			INSERT INTO shop_inventories (
				id, shop_id, drug_id, total_stock, is_available, reorder_point,
				shop_specific_sell_unit, minimum_sale_quantity,
				cost_price, selling_price, discount_rate, tax_rate, currency,
				packaging_level_prices, last_restock_date, last_price_update
			) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16)
			ON CONFLICT (shop_id, drug_id) DO UPDATE SET
				total_stock = EXCLUDED.total_stock,
				is_available = EXCLUDED.is_available,
				reorder_point = EXCLUDED.reorder_point,
				shop_specific_sell_unit = EXCLUDED.shop_specific_sell_unit,
				minimum_sale_quantity = EXCLUDED.minimum_sale_quantity,
				cost_price = EXCLUDED.cost_price,
				selling_price = EXCLUDED.selling_price,
				discount_rate = EXCLUDED.discount_rate,
				tax_rate = EXCLUDED.tax_rate,
				currency = EXCLUDED.currency,
				packaging_level_prices = EXCLUDED.packaging_level_prices,
				last_restock_date = EXCLUDED.last_restock_date,
				last_price_update = EXCLUDED.last_price_update,
				updated_at = NOW()
			RETURNING id, created_at, updated_at
		`
		err := tx.QueryRowxContext(ctx, query,
			inv.ID, inv.ShopID, inv.DrugID, inv.TotalStock, inv.IsAvailable, inv.ReorderPoint,
			inv.ShopSpecificSellUnit, inv.MinimumSaleQuantity,
			inv.Pricing.CostPrice, inv.Pricing.SellingPrice, inv.Pricing.DiscountRate,
			inv.Pricing.TaxRate, inv.Pricing.Currency, inv.Pricing.PackagingLevelPrices,
			inv.LastRestockDate, inv.LastPriceUpdate,
		).Scan(&inv.ID, &inv.CreatedAt, &inv.UpdatedAt)
		if err != nil {
			return err
		}

		if _, err := tx.ExecContext(ctx, `DELETE FROM inventory_batches WHERE inventory_id = $1`, inv.ID); err != nil {
			return err
		}

		batchQuery := `
			INSERT INTO inventory_batches (
				id, inventory_id, batch_number, supplier_id, quantity_on_hand,
				received_date, expiry_date, purchase_price, selling_price, location, status
			) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
		`
		for i := range inv.Batches {
			b := &inv.Batches[i]
			if b.ID == "" {
				b.ID = uuid.New().String()
			}
			if _, err := tx.ExecContext(ctx, batchQuery,
				b.ID, inv.ID, b.BatchNumber, b.SupplierID, b.QuantityOnHand,
				b.ReceivedDate, b.ExpiryDate, b.PurchasePrice, b.SellingPrice,
				b.Location, b.Status,
			); err != nil {
				return err
			}
		}

		return nil
	})
}

// ListStockedPairs returns every shop-drug pair with available stock, for
// the expiry sweep.
func (r *InventoryRepository) ListStockedPairs(ctx context.Context) ([]domain.InventoryKey, error) {
	pairs := []domain.InventoryKey{}
	query := `SELECT shop_id, drug_id FROM shop_inventories WHERE total_stock > 0 ORDER BY shop_id, drug_id`
	if err := r.db.SelectContext(ctx, &pairs, query); err != nil {
		return nil, err
	}
	return pairs, nil
}

// ListLowStock returns a shop's aggregates at or below their reorder point.
func (r *InventoryRepository) ListLowStock(ctx context.Context, shopID string) ([]*domain.ShopInventory, error) {
	rows := []inventoryRow{}
	query := `
		SELECT * FROM shop_inventories
		WHERE shop_id = $1 AND total_stock <= reorder_point
		ORDER BY drug_id
	`
	if err := r.db.SelectContext(ctx, &rows, query, shopID); err != nil {
		return nil, err
	}

	inventories := make([]*domain.ShopInventory, 0, len(rows))
	for i := range rows {
		inventories = append(inventories, rows[i].toDomain())
	}
	return inventories, nil
}

// ListExpiringBatches returns a shop's active batches expiring within the
// given number of days, soonest first.
func (r *InventoryRepository) ListExpiringBatches(ctx context.Context, shopID string, withinDays int) ([]domain.ExpiringBatch, error) {
	batches := []domain.ExpiringBatch{}
	query := `
		SELECT si.shop_id, si.drug_id, b.batch_number, b.location,
		       b.quantity_on_hand, b.expiry_date
		FROM inventory_batches b
		JOIN shop_inventories si ON si.id = b.inventory_id
		WHERE si.shop_id = $1
		  AND b.status = 'active'
		  AND b.quantity_on_hand > 0
		  AND b.expiry_date <= NOW() + ($2 * INTERVAL '1 day')
		ORDER BY b.expiry_date, b.batch_number
	`
	if err := r.db.SelectContext(ctx, &batches, query, shopID, withinDays); err != nil {
		return nil, err
	}
	return batches, nil
}

// ListShopInventories lists a shop's inventories without batch detail.
func (r *InventoryRepository) ListShopInventories(ctx context.Context, shopID string) ([]*domain.ShopInventory, error) {
	rows := []inventoryRow{}
	query := `SELECT * FROM shop_inventories WHERE shop_id = $1 ORDER BY drug_id`
	if err := r.db.SelectContext(ctx, &rows, query, shopID); err != nil {
		return nil, err
	}

	inventories := make([]*domain.ShopInventory, 0, len(rows))
	for i := range rows {
		inventories = append(inventories, rows[i].toDomain())
	}
	return inventories, nil
}
