package repository

import (
	"context"
	"database/sql"

	"github.com/shopspring/decimal"

	"github.com/halgurdkamal/pos-system-api-sub000/internal/pharmacy/domain"
	"github.com/halgurdkamal/pos-system-api-sub000/pkg/database"
	"github.com/halgurdkamal/pos-system-api-sub000/pkg/errors"
)

// PackagingRepository handles packaging configuration persistence
type PackagingRepository struct {
	db *database.DB
}

// NewPackagingRepository creates a new packaging repository
func NewPackagingRepository(db *database.DB) *PackagingRepository {
	return &PackagingRepository{db: db}
}

// GetDrugPackagingLevels returns a drug's global packaging hierarchy ordered
// by level number. Fails with NotFound when the drug itself does not exist;
// an existing drug with no levels returns an empty slice.
func (r *PackagingRepository) GetDrugPackagingLevels(ctx context.Context, drugID string) ([]domain.PackagingLevel, error) {
	var exists bool
	if err := r.db.GetContext(ctx, &exists, `SELECT EXISTS(SELECT 1 FROM drugs WHERE id = $1)`, drugID); err != nil {
		return nil, err
	}
	if !exists {
		return nil, errors.NotFound("drug")
	}

	levels := []domain.PackagingLevel{}
	query := `
		SELECT * FROM packaging_levels
		WHERE drug_id = $1
		ORDER BY level_number
	`
	if err := r.db.SelectContext(ctx, &levels, query, drugID); err != nil {
		return nil, err
	}
	return levels, nil
}

// GetShopPackagingOverrides returns the shop's overrides and custom levels
// for a drug.
func (r *PackagingRepository) GetShopPackagingOverrides(ctx context.Context, shopID, drugID string) ([]domain.ShopPackagingOverride, error) {
	overrides := []domain.ShopPackagingOverride{}
	query := `
		SELECT * FROM shop_packaging_overrides
		WHERE shop_id = $1 AND drug_id = $2
		ORDER BY created_at
	`
	if err := r.db.SelectContext(ctx, &overrides, query, shopID, drugID); err != nil {
		return nil, err
	}
	return overrides, nil
}

// GetDrugSuggestedRetailPrice returns the drug's suggested retail price, or
// nil when none is set.
func (r *PackagingRepository) GetDrugSuggestedRetailPrice(ctx context.Context, drugID string) (*decimal.Decimal, error) {
	var price *decimal.Decimal
	query := `SELECT suggested_retail_price FROM drugs WHERE id = $1`
	if err := r.db.GetContext(ctx, &price, query, drugID); err != nil {
		if err == sql.ErrNoRows {
			return nil, errors.NotFound("drug")
		}
		return nil, err
	}
	return price, nil
}

// SavePackagingLevel upserts one global packaging level.
func (r *PackagingRepository) SavePackagingLevel(ctx context.Context, level *domain.PackagingLevel) error {
	query := `
		INSERT INTO packaging_levels (
			id, drug_id, level_number, unit_name, base_unit_quantity,
			is_sellable, is_default, is_breakable, barcode,
			minimum_sale_quantity, parent_level_id, quantity_per_parent
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
		ON CONFLICT (id) DO UPDATE SET
			level_number = EXCLUDED.level_number,
			unit_name = EXCLUDED.unit_name,
			base_unit_quantity = EXCLUDED.base_unit_quantity,
			is_sellable = EXCLUDED.is_sellable,
			is_default = EXCLUDED.is_default,
			is_breakable = EXCLUDED.is_breakable,
			barcode = EXCLUDED.barcode,
			minimum_sale_quantity = EXCLUDED.minimum_sale_quantity,
			parent_level_id = EXCLUDED.parent_level_id,
			quantity_per_parent = EXCLUDED.quantity_per_parent,
			updated_at = NOW()
		RETURNING created_at, updated_at
	`
	return r.db.QueryRowxContext(ctx, query,
		level.ID, level.DrugID, level.LevelNumber, level.UnitName, level.BaseUnitQuantity,
		level.IsSellable, level.IsDefault, level.IsBreakable, level.Barcode,
		level.MinimumSaleQuantity, level.ParentLevelID, level.QuantityPerParent,
	).Scan(&level.CreatedAt, &level.UpdatedAt)
}

// SaveShopPackagingOverride upserts one shop override or custom level.
func (r *PackagingRepository) SaveShopPackagingOverride(ctx context.Context, o *domain.ShopPackagingOverride) error {
	query := `
		INSERT INTO shop_packaging_overrides (
			id, shop_id, drug_id, packaging_level_id, parent_packaging_level_id,
			parent_override_id, custom_unit_name, override_quantity_per_parent,
			selling_price, is_sellable, is_default_sell_unit,
			minimum_sale_quantity, custom_level_order
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
		ON CONFLICT (id) DO UPDATE SET
			packaging_level_id = EXCLUDED.packaging_level_id,
			parent_packaging_level_id = EXCLUDED.parent_packaging_level_id,
			parent_override_id = EXCLUDED.parent_override_id,
			custom_unit_name = EXCLUDED.custom_unit_name,
			override_quantity_per_parent = EXCLUDED.override_quantity_per_parent,
			selling_price = EXCLUDED.selling_price,
			is_sellable = EXCLUDED.is_sellable,
			is_default_sell_unit = EXCLUDED.is_default_sell_unit,
			minimum_sale_quantity = EXCLUDED.minimum_sale_quantity,
			custom_level_order = EXCLUDED.custom_level_order,
			updated_at = NOW()
		RETURNING created_at, updated_at
	`
	return r.db.QueryRowxContext(ctx, query,
		o.ID, o.ShopID, o.DrugID, o.PackagingLevelID, o.ParentPackagingLevelID,
		o.ParentOverrideID, o.CustomUnitName, o.OverrideQuantityPerParent,
		o.SellingPrice, o.IsSellable, o.IsDefaultSellUnit,
		o.MinimumSaleQuantity, o.CustomLevelOrder,
	).Scan(&o.CreatedAt, &o.UpdatedAt)
}

// DeleteShopPackagingOverride removes one override.
func (r *PackagingRepository) DeleteShopPackagingOverride(ctx context.Context, id string) error {
	result, err := r.db.ExecContext(ctx, `DELETE FROM shop_packaging_overrides WHERE id = $1`, id)
	if err != nil {
		return err
	}
	affected, _ := result.RowsAffected()
	if affected == 0 {
		return errors.NotFound("packaging override")
	}
	return nil
}
