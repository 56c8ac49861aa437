package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// PackagingLevel is one rung of a drug's canonical unit-of-measure hierarchy
// (e.g. Tablet -> Strip -> Box -> Carton). Levels are defined globally per
// drug and shared across all shops; level 1 is always the base unit.
type PackagingLevel struct {
	ID                  string           `db:"id" json:"id"`
	DrugID              string           `db:"drug_id" json:"drug_id"`
	LevelNumber         int              `db:"level_number" json:"level_number"`
	UnitName            string           `db:"unit_name" json:"unit_name"`
	BaseUnitQuantity    decimal.Decimal  `db:"base_unit_quantity" json:"base_unit_quantity"`
	IsSellable          bool             `db:"is_sellable" json:"is_sellable"`
	IsDefault           bool             `db:"is_default" json:"is_default"`
	IsBreakable         bool             `db:"is_breakable" json:"is_breakable"`
	Barcode             *string          `db:"barcode" json:"barcode,omitempty"`
	MinimumSaleQuantity *decimal.Decimal `db:"minimum_sale_quantity" json:"minimum_sale_quantity,omitempty"`
	ParentLevelID       *string          `db:"parent_level_id" json:"parent_level_id,omitempty"`
	QuantityPerParent   decimal.Decimal  `db:"quantity_per_parent" json:"quantity_per_parent"`
	CreatedAt           time.Time        `db:"created_at" json:"created_at"`
	UpdatedAt           time.Time        `db:"updated_at" json:"updated_at"`
}

// ShopPackagingOverride is a shop-specific modification of a global packaging
// level, or a fully custom shop-defined level when PackagingLevelID is nil.
// Custom levels may chain off other custom levels via ParentOverrideID.
type ShopPackagingOverride struct {
	ID                        string           `db:"id" json:"id"`
	ShopID                    string           `db:"shop_id" json:"shop_id"`
	DrugID                    string           `db:"drug_id" json:"drug_id"`
	PackagingLevelID          *string          `db:"packaging_level_id" json:"packaging_level_id,omitempty"`
	ParentPackagingLevelID    *string          `db:"parent_packaging_level_id" json:"parent_packaging_level_id,omitempty"`
	ParentOverrideID          *string          `db:"parent_override_id" json:"parent_override_id,omitempty"`
	CustomUnitName            *string          `db:"custom_unit_name" json:"custom_unit_name,omitempty"`
	OverrideQuantityPerParent *decimal.Decimal `db:"override_quantity_per_parent" json:"override_quantity_per_parent,omitempty"`
	SellingPrice              *decimal.Decimal `db:"selling_price" json:"selling_price,omitempty"`
	IsSellable                *bool            `db:"is_sellable" json:"is_sellable,omitempty"`
	IsDefaultSellUnit         *bool            `db:"is_default_sell_unit" json:"is_default_sell_unit,omitempty"`
	MinimumSaleQuantity       *decimal.Decimal `db:"minimum_sale_quantity" json:"minimum_sale_quantity,omitempty"`
	CustomLevelOrder          *int             `db:"custom_level_order" json:"custom_level_order,omitempty"`
	CreatedAt                 time.Time        `db:"created_at" json:"created_at"`
	UpdatedAt                 time.Time        `db:"updated_at" json:"updated_at"`
}

// IsCustom reports whether the override defines a fully custom shop-only
// level rather than modifying a global one.
func (o *ShopPackagingOverride) IsCustom() bool {
	return o.PackagingLevelID == nil
}

// EffectivePackagingLevel is the merged per-shop view of a packaging level.
// It is computed by the resolver, never persisted.
type EffectivePackagingLevel struct {
	// Provenance: LevelID is set for global levels, OverrideID for any
	// applied override (both set when a shop overrides a global level).
	LevelID    *string `json:"level_id,omitempty"`
	OverrideID *string `json:"override_id,omitempty"`
	IsCustom   bool    `json:"is_custom"`

	LevelNumber                int              `json:"level_number,omitempty"`
	UnitName                   string           `json:"unit_name"`
	EffectiveBaseUnitQuantity  decimal.Decimal  `json:"effective_base_unit_quantity"`
	EffectiveQuantityPerParent decimal.Decimal  `json:"effective_quantity_per_parent"`
	SellingPrice               *decimal.Decimal `json:"selling_price,omitempty"`
	IsSellable                 bool             `json:"is_sellable"`
	IsDefaultSellUnit          bool             `json:"is_default_sell_unit"`
	IsBreakable                bool             `json:"is_breakable"`
	Barcode                    *string          `json:"barcode,omitempty"`
	MinimumSaleQuantity        *decimal.Decimal `json:"minimum_sale_quantity,omitempty"`
	CustomLevelOrder           *int             `json:"custom_level_order,omitempty"`
}
