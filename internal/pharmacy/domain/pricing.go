package domain

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"

	"github.com/shopspring/decimal"
)

// PriceMap maps a packaging unit name to its per-unit selling price.
// A zero entry means "unset / auto-calculate"; a non-zero entry is a shop
// override that the price cascade never touches. Stored as JSONB.
type PriceMap map[string]decimal.Decimal

// Value implements driver.Valuer for JSONB storage.
func (m PriceMap) Value() (driver.Value, error) {
	if m == nil {
		return []byte("{}"), nil
	}
	return json.Marshal(m)
}

// Scan implements sql.Scanner for JSONB storage.
func (m *PriceMap) Scan(src interface{}) error {
	if src == nil {
		*m = PriceMap{}
		return nil
	}
	var data []byte
	switch v := src.(type) {
	case []byte:
		data = v
	case string:
		data = []byte(v)
	default:
		return fmt.Errorf("cannot scan %T into PriceMap", src)
	}
	return json.Unmarshal(data, m)
}

// ShopPricing holds the shop-level pricing for one shop-drug pair.
type ShopPricing struct {
	CostPrice            decimal.Decimal `db:"cost_price" json:"cost_price"`
	SellingPrice         decimal.Decimal `db:"selling_price" json:"selling_price"`
	DiscountRate         decimal.Decimal `db:"discount_rate" json:"discount_rate"`
	TaxRate              decimal.Decimal `db:"tax_rate" json:"tax_rate"`
	Currency             string          `db:"currency" json:"currency"`
	PackagingLevelPrices PriceMap        `db:"packaging_level_prices" json:"packaging_level_prices"`
}

// PriceFor returns the per-unit price for a unit name if it is set to a
// non-zero value. Zero entries are treated as unset.
func (p *ShopPricing) PriceFor(unitName string) (decimal.Decimal, bool) {
	if p == nil || p.PackagingLevelPrices == nil {
		return decimal.Zero, false
	}
	price, ok := p.PackagingLevelPrices[unitName]
	if !ok || price.IsZero() {
		return decimal.Zero, false
	}
	return price, true
}
