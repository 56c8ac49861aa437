package service

import (
	"context"
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"github.com/halgurdkamal/pos-system-api-sub000/internal/pharmacy/domain"
	"github.com/halgurdkamal/pos-system-api-sub000/pkg/errors"
	"github.com/halgurdkamal/pos-system-api-sub000/pkg/logger"
)

// PriceChangeType classifies the cascade's handling of one packaging unit
type PriceChangeType string

const (
	// PriceAdded means the unit had no price entry and one was derived
	PriceAdded PriceChangeType = "added"
	// PriceAutoCalculated means a zero ("unset") entry was overwritten
	PriceAutoCalculated PriceChangeType = "auto_calculated"
	// CustomPriceKept means a non-zero shop override was left untouched
	CustomPriceKept PriceChangeType = "custom_price_kept"
)

// PriceChange is one audit entry produced by the cascade.
type PriceChange struct {
	UnitName   string           `json:"unit_name"`
	ChangeType PriceChangeType  `json:"change_type"`
	OldPrice   *decimal.Decimal `json:"old_price,omitempty"`
	NewPrice   *decimal.Decimal `json:"new_price,omitempty"`
	Multiplier decimal.Decimal  `json:"multiplier"`
	Formula    string           `json:"formula"`
}

// PriceCascade derives per-unit selling prices on the inventory aggregate
// from the currently active batch, using the resolver's effective levels.
// Units priced explicitly by the shop are never overwritten, so re-running
// the cascade against the same batch is a no-op.
type PriceCascade struct {
	resolver *PackagingResolver
	logger   *logger.Logger
}

// NewPriceCascade creates a new price cascade
func NewPriceCascade(resolver *PackagingResolver, log *logger.Logger) *PriceCascade {
	return &PriceCascade{
		resolver: resolver,
		logger:   log,
	}
}

// UpdateFromActiveBatch refreshes the aggregate's packaging price map from
// the active batch's selling price. Each unit's price is the batch price
// multiplied by the unit's effective base-unit quantity, rounded to two
// decimals (half away from zero).
func (c *PriceCascade) UpdateFromActiveBatch(ctx context.Context, inv *domain.ShopInventory, batch *domain.Batch) ([]PriceChange, error) {
	if inv == nil {
		return nil, errors.BadRequest("inventory is required")
	}
	if batch == nil {
		return nil, errors.BadRequest("active batch is required")
	}

	levels, err := c.resolver.Resolve(ctx, inv.ShopID, inv.DrugID)
	if err != nil {
		return nil, err
	}

	if inv.Pricing.PackagingLevelPrices == nil {
		inv.Pricing.PackagingLevelPrices = domain.PriceMap{}
	}

	changes := make([]PriceChange, 0, len(levels))
	for i := range levels {
		level := &levels[i]
		derived := batch.SellingPrice.Mul(level.EffectiveBaseUnitQuantity).Round(2)
		formula := fmt.Sprintf("%s = %s x %s", derived, batch.SellingPrice, level.EffectiveBaseUnitQuantity)

		existing, present := inv.Pricing.PackagingLevelPrices[level.UnitName]
		switch {
		case !present:
			inv.Pricing.PackagingLevelPrices[level.UnitName] = derived
			changes = append(changes, PriceChange{
				UnitName:   level.UnitName,
				ChangeType: PriceAdded,
				NewPrice:   &derived,
				Multiplier: level.EffectiveBaseUnitQuantity,
				Formula:    formula,
			})
		case existing.IsZero():
			// Zero means "unset / auto": overwrite it.
			inv.Pricing.PackagingLevelPrices[level.UnitName] = derived
			old := existing
			changes = append(changes, PriceChange{
				UnitName:   level.UnitName,
				ChangeType: PriceAutoCalculated,
				OldPrice:   &old,
				NewPrice:   &derived,
				Multiplier: level.EffectiveBaseUnitQuantity,
				Formula:    formula,
			})
		default:
			// The shop has priced this unit explicitly; it wins.
			old := existing
			changes = append(changes, PriceChange{
				UnitName:   level.UnitName,
				ChangeType: CustomPriceKept,
				OldPrice:   &old,
				NewPrice:   &old,
				Multiplier: level.EffectiveBaseUnitQuantity,
				Formula:    formula,
			})
		}
	}

	now := time.Now().UTC()
	inv.LastPriceUpdate = &now

	c.logger.Debug().
		Str("shop_id", inv.ShopID).
		Str("drug_id", inv.DrugID).
		Str("batch_number", batch.BatchNumber).
		Int("levels", len(levels)).
		Msg("packaging price cascade applied")

	return changes, nil
}
