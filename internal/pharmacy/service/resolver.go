package service

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/halgurdkamal/pos-system-api-sub000/internal/pharmacy/domain"
	"github.com/halgurdkamal/pos-system-api-sub000/pkg/errors"
	"github.com/halgurdkamal/pos-system-api-sub000/pkg/logger"
)

// PackagingResolver merges a drug's global packaging hierarchy with a shop's
// overrides and custom levels into the effective per-shop unit list, with
// computed conversion factors, resolved prices and a single default sell
// unit.
type PackagingResolver struct {
	packagingStore PackagingStore
	inventoryStore InventoryStore
	logger         *logger.Logger
}

// NewPackagingResolver creates a new packaging resolver
func NewPackagingResolver(packagingStore PackagingStore, inventoryStore InventoryStore, log *logger.Logger) *PackagingResolver {
	return &PackagingResolver{
		packagingStore: packagingStore,
		inventoryStore: inventoryStore,
		logger:         log,
	}
}

// Resolve computes the effective packaging levels for a shop-drug pair.
func (r *PackagingResolver) Resolve(ctx context.Context, shopID, drugID string) ([]domain.EffectivePackagingLevel, error) {
	levels, err := r.packagingStore.GetDrugPackagingLevels(ctx, drugID)
	if err != nil {
		return nil, err
	}
	if len(levels) == 0 {
		return nil, errors.InvalidConfiguration("drug has no packaging levels defined")
	}

	overrides, err := r.packagingStore.GetShopPackagingOverrides(ctx, shopID, drugID)
	if err != nil {
		return nil, err
	}

	inv, err := r.inventoryStore.GetShopInventory(ctx, shopID, drugID)
	if err != nil {
		return nil, err
	}

	srp, err := r.packagingStore.GetDrugSuggestedRetailPrice(ctx, drugID)
	if err != nil {
		return nil, err
	}

	res := &resolution{
		inventory:     inv,
		retailPrice:   srp,
		levelBase:     make(map[string]decimal.Decimal),
		overrideBase:  make(map[string]decimal.Decimal),
		levelByID:     make(map[string]*domain.PackagingLevel),
		levelByNumber: make(map[int]*domain.PackagingLevel),
		overrideByID:  make(map[string]*domain.ShopPackagingOverride),
		inProgress:    make(map[string]bool),
	}

	sort.SliceStable(levels, func(i, j int) bool {
		return levels[i].LevelNumber < levels[j].LevelNumber
	})
	for i := range levels {
		res.levelByID[levels[i].ID] = &levels[i]
		res.levelByNumber[levels[i].LevelNumber] = &levels[i]
	}

	var customs []*domain.ShopPackagingOverride
	overrideByLevelID := make(map[string]*domain.ShopPackagingOverride)
	for i := range overrides {
		ov := &overrides[i]
		res.overrideByID[ov.ID] = ov
		if ov.IsCustom() {
			customs = append(customs, ov)
		} else {
			overrideByLevelID[*ov.PackagingLevelID] = ov
		}
	}

	// Global levels in ascending level-number order, memoizing each level's
	// effective base units so later levels read earlier results in O(1).
	resolved := make([]domain.EffectivePackagingLevel, 0, len(levels)+len(customs))
	for i := range levels {
		level := &levels[i]
		eff, err := res.resolveGlobal(level, overrideByLevelID[level.ID])
		if err != nil {
			return nil, err
		}
		resolved = append(resolved, eff)
	}

	// Custom shop-only levels, resolved recursively through their parent
	// chain with memoization.
	for _, ov := range customs {
		eff, err := res.resolveCustom(ov)
		if err != nil {
			return nil, err
		}
		resolved = append(resolved, eff)
	}

	sortEffectiveLevels(resolved)
	harmonizeDefaultSellUnit(resolved, levels, inv)

	return resolved, nil
}

// resolution carries the per-call memoization state.
type resolution struct {
	inventory     *domain.ShopInventory
	retailPrice   *decimal.Decimal
	levelBase     map[string]decimal.Decimal
	overrideBase  map[string]decimal.Decimal
	levelByID     map[string]*domain.PackagingLevel
	levelByNumber map[int]*domain.PackagingLevel
	overrideByID  map[string]*domain.ShopPackagingOverride
	inProgress    map[string]bool
}

func (res *resolution) resolveGlobal(level *domain.PackagingLevel, ov *domain.ShopPackagingOverride) (domain.EffectivePackagingLevel, error) {
	var base, qpp decimal.Decimal

	if level.LevelNumber == 1 {
		// The base unit is always 1, independent of any override.
		base = decimal.NewFromInt(1)
		qpp = decimal.NewFromInt(1)
	} else {
		qpp = level.QuantityPerParent
		if ov != nil && ov.OverrideQuantityPerParent != nil {
			qpp = *ov.OverrideQuantityPerParent
		}

		parent, err := res.resolveGlobalParent(level)
		if err != nil {
			return domain.EffectivePackagingLevel{}, err
		}
		parentBase, ok := res.levelBase[parent.ID]
		if !ok {
			return domain.EffectivePackagingLevel{}, errors.InvalidConfiguration(fmt.Sprintf(
				"packaging level %q resolves before its parent %q", level.UnitName, parent.UnitName))
		}
		base = parentBase.Mul(qpp)
	}
	res.levelBase[level.ID] = base

	eff := domain.EffectivePackagingLevel{
		LevelID:                    &level.ID,
		LevelNumber:                level.LevelNumber,
		UnitName:                   level.UnitName,
		EffectiveBaseUnitQuantity:  base,
		EffectiveQuantityPerParent: qpp,
		IsSellable:                 level.IsSellable,
		IsBreakable:                level.IsBreakable,
		Barcode:                    level.Barcode,
		MinimumSaleQuantity:        level.MinimumSaleQuantity,
	}

	if ov != nil {
		eff.OverrideID = &ov.ID
		if ov.CustomUnitName != nil && *ov.CustomUnitName != "" {
			eff.UnitName = *ov.CustomUnitName
		}
		if ov.IsSellable != nil {
			eff.IsSellable = *ov.IsSellable
		}
		if ov.IsDefaultSellUnit != nil {
			eff.IsDefaultSellUnit = *ov.IsDefaultSellUnit
		}
	}

	eff.SellingPrice = res.resolvePrice(eff.UnitName, ov)
	eff.MinimumSaleQuantity = res.resolveMinSaleQuantity(level.MinimumSaleQuantity, ov)

	return eff, nil
}

// resolveGlobalParent prefers the explicit parent pointer; when absent
// (legacy data) it falls back to the level whose number is exactly one less.
func (res *resolution) resolveGlobalParent(level *domain.PackagingLevel) (*domain.PackagingLevel, error) {
	if level.ParentLevelID != nil {
		parent, ok := res.levelByID[*level.ParentLevelID]
		if !ok {
			return nil, errors.InvalidConfiguration(fmt.Sprintf(
				"packaging level %q references missing parent level %s", level.UnitName, *level.ParentLevelID))
		}
		return parent, nil
	}
	parent, ok := res.levelByNumber[level.LevelNumber-1]
	if !ok {
		return nil, errors.InvalidConfiguration(fmt.Sprintf(
			"packaging level %q (level %d) has no parent level %d", level.UnitName, level.LevelNumber, level.LevelNumber-1))
	}
	return parent, nil
}

func (res *resolution) resolveCustom(ov *domain.ShopPackagingOverride) (domain.EffectivePackagingLevel, error) {
	base, err := res.customBaseUnits(ov)
	if err != nil {
		return domain.EffectivePackagingLevel{}, err
	}

	unitName := ""
	if ov.CustomUnitName != nil {
		unitName = *ov.CustomUnitName
	}
	if unitName == "" {
		return domain.EffectivePackagingLevel{}, errors.InvalidConfiguration(fmt.Sprintf(
			"custom packaging level %s has no unit name", ov.ID))
	}

	eff := domain.EffectivePackagingLevel{
		OverrideID:                 &ov.ID,
		IsCustom:                   true,
		UnitName:                   unitName,
		EffectiveBaseUnitQuantity:  base,
		EffectiveQuantityPerParent: *ov.OverrideQuantityPerParent,
		IsSellable:                 true,
		CustomLevelOrder:           ov.CustomLevelOrder,
	}
	if ov.IsSellable != nil {
		eff.IsSellable = *ov.IsSellable
	}
	if ov.IsDefaultSellUnit != nil {
		eff.IsDefaultSellUnit = *ov.IsDefaultSellUnit
	}

	eff.SellingPrice = res.resolvePrice(unitName, ov)
	eff.MinimumSaleQuantity = res.resolveMinSaleQuantity(nil, ov)

	return eff, nil
}

// customBaseUnits resolves a custom level's effective base units through its
// parent chain, memoized by override ID. The chain may pass through other
// custom overrides before reaching a global level. A visited set guards
// against parent chains that loop back into their own ancestry.
func (res *resolution) customBaseUnits(ov *domain.ShopPackagingOverride) (decimal.Decimal, error) {
	if base, ok := res.overrideBase[ov.ID]; ok {
		return base, nil
	}
	if res.inProgress[ov.ID] {
		return decimal.Zero, errors.CyclicConfiguration(fmt.Sprintf(
			"custom packaging level %s is part of a parent cycle", ov.ID))
	}
	res.inProgress[ov.ID] = true
	defer delete(res.inProgress, ov.ID)

	if ov.OverrideQuantityPerParent == nil || !ov.OverrideQuantityPerParent.IsPositive() {
		return decimal.Zero, errors.InvalidConfiguration(fmt.Sprintf(
			"custom packaging level %s requires a positive quantity per parent", ov.ID))
	}

	var parentBase decimal.Decimal
	switch {
	case ov.ParentOverrideID != nil:
		parent, ok := res.overrideByID[*ov.ParentOverrideID]
		if !ok {
			return decimal.Zero, errors.InvalidConfiguration(fmt.Sprintf(
				"custom packaging level %s references missing parent override %s", ov.ID, *ov.ParentOverrideID))
		}
		base, err := res.customBaseUnits(parent)
		if err != nil {
			return decimal.Zero, err
		}
		parentBase = base
	case ov.ParentPackagingLevelID != nil:
		base, ok := res.levelBase[*ov.ParentPackagingLevelID]
		if !ok {
			return decimal.Zero, errors.InvalidConfiguration(fmt.Sprintf(
				"custom packaging level %s references missing parent level %s", ov.ID, *ov.ParentPackagingLevelID))
		}
		parentBase = base
	default:
		return decimal.Zero, errors.InvalidConfiguration(fmt.Sprintf(
			"custom packaging level %s has no parent", ov.ID))
	}

	base := parentBase.Mul(*ov.OverrideQuantityPerParent)
	res.overrideBase[ov.ID] = base
	return base, nil
}

// resolvePrice applies the per-level price fallback chain: override price,
// then the shop's pricing map entry for the unit name, then the shop's
// overall selling price, then the drug's suggested retail price, else nil.
func (res *resolution) resolvePrice(unitName string, ov *domain.ShopPackagingOverride) *decimal.Decimal {
	if ov != nil && ov.SellingPrice != nil {
		p := *ov.SellingPrice
		return &p
	}
	if res.inventory != nil {
		if price, ok := res.inventory.Pricing.PriceFor(unitName); ok {
			return &price
		}
		if !res.inventory.Pricing.SellingPrice.IsZero() {
			p := res.inventory.Pricing.SellingPrice
			return &p
		}
	}
	if res.retailPrice != nil {
		p := *res.retailPrice
		return &p
	}
	return nil
}

// resolveMinSaleQuantity resolves override, then the global level, then the
// shop-level fallback, in that order.
func (res *resolution) resolveMinSaleQuantity(levelMin *decimal.Decimal, ov *domain.ShopPackagingOverride) *decimal.Decimal {
	if ov != nil && ov.MinimumSaleQuantity != nil {
		q := *ov.MinimumSaleQuantity
		return &q
	}
	if levelMin != nil {
		q := *levelMin
		return &q
	}
	if res.inventory != nil && res.inventory.MinimumSaleQuantity != nil {
		q := *res.inventory.MinimumSaleQuantity
		return &q
	}
	return nil
}

// sortEffectiveLevels orders globals first by level number, then customs by
// their explicit order when present, falling back to unit name; all ties
// break alphabetically by unit name.
func sortEffectiveLevels(levels []domain.EffectivePackagingLevel) {
	sort.SliceStable(levels, func(i, j int) bool {
		a, b := &levels[i], &levels[j]
		if a.IsCustom != b.IsCustom {
			return !a.IsCustom
		}
		if !a.IsCustom {
			if a.LevelNumber != b.LevelNumber {
				return a.LevelNumber < b.LevelNumber
			}
			return lessUnitName(a.UnitName, b.UnitName)
		}
		switch {
		case a.CustomLevelOrder != nil && b.CustomLevelOrder != nil:
			if *a.CustomLevelOrder != *b.CustomLevelOrder {
				return *a.CustomLevelOrder < *b.CustomLevelOrder
			}
		case a.CustomLevelOrder != nil:
			return true
		case b.CustomLevelOrder != nil:
			return false
		}
		return lessUnitName(a.UnitName, b.UnitName)
	})
}

func lessUnitName(a, b string) bool {
	la, lb := strings.ToLower(a), strings.ToLower(b)
	if la != lb {
		return la < lb
	}
	return a < b
}

// harmonizeDefaultSellUnit enforces a single default sell unit: an explicit
// override flag wins, else the shop's preferred sell unit by name, else the
// global default level, else the first sellable level in final order.
func harmonizeDefaultSellUnit(levels []domain.EffectivePackagingLevel, globals []domain.PackagingLevel, inv *domain.ShopInventory) {
	if len(levels) == 0 {
		return
	}

	winner := -1
	for i := range levels {
		if levels[i].IsDefaultSellUnit {
			winner = i
			break
		}
	}

	if winner < 0 && inv != nil {
		for i := range levels {
			if inv.MatchesSellUnit(levels[i].UnitName) {
				winner = i
				break
			}
		}
	}

	if winner < 0 {
		for _, g := range globals {
			if !g.IsDefault {
				continue
			}
			for i := range levels {
				if levels[i].LevelID != nil && *levels[i].LevelID == g.ID {
					winner = i
					break
				}
			}
			if winner >= 0 {
				break
			}
		}
	}

	if winner < 0 {
		for i := range levels {
			if levels[i].IsSellable {
				winner = i
				break
			}
		}
	}
	if winner < 0 {
		winner = 0
	}

	for i := range levels {
		levels[i].IsDefaultSellUnit = i == winner
	}
}
