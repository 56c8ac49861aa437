package service_test

import (
	"context"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/halgurdkamal/pos-system-api-sub000/internal/pharmacy/domain"
	"github.com/halgurdkamal/pos-system-api-sub000/internal/pharmacy/service"
	apperrors "github.com/halgurdkamal/pos-system-api-sub000/pkg/errors"
	"github.com/halgurdkamal/pos-system-api-sub000/pkg/logger"
	"github.com/halgurdkamal/pos-system-api-sub000/pkg/testutil"
)

var fixtures = testutil.NewFixtureFactory()

// ==== fakes ====

type fakePackagingStore struct {
	levels    []domain.PackagingLevel
	overrides []domain.ShopPackagingOverride
	srp       *decimal.Decimal
}

func (f *fakePackagingStore) GetDrugPackagingLevels(_ context.Context, _ string) ([]domain.PackagingLevel, error) {
	out := make([]domain.PackagingLevel, len(f.levels))
	copy(out, f.levels)
	return out, nil
}

func (f *fakePackagingStore) GetShopPackagingOverrides(_ context.Context, _, _ string) ([]domain.ShopPackagingOverride, error) {
	out := make([]domain.ShopPackagingOverride, len(f.overrides))
	copy(out, f.overrides)
	return out, nil
}

func (f *fakePackagingStore) GetDrugSuggestedRetailPrice(_ context.Context, _ string) (*decimal.Decimal, error) {
	return f.srp, nil
}

func (f *fakePackagingStore) SaveShopPackagingOverride(_ context.Context, o *domain.ShopPackagingOverride) error {
	for i := range f.overrides {
		if f.overrides[i].ID == o.ID {
			f.overrides[i] = *o
			return nil
		}
	}
	f.overrides = append(f.overrides, *o)
	return nil
}

func (f *fakePackagingStore) DeleteShopPackagingOverride(_ context.Context, id string) error {
	for i := range f.overrides {
		if f.overrides[i].ID == id {
			f.overrides = append(f.overrides[:i], f.overrides[i+1:]...)
			return nil
		}
	}
	return apperrors.NotFound("packaging override")
}

type fakeInventoryStore struct {
	inventories map[domain.InventoryKey]*domain.ShopInventory
	pairs       []domain.InventoryKey
	saved       []*domain.ShopInventory
}

func newFakeInventoryStore() *fakeInventoryStore {
	return &fakeInventoryStore{inventories: make(map[domain.InventoryKey]*domain.ShopInventory)}
}

func (f *fakeInventoryStore) put(inv *domain.ShopInventory) {
	f.inventories[domain.InventoryKey{ShopID: inv.ShopID, DrugID: inv.DrugID}] = inv
}

func (f *fakeInventoryStore) GetShopInventory(_ context.Context, shopID, drugID string) (*domain.ShopInventory, error) {
	return f.inventories[domain.InventoryKey{ShopID: shopID, DrugID: drugID}], nil
}

func (f *fakeInventoryStore) SaveShopInventory(_ context.Context, inv *domain.ShopInventory) error {
	f.put(inv)
	f.saved = append(f.saved, inv)
	return nil
}

func (f *fakeInventoryStore) ListStockedPairs(_ context.Context) ([]domain.InventoryKey, error) {
	return f.pairs, nil
}

func (f *fakeInventoryStore) ListShopInventories(_ context.Context, shopID string) ([]*domain.ShopInventory, error) {
	var out []*domain.ShopInventory
	for _, inv := range f.inventories {
		if inv.ShopID == shopID {
			out = append(out, inv)
		}
	}
	return out, nil
}

func (f *fakeInventoryStore) ListLowStock(_ context.Context, shopID string) ([]*domain.ShopInventory, error) {
	var low []*domain.ShopInventory
	for _, inv := range f.inventories {
		if inv.ShopID == shopID && inv.IsLowStock() {
			low = append(low, inv)
		}
	}
	return low, nil
}

func (f *fakeInventoryStore) ListExpiringBatches(_ context.Context, shopID string, withinDays int) ([]domain.ExpiringBatch, error) {
	var out []domain.ExpiringBatch
	for _, inv := range f.inventories {
		if inv.ShopID != shopID {
			continue
		}
		for _, b := range inv.GetExpiringBatches(withinDays, timeNow()) {
			out = append(out, domain.ExpiringBatch{
				ShopID:         inv.ShopID,
				DrugID:         inv.DrugID,
				BatchNumber:    b.BatchNumber,
				Location:       b.Location,
				QuantityOnHand: b.QuantityOnHand,
				ExpiryDate:     b.ExpiryDate,
			})
		}
	}
	return out, nil
}

func timeNow() time.Time { return time.Now().UTC() }

// ==== helpers ====

func strPtr(s string) *string { return &s }

func boolPtr(b bool) *bool { return &b }

func intPtr(i int) *int { return &i }

func decPtr(d decimal.Decimal) *decimal.Decimal { return &d }

func testLogger() *logger.Logger {
	return logger.New("test", "development")
}

// tabletStripBox builds the canonical hierarchy: 1 Box = 10 Strips,
// 1 Strip = 10 Tablets.
func tabletStripBox() []domain.PackagingLevel {
	return []domain.PackagingLevel{
		{
			ID:                "lvl-tablet",
			DrugID:            "drug-1",
			LevelNumber:       1,
			UnitName:          "Tablet",
			IsSellable:        true,
			IsDefault:         true,
			BaseUnitQuantity:  decimal.NewFromInt(1),
			QuantityPerParent: decimal.NewFromInt(1),
		},
		{
			ID:                "lvl-strip",
			DrugID:            "drug-1",
			LevelNumber:       2,
			UnitName:          "Strip",
			IsSellable:        true,
			ParentLevelID:     strPtr("lvl-tablet"),
			BaseUnitQuantity:  decimal.NewFromInt(10),
			QuantityPerParent: decimal.NewFromInt(10),
		},
		{
			ID:                "lvl-box",
			DrugID:            "drug-1",
			LevelNumber:       3,
			UnitName:          "Box",
			IsSellable:        true,
			ParentLevelID:     strPtr("lvl-strip"),
			BaseUnitQuantity:  decimal.NewFromInt(100),
			QuantityPerParent: decimal.NewFromInt(10),
		},
	}
}

func newResolver(pkg *fakePackagingStore, inv *fakeInventoryStore) *service.PackagingResolver {
	return service.NewPackagingResolver(pkg, inv, testLogger())
}

func levelByName(t *testing.T, levels []domain.EffectivePackagingLevel, name string) *domain.EffectivePackagingLevel {
	t.Helper()
	for i := range levels {
		if levels[i].UnitName == name {
			return &levels[i]
		}
	}
	t.Fatalf("no effective level named %q", name)
	return nil
}

// ==== tests ====

func TestResolve_GlobalHierarchyOnly(t *testing.T) {
	resolver := newResolver(&fakePackagingStore{levels: tabletStripBox()}, newFakeInventoryStore())

	levels, err := resolver.Resolve(context.Background(), "shop-1", "drug-1")
	require.NoError(t, err)
	require.Len(t, levels, 3)

	assert.Equal(t, "Tablet", levels[0].UnitName)
	assert.True(t, levels[0].EffectiveBaseUnitQuantity.Equal(decimal.NewFromInt(1)))
	assert.Equal(t, "Strip", levels[1].UnitName)
	assert.True(t, levels[1].EffectiveBaseUnitQuantity.Equal(decimal.NewFromInt(10)))
	assert.Equal(t, "Box", levels[2].UnitName)
	assert.True(t, levels[2].EffectiveBaseUnitQuantity.Equal(decimal.NewFromInt(100)))

	// The global default carries through.
	assert.True(t, levels[0].IsDefaultSellUnit)
	assert.False(t, levels[1].IsDefaultSellUnit)
	assert.False(t, levels[2].IsDefaultSellUnit)
}

func TestResolve_OverrideQuantityCascadesToChildren(t *testing.T) {
	// The shop packs 12 tablets per strip; boxes still hold 10 strips, so a
	// box becomes 120 tablets.
	pkg := &fakePackagingStore{
		levels: tabletStripBox(),
		overrides: []domain.ShopPackagingOverride{{
			ID:                        "ov-strip",
			ShopID:                    "shop-1",
			DrugID:                    "drug-1",
			PackagingLevelID:          strPtr("lvl-strip"),
			OverrideQuantityPerParent: decPtr(decimal.NewFromInt(12)),
		}},
	}
	resolver := newResolver(pkg, newFakeInventoryStore())

	levels, err := resolver.Resolve(context.Background(), "shop-1", "drug-1")
	require.NoError(t, err)

	strip := levelByName(t, levels, "Strip")
	assert.True(t, strip.EffectiveBaseUnitQuantity.Equal(decimal.NewFromInt(12)))
	require.NotNil(t, strip.OverrideID)

	box := levelByName(t, levels, "Box")
	assert.True(t, box.EffectiveBaseUnitQuantity.Equal(decimal.NewFromInt(120)))
}

func TestResolve_BaseLevelAlwaysOne(t *testing.T) {
	// An override on level 1 cannot change its conversion factor.
	pkg := &fakePackagingStore{
		levels: tabletStripBox(),
		overrides: []domain.ShopPackagingOverride{{
			ID:                        "ov-tablet",
			ShopID:                    "shop-1",
			DrugID:                    "drug-1",
			PackagingLevelID:          strPtr("lvl-tablet"),
			OverrideQuantityPerParent: decPtr(decimal.NewFromInt(5)),
			CustomUnitName:            strPtr("Pill"),
		}},
	}
	resolver := newResolver(pkg, newFakeInventoryStore())

	levels, err := resolver.Resolve(context.Background(), "shop-1", "drug-1")
	require.NoError(t, err)

	pill := levelByName(t, levels, "Pill")
	assert.True(t, pill.EffectiveBaseUnitQuantity.Equal(decimal.NewFromInt(1)))
}

func TestResolve_LegacyParentFallbackByLevelNumber(t *testing.T) {
	levels := tabletStripBox()
	levels[1].ParentLevelID = nil
	levels[2].ParentLevelID = nil
	resolver := newResolver(&fakePackagingStore{levels: levels}, newFakeInventoryStore())

	resolved, err := resolver.Resolve(context.Background(), "shop-1", "drug-1")
	require.NoError(t, err)

	box := levelByName(t, resolved, "Box")
	assert.True(t, box.EffectiveBaseUnitQuantity.Equal(decimal.NewFromInt(100)))
}

func TestResolve_MissingParentFails(t *testing.T) {
	levels := tabletStripBox()
	levels[2].ParentLevelID = strPtr("lvl-missing")
	resolver := newResolver(&fakePackagingStore{levels: levels}, newFakeInventoryStore())

	_, err := resolver.Resolve(context.Background(), "shop-1", "drug-1")
	require.Error(t, err)
	assert.True(t, apperrors.Is(err, apperrors.ErrInvalidConfiguration))
}

func TestResolve_NoLevelsFails(t *testing.T) {
	resolver := newResolver(&fakePackagingStore{}, newFakeInventoryStore())

	_, err := resolver.Resolve(context.Background(), "shop-1", "drug-1")
	require.Error(t, err)
	assert.True(t, apperrors.Is(err, apperrors.ErrInvalidConfiguration))
}

func TestResolve_CustomLevelOffGlobalParent(t *testing.T) {
	// Half-strip: 5 tablets, chained off the strip level.
	pkg := &fakePackagingStore{
		levels: tabletStripBox(),
		overrides: []domain.ShopPackagingOverride{{
			ID:                        "ov-half",
			ShopID:                    "shop-1",
			DrugID:                    "drug-1",
			CustomUnitName:            strPtr("Half-Strip"),
			ParentPackagingLevelID:    strPtr("lvl-tablet"),
			OverrideQuantityPerParent: decPtr(decimal.NewFromInt(5)),
		}},
	}
	resolver := newResolver(pkg, newFakeInventoryStore())

	levels, err := resolver.Resolve(context.Background(), "shop-1", "drug-1")
	require.NoError(t, err)
	require.Len(t, levels, 4)

	half := levelByName(t, levels, "Half-Strip")
	assert.True(t, half.IsCustom)
	assert.True(t, half.IsSellable)
	assert.True(t, half.EffectiveBaseUnitQuantity.Equal(decimal.NewFromInt(5)))
	// Customs sort after all globals.
	assert.Equal(t, "Half-Strip", levels[3].UnitName)
}

func TestResolve_CustomLevelChain(t *testing.T) {
	// Pallet = 4 Bundles, Bundle = 5 Boxes, Box = 100 tablets.
	pkg := &fakePackagingStore{
		levels: tabletStripBox(),
		overrides: []domain.ShopPackagingOverride{
			{
				ID:                        "ov-pallet",
				ShopID:                    "shop-1",
				DrugID:                    "drug-1",
				CustomUnitName:            strPtr("Pallet"),
				ParentOverrideID:          strPtr("ov-bundle"),
				OverrideQuantityPerParent: decPtr(decimal.NewFromInt(4)),
				CustomLevelOrder:          intPtr(2),
			},
			{
				ID:                        "ov-bundle",
				ShopID:                    "shop-1",
				DrugID:                    "drug-1",
				CustomUnitName:            strPtr("Bundle"),
				ParentPackagingLevelID:    strPtr("lvl-box"),
				OverrideQuantityPerParent: decPtr(decimal.NewFromInt(5)),
				CustomLevelOrder:          intPtr(1),
			},
		},
	}
	resolver := newResolver(pkg, newFakeInventoryStore())

	levels, err := resolver.Resolve(context.Background(), "shop-1", "drug-1")
	require.NoError(t, err)
	require.Len(t, levels, 5)

	bundle := levelByName(t, levels, "Bundle")
	assert.True(t, bundle.EffectiveBaseUnitQuantity.Equal(decimal.NewFromInt(500)))
	pallet := levelByName(t, levels, "Pallet")
	assert.True(t, pallet.EffectiveBaseUnitQuantity.Equal(decimal.NewFromInt(2000)))

	// Explicit custom order is honored.
	assert.Equal(t, "Bundle", levels[3].UnitName)
	assert.Equal(t, "Pallet", levels[4].UnitName)
}

func TestResolve_CyclicCustomChainFails(t *testing.T) {
	pkg := &fakePackagingStore{
		levels: tabletStripBox(),
		overrides: []domain.ShopPackagingOverride{
			{
				ID:                        "ov-a",
				ShopID:                    "shop-1",
				DrugID:                    "drug-1",
				CustomUnitName:            strPtr("A"),
				ParentOverrideID:          strPtr("ov-b"),
				OverrideQuantityPerParent: decPtr(decimal.NewFromInt(2)),
			},
			{
				ID:                        "ov-b",
				ShopID:                    "shop-1",
				DrugID:                    "drug-1",
				CustomUnitName:            strPtr("B"),
				ParentOverrideID:          strPtr("ov-a"),
				OverrideQuantityPerParent: decPtr(decimal.NewFromInt(3)),
			},
		},
	}
	resolver := newResolver(pkg, newFakeInventoryStore())

	_, err := resolver.Resolve(context.Background(), "shop-1", "drug-1")
	require.Error(t, err)
	assert.True(t, apperrors.Is(err, apperrors.ErrCyclicConfiguration))
}

func TestResolve_CustomLevelRequiresPositiveQuantity(t *testing.T) {
	pkg := &fakePackagingStore{
		levels: tabletStripBox(),
		overrides: []domain.ShopPackagingOverride{{
			ID:                     "ov-bad",
			ShopID:                 "shop-1",
			DrugID:                 "drug-1",
			CustomUnitName:         strPtr("Bad"),
			ParentPackagingLevelID: strPtr("lvl-tablet"),
		}},
	}
	resolver := newResolver(pkg, newFakeInventoryStore())

	_, err := resolver.Resolve(context.Background(), "shop-1", "drug-1")
	require.Error(t, err)
	assert.True(t, apperrors.Is(err, apperrors.ErrInvalidConfiguration))
}

func TestResolve_PriceFallbackChain(t *testing.T) {
	srp := decimal.NewFromFloat(0.25)

	t.Run("override price wins", func(t *testing.T) {
		pkg := &fakePackagingStore{
			levels: tabletStripBox(),
			srp:    decPtr(srp),
			overrides: []domain.ShopPackagingOverride{{
				ID:               "ov-strip",
				ShopID:           "shop-1",
				DrugID:           "drug-1",
				PackagingLevelID: strPtr("lvl-strip"),
				SellingPrice:     decPtr(decimal.NewFromFloat(3.75)),
			}},
		}
		store := newFakeInventoryStore()
		inv := domain.NewShopInventory("shop-1", "drug-1")
		inv.Pricing.SellingPrice = decimal.NewFromFloat(0.30)
		inv.Pricing.PackagingLevelPrices["Strip"] = decimal.NewFromFloat(2.99)
		store.put(inv)

		levels, err := newResolver(pkg, store).Resolve(context.Background(), "shop-1", "drug-1")
		require.NoError(t, err)
		strip := levelByName(t, levels, "Strip")
		require.NotNil(t, strip.SellingPrice)
		assert.True(t, strip.SellingPrice.Equal(decimal.NewFromFloat(3.75)))
	})

	t.Run("pricing map beats shop selling price", func(t *testing.T) {
		pkg := &fakePackagingStore{levels: tabletStripBox(), srp: decPtr(srp)}
		store := newFakeInventoryStore()
		inv := domain.NewShopInventory("shop-1", "drug-1")
		inv.Pricing.SellingPrice = decimal.NewFromFloat(0.30)
		inv.Pricing.PackagingLevelPrices["Strip"] = decimal.NewFromFloat(2.99)
		store.put(inv)

		levels, err := newResolver(pkg, store).Resolve(context.Background(), "shop-1", "drug-1")
		require.NoError(t, err)
		strip := levelByName(t, levels, "Strip")
		require.NotNil(t, strip.SellingPrice)
		assert.True(t, strip.SellingPrice.Equal(decimal.NewFromFloat(2.99)))
	})

	t.Run("zero map entry falls through to shop selling price", func(t *testing.T) {
		pkg := &fakePackagingStore{levels: tabletStripBox(), srp: decPtr(srp)}
		store := newFakeInventoryStore()
		inv := domain.NewShopInventory("shop-1", "drug-1")
		inv.Pricing.SellingPrice = decimal.NewFromFloat(0.30)
		inv.Pricing.PackagingLevelPrices["Strip"] = decimal.Zero
		store.put(inv)

		levels, err := newResolver(pkg, store).Resolve(context.Background(), "shop-1", "drug-1")
		require.NoError(t, err)
		strip := levelByName(t, levels, "Strip")
		require.NotNil(t, strip.SellingPrice)
		assert.True(t, strip.SellingPrice.Equal(decimal.NewFromFloat(0.30)))
	})

	t.Run("suggested retail price when shop has no pricing", func(t *testing.T) {
		pkg := &fakePackagingStore{levels: tabletStripBox(), srp: decPtr(srp)}

		levels, err := newResolver(pkg, newFakeInventoryStore()).Resolve(context.Background(), "shop-1", "drug-1")
		require.NoError(t, err)
		tablet := levelByName(t, levels, "Tablet")
		require.NotNil(t, tablet.SellingPrice)
		assert.True(t, tablet.SellingPrice.Equal(srp))
	})

	t.Run("nil when nothing is set", func(t *testing.T) {
		pkg := &fakePackagingStore{levels: tabletStripBox()}

		levels, err := newResolver(pkg, newFakeInventoryStore()).Resolve(context.Background(), "shop-1", "drug-1")
		require.NoError(t, err)
		assert.Nil(t, levelByName(t, levels, "Tablet").SellingPrice)
	})
}

func TestResolve_DefaultSellUnitHarmonization(t *testing.T) {
	t.Run("explicit override flag wins over shop preference", func(t *testing.T) {
		pkg := &fakePackagingStore{
			levels: tabletStripBox(),
			overrides: []domain.ShopPackagingOverride{{
				ID:                "ov-box",
				ShopID:            "shop-1",
				DrugID:            "drug-1",
				PackagingLevelID:  strPtr("lvl-box"),
				IsDefaultSellUnit: boolPtr(true),
			}},
		}
		store := newFakeInventoryStore()
		inv := domain.NewShopInventory("shop-1", "drug-1")
		inv.ShopSpecificSellUnit = strPtr("Strip")
		store.put(inv)

		levels, err := newResolver(pkg, store).Resolve(context.Background(), "shop-1", "drug-1")
		require.NoError(t, err)

		var defaults []string
		for _, l := range levels {
			if l.IsDefaultSellUnit {
				defaults = append(defaults, l.UnitName)
			}
		}
		assert.Equal(t, []string{"Box"}, defaults)
	})

	t.Run("shop preferred unit matches case-insensitively", func(t *testing.T) {
		levels := tabletStripBox()
		levels[0].IsDefault = false
		pkg := &fakePackagingStore{levels: levels}
		store := newFakeInventoryStore()
		inv := domain.NewShopInventory("shop-1", "drug-1")
		inv.ShopSpecificSellUnit = strPtr("sTrIp")
		store.put(inv)

		resolved, err := newResolver(pkg, store).Resolve(context.Background(), "shop-1", "drug-1")
		require.NoError(t, err)
		assert.True(t, levelByName(t, resolved, "Strip").IsDefaultSellUnit)
	})

	t.Run("falls back to first sellable when nothing marked", func(t *testing.T) {
		levels := tabletStripBox()
		levels[0].IsDefault = false
		levels[0].IsSellable = false
		pkg := &fakePackagingStore{levels: levels}

		resolved, err := newResolver(pkg, newFakeInventoryStore()).Resolve(context.Background(), "shop-1", "drug-1")
		require.NoError(t, err)
		assert.False(t, levelByName(t, resolved, "Tablet").IsDefaultSellUnit)
		assert.True(t, levelByName(t, resolved, "Strip").IsDefaultSellUnit)
	})

	t.Run("exactly one default even when several flagged", func(t *testing.T) {
		pkg := &fakePackagingStore{
			levels: tabletStripBox(),
			overrides: []domain.ShopPackagingOverride{
				{
					ID:                "ov-strip",
					ShopID:            "shop-1",
					DrugID:            "drug-1",
					PackagingLevelID:  strPtr("lvl-strip"),
					IsDefaultSellUnit: boolPtr(true),
				},
				{
					ID:                "ov-box",
					ShopID:            "shop-1",
					DrugID:            "drug-1",
					PackagingLevelID:  strPtr("lvl-box"),
					IsDefaultSellUnit: boolPtr(true),
				},
			},
		}

		levels, err := newResolver(pkg, newFakeInventoryStore()).Resolve(context.Background(), "shop-1", "drug-1")
		require.NoError(t, err)

		count := 0
		for _, l := range levels {
			if l.IsDefaultSellUnit {
				count++
			}
		}
		assert.Equal(t, 1, count)
		// The first flagged level in final order wins.
		assert.True(t, levelByName(t, levels, "Strip").IsDefaultSellUnit)
	})
}

func TestResolve_OverrideRenamesUnit(t *testing.T) {
	pkg := &fakePackagingStore{
		levels: tabletStripBox(),
		overrides: []domain.ShopPackagingOverride{{
			ID:               "ov-strip",
			ShopID:           "shop-1",
			DrugID:           "drug-1",
			PackagingLevelID: strPtr("lvl-strip"),
			CustomUnitName:   strPtr("Blister"),
			IsSellable:       boolPtr(false),
		}},
	}

	levels, err := newResolver(pkg, newFakeInventoryStore()).Resolve(context.Background(), "shop-1", "drug-1")
	require.NoError(t, err)

	blister := levelByName(t, levels, "Blister")
	assert.False(t, blister.IsSellable)
	assert.False(t, blister.IsCustom)
	require.NotNil(t, blister.LevelID)
	assert.Equal(t, "lvl-strip", *blister.LevelID)
}
