package testutil

import (
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/halgurdkamal/pos-system-api-sub000/internal/pharmacy/domain"
)

// FixtureFactory builds domain fixtures with unique identifiers.
type FixtureFactory struct {
	mu  sync.Mutex
	seq int
}

// NewFixtureFactory creates a new fixture factory
func NewFixtureFactory() *FixtureFactory {
	return &FixtureFactory{}
}

func (f *FixtureFactory) nextSeq() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.seq++
	return f.seq
}

// PackagingLevel builds a global packaging level fixture.
func (f *FixtureFactory) PackagingLevel(opts ...func(*domain.PackagingLevel)) domain.PackagingLevel {
	seq := f.nextSeq()
	level := domain.PackagingLevel{
		ID:                uuid.New().String(),
		DrugID:            uuid.New().String(),
		LevelNumber:       1,
		UnitName:          fmt.Sprintf("Unit-%d", seq),
		BaseUnitQuantity:  decimal.NewFromInt(1),
		IsSellable:        true,
		QuantityPerParent: decimal.NewFromInt(1),
		CreatedAt:         time.Now().UTC(),
		UpdatedAt:         time.Now().UTC(),
	}
	for _, opt := range opts {
		opt(&level)
	}
	return level
}

// TabletStripBox builds the canonical three-level hierarchy used across
// resolver and cascade tests: 1 Box = 10 Strips, 1 Strip = 10 Tablets.
func (f *FixtureFactory) TabletStripBox(drugID string) []domain.PackagingLevel {
	tablet := f.PackagingLevel(func(l *domain.PackagingLevel) {
		l.DrugID = drugID
		l.LevelNumber = 1
		l.UnitName = "Tablet"
		l.IsDefault = true
	})
	strip := f.PackagingLevel(func(l *domain.PackagingLevel) {
		l.DrugID = drugID
		l.LevelNumber = 2
		l.UnitName = "Strip"
		l.BaseUnitQuantity = decimal.NewFromInt(10)
		l.ParentLevelID = &tablet.ID
		l.QuantityPerParent = decimal.NewFromInt(10)
	})
	box := f.PackagingLevel(func(l *domain.PackagingLevel) {
		l.DrugID = drugID
		l.LevelNumber = 3
		l.UnitName = "Box"
		l.BaseUnitQuantity = decimal.NewFromInt(100)
		l.ParentLevelID = &strip.ID
		l.QuantityPerParent = decimal.NewFromInt(10)
	})
	return []domain.PackagingLevel{tablet, strip, box}
}

// Override builds a shop packaging override fixture.
func (f *FixtureFactory) Override(shopID, drugID string, opts ...func(*domain.ShopPackagingOverride)) domain.ShopPackagingOverride {
	o := domain.ShopPackagingOverride{
		ID:        uuid.New().String(),
		ShopID:    shopID,
		DrugID:    drugID,
		CreatedAt: time.Now().UTC(),
		UpdatedAt: time.Now().UTC(),
	}
	for _, opt := range opts {
		opt(&o)
	}
	return o
}

// Batch builds a stock batch fixture.
func (f *FixtureFactory) Batch(opts ...func(*domain.Batch)) domain.Batch {
	seq := f.nextSeq()
	b := domain.Batch{
		ID:             uuid.New().String(),
		BatchNumber:    fmt.Sprintf("LOT-%04d", seq),
		SupplierID:     uuid.New().String(),
		QuantityOnHand: 100,
		ReceivedDate:   time.Now().UTC().AddDate(0, 0, -seq),
		ExpiryDate:     time.Now().UTC().AddDate(1, 0, 0),
		PurchasePrice:  decimal.NewFromFloat(1.50),
		SellingPrice:   decimal.NewFromFloat(2.00),
		Location:       domain.LocationStorage,
		Status:         domain.BatchActive,
	}
	for _, opt := range opts {
		opt(&b)
	}
	return b
}

// WithQuantity sets the batch quantity on hand.
func WithQuantity(qty int64) func(*domain.Batch) {
	return func(b *domain.Batch) { b.QuantityOnHand = qty }
}

// WithLocation sets the batch location.
func WithLocation(loc domain.BatchLocation) func(*domain.Batch) {
	return func(b *domain.Batch) { b.Location = loc }
}

// WithSupplierID sets the batch supplier.
func WithSupplierID(id string) func(*domain.Batch) {
	return func(b *domain.Batch) { b.SupplierID = id }
}

// WithReceivedDate sets the batch received date.
func WithReceivedDate(t time.Time) func(*domain.Batch) {
	return func(b *domain.Batch) { b.ReceivedDate = t }
}

// WithExpiryDate sets the batch expiry date.
func WithExpiryDate(t time.Time) func(*domain.Batch) {
	return func(b *domain.Batch) { b.ExpiryDate = t }
}

// WithBatchNumber sets the batch number.
func WithBatchNumber(n string) func(*domain.Batch) {
	return func(b *domain.Batch) { b.BatchNumber = n }
}

// WithSellingPrice sets the batch selling price.
func WithSellingPrice(p decimal.Decimal) func(*domain.Batch) {
	return func(b *domain.Batch) { b.SellingPrice = p }
}

// Inventory builds a shop inventory aggregate with the given batches.
func (f *FixtureFactory) Inventory(shopID, drugID string, batches ...domain.Batch) *domain.ShopInventory {
	inv := domain.NewShopInventory(shopID, drugID)
	inv.ID = uuid.New().String()
	now := time.Now().UTC()
	for _, b := range batches {
		inv.AddBatch(b, now)
	}
	return inv
}
