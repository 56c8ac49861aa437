package domain

import (
	"sort"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/halgurdkamal/pos-system-api-sub000/pkg/errors"
)

// ShopInventory is the aggregate root for one (shop, drug) pair. It owns the
// batch collection and the shop pricing; every stock movement goes through
// it. TotalStock and IsAvailable are derived from the batch collection and
// recomputed after every mutation, never set directly.
//
// Operations against the same aggregate must be serialized by the caller
// (the stock service holds a per-key lock around load-mutate-save); the
// aggregate itself is not safe for concurrent use.
type ShopInventory struct {
	ID                  string           `db:"id" json:"id"`
	ShopID              string           `db:"shop_id" json:"shop_id"`
	DrugID              string           `db:"drug_id" json:"drug_id"`
	Batches             []Batch          `json:"batches"`
	TotalStock          int64            `db:"total_stock" json:"total_stock"`
	IsAvailable         bool             `db:"is_available" json:"is_available"`
	ReorderPoint        int64            `db:"reorder_point" json:"reorder_point"`
	ShopSpecificSellUnit *string         `db:"shop_specific_sell_unit" json:"shop_specific_sell_unit,omitempty"`
	MinimumSaleQuantity *decimal.Decimal `db:"minimum_sale_quantity" json:"minimum_sale_quantity,omitempty"`
	Pricing             ShopPricing      `json:"pricing"`
	LastRestockDate     *time.Time       `db:"last_restock_date" json:"last_restock_date,omitempty"`
	LastPriceUpdate     *time.Time       `db:"last_price_update" json:"last_price_update,omitempty"`
	CreatedAt           time.Time        `db:"created_at" json:"created_at"`
	UpdatedAt           time.Time        `db:"updated_at" json:"updated_at"`
}

// InventoryKey identifies one shop-drug aggregate.
type InventoryKey struct {
	ShopID string `db:"shop_id" json:"shop_id"`
	DrugID string `db:"drug_id" json:"drug_id"`
}

// NewShopInventory creates the aggregate for a shop-drug pair. Called once,
// on the first stock receipt.
func NewShopInventory(shopID, drugID string) *ShopInventory {
	return &ShopInventory{
		ShopID:  shopID,
		DrugID:  drugID,
		Batches: []Batch{},
		Pricing: ShopPricing{
			Currency:             "USD",
			PackagingLevelPrices: PriceMap{},
		},
	}
}

// AddBatch appends a batch to the collection and refreshes the derived
// stock totals and the restock timestamp.
func (inv *ShopInventory) AddBatch(batch Batch, now time.Time) {
	if batch.Status == "" {
		batch.Status = BatchActive
	}
	if batch.Location == "" {
		batch.Location = LocationStorage
	}
	inv.Batches = append(inv.Batches, batch)
	inv.RecalculateTotalStock()
	inv.LastRestockDate = &now
}

// ReduceStock consumes the requested quantity FIFO by received date across
// all locations, Active batches only. If total available stock is
// insufficient the loop stops without error and the remainder goes
// unfulfilled; callers that need all-or-nothing semantics must check
// TotalStock first. Returns the per-batch consumption detail.
func (inv *ShopInventory) ReduceStock(quantity int64) []BatchConsumption {
	ordered := inv.activeBatchIndexes(nil)
	sort.SliceStable(ordered, func(i, j int) bool {
		return inv.Batches[ordered[i]].ReceivedDate.Before(inv.Batches[ordered[j]].ReceivedDate)
	})

	remaining := quantity
	var consumed []BatchConsumption
	for _, idx := range ordered {
		if remaining <= 0 {
			break
		}
		b := &inv.Batches[idx]
		take := remaining
		if b.QuantityOnHand < take {
			take = b.QuantityOnHand
		}
		if take == 0 {
			continue
		}
		b.QuantityOnHand -= take
		remaining -= take
		consumed = append(consumed, BatchConsumption{
			BatchNumber:   b.BatchNumber,
			SupplierID:    b.SupplierID,
			Quantity:      take,
			ExpiryDate:    b.ExpiryDate,
			PurchasePrice: b.PurchasePrice,
			SellingPrice:  b.SellingPrice,
		})
	}

	inv.RecalculateTotalStock()
	return consumed
}

// RestockShopFloor moves stock from Storage to the ShopFloor, earliest
// expiry first. When batchNumber is non-empty only that lot is drawn from.
// Fails with InsufficientStock, leaving all quantities untouched, if the
// request exceeds the available Storage stock.
func (inv *ShopInventory) RestockShopFloor(quantity int64, batchNumber string) error {
	return inv.moveBetweenLocations(LocationStorage, LocationShopFloor, quantity, batchNumber)
}

// ReturnToStorage moves stock from the ShopFloor back to Storage, with the
// same FEFO, merge and failure rules as RestockShopFloor.
func (inv *ShopInventory) ReturnToStorage(quantity int64, batchNumber string) error {
	return inv.moveBetweenLocations(LocationShopFloor, LocationStorage, quantity, batchNumber)
}

func (inv *ShopInventory) moveBetweenLocations(from, to BatchLocation, quantity int64, batchNumber string) error {
	sources := inv.activeBatchIndexes(func(b *Batch) bool {
		if b.Location != from {
			return false
		}
		return batchNumber == "" || b.BatchNumber == batchNumber
	})

	var available int64
	for _, idx := range sources {
		available += inv.Batches[idx].QuantityOnHand
	}
	if available < quantity {
		return errors.InsufficientStock(quantity, available)
	}

	// FEFO: earliest expiry first
	sort.SliceStable(sources, func(i, j int) bool {
		return inv.Batches[sources[i]].ExpiryDate.Before(inv.Batches[sources[j]].ExpiryDate)
	})

	remaining := quantity
	for _, idx := range sources {
		if remaining <= 0 {
			break
		}
		src := &inv.Batches[idx]
		take := remaining
		if src.QuantityOnHand < take {
			take = src.QuantityOnHand
		}
		src.QuantityOnHand -= take
		remaining -= take

		// Merge into an existing Active destination row for the same lot,
		// or create a new split row carrying the lot's identity. Expired
		// rows never absorb live stock.
		if dst := inv.findActiveBatchRow(src.BatchNumber, to); dst != nil {
			dst.QuantityOnHand += take
		} else {
			inv.Batches = append(inv.Batches, src.splitTo(to, take))
		}
	}

	inv.RecalculateTotalStock()
	return nil
}

// RecalculateTotalStock derives TotalStock from the batch collection:
// the sum of QuantityOnHand over Active batches regardless of location.
// This is the single source of truth, recomputed after every mutation.
func (inv *ShopInventory) RecalculateTotalStock() {
	var total int64
	for i := range inv.Batches {
		if inv.Batches[i].Status == BatchActive {
			total += inv.Batches[i].QuantityOnHand
		}
	}
	inv.TotalStock = total
	inv.IsAvailable = total > 0
}

// StockAt sums the quantity of Active batches at a location.
func (inv *ShopInventory) StockAt(location BatchLocation) int64 {
	var total int64
	for i := range inv.Batches {
		b := &inv.Batches[i]
		if b.Status == BatchActive && b.Location == location {
			total += b.QuantityOnHand
		}
	}
	return total
}

// GetShopFloorStock returns the Active stock located on the shop floor.
func (inv *ShopInventory) GetShopFloorStock() int64 { return inv.StockAt(LocationShopFloor) }

// GetStorageStock returns the Active stock located in storage.
func (inv *ShopInventory) GetStorageStock() int64 { return inv.StockAt(LocationStorage) }

// GetReservedStock returns the Active stock held as reserved.
func (inv *ShopInventory) GetReservedStock() int64 { return inv.StockAt(LocationReserved) }

// GetQuarantinedStock returns the Active stock held in quarantine.
func (inv *ShopInventory) GetQuarantinedStock() int64 { return inv.StockAt(LocationQuarantine) }

// MarkExpiredBatches transitions every Active batch whose expiry date has
// passed to Expired and refreshes the totals. Returns the batches that
// expired on this pass; already-expired batches are untouched.
func (inv *ShopInventory) MarkExpiredBatches(now time.Time) []Batch {
	var expired []Batch
	for i := range inv.Batches {
		b := &inv.Batches[i]
		if b.Status == BatchActive && b.IsExpiredAt(now) {
			b.Status = BatchExpired
			expired = append(expired, *b)
		}
	}
	if len(expired) > 0 {
		inv.RecalculateTotalStock()
	}
	return expired
}

// IsLowStock reports whether total stock has fallen to the reorder point.
func (inv *ShopInventory) IsLowStock() bool {
	return inv.TotalStock <= inv.ReorderPoint
}

// GetExpiringBatches returns Active batches expiring within the given number
// of days, ascending by expiry date.
func (inv *ShopInventory) GetExpiringBatches(days int, now time.Time) []Batch {
	cutoff := now.AddDate(0, 0, days)
	var expiring []Batch
	for i := range inv.Batches {
		b := inv.Batches[i]
		if b.Status == BatchActive && !b.ExpiryDate.After(cutoff) {
			expiring = append(expiring, b)
		}
	}
	sort.SliceStable(expiring, func(i, j int) bool {
		return expiring[i].ExpiryDate.Before(expiring[j].ExpiryDate)
	})
	return expiring
}

// ActiveBatch returns the batch the FIFO reduction would consume from next:
// the Active batch with stock on hand and the earliest received date. This
// is also the batch per-unit pricing derives from. Returns nil when no
// stocked batch exists.
func (inv *ShopInventory) ActiveBatch() *Batch {
	var active *Batch
	for i := range inv.Batches {
		b := &inv.Batches[i]
		if b.Status != BatchActive || b.QuantityOnHand <= 0 {
			continue
		}
		if active == nil || b.ReceivedDate.Before(active.ReceivedDate) {
			active = b
		}
	}
	return active
}

// MatchesSellUnit reports whether the shop's preferred sell unit matches the
// given unit name, case-insensitively.
func (inv *ShopInventory) MatchesSellUnit(unitName string) bool {
	return inv.ShopSpecificSellUnit != nil &&
		strings.EqualFold(*inv.ShopSpecificSellUnit, unitName)
}

// activeBatchIndexes returns indexes of Active batches with stock, optionally
// filtered. Indexes keep mutations inside the aggregate boundary.
func (inv *ShopInventory) activeBatchIndexes(filter func(*Batch) bool) []int {
	var idxs []int
	for i := range inv.Batches {
		b := &inv.Batches[i]
		if b.Status != BatchActive || b.QuantityOnHand <= 0 {
			continue
		}
		if filter != nil && !filter(b) {
			continue
		}
		idxs = append(idxs, i)
	}
	return idxs
}

func (inv *ShopInventory) findBatchRow(batchNumber string, location BatchLocation) *Batch {
	for i := range inv.Batches {
		b := &inv.Batches[i]
		if b.BatchNumber == batchNumber && b.Location == location {
			return b
		}
	}
	return nil
}

func (inv *ShopInventory) findActiveBatchRow(batchNumber string, location BatchLocation) *Batch {
	for i := range inv.Batches {
		b := &inv.Batches[i]
		if b.Status == BatchActive && b.BatchNumber == batchNumber && b.Location == location {
			return b
		}
	}
	return nil
}
