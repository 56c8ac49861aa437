package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// BatchLocation is the physical location of a batch within a shop
type BatchLocation string

const (
	LocationShopFloor  BatchLocation = "shop_floor"
	LocationStorage    BatchLocation = "storage"
	LocationReserved   BatchLocation = "reserved"
	LocationQuarantine BatchLocation = "quarantine"
)

// BatchStatus is the lifecycle status of a batch. Transitions are one-way:
// Active -> Expired, triggered by the expiry sweep.
type BatchStatus string

const (
	BatchActive  BatchStatus = "active"
	BatchExpired BatchStatus = "expired"
)

// Batch is a dated, priced, located stock lot. A batch is identified by
// (BatchNumber, Location): the same logical lot can exist as multiple rows
// split across locations.
type Batch struct {
	ID             string          `db:"id" json:"id"`
	BatchNumber    string          `db:"batch_number" json:"batch_number"`
	SupplierID     string          `db:"supplier_id" json:"supplier_id"`
	QuantityOnHand int64           `db:"quantity_on_hand" json:"quantity_on_hand"`
	ReceivedDate   time.Time       `db:"received_date" json:"received_date"`
	ExpiryDate     time.Time       `db:"expiry_date" json:"expiry_date"`
	PurchasePrice  decimal.Decimal `db:"purchase_price" json:"purchase_price"`
	SellingPrice   decimal.Decimal `db:"selling_price" json:"selling_price"`
	Location       BatchLocation   `db:"location" json:"location"`
	Status         BatchStatus     `db:"status" json:"status"`
}

// IsExpiredAt reports whether the batch's expiry date has passed at the
// given instant.
func (b *Batch) IsExpiredAt(now time.Time) bool {
	return b.ExpiryDate.Before(now)
}

// splitTo returns a copy of the batch relocated to the given location with
// the given quantity. The copy keeps batch number, supplier, dates and
// prices so the logical lot stays traceable across locations.
func (b *Batch) splitTo(location BatchLocation, quantity int64) Batch {
	split := *b
	split.ID = ""
	split.Location = location
	split.QuantityOnHand = quantity
	return split
}

// ExpiringBatch is one row of the shop-level expiring stock report.
type ExpiringBatch struct {
	ShopID         string        `db:"shop_id" json:"shop_id"`
	DrugID         string        `db:"drug_id" json:"drug_id"`
	BatchNumber    string        `db:"batch_number" json:"batch_number"`
	Location       BatchLocation `db:"location" json:"location"`
	QuantityOnHand int64         `db:"quantity_on_hand" json:"quantity_on_hand"`
	ExpiryDate     time.Time     `db:"expiry_date" json:"expiry_date"`
}

// BatchConsumption records one batch's contribution to a FIFO stock
// reduction, used for transfer lines and audit.
type BatchConsumption struct {
	BatchNumber   string          `json:"batch_number"`
	SupplierID    string          `json:"supplier_id"`
	Quantity      int64           `json:"quantity"`
	ExpiryDate    time.Time       `json:"expiry_date"`
	PurchasePrice decimal.Decimal `json:"purchase_price"`
	SellingPrice  decimal.Decimal `json:"selling_price"`
}
