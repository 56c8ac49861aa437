package domain

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "github.com/halgurdkamal/pos-system-api-sub000/pkg/errors"
)

func day(offset int) time.Time {
	return time.Date(2026, 8, 1, 0, 0, 0, 0, time.UTC).AddDate(0, 0, offset)
}

func testBatch(batchNumber string, qty int64, received, expiry time.Time, location BatchLocation) Batch {
	return Batch{
		ID:             batchNumber + "-id",
		BatchNumber:    batchNumber,
		SupplierID:     "supplier-1",
		QuantityOnHand: qty,
		ReceivedDate:   received,
		ExpiryDate:     expiry,
		PurchasePrice:  decimal.NewFromFloat(1.50),
		SellingPrice:   decimal.NewFromFloat(2.00),
		Location:       location,
		Status:         BatchActive,
	}
}

func TestAddBatch_DefaultsAndTotals(t *testing.T) {
	inv := NewShopInventory("shop-1", "drug-1")
	now := day(0)

	inv.AddBatch(Batch{BatchNumber: "A", QuantityOnHand: 50, ReceivedDate: now, ExpiryDate: day(90)}, now)

	require.Len(t, inv.Batches, 1)
	assert.Equal(t, BatchActive, inv.Batches[0].Status)
	assert.Equal(t, LocationStorage, inv.Batches[0].Location)
	assert.Equal(t, int64(50), inv.TotalStock)
	assert.True(t, inv.IsAvailable)
	require.NotNil(t, inv.LastRestockDate)
	assert.Equal(t, now, *inv.LastRestockDate)
}

func TestReduceStock_FIFOByReceivedDate(t *testing.T) {
	inv := NewShopInventory("shop-1", "drug-1")
	// Deliberately added out of receipt order.
	inv.AddBatch(testBatch("NEW", 100, day(-1), day(300), LocationStorage), day(0))
	inv.AddBatch(testBatch("OLD", 30, day(-10), day(60), LocationShopFloor), day(0))
	inv.AddBatch(testBatch("MID", 40, day(-5), day(120), LocationStorage), day(0))

	consumed := inv.ReduceStock(50)

	// Oldest received batch drains first, then the next oldest.
	require.Len(t, consumed, 2)
	assert.Equal(t, "OLD", consumed[0].BatchNumber)
	assert.Equal(t, "supplier-1", consumed[0].SupplierID)
	assert.Equal(t, int64(30), consumed[0].Quantity)
	assert.Equal(t, "MID", consumed[1].BatchNumber)
	assert.Equal(t, int64(20), consumed[1].Quantity)

	assert.Equal(t, int64(120), inv.TotalStock)
	assert.Equal(t, int64(100), inv.findBatchRow("NEW", LocationStorage).QuantityOnHand)
	assert.Equal(t, int64(0), inv.findBatchRow("OLD", LocationShopFloor).QuantityOnHand)
	assert.Equal(t, int64(20), inv.findBatchRow("MID", LocationStorage).QuantityOnHand)
}

func TestReduceStock_UnderFulfilsWithoutError(t *testing.T) {
	inv := NewShopInventory("shop-1", "drug-1")
	inv.AddBatch(testBatch("A", 10, day(-1), day(90), LocationStorage), day(0))

	consumed := inv.ReduceStock(25)

	require.Len(t, consumed, 1)
	assert.Equal(t, int64(10), consumed[0].Quantity)
	assert.Equal(t, int64(0), inv.TotalStock)
	assert.False(t, inv.IsAvailable)
}

func TestReduceStock_SkipsExpiredBatches(t *testing.T) {
	inv := NewShopInventory("shop-1", "drug-1")
	expired := testBatch("EXP", 40, day(-20), day(-1), LocationStorage)
	expired.Status = BatchExpired
	inv.AddBatch(expired, day(0))
	inv.AddBatch(testBatch("OK", 40, day(-5), day(90), LocationStorage), day(0))

	consumed := inv.ReduceStock(30)

	require.Len(t, consumed, 1)
	assert.Equal(t, "OK", consumed[0].BatchNumber)
	assert.Equal(t, int64(40), inv.findBatchRow("EXP", LocationStorage).QuantityOnHand)
}

func TestRestockShopFloor_FEFOOrder(t *testing.T) {
	inv := NewShopInventory("shop-1", "drug-1")
	inv.AddBatch(testBatch("LATE", 50, day(-10), day(300), LocationStorage), day(0))
	inv.AddBatch(testBatch("SOON", 50, day(-5), day(30), LocationStorage), day(0))

	require.NoError(t, inv.RestockShopFloor(60, ""))

	// The soonest-expiring lot moves first.
	assert.Equal(t, int64(0), inv.findBatchRow("SOON", LocationStorage).QuantityOnHand)
	assert.Equal(t, int64(50), inv.findBatchRow("SOON", LocationShopFloor).QuantityOnHand)
	assert.Equal(t, int64(40), inv.findBatchRow("LATE", LocationStorage).QuantityOnHand)
	assert.Equal(t, int64(10), inv.findBatchRow("LATE", LocationShopFloor).QuantityOnHand)

	// Relocation never changes the total.
	assert.Equal(t, int64(100), inv.TotalStock)
}

func TestRestockShopFloor_InsufficientLeavesStateUntouched(t *testing.T) {
	inv := NewShopInventory("shop-1", "drug-1")
	inv.AddBatch(testBatch("A", 20, day(-10), day(90), LocationStorage), day(0))
	inv.AddBatch(testBatch("B", 15, day(-5), day(60), LocationShopFloor), day(0))

	err := inv.RestockShopFloor(30, "")

	require.Error(t, err)
	assert.True(t, apperrors.Is(err, apperrors.ErrInsufficientStock))

	// No partial movement happened.
	assert.Equal(t, int64(20), inv.findBatchRow("A", LocationStorage).QuantityOnHand)
	assert.Equal(t, int64(15), inv.findBatchRow("B", LocationShopFloor).QuantityOnHand)
	assert.Len(t, inv.Batches, 2)
	assert.Equal(t, int64(35), inv.TotalStock)
}

func TestRelocation_RoundTripRestoresQuantities(t *testing.T) {
	inv := NewShopInventory("shop-1", "drug-1")
	inv.AddBatch(testBatch("A", 80, day(-10), day(90), LocationStorage), day(0))

	require.NoError(t, inv.RestockShopFloor(30, ""))
	require.NoError(t, inv.ReturnToStorage(30, ""))

	assert.Equal(t, int64(80), inv.GetStorageStock())
	assert.Equal(t, int64(0), inv.GetShopFloorStock())
	assert.Equal(t, int64(80), inv.TotalStock)
}

func TestRelocation_MergesIntoExistingRow(t *testing.T) {
	inv := NewShopInventory("shop-1", "drug-1")
	inv.AddBatch(testBatch("A", 60, day(-10), day(90), LocationStorage), day(0))
	inv.AddBatch(testBatch("A", 10, day(-10), day(90), LocationShopFloor), day(0))

	require.NoError(t, inv.RestockShopFloor(20, "A"))

	// Merged, no third row for the lot.
	assert.Len(t, inv.Batches, 2)
	assert.Equal(t, int64(40), inv.findBatchRow("A", LocationStorage).QuantityOnHand)
	assert.Equal(t, int64(30), inv.findBatchRow("A", LocationShopFloor).QuantityOnHand)
}

func TestRelocation_NeverMergesIntoExpiredRow(t *testing.T) {
	inv := NewShopInventory("shop-1", "drug-1")
	inv.AddBatch(testBatch("A", 30, day(-10), day(90), LocationStorage), day(0))
	stale := testBatch("A", 5, day(-40), day(-1), LocationShopFloor)
	stale.Status = BatchExpired
	inv.AddBatch(stale, day(0))

	require.NoError(t, inv.RestockShopFloor(20, "A"))

	// The moved stock lands in a fresh Active row; the expired row for the
	// same lot keeps its quantity and stays out of TotalStock.
	require.Len(t, inv.Batches, 3)
	assert.Equal(t, int64(10), inv.findBatchRow("A", LocationStorage).QuantityOnHand)
	staleRow := inv.findBatchRow("A", LocationShopFloor)
	assert.Equal(t, BatchExpired, staleRow.Status)
	assert.Equal(t, int64(5), staleRow.QuantityOnHand)
	moved := inv.findActiveBatchRow("A", LocationShopFloor)
	require.NotNil(t, moved)
	assert.Equal(t, int64(20), moved.QuantityOnHand)
	assert.Equal(t, BatchActive, moved.Status)
	assert.Equal(t, int64(30), inv.TotalStock)
}

func TestRelocation_SpecificBatchOnly(t *testing.T) {
	inv := NewShopInventory("shop-1", "drug-1")
	inv.AddBatch(testBatch("A", 10, day(-10), day(90), LocationStorage), day(0))
	inv.AddBatch(testBatch("B", 50, day(-5), day(60), LocationStorage), day(0))

	err := inv.RestockShopFloor(20, "A")

	// Lot A alone cannot cover the request even though B could.
	require.Error(t, err)
	assert.Equal(t, int64(10), inv.findBatchRow("A", LocationStorage).QuantityOnHand)
	assert.Equal(t, int64(50), inv.findBatchRow("B", LocationStorage).QuantityOnHand)
}

func TestMarkExpiredBatches(t *testing.T) {
	inv := NewShopInventory("shop-1", "drug-1")
	inv.AddBatch(testBatch("OLD", 30, day(-100), day(-1), LocationStorage), day(0))
	inv.AddBatch(testBatch("OK", 70, day(-5), day(90), LocationShopFloor), day(0))

	expired := inv.MarkExpiredBatches(day(0))

	require.Len(t, expired, 1)
	assert.Equal(t, "OLD", expired[0].BatchNumber)
	assert.Equal(t, BatchExpired, inv.findBatchRow("OLD", LocationStorage).Status)
	assert.Equal(t, int64(70), inv.TotalStock)

	// Second sweep finds nothing new.
	assert.Empty(t, inv.MarkExpiredBatches(day(1)))
}

func TestStockByLocation(t *testing.T) {
	inv := NewShopInventory("shop-1", "drug-1")
	inv.AddBatch(testBatch("A", 10, day(-1), day(90), LocationShopFloor), day(0))
	inv.AddBatch(testBatch("B", 20, day(-1), day(90), LocationStorage), day(0))
	inv.AddBatch(testBatch("C", 5, day(-1), day(90), LocationReserved), day(0))
	inv.AddBatch(testBatch("D", 7, day(-1), day(90), LocationQuarantine), day(0))

	assert.Equal(t, int64(10), inv.GetShopFloorStock())
	assert.Equal(t, int64(20), inv.GetStorageStock())
	assert.Equal(t, int64(5), inv.GetReservedStock())
	assert.Equal(t, int64(7), inv.GetQuarantinedStock())
	assert.Equal(t, int64(42), inv.TotalStock)
}

func TestGetExpiringBatches(t *testing.T) {
	inv := NewShopInventory("shop-1", "drug-1")
	inv.AddBatch(testBatch("FAR", 10, day(-1), day(200), LocationStorage), day(0))
	inv.AddBatch(testBatch("NEAR", 10, day(-1), day(10), LocationStorage), day(0))
	inv.AddBatch(testBatch("MID", 10, day(-1), day(25), LocationStorage), day(0))

	expiring := inv.GetExpiringBatches(30, day(0))

	require.Len(t, expiring, 2)
	assert.Equal(t, "NEAR", expiring[0].BatchNumber)
	assert.Equal(t, "MID", expiring[1].BatchNumber)
}

func TestActiveBatch_EarliestReceivedWithStock(t *testing.T) {
	inv := NewShopInventory("shop-1", "drug-1")
	drained := testBatch("DRAINED", 0, day(-20), day(90), LocationStorage)
	inv.AddBatch(drained, day(0))
	inv.AddBatch(testBatch("B", 10, day(-10), day(90), LocationStorage), day(0))
	inv.AddBatch(testBatch("C", 10, day(-5), day(90), LocationStorage), day(0))

	active := inv.ActiveBatch()

	require.NotNil(t, active)
	assert.Equal(t, "B", active.BatchNumber)
}

func TestActiveBatch_NilWhenEmpty(t *testing.T) {
	inv := NewShopInventory("shop-1", "drug-1")
	assert.Nil(t, inv.ActiveBatch())
}

func TestMatchesSellUnit(t *testing.T) {
	inv := NewShopInventory("shop-1", "drug-1")
	assert.False(t, inv.MatchesSellUnit("Strip"))

	unit := "Strip"
	inv.ShopSpecificSellUnit = &unit
	assert.True(t, inv.MatchesSellUnit("strip"))
	assert.True(t, inv.MatchesSellUnit("STRIP"))
	assert.False(t, inv.MatchesSellUnit("Box"))
}

func TestIsLowStock(t *testing.T) {
	inv := NewShopInventory("shop-1", "drug-1")
	inv.ReorderPoint = 20
	inv.AddBatch(testBatch("A", 25, day(-1), day(90), LocationStorage), day(0))
	assert.False(t, inv.IsLowStock())

	inv.ReduceStock(5)
	assert.True(t, inv.IsLowStock())
}
