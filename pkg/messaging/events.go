package messaging

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// Event types
const (
	// Stock events
	EventStockReceived  = "pharmacy.stock.received"
	EventStockReduced   = "pharmacy.stock.reduced"
	EventStockRelocated = "pharmacy.stock.relocated"
	EventBatchExpired   = "pharmacy.batch.expired"
	EventLowStock       = "pharmacy.stock.low"

	// Pricing events
	EventPriceCascaded = "pharmacy.price.cascaded"

	// Transfer events
	EventTransferCreated   = "pharmacy.transfer.created"
	EventTransferUpdated   = "pharmacy.transfer.updated"
	EventTransferCompleted = "pharmacy.transfer.completed"
	EventTransferCancelled = "pharmacy.transfer.cancelled"
)

// Exchange names
const (
	ExchangePharmacyEvents = "pharmacy.events"
)

// Event is the base event structure
type Event struct {
	ID            string          `json:"id"`
	Type          string          `json:"type"`
	Source        string          `json:"source"`
	Timestamp     time.Time       `json:"timestamp"`
	CorrelationID string          `json:"correlation_id"`
	Data          json.RawMessage `json:"data"`
}

// NewEvent creates a new event with the given type and data
func NewEvent(eventType, source, correlationID string, data interface{}) (*Event, error) {
	dataBytes, err := json.Marshal(data)
	if err != nil {
		return nil, err
	}

	return &Event{
		ID:            uuid.New().String(),
		Type:          eventType,
		Source:        source,
		Timestamp:     time.Now().UTC(),
		CorrelationID: correlationID,
		Data:          dataBytes,
	}, nil
}

// StockMovementEvent is the payload for stock received/reduced/relocated events
type StockMovementEvent struct {
	ShopID      string `json:"shop_id"`
	DrugID      string `json:"drug_id"`
	BatchNumber string `json:"batch_number,omitempty"`
	Quantity    int64  `json:"quantity"`
	TotalStock  int64  `json:"total_stock"`
	Movement    string `json:"movement"`
	PerformedBy string `json:"performed_by,omitempty"`
}

// BatchExpiredEvent is the payload for batch expiry events
type BatchExpiredEvent struct {
	ShopID      string    `json:"shop_id"`
	DrugID      string    `json:"drug_id"`
	BatchNumber string    `json:"batch_number"`
	ExpiryDate  time.Time `json:"expiry_date"`
	Quantity    int64     `json:"quantity"`
}

// LowStockEvent is the payload for low stock alerts
type LowStockEvent struct {
	ShopID       string `json:"shop_id"`
	DrugID       string `json:"drug_id"`
	TotalStock   int64  `json:"total_stock"`
	ReorderPoint int64  `json:"reorder_point"`
}

// PriceCascadedEvent is the payload for packaging price cascade events
type PriceCascadedEvent struct {
	ShopID      string `json:"shop_id"`
	DrugID      string `json:"drug_id"`
	BatchNumber string `json:"batch_number"`
	Changes     int    `json:"changes"`
}

// TransferEvent is the payload for cross-shop transfer events
type TransferEvent struct {
	TransferID string `json:"transfer_id"`
	FromShopID string `json:"from_shop_id"`
	ToShopID   string `json:"to_shop_id"`
	DrugID     string `json:"drug_id"`
	Quantity   int64  `json:"quantity"`
	Status     string `json:"status"`
}
