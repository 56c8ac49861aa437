package domain

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"time"

	"github.com/halgurdkamal/pos-system-api-sub000/pkg/errors"
)

// TransferStatus is the state of a cross-shop stock transfer. Cross-shop
// moves mutate two aggregates in two separate transactional steps, so the
// transfer record is the compensating mechanism: if the receiving step fails
// after the sending step succeeded, the record stays in a non-terminal state
// for reconciliation instead of being silently lost.
type TransferStatus string

const (
	TransferPending   TransferStatus = "pending"
	TransferApproved  TransferStatus = "approved"
	TransferInTransit TransferStatus = "in_transit"
	TransferCompleted TransferStatus = "completed"
	TransferCancelled TransferStatus = "cancelled"
)

var transferTransitions = map[TransferStatus][]TransferStatus{
	TransferPending:   {TransferApproved, TransferCancelled},
	TransferApproved:  {TransferInTransit, TransferCancelled},
	TransferInTransit: {TransferCompleted, TransferCancelled},
}

// CanTransition reports whether the state machine allows moving from the
// current status to the target status.
func (s TransferStatus) CanTransition(to TransferStatus) bool {
	for _, allowed := range transferTransitions[s] {
		if allowed == to {
			return true
		}
	}
	return false
}

// IsTerminal reports whether the status is final.
func (s TransferStatus) IsTerminal() bool {
	return s == TransferCompleted || s == TransferCancelled
}

// TransferLines records which batch segments the sender dispatched, so the
// receiver can recreate them as lots and a cancelled in-transit transfer can
// be returned to the sender. Stored as JSONB.
type TransferLines []BatchConsumption

// Value implements driver.Valuer for JSONB storage.
func (l TransferLines) Value() (driver.Value, error) {
	if l == nil {
		return []byte("[]"), nil
	}
	return json.Marshal(l)
}

// Scan implements sql.Scanner for JSONB storage.
func (l *TransferLines) Scan(src interface{}) error {
	if src == nil {
		*l = TransferLines{}
		return nil
	}
	var data []byte
	switch v := src.(type) {
	case []byte:
		data = v
	case string:
		data = []byte(v)
	default:
		return fmt.Errorf("cannot scan %T into TransferLines", src)
	}
	return json.Unmarshal(data, l)
}

// StockTransfer is a cross-shop stock movement record.
type StockTransfer struct {
	ID         string         `db:"id" json:"id"`
	FromShopID string         `db:"from_shop_id" json:"from_shop_id"`
	ToShopID   string         `db:"to_shop_id" json:"to_shop_id"`
	DrugID     string         `db:"drug_id" json:"drug_id"`
	Quantity   int64          `db:"quantity" json:"quantity"`
	Status     TransferStatus `db:"status" json:"status"`
	Lines      TransferLines  `db:"lines" json:"lines"`
	Notes      *string        `db:"notes" json:"notes,omitempty"`
	CreatedBy  string         `db:"created_by" json:"created_by"`
	CreatedAt  time.Time      `db:"created_at" json:"created_at"`
	UpdatedAt  time.Time      `db:"updated_at" json:"updated_at"`
}

// Transition moves the transfer to the target status, enforcing the state
// machine.
func (t *StockTransfer) Transition(to TransferStatus) error {
	if !t.Status.CanTransition(to) {
		return errors.InvalidTransition(string(t.Status), string(to))
	}
	t.Status = to
	return nil
}
