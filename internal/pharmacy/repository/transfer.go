package repository

import (
	"context"
	"database/sql"

	"github.com/google/uuid"

	"github.com/halgurdkamal/pos-system-api-sub000/internal/pharmacy/domain"
	"github.com/halgurdkamal/pos-system-api-sub000/pkg/database"
	"github.com/halgurdkamal/pos-system-api-sub000/pkg/errors"
)

// TransferRepository handles stock transfer persistence
type TransferRepository struct {
	db *database.DB
}

// NewTransferRepository creates a new transfer repository
func NewTransferRepository(db *database.DB) *TransferRepository {
	return &TransferRepository{db: db}
}

// CreateTransfer inserts a new transfer record.
func (r *TransferRepository) CreateTransfer(ctx context.Context, t *domain.StockTransfer) error {
	if t.ID == "" {
		t.ID = uuid.New().String()
	}

	query := `
		INSERT INTO stock_transfers (
			id, from_shop_id, to_shop_id, drug_id, quantity, status, lines, notes, created_by
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		RETURNING created_at, updated_at
	`
	return r.db.QueryRowxContext(ctx, query,
		t.ID, t.FromShopID, t.ToShopID, t.DrugID, t.Quantity,
		t.Status, t.Lines, t.Notes, t.CreatedBy,
	).Scan(&t.CreatedAt, &t.UpdatedAt)
}

// GetTransfer gets a transfer by ID.
func (r *TransferRepository) GetTransfer(ctx context.Context, id string) (*domain.StockTransfer, error) {
	var t domain.StockTransfer
	query := `SELECT * FROM stock_transfers WHERE id = $1`
	if err := r.db.GetContext(ctx, &t, query, id); err != nil {
		if err == sql.ErrNoRows {
			return nil, errors.NotFound("transfer")
		}
		return nil, err
	}
	return &t, nil
}

// UpdateTransfer persists status and lines, guarded by the expected current
// status. A concurrent transition makes the guard miss and the update fails
// with a conflict instead of clobbering the other writer.
func (r *TransferRepository) UpdateTransfer(ctx context.Context, t *domain.StockTransfer, expected domain.TransferStatus) error {
	query := `
		UPDATE stock_transfers SET
			status = $2, lines = $3, notes = $4, updated_at = NOW()
		WHERE id = $1 AND status = $5
	`
	result, err := r.db.ExecContext(ctx, query, t.ID, t.Status, t.Lines, t.Notes, expected)
	if err != nil {
		return err
	}

	affected, _ := result.RowsAffected()
	if affected == 0 {
		return errors.Conflict("transfer was modified concurrently")
	}

	return nil
}

// ListTransfersByShop lists transfers where the shop is sender or receiver,
// newest first.
func (r *TransferRepository) ListTransfersByShop(ctx context.Context, shopID string) ([]*domain.StockTransfer, error) {
	transfers := []*domain.StockTransfer{}
	query := `
		SELECT * FROM stock_transfers
		WHERE from_shop_id = $1 OR to_shop_id = $1
		ORDER BY created_at DESC
	`
	if err := r.db.SelectContext(ctx, &transfers, query, shopID); err != nil {
		return nil, err
	}
	return transfers, nil
}
