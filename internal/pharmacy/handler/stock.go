package handler

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"

	"github.com/halgurdkamal/pos-system-api-sub000/internal/pharmacy/domain"
	"github.com/halgurdkamal/pos-system-api-sub000/internal/pharmacy/service"
	"github.com/halgurdkamal/pos-system-api-sub000/pkg/errors"
	"github.com/halgurdkamal/pos-system-api-sub000/pkg/httputil"
	"github.com/halgurdkamal/pos-system-api-sub000/pkg/logger"
)

// StockHandler handles stock movement endpoints
type StockHandler struct {
	service *service.StockService
	logger  *logger.Logger
}

// NewStockHandler creates a new stock handler
func NewStockHandler(svc *service.StockService, log *logger.Logger) *StockHandler {
	return &StockHandler{
		service: svc,
		logger:  log,
	}
}

// Get returns the full aggregate including batch detail.
func (h *StockHandler) Get(w http.ResponseWriter, r *http.Request) {
	shopID := chi.URLParam(r, "shopID")
	drugID := chi.URLParam(r, "drugID")

	inv, err := h.service.GetInventory(r.Context(), shopID, drugID)
	if err != nil {
		httputil.Error(w, err)
		return
	}

	httputil.JSON(w, http.StatusOK, inv)
}

type receiveStockRequest struct {
	BatchNumber   string          `json:"batch_number" validate:"required"`
	SupplierID    string          `json:"supplier_id" validate:"required"`
	Quantity      int64           `json:"quantity" validate:"required,gt=0"`
	ExpiryDate    time.Time       `json:"expiry_date" validate:"required"`
	ReceivedDate  *time.Time      `json:"received_date,omitempty"`
	PurchasePrice decimal.Decimal `json:"purchase_price"`
	SellingPrice  decimal.Decimal `json:"selling_price"`
	Location      string          `json:"location,omitempty" validate:"omitempty,oneof=shop_floor storage reserved quarantine"`
}

// Receive records a stock receipt and returns the updated aggregate along
// with the per-unit price changes the cascade produced.
func (h *StockHandler) Receive(w http.ResponseWriter, r *http.Request) {
	shopID := chi.URLParam(r, "shopID")
	drugID := chi.URLParam(r, "drugID")

	var req receiveStockRequest
	if err := httputil.DecodeAndValidate(r, &req); err != nil {
		httputil.Error(w, err)
		return
	}

	receivedDate := time.Now().UTC()
	if req.ReceivedDate != nil {
		receivedDate = *req.ReceivedDate
	}

	batch := domain.Batch{
		BatchNumber:    req.BatchNumber,
		SupplierID:     req.SupplierID,
		QuantityOnHand: req.Quantity,
		ReceivedDate:   receivedDate,
		ExpiryDate:     req.ExpiryDate,
		PurchasePrice:  req.PurchasePrice,
		SellingPrice:   req.SellingPrice,
		Location:       domain.BatchLocation(req.Location),
	}

	inv, changes, err := h.service.ReceiveStock(r.Context(), shopID, drugID, batch)
	if err != nil {
		httputil.Error(w, err)
		return
	}

	httputil.Created(w, map[string]interface{}{
		"inventory":     inv,
		"price_changes": changes,
	})
}

type reduceStockRequest struct {
	Quantity int64 `json:"quantity" validate:"required,gt=0"`
}

// Reduce consumes stock FIFO for a sale and returns the per-batch
// consumption detail.
func (h *StockHandler) Reduce(w http.ResponseWriter, r *http.Request) {
	shopID := chi.URLParam(r, "shopID")
	drugID := chi.URLParam(r, "drugID")

	var req reduceStockRequest
	if err := httputil.DecodeAndValidate(r, &req); err != nil {
		httputil.Error(w, err)
		return
	}

	inv, consumed, err := h.service.ReduceStock(r.Context(), shopID, drugID, req.Quantity)
	if err != nil {
		httputil.Error(w, err)
		return
	}

	httputil.JSON(w, http.StatusOK, map[string]interface{}{
		"inventory": inv,
		"consumed":  consumed,
	})
}

type relocateStockRequest struct {
	Quantity    int64  `json:"quantity" validate:"required,gt=0"`
	BatchNumber string `json:"batch_number,omitempty"`
}

// RestockFloor moves stock from storage onto the shop floor.
func (h *StockHandler) RestockFloor(w http.ResponseWriter, r *http.Request) {
	h.relocate(w, r, h.service.RestockShopFloor)
}

// ReturnToStorage moves stock from the shop floor back into storage.
func (h *StockHandler) ReturnToStorage(w http.ResponseWriter, r *http.Request) {
	h.relocate(w, r, h.service.ReturnToStorage)
}

func (h *StockHandler) relocate(w http.ResponseWriter, r *http.Request, move func(ctx context.Context, shopID, drugID string, quantity int64, batchNumber string) (*domain.ShopInventory, error)) {
	shopID := chi.URLParam(r, "shopID")
	drugID := chi.URLParam(r, "drugID")

	var req relocateStockRequest
	if err := httputil.DecodeAndValidate(r, &req); err != nil {
		httputil.Error(w, err)
		return
	}

	inv, err := move(r.Context(), shopID, drugID, req.Quantity, req.BatchNumber)
	if err != nil {
		httputil.Error(w, err)
		return
	}

	httputil.JSON(w, http.StatusOK, inv)
}

// ExpireCheck sweeps the aggregate for expired batches on demand and
// returns the batches that were marked.
func (h *StockHandler) ExpireCheck(w http.ResponseWriter, r *http.Request) {
	shopID := chi.URLParam(r, "shopID")
	drugID := chi.URLParam(r, "drugID")

	expired, err := h.service.MarkExpiredBatches(r.Context(), shopID, drugID)
	if err != nil {
		httputil.Error(w, err)
		return
	}
	if expired == nil {
		expired = []domain.Batch{}
	}

	httputil.JSON(w, http.StatusOK, map[string]interface{}{
		"expired": expired,
	})
}

// Expiring returns batches expiring within the given number of days
// (query parameter "days", default 30).
func (h *StockHandler) Expiring(w http.ResponseWriter, r *http.Request) {
	shopID := chi.URLParam(r, "shopID")
	drugID := chi.URLParam(r, "drugID")

	days, err := expiryDays(r)
	if err != nil {
		httputil.Error(w, err)
		return
	}

	batches, err := h.service.GetExpiringBatches(r.Context(), shopID, drugID, days)
	if err != nil {
		httputil.Error(w, err)
		return
	}

	httputil.JSON(w, http.StatusOK, batches)
}

// ShopExpiring returns a shop's expiring batches across all drugs.
func (h *StockHandler) ShopExpiring(w http.ResponseWriter, r *http.Request) {
	shopID := chi.URLParam(r, "shopID")

	days, err := expiryDays(r)
	if err != nil {
		httputil.Error(w, err)
		return
	}

	batches, err := h.service.ListShopExpiringBatches(r.Context(), shopID, days)
	if err != nil {
		httputil.Error(w, err)
		return
	}

	httputil.JSON(w, http.StatusOK, batches)
}

// ListShop returns a shop's inventories without batch detail.
func (h *StockHandler) ListShop(w http.ResponseWriter, r *http.Request) {
	shopID := chi.URLParam(r, "shopID")

	inventories, err := h.service.ListShopInventories(r.Context(), shopID)
	if err != nil {
		httputil.Error(w, err)
		return
	}

	httputil.JSON(w, http.StatusOK, inventories)
}

// LowStock returns a shop's inventories at or below their reorder point.
func (h *StockHandler) LowStock(w http.ResponseWriter, r *http.Request) {
	shopID := chi.URLParam(r, "shopID")

	inventories, err := h.service.ListLowStock(r.Context(), shopID)
	if err != nil {
		httputil.Error(w, err)
		return
	}

	httputil.JSON(w, http.StatusOK, inventories)
}

func expiryDays(r *http.Request) (int, error) {
	days := 30
	if v := r.URL.Query().Get("days"); v != "" {
		parsed, err := strconv.Atoi(v)
		if err != nil || parsed < 0 {
			return 0, errors.BadRequest("days must be a non-negative integer")
		}
		days = parsed
	}
	return days, nil
}
