package handler

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/halgurdkamal/pos-system-api-sub000/internal/pharmacy/domain"
	"github.com/halgurdkamal/pos-system-api-sub000/internal/pharmacy/service"
	"github.com/halgurdkamal/pos-system-api-sub000/pkg/errors"
	"github.com/halgurdkamal/pos-system-api-sub000/pkg/httputil"
	"github.com/halgurdkamal/pos-system-api-sub000/pkg/logger"
)

// TransferHandler handles cross-shop transfer endpoints
type TransferHandler struct {
	service *service.TransferService
	logger  *logger.Logger
}

// NewTransferHandler creates a new transfer handler
func NewTransferHandler(svc *service.TransferService, log *logger.Logger) *TransferHandler {
	return &TransferHandler{
		service: svc,
		logger:  log,
	}
}

type createTransferRequest struct {
	FromShopID string  `json:"from_shop_id" validate:"required"`
	ToShopID   string  `json:"to_shop_id" validate:"required"`
	DrugID     string  `json:"drug_id" validate:"required"`
	Quantity   int64   `json:"quantity" validate:"required,gt=0"`
	Notes      *string `json:"notes,omitempty"`
}

// Create opens a pending transfer request.
func (h *TransferHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req createTransferRequest
	if err := httputil.DecodeAndValidate(r, &req); err != nil {
		httputil.Error(w, err)
		return
	}

	t, err := h.service.CreateTransfer(r.Context(), req.FromShopID, req.ToShopID, req.DrugID, req.Quantity, req.Notes)
	if err != nil {
		httputil.Error(w, err)
		return
	}

	httputil.Created(w, t)
}

// List lists transfers where the shop is sender or receiver (query
// parameter "shop_id", required).
func (h *TransferHandler) List(w http.ResponseWriter, r *http.Request) {
	shopID := r.URL.Query().Get("shop_id")
	if shopID == "" {
		httputil.Error(w, errors.BadRequest("shop_id query parameter is required"))
		return
	}

	transfers, err := h.service.ListTransfersByShop(r.Context(), shopID)
	if err != nil {
		httputil.Error(w, err)
		return
	}

	httputil.JSON(w, http.StatusOK, transfers)
}

// Get gets a transfer by ID.
func (h *TransferHandler) Get(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	t, err := h.service.GetTransfer(r.Context(), id)
	if err != nil {
		httputil.Error(w, err)
		return
	}

	httputil.JSON(w, http.StatusOK, t)
}

// Approve moves a pending transfer to approved.
func (h *TransferHandler) Approve(w http.ResponseWriter, r *http.Request) {
	h.transition(w, r, h.service.ApproveTransfer)
}

// Dispatch withdraws stock from the sender and marks the transfer in transit.
func (h *TransferHandler) Dispatch(w http.ResponseWriter, r *http.Request) {
	h.transition(w, r, h.service.DispatchTransfer)
}

// Complete delivers an in-transit transfer into the receiver's storage.
func (h *TransferHandler) Complete(w http.ResponseWriter, r *http.Request) {
	h.transition(w, r, h.service.CompleteTransfer)
}

// Cancel cancels a non-terminal transfer, returning in-transit stock to the
// sender.
func (h *TransferHandler) Cancel(w http.ResponseWriter, r *http.Request) {
	h.transition(w, r, h.service.CancelTransfer)
}

func (h *TransferHandler) transition(w http.ResponseWriter, r *http.Request, fn func(ctx context.Context, id string) (*domain.StockTransfer, error)) {
	id := chi.URLParam(r, "id")

	t, err := fn(r.Context(), id)
	if err != nil {
		httputil.Error(w, err)
		return
	}

	httputil.JSON(w, http.StatusOK, t)
}
