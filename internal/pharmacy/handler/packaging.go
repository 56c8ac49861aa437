package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"

	"github.com/halgurdkamal/pos-system-api-sub000/internal/pharmacy/domain"
	"github.com/halgurdkamal/pos-system-api-sub000/internal/pharmacy/service"
	"github.com/halgurdkamal/pos-system-api-sub000/pkg/httputil"
	"github.com/halgurdkamal/pos-system-api-sub000/pkg/logger"
)

// PackagingHandler handles effective packaging endpoints
type PackagingHandler struct {
	resolver *service.PackagingResolver
	service  *service.PackagingService
	logger   *logger.Logger
}

// NewPackagingHandler creates a new packaging handler
func NewPackagingHandler(resolver *service.PackagingResolver, svc *service.PackagingService, log *logger.Logger) *PackagingHandler {
	return &PackagingHandler{
		resolver: resolver,
		service:  svc,
		logger:   log,
	}
}

// GetEffectivePackaging resolves the merged per-shop packaging view for a
// drug: global levels with shop overrides applied plus shop custom levels,
// with effective quantities, prices and sell-unit flags.
func (h *PackagingHandler) GetEffectivePackaging(w http.ResponseWriter, r *http.Request) {
	shopID := chi.URLParam(r, "shopID")
	drugID := chi.URLParam(r, "drugID")

	levels, err := h.resolver.Resolve(r.Context(), shopID, drugID)
	if err != nil {
		httputil.Error(w, err)
		return
	}

	httputil.JSON(w, http.StatusOK, levels)
}

type packagingOverrideRequest struct {
	ID                        string           `json:"id,omitempty"`
	PackagingLevelID          *string          `json:"packaging_level_id,omitempty"`
	ParentPackagingLevelID    *string          `json:"parent_packaging_level_id,omitempty"`
	ParentOverrideID          *string          `json:"parent_override_id,omitempty"`
	CustomUnitName            *string          `json:"custom_unit_name,omitempty"`
	OverrideQuantityPerParent *decimal.Decimal `json:"override_quantity_per_parent,omitempty"`
	SellingPrice              *decimal.Decimal `json:"selling_price,omitempty"`
	IsSellable                *bool            `json:"is_sellable,omitempty"`
	IsDefaultSellUnit         *bool            `json:"is_default_sell_unit,omitempty"`
	MinimumSaleQuantity       *decimal.Decimal `json:"minimum_sale_quantity,omitempty"`
	CustomLevelOrder          *int             `json:"custom_level_order,omitempty"`
}

// UpsertOverride creates or updates a shop override or custom level and
// returns the refreshed effective packaging view.
func (h *PackagingHandler) UpsertOverride(w http.ResponseWriter, r *http.Request) {
	shopID := chi.URLParam(r, "shopID")
	drugID := chi.URLParam(r, "drugID")

	var req packagingOverrideRequest
	if err := httputil.DecodeAndValidate(r, &req); err != nil {
		httputil.Error(w, err)
		return
	}

	override := &domain.ShopPackagingOverride{
		ID:                        req.ID,
		ShopID:                    shopID,
		DrugID:                    drugID,
		PackagingLevelID:          req.PackagingLevelID,
		ParentPackagingLevelID:    req.ParentPackagingLevelID,
		ParentOverrideID:          req.ParentOverrideID,
		CustomUnitName:            req.CustomUnitName,
		OverrideQuantityPerParent: req.OverrideQuantityPerParent,
		SellingPrice:              req.SellingPrice,
		IsSellable:                req.IsSellable,
		IsDefaultSellUnit:         req.IsDefaultSellUnit,
		MinimumSaleQuantity:       req.MinimumSaleQuantity,
		CustomLevelOrder:          req.CustomLevelOrder,
	}

	levels, err := h.service.UpsertOverride(r.Context(), override)
	if err != nil {
		httputil.Error(w, err)
		return
	}

	httputil.JSON(w, http.StatusOK, map[string]interface{}{
		"override": override,
		"levels":   levels,
	})
}

// DeleteOverride removes a shop override and returns the refreshed effective
// packaging view.
func (h *PackagingHandler) DeleteOverride(w http.ResponseWriter, r *http.Request) {
	shopID := chi.URLParam(r, "shopID")
	drugID := chi.URLParam(r, "drugID")
	overrideID := chi.URLParam(r, "overrideID")

	levels, err := h.service.DeleteOverride(r.Context(), shopID, drugID, overrideID)
	if err != nil {
		httputil.Error(w, err)
		return
	}

	httputil.JSON(w, http.StatusOK, levels)
}
