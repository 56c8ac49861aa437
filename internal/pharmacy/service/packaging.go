package service

import (
	"context"

	"github.com/google/uuid"

	"github.com/halgurdkamal/pos-system-api-sub000/internal/pharmacy/domain"
	"github.com/halgurdkamal/pos-system-api-sub000/pkg/errors"
	"github.com/halgurdkamal/pos-system-api-sub000/pkg/logger"
)

// PackagingService manages shop packaging overrides. Every write is followed
// by a full re-resolution so a change that breaks the shop's unit chain
// (missing parent, bad quantity, cycle) is reported to the caller
// immediately.
type PackagingService struct {
	configStore PackagingConfigStore
	resolver    *PackagingResolver
	logger      *logger.Logger
}

// NewPackagingService creates a new packaging service
func NewPackagingService(configStore PackagingConfigStore, resolver *PackagingResolver, log *logger.Logger) *PackagingService {
	return &PackagingService{
		configStore: configStore,
		resolver:    resolver,
		logger:      log,
	}
}

// UpsertOverride creates or updates a shop override or custom level and
// returns the refreshed effective packaging view.
func (s *PackagingService) UpsertOverride(ctx context.Context, ov *domain.ShopPackagingOverride) ([]domain.EffectivePackagingLevel, error) {
	if ov.ShopID == "" || ov.DrugID == "" {
		return nil, errors.BadRequest("shop and drug are required")
	}
	if ov.IsCustom() {
		if ov.CustomUnitName == nil || *ov.CustomUnitName == "" {
			return nil, errors.BadRequest("custom packaging level requires a unit name")
		}
		if ov.OverrideQuantityPerParent == nil || !ov.OverrideQuantityPerParent.IsPositive() {
			return nil, errors.BadRequest("custom packaging level requires a positive quantity per parent")
		}
		if ov.ParentPackagingLevelID == nil && ov.ParentOverrideID == nil {
			return nil, errors.BadRequest("custom packaging level requires a parent")
		}
	}
	if ov.OverrideQuantityPerParent != nil && !ov.OverrideQuantityPerParent.IsPositive() {
		return nil, errors.BadRequest("quantity per parent must be positive")
	}

	if ov.ID == "" {
		ov.ID = uuid.New().String()
	}

	if err := s.configStore.SaveShopPackagingOverride(ctx, ov); err != nil {
		return nil, err
	}

	s.logger.Info().
		Str("shop_id", ov.ShopID).
		Str("drug_id", ov.DrugID).
		Str("override_id", ov.ID).
		Bool("custom", ov.IsCustom()).
		Msg("packaging override saved")

	return s.resolver.Resolve(ctx, ov.ShopID, ov.DrugID)
}

// DeleteOverride removes a shop override and returns the refreshed effective
// packaging view.
func (s *PackagingService) DeleteOverride(ctx context.Context, shopID, drugID, overrideID string) ([]domain.EffectivePackagingLevel, error) {
	if err := s.configStore.DeleteShopPackagingOverride(ctx, overrideID); err != nil {
		return nil, err
	}

	s.logger.Info().
		Str("shop_id", shopID).
		Str("drug_id", drugID).
		Str("override_id", overrideID).
		Msg("packaging override deleted")

	return s.resolver.Resolve(ctx, shopID, drugID)
}
