package service

import (
	"context"
	"time"

	"github.com/halgurdkamal/pos-system-api-sub000/pkg/database"
	"github.com/halgurdkamal/pos-system-api-sub000/pkg/logger"
	"github.com/halgurdkamal/pos-system-api-sub000/pkg/tenant"
)

// ExpiryScheduler runs batch expiry sweeps periodically across all tenants.
// It queries public.tenants for active tenants and sweeps every stocked
// shop-drug pair with each tenant's context.
type ExpiryScheduler struct {
	stock          *StockService
	inventoryStore InventoryStore
	db             *database.DB
	interval       time.Duration
	logger         *logger.Logger
	cancel         context.CancelFunc
}

// NewExpiryScheduler creates a new expiry scheduler
func NewExpiryScheduler(stock *StockService, inventoryStore InventoryStore, db *database.DB, interval time.Duration, log *logger.Logger) *ExpiryScheduler {
	return &ExpiryScheduler{
		stock:          stock,
		inventoryStore: inventoryStore,
		db:             db,
		interval:       interval,
		logger:         log.WithComponent("expiry-scheduler"),
	}
}

// Start starts the scheduler in a background goroutine.
// On each tick it queries all active tenants and sweeps each one.
func (s *ExpiryScheduler) Start(ctx context.Context) {
	ctx, s.cancel = context.WithCancel(ctx)

	go func() {
		s.logger.Info().Dur("interval", s.interval).Msg("expiry scheduler started")

		// Run an initial sweep immediately
		s.runSweepCycle(ctx)

		ticker := time.NewTicker(s.interval)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				s.logger.Info().Msg("expiry scheduler stopped")
				return
			case <-ticker.C:
				s.runSweepCycle(ctx)
			}
		}
	}()
}

// Stop stops the scheduler goroutine
func (s *ExpiryScheduler) Stop() {
	if s.cancel != nil {
		s.cancel()
	}
}

// runSweepCycle queries all active tenants and sweeps each one
func (s *ExpiryScheduler) runSweepCycle(ctx context.Context) {
	start := time.Now()
	s.logger.Info().Msg("starting expiry sweep cycle")

	tenantIDs, err := s.getActiveTenantIDs(ctx)
	if err != nil {
		s.logger.Error().Err(err).Msg("failed to query active tenants")
		return
	}

	for _, tenantID := range tenantIDs {
		tenantCtx := tenant.WithTenantID(ctx, tenantID)

		if err := s.sweepTenant(tenantCtx); err != nil {
			s.logger.Error().Err(err).Str("tenant_id", tenantID).Msg("expiry sweep failed for tenant")
		}
	}

	s.logger.Info().
		Dur("duration", time.Since(start)).
		Int("tenant_count", len(tenantIDs)).
		Msg("expiry sweep cycle completed")
}

// sweepTenant marks expired batches for every stocked shop-drug pair of one
// tenant.
func (s *ExpiryScheduler) sweepTenant(ctx context.Context) error {
	pairs, err := s.inventoryStore.ListStockedPairs(ctx)
	if err != nil {
		return err
	}

	expiredTotal := 0
	for _, pair := range pairs {
		expired, err := s.stock.MarkExpiredBatches(ctx, pair.ShopID, pair.DrugID)
		if err != nil {
			s.logger.WithShopDrug(pair.ShopID, pair.DrugID).Error().Err(err).
				Msg("expiry sweep failed for inventory")
			continue
		}
		expiredTotal += len(expired)
	}

	if expiredTotal > 0 {
		s.logger.Info().Int("expired_batches", expiredTotal).Msg("expiry sweep marked batches")
	}
	return nil
}

// getActiveTenantIDs queries all active tenant IDs from public.tenants.
// This is a direct query on the public schema which has no RLS, so no
// tenant context is needed.
func (s *ExpiryScheduler) getActiveTenantIDs(ctx context.Context) ([]string, error) {
	var tenantIDs []string
	query := `SELECT id FROM public.tenants WHERE is_active = TRUE`
	err := s.db.DB.SelectContext(ctx, &tenantIDs, query)
	if err != nil {
		return nil, err
	}
	return tenantIDs, nil
}
