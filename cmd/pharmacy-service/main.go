package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"github.com/halgurdkamal/pos-system-api-sub000/internal/pharmacy/events"
	"github.com/halgurdkamal/pos-system-api-sub000/internal/pharmacy/handler"
	"github.com/halgurdkamal/pos-system-api-sub000/internal/pharmacy/repository"
	"github.com/halgurdkamal/pos-system-api-sub000/internal/pharmacy/service"
	"github.com/halgurdkamal/pos-system-api-sub000/pkg/config"
	"github.com/halgurdkamal/pos-system-api-sub000/pkg/database"
	"github.com/halgurdkamal/pos-system-api-sub000/pkg/httputil"
	"github.com/halgurdkamal/pos-system-api-sub000/pkg/logger"
	"github.com/halgurdkamal/pos-system-api-sub000/pkg/messaging"
)

func main() {
	// Load configuration with validation (fails fast in production if required config is missing)
	cfg, err := config.LoadWithValidation("pharmacy-service")
	if err != nil {
		fmt.Fprintf(os.Stderr, "configuration error: %v\n", err)
		os.Exit(1)
	}

	// Initialize logger
	log := logger.New("pharmacy-service", cfg.Server.Environment)
	log.Info().Msg("starting Pharmacy Service")

	// Connect to database
	db, err := database.New(&cfg.Database, log)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to connect to database")
	}
	defer db.Close()

	// Connect to RabbitMQ
	rmq, err := messaging.New(&cfg.RabbitMQ, log)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to connect to RabbitMQ")
	}
	defer rmq.Close()

	// Initialize event publisher
	publisher, err := events.NewPharmacyEventPublisher(rmq, log)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to create event publisher")
	}

	// Initialize repositories
	packagingRepo := repository.NewPackagingRepository(db)
	inventoryRepo := repository.NewInventoryRepository(db)
	transferRepo := repository.NewTransferRepository(db)

	// Initialize services
	resolver := service.NewPackagingResolver(packagingRepo, inventoryRepo, log)
	packagingService := service.NewPackagingService(packagingRepo, resolver, log)
	cascade := service.NewPriceCascade(resolver, log)
	stockService := service.NewStockService(inventoryRepo, cascade, publisher, log)
	transferService := service.NewTransferService(transferRepo, inventoryRepo, publisher, log)

	// Initialize handlers
	packagingHandler := handler.NewPackagingHandler(resolver, packagingService, log)
	stockHandler := handler.NewStockHandler(stockService, log)
	transferHandler := handler.NewTransferHandler(transferService, log)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Start the expiry sweep scheduler
	scheduler := service.NewExpiryScheduler(stockService, inventoryRepo, db, cfg.Stock.ExpiryScanInterval, log)
	scheduler.Start(ctx)
	defer scheduler.Stop()

	// Create router
	r := chi.NewRouter()

	// Middleware
	r.Use(middleware.RealIP)
	r.Use(httputil.RequestID)
	r.Use(httputil.Logger(log))
	r.Use(httputil.Recoverer(log))
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"*"},
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Content-Type", "X-Tenant-ID", "X-Tenant-Slug", "X-User-ID", "X-User-Name"},
		AllowCredentials: false,
		MaxAge:           300,
	}))
	r.Use(httputil.TenantMiddleware) // Extract tenant context from headers
	r.Use(httputil.ActorMiddleware)

	// Health check
	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		httputil.JSON(w, http.StatusOK, map[string]interface{}{
			"status":   "healthy",
			"service":  "pharmacy-service",
			"database": db.Health(r.Context()),
			"rabbitmq": rmq.Health(),
		})
	})

	// API routes
	r.Route("/api/v1/pharmacy", func(r chi.Router) {
		// Effective packaging and shop overrides
		r.Route("/shops/{shopID}/drugs/{drugID}/packaging", func(r chi.Router) {
			r.Get("/", packagingHandler.GetEffectivePackaging)
			r.Put("/overrides", packagingHandler.UpsertOverride)
			r.Delete("/overrides/{overrideID}", packagingHandler.DeleteOverride)
		})

		// Stock movements
		r.Route("/shops/{shopID}/drugs/{drugID}/stock", func(r chi.Router) {
			r.Get("/", stockHandler.Get)
			r.Post("/receive", stockHandler.Receive)
			r.Post("/reduce", stockHandler.Reduce)
			r.Post("/restock-floor", stockHandler.RestockFloor)
			r.Post("/return-storage", stockHandler.ReturnToStorage)
			r.Post("/expire-check", stockHandler.ExpireCheck)
			r.Get("/expiring", stockHandler.Expiring)
		})

		// Shop-level stock views
		r.Route("/shops/{shopID}/stock", func(r chi.Router) {
			r.Get("/", stockHandler.ListShop)
			r.Get("/low-stock", stockHandler.LowStock)
			r.Get("/expiring", stockHandler.ShopExpiring)
		})

		// Cross-shop transfers
		r.Route("/transfers", func(r chi.Router) {
			r.Post("/", transferHandler.Create)
			r.Get("/", transferHandler.List)
			r.Get("/{id}", transferHandler.Get)
			r.Post("/{id}/approve", transferHandler.Approve)
			r.Post("/{id}/dispatch", transferHandler.Dispatch)
			r.Post("/{id}/complete", transferHandler.Complete)
			r.Post("/{id}/cancel", transferHandler.Cancel)
		})
	})

	// Create server
	addr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
	srv := &http.Server{
		Addr:         addr,
		Handler:      r,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	// Start server
	go func() {
		log.Info().Str("addr", addr).Msg("server listening")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("server error")
		}
	}()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info().Msg("shutting down server")

	// Stop the scheduler
	cancel()

	// Graceful shutdown
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.WithError(err).Error().Msg("server forced to shutdown")
	}

	log.Info().Msg("server stopped")
}
