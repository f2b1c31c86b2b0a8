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

	cataloghandler "github.com/farmastock/farmastock-backend/internal/catalog/handler"
	catalogrepo "github.com/farmastock/farmastock-backend/internal/catalog/repository"
	catalogservice "github.com/farmastock/farmastock-backend/internal/catalog/service"
	"github.com/farmastock/farmastock-backend/internal/inventory/events"
	inventoryhandler "github.com/farmastock/farmastock-backend/internal/inventory/handler"
	inventoryrepo "github.com/farmastock/farmastock-backend/internal/inventory/repository"
	inventoryservice "github.com/farmastock/farmastock-backend/internal/inventory/service"
	"github.com/farmastock/farmastock-backend/pkg/clock"
	"github.com/farmastock/farmastock-backend/pkg/config"
	"github.com/farmastock/farmastock-backend/pkg/database"
	"github.com/farmastock/farmastock-backend/pkg/httputil"
	"github.com/farmastock/farmastock-backend/pkg/logger"
	"github.com/farmastock/farmastock-backend/pkg/messaging"
)

func main() {
	// Load configuration with validation (fails fast in production if required config is missing)
	cfg, err := config.LoadWithValidation("inventory-service")
	if err != nil {
		fmt.Fprintf(os.Stderr, "configuration error: %v\n", err)
		os.Exit(1)
	}

	// Initialize logger
	log := logger.New("inventory-service", cfg.Server.Environment)
	log.Info().Msg("starting Inventory Service")

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
	publisher, err := events.NewInventoryEventPublisher(rmq, log)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to create event publisher")
	}

	clk := clock.Real{}

	// Initialize repositories
	labRepo := catalogrepo.NewLaboratoryRepository(db)
	productRepo := catalogrepo.NewProductRepository(db)
	batchRepo := inventoryrepo.NewBatchRepository(db)
	stockRepo := inventoryrepo.NewStockRepository(db)
	orderRepo := inventoryrepo.NewOrderRepository(db)
	saleRepo := inventoryrepo.NewSaleRepository(db)

	// Initialize services
	catalogService := catalogservice.NewCatalogService(db, labRepo, productRepo, batchRepo, clk, log)
	stockService := inventoryservice.NewStockService(stockRepo, clk, log)
	orderService := inventoryservice.NewOrderService(db, orderRepo, batchRepo, productRepo, publisher, clk, log)
	saleService := inventoryservice.NewSaleService(db, saleRepo, batchRepo, productRepo, publisher, clk, log)

	// Initialize handlers
	labHandler := cataloghandler.NewLaboratoryHandler(catalogService, log)
	productHandler := cataloghandler.NewProductHandler(catalogService, log)
	stockHandler := inventoryhandler.NewStockHandler(stockService, log)
	orderHandler := inventoryhandler.NewOrderHandler(orderService, log)
	saleHandler := inventoryhandler.NewSaleHandler(saleService, log)

	// Create router
	r := chi.NewRouter()

	// Middleware
	r.Use(middleware.RealIP)
	r.Use(httputil.RequestID)
	r.Use(httputil.Logger(log))
	r.Use(httputil.Recoverer(log))
	r.Use(middleware.Timeout(60 * time.Second))

	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"http://localhost:3000", "http://localhost:5173"},
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Content-Type", "X-Request-ID"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	// Health check
	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		httputil.JSON(w, http.StatusOK, map[string]interface{}{
			"status":   "healthy",
			"service":  "inventory-service",
			"database": db.Health(r.Context()),
			"rabbitmq": rmq.Health(),
		})
	})

	// API routes
	r.Route("/api/v1", func(r chi.Router) {
		r.Route("/laboratories", func(r chi.Router) {
			r.Get("/", labHandler.List)
			r.Post("/", labHandler.Create)
			r.Get("/{id}", labHandler.Get)
		})

		r.Route("/products", func(r chi.Router) {
			r.Get("/", stockHandler.List)
			r.Post("/", productHandler.Create)
			r.Get("/for-sale", stockHandler.ListForSale)
			r.Get("/expiring", stockHandler.Expiring)
			r.Get("/{id}", stockHandler.Get)
			r.Put("/{id}", productHandler.Update)
		})

		r.Route("/orders", func(r chi.Router) {
			r.Get("/", orderHandler.List)
			r.Post("/", orderHandler.Create)
			r.Get("/{id}", orderHandler.Get)
		})

		r.Route("/sales", func(r chi.Router) {
			r.Get("/", saleHandler.List)
			r.Post("/", saleHandler.Create)
			r.Post("/check-stock", saleHandler.CheckStock)
			r.Get("/{id}", saleHandler.Get)
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

	// Graceful shutdown
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("server forced to shutdown")
	}

	log.Info().Msg("server stopped")
}
