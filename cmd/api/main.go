package main

import (
	"log/slog"
	"net/http"
	"os"

	"github.com/edumart/order-backend/internal/cache"
	"github.com/edumart/order-backend/internal/config"
	"github.com/edumart/order-backend/internal/dashboard"
	"github.com/edumart/order-backend/internal/database"
	"github.com/edumart/order-backend/internal/enrich"
	"github.com/edumart/order-backend/internal/logging"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
)

func main() {
	logging.Init()

	cfg, err := config.Load()
	if err != nil {
		slog.Error("load config", "error", err)
		os.Exit(1)
	}

	db, err := database.NewConnection(&cfg.Database)
	if err != nil {
		slog.Error("connect to database", "error", err)
		os.Exit(1)
	}
	defer db.Close()

	slog.Info("connected to database")

	enricher := enrich.New(db, slog.Default())
	dashCache := cache.NewRedisCache(cfg.Redis.Addr, "order-backend")
	dash := dashboard.New(db, dashCache, enricher, cfg.Dashboard, cfg.Redis.CacheTTL, slog.Default())
	handler := NewHandler(db, enricher, dash)

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)

	r.Post("/orders", handler.CreateOrder)
	r.Get("/orders", handler.SearchOrders)
	r.Get("/orders/number/{orderNumber}", handler.GetOrderByNumber)
	r.Get("/orders/{id}", handler.GetOrder)
	r.Patch("/orders/{id}/status", handler.UpdateOrderStatus)
	r.Patch("/orders/{id}/payment", handler.UpdatePayment)
	r.Patch("/orders/{id}/items/{itemID}/status", handler.UpdateItemStatus)
	r.Get("/warehouses/{id}/stats", handler.WarehouseStats)
	r.Post("/retailers/{id}/warehouses/{warehouseID}", handler.LinkWarehouse)
	r.Get("/retailers/{id}/dashboard", handler.RetailerDashboard)

	server := &http.Server{
		Addr:         ":" + cfg.Server.Port,
		Handler:      r,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	slog.Info("server starting", "port", cfg.Server.Port)
	if err := server.ListenAndServe(); err != nil {
		slog.Error("server error", "error", err)
		os.Exit(1)
	}
}
