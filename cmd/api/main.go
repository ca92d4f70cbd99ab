package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"go.uber.org/zap"

	"github.com/ariefcatur/go-shop-api.git/internal/auth"
	"github.com/ariefcatur/go-shop-api.git/internal/catalog"
	"github.com/ariefcatur/go-shop-api.git/internal/config"
	"github.com/ariefcatur/go-shop-api.git/internal/events"
	"github.com/ariefcatur/go-shop-api.git/internal/httpx"
	"github.com/ariefcatur/go-shop-api.git/internal/inventory"
	kafkax "github.com/ariefcatur/go-shop-api.git/internal/kafka"
	"github.com/ariefcatur/go-shop-api.git/internal/orders"
	"github.com/ariefcatur/go-shop-api.git/internal/postgres"
	"github.com/ariefcatur/go-shop-api.git/internal/redisx"
)

func main() {
	_ = godotenv.Load()

	logger, _ := zap.NewProduction()
	defer func() { _ = logger.Sync() }()

	cfg := config.Load()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// DB
	db, err := postgres.Connect(ctx, cfg.PostgresDSN)
	if err != nil {
		logger.Fatal("db connect", zap.Error(err))
	}
	defer db.Close()

	// Redis
	rdb := redisx.New(cfg.RedisAddr)
	defer rdb.Close()

	// Kafka producers: status notifications & low-stock warnings
	statusProd := kafkax.NewProducer(cfg.KafkaBrokers, events.TopicOrderStatusUpdated, 1024)
	statusProd.Start(ctx)
	stockProd := kafkax.NewProducer(cfg.KafkaBrokers, events.TopicLowStock, 1024)
	stockProd.Start(ctx)

	// explicit wiring, leaf-first
	ledger := inventory.Ledger{}
	watcher := &inventory.Watcher{DB: db, Producer: stockProd, ServiceName: cfg.ServiceName, Log: logger}

	catalogRepo := &catalog.Repo{DB: db}
	catalogSvc := &catalog.Service{DB: db, Repo: catalogRepo, Ledger: ledger, Watcher: watcher, Log: logger}
	importer := &catalog.Importer{Creator: catalogSvc}

	orderRepo := &orders.Repo{DB: db}
	orderSvc := &orders.Service{
		DB:          db,
		Repo:        orderRepo,
		Catalog:     catalogRepo,
		Ledger:      ledger,
		Watcher:     watcher,
		Producer:    statusProd,
		ServiceName: cfg.ServiceName,
		Log:         logger,
	}

	authSvc := &auth.Service{DB: db, Redis: rdb, Cost: cfg.BcryptCost, TokenTTL: cfg.TokenTTL}

	router := httpx.NewRouter()
	(&httpx.AuthHandler{Auth: authSvc}).Register(router)
	(&httpx.ProductsHandler{DB: db, Svc: catalogSvc, Repo: catalogRepo, Importer: importer, Ledger: ledger, Auth: authSvc}).Register(router)
	(&httpx.OrdersHandler{Svc: orderSvc, Redis: rdb, Auth: authSvc}).Register(router)

	srv := &http.Server{Addr: cfg.HTTPAddr, Handler: router}

	go func() {
		logger.Info("HTTP listening", zap.String("addr", cfg.HTTPAddr))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("listen", zap.Error(err))
		}
	}()

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
	<-sig
	logger.Info("shutting down...")

	ctx2, cancel2 := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel2()
	_ = srv.Shutdown(ctx2)
	statusProd.Close()
	stockProd.Close()
	cancel()
	statusProd.WaitClosed()
	stockProd.WaitClosed()
}
