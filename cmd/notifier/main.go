package main

import (
	"context"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"go.uber.org/zap"

	"github.com/ariefcatur/go-shop-api.git/internal/config"
	"github.com/ariefcatur/go-shop-api.git/internal/events"
	kafkax "github.com/ariefcatur/go-shop-api.git/internal/kafka"
	"github.com/ariefcatur/go-shop-api.git/internal/notify"
	"github.com/ariefcatur/go-shop-api.git/internal/redisx"
)

func getenv(k, def string) string {
	if v := os.Getenv(k); v != "" {
		return v
	}
	return def
}

func mustAtoi(s, def string) int {
	if s == "" {
		s = def
	}
	i, err := strconv.Atoi(s)
	if err != nil {
		return 1
	}
	return i
}

func main() {
	_ = godotenv.Load()

	logger, _ := zap.NewProduction()
	defer func() { _ = logger.Sync() }()

	cfg := config.Load()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	rdb := redisx.New(cfg.RedisAddr)
	defer rdb.Close()

	n := &notify.Notifier{
		Redis:       rdb,
		ServiceName: cfg.ServiceName + "-notifier",
		Log:         logger,
	}

	group := getenv("NOTIFIER_GROUP", "notifier-svc")
	workers := mustAtoi(os.Getenv("NOTIFIER_WORKERS"), "4")

	statusCons := kafkax.NewConsumer(cfg.KafkaBrokers, group, events.TopicOrderStatusUpdated, workers, logger)
	stockCons := kafkax.NewConsumer(cfg.KafkaBrokers, group, events.TopicLowStock, workers, logger)

	go func() {
		logger.Info("status consumer started", zap.String("group", group), zap.String("topic", events.TopicOrderStatusUpdated))
		if err := statusCons.Start(ctx, n.HandleStatusUpdated); err != nil {
			logger.Error("status consumer exit", zap.Error(err))
			cancel()
		}
	}()
	go func() {
		logger.Info("low-stock consumer started", zap.String("group", group), zap.String("topic", events.TopicLowStock))
		if err := stockCons.Start(ctx, n.HandleLowStock); err != nil {
			logger.Error("low-stock consumer exit", zap.Error(err))
			cancel()
		}
	}()

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
	select {
	case <-sig:
	case <-ctx.Done():
	}
	logger.Info("shutting down notifier...")
	cancel()
	time.Sleep(500 * time.Millisecond)
}
