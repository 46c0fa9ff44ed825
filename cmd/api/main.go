package main

import (
	"context"
	"log"
	"os/signal"
	"syscall"
	"time"

	"storefront/internal/core/auth"
	"storefront/internal/core/cache"
	"storefront/internal/core/config"
	"storefront/internal/core/database"
	"storefront/internal/core/idempotency"
	"storefront/internal/core/logger"
	"storefront/internal/core/server"
	cartadapter "storefront/internal/features/cart/adapters"
	orderadapter "storefront/internal/features/orders/adapters"
	orderhandler "storefront/internal/features/orders/handler"
	"storefront/internal/features/orders/ports"
	orderservice "storefront/internal/features/orders/service"

	"go.uber.org/zap"
)

// @title Storefront Orders API
// @version 1.0
// @description Order lifecycle API: checkout, status and payment transitions, cancellation and shipment tracking.
// @contact.name API Support
// @contact.email support@storefront.local
// @license.name MIT
// @host localhost:8080
// @BasePath /
// @securityDefinitions.apikey BearerAuth
// @in header
// @name Authorization
func main() {
	cfg, err := config.Load(".")
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	if err := logger.Init(cfg.Environment, cfg.LogLevel); err != nil {
		log.Fatalf("Failed to init logger: %v", err)
	}
	defer logger.Sync()

	l := logger.Get()
	l.Info("Application starting",
		zap.String("environment", cfg.Environment),
		zap.String("log_level", cfg.LogLevel),
	)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Order storage
	mongoClient, err := database.Connect(ctx, cfg.Mongo.URI)
	if err != nil {
		l.Fatal("MongoDB connection failed", zap.Error(err))
	}
	defer database.Disconnect(mongoClient)

	orders := mongoClient.Database(cfg.Mongo.Database).Collection(cfg.Mongo.OrdersCollection)
	orderRepo := orderadapter.NewMongoOrderRepository(orders, cfg.Orders.UpdateAttempts)
	if err := orderRepo.EnsureIndexes(ctx); err != nil {
		l.Fatal("Failed to create order indexes", zap.Error(err))
	}

	// Redis backs the cart and idempotency keys
	redisAdapter, err := cache.NewRedisAdapter(cfg.Redis.URL)
	if err != nil {
		l.Fatal("Failed to initialize Redis", zap.Error(err))
	}
	defer redisAdapter.Close()
	if err := redisAdapter.Ping(ctx); err != nil {
		l.Fatal("Redis Health Check Failed", zap.Error(err))
	}
	l.Info("Redis connection verified")

	carts := cartadapter.NewRedisCartStore(redisAdapter, cfg.Redis.CartKeyPrefix)
	idem := idempotency.NewStore(redisAdapter, cfg.Redis.IdempotencyTTL())

	var publisher ports.EventPublisher = orderadapter.NewLogEventPublisher()
	if brokers := cfg.Kafka.BrokerList(); len(brokers) > 0 {
		kafkaPublisher := orderadapter.NewKafkaEventPublisher(brokers, cfg.Kafka.OrderTopic)
		defer func() {
			if err := kafkaPublisher.Close(); err != nil {
				l.Warn("Failed to close Kafka publisher", zap.Error(err))
			}
		}()
		publisher = kafkaPublisher
	}

	// Initialize Order Service & Handler
	orderService := orderservice.NewOrderService(orderservice.Deps{
		Repository:     orderRepo,
		Carts:          carts,
		Idempotency:    idem,
		Publisher:      publisher,
		CreateAttempts: cfg.Orders.CreateAttempts,
	})
	orderHandler := orderhandler.NewOrderHandler(orderService)

	srv := server.New(cfg)
	srv.RegisterHealth(
		server.HealthCheck{Name: "mongo", Ping: database.Ping(mongoClient)},
		server.HealthCheck{Name: "redis", Ping: redisAdapter.Ping},
	)

	// Register Routes
	orderHandler.RegisterRoutes(srv.App.Group("/orders", auth.New(cfg.Auth.JWTSecret)))

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.Run()
	}()

	select {
	case err := <-errCh:
		if err != nil {
			l.Fatal("Server failed to start", zap.Error(err))
		}
	case <-ctx.Done():
		l.Info("Shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			l.Error("Graceful shutdown failed", zap.Error(err))
		}
	}
}
