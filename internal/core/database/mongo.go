package database

import (
	"context"
	"fmt"
	"time"

	"storefront/internal/core/logger"

	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.mongodb.org/mongo-driver/mongo/readpref"
	"go.uber.org/zap"
)

const connectTimeout = 10 * time.Second

// Connect opens a MongoDB client for uri and verifies it against the primary.
// The client is disconnected again if the ping fails.
func Connect(ctx context.Context, uri string) (*mongo.Client, error) {
	ctx, cancel := context.WithTimeout(ctx, connectTimeout)
	defer cancel()

	client, err := mongo.Connect(ctx, options.Client().ApplyURI(uri))
	if err != nil {
		return nil, fmt.Errorf("database: failed to connect to MongoDB: %w", err)
	}

	if err := client.Ping(ctx, readpref.Primary()); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, fmt.Errorf("database: failed to ping MongoDB: %w", err)
	}

	logger.Get().Info("Connected to MongoDB")
	return client, nil
}

// Ping returns a health check function for client.
func Ping(client *mongo.Client) func(ctx context.Context) error {
	return func(ctx context.Context) error {
		return client.Ping(ctx, readpref.Primary())
	}
}

// Disconnect closes client, logging instead of returning failures.
func Disconnect(client *mongo.Client) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Disconnect(ctx); err != nil {
		logger.Get().Warn("Failed to disconnect from MongoDB", zap.Error(err))
		return
	}
	logger.Get().Info("Disconnected from MongoDB")
}
