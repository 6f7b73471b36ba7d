package database

import (
	"context"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.mongodb.org/mongo-driver/mongo/readpref"
)

// NewMongoClient connects to MongoDB and verifies the connection with a ping
func NewMongoClient(ctx context.Context, uri string, timeout time.Duration) (*mongo.Client, error) {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	opts := options.Client().
		ApplyURI(uri).
		SetServerSelectionTimeout(timeout).
		SetAppName("botcontrol")

	client, err := mongo.Connect(ctx, opts)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to MongoDB: %w", err)
	}

	if err := client.Ping(ctx, readpref.Primary()); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, fmt.Errorf("failed to ping MongoDB: %w", err)
	}

	return client, nil
}

// Pinger reports database reachability for health checks
type Pinger interface {
	Ping(ctx context.Context) error
}

// MongoPinger adapts a mongo client to Pinger
type MongoPinger struct {
	Client *mongo.Client
}

// Ping checks that the primary is reachable
func (p MongoPinger) Ping(ctx context.Context) error {
	if p.Client == nil {
		return fmt.Errorf("mongo client not initialized")
	}
	return p.Client.Ping(ctx, readpref.Primary())
}
