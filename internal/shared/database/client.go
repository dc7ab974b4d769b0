package database

import (
	"context"
	"errors"
	"fmt"

	"franchise-bootstrap/internal/bootstrap/config"
	"franchise-bootstrap/internal/shared/logger"

	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.mongodb.org/mongo-driver/mongo/readpref"
)

// ErrInvalidURI reports a connection string the driver cannot parse
var ErrInvalidURI = errors.New("invalid mongodb uri")

// Client owns the MongoDB connection used by a bootstrap run
type Client struct {
	client *mongo.Client
	config config.MongoConfig
	logger logger.Logger
}

// ClientOptions builds driver options from cfg. Pool tuning is left to the driver.
func ClientOptions(cfg config.MongoConfig) *options.ClientOptions {
	return options.Client().
		ApplyURI(cfg.URI).
		SetAppName(cfg.AppName).
		SetConnectTimeout(cfg.ConnectTimeout).
		SetServerSelectionTimeout(cfg.ConnectTimeout)
}

// Connect opens the connection and verifies it with a ping
func Connect(ctx context.Context, cfg config.MongoConfig, log logger.Logger) (*Client, error) {
	opts := ClientOptions(cfg)
	if err := opts.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidURI, err)
	}

	connectCtx, cancel := context.WithTimeout(ctx, cfg.ConnectTimeout)
	defer cancel()

	mc, err := mongo.Connect(connectCtx, opts)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to mongodb: %w", err)
	}

	c := &Client{client: mc, config: cfg, logger: log}
	if err := c.Ping(connectCtx); err != nil {
		_ = mc.Disconnect(context.Background())
		return nil, err
	}

	log.WithFields(map[string]interface{}{
		"hosts":    opts.Hosts,
		"app_name": cfg.AppName,
	}).Info("MongoDB connection established")

	return c, nil
}

// Ping checks that the primary is reachable and the credentials are accepted
func (c *Client) Ping(ctx context.Context) error {
	if err := c.client.Ping(ctx, readpref.Primary()); err != nil {
		return fmt.Errorf("failed to ping mongodb: %w", err)
	}
	return nil
}

// Mongo exposes the underlying driver client
func (c *Client) Mongo() *mongo.Client {
	return c.client
}

// Close disconnects from the server
func (c *Client) Close(ctx context.Context) error {
	if err := c.client.Disconnect(ctx); err != nil {
		return fmt.Errorf("failed to disconnect mongodb: %w", err)
	}
	c.logger.Info("MongoDB connection closed")
	return nil
}
