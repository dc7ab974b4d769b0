package di

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync"
	"time"

	"franchise-bootstrap/internal/bootstrap"
	"franchise-bootstrap/internal/bootstrap/adapter/events"
	"franchise-bootstrap/internal/bootstrap/adapter/persistence/mongodb"
	"franchise-bootstrap/internal/bootstrap/config"
	"franchise-bootstrap/internal/bootstrap/domain/repository"
	"franchise-bootstrap/internal/shared/database"
	apperrors "franchise-bootstrap/internal/shared/errors"
	"franchise-bootstrap/internal/shared/logger"
)

// Container wires the connections and the bootstrap module of one run
type Container struct {
	mu sync.RWMutex

	// Module instances
	BootstrapModule *bootstrap.BootstrapModule

	// Connections
	Mongo     *database.Client
	Publisher *events.RedisPublisher

	Config *config.Config
	Logger logger.Logger
	Output io.Writer
}

// NewContainer creates an empty container; Output defaults to stdout when nil
func NewContainer(log logger.Logger, out io.Writer) *Container {
	return &Container{Logger: log, Output: out}
}

// Initialize connects to MongoDB, and to Redis when enabled, then builds the
// bootstrap module.
func (c *Container) Initialize(ctx context.Context, cfg *config.Config) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.Logger == nil {
		c.Logger = logger.NewLogger()
	}
	c.Config = cfg

	client, err := database.Connect(ctx, cfg.Mongo, c.Logger)
	if err != nil {
		if errors.Is(err, database.ErrInvalidURI) {
			return apperrors.NewConfigurationError("mongodb uri is not valid").
				WithCode("INVALID_MONGODB_URI").
				WithCause(err)
		}
		return mongodb.ClassifyError(err, "failed to connect to mongodb")
	}
	c.Mongo = client

	var publisher repository.EventPublisher
	if cfg.Redis.Enabled {
		if p := c.connectPublisher(ctx, cfg.Redis); p != nil {
			c.Publisher = p
			publisher = p
		}
	}

	module, err := bootstrap.NewBootstrapModule(client.Mongo(), cfg, publisher, c.Logger, c.Output)
	if err != nil {
		return fmt.Errorf("failed to create bootstrap module: %w", err)
	}
	c.BootstrapModule = module
	return nil
}

// connectPublisher returns nil when Redis cannot be reached; events are
// optional and never block provisioning.
func (c *Container) connectPublisher(ctx context.Context, cfg config.RedisConfig) *events.RedisPublisher {
	publisher := events.NewRedisPublisher(events.NewRedisClient(cfg), cfg.Stream, c.Logger)

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := publisher.Ping(pingCtx); err != nil {
		c.Logger.WithFields(map[string]interface{}{
			"addr":  cfg.GetAddr(),
			"error": err.Error(),
		}).Warn("Redis not reachable, bootstrap events disabled")
		_ = publisher.Close()
		return nil
	}
	return publisher
}

// GetBootstrapModule returns the bootstrap module instance
func (c *Container) GetBootstrapModule() *bootstrap.BootstrapModule {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.BootstrapModule
}

// HealthCheck pings every open connection. Only MongoDB is required; an
// unhealthy Redis is logged and the run goes on without events reaching it.
func (c *Container) HealthCheck(ctx context.Context) error {
	c.mu.RLock()
	defer c.mu.RUnlock()

	if c.Mongo == nil {
		return apperrors.NewInternalError("container is not initialized")
	}
	if err := c.Mongo.Ping(ctx); err != nil {
		return mongodb.ClassifyError(err, "MongoDB health check failed")
	}
	if c.Publisher != nil {
		if err := c.Publisher.Ping(ctx); err != nil {
			c.Logger.WithFields(map[string]interface{}{"error": err.Error()}).Warn("Redis health check failed")
		}
	}
	return nil
}

// Cleanup closes connections in reverse order of initialization
func (c *Container) Cleanup(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	var errs []error
	c.BootstrapModule = nil

	if c.Publisher != nil {
		if err := c.Publisher.Close(); err != nil {
			errs = append(errs, fmt.Errorf("failed to close redis: %w", err))
		}
		c.Publisher = nil
	}
	if c.Mongo != nil {
		if err := c.Mongo.Close(ctx); err != nil {
			errs = append(errs, err)
		}
		c.Mongo = nil
	}

	return errors.Join(errs...)
}

// Close gracefully shuts down all resources with a timeout
func (c *Container) Close() error {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := c.Cleanup(ctx); err != nil {
		if c.Logger != nil {
			c.Logger.WithFields(map[string]interface{}{"error": err.Error()}).Warn("Cleanup errors occurred")
		}
		return err
	}
	return nil
}
