package events

import (
	"context"
	"crypto/tls"
	"encoding/json"
	"time"

	"franchise-bootstrap/internal/bootstrap/config"
	"franchise-bootstrap/internal/bootstrap/domain/model"
	"franchise-bootstrap/internal/shared/logger"

	"github.com/redis/go-redis/v9"
)

// EventTypeBootstrapCompleted is the type field of completion events
const EventTypeBootstrapCompleted = "bootstrap.completed"

// NewRedisClient creates a Redis client from cfg
func NewRedisClient(cfg config.RedisConfig) *redis.Client {
	options := &redis.Options{
		Addr:         cfg.GetAddr(),
		Password:     cfg.Password,
		DB:           cfg.Database,
		DialTimeout:  5 * time.Second,
		ReadTimeout:  3 * time.Second,
		WriteTimeout: 3 * time.Second,
	}
	if cfg.EnableTLS {
		options.TLSConfig = &tls.Config{ServerName: cfg.Host, MinVersion: tls.VersionTLS12}
	}
	return redis.NewClient(options)
}

// RedisPublisher appends bootstrap events to a Redis stream
type RedisPublisher struct {
	client *redis.Client
	stream string
	logger logger.Logger
}

// NewRedisPublisher creates a publisher writing to stream
func NewRedisPublisher(client *redis.Client, stream string, log logger.Logger) *RedisPublisher {
	return &RedisPublisher{
		client: client,
		stream: stream,
		logger: log.WithComponent("redis-events"),
	}
}

// PublishCompleted appends a completion event for report
func (p *RedisPublisher) PublishCompleted(ctx context.Context, report *model.Report) error {
	steps, err := json.Marshal(report.Steps)
	if err != nil {
		return err
	}

	id, err := p.client.XAdd(ctx, &redis.XAddArgs{
		Stream: p.stream,
		Values: map[string]interface{}{
			"type":       EventTypeBootstrapCompleted,
			"runId":      report.RunID,
			"database":   report.Database,
			"startedAt":  report.StartedAt.UnixNano(),
			"finishedAt": report.FinishedAt.UnixNano(),
			"steps":      steps,
		},
	}).Result()
	if err != nil {
		p.logger.WithFields(map[string]interface{}{
			"stream": p.stream,
			"error":  err.Error(),
		}).Error("Failed to publish bootstrap event")
		return err
	}

	p.logger.WithFields(map[string]interface{}{
		"stream":   p.stream,
		"event_id": id,
		"run_id":   report.RunID,
	}).Debug("Published bootstrap event")
	return nil
}

// Ping checks the Redis connection
func (p *RedisPublisher) Ping(ctx context.Context) error {
	return p.client.Ping(ctx).Err()
}

// Close releases the Redis connection
func (p *RedisPublisher) Close() error {
	return p.client.Close()
}
