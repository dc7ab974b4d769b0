package events

import (
	"context"
	"encoding/json"
	"io"
	"os"
	"testing"
	"time"

	"franchise-bootstrap/internal/bootstrap/config"
	"franchise-bootstrap/internal/bootstrap/domain/model"
	"franchise-bootstrap/internal/shared/logger"

	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func quietLogger() logger.Logger {
	return logger.New(logger.Options{Level: "error", Output: io.Discard})
}

func TestNewRedisClient_Options(t *testing.T) {
	client := NewRedisClient(config.RedisConfig{Host: "cache", Port: "6380", Password: "pw", Database: 2, EnableTLS: true})
	defer client.Close()

	opts := client.Options()
	assert.Equal(t, "cache:6380", opts.Addr)
	assert.Equal(t, "pw", opts.Password)
	assert.Equal(t, 2, opts.DB)
	require.NotNil(t, opts.TLSConfig)
	assert.Equal(t, "cache", opts.TLSConfig.ServerName)

	plain := NewRedisClient(config.RedisConfig{Host: "localhost", Port: "6379"})
	defer plain.Close()
	assert.Nil(t, plain.Options().TLSConfig)
}

func TestRedisPublisher_Unreachable(t *testing.T) {
	client := redis.NewClient(&redis.Options{Addr: "127.0.0.1:1", DialTimeout: 200 * time.Millisecond, MaxRetries: -1})
	publisher := NewRedisPublisher(client, "bootstrap:events", quietLogger())
	defer publisher.Close()

	err := publisher.PublishCompleted(context.Background(), &model.Report{RunID: "run-1", Database: "franchise_db"})
	assert.Error(t, err)
	assert.Error(t, publisher.Ping(context.Background()))
}

// createTestRedisClient connects to the test instance on database 15
func createTestRedisClient() *redis.Client {
	addr := os.Getenv("REDIS_TEST_ADDR")
	if addr == "" {
		addr = "localhost:6379"
	}
	return redis.NewClient(&redis.Options{
		Addr:         addr,
		DB:           15,
		DialTimeout:  2 * time.Second,
		ReadTimeout:  2 * time.Second,
		WriteTimeout: 2 * time.Second,
	})
}

func TestRedisPublisher_PublishCompleted(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	client := createTestRedisClient()
	if err := client.Ping(ctx).Err(); err != nil {
		t.Skip("Redis not available for testing:", err)
	}
	const stream = "bootstrap:events:test"
	client.Del(ctx, stream)
	defer func() {
		client.Del(context.Background(), stream)
		client.Close()
	}()

	started := time.Date(2026, 10, 15, 12, 0, 0, 0, time.UTC)
	report := &model.Report{
		RunID:      "run-42",
		Database:   "franchise_db",
		StartedAt:  started,
		FinishedAt: started.Add(time.Second),
		Completed:  true,
		Steps: []model.StepResult{
			{Step: model.StepSelectDatabase, Target: "franchise_db", Outcome: model.OutcomeCreated},
			{Step: model.StepCreateUser, Target: "franchise_user", Outcome: model.OutcomeCreated},
		},
	}

	publisher := NewRedisPublisher(client, stream, quietLogger())
	require.NoError(t, publisher.PublishCompleted(ctx, report))

	entries, err := client.XRange(ctx, stream, "-", "+").Result()
	require.NoError(t, err)
	require.Len(t, entries, 1)

	values := entries[0].Values
	assert.Equal(t, EventTypeBootstrapCompleted, values["type"])
	assert.Equal(t, "run-42", values["runId"])
	assert.Equal(t, "franchise_db", values["database"])

	var steps []model.StepResult
	require.NoError(t, json.Unmarshal([]byte(values["steps"].(string)), &steps))
	require.Len(t, steps, 2)
	assert.Equal(t, model.StepCreateUser, steps[1].Step)
}
