package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/touchflow/attribution-pipeline/internal/config"
	"github.com/touchflow/attribution-pipeline/internal/pipeline"
)

// StateCache persists batch-run progress in Valkey so an interrupted run can
// resume. Entries expire after the configured TTL; a stale offset is worse
// than none.
type StateCache struct {
	client *redis.Client
	ttl    time.Duration
	log    *zap.Logger
}

// NewStateCache connects to Valkey and verifies the connection.
func NewStateCache(ctx context.Context, cfg config.Valkey, ttl time.Duration, log *zap.Logger) (*StateCache, error) {
	client := redis.NewClient(&redis.Options{
		Addr: fmt.Sprintf("%s:%s", cfg.Host, cfg.Port),
		DB:   cfg.DB,
	})
	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("failed to connect to valkey: %w", err)
	}
	return &StateCache{client: client, ttl: ttl, log: log}, nil
}

func progressKey(jobType string) string {
	return fmt.Sprintf("backfill_%s_progress", jobType)
}

func statsKey(jobType string) string {
	return fmt.Sprintf("backfill_%s_stats", jobType)
}

// LoadOffset returns the persisted resume offset for a job, if any.
func (c *StateCache) LoadOffset(ctx context.Context, jobType string) (int64, bool, error) {
	offset, err := c.client.Get(ctx, progressKey(jobType)).Int64()
	if err == redis.Nil {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, fmt.Errorf("failed to load resume offset: %w", err)
	}
	return offset, true, nil
}

// SaveOffset checkpoints the next offset to process.
func (c *StateCache) SaveOffset(ctx context.Context, jobType string, offset int64) error {
	if err := c.client.Set(ctx, progressKey(jobType), offset, c.ttl).Err(); err != nil {
		return fmt.Errorf("failed to save resume offset: %w", err)
	}
	return nil
}

// ClearOffset removes the resume offset and stats after a completed run.
func (c *StateCache) ClearOffset(ctx context.Context, jobType string) error {
	if err := c.client.Del(ctx, progressKey(jobType), statsKey(jobType)).Err(); err != nil {
		return fmt.Errorf("failed to clear resume offset: %w", err)
	}
	return nil
}

// SaveStats checkpoints the running counters as JSON for external inspection.
func (c *StateCache) SaveStats(ctx context.Context, jobType string, stats pipeline.Stats) error {
	payload, err := json.Marshal(stats)
	if err != nil {
		return fmt.Errorf("failed to marshal run stats: %w", err)
	}
	if err := c.client.Set(ctx, statsKey(jobType), payload, c.ttl).Err(); err != nil {
		return fmt.Errorf("failed to save run stats: %w", err)
	}
	return nil
}

// Close releases the Valkey connection.
func (c *StateCache) Close() error {
	return c.client.Close()
}

var _ pipeline.StateStore = (*StateCache)(nil)
