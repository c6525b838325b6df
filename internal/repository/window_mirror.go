package repository

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/yourusername/matchedge/internal/config"
	"github.com/yourusername/matchedge/internal/models"
)

const windowKeyPrefix = "matchedge:window"

// RedisWindowMirror keeps a capped copy of each artifact's calibration window
// in Redis so a restarted engine resumes with the samples it had collected.
type RedisWindowMirror struct {
	client     redis.UniversalClient
	maxSamples int
	ttl        time.Duration
}

// NewRedisWindowMirror connects to Redis and verifies the connection.
func NewRedisWindowMirror(ctx context.Context, cfg config.RedisConfig, maxSamples int) (*RedisWindowMirror, error) {
	client := redis.NewClient(&redis.Options{
		Addr:         cfg.Addr,
		Password:     cfg.Password,
		DB:           cfg.DB,
		PoolSize:     10,
		MinIdleConns: 2,
	})

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("redis ping: %w", err)
	}

	return NewRedisWindowMirrorWithClient(client, maxSamples, time.Duration(cfg.KeyTTL)*time.Hour), nil
}

// NewRedisWindowMirrorWithClient wraps an existing client. A zero ttl keeps keys forever.
func NewRedisWindowMirrorWithClient(client redis.UniversalClient, maxSamples int, ttl time.Duration) *RedisWindowMirror {
	return &RedisWindowMirror{client: client, maxSamples: maxSamples, ttl: ttl}
}

// RecordOutcome pushes a settled outcome onto its artifact's window list and
// trims the list to the window capacity. Baseline outcomes carry no artifact
// and are ignored.
func (m *RedisWindowMirror) RecordOutcome(ctx context.Context, outcome *models.SettledOutcome) error {
	if outcome.IsBaseline || outcome.ArtifactVersion == "" {
		return nil
	}

	data, err := json.Marshal(outcome)
	if err != nil {
		return fmt.Errorf("failed to encode outcome: %w", err)
	}

	key := windowKey(outcome.League, outcome.ArtifactVersion)
	pipe := m.client.TxPipeline()
	pipe.LPush(ctx, key, data)
	if m.maxSamples > 0 {
		pipe.LTrim(ctx, key, 0, int64(m.maxSamples-1))
	}
	if m.ttl > 0 {
		pipe.Expire(ctx, key, m.ttl)
	}
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("failed to mirror outcome for %s: %w", key, err)
	}
	return nil
}

// Load returns the mirrored outcomes for one artifact, oldest first.
func (m *RedisWindowMirror) Load(ctx context.Context, league, version string) ([]*models.SettledOutcome, error) {
	key := windowKey(league, version)
	values, err := m.client.LRange(ctx, key, 0, -1).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to read window %s: %w", key, err)
	}
	return decodeWindow(values)
}

// Drop removes an artifact's mirrored window.
func (m *RedisWindowMirror) Drop(ctx context.Context, league, version string) error {
	return m.client.Unlink(ctx, windowKey(league, version)).Err()
}

// Ping verifies Redis connectivity
func (m *RedisWindowMirror) Ping(ctx context.Context) error {
	return m.client.Ping(ctx).Err()
}

// Close closes the Redis connection.
func (m *RedisWindowMirror) Close() error {
	return m.client.Close()
}

func windowKey(league, version string) string {
	return fmt.Sprintf("%s:%s:%s", windowKeyPrefix, league, version)
}

// decodeWindow reverses LPUSH order. Undecodable entries are skipped.
func decodeWindow(values []string) ([]*models.SettledOutcome, error) {
	out := make([]*models.SettledOutcome, 0, len(values))
	for i := len(values) - 1; i >= 0; i-- {
		o := &models.SettledOutcome{}
		if err := json.Unmarshal([]byte(values[i]), o); err != nil {
			continue
		}
		out = append(out, o)
	}
	return out, nil
}
