package publish

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"volatility-radar/internal/domain"
)

// Redis defaults.
const (
	DefaultRedisKey = "volatility-radar:snapshot:latest"
	DefaultRedisTTL = time.Minute
)

// ErrNoSnapshot is returned when no snapshot has been published yet, or it expired.
var ErrNoSnapshot = errors.New("no snapshot")

// RedisSink keeps only the latest snapshot under one key. The TTL lets the key
// vanish when the radar stops publishing.
type RedisSink struct {
	client redis.Cmdable
	key    string
	ttl    time.Duration
}

// NewRedisSink creates a sink writing to key with ttl. Zero values use the defaults.
func NewRedisSink(client redis.Cmdable, key string, ttl time.Duration) *RedisSink {
	if key == "" {
		key = DefaultRedisKey
	}
	if ttl <= 0 {
		ttl = DefaultRedisTTL
	}
	return &RedisSink{client: client, key: key, ttl: ttl}
}

// Name implements Sink.
func (s *RedisSink) Name() string { return "redis" }

// Publish overwrites the key with snap.
func (s *RedisSink) Publish(ctx context.Context, snap *domain.Snapshot) error {
	payload, err := json.Marshal(snap)
	if err != nil {
		return fmt.Errorf("marshal snapshot: %w", err)
	}
	if err := s.client.Set(ctx, s.key, payload, s.ttl).Err(); err != nil {
		return fmt.Errorf("redis set %s: %w", s.key, err)
	}
	return nil
}

// Latest reads the stored snapshot. Returns ErrNoSnapshot if the key is absent.
func (s *RedisSink) Latest(ctx context.Context) (*domain.Snapshot, error) {
	payload, err := s.client.Get(ctx, s.key).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, ErrNoSnapshot
		}
		return nil, fmt.Errorf("redis get %s: %w", s.key, err)
	}

	var snap domain.Snapshot
	if err := json.Unmarshal(payload, &snap); err != nil {
		return nil, fmt.Errorf("unmarshal snapshot: %w", err)
	}
	return &snap, nil
}

// Close closes the client when it owns a connection pool.
func (s *RedisSink) Close() error {
	if c, ok := s.client.(interface{ Close() error }); ok {
		return c.Close()
	}
	return nil
}

var _ Sink = (*RedisSink)(nil)
