package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"
)

// redisFeed implements Feed using one Redis list per view
type redisFeed struct {
	client     *redis.Client
	keyPrefix  string
	maxBacklog int64
	ttl        time.Duration
	logger     *slog.Logger
}

// RedisConfig holds Redis feed configuration
type RedisConfig struct {
	URL        string
	KeyPrefix  string
	MaxBacklog int
	TTL        time.Duration
}

// NewRedisFeed creates a Redis-backed feed
func NewRedisFeed(cfg RedisConfig, logger *slog.Logger) (Feed, error) {
	// Parse Redis URL
	opts, err := redis.ParseURL(cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse Redis URL: %w", err)
	}

	client := redis.NewClient(opts)

	// Test connection
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}

	if cfg.MaxBacklog < 1 {
		cfg.MaxBacklog = 1
	}

	logger.Info("connected to Redis",
		slog.String("addr", opts.Addr),
		slog.String("key_prefix", cfg.KeyPrefix),
	)

	return &redisFeed{
		client:     client,
		keyPrefix:  cfg.KeyPrefix,
		maxBacklog: int64(cfg.MaxBacklog),
		ttl:        cfg.TTL,
		logger:     logger,
	}, nil
}

func (f *redisFeed) key(viewID string) string {
	return f.keyPrefix + ":" + viewID
}

// Notify appends a notification to the view's list, trimming the oldest
// entries beyond the backlog
func (f *redisFeed) Notify(ctx context.Context, n Notification) error {
	data, err := json.Marshal(n)
	if err != nil {
		return fmt.Errorf("failed to marshal notification: %w", err)
	}

	key := f.key(n.ViewID)
	_, err = f.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.RPush(ctx, key, data)
		pipe.LTrim(ctx, key, -f.maxBacklog, -1)
		if f.ttl > 0 {
			pipe.Expire(ctx, key, f.ttl)
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("failed to push notification: %w", err)
	}

	f.logger.Debug("notification queued",
		slog.String("view_id", n.ViewID),
		slog.String("action", n.Action),
	)
	return nil
}

// Drain pops up to max notifications atomically
func (f *redisFeed) Drain(ctx context.Context, viewID string, max int) ([]Notification, error) {
	key := f.key(viewID)

	var rng *redis.StringSliceCmd
	_, err := f.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		if max < 1 {
			rng = pipe.LRange(ctx, key, 0, -1)
			pipe.Del(ctx, key)
			return nil
		}
		rng = pipe.LRange(ctx, key, 0, int64(max)-1)
		pipe.LTrim(ctx, key, int64(max), -1)
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to drain notifications: %w", err)
	}

	raw := rng.Val()
	out := make([]Notification, 0, len(raw))
	for _, item := range raw {
		var n Notification
		if err := json.Unmarshal([]byte(item), &n); err != nil {
			f.logger.Error("failed to unmarshal notification",
				slog.String("error", err.Error()),
				slog.String("data", item),
			)
			continue
		}
		out = append(out, n)
	}
	return out, nil
}

// Discard deletes the view's list
func (f *redisFeed) Discard(ctx context.Context, viewID string) error {
	if err := f.client.Del(ctx, f.key(viewID)).Err(); err != nil {
		return fmt.Errorf("failed to discard notifications: %w", err)
	}
	return nil
}

// Health checks if Redis is healthy
func (f *redisFeed) Health(ctx context.Context) error {
	if err := f.client.Ping(ctx).Err(); err != nil {
		return fmt.Errorf("Redis health check failed: %w", err)
	}
	return nil
}

// Close closes the Redis connection
func (f *redisFeed) Close() error {
	f.logger.Info("closing Redis connection")
	return f.client.Close()
}
