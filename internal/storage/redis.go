package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/maneesh/licitafiles/internal/models"
	"github.com/redis/go-redis/v9"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

// DefaultListingTTL bounds how stale a cached listing can get when another
// process writes to the same bucket.
const DefaultListingTTL = 30 * time.Second

var errStaleListing = errors.New("listing generation changed")

// RedisCache keeps the last remote listing in Redis
type RedisCache struct {
	client *redis.Client
	key    string
	ttl    time.Duration
}

// NewRedisCache connects using a redis:// URL and pings the server
func NewRedisCache(redisURL, key string, ttl time.Duration) (*RedisCache, error) {
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse Redis URL: %w", err)
	}
	client := redis.NewClient(opts)

	ctx := context.Background()
	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("failed to ping Redis: %w", err)
	}

	if ttl <= 0 {
		ttl = DefaultListingTTL
	}
	return &RedisCache{client: client, key: key, ttl: ttl}, nil
}

// Close closes the Redis connection
func (rc *RedisCache) Close() error {
	return rc.client.Close()
}

// GetListing returns the cached listing; ok is false on a miss
func (rc *RedisCache) GetListing(ctx context.Context) (assets []models.FileAsset, ok bool, err error) {
	ctx, span := tracer.Start(ctx, "redis.get_listing",
		trace.WithAttributes(attribute.String("cache_key", rc.key)),
	)
	defer span.End()

	data, err := rc.client.Get(ctx, rc.key).Bytes()
	if err == redis.Nil {
		span.SetAttributes(attribute.String("cache_status", "miss"))
		return nil, false, nil
	} else if err != nil {
		span.RecordError(err)
		return nil, false, fmt.Errorf("failed to get from cache: %w", err)
	}

	if err := json.Unmarshal(data, &assets); err != nil {
		span.RecordError(err)
		return nil, false, fmt.Errorf("failed to unmarshal cached listing: %w", err)
	}

	span.SetAttributes(attribute.String("cache_status", "hit"))
	return assets, true, nil
}

func (rc *RedisCache) genKey() string {
	return rc.key + ":gen"
}

// Generation returns the invalidation counter; a missing counter reads as 0
func (rc *RedisCache) Generation(ctx context.Context) (int64, error) {
	gen, err := rc.client.Get(ctx, rc.genKey()).Int64()
	if err == redis.Nil {
		return 0, nil
	} else if err != nil {
		return 0, fmt.Errorf("failed to read cache generation: %w", err)
	}
	return gen, nil
}

// SetListing stores assets if the generation is still gen. The generation key
// is WATCHed, so an invalidation landing between the check and the write
// aborts the transaction. stored is false when the listing was discarded.
func (rc *RedisCache) SetListing(ctx context.Context, gen int64, assets []models.FileAsset) (stored bool, err error) {
	ctx, span := tracer.Start(ctx, "redis.set_listing",
		trace.WithAttributes(
			attribute.Int("object_count", len(assets)),
			attribute.Int64("generation", gen),
		),
	)
	defer span.End()

	data, err := json.Marshal(assets)
	if err != nil {
		span.RecordError(err)
		return false, fmt.Errorf("failed to marshal listing: %w", err)
	}

	err = rc.client.Watch(ctx, func(tx *redis.Tx) error {
		current, err := tx.Get(ctx, rc.genKey()).Int64()
		if err != nil && err != redis.Nil {
			return err
		}
		if current != gen {
			return errStaleListing
		}

		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Set(ctx, rc.key, data, rc.ttl)
			return nil
		})
		return err
	}, rc.genKey())

	switch {
	case err == nil:
		span.SetAttributes(
			attribute.Bool("stored", true),
			attribute.Int64("ttl_seconds", int64(rc.ttl.Seconds())),
		)
		return true, nil
	case errors.Is(err, errStaleListing), errors.Is(err, redis.TxFailedErr):
		span.SetAttributes(attribute.Bool("stored", false))
		return false, nil
	default:
		span.RecordError(err)
		return false, fmt.Errorf("failed to set cache: %w", err)
	}
}

// InvalidateListing bumps the generation and drops the cached listing in one
// MULTI/EXEC block.
func (rc *RedisCache) InvalidateListing(ctx context.Context) error {
	ctx, span := tracer.Start(ctx, "redis.invalidate_listing")
	defer span.End()

	_, err := rc.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Incr(ctx, rc.genKey())
		pipe.Del(ctx, rc.key)
		return nil
	})
	if err != nil {
		span.RecordError(err)
		return fmt.Errorf("failed to invalidate cache: %w", err)
	}
	return nil
}
