// Package cache holds the read-through cache for session availability.
//
// The cache only ever serves capacity checks. The reservation path re-reads
// the session under a row lock, so a stale entry can at worst make a check
// look more optimistic than the write that follows it.
package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"

	"github.com/edjs/seat-reservation/internal/config"
	"github.com/edjs/seat-reservation/internal/model"
)

// loadTimeout bounds a shared load. The load runs detached from the
// callers' contexts.
const loadTimeout = 5 * time.Second

// generationTTL keeps invalidation counters around long enough to outlive
// any in-flight load.
const generationTTL = 24 * time.Hour

// Loader fetches availability from the source of truth.
type Loader func(ctx context.Context) (*model.SessionAvailability, error)

var errStaleLoad = errors.New("availability changed during load")

// Nop is a cache that always calls the loader.
type Nop struct{}

// Fetch calls load.
func (Nop) Fetch(ctx context.Context, _ string, load Loader) (*model.SessionAvailability, error) {
	return load(ctx)
}

// Invalidate does nothing.
func (Nop) Invalidate(context.Context, string) {}

// Redis caches availability snapshots in Redis with a short TTL.
type Redis struct {
	client *redis.Client
	ttl    time.Duration
	prefix string
	log    *zap.Logger
	group  singleflight.Group
}

// NewRedis wraps an existing client.
func NewRedis(client *redis.Client, ttl time.Duration, prefix string, log *zap.Logger) *Redis {
	return &Redis{client: client, ttl: ttl, prefix: prefix, log: log}
}

// Connect dials Redis using cfg and pings it. Callers should fall back to Nop
// when it returns an error.
func Connect(ctx context.Context, cfg config.RedisConfig) (*redis.Client, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	pingCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("ping redis %s: %w", cfg.Addr, err)
	}
	return client, nil
}

// Key returns the Redis key for a session.
func (c *Redis) Key(sessionID string) string {
	return c.prefix + ":availability:" + sessionID
}

// generationKey counts invalidations of a session's entry.
func (c *Redis) generationKey(sessionID string) string {
	return c.prefix + ":availability-gen:" + sessionID
}

// Fetch returns the cached snapshot for sessionID, loading and storing it on
// a miss. Concurrent misses for the same session share one load, detached
// from any single caller so that one caller giving up does not fail the
// others. Redis failures are logged and never fail the read.
func (c *Redis) Fetch(ctx context.Context, sessionID string, load Loader) (*model.SessionAvailability, error) {
	key := c.Key(sessionID)

	raw, err := c.client.Get(ctx, key).Bytes()
	switch {
	case err == nil:
		var snap model.SessionAvailability
		if jsonErr := json.Unmarshal(raw, &snap); jsonErr == nil {
			return &snap, nil
		}
		c.log.Warn("discarding undecodable availability entry", zap.String("key", key))
	case !errors.Is(err, redis.Nil):
		c.log.Warn("availability cache read failed", zap.String("key", key), zap.Error(err))
	}

	ch := c.group.DoChan(key, func() (any, error) {
		loadCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), loadTimeout)
		defer cancel()

		gen, genErr := c.generation(loadCtx, sessionID)
		snap, err := load(loadCtx)
		if err != nil {
			return nil, err
		}
		if genErr == nil {
			c.store(loadCtx, sessionID, gen, snap)
		}
		return snap, nil
	})

	var res singleflight.Result
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case res = <-ch:
	}
	if res.Err != nil {
		return nil, res.Err
	}

	// Hand each caller its own copy; the shared value must stay untouched.
	shared := res.Val.(*model.SessionAvailability)
	snap := *shared
	snap.Claims = append([]model.SeatClaim(nil), shared.Claims...)
	return &snap, nil
}

// Invalidate drops the cached snapshot for sessionID and bumps its
// generation so that loads already in flight do not store their result.
func (c *Redis) Invalidate(ctx context.Context, sessionID string) {
	key := c.Key(sessionID)
	genKey := c.generationKey(sessionID)
	_, err := c.client.TxPipelined(ctx, func(p redis.Pipeliner) error {
		p.Incr(ctx, genKey)
		p.Expire(ctx, genKey, generationTTL)
		p.Del(ctx, key)
		return nil
	})
	if err != nil {
		c.log.Warn("availability cache invalidation failed", zap.String("key", key), zap.Error(err))
	}
}

func (c *Redis) generation(ctx context.Context, sessionID string) (int64, error) {
	gen, err := c.client.Get(ctx, c.generationKey(sessionID)).Int64()
	if errors.Is(err, redis.Nil) {
		return 0, nil
	}
	return gen, err
}

// store writes snap only if no invalidation happened since gen was read.
func (c *Redis) store(ctx context.Context, sessionID string, gen int64, snap *model.SessionAvailability) {
	key := c.Key(sessionID)
	genKey := c.generationKey(sessionID)

	raw, err := json.Marshal(snap)
	if err != nil {
		c.log.Warn("encode availability entry", zap.String("key", key), zap.Error(err))
		return
	}

	err = c.client.Watch(ctx, func(tx *redis.Tx) error {
		cur, err := tx.Get(ctx, genKey).Int64()
		if err != nil && !errors.Is(err, redis.Nil) {
			return err
		}
		if cur != gen {
			return errStaleLoad
		}
		_, err = tx.TxPipelined(ctx, func(p redis.Pipeliner) error {
			p.Set(ctx, key, raw, c.ttl)
			return nil
		})
		return err
	}, genKey)
	switch {
	case err == nil:
	case errors.Is(err, errStaleLoad), errors.Is(err, redis.TxFailedErr):
		c.log.Debug("skipping stale availability entry", zap.String("key", key))
	default:
		c.log.Warn("availability cache write failed", zap.String("key", key), zap.Error(err))
	}
}
