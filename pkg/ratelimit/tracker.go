package ratelimit

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

// Prometheus metrics for throttle tracking.
var (
	throttleCooldownSeconds = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "shelf_throttle_cooldown_seconds",
		Help: "Seconds remaining in the current catalog throttle cooldown window",
	})

	throttleBlocksTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "shelf_throttle_blocks_total",
		Help: "Total number of catalog requests blocked during a throttle cooldown",
	})

	throttleEventsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "shelf_throttle_events_total",
		Help: "Total number of throttle signals observed on catalog responses",
	})
)

// Tracker monitors catalog throttle signals and gates requests.
type Tracker struct {
	redis  *redis.Client
	logger zerolog.Logger
}

// NewTracker creates a new throttle tracker.
func NewTracker(redisClient *redis.Client, logger zerolog.Logger) *Tracker {
	return &Tracker{
		redis:  redisClient,
		logger: logger,
	}
}

// GetState retrieves the current throttle state from Redis.
// Returns a default healthy state if no data exists in Redis.
func (t *Tracker) GetState(ctx context.Context) (*ThrottleState, error) {
	cooldownUnix, err := t.redis.Get(ctx, RedisKeyCooldownUntil).Int64()
	if err != nil && err != redis.Nil {
		return nil, fmt.Errorf("get cooldown until: %w", err)
	}

	throttleCount, err := t.redis.Get(ctx, RedisKeyThrottleCount).Int()
	if err != nil && err != redis.Nil {
		return nil, fmt.Errorf("get throttle count: %w", err)
	}

	lastUpdateStr, err := t.redis.Get(ctx, RedisKeyLastUpdate).Result()
	if err != nil && err != redis.Nil {
		return nil, fmt.Errorf("get last update: %w", err)
	}

	// If no state exists in Redis, return default healthy state
	if err == redis.Nil && cooldownUnix == 0 {
		t.logger.Debug().Msg("No throttle state in Redis, returning default healthy state")
		return &ThrottleState{
			LastUpdate: time.Now(),
			IsHealthy:  true,
		}, nil
	}

	var lastUpdate time.Time
	if lastUpdateStr != "" {
		if err := json.Unmarshal([]byte(lastUpdateStr), &lastUpdate); err != nil {
			return nil, fmt.Errorf("parse last update: %w", err)
		}
	}

	state := &ThrottleState{
		ThrottleCount: throttleCount,
		LastUpdate:    lastUpdate,
	}
	if cooldownUnix > 0 {
		state.CooldownUntil = time.Unix(cooldownUnix, 0)
	}
	state.UpdateHealth()

	return state, nil
}

// RecordThrottle registers a throttle signal and opens (or extends) the
// shared cooldown window. retryAfter overrides the escalating default when
// the catalog supplied an explicit hint; pass 0 otherwise.
func (t *Tracker) RecordThrottle(ctx context.Context, retryAfter time.Duration) error {
	count, err := t.redis.Incr(ctx, RedisKeyThrottleCount).Result()
	if err != nil {
		return fmt.Errorf("increment throttle count: %w", err)
	}

	cooldown := retryAfter
	if cooldown <= 0 {
		cooldown = CooldownFor(int(count))
	}
	if cooldown > MaxCooldown {
		cooldown = MaxCooldown
	}

	now := time.Now()
	cooldownUntil := now.Add(cooldown)

	lastUpdateJSON, err := json.Marshal(now)
	if err != nil {
		return fmt.Errorf("marshal last update: %w", err)
	}

	// Store in Redis atomically
	pipe := t.redis.Pipeline()
	pipe.Set(ctx, RedisKeyCooldownUntil, cooldownUntil.Unix(), 0)
	pipe.Set(ctx, RedisKeyLastUpdate, lastUpdateJSON, 0)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("store throttle state in redis: %w", err)
	}

	throttleEventsTotal.Inc()
	throttleCooldownSeconds.Set(cooldown.Seconds())

	t.logger.Warn().
		Int64("throttle_count", count).
		Dur("cooldown", cooldown).
		Time("cooldown_until", cooldownUntil).
		Msg("Catalog throttle signal - opening cooldown window")

	return nil
}

// RecordSuccess resets the consecutive throttle count after a successful
// catalog request, so the next cooldown starts from the default window.
func (t *Tracker) RecordSuccess(ctx context.Context) error {
	count, err := t.redis.Get(ctx, RedisKeyThrottleCount).Int()
	if err == redis.Nil || count == 0 {
		return nil
	}
	if err != nil && err != redis.Nil {
		return fmt.Errorf("get throttle count: %w", err)
	}

	if err := t.redis.Del(ctx, RedisKeyThrottleCount, RedisKeyCooldownUntil).Err(); err != nil {
		return fmt.Errorf("clear throttle state: %w", err)
	}

	throttleCooldownSeconds.Set(0)
	t.logger.Info().
		Int("previous_count", count).
		Msg("Catalog throttle state recovered")

	return nil
}

// ShouldAllowRequest checks if a catalog request should be allowed.
// Returns false while a cooldown window is open.
func (t *Tracker) ShouldAllowRequest(ctx context.Context) (bool, error) {
	state, err := t.GetState(ctx)
	if err != nil {
		return false, fmt.Errorf("get throttle state: %w", err)
	}

	if state.InCooldown() {
		waitDuration := state.TimeUntilReady()

		t.logger.Warn().
			Int("throttle_count", state.ThrottleCount).
			Dur("wait_duration", waitDuration).
			Msg("Catalog throttle cooldown active - blocking request")

		throttleBlocksTotal.Inc()
		return false, nil
	}

	return true, nil
}
