// Package ratelimit implements catalog throttle tracking and request gating.
// Throttling signals observed on catalog responses (HTTP 429 or the in-body
// signal) open a cooldown window that is shared across aggregator instances
// via Redis, so sibling processes stop hammering a throttled upstream.
package ratelimit

import (
	"time"
)

// Redis keys for throttle state storage.
const (
	RedisKeyCooldownUntil = "catalog:throttle:cooldown_until"
	RedisKeyThrottleCount = "catalog:throttle:count"
	RedisKeyLastUpdate    = "catalog:throttle:last_update"
)

// Cooldown parameters.
const (
	// DefaultCooldown is applied when the catalog gives no Retry-After hint.
	DefaultCooldown = 30 * time.Second

	// MaxCooldown caps the escalated cooldown window.
	MaxCooldown = 5 * time.Minute
)

// ThrottleState represents the current catalog throttle state.
// This state is shared across all aggregator instances via Redis.
type ThrottleState struct {
	// CooldownUntil is the time until which catalog requests are blocked.
	// Zero when no cooldown is active.
	CooldownUntil time.Time `json:"cooldown_until"`

	// ThrottleCount is the number of consecutive throttle signals observed.
	// Each signal doubles the next cooldown window, up to MaxCooldown.
	ThrottleCount int `json:"throttle_count"`

	// LastUpdate is the timestamp when this state was last updated.
	LastUpdate time.Time `json:"last_update"`

	// IsHealthy indicates no cooldown is active.
	IsHealthy bool `json:"is_healthy"`
}

// InCooldown returns true if catalog requests should currently be blocked.
func (s *ThrottleState) InCooldown() bool {
	return time.Now().Before(s.CooldownUntil)
}

// TimeUntilReady returns the duration until the cooldown window closes.
// Returns 0 if no cooldown is active.
func (s *ThrottleState) TimeUntilReady() time.Duration {
	duration := time.Until(s.CooldownUntil)
	if duration < 0 {
		return 0
	}
	return duration
}

// IsStale returns true if the state data is older than the given duration.
func (s *ThrottleState) IsStale(maxAge time.Duration) bool {
	return time.Since(s.LastUpdate) > maxAge
}

// UpdateHealth updates the IsHealthy field based on the cooldown window.
func (s *ThrottleState) UpdateHealth() {
	s.IsHealthy = !s.InCooldown()
}

// CooldownFor returns the cooldown window for the given consecutive
// throttle count: DefaultCooldown doubled per additional signal, capped at
// MaxCooldown.
func CooldownFor(throttleCount int) time.Duration {
	if throttleCount < 1 {
		throttleCount = 1
	}
	cooldown := DefaultCooldown
	for i := 1; i < throttleCount; i++ {
		cooldown *= 2
		if cooldown >= MaxCooldown {
			return MaxCooldown
		}
	}
	return cooldown
}
