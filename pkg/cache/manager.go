package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

var (
	// ErrCacheMiss indicates the requested key was not found in cache
	ErrCacheMiss = errors.New("cache miss")

	// ErrInvalidEntry indicates the cache entry is invalid or corrupted
	ErrInvalidEntry = errors.New("invalid cache entry")
)

// DefaultTTL is the fallback TTL for cached catalog records.
const DefaultTTL = 15 * time.Minute

// Manager handles catalog record caching with Redis backend.
type Manager struct {
	redis *redis.Client
	ttl   time.Duration
}

// NewManager creates a new cache manager with Redis backend.
// ttl <= 0 selects DefaultTTL.
func NewManager(redisClient *redis.Client, ttl time.Duration) *Manager {
	if redisClient == nil {
		panic("redis client cannot be nil")
	}
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &Manager{
		redis: redisClient,
		ttl:   ttl,
	}
}

// Get retrieves a cached record payload by identifier.
// Returns ErrCacheMiss if the identifier isn't cached or the entry expired.
func (m *Manager) Get(ctx context.Context, id string) (*Entry, error) {
	data, err := m.redis.Get(ctx, RecordKey(id)).Bytes()
	if err != nil {
		if err == redis.Nil {
			CacheMisses.Inc()
			return nil, ErrCacheMiss
		}
		CacheErrors.WithLabelValues("get").Inc()
		return nil, fmt.Errorf("redis get: %w", err)
	}

	entry, err := decodeEntry(data)
	if err != nil {
		CacheErrors.WithLabelValues("get").Inc()
		return nil, err
	}
	if entry == nil {
		// Expired entry: delete it and report a miss.
		_ = m.Delete(ctx, id)
		CacheMisses.Inc()
		return nil, ErrCacheMiss
	}

	CacheHits.WithLabelValues("redis").Inc()
	return entry, nil
}

// GetMany retrieves cached record payloads for a whole working set in one
// MGET. The returned map holds only identifiers that were cache hits;
// everything else counts as a miss. A Redis failure returns an error so the
// caller can fall back to fetching everything.
func (m *Manager) GetMany(ctx context.Context, ids []string) (map[string]*Entry, error) {
	if len(ids) == 0 {
		return map[string]*Entry{}, nil
	}

	values, err := m.redis.MGet(ctx, RecordKeys(ids)...).Result()
	if err != nil {
		CacheErrors.WithLabelValues("get_many").Inc()
		return nil, fmt.Errorf("redis mget: %w", err)
	}

	hits := make(map[string]*Entry, len(ids))
	for i, value := range values {
		if value == nil {
			CacheMisses.Inc()
			continue
		}
		raw, ok := value.(string)
		if !ok {
			CacheMisses.Inc()
			continue
		}

		entry, err := decodeEntry([]byte(raw))
		if err != nil || entry == nil {
			// Corrupted or expired: treat as a miss.
			CacheMisses.Inc()
			continue
		}

		CacheHits.WithLabelValues("redis").Inc()
		hits[ids[i]] = entry
	}

	return hits, nil
}

// Set stores a record payload under the manager's TTL.
func (m *Manager) Set(ctx context.Context, id string, data []byte) error {
	entry := NewEntry(data, m.ttl)

	encoded, err := json.Marshal(entry)
	if err != nil {
		CacheErrors.WithLabelValues("set").Inc()
		return fmt.Errorf("marshal cache entry: %w", err)
	}

	if err := m.redis.Set(ctx, RecordKey(id), encoded, entry.TTL()).Err(); err != nil {
		CacheErrors.WithLabelValues("set").Inc()
		return fmt.Errorf("redis set: %w", err)
	}

	CacheSize.WithLabelValues("redis").Add(float64(len(encoded)))
	return nil
}

// SetMany stores multiple record payloads in one pipeline.
func (m *Manager) SetMany(ctx context.Context, payloads map[string][]byte) error {
	if len(payloads) == 0 {
		return nil
	}

	pipe := m.redis.Pipeline()
	var totalBytes int
	for id, data := range payloads {
		entry := NewEntry(data, m.ttl)
		encoded, err := json.Marshal(entry)
		if err != nil {
			CacheErrors.WithLabelValues("set_many").Inc()
			return fmt.Errorf("marshal cache entry: %w", err)
		}
		pipe.Set(ctx, RecordKey(id), encoded, entry.TTL())
		totalBytes += len(encoded)
	}

	if _, err := pipe.Exec(ctx); err != nil {
		CacheErrors.WithLabelValues("set_many").Inc()
		return fmt.Errorf("redis pipeline set: %w", err)
	}

	CacheSize.WithLabelValues("redis").Add(float64(totalBytes))
	return nil
}

// Delete removes a cached record.
func (m *Manager) Delete(ctx context.Context, id string) error {
	if err := m.redis.Del(ctx, RecordKey(id)).Err(); err != nil {
		CacheErrors.WithLabelValues("delete").Inc()
		return fmt.Errorf("redis del: %w", err)
	}
	return nil
}

// decodeEntry unmarshals a stored entry. Returns (nil, nil) for an expired
// entry so callers can treat it as a miss.
func decodeEntry(data []byte) (*Entry, error) {
	var entry Entry
	if err := json.Unmarshal(data, &entry); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidEntry, err)
	}
	if entry.IsExpired() {
		return nil, nil
	}
	return &entry, nil
}
