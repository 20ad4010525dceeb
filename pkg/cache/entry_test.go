package cache

import (
	"testing"
	"time"
)

func TestNewEntry(t *testing.T) {
	data := []byte(`{"id": 42, "title": "Test"}`)
	entry := NewEntry(data, 15*time.Minute)

	if string(entry.Data) != string(data) {
		t.Errorf("Data = %s, want %s", entry.Data, data)
	}
	if entry.IsExpired() {
		t.Error("Fresh entry should not be expired")
	}

	ttl := entry.TTL()
	if ttl <= 14*time.Minute || ttl > 15*time.Minute {
		t.Errorf("TTL() = %v, want approximately 15m", ttl)
	}
}

func TestEntry_IsExpired(t *testing.T) {
	expired := &Entry{
		Data:     []byte("{}"),
		Expires:  time.Now().Add(-1 * time.Minute),
		CachedAt: time.Now().Add(-16 * time.Minute),
	}
	if !expired.IsExpired() {
		t.Error("Entry past its expiry should be expired")
	}

	fresh := &Entry{
		Data:     []byte("{}"),
		Expires:  time.Now().Add(1 * time.Minute),
		CachedAt: time.Now(),
	}
	if fresh.IsExpired() {
		t.Error("Entry before its expiry should not be expired")
	}
}

func TestEntry_TTL_Expired(t *testing.T) {
	entry := &Entry{
		Expires: time.Now().Add(-1 * time.Minute),
	}
	if ttl := entry.TTL(); ttl != 0 {
		t.Errorf("TTL() = %v, want 0 for expired entry", ttl)
	}
}
