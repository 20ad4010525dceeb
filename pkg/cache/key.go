package cache

import (
	"strings"
)

// KeyPrefix namespaces all catalog record keys in Redis.
const KeyPrefix = "catalog:record:"

// RecordKey generates the deterministic cache key for a record identifier.
//
// Example:
//
//	catalog:record:42
func RecordKey(id string) string {
	return KeyPrefix + strings.TrimSpace(id)
}

// RecordKeys maps a slice of identifiers to their cache keys, preserving order.
func RecordKeys(ids []string) []string {
	keys := make([]string, len(ids))
	for i, id := range ids {
		keys[i] = RecordKey(id)
	}
	return keys
}
