// Package testutil provides configurable mock upstream servers for testing
// the aggregation pipeline against realistic ownership and catalog behavior.
package testutil

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strconv"
	"sync"

	"github.com/readshelf/shelf-aggregator/pkg/ownership"
)

// MockOwnership is a configurable mock ownership service. It serves the
// paginated list endpoint from an in-memory per-user entry slice and tracks
// every request it receives.
type MockOwnership struct {
	server *httptest.Server
	mu     sync.RWMutex

	entries   map[string][]ownership.Entry
	failPages map[int]int // page index -> status code

	// Tracking
	RequestCount int
	PagesServed  []int
}

// NewMockOwnership creates a mock ownership server with no entries.
func NewMockOwnership() *MockOwnership {
	mock := &MockOwnership{
		entries:   make(map[string][]ownership.Entry),
		failPages: make(map[int]int),
	}

	mock.server = httptest.NewServer(http.HandlerFunc(mock.handleList))
	return mock
}

// URL returns the mock server URL.
func (m *MockOwnership) URL() string {
	return m.server.URL
}

// Close shuts down the mock server.
func (m *MockOwnership) Close() {
	m.server.Close()
}

// SetEntries replaces the entry list served for a user.
func (m *MockOwnership) SetEntries(userID string, entries []ownership.Entry) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.entries[userID] = entries
}

// FailPage makes one page index answer with the given status code.
func (m *MockOwnership) FailPage(page, statusCode int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.failPages[page] = statusCode
}

// GetRequestCount returns the number of list requests served.
func (m *MockOwnership) GetRequestCount() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.RequestCount
}

func (m *MockOwnership) handleList(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()
	page, _ := strconv.Atoi(query.Get("page"))
	size, _ := strconv.Atoi(query.Get("size"))
	if size <= 0 {
		size = 20
	}

	m.mu.Lock()
	m.RequestCount++
	m.PagesServed = append(m.PagesServed, page)
	failStatus := m.failPages[page]
	all := m.entries[query.Get("user")]
	m.mu.Unlock()

	if failStatus != 0 {
		http.Error(w, `{"error": "list unavailable"}`, failStatus)
		return
	}

	start := page * size
	if start > len(all) {
		start = len(all)
	}
	end := start + size
	if end > len(all) {
		end = len(all)
	}

	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	json.NewEncoder(w).Encode(all[start:end])
}

// MakeEntries builds sequential entries with numeric ids in [from, to) and
// the given status, convenient for pagination scenarios.
func MakeEntries(from, to int, status ownership.Status) []ownership.Entry {
	entries := make([]ownership.Entry, 0, to-from)
	for i := from; i < to; i++ {
		entries = append(entries, ownership.Entry{
			ID:           strconv.Itoa(i),
			Relationship: ownership.Relationship{Status: status},
		})
	}
	return entries
}
