package testutil

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync"
)

// MockCatalog is a configurable mock catalog service. It answers batch
// queries from an in-memory record set using the books envelope shape and
// tracks every batch it serves.
type MockCatalog struct {
	server *httptest.Server
	mu     sync.RWMutex

	records map[int64]json.RawMessage

	// poison makes any batch containing the id answer with the status code.
	poison map[int64]int

	// failNext makes the next N requests answer with failNextStatus before
	// normal service resumes.
	failNext       int
	failNextStatus int
	retryAfter     string

	// Tracking
	RequestCount int
	BatchSizes   []int
}

// NewMockCatalog creates a mock catalog server with no records.
func NewMockCatalog() *MockCatalog {
	mock := &MockCatalog{
		records: make(map[int64]json.RawMessage),
		poison:  make(map[int64]int),
	}

	mock.server = httptest.NewServer(http.HandlerFunc(mock.handleQuery))
	return mock
}

// URL returns the mock server URL.
func (m *MockCatalog) URL() string {
	return m.server.URL
}

// Close shuts down the mock server.
func (m *MockCatalog) Close() {
	m.server.Close()
}

// AddRecord registers a record served for the given id. Extra JSON fields
// are merged into the record object.
func (m *MockCatalog) AddRecord(id int64, title string, pages int) {
	raw := json.RawMessage(fmt.Sprintf(`{"id": %d, "title": %q, "pages": %d}`, id, title, pages))
	m.mu.Lock()
	defer m.mu.Unlock()
	m.records[id] = raw
}

// AddRawRecord registers a record from a raw JSON object, for shapes
// AddRecord cannot express (editions, series, authors).
func (m *MockCatalog) AddRawRecord(id int64, raw string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.records[id] = json.RawMessage(raw)
}

// PoisonID makes every batch containing the id fail with the status code.
func (m *MockCatalog) PoisonID(id int64, statusCode int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.poison[id] = statusCode
}

// FailNext makes the next n requests fail with the status code.
func (m *MockCatalog) FailNext(n, statusCode int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.failNext = n
	m.failNextStatus = statusCode
}

// SetRetryAfter sets the Retry-After header sent on failure responses.
func (m *MockCatalog) SetRetryAfter(value string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.retryAfter = value
}

// GetRequestCount returns the number of batch requests served.
func (m *MockCatalog) GetRequestCount() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.RequestCount
}

// GetBatchSizes returns the id count of every batch served so far.
func (m *MockCatalog) GetBatchSizes() []int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return append([]int(nil), m.BatchSizes...)
}

func (m *MockCatalog) handleQuery(w http.ResponseWriter, r *http.Request) {
	var req struct {
		IDs   []int64 `json:"ids"`
		Query string  `json:"query"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, `{"errors": [{"message": "malformed request"}]}`, http.StatusBadRequest)
		return
	}

	m.mu.Lock()
	m.RequestCount++
	m.BatchSizes = append(m.BatchSizes, len(req.IDs))

	failStatus := 0
	if m.failNext > 0 {
		m.failNext--
		failStatus = m.failNextStatus
	}
	if failStatus == 0 {
		for _, id := range req.IDs {
			if status, ok := m.poison[id]; ok {
				failStatus = status
				break
			}
		}
	}
	retryAfter := m.retryAfter

	var hits []json.RawMessage
	for _, id := range req.IDs {
		if raw, ok := m.records[id]; ok {
			hits = append(hits, raw)
		}
	}
	m.mu.Unlock()

	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	if failStatus != 0 {
		if retryAfter != "" {
			w.Header().Set("Retry-After", retryAfter)
		}
		w.WriteHeader(failStatus)
		w.Write([]byte(`{"errors": [{"message": "upstream failure"}]}`))
		return
	}

	w.WriteHeader(http.StatusOK)
	json.NewEncoder(w).Encode(map[string]any{
		"data": map[string]any{"books": hits},
	})
}
