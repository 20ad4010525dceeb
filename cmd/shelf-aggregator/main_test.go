package main

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/readshelf/shelf-aggregator/internal/testutil"
	"github.com/readshelf/shelf-aggregator/pkg/aggregate"
	"github.com/readshelf/shelf-aggregator/pkg/catalog"
	"github.com/readshelf/shelf-aggregator/pkg/ownership"
)

// newTestServer wires a router to mock ownership and catalog upstreams.
func newTestServer(t *testing.T) (http.Handler, *testutil.MockOwnership, *testutil.MockCatalog) {
	t.Helper()

	ownershipMock := testutil.NewMockOwnership()
	t.Cleanup(ownershipMock.Close)
	catalogMock := testutil.NewMockCatalog()
	t.Cleanup(catalogMock.Close)

	lister, err := ownership.New(ownership.Config{BaseURL: ownershipMock.URL(), UserAgent: "test/1.0"})
	if err != nil {
		t.Fatalf("Failed to create ownership client: %v", err)
	}

	catalogClient, err := catalog.New(catalog.Config{
		BaseURL:           catalogMock.URL(),
		UserAgent:         "test/1.0",
		RequestsPerSecond: -1,
	})
	if err != nil {
		t.Fatalf("Failed to create catalog client: %v", err)
	}

	batcher := catalog.NewBatcher(catalogClient, catalog.BatcherConfig{})
	srv := &server{aggregator: aggregate.New(lister, batcher), pageSize: 20}

	return newRouter(srv), ownershipMock, catalogMock
}

func TestBooksEndpoint(t *testing.T) {
	router, ownershipMock, catalogMock := newTestServer(t)

	ownershipMock.SetEntries("alice", testutil.MakeEntries(0, 5, ownership.StatusRead))
	for i := int64(0); i < 5; i++ {
		catalogMock.AddRecord(i, "Book", 100)
	}

	req := httptest.NewRequest("GET", "/users/alice/books?page=0&size=20", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	resp := w.Result()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want 200", resp.StatusCode)
	}

	var page struct {
		Books   []json.RawMessage `json:"books"`
		HasMore bool              `json:"hasMore"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&page); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if len(page.Books) != 5 {
		t.Errorf("books = %d, want 5", len(page.Books))
	}
	if page.HasMore {
		t.Error("hasMore = true for short page, want false")
	}
}

func TestBooksEndpoint_ListFailure(t *testing.T) {
	router, ownershipMock, _ := newTestServer(t)
	ownershipMock.FailPage(0, http.StatusInternalServerError)

	req := httptest.NewRequest("GET", "/users/alice/books", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	if w.Result().StatusCode != http.StatusBadGateway {
		t.Errorf("status = %d, want 502 when the list upstream fails", w.Result().StatusCode)
	}
}

func TestStatsEndpoint(t *testing.T) {
	router, ownershipMock, catalogMock := newTestServer(t)

	ownershipMock.SetEntries("alice", testutil.MakeEntries(0, 3, ownership.StatusRead))
	catalogMock.AddRawRecord(0, `{"id": 0, "title": "A", "pages": 100, "author": {"id": 1, "name": "A. Author"}}`)
	catalogMock.AddRawRecord(1, `{"id": 1, "title": "B", "pages": 200, "author": {"id": 1, "name": "A. Author"}}`)
	catalogMock.AddRawRecord(2, `{"id": 2, "title": "C", "pages": 50, "author": {"id": 2, "name": "B. Writer"}}`)

	req := httptest.NewRequest("GET", "/users/alice/stats", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	resp := w.Result()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want 200", resp.StatusCode)
	}

	var stats basicStats
	if err := json.NewDecoder(resp.Body).Decode(&stats); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if stats.TotalBooks != 3 {
		t.Errorf("totalBooks = %d, want 3", stats.TotalBooks)
	}
	if stats.TotalPages != 350 {
		t.Errorf("totalPages = %d, want 350", stats.TotalPages)
	}
	if stats.Authors["A. Author"] != 2 {
		t.Errorf("authors = %v, want A. Author credited twice", stats.Authors)
	}
	if stats.BookStatus["read"] != 3 {
		t.Errorf("bookStatus = %v, want three read", stats.BookStatus)
	}
}

func TestStatsFullEndpoint(t *testing.T) {
	router, ownershipMock, catalogMock := newTestServer(t)

	ownershipMock.SetEntries("alice", []ownership.Entry{
		{ID: "1", Relationship: ownership.Relationship{Status: ownership.StatusWantToRead, Rating: float64Ptr(4.5)}},
	})
	catalogMock.AddRecord(1, "Rated", 300)

	req := httptest.NewRequest("GET", "/users/alice/stats/full", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	var stats aggregate.Accumulator
	if err := json.NewDecoder(w.Result().Body).Decode(&stats); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if stats.RatingDistribution["4.5"] != 1 {
		t.Errorf("ratingDistribution = %v, want one 4.5", stats.RatingDistribution)
	}
	if stats.TotalPages != 0 {
		t.Errorf("totalPages = %d, want 0 (book not READ)", stats.TotalPages)
	}
}

func TestHealthzEndpoint(t *testing.T) {
	router, _, _ := newTestServer(t)

	req := httptest.NewRequest("GET", "/healthz", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	if w.Result().StatusCode != http.StatusOK {
		t.Errorf("status = %d, want 200", w.Result().StatusCode)
	}
}

func TestMetricsEndpoint(t *testing.T) {
	router, ownershipMock, catalogMock := newTestServer(t)

	// One aggregation pass so the shelf metrics have observations.
	ownershipMock.SetEntries("alice", testutil.MakeEntries(0, 2, ownership.StatusRead))
	catalogMock.AddRecord(0, "A", 10)
	catalogMock.AddRecord(1, "B", 20)
	warm := httptest.NewRequest("GET", "/users/alice/stats", nil)
	router.ServeHTTP(httptest.NewRecorder(), warm)

	req := httptest.NewRequest("GET", "/metrics", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	body := w.Body.String()
	if !strings.Contains(body, "# HELP") || !strings.Contains(body, "# TYPE") {
		t.Error("Expected Prometheus format metrics output")
	}
	if !strings.Contains(body, "shelf_list_pages_total") {
		t.Error("Expected metrics output to contain shelf_list_pages_total")
	}
}

func TestLoadConfig(t *testing.T) {
	t.Setenv("OWNERSHIP_URL", "http://ownership.local")
	t.Setenv("CATALOG_URL", "http://catalog.local")

	cfg, err := loadConfig()
	if err != nil {
		t.Fatalf("loadConfig() error = %v", err)
	}
	if cfg.port != "8080" {
		t.Errorf("port = %q, want default 8080", cfg.port)
	}
	if cfg.pageSize != 20 {
		t.Errorf("pageSize = %d, want default 20", cfg.pageSize)
	}
	if cfg.catalogRPS != 5 {
		t.Errorf("catalogRPS = %v, want default 5", cfg.catalogRPS)
	}
}

func TestLoadConfig_MissingUpstreams(t *testing.T) {
	t.Setenv("OWNERSHIP_URL", "")
	t.Setenv("CATALOG_URL", "http://catalog.local")
	if _, err := loadConfig(); err == nil {
		t.Error("loadConfig() error = nil, want failure without OWNERSHIP_URL")
	}

	t.Setenv("OWNERSHIP_URL", "http://ownership.local")
	t.Setenv("CATALOG_URL", "")
	if _, err := loadConfig(); err == nil {
		t.Error("loadConfig() error = nil, want failure without CATALOG_URL")
	}
}

func TestQueryInt(t *testing.T) {
	tests := []struct {
		query string
		want  int
	}{
		{"size=10", 10},
		{"size=abc", 20},
		{"size=-5", 20},
		{"", 20},
	}

	for _, tt := range tests {
		req := httptest.NewRequest("GET", "/?"+tt.query, nil)
		if got := queryInt(req, "size", 20); got != tt.want {
			t.Errorf("queryInt(%q) = %d, want %d", tt.query, got, tt.want)
		}
	}
}

func float64Ptr(f float64) *float64 { return &f }
