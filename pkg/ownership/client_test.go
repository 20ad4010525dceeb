package ownership

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestNew_Validation(t *testing.T) {
	tests := []struct {
		name        string
		config      Config
		expectError bool
		errorMsg    string
	}{
		{
			name:        "valid config",
			config:      DefaultConfig("http://localhost:9090"),
			expectError: false,
		},
		{
			name:        "missing base URL",
			config:      Config{},
			expectError: true,
			errorMsg:    "ownership base URL is required",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			client, err := New(tt.config)

			if tt.expectError {
				if err == nil {
					t.Errorf("Expected error but got nil")
					return
				}
				if tt.errorMsg != "" && err.Error() != tt.errorMsg {
					t.Errorf("Error message = %q, want %q", err.Error(), tt.errorMsg)
				}
			} else {
				if err != nil {
					t.Errorf("Unexpected error: %v", err)
					return
				}
				if client == nil {
					t.Error("Client is nil")
				}
			}
		})
	}
}

func TestFetchPage_Success(t *testing.T) {
	var gotQuery string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotQuery = r.URL.RawQuery
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`[
			{"id":"42","userRelationship":{"status":"READ","rating":4.5,"selectedEditionId":"7"}},
			{"id":"43","userRelationship":{"status":"READING","rating":null}}
		]`))
	}))
	defer server.Close()

	client, err := New(DefaultConfig(server.URL))
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}

	entries, err := client.FetchPage(context.Background(), "user-1", 0, 20)
	if err != nil {
		t.Fatalf("FetchPage() error = %v", err)
	}

	if gotQuery != "user=user-1&page=0&size=20" {
		t.Errorf("query = %q, want user/page/size params", gotQuery)
	}
	if len(entries) != 2 {
		t.Fatalf("entries = %d, want 2", len(entries))
	}
	if entries[0].ID != "42" {
		t.Errorf("entries[0].ID = %q, want %q", entries[0].ID, "42")
	}
	if entries[0].Relationship.Status != StatusRead {
		t.Errorf("entries[0] status = %q, want READ", entries[0].Relationship.Status)
	}
	if entries[0].Relationship.Rating == nil || *entries[0].Relationship.Rating != 4.5 {
		t.Errorf("entries[0] rating = %v, want 4.5", entries[0].Relationship.Rating)
	}
	if entries[0].Relationship.SelectedEditionID != "7" {
		t.Errorf("entries[0] selected edition = %q, want %q", entries[0].Relationship.SelectedEditionID, "7")
	}
	if entries[1].Relationship.Rating != nil {
		t.Errorf("entries[1] rating = %v, want nil", entries[1].Relationship.Rating)
	}
}

func TestFetchPage_NonSuccessStatus(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "upstream down", http.StatusBadGateway)
	}))
	defer server.Close()

	client, err := New(DefaultConfig(server.URL))
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}

	_, err = client.FetchPage(context.Background(), "user-1", 3, 20)
	if err == nil {
		t.Fatal("FetchPage() expected error, got nil")
	}

	var listErr *ListError
	if !errors.As(err, &listErr) {
		t.Fatalf("error = %T, want *ListError", err)
	}
	if listErr.Page != 3 {
		t.Errorf("ListError.Page = %d, want 3", listErr.Page)
	}
	if listErr.StatusCode != http.StatusBadGateway {
		t.Errorf("ListError.StatusCode = %d, want 502", listErr.StatusCode)
	}
}

func TestFetchPage_NetworkError(t *testing.T) {
	client, err := New(DefaultConfig("http://127.0.0.1:1"))
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}

	_, err = client.FetchPage(context.Background(), "user-1", 0, 20)
	if err == nil {
		t.Fatal("FetchPage() expected error, got nil")
	}

	var listErr *ListError
	if !errors.As(err, &listErr) {
		t.Fatalf("error = %T, want *ListError", err)
	}
	if listErr.Unwrap() == nil {
		t.Error("ListError.Unwrap() = nil, want wrapped network error")
	}
}

func TestFetchPage_MalformedBody(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"not":"an array"}`))
	}))
	defer server.Close()

	client, err := New(DefaultConfig(server.URL))
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}

	_, err = client.FetchPage(context.Background(), "user-1", 0, 20)
	if err == nil {
		t.Fatal("FetchPage() expected decode error, got nil")
	}
}
