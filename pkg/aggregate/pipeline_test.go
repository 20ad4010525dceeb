package aggregate

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/readshelf/shelf-aggregator/pkg/catalog"
	"github.com/readshelf/shelf-aggregator/pkg/ownership"
)

// fakeLister serves a fixed sequence of pages and records every fetch.
type fakeLister struct {
	pages   [][]ownership.Entry
	fetches int
	failAt  int // fail on this page index when >= 0
}

func (f *fakeLister) FetchPage(_ context.Context, _ string, page, _ int) ([]ownership.Entry, error) {
	f.fetches++
	if f.failAt >= 0 && page == f.failAt {
		return nil, &ownership.ListError{Page: page, StatusCode: 502}
	}
	if page >= len(f.pages) {
		return nil, nil
	}
	return f.pages[page], nil
}

// fakeResolver resolves every requested id except the poisoned ones and
// records each Resolve call's id set.
type fakeResolver struct {
	calls    [][]string
	poisoned map[string]bool
}

func (f *fakeResolver) Resolve(_ context.Context, ids []string) map[string]catalog.Record {
	f.calls = append(f.calls, append([]string(nil), ids...))
	records := make(map[string]catalog.Record, len(ids))
	for _, id := range ids {
		if f.poisoned[id] {
			continue
		}
		pages := 100
		records[id] = catalog.Record{
			Title: "Book " + id,
			Pages: &pages,
		}
	}
	return records
}

func entriesRange(from, to int) []ownership.Entry {
	entries := make([]ownership.Entry, 0, to-from)
	for i := from; i < to; i++ {
		entries = append(entries, ownership.Entry{
			ID:           fmt.Sprintf("%d", i),
			Relationship: ownership.Relationship{Status: ownership.StatusRead},
		})
	}
	return entries
}

func TestCollectAll_EndToEnd(t *testing.T) {
	// Two list pages (20 then 5 entries at size 20), one batched catalog
	// pass over all 25 ids, 3 of which fail to resolve.
	lister := &fakeLister{
		pages:  [][]ownership.Entry{entriesRange(0, 20), entriesRange(20, 25)},
		failAt: -1,
	}
	resolver := &fakeResolver{poisoned: map[string]bool{"3": true, "11": true, "24": true}}
	agg := New(lister, resolver)

	result, err := agg.CollectAll(context.Background(), "user-1", 20)
	if err != nil {
		t.Fatalf("CollectAll() error = %v", err)
	}

	// The short second page terminates pagination without a third fetch.
	if lister.fetches != 2 {
		t.Errorf("list fetches = %d, want 2", lister.fetches)
	}
	if len(resolver.calls) != 1 {
		t.Fatalf("Resolve calls = %d, want 1", len(resolver.calls))
	}
	if len(resolver.calls[0]) != 25 {
		t.Errorf("resolved id count = %d, want 25", len(resolver.calls[0]))
	}
	if len(result.Books) != 22 {
		t.Errorf("books = %d, want 22 (3 unresolvable entries dropped)", len(result.Books))
	}
	if result.Stats.TotalBooks != 22 {
		t.Errorf("Stats.TotalBooks = %d, want 22", result.Stats.TotalBooks)
	}
	if result.Stats.TotalPages != 22*100 {
		t.Errorf("Stats.TotalPages = %d, want %d", result.Stats.TotalPages, 22*100)
	}
}

func TestCollectAll_DuplicateAcrossPagesCountedOnce(t *testing.T) {
	// Entry "5" appears on both pages; it must resolve and count once.
	pageOne := entriesRange(0, 10)
	pageTwo := entriesRange(5, 12)
	lister := &fakeLister{pages: [][]ownership.Entry{pageOne, pageTwo}, failAt: -1}
	resolver := &fakeResolver{}
	agg := New(lister, resolver)

	result, err := agg.CollectAll(context.Background(), "user-1", 10)
	if err != nil {
		t.Fatalf("CollectAll() error = %v", err)
	}

	if len(resolver.calls[0]) != 12 {
		t.Errorf("resolved id count = %d, want 12 distinct", len(resolver.calls[0]))
	}
	if len(result.Books) != 12 {
		t.Errorf("books = %d, want 12", len(result.Books))
	}
	if result.Stats.TotalBooks != 12 {
		t.Errorf("Stats.TotalBooks = %d, want 12", result.Stats.TotalBooks)
	}
}

func TestCollectAll_ListErrorIsFatal(t *testing.T) {
	lister := &fakeLister{
		pages:  [][]ownership.Entry{entriesRange(0, 10), entriesRange(10, 20)},
		failAt: 1,
	}
	resolver := &fakeResolver{}
	agg := New(lister, resolver)

	_, err := agg.CollectAll(context.Background(), "user-1", 10)
	if err == nil {
		t.Fatal("CollectAll() error = nil, want list failure propagated")
	}
	var listErr *ownership.ListError
	if !errors.As(err, &listErr) {
		t.Errorf("error = %v, want *ownership.ListError", err)
	}
	if len(resolver.calls) != 0 {
		t.Errorf("Resolve calls = %d, want 0 after fatal list error", len(resolver.calls))
	}
}

func TestCollectAll_EmptyList(t *testing.T) {
	lister := &fakeLister{pages: nil, failAt: -1}
	resolver := &fakeResolver{}
	agg := New(lister, resolver)

	result, err := agg.CollectAll(context.Background(), "user-1", 20)
	if err != nil {
		t.Fatalf("CollectAll() error = %v", err)
	}
	if len(result.Books) != 0 {
		t.Errorf("books = %d, want 0", len(result.Books))
	}
	if result.Stats.TotalBooks != 0 {
		t.Errorf("Stats.TotalBooks = %d, want 0", result.Stats.TotalBooks)
	}
	if len(resolver.calls) != 0 {
		t.Errorf("Resolve calls = %d, want 0 for empty list", len(resolver.calls))
	}
}

func TestCollectPage_HasMore(t *testing.T) {
	lister := &fakeLister{
		pages:  [][]ownership.Entry{entriesRange(0, 20), entriesRange(20, 25)},
		failAt: -1,
	}
	agg := New(lister, &fakeResolver{})

	full, err := agg.CollectPage(context.Background(), "user-1", 0, 20)
	if err != nil {
		t.Fatalf("CollectPage(0) error = %v", err)
	}
	if !full.HasMore {
		t.Error("HasMore = false for full page, want true")
	}
	if len(full.Books) != 20 {
		t.Errorf("books = %d, want 20", len(full.Books))
	}

	short, err := agg.CollectPage(context.Background(), "user-1", 1, 20)
	if err != nil {
		t.Fatalf("CollectPage(1) error = %v", err)
	}
	if short.HasMore {
		t.Error("HasMore = true for short page, want false")
	}
	if len(short.Books) != 5 {
		t.Errorf("books = %d, want 5", len(short.Books))
	}
}

func TestCollectPage_HasMoreUsesRawPageLength(t *testing.T) {
	// Dropped entries do not shrink the page for the HasMore decision.
	lister := &fakeLister{pages: [][]ownership.Entry{entriesRange(0, 10)}, failAt: -1}
	resolver := &fakeResolver{poisoned: map[string]bool{"0": true, "1": true}}
	agg := New(lister, resolver)

	page, err := agg.CollectPage(context.Background(), "user-1", 0, 10)
	if err != nil {
		t.Fatalf("CollectPage() error = %v", err)
	}
	if len(page.Books) != 8 {
		t.Errorf("books = %d, want 8", len(page.Books))
	}
	if !page.HasMore {
		t.Error("HasMore = false, want true (raw page was full)")
	}
}

func TestCollectPage_ListErrorIsFatal(t *testing.T) {
	lister := &fakeLister{failAt: 0}
	agg := New(lister, &fakeResolver{})

	_, err := agg.CollectPage(context.Background(), "user-1", 0, 20)
	if err == nil {
		t.Fatal("CollectPage() error = nil, want list failure propagated")
	}
}
