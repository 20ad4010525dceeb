package aggregate

import (
	"context"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/readshelf/shelf-aggregator/pkg/catalog"
	"github.com/readshelf/shelf-aggregator/pkg/ownership"
)

// Prometheus metrics for aggregation passes.
var (
	aggregateDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "shelf_aggregate_duration_seconds",
		Help:    "Aggregation pass duration in seconds by operation",
		Buckets: []float64{0.1, 0.5, 1, 2, 5, 10, 30},
	}, []string{"operation"})

	aggregateBooksTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "shelf_aggregate_books_total",
		Help: "Total books processed by aggregation passes, by outcome",
	}, []string{"outcome"}) // "merged", "skipped"
)

// RecordResolver resolves a set of entry identifiers into catalog records.
// The returned map holds only successfully resolved identifiers; absence
// means "catalog data unavailable", never an error. Satisfied by
// *catalog.Batcher.
type RecordResolver interface {
	Resolve(ctx context.Context, ids []string) map[string]catalog.Record
}

// Page is the paged book listing result.
type Page struct {
	Books []MergedBook `json:"books"`

	// HasMore reflects page fullness of the ownership listing: a full page
	// means another fetch may yield more entries.
	HasMore bool `json:"hasMore"`
}

// Result is the full aggregation result: every resolvable book on the
// user's list plus the folded statistics.
type Result struct {
	Books []MergedBook `json:"books"`
	Stats Accumulator  `json:"stats"`
}

// Aggregator orchestrates the aggregation pipeline. All state is
// request-scoped: an aggregation pass begins and ends within one call and
// holds nothing afterwards.
type Aggregator struct {
	lister   ownership.PageFetcher
	resolver RecordResolver
	logger   zerolog.Logger
}

// New creates an aggregator over the given upstreams.
func New(lister ownership.PageFetcher, resolver RecordResolver) *Aggregator {
	return &Aggregator{
		lister:   lister,
		resolver: resolver,
		logger:   log.With().Str("component", "aggregate").Logger(),
	}
}

// CollectPage aggregates a single ownership page: fetch, dedupe, resolve,
// merge. Entries whose catalog data is unavailable are dropped silently, so
// the result may hold fewer books than the page held entries.
//
// A list fetch failure is fatal; catalog failures are not.
func (a *Aggregator) CollectPage(ctx context.Context, userID string, page, size int) (*Page, error) {
	start := time.Now()
	defer func() {
		aggregateDuration.WithLabelValues("page").Observe(time.Since(start).Seconds())
	}()

	entries, err := a.lister.FetchPage(ctx, userID, page, size)
	if err != nil {
		return nil, err
	}

	dedup := NewDeduplicator()
	working := make([]ownership.Entry, 0, len(entries))
	for _, entry := range entries {
		if dedup.Admit(entry.ID) {
			working = append(working, entry)
		}
	}

	books := a.mergeAll(ctx, working)

	a.logger.Debug().
		Str("user_id", userID).
		Int("page", page).
		Int("entries", len(entries)).
		Int("books", len(books)).
		Msg("Collected page")

	return &Page{
		Books: books,
		// HasMore is inferred from raw page fullness, before dedup.
		HasMore: len(entries) == size,
	}, nil
}

// CollectAll walks the user's entire reading list and folds statistics
// over every merged book. Pagination is strictly sequential; catalog
// resolution happens in one batched pass over the deduplicated working set.
func (a *Aggregator) CollectAll(ctx context.Context, userID string, pageSize int) (*Result, error) {
	start := time.Now()
	defer func() {
		aggregateDuration.WithLabelValues("all").Observe(time.Since(start).Seconds())
	}()

	paginator := ownership.NewPaginator(a.lister, userID, pageSize)
	dedup := NewDeduplicator()
	var working []ownership.Entry

	for {
		entries, ok, err := paginator.Next(ctx)
		if err != nil {
			return nil, err
		}
		if !ok {
			break
		}
		for _, entry := range entries {
			if dedup.Admit(entry.ID) {
				working = append(working, entry)
			}
		}
	}

	books := a.mergeAll(ctx, working)

	stats := NewAccumulator()
	for _, book := range books {
		stats = stats.Fold(book)
	}

	a.logger.Info().
		Str("user_id", userID).
		Int("entries", len(working)).
		Int("books", len(books)).
		Int("pages", paginator.PageIndex()).
		Dur("duration", time.Since(start)).
		Msg("Aggregation complete")

	return &Result{Books: books, Stats: stats}, nil
}

// mergeAll resolves catalog records for the working set and merges each
// entry with its record, preserving entry order. Unresolvable entries are
// skipped.
func (a *Aggregator) mergeAll(ctx context.Context, working []ownership.Entry) []MergedBook {
	if len(working) == 0 {
		return nil
	}

	ids := make([]string, len(working))
	for i, entry := range working {
		ids[i] = entry.ID
	}

	records := a.resolver.Resolve(ctx, ids)

	books := make([]MergedBook, 0, len(working))
	skipped := 0
	for _, entry := range working {
		record, ok := records[entry.ID]
		if !ok {
			skipped++
			continue
		}
		if book := Merge(entry, &record); book != nil {
			books = append(books, *book)
		}
	}

	aggregateBooksTotal.WithLabelValues("merged").Add(float64(len(books)))
	aggregateBooksTotal.WithLabelValues("skipped").Add(float64(skipped))

	if skipped > 0 {
		a.logger.Warn().
			Int("skipped", skipped).
			Int("merged", len(books)).
			Msg("Entries dropped: catalog data unavailable")
	}

	return books
}
