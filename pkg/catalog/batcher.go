package catalog

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/readshelf/shelf-aggregator/pkg/cache"
)

// MaxBatchSize is the largest identifier set the catalog accepts per query.
const MaxBatchSize = 50

// Prometheus metrics for batch resolution.
var (
	catalogBatchesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "shelf_catalog_batches_total",
		Help: "Total catalog batches dispatched by outcome",
	}, []string{"outcome"})

	catalogRecordsResolvedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "shelf_catalog_records_resolved_total",
		Help: "Total catalog records resolved by source",
	}, []string{"source"})
)

// RecordFetcher is the interface the batcher dispatches chunks through.
// It is satisfied by *Client and by test fakes.
type RecordFetcher interface {
	// FetchBatch resolves one batch of identifiers into records keyed by id.
	FetchBatch(ctx context.Context, ids []string) (map[string]Record, error)
}

// BatcherConfig holds batch resolution configuration.
type BatcherConfig struct {
	// BatchSize is the maximum identifiers per catalog query (default: MaxBatchSize).
	BatchSize int

	// Cache is an optional per-record cache consulted before dispatch.
	Cache *cache.Manager
}

// Batcher resolves identifier sets against the catalog in bounded,
// independently-failing batches.
//
// Catalog lookups are the most failure-prone step of the aggregation
// pipeline, so isolation at the batch level is the primary resilience
// mechanism: a failed batch is logged and excluded from the result, and
// never aborts sibling batches or the pipeline.
type Batcher struct {
	fetcher   RecordFetcher
	batchSize int
	cache     *cache.Manager
	logger    zerolog.Logger
}

// NewBatcher creates a new batcher.
func NewBatcher(fetcher RecordFetcher, cfg BatcherConfig) *Batcher {
	if cfg.BatchSize <= 0 || cfg.BatchSize > MaxBatchSize {
		cfg.BatchSize = MaxBatchSize
	}

	return &Batcher{
		fetcher:   fetcher,
		batchSize: cfg.BatchSize,
		cache:     cfg.Cache,
		logger:    log.With().Str("component", "catalog-batcher").Logger(),
	}
}

// chunkResult carries one batch's outcome. Every batch produces its own
// partial map; maps are merged only after all batches settle, so no batch
// mutates shared state while in flight.
type chunkResult struct {
	records map[string]Record
	err     error
}

// Resolve deduplicates ids, splits them into consecutive chunks of at most
// the configured batch size, dispatches all chunks concurrently, and merges
// the partial results after every chunk has settled.
//
// The returned map contains only identifiers that were successfully
// resolved. Callers must treat absent entries as "catalog data unavailable",
// not as an error.
func (b *Batcher) Resolve(ctx context.Context, ids []string) map[string]Record {
	start := time.Now()

	unique := dedupe(ids)
	resolved := make(map[string]Record, len(unique))

	// Consult the cache first; only misses go to the catalog.
	misses := unique
	if b.cache != nil {
		misses = b.lookupCache(ctx, unique, resolved)
	}

	chunks := chunk(misses, b.batchSize)
	if len(chunks) > 0 {
		results := make([]chunkResult, len(chunks))

		var wg sync.WaitGroup
		for i, c := range chunks {
			wg.Add(1)
			go func(i int, chunkIDs []string) {
				defer wg.Done()
				records, err := b.fetcher.FetchBatch(ctx, chunkIDs)
				results[i] = chunkResult{records: records, err: err}
			}(i, c)
		}
		wg.Wait()

		fetched := make(map[string]Record)
		for i, result := range results {
			if result.err != nil {
				catalogBatchesTotal.WithLabelValues("failed").Inc()
				b.logger.Warn().
					Err(result.err).
					Int("batch", i).
					Int("ids", len(chunks[i])).
					Msg("Catalog batch failed - excluding from results")
				continue
			}

			catalogBatchesTotal.WithLabelValues("ok").Inc()
			for id, record := range result.records {
				resolved[id] = record
				fetched[id] = record
			}
		}

		catalogRecordsResolvedTotal.WithLabelValues("fetch").Add(float64(len(fetched)))
		if b.cache != nil {
			b.storeCache(ctx, fetched)
		}
	}

	b.logger.Debug().
		Int("requested", len(unique)).
		Int("resolved", len(resolved)).
		Int("batches", len(chunks)).
		Dur("duration", time.Since(start)).
		Msg("Batch resolution complete")

	return resolved
}

// lookupCache fills resolved from the record cache and returns the
// identifiers that still need fetching. A cache failure degrades to
// fetching everything.
func (b *Batcher) lookupCache(ctx context.Context, ids []string, resolved map[string]Record) []string {
	entries, err := b.cache.GetMany(ctx, ids)
	if err != nil {
		b.logger.Warn().Err(err).Msg("Record cache lookup failed - fetching all ids")
		return ids
	}

	misses := make([]string, 0, len(ids))
	for _, id := range ids {
		entry, ok := entries[id]
		if !ok {
			misses = append(misses, id)
			continue
		}

		var record Record
		if err := json.Unmarshal(entry.Data, &record); err != nil {
			b.logger.Warn().Err(err).Str("id", id).Msg("Corrupted cached record - refetching")
			misses = append(misses, id)
			continue
		}
		resolved[id] = record
	}

	catalogRecordsResolvedTotal.WithLabelValues("cache").Add(float64(len(ids) - len(misses)))
	return misses
}

// storeCache writes freshly fetched records back to the cache, best effort.
func (b *Batcher) storeCache(ctx context.Context, records map[string]Record) {
	if len(records) == 0 {
		return
	}

	payloads := make(map[string][]byte, len(records))
	for id, record := range records {
		data, err := json.Marshal(record)
		if err != nil {
			continue
		}
		payloads[id] = data
	}

	if err := b.cache.SetMany(ctx, payloads); err != nil {
		b.logger.Warn().Err(err).Int("records", len(payloads)).Msg("Record cache write failed")
	}
}

// dedupe removes duplicate identifiers preserving first-seen order.
func dedupe(ids []string) []string {
	seen := make(map[string]struct{}, len(ids))
	unique := make([]string, 0, len(ids))
	for _, id := range ids {
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		unique = append(unique, id)
	}
	return unique
}

// chunk splits ids into consecutive chunks of at most size elements.
func chunk(ids []string, size int) [][]string {
	if len(ids) == 0 {
		return nil
	}
	chunks := make([][]string, 0, (len(ids)+size-1)/size)
	for start := 0; start < len(ids); start += size {
		end := start + size
		if end > len(ids) {
			end = len(ids)
		}
		chunks = append(chunks, ids[start:end])
	}
	return chunks
}
