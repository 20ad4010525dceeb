package ownership

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// Prometheus metrics for ownership list operations.
var (
	listPagesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "shelf_list_pages_total",
		Help: "Total ownership list page fetches by status",
	}, []string{"status"})

	listPageDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "shelf_list_page_duration_seconds",
		Help:    "Ownership list page fetch duration in seconds",
		Buckets: []float64{0.05, 0.1, 0.5, 1, 2, 5},
	}, []string{"status"})
)

// ListError reports a failed page fetch from the ownership service.
// A page fetch failure aborts the entire aggregation: pagination has no
// defined resumption point, so the error is fatal rather than recoverable.
type ListError struct {
	Page       int
	StatusCode int
	Err        error
}

// Error implements the error interface.
func (e *ListError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("ownership list page %d: %v", e.Page, e.Err)
	}
	return fmt.Sprintf("ownership list page %d: status %d", e.Page, e.StatusCode)
}

// Unwrap implements error unwrapping for errors.Is/As.
func (e *ListError) Unwrap() error {
	return e.Err
}

// Config holds the ownership client configuration.
type Config struct {
	// BaseURL of the ownership service (REQUIRED).
	BaseURL string

	// User-Agent header sent with every request.
	UserAgent string

	// Timeout per page request.
	Timeout time.Duration
}

// DefaultConfig returns a safe default configuration.
func DefaultConfig(baseURL string) Config {
	return Config{
		BaseURL:   baseURL,
		UserAgent: "shelf-aggregator/0.1.0",
		Timeout:   10 * time.Second,
	}
}

// Client fetches reading-list pages from the ownership service.
type Client struct {
	httpClient *http.Client
	config     Config
	logger     zerolog.Logger
}

// New creates a new ownership client.
func New(cfg Config) (*Client, error) {
	if cfg.BaseURL == "" {
		return nil, fmt.Errorf("ownership base URL is required")
	}

	if cfg.Timeout <= 0 {
		cfg.Timeout = 10 * time.Second
	}

	logger := log.With().Str("component", "ownership-client").Logger()

	return &Client{
		httpClient: &http.Client{
			Timeout: cfg.Timeout,
		},
		config: cfg,
		logger: logger,
	}, nil
}

// FetchPage fetches a single page of reading-list entries for a user.
// Pages are requested starting at index 0. The response body is a plain
// JSON array of entries; there is no total-count header.
func (c *Client) FetchPage(ctx context.Context, userID string, page, size int) ([]Entry, error) {
	start := time.Now()

	endpoint := fmt.Sprintf("%s/list?user=%s&page=%d&size=%d",
		c.config.BaseURL, url.QueryEscape(userID), page, size)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("User-Agent", c.config.UserAgent)
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		listPagesTotal.WithLabelValues("network_error").Inc()
		c.logger.Error().Err(err).Int("page", page).Msg("List page fetch failed")
		return nil, &ListError{Page: page, Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		// Drain so the connection can be reused.
		io.Copy(io.Discard, io.LimitReader(resp.Body, 4096))
		listPagesTotal.WithLabelValues(fmt.Sprintf("%d", resp.StatusCode)).Inc()
		c.logger.Error().
			Int("page", page).
			Int("status", resp.StatusCode).
			Msg("List page fetch returned non-success status")
		return nil, &ListError{Page: page, StatusCode: resp.StatusCode}
	}

	var entries []Entry
	if err := json.NewDecoder(resp.Body).Decode(&entries); err != nil {
		listPagesTotal.WithLabelValues("decode_error").Inc()
		return nil, &ListError{Page: page, Err: fmt.Errorf("decode page body: %w", err)}
	}

	listPagesTotal.WithLabelValues("200").Inc()
	listPageDuration.WithLabelValues("200").Observe(time.Since(start).Seconds())

	c.logger.Debug().
		Int("page", page).
		Int("entries", len(entries)).
		Msg("Fetched list page")

	return entries, nil
}
