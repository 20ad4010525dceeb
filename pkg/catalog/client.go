package catalog

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"golang.org/x/time/rate"

	"github.com/readshelf/shelf-aggregator/pkg/ratelimit"
)

// Prometheus metrics for catalog request operations.
var (
	catalogRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "shelf_catalog_requests_total",
		Help: "Total catalog requests by status",
	}, []string{"status"})

	catalogRequestDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "shelf_catalog_request_duration_seconds",
		Help:    "Catalog request duration in seconds",
		Buckets: []float64{0.1, 0.5, 1, 2, 5, 10},
	})

	catalogErrorsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "shelf_catalog_errors_total",
		Help: "Total catalog errors by class",
	}, []string{"class"})
)

// queryRequest is the catalog's query body: either a batch of numeric
// identifiers or a free-text search term, never both.
type queryRequest struct {
	IDs   []int64 `json:"ids,omitempty"`
	Query string  `json:"query,omitempty"`
}

// Config holds the catalog client configuration.
type Config struct {
	// BaseURL of the catalog query endpoint (REQUIRED).
	BaseURL string

	// User-Agent header sent with every request.
	UserAgent string

	// Redis client for shared throttle state (optional). When nil, throttle
	// signals still back off via retry but are not shared across processes.
	Redis *redis.Client

	// RequestsPerSecond shapes the request rate to the catalog. The
	// conservative default (0 means default) exists purely to reduce
	// observed throttling; set it negative to disable shaping entirely.
	// Results are identical either way.
	RequestsPerSecond float64

	// Timeout per catalog request.
	Timeout time.Duration
}

// DefaultConfig returns a safe default configuration.
func DefaultConfig(baseURL string) Config {
	return Config{
		BaseURL:           baseURL,
		UserAgent:         "shelf-aggregator/0.1.0",
		RequestsPerSecond: 5,
		Timeout:           15 * time.Second,
	}
}

// Client queries the catalog service with rate shaping, throttle tracking,
// and retry with backoff.
type Client struct {
	httpClient *http.Client
	config     Config
	limiter    *rate.Limiter
	throttle   *ratelimit.Tracker
	logger     zerolog.Logger
}

// New creates a new catalog client.
func New(cfg Config) (*Client, error) {
	if cfg.BaseURL == "" {
		return nil, fmt.Errorf("catalog base URL is required")
	}

	if cfg.RequestsPerSecond == 0 {
		cfg.RequestsPerSecond = 5
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 15 * time.Second
	}

	logger := log.With().Str("component", "catalog-client").Logger()

	var limiter *rate.Limiter
	if cfg.RequestsPerSecond > 0 {
		limiter = rate.NewLimiter(rate.Limit(cfg.RequestsPerSecond), 1)
	}

	var throttle *ratelimit.Tracker
	if cfg.Redis != nil {
		throttle = ratelimit.NewTracker(cfg.Redis, logger)
	}

	return &Client{
		httpClient: &http.Client{
			Timeout: cfg.Timeout,
		},
		config:   cfg,
		limiter:  limiter,
		throttle: throttle,
		logger:   logger,
	}, nil
}

// FetchBatch resolves one batch of identifiers against the catalog and
// returns the resolved records keyed by identifier. Identifiers the catalog
// serializes numerically; non-numeric identifiers cannot be queried and are
// skipped with a warning.
func (c *Client) FetchBatch(ctx context.Context, ids []string) (map[string]Record, error) {
	numeric := make([]int64, 0, len(ids))
	for _, id := range ids {
		n, err := strconv.ParseInt(id, 10, 64)
		if err != nil {
			c.logger.Warn().Str("id", id).Msg("Skipping non-numeric catalog identifier")
			continue
		}
		numeric = append(numeric, n)
	}
	if len(numeric) == 0 {
		return map[string]Record{}, nil
	}

	body, err := c.post(ctx, queryRequest{IDs: numeric})
	if err != nil {
		return nil, err
	}

	records, err := normalizeEnvelope(body)
	if err != nil {
		return nil, err
	}

	resolved := make(map[string]Record, len(records))
	for _, record := range records {
		if record.ID == "" {
			continue
		}
		resolved[record.ID.String()] = record
	}
	return resolved, nil
}

// Search queries the catalog by free-text term. The search envelope is
// normalized into the same Record shape batch queries produce.
func (c *Client) Search(ctx context.Context, term string) ([]Record, error) {
	body, err := c.post(ctx, queryRequest{Query: term})
	if err != nil {
		return nil, err
	}
	return normalizeEnvelope(body)
}

// post executes one catalog query with rate shaping, throttle gating, and
// retry with backoff, and returns the raw response body.
func (c *Client) post(ctx context.Context, query queryRequest) ([]byte, error) {
	// Step 1: Check the shared throttle cooldown
	if c.throttle != nil {
		allowed, err := c.throttle.ShouldAllowRequest(ctx)
		if err != nil {
			c.logger.Warn().Err(err).Msg("Throttle check failed, proceeding without gate")
		} else if !allowed {
			catalogRequestsTotal.WithLabelValues("throttled").Inc()
			return nil, fmt.Errorf("request blocked: %w", ErrThrottled)
		}
	}

	// Step 2: Rate shaping
	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			return nil, fmt.Errorf("rate limiter wait: %w", err)
		}
	}

	payload, err := json.Marshal(query)
	if err != nil {
		return nil, fmt.Errorf("marshal catalog query: %w", err)
	}

	start := time.Now()
	defer func() {
		catalogRequestDuration.Observe(time.Since(start).Seconds())
	}()

	// Step 3: Execute with retry and backoff
	var responseBody []byte
	retryErr := retryWithBackoff(ctx, func() error {
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.config.BaseURL, bytes.NewReader(payload))
		if err != nil {
			return &UpstreamError{ErrorClass: ErrorClassClient, Message: "create request", Err: err}
		}
		req.Header.Set("User-Agent", c.config.UserAgent)
		req.Header.Set("Content-Type", "application/json")
		req.Header.Set("Accept", "application/json")

		resp, err := c.httpClient.Do(req)
		if err != nil {
			catalogErrorsTotal.WithLabelValues(string(ErrorClassNetwork)).Inc()
			catalogRequestsTotal.WithLabelValues("network_error").Inc()
			return &UpstreamError{ErrorClass: ErrorClassNetwork, Message: "catalog request failed", Err: err}
		}
		defer resp.Body.Close()

		body, err := io.ReadAll(resp.Body)
		if err != nil {
			catalogErrorsTotal.WithLabelValues(string(ErrorClassNetwork)).Inc()
			return &UpstreamError{ErrorClass: ErrorClassNetwork, Message: "read catalog response", Err: err}
		}

		if resp.StatusCode != http.StatusOK {
			errorClass := classifyStatus(resp.StatusCode, body)
			catalogErrorsTotal.WithLabelValues(string(errorClass)).Inc()
			catalogRequestsTotal.WithLabelValues(fmt.Sprintf("%d", resp.StatusCode)).Inc()

			if errorClass == ErrorClassThrottle && c.throttle != nil {
				if err := c.throttle.RecordThrottle(ctx, retryAfter(resp.Header)); err != nil {
					c.logger.Warn().Err(err).Msg("Failed to record throttle signal")
				}
			}

			c.logger.Warn().
				Int("status", resp.StatusCode).
				Str("error_class", string(errorClass)).
				Msg("Catalog request error")

			return &UpstreamError{
				StatusCode: resp.StatusCode,
				ErrorClass: errorClass,
				Message:    resp.Status,
			}
		}

		catalogRequestsTotal.WithLabelValues("200").Inc()
		responseBody = body
		return nil
	})
	if retryErr != nil {
		return nil, retryErr
	}

	// Step 4: A successful request resets the consecutive throttle count
	if c.throttle != nil {
		if err := c.throttle.RecordSuccess(ctx); err != nil {
			c.logger.Warn().Err(err).Msg("Failed to reset throttle state")
		}
	}

	return responseBody, nil
}

// retryAfter parses the Retry-After header as a second count.
// Returns 0 when absent or unparseable.
func retryAfter(headers http.Header) time.Duration {
	value := headers.Get("Retry-After")
	if value == "" {
		return 0
	}
	seconds, err := strconv.Atoi(value)
	if err != nil || seconds < 0 {
		return 0
	}
	return time.Duration(seconds) * time.Second
}

// SetHTTPClient sets a custom HTTP client (for testing).
func (c *Client) SetHTTPClient(client *http.Client) {
	c.httpClient = client
}
