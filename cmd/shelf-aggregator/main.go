package main

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"os"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"

	"github.com/readshelf/shelf-aggregator/pkg/aggregate"
	"github.com/readshelf/shelf-aggregator/pkg/cache"
	"github.com/readshelf/shelf-aggregator/pkg/catalog"
	"github.com/readshelf/shelf-aggregator/pkg/logging"
	"github.com/readshelf/shelf-aggregator/pkg/ownership"
)

type config struct {
	ownershipURL string
	catalogURL   string
	redisURL     string
	port         string
	userAgent    string
	catalogRPS   float64
	pageSize     int
	cacheTTL     time.Duration
}

func main() {
	logging.Setup(logging.Config{
		Level:  logging.LogLevel(getEnv("LOG_LEVEL", "info")),
		Pretty: os.Getenv("LOG_PRETTY") == "true",
		Output: os.Stderr,
	})

	cfg, err := loadConfig()
	if err != nil {
		// Missing configuration is fatal before any upstream is contacted.
		log.Fatal().Err(err).Msg("Invalid configuration")
	}

	var redisClient *redis.Client
	if cfg.redisURL != "" {
		redisClient = redis.NewClient(&redis.Options{Addr: cfg.redisURL})
		if err := redisClient.Ping(context.Background()).Err(); err != nil {
			log.Fatal().Err(err).Str("redis_url", cfg.redisURL).Msg("Failed to connect to Redis")
		}
		log.Info().Str("redis_url", cfg.redisURL).Msg("Connected to Redis")
	} else {
		log.Info().Msg("Redis not configured, running without cache and shared throttle state")
	}

	lister, err := ownership.New(ownership.Config{
		BaseURL:   cfg.ownershipURL,
		UserAgent: cfg.userAgent,
	})
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to create ownership client")
	}

	catalogClient, err := catalog.New(catalog.Config{
		BaseURL:           cfg.catalogURL,
		UserAgent:         cfg.userAgent,
		Redis:             redisClient,
		RequestsPerSecond: cfg.catalogRPS,
	})
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to create catalog client")
	}

	var recordCache *cache.Manager
	if redisClient != nil {
		recordCache = cache.NewManager(redisClient, cfg.cacheTTL)
	}

	batcher := catalog.NewBatcher(catalogClient, catalog.BatcherConfig{Cache: recordCache})
	aggregator := aggregate.New(lister, batcher)

	srv := &server{aggregator: aggregator, pageSize: cfg.pageSize, redis: redisClient}
	router := newRouter(srv)

	addr := ":" + cfg.port
	log.Info().Str("addr", addr).Msg("Starting shelf aggregator")
	if err := http.ListenAndServe(addr, router); err != nil {
		log.Fatal().Err(err).Msg("Server failed")
	}
}

func loadConfig() (config, error) {
	cfg := config{
		ownershipURL: os.Getenv("OWNERSHIP_URL"),
		catalogURL:   os.Getenv("CATALOG_URL"),
		redisURL:     os.Getenv("REDIS_URL"),
		port:         getEnv("PORT", "8080"),
		userAgent:    getEnv("USER_AGENT", "shelf-aggregator/0.1.0"),
	}

	if cfg.ownershipURL == "" {
		return cfg, errors.New("OWNERSHIP_URL is required")
	}
	if cfg.catalogURL == "" {
		return cfg, errors.New("CATALOG_URL is required")
	}

	rps, err := strconv.ParseFloat(getEnv("CATALOG_RPS", "5"), 64)
	if err != nil {
		return cfg, errors.New("CATALOG_RPS must be a number")
	}
	cfg.catalogRPS = rps

	pageSize, err := strconv.Atoi(getEnv("PAGE_SIZE", "20"))
	if err != nil || pageSize <= 0 {
		return cfg, errors.New("PAGE_SIZE must be a positive integer")
	}
	cfg.pageSize = pageSize

	ttl, err := time.ParseDuration(getEnv("CACHE_TTL", "15m"))
	if err != nil {
		return cfg, errors.New("CACHE_TTL must be a duration")
	}
	cfg.cacheTTL = ttl

	return cfg, nil
}

type server struct {
	aggregator *aggregate.Aggregator
	pageSize   int
	redis      *redis.Client
}

func newRouter(srv *server) http.Handler {
	router := chi.NewRouter()
	router.Use(middleware.RequestID)
	router.Use(middleware.Recoverer)

	router.Get("/users/{userID}/books", srv.handleBooks)
	router.Get("/users/{userID}/stats", srv.handleStats)
	router.Get("/users/{userID}/stats/full", srv.handleStatsFull)
	router.Get("/healthz", srv.handleHealthz)
	router.Handle("/metrics", promhttp.Handler())

	return router
}

// basicStats is the compact statistics view.
type basicStats struct {
	Authors    map[string]int `json:"authors"`
	TotalPages int            `json:"totalPages"`
	TotalBooks int            `json:"totalBooks"`
	BookStatus map[string]int `json:"bookStatus"`
}

func (s *server) handleBooks(w http.ResponseWriter, r *http.Request) {
	userID := chi.URLParam(r, "userID")
	page := queryInt(r, "page", 0)
	size := queryInt(r, "size", s.pageSize)

	result, err := s.aggregator.CollectPage(r.Context(), userID, page, size)
	if err != nil {
		writeUpstreamError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

func (s *server) handleStats(w http.ResponseWriter, r *http.Request) {
	userID := chi.URLParam(r, "userID")

	result, err := s.aggregator.CollectAll(r.Context(), userID, s.pageSize)
	if err != nil {
		writeUpstreamError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, basicStats{
		Authors:    result.Stats.AuthorCounts,
		TotalPages: result.Stats.TotalPages,
		TotalBooks: result.Stats.TotalBooks,
		BookStatus: result.Stats.StatusCounts,
	})
}

func (s *server) handleStatsFull(w http.ResponseWriter, r *http.Request) {
	userID := chi.URLParam(r, "userID")

	result, err := s.aggregator.CollectAll(r.Context(), userID, s.pageSize)
	if err != nil {
		writeUpstreamError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, result.Stats)
}

func (s *server) handleHealthz(w http.ResponseWriter, r *http.Request) {
	if s.redis != nil {
		if err := s.redis.Ping(r.Context()).Err(); err != nil {
			writeJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "degraded", "redis": err.Error()})
			return
		}
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// writeUpstreamError maps pipeline failures onto HTTP statuses. List
// failures are the only fatal pipeline error and surface as bad gateway.
func writeUpstreamError(w http.ResponseWriter, err error) {
	var listErr *ownership.ListError
	if errors.As(err, &listErr) {
		log.Error().Err(err).Int("page", listErr.Page).Msg("Ownership list fetch failed")
		writeJSON(w, http.StatusBadGateway, map[string]string{"error": "reading list unavailable"})
		return
	}
	log.Error().Err(err).Msg("Aggregation failed")
	writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "aggregation failed"})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Error().Err(err).Msg("Failed to write response")
	}
}

func queryInt(r *http.Request, key string, fallback int) int {
	value := r.URL.Query().Get(key)
	if value == "" {
		return fallback
	}
	n, err := strconv.Atoi(value)
	if err != nil || n < 0 {
		return fallback
	}
	return n
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}
