// Package handler exposes the index over HTTP: search, operator queries,
// document lookup, index statistics and cache administration.
package handler

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/Adithya-Monish-Kumar-K/textindex/internal/indexer"
	"github.com/Adithya-Monish-Kumar-K/textindex/internal/searcher/cache"
	"github.com/Adithya-Monish-Kumar-K/textindex/internal/searcher/executor"
	"github.com/Adithya-Monish-Kumar-K/textindex/internal/searcher/parser"
	apperrors "github.com/Adithya-Monish-Kumar-K/textindex/pkg/errors"
	"github.com/Adithya-Monish-Kumar-K/textindex/pkg/logger"
)

type Handler struct {
	engine       *indexer.Engine
	executor     *executor.Executor
	cache        *cache.QueryCache
	defaultLimit int
	maxResults   int
	logger       *slog.Logger
}

// New wires a handler. queryCache may be nil.
func New(engine *indexer.Engine, exec *executor.Executor, queryCache *cache.QueryCache, defaultLimit, maxResults int) *Handler {
	return &Handler{
		engine:       engine,
		executor:     exec,
		cache:        queryCache,
		defaultLimit: defaultLimit,
		maxResults:   maxResults,
		logger:       slog.Default().With("component", "search-handler"),
	}
}

// Register mounts the routes on mux.
func (h *Handler) Register(mux *http.ServeMux) {
	mux.HandleFunc("GET /search", h.Search)
	mux.HandleFunc("GET /documents/{ref}", h.Document)
	mux.HandleFunc("GET /stats", h.Stats)
	mux.HandleFunc("GET /cache/stats", h.CacheStats)
	mux.HandleFunc("POST /cache/invalidate", h.CacheInvalidate)
}

// Search answers GET /search?q=...&limit=...&mode=plain|query. Plain mode
// (the default) ranks every analyzed term; query mode understands AND, OR,
// NOT and +/- modifiers.
func (h *Handler) Search(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	ctx := r.Context()
	log := logger.FromContext(ctx)

	query := r.URL.Query().Get("q")
	if query == "" {
		h.writeError(w, http.StatusBadRequest, "query parameter 'q' is required")
		return
	}

	limit := h.defaultLimit
	if limitStr := r.URL.Query().Get("limit"); limitStr != "" {
		parsed, err := strconv.Atoi(limitStr)
		if err != nil || parsed < 1 {
			h.writeError(w, http.StatusBadRequest, "limit must be a positive integer")
			return
		}
		limit = parsed
	}
	if h.maxResults > 0 && limit > h.maxResults {
		limit = h.maxResults
	}

	var plan *parser.QueryPlan
	switch mode := r.URL.Query().Get("mode"); mode {
	case "", "plain":
		plan = h.executor.Plain(query)
	case "query":
		plan = h.executor.Parse(query)
	default:
		h.writeError(w, http.StatusBadRequest, fmt.Sprintf("unknown mode %q", mode))
		return
	}

	var result *executor.SearchResult
	var err error
	cacheHit := false

	if h.cache != nil && !plan.Empty() {
		result, cacheHit, err = h.cache.GetOrCompute(ctx, plan, limit, h.executor.Generation(), func() (*executor.SearchResult, error) {
			return h.executor.Execute(ctx, plan, limit)
		})
	} else {
		result, err = h.executor.Execute(ctx, plan, limit)
	}

	if err != nil {
		log.Error("search execution failed", "query", query, "error", err)
		h.writeError(w, http.StatusInternalServerError, "search failed")
		return
	}

	log.Info("search completed",
		"query", query,
		"total_hits", result.TotalHits,
		"returned", len(result.Results),
		"cache_hit", cacheHit,
		"latency_ms", time.Since(start).Milliseconds(),
	)
	h.writeJSON(w, http.StatusOK, result)
}

func (h *Handler) Document(w http.ResponseWriter, r *http.Request) {
	ref := r.PathValue("ref")
	doc, err := h.engine.Document(ref)
	if errors.Is(err, apperrors.ErrDocumentNotFound) {
		h.writeError(w, http.StatusNotFound, err.Error())
		return
	}
	if err != nil {
		h.writeError(w, http.StatusInternalServerError, "document lookup failed")
		return
	}
	h.writeJSON(w, http.StatusOK, doc)
}

func (h *Handler) Stats(w http.ResponseWriter, r *http.Request) {
	h.writeJSON(w, http.StatusOK, h.engine.Stats())
}

func (h *Handler) CacheStats(w http.ResponseWriter, r *http.Request) {
	if h.cache == nil {
		h.writeJSON(w, http.StatusOK, map[string]string{"status": "disabled"})
		return
	}

	hits, misses := h.cache.Stats()
	total := hits + misses
	var hitRate float64
	if total > 0 {
		hitRate = float64(hits) / float64(total) * 100
	}

	h.writeJSON(w, http.StatusOK, map[string]any{
		"hits":     hits,
		"misses":   misses,
		"total":    total,
		"hit_rate": fmt.Sprintf("%.1f%%", hitRate),
	})
}

func (h *Handler) CacheInvalidate(w http.ResponseWriter, r *http.Request) {
	if h.cache == nil {
		h.writeError(w, http.StatusServiceUnavailable, "caching is disabled")
		return
	}

	if err := h.cache.Invalidate(r.Context()); err != nil {
		h.logger.Error("cache invalidation failed", "error", err)
		h.writeError(w, http.StatusInternalServerError, "cache invalidation failed")
		return
	}

	h.writeJSON(w, http.StatusOK, map[string]string{"status": "invalidated"})
}

func (h *Handler) writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		h.logger.Error("failed to write response", "error", err)
	}
}

func (h *Handler) writeError(w http.ResponseWriter, status int, message string) {
	h.writeJSON(w, status, map[string]string{"error": message})
}
