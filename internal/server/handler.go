// Package server is the HTTP transport over the query engine and corpus
// store: route handlers, the Redis query cache, and the router with its
// middleware chain.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/gutensearch/gutensearch/internal/analytics"
	"github.com/gutensearch/gutensearch/internal/builder"
	"github.com/gutensearch/gutensearch/internal/corpus"
	"github.com/gutensearch/gutensearch/internal/search"
	apperrors "github.com/gutensearch/gutensearch/pkg/errors"
	"github.com/gutensearch/gutensearch/pkg/logger"
	"github.com/gutensearch/gutensearch/pkg/middleware"
)

// Handler serves the book and search API.
type Handler struct {
	engine    *search.Engine
	corpus    *corpus.Store
	builder   *builder.Builder
	cache     *QueryCache
	collector *analytics.Collector
	logger    *slog.Logger
}

// New creates a Handler. cache and collector may be nil, disabling caching
// and analytics respectively.
func New(engine *search.Engine, corpusStore *corpus.Store, b *builder.Builder, cache *QueryCache, collector *analytics.Collector) *Handler {
	return &Handler{
		engine:    engine,
		corpus:    corpusStore,
		builder:   b,
		cache:     cache,
		collector: collector,
		logger:    slog.Default().With("component", "api-handler"),
	}
}

// ListBooks returns one page of the corpus without text bodies.
func (h *Handler) ListBooks(w http.ResponseWriter, r *http.Request) {
	page, pageSize, err := pageParams(r, 50)
	if err != nil {
		h.writeAppError(w, err)
		return
	}
	books, err := h.corpus.ListBooks(r.Context(), pageSize, (page-1)*pageSize)
	if err != nil {
		h.writeAppError(w, err)
		return
	}
	total, err := h.corpus.CountBooks(r.Context())
	if err != nil {
		h.writeAppError(w, err)
		return
	}
	if books == nil {
		books = []corpus.Book{}
	}
	h.writeJSON(w, http.StatusOK, map[string]any{
		"books":       books,
		"total_books": total,
		"page":        page,
		"page_size":   pageSize,
	})
}

// GetBook returns one book without its text.
func (h *Handler) GetBook(w http.ResponseWriter, r *http.Request) {
	id, err := bookID(r)
	if err != nil {
		h.writeAppError(w, err)
		return
	}
	book, err := h.corpus.GetBook(r.Context(), id)
	if err != nil {
		h.writeAppError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, book)
}

// BookText returns the raw text of one book.
func (h *Handler) BookText(w http.ResponseWriter, r *http.Request) {
	id, err := bookID(r)
	if err != nil {
		h.writeAppError(w, err)
		return
	}
	text, err := h.corpus.GetBookText(r.Context(), id)
	if err != nil {
		h.writeAppError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, map[string]string{"text": text})
}

// BooksByLanguage lists books whose language tags include the given tag.
func (h *Handler) BooksByLanguage(w http.ResponseWriter, r *http.Request) {
	books, err := h.corpus.ListByLanguage(r.Context(), r.PathValue("language"))
	if err != nil {
		h.writeAppError(w, err)
		return
	}
	if books == nil {
		books = []corpus.Book{}
	}
	h.writeJSON(w, http.StatusOK, books)
}

// Languages lists the distinct language tags across the corpus.
func (h *Handler) Languages(w http.ResponseWriter, r *http.Request) {
	languages, err := h.corpus.Languages(r.Context())
	if err != nil {
		h.writeAppError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, map[string][]string{"languages": languages})
}

// Exact serves a single-word exact search.
func (h *Handler) Exact(w http.ResponseWriter, r *http.Request) {
	word := r.PathValue("word")
	h.serveCached(w, r, "exact", word, "exact:"+word, func() (any, error) {
		return h.engine.Exact(r.Context(), word)
	})
}

// FieldsSearch serves a field-scoped search with highlighting.
func (h *Handler) FieldsSearch(w http.ResponseWriter, r *http.Request) {
	word := r.PathValue("word")
	method := r.PathValue("method")
	page, pageSize, err := pageParams(r, 0)
	if err != nil {
		h.writeAppError(w, err)
		return
	}
	key := "fields:" + word + ":" + method + ":" + strconv.Itoa(page) + ":" + strconv.Itoa(pageSize)
	h.serveCached(w, r, "fields", word+"/"+method, key, func() (any, error) {
		return h.engine.Fields(r.Context(), word, method, page, pageSize)
	})
}

// Advanced serves a regex pattern search.
func (h *Handler) Advanced(w http.ResponseWriter, r *http.Request) {
	pattern := r.URL.Query().Get("pattern")
	if pattern == "" {
		h.writeError(w, http.StatusBadRequest, "query parameter 'pattern' is required")
		return
	}
	h.serveCached(w, r, "pattern", pattern, "pattern:"+pattern, func() (any, error) {
		return h.engine.Pattern(r.Context(), pattern)
	})
}

// Ranked serves an occurrence-ranked search.
func (h *Handler) Ranked(w http.ResponseWriter, r *http.Request) {
	word := r.URL.Query().Get("word")
	if word == "" {
		h.writeError(w, http.StatusBadRequest, "query parameter 'word' is required")
		return
	}
	h.serveCached(w, r, "ranked", word, "ranked:"+word, func() (any, error) {
		return h.engine.Ranked(r.Context(), word)
	})
}

// Closeness serves a proximity-scored search.
func (h *Handler) Closeness(w http.ResponseWriter, r *http.Request) {
	word := r.URL.Query().Get("word")
	if word == "" {
		h.writeError(w, http.StatusBadRequest, "query parameter 'word' is required")
		return
	}
	h.serveCached(w, r, "closeness", word, "closeness:"+word, func() (any, error) {
		return h.engine.Closeness(r.Context(), word)
	})
}

// Suggestions serves fuzzy word suggestions. A query with no candidate above
// the similarity floor answers 404 but still carries the empty suggestion
// list.
func (h *Handler) Suggestions(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	word := r.PathValue("word")
	result, err := h.engine.Suggest(word)
	if err != nil {
		h.track(r.Context(), "suggest", word, "error", 0, start)
		h.writeAppError(w, err)
		return
	}
	if !result.Found {
		h.track(r.Context(), "suggest", word, "miss", 0, start)
		h.writeJSON(w, http.StatusNotFound, map[string]any{
			"message":     "no suggestions found for \"" + result.Word + "\"",
			"suggestions": result.Suggestions,
		})
		return
	}
	h.track(r.Context(), "suggest", word, "hit", len(result.Suggestions), start)
	h.writeJSON(w, http.StatusOK, result)
}

// Highlight serves the paginated, marked-up text view of one book.
func (h *Handler) Highlight(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	id, err := bookID(r)
	if err != nil {
		h.writeAppError(w, err)
		return
	}
	word := r.URL.Query().Get("word")
	if word == "" {
		h.writeError(w, http.StatusBadRequest, "query parameter 'word' is required")
		return
	}
	result, err := h.engine.Highlight(r.Context(), id, word)
	if err != nil {
		h.track(r.Context(), "highlight", word, outcomeFor(err), 0, start)
		h.writeAppError(w, err)
		return
	}
	h.track(r.Context(), "highlight", word, "hit", result.TotalOccurrences, start)
	h.writeJSON(w, http.StatusOK, result)
}

// Reindex starts a full index rebuild in the background. A concurrent
// rebuild answers 409.
func (h *Handler) Reindex(w http.ResponseWriter, r *http.Request) {
	if h.builder.Running() {
		h.writeError(w, http.StatusConflict, apperrors.ErrBuildRunning.Error())
		return
	}
	requestID := middleware.GetRequestID(r.Context())
	go func() {
		ctx := context.Background()
		if err := h.builder.Rebuild(ctx); err != nil {
			if !errors.Is(err, apperrors.ErrBuildRunning) {
				h.logger.Error("index rebuild failed", "request_id", requestID, "error", err)
			}
			return
		}
		if h.cache != nil {
			if err := h.cache.Invalidate(ctx); err != nil {
				h.logger.Error("cache invalidation after rebuild failed", "error", err)
			}
		}
	}()
	h.writeJSON(w, http.StatusAccepted, map[string]string{"status": "rebuild started"})
}

// CacheStats reports query cache hit/miss counters.
func (h *Handler) CacheStats(w http.ResponseWriter, r *http.Request) {
	if h.cache == nil {
		h.writeJSON(w, http.StatusOK, map[string]string{"status": "disabled"})
		return
	}
	hits, misses := h.cache.Stats()
	h.writeJSON(w, http.StatusOK, map[string]any{
		"hits":   hits,
		"misses": misses,
		"total":  hits + misses,
	})
}

// serveCached runs compute through the query cache when one is configured,
// writes the JSON payload, and records the query event.
func (h *Handler) serveCached(w http.ResponseWriter, r *http.Request, kind, query, key string, compute func() (any, error)) {
	start := time.Now()
	log := logger.FromContext(r.Context())

	if h.cache == nil {
		result, err := compute()
		if err != nil {
			h.track(r.Context(), kind, query, outcomeFor(err), 0, start)
			h.writeAppError(w, err)
			return
		}
		h.track(r.Context(), kind, query, "hit", 0, start)
		h.writeJSON(w, http.StatusOK, result)
		return
	}

	data, cacheHit, err := h.cache.GetOrCompute(r.Context(), key, compute)
	if err != nil {
		h.track(r.Context(), kind, query, outcomeFor(err), 0, start)
		h.writeAppError(w, err)
		return
	}
	log.Info("query served",
		"kind", kind,
		"query", query,
		"cache_hit", cacheHit,
		"latency_ms", time.Since(start).Milliseconds(),
	)
	h.track(r.Context(), kind, query, "hit", 0, start)
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	if _, err := w.Write(data); err != nil {
		h.logger.Error("failed to write response", "error", err)
	}
}

func (h *Handler) track(ctx context.Context, kind, query, outcome string, results int, start time.Time) {
	if h.collector == nil {
		return
	}
	h.collector.Track(analytics.QueryEvent{
		Kind:       kind,
		Query:      query,
		Outcome:    outcome,
		Results:    results,
		DurationMS: time.Since(start).Milliseconds(),
		RequestID:  middleware.GetRequestID(ctx),
		Timestamp:  time.Now().UTC(),
	})
}

func outcomeFor(err error) string {
	if apperrors.IsNotFound(err) {
		return "miss"
	}
	return "error"
}

// writeAppError maps an error to its HTTP status and the uniform envelope:
// not-found answers use {"message": ...}, everything else {"error": ...}.
// Internal errors never expose details to the caller.
func (h *Handler) writeAppError(w http.ResponseWriter, err error) {
	status := apperrors.HTTPStatusCode(err)
	message := err.Error()
	var appErr *apperrors.AppError
	if errors.As(err, &appErr) {
		message = appErr.Message
	}
	if status >= http.StatusInternalServerError {
		h.logger.Error("request failed", "error", err)
		message = "internal server error"
	}
	if status == http.StatusNotFound {
		h.writeJSON(w, status, map[string]string{"message": message})
		return
	}
	h.writeError(w, status, message)
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

// bookID parses the {id} path value.
func bookID(r *http.Request) (int64, error) {
	id, err := strconv.ParseInt(r.PathValue("id"), 10, 64)
	if err != nil || id < 1 {
		return 0, apperrors.New(apperrors.ErrInvalidQuery, http.StatusBadRequest, "book id must be a positive integer")
	}
	return id, nil
}

// pageParams parses page and page_size query parameters. Zero defaults are
// resolved by the callee when defaultSize is 0.
func pageParams(r *http.Request, defaultSize int) (int, int, error) {
	page, err := positiveParam(r, "page", 1)
	if err != nil {
		return 0, 0, err
	}
	pageSize, err := positiveParam(r, "page_size", defaultSize)
	if err != nil {
		return 0, 0, err
	}
	return page, pageSize, nil
}

func positiveParam(r *http.Request, name string, fallback int) (int, error) {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return fallback, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n < 1 {
		return 0, apperrors.Newf(apperrors.ErrInvalidQuery, http.StatusBadRequest, "%s must be a positive integer", name)
	}
	return n, nil
}
