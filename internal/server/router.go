package server

import (
	"net/http"
	"time"

	"github.com/gutensearch/gutensearch/pkg/health"
	"github.com/gutensearch/gutensearch/pkg/metrics"
	"github.com/gutensearch/gutensearch/pkg/middleware"
)

// Router builds the API mux with its middleware chain. The metrics pointer
// may be nil to skip request instrumentation.
func Router(h *Handler, checker *health.Checker, m *metrics.Metrics, timeout time.Duration) http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /api/v1/books", h.ListBooks)
	mux.HandleFunc("GET /api/v1/books/{id}", h.GetBook)
	mux.HandleFunc("GET /api/v1/books/{id}/text", h.BookText)
	mux.HandleFunc("GET /api/v1/books/{id}/highlight", h.Highlight)
	mux.HandleFunc("GET /api/v1/books/by-language/{language}", h.BooksByLanguage)
	mux.HandleFunc("GET /api/v1/languages", h.Languages)

	mux.HandleFunc("GET /api/v1/search/advanced", h.Advanced)
	mux.HandleFunc("GET /api/v1/search/ranked", h.Ranked)
	mux.HandleFunc("GET /api/v1/search/closeness", h.Closeness)
	mux.HandleFunc("GET /api/v1/search/suggestions/{word}", h.Suggestions)
	mux.HandleFunc("GET /api/v1/search/{word}", h.Exact)
	mux.HandleFunc("GET /api/v1/search/{word}/{method}", h.FieldsSearch)

	mux.HandleFunc("POST /api/v1/admin/reindex", h.Reindex)
	mux.HandleFunc("GET /api/v1/cache/stats", h.CacheStats)

	mux.HandleFunc("GET /health/live", checker.LiveHandler())
	mux.HandleFunc("GET /health/ready", checker.ReadyHandler())

	var chain http.Handler = mux
	chain = middleware.Timeout(timeout)(chain)
	if m != nil {
		chain = middleware.Metrics(m)(chain)
	}
	chain = middleware.RequestID(chain)
	return chain
}
