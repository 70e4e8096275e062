package server

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gutensearch/gutensearch/internal/corpus"
	"github.com/gutensearch/gutensearch/internal/index"
	"github.com/gutensearch/gutensearch/internal/search"
	"github.com/gutensearch/gutensearch/pkg/config"
	apperrors "github.com/gutensearch/gutensearch/pkg/errors"
	"github.com/gutensearch/gutensearch/pkg/health"
)

// fakeBooks backs the engine without a database. Text lives beside the book
// but is only handed out through GetBookText, matching the store contract.
type fakeBooks struct {
	books map[int64]corpus.Book
}

func (f *fakeBooks) GetBook(_ context.Context, id int64) (*corpus.Book, error) {
	book, ok := f.books[id]
	if !ok {
		return nil, apperrors.Newf(apperrors.ErrBookMissing, http.StatusNotFound, "book %d not found", id)
	}
	book.Text = ""
	return &book, nil
}

func (f *fakeBooks) GetBookText(_ context.Context, id int64) (string, error) {
	book, ok := f.books[id]
	if !ok || book.Text == "" {
		return "", apperrors.Newf(apperrors.ErrTextMissing, http.StatusNotFound, "no text stored for book %d", id)
	}
	return book.Text, nil
}

func testRouter(t *testing.T) http.Handler {
	t.Helper()
	source := &fakeBooks{books: map[int64]corpus.Book{
		1: {
			ID:        1,
			Title:     "Moby Dick",
			Author:    corpus.Author{ID: 1, Name: "Herman Melville"},
			Languages: "en",
			Summary:   "A whale hunt.",
			Text:      "The whale surfaced. The whale dove.",
		},
	}}
	memory := index.NewMemory()
	memory.Swap(map[string]*index.WordEntry{
		"whale": {
			Word: "whale",
			Postings: []index.Posting{
				{
					BookID:      1,
					Positions:   index.FieldPositions{Summary: []int{0}, Text: []int{0, 2}},
					Occurrences: 3,
				},
			},
			Occurrences: 3,
		},
	})
	cfg := config.SearchConfig{
		MaxBooks:        50,
		DefaultPageSize: 10,
		SuggestionLimit: 4,
		SimilarityFloor: 0.87,
		HighlightPage:   1000,
	}
	engine := search.NewEngine(memory, source, cfg, nil)
	// No corpus store, builder, cache, or collector: these tests cover the
	// query routes and the error envelopes, which need none of them.
	h := New(engine, nil, nil, nil, nil)
	return Router(h, health.NewChecker(), nil, 5*time.Second)
}

func get(t *testing.T, router http.Handler, path string) *httptest.ResponseRecorder {
	t.Helper()
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, path, nil))
	return rec
}

func decode(t *testing.T, rec *httptest.ResponseRecorder, into any) {
	t.Helper()
	if ct := rec.Header().Get("Content-Type"); ct != "application/json" {
		t.Errorf("Content-Type = %q, want application/json", ct)
	}
	if err := json.Unmarshal(rec.Body.Bytes(), into); err != nil {
		t.Fatalf("response is not valid JSON: %v\n%s", err, rec.Body.String())
	}
}

func TestExactSearchRoute(t *testing.T) {
	router := testRouter(t)
	rec := get(t, router, "/api/v1/search/whale")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200: %s", rec.Code, rec.Body.String())
	}
	var result search.ExactResult
	decode(t, rec, &result)
	if result.Word != "whale" || result.TotalBooks != 1 {
		t.Errorf("got word=%q total=%d, want whale/1", result.Word, result.TotalBooks)
	}
	if len(result.Books) != 1 || result.Books[0].Occurrences != 3 {
		t.Errorf("books = %+v, want book 1 with 3 occurrences", result.Books)
	}
	if result.Books[0].Text != "" {
		t.Error("exact search leaked the full text body")
	}
}

func TestExactSearchMissEnvelope(t *testing.T) {
	router := testRouter(t)
	rec := get(t, router, "/api/v1/search/kraken")
	if rec.Code != http.StatusNotFound {
		t.Fatalf("status = %d, want 404", rec.Code)
	}
	var body map[string]string
	decode(t, rec, &body)
	if body["message"] == "" {
		t.Errorf(`404 body missing "message": %s`, rec.Body.String())
	}
	if _, hasError := body["error"]; hasError {
		t.Error(`404 body carries "error", want "message" envelope`)
	}
}

func TestFieldsSearchRoute(t *testing.T) {
	router := testRouter(t)
	rec := get(t, router, "/api/v1/search/whale/summary")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200: %s", rec.Code, rec.Body.String())
	}
	var result search.FieldsResult
	decode(t, rec, &result)
	if result.TotalBooks != 1 || len(result.Books) != 1 {
		t.Errorf("got %d books, want 1", result.TotalBooks)
	}
}

func TestFieldsSearchBadMethod(t *testing.T) {
	router := testRouter(t)
	rec := get(t, router, "/api/v1/search/whale/footnotes")
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", rec.Code)
	}
	var body map[string]string
	decode(t, rec, &body)
	if body["error"] == "" {
		t.Errorf(`400 body missing "error": %s`, rec.Body.String())
	}
}

func TestAdvancedRouteRequiresPattern(t *testing.T) {
	router := testRouter(t)
	rec := get(t, router, "/api/v1/search/advanced")
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", rec.Code)
	}
}

func TestAdvancedRouteInvalidPattern(t *testing.T) {
	router := testRouter(t)
	rec := get(t, router, "/api/v1/search/advanced?pattern=whale%5B")
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400 for malformed regex", rec.Code)
	}
}

func TestAdvancedRoute(t *testing.T) {
	router := testRouter(t)
	rec := get(t, router, "/api/v1/search/advanced?pattern=whale")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200: %s", rec.Code, rec.Body.String())
	}
	var result search.PatternResult
	decode(t, rec, &result)
	if result.TotalBooks != 1 {
		t.Errorf("total_books = %d, want 1", result.TotalBooks)
	}
}

func TestRankedRoute(t *testing.T) {
	router := testRouter(t)
	rec := get(t, router, "/api/v1/search/ranked?word=whale")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200: %s", rec.Code, rec.Body.String())
	}

	rec = get(t, router, "/api/v1/search/ranked")
	if rec.Code != http.StatusBadRequest {
		t.Errorf("missing word: status = %d, want 400", rec.Code)
	}
}

func TestClosenessRoute(t *testing.T) {
	router := testRouter(t)
	rec := get(t, router, "/api/v1/search/closeness?word=whale")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200: %s", rec.Code, rec.Body.String())
	}
	var result search.ClosenessResult
	decode(t, rec, &result)
	if result.TotalBooks != 1 {
		t.Errorf("total_books = %d, want 1", result.TotalBooks)
	}
}

func TestSuggestionsRouteMiss(t *testing.T) {
	router := testRouter(t)
	rec := get(t, router, "/api/v1/search/suggestions/zzzzqqqq")
	if rec.Code != http.StatusNotFound {
		t.Fatalf("status = %d, want 404", rec.Code)
	}
	var body struct {
		Message     string              `json:"message"`
		Suggestions []search.Suggestion `json:"suggestions"`
	}
	decode(t, rec, &body)
	if body.Message == "" {
		t.Error("404 body missing message")
	}
	if body.Suggestions == nil {
		t.Error("404 body must still carry the (empty) suggestions list")
	}
}

func TestHighlightRoute(t *testing.T) {
	router := testRouter(t)
	rec := get(t, router, "/api/v1/books/1/highlight?word=whale")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200: %s", rec.Code, rec.Body.String())
	}
	var result search.HighlightResult
	decode(t, rec, &result)
	if result.TotalOccurrences != 2 {
		t.Errorf("total_occurrences = %d, want 2 text hits", result.TotalOccurrences)
	}
}

func TestHighlightRouteRequiresWord(t *testing.T) {
	router := testRouter(t)
	rec := get(t, router, "/api/v1/books/1/highlight")
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", rec.Code)
	}
}

func TestBadBookID(t *testing.T) {
	router := testRouter(t)
	for _, path := range []string{
		"/api/v1/books/abc/highlight?word=whale",
		"/api/v1/books/0/highlight?word=whale",
	} {
		rec := get(t, router, path)
		if rec.Code != http.StatusBadRequest {
			t.Errorf("%s: status = %d, want 400", path, rec.Code)
		}
	}
}

func TestCacheStatsDisabled(t *testing.T) {
	router := testRouter(t)
	rec := get(t, router, "/api/v1/cache/stats")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	var body map[string]string
	decode(t, rec, &body)
	if body["status"] != "disabled" {
		t.Errorf("status = %q, want disabled without a cache", body["status"])
	}
}

func TestRequestIDHeader(t *testing.T) {
	router := testRouter(t)
	rec := get(t, router, "/api/v1/search/whale")
	if rec.Header().Get("X-Request-ID") == "" {
		t.Error("response missing X-Request-ID header")
	}
}

func TestHealthLive(t *testing.T) {
	router := testRouter(t)
	rec := get(t, router, "/health/live")
	if rec.Code != http.StatusOK {
		t.Errorf("status = %d, want 200", rec.Code)
	}
}
