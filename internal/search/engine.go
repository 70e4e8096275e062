// Package search is the query engine: exact and field-scoped lookups, regex
// pattern queries with index pre-filtering, occurrence ranking, proximity
// scoring, and edit-distance suggestions. All queries are read-only against
// the serving index snapshot and may run concurrently without coordination.
package search

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"sort"
	"strings"
	"time"

	"github.com/gutensearch/gutensearch/internal/corpus"
	"github.com/gutensearch/gutensearch/internal/highlight"
	"github.com/gutensearch/gutensearch/internal/index"
	"github.com/gutensearch/gutensearch/pkg/config"
	apperrors "github.com/gutensearch/gutensearch/pkg/errors"
	"github.com/gutensearch/gutensearch/pkg/metrics"
)

// BookSource resolves postings to books. *corpus.Store implements it; tests
// substitute an in-memory fake.
type BookSource interface {
	GetBook(ctx context.Context, id int64) (*corpus.Book, error)
	GetBookText(ctx context.Context, id int64) (string, error)
}

// Engine executes queries against the serving index snapshot, resolving
// matched postings to books through the corpus store.
type Engine struct {
	memory  *index.Memory
	corpus  BookSource
	cfg     config.SearchConfig
	metrics *metrics.Metrics
	logger  *slog.Logger
}

// NewEngine creates an Engine. metrics may be nil.
func NewEngine(memory *index.Memory, books BookSource, cfg config.SearchConfig, m *metrics.Metrics) *Engine {
	return &Engine{
		memory:  memory,
		corpus:  books,
		cfg:     cfg,
		metrics: m,
		logger:  slog.Default().With("component", "search-engine"),
	}
}

// BookResult is one matched book row with its occurrence count.
type BookResult struct {
	corpus.Book
	Occurrences int `json:"occurrences"`
}

// ExactResult is the payload of a single-word exact query.
type ExactResult struct {
	Word       string       `json:"word"`
	Books      []BookResult `json:"books"`
	TotalBooks int          `json:"total_books"`
}

// Exact resolves a single-word query through the index. The result is capped
// at the configured maximum number of books.
func (e *Engine) Exact(ctx context.Context, word string) (*ExactResult, error) {
	defer e.observe("exact", time.Now())

	word, err := queryWord(word)
	if err != nil {
		return nil, err
	}
	entry := e.memory.Lookup(word)
	if entry == nil {
		return nil, e.notFound("exact", word)
	}

	maxBooks := e.cfg.MaxBooks
	if maxBooks <= 0 {
		maxBooks = 50
	}
	books := make([]BookResult, 0, min(len(entry.Postings), maxBooks))
	for i := range entry.Postings {
		if len(books) >= maxBooks {
			break
		}
		posting := &entry.Postings[i]
		book, err := e.resolveBook(ctx, word, posting.BookID)
		if err != nil {
			return nil, err
		}
		books = append(books, BookResult{Book: *book, Occurrences: posting.Occurrences})
	}
	e.count("exact", "hit")
	return &ExactResult{Word: word, Books: books, TotalBooks: len(books)}, nil
}

// FieldsBookResult is one matched book in a field-scoped search. The embedded
// book carries highlighted copies of the matched field values.
type FieldsBookResult struct {
	corpus.Book
	Occurrences     int  `json:"occurrences"`
	WordFoundInText bool `json:"word_found_in_text"`
}

// FieldsResult is the payload of a field-scoped search.
type FieldsResult struct {
	Word             string             `json:"word"`
	SearchMethods    []string           `json:"search_methods"`
	TotalBooks       int                `json:"total_books"`
	TotalOccurrences int                `json:"total_occurrences"`
	Page             int                `json:"page"`
	PageSize         int                `json:"page_size"`
	Books            []FieldsBookResult `json:"books"`
}

// fieldMethods maps a search-method token to the index fields it covers.
var fieldMethods = map[string][]index.Field{
	"title":   {index.FieldTitle},
	"author":  {index.FieldAuthor},
	"summary": {index.FieldSummary},
	"text":    {index.FieldText},
	"all":     {index.FieldTitle, index.FieldAuthor, index.FieldSummary, index.FieldText},
}

// Fields runs a field-scoped search: a book matches when the word occurs in
// at least one requested field, matched field values are returned highlighted,
// and occurrence totals count only the requested fields. methods is a
// `+`-joined combination of title, author, summary, text, and all.
func (e *Engine) Fields(ctx context.Context, word, methods string, page, pageSize int) (*FieldsResult, error) {
	defer e.observe("fields", time.Now())

	word, err := queryWord(word)
	if err != nil {
		return nil, err
	}
	searchMethods, fields, err := parseMethods(methods)
	if err != nil {
		return nil, err
	}
	page, pageSize, err = e.pagination(page, pageSize)
	if err != nil {
		return nil, err
	}

	entry := e.memory.Lookup(word)
	if entry == nil {
		return nil, e.notFound("fields", word)
	}

	wantText := false
	for _, f := range fields {
		if f == index.FieldText {
			wantText = true
		}
	}

	var (
		books            []FieldsBookResult
		totalOccurrences int
	)
	for i := range entry.Postings {
		posting := &entry.Postings[i]
		occurrences := 0
		for _, f := range fields {
			occurrences += len(posting.Positions.Get(f))
		}
		if occurrences == 0 {
			continue
		}

		book, err := e.resolveBook(ctx, word, posting.BookID)
		if err != nil {
			return nil, err
		}
		row := FieldsBookResult{Book: *book, Occurrences: occurrences}
		if wantText && len(posting.Positions.Text) > 0 {
			text, err := e.corpus.GetBookText(ctx, posting.BookID)
			if err != nil && !apperrors.IsNotFound(err) {
				return nil, err
			}
			row.Book.Text = text
			row.WordFoundInText = strings.Contains(strings.ToLower(text), word)
		}
		for _, f := range fields {
			if len(posting.Positions.Get(f)) > 0 {
				highlightField(&row.Book, f, word)
			}
		}
		totalOccurrences += occurrences
		books = append(books, row)
	}
	if len(books) == 0 {
		return nil, apperrors.Newf(apperrors.ErrNotFound, http.StatusNotFound,
			"no books found in fields %q for %q", methods, word)
	}

	totalBooks := len(books)
	e.count("fields", "hit")
	return &FieldsResult{
		Word:             word,
		SearchMethods:    searchMethods,
		TotalBooks:       totalBooks,
		TotalOccurrences: totalOccurrences,
		Page:             page,
		PageSize:         pageSize,
		Books:            paginate(books, page, pageSize),
	}, nil
}

// RankedResult is the payload of a ranked search.
type RankedResult struct {
	Word  string       `json:"word"`
	Books []BookResult `json:"books"`
}

// Ranked resolves the word and orders matched books by occurrence count
// descending, ties broken by ascending book id for reproducible output.
func (e *Engine) Ranked(ctx context.Context, word string) (*RankedResult, error) {
	defer e.observe("ranked", time.Now())

	word, err := queryWord(word)
	if err != nil {
		return nil, err
	}
	entry := e.memory.Lookup(word)
	if entry == nil {
		return nil, e.notFound("ranked", word)
	}

	books := make([]BookResult, 0, len(entry.Postings))
	for i := range entry.Postings {
		posting := &entry.Postings[i]
		book, err := e.resolveBook(ctx, word, posting.BookID)
		if err != nil {
			return nil, err
		}
		books = append(books, BookResult{Book: *book, Occurrences: posting.Occurrences})
	}
	sort.Slice(books, func(i, j int) bool {
		if books[i].Occurrences != books[j].Occurrences {
			return books[i].Occurrences > books[j].Occurrences
		}
		return books[i].ID < books[j].ID
	})
	e.count("ranked", "hit")
	return &RankedResult{Word: word, Books: books}, nil
}

// ClosenessBookResult is one proximity-scored book row.
type ClosenessBookResult struct {
	corpus.Book
	ClosenessScore float64 `json:"closeness_score"`
}

// ClosenessResult is the payload of a proximity search.
type ClosenessResult struct {
	Books      []ClosenessBookResult `json:"books"`
	TotalBooks int                   `json:"total_books"`
}

// Closeness scores books by how tightly the word clusters in their text:
// score is the inverse of the mean gap between consecutive text-field
// positions. Books with fewer than two text positions are excluded rather
// than scored as infinitely close.
func (e *Engine) Closeness(ctx context.Context, word string) (*ClosenessResult, error) {
	defer e.observe("closeness", time.Now())

	word, err := queryWord(word)
	if err != nil {
		return nil, err
	}
	entry := e.memory.Lookup(word)
	if entry == nil {
		return nil, e.notFound("closeness", word)
	}

	var books []ClosenessBookResult
	for i := range entry.Postings {
		posting := &entry.Postings[i]
		score, ok := closenessScore(posting.Positions.Text)
		if !ok {
			continue
		}
		book, err := e.resolveBook(ctx, word, posting.BookID)
		if err != nil {
			return nil, err
		}
		books = append(books, ClosenessBookResult{Book: *book, ClosenessScore: score})
	}
	if len(books) == 0 {
		return nil, e.notFound("closeness", word)
	}
	sort.Slice(books, func(i, j int) bool {
		if books[i].ClosenessScore != books[j].ClosenessScore {
			return books[i].ClosenessScore > books[j].ClosenessScore
		}
		return books[i].ID < books[j].ID
	})
	e.count("closeness", "hit")
	return &ClosenessResult{Books: books, TotalBooks: len(books)}, nil
}

// closenessScore computes 1 / mean consecutive gap over the sorted position
// list. ok is false for lists with fewer than two positions.
func closenessScore(positions []int) (float64, bool) {
	if len(positions) < 2 {
		return 0, false
	}
	total := 0
	for i := 1; i < len(positions); i++ {
		total += positions[i] - positions[i-1]
	}
	avg := float64(total) / float64(len(positions)-1)
	if avg <= 0 {
		return 0, false
	}
	return 1 / avg, true
}

// resolveBook loads the book referenced by a posting. A dangling reference is
// an internal inconsistency between index and corpus, not a caller error.
func (e *Engine) resolveBook(ctx context.Context, word string, bookID int64) (*corpus.Book, error) {
	book, err := e.corpus.GetBook(ctx, bookID)
	if apperrors.IsNotFound(err) {
		e.logger.Error("index posting references missing book", "word", word, "book_id", bookID)
		return nil, fmt.Errorf("%w: resolving book %d", apperrors.ErrInternal, bookID)
	}
	if err != nil {
		return nil, err
	}
	return book, nil
}

// highlightField replaces one book field value with its highlighted form.
func highlightField(book *corpus.Book, f index.Field, word string) {
	var target *string
	switch f {
	case index.FieldTitle:
		target = &book.Title
	case index.FieldAuthor:
		target = &book.Author.Name
	case index.FieldSummary:
		target = &book.Summary
	case index.FieldText:
		target = &book.Text
	default:
		return
	}
	positions := highlight.Positions(*target, word)
	if len(positions) > 0 {
		*target = highlight.Mark(*target, positions, len(word))
	}
}

// parseMethods validates a `+`-joined search-method string and returns the
// method tokens plus the deduplicated fields they cover, in canonical order.
func parseMethods(methods string) ([]string, []index.Field, error) {
	tokens := strings.Split(methods, "+")
	covered := make(map[index.Field]bool)
	for _, token := range tokens {
		fields, ok := fieldMethods[token]
		if !ok {
			return nil, nil, apperrors.Newf(apperrors.ErrInvalidQuery, http.StatusBadRequest,
				"invalid search method %q: use title, author, summary, text, all, or +-joined combinations", token)
		}
		for _, f := range fields {
			covered[f] = true
		}
	}
	fields := make([]index.Field, 0, len(covered))
	for _, f := range index.Fields {
		if covered[f] {
			fields = append(fields, f)
		}
	}
	return tokens, fields, nil
}

// pagination validates page parameters, filling defaults for zero values.
func (e *Engine) pagination(page, pageSize int) (int, int, error) {
	if page == 0 {
		page = 1
	}
	if pageSize == 0 {
		pageSize = e.cfg.DefaultPageSize
		if pageSize <= 0 {
			pageSize = 10
		}
	}
	if page < 1 || pageSize < 1 {
		return 0, 0, apperrors.Newf(apperrors.ErrInvalidQuery, http.StatusBadRequest,
			"page and page_size must be positive")
	}
	return page, pageSize, nil
}

// paginate returns the page-th slice of size pageSize, 1-based.
func paginate[T any](items []T, page, pageSize int) []T {
	start := (page - 1) * pageSize
	if start >= len(items) {
		return []T{}
	}
	return items[start:min(start+pageSize, len(items))]
}

// queryWord normalizes the query word the same way the tokenizer normalizes
// indexed words. An empty word is a request error.
func queryWord(word string) (string, error) {
	word = strings.ToLower(strings.TrimSpace(word))
	if word == "" {
		return "", apperrors.New(apperrors.ErrInvalidQuery, http.StatusBadRequest, "query word must not be empty")
	}
	return word, nil
}

func (e *Engine) notFound(kind, word string) error {
	e.count(kind, "miss")
	return apperrors.Newf(apperrors.ErrNotFound, http.StatusNotFound, "no books found for %q", word)
}

func (e *Engine) observe(kind string, start time.Time) {
	if e.metrics != nil {
		e.metrics.SearchLatency.WithLabelValues(kind).Observe(time.Since(start).Seconds())
	}
}

func (e *Engine) count(kind, outcome string) {
	if e.metrics != nil {
		e.metrics.SearchQueriesTotal.WithLabelValues(kind, outcome).Inc()
	}
}
