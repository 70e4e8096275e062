package search

import (
	"context"
	"net/http"
	"regexp"
	"sort"
	"strings"
	"time"

	apperrors "github.com/gutensearch/gutensearch/pkg/errors"
)

// wordRun extracts the literal word tokens of a pattern.
var wordRun = regexp.MustCompile(`\w+`)

// PatternResult is the payload of a regex pattern query.
type PatternResult struct {
	Books      []BookResult `json:"books"`
	TotalBooks int          `json:"total_books"`
}

// Pattern answers a regex query in two phases: the index narrows the corpus
// to a candidate set (union of books containing any literal word of the
// pattern), then the compiled pattern decides membership against the raw text
// and summary of candidates only. With a single literal word the index is
// authoritative and no text verification runs.
func (e *Engine) Pattern(ctx context.Context, pattern string) (*PatternResult, error) {
	defer e.observe("pattern", time.Now())

	if strings.TrimSpace(pattern) == "" {
		return nil, apperrors.New(apperrors.ErrInvalidQuery, http.StatusBadRequest, "pattern must not be empty")
	}
	if _, err := regexp.Compile(pattern); err != nil {
		return nil, apperrors.Newf(apperrors.ErrInvalidQuery, http.StatusBadRequest, "invalid regular expression: %v", err)
	}

	words := wordRun.FindAllString(pattern, -1)
	if len(words) == 1 {
		return e.patternSingle(ctx, pattern, strings.ToLower(words[0]))
	}
	return e.patternVerify(ctx, pattern, words)
}

// patternSingle serves a one-literal pattern straight from the index.
func (e *Engine) patternSingle(ctx context.Context, pattern, word string) (*PatternResult, error) {
	entry := e.memory.Lookup(word)
	if entry == nil {
		return nil, e.patternNotFound(pattern)
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
	e.count("pattern", "hit")
	return &PatternResult{Books: books, TotalBooks: len(books)}, nil
}

// patternVerify pre-filters through the index then verifies candidates with
// the full pattern. The candidate set is a union, so it is always a superset
// of the true answer; the regex alone decides final membership.
func (e *Engine) patternVerify(ctx context.Context, pattern string, words []string) (*PatternResult, error) {
	candidates := make(map[int64]struct{})
	for _, word := range words {
		entry := e.memory.Lookup(strings.ToLower(word))
		if entry == nil {
			continue
		}
		for i := range entry.Postings {
			candidates[entry.Postings[i].BookID] = struct{}{}
		}
	}
	if len(candidates) == 0 {
		return nil, e.patternNotFound(pattern)
	}

	re, err := regexp.Compile("(?i)" + pattern)
	if err != nil {
		return nil, apperrors.Newf(apperrors.ErrInvalidQuery, http.StatusBadRequest, "invalid regular expression: %v", err)
	}

	ids := make([]int64, 0, len(candidates))
	for id := range candidates {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })

	var books []BookResult
	for _, id := range ids {
		book, err := e.resolveBook(ctx, pattern, id)
		if err != nil {
			return nil, err
		}
		text, err := e.corpus.GetBookText(ctx, id)
		if err != nil && !apperrors.IsNotFound(err) {
			return nil, err
		}
		if re.MatchString(text) || re.MatchString(book.Summary) {
			books = append(books, BookResult{Book: *book})
		}
	}
	if len(books) == 0 {
		return nil, e.patternNotFound(pattern)
	}
	e.count("pattern", "hit")
	return &PatternResult{Books: books, TotalBooks: len(books)}, nil
}

func (e *Engine) patternNotFound(pattern string) error {
	e.count("pattern", "miss")
	return apperrors.Newf(apperrors.ErrNotFound, http.StatusNotFound, "no books found for %q", pattern)
}
