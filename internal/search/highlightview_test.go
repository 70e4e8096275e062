package search

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/gutensearch/gutensearch/internal/corpus"
	"github.com/gutensearch/gutensearch/internal/index"
	apperrors "github.com/gutensearch/gutensearch/pkg/errors"
)

func highlightFixture(t *testing.T) *Engine {
	t.Helper()
	book := corpus.Book{
		ID:        1,
		Title:     "Moby Dick",
		Languages: "en",
		Text:      "The whale surfaced. A second whale followed. No narwhale though.",
	}
	entries := map[string]*index.WordEntry{
		"whale": {
			Word: "whale",
			Postings: []index.Posting{
				{BookID: 1, Positions: index.FieldPositions{Text: []int{0, 2}}, Occurrences: 2},
			},
			Occurrences: 2,
		},
	}
	return newTestEngine(t, entries, book)
}

func TestHighlightView(t *testing.T) {
	e := highlightFixture(t)
	result, err := e.Highlight(context.Background(), 1, "whale")
	if err != nil {
		t.Fatal(err)
	}
	if result.BookID != 1 {
		t.Errorf("book_id = %d, want 1", result.BookID)
	}
	if result.TotalOccurrences != 2 {
		t.Errorf("total_occurrences = %d, want 2 (narwhale is not a whole-word match)", result.TotalOccurrences)
	}
	if len(result.Pages) != 1 {
		t.Fatalf("got %d pages, want 1", len(result.Pages))
	}
	if got := strings.Count(result.Pages[0], "<mark>whale</mark>"); got != 2 {
		t.Errorf("page marks %d occurrences, want 2", got)
	}
	if strings.Contains(result.Pages[0], "<mark>narwhale") {
		t.Error("substring match was highlighted")
	}
	if len(result.MatchingPages) != 1 || result.MatchingPages[0].Occurrences != 2 {
		t.Errorf("matching_pages_stats = %+v, want one page with 2 hits", result.MatchingPages)
	}
}

func TestHighlightViewStatsSkipEmptyPages(t *testing.T) {
	// The hit sits in the final page of a long text; earlier pages carry
	// content but no stats entries.
	text := strings.Repeat("padding words only here ", 200) + "finally the whale arrives"
	book := corpus.Book{ID: 1, Title: "Long", Languages: "en", Text: text}
	entries := map[string]*index.WordEntry{
		"whale": {
			Word: "whale",
			Postings: []index.Posting{
				{BookID: 1, Positions: index.FieldPositions{Text: []int{800}}, Occurrences: 1},
			},
			Occurrences: 1,
		},
	}
	e := newTestEngine(t, entries, book)

	result, err := e.Highlight(context.Background(), 1, "whale")
	if err != nil {
		t.Fatal(err)
	}
	if len(result.Pages) < 2 {
		t.Fatalf("got %d pages, want several", len(result.Pages))
	}
	if len(result.MatchingPages) != 1 {
		t.Fatalf("matching_pages_stats has %d entries, want 1", len(result.MatchingPages))
	}
	if result.MatchingPages[0].PageNumber != len(result.Pages) {
		t.Errorf("hit reported on page %d, want final page %d",
			result.MatchingPages[0].PageNumber, len(result.Pages))
	}
}

func TestHighlightViewWordNotInBook(t *testing.T) {
	e := highlightFixture(t)
	_, err := e.Highlight(context.Background(), 1, "kraken")
	if !errors.Is(err, apperrors.ErrNotFound) {
		t.Errorf("err = %v, want ErrNotFound", err)
	}
}

func TestHighlightViewMissingBook(t *testing.T) {
	e := highlightFixture(t)
	_, err := e.Highlight(context.Background(), 9, "whale")
	if !errors.Is(err, apperrors.ErrBookMissing) {
		t.Errorf("err = %v, want ErrBookMissing", err)
	}
}

func TestHighlightViewEmptyWord(t *testing.T) {
	e := highlightFixture(t)
	_, err := e.Highlight(context.Background(), 1, "")
	if !errors.Is(err, apperrors.ErrInvalidQuery) {
		t.Errorf("err = %v, want ErrInvalidQuery", err)
	}
}
