package search

import (
	"context"
	"errors"
	"testing"

	"github.com/gutensearch/gutensearch/internal/corpus"
	"github.com/gutensearch/gutensearch/internal/index"
	apperrors "github.com/gutensearch/gutensearch/pkg/errors"
)

func patternFixture(t *testing.T) *Engine {
	t.Helper()
	dragonKnight := corpus.Book{
		ID:        1,
		Title:     "The Quest",
		Languages: "en",
		Summary:   "A tale of bravery.",
		Text:      "The dragon faced the knight at dawn.",
	}
	dragonOnly := corpus.Book{
		ID:        2,
		Title:     "Serpents",
		Languages: "en",
		Summary:   "Scaled beasts.",
		Text:      "A dragon slept for a hundred years.",
	}
	knightOnly := corpus.Book{
		ID:        3,
		Title:     "Chivalry",
		Languages: "en",
		Summary:   "A knight of arms and honor.",
		Text:      "The knight polished his armor.",
	}
	entries := map[string]*index.WordEntry{
		"dragon": {
			Word: "dragon",
			Postings: []index.Posting{
				{BookID: 1, Positions: index.FieldPositions{Text: []int{1}}, Occurrences: 1},
				{BookID: 2, Positions: index.FieldPositions{Text: []int{0}}, Occurrences: 1},
			},
			Occurrences: 2,
		},
		"knight": {
			Word: "knight",
			Postings: []index.Posting{
				{BookID: 1, Positions: index.FieldPositions{Text: []int{3}}, Occurrences: 1},
				{BookID: 3, Positions: index.FieldPositions{Text: []int{0}}, Occurrences: 1},
			},
			Occurrences: 2,
		},
	}
	return newTestEngine(t, entries, dragonKnight, dragonOnly, knightOnly)
}

func TestPatternInvalidRegex(t *testing.T) {
	e := patternFixture(t)
	_, err := e.Pattern(context.Background(), "dragon[")
	if !errors.Is(err, apperrors.ErrInvalidQuery) {
		t.Errorf("err = %v, want ErrInvalidQuery", err)
	}
}

func TestPatternEmpty(t *testing.T) {
	e := patternFixture(t)
	_, err := e.Pattern(context.Background(), "  ")
	if !errors.Is(err, apperrors.ErrInvalidQuery) {
		t.Errorf("err = %v, want ErrInvalidQuery", err)
	}
}

func TestPatternSingleWordUsesIndex(t *testing.T) {
	e := patternFixture(t)
	result, err := e.Pattern(context.Background(), "dragon")
	if err != nil {
		t.Fatal(err)
	}
	if len(result.Books) != 2 {
		t.Fatalf("got %d books, want 2 straight from the index", len(result.Books))
	}
}

func TestPatternMultiWordVerifies(t *testing.T) {
	e := patternFixture(t)
	// All three books are candidates (union of dragon ∪ knight postings),
	// but only book 1 matches the full pattern.
	result, err := e.Pattern(context.Background(), "dragon.*knight")
	if err != nil {
		t.Fatal(err)
	}
	if len(result.Books) != 1 {
		t.Fatalf("got %d books, want 1 after regex verification", len(result.Books))
	}
	if result.Books[0].ID != 1 {
		t.Errorf("matched book = %d, want 1", result.Books[0].ID)
	}
}

func TestPatternCaseInsensitiveVerification(t *testing.T) {
	e := patternFixture(t)
	result, err := e.Pattern(context.Background(), "Dragon.*Knight")
	if err != nil {
		t.Fatal(err)
	}
	if len(result.Books) != 1 || result.Books[0].ID != 1 {
		t.Errorf("case-insensitive verification failed: %+v", result.Books)
	}
}

func TestPatternMatchesSummaryToo(t *testing.T) {
	e := patternFixture(t)
	// Book 3 is a candidate through "knight"; only its summary carries the
	// full phrase, so verification must also consult summaries.
	result, err := e.Pattern(context.Background(), "knight.*honor")
	if err != nil {
		t.Fatal(err)
	}
	if len(result.Books) != 1 || result.Books[0].ID != 3 {
		t.Errorf("summary verification failed: %+v", result.Books)
	}
}

func TestPatternNoCandidates(t *testing.T) {
	e := patternFixture(t)
	_, err := e.Pattern(context.Background(), "kraken.*leviathan")
	if !errors.Is(err, apperrors.ErrNotFound) {
		t.Errorf("err = %v, want ErrNotFound", err)
	}
}

func TestPatternCandidatesFailVerification(t *testing.T) {
	e := patternFixture(t)
	// Both words exist in the index but never in this order in one book.
	_, err := e.Pattern(context.Background(), "knight.*slept")
	if !errors.Is(err, apperrors.ErrNotFound) {
		t.Errorf("err = %v, want ErrNotFound", err)
	}
}
