package search

import (
	"context"
	"net/http"
	"time"

	"github.com/gutensearch/gutensearch/internal/highlight"
	apperrors "github.com/gutensearch/gutensearch/pkg/errors"
)

// PageStats reports the hit count of one page that contains at least one
// occurrence.
type PageStats struct {
	PageNumber  int `json:"page_number"`
	Occurrences int `json:"occurrences"`
}

// HighlightResult is the payload of a highlighted text view: every page of
// the book with occurrences wrapped in <mark> tags, plus per-page statistics
// for the pages that actually contain hits.
type HighlightResult struct {
	BookID           int64       `json:"book_id"`
	Pages            []string    `json:"pages"`
	MatchingPages    []PageStats `json:"matching_pages_stats"`
	TotalOccurrences int         `json:"total_occurrences"`
}

// Highlight renders the full text of one book with every whole-word
// occurrence of word marked, split into pages. The index gates the request:
// a word the index never recorded for this book is a not-found answer before
// any text is scanned. Display positions are recomputed from the raw text and
// are unrelated to the token positions stored in the index.
func (e *Engine) Highlight(ctx context.Context, bookID int64, word string) (*HighlightResult, error) {
	defer e.observe("highlight", time.Now())

	word, err := queryWord(word)
	if err != nil {
		return nil, err
	}
	text, err := e.corpus.GetBookText(ctx, bookID)
	if err != nil {
		return nil, err
	}

	entry := e.memory.Lookup(word)
	if entry == nil || entry.Posting(bookID) == nil {
		e.count("highlight", "miss")
		return nil, apperrors.Newf(apperrors.ErrNotFound, http.StatusNotFound,
			"no occurrences of %q in book %d", word, bookID)
	}

	positions := highlight.Positions(text, word)
	marked := highlight.Mark(text, positions, len(word))
	pages := highlight.Paginate(marked, text, positions, len(word), e.cfg.HighlightPage)

	result := &HighlightResult{
		BookID:           bookID,
		Pages:            make([]string, 0, len(pages)),
		MatchingPages:    []PageStats{},
		TotalOccurrences: len(positions),
	}
	for _, page := range pages {
		result.Pages = append(result.Pages, page.Text)
		if len(page.Positions) > 0 {
			result.MatchingPages = append(result.MatchingPages, PageStats{
				PageNumber:  page.Number,
				Occurrences: len(page.Positions),
			})
		}
	}
	e.count("highlight", "hit")
	return result, nil
}
