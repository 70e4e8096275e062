// Package index defines the inverted-index data model: field-scoped postings
// keyed by book, word entries aggregating postings across the corpus, the
// postgres persistence layer, and the in-memory snapshot served to queries.
//
// Positions are token-space ordinals: 0-based indices into the
// stopword-filtered token stream of one field of one book. They are not
// character offsets and must never be compared against the display-time
// positions computed by the highlight package.
package index

import "sort"

// Field names a book field carrying its own position list within a posting.
type Field string

const (
	FieldTitle   Field = "title"
	FieldAuthor  Field = "author"
	FieldSummary Field = "summary"
	FieldText    Field = "text"
)

// Fields lists every indexed field.
var Fields = []Field{FieldTitle, FieldAuthor, FieldSummary, FieldText}

// FieldPositions holds one position list per indexed field. Schema v1: this
// is the only accepted postings shape; the historical flat single-list
// variant is not read or written.
type FieldPositions struct {
	Title   []int `json:"title,omitempty"`
	Author  []int `json:"author,omitempty"`
	Summary []int `json:"summary,omitempty"`
	Text    []int `json:"text,omitempty"`
}

// Get returns the position list for the given field.
func (fp *FieldPositions) Get(f Field) []int {
	switch f {
	case FieldTitle:
		return fp.Title
	case FieldAuthor:
		return fp.Author
	case FieldSummary:
		return fp.Summary
	case FieldText:
		return fp.Text
	}
	return nil
}

// Set replaces the position list for the given field.
func (fp *FieldPositions) Set(f Field, positions []int) {
	switch f {
	case FieldTitle:
		fp.Title = positions
	case FieldAuthor:
		fp.Author = positions
	case FieldSummary:
		fp.Summary = positions
	case FieldText:
		fp.Text = positions
	}
}

// Total returns the number of positions across all fields.
func (fp *FieldPositions) Total() int {
	return len(fp.Title) + len(fp.Author) + len(fp.Summary) + len(fp.Text)
}

// Posting records one word's occurrences within one book.
// Invariants: every position list is strictly ascending with no duplicates,
// and Occurrences equals the total position count.
type Posting struct {
	BookID      int64          `json:"book"`
	Positions   FieldPositions `json:"positions"`
	Occurrences int            `json:"occurrences"`
}

// Normalize sorts and deduplicates every position list and recomputes
// Occurrences, restoring the posting invariants.
func (p *Posting) Normalize() {
	for _, f := range Fields {
		p.Positions.Set(f, dedupeSorted(p.Positions.Get(f)))
	}
	p.Occurrences = p.Positions.Total()
}

// Merge unions additional positions for one field into the posting, keeping
// the list sorted and duplicate-free. Maintenance operation: not used on the
// query-serving path.
func (p *Posting) Merge(f Field, positions []int) {
	merged := append(append([]int(nil), p.Positions.Get(f)...), positions...)
	p.Positions.Set(f, dedupeSorted(merged))
	p.Occurrences = p.Positions.Total()
}

// WordEntry is the full index record for one normalized word.
// Invariant: Occurrences equals the sum of posting occurrence counts.
type WordEntry struct {
	Word        string    `json:"word"`
	Postings    []Posting `json:"postings"`
	Occurrences int       `json:"occurrences"`
}

// Posting returns the posting for bookID, or nil if the word does not occur
// in that book.
func (e *WordEntry) Posting(bookID int64) *Posting {
	for i := range e.Postings {
		if e.Postings[i].BookID == bookID {
			return &e.Postings[i]
		}
	}
	return nil
}

// Recount recomputes the entry total from its postings.
func (e *WordEntry) Recount() {
	total := 0
	for i := range e.Postings {
		total += e.Postings[i].Occurrences
	}
	e.Occurrences = total
}

func dedupeSorted(positions []int) []int {
	if len(positions) == 0 {
		return positions
	}
	sort.Ints(positions)
	out := positions[:1]
	for _, pos := range positions[1:] {
		if pos != out[len(out)-1] {
			out = append(out, pos)
		}
	}
	return out
}
