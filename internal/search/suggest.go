package search

import (
	"sort"
	"time"
)

// Suggestion is one fuzzy-match candidate with its corpus-wide occurrence
// count, usable as a popularity tiebreak by callers.
type Suggestion struct {
	Word        string `json:"word"`
	Occurrences int    `json:"occurrences"`
}

// SuggestResult is the payload of a suggestion query. Found is false when
// the vocabulary held no candidate above the similarity floor; the (empty)
// suggestion list is still returned so callers can render a uniform shape.
type SuggestResult struct {
	Word        string       `json:"word"`
	Suggestions []Suggestion `json:"suggestions"`
	Found       bool         `json:"-"`
}

// Suggest scans the whole vocabulary for words within edit-similarity
// distance of the query, keeps those at or above the similarity floor, and
// returns the top candidates by similarity, dropping the exact query word.
// The full scan is linear in vocabulary size.
func (e *Engine) Suggest(word string) (*SuggestResult, error) {
	defer e.observe("suggest", time.Now())

	word, err := queryWord(word)
	if err != nil {
		return nil, err
	}

	floor := e.cfg.SimilarityFloor
	if floor <= 0 {
		floor = 0.87
	}
	limit := e.cfg.SuggestionLimit
	if limit <= 0 {
		limit = 4
	}

	type scored struct {
		word string
		sim  float64
	}
	vocabulary := e.memory.Words()
	var candidates []scored
	for _, indexWord := range vocabulary {
		if sim := similarity(word, indexWord); sim >= floor {
			candidates = append(candidates, scored{word: indexWord, sim: sim})
		}
	}
	if e.metrics != nil {
		e.metrics.SuggestionScans.Observe(float64(len(vocabulary)))
	}

	sort.SliceStable(candidates, func(i, j int) bool {
		return candidates[i].sim > candidates[j].sim
	})
	if len(candidates) > limit {
		candidates = candidates[:limit]
	}

	suggestions := make([]Suggestion, 0, len(candidates))
	for _, c := range candidates {
		if c.word == word {
			continue
		}
		occurrences := 0
		if entry := e.memory.Lookup(c.word); entry != nil {
			occurrences = entry.Occurrences
		}
		suggestions = append(suggestions, Suggestion{Word: c.word, Occurrences: occurrences})
	}

	if len(suggestions) == 0 {
		e.count("suggest", "miss")
		return &SuggestResult{Word: word, Suggestions: suggestions}, nil
	}
	e.count("suggest", "hit")
	return &SuggestResult{Word: word, Suggestions: suggestions, Found: true}, nil
}
