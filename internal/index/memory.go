package index

import (
	"sort"
	"sync/atomic"
)

// snapshot is an immutable view of the full index. Readers hold it only long
// enough to copy the entry pointer out, so a rebuild can swap in a new
// snapshot at any time without coordinating with queries.
type snapshot struct {
	entries map[string]*WordEntry
	words   []string
}

// Memory is the query-serving index. Lookups and vocabulary scans read a
// snapshot behind an atomic pointer; Swap replaces the whole snapshot after a
// successful build or load, so queries observe either the complete previous
// index or the complete new one, never a partially-populated state.
type Memory struct {
	current atomic.Pointer[snapshot]
}

// NewMemory returns an empty serving index.
func NewMemory() *Memory {
	m := &Memory{}
	m.current.Store(&snapshot{entries: map[string]*WordEntry{}})
	return m
}

// Swap atomically replaces the serving snapshot with the given entries.
// The entries map is owned by the Memory after the call.
func (m *Memory) Swap(entries map[string]*WordEntry) {
	words := make([]string, 0, len(entries))
	for word := range entries {
		words = append(words, word)
	}
	sort.Strings(words)
	m.current.Store(&snapshot{entries: entries, words: words})
}

// Lookup returns the entry for the normalized word, or nil when absent.
// The returned entry is shared and must not be mutated.
func (m *Memory) Lookup(word string) *WordEntry {
	return m.current.Load().entries[word]
}

// Words returns the sorted vocabulary of the current snapshot. The slice is
// shared and must not be mutated.
func (m *Memory) Words() []string {
	return m.current.Load().words
}

// Len returns the vocabulary size of the current snapshot.
func (m *Memory) Len() int {
	return len(m.current.Load().words)
}
