package index

import (
	"reflect"
	"sync"
	"testing"
)

func TestMemoryEmpty(t *testing.T) {
	m := NewMemory()
	if m.Len() != 0 {
		t.Errorf("Len() = %d, want 0", m.Len())
	}
	if e := m.Lookup("whale"); e != nil {
		t.Errorf("Lookup on empty memory = %v, want nil", e)
	}
}

func TestMemorySwapAndLookup(t *testing.T) {
	m := NewMemory()
	m.Swap(map[string]*WordEntry{
		"whale": {Word: "whale", Occurrences: 3},
		"ahab":  {Word: "ahab", Occurrences: 1},
	})

	if e := m.Lookup("whale"); e == nil || e.Occurrences != 3 {
		t.Errorf("Lookup(whale) = %v, want occurrences 3", e)
	}
	if e := m.Lookup("ishmael"); e != nil {
		t.Errorf("Lookup(ishmael) = %v, want nil", e)
	}
	if want := []string{"ahab", "whale"}; !reflect.DeepEqual(m.Words(), want) {
		t.Errorf("Words() = %v, want %v (sorted)", m.Words(), want)
	}
}

func TestMemorySwapReplacesWholeSnapshot(t *testing.T) {
	m := NewMemory()
	m.Swap(map[string]*WordEntry{"old": {Word: "old"}})
	m.Swap(map[string]*WordEntry{"new": {Word: "new"}})

	if e := m.Lookup("old"); e != nil {
		t.Error("entry from the previous snapshot is still visible after swap")
	}
	if e := m.Lookup("new"); e == nil {
		t.Error("entry from the new snapshot is missing")
	}
}

func TestMemoryConcurrentReadsDuringSwap(t *testing.T) {
	m := NewMemory()
	m.Swap(map[string]*WordEntry{"whale": {Word: "whale"}})

	var wg sync.WaitGroup
	stop := make(chan struct{})
	for range 4 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for {
				select {
				case <-stop:
					return
				default:
				}
				// A reader must always observe a complete snapshot:
				// vocabulary length and lookups stay consistent.
				words := m.Words()
				if len(words) != 1 {
					t.Errorf("observed partial snapshot with %d words", len(words))
					return
				}
				if m.Lookup(words[0]) == nil {
					t.Errorf("word %q listed but not resolvable", words[0])
					return
				}
			}
		}()
	}
	for i := 0; i < 1000; i++ {
		if i%2 == 0 {
			m.Swap(map[string]*WordEntry{"whale": {Word: "whale"}})
		} else {
			m.Swap(map[string]*WordEntry{"ahab": {Word: "ahab"}})
		}
	}
	close(stop)
	wg.Wait()
}
