package analytics

import (
	"testing"
	"time"
)

func TestTrackBuffersBelowBatchSize(t *testing.T) {
	c := NewCollector(nil, 10, time.Minute)
	for i := 0; i < 9; i++ {
		c.Track(QueryEvent{Kind: "exact", Query: "whale", Outcome: "hit"})
	}
	if got := c.BufferLen(); got != 9 {
		t.Errorf("BufferLen() = %d, want 9", got)
	}
}

func TestTrackStampsMissingTimestamp(t *testing.T) {
	c := NewCollector(nil, 10, time.Minute)
	c.Track(QueryEvent{Kind: "ranked", Query: "whale"})

	c.mu.Lock()
	defer c.mu.Unlock()
	event, ok := c.buffer[0].Value.(QueryEvent)
	if !ok {
		t.Fatalf("buffered value is %T, want QueryEvent", c.buffer[0].Value)
	}
	if event.Timestamp.IsZero() {
		t.Error("zero timestamp was not stamped")
	}
}

func TestCollectorDefaults(t *testing.T) {
	c := NewCollector(nil, 0, 0)
	if c.batchSize != 100 {
		t.Errorf("batchSize = %d, want 100", c.batchSize)
	}
	if c.flushInterval != 5*time.Second {
		t.Errorf("flushInterval = %v, want 5s", c.flushInterval)
	}
}
