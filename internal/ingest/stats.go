package ingest

import (
	"sort"
	"sync"
	"sync/atomic"
)

// Stats collects pipeline counters for TUI display.
// All methods are safe for concurrent use.
type Stats struct {
	EntriesReceived atomic.Int64
	WriteErrors     atomic.Int64

	mu      sync.Mutex
	sources map[string]int64
}

// NewStats creates a Stats collector.
func NewStats() *Stats {
	return &Stats{
		sources: make(map[string]int64),
	}
}

// RecordEntry increments the received counter and tracks the source.
func (s *Stats) RecordEntry(source string) {
	s.EntriesReceived.Add(1)
	if source == "" {
		return
	}
	s.mu.Lock()
	s.sources[source]++
	s.mu.Unlock()
}

// RecordWriteError increments the failed-append counter.
func (s *Stats) RecordWriteError() {
	s.WriteErrors.Add(1)
}

// Source is a sender address and its cumulative entry count.
type Source struct {
	Addr  string
	Count int64
}

// Snapshot is a point-in-time copy of pipeline stats.
type Snapshot struct {
	EntriesReceived int64
	WriteErrors     int64
	ActiveFileSize  int64
	RingEntries     int
	Sources         []Source
}

// Snapshot returns a point-in-time copy of all stats, sources busiest first.
func (s *Stats) Snapshot(activeFileSize int64, ringEntries int) Snapshot {
	snap := Snapshot{
		EntriesReceived: s.EntriesReceived.Load(),
		WriteErrors:     s.WriteErrors.Load(),
		ActiveFileSize:  activeFileSize,
		RingEntries:     ringEntries,
	}

	s.mu.Lock()
	snap.Sources = make([]Source, 0, len(s.sources))
	for addr, count := range s.sources {
		snap.Sources = append(snap.Sources, Source{Addr: addr, Count: count})
	}
	s.mu.Unlock()

	sort.Slice(snap.Sources, func(i, j int) bool {
		if snap.Sources[i].Count != snap.Sources[j].Count {
			return snap.Sources[i].Count > snap.Sources[j].Count
		}
		return snap.Sources[i].Addr < snap.Sources[j].Addr
	})

	return snap
}
