package ingest

import (
	"bufio"
	"encoding/json"
	"fmt"
	"os"
	"sync/atomic"

	"github.com/ppiankov/logsink/internal/buffers"
	"github.com/ppiankov/logsink/internal/logtypes"
	"github.com/ppiankov/logsink/internal/rotate"
)

// Store is the core ingestion object: it owns the recent-entry ring and
// the rotating active file. Listeners append through it; the dashboard
// reads snapshots from it. There is no other path to either structure.
type Store struct {
	ring *buffers.LogRing
	rot  *rotate.Rotator

	redactor *Redactor // optional, scrubs before buffer and disk
	metrics  *Metrics  // optional
	stats    *Stats    // optional

	lines atomic.Int64
	bytes atomic.Int64
}

// NewStore creates a Store over the given ring and rotator.
func NewStore(ring *buffers.LogRing, rot *rotate.Rotator) *Store {
	return &Store{ring: ring, rot: rot}
}

// SetRedactor attaches an optional redactor applied to every message.
func (s *Store) SetRedactor(r *Redactor) { s.redactor = r }

// SetMetrics attaches pipeline metrics.
func (s *Store) SetMetrics(m *Metrics) { s.metrics = m }

// SetStats attaches the stats collector.
func (s *Store) SetStats(st *Stats) { s.stats = st }

// Ring returns the recent-entry ring.
func (s *Store) Ring() *buffers.LogRing { return s.ring }

// Rotator returns the active-file owner.
func (s *Store) Rotator() *rotate.Rotator { return s.rot }

// LinesAppended returns the number of entries appended to disk.
func (s *Store) LinesAppended() int64 { return s.lines.Load() }

// BytesAppended returns the number of bytes appended to disk.
func (s *Store) BytesAppended() int64 { return s.bytes.Load() }

// Append places the entry in the ring, then appends its serialized line
// to the active file. Ring first, so a dashboard poll never trails the
// durable record. A failed disk write is returned to the caller but does
// not poison the ring or later appends.
func (s *Store) Append(entry logtypes.Entry) error {
	if s.redactor != nil {
		entry.Message = s.redactor.Redact(entry.Message)
	}

	s.ring.Push(entry)
	if s.stats != nil {
		s.stats.RecordEntry(entry.Source)
	}
	if s.metrics != nil {
		s.metrics.RingEntries.Set(float64(s.ring.Len()))
	}

	data, err := json.Marshal(entry)
	if err != nil {
		return fmt.Errorf("marshal entry: %w", err)
	}
	n, err := s.rot.Write(append(data, '\n'))
	if err != nil {
		if s.metrics != nil {
			s.metrics.WriteErrors.Inc()
		}
		if s.stats != nil {
			s.stats.RecordWriteError()
		}
		return fmt.Errorf("append to %s: %w", s.rot.Path(), err)
	}

	s.lines.Add(1)
	s.bytes.Add(int64(n))
	if s.metrics != nil {
		s.metrics.BytesWritten.Add(float64(n))
		s.metrics.ActiveFileSize.Set(float64(s.rot.Size()))
	}
	return nil
}

// Snapshot returns the current ring contents in insertion order.
func (s *Store) Snapshot() []logtypes.Entry {
	return s.ring.Snapshot()
}

// LoadExisting replays the active file into the ring, oldest first, so
// the recent window survives a restart. Malformed lines are skipped.
// A missing file is not an error. Returns the number of entries loaded.
func (s *Store) LoadExisting() (int, error) {
	f, err := os.Open(s.rot.Path())
	if err != nil {
		if os.IsNotExist(err) {
			return 0, nil
		}
		return 0, fmt.Errorf("open %s: %w", s.rot.Path(), err)
	}
	defer func() { _ = f.Close() }()

	var loaded int
	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 256*1024), 1024*1024)
	for scanner.Scan() {
		line := scanner.Bytes()
		if len(line) == 0 {
			continue
		}
		var entry logtypes.Entry
		if err := json.Unmarshal(line, &entry); err != nil {
			continue
		}
		s.ring.Push(entry)
		loaded++
	}
	if err := scanner.Err(); err != nil {
		return loaded, fmt.Errorf("scan %s: %w", s.rot.Path(), err)
	}
	if s.metrics != nil {
		s.metrics.RingEntries.Set(float64(s.ring.Len()))
	}
	return loaded, nil
}
