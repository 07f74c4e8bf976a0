package buffers

import (
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/ppiankov/logsink/internal/logtypes"
)

func entry(msg string) logtypes.Entry {
	return logtypes.Entry{
		Timestamp: time.Now(),
		Source:    "127.0.0.1",
		Message:   msg,
	}
}

func TestNewLogRing_DefaultCap(t *testing.T) {
	r := NewLogRing(0)
	if r.cap != defaultRingSize {
		t.Fatalf("expected cap %d, got %d", defaultRingSize, r.cap)
	}
}

func TestNewLogRing_NegativeCap(t *testing.T) {
	r := NewLogRing(-5)
	if r.cap != defaultRingSize {
		t.Fatalf("expected cap %d, got %d", defaultRingSize, r.cap)
	}
}

func TestPushAndSnapshot(t *testing.T) {
	r := NewLogRing(5)

	r.Push(entry("a"))
	r.Push(entry("b"))
	r.Push(entry("c"))

	snap := r.Snapshot()
	if len(snap) != 3 {
		t.Fatalf("expected 3 entries, got %d", len(snap))
	}
	if snap[0].Message != "a" || snap[1].Message != "b" || snap[2].Message != "c" {
		t.Fatalf("unexpected order: %v", snap)
	}
}

func TestSnapshot_Empty(t *testing.T) {
	r := NewLogRing(5)
	if snap := r.Snapshot(); snap != nil {
		t.Fatalf("expected nil snapshot for empty ring, got %v", snap)
	}
}

func TestPush_EvictsOldest(t *testing.T) {
	r := NewLogRing(3)

	r.Push(entry("a"))
	r.Push(entry("b"))
	r.Push(entry("c"))
	r.Push(entry("d"))

	snap := r.Snapshot()
	if len(snap) != 3 {
		t.Fatalf("expected 3 entries, got %d", len(snap))
	}
	if snap[0].Message != "b" || snap[1].Message != "c" || snap[2].Message != "d" {
		t.Fatalf("expected [b c d], got [%s %s %s]", snap[0].Message, snap[1].Message, snap[2].Message)
	}
}

func TestSnapshotHoldsLastCapacity(t *testing.T) {
	const cap = 7
	r := NewLogRing(cap)
	for n := 0; n < 25; n++ {
		r.Push(entry(fmt.Sprintf("m%d", n)))
		snap := r.Snapshot()
		want := n + 1
		if want > cap {
			want = cap
		}
		if len(snap) != want {
			t.Fatalf("after %d pushes: len %d, want %d", n+1, len(snap), want)
		}
		if snap[len(snap)-1].Message != fmt.Sprintf("m%d", n) {
			t.Fatalf("last entry %q, want m%d", snap[len(snap)-1].Message, n)
		}
	}
}

func TestSnapshotIsACopy(t *testing.T) {
	r := NewLogRing(3)
	r.Push(entry("a"))

	snap := r.Snapshot()
	snap[0].Message = "mutated"

	again := r.Snapshot()
	if again[0].Message != "a" {
		t.Fatal("snapshot aliases ring storage")
	}
}

func TestSnapshotFiltered(t *testing.T) {
	r := NewLogRing(10)

	r.Push(logtypes.Entry{Timestamp: time.Now(), Source: "10.0.0.1", Message: "hello"})
	r.Push(logtypes.Entry{Timestamp: time.Now(), Source: "10.0.0.2", Message: "world"})
	r.Push(logtypes.Entry{Timestamp: time.Now(), Source: "10.0.0.1", Message: "foo"})

	filtered := r.SnapshotFiltered(func(e logtypes.Entry) bool {
		return e.Source == "10.0.0.1"
	})
	if len(filtered) != 2 {
		t.Fatalf("expected 2 filtered entries, got %d", len(filtered))
	}
	if filtered[0].Message != "hello" || filtered[1].Message != "foo" {
		t.Fatalf("unexpected filtered entries: %v", filtered)
	}
}

func TestVersion(t *testing.T) {
	r := NewLogRing(5)

	if r.Version() != 0 {
		t.Fatalf("expected version 0, got %d", r.Version())
	}

	r.Push(entry("a"))
	r.Push(entry("b"))
	if r.Version() != 2 {
		t.Fatalf("expected version 2, got %d", r.Version())
	}
}

func TestConcurrentPushSnapshot(t *testing.T) {
	r := NewLogRing(100)
	var wg sync.WaitGroup

	wg.Add(2)
	go func() {
		defer wg.Done()
		for i := 0; i < 1000; i++ {
			r.Push(entry("msg"))
		}
	}()
	go func() {
		defer wg.Done()
		for i := 0; i < 100; i++ {
			_ = r.Snapshot()
			_ = r.Version()
		}
	}()
	wg.Wait()

	if got := r.Len(); got != 100 {
		t.Fatalf("expected 100 entries in ring, got %d", got)
	}
	if r.Version() != 1000 {
		t.Fatalf("expected version 1000, got %d", r.Version())
	}
}
