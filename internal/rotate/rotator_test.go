package rotate

import (
	"bytes"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/klauspost/compress/gzip"
)

func newTestRotator(t *testing.T, maxSize int64, maxArchives int) *Rotator {
	t.Helper()
	r, err := New(Config{
		Path:        filepath.Join(t.TempDir(), "syslog.jsonl"),
		MaxSize:     maxSize,
		MaxArchives: maxArchives,
	})
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { _ = r.Close() })
	return r
}

func gunzip(t *testing.T, path string) []byte {
	t.Helper()
	f, err := os.Open(path)
	if err != nil {
		t.Fatal(err)
	}
	defer func() { _ = f.Close() }()
	gz, err := gzip.NewReader(f)
	if err != nil {
		t.Fatalf("invalid gzip file %s: %v", path, err)
	}
	data, err := io.ReadAll(gz)
	if err != nil {
		t.Fatal(err)
	}
	return data
}

func TestCheckBelowThresholdIsNoop(t *testing.T) {
	r := newTestRotator(t, 1<<20, 3)
	line := []byte(`{"timestamp":"2024-01-01 00:00:00","source":"a","message":"x"}` + "\n")
	if _, err := r.Write(line); err != nil {
		t.Fatal(err)
	}

	r.Check()

	data, err := os.ReadFile(r.Path())
	if err != nil {
		t.Fatal(err)
	}
	if !bytes.Equal(data, line) {
		t.Errorf("active file changed by a below-threshold check")
	}
	if _, err := os.Stat(ArchivePath(r.Path(), 1)); !os.IsNotExist(err) {
		t.Error("archive created without rotation")
	}
}

func TestFirstRotation(t *testing.T) {
	r := newTestRotator(t, 100, 3)

	var written bytes.Buffer
	line := []byte(`{"timestamp":"2024-01-01 00:00:00","source":"a","message":"aaaaaaaaaa"}` + "\n")
	for i := 0; i < 3; i++ {
		if _, err := r.Write(line); err != nil {
			t.Fatal(err)
		}
		written.Write(line)
	}

	r.Check()

	got := gunzip(t, ArchivePath(r.Path(), 1))
	if !bytes.Equal(got, written.Bytes()) {
		t.Errorf("archive .1.gz does not match pre-rotation bytes:\ngot  %q\nwant %q", got, written.Bytes())
	}

	info, err := os.Stat(r.Path())
	if err != nil {
		t.Fatal(err)
	}
	if info.Size() != 0 {
		t.Errorf("fresh active file is not empty: %d bytes", info.Size())
	}
	if r.Size() != 0 {
		t.Errorf("tracked size not reset: %d", r.Size())
	}
}

func TestAppendsResumeAfterRotation(t *testing.T) {
	r := newTestRotator(t, 50, 3)

	if _, err := r.Write(bytes.Repeat([]byte("x"), 60)); err != nil {
		t.Fatal(err)
	}
	r.Check()

	after := []byte("after rotation\n")
	if _, err := r.Write(after); err != nil {
		t.Fatal(err)
	}
	data, err := os.ReadFile(r.Path())
	if err != nil {
		t.Fatal(err)
	}
	if !bytes.Equal(data, after) {
		t.Errorf("active file after rotation = %q, want %q", data, after)
	}
}

func TestArchiveShiftAndRetention(t *testing.T) {
	const maxArchives = 3
	r := newTestRotator(t, 10, maxArchives)

	// maxArchives+1 rotations; each generation carries a distinct marker
	for gen := 0; gen <= maxArchives; gen++ {
		line := []byte(fmt.Sprintf("generation-%d aaaaaaaaaa\n", gen))
		if _, err := r.Write(line); err != nil {
			t.Fatal(err)
		}
		r.Check()
	}

	// indices 1..maxArchives exist, nothing beyond
	for i := 1; i <= maxArchives; i++ {
		if _, err := os.Stat(ArchivePath(r.Path(), i)); err != nil {
			t.Errorf("archive %d missing: %v", i, err)
		}
	}
	if _, err := os.Stat(ArchivePath(r.Path(), maxArchives+1)); !os.IsNotExist(err) {
		t.Errorf("archive %d should not exist", maxArchives+1)
	}

	// index 1 holds the newest rotated generation, index max the oldest retained
	newest := gunzip(t, ArchivePath(r.Path(), 1))
	if !bytes.Contains(newest, []byte(fmt.Sprintf("generation-%d", maxArchives))) {
		t.Errorf("archive 1 = %q, want newest generation", newest)
	}
	oldest := gunzip(t, ArchivePath(r.Path(), maxArchives))
	if !bytes.Contains(oldest, []byte("generation-1")) {
		t.Errorf("archive %d = %q, want generation-1 (generation-0 dropped)", maxArchives, oldest)
	}
}

func TestSizeThresholdScenario(t *testing.T) {
	// threshold 1KB, 20 writes of ~100 bytes: exactly one rotation at the
	// tick after the threshold is crossed, remainder lands in the new file.
	r := newTestRotator(t, 1024, 5)

	line := make([]byte, 100)
	for i := range line {
		line[i] = 'a'
	}
	line[len(line)-1] = '\n'

	var rotations int
	r.SetOnRotate(func() { rotations++ })

	for i := 0; i < 20; i++ {
		if _, err := r.Write(line); err != nil {
			t.Fatal(err)
		}
		r.Check()
	}

	if rotations != 1 {
		t.Fatalf("expected exactly 1 rotation, got %d", rotations)
	}
	archived := gunzip(t, ArchivePath(r.Path(), 1))
	active, err := os.ReadFile(r.Path())
	if err != nil {
		t.Fatal(err)
	}
	if len(archived)+len(active) != 20*len(line) {
		t.Errorf("archived %d + active %d bytes, want %d total", len(archived), len(active), 20*len(line))
	}
	if len(archived) != 11*len(line) {
		t.Errorf("archive holds %d bytes, want %d (first 11 writes)", len(archived), 11*len(line))
	}
}

func TestConcurrentWriters(t *testing.T) {
	const writers = 8
	const perWriter = 200
	r := newTestRotator(t, 1<<30, 3)

	var wg sync.WaitGroup
	for w := 0; w < writers; w++ {
		wg.Add(1)
		go func(w int) {
			defer wg.Done()
			for i := 0; i < perWriter; i++ {
				line := []byte(fmt.Sprintf("writer-%d entry-%d\n", w, i))
				if _, err := r.Write(line); err != nil {
					t.Errorf("write: %v", err)
					return
				}
			}
		}(w)
	}
	wg.Wait()

	data, err := os.ReadFile(r.Path())
	if err != nil {
		t.Fatal(err)
	}
	lines := bytes.Split(bytes.TrimSuffix(data, []byte("\n")), []byte("\n"))
	if len(lines) != writers*perWriter {
		t.Fatalf("expected %d lines, got %d", writers*perWriter, len(lines))
	}
	for _, line := range lines {
		if !bytes.HasPrefix(line, []byte("writer-")) || !bytes.Contains(line, []byte(" entry-")) {
			t.Fatalf("corrupt line: %q", line)
		}
	}
}

func TestCheckErrorReturnsToIdle(t *testing.T) {
	dir := t.TempDir()
	r, err := New(Config{
		Path:        filepath.Join(dir, "syslog.jsonl"),
		MaxSize:     10,
		MaxArchives: 2,
	})
	if err != nil {
		t.Fatal(err)
	}
	defer func() { _ = r.Close() }()

	if _, err := r.Write(bytes.Repeat([]byte("x"), 20)); err != nil {
		t.Fatal(err)
	}

	// a non-empty directory squatting on the oldest archive slot makes the
	// first rotation step fail before the active file is touched
	oldest := ArchivePath(r.Path(), 2)
	if err := os.MkdirAll(filepath.Join(oldest, "junk"), 0o755); err != nil {
		t.Fatal(err)
	}

	var rotateErr error
	r.SetOnError(func(err error) { rotateErr = err })
	r.Check()
	if rotateErr == nil {
		t.Fatal("expected rotation error")
	}

	// the original active file is preserved and appends still work
	data, err := os.ReadFile(r.Path())
	if err != nil {
		t.Fatal(err)
	}
	if len(data) != 20 {
		t.Errorf("active file has %d bytes, want 20", len(data))
	}
	if _, err := r.Write([]byte("still alive\n")); err != nil {
		t.Errorf("append after failed rotation: %v", err)
	}
}

func TestReopenPreservesExistingContent(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "syslog.jsonl")
	if err := os.WriteFile(path, []byte("old line\n"), 0o644); err != nil {
		t.Fatal(err)
	}

	r, err := New(Config{Path: path, MaxSize: 1 << 20, MaxArchives: 2})
	if err != nil {
		t.Fatal(err)
	}
	defer func() { _ = r.Close() }()

	if r.Size() != int64(len("old line\n")) {
		t.Errorf("tracked size %d, want %d", r.Size(), len("old line\n"))
	}
	if _, err := r.Write([]byte("new line\n")); err != nil {
		t.Fatal(err)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	if string(data) != "old line\nnew line\n" {
		t.Errorf("got %q", data)
	}
}
