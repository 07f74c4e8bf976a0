package rotate

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/klauspost/compress/gzip"
)

// Defaults applied by New for zero Config fields.
const (
	DefaultMaxSize     = 100 << 20 // 100MB
	DefaultMaxArchives = 10
	DefaultInterval    = 60 * time.Second
)

// Config controls the active file and its rotation behavior.
type Config struct {
	Path        string        // active file path
	MaxSize     int64         // bytes before the periodic check rotates
	MaxArchives int           // retained .N.gz archives
	Interval    time.Duration // size check cadence
}

// Rotator owns the active log file. Appends and the multi-step rotation
// sequence share one mutex, so an append lands fully in the pre-rotation
// file or fully in the post-rotation file.
type Rotator struct {
	cfg Config

	mu     sync.Mutex
	active *os.File
	size   int64

	// optional callbacks for metrics
	onRotate func()
	onError  func(error)
}

// ArchivePath returns the path of archive index i for the given active path.
func ArchivePath(path string, i int) string {
	return fmt.Sprintf("%s.%d.gz", path, i)
}

// New creates a Rotator and opens the active file for appending,
// creating it and its directory if needed.
func New(cfg Config) (*Rotator, error) {
	if cfg.MaxSize <= 0 {
		cfg.MaxSize = DefaultMaxSize
	}
	if cfg.MaxArchives <= 0 {
		cfg.MaxArchives = DefaultMaxArchives
	}
	if cfg.Interval <= 0 {
		cfg.Interval = DefaultInterval
	}
	if err := os.MkdirAll(filepath.Dir(cfg.Path), 0o755); err != nil {
		return nil, fmt.Errorf("create log dir: %w", err)
	}
	r := &Rotator{cfg: cfg}
	if err := r.openActive(); err != nil {
		return nil, fmt.Errorf("open active file: %w", err)
	}
	return r, nil
}

// SetOnRotate sets a callback invoked after each successful rotation.
func (r *Rotator) SetOnRotate(fn func()) { r.onRotate = fn }

// SetOnError sets a callback invoked on each rotation error.
func (r *Rotator) SetOnError(fn func(error)) { r.onError = fn }

// Write appends p to the active file. Rotation never happens mid-write;
// the periodic check owns that. Implements io.Writer.
func (r *Rotator) Write(p []byte) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	n, err := r.active.Write(p)
	r.size += int64(n)
	return n, err
}

// Size returns the tracked size of the active file.
func (r *Rotator) Size() int64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.size
}

// Path returns the active file path.
func (r *Rotator) Path() string { return r.cfg.Path }

// MaxArchives returns the configured archive retention count.
func (r *Rotator) MaxArchives() int { return r.cfg.MaxArchives }

// Check performs one rotation tick: stat the active file and rotate if it
// has reached the size threshold. Errors are reported through the onError
// callback and the rotator returns to idle; the next tick retries.
func (r *Rotator) Check() {
	info, err := os.Stat(r.cfg.Path)
	if err != nil || info.Size() < r.cfg.MaxSize {
		return
	}

	r.mu.Lock()
	err = r.rotate()
	r.mu.Unlock()

	if err != nil {
		if r.onError != nil {
			r.onError(err)
		}
		return
	}
	if r.onRotate != nil {
		r.onRotate()
	}
}

// Run drives periodic checks until ctx is cancelled.
func (r *Rotator) Run(ctx context.Context) {
	ticker := time.NewTicker(r.cfg.Interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			r.Check()
		}
	}
}

// Close closes the active file. Further writes fail.
func (r *Rotator) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.active == nil {
		return nil
	}
	err := r.active.Close()
	r.active = nil
	return err
}

// rotate runs the archive shift under the held mutex:
// drop the oldest archive, shift the rest up, move the active file aside,
// compress it into index 1, and start a fresh active file. If compression
// fails after the move, the uncompressed rotated file is left in place
// (degraded but not lost) and appends resume on a fresh active file.
func (r *Rotator) rotate() error {
	oldest := ArchivePath(r.cfg.Path, r.cfg.MaxArchives)
	if _, err := os.Stat(oldest); err == nil {
		if err := os.Remove(oldest); err != nil {
			return fmt.Errorf("remove oldest archive: %w", err)
		}
	}

	// highest index first so nothing is overwritten before it moves
	for i := r.cfg.MaxArchives - 1; i >= 1; i-- {
		src := ArchivePath(r.cfg.Path, i)
		if _, err := os.Stat(src); err != nil {
			continue
		}
		if err := os.Rename(src, ArchivePath(r.cfg.Path, i+1)); err != nil {
			return fmt.Errorf("shift archive %d: %w", i, err)
		}
	}

	if err := r.active.Close(); err != nil {
		return fmt.Errorf("close active: %w", err)
	}

	rotated := r.cfg.Path + ".1"
	if err := os.Rename(r.cfg.Path, rotated); err != nil {
		// the move never happened; reopen and keep appending to the original
		if oerr := r.openActive(); oerr != nil {
			return fmt.Errorf("reopen after failed move: %w", oerr)
		}
		return fmt.Errorf("move active: %w", err)
	}

	cerr := compressFile(rotated, ArchivePath(r.cfg.Path, 1))
	if cerr == nil {
		if err := os.Remove(rotated); err != nil {
			cerr = fmt.Errorf("remove rotated file: %w", err)
		}
	}

	if err := r.openActive(); err != nil {
		return fmt.Errorf("open fresh active: %w", err)
	}
	if cerr != nil {
		return fmt.Errorf("compress rotated file: %w", cerr)
	}
	return nil
}

func (r *Rotator) openActive() error {
	f, err := os.OpenFile(r.cfg.Path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return err
	}
	info, err := f.Stat()
	if err != nil {
		_ = f.Close()
		return err
	}
	r.active = f
	r.size = info.Size()
	return nil
}

func compressFile(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer func() { _ = in.Close() }()

	out, err := os.Create(dst)
	if err != nil {
		return err
	}

	gz := gzip.NewWriter(out)
	if _, err := io.Copy(gz, in); err != nil {
		_ = gz.Close()
		_ = out.Close()
		return err
	}
	if err := gz.Close(); err != nil {
		_ = out.Close()
		return err
	}
	return out.Close()
}
