package archive

import (
	"bufio"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/klauspost/compress/gzip"

	"github.com/ppiankov/logsink/internal/logtypes"
	"github.com/ppiankov/logsink/internal/rotate"
)

// FileInfo describes one file in a log set.
type FileInfo struct {
	Path    string
	Archive int // archive index, 0 for the active file
}

// Reader provides streaming access to a log set: the numbered archives
// of an active file plus the file itself, oldest first.
type Reader struct {
	files []FileInfo
}

// NewReader resolves the log set for the given active file path. Archive
// indices count down from maxArchives because higher numbers are older.
// Gaps are fine; a retired archive simply is not there anymore.
func NewReader(path string, maxArchives int) (*Reader, error) {
	if _, err := os.Stat(path); err != nil {
		if !os.IsNotExist(err) {
			return nil, fmt.Errorf("stat %s: %w", path, err)
		}
		// the set may still hold archives from an earlier run
	}

	var files []FileInfo
	for i := maxArchives; i >= 1; i-- {
		ap := rotate.ArchivePath(path, i)
		if _, err := os.Stat(ap); err != nil {
			continue
		}
		files = append(files, FileInfo{Path: ap, Archive: i})
	}
	if _, err := os.Stat(path); err == nil {
		files = append(files, FileInfo{Path: path})
	}
	if len(files) == 0 {
		return nil, fmt.Errorf("no log files at %s", path)
	}
	return &Reader{files: files}, nil
}

// Files returns the resolved file list, oldest first.
func (r *Reader) Files() []FileInfo {
	return r.files
}

// Scan iterates every entry in the set in file order, applying the
// filter and calling fn for each match. If fn returns false, scanning
// stops early. Returns the number of entries scanned.
func (r *Reader) Scan(filter *Filter, fn func(logtypes.Entry) bool) (int64, error) {
	var scanned int64
	for _, f := range r.files {
		n, stop, err := scanFile(f, filter, fn)
		scanned += n
		if err != nil {
			return scanned, fmt.Errorf("scan %s: %w", f.Path, err)
		}
		if stop {
			break
		}
	}
	return scanned, nil
}

func scanFile(f FileInfo, filter *Filter, fn func(logtypes.Entry) bool) (int64, bool, error) {
	file, err := os.Open(f.Path)
	if err != nil {
		return 0, false, err
	}
	defer func() { _ = file.Close() }()

	var reader io.Reader = file
	if strings.HasSuffix(f.Path, ".gz") {
		gz, err := gzip.NewReader(file)
		if err != nil {
			return 0, false, fmt.Errorf("gzip open: %w", err)
		}
		defer func() { _ = gz.Close() }()
		reader = gz
	}

	var scanned int64
	scanner := bufio.NewScanner(reader)
	scanner.Buffer(make([]byte, 256*1024), 1024*1024)
	for scanner.Scan() {
		line := scanner.Bytes()
		if len(line) == 0 {
			continue
		}

		var entry logtypes.Entry
		if err := json.Unmarshal(line, &entry); err != nil {
			continue // skip malformed lines
		}
		scanned++

		if filter != nil && !filter.Match(entry) {
			continue
		}
		if !fn(entry) {
			return scanned, true, nil
		}
	}
	return scanned, false, scanner.Err()
}
