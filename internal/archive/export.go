package archive

import (
	"fmt"

	"github.com/ppiankov/logsink/internal/logtypes"
)

// ExportFormat identifies the output format.
type ExportFormat string

const (
	FormatParquet ExportFormat = "parquet"
	FormatCSV     ExportFormat = "csv"
	FormatJSONL   ExportFormat = "jsonl"
)

// ExportWriter writes log entries to an output format.
type ExportWriter interface {
	Write(logtypes.Entry) error
	Close() error
}

// Export scans the log set rooted at src and writes filtered entries to
// dst in the given format. Returns the number of entries written.
func Export(src, dst string, maxArchives int, format ExportFormat, filter *Filter) (int64, error) {
	reader, err := NewReader(src, maxArchives)
	if err != nil {
		return 0, fmt.Errorf("open source: %w", err)
	}

	writer, err := newExportWriter(dst, format)
	if err != nil {
		return 0, fmt.Errorf("create writer: %w", err)
	}

	var written int64
	var writeErr error
	_, err = reader.Scan(filter, func(e logtypes.Entry) bool {
		if werr := writer.Write(e); werr != nil {
			writeErr = werr
			return false
		}
		written++
		return true
	})
	if err != nil {
		_ = writer.Close()
		return written, fmt.Errorf("scan source: %w", err)
	}
	if writeErr != nil {
		_ = writer.Close()
		return written, fmt.Errorf("write %s: %w", dst, writeErr)
	}

	if err := writer.Close(); err != nil {
		return written, fmt.Errorf("close writer: %w", err)
	}
	return written, nil
}

func newExportWriter(path string, format ExportFormat) (ExportWriter, error) {
	switch format {
	case FormatParquet:
		return newParquetWriter(path)
	case FormatCSV:
		return newCSVWriter(path)
	case FormatJSONL:
		return newJSONLWriter(path)
	default:
		return nil, fmt.Errorf("unsupported format: %q", format)
	}
}
