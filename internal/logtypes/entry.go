package logtypes

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"
)

// TimeLayout is the wire format for entry timestamps, second resolution.
const TimeLayout = "2006-01-02 15:04:05"

// Entry is one received log message. Values are immutable after construction.
type Entry struct {
	Timestamp time.Time
	Source    string
	Message   string
}

type wireEntry struct {
	Timestamp string `json:"timestamp"`
	Source    string `json:"source"`
	Message   string `json:"message"`
}

// MarshalJSON encodes the entry in the persisted-file format.
func (e Entry) MarshalJSON() ([]byte, error) {
	return json.Marshal(wireEntry{
		Timestamp: e.Timestamp.Format(TimeLayout),
		Source:    e.Source,
		Message:   e.Message,
	})
}

// UnmarshalJSON decodes an entry from the persisted-file format.
func (e *Entry) UnmarshalJSON(data []byte) error {
	var w wireEntry
	if err := json.Unmarshal(data, &w); err != nil {
		return err
	}
	ts, err := time.ParseInLocation(TimeLayout, w.Timestamp, time.Local)
	if err != nil {
		return fmt.Errorf("parse timestamp %q: %w", w.Timestamp, err)
	}
	e.Timestamp = ts
	e.Source = w.Source
	e.Message = w.Message
	return nil
}

// Sanitize converts raw received bytes to message text: surrounding
// whitespace is trimmed and invalid UTF-8 sequences are replaced, never
// rejected.
func Sanitize(raw []byte) string {
	return strings.ToValidUTF8(strings.TrimSpace(string(raw)), "�")
}

// New builds an entry stamped at the current wall-clock time, truncated
// to second resolution to match the wire format.
func New(source string, raw []byte) Entry {
	return Entry{
		Timestamp: time.Now().Truncate(time.Second),
		Source:    source,
		Message:   Sanitize(raw),
	}
}
