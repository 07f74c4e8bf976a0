package archive

import (
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/ppiankov/logsink/internal/logtypes"
)

// Filter selects entries during a scan. Zero-value fields match everything.
type Filter struct {
	From   time.Time
	To     time.Time
	Source string
	Grep   *regexp.Regexp
}

// Match returns true if the entry passes all filter criteria.
func (f *Filter) Match(e logtypes.Entry) bool {
	if f == nil {
		return true
	}

	if !f.From.IsZero() && e.Timestamp.Before(f.From) {
		return false
	}
	if !f.To.IsZero() && e.Timestamp.After(f.To) {
		return false
	}

	if f.Source != "" && e.Source != f.Source {
		return false
	}

	if f.Grep != nil && !f.Grep.MatchString(e.Message) {
		return false
	}

	return true
}

// ParseTimeFlag parses a time string in one of three formats:
// - the file layout: "2024-01-15 10:32:00"
// - HH:MM: "10:32", resolved against refDate
// - Relative: "-30m", resolved against refTime
func ParseTimeFlag(s string, refDate, refTime time.Time) (time.Time, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, nil
	}

	if t, err := time.ParseInLocation("2006-01-02 15:04:05", s, time.Local); err == nil {
		return t, nil
	}

	if len(s) == 5 && s[2] == ':' {
		t, err := time.Parse("15:04", s)
		if err == nil {
			return time.Date(
				refDate.Year(), refDate.Month(), refDate.Day(),
				t.Hour(), t.Minute(), 0, 0, refDate.Location(),
			), nil
		}
	}

	if strings.HasPrefix(s, "-") {
		d, err := time.ParseDuration(s[1:])
		if err != nil {
			return time.Time{}, fmt.Errorf("invalid duration %q: %w", s, err)
		}
		return refTime.Add(-d), nil
	}

	return time.Time{}, fmt.Errorf("unrecognized time format: %q", s)
}
