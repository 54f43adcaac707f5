package chat

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/araddon/dateparse"
)

var ErrInvalidTimestamp = errors.New("invalid timestamp")

// TimestampParser turns an upstream timestamp string into a time that keeps
// the offset it was written in.
type TimestampParser interface {
	Parse(raw string) (time.Time, error)
}

// FlexibleParser accepts most ISO-8601-like layouts. Zoneless input is read
// as UTC, never as the host's local zone.
type FlexibleParser struct{}

func (FlexibleParser) Parse(raw string) (time.Time, error) {
	s := strings.TrimSpace(raw)
	if s == "" {
		return time.Time{}, fmt.Errorf("%w: empty", ErrInvalidTimestamp)
	}
	t, err := dateparse.ParseIn(s, time.UTC)
	if err != nil {
		return time.Time{}, fmt.Errorf("%w: %q: %v", ErrInvalidTimestamp, raw, err)
	}
	return t, nil
}

const strictLayout = "2006-01-02T15:04:05"

// StrictParser only understands YYYY-MM-DDTHH:MM:SS, after dropping a "Z"
// suffix and any fractional seconds. The result is in UTC.
type StrictParser struct{}

func (StrictParser) Parse(raw string) (time.Time, error) {
	s := strings.ReplaceAll(strings.TrimSpace(raw), "Z", "")
	if i := strings.IndexByte(s, '.'); i >= 0 {
		s = s[:i]
	}
	t, err := time.Parse(strictLayout, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("%w: %q: %v", ErrInvalidTimestamp, raw, err)
	}
	return t, nil
}

// NewTimestampParser picks the parsing tier by name ("flexible" or "strict").
func NewTimestampParser(name string) (TimestampParser, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "", "flexible":
		return FlexibleParser{}, nil
	case "strict":
		return StrictParser{}, nil
	default:
		return nil, fmt.Errorf("unknown timestamp parser: %s", name)
	}
}

// DayKey is the calendar date of t in its own offset.
func DayKey(t time.Time) string {
	return t.Format("2006-01-02")
}
