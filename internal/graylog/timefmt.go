package graylog

import (
	"strings"
	"time"
)

// TimestampLayout is the wire format used by the log store for timestamps,
// millisecond precision with a zone suffix ("2021-03-29T12:00:00.000Z").
// The same format is used for the persisted watermark; it sorts lexically.
const TimestampLayout = "2006-01-02T15:04:05.000Z07:00"

// ParseTimestamp parses a wire-format timestamp.
func ParseTimestamp(s string) (time.Time, error) {
	return time.Parse(TimestampLayout, strings.TrimSpace(s))
}

// FormatTimestamp renders t in the wire format, normalized to UTC.
func FormatTimestamp(t time.Time) string {
	return t.UTC().Format(TimestampLayout)
}

// TimestampValid reports whether s conforms to the wire format.
func TimestampValid(s string) bool {
	_, err := ParseTimestamp(s)
	return err == nil
}

// AdvanceTimestamp moves t forward by the smallest representable increment
// of the wire format, one millisecond. Fetching from the advanced instant
// makes the range exclusive of the last already-retrieved entry.
func AdvanceTimestamp(t time.Time) time.Time {
	return t.Add(time.Millisecond)
}
