package utils

import (
	"errors"
	"time"
)

// publishLayouts are the timestamp layouts the backend emits. Naive
// timestamps (no zone) are interpreted as UTC.
var publishLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05.999999999",
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
	time.DateOnly,
}

// ParseTimestamp parses a backend timestamp in any of the supported layouts.
func ParseTimestamp(s string) (time.Time, error) {
	for _, layout := range publishLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t, nil
		}
	}
	return time.Time{}, errors.New("unrecognized timestamp: " + s)
}

// FormatDate renders a timestamp like "Apr 29, 2024". Unparseable input is
// returned unchanged.
func FormatDate(s string) string {
	t, err := ParseTimestamp(s)
	if err != nil {
		return s
	}
	return t.Format("Jan 2, 2006")
}

// FormatTime renders the wall clock portion of t like "06:10 PM".
func FormatTime(t time.Time) string {
	return t.Format("03:04 PM")
}
