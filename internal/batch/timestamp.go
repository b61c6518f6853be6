package batch

import (
	"fmt"
	"strings"
	"time"
)

var zonedLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05.999999999Z0700",
	"2006-01-02 15:04:05.999999999Z07:00",
}

var naiveLayouts = []string{
	"2006-01-02T15:04:05.999999999",
	"2006-01-02 15:04:05.999999999",
	"2006-01-02",
}

// ParseTimestamp parses an ISO-8601 capture time. A timestamp carrying its own
// offset keeps it; a naive timestamp is placed in loc (UTC when loc is nil).
func ParseTimestamp(value string, loc *time.Location) (time.Time, error) {
	value = strings.TrimSpace(value)
	if loc == nil {
		loc = time.UTC
	}
	for _, layout := range zonedLayouts {
		if ts, err := time.Parse(layout, value); err == nil {
			return ts, nil
		}
	}
	for _, layout := range naiveLayouts {
		if ts, err := time.ParseInLocation(layout, value, loc); err == nil {
			return ts, nil
		}
	}
	return time.Time{}, fmt.Errorf("timestamp %q is not ISO-8601", value)
}

// ExifDateTime formats t as an EXIF wall clock ("2006:01:02 15:04:05").
func ExifDateTime(t time.Time) string {
	return t.Format("2006:01:02 15:04:05")
}

// ExifOffset formats the UTC offset of t as "+HH:MM".
func ExifOffset(t time.Time) string {
	return t.Format("-07:00")
}
