package batch

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/url"
	"os"
	"strings"
	"time"

	"golang.org/x/text/unicode/norm"

	"photoferry/internal/services"
)

// Entry is one queued download.
type Entry struct {
	URL       string
	Timestamp string
	Caption   string
	MessageID string
	TakenAt   time.Time
}

// Record is the canonical form of one batch file.
type Record struct {
	Path    string
	Entries []Entry
}

type rawEntry struct {
	URL       string  `json:"url"`
	Timestamp *string `json:"timestamp"`
	Caption   *string `json:"caption"`
	MessageID string  `json:"msgId"`
}

type keyedLayout struct {
	URLs      []rawEntry `json:"urls"`
	Timestamp string     `json:"timestamp"`
}

// Load reads and parses the batch file at path.
func Load(path string, loc *time.Location) (Record, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Record{}, services.Wrap(services.ErrBatchParse, "batch", "read", path, err)
	}
	return Parse(path, data, loc)
}

// Parse normalizes either batch layout into a Record. Timestamps without a UTC
// offset are interpreted in loc.
func Parse(path string, data []byte, loc *time.Location) (Record, error) {
	trimmed := bytes.TrimSpace(bytes.TrimPrefix(data, []byte("\xef\xbb\xbf")))
	if len(trimmed) == 0 {
		return Record{}, parseError(path, "empty document", nil)
	}

	var (
		raw      []rawEntry
		fallback string
	)
	switch trimmed[0] {
	case '[':
		if err := json.Unmarshal(trimmed, &raw); err != nil {
			return Record{}, parseError(path, "decode array layout", err)
		}
	case '{':
		var keyed keyedLayout
		if err := json.Unmarshal(trimmed, &keyed); err != nil {
			return Record{}, parseError(path, "decode keyed layout", err)
		}
		if keyed.URLs == nil {
			return Record{}, parseError(path, `keyed layout is missing "urls"`, nil)
		}
		raw = keyed.URLs
		fallback = strings.TrimSpace(keyed.Timestamp)
	default:
		return Record{}, parseError(path, "document is neither an array nor an object", nil)
	}

	record := Record{Path: path, Entries: make([]Entry, 0, len(raw))}
	for i, item := range raw {
		entry, err := normalizeEntry(item, fallback, loc)
		if err != nil {
			return Record{}, parseError(path, fmt.Sprintf("entry %d", i), err)
		}
		record.Entries = append(record.Entries, entry)
	}
	return record, nil
}

func normalizeEntry(item rawEntry, fallback string, loc *time.Location) (Entry, error) {
	rawURL := strings.TrimSpace(item.URL)
	if rawURL == "" {
		return Entry{}, fmt.Errorf("url is required")
	}
	parsed, err := url.Parse(rawURL)
	if err != nil {
		return Entry{}, fmt.Errorf("url %q: %w", rawURL, err)
	}
	if (parsed.Scheme != "http" && parsed.Scheme != "https") || parsed.Host == "" {
		return Entry{}, fmt.Errorf("url %q must be an absolute http(s) URL", rawURL)
	}

	timestamp := fallback
	if item.Timestamp != nil && strings.TrimSpace(*item.Timestamp) != "" {
		timestamp = strings.TrimSpace(*item.Timestamp)
	}
	if timestamp == "" {
		return Entry{}, fmt.Errorf("timestamp is required")
	}
	takenAt, err := ParseTimestamp(timestamp, loc)
	if err != nil {
		return Entry{}, err
	}

	var caption string
	if item.Caption != nil {
		caption = strings.TrimSpace(norm.NFC.String(*item.Caption))
	}

	return Entry{
		URL:       rawURL,
		Timestamp: timestamp,
		Caption:   caption,
		MessageID: strings.TrimSpace(item.MessageID),
		TakenAt:   takenAt,
	}, nil
}

func parseError(path, detail string, err error) error {
	return services.Wrap(services.ErrBatchParse, "batch", "parse "+path, detail, err)
}
