package services

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrFetch marks network, transport, or non-2xx failures while downloading an entry.
	ErrFetch = errors.New("fetch failure")
	// ErrWrite marks local persistence failures, including unrecognized-format skips.
	ErrWrite = errors.New("write failure")
	// ErrBatchParse marks malformed batch files. It is isolated to the batch.
	ErrBatchParse = errors.New("batch parse failure")
	// ErrUpload marks raw upload failures (non-2xx or empty token).
	ErrUpload = errors.New("upload failure")
	// ErrCommit marks batch-create failures. It applies to every token in the call.
	ErrCommit = errors.New("commit failure")
	// ErrConfiguration marks missing or invalid settings and credentials.
	ErrConfiguration = errors.New("configuration error")
)

// Wrap builds an error message that includes stage context while tagging it with
// the provided marker for later classification. The marker should be one of the
// exported sentinel errors above.
func Wrap(marker error, stage, operation, message string, err error) error {
	detail := buildDetail(stage, operation, message)
	if marker == nil {
		marker = ErrWrite
	}
	if err != nil {
		return fmt.Errorf("%w: %s: %w", marker, detail, err)
	}
	return fmt.Errorf("%w: %s", marker, detail)
}

// Kind returns a short label for the marker carried by err, or "unknown".
func Kind(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrBatchParse):
		return "batch_parse"
	case errors.Is(err, ErrFetch):
		return "fetch"
	case errors.Is(err, ErrWrite):
		return "write"
	case errors.Is(err, ErrUpload):
		return "upload"
	case errors.Is(err, ErrCommit):
		return "commit"
	case errors.Is(err, ErrConfiguration):
		return "configuration"
	default:
		return "unknown"
	}
}

func buildDetail(stage, operation, message string) string {
	parts := make([]string, 0, 3)
	if stage = strings.TrimSpace(stage); stage != "" {
		parts = append(parts, stage)
	}
	if operation = strings.TrimSpace(operation); operation != "" {
		parts = append(parts, operation)
	}
	if message = strings.TrimSpace(message); message != "" {
		parts = append(parts, message)
	}
	if len(parts) == 0 {
		return "service failure"
	}
	return strings.Join(parts, ": ")
}
