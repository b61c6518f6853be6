package exifmeta

import (
	"strings"

	"github.com/gabriel-vasile/mimetype"
)

// Kind describes a sniffed image format.
type Kind struct {
	MIME      string
	Extension string // without the leading dot, e.g. "jpg"
}

// Sniffer reports the image kind of raw bytes.
type Sniffer interface {
	Sniff(data []byte) (Kind, bool)
}

// MIMESniffer detects formats from magic numbers.
type MIMESniffer struct{}

// NewSniffer returns the default content sniffer.
func NewSniffer() MIMESniffer {
	return MIMESniffer{}
}

// Sniff returns false for empty input and for any non-image content.
func (MIMESniffer) Sniff(data []byte) (Kind, bool) {
	if len(data) == 0 {
		return Kind{}, false
	}
	detected := mimetype.Detect(data)
	mime := detected.String()
	if i := strings.IndexByte(mime, ';'); i >= 0 {
		mime = strings.TrimSpace(mime[:i])
	}
	if !strings.HasPrefix(mime, "image/") {
		return Kind{}, false
	}
	ext := strings.TrimPrefix(strings.ToLower(detected.Extension()), ".")
	if ext == "" {
		return Kind{}, false
	}
	if ext == "jpeg" {
		ext = "jpg"
	}
	return Kind{MIME: mime, Extension: ext}, true
}
