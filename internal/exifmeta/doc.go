// Package exifmeta sniffs image formats and embeds capture times into image
// containers.
//
// Sniffing uses content detection, never the URL extension. Embedding sets the
// EXIF DateTimeOriginal and OffsetTimeOriginal tags for JPEG and PNG while
// keeping any existing EXIF data and leaving pixel data untouched. Other image
// kinds report ErrUnsupportedKind so callers can store them unchanged.
package exifmeta
