package testsupport

import (
	"bytes"
	"testing"

	exif "github.com/dsoprea/go-exif/v3"
	goexif "github.com/rwcarlsen/goexif/exif"
)

// CaptureTime reads DateTimeOriginal and OffsetTimeOriginal from image bytes.
func CaptureTime(t testing.TB, data []byte) (dateTime, offset string) {
	t.Helper()

	raw, err := exif.SearchAndExtractExif(data)
	if err != nil {
		t.Fatalf("extract exif: %v", err)
	}
	tags, _, err := exif.GetFlatExifData(raw, nil)
	if err != nil {
		t.Fatalf("flatten exif: %v", err)
	}
	for _, tag := range tags {
		value, _ := tag.Value.(string)
		switch tag.TagName {
		case "DateTimeOriginal":
			dateTime = value
		case "OffsetTimeOriginal":
			offset = value
		}
	}
	return dateTime, offset
}

// JPEGDateTimeOriginal decodes a JPEG with an independent EXIF reader and
// returns its DateTimeOriginal tag.
func JPEGDateTimeOriginal(t testing.TB, data []byte) string {
	t.Helper()

	decoded, err := goexif.Decode(bytes.NewReader(data))
	if err != nil {
		t.Fatalf("decode exif: %v", err)
	}
	tag, err := decoded.Get(goexif.DateTimeOriginal)
	if err != nil {
		t.Fatalf("DateTimeOriginal: %v", err)
	}
	value, err := tag.StringVal()
	if err != nil {
		t.Fatalf("DateTimeOriginal value: %v", err)
	}
	return value
}
