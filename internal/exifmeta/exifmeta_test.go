package exifmeta_test

import (
	"bytes"
	"errors"
	"image/jpeg"
	"image/png"
	"testing"

	"photoferry/internal/exifmeta"
	"photoferry/internal/testsupport"
)

func TestSniffImageKinds(t *testing.T) {
	sniffer := exifmeta.NewSniffer()
	cases := []struct {
		name string
		data []byte
		ext  string
		mime string
	}{
		{"jpeg", testsupport.JPEG(t), "jpg", "image/jpeg"},
		{"png", testsupport.PNG(t), "png", "image/png"},
		{"gif", testsupport.GIF(t), "gif", "image/gif"},
	}
	for _, tc := range cases {
		kind, ok := sniffer.Sniff(tc.data)
		if !ok {
			t.Fatalf("%s: expected image kind", tc.name)
		}
		if kind.Extension != tc.ext || kind.MIME != tc.mime {
			t.Fatalf("%s: unexpected kind %+v", tc.name, kind)
		}
	}
}

func TestSniffRejectsNonImages(t *testing.T) {
	sniffer := exifmeta.NewSniffer()
	for _, data := range [][]byte{nil, []byte("<html><body>login</body></html>"), []byte(`{"error": true}`)} {
		if kind, ok := sniffer.Sniff(data); ok {
			t.Fatalf("expected no image kind for %q, got %+v", data, kind)
		}
	}
}

func TestEmbedJPEG(t *testing.T) {
	original := testsupport.JPEG(t)
	embedder := exifmeta.NewEmbedder()

	out, err := embedder.Embed(original, exifmeta.Kind{MIME: "image/jpeg", Extension: "jpg"}, "2024:07:04 10:30:00", "+02:00")
	if err != nil {
		t.Fatalf("Embed: %v", err)
	}
	dateTime, offset := testsupport.CaptureTime(t, out)
	if dateTime != "2024:07:04 10:30:00" || offset != "+02:00" {
		t.Fatalf("unexpected capture time %q %q", dateTime, offset)
	}
	if got := testsupport.JPEGDateTimeOriginal(t, out); got != "2024:07:04 10:30:00" {
		t.Fatalf("independent reader saw %q", got)
	}
	if _, err := jpeg.Decode(bytes.NewReader(out)); err != nil {
		t.Fatalf("embedded jpeg no longer decodes: %v", err)
	}
}

func TestEmbedJPEGOverwritesExistingTags(t *testing.T) {
	embedder := exifmeta.NewEmbedder()
	kind := exifmeta.Kind{MIME: "image/jpeg", Extension: "jpg"}

	first, err := embedder.Embed(testsupport.JPEG(t), kind, "2020:01:01 00:00:00", "-08:00")
	if err != nil {
		t.Fatalf("first Embed: %v", err)
	}
	second, err := embedder.Embed(first, kind, "2024:07:04 00:00:00", "+00:00")
	if err != nil {
		t.Fatalf("second Embed: %v", err)
	}
	dateTime, offset := testsupport.CaptureTime(t, second)
	if dateTime != "2024:07:04 00:00:00" || offset != "+00:00" {
		t.Fatalf("expected overwritten tags, got %q %q", dateTime, offset)
	}
}

func TestEmbedPNGKeepsPixels(t *testing.T) {
	original := testsupport.PNG(t)
	out, err := exifmeta.NewEmbedder().Embed(original, exifmeta.Kind{MIME: "image/png", Extension: "png"}, "2024:07:04 10:30:00", "-07:00")
	if err != nil {
		t.Fatalf("Embed: %v", err)
	}
	dateTime, offset := testsupport.CaptureTime(t, out)
	if dateTime != "2024:07:04 10:30:00" || offset != "-07:00" {
		t.Fatalf("unexpected capture time %q %q", dateTime, offset)
	}

	before, err := png.Decode(bytes.NewReader(original))
	if err != nil {
		t.Fatalf("decode original: %v", err)
	}
	after, err := png.Decode(bytes.NewReader(out))
	if err != nil {
		t.Fatalf("decode embedded: %v", err)
	}
	bounds := before.Bounds()
	if after.Bounds() != bounds {
		t.Fatalf("bounds changed: %v -> %v", bounds, after.Bounds())
	}
	for y := bounds.Min.Y; y < bounds.Max.Y; y++ {
		for x := bounds.Min.X; x < bounds.Max.X; x++ {
			if before.At(x, y) != after.At(x, y) {
				t.Fatalf("pixel (%d,%d) changed", x, y)
			}
		}
	}
}

func TestEmbedUnsupportedKind(t *testing.T) {
	_, err := exifmeta.NewEmbedder().Embed(testsupport.GIF(t), exifmeta.Kind{MIME: "image/gif", Extension: "gif"}, "2024:07:04 10:30:00", "+00:00")
	if !errors.Is(err, exifmeta.ErrUnsupportedKind) {
		t.Fatalf("expected ErrUnsupportedKind, got %v", err)
	}
}
