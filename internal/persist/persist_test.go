package persist_test

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"photoferry/internal/exifmeta"
	"photoferry/internal/fetch"
	"photoferry/internal/persist"
	"photoferry/internal/services"
	"photoferry/internal/testsupport"
)

func mustParse(t *testing.T, value string) time.Time {
	t.Helper()
	ts, err := time.Parse(time.RFC3339, value)
	if err != nil {
		t.Fatalf("parse %q: %v", value, err)
	}
	return ts
}

func TestPersistJPEGEmbedsCaptureTime(t *testing.T) {
	dir := t.TempDir()
	p := persist.New(dir, time.UTC, nil, nil)

	outcome, err := p.Persist(context.Background(), fetch.Result{
		Filename: "photo1.jpeg",
		TakenAt:  mustParse(t, "2024-07-04T10:30:00+02:00"),
		Payload:  testsupport.JPEG(t),
	})
	if err != nil {
		t.Fatalf("Persist: %v", err)
	}
	want := filepath.Join(dir, "photo1.jpg")
	if outcome.Path != want || !outcome.Embedded {
		t.Fatalf("unexpected outcome %+v", outcome)
	}
	data, err := os.ReadFile(want)
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	dateTime, offset := testsupport.CaptureTime(t, data)
	if dateTime != "2024:07:04 10:30:00" || offset != "+02:00" {
		t.Fatalf("unexpected capture time %q %q", dateTime, offset)
	}
}

func TestPersistUsesSniffedExtension(t *testing.T) {
	dir := t.TempDir()
	p := persist.New(dir, time.UTC, nil, nil)

	outcome, err := p.Persist(context.Background(), fetch.Result{
		Filename: "mislabeled.jpg",
		TakenAt:  mustParse(t, "2024-07-04T00:00:00Z"),
		Payload:  testsupport.PNG(t),
	})
	if err != nil {
		t.Fatalf("Persist: %v", err)
	}
	if filepath.Base(outcome.Path) != "mislabeled.png" {
		t.Fatalf("expected png extension, got %q", outcome.Path)
	}
	testsupport.AssertMissing(t, filepath.Join(dir, "mislabeled.jpg"))
}

func TestPersistNaiveTimestampUsesReferenceZone(t *testing.T) {
	loc, err := time.LoadLocation("America/Los_Angeles")
	if err != nil {
		t.Fatalf("load location: %v", err)
	}
	dir := t.TempDir()
	p := persist.New(dir, loc, nil, nil)

	outcome, err := p.Persist(context.Background(), fetch.Result{
		Filename:  "naive.jpg",
		Timestamp: "2024-01-15T09:00:00",
		Payload:   testsupport.JPEG(t),
	})
	if err != nil {
		t.Fatalf("Persist: %v", err)
	}
	data, err := os.ReadFile(outcome.Path)
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	dateTime, offset := testsupport.CaptureTime(t, data)
	if dateTime != "2024:01:15 09:00:00" || offset != "-08:00" {
		t.Fatalf("unexpected capture time %q %q", dateTime, offset)
	}
}

func TestPersistSkipsNonImage(t *testing.T) {
	dir := t.TempDir()
	p := persist.New(dir, time.UTC, nil, nil)

	outcome, err := p.Persist(context.Background(), fetch.Result{
		Filename: "login.jpg",
		TakenAt:  mustParse(t, "2024-07-04T00:00:00Z"),
		Payload:  []byte("<html>please sign in</html>"),
	})
	if !persist.IsSkip(err) || !errors.Is(err, services.ErrWrite) {
		t.Fatalf("expected unrecognized-format write failure, got %v", err)
	}
	if !outcome.Skipped {
		t.Fatalf("expected skipped outcome, got %+v", outcome)
	}
	if names := testsupport.ListNames(t, dir); len(names) != 0 {
		t.Fatalf("expected no files, got %v", names)
	}
}

func TestPersistWritesUnsupportedKindUnchanged(t *testing.T) {
	dir := t.TempDir()
	p := persist.New(dir, time.UTC, nil, nil)
	payload := testsupport.GIF(t)

	outcome, err := p.Persist(context.Background(), fetch.Result{
		Filename: "anim.gif",
		TakenAt:  mustParse(t, "2024-07-04T00:00:00Z"),
		Payload:  payload,
	})
	if err != nil {
		t.Fatalf("Persist: %v", err)
	}
	if outcome.Embedded {
		t.Fatal("expected gif to be stored without embedding")
	}
	data, err := os.ReadFile(filepath.Join(dir, "anim.gif"))
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if string(data) != string(payload) {
		t.Fatal("expected gif bytes to be unchanged")
	}
}

func TestPersistDryRunTouchesNothing(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "images")
	p := persist.New(dir, time.UTC, nil, nil)

	outcome, err := p.Persist(context.Background(), fetch.Result{
		Filename: "photo1.jpg",
		TakenAt:  mustParse(t, "2024-07-04T00:00:00Z"),
	})
	if err != nil {
		t.Fatalf("Persist: %v", err)
	}
	if !outcome.DryRun || outcome.Stem != "photo1" {
		t.Fatalf("unexpected outcome %+v", outcome)
	}
	testsupport.AssertMissing(t, dir)
}

type failingEmbedder struct{}

func (failingEmbedder) Embed([]byte, exifmeta.Kind, string, string) ([]byte, error) {
	return nil, errors.New("corrupt container")
}

func TestPersistEmbedFailureIsWriteFailure(t *testing.T) {
	dir := t.TempDir()
	p := persist.New(dir, time.UTC, failingEmbedder{}, nil)

	_, err := p.Persist(context.Background(), fetch.Result{
		Filename: "photo.jpg",
		TakenAt:  mustParse(t, "2024-07-04T00:00:00Z"),
		Payload:  testsupport.JPEG(t),
	})
	if !errors.Is(err, services.ErrWrite) || persist.IsSkip(err) {
		t.Fatalf("expected write failure, got %v", err)
	}
	if names := testsupport.ListNames(t, dir); len(names) != 0 {
		t.Fatalf("expected no files, got %v", names)
	}
}
