package archive_test

import (
	"errors"
	"path/filepath"
	"testing"

	"photoferry/internal/archive"
	"photoferry/internal/services"
	"photoferry/internal/testsupport"
)

func TestFinalizeBatchMovesFile(t *testing.T) {
	queue := t.TempDir()
	path := filepath.Join(queue, "batch.json")
	testsupport.WriteFile(t, path, []byte("[]"))

	target, err := archive.FinalizeBatch(path, filepath.Join(queue, "Done"))
	if err != nil {
		t.Fatalf("FinalizeBatch: %v", err)
	}
	testsupport.AssertMissing(t, path)
	testsupport.AssertExists(t, target)
	if target != filepath.Join(queue, "Done", "batch.json") {
		t.Fatalf("unexpected target %q", target)
	}
}

func TestFinalizeBatchMissingSource(t *testing.T) {
	queue := t.TempDir()
	_, err := archive.FinalizeBatch(filepath.Join(queue, "gone.json"), filepath.Join(queue, "Done"))
	if !errors.Is(err, services.ErrWrite) {
		t.Fatalf("expected write failure, got %v", err)
	}
}

func TestArchiveUploadedMovesEveryImage(t *testing.T) {
	images := t.TempDir()
	var paths []string
	for _, name := range []string{"a.jpg", "b.png"} {
		path := filepath.Join(images, name)
		testsupport.WriteFile(t, path, []byte(name))
		paths = append(paths, path)
	}
	paths = append(paths, filepath.Join(images, "vanished.jpg"))

	done := filepath.Join(images, "Done")
	moved, err := archive.ArchiveUploaded(paths, done)
	if err == nil {
		t.Fatal("expected error for vanished image")
	}
	if len(moved) != 2 {
		t.Fatalf("expected two moved images, got %v", moved)
	}
	names := testsupport.ListNames(t, done)
	if len(names) != 2 || names[0] != "a.jpg" || names[1] != "b.png" {
		t.Fatalf("unexpected done contents %v", names)
	}
}
