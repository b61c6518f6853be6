package photos_test

import (
	"context"
	"errors"
	"net/http"
	"path/filepath"
	"testing"

	"photoferry/internal/photos"
	"photoferry/internal/services"
	"photoferry/internal/testsupport"
)

func writeImages(t *testing.T, names ...string) []string {
	t.Helper()
	dir := t.TempDir()
	paths := make([]string, 0, len(names))
	for _, name := range names {
		path := filepath.Join(dir, name)
		testsupport.WriteFile(t, path, []byte("image:"+name))
		paths = append(paths, path)
	}
	return paths
}

func TestUploadSendsRawBytes(t *testing.T) {
	fake := testsupport.NewFakePhotos(t)
	client := photos.NewClient(fake.Server.Client(), photos.WithBaseURL(fake.URL()))
	paths := writeImages(t, "photo1.jpg")

	tok, err := client.Upload(context.Background(), paths[0], "caption")
	if err != nil {
		t.Fatalf("Upload: %v", err)
	}
	if tok.Value != "token-photo1.jpg" || tok.Caption != "caption" || tok.Filename != "photo1.jpg" {
		t.Fatalf("unexpected token %+v", tok)
	}
	uploads := fake.Uploads()
	if len(uploads) != 1 {
		t.Fatalf("expected one upload, got %d", len(uploads))
	}
	got := uploads[0]
	if got.Protocol != "raw" || got.ContentType != "application/octet-stream" || got.Size != len("image:photo1.jpg") {
		t.Fatalf("unexpected upload %+v", got)
	}
}

func TestUploadFailures(t *testing.T) {
	fake := testsupport.NewFakePhotos(t)
	fake.FailUpload("bad.jpg", http.StatusForbidden)
	fake.EmptyTokenFor("empty.jpg")
	client := photos.NewClient(fake.Server.Client(), photos.WithBaseURL(fake.URL()))
	paths := writeImages(t, "bad.jpg", "empty.jpg")

	for _, path := range paths {
		if _, err := client.Upload(context.Background(), path, ""); !errors.Is(err, services.ErrUpload) {
			t.Fatalf("%s: expected upload failure, got %v", path, err)
		}
	}
	if _, err := client.Upload(context.Background(), filepath.Join(t.TempDir(), "missing.jpg"), ""); !errors.Is(err, services.ErrUpload) {
		t.Fatalf("expected upload failure for missing file, got %v", err)
	}
}

func TestUploadAllLooksUpCaptionsByStem(t *testing.T) {
	fake := testsupport.NewFakePhotos(t)
	client := photos.NewClient(fake.Server.Client(), photos.WithBaseURL(fake.URL()), photos.WithConcurrency(2))
	paths := writeImages(t, "a.jpg", "b.png", "c.gif")

	tokens, err := client.UploadAll(context.Background(), paths, map[string]string{"a": "Alpha", "b": ""})
	if err != nil {
		t.Fatalf("UploadAll: %v", err)
	}
	if len(tokens) != 3 {
		t.Fatalf("expected three tokens, got %d", len(tokens))
	}
	if tokens[0].Caption != "Alpha" || tokens[1].Caption != "" || tokens[2].Caption != "" {
		t.Fatalf("unexpected captions %+v", tokens)
	}
	for i, tok := range tokens {
		if tok.Path != paths[i] {
			t.Fatalf("token %d out of order: %q", i, tok.Path)
		}
	}
}

func TestUploadAllFailureDoesNotCancelSiblings(t *testing.T) {
	fake := testsupport.NewFakePhotos(t)
	fake.FailUpload("b.jpg", http.StatusInternalServerError)
	client := photos.NewClient(fake.Server.Client(), photos.WithBaseURL(fake.URL()), photos.WithConcurrency(1))
	paths := writeImages(t, "a.jpg", "b.jpg", "c.jpg")

	tokens, err := client.UploadAll(context.Background(), paths, nil)
	if !errors.Is(err, services.ErrUpload) {
		t.Fatalf("expected upload failure, got %v", err)
	}
	if len(fake.Uploads()) != 3 {
		t.Fatalf("expected every upload to be attempted, got %d", len(fake.Uploads()))
	}
	if len(tokens) != 2 || tokens[0].Filename != "a.jpg" || tokens[1].Filename != "c.jpg" {
		t.Fatalf("unexpected surviving tokens %+v", tokens)
	}
}

func TestCommitEmptyMakesNoCall(t *testing.T) {
	fake := testsupport.NewFakePhotos(t)
	client := photos.NewClient(fake.Server.Client(), photos.WithBaseURL(fake.URL()))

	result, err := client.Commit(context.Background(), nil)
	if err != nil {
		t.Fatalf("Commit: %v", err)
	}
	if result.Called {
		t.Fatal("expected no remote call")
	}
	if len(fake.Commits()) != 0 {
		t.Fatalf("expected no batchCreate request, got %d", len(fake.Commits()))
	}
}

func TestCommitOmitsEmptyDescriptions(t *testing.T) {
	fake := testsupport.NewFakePhotos(t)
	client := photos.NewClient(fake.Server.Client(), photos.WithBaseURL(fake.URL()))

	result, err := client.Commit(context.Background(), []photos.Token{
		{Value: "t1", Caption: "Beach day", Filename: "a.jpg"},
		{Value: "t2", Caption: "", Filename: "b.jpg"},
	})
	if err != nil {
		t.Fatalf("Commit: %v", err)
	}
	commits := fake.Commits()
	if len(commits) != 1 || len(commits[0]) != 2 {
		t.Fatalf("expected exactly one call with two items, got %+v", commits)
	}
	first, second := commits[0][0], commits[0][1]
	if first.Description == nil || *first.Description != "Beach day" || first.UploadToken != "t1" {
		t.Fatalf("unexpected first item %+v", first)
	}
	if second.Description != nil {
		t.Fatalf("expected description to be absent, got %q", *second.Description)
	}
	if !result.Called || len(result.Items) != 2 || result.Failed() != 0 {
		t.Fatalf("unexpected result %+v", result)
	}
}

func TestCommitReportsItemFailures(t *testing.T) {
	fake := testsupport.NewFakePhotos(t)
	fake.FailItem("b.jpg")
	client := photos.NewClient(fake.Server.Client(), photos.WithBaseURL(fake.URL()))

	result, err := client.Commit(context.Background(), []photos.Token{
		{Value: "t1", Filename: "a.jpg"},
		{Value: "t2", Filename: "b.jpg"},
	})
	if err != nil {
		t.Fatalf("Commit: %v", err)
	}
	if result.Failed() != 1 || result.Items[1].Filename != "b.jpg" || result.Items[1].OK() {
		t.Fatalf("unexpected item results %+v", result.Items)
	}
	if rejected := result.Rejected(); len(rejected) != 1 || !rejected["b.jpg"] {
		t.Fatalf("unexpected rejected set %v", rejected)
	}
}

func TestCommitNon2xxIsCommitFailure(t *testing.T) {
	fake := testsupport.NewFakePhotos(t)
	fake.SetCommitStatus(http.StatusBadRequest)
	client := photos.NewClient(fake.Server.Client(), photos.WithBaseURL(fake.URL()))

	_, err := client.Commit(context.Background(), []photos.Token{{Value: "t1", Filename: "a.jpg"}})
	if !errors.Is(err, services.ErrCommit) {
		t.Fatalf("expected commit failure, got %v", err)
	}
}
