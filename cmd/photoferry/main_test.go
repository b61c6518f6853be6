package main

import (
	"bytes"
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"golang.org/x/oauth2"

	"photoferry/internal/auth"
	"photoferry/internal/config"
	"photoferry/internal/ledger"
	"photoferry/internal/testsupport"
)

const testClientSecrets = `{"installed":{"client_id":"id","client_secret":"secret","redirect_uris":["http://localhost"],"auth_uri":"https://accounts.example/auth","token_uri":"https://accounts.example/token"}}`

type cliTestEnv struct {
	cfg        *config.Config
	configPath string
	photos     *testsupport.FakePhotos
}

func setupCLITestEnv(t *testing.T) *cliTestEnv {
	t.Helper()
	fake := testsupport.NewFakePhotos(t)
	cfg := testsupport.NewConfig(t, testsupport.WithPhotosBaseURL(fake.URL()))
	configPath := filepath.Join(t.TempDir(), "config.toml")
	writeTestConfig(t, configPath, cfg)
	return &cliTestEnv{cfg: cfg, configPath: configPath, photos: fake}
}

func (e *cliTestEnv) authorize(t *testing.T) {
	t.Helper()
	testsupport.WriteFile(t, e.cfg.Photos.CredentialsFile, []byte(testClientSecrets))
	if err := auth.SaveToken(e.cfg.Photos.TokenFile, &oauth2.Token{
		AccessToken: "access",
		TokenType:   "Bearer",
		Expiry:      time.Now().Add(time.Hour),
	}); err != nil {
		t.Fatalf("SaveToken: %v", err)
	}
}

func writeTestConfig(t *testing.T, path string, cfg *config.Config) {
	t.Helper()
	content := fmt.Sprintf(
		"[paths]\nqueue_dir = %q\nimages_dir = %q\nstate_dir = %q\n\n[photos]\nbase_url = %q\ncredentials_file = %q\ntoken_file = %q\n",
		cfg.Paths.QueueDir,
		cfg.Paths.ImagesDir,
		cfg.Paths.StateDir,
		cfg.Photos.BaseURL,
		cfg.Photos.CredentialsFile,
		cfg.Photos.TokenFile,
	)
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
}

func runCLI(t *testing.T, args []string, configPath string) (string, string, error) {
	t.Helper()
	cmd := newRootCommand()
	var stdout, stderr bytes.Buffer
	cmd.SetOut(&stdout)
	cmd.SetErr(&stderr)
	var flags []string
	if configPath != "" {
		flags = append(flags, "--config", configPath)
	}
	flags = append(flags, "--log-level", "error")
	cmd.SetArgs(append(flags, args...))
	err := cmd.Execute()
	return stdout.String(), stderr.String(), err
}

func requireContains(t *testing.T, haystack, needle string) {
	t.Helper()
	if !strings.Contains(haystack, needle) {
		t.Fatalf("expected output to contain %q, got:\n%s", needle, haystack)
	}
}

func newRedirectServer(t *testing.T) *httptest.Server {
	t.Helper()
	jpeg := testsupport.JPEG(t)
	mux := http.NewServeMux()
	mux.HandleFunc("GET /view/{name}", func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("d") != "t" {
			http.Error(w, "view page", http.StatusBadRequest)
			return
		}
		http.Redirect(w, r, "/x/"+r.PathValue("name"), http.StatusFound)
	})
	mux.HandleFunc("GET /x/{name}", func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write(jpeg)
	})
	server := httptest.NewServer(mux)
	t.Cleanup(server.Close)
	return server
}

func TestConfigInitAndValidate(t *testing.T) {
	env := setupCLITestEnv(t)

	out, _, err := runCLI(t, []string{"config", "validate"}, env.configPath)
	if err != nil {
		t.Fatalf("config validate: %v", err)
	}
	requireContains(t, out, "Configuration valid")
	requireContains(t, out, env.cfg.Paths.QueueDir)

	target := filepath.Join(t.TempDir(), "config.toml")
	out, _, err = runCLI(t, []string{"config", "init", "--path", target}, "")
	if err != nil {
		t.Fatalf("config init: %v", err)
	}
	requireContains(t, out, "Wrote sample configuration")
	if _, err := os.Stat(target); err != nil {
		t.Fatalf("expected config file at %s: %v", target, err)
	}

	if _, _, err := runCLI(t, []string{"config", "init", "--path", target}, ""); err == nil {
		t.Fatal("expected error when config already exists")
	}
}

func TestProcessDefaultsToDryRun(t *testing.T) {
	env := setupCLITestEnv(t)
	server := newRedirectServer(t)
	batchPath := filepath.Join(env.cfg.Paths.QueueDir, "batch.json")
	testsupport.WriteFile(t, batchPath, []byte(fmt.Sprintf(
		`[{"url":"%s/view/photo1.jpg?id=1","timestamp":"2024-07-04T10:30:00+02:00"}]`, server.URL)))

	out, _, err := runCLI(t, []string{"process"}, env.configPath)
	if err != nil {
		t.Fatalf("process: %v", err)
	}
	requireContains(t, out, "Dry run")
	requireContains(t, out, "would archive")
	requireContains(t, out, "batch.json")

	testsupport.AssertExists(t, batchPath)
	testsupport.AssertMissing(t, env.cfg.QueueDoneDir())
	testsupport.AssertMissing(t, env.cfg.Paths.ImagesDir)
	testsupport.AssertMissing(t, env.cfg.Paths.StateDir)
}

func TestProcessRequiresCredentials(t *testing.T) {
	env := setupCLITestEnv(t)
	_, _, err := runCLI(t, []string{"process", "--dry-run=false"}, env.configPath)
	if err == nil {
		t.Fatal("expected error without credentials")
	}
	requireContains(t, err.Error(), "OAuth client")
	testsupport.AssertMissing(t, env.cfg.LockPath())
}

func TestProcessAndUploadEndToEnd(t *testing.T) {
	env := setupCLITestEnv(t)
	env.authorize(t)
	server := newRedirectServer(t)
	queueDir := filepath.Join(t.TempDir(), "incoming")
	testsupport.WriteFile(t, filepath.Join(queueDir, "batch.json"), []byte(fmt.Sprintf(
		`{"urls":[{"url":"%s/view/photo1.jpg?id=1","timestamp":"2024-07-04T10:30:00+02:00","caption":"pier"}]}`, server.URL)))

	out, _, err := runCLI(t, []string{"process", "--dry-run=false", "--queue-dir", queueDir}, env.configPath)
	if err != nil {
		t.Fatalf("process: %v", err)
	}
	requireContains(t, out, "minted 1")
	testsupport.AssertExists(t, filepath.Join(queueDir, "Done", "batch.json"))
	testsupport.AssertExists(t, filepath.Join(env.cfg.ImagesDoneDir(), "photo1.jpg"))

	commits := env.photos.Commits()
	if len(commits) != 1 || commits[0][0].Description == nil || *commits[0][0].Description != "pier" {
		t.Fatalf("unexpected commits: %+v", commits)
	}

	out, _, err = runCLI(t, []string{"upload"}, env.configPath)
	if err != nil {
		t.Fatalf("upload: %v", err)
	}
	requireContains(t, out, "No images to upload")

	out, _, err = runCLI(t, []string{"history", "--batches"}, env.configPath)
	if err != nil {
		t.Fatalf("history: %v", err)
	}
	requireContains(t, out, "process")
	requireContains(t, out, "upload")
	requireContains(t, out, ledger.StatusSucceeded)
	requireContains(t, out, "batch.json")
}

func TestHistoryEmpty(t *testing.T) {
	env := setupCLITestEnv(t)
	out, _, err := runCLI(t, []string{"history"}, env.configPath)
	if err != nil {
		t.Fatalf("history: %v", err)
	}
	requireContains(t, out, "No runs recorded")
}

func TestHistoryShowsFailures(t *testing.T) {
	env := setupCLITestEnv(t)
	store := testsupport.MustOpenLedger(t, env.cfg)
	ctx := context.Background()
	if err := store.BeginRun(ctx, "0123456789abcdef", "upload"); err != nil {
		t.Fatalf("BeginRun: %v", err)
	}
	if err := store.FinishRun(ctx, "0123456789abcdef", ledger.RunTotals{}, fmt.Errorf("commit rejected")); err != nil {
		t.Fatalf("FinishRun: %v", err)
	}

	out, _, err := runCLI(t, []string{"history", "-n", "5"}, env.configPath)
	if err != nil {
		t.Fatalf("history: %v", err)
	}
	requireContains(t, out, "01234567")
	requireContains(t, out, ledger.StatusFailed)
	requireContains(t, out, "commit rejected")
}

func TestPreflightReportsFailures(t *testing.T) {
	env := setupCLITestEnv(t)
	out, _, err := runCLI(t, []string{"preflight"}, env.configPath)
	if err == nil {
		t.Fatal("expected preflight failure without directories or credentials")
	}
	requireContains(t, err.Error(), "checks failed")
	requireContains(t, out, "Queue directory")
	requireContains(t, out, "ERROR")
}

func TestPreflightPasses(t *testing.T) {
	env := setupCLITestEnv(t)
	env.authorize(t)
	if err := env.cfg.EnsureDirectories(); err != nil {
		t.Fatalf("EnsureDirectories: %v", err)
	}
	out, _, err := runCLI(t, []string{"preflight"}, env.configPath)
	if err != nil {
		t.Fatalf("preflight: %v\n%s", err, out)
	}
	requireContains(t, out, "queue empty")
}

func TestTestNotifyWithoutTargets(t *testing.T) {
	env := setupCLITestEnv(t)
	out, _, err := runCLI(t, []string{"test-notify"}, env.configPath)
	if err != nil {
		t.Fatalf("test-notify: %v", err)
	}
	requireContains(t, out, "No ntfy topic")
}
