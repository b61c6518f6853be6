package preflight

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	"golang.org/x/sys/unix"

	"photoferry/internal/auth"
	"photoferry/internal/batch"
	"photoferry/internal/config"
	"photoferry/internal/ledger"
)

// CheckDirectoryAccess verifies that the directory exists and is readable/writable.
func CheckDirectoryAccess(name, path string) Result {
	info, err := os.Stat(path)
	if err != nil {
		if os.IsNotExist(err) {
			return Result{Name: name, Detail: fmt.Sprintf("%s (error: does not exist)", path)}
		}
		return Result{Name: name, Detail: fmt.Sprintf("%s (error: stat: %v)", path, err)}
	}
	if !info.IsDir() {
		return Result{Name: name, Detail: fmt.Sprintf("%s (error: is not a directory)", path)}
	}
	if err := unix.Access(path, unix.R_OK|unix.W_OK|unix.X_OK); err != nil {
		return Result{Name: name, Detail: fmt.Sprintf("%s (error: insufficient permissions: %v)", path, err)}
	}
	return Result{Name: name, Passed: true, Detail: fmt.Sprintf("%s (read/write ok)", path)}
}

// CheckQueue counts batch files waiting in the queue directory.
func CheckQueue(queueDir string) Result {
	const name = "Pending batches"
	paths, err := batch.Discover(queueDir)
	if err != nil {
		return Result{Name: name, Detail: err.Error()}
	}
	switch len(paths) {
	case 0:
		return Result{Name: name, Passed: true, Detail: "queue empty"}
	case 1:
		return Result{Name: name, Passed: true, Detail: "1 batch waiting"}
	default:
		return Result{Name: name, Passed: true, Detail: fmt.Sprintf("%d batches waiting", len(paths))}
	}
}

// CheckClientSecrets verifies the OAuth client secrets file parses.
func CheckClientSecrets(path string) Result {
	const name = "OAuth client"
	conf, err := auth.LoadClientConfig(path)
	if err != nil {
		return Result{Name: name, Detail: err.Error()}
	}
	return Result{Name: name, Passed: true, Detail: fmt.Sprintf("client %s", conf.ClientID)}
}

// CheckToken verifies a cached token exists and can be refreshed.
func CheckToken(path string) Result {
	const name = "Cached token"
	tok, err := auth.LoadToken(path)
	if err != nil {
		if errors.Is(err, auth.ErrNotAuthorized) {
			return Result{Name: name, Detail: "missing (run `photoferry authorize`)"}
		}
		return Result{Name: name, Detail: err.Error()}
	}
	if tok.RefreshToken != "" {
		return Result{Name: name, Passed: true, Detail: "refresh token present"}
	}
	if tok.Expiry.IsZero() || tok.Expiry.After(time.Now()) {
		return Result{Name: name, Passed: true, Detail: "access token only (cannot refresh)"}
	}
	return Result{Name: name, Detail: fmt.Sprintf("access token expired %s, no refresh token", tok.Expiry.Format(time.RFC3339))}
}

// CheckCredentials reports the first failing credential check, or nil.
func CheckCredentials(cfg *config.Config) error {
	for _, r := range []Result{CheckClientSecrets(cfg.Photos.CredentialsFile), CheckToken(cfg.Photos.TokenFile)} {
		if !r.Passed {
			return fmt.Errorf("%s: %s", r.Name, r.Detail)
		}
	}
	return nil
}

// CheckLedger opens the history database and reports the most recent run.
func CheckLedger(ctx context.Context, cfg *config.Config) Result {
	const name = "Run history"
	store, err := ledger.Open(cfg)
	if err != nil {
		return Result{Name: name, Detail: err.Error()}
	}
	defer store.Close()

	runs, err := store.RecentRuns(ctx, 1)
	if err != nil {
		return Result{Name: name, Detail: err.Error()}
	}
	if len(runs) == 0 {
		return Result{Name: name, Passed: true, Detail: "no runs recorded"}
	}
	last := runs[0]
	return Result{
		Name:   name,
		Passed: true,
		Detail: fmt.Sprintf("last %s run %s at %s", last.Command, last.Status, last.StartedAt.Local().Format("2006-01-02 15:04")),
	}
}
