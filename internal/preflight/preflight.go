package preflight

import (
	"context"

	"photoferry/internal/config"
)

// Result reports the outcome of a single preflight check.
type Result struct {
	Name   string
	Passed bool
	Detail string
}

// RunAll executes all applicable preflight checks for the given config.
func RunAll(ctx context.Context, cfg *config.Config) []Result {
	if cfg == nil {
		return nil
	}

	results := []Result{
		CheckDirectoryAccess("Queue directory", cfg.Paths.QueueDir),
		CheckDirectoryAccess("Images directory", cfg.Paths.ImagesDir),
		CheckQueue(cfg.Paths.QueueDir),
		CheckClientSecrets(cfg.Photos.CredentialsFile),
		CheckToken(cfg.Photos.TokenFile),
	}

	if cfg.Ledger.Enabled {
		results = append(results, CheckLedger(ctx, cfg))
	}

	return results
}

// Failed returns the checks that did not pass.
func Failed(results []Result) []Result {
	var out []Result
	for _, r := range results {
		if !r.Passed {
			out = append(out, r)
		}
	}
	return out
}
