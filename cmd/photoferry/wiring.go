package main

import (
	"context"
	"log/slog"
	"net/http"

	"photoferry/internal/auth"
	"photoferry/internal/config"
	"photoferry/internal/fetch"
	"photoferry/internal/ledger"
	"photoferry/internal/notifications"
	"photoferry/internal/persist"
	"photoferry/internal/photos"
	"photoferry/internal/pipeline"
	"photoferry/internal/preflight"
)

// runtime holds the collaborators for one command invocation.
type runtime struct {
	pipeline *pipeline.Pipeline
	store    *ledger.Store
}

func (r *runtime) Close() {
	if r != nil && r.store != nil {
		_ = r.store.Close()
	}
}

// buildRuntime assembles a pipeline. Dry runs get neither an authenticated
// session nor a ledger, so they need no credentials and open no files.
func buildRuntime(ctx context.Context, cfg *config.Config, logger *slog.Logger, dryRun bool) (*runtime, error) {
	key, value := cfg.RedirectQuery()
	fetcher := fetch.New(
		&http.Client{Timeout: cfg.FetchTimeout()},
		fetch.WithDryRun(dryRun),
		fetch.WithRedirectParam(key, value),
		fetch.WithUserAgent(cfg.Fetch.UserAgent),
		fetch.WithConcurrency(cfg.Fetch.Concurrency),
		fetch.WithLogger(logger),
	)
	persister := persist.New(cfg.Paths.ImagesDir, cfg.Location(), nil, nil,
		persist.WithFallbackExtension(cfg.Persist.FallbackExtension),
		persist.WithLogger(logger),
	)

	deps := pipeline.Deps{Fetcher: fetcher, Persister: persister}
	rt := &runtime{}
	if !dryRun {
		if err := preflight.CheckCredentials(cfg); err != nil {
			return nil, err
		}
		session, err := auth.NewSession(ctx, cfg, &http.Client{Timeout: cfg.UploadTimeout()})
		if err != nil {
			return nil, err
		}
		deps.Photos = photos.NewClient(session,
			photos.WithBaseURL(cfg.Photos.BaseURL),
			photos.WithConcurrency(cfg.Upload.Concurrency),
			photos.WithLogger(logger),
		)
		if cfg.Ledger.Enabled {
			store, err := ledger.Open(cfg)
			if err != nil {
				return nil, err
			}
			rt.store = store
			deps.Ledger = store
		}
		deps.Notifier = notifications.NewService(cfg)
		deps.Health = notifications.NewHealthcheck(cfg)
	}

	p, err := pipeline.New(cfg, deps, logger)
	if err != nil {
		rt.Close()
		return nil, err
	}
	rt.pipeline = p
	return rt, nil
}
