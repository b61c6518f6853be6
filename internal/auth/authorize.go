package auth

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"time"

	"github.com/google/uuid"
	"golang.org/x/oauth2"

	"photoferry/internal/config"
	"photoferry/internal/services"
)

// AuthorizeOptions customizes the consent flow.
type AuthorizeOptions struct {
	// OnURL receives the consent URL after it is printed. Tests use it to
	// drive the loopback callback.
	OnURL func(authURL string)
	// Timeout bounds the wait for the browser callback. Zero means 5 minutes.
	Timeout time.Duration
}

type callbackResult struct {
	code string
	err  error
}

// Authorize runs the loopback OAuth flow: it listens on 127.0.0.1, prints the
// consent URL to out, waits for the redirect, exchanges the code, and saves
// the token file.
func Authorize(ctx context.Context, cfg *config.Config, out io.Writer, opts AuthorizeOptions) error {
	conf, err := LoadClientConfig(cfg.Photos.CredentialsFile)
	if err != nil {
		return err
	}

	listener, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		return fmt.Errorf("listen for callback: %w", err)
	}
	conf.RedirectURL = fmt.Sprintf("http://%s/callback", listener.Addr().String())
	state := uuid.NewString()

	results := make(chan callbackResult, 1)
	mux := http.NewServeMux()
	mux.HandleFunc("/callback", func(w http.ResponseWriter, r *http.Request) {
		query := r.URL.Query()
		switch {
		case query.Get("state") != state:
			http.Error(w, "state mismatch", http.StatusBadRequest)
			deliver(results, callbackResult{err: errors.New("callback state mismatch")})
		case query.Get("error") != "":
			http.Error(w, "authorization denied", http.StatusForbidden)
			deliver(results, callbackResult{err: fmt.Errorf("authorization denied: %s", query.Get("error"))})
		case query.Get("code") == "":
			http.Error(w, "missing code", http.StatusBadRequest)
			deliver(results, callbackResult{err: errors.New("callback missing code")})
		default:
			_, _ = io.WriteString(w, "photoferry is authorized. You can close this window.\n")
			deliver(results, callbackResult{code: query.Get("code")})
		}
	})
	server := &http.Server{Handler: mux, ReadHeaderTimeout: 10 * time.Second}
	go func() { _ = server.Serve(listener) }()
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		_ = server.Shutdown(shutdownCtx)
	}()

	authURL := conf.AuthCodeURL(state, oauth2.AccessTypeOffline, oauth2.ApprovalForce)
	fmt.Fprintf(out, "Open this URL in a browser to authorize photoferry:\n\n  %s\n\n", authURL)
	if opts.OnURL != nil {
		opts.OnURL(authURL)
	}

	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = 5 * time.Minute
	}
	waitCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	var result callbackResult
	select {
	case result = <-results:
	case <-waitCtx.Done():
		return services.Wrap(services.ErrConfiguration, "auth", "authorize", "waiting for browser callback", waitCtx.Err())
	}
	if result.err != nil {
		return services.Wrap(services.ErrConfiguration, "auth", "authorize", "", result.err)
	}

	tok, err := conf.Exchange(ctx, result.code)
	if err != nil {
		return services.Wrap(services.ErrConfiguration, "auth", "exchange code", "", err)
	}
	if err := SaveToken(cfg.Photos.TokenFile, tok); err != nil {
		return err
	}
	fmt.Fprintf(out, "Token saved to %s\n", cfg.Photos.TokenFile)
	return nil
}

func deliver(ch chan<- callbackResult, result callbackResult) {
	select {
	case ch <- result:
	default:
	}
}
