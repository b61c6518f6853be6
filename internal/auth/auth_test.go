package auth_test

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"os"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"golang.org/x/oauth2"

	"photoferry/internal/auth"
	"photoferry/internal/config"
	"photoferry/internal/services"
	"photoferry/internal/testsupport"
)

type fakeGoogle struct {
	server   *httptest.Server
	refreshes atomic.Int32
	lastAuth atomic.Value
}

func newFakeGoogle(t *testing.T) *fakeGoogle {
	t.Helper()
	fake := &fakeGoogle{}
	mux := http.NewServeMux()
	mux.HandleFunc("/token", func(w http.ResponseWriter, r *http.Request) {
		if err := r.ParseForm(); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		switch r.PostForm.Get("grant_type") {
		case "refresh_token":
			fake.refreshes.Add(1)
			_, _ = io.WriteString(w, `{"access_token":"refreshed","token_type":"Bearer","expires_in":3600}`)
		case "authorization_code":
			if r.PostForm.Get("code") != "good-code" {
				http.Error(w, `{"error":"invalid_grant"}`, http.StatusBadRequest)
				return
			}
			_, _ = io.WriteString(w, `{"access_token":"fresh","refresh_token":"r1","token_type":"Bearer","expires_in":3600}`)
		default:
			http.Error(w, "unsupported grant", http.StatusBadRequest)
		}
	})
	mux.HandleFunc("/api", func(w http.ResponseWriter, r *http.Request) {
		fake.lastAuth.Store(r.Header.Get("Authorization"))
		_, _ = io.WriteString(w, "ok")
	})
	fake.server = httptest.NewServer(mux)
	t.Cleanup(fake.server.Close)
	return fake
}

func writeClientSecrets(t *testing.T, cfg *config.Config, tokenURL string) {
	t.Helper()
	secrets := fmt.Sprintf(`{"installed":{"client_id":"id","client_secret":"secret","redirect_uris":["http://localhost"],"auth_uri":"https://accounts.example/auth","token_uri":%q}}`, tokenURL)
	testsupport.WriteFile(t, cfg.Photos.CredentialsFile, []byte(secrets))
}

func TestNewSessionRefreshesAndPersistsToken(t *testing.T) {
	fake := newFakeGoogle(t)
	cfg := testsupport.NewConfig(t)
	writeClientSecrets(t, cfg, fake.server.URL+"/token")
	if err := auth.SaveToken(cfg.Photos.TokenFile, &oauth2.Token{
		AccessToken:  "stale",
		RefreshToken: "r1",
		TokenType:    "Bearer",
		Expiry:       time.Now().Add(-time.Hour),
	}); err != nil {
		t.Fatalf("SaveToken: %v", err)
	}

	client, err := auth.NewSession(context.Background(), cfg, fake.server.Client())
	if err != nil {
		t.Fatalf("NewSession: %v", err)
	}
	resp, err := client.Get(fake.server.URL + "/api")
	if err != nil {
		t.Fatalf("GET: %v", err)
	}
	resp.Body.Close()

	if got := fake.lastAuth.Load(); got != "Bearer refreshed" {
		t.Fatalf("unexpected Authorization header %v", got)
	}
	if fake.refreshes.Load() != 1 {
		t.Fatalf("expected one refresh, got %d", fake.refreshes.Load())
	}
	saved, err := auth.LoadToken(cfg.Photos.TokenFile)
	if err != nil {
		t.Fatalf("LoadToken: %v", err)
	}
	if saved.AccessToken != "refreshed" || saved.RefreshToken != "r1" {
		t.Fatalf("expected refreshed token on disk, got %+v", saved)
	}
	info, err := os.Stat(cfg.Photos.TokenFile)
	if err != nil {
		t.Fatalf("stat token: %v", err)
	}
	if info.Mode().Perm() != 0o600 {
		t.Fatalf("unexpected token mode %v", info.Mode().Perm())
	}
}

func TestNewSessionWithoutTokenAsksForAuthorization(t *testing.T) {
	fake := newFakeGoogle(t)
	cfg := testsupport.NewConfig(t)
	writeClientSecrets(t, cfg, fake.server.URL+"/token")

	_, err := auth.NewSession(context.Background(), cfg, nil)
	if !errors.Is(err, auth.ErrNotAuthorized) || !errors.Is(err, services.ErrConfiguration) {
		t.Fatalf("expected not-authorized configuration error, got %v", err)
	}
}

func TestNewSessionMissingClientSecrets(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	_, err := auth.NewSession(context.Background(), cfg, nil)
	if !errors.Is(err, services.ErrConfiguration) {
		t.Fatalf("expected configuration error, got %v", err)
	}
}

func TestAuthorizeLoopbackFlow(t *testing.T) {
	fake := newFakeGoogle(t)
	cfg := testsupport.NewConfig(t)
	writeClientSecrets(t, cfg, fake.server.URL+"/token")

	opts := auth.AuthorizeOptions{
		Timeout: 10 * time.Second,
		OnURL: func(authURL string) {
			parsed, err := url.Parse(authURL)
			if err != nil {
				t.Errorf("parse auth url: %v", err)
				return
			}
			query := parsed.Query()
			if query.Get("access_type") != "offline" || query.Get("prompt") != "consent" {
				t.Errorf("expected offline consent url, got %s", authURL)
			}
			callback := query.Get("redirect_uri") + "?code=good-code&state=" + url.QueryEscape(query.Get("state"))
			go func() {
				resp, err := http.Get(callback)
				if err != nil {
					t.Errorf("callback: %v", err)
					return
				}
				resp.Body.Close()
			}()
		},
	}

	var out strings.Builder
	if err := auth.Authorize(context.Background(), cfg, &out, opts); err != nil {
		t.Fatalf("Authorize: %v", err)
	}
	tok, err := auth.LoadToken(cfg.Photos.TokenFile)
	if err != nil {
		t.Fatalf("LoadToken: %v", err)
	}
	if tok.AccessToken != "fresh" || tok.RefreshToken != "r1" {
		t.Fatalf("unexpected saved token %+v", tok)
	}
	if !strings.Contains(out.String(), "Token saved to") {
		t.Fatalf("unexpected output %q", out.String())
	}
}

func TestAuthorizeRejectsStateMismatch(t *testing.T) {
	fake := newFakeGoogle(t)
	cfg := testsupport.NewConfig(t)
	writeClientSecrets(t, cfg, fake.server.URL+"/token")

	opts := auth.AuthorizeOptions{
		Timeout: 10 * time.Second,
		OnURL: func(authURL string) {
			parsed, _ := url.Parse(authURL)
			callback := parsed.Query().Get("redirect_uri") + "?code=good-code&state=forged"
			go func() {
				if resp, err := http.Get(callback); err == nil {
					resp.Body.Close()
				}
			}()
		},
	}
	var out strings.Builder
	err := auth.Authorize(context.Background(), cfg, &out, opts)
	if err == nil {
		t.Fatal("expected state mismatch error")
	}
	testsupport.AssertMissing(t, cfg.Photos.TokenFile)
}
