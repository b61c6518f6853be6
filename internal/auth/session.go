package auth

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"net/http"
	"os"
	"path/filepath"
	"sync"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"

	"photoferry/internal/config"
	"photoferry/internal/fileutil"
	"photoferry/internal/services"
)

// PhotosAppendOnlyScope allows uploading and creating media items only.
const PhotosAppendOnlyScope = "https://www.googleapis.com/auth/photoslibrary.appendonly"

// ErrNotAuthorized reports a missing or unusable cached token.
var ErrNotAuthorized = errors.New("not authorized: run `photoferry authorize`")

// LoadClientConfig reads the OAuth client secrets file.
func LoadClientConfig(path string) (*oauth2.Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, services.Wrap(services.ErrConfiguration, "auth", "read client secrets", path, err)
	}
	conf, err := google.ConfigFromJSON(data, PhotosAppendOnlyScope)
	if err != nil {
		return nil, services.Wrap(services.ErrConfiguration, "auth", "parse client secrets", path, err)
	}
	return conf, nil
}

// LoadToken reads a cached token file.
func LoadToken(path string) (*oauth2.Token, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, services.Wrap(services.ErrConfiguration, "auth", "load token", path, ErrNotAuthorized)
		}
		return nil, services.Wrap(services.ErrConfiguration, "auth", "load token", path, err)
	}
	var tok oauth2.Token
	if err := json.Unmarshal(data, &tok); err != nil {
		return nil, services.Wrap(services.ErrConfiguration, "auth", "decode token", path, err)
	}
	if tok.AccessToken == "" && tok.RefreshToken == "" {
		return nil, services.Wrap(services.ErrConfiguration, "auth", "load token", path, ErrNotAuthorized)
	}
	return &tok, nil
}

// SaveToken writes tok to path with owner-only permissions.
func SaveToken(path string, tok *oauth2.Token) error {
	data, err := json.MarshalIndent(tok, "", "  ")
	if err != nil {
		return fmt.Errorf("encode token: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return fmt.Errorf("create token dir: %w", err)
	}
	if err := fileutil.WriteFileAtomic(path, data, 0o600); err != nil {
		return fmt.Errorf("write token: %w", err)
	}
	return nil
}

// persistingSource writes the token back whenever the wrapped source
// returns a new access token.
type persistingSource struct {
	mu      sync.Mutex
	path    string
	base    oauth2.TokenSource
	current string
}

func (s *persistingSource) Token() (*oauth2.Token, error) {
	tok, err := s.base.Token()
	if err != nil {
		return nil, services.Wrap(services.ErrConfiguration, "auth", "refresh token", "", err)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if tok.AccessToken != s.current {
		if err := SaveToken(s.path, tok); err != nil {
			return nil, err
		}
		s.current = tok.AccessToken
	}
	return tok, nil
}

// NewSession returns an HTTP client that authorizes every request with the
// cached token, refreshing it as needed. base supplies the transport and
// timeout; nil uses http.DefaultClient.
func NewSession(ctx context.Context, cfg *config.Config, base *http.Client) (*http.Client, error) {
	conf, err := LoadClientConfig(cfg.Photos.CredentialsFile)
	if err != nil {
		return nil, err
	}
	tok, err := LoadToken(cfg.Photos.TokenFile)
	if err != nil {
		return nil, err
	}
	if !tok.Valid() && tok.RefreshToken == "" {
		return nil, services.Wrap(services.ErrConfiguration, "auth", "load token", "token expired without refresh token", ErrNotAuthorized)
	}

	if base == nil {
		base = http.DefaultClient
	}
	ctx = context.WithValue(ctx, oauth2.HTTPClient, base)
	source := &persistingSource{
		path:    cfg.Photos.TokenFile,
		base:    conf.TokenSource(ctx, tok),
		current: tok.AccessToken,
	}
	client := oauth2.NewClient(ctx, oauth2.ReuseTokenSource(tok, source))
	client.Timeout = base.Timeout
	return client, nil
}
