package fetch_test

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"photoferry/internal/batch"
	"photoferry/internal/fetch"
	"photoferry/internal/services"
)

func newRedirectServer(t *testing.T, missingQuery *atomic.Int32) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()
	mux.HandleFunc("/img", func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("d") != "t" {
			missingQuery.Add(1)
			http.Error(w, "view page", http.StatusTeapot)
			return
		}
		http.Redirect(w, r, "/x/"+r.URL.Query().Get("name"), http.StatusFound)
	})
	mux.HandleFunc("/x/", func(w http.ResponseWriter, r *http.Request) {
		if strings.HasSuffix(r.URL.Path, "slow.jpg") {
			time.Sleep(20 * time.Millisecond)
		}
		_, _ = w.Write([]byte("bytes:" + r.URL.Path))
	})
	mux.HandleFunc("/broken", func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "nope", http.StatusInternalServerError)
	})
	mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("root"))
	})
	server := httptest.NewServer(mux)
	t.Cleanup(server.Close)
	return server
}

func entry(url string) batch.Entry {
	return batch.Entry{URL: url, Timestamp: "2024-07-04T10:30:00+02:00", Caption: "cap"}
}

func TestFetchFollowsRedirectAndResolvesFilename(t *testing.T) {
	var missing atomic.Int32
	server := newRedirectServer(t, &missing)
	f := fetch.New(server.Client())

	result, err := f.Fetch(context.Background(), 3, entry(server.URL+"/img?name=photo1.jpg"))
	if err != nil {
		t.Fatalf("Fetch: %v", err)
	}
	if missing.Load() != 0 {
		t.Fatal("expected redirect parameter on request")
	}
	if result.Filename != "photo1.jpg" || result.Stem() != "photo1" {
		t.Fatalf("unexpected filename %q", result.Filename)
	}
	if string(result.Payload) != "bytes:/x/photo1.jpg" {
		t.Fatalf("unexpected payload %q", result.Payload)
	}
	if result.Index != 3 || result.Caption != "cap" {
		t.Fatalf("unexpected result: %+v", result)
	}
	if !strings.HasSuffix(result.FinalURL, "/x/photo1.jpg") {
		t.Fatalf("unexpected final url %q", result.FinalURL)
	}
}

func TestFetchUnescapesFilename(t *testing.T) {
	var missing atomic.Int32
	server := newRedirectServer(t, &missing)
	result, err := fetch.New(server.Client()).Fetch(context.Background(), 0, entry(server.URL+"/img?name=my%2520pic.png"))
	if err != nil {
		t.Fatalf("Fetch: %v", err)
	}
	if result.Filename != "my pic.png" {
		t.Fatalf("unexpected filename %q", result.Filename)
	}
}

func TestFetchDryRunDiscardsPayload(t *testing.T) {
	var missing atomic.Int32
	server := newRedirectServer(t, &missing)
	f := fetch.New(server.Client(), fetch.WithDryRun(true))

	result, err := f.Fetch(context.Background(), 0, entry(server.URL+"/img?name=photo1.jpg"))
	if err != nil {
		t.Fatalf("Fetch: %v", err)
	}
	if result.Payload != nil {
		t.Fatalf("expected nil payload in dry run, got %d bytes", len(result.Payload))
	}
	if result.Filename != "photo1.jpg" {
		t.Fatalf("dry run computed different filename %q", result.Filename)
	}
}

func TestFetchNon2xxIsFetchFailure(t *testing.T) {
	var missing atomic.Int32
	server := newRedirectServer(t, &missing)
	_, err := fetch.New(server.Client()).Fetch(context.Background(), 0, entry(server.URL+"/broken"))
	if !errors.Is(err, services.ErrFetch) {
		t.Fatalf("expected fetch failure, got %v", err)
	}
	if !strings.Contains(err.Error(), "/broken") {
		t.Fatalf("expected url in error, got %v", err)
	}
}

func TestFetchWithoutFilenameFails(t *testing.T) {
	var missing atomic.Int32
	server := newRedirectServer(t, &missing)
	_, err := fetch.New(server.Client()).Fetch(context.Background(), 0, entry(server.URL+"/"))
	if !errors.Is(err, services.ErrFetch) {
		t.Fatalf("expected fetch failure, got %v", err)
	}
}

func TestFetchAllPreservesEntryOrder(t *testing.T) {
	var missing atomic.Int32
	server := newRedirectServer(t, &missing)
	f := fetch.New(server.Client(), fetch.WithConcurrency(4))

	entries := []batch.Entry{
		entry(server.URL + "/img?name=slow.jpg"),
		entry(server.URL + "/img?name=b.jpg"),
		entry(server.URL + "/img?name=c.jpg"),
	}
	results, err := f.FetchAll(context.Background(), entries)
	if err != nil {
		t.Fatalf("FetchAll: %v", err)
	}
	want := []string{"slow.jpg", "b.jpg", "c.jpg"}
	for i, result := range results {
		if result.Filename != want[i] || result.Index != i {
			t.Fatalf("result %d: got %q (index %d) want %q", i, result.Filename, result.Index, want[i])
		}
	}
}

func TestFetchAllReturnsFirstFailure(t *testing.T) {
	var missing atomic.Int32
	server := newRedirectServer(t, &missing)
	entries := []batch.Entry{
		entry(server.URL + "/img?name=a.jpg"),
		entry(server.URL + "/broken"),
	}
	results, err := fetch.New(server.Client()).FetchAll(context.Background(), entries)
	if !errors.Is(err, services.ErrFetch) {
		t.Fatalf("expected fetch failure, got %v", err)
	}
	if results != nil {
		t.Fatalf("expected no results on failure, got %d", len(results))
	}
}

func TestStem(t *testing.T) {
	cases := map[string]string{"photo.jpg": "photo", "archive.tar.gz": "archive.tar", "plain": "plain"}
	for in, want := range cases {
		if got := fetch.Stem(in); got != want {
			t.Fatalf("Stem(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestFetchAppendsRedirectParamWithoutReencoding(t *testing.T) {
	var rawQuery atomic.Value
	mux := http.NewServeMux()
	mux.HandleFunc("/view/photo1.jpg", func(w http.ResponseWriter, r *http.Request) {
		rawQuery.Store(r.URL.RawQuery)
		_, _ = w.Write([]byte("jpeg bytes"))
	})
	server := httptest.NewServer(mux)
	t.Cleanup(server.Close)

	_, err := fetch.New(server.Client()).Fetch(context.Background(), 0, entry(server.URL+"/view/photo1.jpg?z=1&sig=a%2Fb%3D&a=2"))
	if err != nil {
		t.Fatalf("Fetch: %v", err)
	}
	if got, _ := rawQuery.Load().(string); got != "z=1&sig=a%2Fb%3D&a=2&d=t" {
		t.Fatalf("unexpected query %q", got)
	}
}
