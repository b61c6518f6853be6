package testsupport

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
)

// FakeUpload records one raw upload request.
type FakeUpload struct {
	Filename    string
	Protocol    string
	ContentType string
	Size        int
}

// FakeMediaItem is one item of a recorded batchCreate request. Description
// is nil when the field was absent from the JSON.
type FakeMediaItem struct {
	Description *string
	UploadToken string
	FileName    string
}

// FakePhotos imitates the two Library API endpoints the uploader uses.
type FakePhotos struct {
	Server *httptest.Server

	mu           sync.Mutex
	uploads      []FakeUpload
	commits      [][]FakeMediaItem
	failUploads  map[string]int
	emptyTokens  map[string]bool
	commitStatus int
	itemFailures map[string]bool
}

// NewFakePhotos starts a fake Library API server closed at test cleanup.
func NewFakePhotos(t testing.TB) *FakePhotos {
	t.Helper()
	fake := &FakePhotos{
		failUploads:  map[string]int{},
		emptyTokens:  map[string]bool{},
		itemFailures: map[string]bool{},
		commitStatus: http.StatusOK,
	}
	mux := http.NewServeMux()
	mux.HandleFunc("POST /v1/uploads", fake.handleUpload)
	mux.HandleFunc("POST /v1/mediaItems:batchCreate", fake.handleBatchCreate)
	fake.Server = httptest.NewServer(mux)
	t.Cleanup(fake.Server.Close)
	return fake
}

// URL returns the server base URL.
func (f *FakePhotos) URL() string {
	return f.Server.URL
}

// FailUpload makes uploads of filename return status.
func (f *FakePhotos) FailUpload(filename string, status int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.failUploads[filename] = status
}

// EmptyTokenFor makes uploads of filename succeed with an empty body.
func (f *FakePhotos) EmptyTokenFor(filename string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.emptyTokens[filename] = true
}

// SetCommitStatus sets the HTTP status returned by batchCreate.
func (f *FakePhotos) SetCommitStatus(status int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.commitStatus = status
}

// FailItem makes batchCreate report a per-item failure for filename.
func (f *FakePhotos) FailItem(filename string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.itemFailures[filename] = true
}

// Uploads returns the recorded uploads.
func (f *FakePhotos) Uploads() []FakeUpload {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]FakeUpload(nil), f.uploads...)
}

// Commits returns the recorded batchCreate calls.
func (f *FakePhotos) Commits() [][]FakeMediaItem {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([][]FakeMediaItem(nil), f.commits...)
}

func (f *FakePhotos) handleUpload(w http.ResponseWriter, r *http.Request) {
	body, _ := io.ReadAll(r.Body)
	name := r.Header.Get("X-Goog-Upload-File-Name")

	f.mu.Lock()
	f.uploads = append(f.uploads, FakeUpload{
		Filename:    name,
		Protocol:    r.Header.Get("X-Goog-Upload-Protocol"),
		ContentType: r.Header.Get("Content-Type"),
		Size:        len(body),
	})
	status := f.failUploads[name]
	empty := f.emptyTokens[name]
	f.mu.Unlock()

	if status != 0 {
		http.Error(w, "upload rejected", status)
		return
	}
	if empty {
		return
	}
	_, _ = io.WriteString(w, "token-"+name)
}

func (f *FakePhotos) handleBatchCreate(w http.ResponseWriter, r *http.Request) {
	var payload struct {
		NewMediaItems []struct {
			Description     *string `json:"description"`
			SimpleMediaItem struct {
				UploadToken string `json:"uploadToken"`
				FileName    string `json:"fileName"`
			} `json:"simpleMediaItem"`
		} `json:"newMediaItems"`
	}
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	items := make([]FakeMediaItem, 0, len(payload.NewMediaItems))
	for _, item := range payload.NewMediaItems {
		items = append(items, FakeMediaItem{
			Description: item.Description,
			UploadToken: item.SimpleMediaItem.UploadToken,
			FileName:    item.SimpleMediaItem.FileName,
		})
	}

	f.mu.Lock()
	f.commits = append(f.commits, items)
	status := f.commitStatus
	failures := make(map[string]bool, len(f.itemFailures))
	for k, v := range f.itemFailures {
		failures[k] = v
	}
	f.mu.Unlock()

	if status < 200 || status >= 300 {
		http.Error(w, `{"error":{"message":"batch rejected"}}`, status)
		return
	}

	type statusBody struct {
		Code    int    `json:"code,omitempty"`
		Message string `json:"message"`
	}
	type result struct {
		UploadToken string     `json:"uploadToken"`
		Status      statusBody `json:"status"`
		MediaItem   *struct {
			ID       string `json:"id"`
			Filename string `json:"filename"`
		} `json:"mediaItem,omitempty"`
	}
	response := struct {
		NewMediaItemResults []result `json:"newMediaItemResults"`
	}{}
	for i, item := range items {
		res := result{UploadToken: item.UploadToken}
		if failures[item.FileName] {
			res.Status = statusBody{Code: 3, Message: "Failed: invalid media"}
		} else {
			res.Status = statusBody{Message: "Success"}
			res.MediaItem = &struct {
				ID       string `json:"id"`
				Filename string `json:"filename"`
			}{ID: fmt.Sprintf("media-%d", i), Filename: item.FileName}
		}
		response.NewMediaItemResults = append(response.NewMediaItemResults, res)
	}
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(response)
}
