package photos

import (
	"context"
	"encoding/json"
	"fmt"
	"io"

	"photoferry/internal/logging"
	"photoferry/internal/services"
)

type batchCreateRequest struct {
	NewMediaItems []newMediaItem `json:"newMediaItems"`
}

type newMediaItem struct {
	Description     string          `json:"description,omitempty"`
	SimpleMediaItem simpleMediaItem `json:"simpleMediaItem"`
}

type simpleMediaItem struct {
	UploadToken string `json:"uploadToken"`
	FileName    string `json:"fileName,omitempty"`
}

type batchCreateResponse struct {
	NewMediaItemResults []struct {
		UploadToken string `json:"uploadToken"`
		Status      struct {
			Code    int    `json:"code"`
			Message string `json:"message"`
		} `json:"status"`
		MediaItem struct {
			ID       string `json:"id"`
			Filename string `json:"filename"`
		} `json:"mediaItem"`
	} `json:"newMediaItemResults"`
}

// ItemResult is the per-item outcome reported by batchCreate.
type ItemResult struct {
	Filename    string
	MediaItemID string
	Code        int
	Message     string
}

// OK reports whether the item was created.
func (r ItemResult) OK() bool {
	return r.Code == 0
}

// CommitResult summarizes one batchCreate call. A 2xx response can still
// carry per-item failures.
type CommitResult struct {
	Called bool
	Items  []ItemResult
}

// Failed counts items the service reported as not created.
func (r CommitResult) Failed() int {
	n := 0
	for _, item := range r.Items {
		if !item.OK() {
			n++
		}
	}
	return n
}

// Rejected returns the filenames the service reported as not created.
func (r CommitResult) Rejected() map[string]bool {
	out := make(map[string]bool)
	for _, item := range r.Items {
		if !item.OK() {
			out[item.Filename] = true
		}
	}
	return out
}

// Commit attaches tokens to the library in exactly one batchCreate call.
// An empty set is a logged no-op with no remote call. Captions are sent as
// descriptions only when non-empty.
func (c *Client) Commit(ctx context.Context, tokens []Token) (CommitResult, error) {
	logger := logging.WithContext(ctx, c.logger)
	if len(tokens) == 0 {
		logger.Info("no upload tokens, skipping mint")
		return CommitResult{}, nil
	}

	payload := batchCreateRequest{NewMediaItems: make([]newMediaItem, 0, len(tokens))}
	byToken := make(map[string]string, len(tokens))
	for _, tok := range tokens {
		payload.NewMediaItems = append(payload.NewMediaItems, newMediaItem{
			Description:     tok.Caption,
			SimpleMediaItem: simpleMediaItem{UploadToken: tok.Value, FileName: tok.Filename},
		})
		byToken[tok.Value] = tok.Filename
	}

	resp, err := c.postJSON(ctx, "/v1/mediaItems:batchCreate", payload)
	if err != nil {
		return CommitResult{}, services.Wrap(services.ErrCommit, "commit", "batchCreate", fmt.Sprintf("%d items", len(tokens)), err)
	}
	defer resp.Body.Close()
	body, err := io.ReadAll(io.LimitReader(resp.Body, 8<<20))
	if err != nil {
		return CommitResult{}, services.Wrap(services.ErrCommit, "commit", "read response", "", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return CommitResult{}, services.Wrap(services.ErrCommit, "commit", "batchCreate",
			fmt.Sprintf("%d items: status %s: %s", len(tokens), resp.Status, snippet(body)), nil)
	}

	result := CommitResult{Called: true}
	var decoded batchCreateResponse
	if err := json.Unmarshal(body, &decoded); err != nil {
		logger.Warn("batchCreate response not decoded", logging.Error(err))
		return result, nil
	}
	for _, item := range decoded.NewMediaItemResults {
		filename := byToken[item.UploadToken]
		if filename == "" {
			filename = item.MediaItem.Filename
		}
		ir := ItemResult{
			Filename:    filename,
			MediaItemID: item.MediaItem.ID,
			Code:        item.Status.Code,
			Message:     item.Status.Message,
		}
		if !ir.OK() {
			logging.WarnWithContext(logger, "media item not created", "mint_item_failed",
				logging.String(logging.FieldFilename, ir.Filename),
				logging.Int("code", ir.Code),
				logging.String("message", ir.Message),
				logging.String(logging.FieldImpact, "image stays in the images directory for the next upload"),
			)
		}
		result.Items = append(result.Items, ir)
	}
	logger.Info("minted", logging.Int("items", len(tokens)), logging.Int("failed", result.Failed()))
	return result, nil
}
