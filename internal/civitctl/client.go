// Package civitctl implements the command-line client for a running civitaid
// daemon.
package civitctl

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"civitaid/pkg/types"
)

// Client wraps the daemon's REST API.
type Client struct {
	baseURL    string
	httpClient *http.Client
}

// NewClient points a Client at a daemon base URL like http://127.0.0.1:8080.
// Downloads block server-side for the whole transfer, so no client timeout.
func NewClient(baseURL string) *Client {
	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{Timeout: 0},
	}
}

func (c *Client) do(ctx context.Context, method, path string, out any) error {
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, nil)
	if err != nil {
		return err
	}
	req.Header.Set("Accept", "application/json")
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode == http.StatusNotModified {
		return fmt.Errorf("already downloaded")
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		var e types.ErrorResponse
		b, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		if json.Unmarshal(b, &e) == nil && e.Error != "" {
			return fmt.Errorf("%s (status %d)", e.Error, resp.StatusCode)
		}
		return fmt.Errorf("unexpected status %d: %s", resp.StatusCode, strings.TrimSpace(string(b)))
	}
	if out == nil {
		return nil
	}
	return json.NewDecoder(resp.Body).Decode(out)
}

// List returns every model version the daemon sees on disk.
func (c *Client) List(ctx context.Context) ([]types.ModelRecord, error) {
	var recs []types.ModelRecord
	err := c.do(ctx, http.MethodGet, "/models/", &recs)
	return recs, err
}

// Get returns the saved versions of one model.
func (c *Client) Get(ctx context.Context, modelID int) ([]types.ModelRecord, error) {
	var recs []types.ModelRecord
	err := c.do(ctx, http.MethodGet, fmt.Sprintf("/models/%d", modelID), &recs)
	return recs, err
}

// GetVersion returns one exact saved version.
func (c *Client) GetVersion(ctx context.Context, modelID, versionID int) (types.ModelRecord, error) {
	var rec types.ModelRecord
	err := c.do(ctx, http.MethodGet, fmt.Sprintf("/models/%d/versions/%d", modelID, versionID), &rec)
	return rec, err
}

// Download asks the daemon to fetch a model; versionID 0 means latest.
func (c *Client) Download(ctx context.Context, modelID, versionID int) (types.ModelRecord, error) {
	path := fmt.Sprintf("/models/%d", modelID)
	if versionID > 0 {
		path = fmt.Sprintf("/models/%d/versions/%d", modelID, versionID)
	}
	var rec types.ModelRecord
	err := c.do(ctx, http.MethodPost, path, &rec)
	return rec, err
}

// Delete removes a model (all versions) or one version when versionID > 0.
func (c *Client) Delete(ctx context.Context, modelID, versionID int) ([]types.ModelRecord, error) {
	if versionID > 0 {
		var rec types.ModelRecord
		err := c.do(ctx, http.MethodDelete, fmt.Sprintf("/models/%d/versions/%d", modelID, versionID), &rec)
		if err != nil {
			return nil, err
		}
		return []types.ModelRecord{rec}, nil
	}
	var recs []types.ModelRecord
	err := c.do(ctx, http.MethodDelete, fmt.Sprintf("/models/%d", modelID), &recs)
	return recs, err
}

// DeleteAll wipes every saved model.
func (c *Client) DeleteAll(ctx context.Context) ([]types.ModelRecord, error) {
	var recs []types.ModelRecord
	err := c.do(ctx, http.MethodDelete, "/models/", &recs)
	return recs, err
}

// Healthy probes /healthz with a short deadline.
func (c *Client) Healthy(ctx context.Context) bool {
	ctx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()
	return c.do(ctx, http.MethodGet, "/healthz", nil) == nil
}
