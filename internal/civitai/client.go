// Package civitai implements the small slice of the Civitai REST API the
// service needs before handing off to the external downloader: resolving a
// model id to its asset type and latest version id.
package civitai

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

const defaultBaseURL = "https://civitai.com/api/v1"

// Model is the subset of the /models/{id} payload we consume.
type Model struct {
	ID            int            `json:"id"`
	Name          string         `json:"name"`
	Type          string         `json:"type"`
	ModelVersions []ModelVersion `json:"modelVersions"`
}

// ModelVersion identifies one downloadable version of a model.
type ModelVersion struct {
	ID   int    `json:"id"`
	Name string `json:"name"`
}

// LatestVersionID returns the first listed version; Civitai orders versions
// newest first. Zero when the model has no versions.
func (m Model) LatestVersionID() int {
	if len(m.ModelVersions) == 0 {
		return 0
	}
	return m.ModelVersions[0].ID
}

// HasVersion reports whether the given version id belongs to this model.
func (m Model) HasVersion(versionID int) bool {
	for _, v := range m.ModelVersions {
		if v.ID == versionID {
			return true
		}
	}
	return false
}

// Client talks to the Civitai API.
type Client struct {
	baseURL    string
	token      string
	httpClient *http.Client
}

// NewClient builds a Client. token may be empty; it is only required for
// restricted models. Request deadlines come from the caller's context, the
// embedded client timeout is a backstop.
func NewClient(token string) *Client {
	return NewClientWithBaseURL(defaultBaseURL, token)
}

// NewClientWithBaseURL is used by tests to point the client at a stub server.
func NewClientWithBaseURL(baseURL, token string) *Client {
	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		token:      token,
		httpClient: &http.Client{Timeout: 30 * time.Second},
	}
}

type apiStatusError struct {
	status int
	body   string
}

func (e apiStatusError) Error() string {
	return fmt.Sprintf("civitai api: unexpected status %d: %s", e.status, e.body)
}

// IsNotFound reports whether err is a 404 from the Civitai API.
func IsNotFound(err error) bool {
	se, ok := err.(apiStatusError)
	return ok && se.status == http.StatusNotFound
}

// GetModel fetches metadata for the given model id.
func (c *Client) GetModel(ctx context.Context, modelID int) (Model, error) {
	url := fmt.Sprintf("%s/models/%d", c.baseURL, modelID)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return Model{}, err
	}
	req.Header.Set("Accept", "application/json")
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return Model{}, ctx.Err()
		}
		return Model{}, fmt.Errorf("civitai api: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		b, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return Model{}, apiStatusError{status: resp.StatusCode, body: strings.TrimSpace(string(b))}
	}
	var m Model
	if err := json.NewDecoder(resp.Body).Decode(&m); err != nil {
		return Model{}, fmt.Errorf("civitai api: decode: %w", err)
	}
	return m, nil
}
