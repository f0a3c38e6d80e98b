package catalog

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"
)

const (
	DefaultBaseURL   = "https://api.opensubtitles.com/api/v1"
	DefaultUserAgent = "stremio-sub-translator v1"
)

// Config configures the catalog HTTP client.
type Config struct {
	APIKey    string
	BaseURL   string
	UserAgent string
	Timeout   time.Duration
}

// Client manages communication with the subtitle catalog API.
type Client struct {
	httpClient *http.Client
	apiKey     string
	baseURL    string
	userAgent  string
}

// NewClient creates a new catalog API client.
func NewClient(cfg Config) *Client {
	baseURL := cfg.BaseURL
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	userAgent := cfg.UserAgent
	if userAgent == "" {
		userAgent = DefaultUserAgent
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &Client{
		httpClient: &http.Client{Timeout: timeout},
		apiKey:     cfg.APIKey,
		baseURL:    baseURL,
		userAgent:  userAgent,
	}
}

// Search queries the catalog for subtitles in the given language.
func (c *Client) Search(ctx context.Context, ref MediaRef, lang string) ([]Candidate, error) {
	imdbID, season, episode := ref.imdbParts()

	params := url.Values{}
	params.Set("imdb_id", imdbID)
	params.Set("languages", lang)
	params.Set("order_by", "download_count")
	if season > 0 {
		params.Set("season_number", fmt.Sprintf("%d", season))
		params.Set("episode_number", fmt.Sprintf("%d", episode))
	}

	var resp searchResponse
	if err := c.doJSON(ctx, http.MethodGet, "/subtitles?"+params.Encode(), nil, &resp); err != nil {
		return nil, err
	}

	candidates := make([]Candidate, 0, len(resp.Data))
	for _, item := range resp.Data {
		attrs := item.Attributes
		if len(attrs.Files) == 0 {
			continue
		}
		candidates = append(candidates, Candidate{
			FileID:        attrs.Files[0].FileID,
			FileName:      attrs.Files[0].FileName,
			Language:      attrs.Language,
			DownloadCount: attrs.DownloadCount,
			UploadedAt:    attrs.UploadDate,
			ExactMatch:    attrs.MovieHashMatch,
		})
	}
	return candidates, nil
}

// Download resolves the candidate's download link and fetches the raw
// subtitle bytes.
func (c *Client) Download(ctx context.Context, candidate Candidate) ([]byte, error) {
	var resp downloadResponse
	body := map[string]any{"file_id": candidate.FileID}
	if err := c.doJSON(ctx, http.MethodPost, "/download", body, &resp); err != nil {
		return nil, err
	}
	if resp.Link == "" {
		return nil, fmt.Errorf("catalog returned no download link for file %d", candidate.FileID)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, resp.Link, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create download request: %w", err)
	}
	req.Header.Set("User-Agent", c.userAgent)

	httpResp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to download subtitle file: %w", err)
	}
	defer httpResp.Body.Close()

	if httpResp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("subtitle download failed with status %d", httpResp.StatusCode)
	}
	return io.ReadAll(httpResp.Body)
}

func (c *Client) doJSON(ctx context.Context, method, path string, payload any, out any) error {
	var body io.Reader
	if payload != nil {
		data, err := json.Marshal(payload)
		if err != nil {
			return fmt.Errorf("failed to marshal request: %w", err)
		}
		body = bytes.NewBuffer(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Api-Key", c.apiKey)
	req.Header.Set("User-Agent", c.userAgent)
	req.Header.Set("Accept", "application/json")
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("catalog request failed: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("failed to read catalog response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		apiErr := &ErrorResponse{Status: resp.StatusCode}
		if err := json.Unmarshal(respBody, apiErr); err != nil {
			apiErr.Message = string(respBody)
		}
		apiErr.Status = resp.StatusCode
		return apiErr
	}

	if err := json.Unmarshal(respBody, out); err != nil {
		return fmt.Errorf("failed to parse catalog response: %w", err)
	}
	return nil
}
