// Package storefront is a client for the catalog HTTP API, used by tools that
// page through listings the same way the web storefront does.
package storefront

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/hashicorp/go-retryablehttp"

	"github.com/sequeirajonathan/mav-collectibles-sub001/internal/catalog"
	"github.com/sequeirajonathan/mav-collectibles-sub001/internal/pager"
)

// StatusError is a non-2xx answer from the catalog API.
type StatusError struct {
	StatusCode int
	Message    string
	Fields     map[string]string
}

func (e *StatusError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("catalog api returned status %d", e.StatusCode)
	}
	return fmt.Sprintf("catalog api returned status %d: %s", e.StatusCode, e.Message)
}

type Client struct {
	baseURL string
	http    *retryablehttp.Client
}

// NewClient talks to the API rooted at baseURL. httpClient may be nil.
func NewClient(baseURL string, httpClient *http.Client) (*Client, error) {
	u, err := url.Parse(strings.TrimRight(baseURL, "/"))
	if err != nil || u.Scheme == "" || u.Host == "" {
		return nil, fmt.Errorf("invalid catalog api url %q", baseURL)
	}
	rc := retryablehttp.NewClient()
	rc.RetryMax = 2
	rc.Logger = slog.Default()
	rc.ErrorHandler = retryablehttp.PassthroughErrorHandler
	if httpClient != nil {
		rc.HTTPClient = httpClient
	} else {
		rc.HTTPClient = &http.Client{Timeout: 30 * time.Second}
	}
	return &Client{baseURL: u.String(), http: rc}, nil
}

// Category loads one page of a category or group listing.
func (c *Client) Category(ctx context.Context, key pager.Key, cursor *string) (*catalog.Response, error) {
	params := url.Values{}
	for name, v := range map[string]string{"group": key.Group, "stock": key.Stock, "sort": key.Sort} {
		if v != "" {
			params.Set(name, v)
		}
	}
	endpoint := c.baseURL + "/category/" + url.PathEscape(key.Slug)
	if len(params) > 0 {
		endpoint += "?" + params.Encode()
	}
	var out catalog.Response
	if err := c.post(ctx, endpoint, map[string]any{"cursor": cursor}, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// Search loads one page of search results.
func (c *Client) Search(ctx context.Context, key pager.Key, cursor *string) (*catalog.Response, error) {
	body := map[string]any{
		"search": key.Search,
		"cursor": cursor,
		"stock":  key.Stock,
		"sort":   key.Sort,
	}
	var out catalog.Response
	if err := c.post(ctx, c.baseURL+"/search", body, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// Fetch is a pager.FetchFunc. A search term wins over a slug.
func (c *Client) Fetch(ctx context.Context, key pager.Key, cursor *string) (pager.Page[catalog.Item], error) {
	var (
		resp *catalog.Response
		err  error
	)
	if key.Search != "" {
		resp, err = c.Search(ctx, key, cursor)
	} else {
		resp, err = c.Category(ctx, key, cursor)
	}
	if err != nil {
		return pager.Page[catalog.Item]{}, err
	}
	return pager.Page[catalog.Item]{Items: resp.Items, Cursor: resp.Cursor}, nil
}

func (c *Client) post(ctx context.Context, endpoint string, body any, out any) error {
	payload, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("marshal request: %w", err)
	}
	req, err := retryablehttp.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("post %s: %w", endpoint, err)
	}
	defer func() {
		_ = resp.Body.Close()
	}()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 16<<20))
	if err != nil {
		return fmt.Errorf("read response: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		statusErr := &StatusError{StatusCode: resp.StatusCode}
		var apiErr struct {
			Error  string            `json:"error"`
			Fields map[string]string `json:"fields"`
		}
		if json.Unmarshal(raw, &apiErr) == nil {
			statusErr.Message = apiErr.Error
			statusErr.Fields = apiErr.Fields
		}
		return statusErr
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}
