package square

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/hashicorp/go-retryablehttp"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/sequeirajonathan/mav-collectibles-sub001/internal/config"
)

// maxResponseBytes bounds how much of a provider response is read into memory.
const maxResponseBytes = 16 << 20

// Client calls the Square catalog and inventory APIs.
type Client struct {
	accessToken string
	version     string
	baseURL     string
	http        *retryablehttp.Client
	tracer      trace.Tracer
}

// NewClient creates a Square client. Retries with backoff for 429 and 5xx
// responses are handled by the underlying retryable HTTP client.
func NewClient(cfg config.SquareConfig) (*Client, error) {
	if strings.TrimSpace(cfg.AccessToken) == "" {
		return nil, errors.New("square access token is required")
	}

	baseURL := strings.TrimSpace(cfg.BaseURL)
	if baseURL == "" {
		baseURL = config.DefaultSquareBaseURL
	}
	if _, err := url.Parse(baseURL); err != nil {
		return nil, fmt.Errorf("parse square base URL: %w", err)
	}

	version := strings.TrimSpace(cfg.Version)
	if version == "" {
		version = config.DefaultSquareVersion
	}

	rc := retryablehttp.NewClient()
	rc.RetryMax = cfg.RetryMax
	rc.Logger = slog.Default()
	rc.ErrorHandler = retryablehttp.PassthroughErrorHandler
	if cfg.HTTPClient != nil {
		rc.HTTPClient = cfg.HTTPClient
	} else {
		rc.HTTPClient.Timeout = 20 * time.Second
	}

	return &Client{
		accessToken: cfg.AccessToken,
		version:     version,
		baseURL:     strings.TrimRight(baseURL, "/"),
		http:        rc,
		tracer:      otel.Tracer("mavcollectibles/square"),
	}, nil
}

// SearchCatalogObjects runs one page of a catalog search.
// docs https://developer.squareup.com/reference/square/catalog-api/search-catalog-objects
func (c *Client) SearchCatalogObjects(ctx context.Context, req *SearchCatalogObjectsRequest) (*SearchCatalogObjectsResponse, error) {
	raw, err := c.SearchCatalogObjectsRaw(ctx, req)
	if err != nil {
		return nil, err
	}
	return ParseSearchCatalogObjectsResponse(raw)
}

// SearchCatalogObjectsRaw returns the undecoded search page.
func (c *Client) SearchCatalogObjectsRaw(ctx context.Context, req *SearchCatalogObjectsRequest) (json.RawMessage, error) {
	if req == nil {
		return nil, errors.New("search request is required")
	}
	ctx, span := c.tracer.Start(ctx, "square.catalog.search", trace.WithAttributes(
		attribute.StringSlice("square.object_types", req.ObjectTypes),
		attribute.Int("square.limit", req.Limit),
		attribute.Bool("square.has_cursor", req.Cursor != ""),
	))
	defer span.End()

	raw, err := c.do(ctx, "search catalog objects", http.MethodPost, "/v2/catalog/search", req)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "search failed")
		return nil, err
	}
	return raw, nil
}

// RetrieveCatalogObject loads one object and its related objects.
// docs https://developer.squareup.com/reference/square/catalog-api/retrieve-catalog-object
func (c *Client) RetrieveCatalogObject(ctx context.Context, objectID string) (*RetrieveCatalogObjectResponse, error) {
	objectID = strings.TrimSpace(objectID)
	if objectID == "" {
		return nil, errors.New("object ID is required")
	}
	ctx, span := c.tracer.Start(ctx, "square.catalog.retrieve", trace.WithAttributes(
		attribute.String("square.object_id", objectID),
	))
	defer span.End()

	path := "/v2/catalog/object/" + url.PathEscape(objectID) + "?include_related_objects=true"
	raw, err := c.do(ctx, "retrieve catalog object", http.MethodGet, path, nil)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "retrieve failed")
		return nil, err
	}
	return ParseRetrieveCatalogObjectResponse(raw)
}

// BatchRetrieveInventoryCounts returns one page of inventory counts.
// docs https://developer.squareup.com/reference/square/inventory-api/batch-retrieve-inventory-counts
func (c *Client) BatchRetrieveInventoryCounts(ctx context.Context, req *BatchRetrieveInventoryCountsRequest) (*BatchRetrieveInventoryCountsResponse, error) {
	if req == nil || len(req.CatalogObjectIDs) == 0 {
		return nil, errors.New("at least one catalog object ID is required")
	}
	ctx, span := c.tracer.Start(ctx, "square.inventory.batch_retrieve_counts", trace.WithAttributes(
		attribute.Int("square.object_count", len(req.CatalogObjectIDs)),
		attribute.Bool("square.has_cursor", req.Cursor != ""),
	))
	defer span.End()

	raw, err := c.do(ctx, "batch retrieve inventory counts", http.MethodPost, "/v2/inventory/counts/batch-retrieve", req)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "inventory lookup failed")
		return nil, err
	}
	return ParseBatchRetrieveInventoryCountsResponse(raw)
}

func (c *Client) do(ctx context.Context, operation, method, path string, body any) (json.RawMessage, error) {
	var payload []byte
	if body != nil {
		var err error
		if payload, err = json.Marshal(body); err != nil {
			return nil, fmt.Errorf("marshal %s request: %w", operation, err)
		}
	}

	var rawBody any
	if payload != nil {
		rawBody = payload
	}
	req, err := retryablehttp.NewRequestWithContext(ctx, method, c.baseURL+path, rawBody)
	if err != nil {
		return nil, fmt.Errorf("build %s request: %w", operation, err)
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.accessToken)
	req.Header.Set("Square-Version", c.version)
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		if resp == nil {
			return nil, fmt.Errorf("request %s: %w", operation, err)
		}
		// passthrough error handler hands back the last response after retries
		slog.WarnContext(ctx, "square retries exhausted", "operation", operation, "error", err)
	}
	defer func() {
		_ = resp.Body.Close()
	}()

	var buf bytes.Buffer
	if _, err := io.Copy(&buf, io.LimitReader(resp.Body, maxResponseBytes)); err != nil {
		return nil, fmt.Errorf("read %s response: %w", operation, err)
	}

	if resp.StatusCode < http.StatusOK || resp.StatusCode >= http.StatusMultipleChoices {
		body := strings.TrimSpace(buf.String())
		slog.ErrorContext(ctx, "received Square error response",
			"operation", operation,
			"status", resp.StatusCode,
			"body", body,
		)
		return nil, &StatusError{
			Operation:  operation,
			StatusCode: resp.StatusCode,
			Body:       body,
		}
	}
	if !json.Valid(buf.Bytes()) {
		return nil, fmt.Errorf("%w: %s succeeded but response was not valid JSON", ErrDecode, operation)
	}
	return buf.Bytes(), nil
}
