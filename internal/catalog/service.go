package catalog

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"

	"github.com/samber/lo"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/errgroup"

	"github.com/sequeirajonathan/mav-collectibles-sub001/internal/categories"
	"github.com/sequeirajonathan/mav-collectibles-sub001/internal/config"
	"github.com/sequeirajonathan/mav-collectibles-sub001/internal/square"
)

// Provider is the slice of the Square API the storefront needs. Both
// square.Client and square.Mock satisfy it.
type Provider interface {
	SearchCatalogObjects(ctx context.Context, req *square.SearchCatalogObjectsRequest) (*square.SearchCatalogObjectsResponse, error)
	RetrieveCatalogObject(ctx context.Context, objectID string) (*square.RetrieveCatalogObjectResponse, error)
	BatchRetrieveInventoryCounts(ctx context.Context, req *square.BatchRetrieveInventoryCountsRequest) (*square.BatchRetrieveInventoryCountsResponse, error)
}

type Resolver interface {
	Resolve(slug string) (categories.Target, error)
}

// Query carries the paging and filtering options shared by the listing calls.
type Query struct {
	Cursor *string
	Stock  StockFilter
	Sort   Sort
	// Group is the category domain the caller browsed from. Slugs are unique
	// across domains so it only annotates logs and spans.
	Group string
}

func (q Query) cursor() string { return lo.FromPtr(q.Cursor) }

// Square accepts at most three text search keywords.
const maxKeywords = 3

type Service struct {
	provider    Provider
	resolver    Resolver
	normalizer  *Normalizer
	pageSize    int
	batchSize   int
	concurrency int
	locationIDs []string
	tracer      trace.Tracer
}

func NewService(provider Provider, resolver Resolver, cfg *config.Config) *Service {
	return &Service{
		provider:    provider,
		resolver:    resolver,
		normalizer:  NewNormalizer(cfg.Catalog.UnknownInventory),
		pageSize:    cfg.Catalog.PageSize,
		batchSize:   max(cfg.Catalog.InventoryBatchSize, 1),
		concurrency: max(cfg.Catalog.InventoryConcurrency, 1),
		locationIDs: cfg.Square.LocationIDs,
		tracer:      otel.Tracer("mavcollectibles/catalog"),
	}
}

// Category lists one page of the items filed under a category or group slug.
func (s *Service) Category(ctx context.Context, slug string, q Query) (*Response, error) {
	ctx, span := s.tracer.Start(ctx, "catalog.Category", trace.WithAttributes(
		attribute.String("catalog.slug", slug),
		attribute.String("catalog.group", q.Group),
		attribute.String("catalog.sort", string(q.Sort)),
		attribute.String("catalog.stock", q.Stock.String()),
	))
	defer span.End()

	target, err := s.resolver.Resolve(slug)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrNotFound, err)
	}
	span.SetAttributes(attribute.String("catalog.target_kind", target.Kind().String()))

	req := &square.SearchCatalogObjectsRequest{
		Cursor:                q.cursor(),
		ObjectTypes:           []string{square.TypeItem},
		IncludeRelatedObjects: true,
		Limit:                 s.pageSize,
		Query: &square.CatalogQuery{
			SetQuery: &square.SetQuery{
				AttributeName:   "category_id",
				AttributeValues: lo.Uniq(target.CategoryIDs()),
			},
			SortedAttributeQuery: &square.SortedAttributeQuery{AttributeName: "name", SortOrder: q.Sort.SortOrder()},
		},
	}
	resp, err := s.page(ctx, req, q.Stock)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}
	slog.DebugContext(ctx, "category page", "slug", slug, "group", q.Group, "items", len(resp.Items), "has_next", resp.Cursor != nil)
	return resp, nil
}

// Search lists one page of items whose name or variations match term.
func (s *Service) Search(ctx context.Context, term string, q Query) (*Response, error) {
	ctx, span := s.tracer.Start(ctx, "catalog.Search", trace.WithAttributes(
		attribute.String("catalog.sort", string(q.Sort)),
		attribute.String("catalog.stock", q.Stock.String()),
	))
	defer span.End()

	keywords := strings.Fields(strings.ToLower(term))
	if len(keywords) == 0 {
		return nil, newValidationError("search", "must not be empty")
	}
	if len(keywords) > maxKeywords {
		slog.DebugContext(ctx, "truncating search keywords", "keywords", len(keywords))
		keywords = keywords[:maxKeywords]
	}

	req := &square.SearchCatalogObjectsRequest{
		Cursor:                q.cursor(),
		ObjectTypes:           []string{square.TypeItem, square.TypeItemVariation},
		IncludeRelatedObjects: true,
		Limit:                 s.pageSize,
		Query: &square.CatalogQuery{
			TextQuery:            &square.TextQuery{Keywords: keywords},
			SortedAttributeQuery: &square.SortedAttributeQuery{AttributeName: "name", SortOrder: q.Sort.SortOrder()},
		},
	}
	resp, err := s.page(ctx, req, q.Stock)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}
	return resp, nil
}

// Product loads a single item by ID. A variation ID resolves to its parent.
func (s *Service) Product(ctx context.Context, id string) (*Item, error) {
	ctx, span := s.tracer.Start(ctx, "catalog.Product", trace.WithAttributes(attribute.String("catalog.object_id", id)))
	defer span.End()

	if strings.TrimSpace(id) == "" {
		return nil, newValidationError("id", "must not be empty")
	}
	found, err := s.provider.RetrieveCatalogObject(ctx, id)
	if err != nil {
		var statusErr *square.StatusError
		if errors.As(err, &statusErr) && statusErr.StatusCode == http.StatusNotFound {
			return nil, fmt.Errorf("%w: catalog object %s", ErrNotFound, id)
		}
		span.RecordError(err)
		return nil, providerError("retrieve catalog object "+id, err)
	}
	if found.Object == nil {
		return nil, fmt.Errorf("%w: catalog object %s", ErrNotFound, id)
	}

	page := &square.SearchCatalogObjectsResponse{
		Objects:        []square.CatalogObject{*found.Object},
		RelatedObjects: found.RelatedObjects,
	}
	resp, err := s.normalize(ctx, page, nil)
	if err != nil {
		span.RecordError(err)
		return nil, err
	}
	if len(resp.Items) == 0 {
		return nil, fmt.Errorf("%w: catalog object %s is not a product", ErrNotFound, id)
	}
	return &resp.Items[0], nil
}

// Ready checks the provider answers a one-object search.
func (s *Service) Ready(ctx context.Context) error {
	_, err := s.provider.SearchCatalogObjects(ctx, &square.SearchCatalogObjectsRequest{
		ObjectTypes: []string{square.TypeItem},
		Limit:       1,
	})
	if err != nil {
		return fmt.Errorf("catalog provider not ready: %w", err)
	}
	return nil
}

func (s *Service) page(ctx context.Context, req *square.SearchCatalogObjectsRequest, filter StockFilter) (*Response, error) {
	raw, err := s.provider.SearchCatalogObjects(ctx, req)
	if err != nil {
		return nil, providerError("search catalog", err)
	}
	return s.normalize(ctx, raw, filter)
}

// providerError wraps a failed provider call. Payloads that arrived but could
// not be decoded are normalization failures rather than transport ones.
func providerError(op string, err error) error {
	if errors.Is(err, square.ErrDecode) {
		return &NormalizationError{Reason: "decode " + op, Err: err}
	}
	return fmt.Errorf("%s: %w", op, err)
}

func (s *Service) normalize(ctx context.Context, page *square.SearchCatalogObjectsResponse, filter StockFilter) (*Response, error) {
	counts, err := s.inventory(ctx, s.normalizer.VariationIDs(ctx, page))
	if err != nil {
		return nil, err
	}
	return s.normalizer.Normalize(ctx, page, counts, filter)
}

// inventory fetches counts for ids in batches, a few batches at a time.
// Results keep the batch order so normalization stays deterministic.
func (s *Service) inventory(ctx context.Context, ids []string) ([]square.InventoryCount, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	batches := lo.Chunk(ids, s.batchSize)
	results := make([][]square.InventoryCount, len(batches))

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(s.concurrency)
	for i, batch := range batches {
		g.Go(func() error {
			counts, err := s.inventoryBatch(ctx, batch)
			if err != nil {
				return err
			}
			results[i] = counts
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, providerError("retrieve inventory", err)
	}
	return lo.Flatten(results), nil
}

func (s *Service) inventoryBatch(ctx context.Context, ids []string) ([]square.InventoryCount, error) {
	var counts []square.InventoryCount
	cursor := ""
	for {
		resp, err := s.provider.BatchRetrieveInventoryCounts(ctx, &square.BatchRetrieveInventoryCountsRequest{
			CatalogObjectIDs: ids,
			LocationIDs:      s.locationIDs,
			Cursor:           cursor,
		})
		if err != nil {
			return nil, err
		}
		counts = append(counts, resp.Counts...)
		if resp.Cursor == "" || resp.Cursor == cursor {
			return counts, nil
		}
		cursor = resp.Cursor
	}
}
