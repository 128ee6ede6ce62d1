package square

import (
	"context"
	_ "embed"
	"encoding/json"
	"fmt"
	"slices"
	"strconv"
	"strings"
	"sync"

	"github.com/samber/lo"
)

//go:embed mock_catalog.json
var mockCatalogJSON []byte

type mockCatalog struct {
	Objects []CatalogObject  `json:"objects"`
	Counts  []InventoryCount `json:"counts"`
}

// Mock is an in-memory stand-in for the Square catalog used in local
// development and tests. Searches page through objects with an offset cursor.
type Mock struct {
	mu       sync.Mutex
	objects  []CatalogObject
	counts   []InventoryCount
	searches int
}

// NewMock returns a Mock seeded with the embedded demo catalog.
func NewMock() *Mock {
	var cat mockCatalog
	if err := json.Unmarshal(mockCatalogJSON, &cat); err != nil {
		panic(fmt.Errorf("invalid embedded mock catalog: %w", err))
	}
	return NewMockWith(cat.Objects, cat.Counts)
}

// NewMockWith returns a Mock serving the given objects and counts.
func NewMockWith(objects []CatalogObject, counts []InventoryCount) *Mock {
	return &Mock{
		objects: slices.Clone(objects),
		counts:  slices.Clone(counts),
	}
}

// Searches reports how many search calls the mock has served.
func (m *Mock) Searches() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.searches
}

func (m *Mock) SearchCatalogObjects(ctx context.Context, req *SearchCatalogObjectsRequest) (*SearchCatalogObjectsResponse, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	m.mu.Lock()
	m.searches++
	m.mu.Unlock()

	matches := lo.Filter(m.objects, func(o CatalogObject, _ int) bool {
		return (len(req.ObjectTypes) == 0 || slices.Contains(req.ObjectTypes, o.Type)) && mockMatches(o, req.Query)
	})
	if q := req.Query; q != nil && q.SortedAttributeQuery != nil {
		desc := strings.EqualFold(q.SortedAttributeQuery.SortOrder, "DESC")
		slices.SortStableFunc(matches, func(a, b CatalogObject) int {
			c := strings.Compare(mockName(a), mockName(b))
			if desc {
				return -c
			}
			return c
		})
	}

	start := 0
	if req.Cursor != "" {
		n, err := strconv.Atoi(req.Cursor)
		if err != nil || n < 0 || n > len(matches) {
			return nil, &StatusError{Operation: "search catalog objects", StatusCode: 400, Body: `{"errors":[{"code":"INVALID_CURSOR"}]}`}
		}
		start = n
	}
	limit := req.Limit
	if limit <= 0 {
		limit = 100
	}
	end := min(start+limit, len(matches))

	resp := &SearchCatalogObjectsResponse{Objects: matches[start:end]}
	if end < len(matches) {
		resp.Cursor = strconv.Itoa(end)
	}
	if req.IncludeRelatedObjects {
		resp.RelatedObjects = m.related(resp.Objects)
	}
	return resp, nil
}

func (m *Mock) RetrieveCatalogObject(ctx context.Context, objectID string) (*RetrieveCatalogObjectResponse, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	obj, ok := lo.Find(m.objects, func(o CatalogObject) bool { return o.ID == objectID })
	if !ok {
		return nil, &StatusError{Operation: "retrieve catalog object", StatusCode: 404, Body: `{"errors":[{"code":"NOT_FOUND"}]}`}
	}
	return &RetrieveCatalogObjectResponse{
		Object:         &obj,
		RelatedObjects: m.related([]CatalogObject{obj}),
	}, nil
}

func (m *Mock) BatchRetrieveInventoryCounts(ctx context.Context, req *BatchRetrieveInventoryCountsRequest) (*BatchRetrieveInventoryCountsResponse, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	counts := lo.Filter(m.counts, func(c InventoryCount, _ int) bool {
		if !slices.Contains(req.CatalogObjectIDs, c.CatalogObjectID) {
			return false
		}
		if len(req.States) > 0 && !slices.Contains(req.States, c.State) {
			return false
		}
		return len(req.LocationIDs) == 0 || slices.Contains(req.LocationIDs, c.LocationID)
	})
	return &BatchRetrieveInventoryCountsResponse{Counts: counts}, nil
}

func (m *Mock) related(objects []CatalogObject) []CatalogObject {
	want := map[string]bool{}
	for _, o := range objects {
		if o.ItemData != nil {
			for _, id := range o.ItemData.ImageIDs {
				want[id] = true
			}
		}
		if o.ItemVariationData != nil {
			want[o.ItemVariationData.ItemID] = true
		}
	}
	return lo.Filter(m.objects, func(o CatalogObject, _ int) bool { return want[o.ID] })
}

func mockName(o CatalogObject) string {
	switch {
	case o.ItemData != nil:
		return o.ItemData.Name
	case o.ItemVariationData != nil:
		return o.ItemVariationData.Name
	}
	return ""
}

func mockMatches(o CatalogObject, q *CatalogQuery) bool {
	if q == nil {
		return true
	}
	if q.SetQuery != nil && q.SetQuery.AttributeName == "category_id" {
		if o.ItemData == nil || !slices.Contains(q.SetQuery.AttributeValues, o.ItemData.PrimaryCategoryID()) {
			return false
		}
	}
	if q.TextQuery != nil {
		name := strings.ToLower(mockName(o))
		for _, kw := range q.TextQuery.Keywords {
			if !strings.Contains(name, strings.ToLower(kw)) {
				return false
			}
		}
	}
	return true
}
