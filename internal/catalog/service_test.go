package catalog

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"

	"github.com/samber/lo"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sequeirajonathan/mav-collectibles-sub001/internal/categories"
	"github.com/sequeirajonathan/mav-collectibles-sub001/internal/config"
	"github.com/sequeirajonathan/mav-collectibles-sub001/internal/square"
)

func testConfig(pageSize int) *config.Config {
	return &config.Config{
		Catalog: config.CatalogConfig{
			PageSize:             pageSize,
			DefaultGroup:         "general",
			UnknownInventory:     config.UnknownInventoryUnavailable,
			InventoryBatchSize:   100,
			InventoryConcurrency: 2,
		},
	}
}

func newMockService(t *testing.T, provider Provider, cfg *config.Config) *Service {
	t.Helper()
	resolver, err := categories.Default()
	require.NoError(t, err)
	return NewService(provider, resolver, cfg)
}

func itemIDs(items []Item) []string {
	return lo.Map(items, func(it Item, _ int) string { return it.ID })
}

func TestServiceCategory_PagesThroughMockCatalog(t *testing.T) {
	svc := newMockService(t, square.NewMock(), testConfig(2))
	ctx := context.Background()

	first, err := svc.Category(ctx, "pokemon", Query{Sort: SortNameDesc})
	require.NoError(t, err)
	assert.Equal(t, []string{"ITEM_SV_BOX", "ITEM_PIKACHU"}, itemIDs(first.Items))
	require.NotNil(t, first.Cursor)

	box := first.Items[0]
	assert.Equal(t, StatusAvailable, box.Status)
	assert.Equal(t, SafeInt64(6), box.StockQuantity)
	assert.Equal(t, SafeInt64(9007199254740993), box.Version)
	assert.Equal(t, StatusUnavailable, first.Items[1].Status)

	second, err := svc.Category(ctx, "pokemon", Query{Sort: SortNameDesc, Cursor: first.Cursor})
	require.NoError(t, err)
	assert.Equal(t, []string{"ITEM_CHARIZARD"}, itemIDs(second.Items))
	assert.Nil(t, second.Cursor)
	assert.Equal(t, SafeInt64(3), second.Items[0].StockQuantity)
}

func TestServiceCategory_GroupSpansCategories(t *testing.T) {
	svc := newMockService(t, square.NewMock(), testConfig(100))

	resp, err := svc.Category(context.Background(), "tcg", Query{})
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{
		"ITEM_CHARIZARD", "ITEM_PIKACHU", "ITEM_SV_BOX", "ITEM_SHEOLDRED", "ITEM_RAGAVAN", "ITEM_OP_ST01",
	}, itemIDs(resp.Items))

	inStock, _ := ParseStockFilter("IN_STOCK", false)
	resp, err = svc.Category(context.Background(), "tcg", Query{Stock: inStock})
	require.NoError(t, err)
	assert.Equal(t, []string{"ITEM_CHARIZARD", "ITEM_OP_ST01", "ITEM_RAGAVAN", "ITEM_SV_BOX"}, itemIDs(resp.Items))
}

func TestServiceCategory_UnknownSlug(t *testing.T) {
	svc := newMockService(t, square.NewMock(), testConfig(100))
	_, err := svc.Category(context.Background(), "beanie-babies", Query{})
	assert.ErrorIs(t, err, ErrNotFound)
	assert.ErrorIs(t, err, categories.ErrNotFound)
}

func TestServiceSearch(t *testing.T) {
	svc := newMockService(t, square.NewMock(), testConfig(100))
	ctx := context.Background()

	resp, err := svc.Search(ctx, "Sealed", Query{})
	require.NoError(t, err)
	assert.Equal(t, []string{"ITEM_SV_BOX", "ITEM_OP_ST01"}, itemIDs(resp.Items))
	assert.Equal(t, "Scarlet & Violet Booster Box", resp.Items[0].Name)

	resp, err = svc.Search(ctx, "sleeves", Query{Sort: SortNameDesc})
	require.NoError(t, err)
	assert.Equal(t, []string{"ITEM_UP_ECLIPSE", "ITEM_DS_MATTE_BLACK"}, itemIDs(resp.Items))

	_, err = svc.Search(ctx, "   ", Query{})
	var validation *ValidationError
	assert.ErrorAs(t, err, &validation)
}

func TestServiceProduct(t *testing.T) {
	svc := newMockService(t, square.NewMock(), testConfig(100))
	ctx := context.Background()

	item, err := svc.Product(ctx, "ITEM_CHARIZARD")
	require.NoError(t, err)
	assert.Len(t, item.ImageURLs, 2)
	assert.Equal(t, SafeInt64(3), item.StockQuantity)
	assert.Len(t, item.Variations, 2)

	parent, err := svc.Product(ctx, "VAR_SV_BOX")
	require.NoError(t, err)
	assert.Equal(t, "ITEM_SV_BOX", parent.ID)

	_, err = svc.Product(ctx, "NOPE")
	assert.ErrorIs(t, err, ErrNotFound)

	_, err = svc.Product(ctx, "IMG_PIKACHU")
	assert.ErrorIs(t, err, ErrNotFound)
}

// pagedInventory splits every inventory response into single-count pages and
// records the batches it was asked for.
type pagedInventory struct {
	*square.Mock
	mu      sync.Mutex
	batches [][]string
	fail    error
}

func (p *pagedInventory) BatchRetrieveInventoryCounts(ctx context.Context, req *square.BatchRetrieveInventoryCountsRequest) (*square.BatchRetrieveInventoryCountsResponse, error) {
	if p.fail != nil {
		return nil, p.fail
	}
	if req.Cursor == "" {
		p.mu.Lock()
		p.batches = append(p.batches, req.CatalogObjectIDs)
		p.mu.Unlock()
	}
	all, err := p.Mock.BatchRetrieveInventoryCounts(ctx, req)
	if err != nil {
		return nil, err
	}
	offset := 0
	if req.Cursor != "" {
		offset = len(req.Cursor)
	}
	resp := &square.BatchRetrieveInventoryCountsResponse{}
	if offset < len(all.Counts) {
		resp.Counts = all.Counts[offset : offset+1]
		if offset+1 < len(all.Counts) {
			resp.Cursor = req.Cursor + "x"
		}
	}
	return resp, nil
}

func TestServiceInventory_BatchesAndFollowsCursors(t *testing.T) {
	provider := &pagedInventory{Mock: square.NewMock()}
	cfg := testConfig(100)
	cfg.Catalog.InventoryBatchSize = 3
	svc := newMockService(t, provider, cfg)

	resp, err := svc.Category(context.Background(), "pokemon", Query{})
	require.NoError(t, err)

	assert.Len(t, provider.batches, 2)
	total := lo.Sum(lo.Map(provider.batches, func(b []string, _ int) int { return len(b) }))
	assert.Equal(t, 4, total)

	stock := lo.SliceToMap(resp.Items, func(it Item) (string, SafeInt64) { return it.ID, it.StockQuantity })
	assert.Equal(t, map[string]SafeInt64{"ITEM_CHARIZARD": 3, "ITEM_PIKACHU": 0, "ITEM_SV_BOX": 6}, stock)
}

func TestServiceInventory_ErrorFailsPage(t *testing.T) {
	boom := errors.New("inventory unavailable")
	provider := &pagedInventory{Mock: square.NewMock(), fail: boom}
	svc := newMockService(t, provider, testConfig(100))

	_, err := svc.Category(context.Background(), "pokemon", Query{})
	assert.ErrorIs(t, err, boom)
	assert.NotErrorIs(t, err, ErrNotFound)
}

// undecodable answers from every provider call
type garbledProvider struct {
	*square.Mock
	search, retrieve, inventory bool
}

func garbled(op string) error {
	return fmt.Errorf("%w: %s response: invalid character '<'", square.ErrDecode, op)
}

func (g *garbledProvider) SearchCatalogObjects(ctx context.Context, req *square.SearchCatalogObjectsRequest) (*square.SearchCatalogObjectsResponse, error) {
	if g.search {
		return nil, garbled("search catalog objects")
	}
	return g.Mock.SearchCatalogObjects(ctx, req)
}

func (g *garbledProvider) RetrieveCatalogObject(ctx context.Context, id string) (*square.RetrieveCatalogObjectResponse, error) {
	if g.retrieve {
		return nil, garbled("retrieve catalog object")
	}
	return g.Mock.RetrieveCatalogObject(ctx, id)
}

func (g *garbledProvider) BatchRetrieveInventoryCounts(ctx context.Context, req *square.BatchRetrieveInventoryCountsRequest) (*square.BatchRetrieveInventoryCountsResponse, error) {
	if g.inventory {
		return nil, garbled("inventory counts")
	}
	return g.Mock.BatchRetrieveInventoryCounts(ctx, req)
}

func TestService_UndecodablePayloadIsNormalizationError(t *testing.T) {
	tests := map[string]*garbledProvider{
		"search":    {Mock: square.NewMock(), search: true},
		"retrieve":  {Mock: square.NewMock(), retrieve: true},
		"inventory": {Mock: square.NewMock(), inventory: true},
	}
	for name, provider := range tests {
		t.Run(name, func(t *testing.T) {
			svc := newMockService(t, provider, testConfig(100))
			var err error
			if name == "retrieve" {
				_, err = svc.Product(context.Background(), "ITEM_CHARIZARD")
			} else {
				_, err = svc.Category(context.Background(), "pokemon", Query{})
			}
			var normErr *NormalizationError
			require.ErrorAs(t, err, &normErr)
			assert.Contains(t, normErr.Reason, "decode")
			assert.ErrorIs(t, err, square.ErrDecode)
			assert.NotErrorIs(t, err, ErrNotFound)
		})
	}
}

func TestService_TransportErrorIsNotNormalizationError(t *testing.T) {
	boom := errors.New("connection reset")
	svc := newMockService(t, &pagedInventory{Mock: square.NewMock(), fail: boom}, testConfig(100))
	_, err := svc.Category(context.Background(), "pokemon", Query{})
	var normErr *NormalizationError
	assert.False(t, errors.As(err, &normErr))
	assert.ErrorIs(t, err, boom)
}
