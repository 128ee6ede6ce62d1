package catalog

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sequeirajonathan/mav-collectibles-sub001/internal/categories"
	"github.com/sequeirajonathan/mav-collectibles-sub001/internal/config"
	"github.com/sequeirajonathan/mav-collectibles-sub001/internal/square"
)

const testCategories = `
domains:
  general:
    - {slug: trading-card-games, id: CAT123, name: Trading Card Games}
  supplies:
    - {slug: sleeves, id: CAT456, name: Sleeves}
groups:
  - {slug: everything, name: Everything, members: [trading-card-games, sleeves]}
`

// fiveCards seeds CAT123 with five items, three of them in stock.
func fiveCards() *square.Mock {
	var objects []square.CatalogObject
	var counts []square.InventoryCount
	for i, name := range []string{"Alpha", "Bravo", "Charlie", "Delta", "Echo"} {
		id := fmt.Sprintf("CARD%d", i)
		objects = append(objects, testItem(id, name, "CAT123", "IMG"+id))
		objects = append(objects, testImage("IMG"+id, "https://img/"+id+".jpg"))
		qty := "0"
		if i != 1 && i != 3 {
			qty = "2"
		}
		counts = append(counts, inStock(id+"_V", qty))
	}
	objects = append(objects, testItem("SLEEVE", "Sleeve", "CAT456"))
	return square.NewMockWith(objects, counts)
}

func newTestServer(t *testing.T, provider Provider, mutate func(*config.Config)) *httptest.Server {
	t.Helper()
	resolver, err := categories.Load(strings.NewReader(testCategories))
	require.NoError(t, err)

	cfg := testConfig(100)
	if mutate != nil {
		mutate(cfg)
	}
	mux := http.NewServeMux()
	NewHandler(cfg.Catalog, NewService(provider, resolver, cfg), resolver).Register(mux)
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv
}

func post(t *testing.T, url, body string) (*http.Response, []byte) {
	t.Helper()
	resp, err := http.Post(url, "application/json", strings.NewReader(body))
	require.NoError(t, err)
	defer resp.Body.Close()
	var raw json.RawMessage
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&raw))
	return resp, raw
}

func decodeResponse(t *testing.T, raw []byte) Response {
	t.Helper()
	var out Response
	require.NoError(t, json.Unmarshal(raw, &out))
	return out
}

func TestCategoryEndpoint_InStockFilter(t *testing.T) {
	srv := newTestServer(t, fiveCards(), nil)

	resp, raw := post(t, srv.URL+"/category/trading-card-games?stock=IN_STOCK", `{"cursor":null}`)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "application/json", resp.Header.Get("Content-Type"))

	out := decodeResponse(t, raw)
	assert.Equal(t, []string{"CARD0", "CARD2", "CARD4"}, itemIDs(out.Items))
	for _, it := range out.Items {
		assert.Equal(t, StatusAvailable, it.Status)
		assert.Equal(t, "CAT123", it.Category)
		assert.Equal(t, []string{"https://img/" + it.ID + ".jpg"}, it.ImageURLs)
	}
	assert.Nil(t, out.Cursor)
	assert.Contains(t, string(raw), `"cursor":null`)
}

func TestCategoryEndpoint_SortAndPaging(t *testing.T) {
	srv := newTestServer(t, fiveCards(), func(c *config.Config) { c.Catalog.PageSize = 2 })

	resp, raw := post(t, srv.URL+"/category/trading-card-games?sort=name_desc", "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	first := decodeResponse(t, raw)
	assert.Equal(t, []string{"Echo", "Delta"}, []string{first.Items[0].Name, first.Items[1].Name})
	require.NotNil(t, first.Cursor)

	var names []string
	cursor := first.Cursor
	for cursor != nil {
		body, _ := json.Marshal(categoryRequest{Cursor: cursor})
		resp, raw := post(t, srv.URL+"/category/trading-card-games?sort=name_desc", string(body))
		require.Equal(t, http.StatusOK, resp.StatusCode)
		page := decodeResponse(t, raw)
		for _, it := range page.Items {
			names = append(names, it.Name)
		}
		cursor = page.Cursor
	}
	assert.Equal(t, []string{"Charlie", "Bravo", "Alpha"}, names)
}

func TestCategoryEndpoint_GroupAndDomainHint(t *testing.T) {
	srv := newTestServer(t, fiveCards(), nil)

	resp, raw := post(t, srv.URL+"/category/everything?group=not-a-domain", "{}")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Len(t, decodeResponse(t, raw).Items, 6)
}

func TestCategoryEndpoint_TrailingWhitespaceIsAccepted(t *testing.T) {
	srv := newTestServer(t, fiveCards(), nil)

	resp, raw := post(t, srv.URL+"/category/trading-card-games", "{\"cursor\":null}\n\t ")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Len(t, decodeResponse(t, raw).Items, 5)
}

func TestCategoryEndpoint_Errors(t *testing.T) {
	srv := newTestServer(t, fiveCards(), func(c *config.Config) { c.Catalog.StrictStockFilter = true })

	tests := []struct {
		name   string
		path   string
		body   string
		status int
		want   string
	}{
		{"unknown slug", "/category/beanie-babies", "", http.StatusNotFound, `{"error":"Invalid category or group slug"}`},
		{"malformed body", "/category/trading-card-games", "{", http.StatusBadRequest, `{"error":"Invalid request","fields":{"body":"invalid JSON"}}`},
		{"trailing junk", "/category/trading-card-games", `{"cursor":"a"} junk`, http.StatusBadRequest, `{"error":"Invalid request","fields":{"body":"invalid JSON"}}`},
		{"two bodies", "/search", `{"search":"a"}{"search":"b"}`, http.StatusBadRequest, `{"error":"Invalid request","fields":{"body":"invalid JSON"}}`},
		{"numeric cursor", "/category/trading-card-games", `{"cursor":5}`, http.StatusBadRequest, `{"error":"Invalid request","fields":{"cursor":"must be a string"}}`},
		{"strict stock", "/category/trading-card-games?stock=PREORDER", "", http.StatusBadRequest, `{"error":"Invalid request","fields":{"stock":"unknown stock status PREORDER"}}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp, raw := post(t, srv.URL+tt.path, tt.body)
			assert.Equal(t, tt.status, resp.StatusCode)
			assert.JSONEq(t, tt.want, string(raw))
		})
	}
}

type failingProvider struct{ *square.Mock }

func (failingProvider) SearchCatalogObjects(context.Context, *square.SearchCatalogObjectsRequest) (*square.SearchCatalogObjectsResponse, error) {
	return nil, &square.StatusError{Operation: "search catalog objects", StatusCode: http.StatusBadGateway}
}

func TestCategoryEndpoint_ProviderFailure(t *testing.T) {
	srv := newTestServer(t, failingProvider{square.NewMock()}, nil)

	resp, raw := post(t, srv.URL+"/category/trading-card-games", "")
	assert.Equal(t, http.StatusInternalServerError, resp.StatusCode)
	assert.JSONEq(t, `{"error":"Failed to load catalog"}`, string(raw))
}

func TestSearchEndpoint(t *testing.T) {
	srv := newTestServer(t, fiveCards(), nil)

	resp, raw := post(t, srv.URL+"/search", `{"search":"a","stock":"sold_out","sort":"name_desc"}`)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	out := decodeResponse(t, raw)
	assert.Equal(t, []string{"CARD3", "CARD1"}, itemIDs(out.Items))
	assert.Nil(t, out.Cursor)

	resp, raw = post(t, srv.URL+"/search", `{"search":""}`)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	assert.JSONEq(t, `{"error":"Invalid request","fields":{"search":"must not be empty"}}`, string(raw))
}

func TestProductEndpoint(t *testing.T) {
	srv := newTestServer(t, fiveCards(), nil)

	resp, err := http.Get(srv.URL + "/product/CARD2")
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var item map[string]any
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&item))
	assert.Equal(t, "Charlie", item["name"])
	assert.Equal(t, "2", item["stockQuantity"])
	assert.Equal(t, "1", item["version"])
	variation := item["variations"].([]any)[0].(map[string]any)
	assert.Equal(t, "1000", variation["price"])

	missing, err := http.Get(srv.URL + "/product/NOPE")
	require.NoError(t, err)
	defer missing.Body.Close()
	assert.Equal(t, http.StatusNotFound, missing.StatusCode)
}

func TestCategoriesAndSchemaEndpoints(t *testing.T) {
	srv := newTestServer(t, fiveCards(), nil)

	resp, err := http.Get(srv.URL + "/categories")
	require.NoError(t, err)
	defer resp.Body.Close()
	var listing categoriesResponse
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&listing))
	assert.Len(t, listing.Categories, 2)
	require.Len(t, listing.Groups, 1)
	assert.Equal(t, []string{"trading-card-games", "sleeves"}, listing.Groups[0].Members)

	schema, err := http.Get(srv.URL + "/schema/catalog")
	require.NoError(t, err)
	defer schema.Body.Close()
	assert.Equal(t, http.StatusOK, schema.StatusCode)
	var doc map[string]any
	require.NoError(t, json.NewDecoder(schema.Body).Decode(&doc))
	assert.Contains(t, doc, "$defs")
}

func TestWriteErrorClassifies(t *testing.T) {
	s := &server{}
	tests := []struct {
		err    error
		status int
	}{
		{fmt.Errorf("wrap: %w", ErrNotFound), http.StatusNotFound},
		{newValidationError("x", "bad"), http.StatusBadRequest},
		{&NormalizationError{Reason: "bad page"}, http.StatusInternalServerError},
		{errors.New("boom"), http.StatusInternalServerError},
	}
	for _, tt := range tests {
		rec := httptest.NewRecorder()
		s.writeError(context.Background(), rec, tt.err)
		assert.Equal(t, tt.status, rec.Code, tt.err.Error())
	}
}
