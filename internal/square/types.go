package square

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
)

// Catalog object types returned by the catalog APIs.
const (
	TypeItem          = "ITEM"
	TypeItemVariation = "ITEM_VARIATION"
	TypeImage         = "IMAGE"
	TypeCategory      = "CATEGORY"
)

// Inventory states. Only a subset matters to the storefront.
const (
	StateInStock         = "IN_STOCK"
	StateSold            = "SOLD"
	StateReservedForSale = "RESERVED_FOR_SALE"
)

// Int64 is a 64-bit integer that Square may send as a JSON number or,
// from some endpoints, as a numeric string.
type Int64 int64

func (i *Int64) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if bytes.Equal(data, []byte("null")) {
		return nil
	}
	if len(data) > 0 && data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return fmt.Errorf("unmarshal int64 string: %w", err)
		}
		data = []byte(s)
	}
	n, err := strconv.ParseInt(string(data), 10, 64)
	if err != nil {
		return fmt.Errorf("parse int64 %q: %w", data, err)
	}
	*i = Int64(n)
	return nil
}

func (i Int64) MarshalJSON() ([]byte, error) {
	return []byte(strconv.FormatInt(int64(i), 10)), nil
}

// CatalogObject is the subset of Square's CatalogObject the storefront reads.
type CatalogObject struct {
	Type              string             `json:"type"`
	ID                string             `json:"id"`
	UpdatedAt         string             `json:"updated_at,omitempty"`
	Version           Int64              `json:"version,omitempty"`
	IsDeleted         bool               `json:"is_deleted,omitempty"`
	ItemData          *ItemData          `json:"item_data,omitempty"`
	ItemVariationData *ItemVariationData `json:"item_variation_data,omitempty"`
	ImageData         *ImageData         `json:"image_data,omitempty"`
	CategoryData      *CategoryData      `json:"category_data,omitempty"`
}

type ItemData struct {
	Name        string          `json:"name"`
	Description string          `json:"description,omitempty"`
	CategoryID  string          `json:"category_id,omitempty"`
	Categories  []CategoryRef   `json:"categories,omitempty"`
	ImageIDs    []string        `json:"image_ids,omitempty"`
	Variations  []CatalogObject `json:"variations,omitempty"`
}

// PrimaryCategoryID prefers the legacy category_id and falls back to the
// first entry of the newer categories list.
func (d *ItemData) PrimaryCategoryID() string {
	if d == nil {
		return ""
	}
	if d.CategoryID != "" {
		return d.CategoryID
	}
	if len(d.Categories) > 0 {
		return d.Categories[0].ID
	}
	return ""
}

type CategoryRef struct {
	ID      string `json:"id"`
	Ordinal Int64  `json:"ordinal,omitempty"`
}

type ItemVariationData struct {
	ItemID     string `json:"item_id"`
	Name       string `json:"name"`
	SKU        string `json:"sku,omitempty"`
	PriceMoney *Money `json:"price_money,omitempty"`
}

type Money struct {
	Amount   Int64  `json:"amount"`
	Currency string `json:"currency"`
}

type ImageData struct {
	Name    string `json:"name,omitempty"`
	URL     string `json:"url"`
	Caption string `json:"caption,omitempty"`
}

type CategoryData struct {
	Name string `json:"name"`
}

type SearchCatalogObjectsRequest struct {
	Cursor                string        `json:"cursor,omitempty"`
	ObjectTypes           []string      `json:"object_types,omitempty"`
	IncludeDeletedObjects bool          `json:"include_deleted_objects,omitempty"`
	IncludeRelatedObjects bool          `json:"include_related_objects,omitempty"`
	Query                 *CatalogQuery `json:"query,omitempty"`
	Limit                 int           `json:"limit,omitempty"`
}

type CatalogQuery struct {
	SortedAttributeQuery *SortedAttributeQuery `json:"sorted_attribute_query,omitempty"`
	SetQuery             *SetQuery             `json:"set_query,omitempty"`
	TextQuery            *TextQuery            `json:"text_query,omitempty"`
}

type SortedAttributeQuery struct {
	AttributeName string `json:"attribute_name"`
	SortOrder     string `json:"sort_order,omitempty"` // ASC or DESC
}

type SetQuery struct {
	AttributeName   string   `json:"attribute_name"`
	AttributeValues []string `json:"attribute_values"`
}

type TextQuery struct {
	Keywords []string `json:"keywords"`
}

type SearchCatalogObjectsResponse struct {
	Objects        []CatalogObject `json:"objects"`
	RelatedObjects []CatalogObject `json:"related_objects"`
	Cursor         string          `json:"cursor,omitempty"`
	LatestTime     string          `json:"latest_time,omitempty"`
	Errors         []APIError      `json:"errors,omitempty"`
}

type RetrieveCatalogObjectResponse struct {
	Object         *CatalogObject  `json:"object"`
	RelatedObjects []CatalogObject `json:"related_objects"`
	Errors         []APIError      `json:"errors,omitempty"`
}

type BatchRetrieveInventoryCountsRequest struct {
	CatalogObjectIDs []string `json:"catalog_object_ids,omitempty"`
	LocationIDs      []string `json:"location_ids,omitempty"`
	States           []string `json:"states,omitempty"`
	Cursor           string   `json:"cursor,omitempty"`
	Limit            int      `json:"limit,omitempty"`
}

type BatchRetrieveInventoryCountsResponse struct {
	Counts []InventoryCount `json:"counts"`
	Cursor string           `json:"cursor,omitempty"`
	Errors []APIError       `json:"errors,omitempty"`
}

// InventoryCount quantities are decimals encoded as strings, e.g. "3" or "1.5".
type InventoryCount struct {
	CatalogObjectID   string `json:"catalog_object_id"`
	CatalogObjectType string `json:"catalog_object_type,omitempty"`
	State             string `json:"state"`
	LocationID        string `json:"location_id,omitempty"`
	Quantity          string `json:"quantity"`
	CalculatedAt      string `json:"calculated_at,omitempty"`
}

type APIError struct {
	Category string `json:"category"`
	Code     string `json:"code"`
	Detail   string `json:"detail,omitempty"`
	Field    string `json:"field,omitempty"`
}

// ParseSearchCatalogObjectsResponse decodes a search page.
func ParseSearchCatalogObjectsResponse(data []byte) (*SearchCatalogObjectsResponse, error) {
	var resp SearchCatalogObjectsResponse
	if err := json.Unmarshal(data, &resp); err != nil {
		return nil, fmt.Errorf("%w: search catalog objects response: %w", ErrDecode, err)
	}
	return &resp, nil
}

// ParseRetrieveCatalogObjectResponse decodes a single-object lookup.
func ParseRetrieveCatalogObjectResponse(data []byte) (*RetrieveCatalogObjectResponse, error) {
	var resp RetrieveCatalogObjectResponse
	if err := json.Unmarshal(data, &resp); err != nil {
		return nil, fmt.Errorf("%w: retrieve catalog object response: %w", ErrDecode, err)
	}
	return &resp, nil
}

// ParseBatchRetrieveInventoryCountsResponse decodes an inventory counts page.
func ParseBatchRetrieveInventoryCountsResponse(data []byte) (*BatchRetrieveInventoryCountsResponse, error) {
	var resp BatchRetrieveInventoryCountsResponse
	if err := json.Unmarshal(data, &resp); err != nil {
		return nil, fmt.Errorf("%w: inventory counts response: %w", ErrDecode, err)
	}
	return &resp, nil
}
