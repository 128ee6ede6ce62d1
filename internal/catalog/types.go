package catalog

// Status is the derived availability of a normalized item.
type Status string

const (
	StatusAvailable   Status = "AVAILABLE"
	StatusUnavailable Status = "UNAVAILABLE"
)

// Variation is a purchasable SKU. Price is in minor currency units.
type Variation struct {
	ID       string    `json:"id"`
	Name     string    `json:"name"`
	Price    SafeInt64 `json:"price"`
	Currency string    `json:"currency"`
}

// Item is the UI-ready form of a provider catalog item. Items are built
// fresh per request and never mutated afterwards.
type Item struct {
	ID            string      `json:"id"`
	Name          string      `json:"name"`
	Description   string      `json:"description"`
	Category      string      `json:"category"`
	ImageURLs     []string    `json:"imageUrls"`
	Variations    []Variation `json:"variations"`
	StockQuantity SafeInt64   `json:"stockQuantity"`
	Status        Status      `json:"status"`
	Version       SafeInt64   `json:"version"`
}

// Response is one page of normalized items. A nil Cursor marks the last page
// and is encoded as JSON null.
type Response struct {
	Items  []Item  `json:"items"`
	Cursor *string `json:"cursor"`
}
