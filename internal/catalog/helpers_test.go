package catalog

import (
	"github.com/sequeirajonathan/mav-collectibles-sub001/internal/square"
)

func testVariation(id, itemID, name string, amount int64) square.CatalogObject {
	return square.CatalogObject{
		Type: square.TypeItemVariation,
		ID:   id,
		ItemVariationData: &square.ItemVariationData{
			ItemID:     itemID,
			Name:       name,
			PriceMoney: &square.Money{Amount: square.Int64(amount), Currency: "USD"},
		},
	}
}

// testItem builds an item with one variation named "<id>_V".
func testItem(id, name, categoryID string, imageIDs ...string) square.CatalogObject {
	return square.CatalogObject{
		Type:    square.TypeItem,
		ID:      id,
		Version: 1,
		ItemData: &square.ItemData{
			Name:       name,
			CategoryID: categoryID,
			ImageIDs:   imageIDs,
			Variations: []square.CatalogObject{testVariation(id+"_V", id, "Regular", 1000)},
		},
	}
}

func testImage(id, url string) square.CatalogObject {
	return square.CatalogObject{Type: square.TypeImage, ID: id, ImageData: &square.ImageData{URL: url}}
}

func inStock(variationID, qty string) square.InventoryCount {
	return square.InventoryCount{CatalogObjectID: variationID, State: square.StateInStock, Quantity: qty}
}
