package catalog

import (
	"context"
	"errors"
	"log/slog"
	"math"

	"github.com/samber/lo"
	"github.com/shopspring/decimal"

	"github.com/sequeirajonathan/mav-collectibles-sub001/internal/config"
	"github.com/sequeirajonathan/mav-collectibles-sub001/internal/square"
)

// Normalizer turns raw provider pages into UI-ready items. It holds no
// per-request state and is safe for concurrent use.
type Normalizer struct {
	unknown config.UnknownInventoryPolicy
}

func NewNormalizer(unknown config.UnknownInventoryPolicy) *Normalizer {
	if unknown == "" {
		unknown = config.UnknownInventoryUnavailable
	}
	return &Normalizer{unknown: unknown}
}

// draft is an item being assembled from a page's primary objects.
type draft struct {
	item        square.CatalogObject
	variations  []square.CatalogObject
	synthesized bool
}

// VariationIDs lists, in page order, the variations whose inventory decides
// the status of the items on this page.
func (n *Normalizer) VariationIDs(ctx context.Context, page *square.SearchCatalogObjectsResponse) []string {
	if page == nil {
		return nil
	}
	var ids []string
	for _, d := range n.group(ctx, page) {
		for _, v := range d.variations {
			ids = append(ids, v.ID)
		}
	}
	return lo.Uniq(ids)
}

// Normalize builds a Response from one search page and the inventory counts
// for its variations. Malformed objects are logged and left out; only a
// missing page is an error.
func (n *Normalizer) Normalize(ctx context.Context, page *square.SearchCatalogObjectsResponse, counts []square.InventoryCount, filter StockFilter) (*Response, error) {
	if page == nil {
		return nil, &NormalizationError{Reason: "empty provider page", Err: errors.New("nil response")}
	}

	images := imageURLs(page.RelatedObjects)
	stock := n.tally(ctx, counts)

	resp := &Response{Items: []Item{}}
	for _, d := range n.group(ctx, page) {
		item := n.build(d, images, stock)
		if !filter.Allows(item.Status) {
			continue
		}
		resp.Items = append(resp.Items, item)
	}
	if page.Cursor != "" {
		cursor := page.Cursor
		resp.Cursor = &cursor
	}
	return resp, nil
}

// group collects primary objects into item drafts. Bare variations are
// attached to their parent: an ITEM on the same page, then one from the
// related objects, then a placeholder named after the variation.
func (n *Normalizer) group(ctx context.Context, page *square.SearchCatalogObjectsResponse) []*draft {
	related := lo.SliceToMap(
		lo.Filter(page.RelatedObjects, func(o square.CatalogObject, _ int) bool {
			return o.Type == square.TypeItem && o.ItemData != nil
		}),
		func(o square.CatalogObject) (string, square.CatalogObject) { return o.ID, o },
	)

	var order []*draft
	byID := map[string]*draft{}

	for _, obj := range page.Objects {
		if obj.IsDeleted {
			continue
		}
		switch obj.Type {
		case square.TypeItem:
			if reason := invalidItem(obj); reason != "" {
				slog.WarnContext(ctx, "dropping malformed catalog item", "id", obj.ID, "reason", reason)
				continue
			}
			existing, ok := byID[obj.ID]
			if ok && !existing.synthesized {
				continue
			}
			d := &draft{item: obj}
			for _, v := range obj.ItemData.Variations {
				if reason := invalidVariation(v, false); reason != "" {
					slog.WarnContext(ctx, "dropping malformed catalog variation", "id", v.ID, "item_id", obj.ID, "reason", reason)
					continue
				}
				d.addVariation(v)
			}
			if ok {
				// a bare variation got here first; keep its slot and variations
				for _, v := range existing.variations {
					d.addVariation(v)
				}
				*existing = *d
				continue
			}
			byID[obj.ID] = d
			order = append(order, d)

		case square.TypeItemVariation:
			if reason := invalidVariation(obj, true); reason != "" {
				slog.WarnContext(ctx, "dropping malformed catalog variation", "id", obj.ID, "reason", reason)
				continue
			}
			parentID := obj.ItemVariationData.ItemID
			d, ok := byID[parentID]
			if !ok {
				d = n.parentDraft(ctx, parentID, obj, related)
				byID[parentID] = d
				order = append(order, d)
			}
			d.addVariation(obj)

		default:
			slog.DebugContext(ctx, "ignoring catalog object", "id", obj.ID, "type", obj.Type)
		}
	}
	return order
}

func (n *Normalizer) parentDraft(ctx context.Context, parentID string, v square.CatalogObject, related map[string]square.CatalogObject) *draft {
	if parent, ok := related[parentID]; ok && invalidItem(parent) == "" {
		d := &draft{item: parent}
		for _, sibling := range parent.ItemData.Variations {
			if invalidVariation(sibling, false) == "" {
				d.addVariation(sibling)
			}
		}
		return d
	}
	slog.DebugContext(ctx, "synthesizing parent for bare variation", "variation_id", v.ID, "item_id", parentID)
	return &draft{
		item: square.CatalogObject{
			Type:     square.TypeItem,
			ID:       parentID,
			ItemData: &square.ItemData{Name: v.ItemVariationData.Name},
		},
		synthesized: true,
	}
}

func (d *draft) addVariation(v square.CatalogObject) {
	if lo.ContainsBy(d.variations, func(x square.CatalogObject) bool { return x.ID == v.ID }) {
		return
	}
	d.variations = append(d.variations, v)
}

func invalidItem(o square.CatalogObject) string {
	switch {
	case o.ID == "":
		return "missing id"
	case o.ItemData == nil:
		return "missing item_data"
	case o.ItemData.Name == "":
		return "missing name"
	}
	return ""
}

func invalidVariation(o square.CatalogObject, bare bool) string {
	switch {
	case o.ID == "":
		return "missing id"
	case o.ItemVariationData == nil:
		return "missing item_variation_data"
	case bare && o.ItemVariationData.ItemID == "":
		return "missing item_id"
	}
	return ""
}

func imageURLs(related []square.CatalogObject) map[string]string {
	urls := map[string]string{}
	for _, o := range related {
		if o.Type == square.TypeImage && o.ImageData != nil && o.ImageData.URL != "" {
			urls[o.ID] = o.ImageData.URL
		}
	}
	return urls
}

// stockTally is the on-hand quantity per variation plus which variations the
// inventory endpoint reported at all.
type stockTally struct {
	onHand map[string]decimal.Decimal
	seen   map[string]bool
}

func (n *Normalizer) tally(ctx context.Context, counts []square.InventoryCount) stockTally {
	t := stockTally{onHand: map[string]decimal.Decimal{}, seen: map[string]bool{}}
	for _, c := range counts {
		if c.CatalogObjectID == "" {
			continue
		}
		t.seen[c.CatalogObjectID] = true
		if c.State != square.StateInStock {
			continue
		}
		qty, err := decimal.NewFromString(c.Quantity)
		if err != nil {
			slog.WarnContext(ctx, "ignoring unparseable inventory quantity", "variation_id", c.CatalogObjectID, "quantity", c.Quantity, "error", err)
			continue
		}
		t.onHand[c.CatalogObjectID] = t.onHand[c.CatalogObjectID].Add(qty)
	}
	return t
}

func (n *Normalizer) build(d *draft, images map[string]string, stock stockTally) Item {
	data := d.item.ItemData
	item := Item{
		ID:          d.item.ID,
		Name:        data.Name,
		Description: data.Description,
		Category:    data.PrimaryCategoryID(),
		ImageURLs: lo.Uniq(lo.FilterMap(data.ImageIDs, func(id string, _ int) (string, bool) {
			url, ok := images[id]
			return url, ok
		})),
		Variations: make([]Variation, 0, len(d.variations)),
		Version:    SafeInt64(d.item.Version),
	}

	total := decimal.Zero
	reported := false
	for _, v := range d.variations {
		vd := v.ItemVariationData
		variation := Variation{ID: v.ID, Name: vd.Name}
		if vd.PriceMoney != nil {
			variation.Price = SafeInt64(vd.PriceMoney.Amount)
			variation.Currency = vd.PriceMoney.Currency
		}
		item.Variations = append(item.Variations, variation)

		total = total.Add(stock.onHand[v.ID])
		reported = reported || stock.seen[v.ID]
	}

	item.StockQuantity = stockQuantity(total)
	switch {
	case total.IsPositive():
		item.Status = StatusAvailable
	case !reported && n.unknown == config.UnknownInventoryAvailable:
		item.Status = StatusAvailable
	default:
		item.Status = StatusUnavailable
	}
	return item
}

var maxQuantity = decimal.NewFromInt(math.MaxInt64)

// stockQuantity floors the on-hand sum into [0, MaxInt64]. Oversold
// variations can drive the sum negative.
func stockQuantity(total decimal.Decimal) SafeInt64 {
	switch {
	case !total.IsPositive():
		return 0
	case total.GreaterThan(maxQuantity):
		return math.MaxInt64
	}
	return SafeInt64(total.Floor().IntPart())
}
