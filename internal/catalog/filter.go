package catalog

import (
	"slices"
	"strings"
)

// StockFilter is the set of statuses a caller wants to see. An empty filter
// keeps everything.
type StockFilter map[Status]struct{}

var stockTokens = map[string]Status{
	"IN_STOCK":     StatusAvailable,
	"AVAILABLE":    StatusAvailable,
	"SOLD_OUT":     StatusUnavailable,
	"OUT_OF_STOCK": StatusUnavailable,
	"UNAVAILABLE":  StatusUnavailable,
}

// ParseStockFilter reads a comma-separated token list such as
// "IN_STOCK,SOLD_OUT". Unknown tokens are dropped unless strict is set, in
// which case they produce a ValidationError.
func ParseStockFilter(raw string, strict bool) (StockFilter, error) {
	filter := StockFilter{}
	var unknown []string
	for _, token := range strings.Split(raw, ",") {
		token = strings.ToUpper(strings.TrimSpace(token))
		if token == "" {
			continue
		}
		status, ok := stockTokens[token]
		if !ok {
			unknown = append(unknown, token)
			continue
		}
		filter[status] = struct{}{}
	}
	if strict && len(unknown) > 0 {
		return nil, newValidationError("stock", "unknown stock status "+strings.Join(unknown, ", "))
	}
	return filter, nil
}

func (f StockFilter) Empty() bool { return len(f) == 0 }

// Allows reports whether an item with status s passes the filter.
func (f StockFilter) Allows(s Status) bool {
	if f.Empty() {
		return true
	}
	_, ok := f[s]
	return ok
}

// String is the canonical token list, stable across token order and aliases.
func (f StockFilter) String() string {
	out := make([]string, 0, len(f))
	for s := range f {
		out = append(out, string(s))
	}
	slices.Sort(out)
	return strings.Join(out, ",")
}

// Sort is the requested item ordering.
type Sort string

const (
	SortNameAsc  Sort = "name_asc"
	SortNameDesc Sort = "name_desc"
)

// ParseSort maps anything other than name_desc to name_asc.
func ParseSort(raw string) Sort {
	if strings.EqualFold(strings.TrimSpace(raw), string(SortNameDesc)) {
		return SortNameDesc
	}
	return SortNameAsc
}

// SortOrder is the provider's spelling of the direction.
func (s Sort) SortOrder() string {
	if s == SortNameDesc {
		return "DESC"
	}
	return "ASC"
}
