package catalog

import (
	"errors"
	"fmt"
	"maps"
	"slices"
	"strings"
)

// ErrNotFound covers unknown slugs and missing products.
var ErrNotFound = errors.New("not found")

// ValidationError reports malformed request input, keyed by field name.
type ValidationError struct {
	Fields map[string]string
}

func (e *ValidationError) Error() string {
	if e == nil || len(e.Fields) == 0 {
		return "invalid request"
	}
	parts := make([]string, 0, len(e.Fields))
	for _, k := range slices.Sorted(maps.Keys(e.Fields)) {
		parts = append(parts, k+": "+e.Fields[k])
	}
	return "invalid request: " + strings.Join(parts, "; ")
}

func newValidationError(field, msg string) *ValidationError {
	return &ValidationError{Fields: map[string]string{field: msg}}
}

// NormalizationError means a provider payload could not be turned into items.
type NormalizationError struct {
	Reason string
	Err    error
}

func (e *NormalizationError) Error() string {
	if e.Err == nil {
		return "normalize catalog: " + e.Reason
	}
	return fmt.Sprintf("normalize catalog: %s: %v", e.Reason, e.Err)
}

func (e *NormalizationError) Unwrap() error { return e.Err }
