package catalog

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"github.com/invopop/jsonschema"
)

// MaxSafeInteger is the largest integer a browser's Number holds exactly.
const MaxSafeInteger = 1<<53 - 1

// SafeInt64 is a 64-bit integer whose wire form is always a decimal string,
// so browser clients never round it through a float.
type SafeInt64 int64

func (v SafeInt64) MarshalJSON() ([]byte, error) {
	return []byte(strconv.Quote(strconv.FormatInt(int64(v), 10))), nil
}

// UnmarshalJSON accepts the string form and, for older payloads, a bare number.
func (v *SafeInt64) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if bytes.Equal(data, []byte("null")) {
		return nil
	}
	s := string(data)
	if len(data) > 0 && data[0] == '"' {
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
	}
	n, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return fmt.Errorf("parse numeric string %q: %w", s, err)
	}
	*v = SafeInt64(n)
	return nil
}

func (SafeInt64) JSONSchema() *jsonschema.Schema {
	return &jsonschema.Schema{
		Type:        "string",
		Pattern:     `^-?[0-9]+$`,
		Description: "64-bit integer encoded as a decimal string",
	}
}

// SanitizeJSON rewrites every integer literal outside the browser-safe range
// into a decimal string. Everything else is preserved; object keys come back
// sorted because the document is re-encoded.
func SanitizeJSON(raw []byte) ([]byte, error) {
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()
	var doc any
	if err := dec.Decode(&doc); err != nil {
		return nil, fmt.Errorf("decode json: %w", err)
	}

	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(sanitize(doc)); err != nil {
		return nil, fmt.Errorf("encode json: %w", err)
	}
	return bytes.TrimRight(buf.Bytes(), "\n"), nil
}

func sanitize(v any) any {
	switch t := v.(type) {
	case map[string]any:
		for k, child := range t {
			t[k] = sanitize(child)
		}
		return t
	case []any:
		for i, child := range t {
			t[i] = sanitize(child)
		}
		return t
	case json.Number:
		if isUnsafeInteger(string(t)) {
			return string(t)
		}
		return t
	}
	return v
}

func isUnsafeInteger(n string) bool {
	if strings.ContainsAny(n, ".eE") {
		return false
	}
	i, err := strconv.ParseInt(n, 10, 64)
	if err != nil {
		// beyond int64 entirely
		return true
	}
	return i > MaxSafeInteger || i < -MaxSafeInteger
}
