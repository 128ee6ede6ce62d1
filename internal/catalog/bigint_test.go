package catalog

import (
	"bytes"
	"encoding/json"
	"strconv"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"
)

func TestSafeInt64_MarshalsAsString(t *testing.T) {
	raw, err := json.Marshal(struct {
		Price SafeInt64 `json:"price"`
	}{Price: 9007199254740993})
	require.NoError(t, err)
	assert.JSONEq(t, `{"price":"9007199254740993"}`, string(raw))
}

func TestSafeInt64_Unmarshal(t *testing.T) {
	var v struct {
		A SafeInt64 `json:"a"`
		B SafeInt64 `json:"b"`
		C SafeInt64 `json:"c"`
	}
	require.NoError(t, json.Unmarshal([]byte(`{"a":"-9223372036854775808","b":42,"c":null}`), &v))
	assert.Equal(t, SafeInt64(-9223372036854775808), v.A)
	assert.Equal(t, SafeInt64(42), v.B)
	assert.Equal(t, SafeInt64(0), v.C)

	assert.Error(t, json.Unmarshal([]byte(`{"a":"12x"}`), &v))
}

func TestSanitizeJSON(t *testing.T) {
	in := []byte(`{"id":"X","version":9007199254740993,"safe":9007199254740991,"neg":-9007199254740992,
		"price":12.5,"exp":1e21,"huge":123456789012345678901234567890,"list":[1,18446744073709551615],"ok":true,"nil":null}`)
	out, err := SanitizeJSON(in)
	require.NoError(t, err)
	assert.JSONEq(t, `{"id":"X","version":"9007199254740993","safe":9007199254740991,"neg":"-9007199254740992",
		"price":12.5,"exp":1e21,"huge":"123456789012345678901234567890","list":[1,"18446744073709551615"],"ok":true,"nil":null}`, string(out))

	_, err = SanitizeJSON([]byte(`{"broken":`))
	assert.Error(t, err)
}

func TestSanitizeJSON_PreservesEveryInt64(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		n := rapid.Int64().Draw(t, "n")
		out, err := SanitizeJSON([]byte(`{"n":` + strconv.FormatInt(n, 10) + `}`))
		if err != nil {
			t.Fatalf("sanitize: %v", err)
		}

		dec := json.NewDecoder(bytes.NewReader(out))
		dec.UseNumber()
		var doc map[string]any
		if err := dec.Decode(&doc); err != nil {
			t.Fatalf("decode: %v", err)
		}

		safe := n <= MaxSafeInteger && n >= -MaxSafeInteger
		switch v := doc["n"].(type) {
		case json.Number:
			if !safe || v.String() != strconv.FormatInt(n, 10) {
				t.Fatalf("%d kept as number %s", n, v)
			}
		case string:
			if safe || v != strconv.FormatInt(n, 10) {
				t.Fatalf("%d rewritten as string %q", n, v)
			}
		default:
			t.Fatalf("unexpected type %T", v)
		}
	})
}
