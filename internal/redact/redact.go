// Package redact masks price-like fields in JSON-shaped values.
package redact

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"reflect"
	"strings"
	"time"
)

// Mask replaces the value of every redacted field.
const Mask = "***"

// DefaultFields is the built-in deny-list. A key matches when, lowercased, it
// contains any token as a substring, so "order_total" and "TaxRate" both match.
var DefaultFields = []string{
	"price",
	"cost",
	"amount",
	"total",
	"sum",
	"budget",
	"margin",
	"profit",
	"revenue",
	"expense",
	"payment",
	"balance",
	"discount",
	"tax",
	"vat",
	"price_per_unit",
	"total_cost",
}

// Filter redacts values by key. The zero value is not usable; use New.
type Filter struct {
	tokens []string
}

// New returns a filter over DefaultFields plus extra tokens.
// Extra tokens can only widen the deny-list.
func New(extra ...string) *Filter {
	tokens := make([]string, 0, len(DefaultFields)+len(extra))
	seen := make(map[string]bool, cap(tokens))
	for _, t := range append(append([]string{}, DefaultFields...), extra...) {
		t = strings.ToLower(strings.TrimSpace(t))
		if t == "" || seen[t] {
			continue
		}
		seen[t] = true
		tokens = append(tokens, t)
	}
	return &Filter{tokens: tokens}
}

var defaultFilter = New()

// IsPriceField reports whether key matches the default deny-list.
func IsPriceField(key string) bool {
	return defaultFilter.IsPriceField(key)
}

// Redact applies the default deny-list to v.
func Redact(v any) any {
	return defaultFilter.Redact(v)
}

// RedactJSON applies the default deny-list to a JSON document.
func RedactJSON(body []byte) ([]byte, error) {
	return defaultFilter.RedactJSON(body)
}

func (f *Filter) IsPriceField(key string) bool {
	lower := strings.ToLower(key)
	for _, t := range f.tokens {
		if strings.Contains(lower, t) {
			return true
		}
	}
	return false
}

// Redact returns a copy of v with every matching key's value replaced by Mask,
// at any depth. Arrays keep their length and order, times and scalars are
// returned unchanged, nil stays nil. The input is not modified.
//
// Other composite values (typed maps and slices, structs, json.RawMessage) are
// normalised through their JSON encoding first. A value that cannot be encoded
// is replaced by Mask as a whole.
func (f *Filter) Redact(v any) any {
	switch val := v.(type) {
	case nil:
		return nil
	case time.Time, *time.Time:
		return val
	case map[string]any:
		out := make(map[string]any, len(val))
		for k, child := range val {
			if f.IsPriceField(k) {
				out[k] = Mask
				continue
			}
			out[k] = f.Redact(child)
		}
		return out
	case []any:
		out := make([]any, len(val))
		for i, child := range val {
			out[i] = f.Redact(child)
		}
		return out
	case []map[string]any:
		out := make([]any, len(val))
		for i, child := range val {
			out[i] = f.Redact(child)
		}
		return out
	case json.Number, string, bool, float64, float32, int, int64, int32, uint, uint64, uint32:
		return val
	default:
		if !isComposite(val) {
			return val
		}
		normalised, err := decodeJSON(val)
		if err != nil {
			return Mask
		}
		return f.Redact(normalised)
	}
}

func isComposite(v any) bool {
	rv := reflect.ValueOf(v)
	for rv.Kind() == reflect.Pointer || rv.Kind() == reflect.Interface {
		if rv.IsNil() {
			return false
		}
		rv = rv.Elem()
	}
	switch rv.Kind() {
	case reflect.Map, reflect.Slice, reflect.Array, reflect.Struct:
		return true
	}
	return false
}

// decodeJSON turns v into the map[string]any / []any form Redact walks.
func decodeJSON(v any) (any, error) {
	raw, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	return decodeSingle(raw)
}

var errTrailingData = errors.New("trailing data after json value")

// decodeSingle decodes exactly one JSON value; anything after it is an error.
func decodeSingle(body []byte) (any, error) {
	dec := json.NewDecoder(bytes.NewReader(body))
	dec.UseNumber()

	var v any
	if err := dec.Decode(&v); err != nil {
		return nil, err
	}
	var extra any
	if err := dec.Decode(&extra); !errors.Is(err, io.EOF) {
		return nil, errTrailingData
	}
	return v, nil
}

// RedactJSON decodes body, redacts it and re-encodes it. Numbers are kept as
// json.Number so unredacted values survive without float rounding. The body
// must hold exactly one JSON value.
func (f *Filter) RedactJSON(body []byte) ([]byte, error) {
	v, err := decodeSingle(body)
	if err != nil {
		return nil, fmt.Errorf("redact: decode body: %w", err)
	}

	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(f.Redact(v)); err != nil {
		return nil, fmt.Errorf("redact: encode body: %w", err)
	}
	return buf.Bytes(), nil
}
