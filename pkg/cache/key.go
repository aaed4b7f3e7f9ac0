package cache

import (
	"strings"
)

// KeyPrefix namespaces every key produced by Key.
const KeyPrefix = "nse"

// Key describes a namespaced cache key:
//
//	nse:<category>[:<identifier>][:<sub-resource>][:<variant>]
//
// Empty parts are skipped, so Key{Category: "gainers"} renders as "nse:gainers".
// The cache itself treats the rendered string as opaque.
type Key struct {
	// Category is the data family (e.g. "gainers", "index", "quote").
	Category string

	// Identifier narrows the category (e.g. an index name or symbol).
	Identifier string

	// SubResource selects a view of the identifier (e.g. "chart").
	SubResource string

	// Variant selects a parameterization (e.g. a timeframe such as "1D").
	Variant string
}

// String generates the key string.
//
// Example:
//
//	nse:index:NIFTY 50:chart:1D
func (k Key) String() string {
	return NewKey(k.Category, k.Identifier, k.SubResource, k.Variant)
}

// NewKey joins category and parts into a namespaced key, skipping blanks.
func NewKey(category string, parts ...string) string {
	out := make([]string, 0, len(parts)+2)
	out = append(out, KeyPrefix)

	if c := strings.TrimSpace(category); c != "" {
		out = append(out, c)
	}
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}

	return strings.Join(out, ":")
}
