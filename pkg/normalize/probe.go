package normalize

import (
	"math"
	"strconv"
	"strings"

	"github.com/PaesslerAG/jsonpath"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/shopspring/decimal"

	"github.com/Sternrassler/nse-market-client/pkg/logging"
)

var normalizeEmptyTotal = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "nse_normalize_empty_total",
	Help: "Normalizations where no known container shape matched, by record type",
}, []string{"record"})

// keyed renders a JSONPath selecting the nested children keys, then rest.
func keyed(rest string, keys ...string) string {
	var b strings.Builder
	b.WriteString("$")
	for _, k := range keys {
		b.WriteString("[" + strconv.Quote(k) + "]")
	}
	b.WriteString(rest)
	return b.String()
}

// foldKeys resolves keys against the nested objects of raw, matching each
// case-insensitively. An exact match wins; keys that are absent are kept.
func foldKeys(raw any, keys ...string) []string {
	out := make([]string, len(keys))
	cur, _ := raw.(map[string]any)
	for i, k := range keys {
		out[i] = k
		if cur == nil {
			continue
		}
		if _, ok := cur[k]; !ok {
			match := ""
			for name := range cur {
				if strings.EqualFold(name, k) && (match == "" || name < match) {
					match = name
				}
			}
			if match != "" {
				out[i] = match
			}
		}
		cur, _ = cur[out[i]].(map[string]any)
	}
	return out
}

// container returns the first probed value that is an array.
// A raw value no probe matches yields nil and is counted as a shape miss.
func container(record string, raw any, paths ...string) []any {
	list, _ := lookup(record, raw, paths...)
	return list
}

// lookup is container that also reports whether any probe matched, so an
// empty array can be told apart from a missing one.
func lookup(record string, raw any, paths ...string) (list []any, found bool) {
	defer func() {
		if r := recover(); r != nil {
			list, found = nil, false
		}
	}()

	if raw != nil {
		for _, p := range paths {
			v, err := jsonpath.Get(p, raw)
			if err != nil {
				continue
			}
			if arr, ok := v.([]any); ok {
				return arr, true
			}
		}
	}

	shapeMiss(record, raw)
	return nil, false
}

// object returns the first probed value that is a JSON object.
func object(raw any, paths ...string) (obj map[string]any) {
	defer func() {
		if r := recover(); r != nil {
			obj = nil
		}
	}()

	if raw == nil {
		return nil
	}
	for _, p := range paths {
		v, err := jsonpath.Get(p, raw)
		if err != nil {
			continue
		}
		if m, ok := v.(map[string]any); ok {
			return m
		}
	}
	return nil
}

func shapeMiss(record string, raw any) {
	normalizeEmptyTotal.WithLabelValues(record).Inc()
	logger := logging.NewLogger("normalize")
	logger.Debug().
		Str("record", record).
		Str("shape", shapeOf(raw)).
		Msg("No known container shape matched")
}

func shapeOf(raw any) string {
	switch raw.(type) {
	case nil:
		return "null"
	case map[string]any:
		return "object"
	case []any:
		return "array"
	case string:
		return "string"
	case bool:
		return "bool"
	default:
		return "number"
	}
}

// records keeps the object elements of list.
func records(list []any) []map[string]any {
	out := make([]map[string]any, 0, len(list))
	for _, item := range list {
		if rec, ok := item.(map[string]any); ok {
			out = append(out, rec)
		}
	}
	return out
}

// nested returns rec[name] when it is an object, or an empty object.
func nested(rec map[string]any, name string) map[string]any {
	if m, ok := rec[name].(map[string]any); ok {
		return m
	}
	return map[string]any{}
}

// str returns the first present, non-blank field among names.
func str(rec map[string]any, names ...string) string {
	for _, name := range names {
		switch v := rec[name].(type) {
		case string:
			if s := strings.TrimSpace(v); s != "" {
				return s
			}
		case float64:
			if !math.IsNaN(v) && !math.IsInf(v, 0) {
				return strconv.FormatFloat(v, 'f', -1, 64)
			}
		case interface{ String() string }:
			if s := strings.TrimSpace(v.String()); s != "" {
				return s
			}
		}
	}
	return ""
}

// num returns the first field among names that coerces to a number.
func num(rec map[string]any, names ...string) float64 {
	for _, name := range names {
		if f, ok := toFloat(rec[name]); ok {
			return f
		}
	}
	return 0
}

// count is num truncated to an integer.
func count(rec map[string]any, names ...string) int64 {
	return int64(num(rec, names...))
}

func toFloat(v any) (float64, bool) {
	switch t := v.(type) {
	case float64:
		return t, !math.IsNaN(t) && !math.IsInf(t, 0)
	case float32:
		return toFloat(float64(t))
	case int:
		return float64(t), true
	case int64:
		return float64(t), true
	case interface{ Float64() (float64, error) }:
		f, err := t.Float64()
		return f, err == nil
	case string:
		return parseNumber(t)
	}
	return 0, false
}

// parseNumber accepts upstream number strings such as "1,234.50" or " 12 ".
// "-" and "" are treated as absent.
func parseNumber(s string) (float64, bool) {
	s = strings.ReplaceAll(strings.TrimSpace(s), ",", "")
	if s == "" || s == "-" {
		return 0, false
	}
	d, err := decimal.NewFromString(s)
	if err != nil {
		return 0, false
	}
	f, _ := d.Float64()
	return f, true
}
