package scoring

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"
)

// InvalidInputError reports an analysis document that cannot be scored at all.
type InvalidInputError struct {
	Reason string
}

func (e *InvalidInputError) Error() string {
	return "invalid analysis document: " + e.Reason
}

// IsInvalidInput reports whether err is (or wraps) an InvalidInputError.
func IsInvalidInput(err error) bool {
	var target *InvalidInputError
	return errors.As(err, &target)
}

// analysisSections are the top-level keys that identify an unwrapped analysis document.
var analysisSections = []string{
	"banner_analysis",
	"before_consent",
	"after_consent",
	"network_requests",
	"metadata",
}

// DecodeDocument parses raw JSON into an analysis document. Numbers are kept as
// json.Number so millisecond timestamps survive intact.
func DecodeDocument(data []byte) (map[string]any, error) {
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) == 0 {
		return nil, &InvalidInputError{Reason: "empty document"}
	}
	dec := json.NewDecoder(bytes.NewReader(trimmed))
	dec.UseNumber()
	var value any
	if err := dec.Decode(&value); err != nil {
		return nil, &InvalidInputError{Reason: fmt.Sprintf("decode json: %v", err)}
	}
	doc, ok := value.(map[string]any)
	if !ok {
		return nil, &InvalidInputError{Reason: fmt.Sprintf("expected a JSON object, got %s", kindOf(value))}
	}
	return doc, nil
}

// UnwrapDocument returns the analysis payload carried inside an analysis service
// envelope ({"success": true, "data": {...}}). Documents that already look like an
// analysis are returned unchanged.
func UnwrapDocument(doc map[string]any) map[string]any {
	if doc == nil {
		return nil
	}
	for _, key := range analysisSections {
		if _, ok := doc[key]; ok {
			return doc
		}
	}
	if inner := mapAt(doc, "data"); inner != nil {
		return inner
	}
	return doc
}

func mapAt(m map[string]any, path ...string) map[string]any {
	current := m
	for _, key := range path {
		if current == nil {
			return nil
		}
		next, ok := current[key].(map[string]any)
		if !ok {
			return nil
		}
		current = next
	}
	return current
}

func boolAt(m map[string]any, path ...string) bool {
	if len(path) == 0 {
		return false
	}
	parent := mapAt(m, path[:len(path)-1]...)
	if parent == nil {
		return false
	}
	switch v := parent[path[len(path)-1]].(type) {
	case bool:
		return v
	case string:
		parsed, err := strconv.ParseBool(strings.TrimSpace(v))
		return err == nil && parsed
	default:
		return false
	}
}

func stringAt(m map[string]any, path ...string) string {
	if len(path) == 0 {
		return ""
	}
	parent := mapAt(m, path[:len(path)-1]...)
	if parent == nil {
		return ""
	}
	s, _ := parent[path[len(path)-1]].(string)
	return s
}

func listAt(m map[string]any, path ...string) []any {
	if len(path) == 0 {
		return nil
	}
	parent := mapAt(m, path[:len(path)-1]...)
	if parent == nil {
		return nil
	}
	list, _ := parent[path[len(path)-1]].([]any)
	return list
}

// number interprets JSON numbers, native numeric types and numeric strings. NaN and
// infinities are rejected.
func number(v any) (float64, bool) {
	f, ok := rawNumber(v)
	if !ok || math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, false
	}
	return f, true
}

func rawNumber(v any) (float64, bool) {
	switch n := v.(type) {
	case json.Number:
		f, err := n.Float64()
		return f, err == nil
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	case int32:
		return float64(n), true
	case uint:
		return float64(n), true
	case uint64:
		return float64(n), true
	case string:
		f, err := strconv.ParseFloat(strings.TrimSpace(n), 64)
		return f, err == nil
	default:
		return 0, false
	}
}

// summaryTotal sums the numeric values of a cookie category summary.
func summaryTotal(summary map[string]any) float64 {
	var total float64
	for _, v := range summary {
		if n, ok := number(v); ok {
			total += n
		}
	}
	return total
}

func summaryCount(summary map[string]any, category string) float64 {
	n, _ := number(summary[category])
	return n
}

func kindOf(v any) string {
	switch v.(type) {
	case nil:
		return "null"
	case []any:
		return "array"
	case string:
		return "string"
	case bool:
		return "boolean"
	case json.Number, float64:
		return "number"
	default:
		return fmt.Sprintf("%T", v)
	}
}
