package render

import (
	"sort"
	"strconv"
	"strings"
)

// Display renders a decoded JSON value as a short prompt-friendly string.
// The input is the closed set json.Unmarshal produces into any: string,
// float64, bool, nil, []any and map[string]any. Anything outside that set
// renders as the empty string rather than leaking Go syntax into a prompt.
func Display(v any) string {
	switch value := v.(type) {
	case nil:
		return ""
	case string:
		return value
	case bool:
		if value {
			return "ja"
		}
		return "nej"
	case float64:
		return formatNumber(value)
	case int:
		return strconv.Itoa(value)
	case int64:
		return strconv.FormatInt(value, 10)
	case []any:
		parts := make([]string, 0, len(value))
		for _, item := range value {
			if s := Display(item); s != "" {
				parts = append(parts, s)
			}
		}
		return strings.Join(parts, ", ")
	case map[string]any:
		keys := make([]string, 0, len(value))
		for key := range value {
			keys = append(keys, key)
		}
		sort.Strings(keys)
		parts := make([]string, 0, len(keys))
		for _, key := range keys {
			if s := Display(value[key]); s != "" {
				parts = append(parts, key+": "+s)
			}
		}
		return strings.Join(parts, "; ")
	default:
		return ""
	}
}

// formatNumber drops the trailing .0 JSON decoding puts on integral values.
func formatNumber(f float64) string {
	if f == float64(int64(f)) {
		return strconv.FormatInt(int64(f), 10)
	}
	return strconv.FormatFloat(f, 'f', -1, 64)
}
