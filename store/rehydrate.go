package store

import (
	"regexp"
	"time"
)

// Strings shaped like an ISO-8601 timestamp are turned back into
// time.Time on load, recursively through nested maps and arrays. The
// shape test is intentionally a prefix sniff: it is what keeps on-disk
// round-trips stable, so a date-like string that fails to parse is left
// as-is rather than rejected.
var isoTimestampPrefix = regexp.MustCompile(`^\d{4}-\d{2}-\d{2}T`)

func rehydrate(v any) any {
	switch val := v.(type) {
	case map[string]any:
		for k, elem := range val {
			val[k] = rehydrate(elem)
		}
		return val
	case []any:
		for i, elem := range val {
			val[i] = rehydrate(elem)
		}
		return val
	case string:
		if isoTimestampPrefix.MatchString(val) {
			if t, err := time.Parse(time.RFC3339, val); err == nil {
				return t
			}
		}
		return val
	default:
		return v
	}
}
