package store

import (
	"context"
	"encoding/json"
	"fmt"
	"reflect"
	"regexp"
	"sort"
	"strings"
	"time"
)

// Filter maps a field name to either a literal (direct equality) or an
// operator object: {$eq|$ne|$gt|$gte|$lt|$lte|$in|$nin|$exists|$regex: value}.
// Multiple fields are AND-ed.
type Filter map[string]any

// ListOptions control sorting, pagination and projection.
type ListOptions struct {
	SortBy    string   // field to sort on; "" for stable directory order
	SortOrder string   // "asc" (default) or "desc"
	Offset    int
	Limit     int      // 0 means no limit
	Fields    []string // projection; nil returns full documents
}

// Result is a page of documents. Total is the full count after
// filtering, before pagination.
type Result struct {
	Documents []Document
	Total     int
	HasMore   bool
}

// List returns every document in a collection with sorting, pagination
// and projection applied. A missing collection yields an empty result.
func (s *Store) List(ctx context.Context, collection string, opts *ListOptions) (*Result, error) {
	docs, err := s.readAll(ctx, collection)
	if err != nil {
		return nil, err
	}
	return paginate(docs, opts), nil
}

// Query filters a collection, then sorts, paginates and projects in that
// order.
func (s *Store) Query(ctx context.Context, collection string, filter Filter, opts *ListOptions) (*Result, error) {
	docs, err := s.readAll(ctx, collection)
	if err != nil {
		return nil, err
	}

	matched := docs[:0:0]
	for _, doc := range docs {
		ok, err := matchFilter(doc, filter)
		if err != nil {
			return nil, err
		}
		if ok {
			matched = append(matched, doc)
		}
	}
	return paginate(matched, opts), nil
}

func paginate(docs []Document, opts *ListOptions) *Result {
	if opts == nil {
		opts = &ListOptions{}
	}
	if opts.SortBy != "" {
		sortDocuments(docs, opts.SortBy, opts.SortOrder == "desc")
	}

	total := len(docs)
	offset := opts.Offset
	if offset > total {
		offset = total
	}
	page := docs[offset:]

	hasMore := false
	if opts.Limit > 0 {
		if len(page) > opts.Limit {
			page = page[:opts.Limit]
		}
		hasMore = opts.Offset+opts.Limit < total
	}

	if opts.Fields != nil {
		projected := make([]Document, len(page))
		for i, doc := range page {
			projected[i] = project(doc, opts.Fields)
		}
		page = projected
	}

	return &Result{Documents: page, Total: total, HasMore: hasMore}
}

// project returns a document holding only the named fields. Fields the
// document does not have are omitted, not defaulted.
func project(doc Document, fields []string) Document {
	out := make(Document, len(fields))
	for _, f := range fields {
		if v, ok := doc[f]; ok {
			out[f] = v
		}
	}
	return out
}

// sortDocuments sorts in place. Values that are missing or incomparable
// never order before or after anything, keeping the sort stable for them.
func sortDocuments(docs []Document, field string, desc bool) {
	sort.SliceStable(docs, func(i, j int) bool {
		cmp, ok := compareValues(docs[i][field], docs[j][field])
		if !ok {
			return false
		}
		if desc {
			return cmp > 0
		}
		return cmp < 0
	})
}

func matchFilter(doc Document, filter Filter) (bool, error) {
	for field, cond := range filter {
		ok, err := matchCondition(doc[field], cond)
		if err != nil {
			return false, err
		}
		if !ok {
			return false, nil
		}
	}
	return true, nil
}

func matchCondition(value, cond any) (bool, error) {
	if ops, isMap := cond.(map[string]any); isMap {
		return matchOperators(value, ops)
	}
	return equalValues(value, cond), nil
}

func matchOperators(value any, ops map[string]any) (bool, error) {
	for op, arg := range ops {
		ok, err := matchOperator(value, op, arg)
		if err != nil {
			return false, err
		}
		if !ok {
			return false, nil
		}
	}
	return true, nil
}

func matchOperator(value any, op string, arg any) (bool, error) {
	switch op {
	case "$eq":
		return equalValues(value, arg), nil
	case "$ne":
		return !equalValues(value, arg), nil
	case "$gt":
		cmp, ok := compareValues(value, arg)
		return ok && cmp > 0, nil
	case "$gte":
		cmp, ok := compareValues(value, arg)
		return ok && cmp >= 0, nil
	case "$lt":
		cmp, ok := compareValues(value, arg)
		return ok && cmp < 0, nil
	case "$lte":
		cmp, ok := compareValues(value, arg)
		return ok && cmp <= 0, nil
	case "$in":
		return containsValue(arg, value), nil
	case "$nin":
		return !containsValue(arg, value), nil
	case "$exists":
		want, _ := arg.(bool)
		return (value != nil) == want, nil
	case "$regex":
		pattern, ok := arg.(string)
		if !ok {
			return false, fmt.Errorf("store: $regex wants a string pattern, got %T", arg)
		}
		re, err := regexp.Compile(pattern)
		if err != nil {
			return false, fmt.Errorf("store: invalid $regex pattern %q: %w", pattern, err)
		}
		return re.MatchString(fmt.Sprint(value)), nil
	default:
		// Unknown operators do not constrain the match.
		return true, nil
	}
}

func containsValue(set, value any) bool {
	items, ok := set.([]any)
	if !ok {
		return false
	}
	for _, item := range items {
		if equalValues(value, item) {
			return true
		}
	}
	return false
}

func equalValues(a, b any) bool {
	if ta, ok := toTime(a); ok {
		tb, ok := toTime(b)
		return ok && ta.Equal(tb)
	}
	if na, ok := toFloat(a); ok {
		nb, ok := toFloat(b)
		return ok && na == nb
	}
	return reflect.DeepEqual(a, b)
}

// compareValues orders two values when they share a comparable type:
// times chronologically, numbers numerically, strings lexically.
func compareValues(a, b any) (int, bool) {
	if a == nil || b == nil {
		return 0, false
	}
	if ta, ok := toTime(a); ok {
		if tb, ok := toTime(b); ok {
			return ta.Compare(tb), true
		}
		return 0, false
	}
	if na, ok := toFloat(a); ok {
		if nb, ok := toFloat(b); ok {
			switch {
			case na < nb:
				return -1, true
			case na > nb:
				return 1, true
			default:
				return 0, true
			}
		}
		return 0, false
	}
	if sa, ok := a.(string); ok {
		if sb, ok := b.(string); ok {
			return strings.Compare(sa, sb), true
		}
	}
	return 0, false
}

func toFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	case float32:
		return float64(n), true
	case float64:
		return n, true
	case json.Number:
		f, err := n.Float64()
		return f, err == nil
	default:
		return 0, false
	}
}

func toTime(v any) (time.Time, bool) {
	switch t := v.(type) {
	case time.Time:
		return t, true
	case string:
		if isoTimestampPrefix.MatchString(t) {
			if parsed, err := time.Parse(time.RFC3339, t); err == nil {
				return parsed, true
			}
		}
	}
	return time.Time{}, false
}
