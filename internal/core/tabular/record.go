// Package tabular models flattened rows bound for the columnar table store
package tabular

import (
	"sort"
)

// Record is one flattened row produced by a source normalizer
// values are restricted to string, int64, float64, bool, nil and
// typed-nil *string (used when an all-null column is widened to text)
type Record map[string]any

// Batch is one fetched page of records
type Batch []Record

// Clone returns a shallow copy of the record
func (r Record) Clone() Record {
	out := make(Record, len(r))
	for k, v := range r {
		out[k] = v
	}
	return out
}

// Columns returns the sorted column names of the record
func (r Record) Columns() []string {
	out := make([]string, 0, len(r))
	for k := range r {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

// IsNull reports whether v is a null cell, including typed-nil *string
func IsNull(v any) bool {
	if v == nil {
		return true
	}
	if p, ok := v.(*string); ok {
		return p == nil
	}
	return false
}

// Columns returns the union of column names across the batch, sorted
func (b Batch) Columns() []string {
	seen := map[string]struct{}{}
	for _, r := range b {
		for k := range r {
			seen[k] = struct{}{}
		}
	}
	out := make([]string, 0, len(seen))
	for k := range seen {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}
