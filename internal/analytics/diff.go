package analytics

import (
	"sort"
)

// ComparisonEntry is one key's delta between two runs. A and B are nil when
// the key is absent from that run; Delta is B−A only when both are present.
type ComparisonEntry struct {
	Key   string   `json:"key"`
	A     *float64 `json:"a"`
	B     *float64 `json:"b"`
	Delta *float64 `json:"delta"`
}

// Diff compares two runs' metric sets over the union of their keys. The
// result covers every key, sorted for deterministic output; ranking or
// top-N truncation is the caller's concern. Diff(a,b) and Diff(b,a) carry
// negated deltas wherever both values exist.
func Diff(a, b map[string]float64) []ComparisonEntry {
	keys := make(map[string]struct{}, len(a)+len(b))
	for k := range a {
		keys[k] = struct{}{}
	}
	for k := range b {
		keys[k] = struct{}{}
	}

	out := make([]ComparisonEntry, 0, len(keys))
	for k := range keys {
		entry := ComparisonEntry{Key: k}
		if av, ok := a[k]; ok {
			v := av
			entry.A = &v
		}
		if bv, ok := b[k]; ok {
			v := bv
			entry.B = &v
		}
		if entry.A != nil && entry.B != nil {
			d := *entry.B - *entry.A
			entry.Delta = &d
		}
		out = append(out, entry)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Key < out[j].Key })
	return out
}
