package analytics

import (
	"testing"
)

func TestDiff_UnionOfKeys(t *testing.T) {
	a := map[string]float64{"cpu_used_pct": 40, "load1": 1.5}
	b := map[string]float64{"cpu_used_pct": 55, "mem_used_bytes": 8e9}

	got := Diff(a, b)
	if len(got) != 3 {
		t.Fatalf("got %d entries, want 3", len(got))
	}

	byKey := make(map[string]ComparisonEntry, len(got))
	for _, e := range got {
		byKey[e.Key] = e
	}

	cpu := byKey["cpu_used_pct"]
	if cpu.Delta == nil || *cpu.Delta != 15 {
		t.Errorf("cpu delta: got %v, want 15", cpu.Delta)
	}

	load := byKey["load1"]
	if load.A == nil || *load.A != 1.5 {
		t.Errorf("load1 a: got %v, want 1.5", load.A)
	}
	if load.B != nil || load.Delta != nil {
		t.Errorf("load1: b and delta must be nil when key absent from b")
	}

	mem := byKey["mem_used_bytes"]
	if mem.A != nil || mem.Delta != nil {
		t.Errorf("mem_used_bytes: a and delta must be nil when key absent from a")
	}
}

func TestDiff_Antisymmetric(t *testing.T) {
	a := map[string]float64{"x": 10, "y": -3, "shared": 7.5}
	b := map[string]float64{"x": 4, "y": 2, "shared": 7.5}

	ab := Diff(a, b)
	ba := Diff(b, a)
	if len(ab) != len(ba) {
		t.Fatalf("lengths differ: %d vs %d", len(ab), len(ba))
	}
	for i := range ab {
		if ab[i].Key != ba[i].Key {
			t.Fatalf("key order differs at %d: %q vs %q", i, ab[i].Key, ba[i].Key)
		}
		if ab[i].Delta == nil || ba[i].Delta == nil {
			t.Fatalf("%s: unexpected nil delta", ab[i].Key)
		}
		if *ab[i].Delta != -*ba[i].Delta {
			t.Errorf("%s: delta %v, reverse %v — not antisymmetric", ab[i].Key, *ab[i].Delta, *ba[i].Delta)
		}
	}
}

func TestDiff_Empty(t *testing.T) {
	if got := Diff(nil, nil); len(got) != 0 {
		t.Errorf("Diff(nil,nil): got %v, want empty", got)
	}
}

func TestDiff_SortedByKey(t *testing.T) {
	got := Diff(map[string]float64{"z": 1, "a": 2, "m": 3}, nil)
	want := []string{"a", "m", "z"}
	for i, w := range want {
		if got[i].Key != w {
			t.Errorf("entry %d: key %q, want %q", i, got[i].Key, w)
		}
	}
}
