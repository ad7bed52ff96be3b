package helpers

import (
	"reflect"
	"testing"
)

func TestMerge_PartialOverridesOnlyItsKeys(t *testing.T) {
	base := map[string]any{"a": 0, "b": 2}
	got := Merge(base, map[string]any{"a": 1})

	want := map[string]any{"a": 1, "b": 2}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("expected %v, got %v", want, got)
	}
	if base["a"] != 0 {
		t.Errorf("base was modified: %v", base)
	}
}

func TestMerge_AgreesWithBaseAndPartial(t *testing.T) {
	cases := []struct {
		name    string
		base    map[string]any
		partial map[string]any
	}{
		{"empty partial", map[string]any{"x": "1"}, map[string]any{}},
		{"nil base", nil, map[string]any{"x": true}},
		{"disjoint", map[string]any{"x": 1.5}, map[string]any{"y": "z"}},
		{"overlap", map[string]any{"x": 1, "y": 2, "z": 3}, map[string]any{"y": nil, "z": 30}},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got := Merge(tc.base, tc.partial)
			for k, v := range tc.partial {
				if !reflect.DeepEqual(got[k], v) {
					t.Errorf("key %q: expected partial value %v, got %v", k, v, got[k])
				}
			}
			for k, v := range tc.base {
				if _, overridden := tc.partial[k]; overridden {
					continue
				}
				if !reflect.DeepEqual(got[k], v) {
					t.Errorf("key %q: expected base value %v, got %v", k, v, got[k])
				}
			}
			if len(got) > len(tc.base)+len(tc.partial) {
				t.Errorf("unexpected extra keys: %v", got)
			}
		})
	}
}

func TestMerge_IsShallow(t *testing.T) {
	base := map[string]any{"nested": map[string]any{"a": 1, "b": 2}}
	got := Merge(base, map[string]any{"nested": map[string]any{"a": 5}})

	nested := got["nested"].(map[string]any)
	if _, ok := nested["b"]; ok {
		t.Fatalf("expected nested map to be replaced, got %v", nested)
	}
}

func TestClone_NilGivesEmptyMap(t *testing.T) {
	var m map[string]int
	got := Clone(m)
	if got == nil || len(got) != 0 {
		t.Fatalf("expected empty non-nil map, got %#v", got)
	}
}
