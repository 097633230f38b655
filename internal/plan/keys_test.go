package plan

import (
	"testing"

	"mealweek/internal/types"
)

func TestCanonicalKey(t *testing.T) {
	if got := CanonicalKey(1, types.MealBreakfast); got != "d1_breakfast" {
		t.Errorf("CanonicalKey(1, breakfast) = %q, want d1_breakfast", got)
	}
	if got := CanonicalKey(7, types.MealDinner); got != "d7_dinner" {
		t.Errorf("CanonicalKey(7, dinner) = %q, want d7_dinner", got)
	}
}

func TestNormalizeKey_AcceptedSpellings(t *testing.T) {
	cases := []struct {
		in   string
		want string
	}{
		{"d1_breakfast", "d1_breakfast"},
		{"d1breakfast", "d1_breakfast"},
		{"d1-breakfast", "d1_breakfast"},
		{"D1-Breakfast", "d1_breakfast"},
		{"D3_LUNCH", "d3_lunch"},
		{"d7dinner", "d7_dinner"},
		{"  d2_lunch  ", "d2_lunch"},
	}
	for _, tc := range cases {
		got, ok := NormalizeKey(tc.in)
		if !ok {
			t.Errorf("NormalizeKey(%q) rejected, want %q", tc.in, tc.want)
			continue
		}
		if got != tc.want {
			t.Errorf("NormalizeKey(%q) = %q, want %q", tc.in, got, tc.want)
		}
	}
}

func TestNormalizeKey_Idempotent(t *testing.T) {
	for _, key := range RequiredKeys() {
		got, ok := NormalizeKey(key)
		if !ok || got != key {
			t.Errorf("NormalizeKey(%q) = (%q, %v), want identity", key, got, ok)
		}
	}
}

func TestNormalizeKey_Rejections(t *testing.T) {
	rejected := []string{
		"",
		"d0_breakfast",
		"d8_breakfast",
		"d1_brunch",
		"day1_breakfast",
		"d1__breakfast",
		"breakfast",
		"d1_breakfast_extra",
	}
	for _, in := range rejected {
		if got, ok := NormalizeKey(in); ok {
			t.Errorf("NormalizeKey(%q) = %q, want rejection", in, got)
		}
	}
}

func TestRequiredKeys(t *testing.T) {
	keys := RequiredKeys()
	if len(keys) != 21 {
		t.Fatalf("RequiredKeys() returned %d keys, want 21", len(keys))
	}

	// Day-major order: the first three keys belong to day 1, the last to day 7.
	if keys[0] != "d1_breakfast" || keys[1] != "d1_lunch" || keys[2] != "d1_dinner" {
		t.Errorf("unexpected day 1 keys: %v", keys[:3])
	}
	if keys[20] != "d7_dinner" {
		t.Errorf("last key = %q, want d7_dinner", keys[20])
	}

	seen := make(map[string]bool, len(keys))
	for _, k := range keys {
		if seen[k] {
			t.Errorf("duplicate key %q", k)
		}
		seen[k] = true
	}
}
