package plan

import (
	"encoding/json"
	"errors"
	"fmt"
	"reflect"
	"strings"
	"testing"
)

// completePlanJSON builds a structurally complete plan document, with hooks
// to mutate the recipes and days before marshalling.
func completePlanJSON(t *testing.T, mutate func(doc map[string]any)) string {
	t.Helper()

	days := make([]map[string]any, 7)
	for i := range days {
		days[i] = map[string]any{
			"day":       i + 1,
			"breakfast": fmt.Sprintf("breakfast %d", i+1),
			"lunch":     fmt.Sprintf("lunch %d", i+1),
			"dinner":    fmt.Sprintf("dinner %d", i+1),
		}
	}

	recipes := make(map[string]any, 21)
	for _, key := range RequiredKeys() {
		recipes[key] = map[string]any{
			"title": "recipe for " + key,
			"text":  "cook it",
		}
	}

	doc := map[string]any{
		"summary": "a test week",
		"days":    days,
		"shopping": []map[string]any{
			{"trip": 1, "days": "Mon-Thu", "items": []string{"rice", "eggs"}},
			{"trip": 2, "days": "Fri-Sun", "items": []string{"fish"}},
		},
		"recipes": recipes,
	}

	if mutate != nil {
		mutate(doc)
	}

	b, err := json.Marshal(doc)
	if err != nil {
		t.Fatalf("marshalling test plan: %v", err)
	}
	return string(b)
}

func TestValidateAndNormalize_CompletePlan(t *testing.T) {
	p, err := ValidateAndNormalize(completePlanJSON(t, nil))
	if err != nil {
		t.Fatalf("ValidateAndNormalize() error = %v", err)
	}

	if len(p.Days) != 7 {
		t.Errorf("len(Days) = %d, want 7", len(p.Days))
	}
	for i, d := range p.Days {
		if d.Day != i+1 {
			t.Errorf("Days[%d].Day = %d, want %d", i, d.Day, i+1)
		}
	}
	if len(p.Recipes) != 21 {
		t.Errorf("len(Recipes) = %d, want 21", len(p.Recipes))
	}
	if p.Summary != "a test week" {
		t.Errorf("Summary = %q", p.Summary)
	}
}

func TestValidateAndNormalize_AcceptedPlanRoundTrips(t *testing.T) {
	// An accepted plan, re-serialized and re-validated, must be accepted
	// again with nothing reported missing: normalization is a fixed point.
	first, err := ValidateAndNormalize(completePlanJSON(t, func(doc map[string]any) {
		recipes := doc["recipes"].(map[string]any)
		recipes["D1-Breakfast"] = recipes["d1_breakfast"]
		delete(recipes, "d1_breakfast")
	}))
	if err != nil {
		t.Fatalf("first ValidateAndNormalize() error = %v", err)
	}

	b, err := json.Marshal(first)
	if err != nil {
		t.Fatalf("re-marshalling accepted plan: %v", err)
	}

	second, err := ValidateAndNormalize(string(b))
	if err != nil {
		t.Fatalf("second ValidateAndNormalize() error = %v", err)
	}
	if !reflect.DeepEqual(first, second) {
		t.Errorf("round-tripped plan differs:\nfirst:  %+v\nsecond: %+v", first, second)
	}
}

func TestValidateAndNormalize_SurroundingProse(t *testing.T) {
	text := "Here is your weekly plan:\n\n" + completePlanJSON(t, nil) + "\n\nEnjoy!"

	p, err := ValidateAndNormalize(text)
	if err != nil {
		t.Fatalf("ValidateAndNormalize() with prose error = %v", err)
	}
	if len(p.Recipes) != 21 {
		t.Errorf("len(Recipes) = %d, want 21", len(p.Recipes))
	}
}

func TestValidateAndNormalize_VariantKeySpellings(t *testing.T) {
	text := completePlanJSON(t, func(doc map[string]any) {
		recipes := doc["recipes"].(map[string]any)
		v := recipes["d1_breakfast"]
		delete(recipes, "d1_breakfast")
		recipes["D1-Breakfast"] = v

		v = recipes["d4_lunch"]
		delete(recipes, "d4_lunch")
		recipes["d4lunch"] = v
	})

	p, err := ValidateAndNormalize(text)
	if err != nil {
		t.Fatalf("ValidateAndNormalize() error = %v", err)
	}
	if _, ok := p.Recipes["d1_breakfast"]; !ok {
		t.Error("D1-Breakfast was not canonicalized to d1_breakfast")
	}
	if _, ok := p.Recipes["d4_lunch"]; !ok {
		t.Error("d4lunch was not canonicalized to d4_lunch")
	}
}

func TestValidateAndNormalize_BareStringRecipe(t *testing.T) {
	text := completePlanJSON(t, func(doc map[string]any) {
		recipes := doc["recipes"].(map[string]any)
		recipes["d2_dinner"] = "just fry the fish"
	})

	p, err := ValidateAndNormalize(text)
	if err != nil {
		t.Fatalf("ValidateAndNormalize() error = %v", err)
	}
	if got := p.Recipes["d2_dinner"].Text; got != "just fry the fish" {
		t.Errorf("bare string recipe Text = %q", got)
	}
}

func TestValidateAndNormalize_MissingRecipe(t *testing.T) {
	text := completePlanJSON(t, func(doc map[string]any) {
		delete(doc["recipes"].(map[string]any), "d7_dinner")
	})

	_, err := ValidateAndNormalize(text)
	var incomplete *IncompleteError
	if !errors.As(err, &incomplete) {
		t.Fatalf("error = %v, want *IncompleteError", err)
	}
	if len(incomplete.Missing) != 1 || incomplete.Missing[0] != "d7_dinner" {
		t.Errorf("Missing = %v, want [d7_dinner]", incomplete.Missing)
	}
	if incomplete.DaysFound != 7 {
		t.Errorf("DaysFound = %d, want 7", incomplete.DaysFound)
	}
}

func TestValidateAndNormalize_CollectsAllMissingKeys(t *testing.T) {
	text := completePlanJSON(t, func(doc map[string]any) {
		recipes := doc["recipes"].(map[string]any)
		delete(recipes, "d1_breakfast")
		delete(recipes, "d3_lunch")
		delete(recipes, "d7_dinner")
	})

	_, err := ValidateAndNormalize(text)
	var incomplete *IncompleteError
	if !errors.As(err, &incomplete) {
		t.Fatalf("error = %v, want *IncompleteError", err)
	}
	if len(incomplete.Missing) != 3 {
		t.Fatalf("Missing = %v, want 3 keys", incomplete.Missing)
	}
}

func TestValidateAndNormalize_ShortWeek(t *testing.T) {
	text := completePlanJSON(t, func(doc map[string]any) {
		doc["days"] = doc["days"].([]map[string]any)[:5]
	})

	_, err := ValidateAndNormalize(text)
	var incomplete *IncompleteError
	if !errors.As(err, &incomplete) {
		t.Fatalf("error = %v, want *IncompleteError", err)
	}
	if incomplete.DaysFound != 5 {
		t.Errorf("DaysFound = %d, want 5", incomplete.DaysFound)
	}
}

func TestValidateAndNormalize_ExtraDaysTruncated(t *testing.T) {
	text := completePlanJSON(t, func(doc map[string]any) {
		days := doc["days"].([]map[string]any)
		days = append(days, map[string]any{"day": 99, "breakfast": "x", "lunch": "y", "dinner": "z"})
		doc["days"] = days
	})

	p, err := ValidateAndNormalize(text)
	if err != nil {
		t.Fatalf("ValidateAndNormalize() error = %v", err)
	}
	if len(p.Days) != 7 {
		t.Errorf("len(Days) = %d, want 7 after truncation", len(p.Days))
	}
}

func TestValidateAndNormalize_MalformedRecipeValueSkipped(t *testing.T) {
	// A recipe value that is neither an object nor a string must surface as
	// a missing key, not abort parsing.
	text := completePlanJSON(t, func(doc map[string]any) {
		doc["recipes"].(map[string]any)["d5_lunch"] = 42
	})

	_, err := ValidateAndNormalize(text)
	var incomplete *IncompleteError
	if !errors.As(err, &incomplete) {
		t.Fatalf("error = %v, want *IncompleteError", err)
	}
	if len(incomplete.Missing) != 1 || incomplete.Missing[0] != "d5_lunch" {
		t.Errorf("Missing = %v, want [d5_lunch]", incomplete.Missing)
	}
}

func TestValidateAndNormalize_ParseFailure(t *testing.T) {
	raw := "I could not produce a plan today, sorry."

	_, err := ValidateAndNormalize(raw)
	var parseErr *ParseError
	if !errors.As(err, &parseErr) {
		t.Fatalf("error = %v, want *ParseError", err)
	}
	if parseErr.Raw != raw {
		t.Errorf("ParseError.Raw does not preserve the original text")
	}
	if !strings.Contains(parseErr.Error(), "not valid JSON") {
		t.Errorf("unexpected error message: %v", parseErr)
	}
}

func TestValidateAndNormalize_BrokenBraces(t *testing.T) {
	_, err := ValidateAndNormalize(`prose only } no opening brace first`)
	var parseErr *ParseError
	if !errors.As(err, &parseErr) {
		t.Fatalf("error = %v, want *ParseError", err)
	}
}
