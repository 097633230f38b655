package plan

import (
	"encoding/json"
	"fmt"
	"strings"

	"mealweek/internal/types"
)

// ParseError reports raw upstream text that could not be parsed as a plan,
// even after best-effort JSON recovery. The raw text is preserved so the
// caller can display it instead of discarding the diagnostics.
type ParseError struct {
	Raw string
	Err error
}

// Error implements the error interface.
func (e *ParseError) Error() string {
	return fmt.Sprintf("plan output is not valid JSON: %v", e.Err)
}

// Unwrap returns the underlying JSON error.
func (e *ParseError) Unwrap() error {
	return e.Err
}

// IncompleteError reports a parseable plan that violates the structural
// contract. Missing holds every absent canonical recipe key, collected in
// full rather than failing on the first gap, so the caller can report
// complete diagnostics. DaysFound is the number of day entries present when
// the plan has fewer than seven.
type IncompleteError struct {
	Missing   []string
	DaysFound int
}

// Error implements the error interface.
func (e *IncompleteError) Error() string {
	if e.DaysFound > 0 && e.DaysFound < DaysPerWeek {
		return fmt.Sprintf("plan has %d of %d days and is missing recipes: %s",
			e.DaysFound, DaysPerWeek, strings.Join(e.Missing, ", "))
	}
	return "plan is missing recipes: " + strings.Join(e.Missing, ", ")
}

// rawPlan is the tolerant decoding target for upstream output. Recipe values
// are kept raw because upstream sometimes emits bare strings instead of
// recipe objects.
type rawPlan struct {
	Summary  string                     `json:"summary"`
	Days     []types.DayPlan            `json:"days"`
	Shopping []types.ShoppingTrip       `json:"shopping"`
	Recipes  map[string]json.RawMessage `json:"recipes"`
}

// ValidateAndNormalize parses raw upstream text into a GeneratedPlan and
// verifies the completeness contract: exactly 7 ordinal day entries and all
// 21 canonical recipe keys.
//
// Parsing is tolerant of surrounding prose: a strict parse is attempted
// first, then a best-effort recovery slicing from the first '{' to the last
// '}'. If both fail a *ParseError carrying the raw text is returned.
//
// Recipe keys are canonicalized (d{N}{meal}, d{N}-{meal} and d{N}_{meal} in
// any case all rewrite to d{N}_{meal}); malformed recipe values are skipped,
// which surfaces their slot in the missing-key diagnostics instead of
// aborting the whole validation.
func ValidateAndNormalize(rawText string) (*types.GeneratedPlan, error) {
	raw, err := parseTolerant(rawText)
	if err != nil {
		return nil, &ParseError{Raw: rawText, Err: err}
	}

	p := &types.GeneratedPlan{
		Summary:  raw.Summary,
		Shopping: raw.Shopping,
		Recipes:  make(map[string]types.Recipe, len(raw.Recipes)),
	}

	// Exactly 7 ordinal day entries: truncate extras and force ordinals so
	// downstream consumers can rely on days[i].Day == i+1.
	days := raw.Days
	if len(days) > DaysPerWeek {
		days = days[:DaysPerWeek]
	}
	p.Days = make([]types.DayPlan, len(days))
	for i, d := range days {
		d.Day = i + 1
		p.Days[i] = d
	}

	for key, rawRecipe := range raw.Recipes {
		canonical, ok := NormalizeKey(key)
		if !ok {
			continue
		}
		recipe, ok := decodeRecipe(rawRecipe)
		if !ok {
			continue
		}
		p.Recipes[canonical] = recipe
	}

	var missing []string
	for _, key := range RequiredKeys() {
		if _, ok := p.Recipes[key]; !ok {
			missing = append(missing, key)
		}
	}

	if len(missing) > 0 || len(p.Days) < DaysPerWeek {
		return nil, &IncompleteError{Missing: missing, DaysFound: len(p.Days)}
	}

	return p, nil
}

// parseTolerant attempts a strict JSON parse of the text, then retries on
// the substring between the first '{' and the last '}' to strip surrounding
// prose the upstream model tends to add.
func parseTolerant(text string) (*rawPlan, error) {
	var raw rawPlan
	strictErr := json.Unmarshal([]byte(text), &raw)
	if strictErr == nil {
		return &raw, nil
	}

	start := strings.Index(text, "{")
	end := strings.LastIndex(text, "}")
	if start < 0 || end <= start {
		return nil, strictErr
	}

	raw = rawPlan{}
	if err := json.Unmarshal([]byte(text[start:end+1]), &raw); err != nil {
		return nil, err
	}
	return &raw, nil
}

// decodeRecipe accepts either a recipe object or a bare string (which
// becomes the recipe text). Anything else is skipped.
func decodeRecipe(raw json.RawMessage) (types.Recipe, bool) {
	var recipe types.Recipe
	if err := json.Unmarshal(raw, &recipe); err == nil {
		return recipe, true
	}

	var text string
	if err := json.Unmarshal(raw, &text); err == nil {
		return types.Recipe{Text: text}, true
	}

	return types.Recipe{}, false
}
