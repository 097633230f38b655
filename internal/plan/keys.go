// Package plan validates and normalizes externally-generated weekly meal
// plans. It is a purely structural contract check on the artifact: the
// package knows nothing about subscriptions or quotas.
package plan

import (
	"fmt"
	"regexp"
	"strings"

	"mealweek/internal/types"
)

// DaysPerWeek is the number of day entries a complete plan contains.
const DaysPerWeek = 7

// recipeKeyPattern matches the accepted spellings of a recipe key:
// d{N}{meal}, d{N}-{meal} and d{N}_{meal}, case-insensitive.
var recipeKeyPattern = regexp.MustCompile(`(?i)^d([1-7])[-_]?(breakfast|lunch|dinner)$`)

// CanonicalKey returns the canonical d{day}_{meal} recipe key for a slot.
func CanonicalKey(day int, meal types.Meal) string {
	return fmt.Sprintf("d%d_%s", day, meal)
}

// NormalizeKey rewrites an accepted recipe key spelling to its canonical
// form. Returns false for strings that are not recipe keys in any accepted
// spelling.
func NormalizeKey(raw string) (string, bool) {
	m := recipeKeyPattern.FindStringSubmatch(strings.TrimSpace(raw))
	if m == nil {
		return "", false
	}
	return "d" + m[1] + "_" + strings.ToLower(m[2]), true
}

// RequiredKeys returns the 21 canonical recipe keys a complete plan must
// contain, in day-major order.
func RequiredKeys() []string {
	keys := make([]string, 0, DaysPerWeek*len(types.Meals))
	for day := 1; day <= DaysPerWeek; day++ {
		for _, meal := range types.Meals {
			keys = append(keys, CanonicalKey(day, meal))
		}
	}
	return keys
}
