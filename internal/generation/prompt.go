package generation

import (
	"fmt"
	"strings"
	"time"

	"mealweek/internal/plan"
	"mealweek/internal/types"
)

// styleInstructions maps style × language to the instruction sentence
// embedded in the prompt. Lookup falls back to English for languages without
// a translation, so prompt construction is total over all inputs.
var styleInstructions = map[types.MealStyle]map[string]string{
	types.StyleCheap: {
		"en": "Keep the plan as cheap as possible: inexpensive staple ingredients, minimal waste, reuse leftovers.",
		"pt": "Mantém o plano o mais barato possível: ingredientes básicos e económicos, desperdício mínimo, reaproveita sobras.",
	},
	types.StyleQuick: {
		"en": "Every meal must be quick: at most 25 minutes of preparation, few steps, few dishes to wash.",
		"pt": "Todas as refeições devem ser rápidas: no máximo 25 minutos de preparação, poucos passos, pouca loiça.",
	},
	types.StyleBalanced: {
		"en": "Aim for balanced nutrition: vegetables in every lunch and dinner, varied protein sources, whole grains where possible.",
		"pt": "Procura uma nutrição equilibrada: legumes em todos os almoços e jantares, fontes de proteína variadas, cereais integrais quando possível.",
	},
	types.StyleVegetarian: {
		"en": "The entire plan must be vegetarian: no meat or fish in any meal or recipe.",
		"pt": "Todo o plano deve ser vegetariano: sem carne nem peixe em nenhuma refeição ou receita.",
	},
	types.StyleTraditional: {
		"en": "Favor traditional home cooking: familiar regional dishes, classic preparations, hearty portions.",
		"pt": "Dá preferência à cozinha tradicional caseira: pratos regionais familiares, preparações clássicas, porções generosas.",
	},
	types.StyleExotic: {
		"en": "Make the plan adventurous: dishes from varied world cuisines the household likely has not tried before.",
		"pt": "Torna o plano aventureiro: pratos de cozinhas do mundo variadas que a família provavelmente ainda não experimentou.",
	},
	types.StyleFit: {
		"en": "Optimize for fitness: high protein, controlled calories, limited refined sugar and deep-fried food.",
		"pt": "Otimiza para fitness: rico em proteína, calorias controladas, pouco açúcar refinado e poucos fritos.",
	},
}

// weekdayNames holds per-language weekday labels indexed Monday-first, so
// they line up with day ordinals 1..7.
var weekdayNames = map[string][7]string{
	"en": {"Monday", "Tuesday", "Wednesday", "Thursday", "Friday", "Saturday", "Sunday"},
	"pt": {"segunda-feira", "terça-feira", "quarta-feira", "quinta-feira", "sexta-feira", "sábado", "domingo"},
}

// BuildPrompt constructs the deterministic natural-language prompt for one
// validated generation request. The prompt embeds per-day date labels, the
// style instruction for the request's style and language, hard-constraint
// text for intolerances, soft-preference text for avoid/have/favorites, and
// an explicit machine-readable schema the upstream service is asked to honor.
func BuildPrompt(req types.ValidRequest, caloriesEnabled bool) string {
	var b strings.Builder

	fmt.Fprintf(&b, "Create a complete weekly meal plan for %d people, in language %q, for the week starting %s.\n",
		req.People, req.Language, req.WeekStart.Format(types.WeekStartLayout))

	b.WriteString("The days of the plan are:\n")
	for day := 1; day <= plan.DaysPerWeek; day++ {
		b.WriteString("  day ")
		b.WriteString(fmt.Sprintf("%d: %s\n", day, dayLabel(req.WeekStart, day, req.Language)))
	}

	style := req.Style
	instruction := styleInstructions[style][req.Language]
	if instruction == "" {
		instruction = styleInstructions[style]["en"]
	}
	if instruction != "" {
		b.WriteString("\nStyle: ")
		b.WriteString(instruction)
		b.WriteString("\n")
	}

	if req.Budget != "" {
		fmt.Fprintf(&b, "Weekly food budget: %s.\n", req.Budget)
	}

	if len(req.Intolerances) > 0 {
		fmt.Fprintf(&b, "\nHARD CONSTRAINT - the household has these intolerances/allergies; no meal or recipe may contain them in any form: %s.\n",
			strings.Join(req.Intolerances, ", "))
	}
	if len(req.Avoid) > 0 {
		fmt.Fprintf(&b, "Preference: avoid these ingredients where reasonable: %s.\n", strings.Join(req.Avoid, ", "))
	}
	if len(req.Have) > 0 {
		fmt.Fprintf(&b, "Preference: these ingredients are already at home, use them up first: %s.\n", strings.Join(req.Have, ", "))
	}
	if len(req.Favorites) > 0 {
		fmt.Fprintf(&b, "Preference: the household especially likes: %s.\n", strings.Join(req.Favorites, ", "))
	}

	fmt.Fprintf(&b, "\nGroup the shopping list into exactly %d shopping trip(s) covering the whole week.\n", req.ShoppingTrips)
	fmt.Fprintf(&b, "Dinners may repeat as next-day lunches on up to %d day(s) to reduce cooking effort.\n", req.RepeatDays)

	if caloriesEnabled {
		b.WriteString("Include estimated calories per meal and a daily total in each day's calories object.\n")
	}

	b.WriteString(schemaDescription(caloriesEnabled))

	return b.String()
}

// dayLabel formats the label for one plan day by adding day-1 days to the
// week start. Labels use the request language's weekday names, falling back
// to English.
func dayLabel(weekStart time.Time, day int, language string) string {
	names, ok := weekdayNames[language]
	if !ok {
		names = weekdayNames["en"]
	}
	date := weekStart.AddDate(0, 0, day-1)
	return fmt.Sprintf("%s %s", names[day-1], date.Format(types.WeekStartLayout))
}

// schemaDescription returns the machine-readable output contract appended to
// every prompt. The recipe key list is generated from the canonical key set
// so prompt and validator can never disagree about the 21 required slots.
func schemaDescription(caloriesEnabled bool) string {
	var b strings.Builder

	b.WriteString("\nRespond with ONLY a single JSON object, no prose before or after, with exactly this structure:\n")
	b.WriteString("{\n")
	b.WriteString(`  "summary": "<one-paragraph overview of the week>",` + "\n")
	if caloriesEnabled {
		b.WriteString(`  "days": [ { "day": 1, "breakfast": "...", "lunch": "...", "dinner": "...", "calories": { "breakfast": 0, "lunch": 0, "dinner": 0, "total": 0 } }, ... 7 entries ],` + "\n")
	} else {
		b.WriteString(`  "days": [ { "day": 1, "breakfast": "...", "lunch": "...", "dinner": "..." }, ... 7 entries ],` + "\n")
	}
	b.WriteString(`  "shopping": [ { "trip": 1, "days": "1-4", "items": ["..."] }, ... ],` + "\n")
	b.WriteString(`  "recipes": { "<key>": { "title": "...", "ingredients": ["..."], "steps": ["..."] }, ... }` + "\n")
	b.WriteString("}\n")
	b.WriteString("The recipes object must contain ALL of these keys, one per meal slot:\n")
	b.WriteString(strings.Join(plan.RequiredKeys(), ", "))
	b.WriteString("\n")

	return b.String()
}
