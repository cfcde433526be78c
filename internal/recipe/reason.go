package recipe

import (
	"fmt"
	"math/rand/v2"
	"strings"
)

var (
	reasonAdjectives = []string{"delicious", "mouth-watering", "nutritious", "flavorful", "quick", "easy"}
	reasonStyles     = []string{"stir-fry", "roast", "bake", "grill", "steam", "sauté"}
)

// Reason builds the decorative "why you'll love this recipe" text shown next
// to a recipe. It plays no part in ranking. rnd may be nil, in which case the
// global source is used.
func Reason(concepts ConceptSet, d Detail, rnd *rand.Rand) string {
	pick := func(n int) int {
		if rnd == nil {
			return rand.IntN(n)
		}
		return rnd.IntN(n)
	}

	var sb strings.Builder
	adjective := reasonAdjectives[pick(len(reasonAdjectives))]
	style := reasonStyles[pick(len(reasonStyles))]
	if concepts.Empty() {
		fmt.Fprintf(&sb, "This %s %s recipe is a great match for what you have.", adjective, style)
	} else {
		fmt.Fprintf(&sb, "This %s %s recipe perfectly matches your ingredients: %s.",
			adjective, style, strings.Join(concepts, ", "))
	}

	sb.WriteString("\n\n")
	if concepts.Empty() {
		sb.WriteString(d.Title)
	} else {
		highlight := usedConcepts(concepts, d)
		if len(highlight) == 0 {
			highlight = concepts
		}
		fmt.Fprintf(&sb, "%s brings out the best in %s", d.Title, highlight[pick(len(highlight))])
	}
	if d.ReadyInMinutes > 0 {
		fmt.Fprintf(&sb, " and can be prepared in about %d minutes!", d.ReadyInMinutes)
	} else {
		sb.WriteString(" and is easy to cook with everyday items!")
	}
	return sb.String()
}

// usedConcepts returns the concepts that name one of the recipe's
// ingredients, in concept order.
func usedConcepts(concepts ConceptSet, d Detail) ConceptSet {
	names := make([]string, 0, len(d.Ingredients))
	for _, ing := range d.Ingredients {
		names = append(names, ing.Name)
	}
	ingredients := NewConceptSet(names...)

	var out ConceptSet
	for _, c := range concepts {
		if ingredients.Contains(c) {
			out = append(out, c)
		}
	}
	return out
}
