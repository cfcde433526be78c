package recipe

import "strings"

// Fallback texts for ingredients that carry no usable description. Display
// and export use different wording.
const (
	DisplayFallback = "Unknown ingredient"
	ExportFallback  = "Ingredient details missing"
)

// ResolveIngredient returns the first non-blank of OriginalString, Original
// and Name, or def when all are blank. The result is never empty as long as
// def is not.
func ResolveIngredient(ing Ingredient, def string) string {
	return firstNonBlank(def, ing.OriginalString, ing.Original, ing.Name)
}

func firstNonBlank(def string, values ...string) string {
	for _, v := range values {
		if s := strings.TrimSpace(v); s != "" {
			return s
		}
	}
	return def
}
