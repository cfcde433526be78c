// Package export renders a recipe as a printable PDF document.
package export

import (
	"strings"

	"github.com/raine/telegram-recipe-bot/internal/recipe"
)

// NoInstructions replaces missing instruction text in exported documents.
const NoInstructions = "No instructions available."

// Document is the renderer-independent content of an exported recipe.
type Document struct {
	Title        string
	ImageURL     string
	Ingredients  []string
	Instructions string
}

// BuildDocument resolves every field of d to printable text.
func BuildDocument(d recipe.Detail) Document {
	instructions := recipe.PlainText(d.Instructions)
	if instructions == "" {
		instructions = NoInstructions
	}
	title := strings.TrimSpace(d.Title)
	if title == "" {
		title = "Recipe"
	}
	return Document{
		Title:        title,
		ImageURL:     strings.TrimSpace(d.ImageURL),
		Ingredients:  d.IngredientLines(recipe.ExportFallback),
		Instructions: instructions,
	}
}

var fileNameReplacer = strings.NewReplacer(
	"/", "-",
	"\\", "-",
	":", "-",
	"*", "-",
	"?", "",
	"\"", "",
	"<", "",
	">", "",
	"|", "",
	"\n", " ",
	"\r", " ",
	"\t", " ",
)

// Filename returns a filesystem-safe "<title>.pdf", or "recipe.pdf" when
// nothing of the title survives.
func Filename(title string) string {
	name := strings.TrimSpace(fileNameReplacer.Replace(strings.TrimSpace(title)))
	name = strings.Trim(name, ".")
	if name == "" {
		return "recipe.pdf"
	}
	return name + ".pdf"
}
