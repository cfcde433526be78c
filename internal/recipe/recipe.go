// Package recipe holds the data passed between the concept extractor, the
// recipe lookup service and the front ends.
package recipe

import (
	"net/http"
)

// Image is an uploaded photo held only for the duration of one pipeline run.
type Image struct {
	Data     []byte
	MIMEType string
}

// NewImage wraps raw bytes, sniffing the MIME type when none is given.
func NewImage(data []byte, mimeType string) Image {
	if mimeType == "" && len(data) > 0 {
		mimeType = http.DetectContentType(data)
	}
	return Image{Data: data, MIMEType: mimeType}
}

// Concept is a labelled food item recognized in an image.
type Concept struct {
	Name       string  `json:"name"`
	Confidence float64 `json:"value"`
}

// Candidate is a recipe summary returned by a find-by-ingredients search.
// It only exists to drive the detail lookup.
type Candidate struct {
	ID       int    `json:"id"`
	Title    string `json:"title"`
	ImageURL string `json:"image"`
}

// Ingredient is one entry of a recipe's ingredient list as returned by the
// recipe service. Any of the fields may be empty; use Line or
// ResolveIngredient to get a displayable string.
type Ingredient struct {
	OriginalString string `json:"originalString,omitempty"`
	Original       string `json:"original,omitempty"`
	Name           string `json:"name,omitempty"`
}

// Line resolves the ingredient to display text, falling back to def.
func (i Ingredient) Line(def string) string {
	return ResolveIngredient(i, def)
}

// Detail is the fully hydrated recipe. ID is the identity used for favorites
// deduplication and UI keys.
type Detail struct {
	ID             int          `json:"id"`
	Title          string       `json:"title"`
	ImageURL       string       `json:"image,omitempty"`
	ReadyInMinutes int          `json:"readyInMinutes,omitempty"`
	Servings       int          `json:"servings,omitempty"`
	SourceURL      string       `json:"sourceUrl,omitempty"`
	Ingredients    []Ingredient `json:"extendedIngredients"`
	Instructions   string       `json:"instructions,omitempty"`
}

// HasInstructions reports whether the recipe carries any instruction text.
func (d Detail) HasInstructions() bool {
	return PlainText(d.Instructions) != ""
}

// IngredientLines resolves every ingredient with the given fallback text.
func (d Detail) IngredientLines(def string) []string {
	lines := make([]string, 0, len(d.Ingredients))
	for _, ing := range d.Ingredients {
		lines = append(lines, ing.Line(def))
	}
	return lines
}
