// Package vision turns a photo into the set of food concepts it shows.
package vision

import (
	"context"
	"errors"
	"fmt"

	"github.com/raine/telegram-recipe-bot/internal/recipe"
)

// ConfidenceThreshold is the minimum confidence a concept must exceed to be
// accepted. A concept scored exactly at the threshold is rejected.
const ConfidenceThreshold = 0.85

// ErrEmptyImage is returned when there are no image bytes to analyze.
var ErrEmptyImage = errors.New("empty image")

// Extractor recognizes food concepts in an image. An empty set with a nil
// error means the service answered but found nothing confident.
type Extractor interface {
	Extract(ctx context.Context, img recipe.Image) (recipe.ConceptSet, error)
}

// ExtractionError is a failed call to the recognition service. Status is the
// HTTP status, or 0 when the request never got a response.
type ExtractionError struct {
	Status  int
	Message string
}

func (e *ExtractionError) Error() string {
	if e.Status == 0 {
		return fmt.Sprintf("concept extraction failed: %s", e.Message)
	}
	return fmt.Sprintf("concept extraction failed: status %d: %s", e.Status, e.Message)
}

// Accept keeps the names of concepts whose confidence is above
// ConfidenceThreshold.
func Accept(concepts []recipe.Concept) recipe.ConceptSet {
	var names []string
	for _, c := range concepts {
		if c.Confidence > ConfidenceThreshold {
			names = append(names, c.Name)
		}
	}
	return recipe.NewConceptSet(names...)
}

// Scorer is an Extractor that can also return every scored concept before
// thresholding. The cache stores scored concepts so a cached entry goes
// through the same filter as a fresh one.
type Scorer interface {
	Extractor
	Score(ctx context.Context, img recipe.Image) ([]recipe.Concept, error)
}
