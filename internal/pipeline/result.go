package pipeline

import (
	"errors"
	"fmt"

	"github.com/raine/telegram-recipe-bot/internal/recipe"
	"github.com/raine/telegram-recipe-bot/internal/spoonacular"
	"github.com/raine/telegram-recipe-bot/internal/vision"
)

// Outcome is the terminal state of a run. Exactly one applies.
type Outcome int

const (
	OutcomeSuccess Outcome = iota + 1
	OutcomeNoConcepts
	OutcomeExtractionFailed
	OutcomeNoRecipes
	OutcomeFinderFailed
)

func (o Outcome) String() string {
	switch o {
	case OutcomeSuccess:
		return "success"
	case OutcomeNoConcepts:
		return "no_concepts_detected"
	case OutcomeExtractionFailed:
		return "extraction_failed"
	case OutcomeNoRecipes:
		return "no_recipes_found"
	case OutcomeFinderFailed:
		return "finder_failed"
	default:
		return "unknown"
	}
}

// Failed reports whether the outcome is a service failure rather than an
// empty result.
func (o Outcome) Failed() bool {
	return o == OutcomeExtractionFailed || o == OutcomeFinderFailed
}

func (o Outcome) MarshalText() ([]byte, error) {
	return []byte(o.String()), nil
}

func (o *Outcome) UnmarshalText(text []byte) error {
	for c := OutcomeSuccess; c <= OutcomeFinderFailed; c++ {
		if c.String() == string(text) {
			*o = c
			return nil
		}
	}
	return fmt.Errorf("unknown outcome %q", text)
}

type Result struct {
	RunID    string
	Outcome  Outcome
	Concepts recipe.ConceptSet
	// Recipes is non-empty only on OutcomeSuccess, in finder order.
	Recipes []recipe.Detail
	// Err is set for the two failure outcomes.
	Err error
}

// Reason describes why a failed run failed, including the upstream status
// when there was one.
func (r Result) Reason() string {
	if r.Err == nil {
		return ""
	}
	var extErr *vision.ExtractionError
	if errors.As(r.Err, &extErr) {
		if extErr.Status != 0 {
			return fmt.Sprintf("%d - %s", extErr.Status, extErr.Message)
		}
		return extErr.Message
	}
	var apiErr *spoonacular.APIError
	if errors.As(r.Err, &apiErr) {
		if apiErr.Status != 0 {
			return fmt.Sprintf("%d - %s", apiErr.Status, apiErr.Body)
		}
		if apiErr.Err != nil {
			return apiErr.Err.Error()
		}
	}
	return r.Err.Error()
}
