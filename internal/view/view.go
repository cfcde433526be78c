// Package view shapes pipeline results and recipes into the documents served
// by the HTTP API and printed by the CLI.
package view

import (
	"fmt"

	"github.com/raine/telegram-recipe-bot/internal/pipeline"
	"github.com/raine/telegram-recipe-bot/internal/recipe"
)

// RecipesResponse is the result of one pipeline run.
type RecipesResponse struct {
	RunID    string           `json:"run_id" yaml:"run_id"`
	Outcome  pipeline.Outcome `json:"outcome" yaml:"outcome"`
	Message  string           `json:"message" yaml:"message"`
	Concepts []string         `json:"concepts" yaml:"concepts"`
	Recipes  []RecipeView     `json:"recipes" yaml:"recipes"`
}

// RecipeView is a recipe shaped for display: ingredient lines resolved and
// instructions as plain text.
type RecipeView struct {
	ID             int      `json:"id" yaml:"id"`
	Title          string   `json:"title" yaml:"title"`
	ImageURL       string   `json:"image,omitempty" yaml:"image,omitempty"`
	ReadyInMinutes int      `json:"ready_in_minutes,omitempty" yaml:"ready_in_minutes,omitempty"`
	Servings       int      `json:"servings,omitempty" yaml:"servings,omitempty"`
	SourceURL      string   `json:"source_url,omitempty" yaml:"source_url,omitempty"`
	Ingredients    []string `json:"ingredients" yaml:"ingredients"`
	Instructions   string   `json:"instructions" yaml:"instructions"`
	Reason         string   `json:"reason,omitempty" yaml:"reason,omitempty"`
}

// FavoriteResponse reports the result of saving a favorite.
type FavoriteResponse struct {
	Result string     `json:"result" yaml:"result"`
	Recipe RecipeView `json:"recipe" yaml:"recipe"`
}

// FavoritesResponse lists the saved recipes.
type FavoritesResponse struct {
	Count     int          `json:"count" yaml:"count"`
	Favorites []RecipeView `json:"favorites" yaml:"favorites"`
}

// NewRecipeView shapes d for display.
func NewRecipeView(d recipe.Detail, reason string) RecipeView {
	return RecipeView{
		ID:             d.ID,
		Title:          d.Title,
		ImageURL:       d.ImageURL,
		ReadyInMinutes: d.ReadyInMinutes,
		Servings:       d.Servings,
		SourceURL:      d.SourceURL,
		Ingredients:    d.IngredientLines(recipe.DisplayFallback),
		Instructions:   recipe.PlainText(d.Instructions),
		Reason:         reason,
	}
}

// NewRecipesResponse builds the response body for a run, including the
// reason text of every recipe.
func NewRecipesResponse(res pipeline.Result) RecipesResponse {
	resp := RecipesResponse{
		RunID:    res.RunID,
		Outcome:  res.Outcome,
		Message:  OutcomeMessage(res),
		Concepts: []string(res.Concepts),
		Recipes:  make([]RecipeView, 0, len(res.Recipes)),
	}
	if resp.Concepts == nil {
		resp.Concepts = []string{}
	}
	for _, d := range res.Recipes {
		resp.Recipes = append(resp.Recipes, NewRecipeView(d, recipe.Reason(res.Concepts, d, nil)))
	}
	return resp
}

// NewFavoritesResponse shapes the saved recipes for display.
func NewFavoritesResponse(favorites []recipe.Detail) FavoritesResponse {
	resp := FavoritesResponse{Count: len(favorites), Favorites: make([]RecipeView, 0, len(favorites))}
	for _, d := range favorites {
		resp.Favorites = append(resp.Favorites, NewRecipeView(d, ""))
	}
	return resp
}

// OutcomeMessage is the user-facing summary of a run.
func OutcomeMessage(res pipeline.Result) string {
	switch res.Outcome {
	case pipeline.OutcomeSuccess:
		if len(res.Recipes) == 1 {
			return "Found 1 recipe"
		}
		return fmt.Sprintf("Found %d recipes", len(res.Recipes))
	case pipeline.OutcomeNoConcepts:
		return "No ingredients detected. Try a clearer image of your ingredients."
	case pipeline.OutcomeExtractionFailed:
		return "Image recognition failed: " + res.Reason()
	case pipeline.OutcomeFinderFailed:
		return "Error fetching recipes: " + res.Reason()
	case pipeline.OutcomeNoRecipes:
		return "No recipes found. Try different ingredients!"
	default:
		return ""
	}
}
