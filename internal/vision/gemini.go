package vision

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/raine/telegram-recipe-bot/internal/recipe"
	"github.com/rs/zerolog/log"
	"google.golang.org/genai"
)

const geminiModel = "gemini-2.5-flash"

const geminiConceptPrompt = `List the food ingredients visible in this image.

Respond in JSON format with a "concepts" list. Each entry has:
- name: the ingredient in lower case English, singular (e.g. "tomato", "bell pepper")
- value: your confidence between 0 and 1 that the ingredient is really in the image

Example response:
{"concepts": [{"name": "tomato", "value": 0.97}, {"name": "basil", "value": 0.88}]}

Respond ONLY with the JSON object, no markdown or other text.`

// GeminiExtractor asks a Gemini vision model for scored food concepts. It is
// an alternative to Clarifai and applies the same confidence threshold.
type GeminiExtractor struct {
	client  *genai.Client
	timeout time.Duration
}

var _ Extractor = (*GeminiExtractor)(nil)

// NewGeminiExtractor creates a Gemini client authenticated with apiKey.
func NewGeminiExtractor(ctx context.Context, apiKey string, timeout time.Duration) (*GeminiExtractor, error) {
	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  apiKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create Gemini client: %w", err)
	}
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	return &GeminiExtractor{client: client, timeout: timeout}, nil
}

// Extract implements Extractor.
func (g *GeminiExtractor) Extract(ctx context.Context, img recipe.Image) (recipe.ConceptSet, error) {
	concepts, err := g.Score(ctx, img)
	if err != nil {
		return nil, err
	}
	return Accept(concepts), nil
}

// Score returns the concepts reported by the model with their confidence.
func (g *GeminiExtractor) Score(ctx context.Context, img recipe.Image) ([]recipe.Concept, error) {
	if len(img.Data) == 0 {
		return nil, ErrEmptyImage
	}
	mimeType := img.MIMEType
	if !strings.HasPrefix(mimeType, "image/") {
		mimeType = "image/jpeg"
	}

	ctx, cancel := context.WithTimeout(ctx, g.timeout)
	defer cancel()

	contents := []*genai.Content{
		genai.NewContentFromParts([]*genai.Part{
			genai.NewPartFromText(geminiConceptPrompt),
			{InlineData: &genai.Blob{Data: img.Data, MIMEType: mimeType}},
		}, genai.RoleUser),
	}

	start := time.Now()
	result, err := g.client.Models.GenerateContent(ctx, geminiModel, contents, &genai.GenerateContentConfig{
		ResponseMIMEType: "application/json",
	})
	if err != nil {
		return nil, &ExtractionError{Message: err.Error()}
	}
	if len(result.Candidates) == 0 || result.Candidates[0].Content == nil || len(result.Candidates[0].Content.Parts) == 0 {
		return nil, &ExtractionError{Message: "no response from Gemini"}
	}

	concepts, err := parseGeminiConcepts(result.Text())
	if err != nil {
		return nil, &ExtractionError{Message: err.Error()}
	}

	log.Info().
		Str("service", "gemini").
		Str("model", geminiModel).
		Int("concepts", len(concepts)).
		Dur("took", time.Since(start)).
		Msg("concept extraction call")

	return concepts, nil
}

// extractJSONObject extracts a JSON object from text that may contain
// markdown code fences or other formatting.
func extractJSONObject(text string) (string, error) {
	text = strings.TrimSpace(text)
	start := strings.Index(text, "{")
	end := strings.LastIndex(text, "}")
	if start == -1 || end == -1 || end <= start {
		return "", fmt.Errorf("no JSON object found in response: %s", text)
	}
	return text[start : end+1], nil
}

func parseGeminiConcepts(text string) ([]recipe.Concept, error) {
	jsonStr, err := extractJSONObject(text)
	if err != nil {
		return nil, fmt.Errorf("failed to parse response JSON: %w", err)
	}

	var resp struct {
		Concepts []recipe.Concept `json:"concepts"`
	}
	if err := json.Unmarshal([]byte(jsonStr), &resp); err != nil {
		return nil, fmt.Errorf("failed to parse response JSON: %w (response: %s)", err, jsonStr)
	}
	return resp.Concepts, nil
}
