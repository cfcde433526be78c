package vision

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/raine/telegram-recipe-bot/internal/recipe"
	"github.com/rs/zerolog/log"
)

const (
	ClarifaiBaseURL = "https://api.clarifai.com"

	clarifaiOutputsPath = "/v2/models/food-item-recognition/outputs"
	defaultTimeout      = 20 * time.Second
)

type ClarifaiOpts struct {
	BaseURL string
	APIKey  string
	Timeout time.Duration
}

// ClarifaiExtractor calls Clarifai's food-item-recognition model.
type ClarifaiExtractor struct {
	httpClient *resty.Client
}

var _ Extractor = (*ClarifaiExtractor)(nil)

func NewClarifaiExtractor(opts ClarifaiOpts) *ClarifaiExtractor {
	baseURL := ClarifaiBaseURL
	if opts.BaseURL != "" {
		baseURL = opts.BaseURL
	}
	timeout := defaultTimeout
	if opts.Timeout > 0 {
		timeout = opts.Timeout
	}
	return &ClarifaiExtractor{
		httpClient: resty.New().
			SetDebug(false).
			SetBaseURL(baseURL).
			SetTimeout(timeout).
			SetHeaders(map[string]string{
				"Accept":        "application/json",
				"Content-Type":  "application/json",
				"Authorization": "Key " + opts.APIKey,
			}),
	}
}

type clarifaiRequest struct {
	Inputs []clarifaiInput `json:"inputs"`
}

type clarifaiInput struct {
	Data struct {
		Image struct {
			Base64 string `json:"base64"`
		} `json:"image"`
	} `json:"data"`
}

type clarifaiResponse struct {
	Outputs []struct {
		Data struct {
			Concepts []recipe.Concept `json:"concepts"`
		} `json:"data"`
	} `json:"outputs"`
}

// Extract implements Extractor.
func (c *ClarifaiExtractor) Extract(ctx context.Context, img recipe.Image) (recipe.ConceptSet, error) {
	concepts, err := c.Score(ctx, img)
	if err != nil {
		return nil, err
	}
	return Accept(concepts), nil
}

// Score returns every concept of the first output with its confidence.
func (c *ClarifaiExtractor) Score(ctx context.Context, img recipe.Image) ([]recipe.Concept, error) {
	if len(img.Data) == 0 {
		return nil, ErrEmptyImage
	}

	var input clarifaiInput
	input.Data.Image.Base64 = base64.StdEncoding.EncodeToString(img.Data)

	start := time.Now()
	res, err := c.httpClient.R().
		SetContext(ctx).
		SetBody(clarifaiRequest{Inputs: []clarifaiInput{input}}).
		Post(clarifaiOutputsPath)
	if err := handleError(res, err); err != nil {
		log.Warn().Err(err).Dur("took", time.Since(start)).Msg("clarifai call failed")
		return nil, err
	}

	var body clarifaiResponse
	if err := json.Unmarshal(res.Body(), &body); err != nil {
		return nil, &ExtractionError{
			Status:  res.StatusCode(),
			Message: fmt.Sprintf("malformed response: %v", err),
		}
	}

	var concepts []recipe.Concept
	if len(body.Outputs) > 0 {
		concepts = body.Outputs[0].Data.Concepts
	}

	log.Info().
		Str("service", "clarifai").
		Int("status", res.StatusCode()).
		Int("concepts", len(concepts)).
		Dur("took", time.Since(start)).
		Msg("concept extraction call")

	return concepts, nil
}

// handleError turns transport failures and non-2xx responses into
// *ExtractionError. Without this, failing responses would have nil error.
func handleError(res *resty.Response, err error) error {
	if err != nil {
		return &ExtractionError{Message: err.Error()}
	}
	if !res.IsSuccess() {
		return &ExtractionError{
			Status:  res.StatusCode(),
			Message: strings.TrimSpace(res.String()),
		}
	}
	return nil
}
