// Package spoonacular finds recipes by ingredient and fetches their details
// from the Spoonacular API.
package spoonacular

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/raine/telegram-recipe-bot/internal/recipe"
	"github.com/rs/zerolog/log"
)

const (
	BaseURL = "https://api.spoonacular.com"

	// DefaultLimit is how many candidates a search asks for when no limit is
	// given.
	DefaultLimit = 3

	defaultTimeout = 20 * time.Second
)

// ErrMissingAPIKey is returned by NewClient when no API key is configured.
var ErrMissingAPIKey = errors.New("spoonacular API key is not set")

// APIError is a failed Spoonacular call. Status is 0 when the request never
// got a response or the response could not be decoded.
type APIError struct {
	Op     string
	Status int
	Body   string
	Err    error
}

func (e *APIError) Error() string {
	if e.Status == 0 {
		return fmt.Sprintf("spoonacular %s failed: %v", e.Op, e.Err)
	}
	return fmt.Sprintf("spoonacular %s failed: status %d: %s", e.Op, e.Status, e.Body)
}

func (e *APIError) Unwrap() error {
	return e.Err
}

type ClientOpts struct {
	BaseURL string
	APIKey  string
	Timeout time.Duration
}

type Client struct {
	httpClient *resty.Client
}

func NewClient(opts ClientOpts) (*Client, error) {
	if strings.TrimSpace(opts.APIKey) == "" {
		return nil, ErrMissingAPIKey
	}
	baseURL := BaseURL
	if opts.BaseURL != "" {
		baseURL = opts.BaseURL
	}
	timeout := defaultTimeout
	if opts.Timeout > 0 {
		timeout = opts.Timeout
	}

	c := Client{}
	c.httpClient = resty.New().
		SetDebug(false).
		SetBaseURL(baseURL).
		SetTimeout(timeout).
		SetQueryParam("apiKey", opts.APIKey).
		SetHeader("Accept", "application/json")

	return &c, nil
}

func (c *Client) req(ctx context.Context, result any) *resty.Request {
	return c.httpClient.
		NewRequest().
		SetContext(ctx).
		SetResult(result).
		ForceContentType("application/json")
}

// FindByIngredients returns up to limit recipe candidates that use the given
// ingredients, ranked to maximize used ingredients. A limit <= 0 means
// DefaultLimit.
func (c *Client) FindByIngredients(ctx context.Context, concepts recipe.ConceptSet, limit int) ([]recipe.Candidate, error) {
	if limit <= 0 {
		limit = DefaultLimit
	}

	var candidates []recipe.Candidate
	start := time.Now()
	res, err := c.req(ctx, &candidates).
		SetQueryParams(map[string]string{
			"ingredients": concepts.Query(),
			"number":      strconv.Itoa(limit),
			"ranking":     "1",
		}).
		Get("/recipes/findByIngredients")
	if err := handleError("find by ingredients", res, err); err != nil {
		log.Warn().Err(err).Dur("took", time.Since(start)).Msg("spoonacular search failed")
		return nil, err
	}

	log.Info().
		Str("service", "spoonacular").
		Str("ingredients", concepts.Query()).
		Int("status", res.StatusCode()).
		Int("candidates", len(candidates)).
		Dur("took", time.Since(start)).
		Msg("recipe search call")

	if len(candidates) > limit {
		candidates = candidates[:limit]
	}
	return candidates, nil
}

// GetInformation fetches the full recipe record for id.
func (c *Client) GetInformation(ctx context.Context, id int) (*recipe.Detail, error) {
	var detail recipe.Detail
	start := time.Now()
	res, err := c.req(ctx, &detail).
		SetPathParams(map[string]string{
			"id": strconv.Itoa(id),
		}).
		Get("/recipes/{id}/information")
	if err := handleError("recipe information", res, err); err != nil {
		log.Warn().Err(err).Int("recipeID", id).Dur("took", time.Since(start)).Msg("spoonacular detail failed")
		return nil, err
	}

	if detail.ID == 0 {
		detail.ID = id
	}

	log.Debug().
		Str("service", "spoonacular").
		Int("recipeID", id).
		Int("status", res.StatusCode()).
		Dur("took", time.Since(start)).
		Msg("recipe detail call")

	return &detail, nil
}

// handleError is a generic error handler for failing responses. Without
// this, non-2xx responses would have nil error.
func handleError(op string, res *resty.Response, err error) error {
	if err != nil {
		apiErr := &APIError{Op: op, Err: err}
		// A decode failure still has the upstream response attached.
		if res != nil && res.RawResponse != nil && !res.IsSuccess() {
			apiErr.Status = res.StatusCode()
			apiErr.Body = strings.TrimSpace(res.String())
		}
		return apiErr
	}
	if !res.IsSuccess() {
		return &APIError{
			Op:     op,
			Status: res.StatusCode(),
			Body:   strings.TrimSpace(res.String()),
		}
	}
	return nil
}
