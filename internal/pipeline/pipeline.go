// Package pipeline runs one photo through concept extraction, recipe search
// and detail lookup, and reports a single terminal outcome.
package pipeline

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/raine/telegram-recipe-bot/internal/recipe"
	"github.com/raine/telegram-recipe-bot/internal/spoonacular"
	"github.com/raine/telegram-recipe-bot/internal/vision"
	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"
)

const (
	defaultLimit       = 3
	defaultConcurrency = 3
	defaultCallTimeout = 20 * time.Second
)

// Finder searches recipe candidates for a set of ingredients.
type Finder interface {
	FindByIngredients(ctx context.Context, concepts recipe.ConceptSet, limit int) ([]recipe.Candidate, error)
}

// DetailFetcher hydrates a candidate into a full recipe.
type DetailFetcher interface {
	GetInformation(ctx context.Context, id int) (*recipe.Detail, error)
}

var (
	_ Finder        = (*spoonacular.Client)(nil)
	_ DetailFetcher = (*spoonacular.Client)(nil)
)

type Options struct {
	// Limit is how many candidates to request.
	Limit int
	// Concurrency caps parallel detail lookups.
	Concurrency int
	// CallTimeout bounds each external call separately.
	CallTimeout time.Duration
}

// Pipeline holds no state between runs.
type Pipeline struct {
	extractor vision.Extractor
	finder    Finder
	fetcher   DetailFetcher
	opts      Options
}

func New(extractor vision.Extractor, finder Finder, fetcher DetailFetcher, opts Options) *Pipeline {
	if opts.Limit <= 0 {
		opts.Limit = defaultLimit
	}
	if opts.Concurrency <= 0 {
		opts.Concurrency = defaultConcurrency
	}
	if opts.CallTimeout <= 0 {
		opts.CallTimeout = defaultCallTimeout
	}
	return &Pipeline{
		extractor: extractor,
		finder:    finder,
		fetcher:   fetcher,
		opts:      opts,
	}
}

// Run executes the pipeline for img. It never returns an error; every failure
// is reported as the Outcome of the Result.
func (p *Pipeline) Run(ctx context.Context, img recipe.Image) Result {
	res := Result{RunID: uuid.New().String()}
	logger := log.With().Str("runID", res.RunID).Logger()
	start := time.Now()
	defer func() {
		pipelineRunsTotal.WithLabelValues(res.Outcome.String()).Inc()
		logger.Info().
			Str("outcome", res.Outcome.String()).
			Int("concepts", len(res.Concepts)).
			Int("recipes", len(res.Recipes)).
			Dur("took", time.Since(start)).
			Msg("pipeline run finished")
	}()

	concepts, err := p.extract(ctx, img)
	if err != nil {
		res.Outcome = OutcomeExtractionFailed
		res.Err = err
		return res
	}
	res.Concepts = concepts
	if concepts.Empty() {
		res.Outcome = OutcomeNoConcepts
		return res
	}

	candidates, err := p.find(ctx, concepts)
	if err != nil {
		res.Outcome = OutcomeFinderFailed
		res.Err = err
		return res
	}
	if len(candidates) == 0 {
		res.Outcome = OutcomeNoRecipes
		return res
	}

	res.Recipes = p.fetchAll(ctx, candidates)
	if len(res.Recipes) == 0 {
		res.Outcome = OutcomeNoRecipes
		return res
	}
	res.Outcome = OutcomeSuccess
	return res
}

// Extract runs only the concept extraction stage.
func (p *Pipeline) Extract(ctx context.Context, img recipe.Image) (recipe.ConceptSet, error) {
	return p.extract(ctx, img)
}

// Detail fetches a single recipe by id, for exports and favorites that
// arrive without a prior run.
func (p *Pipeline) Detail(ctx context.Context, id int) (*recipe.Detail, error) {
	ctx, cancel := context.WithTimeout(ctx, p.opts.CallTimeout)
	defer cancel()
	return p.fetcher.GetInformation(ctx, id)
}

func (p *Pipeline) extract(ctx context.Context, img recipe.Image) (recipe.ConceptSet, error) {
	if len(img.Data) == 0 {
		return nil, vision.ErrEmptyImage
	}
	defer observeStage(stageExtract, time.Now())
	ctx, cancel := context.WithTimeout(ctx, p.opts.CallTimeout)
	defer cancel()
	return p.extractor.Extract(ctx, img)
}

func (p *Pipeline) find(ctx context.Context, concepts recipe.ConceptSet) ([]recipe.Candidate, error) {
	defer observeStage(stageFind, time.Now())
	ctx, cancel := context.WithTimeout(ctx, p.opts.CallTimeout)
	defer cancel()
	return p.finder.FindByIngredients(ctx, concepts, p.opts.Limit)
}

// fetchAll looks up every candidate concurrently. Failed lookups are dropped;
// the survivors keep the candidate order.
func (p *Pipeline) fetchAll(ctx context.Context, candidates []recipe.Candidate) []recipe.Detail {
	defer observeStage(stageDetails, time.Now())

	details := make([]*recipe.Detail, len(candidates))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(p.opts.Concurrency)
	for i, c := range candidates {
		g.Go(func() error {
			callCtx, cancel := context.WithTimeout(gctx, p.opts.CallTimeout)
			defer cancel()

			d, err := p.fetcher.GetInformation(callCtx, c.ID)
			if err != nil {
				detailFetchFailures.Inc()
				log.Warn().Err(err).Int("recipeID", c.ID).Str("title", c.Title).Msg("dropping recipe, detail lookup failed")
				return nil
			}
			if d == nil {
				detailFetchFailures.Inc()
				log.Warn().Int("recipeID", c.ID).Msg("dropping recipe, detail lookup returned nothing")
				return nil
			}
			details[i] = d
			return nil
		})
	}
	// Workers never return errors.
	_ = g.Wait()

	var out []recipe.Detail
	for _, d := range details {
		if d != nil {
			out = append(out, *d)
		}
	}
	return out
}

// IsUpstreamError reports whether err came from an external service rather
// than from the caller's input.
func IsUpstreamError(err error) bool {
	var extErr *vision.ExtractionError
	var apiErr *spoonacular.APIError
	return errors.As(err, &extErr) || errors.As(err, &apiErr)
}
