// Package app builds the services shared by the bot, the HTTP API and the
// CLI from a config.Config.
package app

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/raine/telegram-recipe-bot/config"
	"github.com/raine/telegram-recipe-bot/internal/export"
	"github.com/raine/telegram-recipe-bot/internal/pipeline"
	"github.com/raine/telegram-recipe-bot/internal/spoonacular"
	"github.com/raine/telegram-recipe-bot/internal/storage"
	"github.com/raine/telegram-recipe-bot/internal/vision"
	"github.com/rs/zerolog/log"
)

// App holds the wired services. Close releases the concept cache.
type App struct {
	Pipeline  *pipeline.Pipeline
	Exporter  *export.Exporter
	Favorites *storage.Favorites

	closers []io.Closer
}

// New wires every service from cfg. Required keys must be present; check
// with cfg.Missing(cfg.RequiredForPipeline()...) first for a friendlier
// message.
func New(ctx context.Context, cfg *config.Config) (*App, error) {
	if missing := cfg.Missing(cfg.RequiredForPipeline()...); len(missing) > 0 {
		return nil, fmt.Errorf("missing required config: %s", strings.Join(missing, ", "))
	}

	a := &App{}

	extractor, err := a.newExtractor(ctx, cfg)
	if err != nil {
		a.Close()
		return nil, err
	}

	recipes, err := spoonacular.NewClient(spoonacular.ClientOpts{
		APIKey:  cfg.SpoonacularAPIKey,
		Timeout: cfg.HTTPTimeout,
	})
	if err != nil {
		a.Close()
		return nil, err
	}

	a.Pipeline = pipeline.New(extractor, recipes, recipes, pipeline.Options{
		Limit:       cfg.RecipeLimit,
		CallTimeout: cfg.HTTPTimeout,
	})
	a.Exporter = export.NewExporter(export.DefaultImageTimeout)
	a.Favorites = storage.NewFavorites(cfg.FavoritesPath)

	log.Info().
		Str("provider", cfg.ConceptProvider).
		Str("favorites", cfg.FavoritesPath).
		Bool("conceptCache", cfg.RecipeDBPath != "").
		Msg("recipe services initialized")

	return a, nil
}

// NewExtractor builds only the concept extractor for provider, which
// overrides cfg.ConceptProvider when non-empty.
func NewExtractor(ctx context.Context, cfg *config.Config, provider string) (vision.Extractor, io.Closer, error) {
	c := *cfg
	if provider != "" {
		c.ConceptProvider = strings.ToLower(provider)
	}
	a := &App{}
	extractor, err := a.newExtractor(ctx, &c)
	if err != nil {
		a.Close()
		return nil, nil, err
	}
	return extractor, a, nil
}

func (a *App) newExtractor(ctx context.Context, cfg *config.Config) (vision.Extractor, error) {
	var scorer vision.Scorer
	provider := cfg.ConceptProvider
	switch provider {
	case config.ProviderGemini:
		if cfg.GeminiAPIKey == "" {
			return nil, fmt.Errorf("%s is not set", config.EnvGeminiAPIKey)
		}
		gemini, err := vision.NewGeminiExtractor(ctx, cfg.GeminiAPIKey, cfg.HTTPTimeout)
		if err != nil {
			return nil, err
		}
		scorer = gemini
	case config.ProviderClarifai, "":
		provider = config.ProviderClarifai
		if cfg.ClarifaiAPIKey == "" {
			return nil, fmt.Errorf("%s is not set", config.EnvClarifaiAPIKey)
		}
		scorer = vision.NewClarifaiExtractor(vision.ClarifaiOpts{
			APIKey:  cfg.ClarifaiAPIKey,
			Timeout: cfg.HTTPTimeout,
		})
	default:
		return nil, fmt.Errorf("unknown concept provider %q", cfg.ConceptProvider)
	}

	if cfg.RecipeDBPath == "" {
		return scorer, nil
	}

	store, err := storage.NewSQLiteStore(cfg.RecipeDBPath)
	if err != nil {
		// Recognition still works without the cache.
		log.Warn().Err(err).Str("dbPath", cfg.RecipeDBPath).Msg("concept cache disabled")
		return scorer, nil
	}
	a.closers = append(a.closers, store)
	log.Info().Str("dbPath", cfg.RecipeDBPath).Str("provider", provider).Msg("concept caching enabled")

	if cfg.ConceptMaxAge > 0 {
		removed, err := store.PruneConcepts(cfg.ConceptMaxAge)
		if err != nil {
			log.Warn().Err(err).Msg("failed to prune concept cache")
		} else if removed > 0 {
			log.Info().Int64("removed", removed).Dur("maxAge", cfg.ConceptMaxAge).Msg("pruned concept cache")
		}
	}
	return vision.NewCachedExtractor(scorer, provider, store), nil
}

// Close releases every resource opened by New.
func (a *App) Close() error {
	var errs []error
	for _, c := range a.closers {
		if err := c.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	a.closers = nil
	return errors.Join(errs...)
}
