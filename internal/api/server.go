// Copyright (c) 2025, NVIDIA CORPORATION.  All rights reserved.
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package api serves the recipe pipeline over HTTP: photo upload, PDF
// export and favorites.
package api

import (
	"context"
	"errors"
	"net/http"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/raine/telegram-recipe-bot/internal/pipeline"
	"github.com/raine/telegram-recipe-bot/internal/recipe"
	"github.com/raine/telegram-recipe-bot/internal/storage"
	"github.com/rs/zerolog/log"
	"golang.org/x/time/rate"
)

// DefaultMaxUploadBytes caps an uploaded photo (10 MiB).
const DefaultMaxUploadBytes = 10 << 20

// Config holds the HTTP server settings.
type Config struct {
	Addr            string
	RateLimit       rate.Limit
	RateBurst       int
	MaxUploadBytes  int64
	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	IdleTimeout     time.Duration
	ShutdownTimeout time.Duration
}

// DefaultConfig returns sensible defaults
func DefaultConfig() *Config {
	return &Config{
		Addr:           ":8080",
		RateLimit:      5,
		RateBurst:      10,
		MaxUploadBytes: DefaultMaxUploadBytes,
		ReadTimeout:    30 * time.Second,
		// A run makes several upstream calls and a PDF fetches an image.
		WriteTimeout:    90 * time.Second,
		IdleTimeout:     120 * time.Second,
		ShutdownTimeout: 30 * time.Second,
	}
}

// RecipeService runs the pipeline and looks up single recipes.
type RecipeService interface {
	Run(ctx context.Context, img recipe.Image) pipeline.Result
	Detail(ctx context.Context, id int) (*recipe.Detail, error)
}

// Renderer produces the PDF export of a recipe.
type Renderer interface {
	Render(ctx context.Context, d recipe.Detail) ([]byte, error)
}

// FavoritesStore persists saved recipes.
type FavoritesStore interface {
	Add(d recipe.Detail) (storage.AddResult, error)
	List() ([]recipe.Detail, error)
}

var _ RecipeService = (*pipeline.Pipeline)(nil)

// Server is the HTTP front end.
type Server struct {
	config      *Config
	httpServer  *http.Server
	rateLimiter *rate.Limiter
	mu          sync.RWMutex
	ready       bool

	recipes   RecipeService
	renderer  Renderer
	favorites FavoritesStore
}

// NewServer creates a server. A nil config uses DefaultConfig.
func NewServer(config *Config, recipes RecipeService, renderer Renderer, favorites FavoritesStore) *Server {
	if config == nil {
		config = DefaultConfig()
	}
	if config.MaxUploadBytes <= 0 {
		config.MaxUploadBytes = DefaultMaxUploadBytes
	}

	s := &Server{
		config:      config,
		rateLimiter: rate.NewLimiter(config.RateLimit, config.RateBurst),
		recipes:     recipes,
		renderer:    renderer,
		favorites:   favorites,
	}

	s.httpServer = &http.Server{
		Addr:         config.Addr,
		Handler:      s.Handler(),
		ReadTimeout:  config.ReadTimeout,
		WriteTimeout: config.WriteTimeout,
		IdleTimeout:  config.IdleTimeout,
	}
	return s
}

// Handler returns the routed handler with middleware applied.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()

	// System endpoints (no rate limiting)
	mux.HandleFunc("GET /health", s.handleHealth)
	mux.HandleFunc("GET /ready", s.handleReady)
	mux.Handle("GET /metrics", promhttp.Handler())

	mux.HandleFunc("POST /v1/recipes", s.withMiddleware(s.handleFindRecipes))
	mux.HandleFunc("GET /v1/recipes/{id}/pdf", s.withMiddleware(s.handleRecipePDF))
	mux.HandleFunc("GET /v1/favorites", s.withMiddleware(s.handleListFavorites))
	mux.HandleFunc("POST /v1/favorites", s.withMiddleware(s.handleAddFavorite))

	return mux
}

// SetReady marks the server as ready to serve traffic
func (s *Server) SetReady(ready bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.ready = ready
}

// Start serves until ctx is cancelled, then shuts down gracefully.
func (s *Server) Start(ctx context.Context) error {
	s.SetReady(true)
	log.Info().Str("addr", s.httpServer.Addr).Msg("starting http api")

	errChan := make(chan error, 1)
	go func() {
		if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errChan <- err
		}
	}()

	select {
	case <-ctx.Done():
		return s.Shutdown(context.Background())
	case err := <-errChan:
		s.SetReady(false)
		return err
	}
}

// Shutdown gracefully shuts down the server
func (s *Server) Shutdown(ctx context.Context) error {
	s.SetReady(false)

	shutdownCtx, cancel := context.WithTimeout(ctx, s.config.ShutdownTimeout)
	defer cancel()

	log.Info().Msg("shutting down http api")
	return s.httpServer.Shutdown(shutdownCtx)
}
