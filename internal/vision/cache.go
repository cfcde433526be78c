package vision

import (
	"context"
	"encoding/hex"

	"github.com/raine/telegram-recipe-bot/internal/recipe"
	"github.com/raine/telegram-recipe-bot/internal/storage"
	"github.com/rs/zerolog/log"
	"golang.org/x/crypto/blake2b"
)

// ConceptCache persists scored concepts under a string key.
type ConceptCache interface {
	GetConcepts(imageHash string) (*storage.ConceptCacheEntry, error)
	SetConcepts(imageHash string, entry *storage.ConceptCacheEntry) error
}

// CachedExtractor wraps a Scorer with a persistent cache. Entries are keyed
// by provider and image hash, so providers sharing a cache never see each
// other's scores.
type CachedExtractor struct {
	inner    Scorer
	provider string
	cache    ConceptCache
}

var _ Scorer = (*CachedExtractor)(nil)

// NewCachedExtractor creates a cached extractor for the named provider.
func NewCachedExtractor(inner Scorer, provider string, cache ConceptCache) *CachedExtractor {
	return &CachedExtractor{inner: inner, provider: provider, cache: cache}
}

// hashImage returns the hex blake2b-256 digest of the image bytes.
func hashImage(data []byte) string {
	sum := blake2b.Sum256(data)
	return hex.EncodeToString(sum[:])
}

// cacheKey is "<provider>:<hash>".
func (c *CachedExtractor) cacheKey(data []byte) string {
	return c.provider + ":" + hashImage(data)
}

// Extract implements Extractor with caching.
func (c *CachedExtractor) Extract(ctx context.Context, img recipe.Image) (recipe.ConceptSet, error) {
	concepts, err := c.Score(ctx, img)
	if err != nil {
		return nil, err
	}
	return Accept(concepts), nil
}

// Score returns cached concepts when present, otherwise calls the wrapped
// extractor and caches a successful answer. Cache failures are logged and
// never fail the extraction.
func (c *CachedExtractor) Score(ctx context.Context, img recipe.Image) ([]recipe.Concept, error) {
	if len(img.Data) == 0 {
		return nil, ErrEmptyImage
	}
	hash := hashImage(img.Data)
	key := c.cacheKey(img.Data)

	if c.cache != nil {
		cached, err := c.cache.GetConcepts(key)
		if err != nil {
			log.Warn().Err(err).Msg("failed to check concept cache")
		} else if cached != nil {
			log.Debug().Str("hash", hash[:16]).Int("concepts", len(cached.Concepts)).Str("provider", c.provider).Msg("concept cache hit")
			return cached.Concepts, nil
		}
	}

	concepts, err := c.inner.Score(ctx, img)
	if err != nil {
		return nil, err
	}

	if c.cache != nil {
		if err := c.cache.SetConcepts(key, &storage.ConceptCacheEntry{Concepts: concepts}); err != nil {
			log.Warn().Err(err).Msg("failed to cache concepts")
		} else {
			log.Debug().Str("hash", hash[:16]).Msg("cached concepts")
		}
	}

	return concepts, nil
}
