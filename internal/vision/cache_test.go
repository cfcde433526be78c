package vision

import (
	"context"
	"errors"
	"path/filepath"
	"testing"

	"github.com/raine/telegram-recipe-bot/internal/recipe"
	"github.com/raine/telegram-recipe-bot/internal/storage"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubScorer struct {
	calls    int
	concepts []recipe.Concept
	err      error
}

func (s *stubScorer) Extract(ctx context.Context, img recipe.Image) (recipe.ConceptSet, error) {
	concepts, err := s.Score(ctx, img)
	if err != nil {
		return nil, err
	}
	return Accept(concepts), nil
}

func (s *stubScorer) Score(ctx context.Context, img recipe.Image) ([]recipe.Concept, error) {
	s.calls++
	return s.concepts, s.err
}

type memoryCache struct {
	entries map[string]*storage.ConceptCacheEntry
	getErr  error
	setErr  error
}

func newMemoryCache() *memoryCache {
	return &memoryCache{entries: map[string]*storage.ConceptCacheEntry{}}
}

func (m *memoryCache) GetConcepts(hash string) (*storage.ConceptCacheEntry, error) {
	if m.getErr != nil {
		return nil, m.getErr
	}
	return m.entries[hash], nil
}

func (m *memoryCache) SetConcepts(hash string, entry *storage.ConceptCacheEntry) error {
	if m.setErr != nil {
		return m.setErr
	}
	m.entries[hash] = entry
	return nil
}

func TestCachedExtractor_MissThenHit(t *testing.T) {
	inner := &stubScorer{concepts: []recipe.Concept{{Name: "egg", Confidence: 0.95}, {Name: "pan", Confidence: 0.4}}}
	cache := newMemoryCache()
	ex := NewCachedExtractor(inner, "clarifai", cache)
	img := recipe.NewImage([]byte("photo"), "image/jpeg")

	first, err := ex.Extract(context.Background(), img)
	require.NoError(t, err)
	second, err := ex.Extract(context.Background(), img)
	require.NoError(t, err)

	assert.Equal(t, 1, inner.calls)
	assert.Equal(t, recipe.ConceptSet{"egg"}, first)
	assert.Equal(t, first, second)
	require.Len(t, cache.entries, 1)
	for _, entry := range cache.entries {
		// Raw scores are cached, not the thresholded set.
		assert.Len(t, entry.Concepts, 2)
	}
}

func TestCachedExtractor_ProvidersDoNotShareEntries(t *testing.T) {
	store, err := storage.NewSQLiteStore(filepath.Join(t.TempDir(), "recipes.db"))
	require.NoError(t, err)
	defer store.Close()
	img := recipe.NewImage([]byte("photo"), "image/jpeg")

	clarifai := &stubScorer{concepts: []recipe.Concept{{Name: "tomato", Confidence: 0.97}}}
	gemini := &stubScorer{concepts: []recipe.Concept{{Name: "cherry tomato", Confidence: 0.92}}}

	got, err := NewCachedExtractor(clarifai, "clarifai", store).Extract(context.Background(), img)
	require.NoError(t, err)
	assert.Equal(t, recipe.ConceptSet{"tomato"}, got)

	got, err = NewCachedExtractor(gemini, "gemini", store).Extract(context.Background(), img)
	require.NoError(t, err)
	assert.Equal(t, recipe.ConceptSet{"cherry tomato"}, got)
	assert.Equal(t, 1, gemini.calls)

	// Each provider now hits its own entry.
	got, err = NewCachedExtractor(clarifai, "clarifai", store).Extract(context.Background(), img)
	require.NoError(t, err)
	assert.Equal(t, recipe.ConceptSet{"tomato"}, got)
	assert.Equal(t, 1, clarifai.calls)
}

func TestCachedExtractor_KeyIncludesProvider(t *testing.T) {
	cache := newMemoryCache()
	inner := &stubScorer{concepts: []recipe.Concept{{Name: "egg", Confidence: 0.95}}}

	_, err := NewCachedExtractor(inner, "gemini", cache).Extract(context.Background(), recipe.NewImage([]byte("a"), ""))
	require.NoError(t, err)

	require.Len(t, cache.entries, 1)
	assert.Contains(t, cache.entries, "gemini:"+hashImage([]byte("a")))
}

func TestCachedExtractor_DifferentImagesMiss(t *testing.T) {
	inner := &stubScorer{concepts: []recipe.Concept{{Name: "egg", Confidence: 0.95}}}
	ex := NewCachedExtractor(inner, "clarifai", newMemoryCache())

	_, err := ex.Extract(context.Background(), recipe.NewImage([]byte("a"), ""))
	require.NoError(t, err)
	_, err = ex.Extract(context.Background(), recipe.NewImage([]byte("b"), ""))
	require.NoError(t, err)

	assert.Equal(t, 2, inner.calls)
}

func TestCachedExtractor_ErrorsAreNotCached(t *testing.T) {
	inner := &stubScorer{err: &ExtractionError{Status: 503, Message: "down"}}
	cache := newMemoryCache()
	ex := NewCachedExtractor(inner, "clarifai", cache)

	_, err := ex.Extract(context.Background(), recipe.NewImage([]byte("a"), ""))
	assert.Error(t, err)
	assert.Empty(t, cache.entries)
}

func TestCachedExtractor_CacheFailuresAreIgnored(t *testing.T) {
	inner := &stubScorer{concepts: []recipe.Concept{{Name: "rice", Confidence: 0.9}}}
	cache := newMemoryCache()
	cache.getErr = errors.New("disk gone")
	cache.setErr = errors.New("disk gone")
	ex := NewCachedExtractor(inner, "clarifai", cache)

	concepts, err := ex.Extract(context.Background(), recipe.NewImage([]byte("a"), ""))
	require.NoError(t, err)
	assert.Equal(t, recipe.ConceptSet{"rice"}, concepts)
}

func TestCachedExtractor_NilCache(t *testing.T) {
	inner := &stubScorer{concepts: []recipe.Concept{{Name: "rice", Confidence: 0.9}}}
	ex := NewCachedExtractor(inner, "clarifai", nil)

	concepts, err := ex.Extract(context.Background(), recipe.NewImage([]byte("a"), ""))
	require.NoError(t, err)
	assert.Equal(t, recipe.ConceptSet{"rice"}, concepts)
}

func TestCachedExtractor_EmptyImage(t *testing.T) {
	inner := &stubScorer{}
	ex := NewCachedExtractor(inner, "clarifai", newMemoryCache())

	_, err := ex.Extract(context.Background(), recipe.Image{})
	assert.ErrorIs(t, err, ErrEmptyImage)
	assert.Equal(t, 0, inner.calls)
}
