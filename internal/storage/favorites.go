package storage

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sync"

	"github.com/gofrs/flock"
	"github.com/raine/telegram-recipe-bot/internal/recipe"
	"github.com/rs/zerolog/log"
)

// AddResult is the outcome of adding a favorite.
type AddResult int

const (
	Added AddResult = iota + 1
	AlreadyPresent
)

func (r AddResult) String() string {
	switch r {
	case Added:
		return "added"
	case AlreadyPresent:
		return "already_present"
	default:
		return "unknown"
	}
}

// Favorites is a set of recipes keyed by recipe ID, persisted as a JSON
// array at a single path. The whole file is read and rewritten on every
// change.
//
// The load-check-insert-write sequence holds an exclusive lock on
// <path>.lock, so the bot and the CLI can share the file without losing
// writes. The mutex covers goroutines of this process, which share one
// flock handle.
type Favorites struct {
	path string
	mu   sync.Mutex
	lock *flock.Flock
}

// NewFavorites returns a store for the file at path. The file does not need
// to exist yet.
func NewFavorites(path string) *Favorites {
	return &Favorites{
		path: path,
		lock: flock.New(path + ".lock"),
	}
}

// Path returns the favorites file location.
func (f *Favorites) Path() string {
	return f.path
}

// Add inserts the recipe unless a favorite with the same ID exists. Nothing
// is written when the recipe is already present.
func (f *Favorites) Add(d recipe.Detail) (AddResult, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if err := os.MkdirAll(filepath.Dir(f.path), 0o755); err != nil {
		return 0, fmt.Errorf("create favorites dir: %w", err)
	}
	if err := f.lock.Lock(); err != nil {
		return 0, fmt.Errorf("lock favorites: %w", err)
	}
	defer f.lock.Unlock()

	favorites, err := f.load()
	if err != nil {
		return 0, err
	}
	for _, r := range favorites {
		if r.ID == d.ID {
			return AlreadyPresent, nil
		}
	}

	favorites = append(favorites, d)
	if err := f.write(favorites); err != nil {
		return 0, err
	}

	log.Info().Int("recipeID", d.ID).Str("title", d.Title).Int("count", len(favorites)).Msg("saved favorite")
	return Added, nil
}

// List returns every favorite in insertion order.
func (f *Favorites) List() ([]recipe.Detail, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if _, err := os.Stat(filepath.Dir(f.path)); errors.Is(err, fs.ErrNotExist) {
		return nil, nil
	}
	if err := f.lock.RLock(); err != nil {
		return nil, fmt.Errorf("lock favorites: %w", err)
	}
	defer f.lock.Unlock()

	return f.load()
}

// load reads the file; a missing or blank file is an empty set. A file that
// does not parse is an error so it is never silently overwritten.
func (f *Favorites) load() ([]recipe.Detail, error) {
	data, err := os.ReadFile(f.path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read favorites: %w", err)
	}
	if len(bytes.TrimSpace(data)) == 0 {
		return nil, nil
	}

	var favorites []recipe.Detail
	if err := json.Unmarshal(data, &favorites); err != nil {
		return nil, fmt.Errorf("parse favorites %s: %w", f.path, err)
	}
	return favorites, nil
}

// write replaces the file through a temp file and rename.
func (f *Favorites) write(favorites []recipe.Detail) error {
	data, err := json.MarshalIndent(favorites, "", "  ")
	if err != nil {
		return fmt.Errorf("encode favorites: %w", err)
	}

	tmp, err := os.CreateTemp(filepath.Dir(f.path), ".favorites-*.json")
	if err != nil {
		return fmt.Errorf("create temp favorites: %w", err)
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName)

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("write favorites: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("write favorites: %w", err)
	}
	if err := os.Chmod(tmpName, 0o644); err != nil {
		return fmt.Errorf("chmod favorites: %w", err)
	}
	if err := os.Rename(tmpName, f.path); err != nil {
		return fmt.Errorf("replace favorites: %w", err)
	}
	return nil
}
