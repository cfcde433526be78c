package storage

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"sync"
	"time"

	"github.com/raine/telegram-recipe-bot/internal/recipe"
	_ "modernc.org/sqlite"
)

// ConceptCacheEntry is a cached recognition result: every concept the
// service reported for an image, before confidence filtering.
type ConceptCacheEntry struct {
	Concepts  []recipe.Concept
	CreatedAt time.Time
}

// SQLiteStore keeps the concept cache in SQLite.
type SQLiteStore struct {
	db *sql.DB
	mu sync.RWMutex
}

// NewSQLiteStore opens (or creates) the database at dbPath.
func NewSQLiteStore(dbPath string) (*SQLiteStore, error) {
	// WAL and a busy timeout so the CLI and the bot can share the file.
	dsn := fmt.Sprintf("%s?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)", dbPath)
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	store := &SQLiteStore{db: db}
	if err := store.init(); err != nil {
		db.Close()
		return nil, err
	}

	// Only works once the file exists; in-memory databases have none.
	if err := os.Chmod(dbPath, 0600); err != nil && !os.IsNotExist(err) {
		db.Close()
		return nil, fmt.Errorf("failed to set database permissions: %w", err)
	}

	return store, nil
}

func (s *SQLiteStore) init() error {
	query := `
	CREATE TABLE IF NOT EXISTS concept_cache (
		image_hash TEXT PRIMARY KEY,
		concepts_json TEXT NOT NULL,
		created_at DATETIME DEFAULT CURRENT_TIMESTAMP
	);
	`
	if _, err := s.db.Exec(query); err != nil {
		return fmt.Errorf("failed to create concept_cache table: %w", err)
	}
	return nil
}

// Close closes the database.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// GetConcepts retrieves a cached recognition result. The key is the
// provider name and image hash, stored in the image_hash column.
// Returns nil, nil if there is no entry.
func (s *SQLiteStore) GetConcepts(key string) (*ConceptCacheEntry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var raw string
	var createdAt time.Time
	err := s.db.QueryRow(
		"SELECT concepts_json, created_at FROM concept_cache WHERE image_hash = ?",
		key,
	).Scan(&raw, &createdAt)

	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query concept cache: %w", err)
	}

	entry := ConceptCacheEntry{CreatedAt: createdAt}
	if err := json.Unmarshal([]byte(raw), &entry.Concepts); err != nil {
		return nil, fmt.Errorf("failed to decode cached concepts: %w", err)
	}
	return &entry, nil
}

// SetConcepts stores a recognition result, replacing any previous entry.
func (s *SQLiteStore) SetConcepts(key string, entry *ConceptCacheEntry) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	concepts := entry.Concepts
	if concepts == nil {
		concepts = []recipe.Concept{}
	}
	raw, err := json.Marshal(concepts)
	if err != nil {
		return fmt.Errorf("failed to encode concepts: %w", err)
	}

	_, err = s.db.Exec(`
		INSERT INTO concept_cache (image_hash, concepts_json)
		VALUES (?, ?)
		ON CONFLICT(image_hash) DO UPDATE SET
			concepts_json = excluded.concepts_json,
			created_at = CURRENT_TIMESTAMP
	`, key, string(raw))
	if err != nil {
		return fmt.Errorf("failed to cache concepts: %w", err)
	}
	return nil
}

// PruneConcepts deletes cache entries older than maxAge and returns how many
// were removed.
func (s *SQLiteStore) PruneConcepts(maxAge time.Duration) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	cutoff := time.Now().Add(-maxAge).UTC().Format("2006-01-02 15:04:05")
	res, err := s.db.Exec("DELETE FROM concept_cache WHERE created_at < ?", cutoff)
	if err != nil {
		return 0, fmt.Errorf("failed to prune concept cache: %w", err)
	}
	return res.RowsAffected()
}
