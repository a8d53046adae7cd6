package cache

import (
	"context"
	"database/sql"
	"embed"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/golang-migrate/migrate/v4"
	migratesqlite "github.com/golang-migrate/migrate/v4/database/sqlite"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	_ "modernc.org/sqlite"

	"github.com/lysyi3m/feedcomb/app/timeline"
)

//go:embed migrations/*.sql
var migrationFS embed.FS

var _ Store = (*SQLiteStore)(nil)

// SQLiteStore persists post windows in a local SQLite file, one JSON blob per
// feed key.
type SQLiteStore struct {
	db *sql.DB
}

func NewSQLiteStore(path string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open cache database: %w", err)
	}

	// A single writer keeps last-writer-wins semantics simple.
	db.SetMaxOpenConns(1)

	if err := runMigrations(db); err != nil {
		db.Close()
		return nil, err
	}

	slog.Debug("Cache database opened", "path", path)
	return &SQLiteStore{db: db}, nil
}

func runMigrations(db *sql.DB) error {
	driver, err := migratesqlite.WithInstance(db, &migratesqlite.Config{})
	if err != nil {
		return fmt.Errorf("failed to create sqlite driver: %w", err)
	}

	source, err := iofs.New(migrationFS, "migrations")
	if err != nil {
		return fmt.Errorf("failed to create iofs source: %w", err)
	}

	m, err := migrate.NewWithInstance("iofs", source, "sqlite", driver)
	if err != nil {
		return fmt.Errorf("failed to create migrate instance: %w", err)
	}

	if err := m.Up(); err != nil && err != migrate.ErrNoChange {
		return fmt.Errorf("failed to run migrations: %w", err)
	}

	return nil
}

func (s *SQLiteStore) Get(ctx context.Context, key string) ([]timeline.Post, error) {
	var blob string
	err := s.db.QueryRowContext(ctx, `SELECT posts FROM feed_cache WHERE key = ?`, key).Scan(&blob)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read cache entry %s: %w", key, err)
	}

	var posts []timeline.Post
	if err := json.Unmarshal([]byte(blob), &posts); err != nil {
		// Treat a corrupt blob as a miss and clear it.
		slog.Warn("Dropping corrupt cache entry", "key", key, "error", err)
		s.db.ExecContext(ctx, `DELETE FROM feed_cache WHERE key = ?`, key)
		return nil, nil
	}

	return posts, nil
}

func (s *SQLiteStore) Set(ctx context.Context, key string, posts []timeline.Post) error {
	blob, err := json.Marshal(posts)
	if err != nil {
		return fmt.Errorf("failed to marshal posts for %s: %w", key, err)
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO feed_cache (key, posts, cached_at) VALUES (?, ?, ?)
		ON CONFLICT (key) DO UPDATE SET
			posts = excluded.posts,
			cached_at = excluded.cached_at`,
		key, string(blob), time.Now().Unix())
	if err != nil {
		return fmt.Errorf("failed to write cache entry %s: %w", key, err)
	}

	return nil
}

func (s *SQLiteStore) IsValid(ctx context.Context, key string, ttl time.Duration) (bool, error) {
	var cachedAt int64
	err := s.db.QueryRowContext(ctx, `SELECT cached_at FROM feed_cache WHERE key = ?`, key).Scan(&cachedAt)
	if err == sql.ErrNoRows {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("failed to read cache age for %s: %w", key, err)
	}

	return time.Since(time.Unix(cachedAt, 0)) < ttl, nil
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}
