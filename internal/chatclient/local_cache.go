/*
Package chatclient is the client side of the chat assistant: a SQLite cache
of previous answers in front of the HTTP chat endpoint.
*/
package chatclient

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"

	"marketplace-assistant/internal/faq"
	"marketplace-assistant/internal/models"
)

// DefaultTTL matches the server's default response TTL
const DefaultTTL = 24 * time.Hour

// LocalCache persists answers on the client so repeat questions never leave
// the machine. Keys follow the server: normalized query hash plus user scope.
type LocalCache struct {
	db  *sql.DB
	ttl time.Duration
	now func() time.Time
}

// OpenLocalCache opens or creates the cache database at path
func OpenLocalCache(path string, ttl time.Duration) (*LocalCache, error) {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("failed to create cache directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open cache database: %w", err)
	}
	// a single connection serializes writers
	db.SetMaxOpenConns(1)

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping cache database: %w", err)
	}

	c := &LocalCache{db: db, ttl: ttl, now: time.Now}
	if err := c.migrate(); err != nil {
		db.Close()
		return nil, err
	}
	return c, nil
}

func (c *LocalCache) migrate() error {
	if _, err := c.db.Exec(`
		CREATE TABLE IF NOT EXISTS client_response_cache (
			query_hash TEXT NOT NULL,
			user_scope TEXT NOT NULL DEFAULT '',
			query      TEXT NOT NULL,
			response   TEXT NOT NULL,
			source     TEXT NOT NULL,
			model      TEXT NOT NULL DEFAULT '',
			tokens     INTEGER NOT NULL DEFAULT 0,
			updated_at INTEGER NOT NULL,
			PRIMARY KEY (query_hash, user_scope)
		)
	`); err != nil {
		return fmt.Errorf("failed to create client_response_cache table: %w", err)
	}

	if _, err := c.db.Exec(`
		CREATE INDEX IF NOT EXISTS idx_client_response_cache_updated
		ON client_response_cache(updated_at)
	`); err != nil {
		return fmt.Errorf("failed to create client_response_cache index: %w", err)
	}
	return nil
}

func (c *LocalCache) cutoff() int64 {
	if c.ttl <= 0 {
		return 0
	}
	return c.now().Add(-c.ttl).UnixNano()
}

// Get looks up an answer in the user's scope, then the global scope
func (c *LocalCache) Get(ctx context.Context, query, userID string) (*models.ChatResponse, bool, error) {
	hash := faq.HashQuery(query)

	scopes := []string{""}
	if userID != "" {
		scopes = []string{userID, ""}
	}

	for _, scope := range scopes {
		var (
			resp   models.ChatResponse
			source string
		)
		err := c.db.QueryRowContext(ctx, `
			SELECT response, source, model, tokens
			FROM client_response_cache
			WHERE query_hash = ? AND user_scope = ? AND updated_at >= ?`,
			hash, scope, c.cutoff(),
		).Scan(&resp.Response, &source, &resp.Model, &resp.Tokens)
		if errors.Is(err, sql.ErrNoRows) {
			continue
		}
		if err != nil {
			return nil, false, fmt.Errorf("failed to read local cache: %w", err)
		}

		resp.Source = models.ResponseSource(source)
		resp.Cached = true
		return &resp, true, nil
	}

	return nil, false, nil
}

// Set stores an answer. Rule answers are shared across users; model answers
// stay in the asking user's scope.
func (c *LocalCache) Set(ctx context.Context, query, userID string, resp *models.ChatResponse) error {
	scope := userID
	if resp.Source == models.SourceRule || resp.Source == models.SourcePrecomputed {
		scope = ""
	}

	_, err := c.db.ExecContext(ctx, `
		INSERT INTO client_response_cache
			(query_hash, user_scope, query, response, source, model, tokens, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (query_hash, user_scope) DO UPDATE SET
			response = excluded.response,
			source = excluded.source,
			model = excluded.model,
			tokens = excluded.tokens,
			updated_at = excluded.updated_at`,
		faq.HashQuery(query), scope, faq.Normalize(query), resp.Response,
		string(resp.Source), resp.Model, resp.Tokens, c.now().UnixNano(),
	)
	if err != nil {
		return fmt.Errorf("failed to write local cache: %w", err)
	}
	return nil
}

// Purge deletes expired answers
func (c *LocalCache) Purge(ctx context.Context) (int64, error) {
	res, err := c.db.ExecContext(ctx,
		`DELETE FROM client_response_cache WHERE updated_at < ?`, c.cutoff())
	if err != nil {
		return 0, fmt.Errorf("failed to purge local cache: %w", err)
	}
	return res.RowsAffected()
}

// Close closes the database
func (c *LocalCache) Close() error {
	return c.db.Close()
}
