package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"

	"marketplace-assistant/internal/config"
	"marketplace-assistant/internal/models"
)

// ResponseCacheRepository persists chat answers in chat_response_cache
type ResponseCacheRepository struct {
	db           *pgxpool.Pool
	queryTimeout time.Duration
	logger       *zap.Logger
}

// NewResponseCacheRepository creates a new response cache repository
func NewResponseCacheRepository(db *pgxpool.Pool, cfg *config.Config, logger *zap.Logger) *ResponseCacheRepository {
	return &ResponseCacheRepository{
		db:           db,
		queryTimeout: cfg.Database.QueryTimeout,
		logger:       logger,
	}
}

func (r *ResponseCacheRepository) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	if r.queryTimeout <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, r.queryTimeout)
}

// Get returns the entry for a query hash and scope. Entries last written more
// than maxAge ago are treated as absent; maxAge of zero disables the check.
// A miss returns nil, nil.
func (r *ResponseCacheRepository) Get(ctx context.Context, queryHash, userScope string, maxAge time.Duration) (*models.CachedResponse, error) {
	ctx, cancel := r.withTimeout(ctx)
	defer cancel()

	var notBefore *time.Time
	if maxAge > 0 {
		t := time.Now().Add(-maxAge)
		notBefore = &t
	}

	query := `
		SELECT query_hash, user_scope, query, response, source, model, tokens,
		       hit_count, created_at, updated_at
		FROM chat_response_cache
		WHERE query_hash = $1 AND user_scope = $2
		  AND ($3::timestamptz IS NULL OR updated_at >= $3)`

	var (
		entry  models.CachedResponse
		source string
	)
	err := r.db.QueryRow(ctx, query, queryHash, userScope, notBefore).Scan(
		&entry.QueryHash, &entry.UserScope, &entry.Query, &entry.Response,
		&source, &entry.Model, &entry.Tokens,
		&entry.HitCount, &entry.CreatedAt, &entry.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		r.logger.Error("failed to get cached response",
			zap.Error(err),
			zap.String("query_hash", queryHash))
		return nil, fmt.Errorf("failed to get cached response: %w", err)
	}
	entry.Source = models.ResponseSource(source)

	return &entry, nil
}

// Upsert stores an entry; an existing entry for the same hash and scope is
// overwritten and its hit count kept
func (r *ResponseCacheRepository) Upsert(ctx context.Context, entry *models.CachedResponse) error {
	if entry == nil || entry.QueryHash == "" {
		return ErrInvalidInput
	}

	ctx, cancel := r.withTimeout(ctx)
	defer cancel()

	query := `
		INSERT INTO chat_response_cache (
			query_hash, user_scope, query, response, source, model, tokens,
			hit_count, created_at, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, 0, NOW(), NOW())
		ON CONFLICT (query_hash, user_scope)
		DO UPDATE SET
			query = EXCLUDED.query,
			response = EXCLUDED.response,
			source = EXCLUDED.source,
			model = EXCLUDED.model,
			tokens = EXCLUDED.tokens,
			updated_at = EXCLUDED.updated_at
		RETURNING hit_count, created_at, updated_at`

	err := r.db.QueryRow(ctx, query,
		entry.QueryHash, entry.UserScope, entry.Query, entry.Response,
		string(entry.Source), entry.Model, entry.Tokens,
	).Scan(&entry.HitCount, &entry.CreatedAt, &entry.UpdatedAt)
	if err != nil {
		r.logger.Error("failed to upsert cached response",
			zap.Error(err),
			zap.String("query_hash", entry.QueryHash),
			zap.String("user_scope", entry.UserScope))
		return fmt.Errorf("failed to upsert cached response: %w", err)
	}

	r.logger.Debug("cached response stored",
		zap.String("query_hash", entry.QueryHash),
		zap.String("source", string(entry.Source)))

	return nil
}

// IncrementHitCount bumps the hit counter of an entry
func (r *ResponseCacheRepository) IncrementHitCount(ctx context.Context, queryHash, userScope string) error {
	ctx, cancel := r.withTimeout(ctx)
	defer cancel()

	query := `
		UPDATE chat_response_cache
		SET hit_count = hit_count + 1
		WHERE query_hash = $1 AND user_scope = $2`

	if _, err := r.db.Exec(ctx, query, queryHash, userScope); err != nil {
		return fmt.Errorf("failed to increment hit count: %w", err)
	}
	return nil
}

// DeleteOlderThan removes entries not written within maxAge and returns the
// keys it removed
func (r *ResponseCacheRepository) DeleteOlderThan(ctx context.Context, maxAge time.Duration) ([]models.CacheKey, error) {
	if maxAge <= 0 {
		return nil, ErrInvalidInput
	}

	ctx, cancel := r.withTimeout(ctx)
	defer cancel()

	rows, err := r.db.Query(ctx,
		`DELETE FROM chat_response_cache WHERE updated_at < $1 RETURNING query_hash, user_scope`,
		time.Now().Add(-maxAge))
	if err != nil {
		return nil, fmt.Errorf("failed to purge cached responses: %w", err)
	}
	defer rows.Close()

	var keys []models.CacheKey
	for rows.Next() {
		var k models.CacheKey
		if err := rows.Scan(&k.QueryHash, &k.UserScope); err != nil {
			return nil, fmt.Errorf("failed to scan purged key: %w", err)
		}
		keys = append(keys, k)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to purge cached responses: %w", err)
	}

	r.logger.Info("stale cached responses purged",
		zap.Int("deleted", len(keys)),
		zap.Duration("max_age", maxAge))

	return keys, nil
}

// HealthCheck performs a basic health check on the database connection
func (r *ResponseCacheRepository) HealthCheck(ctx context.Context) error {
	var result int
	if err := r.db.QueryRow(ctx, "SELECT 1").Scan(&result); err != nil {
		r.logger.Error("database health check failed", zap.Error(err))
		return fmt.Errorf("database health check failed: %w", err)
	}
	return nil
}
