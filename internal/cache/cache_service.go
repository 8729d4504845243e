package cache

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"marketplace-assistant/internal/config"
	"marketplace-assistant/internal/faq"
	"marketplace-assistant/internal/metrics"
	"marketplace-assistant/internal/models"
	"marketplace-assistant/internal/repository"
)

// GlobalScope is the user scope of answers shared by every user
const GlobalScope = ""

// HotTier is a fast, expiring copy of persisted answers
type HotTier interface {
	GetResponse(ctx context.Context, queryHash, userScope string) (*models.CachedResponse, error)
	SetResponse(ctx context.Context, entry *models.CachedResponse, ttl time.Duration) error
	InvalidateResponse(ctx context.Context, queryHash, userScope string) error
	Ping(ctx context.Context) error
}

// Store is the durable response table
type Store interface {
	Get(ctx context.Context, queryHash, userScope string, maxAge time.Duration) (*models.CachedResponse, error)
	Upsert(ctx context.Context, entry *models.CachedResponse) error
	IncrementHitCount(ctx context.Context, queryHash, userScope string) error
	DeleteOlderThan(ctx context.Context, maxAge time.Duration) ([]models.CacheKey, error)
}

// CacheService answers repeat questions from Redis, then Postgres.
// Lookups try the caller's scope before the global scope.
type CacheService struct {
	hot            HotTier
	store          Store
	maxAge         time.Duration
	persistTimeout time.Duration
	metrics        *metrics.MetricsCollector
	logger         *zap.Logger
	now            func() time.Time

	wg sync.WaitGroup
}

// NewCacheService wires the Redis tier (may be nil) in front of the repository
func NewCacheService(
	redisCache *RedisCache,
	repo *repository.ResponseCacheRepository,
	cfg *config.Config,
	metricsCollector *metrics.MetricsCollector,
	logger *zap.Logger,
) *CacheService {
	var hot HotTier
	if redisCache != nil {
		hot = redisCache
	}
	return newCacheService(hot, repo, cfg.Chat, metricsCollector, logger)
}

func newCacheService(hot HotTier, store Store, chat config.ChatConfig, m *metrics.MetricsCollector, logger *zap.Logger) *CacheService {
	timeout := chat.PersistTimeout
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	return &CacheService{
		hot:            hot,
		store:          store,
		maxAge:         chat.ResponseTTL,
		persistTimeout: timeout,
		metrics:        m,
		logger:         logger,
		now:            time.Now,
	}
}

// hotTTL is how long a copy of entry may live in the hot tier: never past
// the entry's own expiry. Zero means the entry is already expired.
func (s *CacheService) hotTTL(entry *models.CachedResponse) time.Duration {
	if s.maxAge <= 0 {
		return 0
	}
	if entry.UpdatedAt.IsZero() {
		return s.maxAge
	}
	left := s.maxAge - s.now().Sub(entry.UpdatedAt)
	if left <= 0 {
		return 0
	}
	return left
}

func (s *CacheService) expired(entry *models.CachedResponse) bool {
	return s.maxAge > 0 && !entry.UpdatedAt.IsZero() && s.now().Sub(entry.UpdatedAt) >= s.maxAge
}

// setHot writes a copy to the hot tier unless the entry has already expired
func (s *CacheService) setHot(ctx context.Context, entry *models.CachedResponse) error {
	ttl := s.hotTTL(entry)
	if s.maxAge > 0 && ttl == 0 {
		return nil
	}
	return s.hot.SetResponse(ctx, entry, ttl)
}

func scopes(userID string) []string {
	if userID == "" {
		return []string{GlobalScope}
	}
	return []string{userID, GlobalScope}
}

// Get returns the stored answer for a query, or nil on a miss
func (s *CacheService) Get(ctx context.Context, query, userID string) (*models.CachedResponse, error) {
	hash := faq.HashQuery(query)

	for _, scope := range scopes(userID) {
		entry, err := s.lookup(ctx, hash, scope)
		if err != nil {
			s.metrics.RecordCacheOperation("get", "error")
			return nil, err
		}
		if entry != nil {
			return entry, nil
		}
	}

	s.metrics.RecordCacheOperation("get", "miss")
	return nil, nil
}

func (s *CacheService) lookup(ctx context.Context, hash, scope string) (*models.CachedResponse, error) {
	if s.hot != nil {
		entry, err := s.hot.GetResponse(ctx, hash, scope)
		if err != nil {
			s.logger.Warn("hot cache lookup failed, falling back to database",
				zap.Error(err),
				zap.String("query_hash", hash))
		} else if entry != nil && s.expired(entry) {
			s.metrics.RecordCacheOperation("get", "expired_redis")
		} else if entry != nil {
			s.metrics.RecordCacheOperation("get", "hit_redis")
			return entry, nil
		}
	}

	entry, err := s.store.Get(ctx, hash, scope, s.maxAge)
	if err != nil {
		return nil, fmt.Errorf("response cache lookup: %w", err)
	}
	if entry == nil {
		return nil, nil
	}

	s.metrics.RecordCacheOperation("get", "hit_db")
	entry.HitCount++
	s.background(func(ctx context.Context) {
		if err := s.store.IncrementHitCount(ctx, hash, scope); err != nil {
			s.logger.Warn("failed to increment hit count", zap.Error(err), zap.String("query_hash", hash))
		}
		if s.hot != nil {
			if err := s.setHot(ctx, entry); err != nil {
				s.logger.Warn("failed to warm hot cache", zap.Error(err), zap.String("query_hash", hash))
			}
		}
	})

	return entry, nil
}

// Put persists an answer and refreshes the hot tier. The query hash is
// derived from entry.Query when it is not already set.
func (s *CacheService) Put(ctx context.Context, entry *models.CachedResponse) error {
	if entry == nil || entry.Response == "" {
		return fmt.Errorf("refusing to cache an empty response")
	}
	if entry.QueryHash == "" {
		entry.QueryHash = faq.HashQuery(entry.Query)
	}
	entry.Query = faq.Normalize(entry.Query)

	if err := s.store.Upsert(ctx, entry); err != nil {
		s.metrics.RecordCacheOperation("set", "error")
		return fmt.Errorf("response cache write: %w", err)
	}

	if s.hot != nil {
		if err := s.setHot(ctx, entry); err != nil {
			s.logger.Warn("failed to write hot cache", zap.Error(err), zap.String("query_hash", entry.QueryHash))
		}
	}

	s.metrics.RecordCacheOperation("set", "ok")
	return nil
}

// Purge deletes persisted answers older than maxAge and drops their hot copies.
// Hot-tier failures are logged; those copies still expire on their TTL.
func (s *CacheService) Purge(ctx context.Context, maxAge time.Duration) (int64, error) {
	keys, err := s.store.DeleteOlderThan(ctx, maxAge)
	if err != nil {
		return 0, fmt.Errorf("response cache purge: %w", err)
	}

	if s.hot != nil {
		for _, k := range keys {
			if err := s.hot.InvalidateResponse(ctx, k.QueryHash, k.UserScope); err != nil {
				s.logger.Warn("failed to invalidate hot cache entry",
					zap.Error(err),
					zap.String("query_hash", k.QueryHash))
			}
		}
	}

	s.metrics.RecordCacheOperation("purge", "ok")
	return int64(len(keys)), nil
}

// Ping checks the hot tier. A service without Redis is always healthy here.
func (s *CacheService) Ping(ctx context.Context) error {
	if s.hot == nil {
		return nil
	}
	return s.hot.Ping(ctx)
}

// Wait blocks until background hit-count and warm-up writes finish
func (s *CacheService) Wait() {
	s.wg.Wait()
}

func (s *CacheService) background(fn func(ctx context.Context)) {
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		ctx, cancel := context.WithTimeout(context.Background(), s.persistTimeout)
		defer cancel()
		fn(ctx)
	}()
}
