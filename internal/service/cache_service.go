package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	appErrors "github.com/noah-isme/sma-jadwal-mapel/pkg/errors"
)

// CacheRepository abstracts persistence for cached reference lists.
type CacheRepository interface {
	Get(ctx context.Context, key string, dest interface{}) error
	Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error
	DeleteByPattern(ctx context.Context, pattern string) error
}

// CacheService fronts the catalog cache and records hit ratio metrics.
// A disabled or nil service never hits and accepts writes silently.
type CacheService struct {
	store   CacheRepository
	metrics *MetricsService
	ttl     time.Duration
	logger  *zap.Logger
	enabled bool
}

// NewCacheService constructs a cache service. ttl applies when Set gets none.
func NewCacheService(store CacheRepository, metrics *MetricsService, ttl time.Duration, logger *zap.Logger, enabled bool) *CacheService {
	if ttl <= 0 {
		ttl = 10 * time.Minute
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &CacheService{store: store, metrics: metrics, ttl: ttl, logger: logger, enabled: enabled}
}

// Enabled indicates whether caching is active.
func (s *CacheService) Enabled() bool {
	return s != nil && s.enabled && s.store != nil
}

// Get decodes the entry at key into dest and reports whether it was present.
// Backend failures count as misses and are returned for the caller to log.
func (s *CacheService) Get(ctx context.Context, key string, dest interface{}) (bool, error) {
	if !s.Enabled() {
		return false, nil
	}
	start := time.Now()
	err := s.store.Get(ctx, key, dest)
	s.metrics.RecordCacheOperation(err == nil, time.Since(start))

	switch {
	case err == nil:
		return true, nil
	case errors.Is(err, appErrors.ErrCacheMiss):
		return false, nil
	default:
		s.logger.Warn("catalog cache read failed", zap.String("key", key), zap.Error(err))
		return false, fmt.Errorf("cache read %s: %w", key, err)
	}
}

// Set stores value under key.
func (s *CacheService) Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error {
	if !s.Enabled() {
		return nil
	}
	if ttl <= 0 {
		ttl = s.ttl
	}
	start := time.Now()
	err := s.store.Set(ctx, key, value, ttl)
	s.metrics.ObserveCacheWrite(time.Since(start))
	if err != nil {
		s.logger.Warn("catalog cache write failed", zap.String("key", key), zap.Error(err))
		return fmt.Errorf("cache write %s: %w", key, err)
	}
	return nil
}

// Invalidate evicts every key matching pattern. A bare "*" is refused.
func (s *CacheService) Invalidate(ctx context.Context, pattern string) error {
	if !s.Enabled() {
		return nil
	}
	if strings.Trim(pattern, "*") == "" {
		return appErrors.Clone(appErrors.ErrValidation, "cache pattern must not be empty")
	}
	if err := s.store.DeleteByPattern(ctx, pattern); err != nil {
		s.logger.Warn("catalog cache invalidate failed", zap.String("pattern", pattern), zap.Error(err))
		return fmt.Errorf("cache invalidate %s: %w", pattern, err)
	}
	s.logger.Info("catalog cache invalidated", zap.String("pattern", pattern))
	return nil
}
