package services

import (
	"context"
	"fmt"
	"reasondesk/internal/database"
	"reasondesk/internal/logger"
	"strconv"

	"github.com/valkey-io/valkey-go"
)

const statsGenerationKey = "stats:generation"

// CacheInvalidationService versions the statistics cache. Cached aggregates
// are stored under keys that include the current generation, so bumping the
// generation orphans every cached aggregate at once; TTLs clean them up.
type CacheInvalidationService struct {
	cache database.CacheClient
	log   logger.Logger
}

func NewCacheInvalidationService(db database.DB) *CacheInvalidationService {
	return &CacheInvalidationService{
		cache: db.Cache.Stats,
		log:   logger.New("CacheInvalidationService"),
	}
}

func (s *CacheInvalidationService) Enabled() bool {
	return s != nil && s.cache != nil
}

// StatsKey builds the cache key for one aggregate at the current generation.
func (s *CacheInvalidationService) StatsKey(ctx context.Context, name string) (string, error) {
	if !s.Enabled() {
		return "", fmt.Errorf("stats cache disabled")
	}

	raw, err := s.cache.Do(ctx, s.cache.B().Get().Key(statsGenerationKey).Build()).ToString()
	if err != nil && !valkey.IsValkeyNil(err) {
		return "", s.log.Function("StatsKey").Err("failed to read stats generation", err)
	}

	generation := int64(0)
	if raw != "" {
		generation, _ = strconv.ParseInt(raw, 10, 64)
	}

	return fmt.Sprintf("stats:%d:%s", generation, name), nil
}

// InvalidateStats drops every cached aggregate. A nil or cache-less service
// is a no-op.
func (s *CacheInvalidationService) InvalidateStats(ctx context.Context) error {
	if !s.Enabled() {
		return nil
	}

	if err := s.cache.Do(ctx, s.cache.B().Incr().Key(statsGenerationKey).Build()).Error(); err != nil {
		return s.log.Function("InvalidateStats").Err("failed to bump stats generation", err)
	}

	return nil
}
