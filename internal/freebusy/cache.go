package freebusy

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/studyhall-labs/planner-api/internal/models"
)

// CachedSource decorates another source with a short-lived redis cache.
// Cache failures degrade to a direct fetch; they never fail the lookup.
type CachedSource struct {
	next   Source
	client *redis.Client
	ttl    time.Duration
	logger *zap.Logger
}

// NewCachedSource wraps next with redis caching.
func NewCachedSource(next Source, client *redis.Client, ttl time.Duration, logger *zap.Logger) *CachedSource {
	if ttl <= 0 {
		ttl = 2 * time.Minute
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &CachedSource{next: next, client: client, ttl: ttl, logger: logger}
}

// BusyWindows implements Source.
func (s *CachedSource) BusyWindows(ctx context.Context, orgID, userID string, from, to time.Time) ([]models.FreeBusyWindow, error) {
	if degenerateRange(from, to) {
		return nil, nil
	}

	key := cacheKey(orgID, userID, from, to)
	if cached, err := s.client.Get(ctx, key).Bytes(); err == nil {
		var windows []models.FreeBusyWindow
		if err := json.Unmarshal(cached, &windows); err == nil {
			return windows, nil
		}
		s.logger.Sugar().Warnw("corrupt freebusy cache entry, refetching", "key", key)
	} else if err != redis.Nil {
		s.logger.Sugar().Warnw("freebusy cache read failed", "key", key, "error", err)
	}

	windows, err := s.next.BusyWindows(ctx, orgID, userID, from, to)
	if err != nil {
		return nil, err
	}

	if data, err := json.Marshal(windows); err == nil {
		if err := s.client.Set(ctx, key, data, s.ttl).Err(); err != nil {
			s.logger.Sugar().Warnw("freebusy cache write failed", "key", key, "error", err)
		}
	}
	return windows, nil
}

func cacheKey(orgID, userID string, from, to time.Time) string {
	return fmt.Sprintf("freebusy:%s:%s:%d:%d", orgID, userID, from.Unix(), to.Unix())
}
