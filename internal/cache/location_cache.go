package cache

import (
	"context"
	"encoding/json"
	"net/url"
	"time"

	"github.com/webdevsha/permitakaun/internal/domain"
	"github.com/webdevsha/permitakaun/pkg/logger"
	"go.uber.org/zap"
)

// staleFactor keeps entries in the store past freshness so a failed reload can still answer
const staleFactor = 4

// LocationLoader loads the listing for a set of query parameters
type LocationLoader func(ctx context.Context) ([]domain.Location, error)

type locationEntry struct {
	Locations []domain.Location `json:"locations"`
	CachedAt  time.Time         `json:"cached_at"`
}

// LocationCache caches public location listings keyed by their query parameters
type LocationCache struct {
	store Store
	ttl   time.Duration
	now   func() time.Time
	log   *logger.Logger
}

// NewLocationCache creates a listing cache
func NewLocationCache(store Store, ttl time.Duration, now func() time.Time, log *logger.Logger) *LocationCache {
	if now == nil {
		now = time.Now
	}
	if log == nil {
		log = logger.NewNop()
	}
	if ttl <= 0 {
		ttl = 5 * time.Minute
	}
	return &LocationCache{store: store, ttl: ttl, now: now, log: log}
}

// Key builds a stable cache key from query parameters
func Key(params map[string]string) string {
	values := url.Values{}
	for k, v := range params {
		if v != "" {
			values.Set(k, v)
		}
	}
	// Encode sorts by key
	return "locations:" + values.Encode()
}

// GetOrLoad returns a fresh cached listing or loads and stores a new one.
// A failed load falls back to a stale entry when one is still stored.
func (c *LocationCache) GetOrLoad(ctx context.Context, key string, load LocationLoader) ([]domain.Location, error) {
	stale, found := c.read(ctx, key)
	if found && c.now().Sub(stale.CachedAt) < c.ttl {
		return stale.Locations, nil
	}

	locations, err := load(ctx)
	if err != nil {
		if found {
			c.log.WarnContext(ctx, "serving stale location listing",
				zap.String("key", key),
				zap.Error(err),
			)
			return stale.Locations, nil
		}
		return nil, err
	}

	raw, err := json.Marshal(locationEntry{Locations: locations, CachedAt: c.now()})
	if err == nil {
		err = c.store.Set(ctx, key, raw, c.ttl*staleFactor)
	}
	if err != nil {
		c.log.WarnContext(ctx, "failed to cache location listing", zap.String("key", key), zap.Error(err))
	}
	return locations, nil
}

func (c *LocationCache) read(ctx context.Context, key string) (*locationEntry, bool) {
	raw, ok, err := c.store.Get(ctx, key)
	if err != nil {
		c.log.WarnContext(ctx, "failed to read location cache", zap.String("key", key), zap.Error(err))
		return nil, false
	}
	if !ok {
		return nil, false
	}
	var entry locationEntry
	if err := json.Unmarshal(raw, &entry); err != nil {
		return nil, false
	}
	return &entry, true
}
