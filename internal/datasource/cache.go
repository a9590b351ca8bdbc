package datasource

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync/atomic"
	"time"

	cache "github.com/patrickmn/go-cache"
	"github.com/yourusername/fund-backtester/internal/metrics"
	"github.com/yourusername/fund-backtester/internal/models"
)

// CachedSource keeps query results of another Source in memory for a TTL.
// Repeated runs over the same window (scheduled jobs, parameter sweeps)
// then hit the cache instead of the backing store.
type CachedSource struct {
	source    Source
	cache     *cache.Cache
	hitCount  atomic.Uint64
	missCount atomic.Uint64
}

// NewCachedSource wraps source with a TTL cache
func NewCachedSource(source Source, ttl time.Duration) *CachedSource {
	return &CachedSource{
		source: source,
		cache:  cache.New(ttl, ttl*2),
	}
}

// Name returns the name of the wrapped source
func (c *CachedSource) Name() string {
	return c.source.Name()
}

// Stats returns cache hits and misses so far
func (c *CachedSource) Stats() (hits, misses uint64) {
	return c.hitCount.Load(), c.missCount.Load()
}

// Flush drops every cached entry
func (c *CachedSource) Flush() {
	c.cache.Flush()
}

// TradingDates returns the open days in [begin, end]
func (c *CachedSource) TradingDates(ctx context.Context, begin, end time.Time) ([]time.Time, error) {
	key := fmt.Sprintf("calendar:%s:%s", dateKey(begin), dateKey(end))
	return cached(c, key, func() ([]time.Time, error) {
		return c.source.TradingDates(ctx, begin, end)
	})
}

// FundNAV returns NAV points for codes in [begin, end]
func (c *CachedSource) FundNAV(ctx context.Context, codes []string, begin, end time.Time, navType NAVType) ([]models.NAVPoint, error) {
	key := fmt.Sprintf("nav:%s:%s:%s:%s", navType, dateKey(begin), dateKey(end), codesKey(codes))
	return cached(c, key, func() ([]models.NAVPoint, error) {
		return c.source.FundNAV(ctx, codes, begin, end, navType)
	})
}

// IndexQuotes returns the closing prices of an index in [begin, end]
func (c *CachedSource) IndexQuotes(ctx context.Context, indexCode string, begin, end time.Time) ([]models.NAVPoint, error) {
	key := fmt.Sprintf("index:%s:%s:%s", indexCode, dateKey(begin), dateKey(end))
	return cached(c, key, func() ([]models.NAVPoint, error) {
		return c.source.IndexQuotes(ctx, indexCode, begin, end)
	})
}

// Instruments returns the fund master data known for codes
func (c *CachedSource) Instruments(ctx context.Context, codes []string) ([]models.Instrument, error) {
	key := "funds:" + codesKey(codes)
	return cached(c, key, func() ([]models.Instrument, error) {
		return c.source.Instruments(ctx, codes)
	})
}

// cached returns a copy of the cached slice so callers cannot alias each other
func cached[T any](c *CachedSource, key string, load func() ([]T, error)) ([]T, error) {
	if v, found := c.cache.Get(key); found {
		if items, ok := v.([]T); ok {
			c.hitCount.Add(1)
			metrics.RecordCacheLookup(true)
			return append([]T(nil), items...), nil
		}
	}
	c.missCount.Add(1)
	metrics.RecordCacheLookup(false)

	items, err := load()
	if err != nil {
		return nil, err
	}
	c.cache.SetDefault(key, append([]T(nil), items...))
	return items, nil
}

func dateKey(t time.Time) string {
	if t.IsZero() {
		return "-"
	}
	return t.Format(apiDateLayout)
}

func codesKey(codes []string) string {
	sorted := append([]string(nil), codes...)
	sort.Strings(sorted)
	return strings.Join(sorted, ",")
}
