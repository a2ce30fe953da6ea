package municipality

import (
	"context"
	"strings"
	"sync"
	"time"
	"unicode/utf8"

	"golang.org/x/sync/singleflight"

	"geoincra-portal/internal/common/errors"
	"geoincra-portal/internal/common/logger"
	"geoincra-portal/internal/common/metrics"
	"geoincra-portal/internal/models"
)

const (
	DefaultMinQueryLength = 2
	DefaultLookupTimeout  = 10 * time.Second
)

// NormalizeKey builds the cache key: upper-cased state, "_", lower-cased query.
func NormalizeKey(query, state string) string {
	return strings.ToUpper(strings.TrimSpace(state)) + "_" + strings.ToLower(strings.TrimSpace(query))
}

// Cache is the process-wide municipality memo. Entries are written once per
// key and never expire; failed lookups are not cached.
type Cache struct {
	resolver Resolver
	shared   SharedStore
	logger   logger.Logger
	minLen   int
	timeout  time.Duration

	entries sync.Map // key -> []models.Municipality
	group   singleflight.Group
}

type CacheOption func(*Cache)

func WithSharedStore(s SharedStore) CacheOption {
	return func(c *Cache) { c.shared = s }
}

func WithCacheLogger(l logger.Logger) CacheOption {
	return func(c *Cache) {
		if l != nil {
			c.logger = l
		}
	}
}

func WithMinQueryLength(n int) CacheOption {
	return func(c *Cache) {
		if n > 0 {
			c.minLen = n
		}
	}
}

func WithLookupTimeout(d time.Duration) CacheOption {
	return func(c *Cache) {
		if d > 0 {
			c.timeout = d
		}
	}
}

func NewCache(resolver Resolver, opts ...CacheOption) *Cache {
	c := &Cache{
		resolver: resolver,
		logger:   logger.NewNoOpLogger(),
		minLen:   DefaultMinQueryLength,
		timeout:  DefaultLookupTimeout,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// TooShort reports queries that never reach the resolver.
func (c *Cache) TooShort(query string) bool {
	return utf8.RuneCountInString(strings.TrimSpace(query)) < c.minLen
}

// Lookup is the synchronous in-process hit path.
func (c *Cache) Lookup(query, state string) ([]models.Municipality, bool) {
	v, ok := c.entries.Load(NormalizeKey(query, state))
	if !ok {
		return nil, false
	}
	return copyMatches(v.([]models.Municipality)), true
}

// Len counts the in-process entries.
func (c *Cache) Len() int {
	n := 0
	c.entries.Range(func(_, _ interface{}) bool {
		n++
		return true
	})
	return n
}

// Search never fails: resolver errors are logged and yield no matches.
func (c *Cache) Search(ctx context.Context, query, state string) []models.Municipality {
	if c.TooShort(query) {
		metrics.MunicipalityLookups.WithLabelValues("short").Inc()
		return []models.Municipality{}
	}

	key := NormalizeKey(query, state)
	if v, ok := c.entries.Load(key); ok {
		metrics.MunicipalityLookups.WithLabelValues("l1").Inc()
		return copyMatches(v.([]models.Municipality))
	}

	q := strings.TrimSpace(query)
	st := strings.ToUpper(strings.TrimSpace(state))

	v, err, _ := c.group.Do(key, func() (interface{}, error) {
		// coalesced callers must not be failed by the first caller's cancellation
		lookupCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), c.timeout)
		defer cancel()
		return c.fill(lookupCtx, key, q, st)
	})
	if err != nil {
		metrics.MunicipalityLookupErrors.Inc()
		c.logger.Warn("municipality lookup failed", map[string]interface{}{
			"query": q,
			"state": st,
			"error": errors.NewLookupFailedError(q, err),
		})
		return []models.Municipality{}
	}
	return copyMatches(v.([]models.Municipality))
}

func (c *Cache) fill(ctx context.Context, key, query, state string) ([]models.Municipality, error) {
	if c.shared != nil {
		matches, ok, err := c.shared.Get(ctx, key)
		if err != nil {
			c.logger.Warn("shared municipality cache unavailable", map[string]interface{}{"error": err})
		} else if ok {
			metrics.MunicipalityLookups.WithLabelValues("l2").Inc()
			actual, _ := c.entries.LoadOrStore(key, normalize(matches))
			return actual.([]models.Municipality), nil
		}
	}

	matches, err := c.resolver.Resolve(ctx, query, state)
	if err != nil {
		return nil, err
	}
	metrics.MunicipalityLookups.WithLabelValues("resolver").Inc()

	actual, loaded := c.entries.LoadOrStore(key, normalize(matches))
	if !loaded && c.shared != nil {
		if err := c.shared.PutIfAbsent(ctx, key, matches); err != nil {
			c.logger.Warn("failed to publish municipality matches", map[string]interface{}{"error": err})
		}
	}
	return actual.([]models.Municipality), nil
}

func normalize(matches []models.Municipality) []models.Municipality {
	if matches == nil {
		return []models.Municipality{}
	}
	return copyMatches(matches)
}

func copyMatches(in []models.Municipality) []models.Municipality {
	out := make([]models.Municipality, len(in))
	copy(out, in)
	return out
}
