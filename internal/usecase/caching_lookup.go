package usecase

import (
	"context"
	"errors"
	"strings"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"
	"golang.org/x/text/unicode/norm"

	"github.com/clony/backend/internal/domain"
	"github.com/clony/backend/internal/metrics"
)

// DefaultLookupCacheTTL is used when no TTL is configured
const DefaultLookupCacheTTL = 720 * time.Hour // 30 days

// lookupCacheEntry is what gets cached per name; Found=false records a known miss
type lookupCacheEntry struct {
	Found  bool                    `json:"found"`
	Record *domain.CanonicalRecord `json:"record,omitempty"`
}

// CachingLookup decorates an IngredientLookup with a cache and collapses
// concurrent lookups of the same name into one remote call
type CachingLookup struct {
	next    domain.IngredientLookup
	cache   domain.CacheRepository
	ttl     time.Duration
	timeout time.Duration
	group   singleflight.Group
	logger  *zap.Logger
}

// NewCachingLookup wraps next. A nil cache keeps only the request collapsing.
func NewCachingLookup(next domain.IngredientLookup, cache domain.CacheRepository, ttl time.Duration, logger *zap.Logger) *CachingLookup {
	if ttl <= 0 {
		ttl = DefaultLookupCacheTTL
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &CachingLookup{
		next:    next,
		cache:   cache,
		ttl:     ttl,
		timeout: DefaultLookupTimeout,
		logger:  logger,
	}
}

// WithTimeout bounds the shared remote call. Non-positive values are ignored.
func (l *CachingLookup) WithTimeout(timeout time.Duration) *CachingLookup {
	if timeout > 0 {
		l.timeout = timeout
	}
	return l
}

// Lookup checks the cache, then the wrapped lookup. Found records and
// not-found answers are both cached; other errors are not.
func (l *CachingLookup) Lookup(ctx context.Context, name string) (*domain.CanonicalRecord, error) {
	key := lookupCacheKey(name)

	if entry, ok := l.fromCache(ctx, key); ok {
		metrics.LookupCacheResults.WithLabelValues("hit").Inc()
		if !entry.Found || entry.Record == nil {
			return nil, domain.ErrIngredientNotFound
		}
		return entry.Record, nil
	}
	metrics.LookupCacheResults.WithLabelValues("miss").Inc()

	// The shared call outlives any one caller's cancellation; each caller
	// still gives up on its own context.
	ch := l.group.DoChan(key, func() (interface{}, error) {
		callCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), l.timeout)
		defer cancel()

		record, err := l.next.Lookup(callCtx, name)
		switch {
		case err == nil && record != nil:
			l.store(callCtx, key, lookupCacheEntry{Found: true, Record: record})
			return record, nil
		case err == nil, errors.Is(err, domain.ErrIngredientNotFound):
			l.store(callCtx, key, lookupCacheEntry{Found: false})
			return nil, domain.ErrIngredientNotFound
		default:
			return nil, err
		}
	})

	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case res := <-ch:
		if res.Shared {
			l.logger.Debug("collapsed concurrent ingredient lookup", zap.String("key", key))
		}
		if res.Err != nil {
			return nil, res.Err
		}
		return res.Val.(*domain.CanonicalRecord), nil
	}
}

func (l *CachingLookup) fromCache(ctx context.Context, key string) (lookupCacheEntry, bool) {
	if l.cache == nil {
		return lookupCacheEntry{}, false
	}
	value, err := l.cache.Get(ctx, key)
	if err != nil {
		if !errors.Is(err, domain.ErrCacheMiss) {
			l.logger.Warn("ingredient cache read failed", zap.String("key", key), zap.Error(err))
		}
		return lookupCacheEntry{}, false
	}

	switch v := value.(type) {
	case lookupCacheEntry:
		return v, true
	case *lookupCacheEntry:
		return *v, true
	case map[string]interface{}:
		// Stored as JSON
		return mapToLookupEntry(v), true
	}
	return lookupCacheEntry{}, false
}

func (l *CachingLookup) store(ctx context.Context, key string, entry lookupCacheEntry) {
	if l.cache == nil {
		return
	}
	if err := l.cache.Set(ctx, key, entry, l.ttl); err != nil {
		l.logger.Warn("ingredient cache write failed", zap.String("key", key), zap.Error(err))
	}
}

// lookupCacheKey creates a normalized cache key.
// Format: "ingredient:{normalized_name}"
func lookupCacheKey(name string) string {
	normalized := strings.ToLower(norm.NFC.String(name))
	return "ingredient:" + strings.Join(strings.Fields(normalized), " ")
}

// mapToLookupEntry converts a map (from JSON cache) to a cache entry
func mapToLookupEntry(data map[string]interface{}) lookupCacheEntry {
	entry := lookupCacheEntry{}
	if v, ok := data["found"].(bool); ok {
		entry.Found = v
	}

	record, ok := data["record"].(map[string]interface{})
	if !ok {
		return entry
	}
	entry.Record = &domain.CanonicalRecord{}
	if v, ok := record["ingdName"].(string); ok {
		entry.Record.IngdName = v
	}
	if v, ok := record["ingdEngName"].(string); ok {
		entry.Record.IngdEngName = v
	}
	if v, ok := record["casNo"].(string); ok {
		entry.Record.CasNo = v
	}
	if v, ok := record["originMjrKoraNm"].(string); ok {
		entry.Record.OriginMjrKoraNm = v
	}
	if v, ok := record["originDefntKoraNm"].(string); ok {
		entry.Record.OriginDefntKoraNm = v
	}
	return entry
}
