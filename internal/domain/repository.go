package domain

import (
	"context"
	"time"
)

// CacheRepository defines the interface for caching operations
type CacheRepository interface {
	Get(ctx context.Context, key string) (interface{}, error)
	Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error
	Delete(ctx context.Context, key string) error
	Exists(ctx context.Context, key string) (bool, error)
}

// IngredientLookup resolves a free-text ingredient name against a remote
// structured data source. Implementations return ErrIngredientNotFound when
// the source has no record.
type IngredientLookup interface {
	Lookup(ctx context.Context, name string) (*CanonicalRecord, error)
}

// KeyStore is the growable set of canonical names used for matching.
// Names are only ever added; Snapshot returns them in insertion order.
type KeyStore interface {
	InsertIfAbsent(name string) bool
	Contains(name string) bool
	Snapshot() []string
	Len() int
}
