package usecase

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/clony/backend/internal/domain"
	"github.com/clony/backend/internal/infrastructure/cache"
)

// MockCacheRepository is a mock implementation of domain.CacheRepository
type MockCacheRepository struct {
	GetFunc func(ctx context.Context, key string) (interface{}, error)
	SetFunc func(ctx context.Context, key string, value interface{}, ttl time.Duration) error
}

func (m *MockCacheRepository) Get(ctx context.Context, key string) (interface{}, error) {
	if m.GetFunc != nil {
		return m.GetFunc(ctx, key)
	}
	return nil, domain.ErrCacheMiss
}

func (m *MockCacheRepository) Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error {
	if m.SetFunc != nil {
		return m.SetFunc(ctx, key, value, ttl)
	}
	return nil
}

func (m *MockCacheRepository) Delete(ctx context.Context, key string) error {
	return nil
}

func (m *MockCacheRepository) Exists(ctx context.Context, key string) (bool, error) {
	return false, nil
}

func TestLookupCacheKey(t *testing.T) {
	tests := []struct {
		in, want string
	}{
		{"카보머", "ingredient:카보머"},
		{"  Sodium   Hyaluronate ", "ingredient:sodium hyaluronate"},
		{"판테놀", "ingredient:판테놀"},
	}
	for _, tt := range tests {
		if got := lookupCacheKey(tt.in); got != tt.want {
			t.Errorf("lookupCacheKey(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestCachingLookup(t *testing.T) {
	ctx := context.Background()
	carbomer := &domain.CanonicalRecord{IngdName: "카보머", IngdEngName: "Carbomer"}

	t.Run("caches found records", func(t *testing.T) {
		mem := cache.NewMemoryCache()
		defer mem.Close()
		next := &MockIngredientLookup{
			LookupFunc: func(ctx context.Context, name string) (*domain.CanonicalRecord, error) {
				return carbomer, nil
			},
		}
		l := NewCachingLookup(next, mem, time.Hour, nil)

		for i := 0; i < 3; i++ {
			got, err := l.Lookup(ctx, "카보머")
			if err != nil {
				t.Fatalf("Lookup() error = %v", err)
			}
			if got.IngdName != "카보머" || got.IngdEngName != "Carbomer" {
				t.Errorf("Lookup() = %+v, want %+v", got, carbomer)
			}
		}
		if next.Calls() != 1 {
			t.Errorf("remote called %d times, want 1", next.Calls())
		}
	})

	t.Run("caches not-found answers", func(t *testing.T) {
		mem := cache.NewMemoryCache()
		defer mem.Close()
		next := &MockIngredientLookup{}
		l := NewCachingLookup(next, mem, time.Hour, nil)

		for i := 0; i < 3; i++ {
			if _, err := l.Lookup(ctx, "noise"); !errors.Is(err, domain.ErrIngredientNotFound) {
				t.Fatalf("Lookup() error = %v, want ErrIngredientNotFound", err)
			}
		}
		if next.Calls() != 1 {
			t.Errorf("remote called %d times, want 1", next.Calls())
		}
	})

	t.Run("does not cache transient failures", func(t *testing.T) {
		mem := cache.NewMemoryCache()
		defer mem.Close()
		next := &MockIngredientLookup{
			LookupFunc: func(ctx context.Context, name string) (*domain.CanonicalRecord, error) {
				return nil, domain.ErrLookupFailure
			},
		}
		l := NewCachingLookup(next, mem, time.Hour, nil)

		for i := 0; i < 2; i++ {
			if _, err := l.Lookup(ctx, "카보머"); !errors.Is(err, domain.ErrLookupFailure) {
				t.Fatalf("Lookup() error = %v, want ErrLookupFailure", err)
			}
		}
		if next.Calls() != 2 {
			t.Errorf("remote called %d times, want 2", next.Calls())
		}
	})

	t.Run("cache errors fall through to the remote", func(t *testing.T) {
		broken := &MockCacheRepository{
			GetFunc: func(ctx context.Context, key string) (interface{}, error) {
				return nil, domain.ErrCacheUnavailable
			},
			SetFunc: func(ctx context.Context, key string, value interface{}, ttl time.Duration) error {
				return domain.ErrCacheUnavailable
			},
		}
		next := &MockIngredientLookup{
			LookupFunc: func(ctx context.Context, name string) (*domain.CanonicalRecord, error) {
				return carbomer, nil
			},
		}
		l := NewCachingLookup(next, broken, time.Hour, nil)

		got, err := l.Lookup(ctx, "카보머")
		if err != nil || got.IngdName != "카보머" {
			t.Errorf("Lookup() = %+v, %v; want 카보머", got, err)
		}
	})

	t.Run("uses the configured ttl", func(t *testing.T) {
		var gotTTL time.Duration
		mock := &MockCacheRepository{
			SetFunc: func(ctx context.Context, key string, value interface{}, ttl time.Duration) error {
				gotTTL = ttl
				return nil
			},
		}
		l := NewCachingLookup(&MockIngredientLookup{}, mock, 0, nil)
		_, _ = l.Lookup(ctx, "noise")
		if gotTTL != DefaultLookupCacheTTL {
			t.Errorf("ttl = %v, want %v", gotTTL, DefaultLookupCacheTTL)
		}
	})

	t.Run("collapses concurrent lookups", func(t *testing.T) {
		release := make(chan struct{})
		next := &MockIngredientLookup{
			LookupFunc: func(ctx context.Context, name string) (*domain.CanonicalRecord, error) {
				<-release
				return carbomer, nil
			},
		}
		l := NewCachingLookup(next, nil, time.Hour, nil)

		var wg sync.WaitGroup
		for i := 0; i < 8; i++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				if _, err := l.Lookup(ctx, "카보머"); err != nil {
					t.Errorf("Lookup() error = %v", err)
				}
			}()
		}
		time.Sleep(20 * time.Millisecond)
		close(release)
		wg.Wait()

		if next.Calls() >= 8 {
			t.Errorf("remote called %d times, want concurrent calls collapsed", next.Calls())
		}
	})

	t.Run("an expired caller does not cancel the shared lookup", func(t *testing.T) {
		next := &MockIngredientLookup{
			LookupFunc: func(ctx context.Context, name string) (*domain.CanonicalRecord, error) {
				select {
				case <-time.After(100 * time.Millisecond):
					return carbomer, nil
				case <-ctx.Done():
					return nil, ctx.Err()
				}
			},
		}
		l := NewCachingLookup(next, nil, time.Hour, nil)

		shortCtx, cancel := context.WithTimeout(ctx, 20*time.Millisecond)
		defer cancel()

		shortErr := make(chan error, 1)
		go func() {
			_, err := l.Lookup(shortCtx, "카보머")
			shortErr <- err
		}()
		time.Sleep(5 * time.Millisecond)

		got, err := l.Lookup(ctx, "카보머")
		if err != nil || got.IngdName != "카보머" {
			t.Errorf("Lookup() = %+v, %v; want 카보머", got, err)
		}
		if err := <-shortErr; !errors.Is(err, context.DeadlineExceeded) {
			t.Errorf("short caller error = %v, want deadline exceeded", err)
		}
		if next.Calls() != 1 {
			t.Errorf("remote called %d times, want 1", next.Calls())
		}
	})

	t.Run("shared lookup is bounded by its own timeout", func(t *testing.T) {
		next := &MockIngredientLookup{
			LookupFunc: func(ctx context.Context, name string) (*domain.CanonicalRecord, error) {
				<-ctx.Done()
				return nil, ctx.Err()
			},
		}
		l := NewCachingLookup(next, nil, time.Hour, nil).WithTimeout(20 * time.Millisecond)

		start := time.Now()
		if _, err := l.Lookup(ctx, "카보머"); !errors.Is(err, context.DeadlineExceeded) {
			t.Errorf("Lookup() error = %v, want deadline exceeded", err)
		}
		if elapsed := time.Since(start); elapsed > 2*time.Second {
			t.Errorf("lookup took %v, want it bounded by the timeout", elapsed)
		}
	})
}

func TestMapToLookupEntry(t *testing.T) {
	entry := mapToLookupEntry(map[string]interface{}{
		"found": true,
		"record": map[string]interface{}{
			"ingdName":          "카보머",
			"ingdEngName":       "Carbomer",
			"casNo":             "9003-01-4",
			"originMjrKoraNm":   "점증제",
			"originDefntKoraNm": "아크릴산 중합체",
		},
	})
	if !entry.Found || entry.Record == nil {
		t.Fatalf("mapToLookupEntry() = %+v, want found record", entry)
	}
	if entry.Record.CasNo != "9003-01-4" || entry.Record.OriginDefntKoraNm != "아크릴산 중합체" {
		t.Errorf("Record = %+v", entry.Record)
	}

	if miss := mapToLookupEntry(map[string]interface{}{"found": false}); miss.Found || miss.Record != nil {
		t.Errorf("mapToLookupEntry(miss) = %+v", miss)
	}
}
