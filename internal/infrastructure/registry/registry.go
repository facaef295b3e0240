// Package registry holds the canonical ingredient dictionary: immutable
// metadata loaded once from a YAML seed, plus a key set that can grow at
// runtime when the remote lookup resolves a previously unknown name.
package registry

import (
	"bytes"
	_ "embed"
	"fmt"
	"io"
	"os"
	"sort"
	"strings"
	"unicode/utf8"

	"golang.org/x/text/unicode/norm"
	"gopkg.in/yaml.v3"

	"github.com/clony/backend/internal/domain"
)

//go:embed ingredients.yaml
var defaultSeed []byte

// seedFile is the on-disk layout of a registry seed
type seedFile struct {
	Ingredients []domain.CanonicalIngredient `yaml:"ingredients"`
}

// Registry maps canonical names to ingredient metadata.
// Entries are never mutated after Load; only the key set grows.
type Registry struct {
	entries map[string]domain.CanonicalIngredient
	// bySpecificity holds entry names ordered longest first for substring lookups
	bySpecificity []string
	keys          domain.KeyStore
}

// Option customizes a Registry at load time
type Option func(*Registry)

// WithKeyStore replaces the default in-memory key store. The store is
// seeded with every entry name that it does not already contain.
func WithKeyStore(store domain.KeyStore) Option {
	return func(r *Registry) {
		r.keys = store
	}
}

// Default loads the embedded seed
func Default(opts ...Option) (*Registry, error) {
	return Load(bytes.NewReader(defaultSeed), opts...)
}

// LoadFile loads a seed from a YAML file on disk
func LoadFile(path string, opts ...Option) (*Registry, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open registry seed: %w", err)
	}
	defer f.Close()
	return Load(f, opts...)
}

// Load parses and validates a YAML seed
func Load(r io.Reader, opts ...Option) (*Registry, error) {
	var seed seedFile
	if err := yaml.NewDecoder(r).Decode(&seed); err != nil && err != io.EOF {
		return nil, fmt.Errorf("%w: %v", domain.ErrInvalidRegistry, err)
	}

	entries := make(map[string]domain.CanonicalIngredient, len(seed.Ingredients))
	names := make([]string, 0, len(seed.Ingredients))

	for i, ing := range seed.Ingredients {
		ing.Name = norm.NFC.String(strings.TrimSpace(ing.Name))
		if ing.Name == "" {
			return nil, fmt.Errorf("%w: entry %d has no name", domain.ErrInvalidRegistry, i)
		}
		if _, dup := entries[ing.Name]; dup {
			return nil, fmt.Errorf("%w: duplicate entry %q", domain.ErrInvalidRegistry, ing.Name)
		}

		category, ok := domain.ParseCategory(string(ing.Category))
		if !ok {
			return nil, fmt.Errorf("%w: %q has unknown category %q", domain.ErrInvalidRegistry, ing.Name, ing.Category)
		}
		ing.Category = category

		timeOfUse, ok := domain.ParseTimeOfUse(string(ing.TimeOfUse))
		if !ok {
			return nil, fmt.Errorf("%w: %q has unknown time of use %q", domain.ErrInvalidRegistry, ing.Name, ing.TimeOfUse)
		}
		ing.TimeOfUse = timeOfUse
		ing.NameKo = norm.NFC.String(ing.NameKo)

		entries[ing.Name] = ing
		names = append(names, ing.Name)
	}

	reg := &Registry{entries: entries}
	for _, opt := range opts {
		opt(reg)
	}
	if reg.keys == nil {
		reg.keys = NewMemoryKeyStore(names...)
	} else {
		for _, name := range names {
			reg.keys.InsertIfAbsent(name)
		}
	}

	reg.bySpecificity = append([]string(nil), names...)
	sort.SliceStable(reg.bySpecificity, func(i, j int) bool {
		li := utf8.RuneCountInString(reg.bySpecificity[i])
		lj := utf8.RuneCountInString(reg.bySpecificity[j])
		if li != lj {
			return li > lj
		}
		return reg.bySpecificity[i] < reg.bySpecificity[j]
	})

	return reg, nil
}

// Get returns the metadata stored under an exact canonical name
func (r *Registry) Get(name string) (domain.CanonicalIngredient, bool) {
	ing, ok := r.entries[name]
	return ing, ok
}

// Find looks up token exactly, then falls back to the most specific entry
// name contained in token. Among equally long candidates the lexically
// smallest wins, so the result does not depend on map iteration.
func (r *Registry) Find(token string) (domain.CanonicalIngredient, bool) {
	if token == "" {
		return domain.CanonicalIngredient{}, false
	}
	if ing, ok := r.entries[token]; ok {
		return ing, true
	}
	for _, name := range r.bySpecificity {
		if strings.Contains(token, name) {
			return r.entries[name], true
		}
	}
	return domain.CanonicalIngredient{}, false
}

// Keys returns the current key set: seed names first, then learned names
func (r *Registry) Keys() []string {
	return r.keys.Snapshot()
}

// Contains reports whether name is in the key set
func (r *Registry) Contains(name string) bool {
	return r.keys.Contains(name)
}

// Learn adds a remotely resolved name to the key set and reports whether it was new.
// Learned names carry no metadata.
func (r *Registry) Learn(name string) bool {
	return r.keys.InsertIfAbsent(norm.NFC.String(strings.TrimSpace(name)))
}

// Len returns the number of metadata entries
func (r *Registry) Len() int {
	return len(r.entries)
}

// KeyCount returns the size of the key set, including learned names
func (r *Registry) KeyCount() int {
	return r.keys.Len()
}
