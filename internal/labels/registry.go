package labels

import (
	"embed"
	"fmt"
	"io/fs"
	"log/slog"
	"path"
	"sort"
	"strings"
	"sync"
)

//go:embed locales/*.yaml
var localeFS embed.FS

// Registry holds label sets indexed by locale.
type Registry struct {
	sets map[string]*LabelSet
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{sets: make(map[string]*LabelSet)}
}

// Register adds a label set. Registering the same locale twice is an error.
func (r *Registry) Register(set *LabelSet) error {
	if _, exists := r.sets[set.Locale]; exists {
		return fmt.Errorf("label set already registered: %s", set.Locale)
	}
	r.sets[set.Locale] = set
	return nil
}

// Get returns the label set for locale.
func (r *Registry) Get(locale string) (*LabelSet, bool) {
	set, ok := r.sets[locale]
	return set, ok
}

// Lookup returns the label set for locale, falling back to DefaultLocale.
func (r *Registry) Lookup(locale string) *LabelSet {
	if set, ok := r.sets[locale]; ok {
		return set
	}
	return r.sets[DefaultLocale]
}

// List returns all label sets sorted by locale.
func (r *Registry) List() []*LabelSet {
	sets := make([]*LabelSet, 0, len(r.sets))
	for _, set := range r.sets {
		sets = append(sets, set)
	}
	sort.Slice(sets, func(i, j int) bool {
		return sets[i].Locale < sets[j].Locale
	})
	return sets
}

// Count returns the number of registered label sets.
func (r *Registry) Count() int {
	return len(r.sets)
}

// Discover loads every *.yaml file in dir of fsys. Files that fail to parse
// are logged and skipped.
func Discover(fsys fs.FS, dir string) (*Registry, error) {
	entries, err := fs.ReadDir(fsys, dir)
	if err != nil {
		return nil, err
	}

	registry := NewRegistry()
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".yaml") {
			continue
		}

		data, err := fs.ReadFile(fsys, path.Join(dir, entry.Name()))
		if err != nil {
			return nil, err
		}
		set, err := ParseLabelSet(data)
		if err != nil {
			slog.Warn("skipping label set", "file", entry.Name(), "error", err)
			continue
		}
		if err := registry.Register(set); err != nil {
			slog.Warn("duplicate label set, skipping", "file", entry.Name(), "error", err)
		}
	}
	return registry, nil
}

var (
	builtinOnce sync.Once
	builtin     *Registry
	builtinErr  error
)

// Builtin returns the registry of label sets compiled into the binary.
func Builtin() (*Registry, error) {
	builtinOnce.Do(func() {
		builtin, builtinErr = Discover(localeFS, "locales")
		if builtinErr == nil {
			if _, ok := builtin.Get(DefaultLocale); !ok {
				builtinErr = fmt.Errorf("builtin label set %q not found", DefaultLocale)
			}
		}
	})
	return builtin, builtinErr
}

// MustLookup returns the builtin label set for locale and panics if the
// embedded locale files are broken.
func MustLookup(locale string) *LabelSet {
	r, err := Builtin()
	if err != nil {
		panic(err)
	}
	return r.Lookup(locale)
}
