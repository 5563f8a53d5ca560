package selectors

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
)

// Overrides holds per-domain selector lists, keyed domain → field →
// ordered patterns. Site-specific entries take priority over the generic
// defaults when a profile is resolved.
type Overrides map[string]map[Field][]string

// Store resolves selector profiles per domain and persists overrides to a
// JSON file. Loading and saving are explicit operations; nothing rewrites
// the file as a side effect of a crawl.
type Store struct {
	mu        sync.RWMutex
	path      string
	overrides Overrides
}

// NewStore returns a store with no overrides. path may be empty when
// persistence is not needed.
func NewStore(path string) *Store {
	return &Store{
		path:      path,
		overrides: make(Overrides),
	}
}

// Load reads the override table from path. A missing file yields an empty
// store, not an error.
func Load(path string) (*Store, error) {
	store := NewStore(path)

	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return store, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read selector overrides: %w", err)
	}

	if err := json.Unmarshal(data, &store.overrides); err != nil {
		return nil, fmt.Errorf("parse selector overrides: %w", err)
	}
	return store, nil
}

// Save writes the override table back to the store's path.
func (s *Store) Save() error {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.path == "" {
		return fmt.Errorf("selector store has no path configured")
	}
	if dir := filepath.Dir(s.path); dir != "" && dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create overrides directory: %w", err)
		}
	}

	data, err := json.MarshalIndent(s.overrides, "", "  ")
	if err != nil {
		return fmt.Errorf("encode selector overrides: %w", err)
	}
	if err := os.WriteFile(s.path, data, 0o644); err != nil {
		return fmt.Errorf("write selector overrides: %w", err)
	}
	return nil
}

// Set replaces the override list for one field of one domain.
func (s *Store) Set(domain string, field Field, patterns []string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.overrides[domain] == nil {
		s.overrides[domain] = make(map[Field][]string)
	}
	s.overrides[domain][field] = append([]string(nil), patterns...)
}

// ProfileFor resolves the selector profile for a domain and platform.
// Priority order per field: domain overrides, then platform-specific
// container patterns (containers only), then the generic defaults.
func (s *Store) ProfileFor(domain string, platform Platform) Profile {
	s.mu.RLock()
	defer s.mu.RUnlock()

	profile := Defaults().clone()

	if platform != PlatformGeneric {
		patterns := PatternsFor(platform)
		profile[FieldContainers] = append(
			append([]string(nil), patterns.ProductSelectors...),
			profile[FieldContainers]...,
		)
	}

	if site, ok := s.overrides[domain]; ok {
		for field, patterns := range site {
			if len(patterns) == 0 {
				continue
			}
			profile[field] = append(append([]string(nil), patterns...), profile[field]...)
		}
	}

	return profile
}
