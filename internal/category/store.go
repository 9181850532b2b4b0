// Package category owns the app -> category/productivity-score mapping.
//
// Lookups never fail: an unknown app gets a synthesized default entry
// ({uncategorized, score 50}) that is not persisted. Mutation happens
// only through Update and BulkUpdate, both validated; BulkUpdate is
// all-or-nothing. The in-memory map is published by pointer swap so a
// classification cycle holding a snapshot sees either the pre-update or
// the fully-updated store, never a partial one.
package category

import (
	"fmt"
	"sync"

	"github.com/attune-sh/attune/internal/storage"
)

// Defaults synthesized for unknown apps.
const (
	DefaultCategory = "uncategorized"
	DefaultScore    = 50
)

// Category is one app's categorization.
type Category struct {
	AppName           string `json:"app_name"`
	Category          string `json:"category"`
	Subcategory       string `json:"subcategory,omitempty"`
	ProductivityScore int    `json:"productivity_score"`
}

// ValidationError reports a rejected category update. The store is
// guaranteed unmodified when one is returned.
type ValidationError struct {
	AppName string
	Reason  string
}

func (e *ValidationError) Error() string {
	if e.AppName == "" {
		return "invalid category update: " + e.Reason
	}
	return fmt.Sprintf("invalid category update for %q: %s", e.AppName, e.Reason)
}

// Lookup resolves an app name to its Category. Implementations never
// fail; unknown apps resolve to the synthesized default.
type Lookup func(appName string) Category

// Store holds the mapping, persisted in SQLite with an in-memory copy
// for lock-free-ish reads.
type Store struct {
	db *storage.Store

	mu      sync.RWMutex
	current map[string]Category // replaced wholesale, entries never mutated
}

// Open loads the store, seeding built-in defaults on first run.
func Open(db *storage.Store) (*Store, error) {
	recs, err := db.AllCategories()
	if err != nil {
		return nil, fmt.Errorf("failed to load categories: %w", err)
	}

	s := &Store{db: db, current: make(map[string]Category, len(recs))}
	for _, rec := range recs {
		s.current[rec.AppName] = fromRecord(rec)
	}

	if len(s.current) == 0 {
		if err := s.seedDefaults(); err != nil {
			return nil, err
		}
	}
	return s, nil
}

func (s *Store) seedDefaults() error {
	defaults := builtinCategories()
	recs := make([]storage.CategoryRecord, 0, len(defaults))
	next := make(map[string]Category, len(defaults))
	for _, c := range defaults {
		recs = append(recs, toRecord(c))
		next[c.AppName] = c
	}
	if err := s.db.BulkUpsertCategories(recs); err != nil {
		return fmt.Errorf("failed to seed default categories: %w", err)
	}
	s.current = next
	return nil
}

// Lookup resolves one app name. Never fails; misses synthesize the
// default entry without persisting it.
func (s *Store) Lookup(appName string) Category {
	s.mu.RLock()
	c, ok := s.current[appName]
	s.mu.RUnlock()
	if ok {
		return c
	}
	return Category{
		AppName:           appName,
		Category:          DefaultCategory,
		ProductivityScore: DefaultScore,
	}
}

// Snapshot returns a Lookup bound to the store's current contents. A
// cycle that captures a snapshot is immune to concurrent bulk updates.
func (s *Store) Snapshot() Lookup {
	s.mu.RLock()
	m := s.current
	s.mu.RUnlock()

	return func(appName string) Category {
		if c, ok := m[appName]; ok {
			return c
		}
		return Category{
			AppName:           appName,
			Category:          DefaultCategory,
			ProductivityScore: DefaultScore,
		}
	}
}

// All returns every persisted entry, for the API and CLI listings.
func (s *Store) All() []Category {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]Category, 0, len(s.current))
	for _, c := range s.current {
		out = append(out, c)
	}
	return out
}

// Update validates and applies one entry; last writer wins.
func (s *Store) Update(c Category) error {
	if err := validate(c); err != nil {
		return err
	}

	if err := s.db.UpsertCategory(toRecord(c)); err != nil {
		return err
	}

	s.mu.Lock()
	next := cloneWith(s.current, []Category{c})
	s.current = next
	s.mu.Unlock()
	return nil
}

// BulkUpdate validates every entry before applying any. On a
// validation failure the store's observable state is unchanged.
func (s *Store) BulkUpdate(list []Category) error {
	for _, c := range list {
		if err := validate(c); err != nil {
			return err
		}
	}

	recs := make([]storage.CategoryRecord, len(list))
	for i, c := range list {
		recs[i] = toRecord(c)
	}
	if err := s.db.BulkUpsertCategories(recs); err != nil {
		return err
	}

	s.mu.Lock()
	s.current = cloneWith(s.current, list)
	s.mu.Unlock()
	return nil
}

func validate(c Category) error {
	if c.AppName == "" {
		return &ValidationError{Reason: "empty app name"}
	}
	if c.Category == "" {
		return &ValidationError{AppName: c.AppName, Reason: "empty category"}
	}
	if c.ProductivityScore < 0 || c.ProductivityScore > 100 {
		return &ValidationError{
			AppName: c.AppName,
			Reason:  fmt.Sprintf("productivity score %d outside [0,100]", c.ProductivityScore),
		}
	}
	return nil
}

func cloneWith(m map[string]Category, updates []Category) map[string]Category {
	next := make(map[string]Category, len(m)+len(updates))
	for k, v := range m {
		next[k] = v
	}
	for _, c := range updates {
		next[c.AppName] = c
	}
	return next
}

func fromRecord(rec storage.CategoryRecord) Category {
	return Category{
		AppName:           rec.AppName,
		Category:          rec.Category,
		Subcategory:       rec.Subcategory,
		ProductivityScore: rec.ProductivityScore,
	}
}

func toRecord(c Category) storage.CategoryRecord {
	return storage.CategoryRecord{
		AppName:           c.AppName,
		Category:          c.Category,
		Subcategory:       c.Subcategory,
		ProductivityScore: c.ProductivityScore,
	}
}
