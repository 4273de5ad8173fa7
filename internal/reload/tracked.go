// Package reload decides when a file change must force a full page reload
// in connected dev clients.
package reload

import (
	"path/filepath"
	"sort"
	"sync"
)

// TrackedSet is the set of worker entry files served by the dev middleware,
// together with their bundle inputs. Entries are never removed for the
// lifetime of the dev session.
type TrackedSet struct {
	mu    sync.RWMutex
	paths map[string]struct{}
}

// NewTrackedSet returns an empty set.
func NewTrackedSet() *TrackedSet {
	return &TrackedSet{paths: make(map[string]struct{})}
}

// Add records paths. Empty strings are ignored.
func (s *TrackedSet) Add(paths ...string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, p := range paths {
		if p == "" {
			continue
		}
		s.paths[filepath.Clean(p)] = struct{}{}
	}
}

// Has reports whether path has been recorded.
func (s *TrackedSet) Has(path string) bool {
	if path == "" {
		return false
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	_, ok := s.paths[filepath.Clean(path)]
	return ok
}

// Len returns the number of tracked paths.
func (s *TrackedSet) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.paths)
}

// Paths returns a sorted snapshot of the set.
func (s *TrackedSet) Paths() []string {
	s.mu.RLock()
	out := make([]string, 0, len(s.paths))
	for p := range s.paths {
		out = append(out, p)
	}
	s.mu.RUnlock()

	sort.Strings(out)
	return out
}
