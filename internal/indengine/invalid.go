package indengine

import (
	"sort"
	"sync"

	"github.com/saidmurad/cryptobot-sub000/internal/model"
)

// InvalidSet records instruments the exchange reported as unknown. Entries
// are never removed; the set lives as long as the Orchestrator that owns it.
type InvalidSet struct {
	mu sync.RWMutex
	m  map[model.Instrument]struct{}
}

// NewInvalidSet creates an empty set.
func NewInvalidSet() *InvalidSet {
	return &InvalidSet{m: make(map[model.Instrument]struct{})}
}

// Add marks inst invalid and reports whether it was newly added.
func (s *InvalidSet) Add(inst model.Instrument) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.m[inst]; ok {
		return false
	}
	s.m[inst] = struct{}{}
	return true
}

// Contains reports whether inst has been marked invalid.
func (s *InvalidSet) Contains(inst model.Instrument) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.m[inst]
	return ok
}

// Len returns the number of invalid instruments.
func (s *InvalidSet) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.m)
}

// List returns the invalid instruments, sorted.
func (s *InvalidSet) List() []model.Instrument {
	s.mu.RLock()
	out := make([]model.Instrument, 0, len(s.m))
	for inst := range s.m {
		out = append(out, inst)
	}
	s.mu.RUnlock()
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}
