package rules

import (
	"fmt"
	"sync"

	"psl/internal/logging"
)

// GroundRuleStore is the read side consumed by term generators.
type GroundRuleStore interface {
	// Get looks up a ground rule by ID.
	Get(id string) (GroundRule, bool)
	// GroundRules returns every ground rule in insertion order.
	GroundRules() []GroundRule
	Size() int
}

// MemoryGroundRuleStore keeps ground rules in insertion order.
type MemoryGroundRuleStore struct {
	mu    sync.RWMutex
	order []string
	byID  map[string]GroundRule
}

var _ GroundRuleStore = (*MemoryGroundRuleStore)(nil)

// NewMemoryGroundRuleStore returns an empty store.
func NewMemoryGroundRuleStore() *MemoryGroundRuleStore {
	return &MemoryGroundRuleStore{byID: make(map[string]GroundRule)}
}

// Add appends ground rules. Adding an ID twice fails and adds nothing.
func (s *MemoryGroundRuleStore) Add(rules ...GroundRule) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	seen := make(map[string]bool, len(rules))
	for _, g := range rules {
		if _, ok := s.byID[g.ID()]; ok || seen[g.ID()] {
			return fmt.Errorf("ground rule %s already stored", g.ID())
		}
		seen[g.ID()] = true
	}
	for _, g := range rules {
		s.byID[g.ID()] = g
		s.order = append(s.order, g.ID())
	}
	logging.RulesDebug("added %d ground rules (%d total)", len(rules), len(s.order))
	return nil
}

// Remove retracts a ground rule and reports whether it was stored.
func (s *MemoryGroundRuleStore) Remove(id string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.byID[id]; !ok {
		return false
	}
	delete(s.byID, id)
	for i, o := range s.order {
		if o == id {
			s.order = append(s.order[:i], s.order[i+1:]...)
			break
		}
	}
	return true
}

func (s *MemoryGroundRuleStore) Get(id string) (GroundRule, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	g, ok := s.byID[id]
	return g, ok
}

func (s *MemoryGroundRuleStore) GroundRules() []GroundRule {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]GroundRule, len(s.order))
	for i, id := range s.order {
		out[i] = s.byID[id]
	}
	return out
}

func (s *MemoryGroundRuleStore) Size() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.order)
}

// Count returns the number of ground instances of rule.
func (s *MemoryGroundRuleStore) Count(rule *Rule) int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	n := 0
	for _, g := range s.byID {
		if g.Rule() == rule {
			n++
		}
	}
	return n
}

// Rules lists the distinct templates in order of their first ground instance.
func (s *MemoryGroundRuleStore) Rules() []*Rule {
	s.mu.RLock()
	defer s.mu.RUnlock()
	seen := make(map[*Rule]bool)
	var out []*Rule
	for _, id := range s.order {
		r := s.byID[id].Rule()
		if !seen[r] {
			seen[r] = true
			out = append(out, r)
		}
	}
	return out
}
