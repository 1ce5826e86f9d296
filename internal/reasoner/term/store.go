package term

import "fmt"

// TermStore is an append-only, ordered collection of terms indexed by
// ground rule ID.
type TermStore[T Term] interface {
	// Add records terms for a ground rule. A rule may produce zero terms; it
	// is still marked as generated.
	Add(ruleID string, terms ...T) error
	// Contains reports whether terms were generated for ruleID.
	Contains(ruleID string) bool
	TermsFor(ruleID string) []T
	Terms() []T
	// RuleIDs lists generated ground rules in generation order.
	RuleIDs() []string
	Size() int
}

// MemoryTermStore is a TermStore held in memory. It is not synchronized;
// generation and weight updates must not overlap on one store.
type MemoryTermStore[T Term] struct {
	terms []T
	index map[string][]int
	order []string
}

var _ TermStore[Term] = (*MemoryTermStore[Term])(nil)

// NewMemoryTermStore returns an empty store.
func NewMemoryTermStore[T Term]() *MemoryTermStore[T] {
	return &MemoryTermStore[T]{index: make(map[string][]int)}
}

func (s *MemoryTermStore[T]) Add(ruleID string, terms ...T) error {
	if _, ok := s.index[ruleID]; ok {
		return fmt.Errorf("terms for ground rule %s already stored", ruleID)
	}
	idx := make([]int, len(terms))
	for i, t := range terms {
		if t.GroundRuleID() != ruleID {
			return fmt.Errorf("term for ground rule %s added under %s", t.GroundRuleID(), ruleID)
		}
		idx[i] = len(s.terms) + i
	}
	s.terms = append(s.terms, terms...)
	s.index[ruleID] = idx
	s.order = append(s.order, ruleID)
	return nil
}

func (s *MemoryTermStore[T]) Contains(ruleID string) bool {
	_, ok := s.index[ruleID]
	return ok
}

func (s *MemoryTermStore[T]) TermsFor(ruleID string) []T {
	idx := s.index[ruleID]
	out := make([]T, len(idx))
	for i, j := range idx {
		out[i] = s.terms[j]
	}
	return out
}

func (s *MemoryTermStore[T]) Terms() []T {
	out := make([]T, len(s.terms))
	copy(out, s.terms)
	return out
}

func (s *MemoryTermStore[T]) RuleIDs() []string {
	out := make([]string, len(s.order))
	copy(out, s.order)
	return out
}

func (s *MemoryTermStore[T]) Size() int { return len(s.terms) }

// TotalLoss sums Evaluate over every stored term.
func TotalLoss[T Term](ts TermStore[T]) float64 {
	total := 0.0
	for _, t := range ts.Terms() {
		total += t.Evaluate()
	}
	return total
}
