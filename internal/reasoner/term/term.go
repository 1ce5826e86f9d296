// Package term turns ground rules into optimization terms for a consensus
// solver and keeps term weights in step with rule weights.
package term

import (
	"errors"

	"psl/internal/rules"
	"psl/internal/types"
)

// ErrStaleTermReference is returned when a stored term's ground rule is no
// longer in the rule store.
var ErrStaleTermReference = errors.New("term references a ground rule that is no longer stored")

// Term is one optimization unit derived from a single ground rule.
type Term interface {
	// GroundRuleID identifies the originating ground rule.
	GroundRuleID() string
	// Variables returns the random-variable atoms the term constrains.
	Variables() []*types.Atom
	// Evaluate returns the current penalty at the atoms' values.
	Evaluate() float64
}

// WeightedTerm is a Term whose penalty is scaled by its rule's weight.
type WeightedTerm interface {
	Term
	Weight() float64
	SetWeight(w float64)
}

// TermGenerator populates a term store from ground rules.
//
// GenerateTerms adds terms only for ground rules the store has not seen and
// returns how many terms it added; a second call with no new rules returns 0.
// On error the store is left untouched.
//
// UpdateWeights rewrites weights of existing terms from their rules' current
// weights without adding or removing terms. A term whose ground rule has
// been removed fails the pass with ErrStaleTermReference.
type TermGenerator[T Term] interface {
	GenerateTerms(rs rules.GroundRuleStore, ts TermStore[T]) (int, error)
	UpdateWeights(rs rules.GroundRuleStore, ts TermStore[T]) error
}
