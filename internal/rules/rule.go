// Package rules holds rule templates, their ground instances and the stores
// that collect them for term generation.
package rules

import (
	"fmt"
	"math"
)

// Rule is a rule template. Ground rules keep a pointer to it, so a weight
// change here is seen by every instance on the next weight update pass.
type Rule struct {
	name     string
	weight   float64
	weighted bool
	squared  bool
}

// NewWeightedRule creates a soft rule. squared selects a squared hinge loss.
func NewWeightedRule(name string, weight float64, squared bool) (*Rule, error) {
	if name == "" {
		return nil, fmt.Errorf("rule name required")
	}
	if err := checkWeight(weight); err != nil {
		return nil, fmt.Errorf("rule %s: %w", name, err)
	}
	return &Rule{name: name, weight: weight, weighted: true, squared: squared}, nil
}

// NewUnweightedRule creates a hard constraint.
func NewUnweightedRule(name string) (*Rule, error) {
	if name == "" {
		return nil, fmt.Errorf("rule name required")
	}
	return &Rule{name: name}, nil
}

// Name returns the rule's unique name.
func (r *Rule) Name() string { return r.name }

// Weighted reports whether the rule is soft. Hard rules become constraints.
func (r *Rule) Weighted() bool { return r.weighted }

// Squared reports whether the hinge of a soft rule is squared.
func (r *Rule) Squared() bool { return r.squared }

// Weight returns the current weight. It is 0 for hard rules.
func (r *Rule) Weight() float64 { return r.weight }

// SetWeight changes the weight of a soft rule.
func (r *Rule) SetWeight(weight float64) error {
	if !r.weighted {
		return fmt.Errorf("rule %s is unweighted", r.name)
	}
	if err := checkWeight(weight); err != nil {
		return fmt.Errorf("rule %s: %w", r.name, err)
	}
	r.weight = weight
	return nil
}

func (r *Rule) String() string {
	if !r.weighted {
		return r.name + " (hard)"
	}
	if r.squared {
		return fmt.Sprintf("%s (%g, squared)", r.name, r.weight)
	}
	return fmt.Sprintf("%s (%g)", r.name, r.weight)
}

func checkWeight(w float64) error {
	if w < 0 || math.IsNaN(w) || math.IsInf(w, 0) {
		return fmt.Errorf("invalid weight %v", w)
	}
	return nil
}
