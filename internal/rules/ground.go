package rules

import (
	"fmt"
	"strings"

	"github.com/google/uuid"

	"psl/internal/types"
)

// GroundRule is one instantiation of a rule template over concrete atoms.
type GroundRule interface {
	// ID is stable for the lifetime of the ground rule.
	ID() string
	Rule() *Rule
	Atoms() []*types.Atom
}

// Literal is an atom in a disjunctive clause, optionally negated.
type Literal struct {
	Atom    *types.Atom
	Negated bool
}

func (l Literal) String() string {
	if l.Negated {
		return "!" + l.Atom.Key()
	}
	return l.Atom.Key()
}

// GroundLogicalRule is a disjunction of literals: satisfied when at least one
// positive literal is true or one negated literal is false.
type GroundLogicalRule struct {
	id       string
	rule     *Rule
	literals []Literal
}

var _ GroundRule = (*GroundLogicalRule)(nil)

// NewGroundLogicalRule builds the clause OR(literals) for rule with a fresh ID.
func NewGroundLogicalRule(rule *Rule, literals ...Literal) (*GroundLogicalRule, error) {
	if rule == nil {
		return nil, fmt.Errorf("ground rule requires a rule template")
	}
	if len(literals) == 0 {
		return nil, fmt.Errorf("ground rule of %s has no literals", rule.Name())
	}
	for i, l := range literals {
		if l.Atom == nil {
			return nil, fmt.Errorf("ground rule of %s: literal %d has no atom", rule.Name(), i)
		}
	}
	lits := make([]Literal, len(literals))
	copy(lits, literals)
	return &GroundLogicalRule{id: uuid.NewString(), rule: rule, literals: lits}, nil
}

func (g *GroundLogicalRule) ID() string      { return g.id }
func (g *GroundLogicalRule) Rule() *Rule     { return g.rule }
func (g *GroundLogicalRule) Weight() float64 { return g.rule.Weight() }

// Literals returns a copy of the clause.
func (g *GroundLogicalRule) Literals() []Literal {
	out := make([]Literal, len(g.literals))
	copy(out, g.literals)
	return out
}

// Atoms returns the atoms of every literal in clause order.
func (g *GroundLogicalRule) Atoms() []*types.Atom {
	out := make([]*types.Atom, len(g.literals))
	for i, l := range g.literals {
		out[i] = l.Atom
	}
	return out
}

func (g *GroundLogicalRule) String() string {
	parts := make([]string, len(g.literals))
	for i, l := range g.literals {
		parts[i] = l.String()
	}
	return fmt.Sprintf("%s: %s", g.rule.Name(), strings.Join(parts, " | "))
}
