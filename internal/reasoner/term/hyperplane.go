package term

import (
	"math"

	"psl/internal/types"
)

// Hyperplane is the linear form Σ coeffs[i]*vars[i] - constant.
type Hyperplane struct {
	Variables    []*types.Atom
	Coefficients []float64
	Constant     float64
}

// Value evaluates the hyperplane at the atoms' current values.
func (h Hyperplane) Value() float64 {
	v := -h.Constant
	for i, atom := range h.Variables {
		v += h.Coefficients[i] * atom.Value()
	}
	return v
}

// HingeLossTerm penalizes weight * max(0, h)^p with p = 2 when squared.
type HingeLossTerm struct {
	ruleID  string
	plane   Hyperplane
	weight  float64
	squared bool
}

var _ WeightedTerm = (*HingeLossTerm)(nil)

// NewHingeLossTerm returns weight * max(0, plane)^p, p being 2 when squared.
func NewHingeLossTerm(ruleID string, plane Hyperplane, weight float64, squared bool) *HingeLossTerm {
	return &HingeLossTerm{ruleID: ruleID, plane: plane, weight: weight, squared: squared}
}

func (t *HingeLossTerm) GroundRuleID() string     { return t.ruleID }
func (t *HingeLossTerm) Variables() []*types.Atom { return copyAtoms(t.plane.Variables) }
func (t *HingeLossTerm) Weight() float64          { return t.weight }
func (t *HingeLossTerm) SetWeight(w float64)      { t.weight = w }
func (t *HingeLossTerm) Squared() bool            { return t.squared }
func (t *HingeLossTerm) Hyperplane() Hyperplane   { return t.plane }

func (t *HingeLossTerm) Evaluate() float64 {
	d := math.Max(0, t.plane.Value())
	if t.squared {
		d *= d
	}
	return t.weight * d
}

// LinearConstraintTerm is the hard constraint h <= 0. Evaluate reports the
// violation.
type LinearConstraintTerm struct {
	ruleID string
	plane  Hyperplane
}

var _ Term = (*LinearConstraintTerm)(nil)

// NewLinearConstraintTerm returns the hard constraint plane <= 0.
func NewLinearConstraintTerm(ruleID string, plane Hyperplane) *LinearConstraintTerm {
	return &LinearConstraintTerm{ruleID: ruleID, plane: plane}
}

func (t *LinearConstraintTerm) GroundRuleID() string     { return t.ruleID }
func (t *LinearConstraintTerm) Variables() []*types.Atom { return copyAtoms(t.plane.Variables) }
func (t *LinearConstraintTerm) Hyperplane() Hyperplane   { return t.plane }

func (t *LinearConstraintTerm) Evaluate() float64 {
	return math.Max(0, t.plane.Value())
}

func copyAtoms(in []*types.Atom) []*types.Atom {
	out := make([]*types.Atom, len(in))
	copy(out, in)
	return out
}
