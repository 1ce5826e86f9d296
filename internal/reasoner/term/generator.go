package term

import (
	"fmt"

	"psl/internal/logging"
	"psl/internal/metrics"
	"psl/internal/rules"
	"psl/internal/types"
)

// Metric labels for generated term kinds.
const (
	KindHinge      = "hinge"
	KindConstraint = "constraint"
)

// HyperplaneTermGenerator converts disjunctive ground rules into hinge-loss
// terms (weighted rules) and linear constraints (hard rules) under the
// Lukasiewicz relaxation.
//
// For a clause with positive literals P and negated literals N the distance
// to satisfaction is max(0, 1 - Σ_P x - Σ_N (1-x)), which is the hyperplane
// Σ_N x - Σ_P x - (|N| - 1). Observed atoms are folded into the constant.
type HyperplaneTermGenerator struct {
	metrics *metrics.Recorder
}

var _ TermGenerator[Term] = (*HyperplaneTermGenerator)(nil)

// GeneratorOption configures a HyperplaneTermGenerator.
type GeneratorOption func(*HyperplaneTermGenerator)

// WithMetrics records generated terms and weight updates on r.
func WithMetrics(r *metrics.Recorder) GeneratorOption {
	return func(g *HyperplaneTermGenerator) { g.metrics = r }
}

// NewHyperplaneTermGenerator returns a generator configured by opts.
func NewHyperplaneTermGenerator(opts ...GeneratorOption) *HyperplaneTermGenerator {
	g := &HyperplaneTermGenerator{}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

type pendingTerms struct {
	ruleID string
	terms  []Term
}

// GenerateTerms builds terms for every ground rule not yet in ts. All terms
// are built before any is stored, so a failing rule leaves ts unchanged.
func (g *HyperplaneTermGenerator) GenerateTerms(rs rules.GroundRuleStore, ts TermStore[Term]) (int, error) {
	var batch []pendingTerms
	seen := make(map[string]struct{})
	for _, gr := range rs.GroundRules() {
		if ts.Contains(gr.ID()) {
			continue
		}
		if _, dup := seen[gr.ID()]; dup {
			return 0, fmt.Errorf("ground rule %s listed twice", gr.ID())
		}
		seen[gr.ID()] = struct{}{}
		terms, err := g.termsFor(gr)
		if err != nil {
			return 0, fmt.Errorf("ground rule %s: %w", gr.ID(), err)
		}
		batch = append(batch, pendingTerms{ruleID: gr.ID(), terms: terms})
	}

	added, hinge, constraint := 0, 0, 0
	for _, p := range batch {
		if err := ts.Add(p.ruleID, p.terms...); err != nil {
			return 0, err
		}
		for _, t := range p.terms {
			if _, ok := t.(WeightedTerm); ok {
				hinge++
			} else {
				constraint++
			}
		}
		added += len(p.terms)
	}

	g.metrics.TermsGenerated(KindHinge, hinge)
	g.metrics.TermsGenerated(KindConstraint, constraint)
	logging.Audit(logging.CategoryTerms).TermsGenerated(added, len(batch))
	logging.Terms("generated %d terms from %d new ground rules", added, len(batch))
	return added, nil
}

func (g *HyperplaneTermGenerator) termsFor(gr rules.GroundRule) ([]Term, error) {
	logical, ok := gr.(*rules.GroundLogicalRule)
	if !ok {
		return nil, fmt.Errorf("unsupported ground rule type %T", gr)
	}

	plane, err := clauseHyperplane(logical.Literals())
	if err != nil {
		return nil, err
	}
	if len(plane.Variables) == 0 {
		logging.TermsDebug("%s: no random variables, no term", logical)
		return nil, nil
	}

	rule := logical.Rule()
	if !rule.Weighted() {
		return []Term{NewLinearConstraintTerm(gr.ID(), plane)}, nil
	}
	return []Term{NewHingeLossTerm(gr.ID(), plane, rule.Weight(), rule.Squared())}, nil
}

func clauseHyperplane(literals []rules.Literal) (Hyperplane, error) {
	var plane Hyperplane
	index := make(map[string]int)
	negated := 0

	for _, lit := range literals {
		coeff := -1.0
		if lit.Negated {
			coeff = 1.0
			negated++
		}

		switch lit.Atom.Kind() {
		case types.Observed:
			plane.Constant -= coeff * lit.Atom.Value()
		case types.RandomVariable:
			if i, ok := index[lit.Atom.Key()]; ok {
				plane.Coefficients[i] += coeff
				continue
			}
			index[lit.Atom.Key()] = len(plane.Variables)
			plane.Variables = append(plane.Variables, lit.Atom)
			plane.Coefficients = append(plane.Coefficients, coeff)
		default:
			return Hyperplane{}, fmt.Errorf("%s: unexpected atom kind %s", lit.Atom.Key(), lit.Atom.Kind())
		}
	}
	plane.Constant += float64(negated - 1)

	// x | !x cancels out.
	n := 0
	for i, c := range plane.Coefficients {
		if c == 0 {
			continue
		}
		plane.Variables[n] = plane.Variables[i]
		plane.Coefficients[n] = c
		n++
	}
	plane.Variables = plane.Variables[:n]
	plane.Coefficients = plane.Coefficients[:n]
	return plane, nil
}

// UpdateWeights copies each ground rule's current weight onto its terms.
// Every term's ground rule is checked before any weight changes. Ground
// rules that produced no terms are not checked.
func (g *HyperplaneTermGenerator) UpdateWeights(rs rules.GroundRuleStore, ts TermStore[Term]) error {
	var ids []string
	for _, id := range ts.RuleIDs() {
		if len(ts.TermsFor(id)) > 0 {
			ids = append(ids, id)
		}
	}
	grounded := make([]rules.GroundRule, len(ids))
	for i, id := range ids {
		gr, ok := rs.Get(id)
		if !ok {
			g.metrics.StaleTermReference()
			logging.Audit(logging.CategoryTerms).StaleTerm(id)
			return fmt.Errorf("ground rule %s: %w", id, ErrStaleTermReference)
		}
		grounded[i] = gr
	}

	updated := 0
	for i, id := range ids {
		rule := grounded[i].Rule()
		if !rule.Weighted() {
			continue
		}
		for _, t := range ts.TermsFor(id) {
			wt, ok := t.(WeightedTerm)
			if !ok || wt.Weight() == rule.Weight() {
				continue
			}
			wt.SetWeight(rule.Weight())
			updated++
		}
	}

	g.metrics.WeightsUpdated(updated)
	logging.Audit(logging.CategoryTerms).WeightsUpdated(updated)
	logging.TermsDebug("weight update pass changed %d of %d terms", updated, ts.Size())
	return nil
}
