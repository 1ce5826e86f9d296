package rules

import (
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"

	"psl/internal/atoms"
	"psl/internal/logging"
	"psl/internal/types"
)

// ModelFile is the on-disk model: rule templates with explicit ground
// instances. A literal is a ground Mangle atom, negated with a leading "!" or
// "~":
//
//	rules:
//	  - name: symmetry
//	    weight: 2.0
//	    squared: true
//	    groundings:
//	      - ["!friends(/a, /b)", "friends(/b, /a)"]
//	  - name: no_self_friendship
//	    hard: true
//	    groundings:
//	      - ["!friends(/a, /a)"]
type ModelFile struct {
	Rules []RuleSpec `yaml:"rules"`
}

// RuleSpec describes one template and its ground instances.
type RuleSpec struct {
	Name       string     `yaml:"name"`
	Weight     float64    `yaml:"weight"`
	Squared    bool       `yaml:"squared"`
	Hard       bool       `yaml:"hard"`
	Groundings [][]string `yaml:"groundings"`
}

// Model is a loaded set of templates plus their ground rules.
type Model struct {
	rules  []*Rule
	byName map[string]*Rule
	ground *MemoryGroundRuleStore
}

// LoadModel reads a model file and resolves every literal through mgr. With a
// PersistedAtomManager, a literal over a random variable outside the snapshot
// fails the load with atoms.ErrInvalidAtomAccess.
func LoadModel(path string, mgr atoms.AtomManager) (*Model, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read model file: %w", err)
	}
	m, err := ParseModel(data, mgr)
	if err != nil {
		return nil, fmt.Errorf("model %s: %w", path, err)
	}
	return m, nil
}

// ParseModel decodes YAML model data and builds the model.
func ParseModel(data []byte, mgr atoms.AtomManager) (*Model, error) {
	var mf ModelFile
	if err := yaml.Unmarshal(data, &mf); err != nil {
		return nil, fmt.Errorf("failed to parse model: %w", err)
	}
	return BuildModel(mf, mgr)
}

// BuildModel creates the templates of mf and grounds their instances.
func BuildModel(mf ModelFile, mgr atoms.AtomManager) (*Model, error) {
	m := &Model{
		byName: make(map[string]*Rule),
		ground: NewMemoryGroundRuleStore(),
	}

	for _, spec := range mf.Rules {
		if _, dup := m.byName[spec.Name]; dup {
			return nil, fmt.Errorf("duplicate rule %q", spec.Name)
		}
		rule, err := spec.template()
		if err != nil {
			return nil, err
		}
		m.rules = append(m.rules, rule)
		m.byName[rule.Name()] = rule

		for i, clause := range spec.Groundings {
			literals := make([]Literal, 0, len(clause))
			for _, text := range clause {
				lit, err := resolveLiteral(text, mgr)
				if err != nil {
					return nil, fmt.Errorf("rule %s grounding %d: %w", rule.Name(), i, err)
				}
				literals = append(literals, lit)
			}
			g, err := NewGroundLogicalRule(rule, literals...)
			if err != nil {
				return nil, err
			}
			if err := m.ground.Add(g); err != nil {
				return nil, err
			}
		}
	}

	logging.Rules("loaded %d rules with %d ground instances", len(m.rules), m.ground.Size())
	return m, nil
}

func (spec RuleSpec) template() (*Rule, error) {
	if spec.Hard {
		return NewUnweightedRule(spec.Name)
	}
	return NewWeightedRule(spec.Name, spec.Weight, spec.Squared)
}

// ParseLiteral splits an optional negation prefix off text and parses the
// remaining ground atom.
func ParseLiteral(text string) (body string, negated bool, err error) {
	body = strings.TrimSpace(text)
	if strings.HasPrefix(body, "!") || strings.HasPrefix(body, "~") {
		negated = true
		body = strings.TrimSpace(body[1:])
	}
	if body == "" {
		return "", false, fmt.Errorf("empty literal %q", text)
	}
	return body, negated, nil
}

func resolveLiteral(text string, mgr atoms.AtomManager) (Literal, error) {
	body, negated, err := ParseLiteral(text)
	if err != nil {
		return Literal{}, err
	}
	parsed, args, err := types.ParseGroundAtom(body)
	if err != nil {
		return Literal{}, err
	}
	atom, err := mgr.GetAtom(parsed.Predicate, args...)
	if err != nil {
		return Literal{}, err
	}
	return Literal{Atom: atom, Negated: negated}, nil
}

// Rules returns the templates in file order.
func (m *Model) Rules() []*Rule {
	out := make([]*Rule, len(m.rules))
	copy(out, m.rules)
	return out
}

// Rule looks up a template by name.
func (m *Model) Rule(name string) (*Rule, bool) {
	r, ok := m.byName[name]
	return r, ok
}

// GroundRules returns the store holding every ground instance.
func (m *Model) GroundRules() *MemoryGroundRuleStore {
	return m.ground
}

// Reweight sets the weight of the named template.
func (m *Model) Reweight(name string, weight float64) error {
	r, ok := m.byName[name]
	if !ok {
		return fmt.Errorf("unknown rule %q", name)
	}
	return r.SetWeight(weight)
}
