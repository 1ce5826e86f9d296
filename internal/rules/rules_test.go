package rules

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/google/mangle/ast"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"psl/internal/atoms"
	"psl/internal/store"
	"psl/internal/types"
)

var (
	friends = ast.PredicateSym{Symbol: "friends", Arity: 2}
	knows   = ast.PredicateSym{Symbol: "knows", Arity: 2}
)

func newManager(t *testing.T) *atoms.PersistedAtomManager {
	t.Helper()
	ds := store.NewDataStore()
	require.NoError(t, ds.RegisterPredicate(friends))
	require.NoError(t, ds.RegisterPredicate(knows))
	require.NoError(t, ds.LoadFactsString("obs", `knows(/a, /b).`))
	for _, text := range []string{"friends(/a, /b)", "friends(/b, /a)", "friends(/a, /a)"} {
		a, err := types.ParseAtom(text)
		require.NoError(t, err)
		require.NoError(t, ds.Insert("targets", a, 0))
	}
	db, err := ds.GetDatabase("targets", []ast.PredicateSym{knows}, "obs")
	require.NoError(t, err)

	m, err := atoms.NewPersistedAtomManager(context.Background(), db)
	require.NoError(t, err)
	return m
}

func rv(t *testing.T, m atoms.AtomManager, x, y string) *types.Atom {
	t.Helper()
	cx, err := ast.Name(x)
	require.NoError(t, err)
	cy, err := ast.Name(y)
	require.NoError(t, err)
	a, err := m.GetAtom(friends, cx, cy)
	require.NoError(t, err)
	return a
}

func TestRuleWeights(t *testing.T) {
	r, err := NewWeightedRule("symmetry", 2, true)
	require.NoError(t, err)
	assert.True(t, r.Weighted())
	assert.True(t, r.Squared())
	assert.Equal(t, 2.0, r.Weight())

	require.NoError(t, r.SetWeight(0.5))
	assert.Equal(t, 0.5, r.Weight())
	assert.Error(t, r.SetWeight(-1))
	assert.Equal(t, 0.5, r.Weight())

	_, err = NewWeightedRule("bad", -0.1, false)
	assert.Error(t, err)
	_, err = NewWeightedRule("", 1, false)
	assert.Error(t, err)

	hard, err := NewUnweightedRule("hard")
	require.NoError(t, err)
	assert.False(t, hard.Weighted())
	assert.Error(t, hard.SetWeight(1))
}

func TestGroundLogicalRule(t *testing.T) {
	m := newManager(t)
	r, err := NewWeightedRule("symmetry", 1, false)
	require.NoError(t, err)

	ab, ba := rv(t, m, "/a", "/b"), rv(t, m, "/b", "/a")
	g, err := NewGroundLogicalRule(r, Literal{Atom: ab, Negated: true}, Literal{Atom: ba})
	require.NoError(t, err)

	assert.NotEmpty(t, g.ID())
	assert.Same(t, r, g.Rule())
	assert.Equal(t, []*types.Atom{ab, ba}, g.Atoms())
	assert.True(t, g.Literals()[0].Negated)

	require.NoError(t, r.SetWeight(3))
	assert.Equal(t, 3.0, g.Weight())

	other, err := NewGroundLogicalRule(r, Literal{Atom: ab})
	require.NoError(t, err)
	assert.NotEqual(t, g.ID(), other.ID())

	_, err = NewGroundLogicalRule(r)
	assert.Error(t, err)
	_, err = NewGroundLogicalRule(nil, Literal{Atom: ab})
	assert.Error(t, err)
	_, err = NewGroundLogicalRule(r, Literal{})
	assert.Error(t, err)
}

func TestMemoryGroundRuleStore(t *testing.T) {
	m := newManager(t)
	r1, _ := NewWeightedRule("r1", 1, false)
	r2, _ := NewUnweightedRule("r2")

	g1, err := NewGroundLogicalRule(r1, Literal{Atom: rv(t, m, "/a", "/b")})
	require.NoError(t, err)
	g2, err := NewGroundLogicalRule(r2, Literal{Atom: rv(t, m, "/b", "/a")})
	require.NoError(t, err)
	g3, err := NewGroundLogicalRule(r1, Literal{Atom: rv(t, m, "/a", "/a")})
	require.NoError(t, err)

	s := NewMemoryGroundRuleStore()
	require.NoError(t, s.Add(g1, g2, g3))
	assert.Equal(t, 3, s.Size())
	assert.Equal(t, []GroundRule{g1, g2, g3}, s.GroundRules())
	assert.Equal(t, []*Rule{r1, r2}, s.Rules())
	assert.Equal(t, 2, s.Count(r1))

	assert.Error(t, s.Add(g1), "duplicate IDs are rejected")
	assert.Equal(t, 3, s.Size())

	got, ok := s.Get(g2.ID())
	require.True(t, ok)
	assert.Same(t, g2, got)

	assert.True(t, s.Remove(g2.ID()))
	assert.False(t, s.Remove(g2.ID()))
	_, ok = s.Get(g2.ID())
	assert.False(t, ok)
	assert.Equal(t, []GroundRule{g1, g3}, s.GroundRules())
}

func TestParseLiteral(t *testing.T) {
	body, neg, err := ParseLiteral(" !friends(/a, /b) ")
	require.NoError(t, err)
	assert.True(t, neg)
	assert.Equal(t, "friends(/a, /b)", body)

	_, neg, err = ParseLiteral("~friends(/a, /b)")
	require.NoError(t, err)
	assert.True(t, neg)

	_, neg, err = ParseLiteral("friends(/a, /b)")
	require.NoError(t, err)
	assert.False(t, neg)

	_, _, err = ParseLiteral("!")
	assert.Error(t, err)
}

const model = `
rules:
  - name: symmetry
    weight: 2.0
    squared: true
    groundings:
      - ["!friends(/a, /b)", "friends(/b, /a)"]
      - ["!friends(/b, /a)", "friends(/a, /b)"]
  - name: knows_implies_friends
    weight: 1.0
    groundings:
      - ["!knows(/a, /b)", "friends(/a, /b)"]
  - name: no_self_friendship
    hard: true
    groundings:
      - ["~friends(/a, /a)"]
`

func TestLoadModel(t *testing.T) {
	path := filepath.Join(t.TempDir(), "model.yaml")
	require.NoError(t, os.WriteFile(path, []byte(model), 0644))

	m := newManager(t)
	mod, err := LoadModel(path, m)
	require.NoError(t, err)

	require.Len(t, mod.Rules(), 3)
	assert.Equal(t, 4, mod.GroundRules().Size())

	sym, ok := mod.Rule("symmetry")
	require.True(t, ok)
	assert.True(t, sym.Squared())
	assert.Equal(t, 2, mod.GroundRules().Count(sym))

	hard, ok := mod.Rule("no_self_friendship")
	require.True(t, ok)
	assert.False(t, hard.Weighted())

	// Literals resolve to the snapshot instances.
	first := mod.GroundRules().GroundRules()[0].(*GroundLogicalRule)
	assert.Same(t, rv(t, m, "/a", "/b"), first.Literals()[0].Atom)

	require.NoError(t, mod.Reweight("symmetry", 0.25))
	assert.Equal(t, 0.25, first.Weight())
	assert.Error(t, mod.Reweight("missing", 1))
	assert.Error(t, mod.Reweight("no_self_friendship", 1))
}

func TestLoadModelRejectsUnsnapshottedAtoms(t *testing.T) {
	m := newManager(t)
	_, err := ParseModel([]byte(`
rules:
  - name: r
    weight: 1
    groundings:
      - ["friends(/c, /d)"]
`), m)
	assert.True(t, errors.Is(err, atoms.ErrInvalidAtomAccess))
}

func TestLoadModelErrors(t *testing.T) {
	m := newManager(t)

	_, err := LoadModel(filepath.Join(t.TempDir(), "missing.yaml"), m)
	assert.Error(t, err)

	_, err = ParseModel([]byte("rules: [\n"), m)
	assert.Error(t, err)

	_, err = ParseModel([]byte(`
rules:
  - {name: r, weight: 1}
  - {name: r, weight: 2}
`), m)
	assert.Error(t, err)

	_, err = ParseModel([]byte(`
rules:
  - name: r
    weight: 1
    groundings:
      - ["likes(/a)"]
`), m)
	assert.True(t, errors.Is(err, store.ErrUnknownPredicate))

	_, err = ParseModel([]byte(`
rules:
  - name: r
    weight: 1
    groundings:
      - []
`), m)
	assert.Error(t, err)
}
