package atoms

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/google/mangle/ast"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"psl/internal/metrics"
	"psl/internal/store"
	"psl/internal/types"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

var (
	friends = ast.PredicateSym{Symbol: "friends", Arity: 2}
	knows   = ast.PredicateSym{Symbol: "knows", Arity: 2}
)

func name(t *testing.T, s string) ast.Constant {
	t.Helper()
	c, err := ast.Name(s)
	require.NoError(t, err)
	return c
}

func atom(t *testing.T, text string) ast.Atom {
	t.Helper()
	a, err := types.ParseAtom(text)
	require.NoError(t, err)
	return a
}

// friendsKnows sets up friends/2 (open) with targets friends(/a,/b) and
// friends(/b,/c), and knows/2 (closed) with the observation knows(/a,/b).
func friendsKnows(t *testing.T) (*store.DataStore, *store.PartitionDatabase) {
	t.Helper()
	ds := store.NewDataStore()
	require.NoError(t, ds.RegisterPredicate(friends))
	require.NoError(t, ds.RegisterPredicate(knows))
	require.NoError(t, ds.Insert("targets", atom(t, "friends(/a, /b)"), 0))
	require.NoError(t, ds.Insert("targets", atom(t, "friends(/b, /c)"), 0.4))
	require.NoError(t, ds.Insert("obs", atom(t, "knows(/a, /b)"), 1))

	db, err := ds.GetDatabase("targets", []ast.PredicateSym{knows}, "obs")
	require.NoError(t, err)
	return ds, db
}

func persistedKeys(m *PersistedAtomManager) []string {
	var keys []string
	for _, a := range m.PersistedAtoms() {
		keys = append(keys, a.Key())
	}
	return keys
}

func TestFriendsKnowsScenario(t *testing.T) {
	_, db := friendsKnows(t)
	a, b, c, d := name(t, "/a"), name(t, "/b"), name(t, "/c"), name(t, "/d")

	m, err := NewPersistedAtomManager(context.Background(), db)
	require.NoError(t, err)

	want := []string{
		atom(t, "friends(/a, /b)").String(),
		atom(t, "friends(/b, /c)").String(),
	}
	if diff := cmp.Diff(want, persistedKeys(m)); diff != "" {
		t.Fatalf("snapshot mismatch (-want +got):\n%s", diff)
	}

	obs, err := m.GetAtom(knows, a, b)
	require.NoError(t, err)
	assert.Equal(t, types.Observed, obs.Kind())
	assert.Equal(t, 1.0, obs.Value())

	rv, err := m.GetAtom(friends, a, b)
	require.NoError(t, err)
	assert.Equal(t, types.RandomVariable, rv.Kind())
	assert.True(t, m.IsPersisted(rv))

	_, err = m.GetAtom(friends, c, d)
	assert.True(t, errors.Is(err, ErrInvalidAtomAccess))
}

func TestSnapshotSharesInstancesWithDatabase(t *testing.T) {
	_, db := friendsKnows(t)
	m, err := NewPersistedAtomManager(context.Background(), db)
	require.NoError(t, err)

	fromManager, err := m.GetAtom(friends, name(t, "/b"), name(t, "/c"))
	require.NoError(t, err)
	fromDB, err := db.GetAtom(friends, name(t, "/b"), name(t, "/c"))
	require.NoError(t, err)
	assert.Same(t, fromDB, fromManager)

	require.NoError(t, fromManager.SetValue(0.8))
	assert.Equal(t, 0.8, fromDB.Value())
}

func TestSnapshotExcludesClosedPredicates(t *testing.T) {
	ds, db := friendsKnows(t)
	// An unobserved knows atom in the write partition stays closed.
	require.NoError(t, ds.Insert("targets", atom(t, "knows(/c, /d)"), 0.5))

	m, err := NewPersistedAtomManager(context.Background(), db)
	require.NoError(t, err)

	for _, a := range m.PersistedAtoms() {
		assert.NotEqual(t, knows.Symbol, a.Predicate().Symbol)
	}

	closed, err := m.GetAtom(knows, name(t, "/c"), name(t, "/d"))
	require.NoError(t, err)
	assert.Equal(t, types.Observed, closed.Kind())
	assert.Equal(t, 0.0, closed.Value())
}

func TestObservedOpenAtomsAreNotPersisted(t *testing.T) {
	ds := store.NewDataStore()
	require.NoError(t, ds.RegisterPredicate(friends))
	require.NoError(t, ds.Insert("obs", atom(t, "friends(/a, /b)"), 1))
	require.NoError(t, ds.Insert("targets", atom(t, "friends(/b, /c)"), 0))
	db, err := ds.GetDatabase("targets", nil, "obs")
	require.NoError(t, err)

	m, err := NewPersistedAtomManager(context.Background(), db)
	require.NoError(t, err)
	assert.Equal(t, 1, m.PersistedAtomCount())

	obs, err := m.GetAtom(friends, name(t, "/a"), name(t, "/b"))
	require.NoError(t, err)
	assert.Equal(t, types.Observed, obs.Kind())
	assert.False(t, m.IsPersisted(obs))
}

func TestGetAtomNeverGrowsSnapshot(t *testing.T) {
	ds, db := friendsKnows(t)
	m, err := NewPersistedAtomManager(context.Background(), db)
	require.NoError(t, err)
	before := m.PersistedAtomCount()

	// Materialized after construction: still outside the snapshot.
	require.NoError(t, ds.Insert("targets", atom(t, "friends(/c, /a)"), 0.3))

	for i := 0; i < 3; i++ {
		_, err := m.GetAtom(friends, name(t, "/c"), name(t, "/a"))
		assert.True(t, errors.Is(err, ErrInvalidAtomAccess))
		_, err = m.GetAtom(friends, name(t, "/a"), name(t, "/b"))
		assert.NoError(t, err)
		_, err = m.GetAtom(knows, name(t, "/z"), name(t, "/z"))
		assert.NoError(t, err)
	}
	assert.Equal(t, before, m.PersistedAtomCount())
}

func TestGetAtomPropagatesStoreErrors(t *testing.T) {
	_, db := friendsKnows(t)
	m, err := NewPersistedAtomManager(context.Background(), db)
	require.NoError(t, err)

	_, err = m.GetAtom(ast.PredicateSym{Symbol: "likes", Arity: 1}, name(t, "/a"))
	assert.True(t, errors.Is(err, store.ErrUnknownPredicate))
	assert.False(t, errors.Is(err, ErrInvalidAtomAccess))
}

func TestDatabaseHandle(t *testing.T) {
	_, db := friendsKnows(t)
	m, err := NewPersistedAtomManager(context.Background(), db)
	require.NoError(t, err)
	assert.Same(t, db, m.Database())

	// Optimized values go back through the handle.
	rv, err := m.GetAtom(friends, name(t, "/a"), name(t, "/b"))
	require.NoError(t, err)
	require.NoError(t, rv.SetValue(0.9))
	require.NoError(t, m.Database().Commit(context.Background(), rv))
}

func TestSnapshotMetrics(t *testing.T) {
	_, db := friendsKnows(t)
	reg := prometheus.NewRegistry()
	rec := metrics.NewRecorder(reg, "")

	m, err := NewPersistedAtomManager(context.Background(), db, WithMetrics(rec))
	require.NoError(t, err)
	_, err = m.GetAtom(friends, name(t, "/c"), name(t, "/d"))
	require.Error(t, err)

	expected := `
# HELP psl_atom_access_denied_total Lookups of random-variable atoms outside the persisted snapshot
# TYPE psl_atom_access_denied_total counter
psl_atom_access_denied_total 1
# HELP psl_snapshot_atoms Random-variable atoms in the most recent persisted snapshot
# TYPE psl_snapshot_atoms gauge
psl_snapshot_atoms 2
`
	err = testutil.GatherAndCompare(reg, strings.NewReader(expected),
		"psl_snapshot_atoms", "psl_atom_access_denied_total")
	assert.NoError(t, err)
}

// fakeDatabase records which predicates were queried.
type fakeDatabase struct {
	store.Database
	preds    []ast.PredicateSym
	closed   map[string]bool
	queried  []string
	queryErr error
}

func (f *fakeDatabase) RegisteredPredicates() []ast.PredicateSym { return f.preds }
func (f *fakeDatabase) IsClosed(sym ast.PredicateSym) bool        { return f.closed[sym.Symbol] }

func (f *fakeDatabase) ExecuteQuery(_ context.Context, query ast.Atom) ([]store.Binding, error) {
	f.queried = append(f.queried, query.Predicate.Symbol)
	return nil, f.queryErr
}

func TestClosedPredicatesAreNotQueried(t *testing.T) {
	f := &fakeDatabase{
		preds:  []ast.PredicateSym{friends, knows},
		closed: map[string]bool{"knows": true},
	}
	m, err := NewPersistedAtomManager(context.Background(), f)
	require.NoError(t, err)
	assert.Equal(t, []string{"friends"}, f.queried)
	assert.Equal(t, 0, m.PersistedAtomCount())
}

func TestConstructionFailsOnQueryError(t *testing.T) {
	boom := errors.New("boom")
	f := &fakeDatabase{preds: []ast.PredicateSym{friends}, queryErr: boom}

	_, err := NewPersistedAtomManager(context.Background(), f)
	assert.True(t, errors.Is(err, boom))
}

func TestSimpleAtomManagerDelegates(t *testing.T) {
	_, db := friendsKnows(t)
	m := NewSimpleAtomManager(db)

	rv, err := m.GetAtom(friends, name(t, "/c"), name(t, "/d"))
	require.NoError(t, err)
	assert.Equal(t, types.RandomVariable, rv.Kind())
	assert.Same(t, db, m.Database())
}
