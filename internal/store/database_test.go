package store

import (
	"context"
	"errors"
	"testing"

	"github.com/google/mangle/ast"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"psl/internal/types"
)

// newFriendsDatabase builds the store used throughout: friends/2 is open with
// two persisted targets, knows/2 is closed with one observation.
func newFriendsDatabase(t *testing.T, opts ...Option) (*DataStore, *PartitionDatabase) {
	t.Helper()
	ds := NewDataStore(opts...)
	require.NoError(t, ds.RegisterPredicate(friends))
	require.NoError(t, ds.RegisterPredicate(knows))

	require.NoError(t, ds.Insert("targets", mustAtom(t, "friends(/a, /b)"), 0.2))
	require.NoError(t, ds.Insert("targets", mustAtom(t, "friends(/b, /c)"), 0))
	require.NoError(t, ds.Insert("obs", mustAtom(t, "knows(/a, /b)"), 1))

	db, err := ds.GetDatabase("targets", []ast.PredicateSym{knows}, "obs")
	require.NoError(t, err)
	return ds, db
}

func TestExecuteQueryDistinctVariables(t *testing.T) {
	_, db := newFriendsDatabase(t)

	query, vars := types.QueryAtom(friends)
	bindings, err := db.ExecuteQuery(context.Background(), query)
	require.NoError(t, err)
	require.Len(t, bindings, 2)

	var got [][]string
	for _, b := range bindings {
		require.Equal(t, 2, b.Len())
		x0, ok := b.Get(vars[0])
		require.True(t, ok)
		x1, ok := b.Get(vars[1])
		require.True(t, ok)
		got = append(got, []string{x0.Symbol, x1.Symbol})
	}
	assert.ElementsMatch(t, [][]string{{"/a", "/b"}, {"/b", "/c"}}, got)
}

func TestExecuteQueryConstantsAndRepeatedVariables(t *testing.T) {
	ds, db := newFriendsDatabase(t)
	require.NoError(t, ds.Insert("targets", mustAtom(t, "friends(/c, /c)"), 0))

	bindings, err := db.ExecuteQuery(context.Background(), mustAtom(t, "friends(/a, Y)"))
	require.NoError(t, err)
	require.Len(t, bindings, 1)
	y, _ := bindings[0].Get(ast.Variable{Symbol: "Y"})
	assert.Equal(t, "/b", y.Symbol)

	bindings, err = db.ExecuteQuery(context.Background(), mustAtom(t, "friends(X, X)"))
	require.NoError(t, err)
	require.Len(t, bindings, 1)
	x, _ := bindings[0].Get(ast.Variable{Symbol: "X"})
	assert.Equal(t, "/c", x.Symbol)
	assert.Equal(t, 1, bindings[0].Len())
}

func TestExecuteQuerySpansReadPartitions(t *testing.T) {
	_, db := newFriendsDatabase(t)

	query, _ := types.QueryAtom(knows)
	bindings, err := db.ExecuteQuery(context.Background(), query)
	require.NoError(t, err)
	assert.Len(t, bindings, 1)
}

func TestExecuteQueryErrors(t *testing.T) {
	_, db := newFriendsDatabase(t)

	_, err := db.ExecuteQuery(context.Background(), mustAtom(t, "likes(X)"))
	assert.True(t, errors.Is(err, ErrUnknownPredicate))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	query, _ := types.QueryAtom(friends)
	_, err = db.ExecuteQuery(ctx, query)
	assert.True(t, errors.Is(err, context.Canceled))
}

func TestGetAtomResolution(t *testing.T) {
	_, db := newFriendsDatabase(t)
	a, b, c, d := mustName(t, "/a"), mustName(t, "/b"), mustName(t, "/c"), mustName(t, "/d")

	obs, err := db.GetAtom(knows, a, b)
	require.NoError(t, err)
	assert.Equal(t, types.Observed, obs.Kind())
	assert.Equal(t, 1.0, obs.Value())

	closedMissing, err := db.GetAtom(knows, c, d)
	require.NoError(t, err)
	assert.Equal(t, types.Observed, closedMissing.Kind())
	assert.Equal(t, 0.0, closedMissing.Value())

	persisted, err := db.GetAtom(friends, a, b)
	require.NoError(t, err)
	assert.Equal(t, types.RandomVariable, persisted.Kind())
	assert.Equal(t, 0.2, persisted.Value())

	fresh, err := db.GetAtom(friends, c, d)
	require.NoError(t, err)
	assert.Equal(t, types.RandomVariable, fresh.Kind())
	assert.Equal(t, 0.0, fresh.Value())
}

func TestGetAtomReturnsSameInstance(t *testing.T) {
	_, db := newFriendsDatabase(t)
	a, b := mustName(t, "/a"), mustName(t, "/b")

	first, err := db.GetAtom(friends, a, b)
	require.NoError(t, err)
	second, err := db.GetAtom(friends, a, b)
	require.NoError(t, err)
	assert.Same(t, first, second)

	require.NoError(t, first.SetValue(0.9))
	assert.Equal(t, 0.9, second.Value())
}

func TestGetAtomErrors(t *testing.T) {
	_, db := newFriendsDatabase(t)
	a := mustName(t, "/a")

	_, err := db.GetAtom(ast.PredicateSym{Symbol: "likes", Arity: 1}, a)
	assert.True(t, errors.Is(err, ErrUnknownPredicate))

	_, err = db.GetAtom(friends, a)
	assert.True(t, errors.Is(err, ErrArityMismatch))
}

func TestCommitWritesBack(t *testing.T) {
	ds, db := newFriendsDatabase(t)
	a, b := mustName(t, "/a"), mustName(t, "/b")

	atom, err := db.GetAtom(friends, a, b)
	require.NoError(t, err)
	require.NoError(t, atom.SetValue(0.75))
	require.NoError(t, db.Commit(context.Background(), atom))

	v, ok := ds.Partition("targets").Value(atom.Key())
	require.True(t, ok)
	assert.Equal(t, 0.75, v)

	// A new database over the same partitions sees the committed value.
	other, err := ds.GetDatabase("targets", []ast.PredicateSym{knows}, "obs")
	require.NoError(t, err)
	reread, err := other.GetAtom(friends, a, b)
	require.NoError(t, err)
	assert.Equal(t, 0.75, reread.Value())
	assert.NotSame(t, atom, reread)
}

func TestCommitRejectsForeignAndObservedAtoms(t *testing.T) {
	ds, db := newFriendsDatabase(t)
	a, b := mustName(t, "/a"), mustName(t, "/b")

	obs, err := db.GetAtom(knows, a, b)
	require.NoError(t, err)
	assert.Error(t, db.Commit(context.Background(), obs))

	foreign, err := types.NewRandomVariableAtom(friends, []ast.Constant{a, b}, 0.5)
	require.NoError(t, err)
	assert.Error(t, db.Commit(context.Background(), foreign))

	v, _ := ds.Partition("targets").Value(foreign.Key())
	assert.Equal(t, 0.2, v, "rejected commits leave the partition unchanged")
}

func TestClosedDatabase(t *testing.T) {
	_, db := newFriendsDatabase(t)
	require.NoError(t, db.Close())

	_, err := db.GetAtom(friends, mustName(t, "/a"), mustName(t, "/b"))
	assert.True(t, errors.Is(err, ErrDatabaseClosed))

	query, _ := types.QueryAtom(friends)
	_, err = db.ExecuteQuery(context.Background(), query)
	assert.True(t, errors.Is(err, ErrDatabaseClosed))

	assert.True(t, errors.Is(db.Commit(context.Background()), ErrDatabaseClosed))
}
