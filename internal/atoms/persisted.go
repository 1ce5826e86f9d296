package atoms

import (
	"context"
	"fmt"
	"sort"

	"github.com/google/mangle/ast"

	"psl/internal/logging"
	"psl/internal/metrics"
	"psl/internal/store"
	"psl/internal/types"
)

// PersistedAtomManager snapshots every random-variable atom reachable through
// the open predicates of a database and only ever returns those.
//
// The snapshot is filled inside NewPersistedAtomManager and never written
// again, so it is safe to read from multiple goroutines.
type PersistedAtomManager struct {
	db        store.Database
	persisted map[string]*types.Atom
	metrics   *metrics.Recorder
}

var _ AtomManager = (*PersistedAtomManager)(nil)

// Option configures a PersistedAtomManager.
type Option func(*PersistedAtomManager)

// WithMetrics records snapshot size and access denials on r.
func WithMetrics(r *metrics.Recorder) Option {
	return func(m *PersistedAtomManager) { m.metrics = r }
}

// NewPersistedAtomManager builds the snapshot. Each open predicate is queried
// with one fresh variable per argument; every binding is resolved through
// db and random-variable results are kept. Closed predicates are skipped.
func NewPersistedAtomManager(ctx context.Context, db store.Database, opts ...Option) (*PersistedAtomManager, error) {
	m := &PersistedAtomManager{
		db:        db,
		persisted: make(map[string]*types.Atom),
	}
	for _, opt := range opts {
		opt(m)
	}

	for _, sym := range db.RegisteredPredicates() {
		if db.IsClosed(sym) {
			logging.AtomsDebug("snapshot: skipping closed predicate %s/%d", sym.Symbol, sym.Arity)
			continue
		}
		if err := m.snapshotPredicate(ctx, sym); err != nil {
			return nil, err
		}
	}

	m.metrics.SetSnapshotSize(len(m.persisted))
	logging.Audit(logging.CategoryAtoms).SnapshotBuilt(len(m.persisted))
	logging.Atoms("persisted %d random-variable atoms", len(m.persisted))
	return m, nil
}

func (m *PersistedAtomManager) snapshotPredicate(ctx context.Context, sym ast.PredicateSym) error {
	query, vars := types.QueryAtom(sym)
	bindings, err := m.db.ExecuteQuery(ctx, query)
	if err != nil {
		return fmt.Errorf("snapshot %s/%d: %w", sym.Symbol, sym.Arity, err)
	}

	added := 0
	for _, b := range bindings {
		if b.Len() != len(vars) {
			return fmt.Errorf("snapshot %s/%d: binding has %d variables, want %d", sym.Symbol, sym.Arity, b.Len(), len(vars))
		}
		args := make([]ast.Constant, len(vars))
		for i, v := range vars {
			c, ok := b.Get(v)
			if !ok {
				return fmt.Errorf("snapshot %s/%d: binding has no value for %s", sym.Symbol, sym.Arity, v.Symbol)
			}
			args[i] = c
		}

		atom, err := m.db.GetAtom(sym, args...)
		if err != nil {
			return fmt.Errorf("snapshot %s/%d: %w", sym.Symbol, sym.Arity, err)
		}
		if !atom.IsRandomVariable() {
			continue
		}
		if _, ok := m.persisted[atom.Key()]; !ok {
			m.persisted[atom.Key()] = atom
			added++
		}
	}

	logging.AtomsDebug("snapshot: %s/%d matched %d bindings, %d random variables",
		sym.Symbol, sym.Arity, len(bindings), added)
	return nil
}

// GetAtom resolves sym(args...) through the database. Observed atoms are
// always returned; random-variable atoms only when they are in the snapshot.
func (m *PersistedAtomManager) GetAtom(sym ast.PredicateSym, args ...ast.Constant) (*types.Atom, error) {
	atom, err := m.db.GetAtom(sym, args...)
	if err != nil {
		return nil, err
	}

	switch atom.Kind() {
	case types.Observed:
		return atom, nil
	case types.RandomVariable:
		if _, ok := m.persisted[atom.Key()]; ok {
			return atom, nil
		}
		m.metrics.AccessDenied()
		logging.Audit(logging.CategoryAtoms).AtomDenied(atom.Key())
		logging.AtomsDebug("denied access to %s", atom.Key())
		return nil, fmt.Errorf("%s: %w", atom.Key(), ErrInvalidAtomAccess)
	default:
		return nil, fmt.Errorf("%s: unexpected atom kind %s", atom.Key(), atom.Kind())
	}
}

// Database returns the backing store handle, e.g. for writing optimized
// values back with Commit.
func (m *PersistedAtomManager) Database() store.Database {
	return m.db
}

// PersistedAtoms returns the snapshot sorted by atom key.
func (m *PersistedAtomManager) PersistedAtoms() []*types.Atom {
	out := make([]*types.Atom, 0, len(m.persisted))
	for _, atom := range m.persisted {
		out = append(out, atom)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Key() < out[j].Key() })
	return out
}

// PersistedAtomCount returns the snapshot size.
func (m *PersistedAtomManager) PersistedAtomCount() int {
	return len(m.persisted)
}

// IsPersisted reports whether atom is the snapshot's instance for its key.
func (m *PersistedAtomManager) IsPersisted(atom *types.Atom) bool {
	if atom == nil {
		return false
	}
	return m.persisted[atom.Key()] == atom
}
