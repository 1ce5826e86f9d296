package store

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"

	"github.com/google/mangle/ast"

	"psl/internal/logging"
	"psl/internal/types"
)

// ErrDatabaseClosed is returned by every operation on a closed database.
var ErrDatabaseClosed = errors.New("database is closed")

// Database is the read/resolve/commit surface the atom managers consume.
type Database interface {
	// RegisteredPredicates enumerates every known predicate.
	RegisteredPredicates() []ast.PredicateSym
	// IsClosed reports whether sym can only hold observed atoms.
	IsClosed(sym ast.PredicateSym) bool
	// ExecuteQuery returns every binding of the query's variables that
	// matches a stored atom.
	ExecuteQuery(ctx context.Context, query ast.Atom) ([]Binding, error)
	// GetAtom resolves sym applied to args to the shared atom instance.
	GetAtom(sym ast.PredicateSym, args ...ast.Constant) (*types.Atom, error)
	// Commit writes random-variable values back to the write partition.
	Commit(ctx context.Context, atoms ...*types.Atom) error
	Close() error
}

// PartitionDatabase is a Database over one write partition and a list of
// read partitions of a DataStore.
//
// Resolution order for GetAtom:
//   - stored in a read partition: observed, with the stored value
//   - closed predicate: observed, value 0
//   - otherwise: random variable, initialized from the write partition (0 if absent)
//
// Resolved atoms are cached, so repeated lookups return the same instance.
type PartitionDatabase struct {
	ds     *DataStore
	write  *Partition
	read   []*Partition
	closed map[string]bool

	mu       sync.Mutex
	cache    map[string]*types.Atom
	isClosed bool
}

var _ Database = (*PartitionDatabase)(nil)

// WritePartition returns the name of the write partition.
func (db *PartitionDatabase) WritePartition() string { return db.write.Name() }

// RegisteredPredicates enumerates the data store's registry.
func (db *PartitionDatabase) RegisteredPredicates() []ast.PredicateSym {
	return db.ds.RegisteredPredicates()
}

// IsClosed reports whether sym was declared closed when the database was opened.
func (db *PartitionDatabase) IsClosed(sym ast.PredicateSym) bool {
	return db.closed[sym.Symbol]
}

// ExecuteQuery matches query against the write partition and every read
// partition. Bindings are deduplicated and sorted for a stable order.
func (db *PartitionDatabase) ExecuteQuery(ctx context.Context, query ast.Atom) ([]Binding, error) {
	if err := db.checkOpen(); err != nil {
		return nil, err
	}
	if err := db.ds.checkPredicate(query.Predicate); err != nil {
		return nil, err
	}

	seen := make(map[string]bool)
	var results []Binding
	var keys []string

	parts := append([]*Partition{db.write}, db.read...)
	for _, p := range parts {
		err := p.Facts(query.Predicate, func(fact ast.Atom, _ float64) error {
			if err := ctx.Err(); err != nil {
				return err
			}
			key := fact.String()
			if seen[key] {
				return nil
			}
			b, ok := unify(query, fact)
			if !ok {
				return nil
			}
			seen[key] = true
			results = append(results, b)
			keys = append(keys, key)
			return nil
		})
		if err != nil {
			return nil, fmt.Errorf("query %s in partition %s: %w", query.Predicate.Symbol, p.Name(), err)
		}
	}

	sort.Sort(byKey{results, keys})
	logging.StoreDebug("query %s returned %d bindings", query.String(), len(results))
	return results, nil
}

type byKey struct {
	bindings []Binding
	keys     []string
}

func (s byKey) Len() int           { return len(s.keys) }
func (s byKey) Less(i, j int) bool { return s.keys[i] < s.keys[j] }
func (s byKey) Swap(i, j int) {
	s.keys[i], s.keys[j] = s.keys[j], s.keys[i]
	s.bindings[i], s.bindings[j] = s.bindings[j], s.bindings[i]
}

// GetAtom resolves sym(args...) to its shared atom instance.
func (db *PartitionDatabase) GetAtom(sym ast.PredicateSym, args ...ast.Constant) (*types.Atom, error) {
	if err := db.ds.checkPredicate(sym); err != nil {
		return nil, err
	}
	if len(args) != sym.Arity {
		return nil, fmt.Errorf("predicate %s expects %d args, got %d: %w",
			sym.Symbol, sym.Arity, len(args), ErrArityMismatch)
	}

	key := types.Key(sym, args)

	db.mu.Lock()
	defer db.mu.Unlock()
	if db.isClosed {
		return nil, ErrDatabaseClosed
	}
	if atom, ok := db.cache[key]; ok {
		return atom, nil
	}

	atom, err := db.resolveLocked(sym, args, key)
	if err != nil {
		return nil, err
	}
	db.cache[key] = atom
	return atom, nil
}

func (db *PartitionDatabase) resolveLocked(sym ast.PredicateSym, args []ast.Constant, key string) (*types.Atom, error) {
	for _, p := range db.read {
		if v, ok := p.Value(key); ok {
			return types.NewObservedAtom(sym, args, v)
		}
	}
	if db.closed[sym.Symbol] {
		return types.NewObservedAtom(sym, args, 0)
	}
	v, _ := db.write.Value(key)
	return types.NewRandomVariableAtom(sym, args, v)
}

// Commit stores the current values of random-variable atoms in the write
// partition, and writes them through to persistence when configured. Only
// atoms handed out by this database may be committed.
func (db *PartitionDatabase) Commit(ctx context.Context, atoms ...*types.Atom) error {
	rows := make([]Row, 0, len(atoms))

	db.mu.Lock()
	if db.isClosed {
		db.mu.Unlock()
		return ErrDatabaseClosed
	}
	for _, atom := range atoms {
		if atom.Kind() != types.RandomVariable {
			db.mu.Unlock()
			return fmt.Errorf("commit %s: only random-variable atoms can be committed", atom.Key())
		}
		if db.cache[atom.Key()] != atom {
			db.mu.Unlock()
			return fmt.Errorf("commit %s: atom was not resolved by this database", atom.Key())
		}
		rows = append(rows, Row{Atom: atom.AST(), Value: atom.Value()})
	}
	db.mu.Unlock()

	for _, row := range rows {
		db.write.put(row.Atom, row.Value)
	}

	if db.ds.persistence != nil && len(rows) > 0 {
		if err := db.ds.persistence.SaveFacts(ctx, db.write.Name(), rows); err != nil {
			logging.Audit(logging.CategoryStore).Committed(db.write.Name(), len(rows), err)
			return fmt.Errorf("persist commit to %s: %w", db.write.Name(), err)
		}
	}
	logging.Audit(logging.CategoryStore).Committed(db.write.Name(), len(rows), nil)
	logging.Store("committed %d atoms to %s", len(rows), db.write.Name())
	return nil
}

// Close releases the atom cache. Atoms already handed out stay valid.
func (db *PartitionDatabase) Close() error {
	db.mu.Lock()
	defer db.mu.Unlock()
	db.isClosed = true
	db.cache = nil
	return nil
}

func (db *PartitionDatabase) checkOpen() error {
	db.mu.Lock()
	defer db.mu.Unlock()
	if db.isClosed {
		return ErrDatabaseClosed
	}
	return nil
}
