// Package store is the backing store for grounded reasoning: a predicate
// registry plus named partitions of ground atoms, and Database views that
// resolve (predicate, arguments) pairs to shared atom instances.
package store

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"

	"github.com/google/mangle/analysis"
	"github.com/google/mangle/ast"
	"github.com/google/mangle/parse"

	"psl/internal/logging"
	"psl/internal/types"
)

var (
	// ErrUnknownPredicate is returned for predicates never registered with the data store.
	ErrUnknownPredicate = errors.New("predicate is not registered")

	// ErrArityMismatch is returned when a predicate is used with the wrong number of arguments.
	ErrArityMismatch = errors.New("predicate arity mismatch")
)

// DataStore owns the predicate registry and the partitions. Databases opened
// from it share both.
type DataStore struct {
	mu         sync.RWMutex
	predicates []ast.PredicateSym
	registered map[string]ast.PredicateSym
	partitions map[string]*Partition

	persistence Persistence
}

// Option configures a DataStore.
type Option func(*DataStore)

// WithPersistence attaches a durability layer. Commits made through databases
// opened from the store are written through to it.
func WithPersistence(p Persistence) Option {
	return func(ds *DataStore) { ds.persistence = p }
}

// NewDataStore creates an empty data store.
func NewDataStore(opts ...Option) *DataStore {
	ds := &DataStore{
		registered: make(map[string]ast.PredicateSym),
		partitions: make(map[string]*Partition),
	}
	for _, opt := range opts {
		opt(ds)
	}
	return ds
}

// RegisterPredicate adds sym to the registry. Registering the same predicate
// twice is a no-op; registering a known name with another arity fails.
func (ds *DataStore) RegisterPredicate(sym ast.PredicateSym) error {
	if sym.Symbol == "" {
		return fmt.Errorf("predicate name required")
	}
	if sym.Arity < 0 {
		return fmt.Errorf("predicate %s: negative arity %d", sym.Symbol, sym.Arity)
	}

	ds.mu.Lock()
	defer ds.mu.Unlock()

	if existing, ok := ds.registered[sym.Symbol]; ok {
		if existing.Arity != sym.Arity {
			return fmt.Errorf("predicate %s registered with arity %d, got %d: %w",
				sym.Symbol, existing.Arity, sym.Arity, ErrArityMismatch)
		}
		return nil
	}

	ds.registered[sym.Symbol] = sym
	ds.predicates = append(ds.predicates, sym)
	logging.StoreDebug("registered predicate %s/%d", sym.Symbol, sym.Arity)
	return nil
}

// LoadSchemaString registers every predicate declared in a Mangle source
// fragment, e.g. "Decl friends(X, Y).".
func (ds *DataStore) LoadSchemaString(schema string) error {
	unit, err := parse.Unit(bytes.NewReader([]byte(schema)))
	if err != nil {
		return fmt.Errorf("failed to parse schema: %w", err)
	}
	if _, err := analysis.AnalyzeOneUnit(unit, nil); err != nil {
		return fmt.Errorf("failed to analyze schema: %w", err)
	}

	for _, decl := range unit.Decls {
		sym := decl.DeclaredAtom.Predicate
		if isBuiltinDecl(sym) {
			continue
		}
		if err := ds.RegisterPredicate(sym); err != nil {
			return err
		}
	}
	return nil
}

func isBuiltinDecl(sym ast.PredicateSym) bool {
	switch sym.Symbol {
	case "Package", "Use":
		return true
	}
	return false
}

// RegisteredPredicates returns the registry in registration order.
func (ds *DataStore) RegisteredPredicates() []ast.PredicateSym {
	ds.mu.RLock()
	defer ds.mu.RUnlock()
	out := make([]ast.PredicateSym, len(ds.predicates))
	copy(out, ds.predicates)
	return out
}

// Predicate looks up a registered predicate by name.
func (ds *DataStore) Predicate(name string) (ast.PredicateSym, bool) {
	ds.mu.RLock()
	defer ds.mu.RUnlock()
	sym, ok := ds.registered[name]
	return sym, ok
}

// checkPredicate verifies that sym is registered with the same arity.
func (ds *DataStore) checkPredicate(sym ast.PredicateSym) error {
	registered, ok := ds.Predicate(sym.Symbol)
	if !ok {
		return fmt.Errorf("%s: %w", sym.Symbol, ErrUnknownPredicate)
	}
	if registered.Arity != sym.Arity {
		return fmt.Errorf("predicate %s expects %d args, got %d: %w",
			sym.Symbol, registered.Arity, sym.Arity, ErrArityMismatch)
	}
	return nil
}

// Partition returns the named partition, creating it if needed.
func (ds *DataStore) Partition(name string) *Partition {
	ds.mu.Lock()
	defer ds.mu.Unlock()
	p, ok := ds.partitions[name]
	if !ok {
		p = newPartition(name)
		ds.partitions[name] = p
	}
	return p
}

// PartitionNames lists partitions in lexical order.
func (ds *DataStore) PartitionNames() []string {
	ds.mu.RLock()
	defer ds.mu.RUnlock()
	names := make([]string, 0, len(ds.partitions))
	for name := range ds.partitions {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Insert stores a ground atom with a truth value in the named partition.
func (ds *DataStore) Insert(partition string, atom ast.Atom, value float64) error {
	if err := ds.checkPredicate(atom.Predicate); err != nil {
		return err
	}
	if _, err := types.Constants(atom); err != nil {
		return err
	}
	if value < 0 || value > 1 {
		return fmt.Errorf("%s: %w: %v", atom.String(), types.ErrValueOutOfRange, value)
	}
	ds.Partition(partition).put(atom, value)
	return nil
}

// InsertFact converts and stores a loosely typed fact.
func (ds *DataStore) InsertFact(partition string, fact types.Fact) error {
	atom, err := fact.ToAtom()
	if err != nil {
		return err
	}
	return ds.Insert(partition, atom, fact.Value)
}

// LoadFactsString parses Mangle facts ("friends(/a, /b).") and stores each
// with value 1.
func (ds *DataStore) LoadFactsString(partition, src string) error {
	unit, err := parse.Unit(bytes.NewReader([]byte(src)))
	if err != nil {
		return fmt.Errorf("failed to parse facts: %w", err)
	}
	for _, clause := range unit.Clauses {
		if len(clause.Premises) > 0 {
			return fmt.Errorf("%s: rules are not facts", clause.Head.Predicate.Symbol)
		}
		if err := ds.Insert(partition, clause.Head, 1); err != nil {
			return err
		}
	}
	return nil
}

// Persist writes the registry and every partition to the attached
// persistence layer.
func (ds *DataStore) Persist(ctx context.Context) error {
	if ds.persistence == nil {
		return fmt.Errorf("no persistence configured")
	}
	for _, sym := range ds.RegisteredPredicates() {
		if err := ds.persistence.SavePredicate(ctx, sym); err != nil {
			return fmt.Errorf("persist predicate %s: %w", sym.Symbol, err)
		}
	}
	for _, name := range ds.PartitionNames() {
		rows, err := ds.partitionRows(name)
		if err != nil {
			return err
		}
		if err := ds.persistence.SaveFacts(ctx, name, rows); err != nil {
			return fmt.Errorf("persist partition %s: %w", name, err)
		}
	}
	return nil
}

func (ds *DataStore) partitionRows(name string) ([]Row, error) {
	p := ds.Partition(name)
	var rows []Row
	for _, sym := range p.Predicates() {
		err := p.Facts(sym, func(atom ast.Atom, value float64) error {
			rows = append(rows, Row{Atom: atom, Value: value})
			return nil
		})
		if err != nil {
			return nil, err
		}
	}
	return rows, nil
}

// GetDatabase opens a view with one write partition and any number of read
// partitions. Atoms of closed predicates are always observed.
func (ds *DataStore) GetDatabase(write string, closed []ast.PredicateSym, read ...string) (*PartitionDatabase, error) {
	if write == "" {
		return nil, fmt.Errorf("write partition required")
	}
	for _, r := range read {
		if r == write {
			return nil, fmt.Errorf("partition %s cannot be both read and write", write)
		}
	}
	closedSet := make(map[string]bool, len(closed))
	for _, sym := range closed {
		if err := ds.checkPredicate(sym); err != nil {
			return nil, err
		}
		closedSet[sym.Symbol] = true
	}

	readParts := make([]*Partition, len(read))
	for i, r := range read {
		readParts[i] = ds.Partition(r)
	}

	logging.Store("opened database: write=%s read=%v closed=%d", write, read, len(closedSet))
	return &PartitionDatabase{
		ds:     ds,
		write:  ds.Partition(write),
		read:   readParts,
		closed: closedSet,
		cache:  make(map[string]*types.Atom),
	}, nil
}
