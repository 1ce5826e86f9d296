package store

import (
	"sync"

	"github.com/google/mangle/ast"
	"github.com/google/mangle/factstore"
)

// Partition is a named set of ground atoms with truth values. Atoms are held
// in a Mangle fact store; values are keyed by atom identity.
type Partition struct {
	name string

	mu     sync.RWMutex
	facts  factstore.FactStoreWithRemove
	values map[string]float64
}

func newPartition(name string) *Partition {
	return &Partition{
		name:   name,
		facts:  factstore.NewSimpleInMemoryStore(),
		values: make(map[string]float64),
	}
}

// Name returns the partition name.
func (p *Partition) Name() string { return p.name }

// put stores or overwrites a ground atom. Callers validate the atom.
func (p *Partition) put(atom ast.Atom, value float64) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.facts.Add(atom)
	p.values[atom.String()] = value
}

// Value returns the stored truth value for key.
func (p *Partition) Value(key string) (float64, bool) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	v, ok := p.values[key]
	return v, ok
}

// Size returns the number of stored atoms.
func (p *Partition) Size() int {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return len(p.values)
}

// Facts streams every stored atom of sym to fn.
func (p *Partition) Facts(sym ast.PredicateSym, fn func(atom ast.Atom, value float64) error) error {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.facts.GetFacts(ast.NewQuery(sym), func(atom ast.Atom) error {
		return fn(atom, p.values[atom.String()])
	})
}

// Predicates lists the predicates with at least one stored atom.
func (p *Partition) Predicates() []ast.PredicateSym {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.facts.ListPredicates()
}
