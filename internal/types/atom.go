package types

import (
	"errors"
	"fmt"

	"github.com/google/mangle/ast"
)

var (
	// ErrObservedAtomImmutable is returned when a caller tries to change the
	// truth value of an observed atom.
	ErrObservedAtomImmutable = errors.New("observed atom is immutable")

	// ErrValueOutOfRange is returned for truth values outside [0, 1].
	ErrValueOutOfRange = errors.New("truth value out of range [0, 1]")
)

// AtomKind tags the two atom variants.
type AtomKind uint8

const (
	// Observed atoms carry a fixed truth value.
	Observed AtomKind = iota
	// RandomVariable atoms carry a truth value the optimizer may change.
	RandomVariable
)

func (k AtomKind) String() string {
	switch k {
	case Observed:
		return "observed"
	case RandomVariable:
		return "random_variable"
	default:
		return fmt.Sprintf("AtomKind(%d)", uint8(k))
	}
}

// Atom is a predicate applied to constant arguments together with a truth
// value. Atoms are shared by pointer: the store hands out one instance per
// identity, and the optimizer writes random-variable values through it.
//
// Atom is not safe for concurrent writes.
type Atom struct {
	kind  AtomKind
	sym   ast.PredicateSym
	args  []ast.Constant
	key   string
	value float64
}

func newAtom(kind AtomKind, sym ast.PredicateSym, args []ast.Constant, value float64) (*Atom, error) {
	if len(args) != sym.Arity {
		return nil, fmt.Errorf("predicate %s expects %d args, got %d", sym.Symbol, sym.Arity, len(args))
	}
	if value < 0 || value > 1 {
		return nil, fmt.Errorf("%s: %w: %v", Key(sym, args), ErrValueOutOfRange, value)
	}
	owned := make([]ast.Constant, len(args))
	copy(owned, args)
	return &Atom{
		kind:  kind,
		sym:   sym,
		args:  owned,
		key:   Key(sym, owned),
		value: value,
	}, nil
}

// NewObservedAtom returns an observed atom with a fixed value.
func NewObservedAtom(sym ast.PredicateSym, args []ast.Constant, value float64) (*Atom, error) {
	return newAtom(Observed, sym, args, value)
}

// NewRandomVariableAtom returns a random-variable atom with an initial value.
func NewRandomVariableAtom(sym ast.PredicateSym, args []ast.Constant, value float64) (*Atom, error) {
	return newAtom(RandomVariable, sym, args, value)
}

// Kind reports which variant the atom is.
func (a *Atom) Kind() AtomKind { return a.kind }

// IsRandomVariable is shorthand for Kind() == RandomVariable.
func (a *Atom) IsRandomVariable() bool { return a.kind == RandomVariable }

// Predicate returns the atom's predicate symbol.
func (a *Atom) Predicate() ast.PredicateSym { return a.sym }

// Args returns a copy of the atom's arguments.
func (a *Atom) Args() []ast.Constant {
	out := make([]ast.Constant, len(a.args))
	copy(out, a.args)
	return out
}

// Key returns the atom's identity.
func (a *Atom) Key() string { return a.key }

// AST returns the atom as a Mangle atom.
func (a *Atom) AST() ast.Atom {
	terms := make([]ast.BaseTerm, len(a.args))
	for i, arg := range a.args {
		terms[i] = arg
	}
	return ast.Atom{Predicate: a.sym, Args: terms}
}

// Value returns the current truth value.
func (a *Atom) Value() float64 { return a.value }

// SetValue updates the truth value of a random-variable atom.
func (a *Atom) SetValue(v float64) error {
	if a.kind != RandomVariable {
		return fmt.Errorf("%s: %w", a.key, ErrObservedAtomImmutable)
	}
	if v < 0 || v > 1 {
		return fmt.Errorf("%s: %w: %v", a.key, ErrValueOutOfRange, v)
	}
	a.value = v
	return nil
}

func (a *Atom) String() string {
	return a.key
}
