// Package atoms mediates access to the atoms of a store.Database.
//
// Ground rule construction never talks to the database directly; it asks an
// AtomManager. PersistedAtomManager fixes the set of random-variable atoms at
// construction time and refuses to hand out any other, so the optimizer can
// allocate one variable per snapshot atom and never discover new ones.
package atoms

import (
	"errors"

	"github.com/google/mangle/ast"

	"psl/internal/store"
	"psl/internal/types"
)

// ErrInvalidAtomAccess is returned when a random-variable atom outside the
// persisted snapshot is requested.
var ErrInvalidAtomAccess = errors.New("random-variable atom is not in the persisted snapshot")

// AtomManager resolves atoms on behalf of grounding code.
type AtomManager interface {
	// GetAtom returns the atom for sym applied to args.
	GetAtom(sym ast.PredicateSym, args ...ast.Constant) (*types.Atom, error)
	// Database returns the backing store handle.
	Database() store.Database
}
