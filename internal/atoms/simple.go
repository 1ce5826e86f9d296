package atoms

import (
	"github.com/google/mangle/ast"

	"psl/internal/store"
	"psl/internal/types"
)

// SimpleAtomManager passes every lookup straight to the database.
type SimpleAtomManager struct {
	db store.Database
}

var _ AtomManager = (*SimpleAtomManager)(nil)

// NewSimpleAtomManager returns a manager over db with no snapshot.
func NewSimpleAtomManager(db store.Database) *SimpleAtomManager {
	return &SimpleAtomManager{db: db}
}

// GetAtom returns whatever db resolves for sym(args...).
func (m *SimpleAtomManager) GetAtom(sym ast.PredicateSym, args ...ast.Constant) (*types.Atom, error) {
	return m.db.GetAtom(sym, args...)
}

// Database returns the backing store handle.
func (m *SimpleAtomManager) Database() store.Database {
	return m.db
}
