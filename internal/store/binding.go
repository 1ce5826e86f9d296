package store

import (
	"github.com/google/mangle/ast"
)

// Binding assigns a constant to each named variable of a query, in order of
// first appearance in the query atom.
type Binding struct {
	vars   []ast.Variable
	values []ast.Constant
}

// Get returns the constant bound to v.
func (b Binding) Get(v ast.Variable) (ast.Constant, bool) {
	for i, bound := range b.vars {
		if bound.Symbol == v.Symbol {
			return b.values[i], true
		}
	}
	return ast.Constant{}, false
}


// Len returns the number of bound variables.
func (b Binding) Len() int { return len(b.vars) }

// unify matches a stored ground atom against a query atom. Constants in the
// query must match exactly; repeated variables must bind to equal constants;
// the wildcard "_" matches anything without binding.
func unify(query, fact ast.Atom) (Binding, bool) {
	if len(query.Args) != len(fact.Args) {
		return Binding{}, false
	}

	var b Binding
	for i, arg := range query.Args {
		got, ok := fact.Args[i].(ast.Constant)
		if !ok {
			return Binding{}, false
		}
		switch q := arg.(type) {
		case ast.Constant:
			if q.String() != got.String() {
				return Binding{}, false
			}
		case ast.Variable:
			if q.Symbol == "_" {
				continue
			}
			if prev, bound := b.Get(q); bound {
				if prev.String() != got.String() {
					return Binding{}, false
				}
				continue
			}
			b.vars = append(b.vars, q)
			b.values = append(b.values, got)
		default:
			return Binding{}, false
		}
	}
	return b, true
}
