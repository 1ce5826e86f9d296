// Package types provides the atom model shared by the store, the atom managers
// and the reasoner. Atoms are built on Mangle AST values so that predicate
// symbols, constants and query variables have a single representation.
package types

import (
	"fmt"
	"strings"

	"github.com/google/mangle/ast"
	"github.com/google/mangle/parse"
)

// =============================================================================
// FACT TYPES
// =============================================================================

// MangleAtom represents a Mangle name constant (starting with /).
// This explicit type avoids ambiguity between strings and atoms.
type MangleAtom string

// Fact is the loosely typed form of a stored atom, used by data files and
// persistence rows. Value is the atom's truth value in [0, 1].
type Fact struct {
	Predicate string        `yaml:"predicate" json:"predicate"`
	Args      []interface{} `yaml:"args" json:"args"`
	Value     float64       `yaml:"value" json:"value"`
}

func isValidMangleNameConstant(v string) bool {
	if !strings.HasPrefix(v, "/") {
		return false
	}
	if strings.ContainsAny(v, " \t\n\r") {
		return false
	}
	_, err := ast.Name(v)
	return err == nil
}

// ToAtom converts a Fact to a ground Mangle atom.
func (f Fact) ToAtom() (ast.Atom, error) {
	if f.Predicate == "" {
		return ast.Atom{}, fmt.Errorf("fact has no predicate")
	}
	terms := make([]ast.BaseTerm, 0, len(f.Args))
	for i, arg := range f.Args {
		switch v := arg.(type) {
		case MangleAtom:
			c, err := ast.Name(string(v))
			if err != nil {
				return ast.Atom{}, fmt.Errorf("%s arg %d: %w", f.Predicate, i, err)
			}
			terms = append(terms, c)
		case string:
			if isValidMangleNameConstant(v) {
				c, _ := ast.Name(v)
				terms = append(terms, c)
			} else {
				terms = append(terms, ast.String(v))
			}
		case int:
			terms = append(terms, ast.Number(int64(v)))
		case int64:
			terms = append(terms, ast.Number(v))
		case ast.Constant:
			terms = append(terms, v)
		default:
			return ast.Atom{}, fmt.Errorf("%s arg %d: unsupported argument type %T", f.Predicate, i, arg)
		}
	}
	return ast.NewAtom(f.Predicate, terms...), nil
}

// =============================================================================
// ATOM HELPERS
// =============================================================================

// Key returns the identity of the atom formed by sym applied to args.
// Two atoms are the same atom iff their keys are equal.
func Key(sym ast.PredicateSym, args []ast.Constant) string {
	terms := make([]ast.BaseTerm, len(args))
	for i, arg := range args {
		terms[i] = arg
	}
	return ast.Atom{Predicate: sym, Args: terms}.String()
}

// Constants returns the arguments of a ground atom. It fails if any argument
// is not a constant.
func Constants(atom ast.Atom) ([]ast.Constant, error) {
	args := make([]ast.Constant, len(atom.Args))
	for i, arg := range atom.Args {
		c, ok := arg.(ast.Constant)
		if !ok {
			return nil, fmt.Errorf("%s: argument %d (%v) is not a constant", atom.Predicate.Symbol, i, arg)
		}
		args[i] = c
	}
	return args, nil
}

// QueryAtom builds a query over sym with one distinct variable per argument
// position, named X0..X{arity-1}.
func QueryAtom(sym ast.PredicateSym) (ast.Atom, []ast.Variable) {
	vars := make([]ast.Variable, sym.Arity)
	args := make([]ast.BaseTerm, sym.Arity)
	for i := range vars {
		vars[i] = ast.Variable{Symbol: fmt.Sprintf("X%d", i)}
		args[i] = vars[i]
	}
	return ast.Atom{Predicate: sym, Args: args}, vars
}

// ParseAtom parses a single atom in Mangle notation, e.g. "friends(/a, /b)".
// A trailing period is optional.
func ParseAtom(text string) (ast.Atom, error) {
	clean := strings.TrimSpace(text)
	clean = strings.TrimSpace(strings.TrimSuffix(clean, "."))
	if clean == "" {
		return ast.Atom{}, fmt.Errorf("empty atom")
	}

	atom, err := parse.Atom(clean)
	if err != nil {
		// Attempt again with a trailing period
		atom, err = parse.Atom(clean + ".")
		if err != nil {
			return ast.Atom{}, fmt.Errorf("failed to parse atom %q: %w", text, err)
		}
	}
	return atom, nil
}

// ParseGroundAtom parses an atom and returns its constant arguments.
func ParseGroundAtom(text string) (ast.Atom, []ast.Constant, error) {
	atom, err := ParseAtom(text)
	if err != nil {
		return ast.Atom{}, nil, err
	}
	args, err := Constants(atom)
	if err != nil {
		return ast.Atom{}, nil, err
	}
	return atom, args, nil
}
