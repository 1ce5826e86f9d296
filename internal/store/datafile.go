package store

import (
	"fmt"
	"os"
	"sort"

	"github.com/google/mangle/ast"
	"gopkg.in/yaml.v3"

	"psl/internal/types"
)

// DataFile is the YAML layout accepted by LoadDataFile.
//
//	schema: |
//	  Decl friends(X, Y).
//	predicates:
//	  - {name: knows, arity: 2}
//	partitions:
//	  targets:
//	    - {predicate: friends, args: [/a, /b], value: 0.5}
//	facts:
//	  observations: |
//	    knows(/a, /b).
//
// A partitions row without a value is stored with value 0, the starting
// point for a random variable. Every fact in a facts block is stored with
// value 1.
type DataFile struct {
	Schema     string                  `yaml:"schema"`
	Predicates []PredicateSpec         `yaml:"predicates"`
	Partitions map[string][]types.Fact `yaml:"partitions"`
	Facts      map[string]string       `yaml:"facts"`
}

// PredicateSpec declares a predicate without Mangle syntax.
type PredicateSpec struct {
	Name  string `yaml:"name"`
	Arity int    `yaml:"arity"`
}

// LoadDataFile reads a YAML data file into ds.
func (ds *DataStore) LoadDataFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read data file: %w", err)
	}
	var df DataFile
	if err := yaml.Unmarshal(data, &df); err != nil {
		return fmt.Errorf("failed to parse data file %s: %w", path, err)
	}
	return ds.Apply(df)
}

// Apply registers the file's predicates and inserts its partitions.
// Schema and predicate declarations are applied before any fact.
func (ds *DataStore) Apply(df DataFile) error {
	if df.Schema != "" {
		if err := ds.LoadSchemaString(df.Schema); err != nil {
			return err
		}
	}
	for _, spec := range df.Predicates {
		if err := ds.RegisterPredicate(ast.PredicateSym{Symbol: spec.Name, Arity: spec.Arity}); err != nil {
			return err
		}
	}

	for _, name := range sortedKeys(df.Partitions) {
		for i, fact := range df.Partitions[name] {
			if err := ds.InsertFact(name, fact); err != nil {
				return fmt.Errorf("partition %s fact %d: %w", name, i, err)
			}
		}
	}
	for _, name := range sortedKeys(df.Facts) {
		if err := ds.LoadFactsString(name, df.Facts[name]); err != nil {
			return fmt.Errorf("partition %s: %w", name, err)
		}
	}
	return nil
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
