package store

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"

	"github.com/google/mangle/ast"
	"golang.org/x/sync/errgroup"

	"psl/internal/logging"
	"psl/internal/types"

	_ "github.com/mattn/go-sqlite3" // registers "sqlite3"
	_ "modernc.org/sqlite"          // registers "sqlite"
)

// Row is one persisted atom with its truth value.
type Row struct {
	Atom  ast.Atom
	Value float64
}

// Persistence describes the minimal durability operations the data store relies on.
type Persistence interface {
	SavePredicate(ctx context.Context, sym ast.PredicateSym) error
	SaveFacts(ctx context.Context, partition string, rows []Row) error
	LoadInto(ctx context.Context, ds *DataStore) error
	Close() error
}

// Supported database/sql driver names.
const (
	DriverCGO    = "sqlite3" // github.com/mattn/go-sqlite3
	DriverPureGo = "sqlite"  // modernc.org/sqlite
)

// Drivers lists the driver names OpenSQLPersistence accepts.
var Drivers = []string{DriverCGO, DriverPureGo}

// SQLPersistence stores predicates and partitions in SQLite.
type SQLPersistence struct {
	db     *sql.DB
	driver string
	path   string

	// loadConcurrency bounds the partitions read in parallel by LoadInto.
	loadConcurrency int
}

var _ Persistence = (*SQLPersistence)(nil)

// OpenSQLPersistence opens or creates the database at path using driver.
func OpenSQLPersistence(driver, path string) (*SQLPersistence, error) {
	switch driver {
	case DriverCGO, DriverPureGo:
	default:
		return nil, fmt.Errorf("unsupported sqlite driver %q (valid: %v)", driver, Drivers)
	}

	if path != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
			return nil, fmt.Errorf("failed to create directory: %w", err)
		}
	}

	db, err := sql.Open(driver, path)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	if path == ":memory:" {
		// Each connection to :memory: is a separate database.
		db.SetMaxOpenConns(1)
	}

	p := &SQLPersistence{db: db, driver: driver, path: path, loadConcurrency: 4}
	if err := p.initSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}

	logging.Store("opened %s persistence at %s", driver, path)
	return p, nil
}

// Close closes the database connection.
func (p *SQLPersistence) Close() error {
	return p.db.Close()
}

// Path returns the database file path.
func (p *SQLPersistence) Path() string {
	return p.path
}

func (p *SQLPersistence) initSchema() error {
	schema := `
	CREATE TABLE IF NOT EXISTS predicates (
		name TEXT PRIMARY KEY,
		arity INTEGER NOT NULL
	);

	CREATE TABLE IF NOT EXISTS facts (
		partition TEXT NOT NULL,
		predicate TEXT NOT NULL,
		atom TEXT NOT NULL,
		value REAL NOT NULL,
		PRIMARY KEY (partition, atom)
	);
	CREATE INDEX IF NOT EXISTS idx_facts_partition ON facts(partition);
	`
	if _, err := p.db.Exec(schema); err != nil {
		return err
	}
	if p.path != ":memory:" {
		if _, err := p.db.Exec("PRAGMA journal_mode=WAL"); err != nil {
			return err
		}
	}
	_, err := p.db.Exec("PRAGMA busy_timeout=5000")
	return err
}

// SavePredicate upserts a predicate registration.
func (p *SQLPersistence) SavePredicate(ctx context.Context, sym ast.PredicateSym) error {
	_, err := p.db.ExecContext(ctx,
		`INSERT INTO predicates (name, arity) VALUES (?, ?)
		 ON CONFLICT(name) DO UPDATE SET arity = excluded.arity`,
		sym.Symbol, sym.Arity)
	return err
}

// SaveFacts upserts rows into partition in one transaction.
func (p *SQLPersistence) SaveFacts(ctx context.Context, partition string, rows []Row) error {
	tx, err := p.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx,
		`INSERT INTO facts (partition, predicate, atom, value) VALUES (?, ?, ?, ?)
		 ON CONFLICT(partition, atom) DO UPDATE SET value = excluded.value`)
	if err != nil {
		return fmt.Errorf("prepare: %w", err)
	}
	defer stmt.Close()

	for _, row := range rows {
		if _, err := stmt.ExecContext(ctx, partition, row.Atom.Predicate.Symbol, row.Atom.String(), row.Value); err != nil {
			return fmt.Errorf("insert %s: %w", row.Atom.String(), err)
		}
	}
	return tx.Commit()
}

// LoadInto registers every persisted predicate in ds and loads every
// partition. Partitions are read concurrently.
func (p *SQLPersistence) LoadInto(ctx context.Context, ds *DataStore) error {
	preds, err := p.loadPredicates(ctx)
	if err != nil {
		return err
	}
	for _, sym := range preds {
		if err := ds.RegisterPredicate(sym); err != nil {
			return err
		}
	}

	partitions, err := p.partitionNames(ctx)
	if err != nil {
		return err
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(p.loadConcurrency)
	for _, name := range partitions {
		g.Go(func() error {
			rows, err := p.loadPartition(gctx, name)
			if err != nil {
				return fmt.Errorf("load partition %s: %w", name, err)
			}
			for _, row := range rows {
				if err := ds.Insert(name, row.Atom, row.Value); err != nil {
					return fmt.Errorf("load partition %s: %w", name, err)
				}
			}
			logging.StoreDebug("loaded %d atoms into partition %s", len(rows), name)
			return nil
		})
	}
	return g.Wait()
}

func (p *SQLPersistence) loadPredicates(ctx context.Context) ([]ast.PredicateSym, error) {
	rows, err := p.db.QueryContext(ctx, `SELECT name, arity FROM predicates ORDER BY rowid`)
	if err != nil {
		return nil, fmt.Errorf("query predicates: %w", err)
	}
	defer rows.Close()

	var preds []ast.PredicateSym
	for rows.Next() {
		var sym ast.PredicateSym
		if err := rows.Scan(&sym.Symbol, &sym.Arity); err != nil {
			return nil, err
		}
		preds = append(preds, sym)
	}
	return preds, rows.Err()
}

func (p *SQLPersistence) partitionNames(ctx context.Context) ([]string, error) {
	rows, err := p.db.QueryContext(ctx, `SELECT DISTINCT partition FROM facts ORDER BY partition`)
	if err != nil {
		return nil, fmt.Errorf("query partitions: %w", err)
	}
	defer rows.Close()

	var names []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, err
		}
		names = append(names, name)
	}
	return names, rows.Err()
}

func (p *SQLPersistence) loadPartition(ctx context.Context, partition string) ([]Row, error) {
	rows, err := p.db.QueryContext(ctx, `SELECT atom, value FROM facts WHERE partition = ?`, partition)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Row
	for rows.Next() {
		var text string
		var value float64
		if err := rows.Scan(&text, &value); err != nil {
			return nil, err
		}
		atom, err := types.ParseAtom(text)
		if err != nil {
			return nil, fmt.Errorf("parse stored atom: %w", err)
		}
		out = append(out, Row{Atom: atom, Value: value})
	}
	return out, rows.Err()
}
