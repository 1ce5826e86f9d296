package main

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/google/mangle/ast"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/common/expfmt"
	"go.uber.org/zap"

	"psl/internal/config"
	"psl/internal/metrics"
	"psl/internal/store"
)

// session is one opened data store plus the database view the commands work on.
type session struct {
	cfg         *config.Config
	ds          *store.DataStore
	db          *store.PartitionDatabase
	persistence *store.SQLPersistence

	registry *prometheus.Registry
	recorder *metrics.Recorder
}

// openSession builds the data store from persistence, schema and data files,
// then opens the configured database view.
func openSession(ctx context.Context, cfg *config.Config) (*session, error) {
	s := &session{cfg: cfg}

	var opts []store.Option
	if cfg.HasPersistence() {
		p, err := store.OpenSQLPersistence(cfg.Store.Driver, cfg.Store.DatabasePath)
		if err != nil {
			return nil, err
		}
		s.persistence = p
		opts = append(opts, store.WithPersistence(p))
	}
	s.ds = store.NewDataStore(opts...)

	if err := s.load(ctx); err != nil {
		s.Close()
		return nil, err
	}

	closed := make([]ast.PredicateSym, 0, len(cfg.Store.ClosedPredicates))
	for _, name := range cfg.Store.ClosedPredicates {
		sym, ok := s.ds.Predicate(name)
		if !ok {
			s.Close()
			return nil, fmt.Errorf("closed predicate %s: %w", name, store.ErrUnknownPredicate)
		}
		closed = append(closed, sym)
	}

	db, err := s.ds.GetDatabase(cfg.Store.WritePartition, closed, cfg.Store.ReadPartitions...)
	if err != nil {
		s.Close()
		return nil, err
	}
	s.db = db

	if cfg.Metrics.Enabled {
		s.registry = prometheus.NewRegistry()
		s.recorder = metrics.NewRecorder(s.registry, cfg.Metrics.Namespace)
	}

	logger.Info("Session opened",
		zap.Int("predicates", len(s.ds.RegisteredPredicates())),
		zap.Strings("partitions", s.ds.PartitionNames()),
		zap.Bool("persistent", s.persistence != nil))
	return s, nil
}

func (s *session) load(ctx context.Context) error {
	if s.persistence != nil {
		if err := s.persistence.LoadInto(ctx, s.ds); err != nil {
			return fmt.Errorf("failed to load %s: %w", s.cfg.Store.DatabasePath, err)
		}
	}
	if path := s.cfg.Store.SchemaPath; path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return fmt.Errorf("failed to read schema: %w", err)
		}
		if err := s.ds.LoadSchemaString(string(data)); err != nil {
			return fmt.Errorf("schema %s: %w", path, err)
		}
	}
	for _, path := range s.cfg.Store.DataFiles {
		if err := s.ds.LoadDataFile(path); err != nil {
			return err
		}
	}
	return nil
}

// writeMetrics prints the collected metrics in Prometheus text format.
func (s *session) writeMetrics(w io.Writer) error {
	if s.registry == nil {
		return fmt.Errorf("metrics are disabled (set metrics.enabled)")
	}
	families, err := s.registry.Gather()
	if err != nil {
		return err
	}
	for _, mf := range families {
		if _, err := expfmt.MetricFamilyToText(w, mf); err != nil {
			return err
		}
	}
	return nil
}

func (s *session) Close() error {
	if s.db != nil {
		s.db.Close()
	}
	if s.persistence != nil {
		return s.persistence.Close()
	}
	return nil
}
