package main

import (
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

// importCmd loads data files into the SQLite database
var importCmd = &cobra.Command{
	Use:   "import [data-file...]",
	Short: "Import YAML data files into the configured database",
	Long: `Loads the configured store plus the given YAML data files and writes the
predicate registry and every partition to store.database_path.

Example:
  PSL_DB=data/psl.db psl import observations.yaml targets.yaml`,
	Args: cobra.MinimumNArgs(1),
	RunE: runImport,
}

func runImport(cmd *cobra.Command, args []string) error {
	ctx, cancel := commandContext(cmd)
	defer cancel()

	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	if !cfg.HasPersistence() {
		return fmt.Errorf("import needs store.database_path (or PSL_DB)")
	}

	s, err := openSession(ctx, cfg)
	if err != nil {
		return err
	}
	defer s.Close()

	for _, path := range args {
		if err := s.ds.LoadDataFile(path); err != nil {
			return err
		}
		logger.Info("Loaded data file", zap.String("path", path))
	}
	if err := s.ds.Persist(ctx); err != nil {
		return fmt.Errorf("failed to persist: %w", err)
	}

	out := cmd.OutOrStdout()
	for _, name := range s.ds.PartitionNames() {
		fmt.Fprintf(out, "%s: %d atoms\n", name, s.ds.Partition(name).Size())
	}
	fmt.Fprintf(out, "imported into %s\n", s.persistence.Path())
	return nil
}
