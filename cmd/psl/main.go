package main

import (
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"psl/internal/config"
	"psl/internal/logging"
)

var (
	// Global flags
	verbose    bool
	configPath string
	timeout    time.Duration

	// Logger
	logger *zap.Logger
)

// rootCmd represents the base command
var rootCmd = &cobra.Command{
	Use:   "psl",
	Short: "psl - snapshot random-variable atoms and generate optimization terms",
	Long: `psl loads predicates and partitions into a data store, snapshots every
random-variable atom reachable through open predicates, and converts ground
rules into hinge-loss and linear-constraint terms for a consensus solver.

Atoms outside the snapshot are refused, so the solver's variable set is fixed
once the snapshot is taken.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		// Initialize logger
		zcfg := zap.NewProductionConfig()
		if verbose {
			zcfg.Level = zap.NewAtomicLevelAt(zapcore.DebugLevel)
		}
		var err error
		logger, err = zcfg.Build()
		if err != nil {
			return fmt.Errorf("failed to initialize logger: %w", err)
		}

		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		logging.InitializeWithLogger(logger, cfg.Logging.ToLogging())
		if err := logging.InitAudit(cfg.Logging.AuditFile); err != nil {
			return err
		}
		logging.Boot("psl %s starting (config %s)", cfg.Version, configPath)
		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		logging.CloseAudit()
		_ = logging.Sync()
	},
}

func init() {
	// Global flags
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Enable verbose logging")
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "psl.yaml", "Configuration file")
	rootCmd.PersistentFlags().DurationVar(&timeout, "timeout", 5*time.Minute, "Operation timeout")

	snapshotCmd.Flags().BoolVar(&showMetrics, "metrics", false, "Print collected metrics after the command")
	atomCmd.Flags().BoolVar(&simpleManager, "simple", false, "Resolve without snapshot enforcement")
	termsCmd.Flags().StringVar(&modelPath, "model", "", "Rule model file (default: reasoner.model_path)")
	termsCmd.Flags().StringSliceVar(&reweights, "reweight", nil, "Set rule=weight and run a weight update pass")
	termsCmd.Flags().BoolVar(&showMetrics, "metrics", false, "Print collected metrics after the command")

	// Add commands to root
	rootCmd.AddCommand(snapshotCmd)
	rootCmd.AddCommand(atomCmd)
	rootCmd.AddCommand(termsCmd)
	rootCmd.AddCommand(importCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// loadConfig loads and validates the configuration named by --config.
func loadConfig() (*config.Config, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config %s: %w", configPath, err)
	}
	return cfg, nil
}
