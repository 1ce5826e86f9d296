package main

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"psl/internal/atoms"
	"psl/internal/reasoner/term"
	"psl/internal/rules"
)

var (
	modelPath string
	reweights []string
)

// termsCmd grounds a model into optimization terms
var termsCmd = &cobra.Command{
	Use:   "terms",
	Short: "Generate optimization terms from a rule model",
	Long: `Builds the snapshot, loads the rule model (every literal is resolved
through the snapshot), and generates hinge-loss and linear-constraint terms.

With --reweight, rule weights are changed afterwards and a weight update pass
rewrites the existing terms without regenerating them.

Example:
  psl terms --model model.yaml --reweight symmetry=0.5`,
	Args: cobra.NoArgs,
	RunE: runTerms,
}

func runTerms(cmd *cobra.Command, args []string) error {
	ctx, cancel := commandContext(cmd)
	defer cancel()

	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	path := modelPath
	if path == "" {
		path = cfg.Reasoner.ModelPath
	}
	if path == "" {
		return fmt.Errorf("no rule model (use --model or reasoner.model_path)")
	}
	weights, err := parseReweights(reweights)
	if err != nil {
		return err
	}

	s, err := openSession(ctx, cfg)
	if err != nil {
		return err
	}
	defer s.Close()

	mgr, err := atoms.NewPersistedAtomManager(ctx, s.db, atoms.WithMetrics(s.recorder))
	if err != nil {
		return fmt.Errorf("failed to build snapshot: %w", err)
	}
	model, err := rules.LoadModel(path, mgr)
	if err != nil {
		return err
	}

	gen := term.NewHyperplaneTermGenerator(term.WithMetrics(s.recorder))
	terms := term.NewMemoryTermStore[term.Term]()
	ground := model.GroundRules()

	added, err := gen.GenerateTerms(ground, terms)
	if err != nil {
		return fmt.Errorf("failed to generate terms: %w", err)
	}
	logger.Info("Terms generated", zap.Int("added", added), zap.Int("ground_rules", ground.Size()))

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "snapshot: %d atoms\n", mgr.PersistedAtomCount())
	fmt.Fprintf(out, "ground rules: %d\n", ground.Size())
	fmt.Fprintf(out, "terms: %d added (%d total)\n", added, terms.Size())
	fmt.Fprintf(out, "loss: %.4f\n", term.TotalLoss[term.Term](terms))

	if len(weights) > 0 {
		for _, rw := range weights {
			if err := model.Reweight(rw.rule, rw.weight); err != nil {
				return err
			}
		}
		if err := gen.UpdateWeights(ground, terms); err != nil {
			return fmt.Errorf("failed to update weights: %w", err)
		}
		fmt.Fprintf(out, "reweighted %d rules, loss: %.4f\n", len(weights), term.TotalLoss[term.Term](terms))
	}

	if showMetrics {
		return s.writeMetrics(out)
	}
	return nil
}

type reweight struct {
	rule   string
	weight float64
}

// parseReweights parses rule=weight pairs.
func parseReweights(pairs []string) ([]reweight, error) {
	out := make([]reweight, 0, len(pairs))
	for _, pair := range pairs {
		name, value, ok := strings.Cut(pair, "=")
		if !ok || strings.TrimSpace(name) == "" {
			return nil, fmt.Errorf("invalid --reweight %q (want rule=weight)", pair)
		}
		w, err := strconv.ParseFloat(strings.TrimSpace(value), 64)
		if err != nil {
			return nil, fmt.Errorf("invalid --reweight %q: %w", pair, err)
		}
		out = append(out, reweight{rule: strings.TrimSpace(name), weight: w})
	}
	return out, nil
}
