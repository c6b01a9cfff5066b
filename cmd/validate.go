package cmd

import (
	"fmt"
	"os"

	"github.com/signalnine/metabench/internal/adapter"
	"github.com/signalnine/metabench/internal/config"
	"github.com/signalnine/metabench/internal/evaluator"
	"github.com/signalnine/metabench/internal/truth"
	"github.com/spf13/cobra"
)

func newValidateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "validate",
		Short: "Check the config without evaluating anything",
		Long:  "Load the config, then check that every adapter is known, every sample output path exists and every ground truth file parses.",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(cfgFile)
			if err != nil {
				return fmt.Errorf("loading config: %w", err)
			}
			problems := checkConfig(cfg, adapter.NewRegistry())
			for _, p := range problems {
				fmt.Printf("  - %s\n", p)
			}
			if len(problems) > 0 {
				return fmt.Errorf("%d problem(s) in %s", len(problems), cfgFile)
			}
			fmt.Printf("%s: ok (%d pipelines)\n", cfgFile, len(cfg.Pipelines))
			return nil
		},
	}
}

// checkConfig reports what would make an evaluate run fail up front.
func checkConfig(cfg *config.Config, reg *adapter.Registry) []string {
	var problems []string
	if _, err := evaluator.New(cfg.EvaluatorOptions()); err != nil {
		problems = append(problems, fmt.Sprintf("evaluation: %v", err))
	}
	checked := map[config.Truth]bool{}
	for _, p := range cfg.Pipelines {
		if !reg.Has(p.Adapter) {
			problems = append(problems, fmt.Sprintf("%s: unknown adapter %q", p.Name, p.Adapter))
		}
		for _, s := range p.Samples {
			if _, err := os.Stat(s.Path); err != nil {
				problems = append(problems, fmt.Sprintf("%s/%s: %v", p.Name, s.ID, err))
			}
			if s.Truth == nil || checked[*s.Truth] {
				continue
			}
			checked[*s.Truth] = true
			if _, err := truth.Load(s.Truth.Binning, s.Truth.Genomes); err != nil {
				problems = append(problems, fmt.Sprintf("%s/%s: ground truth: %v", p.Name, s.ID, err))
			}
		}
	}
	return problems
}
