package cmd

import (
	"fmt"
	"strings"

	"github.com/signalnine/metabench/internal/adapter"
	"github.com/signalnine/metabench/internal/config"
	"github.com/spf13/cobra"
)

func newListCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List configured pipelines, samples and available adapters",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(cfgFile)
			if err != nil {
				return err
			}
			fmt.Println("Pipelines:")
			for _, p := range cfg.Pipelines {
				fmt.Printf("  - %s (adapter: %s)\n", p.Name, p.Adapter)
				for _, s := range p.Samples {
					truthNote := ""
					if s.Truth != nil {
						truthNote = " [ground truth]"
					}
					fmt.Printf("      %s: %s%s\n", s.ID, s.Path, truthNote)
				}
			}
			fmt.Printf("\nAdapters: %s\n", strings.Join(adapter.NewRegistry().Names(), ", "))
			return nil
		},
	}
}
