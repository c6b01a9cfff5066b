package cmd

import (
	"github.com/spf13/cobra"
)

var cfgFile string

func NewRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:          "metabench",
		Short:        "Evaluate and compare metagenome pipeline outputs",
		SilenceUsage: true,
	}
	root.PersistentFlags().StringVar(&cfgFile, "config", "metabench.yaml", "config file path")
	root.AddCommand(newEvaluateCmd())
	root.AddCommand(newCompareCmd())
	root.AddCommand(newListCmd())
	root.AddCommand(newReportCmd())
	root.AddCommand(newValidateCmd())
	return root
}
