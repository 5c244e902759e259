package cmd

import (
	"github.com/spf13/cobra"
)

// NewRootCmd builds the provisionctl command tree.
func NewRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "provisionctl",
		Short: "Estimate lending provisions from resampled cash flows",
		Long: `provisionctl runs provision estimations locally.

It provides tools for:
  - Estimating the provision distribution of a lending/recovery ledger pair
  - Converting between risk levels and provisions on a saved distribution
  - Issuing bearer tokens for the API server`,
		SilenceUsage: true,
	}

	root.AddCommand(newEstimateCmd(), newRiskCmd(), newTokenCmd())
	return root
}

// Execute runs the root command with os.Args.
func Execute() error {
	return NewRootCmd().Execute()
}
