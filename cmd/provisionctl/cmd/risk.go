package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"provision-risk-lab/internal/metrics"
	"provision-risk-lab/internal/reporting"
	"provision-risk-lab/internal/service"
)

func newRiskCmd() *cobra.Command {
	var (
		provisionsPath string
		riskLevel      float64
		target         float64
	)

	cmd := &cobra.Command{
		Use:   "risk",
		Short: "Convert between risk level and provision on a saved distribution",
		Long: `Look up the provision covering a risk level, or the risk level of a
provision, in a provisions CSV written by "estimate --out". The first line
of the file is the real provision and is excluded from the lookup.

Example:
  provisionctl risk --provisions out/provisions_bootstrap.csv --risk-level 5
  provisionctl risk --provisions out/provisions_bootstrap.csv --provision 125000`,
		RunE: func(cmd *cobra.Command, args []string) error {
			data, err := os.ReadFile(provisionsPath)
			if err != nil {
				return fmt.Errorf("read provisions: %w", err)
			}
			values, err := reporting.ParseProvisionsCSV(string(data))
			if err != nil {
				return err
			}
			if len(values) < 2 {
				return fmt.Errorf("provisions file holds no simulated values")
			}
			simulated := values[1:]

			req := service.RiskRequest{}
			if cmd.Flags().Changed("risk-level") {
				req.Direction = service.DirectionRiskToProvision
				req.RiskLevel = &riskLevel
			} else {
				req.Direction = service.DirectionProvisionToRisk
				req.TargetProvision = &target
			}
			if err := req.Validate(); err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			if req.Direction == service.DirectionRiskToProvision {
				fmt.Fprintf(out, "risk level %.2f%% -> provision %.2f\n", riskLevel, metrics.ProvisionFor(simulated, riskLevel))
				return nil
			}
			fmt.Fprintf(out, "provision %.2f -> risk level %.0f%%\n", target, metrics.RiskLevelFor(simulated, target))
			return nil
		},
	}

	f := cmd.Flags()
	f.StringVarP(&provisionsPath, "provisions", "p", "", "provisions CSV file (required)")
	f.Float64Var(&riskLevel, "risk-level", 0, "risk level in percent, in [0.1, 99.9]")
	f.Float64Var(&target, "provision", 0, "target provision")
	_ = cmd.MarkFlagRequired("provisions")
	cmd.MarkFlagsOneRequired("risk-level", "provision")
	cmd.MarkFlagsMutuallyExclusive("risk-level", "provision")

	return cmd
}
