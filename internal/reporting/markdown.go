package reporting

import (
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"provision-risk-lab/internal/domain"
)

// RenderMarkdown renders report as Markdown string.
func RenderMarkdown(r *Report) string {
	var sb strings.Builder

	// Header
	sb.WriteString("# Provision Report\n\n")
	sb.WriteString(fmt.Sprintf("Generated: %s\n\n", r.GeneratedAt.Format(time.RFC3339)))
	if r.SimulationID != "" {
		sb.WriteString(fmt.Sprintf("Simulation: `%s`\n\n", r.SimulationID))
	}

	// Summary
	sb.WriteString("## Summary\n\n")
	sb.WriteString("| Metric | Value |\n")
	sb.WriteString("|--------|-------|\n")
	sb.WriteString(fmt.Sprintf("| Method | %s |\n", r.Method))
	sb.WriteString(fmt.Sprintf("| Simulations | %d |\n", r.SimulatedCount))
	sb.WriteString(fmt.Sprintf("| Confidence | %s%% |\n", percent(r.Alpha)))
	sb.WriteString(fmt.Sprintf("| Real provision | %s |\n", money(r.RealProvision)))
	sb.WriteString(fmt.Sprintf("| Fallback iterations | %d |\n", r.Fallbacks))
	sb.WriteString("\n")

	// Distribution
	sb.WriteString("## Distribution\n\n")
	if r.Risk.IsEmpty() {
		sb.WriteString("Not enough simulated provisions to compute statistics.\n\n")
		return sb.String()
	}

	sb.WriteString(fmt.Sprintf("Mean %s, standard deviation %s over %d trimmed samples.\n\n",
		money(r.Risk.Mean), money(r.Risk.Std), r.Risk.TrimmedCount))
	if ci := r.Risk.ConfidenceInterval; ci != nil {
		sb.WriteString(fmt.Sprintf("%s%% confidence interval: [%s, %s]\n\n",
			percent(ci.Alpha), money(ci.Lower), money(ci.Upper)))
	}

	sb.WriteString("| Percentile | Provision |\n")
	sb.WriteString("|------------|-----------|\n")
	for _, lvl := range domain.PercentileLevels {
		sb.WriteString(fmt.Sprintf("| %s | %s |\n", lvl.Label, money(r.Risk.Percentiles[lvl.Label])))
	}
	sb.WriteString("\n")

	// Risk levels
	sb.WriteString("## Provision by Risk Level\n\n")
	sb.WriteString("| Risk of shortfall | Required provision |\n")
	sb.WriteString("|-------------------|--------------------|\n")
	for _, row := range r.RiskLevels {
		sb.WriteString(fmt.Sprintf("| %s%% | %s |\n",
			decimal.NewFromFloat(row.RiskLevel).String(), money(row.Provision)))
	}
	sb.WriteString("\n")

	return sb.String()
}

// money rounds to cents half away from zero.
func money(v float64) string {
	return decimal.NewFromFloat(v).Round(2).StringFixed(2)
}

// percent renders a fraction as a percentage without float noise.
func percent(fraction float64) string {
	return decimal.NewFromFloat(fraction).Mul(decimal.NewFromInt(100)).String()
}
