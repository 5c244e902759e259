package domain

// PercentileLevels are the fixed quantiles reported for every distribution.
var PercentileLevels = []struct {
	Label string
	Level float64
}{
	{"1%", 1},
	{"2.5%", 2.5},
	{"5%", 5},
	{"25%", 25},
	{"50%", 50},
	{"75%", 75},
	{"95%", 95},
	{"97.5%", 97.5},
	{"99%", 99},
}

// ConfidenceInterval is a two-sided symmetric interval at confidence Alpha.
type ConfidenceInterval struct {
	Lower float64 `json:"lower"`
	Upper float64 `json:"upper"`
	Alpha float64 `json:"alpha"`
}

// RiskMetrics summarises a trimmed provision distribution.
// An empty snapshot (no percentiles, nil interval) means there were too few
// samples, not that every statistic was zero.
type RiskMetrics struct {
	Percentiles        map[string]float64  `json:"percentiles"`
	ConfidenceInterval *ConfidenceInterval `json:"confidence_interval"`
	Mean               float64             `json:"mean"`
	Std                float64             `json:"std"`
	TrimmedCount       int                 `json:"trimmed_count"`
}

// EmptyRiskMetrics returns the snapshot used when statistics are undefined.
func EmptyRiskMetrics() *RiskMetrics {
	return &RiskMetrics{Percentiles: map[string]float64{}}
}

// IsEmpty reports whether the snapshot carries no statistics.
func (m *RiskMetrics) IsEmpty() bool {
	return m == nil || len(m.Percentiles) == 0
}
