package reporting

import (
	"strconv"
	"strings"
)

// RenderProvisionsCSV renders one provision per line, real provision first.
func RenderProvisionsCSV(values []float64) string {
	var sb strings.Builder
	for _, v := range values {
		sb.WriteString(strconv.FormatFloat(v, 'f', -1, 64))
		sb.WriteString("\n")
	}
	return sb.String()
}

// ParseProvisionsCSV reads the output of RenderProvisionsCSV.
// Blank lines are skipped.
func ParseProvisionsCSV(data string) ([]float64, error) {
	var values []float64
	for _, line := range strings.Split(data, "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		v, err := strconv.ParseFloat(line, 64)
		if err != nil {
			return nil, err
		}
		values = append(values, v)
	}
	return values, nil
}
