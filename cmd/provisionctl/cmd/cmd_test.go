package cmd

import (
	"bytes"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	lendingCSV = "ref_date;100;500\n" +
		"2024-01-01;4;1\n" +
		"2024-01-02;6;2\n" +
		"2024-01-03;3;0\n" +
		"2024-01-04;8;1\n"
	recoveryCSV = "ref_date;100;500\n" +
		"2024-01-01;1;0\n" +
		"2024-01-02;5;1\n" +
		"2024-01-03;7;2\n" +
		"2024-01-04;2;1\n"
)

func run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	root := NewRootCmd()
	var out, errOut bytes.Buffer
	root.SetOut(&out)
	root.SetErr(&errOut)
	root.SetArgs(args)
	err := root.Execute()
	return out.String(), err
}

func writeLedgers(t *testing.T) (string, string) {
	t.Helper()
	dir := t.TempDir()
	lending := filepath.Join(dir, "lending.csv")
	recovery := filepath.Join(dir, "recovery.csv")
	require.NoError(t, os.WriteFile(lending, []byte(lendingCSV), 0o644))
	require.NoError(t, os.WriteFile(recovery, []byte(recoveryCSV), 0o644))
	return lending, recovery
}

func TestEstimate_WritesOutputs(t *testing.T) {
	nowUTC = func() time.Time { return time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC) }
	t.Cleanup(func() { nowUTC = func() time.Time { return time.Now().UTC() } })

	lending, recovery := writeLedgers(t)
	outDir := filepath.Join(t.TempDir(), "out")

	stdout, err := run(t, "estimate",
		"--lending", lending,
		"--recovery", recovery,
		"--method", "bootstrap",
		"--samples", "30",
		"--seed", "3",
		"--workers", "2",
		"--out", outDir,
	)
	require.NoError(t, err)
	assert.Contains(t, stdout, "1400.00")

	csv, err := os.ReadFile(filepath.Join(outDir, "provisions_bootstrap.csv"))
	require.NoError(t, err)
	lines := strings.Split(strings.TrimSpace(string(csv)), "\n")
	assert.Len(t, lines, 31)
	assert.Equal(t, "1400", lines[0])

	for _, name := range []string{"report.md", "report.html"} {
		info, err := os.Stat(filepath.Join(outDir, name))
		require.NoError(t, err, name)
		assert.Positive(t, info.Size(), name)
	}

	// Same seed and workers reproduce the distribution.
	again := filepath.Join(t.TempDir(), "again")
	_, err = run(t, "estimate", "--lending", lending, "--recovery", recovery,
		"--method", "bootstrap", "--samples", "30", "--seed", "3", "--workers", "2", "--out", again)
	require.NoError(t, err)
	csv2, err := os.ReadFile(filepath.Join(again, "provisions_bootstrap.csv"))
	require.NoError(t, err)
	assert.Equal(t, string(csv), string(csv2))
}

func TestEstimate_Errors(t *testing.T) {
	lending, recovery := writeLedgers(t)

	cases := []struct {
		name string
		args []string
	}{
		{"missing recovery flag", []string{"estimate", "--lending", lending}},
		{"unknown method", []string{"estimate", "--lending", lending, "--recovery", recovery, "--method", "jackknife"}},
		{"too few samples", []string{"estimate", "--lending", lending, "--recovery", recovery, "--samples", "5"}},
		{"bad delimiter", []string{"estimate", "--lending", lending, "--recovery", recovery, "--delimiter", ";;"}},
		{"missing file", []string{"estimate", "--lending", lending + ".nope", "--recovery", recovery}},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := run(t, tc.args...)
			assert.Error(t, err)
		})
	}
}

func TestRisk(t *testing.T) {
	var sb strings.Builder
	sb.WriteString("999\n")
	for i := 1; i <= 101; i++ {
		sb.WriteString(strconv.Itoa(i) + "\n")
	}
	path := filepath.Join(t.TempDir(), "provisions.csv")
	require.NoError(t, os.WriteFile(path, []byte(sb.String()), 0o644))

	out, err := run(t, "risk", "--provisions", path, "--risk-level", "5")
	require.NoError(t, err)
	assert.Equal(t, "risk level 5.00% -> provision 95.10\n", out)

	out, err = run(t, "risk", "--provisions", path, "--provision", "95.1")
	require.NoError(t, err)
	assert.Equal(t, "provision 95.10 -> risk level 5%\n", out)

	_, err = run(t, "risk", "--provisions", path)
	assert.Error(t, err)

	_, err = run(t, "risk", "--provisions", path, "--risk-level", "5", "--provision", "1")
	assert.Error(t, err)

	_, err = run(t, "risk", "--provisions", path, "--risk-level", "120")
	assert.Error(t, err)
}

func TestToken(t *testing.T) {
	t.Setenv("JWT_SECRET", "")
	_, err := run(t, "token", "--subject", "alice")
	assert.Error(t, err)

	t.Setenv("JWT_SECRET", "s3cret")
	out, err := run(t, "token", "--subject", "alice")
	require.NoError(t, err)
	assert.Len(t, strings.Split(strings.TrimSpace(out), "."), 3)
}
