package ingestion

import (
	"math"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestReadLedgerCSV_Semicolon(t *testing.T) {
	input := "ref_date; INTERVAL ;100;200;SUM_CENTS_PRINCIPAL\n" +
		"2024-01-01;1;3;1;500\n" +
		"2024-01-01;2;x;2;700\n" +
		"2024-01-02;1;4;;100\n"

	l, err := ReadLedgerCSV(strings.NewReader(input), DefaultOptions())
	require.NoError(t, err)

	require.Equal(t, 3, l.Len())
	assert.Equal(t, []int{2, 3}, l.DenominationColumns())
	assert.Equal(t, "INTERVAL", l.Column(1).Label)
	assert.Equal(t, "2024-01-02", l.Key(2))

	iv, ok := l.Interval(1)
	assert.True(t, ok)
	assert.Equal(t, 2, iv)

	assert.True(t, math.IsNaN(l.Value(1, 2)), "non-numeric cell must be NaN")
	assert.True(t, math.IsNaN(l.Value(2, 3)), "empty cell must be NaN")
	assert.Equal(t, 4.0, l.Value(2, 2))

	buckets := l.Buckets()
	require.Len(t, buckets, 2)
	assert.Equal(t, []int{0, 1}, buckets[0].Rows)
}

func TestReadLedgerCSV_SDATEAndComma(t *testing.T) {
	input := "SDATE,50,1000\n20240101,1,0\n20240102,0,2,99\n20240103,5\n"

	l, err := ReadLedgerCSV(strings.NewReader(input), Options{Delimiter: ','})
	require.NoError(t, err)

	require.Equal(t, 3, l.Len())
	assert.Equal(t, "20240102", l.Key(1))
	_, ok := l.Interval(0)
	assert.False(t, ok)
	assert.True(t, math.IsNaN(l.Value(2, 2)), "short rows are padded")
}

func TestReadLedgerCSV_Invalid(t *testing.T) {
	cases := map[string]string{
		"empty":          "",
		"no date column": "day;100\n2024-01-01;1\n",
	}
	for name, input := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := ReadLedgerCSV(strings.NewReader(input), DefaultOptions())
			assert.ErrorIs(t, err, ErrInvalidLedger)
		})
	}
}

func TestReadLedgerCSV_HeaderOnly(t *testing.T) {
	l, err := ReadLedgerCSV(strings.NewReader("ref_date;100\n"), DefaultOptions())
	require.NoError(t, err)
	assert.Equal(t, 0, l.Len())
}

func TestReadLedgerFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "lending.csv")
	require.NoError(t, os.WriteFile(path, []byte("\ufeffref_date;10\n2024-01-01;2\n"), 0o600))

	l, err := ReadLedgerFile(path, DefaultOptions())
	require.NoError(t, err)
	assert.Equal(t, "ref_date", l.Column(0).Label)
	assert.Equal(t, 2.0, l.Value(0, 1))

	_, err = ReadLedgerFile(filepath.Join(t.TempDir(), "missing.csv"), DefaultOptions())
	assert.Error(t, err)
}
