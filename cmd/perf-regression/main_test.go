package main

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const benchOutput = `goos: linux
goarch: amd64
pkg: github.com/MrEthical07/goReset
BenchmarkRequestCode-8          	  300000	      4000 ns/op	     900 B/op	      12 allocs/op
BenchmarkRequestCode-8          	  300000	      4200 ns/op	     900 B/op	      12 allocs/op
BenchmarkVerifyCode-8           	  100000	     12000 ns/op	    3000 B/op	      40 allocs/op
BenchmarkValidateToken-8        	 1000000	      1000 ns/op	     300 B/op	       5 allocs/op
BenchmarkInspectToken-8         	  200000	      8000 ns/op
BenchmarkMetricsIncParallel-8   	90000000	        12 ns/op
BenchmarkUntracked-8            	90000000	        99 ns/op
PASS
`

func writeBench(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "bench.txt")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func TestParseFileKeepsTrackedSamples(t *testing.T) {
	got, err := parseFile(writeBench(t, benchOutput))
	require.NoError(t, err)

	assert.Equal(t, []float64{4000, 4200}, got["BenchmarkRequestCode"]["ns/op"])
	assert.Equal(t, []float64{12, 12}, got["BenchmarkRequestCode"]["allocs/op"])
	assert.NotContains(t, got, "BenchmarkUntracked")
}

func TestCompareFlagsRegression(t *testing.T) {
	base, err := parseFile(writeBench(t, benchOutput))
	require.NoError(t, err)
	cand, err := parseFile(writeBench(t, benchOutput))
	require.NoError(t, err)

	_, failures := compare(base, cand, 0.30)
	assert.Empty(t, failures)

	cand["BenchmarkValidateToken"]["ns/op"] = []float64{2000}
	_, failures = compare(base, cand, 0.30)
	require.Len(t, failures, 1)
	assert.Contains(t, failures[0], "BenchmarkValidateToken ns/op regressed")
}

func TestCompareReportsMissingSamples(t *testing.T) {
	base, err := parseFile(writeBench(t, benchOutput))
	require.NoError(t, err)

	_, failures := compare(base, samples{}, 0.30)
	assert.Len(t, failures, 8)
}

func TestTrimProcsAndMedian(t *testing.T) {
	assert.Equal(t, "BenchmarkX", trimProcs("BenchmarkX-16"))
	assert.Equal(t, "BenchmarkX-y", trimProcs("BenchmarkX-y"))
	assert.Equal(t, 2.0, median([]float64{3, 1, 2}))
	assert.Equal(t, 2.5, median([]float64{4, 1, 2, 3}))
	assert.Zero(t, median(nil))
}
