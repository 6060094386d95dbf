// Command perf-regression compares two `go test -bench` outputs and fails
// when a tracked benchmark got slower than the allowed ratio.
//
//	go test -run '^$' -bench . -count 5 . > base.txt
//	go run ./cmd/perf-regression -baseline base.txt -candidate head.txt
package main

import (
	"bufio"
	"flag"
	"fmt"
	"os"
	"sort"
	"strconv"
	"strings"
)

const defaultThreshold = 0.30

// tracked lists the hot-path benchmarks and the units compared for each.
var tracked = map[string][]string{
	"BenchmarkRequestCode":        {"ns/op", "allocs/op"},
	"BenchmarkVerifyCode":         {"ns/op", "allocs/op"},
	"BenchmarkValidateToken":      {"ns/op", "allocs/op"},
	"BenchmarkInspectToken":       {"ns/op"},
	"BenchmarkMetricsIncParallel": {"ns/op"},
}

// samples maps benchmark name to unit to observed values.
type samples map[string]map[string][]float64

type comparison struct {
	benchmark string
	unit      string
	base      float64
	candidate float64
}

func (c comparison) delta() float64 {
	return (c.candidate - c.base) / c.base
}

func main() {
	var (
		baselinePath  = flag.String("baseline", "", "path to baseline benchmark output")
		candidatePath = flag.String("candidate", "", "path to candidate benchmark output")
		threshold     = flag.Float64("threshold", defaultThreshold, "maximum allowed regression ratio (0.30 = +30%)")
	)
	flag.Parse()

	if *baselinePath == "" || *candidatePath == "" {
		fmt.Fprintln(os.Stderr, "-baseline and -candidate are required")
		os.Exit(2)
	}
	if *threshold < 0 {
		fmt.Fprintln(os.Stderr, "-threshold must be >= 0")
		os.Exit(2)
	}

	baseline, err := parseFile(*baselinePath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "parse baseline: %v\n", err)
		os.Exit(1)
	}
	candidate, err := parseFile(*candidatePath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "parse candidate: %v\n", err)
		os.Exit(1)
	}

	results, failures := compare(baseline, candidate, *threshold)

	fmt.Printf("%-30s %-10s %12s %12s %9s\n", "benchmark", "unit", "baseline", "candidate", "delta")
	for _, r := range results {
		fmt.Printf("%-30s %-10s %12.1f %12.1f %+8.2f%%\n", r.benchmark, r.unit, r.base, r.candidate, r.delta()*100)
	}

	if len(failures) > 0 {
		fmt.Fprintln(os.Stderr, "performance regression threshold exceeded:")
		for _, f := range failures {
			fmt.Fprintf(os.Stderr, "  - %s\n", f)
		}
		os.Exit(1)
	}
}

func compare(baseline, candidate samples, threshold float64) ([]comparison, []string) {
	names := make([]string, 0, len(tracked))
	for name := range tracked {
		names = append(names, name)
	}
	sort.Strings(names)

	var (
		results  []comparison
		failures []string
	)
	for _, name := range names {
		for _, unit := range tracked[name] {
			base, cand := baseline[name][unit], candidate[name][unit]
			if len(base) == 0 || len(cand) == 0 {
				failures = append(failures, fmt.Sprintf("missing samples for %s %s", name, unit))
				continue
			}

			c := comparison{benchmark: name, unit: unit, base: median(base), candidate: median(cand)}
			if c.base <= 0 {
				// allocs/op of zero cannot regress by ratio; any allocation fails.
				if c.candidate > 0 {
					failures = append(failures, fmt.Sprintf("%s %s went from 0 to %.1f", name, unit, c.candidate))
				}
				continue
			}
			results = append(results, c)
			if c.delta() > threshold {
				failures = append(failures, fmt.Sprintf("%s %s regressed by %+0.2f%% (limit %+0.2f%%)",
					name, unit, c.delta()*100, threshold*100))
			}
		}
	}
	return results, failures
}

func parseFile(path string) (samples, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer file.Close()

	out := samples{}
	scanner := bufio.NewScanner(file)
	for scanner.Scan() {
		fields := strings.Fields(scanner.Text())
		if len(fields) < 4 || !strings.HasPrefix(fields[0], "Benchmark") {
			continue
		}

		name := trimProcs(fields[0])
		if _, ok := tracked[name]; !ok {
			continue
		}
		if out[name] == nil {
			out[name] = map[string][]float64{}
		}

		// fields[1] is the iteration count; the rest are value/unit pairs.
		for i := 2; i+1 < len(fields); i += 2 {
			value, err := strconv.ParseFloat(fields[i], 64)
			if err != nil {
				continue
			}
			out[name][fields[i+1]] = append(out[name][fields[i+1]], value)
		}
	}
	return out, scanner.Err()
}

// trimProcs drops the -GOMAXPROCS suffix go test appends.
func trimProcs(raw string) string {
	if idx := strings.LastIndexByte(raw, '-'); idx > 0 {
		if _, err := strconv.Atoi(raw[idx+1:]); err == nil {
			return raw[:idx]
		}
	}
	return raw
}

func median(values []float64) float64 {
	if len(values) == 0 {
		return 0
	}
	sorted := append([]float64(nil), values...)
	sort.Float64s(sorted)

	mid := len(sorted) / 2
	if len(sorted)%2 == 1 {
		return sorted[mid]
	}
	return (sorted[mid-1] + sorted[mid]) / 2
}
