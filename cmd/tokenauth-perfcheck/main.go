// Command tokenauth-perfcheck compares two `go test -bench` outputs and fails
// when a tracked benchmark regresses past the threshold.
//
//	go test -run '^$' -bench . -count 5 ./ > base.txt
//	go test -run '^$' -bench . -count 5 ./ > head.txt
//	go run ./cmd/tokenauth-perfcheck -baseline base.txt -candidate head.txt
package main

import (
	"bufio"
	"flag"
	"fmt"
	"io"
	"os"
	"slices"
	"strconv"
	"strings"
	"text/tabwriter"
)

const defaultThreshold = 0.30

// rule is one tracked benchmark unit. Units marked exact may not grow at all:
// an allocation added to the gate path is a regression whatever its cost.
type rule struct {
	benchmark string
	unit      string
	exact     bool
}

var rules = []rule{
	{"BenchmarkRefresh", "ns/op", false},
	{"BenchmarkRevoke", "ns/op", false},
	{"BenchmarkValidateStateless", "allocs/op", true},
	{"BenchmarkValidateStateless", "ns/op", false},
	{"BenchmarkValidateStrict", "allocs/op", true},
	{"BenchmarkValidateStrict", "ns/op", false},
}

func tracked(name string) bool {
	return slices.ContainsFunc(rules, func(r rule) bool { return r.benchmark == name })
}

// sampleSet maps benchmark name to unit to observed values.
type sampleSet map[string]map[string][]float64

type comparison struct {
	benchmark string
	metric    string
	baseline  float64
	candidate float64
	delta     float64
}

func main() {
	os.Exit(run(os.Args[1:], os.Stdout, os.Stderr))
}

func run(args []string, stdout, stderr io.Writer) int {
	fs := flag.NewFlagSet("tokenauth-perfcheck", flag.ContinueOnError)
	fs.SetOutput(stderr)
	baselinePath := fs.String("baseline", "", "path to baseline benchmark output")
	candidatePath := fs.String("candidate", "", "path to candidate benchmark output")
	threshold := fs.Float64("threshold", defaultThreshold, "maximum allowed regression ratio (0.30 = +30%)")
	if err := fs.Parse(args); err != nil {
		return 2
	}
	if *baselinePath == "" || *candidatePath == "" {
		fmt.Fprintln(stderr, "-baseline and -candidate are required")
		return 2
	}
	if *threshold < 0 {
		fmt.Fprintln(stderr, "-threshold must be >= 0")
		return 2
	}

	baseline, err := parseBenchmarkFile(*baselinePath)
	if err != nil {
		fmt.Fprintf(stderr, "parse baseline: %v\n", err)
		return 1
	}
	candidate, err := parseBenchmarkFile(*candidatePath)
	if err != nil {
		fmt.Fprintf(stderr, "parse candidate: %v\n", err)
		return 1
	}

	rows, failures := compare(baseline, candidate, *threshold)
	tw := tabwriter.NewWriter(stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "benchmark\tmetric\tbaseline\tcandidate\tdelta")
	for _, r := range rows {
		fmt.Fprintf(tw, "%s\t%s\t%.3f\t%.3f\t%+0.2f%%\n", r.benchmark, r.metric, r.baseline, r.candidate, r.delta*100)
	}
	tw.Flush()

	if len(failures) == 0 {
		return 0
	}
	fmt.Fprintln(stderr, "performance regression threshold exceeded:")
	for _, f := range failures {
		fmt.Fprintf(stderr, "  - %s\n", f)
	}
	return 1
}

// compare checks every rule by median, in rule order.
func compare(baseline, candidate sampleSet, threshold float64) ([]comparison, []string) {
	var (
		rows     []comparison
		failures []string
	)
	for _, r := range rules {
		base, cand := baseline[r.benchmark][r.unit], candidate[r.benchmark][r.unit]
		if len(base) == 0 || len(cand) == 0 {
			failures = append(failures, fmt.Sprintf("missing samples for %s %s", r.benchmark, r.unit))
			continue
		}

		c := comparison{benchmark: r.benchmark, metric: r.unit, baseline: median(base), candidate: median(cand)}
		if c.baseline > 0 {
			c.delta = (c.candidate - c.baseline) / c.baseline
		}
		rows = append(rows, c)

		switch {
		case r.exact && c.candidate > c.baseline:
			failures = append(failures, fmt.Sprintf("%s %s rose from %.0f to %.0f", r.benchmark, r.unit, c.baseline, c.candidate))
		case !r.exact && c.baseline > 0 && c.delta > threshold:
			failures = append(failures, fmt.Sprintf("%s %s regressed by %+0.2f%% (limit %+0.2f%%)", r.benchmark, r.unit, c.delta*100, threshold*100))
		}
	}
	return rows, failures
}

func parseBenchmarkFile(path string) (sampleSet, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return parseBenchmarks(f)
}

// parseBenchmarks reads result lines of the form
// "BenchmarkX-8  N  v1 unit1  v2 unit2 ...", keeping tracked benchmarks only.
func parseBenchmarks(r io.Reader) (sampleSet, error) {
	samples := sampleSet{}
	sc := bufio.NewScanner(r)
	for sc.Scan() {
		fields := strings.Fields(sc.Text())
		if len(fields) < 4 || !strings.HasPrefix(fields[0], "Benchmark") {
			continue
		}
		name := normalizeBenchmarkName(fields[0])
		if !tracked(name) {
			continue
		}
		units := samples[name]
		if units == nil {
			units = map[string][]float64{}
			samples[name] = units
		}
		for i := 2; i+1 < len(fields); i += 2 {
			v, err := strconv.ParseFloat(fields[i], 64)
			if err != nil {
				continue
			}
			units[fields[i+1]] = append(units[fields[i+1]], v)
		}
	}
	return samples, sc.Err()
}

// normalizeBenchmarkName strips the -GOMAXPROCS suffix.
func normalizeBenchmarkName(raw string) string {
	base, procs, ok := cutLast(raw, "-")
	if !ok {
		return raw
	}
	if _, err := strconv.Atoi(procs); err != nil {
		return raw
	}
	return base
}

func cutLast(s, sep string) (before, after string, found bool) {
	i := strings.LastIndex(s, sep)
	if i <= 0 {
		return s, "", false
	}
	return s[:i], s[i+len(sep):], true
}

func median(values []float64) float64 {
	if len(values) == 0 {
		return 0
	}
	sorted := slices.Sorted(slices.Values(values))
	mid := len(sorted) / 2
	if len(sorted)%2 == 1 {
		return sorted[mid]
	}
	return (sorted[mid-1] + sorted[mid]) / 2
}
