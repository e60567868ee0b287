// Test report tool for evstore.
//
// Runs benchmarks, fuzz targets or the coverage check and writes a report
// to target/reports/<mode>.txt. Exits non-zero when the run fails.
//
// Usage:
//
//	go run ./scripts/report bench
//	go run ./scripts/report fuzz
//	go run ./scripts/report coverage
//
// BENCH_TIME and FUZZ_TIME override the per-benchmark and per-target
// durations.
package main

import (
	"bytes"
	"fmt"
	"io"
	"log"
	"os"
	"os/exec"
	"path/filepath"
	"regexp"
	"runtime"
	"strconv"
	"strings"
	"time"
)

type fuzzTarget struct {
	Function string
	Package  string
}

var fuzzTargets = []fuzzTarget{
	{Function: "FuzzParseMeasure", Package: "./internal/model/"},
	{Function: "FuzzFormatValue", Package: "./internal/model/"},
	{Function: "FuzzStreamComposer", Package: "./internal/store/"},
	{Function: "FuzzExpandEnvVars", Package: "./internal/config/"},
	{Function: "FuzzParseGroup", Package: "./internal/cli/"},
}

var (
	reExecs          = regexp.MustCompile(`execs:\s+(\d+)\s+\((\d+)/sec\)`)
	reNewInteresting = regexp.MustCompile(`new interesting:\s+(\d+)`)
	reTotalCoverage  = regexp.MustCompile(`(?m)^total:\s+\(statements\)\s+([\d.]+)%`)
)

func main() {
	if len(os.Args) != 2 {
		log.Fatal("usage: report bench|fuzz|coverage")
	}

	root := findProjectRoot()
	reportDir := filepath.Join(root, "target", "reports")
	if err := os.MkdirAll(reportDir, 0o755); err != nil {
		log.Fatalf("creating report directory: %v", err)
	}

	var (
		body string
		ok   bool
	)
	switch mode := os.Args[1]; mode {
	case "bench":
		body, ok = runBench(root)
	case "fuzz":
		body, ok = runFuzzTargets(root)
	case "coverage":
		body, ok = runCoverage(root, reportDir)
	default:
		log.Fatalf("unknown mode %q", mode)
	}

	reportPath := filepath.Join(reportDir, os.Args[1]+".txt")
	if err := os.WriteFile(reportPath, []byte(header(os.Args[1])+body), 0o644); err != nil {
		log.Fatalf("writing report: %v", err)
	}
	fmt.Printf("\nReport: %s\n", reportPath)

	if !ok {
		os.Exit(1)
	}
}

func header(mode string) string {
	var sb strings.Builder
	sep := strings.Repeat("=", 72)
	fmt.Fprintf(&sb, "evstore %s report\n", mode)
	sb.WriteString(sep + "\n")
	fmt.Fprintf(&sb, "Generated:   %s\n", time.Now().Format(time.RFC1123))
	fmt.Fprintf(&sb, "Go Version:  %s\n", captureGoVersion())
	fmt.Fprintf(&sb, "OS/Arch:     %s/%s\n", runtime.GOOS, runtime.GOARCH)
	sb.WriteString(sep + "\n\n")
	return sb.String()
}

// goTest runs go with args in root, echoing its output while capturing it.
func goTest(root string, args ...string) (string, error) {
	cmd := exec.Command("go", args...)
	cmd.Dir = root

	var buf bytes.Buffer
	cmd.Stdout = io.MultiWriter(os.Stdout, &buf)
	cmd.Stderr = io.MultiWriter(os.Stderr, &buf)
	err := cmd.Run()
	return buf.String(), err
}

func runBench(root string) (string, bool) {
	benchTime := envOr("BENCH_TIME", "3s")
	fmt.Printf("Running benchmarks (benchtime=%s)...\n\n", benchTime)

	out, err := goTest(root, "test", "-bench=.", "-benchmem", "-benchtime="+benchTime, "-run=^$", "./internal/...")
	if err != nil {
		out += fmt.Sprintf("\n[ERROR] %v\n", err)
	}
	return out, err == nil
}

func runFuzzTargets(root string) (string, bool) {
	fuzzTime := envOr("FUZZ_TIME", "30s")
	fmt.Printf("Running %d fuzz targets (fuzztime=%s each)...\n\n", len(fuzzTargets), fuzzTime)

	var sb strings.Builder
	thin := strings.Repeat("-", 72)
	fmt.Fprintf(&sb, "  %-32s  %-6s  %12s  %s\n", "Target", "Status", "Execs", "New Corpus")
	sb.WriteString(thin + "\n")

	failures := 0
	var details strings.Builder
	for _, target := range fuzzTargets {
		fmt.Printf("--- %s (%s) ---\n", target.Function, target.Package)
		start := time.Now()
		out, err := goTest(root, "test", "-fuzz=^"+target.Function+"$", "-fuzztime="+fuzzTime, target.Package)

		// The fuzz timer can race test finalization and report "context
		// deadline exceeded"; only a written corpus file is a real failure.
		passed := err == nil ||
			(strings.Contains(out, "context deadline exceeded") && !strings.Contains(out, "Failing input written to"))
		status := "PASS"
		if !passed {
			status = "FAIL"
			failures++
		}
		execs, perSec, interesting := fuzzStats(out)
		fmt.Printf("%s: %s  execs: %d (%d/sec)  new interesting: %d\n\n", status, target.Function, execs, perSec, interesting)
		fmt.Fprintf(&sb, "  %-32s  %-6s  %12d  %d\n", target.Function, status, execs, interesting)

		fmt.Fprintf(&details, "[%s] %s (%s, %s)\n", status, target.Function, target.Package, time.Since(start).Round(time.Millisecond))
		for line := range strings.SplitSeq(strings.TrimRight(out, "\n"), "\n") {
			fmt.Fprintf(&details, "    %s\n", line)
		}
		details.WriteString("\n")
	}
	sb.WriteString(thin + "\n")
	fmt.Fprintf(&sb, "  Failed targets: %d\n\n", failures)

	return sb.String() + details.String(), failures == 0
}

// fuzzStats reads the final progress line of a fuzz run.
func fuzzStats(out string) (execs, perSec int64, interesting int) {
	lines := strings.Split(out, "\n")
	for i := len(lines) - 1; i >= 0; i-- {
		if !strings.HasPrefix(lines[i], "fuzz: elapsed:") {
			continue
		}
		if m := reExecs.FindStringSubmatch(lines[i]); m != nil {
			execs, _ = strconv.ParseInt(m[1], 10, 64)
			perSec, _ = strconv.ParseInt(m[2], 10, 64)
		}
		if m := reNewInteresting.FindStringSubmatch(lines[i]); m != nil {
			interesting, _ = strconv.Atoi(m[1])
		}
		break
	}
	return execs, perSec, interesting
}

// runCoverage checks total coverage against scripts/report/coverage_required.txt
// and ratchets the threshold upward when coverage improves.
func runCoverage(root, reportDir string) (string, bool) {
	thresholdFile := filepath.Join(root, "scripts", "report", "coverage_required.txt")
	required := 0
	if data, err := os.ReadFile(thresholdFile); err == nil {
		v, err := strconv.Atoi(strings.TrimSpace(string(data)))
		if err != nil {
			log.Fatalf("parsing %s: %v", thresholdFile, err)
		}
		required = v
	}

	profile := filepath.Join(reportDir, "coverage.out")
	out, err := goTest(root, "test", "./internal/...", "-count=1", "-race", "-coverprofile="+profile)
	if err != nil {
		return out + fmt.Sprintf("\n[ERROR] tests failed: %v\n", err), false
	}

	funcs, err := exec.Command("go", "tool", "cover", "-func="+profile).Output()
	if err != nil {
		log.Fatalf("generating coverage report: %v", err)
	}
	m := reTotalCoverage.FindSubmatch(funcs)
	if m == nil {
		log.Fatal("total coverage not found in output")
	}
	total, _ := strconv.ParseFloat(string(m[1]), 64)
	got := int(total)

	summary := fmt.Sprintf("Total coverage: %d%%\nRequired:       %d%%\n", got, required)
	fmt.Print(summary)
	if got > required {
		if err := os.WriteFile(thresholdFile, []byte(strconv.Itoa(got)+"\n"), 0o644); err != nil {
			log.Fatalf("updating %s: %v", thresholdFile, err)
		}
		summary += fmt.Sprintf("Threshold raised to %d%%\n", got)
	}
	return summary + "\n" + string(funcs), got >= required
}

func envOr(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func captureGoVersion() string {
	out, err := exec.Command("go", "version").Output()
	if err != nil {
		return "unknown"
	}
	return strings.TrimSpace(string(out))
}

func findProjectRoot() string {
	_, filename, _, ok := runtime.Caller(0)
	if !ok {
		log.Fatal("could not determine script directory")
	}
	dir := filepath.Dir(filename)
	for {
		if _, err := os.Stat(filepath.Join(dir, "go.mod")); err == nil {
			return dir
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			log.Fatal("could not find project root (no go.mod found)")
		}
		dir = parent
	}
}
