// Command testrunner runs this module's test suite through
// internal/testrunner, the teacher's own `go test -json` summarizer, kept
// for CI use exactly as in the teacher's cmd/orizon-test.
package main

import (
	"context"
	"flag"
	"os"
	"strings"
	"time"

	"github.com/htmue/purescript-backend-optimizer/internal/testrunner"
)

func main() {
	var (
		packages    = flag.String("packages", "./...", "comma-separated package patterns")
		run         = flag.String("run", "", "regex forwarded to go test -run")
		parallel    = flag.Int("parallel", 0, "number of concurrent packages (default: NumCPU)")
		short       = flag.Bool("short", false, "pass -short to go test")
		race        = flag.Bool("race", false, "pass -race to go test")
		timeout     = flag.Duration("timeout", 10*time.Minute, "pass -timeout to go test")
		jsonOut     = flag.Bool("json", false, "stream raw go test -json events")
		junitPath   = flag.String("junit", "", "write JUnit XML to this path")
		summaryPath = flag.String("summary-json", "", "write a JSON summary to this path")
		retries     = flag.Int("retries", 0, "re-run failing tests up to N times")
		failFast    = flag.Bool("fail-fast", false, "stop at the first failing package")
		listOnly    = flag.Bool("list", false, "list test names without executing them")
	)
	flag.Parse()

	var pkgs []string
	for _, p := range strings.Split(*packages, ",") {
		if p = strings.TrimSpace(p); p != "" {
			pkgs = append(pkgs, p)
		}
	}

	r := testrunner.New(testrunner.Options{
		Packages:    pkgs,
		RunPattern:  *run,
		Parallel:    *parallel,
		JSON:        *jsonOut,
		Short:       *short,
		Race:        *race,
		Timeout:     *timeout,
		JUnitPath:   *junitPath,
		SummaryJSON: *summaryPath,
		Retries:     *retries,
		FailFast:    *failFast,
		ListOnly:    *listOnly,
	})

	res, err := r.Run(context.Background(), os.Stdout)
	if err != nil {
		os.Exit(1)
	}
	if res.Failed > 0 {
		os.Exit(1)
	}
}
