// Command coreopt drives the optimizer end to end: load a module+directive
// fixture, gate its declared schema version, run the fixed-point
// eval/quote loop to a stable term, freeze it, and print the result.
// Flags follow the teacher's own house style across its cmd/* entry
// points: plain stdlib flag, no CLI framework.
package main

import (
	"flag"
	"fmt"
	"log"
	"os"

	"github.com/htmue/purescript-backend-optimizer/internal/extern"
	"github.com/htmue/purescript-backend-optimizer/internal/ir"
	"github.com/htmue/purescript-backend-optimizer/internal/optimize"
	"github.com/htmue/purescript-backend-optimizer/internal/schema"
	"github.com/htmue/purescript-backend-optimizer/internal/semantics"
	"github.com/htmue/purescript-backend-optimizer/internal/watch"
)

var (
	version = "0.1.0"
)

func main() {
	var (
		showVersion = flag.Bool("version", false, "show version information")
		showHelp    = flag.Bool("help", false, "show help information")
		watchMode   = flag.Bool("watch", false, "re-run whenever the fixture file changes")
		maxIter     = flag.Int("max-iterations", 0, "override the fixed-point iteration cap (0: fixture/default)")
	)
	flag.Parse()

	if *showVersion {
		fmt.Printf("coreopt v%s\n", version)
		return
	}
	if *showHelp {
		showUsage()
		return
	}

	args := flag.Args()
	if len(args) == 0 {
		fmt.Fprintln(os.Stderr, "Error: no fixture file specified")
		showUsage()
		os.Exit(1)
	}
	path := args[0]

	if err := runOnce(path, *maxIter); err != nil {
		log.Fatalf("coreopt: %v", err)
	}
	if !*watchMode {
		return
	}

	w, err := watch.New()
	if err != nil {
		log.Fatalf("coreopt: watch: %v", err)
	}
	defer w.Close()
	if err := w.Add(path); err != nil {
		log.Fatalf("coreopt: watch: %v", err)
	}
	fmt.Fprintf(os.Stderr, "watching %s for changes\n", path)
	for {
		select {
		case ev := <-w.Events():
			if ev.Op&(watch.OpWrite|watch.OpCreate) == 0 {
				continue
			}
			if err := runOnce(path, *maxIter); err != nil {
				fmt.Fprintf(os.Stderr, "coreopt: %v\n", err)
			}
		case err := <-w.Errors():
			fmt.Fprintf(os.Stderr, "coreopt: watch error: %v\n", err)
		}
	}
}

func runOnce(path string, maxIter int) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read fixture: %w", err)
	}
	fixture, err := loadFixture(data)
	if err != nil {
		return err
	}
	if err := schema.Compatible(fixture.SchemaVersion); err != nil {
		return err
	}

	expr, table, directives, err := parseModule(fixture)
	if err != nil {
		return fmt.Errorf("parse fixture: %w", err)
	}

	resolver := extern.Resolver{Lookup: table, Directives: directives}
	env := &semantics.Env{Module: ir.ModuleName(fixture.Module), EvalExtern: resolver.Resolve}

	opts := optimize.Options{MaxIterations: maxIter}
	if opts.MaxIterations == 0 {
		opts.MaxIterations = fixture.MaxIterations
	}

	result, diag := optimize.Optimize(env, expr, opts)
	frozen := optimize.Freeze(result)

	fmt.Println(ir.PrintNeutral(frozen))
	fmt.Fprintf(os.Stderr, "iterations: %d overrun: %t\n", diag.Iterations, diag.Overrun)
	return nil
}

func showUsage() {
	fmt.Println("coreopt - optimizing NbE middle-end driver")
	fmt.Println()
	fmt.Println("USAGE:")
	fmt.Println("    coreopt [OPTIONS] <FIXTURE_FILE>")
	fmt.Println()
	fmt.Println("OPTIONS:")
	fmt.Println("    -version          Show version information")
	fmt.Println("    -help             Show this help message")
	fmt.Println("    -watch            Re-run whenever the fixture file changes")
	fmt.Println("    -max-iterations   Override the fixed-point iteration cap")
}
