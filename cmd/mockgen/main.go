// Command mockgen wraps internal/testrunner/mockgen, the teacher's
// go/packages-based mock generator, defaulted to this module's own
// extern.LookupFunc seam.
package main

import (
	"flag"
	"fmt"
	"os"
	"strings"

	"github.com/htmue/purescript-backend-optimizer/internal/testrunner/mockgen"
)

func main() {
	var (
		iface   = flag.String("interface", "LookupFunc", "interface name to mock")
		genPkg  = flag.String("pkg", "", "generated package name (default: <src pkg>mock)")
		out     = flag.String("out", "", "destination file path (writes to file when set)")
		sources = flag.String("source", "./internal/extern/...", "source package patterns (comma-separated)")
		tags    = flag.String("tags", "", "build tags (comma-separated)")
	)
	flag.Parse()

	if strings.TrimSpace(*iface) == "" {
		fmt.Fprintln(os.Stderr, "Error: -interface is required")
		flag.Usage()
		os.Exit(2)
	}

	var src []string
	for _, p := range strings.Split(*sources, ",") {
		if p = strings.TrimSpace(p); p != "" {
			src = append(src, p)
		}
	}
	var buildTags []string
	for _, t := range strings.Split(*tags, ",") {
		if t = strings.TrimSpace(t); t != "" {
			buildTags = append(buildTags, t)
		}
	}

	code, err := mockgen.Generate(mockgen.GenOptions{
		InterfaceName:  *iface,
		PackageName:    *genPkg,
		Destination:    *out,
		SourcePatterns: src,
		BuildTags:      buildTags,
	})
	if err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
	if *out == "" {
		fmt.Print(code)
		return
	}
	fmt.Println("Mock generated:", *out)
}
