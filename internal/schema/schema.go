// Package schema gates the version of the per-module IR payload and
// directive map this core accepts (§6 Input), following the same
// constraint-checking pattern the teacher's internal/packagemanager/resolver.go
// uses for dependency versions.
package schema

import (
	"fmt"

	semver "github.com/Masterminds/semver/v3"
)

// Constraint is the schema-version range this build of the core
// understands. It widens only on a deliberate, reviewed bump; a declared
// version outside it means the caller's payload was produced by a schema
// this core cannot safely interpret.
const Constraint = ">=0.1.0, <1.0.0"

var constraint = mustConstraint(Constraint)

func mustConstraint(expr string) *semver.Constraints {
	c, err := semver.NewConstraint(expr)
	if err != nil {
		panic(err)
	}
	return c
}

// Compatible reports whether declared satisfies Constraint. It fails fast
// with a clear message rather than letting a schema drift surface as a
// confusing panic three layers down in eval.
func Compatible(declared string) error {
	v, err := semver.NewVersion(declared)
	if err != nil {
		return fmt.Errorf("schema: invalid version %q: %w", declared, err)
	}
	if !constraint.Check(v) {
		return fmt.Errorf("schema: version %s does not satisfy %s", v, constraint)
	}
	return nil
}
