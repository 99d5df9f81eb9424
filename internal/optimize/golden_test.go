package optimize_test

import (
	"os"
	"testing"

	"github.com/htmue/purescript-backend-optimizer/internal/build"
	"github.com/htmue/purescript-backend-optimizer/internal/ir"
	"github.com/htmue/purescript-backend-optimizer/internal/testrunner"
	"github.com/htmue/purescript-backend-optimizer/internal/testrunner/assert"
)

// TestGolden_CurriedAbsMergesAndInlines snapshots Scenario D's frozen output
// against a stored .snap file under testdata/snapshots, using
// internal/testrunner's SnapshotManager. Set UPDATE_SNAPSHOTS=1 to record a
// fresh snapshot after a deliberate change to the frozen output format.
func TestGolden_CurriedAbsMergesAndInlines(t *testing.T) {
	x := build.Local(ident("x"), 0)
	y := build.Local(ident("y"), 1)
	sum := build.App(build.Var(qual("M", "+")), []*ir.Expr{x, y})
	inner := build.Abs([]ir.Param{{Ident: "y", Level: 1}}, sum)
	outer := build.Abs([]ir.Param{{Ident: "x", Level: 0}}, inner)
	applied := build.App(outer, []*ir.Expr{litInt(1)})
	expr := build.App(applied, []*ir.Expr{litInt(2)})

	out := runFreeze(t, expr)

	sm := testrunner.NewSnapshotManager(testrunner.SnapshotOptions{
		BaseDir: "testdata/snapshots",
		Update:  os.Getenv("UPDATE_SNAPSHOTS") != "",
	})
	ok, err := sm.VerifySnapshot("curried_abs_merges_and_inlines", out)
	assert.NoError(t, err)
	assert.True(t, ok)
}
