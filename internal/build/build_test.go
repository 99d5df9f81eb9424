package build_test

import (
	"testing"

	"github.com/htmue/purescript-backend-optimizer/internal/analysis"
	"github.com/htmue/purescript-backend-optimizer/internal/build"
	"github.com/htmue/purescript-backend-optimizer/internal/ir"
	"github.com/htmue/purescript-backend-optimizer/internal/testrunner/assert"
)

func ident(s string) *ir.Ident {
	id := ir.Ident(s)
	return &id
}

func qual(mod, name string) ir.Qualified {
	return ir.Qualified{Module: ir.ModuleName(mod), Name: ir.Ident(name)}
}

func litInt(n int64) *ir.Expr {
	return build.LitScalar(ir.Lit[*ir.Expr]{Kind: ir.LitInt, Int: n})
}

// Branch (a): usage absent inlines regardless of complexity or size.
func TestShouldInlineLet_DeadBindingAlwaysInlines(t *testing.T) {
	binding := build.Update(build.Var(qual("M", "r")), nil)
	body := litInt(7)
	assert.True(t, build.ShouldInlineLet(0, binding, body))
}

// Branch (b): Trivial and small inlines regardless of usage count.
func TestShouldInlineLet_TrivialAndSmallAlwaysInlines(t *testing.T) {
	binding := litInt(1)
	x := build.Local(ident("x"), 0)
	body := build.App(build.Var(qual("M", "+")), []*ir.Expr{x, x})
	assert.True(t, build.ShouldInlineLet(0, binding, body))
}

// Branch (c)'s second disjunct: a Deref, uncaptured, small binding (a bare
// free variable) inlines even at count==2, since the table only cares about
// count==1 as an alternative — not a requirement — to being cheap enough to
// duplicate. This is the exact case spec.md §8's "Scenario B" narrates as
// staying un-inlined; the table, taken literally, disagrees (see
// DESIGN.md's Open Question on this).
func TestShouldInlineLet_DerefAndSmallUncapturedInlinesEvenAtCountTwo(t *testing.T) {
	binding := build.Var(qual("M", "y"))
	x := build.Local(ident("x"), 0)
	body := build.App(build.Var(qual("M", "+")), []*ir.Expr{x, x})
	assert.True(t, build.ShouldInlineLet(0, binding, body))
}

// Branch (c), count==1 disjunct: an expensive binding used exactly once
// still inlines even though it fails the Trivial/Deref+small tests.
func TestShouldInlineLet_ExpensiveSingleUseInlines(t *testing.T) {
	binding := build.Update(build.Var(qual("M", "r")), []ir.Prop[*ir.Expr]{{Key: "f", Value: litInt(1)}})
	x := build.Local(ident("x"), 0)
	body := build.App(build.Var(qual("M", "f")), []*ir.Expr{x})
	assert.True(t, build.ShouldInlineLet(0, binding, body))
}

// Branch (c) fails when the binding is expensive AND used more than once
// AND uncaptured: nothing else rescues it, so it must not inline.
func TestShouldInlineLet_ExpensiveMultiUseDoesNotInline(t *testing.T) {
	binding := build.Update(build.Var(qual("M", "r")), []ir.Prop[*ir.Expr]{{Key: "f", Value: litInt(1)}})
	x := build.Local(ident("x"), 0)
	body := build.App(build.Var(qual("M", "+")), []*ir.Expr{x, x})
	assert.False(t, build.ShouldInlineLet(0, binding, body))
}

// Branch (d): a lambda binding with no free-level usages inlines even when
// referenced more than once, since it has nothing to capture. The body is
// deliberately NonTrivial (an Update on its own parameter) so branches
// (a)-(c) all fail first and this isolates branch (d) specifically.
func TestShouldInlineLet_AbsWithNoFreeUsagesInlines(t *testing.T) {
	p := build.Local(ident("p"), 1)
	expensiveBody := build.Update(p, []ir.Prop[*ir.Expr]{{Key: "f", Value: litInt(1)}})
	fn := build.Abs([]ir.Param{{Ident: "p", Level: 1}}, expensiveBody)
	x := build.Local(ident("x"), 0)
	body := build.App(build.Var(qual("M", "call")), []*ir.Expr{x, x})
	assert.True(t, build.ShouldInlineLet(0, fn, body))
}

func TestShouldInlineExternApp_TrivialAndSmallInlines(t *testing.T) {
	a := analysis.Leaf(2, analysis.Trivial)
	assert.True(t, build.ShouldInlineExternApp(a, 1))
}

func TestShouldInlineExternApp_SaturatedButTooLargeDoesNotInline(t *testing.T) {
	a := analysis.Analysis{
		Complexity: analysis.NonTrivial,
		Size:       200,
		Args:       []analysis.ArgShape{analysis.ArgUnknown},
	}
	assert.False(t, build.ShouldInlineExternApp(a, 3))
}

func TestShouldInlineExternApp_SaturatedAndSmallInlines(t *testing.T) {
	a := analysis.Analysis{
		Complexity: analysis.NonTrivial,
		Size:       10,
		Args:       []analysis.ArgShape{analysis.ArgUnknown, analysis.ArgUnknown},
	}
	assert.True(t, build.ShouldInlineExternApp(a, 3))
}

// App merges a nested application spine into a single flat App rather than
// nesting App(App(head, a), b).
func TestApp_MergesNestedSpine(t *testing.T) {
	head := build.Var(qual("M", "f"))
	inner := build.App(head, []*ir.Expr{litInt(1)})
	outer := build.App(inner, []*ir.Expr{litInt(2)})

	syn, ok := outer.Node.(ir.SyntaxExpr)
	assert.True(t, ok)
	app, ok := syn.S.(ir.App[*ir.Expr])
	assert.True(t, ok)
	assert.Len(t, app.Args, 2)
}

// App with no args returns head unchanged rather than wrapping it.
func TestApp_NoArgsReturnsHeadUnchanged(t *testing.T) {
	head := build.Var(qual("M", "f"))
	assert.Equal(t, head, build.App(head, nil))
}

// Abs eta-contracts \x -> (f x) to f when the head is a bare reference.
func TestAbs_EtaContractsToBareHead(t *testing.T) {
	head := build.Var(qual("M", "f"))
	x := build.Local(ident("x"), 0)
	body := build.App(head, []*ir.Expr{x})
	abs := build.Abs([]ir.Param{{Ident: "x", Level: 0}}, body)

	assert.Equal(t, head, abs)
}

// Abs does not eta-contract when the argument is not the bound parameter.
func TestAbs_NoEtaWhenArgumentIsNotTheParameter(t *testing.T) {
	head := build.Var(qual("M", "f"))
	y := build.Var(qual("M", "y"))
	body := build.App(head, []*ir.Expr{y})
	abs := build.Abs([]ir.Param{{Ident: "x", Level: 0}}, body)

	_, ok := abs.Node.(ir.SyntaxExpr)
	assert.True(t, ok)
	assert.NotEqual(t, head, abs)
}

// Abs merges curried lambdas into a single multi-parameter Abs.
func TestAbs_MergesCurriedLambdas(t *testing.T) {
	inner := build.Abs([]ir.Param{{Ident: "y", Level: 1}}, build.Local(ident("y"), 1))
	outer := build.Abs([]ir.Param{{Ident: "x", Level: 0}}, inner)

	syn, ok := outer.Node.(ir.SyntaxExpr)
	assert.True(t, ok)
	abs, ok := syn.S.(ir.Abs[*ir.Expr])
	assert.True(t, ok)
	assert.Len(t, abs.Params, 2)
}

// Branch with no arms collapses to its default.
func TestBranch_NoArmsCollapsesToDefault(t *testing.T) {
	def := litInt(9)
	out := build.Branch(nil, def)
	assert.Equal(t, def, out)
}

// Branch with no arms and no default builds an explicit Fail.
func TestBranch_NoArmsNoDefaultBuildsFail(t *testing.T) {
	out := build.Branch(nil, nil)
	syn, ok := out.Node.(ir.SyntaxExpr)
	assert.True(t, ok)
	_, ok = syn.S.(ir.Fail[*ir.Expr])
	assert.True(t, ok)
}

// Branch flattens when its default is itself a Branch.
func TestBranch_FlattensNestedDefaultBranch(t *testing.T) {
	innerArm := ir.BranchArm[*ir.Expr]{Pred: litInt(1), Body: litInt(2)}
	inner := build.Branch([]ir.BranchArm[*ir.Expr]{innerArm}, litInt(3))
	outerArm := ir.BranchArm[*ir.Expr]{Pred: litInt(4), Body: litInt(5)}
	outer := build.Branch([]ir.BranchArm[*ir.Expr]{outerArm}, inner)

	syn, ok := outer.Node.(ir.SyntaxExpr)
	assert.True(t, ok)
	branch, ok := syn.S.(ir.Branch[*ir.Expr])
	assert.True(t, ok)
	assert.Len(t, branch.Arms, 2)
}

// Update always reports NonTrivial complexity, regardless of how cheap its
// parts are — it's the anchor case for the inline heuristic's "expensive
// binding" tests above.
func TestUpdate_AlwaysNonTrivial(t *testing.T) {
	out := build.Update(build.Var(qual("M", "r")), nil)
	assert.Equal(t, analysis.NonTrivial, out.Analysis().Complexity)
}
