// Package build implements the smart constructors every quoted IR node
// passes through (§4.2): associativity/eta rewrites, and the two inlining
// heuristics that decide whether a Let or an extern application collapses
// into its use site.
package build

import (
	"github.com/htmue/purescript-backend-optimizer/internal/analysis"
	"github.com/htmue/purescript-backend-optimizer/internal/ir"
)

func leaf(size int, c analysis.Complexity) analysis.Analysis {
	return analysis.Leaf(size, c)
}

// Var builds a free-reference node.
func Var(qual ir.Qualified) *ir.Expr {
	return ir.NewSyntax(leaf(1, analysis.Deref), ir.Var[*ir.Expr]{Qual: qual})
}

// Local builds a bound-reference node and records the corresponding usage.
func Local(ident *ir.Ident, level ir.Level) *ir.Expr {
	a := analysis.Combine(leaf(1, analysis.Trivial), analysis.Use(level, false))
	return ir.NewSyntax(a, ir.Local[*ir.Expr]{Ident: ident, Level: level})
}

// LitScalar builds a scalar literal (everything but array/record).
func LitScalar(lit ir.Lit[*ir.Expr]) *ir.Expr {
	return ir.NewSyntax(leaf(1, analysis.Trivial), ir.LitNode[*ir.Expr]{Lit: lit})
}

// LitCompound builds an array or record literal, whose complexity and
// usages derive from its already-quoted children.
func LitCompound(lit ir.Lit[*ir.Expr]) *ir.Expr {
	a := leaf(1, analysis.KnownSize)
	for _, e := range lit.Array {
		a = analysis.Combine(a, e.Analysis())
	}
	for _, f := range lit.Record {
		a = analysis.Combine(a, f.Value.Analysis())
	}
	return ir.NewSyntax(a, ir.LitNode[*ir.Expr]{Lit: lit})
}

// App merges a nested application spine and otherwise builds a plain App.
func App(head *ir.Expr, args []*ir.Expr) *ir.Expr {
	if len(args) == 0 {
		return head
	}
	if syn, ok := head.Node.(ir.SyntaxExpr); ok {
		if inner, ok := syn.S.(ir.App[*ir.Expr]); ok {
			merged := append(append([]*ir.Expr(nil), inner.Args...), args...)
			return App(inner.Head, merged)
		}
	}
	a := head.Analysis()
	for _, arg := range args {
		a = analysis.Combine(a, arg.Analysis())
	}
	a.Size++
	return ir.NewSyntax(a, ir.App[*ir.Expr]{Head: head, Args: args})
}

// Abs merges a nested abstraction, attempts single-argument eta-contraction,
// and otherwise builds a plain Abs. Free usages of the body become captured
// usages of the resulting closure (§3).
func Abs(params []ir.Param, body *ir.Expr) *ir.Expr {
	if syn, ok := body.Node.(ir.SyntaxExpr); ok {
		if inner, ok := syn.S.(ir.Abs[*ir.Expr]); ok {
			return Abs(append(append([]ir.Param(nil), params...), inner.Params...), inner.Body)
		}
	}
	if len(params) == 1 {
		if h, ok := etaHead(params[0], body); ok {
			return h
		}
	}
	levels := make([]analysis.Level, len(params))
	for i, p := range params {
		levels[i] = p.Level
	}
	a := analysis.BoundMany(levels, analysis.MarkAllCaptured(body.Analysis()))
	a.Size++
	if len(a.Args) == 0 {
		a.Args = make([]analysis.ArgShape, len(params))
	}
	return ir.NewSyntax(a, ir.Abs[*ir.Expr]{Params: params, Body: body})
}

// etaHead detects `\p -> App hd [Local _ p.Level]` and returns hd, the
// single-argument eta-contraction, when hd itself is a bare reference (Var
// or Local) so contraction cannot change strictness.
func etaHead(p ir.Param, body *ir.Expr) (*ir.Expr, bool) {
	syn, ok := body.Node.(ir.SyntaxExpr)
	if !ok {
		return nil, false
	}
	app, ok := syn.S.(ir.App[*ir.Expr])
	if !ok || len(app.Args) != 1 {
		return nil, false
	}
	argSyn, ok := app.Args[0].Node.(ir.SyntaxExpr)
	if !ok {
		return nil, false
	}
	local, ok := argSyn.S.(ir.Local[*ir.Expr])
	if !ok || local.Level != p.Level {
		return nil, false
	}
	headSyn, ok := app.Head.Node.(ir.SyntaxExpr)
	if !ok {
		return nil, false
	}
	switch headSyn.S.(type) {
	case ir.Var[*ir.Expr], ir.Local[*ir.Expr]:
		return app.Head, true
	default:
		return nil, false
	}
}

// Let applies the Let/Let and Let/LetAssoc associativity rules, the
// inline-let heuristic, and otherwise builds a plain Let.
func Let(ident ir.Ident, level ir.Level, binding, body *ir.Expr) *ir.Expr {
	if syn, ok := body.Node.(ir.SyntaxExpr); ok {
		if inner, ok := syn.S.(ir.Let[*ir.Expr]); ok {
			return letAssoc(
				[]ir.LetAssocBinding{{Ident: inner.Ident, Level: inner.Level, Binding: inner.Binding}},
				ir.LetAssocBinding{Ident: ident, Level: level, Binding: binding},
				inner.Body,
			)
		}
	}
	if rw, ok := body.Node.(ir.RewriteExpr); ok {
		if inner, ok := rw.R.(ir.LetAssoc); ok {
			return letAssoc(inner.Bindings, ir.LetAssocBinding{Ident: ident, Level: level, Binding: binding}, inner.Body)
		}
	}
	if ShouldInlineLet(level, binding, body) {
		bodyAnalysis := body.Analysis()
		u := analysis.UsageOf(bodyAnalysis, level)
		scaled := analysis.Scale(max(u.Count, 1), binding.Analysis())
		a := analysis.WithRewrite(analysis.Bound(level, analysis.Combine(bodyAnalysis, scaled)))
		return ir.NewRewrite(a, ir.Inline{Ident: ident, Level: level, Binding: binding, Body: body})
	}
	a := analysis.Combine(binding.Analysis(), analysis.Bound(level, body.Analysis()))
	a.Size++
	return ir.NewSyntax(a, ir.Let[*ir.Expr]{Ident: ident, Level: level, Binding: binding, Body: body})
}

func letAssoc(bindings []ir.LetAssocBinding, extra ir.LetAssocBinding, body *ir.Expr) *ir.Expr {
	all := append(append([]ir.LetAssocBinding(nil), bindings...), extra)
	a := body.Analysis()
	for i := len(all) - 1; i >= 0; i-- {
		a = analysis.Combine(all[i].Binding.Analysis(), analysis.Bound(all[i].Level, a))
	}
	a = analysis.WithRewrite(a)
	return ir.NewRewrite(a, ir.LetAssoc{Bindings: all, Body: body})
}

// LetRec builds a mutually-recursive group. Recursive bindings are never
// inlined (§4.2 lists no LetRec rewrite).
func LetRec(level ir.Level, bindings []ir.LetRecBinding[*ir.Expr], body *ir.Expr) *ir.Expr {
	a := analysis.Bound(level, body.Analysis())
	for _, b := range bindings {
		a = analysis.Combine(a, analysis.Bound(level, b.Body.Analysis()))
	}
	a.Size++
	return ir.NewSyntax(a, ir.LetRec[*ir.Expr]{Level: level, Bindings: bindings, Body: body})
}

// EffectBind builds a monadic-bind node. It is never inlined and never
// merged with a surrounding Let/LetAssoc (§4.4).
func EffectBind(ident ir.Ident, level ir.Level, binding, body *ir.Expr) *ir.Expr {
	a := analysis.Combine(binding.Analysis(), analysis.Bound(level, body.Analysis()))
	a.Size++
	return ir.NewSyntax(a, ir.EffectBind[*ir.Expr]{Ident: ident, Level: level, Binding: binding, Body: body})
}

// EffectPure builds a pure-lift node.
func EffectPure(value *ir.Expr) *ir.Expr {
	a := value.Analysis()
	a.Size++
	return ir.NewSyntax(a, ir.EffectPure[*ir.Expr]{Value: value})
}

// Accessor builds a projection node.
func Accessor(lhs *ir.Expr, acc ir.Accessor) *ir.Expr {
	a := lhs.Analysis()
	a.Size++
	if a.Complexity < analysis.Deref {
		a.Complexity = analysis.Deref
	}
	return ir.NewSyntax(a, ir.AccessorNode[*ir.Expr]{Lhs: lhs, Acc: acc})
}

// Update builds a record-update node.
func Update(lhs *ir.Expr, props []ir.Prop[*ir.Expr]) *ir.Expr {
	a := lhs.Analysis()
	for _, p := range props {
		a = analysis.Combine(a, p.Value.Analysis())
	}
	a.Size++
	a.Complexity = analysis.NonTrivial
	return ir.NewSyntax(a, ir.Update[*ir.Expr]{Lhs: lhs, Props: props})
}

// Branch collapses a no-arms branch to its default, flattens a branch whose
// default is itself a branch, and otherwise builds a plain Branch.
func Branch(arms []ir.BranchArm[*ir.Expr], def *ir.Expr) *ir.Expr {
	if len(arms) == 0 {
		if def != nil {
			return def
		}
		return Fail("no matching branch")
	}
	if def != nil {
		if syn, ok := def.Node.(ir.SyntaxExpr); ok {
			if inner, ok := syn.S.(ir.Branch[*ir.Expr]); ok {
				var innerDef *ir.Expr
				if inner.Default != nil {
					innerDef = *inner.Default
				}
				return Branch(append(append([]ir.BranchArm[*ir.Expr](nil), arms...), inner.Arms...), innerDef)
			}
		}
	}
	a := analysis.Zero()
	for _, arm := range arms {
		a = analysis.Combine(a, analysis.Combine(arm.Pred.Analysis(), arm.Body.Analysis()))
	}
	if def != nil {
		a = analysis.Combine(a, def.Analysis())
	}
	a.Complexity = analysis.NonTrivial
	a.Size++
	var defPtr *ir.Expr
	if def != nil {
		defPtr = def
	}
	var defField **ir.Expr
	if defPtr != nil {
		defField = &defPtr
	}
	return ir.NewSyntax(a, ir.Branch[*ir.Expr]{Arms: arms, Default: defField})
}

// Test builds a guard-comparison node.
func Test(lhs *ir.Expr, guard ir.Guard) *ir.Expr {
	a := lhs.Analysis()
	a.Size++
	return ir.NewSyntax(a, ir.Test[*ir.Expr]{Lhs: lhs, Guard: guard})
}

// CtorDef builds a constructor-layout declaration node.
func CtorDef(tag string, fields []ir.Ident) *ir.Expr {
	return ir.NewSyntax(leaf(1, analysis.Trivial), ir.CtorDef[*ir.Expr]{Tag_: tag, Fields: fields})
}

// CtorSaturated builds a fully-applied constructor node.
func CtorSaturated(qual ir.Qualified, tag string, fields []*ir.Expr) *ir.Expr {
	a := leaf(1, analysis.KnownSize)
	for _, f := range fields {
		a = analysis.Combine(a, f.Analysis())
	}
	return ir.NewSyntax(a, ir.CtorSaturated[*ir.Expr]{Qual: qual, Tag_: tag, Fields: fields})
}

// Fail builds an explicit-failure node.
func Fail(message string) *ir.Expr {
	return ir.NewSyntax(leaf(1, analysis.NonTrivial), ir.Fail[*ir.Expr]{Message: message})
}

// ShouldInlineLet decides whether a Let binding is folded into its use site
// as a transient Inline node (§4.2).
func ShouldInlineLet(level ir.Level, binding, body *ir.Expr) bool {
	a := binding.Analysis()
	b := body.Analysis()
	u := analysis.UsageOf(b, level)
	if u.Count == 0 {
		return true
	}
	if a.Complexity == analysis.Trivial && a.Size < 5 {
		return true
	}
	if !u.Captured {
		if u.Count == 1 {
			return true
		}
		if a.Complexity <= analysis.Deref && a.Size < 5 {
			return true
		}
	}
	if isAbs(binding) {
		if len(a.Usages) == 0 || a.Size < 128 {
			return true
		}
	}
	return false
}

func isAbs(e *ir.Expr) bool {
	syn, ok := e.Node.(ir.SyntaxExpr)
	if !ok {
		return false
	}
	_, ok = syn.S.(ir.Abs[*ir.Expr])
	return ok
}

// ShouldInlineExternApp decides whether an application of an extern
// definition is cheap enough (or shaped so it will constant-fold enough) to
// evaluate inline rather than leaving as a call (§4.2). argCount is the
// number of arguments the call site supplies.
func ShouldInlineExternApp(a analysis.Analysis, argCount int) bool {
	if a.Complexity == analysis.Trivial && a.Size < 5 {
		return true
	}
	if a.Complexity <= analysis.Deref && a.Size < 5 {
		return true
	}
	if len(a.Args) <= argCount && a.Size < 128 {
		return true
	}
	return false
}
