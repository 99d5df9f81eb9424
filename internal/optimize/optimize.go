// Package optimize implements the fixed-point driver (§4.5) that repeatedly
// evaluates and re-quotes a term until it stops rewriting, and the freeze
// step (§4.7) that strips the resulting term of transient rewrite nodes.
package optimize

import (
	"github.com/htmue/purescript-backend-optimizer/internal/analysis"
	"github.com/htmue/purescript-backend-optimizer/internal/eval"
	"github.com/htmue/purescript-backend-optimizer/internal/ir"
	"github.com/htmue/purescript-backend-optimizer/internal/quote"
	"github.com/htmue/purescript-backend-optimizer/internal/semantics"
)

// DefaultMaxIterations bounds the fixed-point loop (§5 suggests at least
// 16). A term that still holds a LetAssoc chain never clears its rewrite
// flag (internal/build's letAssoc always sets it), so such a term runs to
// this cap.
const DefaultMaxIterations = 32

// Diagnostic reports how the fixed-point loop terminated. It is returned as
// ordinary data, never as an error: an overrun means the loop hit its cap,
// not that optimization failed — the last computed term is still valid,
// simplified IR.
type Diagnostic struct {
	Iterations int
	Overrun    bool
}

// Options configures a single Optimize call.
type Options struct {
	// MaxIterations overrides DefaultMaxIterations when positive.
	MaxIterations int
}

// Optimize repeatedly evaluates expr under env and re-quotes the result,
// stopping once the top node is an already-frozen-shaped ExprSyntax whose
// analysis reports no pending rewrite, or the iteration cap is hit.
func Optimize(env *semantics.Env, expr *ir.Expr, opts Options) (*ir.Expr, Diagnostic) {
	maxIter := opts.MaxIterations
	if maxIter <= 0 {
		maxIter = DefaultMaxIterations
	}
	current := expr
	for i := 1; i <= maxIter; i++ {
		ctx := quote.NewCtx()
		current = quote.Quote(ctx, eval.Eval(env, current))
		if !current.Analysis().Rewrite {
			return current, Diagnostic{Iterations: i, Overrun: false}
		}
	}
	return current, Diagnostic{Iterations: maxIter, Overrun: true}
}

// Freeze recursively strips Inline and LetAssoc rewrite nodes, converting
// them into plain nested Lets, producing the neutral output IR (§4.7). The
// original top-level analysis is preserved unchanged.
func Freeze(expr *ir.Expr) *ir.Neutral {
	return &ir.Neutral{A: expr.Analysis(), S: freezeSyntax(expr)}
}

func freezeSyntax(expr *ir.Expr) ir.Syntax[*ir.Neutral] {
	switch n := expr.Node.(type) {
	case ir.SyntaxExpr:
		return freezeNode(n.S)
	case ir.RewriteExpr:
		return freezeRewrite(n.R).S
	default:
		panic(&ir.FatalError{Message: "freeze: expr node of unrecognized dynamic type"})
	}
}

// freezeRewrite desugars a transient rewrite node into the equivalent plain
// Let chain, returning it wrapped so callers needing the *ir.Expr form (for
// recursive freezing under a shared analysis) and callers needing just the
// bare syntax can both use it.
func freezeRewrite(r ir.Rewrite) *ir.Neutral {
	switch n := r.(type) {
	case ir.Inline:
		body := Freeze(n.Body)
		binding := Freeze(n.Binding)
		a := analysis.Combine(binding.Analysis(), analysis.Bound(n.Level, body.Analysis()))
		return &ir.Neutral{A: a, S: ir.Let[*ir.Neutral]{Ident: n.Ident, Level: n.Level, Binding: binding, Body: body}}
	case ir.LetAssoc:
		return freezeLetAssoc(n.Bindings, n.Body)
	default:
		panic(&ir.FatalError{Message: "freeze: rewrite node of unrecognized dynamic type"})
	}
}

// freezeLetAssoc rebuilds bs into a chain of nested Lets. bs accumulates
// innermost-first (descending level) as merges fold outward, so it is
// walked forward here: the first binding wraps closest to body, and the
// last (the outermost, smallest-level binder) ends up as the outermost
// Let, matching the scope order its own binding may depend on.
func freezeLetAssoc(bs []ir.LetAssocBinding, body *ir.Expr) *ir.Neutral {
	frozenBody := Freeze(body)
	for _, b := range bs {
		binding := Freeze(b.Binding)
		a := analysis.Combine(binding.Analysis(), analysis.Bound(b.Level, frozenBody.Analysis()))
		frozenBody = &ir.Neutral{A: a, S: ir.Let[*ir.Neutral]{Ident: b.Ident, Level: b.Level, Binding: binding, Body: frozenBody}}
	}
	return frozenBody
}

func freezeNode(s ir.Syntax[*ir.Expr]) ir.Syntax[*ir.Neutral] {
	switch n := s.(type) {
	case ir.Var[*ir.Expr]:
		return ir.Var[*ir.Neutral]{Qual: n.Qual}
	case ir.Local[*ir.Expr]:
		return ir.Local[*ir.Neutral]{Ident: n.Ident, Level: n.Level}
	case ir.LitNode[*ir.Expr]:
		return ir.LitNode[*ir.Neutral]{Lit: freezeLit(n.Lit)}
	case ir.App[*ir.Expr]:
		args := make([]*ir.Neutral, len(n.Args))
		for i, a := range n.Args {
			args[i] = Freeze(a)
		}
		return ir.App[*ir.Neutral]{Head: Freeze(n.Head), Args: args}
	case ir.Abs[*ir.Expr]:
		return ir.Abs[*ir.Neutral]{Params: n.Params, Body: Freeze(n.Body)}
	case ir.Let[*ir.Expr]:
		return ir.Let[*ir.Neutral]{Ident: n.Ident, Level: n.Level, Binding: Freeze(n.Binding), Body: Freeze(n.Body)}
	case ir.LetRec[*ir.Expr]:
		bindings := make([]ir.LetRecBinding[*ir.Neutral], len(n.Bindings))
		for i, b := range n.Bindings {
			bindings[i] = ir.LetRecBinding[*ir.Neutral]{Ident: b.Ident, Body: Freeze(b.Body)}
		}
		return ir.LetRec[*ir.Neutral]{Level: n.Level, Bindings: bindings, Body: Freeze(n.Body)}
	case ir.EffectBind[*ir.Expr]:
		return ir.EffectBind[*ir.Neutral]{Ident: n.Ident, Level: n.Level, Binding: Freeze(n.Binding), Body: Freeze(n.Body)}
	case ir.EffectPure[*ir.Expr]:
		return ir.EffectPure[*ir.Neutral]{Value: Freeze(n.Value)}
	case ir.AccessorNode[*ir.Expr]:
		return ir.AccessorNode[*ir.Neutral]{Lhs: Freeze(n.Lhs), Acc: n.Acc}
	case ir.Update[*ir.Expr]:
		props := make([]ir.Prop[*ir.Neutral], len(n.Props))
		for i, p := range n.Props {
			props[i] = ir.Prop[*ir.Neutral]{Key: p.Key, Value: Freeze(p.Value)}
		}
		return ir.Update[*ir.Neutral]{Lhs: Freeze(n.Lhs), Props: props}
	case ir.Branch[*ir.Expr]:
		arms := make([]ir.BranchArm[*ir.Neutral], len(n.Arms))
		for i, arm := range n.Arms {
			arms[i] = ir.BranchArm[*ir.Neutral]{Pred: Freeze(arm.Pred), Body: Freeze(arm.Body)}
		}
		var defField **ir.Neutral
		if n.Default != nil {
			def := Freeze(*n.Default)
			defField = &def
		}
		return ir.Branch[*ir.Neutral]{Arms: arms, Default: defField}
	case ir.Test[*ir.Expr]:
		return ir.Test[*ir.Neutral]{Lhs: Freeze(n.Lhs), Guard: n.Guard}
	case ir.CtorDef[*ir.Expr]:
		return ir.CtorDef[*ir.Neutral]{Tag_: n.Tag_, Fields: n.Fields}
	case ir.CtorSaturated[*ir.Expr]:
		fields := make([]*ir.Neutral, len(n.Fields))
		for i, f := range n.Fields {
			fields[i] = Freeze(f)
		}
		return ir.CtorSaturated[*ir.Neutral]{Qual: n.Qual, Tag_: n.Tag_, Fields: fields}
	case ir.Fail[*ir.Expr]:
		return ir.Fail[*ir.Neutral]{Message: n.Message}
	default:
		panic(&ir.FatalError{Message: "freeze: syntax node of unrecognized dynamic type"})
	}
}

func freezeLit(lit ir.Lit[*ir.Expr]) ir.Lit[*ir.Neutral] {
	out := ir.Lit[*ir.Neutral]{Kind: lit.Kind, Int: lit.Int, Float: lit.Float, Str: lit.Str, Char: lit.Char, Bool: lit.Bool}
	if lit.Array != nil {
		out.Array = make([]*ir.Neutral, len(lit.Array))
		for i, e := range lit.Array {
			out.Array[i] = Freeze(e)
		}
	}
	if lit.Record != nil {
		out.Record = make([]ir.RecordField[*ir.Neutral], len(lit.Record))
		for i, f := range lit.Record {
			out.Record[i] = ir.RecordField[*ir.Neutral]{Key: f.Key, Value: Freeze(f.Value)}
		}
	}
	return out
}
