// Package quote implements the reification half of NbE (§4.3): it turns a
// BackendSemantics value back into IR, allocating fresh de Bruijn levels for
// every binder it reifies and routing every reconstructed node through
// internal/build's smart constructors.
package quote

import (
	"github.com/htmue/purescript-backend-optimizer/internal/build"
	"github.com/htmue/purescript-backend-optimizer/internal/eval"
	"github.com/htmue/purescript-backend-optimizer/internal/ir"
	"github.com/htmue/purescript-backend-optimizer/internal/semantics"
)

// Resume packages a still-pending branch tail (arms plus optional default)
// left behind by a SemBranchTry, so an enclosing SemBranch missing its own
// default can absorb them.
type Resume struct {
	Arms    []semantics.SemBranchArm
	Default *semantics.Thunk
}

// Ctx carries the next-free Level counter and the current resume context
// across one top-level Quote call. It must not be shared between unrelated
// Quote invocations.
type Ctx struct {
	next   ir.Level
	Resume *Resume
}

// NewCtx returns a Ctx with no levels yet allocated.
func NewCtx() *Ctx { return &Ctx{} }

// Fresh allocates and returns the next Level.
func (c *Ctx) Fresh() ir.Level {
	l := c.next
	c.next++
	return l
}

// Quote reifies sem back into IR under ctx.
func Quote(ctx *Ctx, sem semantics.Sem) *ir.Expr {
	switch v := sem.(type) {
	case semantics.SemExtern:
		return Quote(ctx, v.Neutral.Force())
	case semantics.SemLit:
		return quoteLit(ctx, v.Lit)
	case semantics.SemLam:
		return quoteLam(ctx, v)
	case semantics.SemLet:
		return quoteLet(ctx, v)
	case semantics.SemLetRec:
		return quoteLetRec(ctx, v)
	case semantics.SemEffectBind:
		return quoteEffectBind(ctx, v)
	case semantics.SemEffectPure:
		return build.EffectPure(Quote(ctx, v.Value))
	case semantics.SemBranch:
		return quoteBranch(ctx, v)
	case semantics.SemBranchTry:
		return quoteBranchTry(ctx, v)
	case semantics.SemAccessor:
		return build.Accessor(Quote(ctx, v.Lhs), v.Acc)
	case semantics.SemUpdate:
		return quoteUpdate(ctx, v)
	case semantics.SemNeutral:
		return quoteNeutral(ctx, v.N)
	default:
		panic(&ir.FatalError{Message: "quote: semantic value of unrecognized dynamic type"})
	}
}

func quoteLit(ctx *Ctx, lit ir.Lit[semantics.Sem]) *ir.Expr {
	switch lit.Kind {
	case ir.LitArray:
		arr := make([]*ir.Expr, len(lit.Array))
		for i, e := range lit.Array {
			arr[i] = Quote(ctx, e)
		}
		return build.LitCompound(ir.Lit[*ir.Expr]{Kind: ir.LitArray, Array: arr})
	case ir.LitRecord:
		fields := make([]ir.RecordField[*ir.Expr], len(lit.Record))
		for i, f := range lit.Record {
			fields[i] = ir.RecordField[*ir.Expr]{Key: f.Key, Value: Quote(ctx, f.Value)}
		}
		return build.LitCompound(ir.Lit[*ir.Expr]{Kind: ir.LitRecord, Record: fields})
	default:
		return build.LitScalar(ir.Lit[*ir.Expr]{
			Kind: lit.Kind, Int: lit.Int, Float: lit.Float,
			Str: lit.Str, Char: lit.Char, Bool: lit.Bool,
		})
	}
}

func quoteLam(ctx *Ctx, v semantics.SemLam) *ir.Expr {
	level := ctx.Fresh()
	param := ir.Param{Level: level}
	if v.Ident != nil {
		param.Ident = *v.Ident
	}
	neutral := semantics.SemNeutral{N: semantics.NeutLocal{Ident: v.Ident, Level: level}}
	body := Quote(ctx, v.K(neutral))
	return build.Abs([]ir.Param{param}, body)
}

func quoteLet(ctx *Ctx, v semantics.SemLet) *ir.Expr {
	level := ctx.Fresh()
	bindingExpr := Quote(ctx, v.Value)
	neutral := semantics.SemNeutral{N: semantics.NeutLocal{Ident: v.Ident, Level: level}}
	bodyExpr := Quote(ctx, v.K(neutral))
	ident := ir.Ident("_")
	if v.Ident != nil {
		ident = *v.Ident
	}
	return build.Let(ident, level, bindingExpr, bodyExpr)
}

func quoteLetRec(ctx *Ctx, v semantics.SemLetRec) *ir.Expr {
	level := ctx.Fresh()
	neutralGroup := make(map[ir.Ident]semantics.Sem, len(v.Idents))
	for _, id := range v.Idents {
		id := id
		neutralGroup[id] = semantics.SemNeutral{N: semantics.NeutLocal{Ident: &id, Level: level}}
	}
	realized := v.Bindings(neutralGroup)
	bindings := make([]ir.LetRecBinding[*ir.Expr], len(v.Idents))
	for i, id := range v.Idents {
		bindings[i] = ir.LetRecBinding[*ir.Expr]{Ident: id, Body: Quote(ctx, realized[id])}
	}
	body := Quote(ctx, v.K(neutralGroup))
	return build.LetRec(level, bindings, body)
}

func quoteEffectBind(ctx *Ctx, v semantics.SemEffectBind) *ir.Expr {
	level := ctx.Fresh()
	bindingExpr := Quote(ctx, v.Value)
	neutral := semantics.SemNeutral{N: semantics.NeutLocal{Ident: v.Ident, Level: level}}
	bodyExpr := Quote(ctx, v.K(neutral))
	ident := ir.Ident("_")
	if v.Ident != nil {
		ident = *v.Ident
	}
	return build.EffectBind(ident, level, bindingExpr, bodyExpr)
}

func quoteUpdate(ctx *Ctx, v semantics.SemUpdate) *ir.Expr {
	lhs := Quote(ctx, v.Lhs)
	props := make([]ir.Prop[*ir.Expr], len(v.Props))
	for i, p := range v.Props {
		props[i] = ir.Prop[*ir.Expr]{Key: p.Key, Value: Quote(ctx, p.Value)}
	}
	return build.Update(lhs, props)
}

// mergeResume implements the SemBranchTry merge rule: if neither the
// existing resume nor the new one carries a default, their arms
// concatenate; otherwise the new one wins outright.
func mergeResume(existing *Resume, arms []semantics.SemBranchArm, def *semantics.Thunk) *Resume {
	if existing != nil && existing.Default == nil && def == nil {
		return &Resume{Arms: append(append([]semantics.SemBranchArm(nil), existing.Arms...), arms...)}
	}
	return &Resume{Arms: arms, Default: def}
}

func quoteBranchTry(ctx *Ctx, v semantics.SemBranchTry) *ir.Expr {
	saved := ctx.Resume
	ctx.Resume = mergeResume(saved, v.Arms, v.Default)
	body := Quote(ctx, v.Body)
	ctx.Resume = saved
	return body
}

func quoteBranch(ctx *Ctx, v semantics.SemBranch) *ir.Expr {
	resume := ctx.Resume
	ctx.Resume = nil

	arms := make([]ir.BranchArm[*ir.Expr], len(v.Arms))
	for i, arm := range v.Arms {
		arms[i] = ir.BranchArm[*ir.Expr]{
			Pred: Quote(ctx, arm.Pred.Force()),
			Body: Quote(ctx, arm.Body.Force()),
		}
	}

	var def *ir.Expr
	switch {
	case v.Default != nil:
		def = Quote(ctx, v.Default.Force())
	case resume != nil:
		def = Quote(ctx, eval.ResumeBranches(resume.Arms, resume.Default))
	}
	return build.Branch(arms, def)
}

// quoteNeutral reifies a stuck BackendNeutral value. A zero-field NeutData
// is its own canonical Var reference, and a NeutApp with no arguments
// collapses to its head (both can arise from spine bookkeeping that ended
// up empty).
func quoteNeutral(ctx *Ctx, n semantics.Neutral) *ir.Expr {
	switch v := n.(type) {
	case semantics.NeutLocal:
		return build.Local(v.Ident, v.Level)
	case semantics.NeutVar:
		return build.Var(v.Qual)
	case semantics.NeutData:
		if len(v.Fields) == 0 {
			return build.Var(v.Qual)
		}
		fields := make([]*ir.Expr, len(v.Fields))
		for i, f := range v.Fields {
			fields[i] = Quote(ctx, f.Force())
		}
		return build.CtorSaturated(v.Qual, v.Tag, fields)
	case semantics.NeutCtorDef:
		return build.CtorDef(v.Tag, v.Fields)
	case semantics.NeutApp:
		if len(v.Args) == 0 {
			return quoteNeutral(ctx, v.Head)
		}
		args := make([]*ir.Expr, len(v.Args))
		for i, a := range v.Args {
			args[i] = Quote(ctx, a.Force())
		}
		return build.App(quoteNeutral(ctx, v.Head), args)
	case semantics.NeutAccessor:
		return build.Accessor(quoteNeutral(ctx, v.Lhs), v.Acc)
	case semantics.NeutUpdate:
		props := make([]ir.Prop[*ir.Expr], len(v.Props))
		for i, p := range v.Props {
			props[i] = ir.Prop[*ir.Expr]{Key: p.Key, Value: Quote(ctx, p.Value)}
		}
		return build.Update(quoteNeutral(ctx, v.Lhs), props)
	case semantics.NeutTest:
		return build.Test(quoteNeutral(ctx, v.Lhs), v.Guard)
	case semantics.NeutLit:
		return quoteLit(ctx, v.Lit)
	case semantics.NeutFail:
		return build.Fail(v.Message)
	default:
		panic(&ir.FatalError{Message: "quote: neutral value of unrecognized dynamic type"})
	}
}
