// Package eval implements the NbE evaluator (§4.1): it turns a BackendExpr
// into a BackendSemantics value under an environment, constant-folding
// anything it can and leaving everything else as a semantic value carrying
// host closures for the quoter to re-enter later.
package eval

import (
	"github.com/htmue/purescript-backend-optimizer/internal/ir"
	"github.com/htmue/purescript-backend-optimizer/internal/semantics"
)

// Eval reduces term under env to a semantic value. A pending Inline node
// has its binding's value substituted straight into the environment of its
// body (no SemLet frame), while a LetAssoc chain is replayed as nested
// SemLet frames (see evalLetAssoc).
func Eval(env *semantics.Env, term *ir.Expr) semantics.Sem {
	switch n := term.Node.(type) {
	case ir.SyntaxExpr:
		return evalSyntax(env, n.S)
	case ir.RewriteExpr:
		return evalRewrite(env, n.R)
	default:
		panic(&ir.FatalError{Message: "eval: expr node of unrecognized dynamic type"})
	}
}

func evalRewrite(env *semantics.Env, r ir.Rewrite) semantics.Sem {
	switch n := r.(type) {
	case ir.Inline:
		val := Eval(env, n.Binding)
		return Eval(env.Extend(val), n.Body)
	case ir.LetAssoc:
		return evalLetAssoc(env, n.Bindings, n.Body)
	default:
		panic(&ir.FatalError{Message: "eval: rewrite node of unrecognized dynamic type"})
	}
}

// evalLetAssoc replays a flattened Let chain as nested SemLet frames, one
// per binding, so quoting sees the same NeutLocal-placeholder sharing a
// hand-nested chain of plain Lets would get instead of re-quoting each
// binding's value at every use site. Bindings accumulates innermost-first
// (descending level) as merges fold outward, so the outermost (smallest
// level) binding — the last element — is evaluated first, against the
// original env, matching the scope a hand-nested chain would give it.
func evalLetAssoc(env *semantics.Env, bindings []ir.LetAssocBinding, body *ir.Expr) semantics.Sem {
	if len(bindings) == 0 {
		return Eval(env, body)
	}
	last := len(bindings) - 1
	head := bindings[last]
	rest := bindings[:last]
	val := Eval(env, head.Binding)
	ident := head.Ident
	return semantics.SemLet{
		Ident: &ident,
		Value: val,
		K: func(v semantics.Sem) semantics.Sem {
			return evalLetAssoc(env.Extend(v), rest, body)
		},
	}
}

func evalSyntax(env *semantics.Env, s ir.Syntax[*ir.Expr]) semantics.Sem {
	switch n := s.(type) {
	case ir.Var[*ir.Expr]:
		return evalVar(env, n.Qual)
	case ir.Local[*ir.Expr]:
		return env.Lookup(n.Ident, n.Level)
	case ir.LitNode[*ir.Expr]:
		return evalLit(env, n.Lit)
	case ir.App[*ir.Expr]:
		head := Eval(env, n.Head)
		args := thunkAll(env, n.Args)
		out := evalApp(head, args)
		if ext, ok := out.(semantics.SemExtern); ok && env.EvalExtern != nil {
			if v, ok := env.EvalExtern(env, ext.Qual, ext.Spine); ok {
				return v
			}
		}
		return out
	case ir.Abs[*ir.Expr]:
		return evalAbs(env, n.Params, n.Body)
	case ir.Let[*ir.Expr]:
		val := Eval(env, n.Binding)
		ident, body := n.Ident, n.Body
		return semantics.SemLet{
			Ident: &ident,
			Value: val,
			K:     func(v semantics.Sem) semantics.Sem { return Eval(env.Extend(v), body) },
		}
	case ir.LetRec[*ir.Expr]:
		return evalLetRec(env, n.Bindings, n.Body)
	case ir.EffectBind[*ir.Expr]:
		val := Eval(env, n.Binding)
		ident, body := n.Ident, n.Body
		return semantics.SemEffectBind{
			Ident: &ident,
			Value: val,
			K:     func(v semantics.Sem) semantics.Sem { return Eval(env.Extend(v), body) },
		}
	case ir.EffectPure[*ir.Expr]:
		return semantics.SemEffectPure{Value: Eval(env, n.Value)}
	case ir.AccessorNode[*ir.Expr]:
		return evalAccessor(env, Eval(env, n.Lhs), n.Acc)
	case ir.Update[*ir.Expr]:
		lhs := Eval(env, n.Lhs)
		props := make([]ir.Prop[semantics.Sem], len(n.Props))
		for i, p := range n.Props {
			props[i] = ir.Prop[semantics.Sem]{Key: p.Key, Value: Eval(env, p.Value)}
		}
		return evalUpdate(env, lhs, props)
	case ir.Branch[*ir.Expr]:
		return evalBranches(env, n.Arms, n.Default)
	case ir.Test[*ir.Expr]:
		return evalTest(env, Eval(env, n.Lhs), n.Guard)
	case ir.CtorDef[*ir.Expr]:
		return semantics.SemNeutral{N: semantics.NeutCtorDef{Tag: n.Tag_, Fields: n.Fields}}
	case ir.CtorSaturated[*ir.Expr]:
		fields := thunkAll(env, n.Fields)
		return semantics.SemNeutral{N: semantics.NeutData{Qual: n.Qual, Tag: n.Tag_, Fields: fields}}
	case ir.Fail[*ir.Expr]:
		return semantics.SemNeutral{N: semantics.NeutFail{Message: n.Message}}
	default:
		panic(&ir.FatalError{Message: "eval: syntax node of unrecognized dynamic type"})
	}
}

func thunkAll(env *semantics.Env, exprs []*ir.Expr) []*semantics.Thunk {
	out := make([]*semantics.Thunk, len(exprs))
	for i, e := range exprs {
		e := e
		out[i] = semantics.NewThunk(func() semantics.Sem { return Eval(env, e) })
	}
	return out
}

func evalVar(env *semantics.Env, qual ir.Qualified) semantics.Sem {
	if env.EvalExtern != nil {
		if v, ok := env.EvalExtern(env, qual, nil); ok {
			return v
		}
	}
	return semantics.SemExtern{
		Qual:    qual,
		Neutral: semantics.Done(semantics.SemNeutral{N: semantics.NeutVar{Qual: qual}}),
	}
}

func evalLit(env *semantics.Env, lit ir.Lit[*ir.Expr]) semantics.Sem {
	out := ir.Lit[semantics.Sem]{
		Kind: lit.Kind, Int: lit.Int, Float: lit.Float,
		Str: lit.Str, Char: lit.Char, Bool: lit.Bool,
	}
	if lit.Array != nil {
		out.Array = make([]semantics.Sem, len(lit.Array))
		for i, e := range lit.Array {
			out.Array[i] = Eval(env, e)
		}
	}
	if lit.Record != nil {
		out.Record = make([]ir.RecordField[semantics.Sem], len(lit.Record))
		for i, f := range lit.Record {
			out.Record[i] = ir.RecordField[semantics.Sem]{Key: f.Key, Value: Eval(env, f.Value)}
		}
	}
	return semantics.SemLit{Lit: out}
}

func evalAbs(env *semantics.Env, params []ir.Param, body *ir.Expr) semantics.Sem {
	if len(params) == 0 {
		return Eval(env, body)
	}
	p, rest := params[0], params[1:]
	ident := p.Ident
	return semantics.SemLam{
		Ident: &ident,
		K:     func(v semantics.Sem) semantics.Sem { return evalAbs(env.Extend(v), rest, body) },
	}
}

func evalLetRec(env *semantics.Env, bindings []ir.LetRecBinding[*ir.Expr], body *ir.Expr) semantics.Sem {
	idents := make([]ir.Ident, len(bindings))
	for i, b := range bindings {
		idents[i] = b.Ident
	}
	return semantics.SemLetRec{
		Idents: idents,
		Bindings: func(group map[ir.Ident]semantics.Sem) map[ir.Ident]semantics.Sem {
			child := env.ExtendGroup(group)
			out := make(map[ir.Ident]semantics.Sem, len(bindings))
			for _, b := range bindings {
				out[b.Ident] = Eval(child, b.Body)
			}
			return out
		},
		K: func(group map[ir.Ident]semantics.Sem) semantics.Sem {
			return Eval(env.ExtendGroup(group), body)
		},
	}
}

// ApplyThunks exposes evalApp for callers outside this package (internal/extern
// needs it to apply an already-evaluated definition to already-thunked
// arguments when inlining).
func ApplyThunks(head semantics.Sem, args []*semantics.Thunk) semantics.Sem {
	return evalApp(head, args)
}

// evalApp applies head to args, commuting the application through Let and
// LetRec host closures so that e.g. `(let x = v in f) a` evaluates
// identically to `let x = v in (f a)` without first quoting and re-building
// the term (§4.1.1). EffectBind/EffectPure are deliberately excluded from
// this commuting conversion: they stay opaque to reordering (§4.4).
func evalApp(head semantics.Sem, args []*semantics.Thunk) semantics.Sem {
	if len(args) == 0 {
		return head
	}
	switch h := head.(type) {
	case semantics.SemLam:
		rest := args[1:]
		return semantics.SemLet{Value: args[0].Force(),
			K: func(v semantics.Sem) semantics.Sem { return evalApp(h.K(v), rest) }}
	case semantics.SemExtern:
		spine := semantics.AppendApp(h.Spine, args)
		qual := h.Qual
		return semantics.SemExtern{
			Qual:  qual,
			Spine: spine,
			Neutral: semantics.NewThunk(func() semantics.Sem {
				return quoteExternNeutral(qual, spine)
			}),
		}
	case semantics.SemNeutral:
		return semantics.SemNeutral{N: semantics.NeutApp{Head: h.N, Args: args}}
	case semantics.SemLet:
		return semantics.SemLet{Ident: h.Ident, Value: h.Value,
			K: func(v semantics.Sem) semantics.Sem { return evalApp(h.K(v), args) }}
	case semantics.SemLetRec:
		return semantics.SemLetRec{Idents: h.Idents, Bindings: h.Bindings,
			K: func(g map[ir.Ident]semantics.Sem) semantics.Sem { return evalApp(h.K(g), args) }}
	default:
		panic(&ir.FatalError{Message: "eval: application of a non-applicable semantic value"})
	}
}

func quoteExternNeutral(qual ir.Qualified, spine []semantics.ExternOp) semantics.Sem {
	var n semantics.Neutral = semantics.NeutVar{Qual: qual}
	for _, op := range spine {
		switch o := op.(type) {
		case semantics.ExternApp:
			n = semantics.NeutApp{Head: n, Args: o.Args}
		case semantics.ExternAccessor:
			n = semantics.NeutAccessor{Lhs: n, Acc: o.Acc}
		}
	}
	return semantics.SemNeutral{N: n}
}

// evalAccessor resolves a projection against a known literal or data value
// immediately, commutes through Let/LetRec exactly as evalApp does, records
// the projection onto a still-unresolved extern's spine, and otherwise
// leaves the projection stuck. EffectBind/EffectPure are deliberately never
// commuted through here: they stay opaque to reordering (§4.4).
func evalAccessor(env *semantics.Env, lhs semantics.Sem, acc ir.Accessor) semantics.Sem {
	switch v := lhs.(type) {
	case semantics.SemLit:
		if r, ok := projectLit(v.Lit, acc); ok {
			return r
		}
	case semantics.SemExtern:
		spine := semantics.AppendAccessor(v.Spine, acc)
		if env.EvalExtern != nil {
			if r, ok := env.EvalExtern(env, v.Qual, spine); ok {
				return r
			}
		}
		qual := v.Qual
		return semantics.SemExtern{Qual: qual, Spine: spine,
			Neutral: semantics.NewThunk(func() semantics.Sem { return quoteExternNeutral(qual, spine) })}
	case semantics.SemNeutral:
		if d, ok := v.N.(semantics.NeutData); ok {
			if r, ok := projectData(d, acc); ok {
				return r
			}
		}
		return semantics.SemNeutral{N: semantics.NeutAccessor{Lhs: v.N, Acc: acc}}
	case semantics.SemLet:
		return semantics.SemLet{Ident: v.Ident, Value: v.Value,
			K: func(x semantics.Sem) semantics.Sem { return evalAccessor(env, v.K(x), acc) }}
	case semantics.SemLetRec:
		return semantics.SemLetRec{Idents: v.Idents, Bindings: v.Bindings,
			K: func(g map[ir.Ident]semantics.Sem) semantics.Sem { return evalAccessor(env, v.K(g), acc) }}
	}
	return semantics.SemAccessor{Lhs: lhs, Acc: acc}
}

func projectLit(l ir.Lit[semantics.Sem], acc ir.Accessor) (semantics.Sem, bool) {
	switch acc.Kind {
	case ir.GetProp:
		if l.Kind == ir.LitRecord {
			for _, f := range l.Record {
				if f.Key == acc.Prop {
					return f.Value, true
				}
			}
		}
	case ir.GetIndex:
		if l.Kind == ir.LitArray && acc.Index >= 0 && acc.Index < len(l.Array) {
			return l.Array[acc.Index], true
		}
	}
	return nil, false
}

func projectData(d semantics.NeutData, acc ir.Accessor) (semantics.Sem, bool) {
	if acc.Kind == ir.GetOffset && acc.Index >= 0 && acc.Index < len(d.Fields) {
		return d.Fields[acc.Index].Force(), true
	}
	return nil, false
}

// evalUpdate resolves a record update against a known record literal
// immediately, commutes through Let exactly as evalApp does, and otherwise
// leaves it stuck. EffectBind/EffectPure stay opaque here too (§4.4).
func evalUpdate(env *semantics.Env, lhs semantics.Sem, props []ir.Prop[semantics.Sem]) semantics.Sem {
	switch v := lhs.(type) {
	case semantics.SemLit:
		if v.Lit.Kind == ir.LitRecord {
			out := append([]ir.RecordField[semantics.Sem](nil), v.Lit.Record...)
			for _, p := range props {
				found := false
				for i, f := range out {
					if f.Key == p.Key {
						out[i].Value = p.Value
						found = true
						break
					}
				}
				if !found {
					out = append(out, ir.RecordField[semantics.Sem]{Key: p.Key, Value: p.Value})
				}
			}
			return semantics.SemLit{Lit: ir.Lit[semantics.Sem]{Kind: ir.LitRecord, Record: out}}
		}
	case semantics.SemNeutral:
		return semantics.SemNeutral{N: semantics.NeutUpdate{Lhs: v.N, Props: props}}
	case semantics.SemLet:
		return semantics.SemLet{Ident: v.Ident, Value: v.Value,
			K: func(x semantics.Sem) semantics.Sem { return evalUpdate(env, v.K(x), props) }}
	}
	return semantics.SemUpdate{Lhs: lhs, Props: props}
}

// evalTest resolves a guard against a known literal or constructor tag
// immediately, commutes through Let exactly as evalApp does, and otherwise
// leaves it stuck. EffectBind/EffectPure stay opaque here too (§4.4).
func evalTest(env *semantics.Env, lhs semantics.Sem, guard ir.Guard) semantics.Sem {
	switch v := lhs.(type) {
	case semantics.SemLit:
		if b, ok := testLit(v.Lit, guard); ok {
			return boolSem(b)
		}
	case semantics.SemExtern:
		return evalTest(env, v.Neutral.Force(), guard)
	case semantics.SemNeutral:
		if d, ok := v.N.(semantics.NeutData); ok && guard.Kind == ir.GuardCtorTag {
			return boolSem(d.Tag == guard.Tag)
		}
		return semantics.SemNeutral{N: semantics.NeutTest{Lhs: v.N, Guard: guard}}
	case semantics.SemLet:
		return semantics.SemLet{Ident: v.Ident, Value: v.Value,
			K: func(x semantics.Sem) semantics.Sem { return evalTest(env, v.K(x), guard) }}
	}
	return semantics.SemNeutral{N: semantics.NeutFail{Message: "test applied to a non-testable value"}}
}

func boolSem(b bool) semantics.Sem {
	return semantics.SemLit{Lit: ir.Lit[semantics.Sem]{Kind: ir.LitBool, Bool: b}}
}

func testLit(l ir.Lit[semantics.Sem], g ir.Guard) (bool, bool) {
	switch g.Kind {
	case ir.GuardInt:
		if l.Kind == ir.LitInt {
			return l.Int == g.Int, true
		}
	case ir.GuardFloat:
		if l.Kind == ir.LitFloat {
			return l.Float == g.Float, true
		}
	case ir.GuardString:
		if l.Kind == ir.LitString {
			return l.Str == g.Str, true
		}
	case ir.GuardChar:
		if l.Kind == ir.LitChar {
			return l.Char == g.Char, true
		}
	case ir.GuardBool:
		if l.Kind == ir.LitBool {
			return l.Bool == g.Bool, true
		}
	case ir.GuardArrayLen:
		if l.Kind == ir.LitArray {
			return len(l.Array) == g.Len, true
		}
	}
	return false, false
}

// evalBranches scans arms in order (§4.1.4): a statically-false predicate
// drops its arm, a stuck predicate keeps its arm in the residual branch, and
// the first statically-true one commits to that arm's body — further
// flattening it if the body is itself a (partially or fully determined)
// branch — which becomes the residual branch's default as a SemBranchTry
// carrying the arms after it, so a later quoter can attempt to absorb them
// into an enclosing branch's default.
func evalBranches(env *semantics.Env, arms []ir.BranchArm[*ir.Expr], def **ir.Expr) semantics.Sem {
	initArms := armsToSem(env, arms)
	initDef := lazyDefault(env, def)
	return resolveBranch(nil, initArms, initDef, initArms, initDef)
}

// ResumeBranches re-enters the same resolution algorithm for a quoter that
// is reassembling a default branch out of a saved (arms, default) resume
// context (§4.3).
func ResumeBranches(arms []semantics.SemBranchArm, def *semantics.Thunk) semantics.Sem {
	return resolveBranch(nil, arms, def, arms, def)
}

func armsToSem(env *semantics.Env, arms []ir.BranchArm[*ir.Expr]) []semantics.SemBranchArm {
	out := make([]semantics.SemBranchArm, len(arms))
	for i, arm := range arms {
		arm := arm
		out[i] = semantics.SemBranchArm{
			Pred: semantics.NewThunk(func() semantics.Sem { return Eval(env, arm.Pred) }),
			Body: semantics.NewThunk(func() semantics.Sem { return Eval(env, arm.Body) }),
		}
	}
	return out
}

func lazyDefault(env *semantics.Env, def **ir.Expr) *semantics.Thunk {
	if def == nil {
		return nil
	}
	d := *def
	return semantics.NewThunk(func() semantics.Sem { return Eval(env, d) })
}

// resolveBranch scans arms against acc, the residual of prior stuck arms.
// initArms/initDef are the original, unrewritten top-level arms/default the
// scan started from — threaded through unchanged so that if every arm's
// predicate resolves statically false with no default, the degenerate case
// falls back to them (§4.1.4's "SemBranch initBranches Nothing") instead of
// to the emptied accumulator, which would otherwise look like an
// exhaustiveness failure that was never actually in the input.
func resolveBranch(acc []semantics.SemBranchArm, arms []semantics.SemBranchArm, def *semantics.Thunk, initArms []semantics.SemBranchArm, initDef *semantics.Thunk) semantics.Sem {
	if len(arms) == 0 {
		if len(acc) == 0 {
			if def != nil {
				return def.Force()
			}
			return semantics.SemBranch{Arms: initArms, Default: initDef}
		}
		return semantics.SemBranch{Arms: acc, Default: def}
	}
	head, tail := arms[0], arms[1:]
	predSem := head.Pred.Force()
	if lit, ok := predSem.(semantics.SemLit); ok && lit.Lit.Kind == ir.LitBool {
		if !lit.Lit.Bool {
			return resolveBranch(acc, tail, def, initArms, initDef)
		}
		bodySem := head.Body.Force()
		if sb, ok := bodySem.(semantics.SemBranch); ok {
			if sb.Default != nil {
				return resolveBranch(acc, sb.Arms, sb.Default, initArms, initDef)
			}
			return resolveBranch(acc, append(append([]semantics.SemBranchArm(nil), tail...), sb.Arms...), def, initArms, initDef)
		}
		return semantics.SemBranch{
			Arms:    acc,
			Default: semantics.Done(semantics.SemBranchTry{Body: bodySem, Arms: tail, Default: def}),
		}
	}
	return resolveBranch(append(append([]semantics.SemBranchArm(nil), acc...), head), tail, def, initArms, initDef)
}
