// Package extern implements extern resolution (§4.6): turning a reference
// to an imported definition, plus whatever spine of operations has been
// applied to it so far, into a semantic value — deciding along the way
// whether the definition is cheap enough (or explicitly directed) to
// inline at this use site.
package extern

import (
	"fmt"

	"github.com/htmue/purescript-backend-optimizer/internal/analysis"
	"github.com/htmue/purescript-backend-optimizer/internal/build"
	"github.com/htmue/purescript-backend-optimizer/internal/eval"
	"github.com/htmue/purescript-backend-optimizer/internal/ir"
	"github.com/htmue/purescript-backend-optimizer/internal/semantics"
)

// EvalRef identifies a top-level binding or a named accessor path into one
// (§6). A bare top-level reference has an empty Path.
type EvalRef struct {
	Qualified ir.Qualified
	Path      []ir.Accessor
}

// DirectiveKind is one of the four inline directives a caller may pin to an
// EvalRef.
type DirectiveKind int

const (
	// Default defers entirely to shouldInlineExternApp.
	Default DirectiveKind = iota
	// Never forbids inlining an application (or a dictionary method call);
	// the reference stays a SemExtern. Directives are not consulted for a
	// bare reference to a Var-aliased definition or for a GetProp on a
	// record-literal definition, which resolve regardless.
	Never
	// Always inlines whenever the spine shape otherwise matches, skipping
	// the size/complexity heuristic.
	Always
	// ArityN inlines only once the call site supplies at least N arguments.
	ArityN
)

// InlineDirective pins a DirectiveKind, with N meaningful only for ArityN.
type InlineDirective struct {
	Kind DirectiveKind
	N    int
}

// directiveEntry pairs an EvalRef with the directive that applies to it.
type directiveEntry struct {
	Ref EvalRef
	Dir InlineDirective
}

// Directives maps EvalRef to the directive that applies to it. Absent keys
// behave as Default. EvalRef embeds a slice (Path), so it cannot be a Go
// map key; this is stored as an association list instead.
type Directives []directiveEntry

// Set records the directive that applies to ref, replacing any prior entry.
func (d *Directives) Set(ref EvalRef, dir InlineDirective) {
	for i := range *d {
		if evalRefEqual((*d)[i].Ref, ref) {
			(*d)[i].Dir = dir
			return
		}
	}
	*d = append(*d, directiveEntry{Ref: ref, Dir: dir})
}

func evalRefEqual(a, b EvalRef) bool {
	if a.Qualified != b.Qualified || len(a.Path) != len(b.Path) {
		return false
	}
	for i := range a.Path {
		if a.Path[i] != b.Path[i] {
			return false
		}
	}
	return true
}

func (d Directives) lookup(ref EvalRef) InlineDirective {
	for _, e := range d {
		if evalRefEqual(e.Ref, ref) {
			return e.Dir
		}
	}
	return InlineDirective{Kind: Default}
}

// Impl is one of the four extern-implementation shapes (§4.6).
type Impl interface{ implTag() }

// ImplExpr is a definition given directly as an expression.
type ImplExpr struct{ Expr *ir.Expr }

func (ImplExpr) implTag() {}

// ImplCtor is a data-constructor definition: applying it to its declared
// fields yields a saturated constructor value.
type ImplCtor struct {
	Tag    string
	Fields []ir.Ident
}

func (ImplCtor) implTag() {}

// DictEntry is one method of an ImplDict, carrying its own analysis for the
// inline heuristic.
type DictEntry struct {
	Analysis analysis.Analysis
	Body     *ir.Expr
}

// ImplDict is a typeclass-dictionary-shaped definition: a record of named
// methods, each individually eligible for inlining through a GetProp
// projection immediately followed by application.
type ImplDict struct{ Props map[string]DictEntry }

func (ImplDict) implTag() {}

// ImplRec is a definition that is never inlined (typically because it
// participates in module-level mutual recursion the core cannot see
// through).
type ImplRec struct{ Expr *ir.Expr }

func (ImplRec) implTag() {}

// Definition pairs an Impl with the analysis of its underlying expression,
// exactly as the driver-supplied lookupExtern callback returns (§6).
type Definition struct {
	Analysis analysis.Analysis
	Impl     Impl
}

// LookupFunc resolves a qualified extern reference to its Definition. It is
// the seam internal/testrunner/mockgen targets to produce a test double.
type LookupFunc interface {
	Lookup(qual ir.Qualified) (Definition, bool)
}

// Table is the simplest LookupFunc: an immutable map, safe for concurrent
// reads across modules evaluated in parallel (§5).
type Table map[ir.Qualified]Definition

func (t Table) Lookup(qual ir.Qualified) (Definition, bool) {
	d, ok := t[qual]
	return d, ok
}

// Resolver adapts a LookupFunc and a Directives map into a
// semantics.EvalExternFunc suitable for semantics.Env.EvalExtern.
type Resolver struct {
	Lookup     LookupFunc
	Directives Directives
}

// Resolve implements semantics.EvalExternFunc.
func (r Resolver) Resolve(env *semantics.Env, qual ir.Qualified, spine []semantics.ExternOp) (semantics.Sem, bool) {
	def, ok := r.Lookup.Lookup(qual)
	if !ok {
		return nil, false
	}
	switch impl := def.Impl.(type) {
	case ImplExpr:
		return r.resolveExpr(env, qual, def.Analysis, impl, spine)
	case ImplCtor:
		return resolveCtor(qual, impl, spine)
	case ImplDict:
		return r.resolveDict(env, qual, impl, spine)
	case ImplRec:
		return nil, false
	default:
		panic(&ir.FatalError{Message: fmt.Sprintf("extern: implementation of unrecognized dynamic type for %s", qual)})
	}
}

func (r Resolver) resolveExpr(env *semantics.Env, qual ir.Qualified, a analysis.Analysis, impl ImplExpr, spine []semantics.ExternOp) (semantics.Sem, bool) {
	switch len(spine) {
	case 0:
		if isVar(impl.Expr) {
			return eval.Eval(env, impl.Expr), true
		}
	case 1:
		if acc, ok := spine[0].(semantics.ExternAccessor); ok && acc.Acc.Kind == ir.GetProp {
			if v, ok := lookupLitRecordProp(impl.Expr, acc.Acc.Prop); ok {
				return eval.Eval(env, v), true
			}
			return nil, false
		}
		if app, ok := spine[0].(semantics.ExternApp); ok {
			ref := EvalRef{Qualified: qual}
			if r.decideInline(ref, a, len(app.Args)) {
				return applyThunks(env, impl.Expr, app.Args), true
			}
		}
	}
	return nil, false
}

func resolveCtor(qual ir.Qualified, impl ImplCtor, spine []semantics.ExternOp) (semantics.Sem, bool) {
	if len(spine) == 0 && len(impl.Fields) == 0 {
		return semantics.SemNeutral{N: semantics.NeutData{Qual: qual, Tag: impl.Tag}}, true
	}
	if len(spine) == 1 {
		if app, ok := spine[0].(semantics.ExternApp); ok && len(app.Args) == len(impl.Fields) {
			return semantics.SemNeutral{N: semantics.NeutData{Qual: qual, Tag: impl.Tag, Fields: app.Args}}, true
		}
	}
	return nil, false
}

func (r Resolver) resolveDict(env *semantics.Env, qual ir.Qualified, impl ImplDict, spine []semantics.ExternOp) (semantics.Sem, bool) {
	if len(spine) != 2 {
		return nil, false
	}
	acc, ok := spine[0].(semantics.ExternAccessor)
	if !ok || acc.Acc.Kind != ir.GetProp {
		return nil, false
	}
	app, ok := spine[1].(semantics.ExternApp)
	if !ok {
		return nil, false
	}
	entry, ok := impl.Props[acc.Acc.Prop]
	if !ok {
		return nil, false
	}
	ref := EvalRef{Qualified: qual, Path: []ir.Accessor{acc.Acc}}
	if !r.decideInline(ref, entry.Analysis, len(app.Args)) {
		return nil, false
	}
	return applyThunks(env, entry.Body, app.Args), true
}

func (r Resolver) decideInline(ref EvalRef, a analysis.Analysis, argCount int) bool {
	switch r.Directives.lookup(ref).Kind {
	case Never:
		return false
	case Always:
		return true
	case ArityN:
		return argCount >= r.Directives.lookup(ref).N
	default:
		return build.ShouldInlineExternApp(a, argCount)
	}
}

func applyThunks(env *semantics.Env, fn *ir.Expr, args []*semantics.Thunk) semantics.Sem {
	head := eval.Eval(env, fn)
	return eval.ApplyThunks(head, args)
}

func isVar(e *ir.Expr) bool {
	syn, ok := e.Node.(ir.SyntaxExpr)
	if !ok {
		return false
	}
	_, ok = syn.S.(ir.Var[*ir.Expr])
	return ok
}

func lookupLitRecordProp(e *ir.Expr, prop string) (*ir.Expr, bool) {
	syn, ok := e.Node.(ir.SyntaxExpr)
	if !ok {
		return nil, false
	}
	lit, ok := syn.S.(ir.LitNode[*ir.Expr])
	if !ok || lit.Lit.Kind != ir.LitRecord {
		return nil, false
	}
	for _, f := range lit.Lit.Record {
		if f.Key == prop {
			return f.Value, true
		}
	}
	return nil, false
}
