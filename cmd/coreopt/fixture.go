// Fixture parsing turns the tiny JSON surface syntax this CLI accepts into
// this module's own IR, allocating fresh de Bruijn levels for each binder in
// exactly the order the evaluator itself will later extend an Env, using
// internal/build's smart constructors throughout so a fixture is optimized
// through the identical path a real caller's IR would take.
package main

import (
	"encoding/json"
	"fmt"

	"github.com/htmue/purescript-backend-optimizer/internal/analysis"
	"github.com/htmue/purescript-backend-optimizer/internal/build"
	"github.com/htmue/purescript-backend-optimizer/internal/extern"
	"github.com/htmue/purescript-backend-optimizer/internal/ir"
)

// ModuleFixture is the top-level document cmd/coreopt loads: a module name,
// the extern table it should resolve against, any inline-directive
// overrides, and the single expression to optimize.
type ModuleFixture struct {
	SchemaVersion string             `json:"schemaVersion"`
	Module        string             `json:"module"`
	Externs       []ExternFixture    `json:"externs,omitempty"`
	Directives    []DirectiveFixture `json:"directives,omitempty"`
	Expr          ExprJSON           `json:"expr"`
	MaxIterations int                `json:"maxIterations,omitempty"`
}

// ExternFixture declares one entry of the extern table (§4.6).
type ExternFixture struct {
	Module string   `json:"module"`
	Name   string   `json:"name"`
	Impl   ImplJSON `json:"impl"`
}

// ImplJSON is one of the four extern-implementation shapes, tagged by Kind.
type ImplJSON struct {
	Kind   string           `json:"kind"` // "expr" | "ctor" | "dict" | "rec"
	Expr   *ExprJSON        `json:"expr,omitempty"`
	Tag    string           `json:"tag,omitempty"`
	Fields []string         `json:"fields,omitempty"`
	Props  map[string]struct {
		Expr ExprJSON `json:"expr"`
	} `json:"props,omitempty"`
}

// DirectiveFixture pins an inline directive to an EvalRef (§6).
type DirectiveFixture struct {
	Module    string           `json:"module"`
	Name      string           `json:"name"`
	Path      []AccessorJSON   `json:"path,omitempty"`
	Directive string           `json:"directive"` // "never" | "always" | "arity" | "default"
	N         int              `json:"n,omitempty"`
}

// AccessorJSON mirrors ir.Accessor.
type AccessorJSON struct {
	Kind  string `json:"kind"` // "prop" | "index" | "offset"
	Prop  string `json:"prop,omitempty"`
	Index int    `json:"index,omitempty"`
}

// ExprJSON is the recursive expression syntax, tagged by Node.
type ExprJSON struct {
	Node string `json:"node"`

	// var
	Module string `json:"module,omitempty"`
	Name   string `json:"name,omitempty"`

	// lit
	Kind   string           `json:"kind,omitempty"`
	Int    int64            `json:"int,omitempty"`
	Float  float64          `json:"float,omitempty"`
	Str    string           `json:"str,omitempty"`
	Char   string           `json:"char,omitempty"`
	Bool   bool             `json:"bool,omitempty"`
	Array  []ExprJSON       `json:"array,omitempty"`
	Record []RecordFieldJSON `json:"record,omitempty"`

	// app
	Head *ExprJSON  `json:"head,omitempty"`
	Args []ExprJSON `json:"args,omitempty"`

	// abs
	Params []string `json:"params,omitempty"`
	Body   *ExprJSON `json:"body,omitempty"`

	// let / effectBind
	Ident   string    `json:"ident,omitempty"`
	Binding *ExprJSON `json:"binding,omitempty"`

	// letrec
	Bindings []LetRecBindingJSON `json:"bindings,omitempty"`

	// effectPure
	Value *ExprJSON `json:"value,omitempty"`

	// accessor
	Lhs *ExprJSON     `json:"lhs,omitempty"`
	Acc *AccessorJSON `json:"acc,omitempty"`

	// update
	Props []PropJSON `json:"props,omitempty"`

	// branch
	Arms    []BranchArmJSON `json:"arms,omitempty"`
	Default *ExprJSON       `json:"default,omitempty"`

	// test
	Guard *GuardJSON `json:"guard,omitempty"`

	// ctorDef / ctorSaturated
	Tag    string     `json:"tag,omitempty"`
	Fields []string   `json:"fields,omitempty"`
	FieldExprs []ExprJSON `json:"fieldExprs,omitempty"`

	// fail
	Message string `json:"message,omitempty"`
}

type RecordFieldJSON struct {
	Key   string   `json:"key"`
	Value ExprJSON `json:"value"`
}

type PropJSON struct {
	Key   string   `json:"key"`
	Value ExprJSON `json:"value"`
}

type BranchArmJSON struct {
	Pred ExprJSON `json:"pred"`
	Body ExprJSON `json:"body"`
}

type LetRecBindingJSON struct {
	Ident string   `json:"ident"`
	Body  ExprJSON `json:"body"`
}

// GuardJSON mirrors ir.Guard.
type GuardJSON struct {
	Kind  string  `json:"kind"`
	Int   int64   `json:"int,omitempty"`
	Float float64 `json:"float,omitempty"`
	Str   string  `json:"str,omitempty"`
	Char  string  `json:"char,omitempty"`
	Bool  bool    `json:"bool,omitempty"`
	Tag   string  `json:"tag,omitempty"`
	Len   int     `json:"len,omitempty"`
}

func loadFixture(data []byte) (ModuleFixture, error) {
	var f ModuleFixture
	if err := json.Unmarshal(data, &f); err != nil {
		return ModuleFixture{}, fmt.Errorf("fixture: %w", err)
	}
	return f, nil
}

// scopeEntry names a binder already in scope while parsing a fixture body.
type scopeEntry struct {
	ident *ir.Ident
	level ir.Level
}

type scope map[string]scopeEntry

func (s scope) extend(name string, ident *ir.Ident, level ir.Level) scope {
	out := make(scope, len(s)+1)
	for k, v := range s {
		out[k] = v
	}
	out[name] = scopeEntry{ident: ident, level: level}
	return out
}

// parser assigns fresh levels in exactly the order the evaluator will later
// extend an Env for the same nesting (§7): once per Abs parameter, once per
// Let/EffectBind binder, once per LetRec group.
type parser struct {
	next ir.Level
}

func (p *parser) fresh() ir.Level {
	l := p.next
	p.next++
	return l
}

func parseModule(f ModuleFixture) (*ir.Expr, extern.Table, extern.Directives, error) {
	p := &parser{}
	expr, err := p.parseExpr(scope{}, f.Expr)
	if err != nil {
		return nil, nil, nil, err
	}
	table := extern.Table{}
	for _, ef := range f.Externs {
		def, err := p.parseExtern(ef)
		if err != nil {
			return nil, nil, nil, err
		}
		table[ir.Qualified{Module: ir.ModuleName(ef.Module), Name: ir.Ident(ef.Name)}] = def
	}
	directives := extern.Directives{}
	for _, df := range f.Directives {
		ref, dir, err := parseDirective(df)
		if err != nil {
			return nil, nil, nil, err
		}
		directives.Set(ref, dir)
	}
	return expr, table, directives, nil
}

func (p *parser) parseExtern(ef ExternFixture) (extern.Definition, error) {
	switch ef.Impl.Kind {
	case "expr":
		if ef.Impl.Expr == nil {
			return extern.Definition{}, fmt.Errorf("extern %s.%s: expr impl missing expr", ef.Module, ef.Name)
		}
		e, err := p.parseExpr(scope{}, *ef.Impl.Expr)
		if err != nil {
			return extern.Definition{}, err
		}
		return extern.Definition{Analysis: e.Analysis(), Impl: extern.ImplExpr{Expr: e}}, nil
	case "rec":
		if ef.Impl.Expr == nil {
			return extern.Definition{}, fmt.Errorf("extern %s.%s: rec impl missing expr", ef.Module, ef.Name)
		}
		e, err := p.parseExpr(scope{}, *ef.Impl.Expr)
		if err != nil {
			return extern.Definition{}, err
		}
		return extern.Definition{Analysis: e.Analysis(), Impl: extern.ImplRec{Expr: e}}, nil
	case "ctor":
		fields := make([]ir.Ident, len(ef.Impl.Fields))
		for i, f := range ef.Impl.Fields {
			fields[i] = ir.Ident(f)
		}
		return extern.Definition{Analysis: analysis.Zero(), Impl: extern.ImplCtor{Tag: ef.Impl.Tag, Fields: fields}}, nil
	case "dict":
		props := make(map[string]extern.DictEntry, len(ef.Impl.Props))
		for name, entry := range ef.Impl.Props {
			e, err := p.parseExpr(scope{}, entry.Expr)
			if err != nil {
				return extern.Definition{}, err
			}
			props[name] = extern.DictEntry{Analysis: e.Analysis(), Body: e}
		}
		return extern.Definition{Analysis: analysis.Zero(), Impl: extern.ImplDict{Props: props}}, nil
	default:
		return extern.Definition{}, fmt.Errorf("extern %s.%s: unknown impl kind %q", ef.Module, ef.Name, ef.Impl.Kind)
	}
}

func parseDirective(df DirectiveFixture) (extern.EvalRef, extern.InlineDirective, error) {
	path := make([]ir.Accessor, len(df.Path))
	for i, a := range df.Path {
		acc, err := parseAccessor(a)
		if err != nil {
			return extern.EvalRef{}, extern.InlineDirective{}, err
		}
		path[i] = acc
	}
	ref := extern.EvalRef{Qualified: ir.Qualified{Module: ir.ModuleName(df.Module), Name: ir.Ident(df.Name)}, Path: path}
	switch df.Directive {
	case "never":
		return ref, extern.InlineDirective{Kind: extern.Never}, nil
	case "always":
		return ref, extern.InlineDirective{Kind: extern.Always}, nil
	case "arity":
		return ref, extern.InlineDirective{Kind: extern.ArityN, N: df.N}, nil
	case "default", "":
		return ref, extern.InlineDirective{Kind: extern.Default}, nil
	default:
		return extern.EvalRef{}, extern.InlineDirective{}, fmt.Errorf("directive: unknown kind %q", df.Directive)
	}
}

func parseAccessor(a AccessorJSON) (ir.Accessor, error) {
	switch a.Kind {
	case "prop":
		return ir.AccGetProp(a.Prop), nil
	case "index":
		return ir.AccGetIndex(a.Index), nil
	case "offset":
		return ir.AccGetOffset(a.Index), nil
	default:
		return ir.Accessor{}, fmt.Errorf("accessor: unknown kind %q", a.Kind)
	}
}

func parseGuard(g GuardJSON) (ir.Guard, error) {
	switch g.Kind {
	case "int":
		return ir.Guard{Kind: ir.GuardInt, Int: g.Int}, nil
	case "float":
		return ir.Guard{Kind: ir.GuardFloat, Float: g.Float}, nil
	case "string":
		return ir.Guard{Kind: ir.GuardString, Str: g.Str}, nil
	case "char":
		return ir.Guard{Kind: ir.GuardChar, Char: firstRune(g.Char)}, nil
	case "bool":
		return ir.Guard{Kind: ir.GuardBool, Bool: g.Bool}, nil
	case "ctorTag":
		return ir.Guard{Kind: ir.GuardCtorTag, Tag: g.Tag}, nil
	case "arrayLen":
		return ir.Guard{Kind: ir.GuardArrayLen, Len: g.Len}, nil
	default:
		return ir.Guard{}, fmt.Errorf("guard: unknown kind %q", g.Kind)
	}
}

func firstRune(s string) rune {
	for _, r := range s {
		return r
	}
	return 0
}

func (p *parser) parseExpr(env scope, e ExprJSON) (*ir.Expr, error) {
	defer func(saved ir.Level) { p.next = saved }(p.next)
	switch e.Node {
	case "var":
		return build.Var(ir.Qualified{Module: ir.ModuleName(e.Module), Name: ir.Ident(e.Name)}), nil
	case "local":
		entry, ok := env[e.Name]
		if !ok {
			return nil, fmt.Errorf("local %q not in scope", e.Name)
		}
		return build.Local(entry.ident, entry.level), nil
	case "lit":
		return p.parseLit(env, e)
	case "app":
		if e.Head == nil {
			return nil, fmt.Errorf("app: missing head")
		}
		head, err := p.parseExpr(env, *e.Head)
		if err != nil {
			return nil, err
		}
		args, err := p.parseExprs(env, e.Args)
		if err != nil {
			return nil, err
		}
		return build.App(head, args), nil
	case "abs":
		if len(e.Params) == 0 || e.Body == nil {
			return nil, fmt.Errorf("abs: needs at least one param and a body")
		}
		params := make([]ir.Param, len(e.Params))
		child := env
		for i, name := range e.Params {
			level := p.fresh()
			ident := ir.Ident(name)
			params[i] = ir.Param{Ident: ident, Level: level}
			child = child.extend(name, &ident, level)
		}
		body, err := p.parseExpr(child, *e.Body)
		if err != nil {
			return nil, err
		}
		return build.Abs(params, body), nil
	case "let":
		if e.Binding == nil || e.Body == nil {
			return nil, fmt.Errorf("let: needs binding and body")
		}
		binding, err := p.parseExpr(env, *e.Binding)
		if err != nil {
			return nil, err
		}
		level := p.fresh()
		ident := ir.Ident(e.Ident)
		body, err := p.parseExpr(env.extend(e.Ident, &ident, level), *e.Body)
		if err != nil {
			return nil, err
		}
		return build.Let(ident, level, binding, body), nil
	case "letrec":
		if len(e.Bindings) == 0 || e.Body == nil {
			return nil, fmt.Errorf("letrec: needs bindings and body")
		}
		level := p.fresh()
		child := env
		idents := make([]*ir.Ident, len(e.Bindings))
		for i, b := range e.Bindings {
			ident := ir.Ident(b.Ident)
			idents[i] = &ident
			child = child.extend(b.Ident, &ident, level)
		}
		bindings := make([]ir.LetRecBinding[*ir.Expr], len(e.Bindings))
		for i, b := range e.Bindings {
			body, err := p.parseExpr(child, b.Body)
			if err != nil {
				return nil, err
			}
			bindings[i] = ir.LetRecBinding[*ir.Expr]{Ident: *idents[i], Body: body}
		}
		body, err := p.parseExpr(child, *e.Body)
		if err != nil {
			return nil, err
		}
		return build.LetRec(level, bindings, body), nil
	case "effectBind":
		if e.Binding == nil || e.Body == nil {
			return nil, fmt.Errorf("effectBind: needs binding and body")
		}
		binding, err := p.parseExpr(env, *e.Binding)
		if err != nil {
			return nil, err
		}
		level := p.fresh()
		ident := ir.Ident(e.Ident)
		body, err := p.parseExpr(env.extend(e.Ident, &ident, level), *e.Body)
		if err != nil {
			return nil, err
		}
		return build.EffectBind(ident, level, binding, body), nil
	case "effectPure":
		if e.Value == nil {
			return nil, fmt.Errorf("effectPure: missing value")
		}
		v, err := p.parseExpr(env, *e.Value)
		if err != nil {
			return nil, err
		}
		return build.EffectPure(v), nil
	case "accessor":
		if e.Lhs == nil || e.Acc == nil {
			return nil, fmt.Errorf("accessor: needs lhs and acc")
		}
		lhs, err := p.parseExpr(env, *e.Lhs)
		if err != nil {
			return nil, err
		}
		acc, err := parseAccessor(*e.Acc)
		if err != nil {
			return nil, err
		}
		return build.Accessor(lhs, acc), nil
	case "update":
		if e.Lhs == nil {
			return nil, fmt.Errorf("update: missing lhs")
		}
		lhs, err := p.parseExpr(env, *e.Lhs)
		if err != nil {
			return nil, err
		}
		props := make([]ir.Prop[*ir.Expr], len(e.Props))
		for i, pr := range e.Props {
			v, err := p.parseExpr(env, pr.Value)
			if err != nil {
				return nil, err
			}
			props[i] = ir.Prop[*ir.Expr]{Key: pr.Key, Value: v}
		}
		return build.Update(lhs, props), nil
	case "branch":
		arms := make([]ir.BranchArm[*ir.Expr], len(e.Arms))
		for i, arm := range e.Arms {
			pred, err := p.parseExpr(env, arm.Pred)
			if err != nil {
				return nil, err
			}
			body, err := p.parseExpr(env, arm.Body)
			if err != nil {
				return nil, err
			}
			arms[i] = ir.BranchArm[*ir.Expr]{Pred: pred, Body: body}
		}
		var def *ir.Expr
		if e.Default != nil {
			d, err := p.parseExpr(env, *e.Default)
			if err != nil {
				return nil, err
			}
			def = d
		}
		return build.Branch(arms, def), nil
	case "test":
		if e.Lhs == nil || e.Guard == nil {
			return nil, fmt.Errorf("test: needs lhs and guard")
		}
		lhs, err := p.parseExpr(env, *e.Lhs)
		if err != nil {
			return nil, err
		}
		guard, err := parseGuard(*e.Guard)
		if err != nil {
			return nil, err
		}
		return build.Test(lhs, guard), nil
	case "ctorDef":
		fields := make([]ir.Ident, len(e.Fields))
		for i, f := range e.Fields {
			fields[i] = ir.Ident(f)
		}
		return build.CtorDef(e.Tag, fields), nil
	case "ctorSaturated":
		fields, err := p.parseExprs(env, e.FieldExprs)
		if err != nil {
			return nil, err
		}
		return build.CtorSaturated(ir.Qualified{Module: ir.ModuleName(e.Module), Name: ir.Ident(e.Name)}, e.Tag, fields), nil
	case "fail":
		return build.Fail(e.Message), nil
	default:
		return nil, fmt.Errorf("expr: unknown node %q", e.Node)
	}
}

func (p *parser) parseLit(env scope, e ExprJSON) (*ir.Expr, error) {
	switch e.Kind {
	case "int":
		return build.LitScalar(ir.Lit[*ir.Expr]{Kind: ir.LitInt, Int: e.Int}), nil
	case "float":
		return build.LitScalar(ir.Lit[*ir.Expr]{Kind: ir.LitFloat, Float: e.Float}), nil
	case "string":
		return build.LitScalar(ir.Lit[*ir.Expr]{Kind: ir.LitString, Str: e.Str}), nil
	case "char":
		return build.LitScalar(ir.Lit[*ir.Expr]{Kind: ir.LitChar, Char: firstRune(e.Char)}), nil
	case "bool":
		return build.LitScalar(ir.Lit[*ir.Expr]{Kind: ir.LitBool, Bool: e.Bool}), nil
	case "array":
		elems, err := p.parseExprs(env, e.Array)
		if err != nil {
			return nil, err
		}
		return build.LitCompound(ir.Lit[*ir.Expr]{Kind: ir.LitArray, Array: elems}), nil
	case "record":
		fields := make([]ir.RecordField[*ir.Expr], len(e.Record))
		for i, f := range e.Record {
			v, err := p.parseExpr(env, f.Value)
			if err != nil {
				return nil, err
			}
			fields[i] = ir.RecordField[*ir.Expr]{Key: f.Key, Value: v}
		}
		return build.LitCompound(ir.Lit[*ir.Expr]{Kind: ir.LitRecord, Record: fields}), nil
	default:
		return nil, fmt.Errorf("lit: unknown kind %q", e.Kind)
	}
}

func (p *parser) parseExprs(env scope, es []ExprJSON) ([]*ir.Expr, error) {
	out := make([]*ir.Expr, len(es))
	for i, e := range es {
		v, err := p.parseExpr(env, e)
		if err != nil {
			return nil, err
		}
		out[i] = v
	}
	return out, nil
}
