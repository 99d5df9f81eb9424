// Package semantics defines the NbE evaluation target: BackendSemantics,
// BackendNeutral, ExternSpine, and the evaluation Env. Semantic values may
// embed host closures (option (a) of SPEC_FULL.md §9); they exist only
// between Eval and Quote and are never serialized.
package semantics

import (
	"github.com/htmue/purescript-backend-optimizer/internal/ir"
)

// Thunk is a single-slot memoized lazy cell. Force() evaluates fn exactly
// once; later calls return the memoized value. Not safe for concurrent
// force from multiple goroutines (§5: never observed across threads).
type Thunk struct {
	fn     func() Sem
	forced bool
	value  Sem
}

// NewThunk wraps fn in a not-yet-forced Thunk.
func NewThunk(fn func() Sem) *Thunk {
	return &Thunk{fn: fn}
}

// Done wraps an already-evaluated value in a pre-forced Thunk.
func Done(v Sem) *Thunk {
	return &Thunk{forced: true, value: v}
}

// Force evaluates the thunk on first use and memoizes the result.
func (t *Thunk) Force() Sem {
	if !t.forced {
		t.value = t.fn()
		t.forced = true
		t.fn = nil
	}
	return t.value
}

// Sem is a BackendSemantics value.
type Sem interface {
	semTag()
}

// SemExtern is an unresolved reference to an imported definition together
// with the spine of operations applied to it so far, and a lazy fallback
// that reifies it as a neutral if it never resolves.
type SemExtern struct {
	Qual    ir.Qualified
	Spine   []ExternOp
	Neutral *Thunk
}

func (SemExtern) semTag() {}

// ExternOp is one entry of an ExternSpine: a contiguous application or a
// single projection. Consecutive ExternApp entries always coalesce, so a
// spine never contains two adjacent ExternApp values.
type ExternOp interface{ externOpTag() }

type ExternApp struct{ Args []*Thunk }

func (ExternApp) externOpTag() {}

type ExternAccessor struct{ Acc ir.Accessor }

func (ExternAccessor) externOpTag() {}

// AppendApp appends args to spine, coalescing with a trailing ExternApp.
func AppendApp(spine []ExternOp, args []*Thunk) []ExternOp {
	if n := len(spine); n > 0 {
		if last, ok := spine[n-1].(ExternApp); ok {
			out := append([]ExternOp(nil), spine[:n-1]...)
			return append(out, ExternApp{Args: append(append([]*Thunk(nil), last.Args...), args...)})
		}
	}
	return append(append([]ExternOp(nil), spine...), ExternApp{Args: args})
}

// AppendAccessor appends a projection to spine.
func AppendAccessor(spine []ExternOp, acc ir.Accessor) []ExternOp {
	return append(append([]ExternOp(nil), spine...), ExternAccessor{Acc: acc})
}

// SemLam is a one-parameter host closure; ident is kept only for quoting
// readability.
type SemLam struct {
	Ident *ir.Ident
	K     func(Sem) Sem
}

func (SemLam) semTag() {}

// SemLet is a named, eagerly-evaluated binding with a host continuation for
// its body.
type SemLet struct {
	Ident *ir.Ident
	Value Sem
	K     func(Sem) Sem
}

func (SemLet) semTag() {}

// SemLetRec ties the recursive-group knot: Bindings, given the group's own
// realized members (by Ident), produces each member's semantics; K consumes
// the realized group to build the body.
type SemLetRec struct {
	Idents   []ir.Ident
	Bindings func(group map[ir.Ident]Sem) map[ir.Ident]Sem
	K        func(group map[ir.Ident]Sem) Sem
}

func (SemLetRec) semTag() {}

// SemEffectBind and SemEffectPure mirror SemLet/identity but are never
// subject to the let-floating commuting conversions (§4.4).
type SemEffectBind struct {
	Ident *ir.Ident
	Value Sem
	K     func(Sem) Sem
}

func (SemEffectBind) semTag() {}

type SemEffectPure struct{ Value Sem }

func (SemEffectPure) semTag() {}

// SemBranchArm is a (predicate-thunk, body-thunk) pair.
type SemBranchArm struct {
	Pred *Thunk
	Body *Thunk
}

// SemBranch is a stuck multi-way test whose scrutinees have been evaluated
// (as thunks) but not yet resolved.
type SemBranch struct {
	Arms    []SemBranchArm
	Default *Thunk
}

func (SemBranch) semTag() {}

// SemBranchTry packages a resolved branch's body together with its still-
// pending sibling branches, so a quoter with surrounding context can
// attempt to absorb them (§4.1.4, §4.3).
type SemBranchTry struct {
	Body    Sem
	Arms    []SemBranchArm
	Default *Thunk
}

func (SemBranchTry) semTag() {}

// SemAccessor is a stuck projection.
type SemAccessor struct {
	Lhs Sem
	Acc ir.Accessor
}

func (SemAccessor) semTag() {}

// SemUpdate is a stuck record update.
type SemUpdate struct {
	Lhs   Sem
	Props []ir.Prop[Sem]
}

func (SemUpdate) semTag() {}

// SemNeutral wraps a fully-stuck Neutral value.
type SemNeutral struct{ N Neutral }

func (SemNeutral) semTag() {}

// SemLit is a known (not stuck) literal whose children are themselves
// semantic values, so accessors, updates, and tests against it resolve
// directly instead of getting stuck.
type SemLit struct{ Lit ir.Lit[Sem] }

func (SemLit) semTag() {}

// Neutral is a value stuck on an unknown (BackendNeutral).
type Neutral interface{ neutralTag() }

type NeutLocal struct {
	Ident *ir.Ident
	Level ir.Level
}

func (NeutLocal) neutralTag() {}

type NeutVar struct{ Qual ir.Qualified }

func (NeutVar) neutralTag() {}

// NeutData is a partially- or fully-applied data constructor stuck on
// unresolved fields.
type NeutData struct {
	Qual   ir.Qualified
	Tag    string
	Fields []*Thunk
}

func (NeutData) neutralTag() {}

// NeutCtorDef reifies a CtorDef declaration (field-name layout only, never
// applied to anything, so it carries no qualified reference of its own).
type NeutCtorDef struct {
	Tag    string
	Fields []ir.Ident
}

func (NeutCtorDef) neutralTag() {}

type NeutApp struct {
	Head Neutral
	Args []*Thunk
}

func (NeutApp) neutralTag() {}

type NeutAccessor struct {
	Lhs Neutral
	Acc ir.Accessor
}

func (NeutAccessor) neutralTag() {}

type NeutUpdate struct {
	Lhs   Neutral
	Props []ir.Prop[Sem]
}

func (NeutUpdate) neutralTag() {}

type NeutTest struct {
	Lhs   Neutral
	Guard ir.Guard
}

func (NeutTest) neutralTag() {}

// NeutLit lifts a literal whose sub-values are semantics (not yet
// reified), e.g. a record literal encountered as the scrutinee of an
// accessor.
type NeutLit struct{ Lit ir.Lit[Sem] }

func (NeutLit) neutralTag() {}

type NeutFail struct{ Message string }

func (NeutFail) neutralTag() {}

// Binding is one slot of the environment's local sequence: either a single
// value or a named recursive group, looked up by Level, with per-member
// lookup by Ident within a group.
type Binding interface{ bindingTag() }

type SingleBinding struct{ Value Sem }

func (SingleBinding) bindingTag() {}

type GroupBinding struct{ Members map[ir.Ident]Sem }

func (GroupBinding) bindingTag() {}

// EvalExternFunc resolves a qualified name plus accumulated spine to a
// semantic value, or returns ok=false to opt out ("unknown"). It must be
// safe for concurrent read-only use if a driver evaluates distinct modules
// concurrently (§5).
type EvalExternFunc func(env *Env, qual ir.Qualified, spine []ExternOp) (Sem, bool)

// Env is the evaluator's environment: the current module, the extern
// callback, and the ordered local bindings indexed by Level.
type Env struct {
	Module     ir.ModuleName
	EvalExtern EvalExternFunc
	Locals     []Binding
}

// Extend returns a copy of env with value appended as the next single
// binding (the next Level).
func (env *Env) Extend(value Sem) *Env {
	out := *env
	out.Locals = append(append([]Binding(nil), env.Locals...), SingleBinding{Value: value})
	return &out
}

// ExtendGroup returns a copy of env with a named recursive group appended
// as the next binding.
func (env *Env) ExtendGroup(members map[ir.Ident]Sem) *Env {
	out := *env
	out.Locals = append(append([]Binding(nil), env.Locals...), GroupBinding{Members: members})
	return &out
}

// NextLevel is the Level a fresh Extend/ExtendGroup call would occupy.
func (env *Env) NextLevel() ir.Level { return ir.Level(len(env.Locals)) }

// Lookup resolves a Local reference. Absence at this Level, or absence of
// ident within a group binding, is a programmer error and panics with an
// *ir.FatalError (§7).
func (env *Env) Lookup(ident *ir.Ident, level ir.Level) Sem {
	if int(level) < 0 || int(level) >= len(env.Locals) {
		panic(&ir.FatalError{
			Kind:    ir.UnboundLocal,
			Level:   level,
			Message: "unbound local reference at evaluation time",
		})
	}
	switch b := env.Locals[level].(type) {
	case SingleBinding:
		return b.Value
	case GroupBinding:
		if ident == nil {
			panic(&ir.FatalError{
				Kind:    ir.MissingGroupMember,
				Level:   level,
				Message: "recursive-group access requires an identifier",
			})
		}
		if v, ok := b.Members[*ident]; ok {
			return v
		}
		panic(&ir.FatalError{
			Kind:    ir.MissingGroupMember,
			Level:   level,
			Ident:   *ident,
			Message: "identifier absent from its own recursive group",
		})
	}
	panic(&ir.FatalError{Kind: ir.UnboundLocal, Level: level, Message: "corrupt environment binding"})
}
