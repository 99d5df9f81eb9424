// Package analysis implements the usage/size metadata (BackendAnalysis)
// attached to every IR node, its combining monoid, and the scalar
// multiplication used to model n-fold inlining cost.
//
// Level lives here rather than in internal/ir because Analysis indexes its
// Usages map by Level and internal/ir embeds an Analysis in every Expr and
// Neutral node; internal/ir re-exports this type as Level.
package analysis

// Level identifies a binder's position in the environment, counted from the
// outermost binder. Two levels are equal iff they denote the same binder.
type Level int

// Complexity orders how "hard" a term is to duplicate, from cheapest to
// most expensive: Trivial < Deref < KnownSize < NonTrivial.
type Complexity int

const (
	Trivial Complexity = iota
	Deref
	KnownSize
	NonTrivial
)

func maxComplexity(a, b Complexity) Complexity {
	if a > b {
		return a
	}
	return b
}

// Usage records how many times a level was referenced, and whether any of
// those references occurred under a closure (a "capture").
type Usage struct {
	Count    int
	Captured bool
}

func combineUsage(a, b Usage) Usage {
	return Usage{Count: a.Count + b.Count, Captured: a.Captured || b.Captured}
}

// ArgShape is an opaque hint about a parameter's statically-known shape,
// recorded per Abs parameter and concatenated by Combine.
type ArgShape int

const (
	ArgUnknown ArgShape = iota
	ArgLiteral
	ArgCtor
	ArgFunction
)

// Analysis is the metadata bag attached to every IR node (BackendAnalysis).
type Analysis struct {
	Usages     map[Level]Usage
	Size       int
	Complexity Complexity
	Args       []ArgShape
	Rewrite    bool
}

// Zero is the identity element of Combine.
func Zero() Analysis { return Analysis{} }

// Combine is the monoidal combining operator: usages sum per level, sizes
// sum, complexity takes the max, arg-shape lists concatenate, and the
// rewrite flag is boolean-or'd.
func Combine(a, b Analysis) Analysis {
	out := Analysis{
		Usages:     mergeUsages(a.Usages, b.Usages),
		Size:       a.Size + b.Size,
		Complexity: maxComplexity(a.Complexity, b.Complexity),
		Rewrite:    a.Rewrite || b.Rewrite,
	}
	if len(a.Args) > 0 || len(b.Args) > 0 {
		out.Args = append(append([]ArgShape(nil), a.Args...), b.Args...)
	}
	return out
}

// CombineAll folds Combine across a slice, starting from Zero.
func CombineAll(as ...Analysis) Analysis {
	out := Zero()
	for _, a := range as {
		out = Combine(out, a)
	}
	return out
}

func mergeUsages(a, b map[Level]Usage) map[Level]Usage {
	if len(a) == 0 && len(b) == 0 {
		return nil
	}
	out := make(map[Level]Usage, len(a)+len(b))
	for l, u := range a {
		out[l] = u
	}
	for l, u := range b {
		if existing, ok := out[l]; ok {
			out[l] = combineUsage(existing, u)
		} else {
			out[l] = u
		}
	}
	return out
}

// Scale multiplies size and usage counts by n, modeling the cost of n-fold
// inlining. Captured flags and complexity are unaffected.
func Scale(n int, a Analysis) Analysis {
	out := Analysis{
		Size:       a.Size * n,
		Complexity: a.Complexity,
		Rewrite:    a.Rewrite,
	}
	if len(a.Args) > 0 {
		out.Args = append([]ArgShape(nil), a.Args...)
	}
	if len(a.Usages) > 0 {
		out.Usages = make(map[Level]Usage, len(a.Usages))
		for l, u := range a.Usages {
			out.Usages[l] = Usage{Count: u.Count * n, Captured: u.Captured}
		}
	}
	return out
}

// Bound marks level as no longer free: it is removed from Usages so that
// outer contexts no longer see it as a dependency. Used when an Inline
// rewrite closes over its binding's former level.
func Bound(level Level, a Analysis) Analysis {
	if _, ok := a.Usages[level]; !ok {
		return a
	}
	out := a
	out.Usages = make(map[Level]Usage, len(a.Usages))
	for l, u := range a.Usages {
		if l == level {
			continue
		}
		out.Usages[l] = u
	}
	return out
}

// BoundMany removes every level in levels from a's Usages in one pass.
func BoundMany(levels []Level, a Analysis) Analysis {
	if len(a.Usages) == 0 || len(levels) == 0 {
		return a
	}
	set := make(map[Level]struct{}, len(levels))
	for _, l := range levels {
		set[l] = struct{}{}
	}
	out := a
	out.Usages = make(map[Level]Usage, len(a.Usages))
	for l, u := range a.Usages {
		if _, bound := set[l]; bound {
			continue
		}
		out.Usages[l] = u
	}
	return out
}

// MarkAllCaptured sets Captured on every usage in a. Applied by a lambda
// builder to the free-variable usages of its body, since anything still
// free once the lambda's own parameters are removed will be captured by
// the resulting closure.
func MarkAllCaptured(a Analysis) Analysis {
	if len(a.Usages) == 0 {
		return a
	}
	out := a
	out.Usages = make(map[Level]Usage, len(a.Usages))
	for l, u := range a.Usages {
		u.Captured = true
		out.Usages[l] = u
	}
	return out
}

// WithRewrite returns a with the rewrite flag forced true.
func WithRewrite(a Analysis) Analysis {
	a.Rewrite = true
	return a
}

// Use returns the analysis contributed by a single reference to level,
// optionally marked as occurring under a closure.
func Use(level Level, captured bool) Analysis {
	return Analysis{Usages: map[Level]Usage{level: {Count: 1, Captured: captured}}}
}

// UsageOf looks up level's usage in a, returning the zero Usage (count 0,
// not captured) when absent.
func UsageOf(a Analysis, level Level) Usage {
	return a.Usages[level]
}

// Leaf returns the analysis for a childless node of the given size and
// complexity (e.g. a literal scalar, a Var, a Fail).
func Leaf(size int, c Complexity) Analysis {
	return Analysis{Size: size, Complexity: c}
}
