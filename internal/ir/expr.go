package ir

import "github.com/htmue/purescript-backend-optimizer/internal/analysis"

// ExprNode is the two-case sum BackendExpr = ExprSyntax | ExprRewrite.
type ExprNode interface {
	Ann() analysis.Analysis
}

// Expr is a BackendExpr: a node decorated with its bottom-up-consistent
// Analysis, currently realized either as a plain syntax node or as a
// transient Rewrite node awaiting the next fixed-point pass.
type Expr struct {
	Node ExprNode
}

// Analysis returns the node's stored analysis.
func (e *Expr) Analysis() analysis.Analysis { return e.Node.Ann() }

// SyntaxExpr wraps an ExprSyntax: a syntax node over *Expr children.
type SyntaxExpr struct {
	A analysis.Analysis
	S Syntax[*Expr]
}

func (n SyntaxExpr) Ann() analysis.Analysis { return n.A }

// RewriteExpr wraps an ExprRewrite: a transient Inline or LetAssoc node.
type RewriteExpr struct {
	A analysis.Analysis
	R Rewrite
}

func (n RewriteExpr) Ann() analysis.Analysis { return n.A }

// Rewrite is the two-case sum of transient rewrite forms.
type Rewrite interface {
	rewriteTag()
}

// Inline packages a let binding that the builder decided to inline into its
// body (at every use site; see build.ShouldInlineLet), still carrying the
// simulated inlined cost in the enclosing RewriteExpr's analysis.
type Inline struct {
	Ident   Ident
	Level   Level
	Binding *Expr
	Body    *Expr
}

func (Inline) rewriteTag() {}

// LetAssocBinding is one flattened binding of a LetAssoc chain.
type LetAssocBinding struct {
	Ident   Ident
	Level   Level
	Binding *Expr
}

// LetAssoc is a right-associated chain of nested Lets flattened into a
// single list by the builder's Let/Let associativity rule.
type LetAssoc struct {
	Bindings []LetAssocBinding
	Body     *Expr
}

func (LetAssoc) rewriteTag() {}

// NewSyntax builds an Expr directly from a syntax node and its analysis,
// bypassing the builder. Used by the quoter and by tests that need a raw,
// unrewritten tree.
func NewSyntax(a analysis.Analysis, s Syntax[*Expr]) *Expr {
	return &Expr{Node: SyntaxExpr{A: a, S: s}}
}

// NewRewrite builds an Expr wrapping a transient Rewrite node.
func NewRewrite(a analysis.Analysis, r Rewrite) *Expr {
	return &Expr{Node: RewriteExpr{A: a, R: r}}
}

// IsRewritePending reports whether e's top node is still an ExprRewrite
// (i.e. the fixed-point driver must re-run).
func (e *Expr) IsRewritePending() bool {
	_, ok := e.Node.(RewriteExpr)
	return ok
}

// Neutral is the frozen output algebra: a syntax node over *Neutral
// children, with no Rewrite case (freeze has removed all of them).
type Neutral struct {
	A analysis.Analysis
	S Syntax[*Neutral]
}

// Analysis returns n's stored analysis.
func (n *Neutral) Analysis() analysis.Analysis { return n.A }

// FatalErrorKind categorizes the two programmer-error conditions the core
// treats as non-recoverable (§7).
type FatalErrorKind int

const (
	UnboundLocal FatalErrorKind = iota
	MissingGroupMember
)

// FatalError is panicked (never returned as an error value) when the
// evaluator encounters IR that its producer should never have emitted.
type FatalError struct {
	Kind    FatalErrorKind
	Level   Level
	Ident   Ident
	Message string
}

func (e *FatalError) Error() string { return e.Message }
