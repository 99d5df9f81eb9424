package ir

import (
	"fmt"
	"strings"
)

// PrintNeutral renders a frozen term as a compact, deterministic
// s-expression-ish text used by golden tests (internal/testrunner) and for
// debugging. It is not a parseable surface syntax.
func PrintNeutral(n *Neutral) string {
	if n == nil {
		return "<nil>"
	}
	var b strings.Builder
	printSyntax(&b, n.S, PrintNeutral)
	return b.String()
}

// PrintExpr renders a possibly-not-yet-frozen BackendExpr, including any
// pending Inline/LetAssoc rewrite nodes.
func PrintExpr(e *Expr) string {
	if e == nil {
		return "<nil>"
	}
	var b strings.Builder
	switch n := e.Node.(type) {
	case SyntaxExpr:
		printSyntax(&b, n.S, PrintExpr)
	case RewriteExpr:
		switch r := n.R.(type) {
		case Inline:
			fmt.Fprintf(&b, "(inline %s@%d %s %s)", r.Ident, r.Level, PrintExpr(r.Binding), PrintExpr(r.Body))
		case LetAssoc:
			b.WriteString("(let* ")
			for _, bind := range r.Bindings {
				fmt.Fprintf(&b, "(%s@%d %s) ", bind.Ident, bind.Level, PrintExpr(bind.Binding))
			}
			b.WriteString(PrintExpr(r.Body))
			b.WriteString(")")
		default:
			b.WriteString("<unknown-rewrite>")
		}
	default:
		b.WriteString("<unknown-node>")
	}
	return b.String()
}

func printSyntax[T any](b *strings.Builder, s Syntax[T], printChild func(T) string) {
	switch n := s.(type) {
	case Var[T]:
		b.WriteString(n.Qual.String())
	case Local[T]:
		name := "_"
		if n.Ident != nil {
			name = string(*n.Ident)
		}
		fmt.Fprintf(b, "%s@%d", name, n.Level)
	case LitNode[T]:
		printLit(b, n.Lit, printChild)
	case App[T]:
		fmt.Fprintf(b, "(%s", printChild(n.Head))
		for _, a := range n.Args {
			fmt.Fprintf(b, " %s", printChild(a))
		}
		b.WriteString(")")
	case Abs[T]:
		b.WriteString("(\\")
		for _, p := range n.Params {
			fmt.Fprintf(b, " %s@%d", p.Ident, p.Level)
		}
		fmt.Fprintf(b, " -> %s)", printChild(n.Body))
	case Let[T]:
		fmt.Fprintf(b, "(let %s@%d = %s in %s)", n.Ident, n.Level, printChild(n.Binding), printChild(n.Body))
	case LetRec[T]:
		fmt.Fprintf(b, "(letrec@%d", n.Level)
		for _, bind := range n.Bindings {
			fmt.Fprintf(b, " %s = %s", bind.Ident, printChild(bind.Body))
		}
		fmt.Fprintf(b, " in %s)", printChild(n.Body))
	case EffectBind[T]:
		fmt.Fprintf(b, "(%s@%d <- %s; %s)", n.Ident, n.Level, printChild(n.Binding), printChild(n.Body))
	case EffectPure[T]:
		fmt.Fprintf(b, "(pure %s)", printChild(n.Value))
	case AccessorNode[T]:
		fmt.Fprintf(b, "%s%s", printChild(n.Lhs), printAccessor(n.Acc))
	case Update[T]:
		fmt.Fprintf(b, "(%s with {", printChild(n.Lhs))
		for i, p := range n.Props {
			if i > 0 {
				b.WriteString(", ")
			}
			fmt.Fprintf(b, "%s: %s", p.Key, printChild(p.Value))
		}
		b.WriteString("})")
	case Branch[T]:
		b.WriteString("(case")
		for _, arm := range n.Arms {
			fmt.Fprintf(b, " | %s -> %s", printChild(arm.Pred), printChild(arm.Body))
		}
		if n.Default != nil {
			fmt.Fprintf(b, " | _ -> %s", printChild(*n.Default))
		}
		b.WriteString(")")
	case Test[T]:
		fmt.Fprintf(b, "(%s ?= %s)", printChild(n.Lhs), printGuard(n.Guard))
	case CtorDef[T]:
		fmt.Fprintf(b, "(ctordef %s%v)", n.Tag_, n.Fields)
	case CtorSaturated[T]:
		fmt.Fprintf(b, "(%s", n.Qual.String()+"#"+n.Tag_)
		for _, f := range n.Fields {
			fmt.Fprintf(b, " %s", printChild(f))
		}
		b.WriteString(")")
	case Fail[T]:
		fmt.Fprintf(b, "(fail %q)", n.Message)
	default:
		b.WriteString("<unknown-syntax>")
	}
}

func printLit[T any](b *strings.Builder, l Lit[T], printChild func(T) string) {
	switch l.Kind {
	case LitInt:
		fmt.Fprintf(b, "%d", l.Int)
	case LitFloat:
		fmt.Fprintf(b, "%g", l.Float)
	case LitString:
		fmt.Fprintf(b, "%q", l.Str)
	case LitChar:
		fmt.Fprintf(b, "%q", l.Char)
	case LitBool:
		fmt.Fprintf(b, "%t", l.Bool)
	case LitArray:
		b.WriteString("[")
		for i, e := range l.Array {
			if i > 0 {
				b.WriteString(", ")
			}
			b.WriteString(printChild(e))
		}
		b.WriteString("]")
	case LitRecord:
		b.WriteString("{")
		for i, f := range l.Record {
			if i > 0 {
				b.WriteString(", ")
			}
			fmt.Fprintf(b, "%s: %s", f.Key, printChild(f.Value))
		}
		b.WriteString("}")
	}
}

func printAccessor(a Accessor) string {
	switch a.Kind {
	case GetProp:
		return "." + a.Prop
	case GetIndex:
		return fmt.Sprintf("[%d]", a.Index)
	case GetOffset:
		return fmt.Sprintf("#%d", a.Index)
	}
	return "?"
}

func printGuard(g Guard) string {
	switch g.Kind {
	case GuardInt:
		return fmt.Sprintf("%d", g.Int)
	case GuardFloat:
		return fmt.Sprintf("%g", g.Float)
	case GuardString:
		return fmt.Sprintf("%q", g.Str)
	case GuardChar:
		return fmt.Sprintf("%q", g.Char)
	case GuardBool:
		return fmt.Sprintf("%t", g.Bool)
	case GuardCtorTag:
		return "#" + g.Tag
	case GuardArrayLen:
		return fmt.Sprintf("len=%d", g.Len)
	}
	return "?"
}
