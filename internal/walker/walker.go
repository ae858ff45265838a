// Package walker implements the pre/post double-dispatch tree traversal
// that internal/flatten builds on. It mirrors
// Sorbet's ast::TreeMap: each node gets a PreTransform call before its
// children are visited and a PostTransform call after, and either call
// may substitute a different node into the tree (including deleting a
// node by returning an ast.Empty).
package walker

import "gemcheck/internal/ast"

// Visitor receives pre- and post-transform callbacks for each node kind
// walker.Walk visits. Embed BaseVisitor to get no-op defaults and
// override only the methods a given pass cares about.
type Visitor interface {
	PreTransformClassDef(c *ast.ClassDef) ast.Expr
	PostTransformClassDef(c *ast.ClassDef) ast.Expr

	PreTransformMethodDef(m *ast.MethodDef) ast.Expr
	PostTransformMethodDef(m *ast.MethodDef) ast.Expr

	PreTransformSend(s *ast.Send) ast.Expr
	PostTransformSend(s *ast.Send) ast.Expr

	PreTransformInsSeq(i *ast.InsSeq) ast.Expr
	PostTransformInsSeq(i *ast.InsSeq) ast.Expr
}

// BaseVisitor implements Visitor with identity no-ops, so a concrete
// visitor need only override the transforms it uses.
type BaseVisitor struct{}

func (BaseVisitor) PreTransformClassDef(c *ast.ClassDef) ast.Expr   { return c }
func (BaseVisitor) PostTransformClassDef(c *ast.ClassDef) ast.Expr  { return c }
func (BaseVisitor) PreTransformMethodDef(m *ast.MethodDef) ast.Expr { return m }
func (BaseVisitor) PostTransformMethodDef(m *ast.MethodDef) ast.Expr {
	return m
}
func (BaseVisitor) PreTransformSend(s *ast.Send) ast.Expr    { return s }
func (BaseVisitor) PostTransformSend(s *ast.Send) ast.Expr   { return s }
func (BaseVisitor) PreTransformInsSeq(i *ast.InsSeq) ast.Expr  { return i }
func (BaseVisitor) PostTransformInsSeq(i *ast.InsSeq) ast.Expr { return i }

// Walk applies v to e and its children in source order, pre-order
// before descending and post-order after, returning the (possibly
// substituted) replacement for e.
func Walk(v Visitor, e ast.Expr) ast.Expr {
	switch n := e.(type) {
	case *ast.ClassDef:
		pre := v.PreTransformClassDef(n)
		cd, ok := pre.(*ast.ClassDef)
		if !ok {
			return pre
		}
		for i, child := range cd.Body {
			cd.Body[i] = Walk(v, child)
		}
		return v.PostTransformClassDef(cd)

	case *ast.MethodDef:
		pre := v.PreTransformMethodDef(n)
		md, ok := pre.(*ast.MethodDef)
		if !ok {
			return pre
		}
		if md.Body != nil {
			md.Body = Walk(v, md.Body)
		}
		return v.PostTransformMethodDef(md)

	case *ast.Send:
		pre := v.PreTransformSend(n)
		sd, ok := pre.(*ast.Send)
		if !ok {
			return pre
		}
		if sd.Receiver != nil {
			sd.Receiver = Walk(v, sd.Receiver)
		}
		for i, arg := range sd.Args {
			sd.Args[i] = Walk(v, arg)
		}
		return v.PostTransformSend(sd)

	case *ast.InsSeq:
		pre := v.PreTransformInsSeq(n)
		is, ok := pre.(*ast.InsSeq)
		if !ok {
			return pre
		}
		for i, stat := range is.Stats {
			is.Stats[i] = Walk(v, stat)
		}
		if is.Result != nil {
			is.Result = Walk(v, is.Result)
		}
		return v.PostTransformInsSeq(is)

	default:
		// Empty, Literal, Local, UnresolvedIdent have no children and no
		// dedicated transform hooks; they pass through unchanged.
		return e
	}
}
