// Package flatten implements the method-flattening desugar pass: once
// Flatten returns, no MethodDef survives nested inside another method
// or another expression of a class body, and self-qualified methods are
// re-leveled to the static context they actually run in. The outermost
// definition of a scope (a class-body statement, or the first definition
// reached outside any class) stays where it is. Grounded on the original
// FlattenWalk tree pass (spec.md §4.1).
package flatten

import (
	"gemcheck/internal/ast"
	"gemcheck/internal/walker"
)

// movedItem is a definition (or sig/modifier Send wrapping one) pulled
// out of a nested position, waiting to be flushed back into its
// enclosing class body at the right static level.
type movedItem struct {
	expr        ast.Expr
	staticLevel int
}

// stackFrame records where in methods a pending MethodDef/Send will
// land once its subtree finishes, and the static level it was computed
// at. idx == -1 means "not nested, don't move it".
type stackFrame struct {
	idx         int
	staticLevel int
}

// methodSet is the per-class-scope moving state: one is pushed on
// PreTransformClassDef and popped when that class's PostTransformClassDef
// flushes it.
type methodSet struct {
	methods []movedItem
	stack   []stackFrame
}

// flattenWalk carries scope state across a single Flatten call. It is
// not reentrant across trees; a fresh flattenWalk backs every Flatten.
type flattenWalk struct {
	scopes      []*methodSet
	skipMethods map[ast.Expr]bool
}

func newFlattenWalk() *flattenWalk {
	fw := &flattenWalk{skipMethods: make(map[ast.Expr]bool)}
	fw.pushScope()
	return fw
}

func (fw *flattenWalk) pushScope() { fw.scopes = append(fw.scopes, &methodSet{}) }

func (fw *flattenWalk) curScope() *methodSet { return fw.scopes[len(fw.scopes)-1] }

func (fw *flattenWalk) popScopeMethods() []movedItem {
	cur := fw.curScope()
	if len(cur.stack) != 0 {
		panic("flatten: popped scope with a non-empty move stack")
	}
	methods := cur.methods
	fw.scopes = fw.scopes[:len(fw.scopes)-1]
	return methods
}

// computeStaticLevel reads the previous stack frame's level (top of
// stack before this push), adding one if methodDef itself is a self
// (class) method.
func (fw *flattenWalk) computeStaticLevel(methodDef *ast.MethodDef) int {
	stack := fw.curScope().stack
	prevLevel := 0
	if len(stack) > 0 {
		prevLevel = stack[len(stack)-1].staticLevel
	}
	if methodDef.IsSelf {
		return prevLevel + 1
	}
	return prevLevel
}

func (fw *flattenWalk) pushFrame(staticLevel int) {
	cur := fw.curScope()
	if len(cur.stack) == 0 {
		cur.stack = append(cur.stack, stackFrame{idx: -1, staticLevel: staticLevel})
		return
	}
	cur.stack = append(cur.stack, stackFrame{idx: len(cur.methods), staticLevel: staticLevel})
	cur.methods = append(cur.methods, movedItem{})
}

func (fw *flattenWalk) popFrame() stackFrame {
	cur := fw.curScope()
	frame := cur.stack[len(cur.stack)-1]
	cur.stack = cur.stack[:len(cur.stack)-1]
	return frame
}

func isMethodModifierSend(s *ast.Send) bool {
	if !ast.IsMethodModifier(s.FunName) {
		return false
	}
	if len(s.Args) != 1 {
		return false
	}
	_, ok := s.Args[0].(*ast.MethodDef)
	return ok
}

// PreTransformClassDef starts a fresh moving scope for the class body.
func (fw *flattenWalk) PreTransformClassDef(c *ast.ClassDef) ast.Expr {
	fw.pushScope()
	return c
}

// PostTransformClassDef flushes this class's moved methods into its
// body, bucketed by static level.
func (fw *flattenWalk) PostTransformClassDef(c *ast.ClassDef) ast.Expr {
	c.Body = fw.addMethodsToBody(c.Body, c.Loc)
	return c
}

func (fw *flattenWalk) PreTransformMethodDef(m *ast.MethodDef) ast.Expr {
	if fw.skipMethods[m] {
		if len(fw.curScope().stack) == 0 {
			panic("flatten: skip-marked method with empty move stack")
		}
		return m
	}
	fw.pushFrame(fw.computeStaticLevel(m))
	return m
}

func (fw *flattenWalk) PostTransformMethodDef(m *ast.MethodDef) ast.Expr {
	if fw.skipMethods[m] {
		return m
	}
	frame := fw.popFrame()
	if frame.idx == -1 {
		return m
	}
	fw.curScope().methods[frame.idx] = movedItem{expr: m, staticLevel: frame.staticLevel}
	return &ast.Empty{Loc: m.Loc}
}

func (fw *flattenWalk) PreTransformSend(s *ast.Send) ast.Expr {
	if s.FunName != "sig" && !isMethodModifierSend(s) {
		return s
	}

	staticLevel := 0
	if isMethodModifierSend(s) {
		methodDef := s.Args[0].(*ast.MethodDef)
		fw.skipMethods[methodDef] = true
		staticLevel = fw.computeStaticLevel(methodDef)
	}
	fw.pushFrame(staticLevel)
	return s
}

func (fw *flattenWalk) PostTransformSend(s *ast.Send) ast.Expr {
	if s.FunName != "sig" && !isMethodModifierSend(s) {
		return s
	}
	frame := fw.popFrame()
	if frame.idx == -1 {
		return s
	}
	fw.curScope().methods[frame.idx] = movedItem{expr: s, staticLevel: frame.staticLevel}
	return &ast.Empty{Loc: s.Loc}
}

func (fw *flattenWalk) PreTransformInsSeq(i *ast.InsSeq) ast.Expr  { return i }
func (fw *flattenWalk) PostTransformInsSeq(i *ast.InsSeq) ast.Expr { return i }

var _ walker.Visitor = (*flattenWalk)(nil)

// addMethodsToBody buckets this scope's moved items into rhs by static
// level: 0 and 1 land directly in the class body, level >= 2 lands in a
// synthetic nested `class << self` block per level above 1.
func (fw *flattenWalk) addMethodsToBody(rhs []ast.Expr, loc ast.Loc) []ast.Expr {
	if len(fw.curScope().methods) == 1 && len(rhs) == 1 {
		if _, ok := rhs[0].(*ast.Empty); ok {
			methods := fw.popScopeMethods()
			return []ast.Expr{methods[0].expr}
		}
	}

	exprs := fw.popScopeMethods()
	if len(exprs) == 0 {
		return rhs
	}

	highestLevel := 0
	for i := range exprs {
		if exprs[i].staticLevel > highestLevel {
			highestLevel = exprs[i].staticLevel
		}
		if i == 0 {
			continue
		}
		if send, ok := exprs[i-1].expr.(*ast.Send); ok && send.FunName == "sig" {
			exprs[i-1].staticLevel = exprs[i].staticLevel
		}
	}

	nestedBodies := make([][]ast.Expr, 0, max(0, highestLevel-1))
	for level := 2; level <= highestLevel; level++ {
		nestedBodies = append(nestedBodies, nil)
	}

	targets := make([]*[]ast.Expr, 0, highestLevel+1)
	targets = append(targets, &rhs, &rhs) // levels 0 and 1 both target the class body
	for i := range nestedBodies {
		targets = append(targets, &nestedBodies[i])
	}

	for _, item := range exprs {
		if md, ok := item.expr.(*ast.MethodDef); ok {
			md.IsSelf = item.staticLevel > 0
		}
		*targets[item.staticLevel] = append(*targets[item.staticLevel], item.expr)
	}

	for _, body := range nestedBodies {
		rhs = append(rhs, NewSingletonClassDef(loc, body))
	}

	return rhs
}

// singletonMarker is the Name a synthetic ClassDef carries to mark it
// as `class << self`, not `class ""`.
const singletonMarker = "<<self"

// Flatten runs the flattening pass over tree, moving nested MethodDefs
// (and their attached sig/visibility-modifier Sends) up to their
// enclosing class body, and flushes any methods collected at the
// program root by wrapping tree in an InsSeq if it isn't one already.
func Flatten(tree ast.Expr) ast.Expr {
	fw := newFlattenWalk()
	tree = walker.Walk(fw, tree)
	return fw.flushRoot(tree)
}

// flushRoot mirrors FlattenWalk::addMethods(tree): the program-root
// scope has no enclosing class body, so a bare tree gets wrapped in an
// InsSeq before methods are appended as statements.
func (fw *flattenWalk) flushRoot(tree ast.Expr) ast.Expr {
	root := fw.curScope()
	if len(root.methods) == 0 {
		if len(root.stack) != 0 {
			panic("flatten: root scope left with open stack")
		}
		fw.popScopeMethods()
		return tree
	}

	if len(root.methods) == 1 {
		if _, ok := tree.(*ast.Empty); ok {
			methods := fw.popScopeMethods()
			return methods[0].expr
		}
	}

	seq, ok := tree.(*ast.InsSeq)
	if !ok {
		seq = &ast.InsSeq{Loc: tree.Location(), Result: tree}
		return fw.flushRoot(seq)
	}

	for _, item := range fw.popScopeMethods() {
		seq.Stats = append(seq.Stats, item.expr)
	}
	return seq
}

// NewSingletonClassDef builds the `class << self` node addMethodsToBody
// synthesizes for level-2-and-above nested static methods, named with
// singletonMarker in place of a real class name and with no ancestors.
func NewSingletonClassDef(loc ast.Loc, body []ast.Expr) *ast.ClassDef {
	return &ast.ClassDef{
		Loc:       loc,
		ClassKind: ast.Class,
		Name:      singletonMarker,
		Body:      body,
	}
}
