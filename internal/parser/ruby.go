//go:build cgo

// Package parser is the one concrete, dependency-backed adapter for the
// source-to-AST seam internal/index.Parser declares (spec.md §1 puts real
// parsing out of scope). It turns Ruby source into gemcheck's owned
// internal/ast shape using tree-sitter's syntax tree, the same
// structural-extraction idiom ckb's own internal/symbols package uses for
// its tree-sitter fallback (node.Type() switches, ChildByFieldName,
// defensive fallbacks for node shapes it doesn't recognize).
//
// This is a syntax-only projection, not a real parser: it has no notion of
// operator precedence beyond what tree-sitter already resolved, no local
// variable binding, and no name resolution. Anything it doesn't recognize
// becomes a Literal holding the node's raw source text, so an unfamiliar
// construct still contributes a stable, hashable leaf instead of being
// dropped or panicking.
package parser

import (
	"context"

	sitter "github.com/smacker/go-tree-sitter"
	"github.com/smacker/go-tree-sitter/ruby"

	"gemcheck/internal/ast"
)

// RubyParser implements index.Parser over tree-sitter's Ruby grammar.
type RubyParser struct{}

// New returns a ready-to-use RubyParser.
func New() *RubyParser { return &RubyParser{} }

// IsAvailable reports whether a cgo-backed parser was compiled in.
func IsAvailable() bool { return true }

// Parse turns source into gemcheck's AST. path is only used for Loc.File.
func (p *RubyParser) Parse(path, source string) (ast.Expr, error) {
	src := []byte(source)

	sp := sitter.NewParser()
	sp.SetLanguage(ruby.GetLanguage())

	tree, err := sp.ParseCtx(context.Background(), nil, src)
	if err != nil {
		return nil, err
	}

	c := &converter{path: path, src: src}
	return c.convertBody(topLevelChildren(tree.RootNode())), nil
}

// converter carries the file path and source bytes across a single Parse
// call's recursive descent.
type converter struct {
	path string
	src  []byte
}

func (c *converter) loc(n *sitter.Node) ast.Loc {
	start, end := n.StartPoint(), n.EndPoint()
	return ast.Loc{
		File:      c.path,
		StartLine: int(start.Row) + 1,
		StartCol:  int(start.Column) + 1,
		EndLine:   int(end.Row) + 1,
		EndCol:    int(end.Column) + 1,
	}
}

func (c *converter) text(n *sitter.Node) string {
	return string(c.src[n.StartByte():n.EndByte()])
}

// topLevelChildren returns root's named children; comment nodes are not
// filtered out.
func topLevelChildren(root *sitter.Node) []*sitter.Node {
	return namedChildren(root)
}

func namedChildren(n *sitter.Node) []*sitter.Node {
	var out []*sitter.Node
	if n == nil {
		return out
	}
	for i := 0; i < int(n.ChildCount()); i++ {
		child := n.Child(i)
		if child != nil && child.IsNamed() {
			out = append(out, child)
		}
	}
	return out
}

// bodyChildren returns n's statement children, skipping any child that is
// one of the field nodes already consumed elsewhere (e.g. a class's name
// or superclass). If the statements turn out to be wrapped in a single
// body_statement node, as tree-sitter-ruby does for begin/rescue bodies,
// it descends into that wrapper instead of treating it as one opaque node.
func bodyChildren(n *sitter.Node, skip ...*sitter.Node) []*sitter.Node {
	skipBytes := make(map[uint32]bool, len(skip))
	for _, s := range skip {
		if s != nil {
			skipBytes[s.StartByte()] = true
		}
	}

	var stmts []*sitter.Node
	for _, child := range namedChildren(n) {
		if skipBytes[child.StartByte()] {
			continue
		}
		stmts = append(stmts, child)
	}

	if len(stmts) == 1 && stmts[0].Type() == "body_statement" {
		return namedChildren(stmts[0])
	}
	return stmts
}

// convertBody folds a flat statement list into the single Expr an
// ast.MethodDef.Body or top-level Parse result expects.
func (c *converter) convertBody(stmts []*sitter.Node) ast.Expr {
	if len(stmts) == 0 {
		return &ast.Empty{}
	}
	exprs := make([]ast.Expr, len(stmts))
	for i, s := range stmts {
		exprs[i] = c.convert(s)
	}
	if len(exprs) == 1 {
		return exprs[0]
	}
	return &ast.InsSeq{Stats: exprs[:len(exprs)-1], Result: exprs[len(exprs)-1]}
}

// convert dispatches on n's tree-sitter node type, falling back to a
// Literal of the raw source text for anything it doesn't model.
func (c *converter) convert(n *sitter.Node) ast.Expr {
	if n == nil {
		return &ast.Empty{}
	}

	switch n.Type() {
	case "class":
		return c.convertClass(n, ast.Class)
	case "module":
		return c.convertClass(n, ast.Module)
	case "method":
		return c.convertMethod(n, false)
	case "singleton_method":
		return c.convertMethod(n, true)
	case "call", "method_call":
		return c.convertCall(n)
	case "identifier":
		return &ast.Local{Loc: c.loc(n), Name: c.text(n)}
	case "constant", "scope_resolution":
		return &ast.UnresolvedIdent{Loc: c.loc(n), Scope: ast.ScopeClass, Name: c.text(n)}
	case "instance_variable":
		return &ast.UnresolvedIdent{Loc: c.loc(n), Scope: ast.ScopeInstance, Name: c.text(n)}
	case "class_variable", "global_variable":
		return &ast.UnresolvedIdent{Loc: c.loc(n), Scope: ast.ScopeGlobal, Name: c.text(n)}
	case "self":
		return &ast.UnresolvedIdent{Loc: c.loc(n), Scope: ast.ScopeInstance, Name: "self"}
	default:
		return &ast.Literal{Loc: c.loc(n), Value: c.text(n)}
	}
}

func (c *converter) convertClass(n *sitter.Node, kind ast.ClassKind) *ast.ClassDef {
	nameNode := n.ChildByFieldName("name")
	superNode := n.ChildByFieldName("superclass")

	name := "<anonymous>"
	if nameNode != nil {
		name = c.text(nameNode)
	}

	var ancestors []string
	if superNode != nil {
		ancestors = []string{c.text(superNode)}
	}

	stmts := bodyChildren(n, nameNode, superNode)
	body := make([]ast.Expr, len(stmts))
	for i, s := range stmts {
		body[i] = c.convert(s)
	}

	return &ast.ClassDef{
		Loc:       c.loc(n),
		ClassKind: kind,
		Name:      name,
		Ancestors: ancestors,
		Body:      body,
	}
}

func (c *converter) convertMethod(n *sitter.Node, isSelf bool) *ast.MethodDef {
	nameNode := n.ChildByFieldName("name")
	paramsNode := n.ChildByFieldName("parameters")
	objectNode := n.ChildByFieldName("object")

	name := "<unknown>"
	if nameNode != nil {
		name = c.text(nameNode)
	}

	var params []string
	for _, p := range namedChildren(paramsNode) {
		params = append(params, paramName(p, c))
	}

	stmts := bodyChildren(n, nameNode, paramsNode, objectNode)

	return &ast.MethodDef{
		Loc:    c.loc(n),
		Name:   name,
		IsSelf: isSelf,
		Params: params,
		Body:   c.convertBody(stmts),
	}
}

// paramName extracts a bare name from a method_parameters child, whatever
// kind of parameter it is (required, optional, splat, keyword, block).
func paramName(n *sitter.Node, c *converter) string {
	if named := n.ChildByFieldName("name"); named != nil {
		return c.text(named)
	}
	return c.text(n)
}

func (c *converter) convertCall(n *sitter.Node) *ast.Send {
	methodNode := n.ChildByFieldName("method")
	receiverNode := n.ChildByFieldName("receiver")
	argsNode := n.ChildByFieldName("arguments")

	funName := "<unknown>"
	if methodNode != nil {
		funName = c.text(methodNode)
	}

	var receiver ast.Expr
	if receiverNode != nil {
		receiver = c.convert(receiverNode)
	}

	var args []ast.Expr
	for _, a := range namedChildren(argsNode) {
		args = append(args, c.convert(a))
	}

	return &ast.Send{
		Loc:      c.loc(n),
		Receiver: receiver,
		FunName:  funName,
		Args:     args,
	}
}
