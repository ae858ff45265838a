// Package rewriter synthesizes reader/writer accessor pairs for classes
// declaring `field`/`from`/`pattern` calls, the way Sorbet's Flatfiles
// rewriter pass produces MethodDefs for the flattener to then place.
// Grounded on the original Flatfiles::run; this package owns none of
// the flattening or static-level logic, only well-formed node
// synthesis (spec.md §1, §9 open question 2).
package rewriter

import "gemcheck/internal/ast"

// declareFlatfileCall is the marker Send a class body must contain
// (`flatfile!`) before SynthesizeAccessors does anything.
const declareFlatfileCall = "flatfile!"

var fieldDeclarators = map[string]bool{
	"from":    true,
	"field":   true,
	"pattern": true,
}

// SynthesizeAccessors returns the MethodDef pairs (getter, setter) for
// every self-receiver `field`/`from`/`pattern` call found directly in
// class's body, or nil if class isn't a flatfile-declaring class or no
// declarator produced a usable field name.
//
// The original C++ pass sets `klass = nullptr` when no methods were
// synthesized and then unconditionally dereferences it a few lines
// later; this is resolved here by returning early instead (spec.md §9
// open question 2).
func SynthesizeAccessors(class *ast.ClassDef) []ast.Expr {
	if class.ClassKind != ast.Class || len(class.Ancestors) == 0 {
		return nil
	}

	if !declaresFlatfile(class) {
		return nil
	}

	var methods []ast.Expr
	for _, stat := range class.Body {
		send, ok := stat.(*ast.Send)
		if !ok {
			continue
		}
		if !fieldDeclarators[send.FunName] || !isSelfReceiver(send.Receiver) || len(send.Args) < 1 {
			continue
		}

		name, ok := fieldName(send)
		if !ok {
			continue
		}

		methods = append(methods, accessorPair(send.Loc, name)...)
	}

	return methods
}

func declaresFlatfile(class *ast.ClassDef) bool {
	for _, stat := range class.Body {
		if send, ok := stat.(*ast.Send); ok && send.FunName == declareFlatfileCall {
			return true
		}
	}
	return false
}

func isSelfReceiver(recv ast.Expr) bool {
	ident, ok := recv.(*ast.UnresolvedIdent)
	return ok && ident.Scope == ast.ScopeInstance && ident.Name == "self"
}

// fieldName mirrors getFieldName: it checks the first argument, then
// (for `from`'s two-argument form) the second, for a symbol literal.
func fieldName(send *ast.Send) (string, bool) {
	if lit, ok := send.Args[0].(*ast.Literal); ok {
		return lit.Value, true
	}
	if len(send.Args) >= 2 {
		if lit, ok := send.Args[1].(*ast.Literal); ok {
			return lit.Value, true
		}
	}
	return "", false
}

// accessorPair builds `sig { returns(T.untyped) }; def name; end` and
// `sig(arg0: T.untyped).returns(T.untyped); def name=(arg0); end`.
func accessorPair(loc ast.Loc, name string) []ast.Expr {
	getterSig := &ast.Send{Loc: loc, FunName: "sig", Args: []ast.Expr{&ast.Literal{Loc: loc, Value: "T.untyped"}}}
	getter := &ast.MethodDef{Loc: loc, Name: name, Body: &ast.Literal{Loc: loc, Value: "nil"}}

	setterSig := &ast.Send{Loc: loc, FunName: "sig", Args: []ast.Expr{&ast.Literal{Loc: loc, Value: "T.untyped"}}}
	setter := &ast.MethodDef{
		Loc:    loc,
		Name:   name + "=",
		Params: []string{"arg0"},
		Body:   &ast.Local{Loc: loc, Name: "arg0"},
	}

	return []ast.Expr{getterSig, getter, setterSig, setter}
}
