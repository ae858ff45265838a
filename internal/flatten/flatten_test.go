package flatten

import (
	"testing"

	"gemcheck/internal/ast"
)

func classBody(exprs ...ast.Expr) *ast.ClassDef {
	return &ast.ClassDef{Name: "A", ClassKind: ast.Class, Body: exprs}
}

func method(name string, isSelf bool, body ast.Expr) *ast.MethodDef {
	return &ast.MethodDef{Name: name, IsSelf: isSelf, Body: body}
}

// noMethodDefUnderMethodDef walks the flattened tree and fails if it
// finds a MethodDef nested inside another MethodDef's body (F1).
func assertNoNestedMethodDefs(t *testing.T, e ast.Expr, insideMethod bool) {
	t.Helper()
	switch n := e.(type) {
	case *ast.MethodDef:
		if insideMethod {
			t.Fatalf("found MethodDef %q nested inside another MethodDef", n.Name)
		}
		assertNoNestedMethodDefs(t, n.Body, true)
	case *ast.ClassDef:
		for _, c := range n.Body {
			assertNoNestedMethodDefs(t, c, false)
		}
	case *ast.InsSeq:
		for _, s := range n.Stats {
			assertNoNestedMethodDefs(t, s, insideMethod)
		}
		if n.Result != nil {
			assertNoNestedMethodDefs(t, n.Result, insideMethod)
		}
	case *ast.Send:
		if n.Receiver != nil {
			assertNoNestedMethodDefs(t, n.Receiver, insideMethod)
		}
		for _, a := range n.Args {
			assertNoNestedMethodDefs(t, a, insideMethod)
		}
	}
}

// S1: class A; def foo; def self.bar; end; end; end
// bar is nested inside instance method foo. Its static level is foo's
// level (0) plus one for its own self. qualifier, so after flattening
// it surfaces directly in A's body as a static (self.) method next to
// the still non-static foo.
func TestFlatten_NestedStaticOfInstance(t *testing.T) {
	bar := method("bar", true, &ast.Empty{})
	foo := method("foo", false, bar)
	class := classBody(foo)

	got := Flatten(class)

	assertNoNestedMethodDefs(t, got, false)

	cd, ok := got.(*ast.ClassDef)
	if !ok {
		t.Fatalf("expected *ast.ClassDef, got %T", got)
	}
	if len(cd.Body) != 2 {
		t.Fatalf("expected 2 methods in flattened body, got %d", len(cd.Body))
	}

	names := map[string]bool{}
	for _, e := range cd.Body {
		md, ok := e.(*ast.MethodDef)
		if !ok {
			t.Fatalf("expected MethodDef in flattened body, got %T", e)
		}
		names[md.Name] = md.IsSelf
	}
	if isSelf, ok := names["foo"]; !ok || isSelf {
		t.Errorf("foo should remain a non-static instance method, IsSelf=%v", isSelf)
	}
	if isSelf, ok := names["bar"]; !ok || !isSelf {
		t.Errorf("bar should become a static (self.) method, IsSelf=%v", isSelf)
	}
}

// S2: level >= 2 nesting produces a synthetic `class << self` wrapper.
func TestFlatten_Level2NestingSynthesizesSingleton(t *testing.T) {
	inner := method("baz", true, &ast.Empty{})
	middle := method("bar", true, inner)
	outer := method("foo", false, middle)
	class := classBody(outer)

	got := Flatten(class).(*ast.ClassDef)

	var singleton *ast.ClassDef
	for _, e := range got.Body {
		if cd, ok := e.(*ast.ClassDef); ok {
			singleton = cd
		}
	}
	if singleton == nil {
		t.Fatalf("expected a synthetic singleton ClassDef in flattened body, got %+v", got.Body)
	}
	if singleton.Name != singletonMarker {
		t.Errorf("synthetic class should carry the singleton marker, got %q", singleton.Name)
	}
	if len(singleton.Body) != 1 {
		t.Fatalf("expected 1 method in singleton body, got %d", len(singleton.Body))
	}
	if md := singleton.Body[0].(*ast.MethodDef); md.Name != "baz" {
		t.Errorf("expected baz in singleton body, got %s", md.Name)
	}
}

// S3: a class with exactly one trivial method is returned unwrapped,
// not stuffed into an InsSeq.
func TestFlatten_TrivialSingleMethodClass(t *testing.T) {
	foo := method("foo", false, &ast.Empty{})
	class := classBody(foo)

	got := Flatten(class).(*ast.ClassDef)

	if len(got.Body) != 1 {
		t.Fatalf("expected single method preserved, got %d exprs", len(got.Body))
	}
	if _, ok := got.Body[0].(*ast.MethodDef); !ok {
		t.Fatalf("expected MethodDef, got %T", got.Body[0])
	}
}

// Two sibling nested methods that both stay at static level 0 (neither
// is self.-qualified, nor is their enclosing method) used to panic:
// highestLevel stayed 0, and nestedBodies was sized highestLevel-1 ==
// -1. Guards against that regression.
func TestFlatten_TwoSiblingNestedInstanceMethodsDoNotPanic(t *testing.T) {
	inner1 := method("inner1", false, &ast.Empty{})
	inner2 := method("inner2", false, &ast.Empty{})
	outer := method("outer", false, &ast.InsSeq{Stats: []ast.Expr{inner1, inner2}})
	class := classBody(outer)

	got := Flatten(class).(*ast.ClassDef)

	assertNoNestedMethodDefs(t, got, false)

	if len(got.Body) != 3 {
		t.Fatalf("expected outer plus 2 hoisted methods in flattened body, got %d: %+v", len(got.Body), got.Body)
	}

	names := map[string]bool{}
	for _, e := range got.Body {
		md, ok := e.(*ast.MethodDef)
		if !ok {
			t.Fatalf("expected MethodDef in flattened body, got %T", e)
		}
		names[md.Name] = md.IsSelf
	}
	for _, name := range []string{"outer", "inner1", "inner2"} {
		isSelf, ok := names[name]
		if !ok {
			t.Fatalf("expected %q in flattened body, got %+v", name, names)
		}
		if isSelf {
			t.Errorf("%s should remain a non-static instance method, IsSelf=true", name)
		}
	}
}

// F2: a MethodDef may only appear directly under a ClassDef body, or as
// the sole argument of a movable Send (already consumed by the time
// Flatten returns, so post-flatten there should be none left as Send
// args either).
func TestFlatten_NoMethodDefOutsideClassBody(t *testing.T) {
	bar := method("bar", false, &ast.Empty{})
	foo := method("foo", false, bar)
	class := classBody(foo)

	got := Flatten(class).(*ast.ClassDef)
	for _, e := range got.Body {
		if _, ok := e.(*ast.MethodDef); !ok {
			t.Fatalf("expected only MethodDefs directly in class body, found %T", e)
		}
	}
}

// F5: a sig immediately preceding a moved method must move with it and
// adopt its final static level.
func TestFlatten_SigStaysAdjacentToMovedMethod(t *testing.T) {
	inner := method("bar", true, &ast.Empty{})
	sig := &ast.Send{FunName: "sig", Args: []ast.Expr{&ast.Literal{Value: "void"}}}
	outerBody := &ast.InsSeq{Stats: []ast.Expr{sig, inner}, Result: &ast.Empty{}}
	foo := method("foo", false, outerBody)
	class := classBody(foo)

	got := Flatten(class).(*ast.ClassDef)

	var sawSig, sawBar bool
	for i, e := range got.Body {
		if s, ok := e.(*ast.Send); ok && s.FunName == "sig" {
			sawSig = true
			next, ok := got.Body[i+1].(*ast.MethodDef)
			if !ok || next.Name != "bar" {
				t.Fatalf("expected sig immediately followed by bar, got body %+v", got.Body)
			}
		}
		if md, ok := e.(*ast.MethodDef); ok && md.Name == "bar" {
			sawBar = true
			if !md.IsSelf {
				t.Errorf("bar should be static after flattening")
			}
		}
	}
	if !sawSig || !sawBar {
		t.Fatalf("expected both sig and bar in flattened body, got %+v", got.Body)
	}
}

// F6: flattening an already-flat class is idempotent.
func TestFlatten_Idempotent(t *testing.T) {
	class := classBody(method("foo", false, &ast.Empty{}), method("bar", true, &ast.Empty{}))

	once := Flatten(class.DeepCopy())
	twice := Flatten(once.DeepCopy())

	onceCD := once.(*ast.ClassDef)
	twiceCD := twice.(*ast.ClassDef)
	if len(onceCD.Body) != len(twiceCD.Body) {
		t.Fatalf("flatten should be idempotent on an already-flat class: %d vs %d methods",
			len(onceCD.Body), len(twiceCD.Body))
	}
}

// A `private def foo; end` modifier-wrapped method moves as a unit and
// is skipped by the plain MethodDef move logic.
func TestFlatten_VisibilityModifierMovesWithMethod(t *testing.T) {
	foo := method("foo", false, &ast.Empty{})
	private := &ast.Send{FunName: "private", Args: []ast.Expr{foo}}
	wrapper := method("outer", false, private)
	class := classBody(wrapper)

	got := Flatten(class).(*ast.ClassDef)

	var found bool
	for _, e := range got.Body {
		if s, ok := e.(*ast.Send); ok && s.FunName == "private" {
			found = true
			if len(s.Args) != 1 {
				t.Fatalf("expected private() to keep its single MethodDef arg")
			}
			if md, ok := s.Args[0].(*ast.MethodDef); !ok || md.Name != "foo" {
				t.Fatalf("expected private(foo), got %+v", s.Args[0])
			}
		}
	}
	if !found {
		t.Fatalf("expected a moved private() send in flattened body, got %+v", got.Body)
	}
}

// All four of Ruby's method visibility modifiers move with their
// wrapped method, including private_class_method, whose Ruby method
// identifier is snake_case rather than camelCase.
func TestFlatten_AllVisibilityModifiersMoveWithMethod(t *testing.T) {
	for _, modifierName := range []string{"private", "protected", "public", "private_class_method"} {
		t.Run(modifierName, func(t *testing.T) {
			foo := method("foo", false, &ast.Empty{})
			wrapped := &ast.Send{FunName: modifierName, Args: []ast.Expr{foo}}
			wrapper := method("outer", false, wrapped)
			class := classBody(wrapper)

			got := Flatten(class).(*ast.ClassDef)

			var found bool
			for _, e := range got.Body {
				if s, ok := e.(*ast.Send); ok && s.FunName == modifierName {
					found = true
					if md, ok := s.Args[0].(*ast.MethodDef); !ok || md.Name != "foo" {
						t.Fatalf("expected %s(foo), got %+v", modifierName, s.Args[0])
					}
				}
			}
			if !found {
				t.Fatalf("expected a moved %s() send in flattened body, got %+v", modifierName, got.Body)
			}
		})
	}
}

// Flatten at the program root collects nothing when the only definition
// is the first one reached outside any class: foo opens the root scope's
// move stack and stays in place, so no InsSeq wrap happens and the tree
// comes back unchanged.
func TestFlatten_ProgramRootFlush(t *testing.T) {
	foo := method("foo", false, &ast.Empty{})
	root := &ast.Send{FunName: "puts", Args: []ast.Expr{foo}}

	got := Flatten(root)

	if _, ok := got.(*ast.Send); !ok {
		t.Fatalf("puts(def foo) has no modifier/sig semantics, expected the Send unchanged, got %T", got)
	}
}
