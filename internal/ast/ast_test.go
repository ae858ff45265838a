package ast

import "testing"

func TestEncodeDecode_RoundTripsEachKind(t *testing.T) {
	cases := []struct {
		name string
		expr Expr
	}{
		{"Empty", &Empty{Loc: Loc{File: "a.rb", StartLine: 1}}},
		{"ClassDef", &ClassDef{
			Name:      "A",
			ClassKind: Module,
			Ancestors: []string{"Object"},
			Body:      []Expr{&Empty{}},
		}},
		{"MethodDef", &MethodDef{
			Name:   "foo",
			IsSelf: true,
			Params: []string{"x", "y"},
			Body:   &Local{Name: "x"},
		}},
		{"Send", &Send{
			FunName:  "field",
			Receiver: &UnresolvedIdent{Scope: ScopeInstance, Name: "self"},
			Args:     []Expr{&Literal{Value: "1"}},
		}},
		{"Literal", &Literal{Value: "\"hi\""}},
		{"Local", &Local{Name: "acc"}},
		{"UnresolvedIdent", &UnresolvedIdent{Scope: ScopeGlobal, Name: "$stdout"}},
		{"InsSeq", &InsSeq{
			Stats:  []Expr{&Send{FunName: "puts"}},
			Result: &Literal{Value: "nil"},
		}},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			data, err := Encode(tc.expr)
			if err != nil {
				t.Fatalf("Encode failed: %v", err)
			}
			got, err := Decode(data)
			if err != nil {
				t.Fatalf("Decode failed: %v", err)
			}
			if got.Kind() != tc.expr.Kind() {
				t.Fatalf("Kind mismatch: got %v, want %v", got.Kind(), tc.expr.Kind())
			}
			roundTripped, err := Encode(got)
			if err != nil {
				t.Fatalf("re-Encode failed: %v", err)
			}
			if string(roundTripped) != string(data) {
				t.Errorf("round trip not stable:\nfirst:  %s\nsecond: %s", data, roundTripped)
			}
		})
	}
}

func TestEncodeDecode_NilExprRoundTripsToNil(t *testing.T) {
	data, err := Encode(nil)
	if err != nil {
		t.Fatalf("Encode(nil) failed: %v", err)
	}
	if string(data) != "null" {
		t.Fatalf("Encode(nil) = %s, want null", data)
	}

	got, err := Decode(data)
	if err != nil {
		t.Fatalf("Decode(null) failed: %v", err)
	}
	if got != nil {
		t.Fatalf("Decode(null) = %#v, want nil", got)
	}
}

func TestDecode_UnknownKindErrors(t *testing.T) {
	if _, err := Decode([]byte(`{"Kind": 99, "Payload": {}}`)); err == nil {
		t.Fatal("expected an error decoding an unknown Kind")
	}
}

func TestClassDef_DeepCopyIsIndependent(t *testing.T) {
	orig := &ClassDef{
		Name:      "A",
		Ancestors: []string{"Object"},
		Body:      []Expr{&MethodDef{Name: "foo", Body: &Empty{}}},
	}

	copied := orig.DeepCopy().(*ClassDef)
	copied.Name = "B"
	copied.Ancestors[0] = "BasicObject"
	copied.Body[0].(*MethodDef).Name = "bar"

	if orig.Name != "A" {
		t.Errorf("mutating the copy's Name changed the original")
	}
	if orig.Ancestors[0] != "Object" {
		t.Errorf("mutating the copy's Ancestors changed the original")
	}
	if orig.Body[0].(*MethodDef).Name != "foo" {
		t.Errorf("mutating the copy's Body changed the original")
	}
}

func TestIsMethodModifier(t *testing.T) {
	for _, name := range []string{"private", "protected", "public", "private_class_method"} {
		if !IsMethodModifier(name) {
			t.Errorf("IsMethodModifier(%q) = false, want true", name)
		}
	}
	for _, name := range []string{"field", "has_many", ""} {
		if IsMethodModifier(name) {
			t.Errorf("IsMethodModifier(%q) = true, want false", name)
		}
	}
}
