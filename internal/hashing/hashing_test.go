package hashing

import (
	"context"
	"testing"

	"gemcheck/internal/ast"
)

func classTree(methodNames ...string) ast.Expr {
	body := make([]ast.Expr, len(methodNames))
	for i, n := range methodNames {
		body[i] = &ast.MethodDef{Name: n, Body: &ast.Empty{}}
	}
	return &ast.ClassDef{Name: "A", ClassKind: ast.Class, Body: body}
}

func TestHashFiles_PreservesOrder(t *testing.T) {
	files := []File{
		{Path: "a.rb", Source: "class A; end", Tree: classTree("foo")},
		{Path: "b.rb", Source: "class B; end", Tree: classTree("bar")},
		{Path: "c.rb", Source: "class C; end", Tree: classTree("baz")},
	}

	results, err := HashFiles(context.Background(), files, 2)
	if err != nil {
		t.Fatalf("HashFiles() error = %v", err)
	}
	if len(results) != 3 {
		t.Fatalf("expected 3 results, got %d", len(results))
	}
	for i, r := range results {
		if r.Definitions.HierarchyHash == "" {
			t.Errorf("file %d: empty hierarchy hash", i)
		}
	}
	if results[0].Definitions.HierarchyHash == results[1].Definitions.HierarchyHash {
		t.Error("distinct definition hierarchies should hash differently")
	}
}

func TestHashFiles_MalformedTreeIsInvalid(t *testing.T) {
	files := []File{{Path: "broken.rb", Source: "class A", Tree: nil}}

	results, err := HashFiles(context.Background(), files, 1)
	if err != nil {
		t.Fatalf("HashFiles() error = %v", err)
	}
	if results[0].Definitions.HierarchyHash != HashInvalid {
		t.Errorf("expected HashInvalid for malformed file, got %q", results[0].Definitions.HierarchyHash)
	}
}

func TestHashFiles_SameHierarchySameHash(t *testing.T) {
	files := []File{
		{Path: "a.rb", Source: "class A; def foo; 1; end; end", Tree: classTree("foo")},
		{Path: "a2.rb", Source: "class A; def foo; 2; end; end", Tree: classTree("foo")},
	}

	results, err := HashFiles(context.Background(), files, 4)
	if err != nil {
		t.Fatalf("HashFiles() error = %v", err)
	}
	if results[0].Definitions.HierarchyHash != results[1].Definitions.HierarchyHash {
		t.Error("identical definition hierarchy should hash the same regardless of method body contents")
	}
	if results[0].Rest == results[1].Rest {
		t.Error("differing source text should produce differing Rest hashes")
	}
}

func TestHashFiles_CanceledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	files := []File{{Path: "a.rb", Source: "class A; end", Tree: classTree("foo")}}
	if _, err := HashFiles(ctx, files, 1); err == nil {
		t.Error("expected an error from an already-canceled context")
	}
}
