// Package index declares the opaque parse+desugar producer the edit
// committer depends on. Parsing itself is out of scope (spec.md §1);
// this package owns only the interface boundary and the flatten step
// that every real Indexer is expected to apply before returning.
package index

import (
	"context"

	"gemcheck/internal/ast"
	"gemcheck/internal/flatten"
)

// Result is what indexing one file produces: its parsed-and-flattened
// tree, or a non-nil Err if the file failed to parse (forcing
// HashInvalid downstream, per spec.md §4.3).
type Result struct {
	Path string
	Tree ast.Expr
	Err  error
}

// Indexer parses and flattens a batch of files. Implementations are
// free to parallelize internally; Index returns results in the same
// order as paths were given so the caller (the edit committer) can
// keep its parallel arrays aligned without an extra sort (spec.md
// §4.4 step 3).
type Indexer interface {
	Index(ctx context.Context, files []FileSource) []Result
}

// FileSource is one file's raw content to index.
type FileSource struct {
	Path   string
	Source string
}

// FlattenIndexer wraps a Parser with the flatten pass, so a caller only
// has to supply source-to-AST parsing to get a spec-conformant Indexer.
type FlattenIndexer struct {
	Parser Parser
}

// Parser turns raw source into an unflattened AST. This is the seam
// spec.md §1 declares out of scope; internal/parser supplies the
// implementations (RubyParser, StubParser) that satisfy it.
type Parser interface {
	Parse(path, source string) (ast.Expr, error)
}

// Index parses then flattens each file, preserving input order.
func (fi *FlattenIndexer) Index(ctx context.Context, files []FileSource) []Result {
	results := make([]Result, len(files))
	for i, f := range files {
		select {
		case <-ctx.Done():
			results[i] = Result{Path: f.Path, Err: ctx.Err()}
			continue
		default:
		}

		tree, err := fi.Parser.Parse(f.Path, f.Source)
		if err != nil {
			results[i] = Result{Path: f.Path, Err: err}
			continue
		}
		results[i] = Result{Path: f.Path, Tree: flatten.Flatten(tree)}
	}
	return results
}
