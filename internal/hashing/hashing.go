// Package hashing computes the structural fingerprints gemcheck's edit
// committer diffs against to decide fast-path eligibility (spec.md
// §4.3). Hashing is parallelized across a bounded worker pool built on
// golang.org/x/sync/errgroup, the idiomatic worker-pool primitive the
// pack reaches for over a hand-rolled sync.WaitGroup loop. SHA-256
// content hashing itself is grounded on ckb's
// internal/incremental/extractor.go (hashFile, computeDocHash).
package hashing

import (
	"context"
	"crypto/sha256"
	"fmt"

	"golang.org/x/sync/errgroup"

	"gemcheck/internal/ast"
)

// Sentinel hash values (spec.md §3).
const (
	HashNotComputed = "<not-computed>"
	HashInvalid     = "<invalid>"
)

// FileHash is a file's structural fingerprint: Definitions captures the
// hierarchy of class/method names and signatures (what the fast-path
// comparison keys off of), Rest is a hash of everything else in the
// file's content.
type FileHash struct {
	Definitions DefinitionsHash
	Rest        string
}

// DefinitionsHash is the portion of FileHash the committer's fast-path
// decision compares (spec.md §4.5).
type DefinitionsHash struct {
	HierarchyHash string
}

// File is the hashing pool's unit of work: a parsed tree plus its raw
// source, keyed by path.
type File struct {
	Path   string
	Source string
	Tree   ast.Expr // nil if parsing failed; forces HashInvalid
}

// HashFiles hashes each file concurrently across workers goroutines,
// preserving input order in the result slice. A malformed file (nil
// Tree) hashes to HashInvalid rather than failing the batch; only a
// canceled context aborts hashing entirely.
func HashFiles(ctx context.Context, files []File, workers int) ([]FileHash, error) {
	if workers < 1 {
		workers = 1
	}

	results := make([]FileHash, len(files))
	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(workers)

	for i, f := range files {
		i, f := i, f
		g.Go(func() error {
			select {
			case <-ctx.Done():
				return ctx.Err()
			default:
			}
			results[i] = hashOne(f)
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}
	return results, nil
}

func hashOne(f File) FileHash {
	if f.Tree == nil {
		return FileHash{Definitions: DefinitionsHash{HierarchyHash: HashInvalid}, Rest: HashInvalid}
	}

	hierarchy := sha256.New()
	hashHierarchy(hierarchy, f.Tree)

	rest := sha256.Sum256([]byte(f.Source))

	return FileHash{
		Definitions: DefinitionsHash{HierarchyHash: fmt.Sprintf("%x", hierarchy.Sum(nil))},
		Rest:        fmt.Sprintf("%x", rest[:]),
	}
}

// hashHierarchy folds in the shape of the definition tree only: class
// and method names, static-ness, and nesting order. It intentionally
// ignores method bodies and literal values, since the committer's
// fast-path decision cares only about whether the definition hierarchy
// changed (spec.md §4.5), not about statement-level edits within a
// method body.
func hashHierarchy(h interface{ Write([]byte) (int, error) }, e ast.Expr) {
	switch n := e.(type) {
	case *ast.ClassDef:
		h.Write([]byte("class:"))
		h.Write([]byte(n.Name))
		for _, a := range n.Ancestors {
			h.Write([]byte(":" + a))
		}
		for _, c := range n.Body {
			hashHierarchy(h, c)
		}
	case *ast.MethodDef:
		h.Write([]byte("def:"))
		h.Write([]byte(n.Name))
		if n.IsSelf {
			h.Write([]byte(":self"))
		}
		for _, p := range n.Params {
			h.Write([]byte(":" + p))
		}
	case *ast.InsSeq:
		for _, s := range n.Stats {
			hashHierarchy(h, s)
		}
		if n.Result != nil {
			hashHierarchy(h, n.Result)
		}
	}
}
