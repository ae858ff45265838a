// Package commit implements the edit committer: it applies a workspace
// edit to the global snapshot, recomputes structural hashes, classifies
// the update as fast- or slow-path, and merges with or cancels any
// slow path already in flight (spec.md §4.4-§4.6).
package commit

import (
	"context"
	"fmt"

	"gemcheck/internal/ast"
	"gemcheck/internal/hashing"
	"gemcheck/internal/index"
	"gemcheck/internal/snapshot"
	"gemcheck/internal/telemetry"
)

// FileUpdate is one file's new content within a WorkspaceEdit.
type FileUpdate struct {
	Path   string `json:"path"`
	Source string `json:"source"`
}

// WorkspaceEdit is the committer's input (spec.md §6, "Committer input").
type WorkspaceEdit struct {
	Epoch      uint64       `json:"epoch"`
	MergeCount uint32       `json:"mergeCount"`
	Updates    []FileUpdate `json:"updates"`
}

// EvictionsMap is the per-file previous hash displaced by an update,
// retained so a later update can reason about the pre-update snapshot
// (spec.md §3, "Evicted-hash map").
type EvictionsMap map[snapshot.FileID]hashing.FileHash

// LSPFileUpdates is the committer's output (spec.md §3).
type LSPFileUpdates struct {
	Epoch       uint64 `json:"epoch"`
	EditCount   uint32 `json:"editCount"`
	HasNewFiles bool   `json:"hasNewFiles"`

	UpdatedFiles       []string           `json:"updatedFiles"`
	UpdatedFileHashes  []hashing.FileHash `json:"updatedFileHashes"`
	UpdatedFileIndexes []ast.Expr         `json:"-"`

	CanTakeFastPath bool `json:"canTakeFastPath"`

	// UpdatedGS is a deep copy of the snapshot, present only when this
	// update remains slow-path.
	UpdatedGS *snapshot.Snapshot `json:"-"`

	evictions EvictionsMap
}

// NewLSPFileUpdates is the single constructor guaranteeing the three
// parallel slices stay length-equal (spec.md §3 invariant).
func NewLSPFileUpdates(epoch uint64, editCount uint32, files []string, hashes []hashing.FileHash, trees []ast.Expr) (*LSPFileUpdates, error) {
	if len(files) != len(hashes) || len(files) != len(trees) {
		return nil, fmt.Errorf("commit: parallel array length mismatch: %d files, %d hashes, %d trees",
			len(files), len(hashes), len(trees))
	}
	return &LSPFileUpdates{
		Epoch:              epoch,
		EditCount:          editCount,
		UpdatedFiles:       files,
		UpdatedFileHashes:  hashes,
		UpdatedFileIndexes: trees,
	}, nil
}

// Committer owns the coordinator-private state the fast/slow-path
// protocol reasons over: the shared snapshot, and bookkeeping about
// whatever slow path is currently in flight.
type Committer struct {
	Snapshot         *snapshot.Snapshot
	Indexer          index.Indexer
	Workers          int
	FastPathDisabled bool

	// TryCancelSlowPath attempts to cancel the in-flight slow-path task
	// at the given epoch; the coordinator supplies this since only it
	// owns the typechecker thread's cancelation flag (spec.md §5).
	TryCancelSlowPath func(epoch uint64) bool

	// Telemetry records hierarchy-hash mismatches as they're found.
	// Defaults to a no-op sink if left nil.
	Telemetry telemetry.Sink

	lastSlowPath *LSPFileUpdates
}

// New returns a Committer over an empty snapshot.
func New(indexer index.Indexer, workers int) *Committer {
	return &Committer{Snapshot: snapshot.New(), Indexer: indexer, Workers: workers, Telemetry: telemetry.NoopSink{}}
}

// Commit applies edit to the snapshot and returns the classified,
// merged-or-not update to dispatch (spec.md §4.4).
func (c *Committer) Commit(ctx context.Context, edit WorkspaceEdit) (*LSPFileUpdates, error) {
	sources := make([]index.FileSource, len(edit.Updates))
	for i, u := range edit.Updates {
		sources[i] = index.FileSource{Path: u.Path, Source: u.Source}
	}

	// Index first: the structural hash below is computed from the
	// resulting tree's definition hierarchy, so parsing has to happen
	// before hashing even though spec.md lists hashing as step 1 --
	// the two are only order-sensitive relative to classification (step
	// 4), which both precede.
	indexed := c.Indexer.Index(ctx, sources)

	files := make([]hashing.File, len(edit.Updates))
	for i, u := range edit.Updates {
		var tree ast.Expr
		if indexed[i].Err == nil {
			tree = indexed[i].Tree
		}
		files[i] = hashing.File{Path: u.Path, Source: u.Source, Tree: tree}
	}

	hashes, err := hashing.HashFiles(ctx, files, c.Workers)
	if err != nil {
		return nil, err
	}

	hasNewFiles := false
	evictions := EvictionsMap{}
	updatedFiles := make([]string, len(edit.Updates))
	updatedTrees := make([]ast.Expr, len(edit.Updates))

	for i, u := range edit.Updates {
		updatedFiles[i] = u.Path
		updatedTrees[i] = indexed[i].Tree

		if id, ok := c.Snapshot.Lookup(u.Path); ok {
			evictions[id] = c.Snapshot.Get(id).Hash
			entry := c.Snapshot.Get(id)
			entry.Source = u.Source
			entry.Hash = hashes[i]
			c.Snapshot.Upsert(entry)
		} else {
			hasNewFiles = true
			c.Snapshot.Upsert(snapshot.FileEntry{Path: u.Path, Source: u.Source, Hash: hashes[i]})
		}
	}

	update, err := NewLSPFileUpdates(edit.Epoch, edit.MergeCount, updatedFiles, hashes, updatedTrees)
	if err != nil {
		return nil, err
	}
	update.HasNewFiles = hasNewFiles
	update.evictions = evictions
	// The snapshot has already been mutated to the new hashes above, so
	// the fast-path comparison must go through the evictions map (the
	// pre-update hashes) rather than re-reading the snapshot.
	update.CanTakeFastPath = c.canTakeFastPath(update, evictions)

	dispatch := c.mergeOrCancel(update)

	if !dispatch.CanTakeFastPath {
		dispatch.UpdatedGS = c.Snapshot.DeepCopy()
		c.lastSlowPath = dispatch
	} else {
		c.lastSlowPath = nil
	}

	return dispatch, nil
}

// canTakeFastPath implements the fast-path decision (spec.md §4.5).
// override, if non-nil, replaces the snapshot's stored hash for a file
// when both are present -- this is how mergeOrCancel asks "if we undo
// these evicted hashes, would fast path still hold?".
func (c *Committer) canTakeFastPath(update *LSPFileUpdates, override EvictionsMap) bool {
	if c.FastPathDisabled {
		return false
	}
	if update.HasNewFiles {
		return false
	}

	for i, path := range update.UpdatedFiles {
		newHash := update.UpdatedFileHashes[i]
		if newHash.Definitions.HierarchyHash == hashing.HashInvalid {
			return false
		}

		id, ok := c.Snapshot.Lookup(path)
		if !ok {
			return false
		}

		prevHash := c.Snapshot.Get(id).Hash
		if override != nil {
			if oh, ok := override[id]; ok {
				prevHash = oh
			}
		}

		if newHash.Definitions.HierarchyHash != prevHash.Definitions.HierarchyHash {
			if c.Telemetry != nil {
				c.Telemetry.HashMismatch()
			}
			return false
		}
	}

	return true
}

// mergeOrCancel implements spec.md §4.6: if no slow path is in flight,
// dispatch update unchanged. Otherwise attempt to merge it with the
// last slow-path update and cancel the in-flight one if the merge
// would be fast-path (or if update is slow-path regardless).
func (c *Committer) mergeOrCancel(update *LSPFileUpdates) *LSPFileUpdates {
	if c.lastSlowPath == nil {
		return update
	}

	merged := c.merge(c.lastSlowPath, update)

	if merged.CanTakeFastPath || !update.CanTakeFastPath {
		if c.TryCancelSlowPath != nil && c.TryCancelSlowPath(merged.Epoch) {
			return merged
		}
	}

	return update
}

// merge combines a prior slow-path update L (and its evictions) with a
// new update U, per spec.md §4.6 step 1.
func (c *Committer) merge(l, u *LSPFileUpdates) *LSPFileUpdates {
	byPath := make(map[string]int, len(l.UpdatedFiles)+len(u.UpdatedFiles))
	var files []string
	var hashes []hashing.FileHash
	var trees []ast.Expr

	// Each stored tree is a deep copy (spec.md §4.6 step 1): the merged
	// update must not alias L's or U's trees, since both are mutated in
	// place elsewhere (flatten.Flatten, Snapshot's spine-copy semantics).
	appendOrReplace := func(path string, hash hashing.FileHash, tree ast.Expr) {
		var copied ast.Expr
		if tree != nil {
			copied = tree.DeepCopy()
		}
		if idx, ok := byPath[path]; ok {
			hashes[idx] = hash
			trees[idx] = copied
			return
		}
		byPath[path] = len(files)
		files = append(files, path)
		hashes = append(hashes, hash)
		trees = append(trees, copied)
	}

	for i, p := range l.UpdatedFiles {
		appendOrReplace(p, l.UpdatedFileHashes[i], l.UpdatedFileIndexes[i])
	}
	for i, p := range u.UpdatedFiles {
		appendOrReplace(p, u.UpdatedFileHashes[i], u.UpdatedFileIndexes[i])
	}

	// L's evictions record the snapshot's hash from before the whole
	// merge chain started; U's evictions only record the hash from
	// immediately before U, one step into that chain. For a file both
	// cover, L's value is the one a revert needs to be compared
	// against, so L wins on conflict here (spec.md §9's worked scenario
	// S5 only holds under this reading; see DESIGN.md).
	evictions := EvictionsMap{}
	for k, v := range u.evictions {
		evictions[k] = v
	}
	for k, v := range l.evictions {
		evictions[k] = v
	}

	// Both l and u have already been committed to the live snapshot
	// unconditionally (spec.md §4.4 step 2 happens regardless of fast/
	// slow classification), so "new" here means "still absent from the
	// current snapshot" rather than a stale flag carried from either
	// input update.
	hasNewFiles := false
	for _, p := range files {
		if _, ok := c.Snapshot.Lookup(p); !ok {
			hasNewFiles = true
			break
		}
	}

	merged := &LSPFileUpdates{
		Epoch:              u.Epoch,
		EditCount:          l.EditCount + u.EditCount,
		HasNewFiles:        hasNewFiles,
		UpdatedFiles:       files,
		UpdatedFileHashes:  hashes,
		UpdatedFileIndexes: trees,
		evictions:          evictions,
	}
	merged.CanTakeFastPath = c.canTakeFastPath(merged, evictions)
	return merged
}
