// Package cache persists flattened trees keyed by hierarchy hash, so a
// fast-path commit that reintroduces a previously-seen hierarchy hash
// can skip re-parsing (spec.md §9's "no persisted state within the
// core" leaves the KV cache itself optional and opaque; this package is
// that optional layer).
package cache

import (
	"fmt"

	"github.com/klauspost/compress/zstd"
	"go.etcd.io/bbolt"

	"gemcheck/internal/ast"
	"gemcheck/internal/hashing"
)

var bucketTrees = []byte("trees")

// TreeCache stores and retrieves flattened trees by their file hash.
// Implementations must be safe for concurrent use.
type TreeCache interface {
	Put(hash hashing.FileHash, tree ast.Expr) error
	Get(hash hashing.FileHash) (ast.Expr, bool, error)
	Close() error
}

// BoltTreeCache is a TreeCache backed by a single bbolt database file.
// Encoded trees are zstd-compressed before they hit disk; flattened
// trees are repetitive JSON and compress well, and a single-shot
// encoder/decoder pair costs nothing an LSP-adjacent process notices.
type BoltTreeCache struct {
	db  *bbolt.DB
	enc *zstd.Encoder
	dec *zstd.Decoder
}

// OpenBoltTreeCache opens (creating if absent) a bbolt-backed tree
// cache at path.
func OpenBoltTreeCache(path string) (*BoltTreeCache, error) {
	db, err := bbolt.Open(path, 0600, nil)
	if err != nil {
		return nil, fmt.Errorf("cache: failed to open bolt db: %w", err)
	}

	err = db.Update(func(tx *bbolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists(bucketTrees)
		return err
	})
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("cache: failed to create bucket: %w", err)
	}

	enc, err := zstd.NewWriter(nil)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("cache: failed to construct zstd encoder: %w", err)
	}
	dec, err := zstd.NewReader(nil)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("cache: failed to construct zstd decoder: %w", err)
	}

	return &BoltTreeCache{db: db, enc: enc, dec: dec}, nil
}

func cacheKey(hash hashing.FileHash) []byte {
	return []byte(hash.Definitions.HierarchyHash)
}

// Put stores tree under hash's hierarchy hash. A hash of HashInvalid or
// HashNotComputed is refused: those never identify a stable tree.
func (c *BoltTreeCache) Put(hash hashing.FileHash, tree ast.Expr) error {
	if hash.Definitions.HierarchyHash == hashing.HashInvalid || hash.Definitions.HierarchyHash == hashing.HashNotComputed {
		return fmt.Errorf("cache: refusing to store a tree under an unstable hash")
	}

	data, err := ast.Encode(tree)
	if err != nil {
		return fmt.Errorf("cache: failed to encode tree: %w", err)
	}
	compressed := c.enc.EncodeAll(data, nil)

	return c.db.Update(func(tx *bbolt.Tx) error {
		return tx.Bucket(bucketTrees).Put(cacheKey(hash), compressed)
	})
}

// Get returns the tree stored under hash's hierarchy hash, if present.
func (c *BoltTreeCache) Get(hash hashing.FileHash) (ast.Expr, bool, error) {
	var found bool
	var data []byte

	err := c.db.View(func(tx *bbolt.Tx) error {
		v := tx.Bucket(bucketTrees).Get(cacheKey(hash))
		if v == nil {
			return nil
		}
		found = true
		data = append([]byte(nil), v...)
		return nil
	})
	if err != nil || !found {
		return nil, false, err
	}

	decompressed, err := c.dec.DecodeAll(data, nil)
	if err != nil {
		return nil, false, fmt.Errorf("cache: failed to decompress tree: %w", err)
	}

	tree, err := ast.Decode(decompressed)
	if err != nil {
		return nil, false, fmt.Errorf("cache: failed to decode tree: %w", err)
	}
	return tree, true, nil
}

// Close releases the underlying bbolt database file and the zstd
// decoder's background goroutines.
func (c *BoltTreeCache) Close() error {
	c.dec.Close()
	return c.db.Close()
}
