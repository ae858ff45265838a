// Package testutil provides fixture and golden-comparison helpers
// used by the flattener's golden test. Adapted from ckb's own
// internal/testutil fixture loader; retargeted at AST shape summaries
// of hand-built trees instead of SCIP fixtures, so a fixture has no
// source file to load.
package testutil

import (
	"os"
	"path/filepath"
	"runtime"
	"testing"
)

// FixtureContext names one fixture's home under testdata/fixtures,
// where its golden files live.
type FixtureContext struct {
	Name        string
	Root        string
	ExpectedDir string
}

// Fixture returns the context for a fixture named name, creating its
// expected/ directory on first use.
func Fixture(t *testing.T, name string) *FixtureContext {
	t.Helper()

	root := filepath.Join(fixturesRoot(t), name)
	expectedDir := filepath.Join(root, "expected")
	if err := os.MkdirAll(expectedDir, 0o755); err != nil {
		t.Fatalf("failed to create expected directory: %v", err)
	}

	return &FixtureContext{Name: name, Root: root, ExpectedDir: expectedDir}
}

// ExpectedPath returns the path to a golden file within the fixture.
// name should not include the .json extension.
func (f *FixtureContext) ExpectedPath(name string) string {
	return filepath.Join(f.ExpectedDir, name+".json")
}

// fixturesRoot returns the absolute path to testdata/fixtures/.
func fixturesRoot(t *testing.T) string {
	t.Helper()

	_, thisFile, _, ok := runtime.Caller(0)
	if !ok {
		t.Fatal("failed to get caller information")
	}

	// internal/testutil/fixture.go -> internal -> project root
	projectRoot := filepath.Dir(filepath.Dir(filepath.Dir(thisFile)))
	return filepath.Join(projectRoot, "testdata", "fixtures")
}
