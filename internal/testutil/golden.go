package testutil

import (
	"bytes"
	"encoding/json"
	"flag"
	"os"
	"testing"
)

// updateGolden controls whether golden files should be updated.
// Use: go test ./internal/flatten -run Golden -update
var updateGolden = flag.Bool("update", false, "update golden files")

// ShouldUpdate returns true if golden files should be rewritten rather
// than compared.
func ShouldUpdate() bool {
	return *updateGolden
}

// CompareGolden marshals got as indented JSON and compares it against
// fixture's golden file name, failing with both sides shown on
// mismatch. Run with -update to write the golden file instead.
func CompareGolden(t *testing.T, fixture *FixtureContext, name string, got any) {
	t.Helper()

	data, err := json.MarshalIndent(got, "", "  ")
	if err != nil {
		t.Fatalf("failed to marshal golden value: %v", err)
	}
	data = append(data, '\n')

	goldenPath := fixture.ExpectedPath(name)

	if *updateGolden {
		if err := os.WriteFile(goldenPath, data, 0o644); err != nil {
			t.Fatalf("failed to update golden file: %v", err)
		}
		t.Logf("updated golden: %s", goldenPath)
		return
	}

	expected, err := os.ReadFile(goldenPath)
	if err != nil {
		if os.IsNotExist(err) {
			t.Fatalf("golden file missing: %s\n\ngot:\n%s\n\nrun with -update to create it", goldenPath, data)
		}
		t.Fatalf("failed to read golden file: %v", err)
	}

	if !bytes.Equal(expected, data) {
		t.Fatalf("golden mismatch for %s:\n--- expected ---\n%s--- got ---\n%s", name, expected, data)
	}
}
