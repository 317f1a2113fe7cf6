// Copyright (c) The Pipit Authors
// SPDX-License-Identifier: MPL-2.0

// Package testutil provides a golden-file comparison helper for the core
// phases' test suites.
package testutil

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

// AssertGolden compares got against testdata/{name}, normalizing leading
// and trailing whitespace the way the teacher's own golden tests do.
// Set PIPIT_UPDATE_GOLDEN=1 to rewrite the golden file from got instead
// of comparing against it.
func AssertGolden(t *testing.T, name string, got string) {
	t.Helper()
	path := filepath.Join("testdata", name)

	if os.Getenv("PIPIT_UPDATE_GOLDEN") != "" {
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			t.Fatalf("creating testdata dir: %s", err)
		}
		if err := os.WriteFile(path, []byte(got), 0o644); err != nil {
			t.Fatalf("writing golden file: %s", err)
		}
		return
	}

	wantBytes, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("reading golden file %s: %s (run with PIPIT_UPDATE_GOLDEN=1 to create it)", path, err)
	}

	want := strings.TrimSpace(string(wantBytes))
	gotTrimmed := strings.TrimSpace(got)
	if want != gotTrimmed {
		t.Fatalf("golden mismatch for %s:\n--- want ---\n%s\n--- got ---\n%s", name, want, gotTrimmed)
	}
}
