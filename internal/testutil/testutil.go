// Package testutil provides shared test fixtures.
package testutil

import (
	"os"
	"path/filepath"
	"runtime"
	"testing"
)

// ToolScript writes a shell script standing in for the moment tool and
// returns its path. The test is skipped where /bin/sh is unavailable.
func ToolScript(t testing.TB, body string) string {
	t.Helper()
	if runtime.GOOS == "windows" {
		t.Skip("shell scripts not supported")
	}
	path := filepath.Join(t.TempDir(), "mcalc.sh")
	if err := os.WriteFile(path, []byte("#!/bin/sh\n"+body+"\n"), 0o755); err != nil {
		t.Fatalf("write tool script: %v", err)
	}
	return path
}

// WriteTree creates every file of files (relative path to content) under
// root, creating parent folders as needed.
func WriteTree(t testing.TB, root string, files map[string]string) {
	t.Helper()
	for name, content := range files {
		path := filepath.Join(root, filepath.FromSlash(name))
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			t.Fatalf("create %s: %v", filepath.Dir(path), err)
		}
		if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
			t.Fatalf("write %s: %v", path, err)
		}
	}
}
