package testutil

import (
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"testing"
)

func TestToolScript(t *testing.T) {
	path := ToolScript(t, `echo "1 2 3"`)
	out, err := exec.Command(path).Output()
	if err != nil {
		t.Fatalf("run script: %v", err)
	}
	if got := strings.TrimSpace(string(out)); got != "1 2 3" {
		t.Errorf("script output = %q, want %q", got, "1 2 3")
	}
}

func TestWriteTree(t *testing.T) {
	root := t.TempDir()
	WriteTree(t, root, map[string]string{
		"bs000/bs000_N_N_0.pcd": "a",
		"top.txt":               "b",
	})

	tests := []struct {
		name string
		want string
	}{
		{"bs000/bs000_N_N_0.pcd", "a"},
		{"top.txt", "b"},
	}
	for _, tt := range tests {
		data, err := os.ReadFile(filepath.Join(root, tt.name))
		if err != nil {
			t.Fatalf("read %s: %v", tt.name, err)
		}
		if string(data) != tt.want {
			t.Errorf("%s = %q, want %q", tt.name, data, tt.want)
		}
	}
}
