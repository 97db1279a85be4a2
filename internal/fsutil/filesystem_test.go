package fsutil

import (
	"io"
	"os"
	"path/filepath"
	"testing"
)

func TestOSFileSystem_Exists(t *testing.T) {
	fs := OSFileSystem{}

	if !fs.Exists("filesystem.go") {
		t.Error("expected filesystem.go to exist")
	}

	if fs.Exists("nonexistent_file_xyz.go") {
		t.Error("expected nonexistent file to not exist")
	}
}

func TestOSFileSystem_ReadDir(t *testing.T) {
	fs := OSFileSystem{}
	dir := t.TempDir()

	if err := fs.MkdirAll(filepath.Join(dir, "bs001"), 0755); err != nil {
		t.Fatalf("MkdirAll failed: %v", err)
	}
	if err := fs.WriteFile(filepath.Join(dir, "bs000_N_N_0.pcd"), []byte("x"), 0644); err != nil {
		t.Fatalf("WriteFile failed: %v", err)
	}

	entries, err := fs.ReadDir(dir)
	if err != nil {
		t.Fatalf("ReadDir failed: %v", err)
	}
	if len(entries) != 2 {
		t.Fatalf("expected 2 entries, got %d", len(entries))
	}
	if entries[0].Name() != "bs000_N_N_0.pcd" || entries[0].IsDir() {
		t.Errorf("unexpected first entry %q (dir=%v)", entries[0].Name(), entries[0].IsDir())
	}
	if entries[1].Name() != "bs001" || !entries[1].IsDir() {
		t.Errorf("unexpected second entry %q (dir=%v)", entries[1].Name(), entries[1].IsDir())
	}
}

func TestOSFileSystem_CreateAndOpen(t *testing.T) {
	fs := OSFileSystem{}
	path := filepath.Join(t.TempDir(), "cloud.xyz")

	w, err := fs.Create(path)
	if err != nil {
		t.Fatalf("Create failed: %v", err)
	}
	if _, err := w.Write([]byte("1 2 3\n")); err != nil {
		t.Fatalf("Write failed: %v", err)
	}
	if err := w.Close(); err != nil {
		t.Fatalf("Close failed: %v", err)
	}

	f, err := fs.Open(path)
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	defer f.Close()

	data, err := io.ReadAll(f)
	if err != nil {
		t.Fatalf("ReadAll failed: %v", err)
	}
	if string(data) != "1 2 3\n" {
		t.Errorf("expected %q, got %q", "1 2 3\n", data)
	}
}

func TestMemoryFileSystem_WriteAndRead(t *testing.T) {
	mfs := NewMemoryFileSystem()

	testData := []byte("hello, world")
	if err := mfs.WriteFile("/test.txt", testData, 0644); err != nil {
		t.Fatalf("WriteFile failed: %v", err)
	}

	data, err := mfs.ReadFile("/test.txt")
	if err != nil {
		t.Fatalf("ReadFile failed: %v", err)
	}

	if string(data) != string(testData) {
		t.Errorf("expected %q, got %q", testData, data)
	}
}

func TestMemoryFileSystem_CreateAndWrite(t *testing.T) {
	mfs := NewMemoryFileSystem()

	w, err := mfs.Create("/out/created.txt")
	if err != nil {
		t.Fatalf("Create failed: %v", err)
	}
	if _, err := w.Write([]byte("created content")); err != nil {
		t.Fatalf("Write failed: %v", err)
	}
	if err := w.Close(); err != nil {
		t.Fatalf("Close failed: %v", err)
	}

	data, err := mfs.ReadFile("/out/created.txt")
	if err != nil {
		t.Fatalf("ReadFile failed: %v", err)
	}
	if string(data) != "created content" {
		t.Errorf("expected 'created content', got %q", data)
	}
	if !mfs.Exists("/out") {
		t.Error("expected parent directory to be implied by Create")
	}
}

func TestMemoryFileSystem_Open(t *testing.T) {
	mfs := NewMemoryFileSystem()

	if err := mfs.WriteFile("/opentest.txt", []byte("open me"), 0644); err != nil {
		t.Fatalf("WriteFile failed: %v", err)
	}

	f, err := mfs.Open("/opentest.txt")
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	defer f.Close()

	data, err := io.ReadAll(f)
	if err != nil {
		t.Fatalf("ReadAll failed: %v", err)
	}
	if string(data) != "open me" {
		t.Errorf("expected 'open me', got %q", data)
	}
}

func TestMemoryFileSystem_OpenNonExistent(t *testing.T) {
	mfs := NewMemoryFileSystem()

	if _, err := mfs.Open("/nonexistent.txt"); !os.IsNotExist(err) {
		t.Errorf("expected not-exist error, got %v", err)
	}
}

func TestMemoryFileSystem_MkdirAllImpliesParents(t *testing.T) {
	mfs := NewMemoryFileSystem()

	if err := mfs.MkdirAll("/a/b/c", 0755); err != nil {
		t.Fatalf("MkdirAll failed: %v", err)
	}

	for _, dir := range []string{"/a", "/a/b"} {
		entries, err := mfs.ReadDir(dir)
		if err != nil {
			t.Fatalf("ReadDir(%s) failed: %v", dir, err)
		}
		if len(entries) != 1 || !entries[0].IsDir() {
			t.Errorf("expected one directory under %s, got %v", dir, entries)
		}
	}
	if _, err := mfs.ReadFile("/a/b"); !os.IsNotExist(err) {
		t.Errorf("reading a directory as a file should fail, got %v", err)
	}
}

func TestMemoryFileSystem_MkdirAllKeepsChildren(t *testing.T) {
	mfs := NewMemoryFileSystem()

	_ = mfs.WriteFile("/out/clouds/bs000/bs000_N_N_0.xyz", []byte("1 2 3\n"), 0644)
	if err := mfs.MkdirAll("/out/clouds", 0755); err != nil {
		t.Fatalf("MkdirAll failed: %v", err)
	}

	if !mfs.Exists("/out/clouds/bs000/bs000_N_N_0.xyz") {
		t.Error("MkdirAll on an existing directory dropped its contents")
	}
}

func TestMemoryFileSystem_CreateVisibleOnClose(t *testing.T) {
	mfs := NewMemoryFileSystem()

	w, err := mfs.Create("/scan.pcd")
	if err != nil {
		t.Fatalf("Create failed: %v", err)
	}
	_, _ = w.Write([]byte("VERSION 0.7\n"))

	if data, _ := mfs.ReadFile("/scan.pcd"); len(data) != 0 {
		t.Errorf("expected empty file before Close, got %q", data)
	}
	if err := w.Close(); err != nil {
		t.Fatalf("Close failed: %v", err)
	}
	if data, _ := mfs.ReadFile("/scan.pcd"); string(data) != "VERSION 0.7\n" {
		t.Errorf("unexpected contents after Close: %q", data)
	}
}

func TestMemoryFileSystem_ReadDir(t *testing.T) {
	mfs := NewMemoryFileSystem()

	files := []string{
		"/clouds/bs001/bs001_N_N_0.pcd",
		"/clouds/bs001/bs001_E_HAPPY_0.pcd",
		"/clouds/bs000/bs000_N_N_0.pcd",
		"/clouds/readme.txt",
	}
	for _, f := range files {
		if err := mfs.WriteFile(f, []byte("x"), 0644); err != nil {
			t.Fatalf("WriteFile(%s) failed: %v", f, err)
		}
	}

	entries, err := mfs.ReadDir("/clouds")
	if err != nil {
		t.Fatalf("ReadDir failed: %v", err)
	}

	want := []struct {
		name  string
		isDir bool
	}{
		{"bs000", true},
		{"bs001", true},
		{"readme.txt", false},
	}
	if len(entries) != len(want) {
		t.Fatalf("expected %d entries, got %d", len(want), len(entries))
	}
	for i, w := range want {
		if entries[i].Name() != w.name || entries[i].IsDir() != w.isDir {
			t.Errorf("entry %d = (%q, dir=%v), want (%q, dir=%v)",
				i, entries[i].Name(), entries[i].IsDir(), w.name, w.isDir)
		}
	}

	sub, err := mfs.ReadDir("/clouds/bs001")
	if err != nil {
		t.Fatalf("ReadDir failed: %v", err)
	}
	if len(sub) != 2 || sub[0].Name() != "bs001_E_HAPPY_0.pcd" {
		t.Errorf("unexpected subject entries: %v", sub)
	}
}

func TestMemoryFileSystem_ReadDirMissing(t *testing.T) {
	mfs := NewMemoryFileSystem()

	if _, err := mfs.ReadDir("/missing"); !os.IsNotExist(err) {
		t.Errorf("expected not-exist error, got %v", err)
	}
}

func TestMemoryFileSystem_Exists(t *testing.T) {
	mfs := NewMemoryFileSystem()

	if mfs.Exists("/nothing") {
		t.Error("expected /nothing to not exist")
	}

	_ = mfs.WriteFile("/file.txt", []byte("data"), 0644)
	_ = mfs.MkdirAll("/dir", 0755)

	if !mfs.Exists("/file.txt") {
		t.Error("expected /file.txt to exist")
	}
	if !mfs.Exists("/dir") {
		t.Error("expected /dir to exist")
	}
}

func TestMemoryFileSystem_DataIsolation(t *testing.T) {
	mfs := NewMemoryFileSystem()

	original := []byte("original")
	_ = mfs.WriteFile("/iso.txt", original, 0644)
	original[0] = 'X'

	data, _ := mfs.ReadFile("/iso.txt")
	if string(data) != "original" {
		t.Errorf("stored data was aliased: %q", data)
	}

	data[0] = 'Y'
	again, _ := mfs.ReadFile("/iso.txt")
	if string(again) != "original" {
		t.Errorf("returned data was aliased: %q", again)
	}
}

func TestMemoryFileSystem_PathCleaning(t *testing.T) {
	mfs := NewMemoryFileSystem()

	_ = mfs.WriteFile("/a/../b/./c.txt", []byte("clean"), 0644)

	data, err := mfs.ReadFile("/b/c.txt")
	if err != nil {
		t.Fatalf("ReadFile failed: %v", err)
	}
	if string(data) != "clean" {
		t.Errorf("expected 'clean', got %q", data)
	}
}
