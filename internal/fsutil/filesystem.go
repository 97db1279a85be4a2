// Package fsutil abstracts the scan, landmark and report trees behind a
// FileSystem so that pipelines can run against memory in tests.
package fsutil

import (
	"bytes"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"
)

// FileSystem is the subset of filesystem operations the pipelines use.
type FileSystem interface {
	Open(name string) (fs.File, error)
	// Create truncates name; contents become visible once the writer is closed.
	Create(name string) (io.WriteCloser, error)
	ReadFile(name string) ([]byte, error)
	WriteFile(name string, data []byte, perm os.FileMode) error
	MkdirAll(path string, perm os.FileMode) error
	// ReadDir lists the entries of name sorted by filename.
	ReadDir(name string) ([]fs.DirEntry, error)
	Exists(name string) bool
}

// OSFileSystem is the FileSystem backed by the os package.
type OSFileSystem struct{}

func (OSFileSystem) Open(name string) (fs.File, error)            { return os.Open(name) }
func (OSFileSystem) Create(name string) (io.WriteCloser, error)   { return os.Create(name) }
func (OSFileSystem) ReadFile(name string) ([]byte, error)         { return os.ReadFile(name) }
func (OSFileSystem) MkdirAll(path string, perm os.FileMode) error { return os.MkdirAll(path, perm) }
func (OSFileSystem) ReadDir(name string) ([]fs.DirEntry, error)   { return os.ReadDir(name) }

func (OSFileSystem) WriteFile(name string, data []byte, perm os.FileMode) error {
	return os.WriteFile(name, data, perm)
}

func (OSFileSystem) Exists(name string) bool {
	_, err := os.Stat(name)
	return err == nil
}

// MemoryFileSystem keeps a tree of files in memory. Writing a file implies
// all of its parent directories. Stored and returned byte slices are copies.
type MemoryFileSystem struct {
	mu    sync.RWMutex
	nodes map[string]*memNode
}

type memNode struct {
	data []byte
	mode os.FileMode
	dir  bool
}

func (n *memNode) info(name string) *memInfo {
	return &memInfo{name: filepath.Base(name), size: int64(len(n.data)), mode: n.mode, dir: n.dir}
}

// NewMemoryFileSystem returns an empty tree.
func NewMemoryFileSystem() *MemoryFileSystem {
	return &MemoryFileSystem{nodes: make(map[string]*memNode)}
}

func (m *MemoryFileSystem) file(op, name string) (string, *memNode, error) {
	name = filepath.Clean(name)
	n, ok := m.nodes[name]
	if !ok || n.dir {
		return name, nil, &fs.PathError{Op: op, Path: name, Err: fs.ErrNotExist}
	}
	return name, n, nil
}

func (m *MemoryFileSystem) Open(name string) (fs.File, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	name, n, err := m.file("open", name)
	if err != nil {
		return nil, err
	}
	return &memReader{Reader: bytes.NewReader(n.data), info: n.info(name)}, nil
}

func (m *MemoryFileSystem) Create(name string) (io.WriteCloser, error) {
	name = filepath.Clean(name)
	m.put(name, &memNode{mode: 0o644})
	return &memWriter{fs: m, name: name}, nil
}

func (m *MemoryFileSystem) ReadFile(name string) ([]byte, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	_, n, err := m.file("read", name)
	if err != nil {
		return nil, err
	}
	return bytes.Clone(n.data), nil
}

func (m *MemoryFileSystem) WriteFile(name string, data []byte, perm os.FileMode) error {
	m.put(filepath.Clean(name), &memNode{data: bytes.Clone(data), mode: perm})
	return nil
}

func (m *MemoryFileSystem) MkdirAll(path string, perm os.FileMode) error {
	m.put(filepath.Clean(path), &memNode{mode: perm | fs.ModeDir, dir: true})
	return nil
}

func (m *MemoryFileSystem) ReadDir(name string) ([]fs.DirEntry, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	name = filepath.Clean(name)
	if n, ok := m.nodes[name]; !ok || !n.dir {
		return nil, &fs.PathError{Op: "readdir", Path: name, Err: fs.ErrNotExist}
	}
	var entries []fs.DirEntry
	for p, n := range m.nodes {
		if p != name && filepath.Dir(p) == name {
			entries = append(entries, fs.FileInfoToDirEntry(n.info(p)))
		}
	}
	sort.Slice(entries, func(i, j int) bool { return entries[i].Name() < entries[j].Name() })
	return entries, nil
}

func (m *MemoryFileSystem) Exists(name string) bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	_, ok := m.nodes[filepath.Clean(name)]
	return ok
}

// put stores n at a cleaned path and marks every ancestor as a directory.
// An existing directory is never replaced by MkdirAll.
func (m *MemoryFileSystem) put(name string, n *memNode) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if old, ok := m.nodes[name]; !(ok && old.dir && n.dir) {
		m.nodes[name] = n
	}
	for p := filepath.Dir(name); ; p = filepath.Dir(p) {
		if _, ok := m.nodes[p]; !ok {
			m.nodes[p] = &memNode{mode: 0o755 | fs.ModeDir, dir: true}
		}
		if p == filepath.Dir(p) {
			return
		}
	}
}

type memReader struct {
	*bytes.Reader
	info *memInfo
}

func (f *memReader) Stat() (fs.FileInfo, error) { return f.info, nil }
func (f *memReader) Close() error               { return nil }

type memWriter struct {
	fs   *MemoryFileSystem
	name string
	buf  bytes.Buffer
}

func (w *memWriter) Write(p []byte) (int, error) { return w.buf.Write(p) }

func (w *memWriter) Close() error {
	w.fs.put(w.name, &memNode{data: bytes.Clone(w.buf.Bytes()), mode: 0o644})
	return nil
}

type memInfo struct {
	name string
	size int64
	mode os.FileMode
	dir  bool
}

func (i *memInfo) Name() string       { return i.name }
func (i *memInfo) Size() int64        { return i.size }
func (i *memInfo) Mode() os.FileMode  { return i.mode }
func (i *memInfo) ModTime() time.Time { return time.Time{} }
func (i *memInfo) IsDir() bool        { return i.dir }
func (i *memInfo) Sys() any           { return nil }
