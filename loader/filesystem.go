package loader

import (
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"sync"
)

// FileSystem interface provides an abstraction for file operations
// that can work in different environments (local disk, memory, etc.)
type FileSystem interface {
	ReadFile(path string) ([]byte, error)
	WriteFile(path string, data []byte) error
	ListFiles(dir string) ([]string, error)
	Exists(path string) bool
}

// CompositeFS serves paths under a mount prefix (such as "electrical/") from the file
// system mounted there, with the prefix stripped.  Other paths go to the fallback.
type CompositeFS struct {
	mu          sync.RWMutex
	filesystems map[string]FileSystem
	fallback    FileSystem
}

func NewCompositeFS() *CompositeFS {
	return &CompositeFS{
		filesystems: make(map[string]FileSystem),
	}
}

func (c *CompositeFS) SetFallback(fs FileSystem) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.fallback = fs
}

// Mount replaces whatever was mounted at prefix.
func (c *CompositeFS) Mount(prefix string, fs FileSystem) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.filesystems[prefix] = fs
}

// Mounted reports whether path falls under a mount prefix.
func (c *CompositeFS) Mounted(path string) bool {
	prefix, _ := c.findFS(path)
	return prefix != ""
}

// findFS picks the filesystem with the longest matching mount prefix, else the fallback
// with an empty prefix.
func (c *CompositeFS) findFS(path string) (string, FileSystem) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	var bestMatch string
	var bestFS FileSystem
	for prefix, fs := range c.filesystems {
		if strings.HasPrefix(path, prefix) && len(prefix) > len(bestMatch) {
			bestMatch = prefix
			bestFS = fs
		}
	}
	if bestFS != nil {
		return bestMatch, bestFS
	}
	return "", c.fallback
}

func (c *CompositeFS) ReadFile(path string) ([]byte, error) {
	prefix, fs := c.findFS(path)
	if fs == nil {
		return nil, fmt.Errorf("no filesystem mounted for path: %s", path)
	}
	return fs.ReadFile(strings.TrimPrefix(path, prefix))
}

func (c *CompositeFS) WriteFile(path string, data []byte) error {
	prefix, fs := c.findFS(path)
	if fs == nil {
		return fmt.Errorf("no filesystem mounted for path: %s", path)
	}
	return fs.WriteFile(strings.TrimPrefix(path, prefix), data)
}

// ListFiles returns paths with the mount prefix put back.
func (c *CompositeFS) ListFiles(dir string) ([]string, error) {
	prefix, fs := c.findFS(dir)
	if fs == nil {
		return nil, fmt.Errorf("no filesystem mounted for path: %s", dir)
	}
	files, err := fs.ListFiles(strings.TrimPrefix(dir, prefix))
	if err != nil {
		return nil, err
	}
	for i, f := range files {
		files[i] = prefix + filepath.ToSlash(f)
	}
	return files, nil
}

func (c *CompositeFS) Exists(path string) bool {
	prefix, fs := c.findFS(path)
	return fs != nil && fs.Exists(strings.TrimPrefix(path, prefix))
}

// LocalFS implements FileSystem using the local disk
type LocalFS struct {
	basePath string
}

func NewLocalFS(basePath string) *LocalFS {
	return &LocalFS{basePath: basePath}
}

func (l *LocalFS) resolvePath(path string) string {
	if filepath.IsAbs(path) {
		return path
	}
	return filepath.Join(l.basePath, path)
}

func (l *LocalFS) ReadFile(path string) ([]byte, error) {
	return os.ReadFile(l.resolvePath(path))
}

func (l *LocalFS) WriteFile(path string, data []byte) error {
	fullPath := l.resolvePath(path)
	if err := os.MkdirAll(filepath.Dir(fullPath), 0755); err != nil {
		return err
	}
	return os.WriteFile(fullPath, data, 0644)
}

// ListFiles returns the regular files in dir, sorted by name.
func (l *LocalFS) ListFiles(dir string) ([]string, error) {
	entries, err := os.ReadDir(l.resolvePath(dir))
	if err != nil {
		return nil, err
	}
	var files []string
	for _, entry := range entries {
		if !entry.IsDir() {
			files = append(files, filepath.Join(dir, entry.Name()))
		}
	}
	return files, nil
}

func (l *LocalFS) Exists(path string) bool {
	_, err := os.Stat(l.resolvePath(path))
	return err == nil
}

// MemoryFS implements an in-memory file system
type MemoryFS struct {
	mu    sync.RWMutex
	files map[string][]byte
}

func NewMemoryFS() *MemoryFS {
	return &MemoryFS{
		files: make(map[string][]byte),
	}
}

func (m *MemoryFS) ReadFile(path string) ([]byte, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	data, exists := m.files[path]
	if !exists {
		return nil, fmt.Errorf("file not found: %s", path)
	}
	return append([]byte(nil), data...), nil // Return a copy
}

func (m *MemoryFS) WriteFile(path string, data []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.files[path] = append([]byte(nil), data...) // Store a copy
	return nil
}

func (m *MemoryFS) ListFiles(dir string) ([]string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var files []string
	for path := range m.files {
		if strings.HasPrefix(path, dir) {
			files = append(files, path)
		}
	}
	slices.Sort(files)
	return files, nil
}

func (m *MemoryFS) Exists(path string) bool {
	m.mu.RLock()
	defer m.mu.RUnlock()

	_, exists := m.files[path]
	return exists
}

// PreloadFiles adds files to the memory filesystem
func (m *MemoryFS) PreloadFiles(files map[string]string) {
	m.mu.Lock()
	defer m.mu.Unlock()

	for path, content := range files {
		m.files[path] = []byte(content)
	}
}
