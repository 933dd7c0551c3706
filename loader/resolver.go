package loader

import (
	"bytes"
	"fmt"
	"io"
	"os"
	"path"
	"path/filepath"
)

// DefaultFileResolver implements FileResolver for the local filesystem.
type DefaultFileResolver struct{}

// NewDefaultFileResolver creates a standard filesystem resolver.
func NewDefaultFileResolver() *DefaultFileResolver {
	return &DefaultFileResolver{}
}

// Resolve handles filesystem paths.  Relative imports are relative to the importing file.
func (r *DefaultFileResolver) Resolve(importerPath, importPath string) (io.ReadCloser, string, error) {
	resolvedPath := importPath
	if !filepath.IsAbs(importPath) && importerPath != "" {
		resolvedPath = filepath.Join(filepath.Dir(importerPath), importPath)
	}

	// Get the absolute path to use as the canonical path
	canonicalPath, err := filepath.Abs(resolvedPath)
	if err != nil {
		return nil, "", fmt.Errorf("could not get absolute path for '%s': %w", resolvedPath, err)
	}

	file, err := os.Open(canonicalPath)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, "", fmt.Errorf("file not found: %s (resolved from '%s')", canonicalPath, importPath)
		}
		return nil, "", fmt.Errorf("could not open file '%s': %w", canonicalPath, err)
	}
	return file, canonicalPath, nil
}

// FSResolver resolves imports against a FileSystem using slash separated paths.  This is
// what the compile service and the tests use with a MemoryFS.
type FSResolver struct {
	FS FileSystem
}

func NewFSResolver(fs FileSystem) *FSResolver {
	return &FSResolver{FS: fs}
}

func (r *FSResolver) Resolve(importerPath, importPath string) (io.ReadCloser, string, error) {
	canonicalPath := path.Clean(importPath)
	if !path.IsAbs(importPath) && importerPath != "" {
		canonicalPath = path.Join(path.Dir(importerPath), importPath)
	}
	data, err := r.FS.ReadFile(canonicalPath)
	if err != nil {
		return nil, "", err
	}
	return io.NopCloser(bytes.NewReader(data)), canonicalPath, nil
}
