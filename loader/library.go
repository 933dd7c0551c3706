package loader

import (
	"bytes"
	"fmt"
	"io"
	"path"
	"slices"
	"strings"
)

// Library is a named tree of JSML files.  `import "electrical/pins.jsml"` reads pins.jsml
// from the library named electrical.
type Library struct {
	Name string
	FS   FileSystem
}

// ParseLibraries reads `name=dir` specs into libraries on the local disk.
func ParseLibraries(specs ...string) ([]Library, error) {
	var out []Library
	for _, spec := range specs {
		name, dir, ok := strings.Cut(spec, "=")
		name, dir = strings.TrimSpace(name), strings.TrimSpace(dir)
		if !ok || name == "" || dir == "" || strings.ContainsAny(name, `/\`) {
			return nil, fmt.Errorf("invalid library %q, want name=dir", spec)
		}
		out = append(out, Library{Name: name, FS: NewLocalFS(dir)})
	}
	return out, nil
}

// LibraryResolver serves library imports from a CompositeFS and hands everything else to
// Next.  An import is a library import when its first segment names a library.  Canonical
// paths of library files are `name/path`, and relative imports inside a library stay inside
// it.
type LibraryResolver struct {
	Libraries *CompositeFS
	Next      FileResolver
}

// NewLibraryResolver mounts libs in order; a later library replaces an earlier one of the
// same name.
func NewLibraryResolver(next FileResolver, libs ...Library) *LibraryResolver {
	r := &LibraryResolver{Libraries: NewCompositeFS(), Next: next}
	for _, lib := range libs {
		r.Libraries.Mount(lib.Name+"/", lib.FS)
	}
	return r
}

func (r *LibraryResolver) Resolve(importerPath, importPath string) (io.ReadCloser, string, error) {
	var canonicalPath string
	switch {
	case importerPath == "":
		// root files always come from Next
		return r.Next.Resolve(importerPath, importPath)
	case r.Libraries.Mounted(path.Clean(importPath)):
		canonicalPath = path.Clean(importPath)
	case r.Libraries.Mounted(importerPath) && !path.IsAbs(importPath):
		canonicalPath = path.Join(path.Dir(importerPath), importPath)
	default:
		return r.Next.Resolve(importerPath, importPath)
	}
	if !r.Libraries.Mounted(canonicalPath) {
		return nil, "", fmt.Errorf("import '%s' leaves library %s", importPath, libraryName(importerPath))
	}
	data, err := r.Libraries.ReadFile(canonicalPath)
	if err != nil {
		return nil, "", fmt.Errorf("library file %s: %w", canonicalPath, err)
	}
	return io.NopCloser(bytes.NewReader(data)), canonicalPath, nil
}

// SplitLibraryPath splits a canonical library path into the library name and the path
// inside it.  ok is false for paths outside libs.
func SplitLibraryPath(p string, libs []Library) (name, rest string, ok bool) {
	name, rest, found := strings.Cut(p, "/")
	if !found || !slices.ContainsFunc(libs, func(l Library) bool { return l.Name == name }) {
		return "", "", false
	}
	return name, rest, true
}

func libraryName(p string) string {
	name, _, _ := strings.Cut(p, "/")
	return name
}
