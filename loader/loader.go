// Package loader reads a root JSML file and everything it imports.
package loader

import (
	"bytes"
	"errors"
	"io"
	"log/slog"
	"strings"
	"sync"

	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"

	"github.com/panyam/jsmlc/decl"
	"github.com/panyam/jsmlc/diag"
	"github.com/panyam/jsmlc/parser"
)

// DefaultMaxDepth bounds import chains when no explicit limit is given.
const DefaultMaxDepth = 32

// LoadResult holds the outcome of a loading operation.
type LoadResult struct {
	RootFile *decl.FileDecl            // The AST for the initially requested root file.
	Files    map[string]*decl.FileDecl // All files loaded, keyed by canonical path.
	// NFC normalised source text, keyed by canonical path
	Sources map[string]string
	// Canonical paths with every file listed after the files it imports.
	Order []string
}

// AllFiles returns the loaded files with imports before importers.
func (r *LoadResult) AllFiles() []*decl.FileDecl {
	out := make([]*decl.FileDecl, 0, len(r.Order))
	for _, p := range r.Order {
		out = append(out, r.Files[p])
	}
	return out
}

// Loader handles parsing and recursively loading imported JSML files.
type Loader struct {
	parser   Parser
	resolver FileResolver
	maxDepth int

	// Internal state during a load operation
	mutex       sync.Mutex
	loadedFiles map[string]*decl.FileDecl
	sources     map[string]string
	order       []string
	// Files currently being loaded, outermost first, for cycle reporting
	pending []string
}

// NewLoader creates a new JSML loader.
// maxDepth specifies the maximum import recursion depth (0 means no limit, 1 means root only, etc.).
func NewLoader(parser Parser, resolver FileResolver, maxDepth int) *Loader {
	return &Loader{
		parser:   parser,
		resolver: resolver,
		maxDepth: maxDepth,
	}
}

// NewFileLoader loads from the local filesystem with the standard parser, reading imports
// that name one of libs from that library.
func NewFileLoader(libs ...Library) *Loader {
	return NewLoader(ParserFunc(parser.Parse), withLibraries(NewDefaultFileResolver(), libs), DefaultMaxDepth)
}

// NewMemoryLoader loads from an in-memory set of sources keyed by slash separated path.
func NewMemoryLoader(sources map[string]string, libs ...Library) *Loader {
	fs := NewMemoryFS()
	fs.PreloadFiles(sources)
	return NewLoader(ParserFunc(parser.Parse), withLibraries(NewFSResolver(fs), libs), DefaultMaxDepth)
}

func withLibraries(next FileResolver, libs []Library) FileResolver {
	if len(libs) == 0 {
		return next
	}
	return NewLibraryResolver(next, libs...)
}

// LoadRootFile parses the specified root file and recursively loads its imports.
// Failures are returned as a *diag.Diagnostic.
func (l *Loader) LoadRootFile(rootPath string) (*LoadResult, error) {
	l.mutex.Lock()
	defer l.mutex.Unlock()

	// Reset state for this load operation
	l.loadedFiles = make(map[string]*decl.FileDecl)
	l.sources = make(map[string]string)
	l.order = nil
	l.pending = nil

	rootFile, err := l.loadFileRecursive("", rootPath, 0, nil)
	if err != nil {
		return nil, err
	}
	slog.Debug("Loaded files", "stage", "load", "root", rootFile.Path, "count", len(l.order))
	return &LoadResult{RootFile: rootFile, Files: l.loadedFiles, Sources: l.sources, Order: l.order}, nil
}

// loadFileRecursive handles the actual loading and parsing logic.  from is the import
// statement that requested the file, nil for the root.
func (l *Loader) loadFileRecursive(importerPath, filePath string, depth int, from *decl.ImportDecl) (*decl.FileDecl, error) {
	// depth 0 is the root, depth 1 is its direct imports, etc.
	if l.maxDepth > 0 && depth >= l.maxDepth {
		return nil, importError(diag.IOError, importerPath, from, "max import depth (%d) exceeded near '%s'", l.maxDepth, filePath)
	}

	contentReader, canonicalPath, err := l.resolver.Resolve(importerPath, filePath)
	if err != nil {
		return nil, importError(diag.IOError, importerPath, from, "cannot resolve import '%s': %v", filePath, err)
	}
	defer contentReader.Close()

	if fileDecl, found := l.loadedFiles[canonicalPath]; found {
		return fileDecl, nil
	}

	for idx, p := range l.pending {
		if p == canonicalPath {
			chain := append(append([]string(nil), l.pending[idx:]...), canonicalPath)
			return nil, importError(diag.CyclicDefinitionError, importerPath, from, "import cycle: %s", strings.Join(chain, " -> "))
		}
	}

	l.pending = append(l.pending, canonicalPath)
	defer func() { l.pending = l.pending[:len(l.pending)-1] }()

	// Source text is compared and hashed by code points, so normalise up front.
	source, err := io.ReadAll(transform.NewReader(contentReader, norm.NFC))
	if err != nil {
		return nil, importError(diag.IOError, importerPath, from, "reading '%s': %v", canonicalPath, err)
	}
	fileDecl, err := l.parser.Parse(bytes.NewReader(source), canonicalPath)
	if err != nil {
		var d *diag.Diagnostic
		if errors.As(err, &d) {
			return nil, d
		}
		return nil, importError(diag.IOError, importerPath, from, "reading '%s': %v", canonicalPath, err)
	}

	for _, importDecl := range fileDecl.Imports() {
		if _, err := l.loadFileRecursive(canonicalPath, importDecl.Path.Value, depth+1, importDecl); err != nil {
			return nil, err
		}
	}

	l.loadedFiles[canonicalPath] = fileDecl
	l.sources[canonicalPath] = string(source)
	l.order = append(l.order, canonicalPath)
	return fileDecl, nil
}

func importError(kind diag.Kind, importerPath string, from *decl.ImportDecl, format string, args ...any) *diag.Diagnostic {
	if from == nil {
		return diag.Errorf(kind, "", 0, 0, format, args...)
	}
	pos := from.Pos()
	return diag.Errorf(kind, importerPath, pos.Line, pos.Col, format, args...)
}
