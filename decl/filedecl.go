package decl

import (
	"strings"

	gfn "github.com/panyam/goutils/fn"
)

// FileDecl represents the top-level node of a parsed JSML file.
type FileDecl struct {
	NodeInfo
	// Canonical path (or source name) the file was loaded from
	Path         string
	Declarations []TopLevelDecl
}

func (f *FileDecl) String() string {
	return strings.Join(gfn.Map(f.Declarations, func(d TopLevelDecl) string { return d.String() }), "\n")
}

// Imports returns the import declarations in source order.
func (f *FileDecl) Imports() (out []*ImportDecl) {
	for _, d := range f.Declarations {
		if imp, ok := d.(*ImportDecl); ok {
			out = append(out, imp)
		}
	}
	return
}

// Types returns the type declarations in source order.
func (f *FileDecl) Types() (out []*TypeDecl) {
	for _, d := range f.Declarations {
		if t, ok := d.(*TypeDecl); ok {
			out = append(out, t)
		}
	}
	return
}

// Connectors returns the connector declarations in source order.
func (f *FileDecl) Connectors() (out []*ConnectorDecl) {
	for _, d := range f.Declarations {
		if c, ok := d.(*ConnectorDecl); ok {
			out = append(out, c)
		}
	}
	return
}

// Components returns the component declarations in source order.
func (f *FileDecl) Components() (out []*ComponentDecl) {
	for _, d := range f.Declarations {
		if c, ok := d.(*ComponentDecl); ok {
			out = append(out, c)
		}
	}
	return
}

// Component finds a component by name.
func (f *FileDecl) Component(name string) *ComponentDecl {
	for _, c := range f.Components() {
		if c.Name() == name {
			return c
		}
	}
	return nil
}
