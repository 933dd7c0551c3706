// Package config reads jsml.hcl project files.  A project names one or more build targets,
// each compiling a root component from a JSML file with optional parameter overrides:
//
//	namespace   = "JSML"
//	parallelism = 4
//	libraries   = { electrical = "lib/electrical" }
//
//	target "rc" {
//	  file      = "models/rc.jsml"
//	  component = "RC"
//	  format    = "yaml"
//	  output    = "build/rc.yaml"
//	  overrides = {
//	    "resistor.R" = 200
//	    "source.V"   = "2 * 5"
//	  }
//	}
//
// Paths are relative to the directory holding the project file.
package config

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"sort"
	"strings"

	"github.com/hashicorp/hcl/v2"
	"github.com/hashicorp/hcl/v2/gohcl"
	"github.com/hashicorp/hcl/v2/hclparse"
	"github.com/zclconf/go-cty/cty"
	"github.com/zclconf/go-cty/cty/gocty"

	"github.com/panyam/jsmlc/compiler"
	"github.com/panyam/jsmlc/decl"
	"github.com/panyam/jsmlc/ir"
	"github.com/panyam/jsmlc/loader"
	"github.com/panyam/jsmlc/parser"
	"github.com/panyam/jsmlc/viz"
)

// DefaultFile is the project file name looked up by `jsmlc build`.
const DefaultFile = "jsml.hcl"

type Project struct {
	Namespace   string `hcl:"namespace,optional"`
	Parallelism int    `hcl:"parallelism,optional"`
	// Library name to directory, mounted for every target
	Libraries map[string]string `hcl:"libraries,optional"`
	Targets   []*Target         `hcl:"target,block"`

	// Directory of the project file
	Dir string
}

type Target struct {
	Name      string `hcl:"name,label"`
	File      string `hcl:"file"`
	Component string `hcl:"component,optional"`
	Format    string `hcl:"format,optional"`
	Output    string `hcl:"output,optional"`
	Artifacts string `hcl:"artifacts,optional"`
	Diagram   string `hcl:"diagram,optional"`
	// dot or mermaid, used when Diagram is set
	DiagramFormat string         `hcl:"diagram_format,optional"`
	Overrides     hcl.Expression `hcl:"overrides,optional"`
}

// Load parses and validates the project file at path.
func Load(ctx context.Context, path string) (*Project, error) {
	logger := compiler.Logger(ctx)
	logger.Debug("Decoding project file", "path", path)
	file, diags := hclparse.NewParser().ParseHCLFile(path)
	if diags.HasErrors() {
		return nil, fmt.Errorf("failed to parse project file %s: %w", path, diags)
	}
	p, err := decode(file, path)
	if err != nil {
		return nil, err
	}
	p.Dir = filepath.Dir(path)
	logger.Debug("Decoded project file", "path", path, "count", len(p.Targets))
	return p, nil
}

// Parse reads a project from memory.  Dir is left empty, so paths stay as written.
func Parse(src []byte, filename string) (*Project, error) {
	file, diags := hclparse.NewParser().ParseHCL(src, filename)
	if diags.HasErrors() {
		return nil, fmt.Errorf("failed to parse project file %s: %w", filename, diags)
	}
	return decode(file, filename)
}

func decode(file *hcl.File, filename string) (*Project, error) {
	var p Project
	if diags := gohcl.DecodeBody(file.Body, nil, &p); diags.HasErrors() {
		return nil, fmt.Errorf("failed to decode project file %s: %w", filename, diags)
	}
	if err := p.validate(); err != nil {
		return nil, fmt.Errorf("invalid project file %s: %w", filename, err)
	}
	return &p, nil
}

func (p *Project) validate() error {
	if p.Parallelism < 0 {
		return fmt.Errorf("parallelism must not be negative, got %d", p.Parallelism)
	}
	for name, dir := range p.Libraries {
		if name == "" || dir == "" || strings.ContainsAny(name, `/\`) {
			return fmt.Errorf("library %q needs a plain name and a directory", name)
		}
	}
	seen := map[string]bool{}
	for _, t := range p.Targets {
		if seen[t.Name] {
			return fmt.Errorf("target %q is declared twice", t.Name)
		}
		seen[t.Name] = true
		if t.File == "" {
			return fmt.Errorf("target %q has an empty file", t.Name)
		}
		if _, err := ir.ParseFormat(t.Format); err != nil {
			return fmt.Errorf("target %q: %w", t.Name, err)
		}
		if t.Diagram != "" {
			if _, err := viz.NewGenerator(t.diagramFormat()); err != nil {
				return fmt.Errorf("target %q: %w", t.Name, err)
			}
		}
	}
	return nil
}

// Target returns the named target or nil.
func (p *Project) Target(name string) *Target {
	for _, t := range p.Targets {
		if t.Name == name {
			return t
		}
	}
	return nil
}

// Path resolves a path written in the project file.
func (p *Project) Path(rel string) string {
	if rel == "" || filepath.IsAbs(rel) || p.Dir == "" {
		return rel
	}
	return filepath.Join(p.Dir, rel)
}

// LibraryMounts returns the project libraries sorted by name, with directories resolved
// against the project directory.
func (p *Project) LibraryMounts() []loader.Library {
	names := make([]string, 0, len(p.Libraries))
	for name := range p.Libraries {
		names = append(names, name)
	}
	sort.Strings(names)
	out := make([]loader.Library, 0, len(names))
	for _, name := range names {
		out = append(out, loader.Library{Name: name, FS: loader.NewLocalFS(p.Path(p.Libraries[name]))})
	}
	return out
}

// Options builds compiler options for t.
func (p *Project) Options(t *Target) (compiler.Options, error) {
	overrides, err := t.EvalOverrides()
	if err != nil {
		return compiler.Options{}, err
	}
	return compiler.Options{
		Root:        t.Component,
		Namespace:   p.Namespace,
		Overrides:   overrides,
		Parallelism: p.Parallelism,
	}, nil
}

func (t *Target) OutputFormat() ir.Format {
	f, _ := ir.ParseFormat(t.Format)
	return f
}

func (t *Target) diagramFormat() string {
	if t.DiagramFormat == "" {
		return "dot"
	}
	return t.DiagramFormat
}

// DiagramGenerator returns the generator for the target's diagram output.
func (t *Target) DiagramGenerator() (viz.StaticDiagramGenerator, error) {
	return viz.NewGenerator(t.diagramFormat())
}

// EvalOverrides evaluates the overrides attribute into JSML expressions.  Numbers and
// booleans become literals, strings are parsed as JSML expressions.
func (t *Target) EvalOverrides() (map[string]decl.Expr, error) {
	if t.Overrides == nil {
		return nil, nil
	}
	val, diags := t.Overrides.Value(nil)
	if diags.HasErrors() {
		return nil, fmt.Errorf("target %q: failed to evaluate overrides: %w", t.Name, diags)
	}
	if val.IsNull() {
		return nil, nil
	}
	ty := val.Type()
	if !ty.IsObjectType() && !ty.IsMapType() {
		return nil, fmt.Errorf("target %q: overrides must be an object, got %s", t.Name, ty.FriendlyName())
	}

	out := map[string]decl.Expr{}
	for it := val.ElementIterator(); it.Next(); {
		k, v := it.Element()
		path := k.AsString()
		e, err := overrideExpr(v)
		if err != nil {
			return nil, fmt.Errorf("target %q: override %s: %w", t.Name, path, err)
		}
		out[path] = e
	}
	slog.Debug("Evaluated overrides", "component", "config", "target", t.Name, "count", len(out))
	return out, nil
}

func overrideExpr(v cty.Value) (decl.Expr, error) {
	if v.IsNull() || !v.IsKnown() {
		return nil, fmt.Errorf("value is null")
	}
	switch v.Type() {
	case cty.Number:
		var f float64
		if err := gocty.FromCtyValue(v, &f); err != nil {
			return nil, err
		}
		return decl.NewNumber(f), nil
	case cty.Bool:
		var b bool
		if err := gocty.FromCtyValue(v, &b); err != nil {
			return nil, err
		}
		return &decl.BoolLiteral{Value: b}, nil
	case cty.String:
		return parser.ParseExpression(v.AsString())
	}
	return nil, fmt.Errorf("want a number, bool or expression string, got %s", v.Type().FriendlyName())
}

// Select returns every target in declaration order when names is empty, else the named
// targets.
func (p *Project) Select(names ...string) ([]*Target, error) {
	if len(names) == 0 {
		return p.Targets, nil
	}
	var missing []string
	var out []*Target
	for _, n := range names {
		if t := p.Target(n); t != nil {
			out = append(out, t)
		} else {
			missing = append(missing, n)
		}
	}
	if len(missing) > 0 {
		sort.Strings(missing)
		return nil, fmt.Errorf("unknown targets: %v", missing)
	}
	return out, nil
}
