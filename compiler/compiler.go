// Package compiler drives the JSML pipeline: load, resolve, check cycles, expand
// connections, emit the equation system and extract metadata artifacts.  Each stage gates
// the next; resolution errors are gathered for every component before the compile stops.
package compiler

import (
	"context"
	"fmt"
	"runtime"

	"golang.org/x/sync/errgroup"

	"github.com/panyam/jsmlc/decl"
	"github.com/panyam/jsmlc/diag"
	"github.com/panyam/jsmlc/emit"
	"github.com/panyam/jsmlc/expand"
	"github.com/panyam/jsmlc/ir"
	"github.com/panyam/jsmlc/loader"
	"github.com/panyam/jsmlc/metadata"
	"github.com/panyam/jsmlc/resolver"
)

// DefaultNamespace is the metadata key holding tool data.
const DefaultNamespace = "JSML"

type Options struct {
	// Component to compile; defaults to the last non-partial component of the root file
	Root string
	// Metadata namespace for experiments and tests
	Namespace string
	// Parameter overrides by root relative path
	Overrides map[string]decl.Expr
	// Maximum number of components resolved concurrently, 0 for GOMAXPROCS
	Parallelism int
}

// Result is everything a compile produced, including partial results when a later stage
// failed.
type Result struct {
	Files      *loader.LoadResult
	Resolver   *resolver.Resolver
	Components map[*decl.ComponentDecl]*resolver.Component
	Expansions map[*decl.ComponentDecl]*expand.Result
	Root       *decl.ComponentDecl
	System     *ir.EquationSystem
	Artifacts  *metadata.Artifacts
	// Errors and warnings of every stage that ran, sorted by position
	Diagnostics diag.List
}

// Compiler runs the pipeline over files provided by a loader.
type Compiler struct {
	loader *loader.Loader
	opts   Options
}

func New(l *loader.Loader, opts Options) *Compiler {
	if opts.Namespace == "" {
		opts.Namespace = DefaultNamespace
	}
	if opts.Parallelism <= 0 {
		opts.Parallelism = runtime.GOMAXPROCS(0)
	}
	return &Compiler{loader: l, opts: opts}
}

// Check loads, resolves and expands every component of the file graph rooted at path
// without emitting anything.
func (c *Compiler) Check(ctx context.Context, path string) (*Result, error) {
	res := &Result{}
	err := c.check(ctx, path, res)
	return res, c.finish(ctx, res, err)
}

// Compile runs the whole pipeline.  The returned error is a diag.List when compilation
// failed; res is never nil.
func (c *Compiler) Compile(ctx context.Context, path string) (*Result, error) {
	res := &Result{}
	err := c.check(ctx, path, res)
	if err == nil {
		err = c.emit(ctx, res)
	}
	return res, c.finish(ctx, res, err)
}

func (c *Compiler) finish(ctx context.Context, res *Result, err error) error {
	res.Diagnostics.Sort()
	log := Logger(ctx)
	for _, w := range res.Diagnostics.Warnings() {
		log.Debug("Compile warning", "kind", w.Kind, "location", w.Location(), "message", w.Message)
	}
	if err != nil {
		return err
	}
	return res.Diagnostics.Err()
}

func (c *Compiler) check(ctx context.Context, path string, res *Result) error {
	log := Logger(ctx)
	files, err := c.loader.LoadRootFile(path)
	if err != nil {
		res.Diagnostics = append(res.Diagnostics, diag.From(err)...)
		return res.Diagnostics
	}
	res.Files = files
	log.Debug("Loaded files", "stage", "load", "file", path, "count", len(files.Order))

	r := resolver.New(files.AllFiles()...)
	res.Resolver = r
	res.Diagnostics = append(res.Diagnostics, r.DeclareGlobals()...)

	comps, diags, err := c.resolveAll(ctx, r)
	if err != nil {
		return err
	}
	res.Components = comps
	res.Diagnostics = append(res.Diagnostics, diags...)
	res.Diagnostics = append(res.Diagnostics, r.CheckCycles()...)
	if res.Diagnostics.HasErrors() {
		return res.Diagnostics
	}

	res.Expansions = make(map[*decl.ComponentDecl]*expand.Result, len(comps))
	for _, cd := range r.Components() {
		exp := expand.Expand(comps[cd])
		res.Expansions[cd] = exp
		res.Diagnostics = append(res.Diagnostics, exp.Diagnostics...)
	}
	log.Debug("Expanded components", "stage", "expand", "count", len(res.Expansions))
	if res.Diagnostics.HasErrors() {
		return res.Diagnostics
	}
	return ctx.Err()
}

// resolveAll resolves components concurrently.  Each worker writes only its own slot.
func (c *Compiler) resolveAll(ctx context.Context, r *resolver.Resolver) (map[*decl.ComponentDecl]*resolver.Component, diag.List, error) {
	decls := r.Components()
	comps := make([]*resolver.Component, len(decls))
	diags := make([]diag.List, len(decls))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(c.opts.Parallelism)
	for i, cd := range decls {
		i, cd := i, cd
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			comps[i], diags[i] = r.ResolveComponent(cd)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, nil, err
	}

	out := make(map[*decl.ComponentDecl]*resolver.Component, len(decls))
	var all diag.List
	for i, cd := range decls {
		out[cd] = comps[i]
		all = append(all, diags[i]...)
	}
	Logger(ctx).Debug("Resolved components", "stage", "resolve", "count", len(decls),
		"parallelism", c.opts.Parallelism, "errors", len(all.Errors()))
	return out, all, nil
}

func (c *Compiler) emit(ctx context.Context, res *Result) error {
	root, err := c.root(res)
	if err != nil {
		res.Diagnostics = append(res.Diagnostics, err)
		return res.Diagnostics
	}
	res.Root = root

	out, diags := emit.New(res.Resolver, res.Components, res.Expansions).Emit(root, c.opts.Overrides)
	res.Diagnostics = append(res.Diagnostics, diags...)
	if out != nil {
		res.System = out.System
	}
	if diags.HasErrors() {
		return res.Diagnostics
	}

	x := &metadata.Extractor{Namespace: c.opts.Namespace}
	arts, diags := x.Extract(root.Name(), out.Root, out.Annotations)
	res.Artifacts = arts
	res.Diagnostics = append(res.Diagnostics, diags...)
	res.Diagnostics = append(res.Diagnostics, validatePaths(out, arts)...)
	if res.Diagnostics.HasErrors() {
		return res.Diagnostics
	}

	stats := out.System.Stats()
	Logger(ctx).Debug("Emitted", "stage", "emit", "component", root.Name(), "variables", stats.Variables,
		"count", stats.Equations, "experiments", len(arts.Experiments), "tests", len(arts.Tests))
	return nil
}

// root picks the component to compile.
func (c *Compiler) root(res *Result) (*decl.ComponentDecl, *diag.Diagnostic) {
	file := res.Files.RootFile
	if c.opts.Root != "" {
		if cd := res.Resolver.Component(c.opts.Root); cd != nil {
			if cd.Partial {
				return nil, diag.Errorf(diag.InterfaceMismatchError, res.Resolver.FileOf(cd.Name()), cd.Pos().Line, cd.Pos().Col,
					"%s is partial and cannot be compiled", cd.Name())
			}
			return cd, nil
		}
		return nil, diag.Errorf(diag.UnresolvedReferenceError, file.Path, 0, 0, "no component named %s", c.opts.Root)
	}
	comps := file.Components()
	for i := len(comps) - 1; i >= 0; i-- {
		if !comps[i].Partial {
			return comps[i], nil
		}
	}
	return nil, diag.Errorf(diag.UnresolvedReferenceError, file.Path, 0, 0, "%s declares no component to compile", file.Path)
}

// validatePaths checks that experiments and tests only name paths of the equation system.
func validatePaths(out *emit.Output, arts *metadata.Artifacts) (diags diag.List) {
	if arts == nil {
		return nil
	}
	for _, p := range arts.Paths() {
		if out.System.HasPath(p) {
			continue
		}
		d := &diag.Diagnostic{
			Kind:    diag.UnresolvedReferenceError,
			Message: fmt.Sprintf("metadata names %s, which is not a variable or parameter of %s", p, out.System.Component),
			Path:    out.System.Component,
		}
		if out.Root != nil {
			d.File, d.Line, d.Col = out.Root.File, out.Root.Line, out.Root.Col
		}
		diags = append(diags, d)
	}
	return
}
