package commands

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/panyam/jsmlc/compiler"
	"github.com/panyam/jsmlc/decl"
	"github.com/panyam/jsmlc/diag"
	"github.com/panyam/jsmlc/ir"
	"github.com/panyam/jsmlc/loader"
	"github.com/panyam/jsmlc/parser"
)

// errFailed is returned after diagnostics have already been printed.
var errFailed = errors.New("compilation failed")

// parseOverrides reads `path=expr` pairs.
func parseOverrides(sets []string) (map[string]decl.Expr, error) {
	if len(sets) == 0 {
		return nil, nil
	}
	out := make(map[string]decl.Expr, len(sets))
	for _, s := range sets {
		path, text, err := splitOverride(s)
		if err != nil {
			return nil, err
		}
		e, err := parser.ParseExpression(text)
		if err != nil {
			return nil, fmt.Errorf("invalid --set %s: %w", path, err)
		}
		out[path] = e
	}
	return out, nil
}

func splitOverride(s string) (path, expr string, err error) {
	path, expr, ok := strings.Cut(s, "=")
	path = strings.TrimSpace(path)
	if !ok || path == "" {
		return "", "", fmt.Errorf("invalid --set %q, want path=expression", s)
	}
	return path, expr, nil
}

func (o *rootOptions) compilerOptions() (compiler.Options, error) {
	overrides, err := parseOverrides(o.overrides)
	if err != nil {
		return compiler.Options{}, err
	}
	return compiler.Options{
		Root:        o.component,
		Namespace:   o.namespace,
		Overrides:   overrides,
		Parallelism: o.parallelism,
	}, nil
}

func (o *rootOptions) colored() bool {
	return !o.noColor && !color.NoColor
}

func commandContext(cmd *cobra.Command) context.Context {
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	return compiler.WithLogger(ctx, slog.Default().With("command", cmd.Name()))
}

// report prints diagnostics to stderr.
func (o *rootOptions) report(cmd *cobra.Command, diags diag.List) {
	if len(diags) == 0 {
		return
	}
	fmt.Fprintln(cmd.ErrOrStderr(), diag.FormatAll(diags, o.colored()))
}

// libraries returns the --lib mounts after extra, so the command line wins over a project
// file for a library of the same name.
func (o *rootOptions) libraries(extra ...loader.Library) ([]loader.Library, error) {
	libs, err := loader.ParseLibraries(o.libs...)
	if err != nil {
		return nil, err
	}
	return append(extra, libs...), nil
}

// run compiles (or only checks) path with opts, printing diagnostics.  A failed compile
// returns errFailed.
func (o *rootOptions) run(cmd *cobra.Command, path string, opts compiler.Options, emit bool, extra ...loader.Library) (*compiler.Result, error) {
	libs, err := o.libraries(extra...)
	if err != nil {
		return nil, err
	}
	c := compiler.New(loader.NewFileLoader(libs...), opts)
	var res *compiler.Result
	if emit {
		res, err = c.Compile(commandContext(cmd), path)
	} else {
		res, err = c.Check(commandContext(cmd), path)
	}
	o.report(cmd, res.Diagnostics)
	if err != nil {
		var list diag.List
		if errors.As(err, &list) {
			return res, errFailed
		}
		return res, err
	}
	return res, nil
}

func (o *rootOptions) compile(cmd *cobra.Command, path string) (*compiler.Result, error) {
	opts, err := o.compilerOptions()
	if err != nil {
		return nil, err
	}
	return o.run(cmd, path, opts, true)
}

// writeOutput encodes through write into path, or stdout when path is empty or "-".
func writeOutput(cmd *cobra.Command, path string, write func(io.Writer) error) error {
	if path == "" || path == "-" {
		return write(cmd.OutOrStdout())
	}
	var buf bytes.Buffer
	if err := write(&buf); err != nil {
		return err
	}
	if err := loader.NewLocalFS("").WriteFile(path, buf.Bytes()); err != nil {
		return fmt.Errorf("failed to write %s: %w", path, err)
	}
	slog.Info("Wrote output", "file", path, "bytes", buf.Len())
	return nil
}

func encodeTo(cmd *cobra.Command, path, format string, v any) error {
	f, err := ir.ParseFormat(format)
	if err != nil {
		return err
	}
	return writeOutput(cmd, path, func(w io.Writer) error { return ir.Encode(w, f, v) })
}
