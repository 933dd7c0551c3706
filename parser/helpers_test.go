package parser

import (
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/panyam/jsmlc/decl"
	"github.com/panyam/jsmlc/diag"
)

// astOpts compares ASTs ignoring positions.
var astOpts = cmp.Options{
	cmpopts.IgnoreTypes(decl.NodeInfo{}),
	cmpopts.EquateEmpty(),
}

func parseFragment[T any](t *testing.T, input string, parse func(p *LLParser) (T, error)) (T, error) {
	t.Helper()
	p := NewLLParser(NewLexer(strings.NewReader(input)), "test.jsml")
	return parse(p)
}

func assertNodeEqual(t *testing.T, input string, expected, actual any) {
	t.Helper()
	if diff := cmp.Diff(expected, actual, astOpts); diff != "" {
		t.Errorf("AST mismatch for %q (-want +got):\n%s", input, diff)
	}
}

func assertSyntaxError(t *testing.T, input string, err error, contains string) {
	t.Helper()
	require.Error(t, err, "expected an error for %q", input)
	d, ok := err.(*diag.Diagnostic)
	require.True(t, ok, "expected a diagnostic, got %T", err)
	assert.Equal(t, diag.SyntaxError, d.Kind)
	if contains != "" {
		assert.Contains(t, d.Error(), contains)
	}
}

// --- AST builders ---

func ref(path string) *decl.RefExpr { return decl.NewRef(path) }

func idx(name string, indices ...decl.Expr) *decl.RefExpr {
	return &decl.RefExpr{Parts: []*decl.RefPart{{Name: name, Indices: indices}}}
}

func num(text string) *decl.NumberLiteral {
	e, err := ParseExpression(text)
	if err != nil {
		panic(err)
	}
	return e.(*decl.NumberLiteral)
}

func bin(left decl.Expr, op string, right decl.Expr) *decl.BinaryExpr {
	return decl.NewBinary(left, op, right)
}

func neg(e decl.Expr) *decl.UnaryExpr { return &decl.UnaryExpr{Operator: "-", Right: e} }

func not(e decl.Expr) *decl.UnaryExpr { return &decl.UnaryExpr{Operator: "not", Right: e} }

func call(name string, args ...decl.Expr) *decl.CallExpr {
	return &decl.CallExpr{Func: &decl.Ident{Name: name}, Args: args}
}

func ident(name string) *decl.Ident { return &decl.Ident{Name: name} }

func named(name string, value decl.Expr) *decl.NamedArg {
	return &decl.NamedArg{NameNode: ident(name), Value: value}
}

func str(s string) *decl.StringLiteral { return &decl.StringLiteral{Value: s} }

func typeRef(name string, attrs ...*decl.NamedArg) *decl.TypeRef {
	return &decl.TypeRef{NameNode: ident(name), Attrs: attrs}
}
