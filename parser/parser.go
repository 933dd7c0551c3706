// Package parser turns JSML source text into decl ASTs.
package parser

import (
	"io"
	"strings"

	"github.com/panyam/jsmlc/decl"
)

// Parse reads a whole JSML file.  Errors are *diag.Diagnostic values of kind SyntaxError.
func Parse(r io.Reader, sourceName string) (*decl.FileDecl, error) {
	p := NewLLParser(NewLexer(r), sourceName)
	file := &decl.FileDecl{Path: sourceName}
	if err := p.Parse(file); err != nil {
		return nil, err
	}
	return file, nil
}

func ParseString(src, sourceName string) (*decl.FileDecl, error) {
	return Parse(strings.NewReader(src), sourceName)
}

// ParseExpression parses a standalone expression, eg a parameter override given on the
// command line.
func ParseExpression(src string) (decl.Expr, error) {
	p := NewLLParser(NewLexer(strings.NewReader(src)), "")
	e, err := p.ParseExpression()
	if err != nil {
		return nil, err
	}
	if p.PeekToken() == NEWLINE {
		p.Advance()
	}
	if _, err := p.Expect(EOF); err != nil {
		return nil, err
	}
	return e, nil
}
