package parser

import (
	"fmt"
	"slices"
	"strconv"
	"strings"

	gfn "github.com/panyam/goutils/fn"
	"github.com/panyam/jsmlc/decl"
	"github.com/panyam/jsmlc/diag"
	"github.com/panyam/jsmlc/metadata"
)

// LLParser is a recursive descent parser over the Lexer's token stream with a single
// token of lookahead.  The first error aborts the parse.
type LLParser struct {
	lexer   *Lexer
	source  string
	peeked  *Token
	lastEnd decl.Location
}

func NewLLParser(lexer *Lexer, source string) *LLParser {
	return &LLParser{lexer: lexer, source: source}
}

// Parse reads top level declarations until EOF.
func (p *LLParser) Parse(file *decl.FileDecl) error {
	file.StartPos = p.Peek().Start
	err := p.parseBlock(nil, true, func(doc string, docTok *Token) error {
		d, err := p.ParseTopLevel(doc, docTok)
		if err != nil {
			return err
		}
		file.Declarations = append(file.Declarations, d)
		return nil
	})
	file.StopPos = p.lastEnd
	return err
}

// --- Token helpers ---

func (p *LLParser) Peek() Token {
	if p.peeked == nil {
		tok := p.lexer.Lex()
		p.peeked = &tok
	}
	return *p.peeked
}

func (p *LLParser) PeekToken() int {
	return p.Peek().Kind
}

func (p *LLParser) Advance() Token {
	tok := p.Peek()
	p.peeked = nil
	p.lastEnd = tok.End
	return tok
}

// Expect checks that the current token is one of the expected kinds.
// It does NOT advance.
func (p *LLParser) Expect(kinds ...int) (Token, error) {
	tok := p.Peek()
	if slices.Contains(kinds, tok.Kind) {
		return tok, nil
	}
	return tok, p.errorExpecting(kinds, "")
}

// AdvanceIf expects one of the given tokens and advances if found.
func (p *LLParser) AdvanceIf(kinds ...int) (Token, error) {
	if _, err := p.Expect(kinds...); err != nil {
		return Token{}, err
	}
	return p.Advance(), nil
}

// Errorf reports a syntax error at the current token.
func (p *LLParser) Errorf(format string, args ...any) error {
	return p.ErrorAt(p.Peek(), format, args...)
}

func (p *LLParser) ErrorAt(tok Token, format string, args ...any) error {
	return diag.Errorf(diag.SyntaxError, p.source, tok.Start.Line, tok.Start.Col, format, args...)
}

func (p *LLParser) errorExpecting(kinds []int, context string) error {
	tok := p.Peek()
	var d *diag.Diagnostic
	if tok.Kind == ILLEGAL {
		d = p.ErrorAt(tok, "%s", tok.Text).(*diag.Diagnostic)
	} else {
		found := TokenString(tok.Kind)
		if tok.Text != "" && tok.Kind != NEWLINE {
			found = fmt.Sprintf("%s (%s)", found, tok.Text)
		}
		msg := "unexpected " + found
		if context != "" {
			msg += " " + context
		}
		d = p.ErrorAt(tok, "%s", msg).(*diag.Diagnostic)
	}
	d.Expected = gfn.Map(kinds, TokenString)
	return d
}

// --- Blocks and descriptions ---

// parseBlock parses newline separated items until one of the stop tokens (not consumed).
// A string on a line of its own is the description of the next item.
func (p *LLParser) parseBlock(stops []int, allowEOF bool, item func(doc string, docTok *Token) error) error {
	var pending *Token
	for {
		tok := p.Peek()
		switch {
		case tok.Kind == NEWLINE:
			p.Advance()
			continue
		case tok.Kind == STRING:
			if pending != nil {
				return p.ErrorAt(tok, "only one description may precede a declaration")
			}
			desc := p.Advance()
			pending = &desc
			if p.PeekToken() != EOF {
				if _, err := p.AdvanceIf(NEWLINE); err != nil {
					return err
				}
			}
			continue
		case slices.Contains(stops, tok.Kind) || tok.Kind == EOF:
			if pending != nil {
				return p.ErrorAt(*pending, "description is not followed by a declaration")
			}
			if tok.Kind == EOF && !allowEOF {
				return p.errorExpecting(stops, "before end of block")
			}
			return nil
		}

		doc := ""
		if pending != nil {
			doc = pending.Text
		}
		if err := item(doc, pending); err != nil {
			return err
		}
		pending = nil
		if allowEOF && p.PeekToken() == EOF {
			continue
		}
		if _, err := p.AdvanceIf(NEWLINE); err != nil {
			return err
		}
	}
}

// --- Declarations ---

func (p *LLParser) ParseTopLevel(doc string, docTok *Token) (decl.TopLevelDecl, error) {
	switch p.PeekToken() {
	case IMPORT:
		if docTok != nil {
			return nil, p.ErrorAt(*docTok, "an import cannot carry a description")
		}
		return p.ParseImportDecl()
	case TYPE:
		return p.ParseTypeDecl(doc)
	case CONNECTOR:
		return p.ParseConnectorDecl(doc)
	case COMPONENT, PARTIAL:
		return p.ParseComponentDecl(doc)
	}
	return nil, p.errorExpecting([]int{IMPORT, TYPE, CONNECTOR, COMPONENT, PARTIAL}, "at top level")
}

// ParseIdentifier reads a single IDENT.
func (p *LLParser) ParseIdentifier() (*decl.Ident, error) {
	tok, err := p.AdvanceIf(IDENT)
	if err != nil {
		return nil, err
	}
	return &decl.Ident{NodeInfo: tok.NodeInfo(), Name: tok.Text}, nil
}

// ImportDecl := "import" STRING
func (p *LLParser) ParseImportDecl() (*decl.ImportDecl, error) {
	start, err := p.AdvanceIf(IMPORT)
	if err != nil {
		return nil, err
	}
	tok, err := p.AdvanceIf(STRING)
	if err != nil {
		return nil, err
	}
	return &decl.ImportDecl{
		NodeInfo: decl.NodeInfo{StartPos: start.Start, StopPos: tok.End},
		Path:     &decl.StringLiteral{ExprBase: decl.ExprBase{NodeInfo: tok.NodeInfo()}, Value: tok.Text},
	}, nil
}

// TypeDecl := "type" IDENT "=" IDENT [ "(" NamedArgs ")" ]
func (p *LLParser) ParseTypeDecl(doc string) (out *decl.TypeDecl, err error) {
	start, err := p.AdvanceIf(TYPE)
	if err != nil {
		return nil, err
	}
	out = &decl.TypeDecl{Description: doc}
	if out.NameNode, err = p.ParseIdentifier(); err != nil {
		return nil, err
	}
	if _, err = p.AdvanceIf(ASSIGN); err != nil {
		return nil, err
	}
	if out.Base, err = p.ParseIdentifier(); err != nil {
		return nil, err
	}
	if p.PeekToken() == LPAREN {
		if out.Attrs, err = p.parseParenNamedArgs(); err != nil {
			return nil, err
		}
	}
	out.NodeInfo = decl.NodeInfo{StartPos: start.Start, StopPos: p.lastEnd}
	return out, nil
}

// ConnectorDecl := "connector" IDENT NL { [Description] Role IDENT "::" TypeRef [Object] NL }
//
//	[ "metadata" Object NL ] "end"
func (p *LLParser) ParseConnectorDecl(doc string) (out *decl.ConnectorDecl, err error) {
	start, err := p.AdvanceIf(CONNECTOR)
	if err != nil {
		return nil, err
	}
	out = &decl.ConnectorDecl{Description: doc}
	if out.NameNode, err = p.ParseIdentifier(); err != nil {
		return nil, err
	}
	if _, err = p.AdvanceIf(NEWLINE); err != nil {
		return nil, err
	}
	err = p.parseBlock([]int{METADATA, END}, false, func(doc string, _ *Token) error {
		field, err := p.ParseFieldDecl(doc)
		if err == nil {
			out.Fields = append(out.Fields, field)
		}
		return err
	})
	if err != nil {
		return nil, err
	}
	if out.Metadata, err = p.parseMetadataSection(); err != nil {
		return nil, err
	}
	if _, err = p.AdvanceIf(END); err != nil {
		return nil, err
	}
	out.NodeInfo = decl.NodeInfo{StartPos: start.Start, StopPos: p.lastEnd}
	return out, nil
}

var roleTokens = map[int]decl.Role{
	POTENTIAL: decl.RolePotential,
	FLOW:      decl.RoleFlow,
	STREAM:    decl.RoleStream,
	SINGLETON: decl.RoleSingleton,
}

func (p *LLParser) ParseFieldDecl(doc string) (out *decl.FieldDecl, err error) {
	tok, err := p.AdvanceIf(POTENTIAL, FLOW, STREAM, SINGLETON)
	if err != nil {
		return nil, err
	}
	out = &decl.FieldDecl{Description: doc, Role: roleTokens[tok.Kind]}
	if out.NameNode, err = p.ParseIdentifier(); err != nil {
		return nil, err
	}
	if _, err = p.AdvanceIf(DCOLON); err != nil {
		return nil, err
	}
	if out.Type, err = p.ParseTypeRef(); err != nil {
		return nil, err
	}
	if out.Metadata, err = p.parseOptionalObject(); err != nil {
		return nil, err
	}
	out.NodeInfo = decl.NodeInfo{StartPos: tok.Start, StopPos: p.lastEnd}
	return out, nil
}

// ComponentDecl := ["partial"] "component" IDENT NL { [Description] Member NL }
//
//	[ "relations" NL { [Description] Relation NL } ]
//	[ "metadata" Object NL ] "end"
func (p *LLParser) ParseComponentDecl(doc string) (out *decl.ComponentDecl, err error) {
	out = &decl.ComponentDecl{Description: doc}
	start := p.Peek()
	if start.Kind == PARTIAL {
		p.Advance()
		out.Partial = true
	}
	if _, err = p.AdvanceIf(COMPONENT); err != nil {
		return nil, err
	}
	if out.NameNode, err = p.ParseIdentifier(); err != nil {
		return nil, err
	}
	if _, err = p.AdvanceIf(NEWLINE); err != nil {
		return nil, err
	}
	err = p.parseBlock([]int{RELATIONS, METADATA, END}, false, func(doc string, _ *Token) error {
		m, err := p.ParseMember(doc)
		if err == nil {
			out.Members = append(out.Members, m)
		}
		return err
	})
	if err != nil {
		return nil, err
	}
	if p.PeekToken() == RELATIONS {
		p.Advance()
		if _, err = p.AdvanceIf(NEWLINE); err != nil {
			return nil, err
		}
		err = p.parseBlock([]int{METADATA, END}, false, func(doc string, _ *Token) error {
			r, err := p.ParseRelation(doc)
			if err == nil {
				out.Relations = append(out.Relations, r)
			}
			return err
		})
		if err != nil {
			return nil, err
		}
	}
	if out.Metadata, err = p.parseMetadataSection(); err != nil {
		return nil, err
	}
	if _, err = p.AdvanceIf(END); err != nil {
		return nil, err
	}
	out.NodeInfo = decl.NodeInfo{StartPos: start.Start, StopPos: p.lastEnd}
	return out, nil
}

// parseMetadataSection parses an optional `metadata {...}` line.
func (p *LLParser) parseMetadataSection() (*metadata.Value, error) {
	if p.PeekToken() != METADATA {
		return nil, nil
	}
	p.Advance()
	out, err := p.ParseObject()
	if err != nil {
		return nil, err
	}
	if _, err = p.AdvanceIf(NEWLINE); err != nil {
		return nil, err
	}
	// only blank lines may follow before `end`
	for p.PeekToken() == NEWLINE {
		p.Advance()
	}
	return out, nil
}

// ParseMember parses one line of a component body.
//
//	Member := "parameter" IDENT "::" TypeRef [ "=" Expr ] [Object]
//	        | "variable"  IDENT "::" TypeRef [Object]
//	        | IDENT [ "::" IDENT ] "=" IDENT "(" [ NamedArgs ] ")" [Object]
//	        | IDENT "::" IDENT [Object]
func (p *LLParser) ParseMember(doc string) (out decl.Member, err error) {
	switch p.PeekToken() {
	case PARAMETER:
		return p.ParseParamDecl(doc)
	case VARIABLE:
		return p.ParseVarDecl(doc)
	case IDENT:
		return p.ParseInstanceDecl(doc)
	}
	return nil, p.errorExpecting([]int{PARAMETER, VARIABLE, IDENT, RELATIONS, METADATA, END}, "in component body")
}

func (p *LLParser) ParseParamDecl(doc string) (out *decl.ParamDecl, err error) {
	start, err := p.AdvanceIf(PARAMETER)
	if err != nil {
		return nil, err
	}
	out = &decl.ParamDecl{Description: doc}
	if out.NameNode, err = p.ParseIdentifier(); err != nil {
		return nil, err
	}
	if _, err = p.AdvanceIf(DCOLON); err != nil {
		return nil, err
	}
	if out.Type, err = p.ParseTypeRef(); err != nil {
		return nil, err
	}
	if p.PeekToken() == ASSIGN {
		p.Advance()
		if out.Default, err = p.ParseExpression(); err != nil {
			return nil, err
		}
	}
	if out.Metadata, err = p.parseOptionalObject(); err != nil {
		return nil, err
	}
	out.NodeInfo = decl.NodeInfo{StartPos: start.Start, StopPos: p.lastEnd}
	return out, nil
}

func (p *LLParser) ParseVarDecl(doc string) (out *decl.VarDecl, err error) {
	start, err := p.AdvanceIf(VARIABLE)
	if err != nil {
		return nil, err
	}
	out = &decl.VarDecl{Description: doc}
	if out.NameNode, err = p.ParseIdentifier(); err != nil {
		return nil, err
	}
	if _, err = p.AdvanceIf(DCOLON); err != nil {
		return nil, err
	}
	if out.Type, err = p.ParseTypeRef(); err != nil {
		return nil, err
	}
	if out.Metadata, err = p.parseOptionalObject(); err != nil {
		return nil, err
	}
	out.NodeInfo = decl.NodeInfo{StartPos: start.Start, StopPos: p.lastEnd}
	return out, nil
}

func (p *LLParser) ParseInstanceDecl(doc string) (out *decl.InstanceDecl, err error) {
	out = &decl.InstanceDecl{Description: doc}
	if out.NameNode, err = p.ParseIdentifier(); err != nil {
		return nil, err
	}
	if p.PeekToken() == DCOLON {
		p.Advance()
		if out.Interface, err = p.ParseIdentifier(); err != nil {
			return nil, err
		}
	}
	if out.Interface == nil || p.PeekToken() == ASSIGN {
		if _, err = p.AdvanceIf(ASSIGN); err != nil {
			return nil, err
		}
		if out.Constructor, err = p.ParseConstructor(); err != nil {
			return nil, err
		}
	}
	if out.Metadata, err = p.parseOptionalObject(); err != nil {
		return nil, err
	}
	out.NodeInfo = decl.NodeInfo{StartPos: out.NameNode.Pos(), StopPos: p.lastEnd}
	return out, nil
}

// ParseConstructor parses `Name(k=v, ...)`, keyword arguments only.
func (p *LLParser) ParseConstructor() (*decl.CallExpr, error) {
	name, err := p.ParseIdentifier()
	if err != nil {
		return nil, err
	}
	if _, err := p.Expect(LPAREN); err != nil {
		return nil, err
	}
	args, err := p.parseParenNamedArgs()
	if err != nil {
		return nil, err
	}
	return &decl.CallExpr{
		ExprBase: decl.ExprBase{NodeInfo: decl.NodeInfo{StartPos: name.Pos(), StopPos: p.lastEnd}},
		Func:     name,
		Named:    args,
	}, nil
}

// TypeRef := IDENT [ "(" NamedArgs ")" ] [ "[" Expr { "," Expr } "]" ]
func (p *LLParser) ParseTypeRef() (out *decl.TypeRef, err error) {
	out = &decl.TypeRef{}
	if out.NameNode, err = p.ParseIdentifier(); err != nil {
		return nil, err
	}
	if p.PeekToken() == LPAREN {
		if out.Attrs, err = p.parseParenNamedArgs(); err != nil {
			return nil, err
		}
	}
	if p.PeekToken() == LBRACK {
		if out.Dims, err = p.parseExprList(LBRACK, RBRACK); err != nil {
			return nil, err
		}
		if len(out.Dims) == 0 {
			return nil, p.ErrorAt(Token{Start: p.lastEnd}, "array type needs at least one dimension")
		}
	}
	out.NodeInfo = decl.NodeInfo{StartPos: out.NameNode.Pos(), StopPos: p.lastEnd}
	return out, nil
}

// parseParenNamedArgs parses `( [ IDENT "=" Expr { "," IDENT "=" Expr } ] )`.
func (p *LLParser) parseParenNamedArgs() (out []*decl.NamedArg, err error) {
	if _, err = p.AdvanceIf(LPAREN); err != nil {
		return nil, err
	}
	for p.PeekToken() != RPAREN {
		if len(out) > 0 {
			if _, err = p.AdvanceIf(COMMA); err != nil {
				return nil, err
			}
		}
		name, err := p.ParseIdentifier()
		if err != nil {
			return nil, err
		}
		if _, err = p.AdvanceIf(ASSIGN); err != nil {
			return nil, err
		}
		value, err := p.ParseExpression()
		if err != nil {
			return nil, err
		}
		out = append(out, &decl.NamedArg{NodeInfo: decl.NodeInfo{StartPos: name.Pos(), StopPos: value.End()}, NameNode: name, Value: value})
		if p.PeekToken() != RPAREN && p.PeekToken() != COMMA {
			_, err = p.Expect(COMMA, RPAREN)
			return nil, err
		}
	}
	p.Advance()
	return out, nil
}

// --- Relations ---

// Relation := [ "initial" ] Expr "=" Expr [Object]
//
//	| "connect" "(" Ref { "," Ref } ")" [Object]
func (p *LLParser) ParseRelation(doc string) (decl.Relation, error) {
	if p.PeekToken() == CONNECT {
		return p.ParseConnectStmt(doc)
	}
	return p.ParseEquation(doc)
}

func (p *LLParser) ParseEquation(doc string) (out *decl.EquationStmt, err error) {
	out = &decl.EquationStmt{Description: doc}
	start := p.Peek()
	if start.Kind == INITIAL {
		p.Advance()
		out.Initial = true
	}
	if out.Left, err = p.ParseExpression(); err != nil {
		return nil, err
	}
	if _, err = p.AdvanceIf(ASSIGN); err != nil {
		return nil, err
	}
	if out.Right, err = p.ParseExpression(); err != nil {
		return nil, err
	}
	if out.Metadata, err = p.parseOptionalObject(); err != nil {
		return nil, err
	}
	out.NodeInfo = decl.NodeInfo{StartPos: start.Start, StopPos: p.lastEnd}
	return out, nil
}

func (p *LLParser) ParseConnectStmt(doc string) (out *decl.ConnectStmt, err error) {
	start, err := p.AdvanceIf(CONNECT)
	if err != nil {
		return nil, err
	}
	out = &decl.ConnectStmt{Description: doc}
	if _, err = p.AdvanceIf(LPAREN); err != nil {
		return nil, err
	}
	for {
		ref, err := p.ParseRef()
		if err != nil {
			return nil, err
		}
		out.Endpoints = append(out.Endpoints, ref)
		tok, err := p.AdvanceIf(COMMA, RPAREN)
		if err != nil {
			return nil, err
		}
		if tok.Kind == RPAREN {
			break
		}
	}
	if out.Metadata, err = p.parseOptionalObject(); err != nil {
		return nil, err
	}
	out.NodeInfo = decl.NodeInfo{StartPos: start.Start, StopPos: p.lastEnd}
	return out, nil
}

// --- Expressions ---

// ParseExpression is the entry point for parsing any expression.  Ternary is the lowest
// precedence level.
func (p *LLParser) ParseExpression() (decl.Expr, error) {
	return p.ParseTernary()
}

// Ternary := Or [ "?" Ternary ":" Ternary ]
func (p *LLParser) ParseTernary() (decl.Expr, error) {
	cond, err := p.ParseOr()
	if err != nil || p.PeekToken() != QUESTION {
		return cond, err
	}
	p.Advance()
	then, err := p.ParseTernary()
	if err != nil {
		return nil, err
	}
	if _, err = p.AdvanceIf(COLON); err != nil {
		return nil, err
	}
	els, err := p.ParseTernary()
	if err != nil {
		return nil, err
	}
	return &decl.TernaryExpr{
		ExprBase: decl.ExprBase{NodeInfo: decl.NodeInfo{StartPos: cond.Pos(), StopPos: els.End()}},
		Cond:     cond,
		Then:     then,
		Else:     els,
	}, nil
}

func (p *LLParser) ParseOr() (decl.Expr, error) {
	return p.parseLogical(OR, p.ParseAnd)
}

func (p *LLParser) ParseAnd() (decl.Expr, error) {
	return p.parseLogical(AND, p.ParseNot)
}

// parseLogical parses a left associative chain of one keyword operator.
func (p *LLParser) parseLogical(op int, operand func() (decl.Expr, error)) (decl.Expr, error) {
	left, err := operand()
	if err != nil {
		return nil, err
	}
	for p.PeekToken() == op {
		p.Advance()
		right, err := operand()
		if err != nil {
			return nil, err
		}
		left = &decl.BinaryExpr{
			ExprBase: decl.ExprBase{NodeInfo: decl.NodeInfo{StartPos: left.Pos(), StopPos: right.End()}},
			Left:     left,
			Operator: TokenString(op),
			Right:    right,
		}
	}
	return left, nil
}

// Not := "not" Not | Relational
func (p *LLParser) ParseNot() (decl.Expr, error) {
	if p.PeekToken() != NOT {
		return p.ParseRelational()
	}
	tok := p.Advance()
	operand, err := p.ParseNot()
	if err != nil {
		return nil, err
	}
	return &decl.UnaryExpr{
		ExprBase: decl.ExprBase{NodeInfo: decl.NodeInfo{StartPos: tok.Start, StopPos: operand.End()}},
		Operator: "not",
		Right:    operand,
	}, nil
}

func (p *LLParser) peekOperator(prec int) (string, bool) {
	tok := p.Peek()
	if tok.Kind == OPERATOR && decl.BinaryPrecedence(tok.Text) == prec {
		return tok.Text, true
	}
	return "", false
}

// Relational := Arith [ RELOP Arith ], comparisons do not chain.
func (p *LLParser) ParseRelational() (decl.Expr, error) {
	left, err := p.ParseArith()
	if err != nil {
		return nil, err
	}
	op, ok := p.peekOperator(decl.PrecRelational)
	if !ok {
		return left, nil
	}
	p.Advance()
	right, err := p.ParseArith()
	if err != nil {
		return nil, err
	}
	if _, again := p.peekOperator(decl.PrecRelational); again {
		return nil, p.Errorf("comparison operators cannot be chained, use parentheses")
	}
	return &decl.BinaryExpr{
		ExprBase: decl.ExprBase{NodeInfo: decl.NodeInfo{StartPos: left.Pos(), StopPos: right.End()}},
		Left:     left,
		Operator: op,
		Right:    right,
	}, nil
}

// Arith := Unary { (ADDOP | MULOP) Unary }
// Collected flat and then unchained by precedence.
func (p *LLParser) ParseArith() (decl.Expr, error) {
	first, err := p.ParseUnary()
	if err != nil {
		return nil, err
	}
	chain := &ChainedExpr{Children: []decl.Expr{first}}
	for {
		tok := p.Peek()
		if tok.Kind != OPERATOR {
			break
		}
		prec := decl.BinaryPrecedence(tok.Text)
		if prec != decl.PrecAdditive && prec != decl.PrecMultiplicative {
			break
		}
		p.Advance()
		next, err := p.ParseUnary()
		if err != nil {
			return nil, err
		}
		chain.Children = append(chain.Children, next)
		chain.Operators = append(chain.Operators, tok.Text)
	}
	if len(chain.Operators) == 0 {
		return first, nil
	}
	out := chain.Unchain(arithPrecedencer{})
	if out == nil {
		return nil, p.ErrorAt(Token{Start: first.Pos()}, "malformed expression %s", chain)
	}
	return out, nil
}

// Unary := ("-" | "+") Unary | Power
func (p *LLParser) ParseUnary() (decl.Expr, error) {
	tok := p.Peek()
	if tok.Kind == OPERATOR && (tok.Text == "-" || tok.Text == "+") {
		p.Advance()
		operand, err := p.ParseUnary()
		if err != nil {
			return nil, err
		}
		return &decl.UnaryExpr{
			ExprBase: decl.ExprBase{NodeInfo: decl.NodeInfo{StartPos: tok.Start, StopPos: operand.End()}},
			Operator: tok.Text,
			Right:    operand,
		}, nil
	}
	return p.ParsePower()
}

// Power := Primary [ ("^" | ".^") Unary ], right associative.
func (p *LLParser) ParsePower() (decl.Expr, error) {
	base, err := p.ParsePrimary()
	if err != nil {
		return nil, err
	}
	op, ok := p.peekOperator(decl.PrecPower)
	if !ok {
		return base, nil
	}
	p.Advance()
	exp, err := p.ParseUnary()
	if err != nil {
		return nil, err
	}
	return &decl.BinaryExpr{
		ExprBase: decl.ExprBase{NodeInfo: decl.NodeInfo{StartPos: base.Pos(), StopPos: exp.End()}},
		Left:     base,
		Operator: op,
		Right:    exp,
	}, nil
}

// Primary := NUMBER | STRING | "true" | "false" | "(" Expr ")" | "[" Exprs "]" | Call | Ref
func (p *LLParser) ParsePrimary() (decl.Expr, error) {
	tok := p.Peek()
	switch tok.Kind {
	case NUMBER:
		p.Advance()
		return p.newNumberLiteral(tok)
	case STRING:
		p.Advance()
		return &decl.StringLiteral{ExprBase: decl.ExprBase{NodeInfo: tok.NodeInfo()}, Value: tok.Text}, nil
	case TRUE, FALSE:
		p.Advance()
		return &decl.BoolLiteral{ExprBase: decl.ExprBase{NodeInfo: tok.NodeInfo()}, Value: tok.Kind == TRUE}, nil
	case LPAREN:
		p.Advance()
		inner, err := p.ParseExpression()
		if err != nil {
			return nil, err
		}
		if _, err = p.AdvanceIf(RPAREN); err != nil {
			return nil, err
		}
		return inner, nil
	case LBRACK:
		elems, err := p.parseExprList(LBRACK, RBRACK)
		if err != nil {
			return nil, err
		}
		return &decl.ArrayExpr{ExprBase: decl.ExprBase{NodeInfo: decl.NodeInfo{StartPos: tok.Start, StopPos: p.lastEnd}}, Elements: elems}, nil
	case IDENT:
		ident, _ := p.ParseIdentifier()
		if p.PeekToken() == LPAREN {
			return p.parseCall(ident)
		}
		return p.parseRefFrom(ident)
	}
	return nil, p.errorExpecting([]int{NUMBER, STRING, TRUE, FALSE, LPAREN, LBRACK, IDENT}, "in expression")
}

func (p *LLParser) newNumberLiteral(tok Token) (*decl.NumberLiteral, error) {
	v, err := strconv.ParseFloat(tok.Text, 64)
	if err != nil {
		return nil, p.ErrorAt(tok, "invalid number %s", tok.Text)
	}
	return &decl.NumberLiteral{
		ExprBase:  decl.ExprBase{NodeInfo: tok.NodeInfo()},
		Text:      tok.Text,
		Value:     v,
		IsInteger: !strings.ContainsAny(tok.Text, ".eE"),
	}, nil
}

// parseCall parses the argument list of `f(...)`.  Positional arguments come first;
// an argument of the form `name = expr` is a keyword argument.
func (p *LLParser) parseCall(name *decl.Ident) (decl.Expr, error) {
	out := &decl.CallExpr{Func: name}
	p.Advance() // (
	for p.PeekToken() != RPAREN {
		if len(out.Args)+len(out.Named) > 0 {
			if _, err := p.AdvanceIf(COMMA); err != nil {
				return nil, err
			}
		}
		arg, err := p.ParseExpression()
		if err != nil {
			return nil, err
		}
		if p.PeekToken() == ASSIGN {
			ref, ok := arg.(*decl.RefExpr)
			if !ok || len(ref.Parts) != 1 || ref.HasIndices() {
				return nil, p.Errorf("keyword argument name must be a plain identifier")
			}
			p.Advance()
			value, err := p.ParseExpression()
			if err != nil {
				return nil, err
			}
			nameNode := &decl.Ident{NodeInfo: ref.Parts[0].NodeInfo, Name: ref.Head()}
			out.Named = append(out.Named, &decl.NamedArg{NodeInfo: decl.NodeInfo{StartPos: ref.Pos(), StopPos: value.End()}, NameNode: nameNode, Value: value})
		} else if len(out.Named) > 0 {
			return nil, p.ErrorAt(Token{Start: arg.Pos()}, "positional argument follows keyword argument")
		} else {
			out.Args = append(out.Args, arg)
		}
		if p.PeekToken() != RPAREN && p.PeekToken() != COMMA {
			_, err = p.Expect(COMMA, RPAREN)
			return nil, err
		}
	}
	p.Advance()
	out.NodeInfo = decl.NodeInfo{StartPos: name.Pos(), StopPos: p.lastEnd}
	return out, nil
}

// Ref := IDENT [ "[" Exprs "]" ] { "." IDENT [ "[" Exprs "]" ] }
func (p *LLParser) ParseRef() (*decl.RefExpr, error) {
	ident, err := p.ParseIdentifier()
	if err != nil {
		return nil, err
	}
	return p.parseRefFrom(ident)
}

func (p *LLParser) parseRefFrom(first *decl.Ident) (*decl.RefExpr, error) {
	out := &decl.RefExpr{}
	ident := first
	for {
		part := &decl.RefPart{NodeInfo: ident.NodeInfo, Name: ident.Name}
		if p.PeekToken() == LBRACK {
			indices, err := p.parseExprList(LBRACK, RBRACK)
			if err != nil {
				return nil, err
			}
			if len(indices) == 0 {
				return nil, p.ErrorAt(Token{Start: p.lastEnd}, "empty index")
			}
			part.Indices = indices
			part.StopPos = p.lastEnd
		}
		out.Parts = append(out.Parts, part)
		if p.PeekToken() != DOT {
			break
		}
		p.Advance()
		var err error
		if ident, err = p.ParseIdentifier(); err != nil {
			return nil, err
		}
	}
	out.NodeInfo = decl.NodeInfo{StartPos: first.Pos(), StopPos: p.lastEnd}
	return out, nil
}

// parseExprList parses `open [ Expr { "," Expr } ] close`.
func (p *LLParser) parseExprList(open, close int) (out []decl.Expr, err error) {
	if _, err = p.AdvanceIf(open); err != nil {
		return nil, err
	}
	for p.PeekToken() != close {
		if len(out) > 0 {
			if _, err = p.AdvanceIf(COMMA); err != nil {
				return nil, err
			}
		}
		e, err := p.ParseExpression()
		if err != nil {
			return nil, err
		}
		out = append(out, e)
		if p.PeekToken() != close && p.PeekToken() != COMMA {
			_, err = p.Expect(COMMA, close)
			return nil, err
		}
	}
	p.Advance()
	return out, nil
}

// --- Metadata objects ---

func (p *LLParser) parseOptionalObject() (*metadata.Value, error) {
	if p.PeekToken() != LBRACE {
		return nil, nil
	}
	return p.ParseObject()
}

// ParseObject parses a JSON object.  Keys may also be bare identifiers.
func (p *LLParser) ParseObject() (*metadata.Value, error) {
	if _, err := p.AdvanceIf(LBRACE); err != nil {
		return nil, err
	}
	out := metadata.NewObject()
	for p.PeekToken() != RBRACE {
		if len(out.Fields) > 0 {
			if _, err := p.AdvanceIf(COMMA); err != nil {
				return nil, err
			}
		}
		key, err := p.AdvanceIf(STRING, IDENT)
		if err != nil {
			return nil, err
		}
		if out.Get(key.Text) != nil {
			return nil, p.ErrorAt(key, "duplicate metadata key %q", key.Text)
		}
		if _, err = p.AdvanceIf(COLON); err != nil {
			return nil, err
		}
		value, err := p.ParseMetaValue()
		if err != nil {
			return nil, err
		}
		out.Fields = append(out.Fields, &metadata.Field{Key: key.Text, Value: value})
		if p.PeekToken() != RBRACE && p.PeekToken() != COMMA {
			_, err = p.Expect(COMMA, RBRACE)
			return nil, err
		}
	}
	p.Advance()
	return out, nil
}

func (p *LLParser) ParseMetaValue() (*metadata.Value, error) {
	tok := p.Peek()
	switch tok.Kind {
	case STRING:
		p.Advance()
		return metadata.NewString(tok.Text), nil
	case NUMBER:
		p.Advance()
		return metadata.NewNumberText(tok.Text)
	case OPERATOR:
		if tok.Text == "-" {
			p.Advance()
			num, err := p.AdvanceIf(NUMBER)
			if err != nil {
				return nil, err
			}
			return metadata.NewNumberText("-" + num.Text)
		}
	case TRUE, FALSE:
		p.Advance()
		return metadata.NewBool(tok.Kind == TRUE), nil
	case NULL:
		p.Advance()
		return metadata.NewNull(), nil
	case LBRACE:
		return p.ParseObject()
	case LBRACK:
		p.Advance()
		out := metadata.NewList()
		for p.PeekToken() != RBRACK {
			if len(out.Items) > 0 {
				if _, err := p.AdvanceIf(COMMA); err != nil {
					return nil, err
				}
			}
			item, err := p.ParseMetaValue()
			if err != nil {
				return nil, err
			}
			out.Items = append(out.Items, item)
			if p.PeekToken() != RBRACK && p.PeekToken() != COMMA {
				_, err = p.Expect(COMMA, RBRACK)
				return nil, err
			}
		}
		p.Advance()
		return out, nil
	}
	return nil, p.errorExpecting([]int{STRING, NUMBER, TRUE, FALSE, NULL, LBRACE, LBRACK}, "in metadata")
}
