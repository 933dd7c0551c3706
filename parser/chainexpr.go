package parser

import (
	"fmt"
	"strings"

	gfn "github.com/panyam/goutils/fn"
	"github.com/panyam/jsmlc/decl"
)

// ChainedExpr is a flat run of operands and binary operators, `a + b * c - d`, collected by
// the parser and turned into a tree by Unchain once all operators are known.
type ChainedExpr struct {
	Children  []decl.Expr
	Operators []string
}

func (c *ChainedExpr) String() string {
	parts := gfn.Map(c.Children, func(e decl.Expr) string { return e.String() })
	return fmt.Sprintf("(%s)", strings.Join(parts, ", "))
}

type Associativity int

const (
	AssocNone Associativity = iota
	AssocLeft
	AssocRight
)

type Precedencer interface {
	PrecedenceFor(operator string) int
	AssociativityFor(operator string) Associativity
}

// arithPrecedencer orders the additive and multiplicative operators, scalar and element-wise.
type arithPrecedencer struct{}

func (arithPrecedencer) PrecedenceFor(operator string) int { return decl.BinaryPrecedence(operator) }

func (arithPrecedencer) AssociativityFor(operator string) Associativity {
	switch decl.BinaryPrecedence(operator) {
	case decl.PrecPower:
		return AssocRight
	case decl.PrecRelational:
		return AssocNone
	}
	return AssocLeft
}

// Unchain converts the chain into a tree of BinaryExprs using precedence climbing.
// Returns nil for a malformed chain.
func (c *ChainedExpr) Unchain(p Precedencer) decl.Expr {
	if len(c.Children) == 0 || len(c.Children) != len(c.Operators)+1 {
		return nil
	}
	if p == nil {
		p = arithPrecedencer{}
	}
	childIdx, opIdx := 0, 0
	out := c.climb(p, &childIdx, &opIdx, 0)
	if childIdx != len(c.Children) || opIdx != len(c.Operators) {
		return nil
	}
	return out
}

// climb consumes operands and the operators whose precedence is >= minPrecedence.
func (c *ChainedExpr) climb(p Precedencer, childIdx *int, opIdx *int, minPrecedence int) decl.Expr {
	if *childIdx >= len(c.Children) {
		return nil
	}
	lhs := c.Children[*childIdx]
	*childIdx++

	for *opIdx < len(c.Operators) {
		op := c.Operators[*opIdx]
		prec := p.PrecedenceFor(op)
		if prec < minPrecedence {
			break
		}
		*opIdx++

		next := prec + 1
		if p.AssociativityFor(op) == AssocRight {
			next = prec
		}
		rhs := c.climb(p, childIdx, opIdx, next)
		if rhs == nil {
			return nil
		}
		lhs = &decl.BinaryExpr{
			ExprBase: decl.ExprBase{NodeInfo: decl.NodeInfo{StartPos: lhs.Pos(), StopPos: rhs.End()}},
			Left:     lhs,
			Operator: op,
			Right:    rhs,
		}
	}
	return lhs
}
