package decl

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/panyam/jsmlc/metadata"
)

type CodePrinter interface {
	Indent(n int)
	Unindent(n int)
	Print(str string)
	Printf(fmt string, args ...any)
	Println(str string)
	String() string
}

// Printable nodes can render themselves as JSML source.
type Printable interface {
	PrettyPrint(cp CodePrinter)
}

func WithIndent(n int, cp CodePrinter, block func(cp CodePrinter)) {
	cp.Indent(n)
	defer cp.Unindent(n)
	block(cp)
}

type codePrinter struct {
	indent  int
	atStart bool
	builder strings.Builder
}

func (c *codePrinter) Indent(n int) {
	c.indent += n
}

func (c *codePrinter) Unindent(n int) {
	c.indent -= n
	if c.indent < 0 {
		c.indent = 0
	}
}

// Print writes str, inserting the indent string at the start of every non-empty line.
func (c *codePrinter) Print(str string) {
	lines := strings.Split(str, "\n")
	for idx, l := range lines {
		if idx > 0 {
			c.builder.WriteRune('\n')
			c.atStart = true
		}
		if l == "" {
			continue
		}
		if c.atStart {
			c.builder.WriteString(c.IndentString())
			c.atStart = false
		}
		c.builder.WriteString(l)
	}
}

func (c *codePrinter) Println(str string) {
	c.Print(str + "\n")
}

func (c *codePrinter) Printf(format string, args ...any) {
	c.Print(fmt.Sprintf(format, args...))
}

func (c *codePrinter) IndentString() string {
	return strings.Repeat("  ", c.indent)
}

func (c *codePrinter) String() string { return c.builder.String() }

func NewCodePrinter() CodePrinter {
	return &codePrinter{atStart: true}
}

// Print renders a node as JSML source.
func Print(node Printable) string {
	cp := NewCodePrinter()
	node.PrettyPrint(cp)
	return cp.String()
}

// --- Declarations ---

func (f *FileDecl) PrettyPrint(cp CodePrinter) {
	for idx, d := range f.Declarations {
		_, isBlock := d.(*ComponentDecl)
		_, isConnector := d.(*ConnectorDecl)
		if idx > 0 && (isBlock || isConnector) {
			cp.Println("")
		}
		if p, ok := d.(Printable); ok {
			p.PrettyPrint(cp)
		}
		cp.Println("")
	}
}

func printDoc(cp CodePrinter, doc string) {
	if doc != "" {
		cp.Println(strconv.Quote(doc))
	}
}

func printMeta(cp CodePrinter, meta *metadata.Value) {
	if meta != nil {
		cp.Print(" ")
		cp.Print(meta.String())
	}
}

func printNamedArgs(cp CodePrinter, args []*NamedArg) {
	for idx, a := range args {
		if idx > 0 {
			cp.Print(", ")
		}
		a.PrettyPrint(cp)
	}
}

func (n *NamedArg) PrettyPrint(cp CodePrinter) {
	cp.Print(n.NameNode.Name)
	cp.Print("=")
	n.Value.PrettyPrint(cp)
}

func (i *ImportDecl) PrettyPrint(cp CodePrinter) {
	cp.Printf("import %s", strconv.Quote(i.Path.Value))
}

func (t *TypeDecl) PrettyPrint(cp CodePrinter) {
	printDoc(cp, t.Description)
	cp.Printf("type %s = %s", t.Name(), t.Base.Name)
	if len(t.Attrs) > 0 {
		cp.Print("(")
		printNamedArgs(cp, t.Attrs)
		cp.Print(")")
	}
}

func (c *ConnectorDecl) PrettyPrint(cp CodePrinter) {
	printDoc(cp, c.Description)
	cp.Printf("connector %s\n", c.Name())
	WithIndent(1, cp, func(cp CodePrinter) {
		for _, f := range c.Fields {
			f.PrettyPrint(cp)
			cp.Println("")
		}
		if c.Metadata != nil {
			cp.Printf("metadata %s\n", c.Metadata.String())
		}
	})
	cp.Print("end")
}

func (f *FieldDecl) PrettyPrint(cp CodePrinter) {
	printDoc(cp, f.Description)
	cp.Printf("%s %s::", f.Role, f.Name())
	f.Type.PrettyPrint(cp)
	printMeta(cp, f.Metadata)
}

func (t *TypeRef) PrettyPrint(cp CodePrinter) {
	cp.Print(t.Name())
	if len(t.Attrs) > 0 {
		cp.Print("(")
		printNamedArgs(cp, t.Attrs)
		cp.Print(")")
	}
	if len(t.Dims) > 0 {
		cp.Print("[")
		printExprList(cp, t.Dims)
		cp.Print("]")
	}
}

func (c *ComponentDecl) PrettyPrint(cp CodePrinter) {
	printDoc(cp, c.Description)
	if c.Partial {
		cp.Print("partial ")
	}
	cp.Printf("component %s\n", c.Name())
	WithIndent(1, cp, func(cp CodePrinter) {
		for _, m := range c.Members {
			m.(Printable).PrettyPrint(cp)
			cp.Println("")
		}
	})
	if len(c.Relations) > 0 {
		cp.Println("relations")
		WithIndent(1, cp, func(cp CodePrinter) {
			for _, r := range c.Relations {
				r.(Printable).PrettyPrint(cp)
				cp.Println("")
			}
		})
	}
	if c.Metadata != nil {
		cp.Printf("metadata %s\n", c.Metadata.String())
	}
	cp.Print("end")
}

func (p *ParamDecl) PrettyPrint(cp CodePrinter) {
	printDoc(cp, p.Description)
	cp.Printf("parameter %s::", p.MemberName())
	p.Type.PrettyPrint(cp)
	if p.Default != nil {
		cp.Print(" = ")
		p.Default.PrettyPrint(cp)
	}
	printMeta(cp, p.Metadata)
}

func (v *VarDecl) PrettyPrint(cp CodePrinter) {
	printDoc(cp, v.Description)
	cp.Printf("variable %s::", v.MemberName())
	v.Type.PrettyPrint(cp)
	printMeta(cp, v.Metadata)
}

func (i *InstanceDecl) PrettyPrint(cp CodePrinter) {
	printDoc(cp, i.Description)
	cp.Print(i.MemberName())
	if i.Interface != nil {
		cp.Printf("::%s", i.Interface.Name)
	}
	if i.Constructor != nil {
		cp.Print(" = ")
		i.Constructor.PrettyPrint(cp)
	}
	printMeta(cp, i.Metadata)
}

func (e *EquationStmt) PrettyPrint(cp CodePrinter) {
	printDoc(cp, e.Description)
	if e.Initial {
		cp.Print("initial ")
	}
	e.Left.PrettyPrint(cp)
	cp.Print(" = ")
	e.Right.PrettyPrint(cp)
	printMeta(cp, e.Metadata)
}

func (c *ConnectStmt) PrettyPrint(cp CodePrinter) {
	printDoc(cp, c.Description)
	cp.Print("connect(")
	for idx, ep := range c.Endpoints {
		if idx > 0 {
			cp.Print(", ")
		}
		ep.PrettyPrint(cp)
	}
	cp.Print(")")
	printMeta(cp, c.Metadata)
}

// --- Expressions ---

func printExprList(cp CodePrinter, exprs []Expr) {
	for idx, e := range exprs {
		if idx > 0 {
			cp.Print(", ")
		}
		e.PrettyPrint(cp)
	}
}

// printOperand prints child, wrapped in parentheses when it binds weaker than minPrec.
func printOperand(cp CodePrinter, child Expr, minPrec int) {
	if ExprPrecedence(child) < minPrec {
		cp.Print("(")
		child.PrettyPrint(cp)
		cp.Print(")")
	} else {
		child.PrettyPrint(cp)
	}
}

func (n *NumberLiteral) PrettyPrint(cp CodePrinter) { cp.Print(n.Text) }
func (s *StringLiteral) PrettyPrint(cp CodePrinter) { cp.Print(strconv.Quote(s.Value)) }
func (b *BoolLiteral) PrettyPrint(cp CodePrinter)   { cp.Print(b.String()) }
func (r *RefExpr) PrettyPrint(cp CodePrinter)       { cp.Print(r.String()) }

func (u *UnaryExpr) PrettyPrint(cp CodePrinter) {
	if u.Operator == "not" {
		cp.Print("not ")
		printOperand(cp, u.Right, PrecNot)
		return
	}
	cp.Print(u.Operator)
	printOperand(cp, u.Right, PrecUnary)
}

func (b *BinaryExpr) PrettyPrint(cp CodePrinter) {
	prec := BinaryPrecedence(b.Operator)
	leftMin, rightMin := prec, prec+1
	switch prec {
	case PrecPower:
		// right associative
		leftMin, rightMin = prec+1, PrecUnary
	case PrecRelational:
		leftMin = prec + 1
	}
	printOperand(cp, b.Left, leftMin)
	cp.Printf(" %s ", b.Operator)
	printOperand(cp, b.Right, rightMin)
}

func (t *TernaryExpr) PrettyPrint(cp CodePrinter) {
	printOperand(cp, t.Cond, PrecOr)
	cp.Print(" ? ")
	t.Then.PrettyPrint(cp)
	cp.Print(" : ")
	t.Else.PrettyPrint(cp)
}

func (c *CallExpr) PrettyPrint(cp CodePrinter) {
	cp.Print(c.Func.Name)
	cp.Print("(")
	printExprList(cp, c.Args)
	if len(c.Args) > 0 && len(c.Named) > 0 {
		cp.Print(", ")
	}
	printNamedArgs(cp, c.Named)
	cp.Print(")")
}

func (a *ArrayExpr) PrettyPrint(cp CodePrinter) {
	cp.Print("[")
	printExprList(cp, a.Elements)
	cp.Print("]")
}
