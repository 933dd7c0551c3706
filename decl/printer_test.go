package decl

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func ref(path string) *RefExpr { return NewRef(path) }

func num(text string, v float64) *NumberLiteral {
	return &NumberLiteral{Text: text, Value: v, IsInteger: v == float64(int64(v))}
}

func TestPrintExpressionParens(t *testing.T) {
	tests := []struct {
		name     string
		expr     Expr
		expected string
	}{
		{"left assoc sub", NewBinary(NewBinary(ref("a"), "-", ref("b")), "-", ref("c")), "a - b - c"},
		{"right grouped sub", NewBinary(ref("a"), "-", NewBinary(ref("b"), "-", ref("c"))), "a - (b - c)"},
		{"mul over add", NewBinary(NewBinary(ref("a"), "+", ref("b")), "*", ref("c")), "(a + b) * c"},
		{"add over mul", NewBinary(ref("a"), "+", NewBinary(ref("b"), "*", ref("c"))), "a + b * c"},
		{"power right assoc", NewBinary(ref("a"), "^", NewBinary(ref("b"), "^", ref("c"))), "a ^ b ^ c"},
		{"power left grouped", NewBinary(NewBinary(ref("a"), "^", ref("b")), "^", ref("c")), "(a ^ b) ^ c"},
		{"negated power", &UnaryExpr{Operator: "-", Right: NewBinary(ref("x"), "^", num("2", 2))}, "-x ^ 2"},
		{"power of negation", NewBinary(&UnaryExpr{Operator: "-", Right: ref("x")}, "^", num("2", 2)), "(-x) ^ 2"},
		{"negative exponent", NewBinary(ref("x"), "^", &UnaryExpr{Operator: "-", Right: num("1", 1)}), "x ^ -1"},
		{"element wise", NewBinary(ref("a"), ".*", NewBinary(ref("b"), ".+", ref("c"))), "a .* (b .+ c)"},
		{"relational", NewBinary(NewBinary(ref("a"), "+", ref("b")), "<", ref("c")), "a + b < c"},
		{"not", &UnaryExpr{Operator: "not", Right: NewBinary(ref("a"), "and", ref("b"))}, "not (a and b)"},
		{"ternary", &TernaryExpr{Cond: NewBinary(ref("x"), ">", num("0", 0)), Then: ref("x"), Else: &UnaryExpr{Operator: "-", Right: ref("x")}}, "x > 0 ? x : -x"},
		{"call", &CallExpr{Func: &Ident{Name: "der"}, Args: []Expr{ref("v")}}, "der(v)"},
		{"named call", &CallExpr{Func: &Ident{Name: "Resistor"}, Named: []*NamedArg{{NameNode: &Ident{Name: "R"}, Value: num("100", 100)}}}, "Resistor(R=100)"},
		{"array", &ArrayExpr{Elements: []Expr{num("1", 1), num("2.5", 2.5)}}, "[1, 2.5]"},
		{"string", &StringLiteral{Value: "a\"b"}, `"a\"b"`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, Print(tt.expr))
		})
	}
}

func TestPrintComponent(t *testing.T) {
	comp := &ComponentDecl{
		Description: "A resistor",
		NameNode:    &Ident{Name: "Resistor"},
		Members: []Member{
			&InstanceDecl{NameNode: &Ident{Name: "p"}, Constructor: &CallExpr{Func: &Ident{Name: "Pin"}}},
			&ParamDecl{Description: "Resistance", NameNode: &Ident{Name: "R"}, Type: &TypeRef{NameNode: &Ident{Name: "Resistance"}}, Default: num("1", 1)},
			&VarDecl{NameNode: &Ident{Name: "i"}, Type: &TypeRef{NameNode: &Ident{Name: "Current"}}},
		},
		Relations: []Relation{
			&EquationStmt{Left: ref("v"), Right: NewBinary(ref("i"), "*", ref("R"))},
			&EquationStmt{Initial: true, Left: ref("i"), Right: num("0", 0)},
			&ConnectStmt{Endpoints: []*RefExpr{ref("p"), ref("n")}},
		},
	}
	expected := `"A resistor"
component Resistor
  p = Pin()
  "Resistance"
  parameter R::Resistance = 1
  variable i::Current
relations
  v = i * R
  initial i = 0
  connect(p, n)
end`
	assert.Equal(t, expected, Print(comp))
}

func TestPrintConnectorAndTypes(t *testing.T) {
	file := &FileDecl{Declarations: []TopLevelDecl{
		&ImportDecl{Path: &StringLiteral{Value: "lib.jsml"}},
		&TypeDecl{NameNode: &Ident{Name: "Voltage"}, Base: &Ident{Name: "Real"}, Attrs: []*NamedArg{
			{NameNode: &Ident{Name: "units"}, Value: &StringLiteral{Value: "V"}},
		}},
		&ConnectorDecl{NameNode: &Ident{Name: "Pin"}, Fields: []*FieldDecl{
			{Role: RolePotential, NameNode: &Ident{Name: "v"}, Type: &TypeRef{NameNode: &Ident{Name: "Voltage"}}},
			{Role: RoleFlow, NameNode: &Ident{Name: "i"}, Type: &TypeRef{NameNode: &Ident{Name: "Current"}}},
		}},
	}}
	expected := `import "lib.jsml"
type Voltage = Real(units="V")

connector Pin
  potential v::Voltage
  flow i::Current
end
`
	assert.Equal(t, expected, Print(file))
}
