package parser

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/panyam/jsmlc/decl"
	"github.com/panyam/jsmlc/metadata"
)

func TestParsePrecedence(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected decl.Expr
	}{
		{"mul before add", "a + b * c", bin(ref("a"), "+", bin(ref("b"), "*", ref("c")))},
		{"left assoc", "a - b - c", bin(bin(ref("a"), "-", ref("b")), "-", ref("c"))},
		{"mixed chain", "a * b + c / d - e", bin(bin(bin(ref("a"), "*", ref("b")), "+", bin(ref("c"), "/", ref("d"))), "-", ref("e"))},
		{"parens", "(a + b) * c", bin(bin(ref("a"), "+", ref("b")), "*", ref("c"))},
		{"power right assoc", "a ^ b ^ c", bin(ref("a"), "^", bin(ref("b"), "^", ref("c")))},
		{"unary binds looser than power", "-x ^ 2", neg(bin(ref("x"), "^", num("2")))},
		{"negative exponent", "x ^ -1", bin(ref("x"), "^", neg(num("1")))},
		{"unary in product", "a * -b", bin(ref("a"), "*", neg(ref("b")))},
		{"element wise kept distinct", "a .* b + c .^ 2", bin(bin(ref("a"), ".*", ref("b")), "+", bin(ref("c"), ".^", num("2")))},
		{"element wise mixed", "a .+ b .* c", bin(ref("a"), ".+", bin(ref("b"), ".*", ref("c")))},
		{"relational over arith", "a + 1 < b * 2", bin(bin(ref("a"), "+", num("1")), "<", bin(ref("b"), "*", num("2")))},
		{"logic", "a < b and not c or d", bin(bin(bin(ref("a"), "<", ref("b")), "and", not(ref("c"))), "or", ref("d"))},
		{"not over relational", "not a == b", not(bin(ref("a"), "==", ref("b")))},
		{"ternary lowest", "x > 0 ? x : -x", &decl.TernaryExpr{Cond: bin(ref("x"), ">", num("0")), Then: ref("x"), Else: neg(ref("x"))}},
		{"nested ternary right", "a ? b : c ? d : e", &decl.TernaryExpr{Cond: ref("a"), Then: ref("b"), Else: &decl.TernaryExpr{Cond: ref("c"), Then: ref("d"), Else: ref("e")}}},
		{"call", "der(v) + sin(2 * pi * t)", bin(call("der", ref("v")), "+", call("sin", bin(bin(num("2"), "*", ref("pi")), "*", ref("t"))))},
		{"refs with indices", "x[1].y[i, j + 1]", &decl.RefExpr{Parts: []*decl.RefPart{
			{Name: "x", Indices: []decl.Expr{num("1")}},
			{Name: "y", Indices: []decl.Expr{ref("i"), bin(ref("j"), "+", num("1"))}},
		}}},
		{"array", "[1, 2.5, a]", &decl.ArrayExpr{Elements: []decl.Expr{num("1"), num("2.5"), ref("a")}}},
		{"bools and strings", `flag == true`, bin(ref("flag"), "==", &decl.BoolLiteral{Value: true})},
		{"keyword call", "max(a, b, k=2)", &decl.CallExpr{Func: ident("max"), Args: []decl.Expr{ref("a"), ref("b")}, Named: []*decl.NamedArg{named("k", num("2"))}}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			actual, err := ParseExpression(tt.input)
			require.NoError(t, err)
			assertNodeEqual(t, tt.input, tt.expected, actual)
		})
	}
}

func TestParseNumbers(t *testing.T) {
	n := num("42")
	assert.True(t, n.IsInteger)
	assert.Equal(t, 42.0, n.Value)
	n = num("1.5e-3")
	assert.False(t, n.IsInteger)
	assert.Equal(t, 0.0015, n.Value)
	assert.Equal(t, "1.5e-3", n.Text)
}

func TestParseExpressionErrors(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		contains string
	}{
		{"chained comparison", "a < b < c", "cannot be chained"},
		{"dangling operator", "a +", "unexpected EOF"},
		{"unclosed paren", "(a + b", "expected one of: ')'"},
		{"positional after keyword", "f(k=1, 2)", "positional argument"},
		{"bad keyword", "f(a.b=1)", "plain identifier"},
		{"trailing junk", "a b", "unexpected IDENT"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseExpression(tt.input)
			assertSyntaxError(t, tt.input, err, tt.contains)
		})
	}
}

func TestParseTypeDecl(t *testing.T) {
	actual, err := parseFragment(t, `type Resistance = Real(units="Ω", min=0)`, func(p *LLParser) (*decl.TypeDecl, error) {
		return p.ParseTypeDecl("")
	})
	require.NoError(t, err)
	assertNodeEqual(t, "type", &decl.TypeDecl{
		NameNode: ident("Resistance"),
		Base:     ident("Real"),
		Attrs:    []*decl.NamedArg{named("units", str("Ω")), named("min", num("0"))},
	}, actual)
}

func TestParseMembers(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected decl.Member
	}{
		{"parameter", "parameter R::Resistance = 100", &decl.ParamDecl{NameNode: ident("R"), Type: typeRef("Resistance"), Default: num("100")}},
		{"parameter no default", "parameter R::Real(units=\"Ω\")", &decl.ParamDecl{NameNode: ident("R"), Type: typeRef("Real", named("units", str("Ω")))}},
		{"variable", "variable v::Voltage", &decl.VarDecl{NameNode: ident("v"), Type: typeRef("Voltage")}},
		{"array variable", "variable x::Real[3]", &decl.VarDecl{NameNode: ident("x"), Type: &decl.TypeRef{NameNode: ident("Real"), Dims: []decl.Expr{num("3")}}}},
		{"instance", "resistor = Resistor(R=100)", &decl.InstanceDecl{NameNode: ident("resistor"), Constructor: &decl.CallExpr{Func: ident("Resistor"), Named: []*decl.NamedArg{named("R", num("100"))}}}},
		{"interface instance", "load::TwoPin = Resistor()", &decl.InstanceDecl{NameNode: ident("load"), Interface: ident("TwoPin"), Constructor: &decl.CallExpr{Func: ident("Resistor")}}},
		{"unbound interface", "load::TwoPin", &decl.InstanceDecl{NameNode: ident("load"), Interface: ident("TwoPin")}},
		{"metadata", `p = Pin() {"JSML": {"x": 1}}`, &decl.InstanceDecl{
			NameNode:    ident("p"),
			Constructor: &decl.CallExpr{Func: ident("Pin")},
			Metadata: metadata.NewObject(&metadata.Field{Key: "JSML", Value: metadata.NewObject(
				&metadata.Field{Key: "x", Value: mustNumber(t, "1")},
			)}),
		}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			actual, err := parseFragment(t, tt.input, func(p *LLParser) (decl.Member, error) {
				return p.ParseMember("")
			})
			require.NoError(t, err)
			assertNodeEqual(t, tt.input, tt.expected, actual)
		})
	}
}

func mustNumber(t *testing.T, text string) *metadata.Value {
	v, err := metadata.NewNumberText(text)
	require.NoError(t, err)
	return v
}

func TestParseMemberErrors(t *testing.T) {
	for _, input := range []string{
		"resistor = Resistor(100)",
		"variable v",
		"parameter = 1",
		"load",
		"x::",
	} {
		t.Run(input, func(t *testing.T) {
			_, err := parseFragment(t, input, func(p *LLParser) (decl.Member, error) {
				return p.ParseMember("")
			})
			assertSyntaxError(t, input, err, "")
		})
	}
}

func TestParseRelations(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected decl.Relation
	}{
		{"equation", "v = i * R", &decl.EquationStmt{Left: ref("v"), Right: bin(ref("i"), "*", ref("R"))}},
		{"initial", "initial x = 0", &decl.EquationStmt{Initial: true, Left: ref("x"), Right: num("0")}},
		{"connect", "connect(a.p, b.n, c[1].p)", &decl.ConnectStmt{Endpoints: []*decl.RefExpr{
			ref("a.p"), ref("b.n"),
			{Parts: []*decl.RefPart{{Name: "c", Indices: []decl.Expr{num("1")}}, {Name: "p"}}},
		}}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			actual, err := parseFragment(t, tt.input, func(p *LLParser) (decl.Relation, error) {
				return p.ParseRelation("")
			})
			require.NoError(t, err)
			assertNodeEqual(t, tt.input, tt.expected, actual)
		})
	}
}

func TestParseMetadataValues(t *testing.T) {
	actual, err := parseFragment(t, `{"a": [1, -2.5, true, null, "s"], b: {}}`, func(p *LLParser) (*metadata.Value, error) {
		return p.ParseObject()
	})
	require.NoError(t, err)
	assert.Equal(t, `{"a": [1, -2.5, true, null, "s"], "b": {}}`, actual.String())

	_, err = parseFragment(t, `{"a": 1, "a": 2}`, func(p *LLParser) (*metadata.Value, error) {
		return p.ParseObject()
	})
	assertSyntaxError(t, "dup", err, "duplicate metadata key")
}

func TestIdxBuilder(t *testing.T) {
	e, err := ParseExpression("x[2]")
	require.NoError(t, err)
	assertNodeEqual(t, "x[2]", idx("x", num("2")), e)
}
