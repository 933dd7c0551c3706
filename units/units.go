// Package units implements the physical unit algebra used to check JSML equations.  A Unit
// carries SI base dimension exponents and a scale factor relative to the coherent SI unit as
// a gonum unit value.  A wildcard unit (numeric literals, undeclared variables) unifies with anything.
package units

import (
	"fmt"
	"math"
	"strconv"
	"strings"
	"unicode"

	"gonum.org/v1/gonum/unit"
)

// SI base dimensions in the order they are printed.
var baseDims = []struct {
	dim    unit.Dimension
	symbol string
}{
	{unit.LengthDim, "m"},
	{unit.MassDim, "kg"},
	{unit.TimeDim, "s"},
	{unit.CurrentDim, "A"},
	{unit.TemperatureDim, "K"},
	{unit.MoleDim, "mol"},
	{unit.LuminousIntensityDim, "cd"},
}

// Unit is a gonum quantity whose value is the scale factor, or a wildcard.  The zero
// value is dimensionless with scale 1.
type Unit struct {
	Wild bool
	q    *unit.Unit
}

var (
	Dimensionless = Unit{}
	Wildcard      = Unit{Wild: true}
)

// New builds a unit from a scale factor and base dimension exponents.
func New(scale float64, dims unit.Dimensions) Unit {
	return Unit{q: unit.New(scale, dims)}
}

// Scale is the factor relative to the coherent SI unit.  Wildcards have scale 1.
func (u Unit) Scale() float64 {
	if u.Wild || u.q == nil || u.q.Value() == 0 {
		return 1
	}
	return u.q.Value()
}

// Dims returns a copy of the non-zero dimension exponents.  Wildcards have none.
func (u Unit) Dims() unit.Dimensions {
	if u.Wild || u.q == nil {
		return unit.Dimensions{}
	}
	return u.q.Dimensions()
}

// quantity returns a fresh gonum unit, since its Mul and Div modify the receiver.
func (u Unit) quantity() *unit.Unit {
	return unit.New(u.Scale(), u.Dims())
}

func (u Unit) IsDimensionless() bool {
	return !u.Wild && len(u.Dims()) == 0
}

// Equal compares dimensions and scale.  Wildcards equal anything.
func (u Unit) Equal(o Unit) bool {
	if u.Wild || o.Wild {
		return true
	}
	return u.SameDimension(o) && scaleEqual(u.Scale(), o.Scale())
}

// SameDimension ignores the scale factor.
func (u Unit) SameDimension(o Unit) bool {
	return u.Wild || o.Wild || unit.DimensionsMatch(u.quantity(), o.quantity())
}

func scaleEqual(a, b float64) bool {
	return math.Abs(a-b) <= 1e-12*math.Max(math.Abs(a), math.Abs(b))
}

// Mul treats a wildcard operand as dimensionless; the product is wild only when both are.
func (u Unit) Mul(o Unit) Unit {
	if u.Wild && o.Wild {
		return Wildcard
	}
	return Unit{q: u.quantity().Mul(o.quantity())}
}

func (u Unit) Div(o Unit) Unit {
	if u.Wild && o.Wild {
		return Wildcard
	}
	return Unit{q: u.quantity().Div(o.quantity())}
}

// Pow raises to an integer power.
func (u Unit) Pow(n int) Unit {
	if u.Wild {
		return u
	}
	out := unit.New(1, nil)
	for i := 0; i < n; i++ {
		out.Mul(u.quantity())
	}
	for i := 0; i > n; i-- {
		out.Div(u.quantity())
	}
	return Unit{q: out}
}

// Root takes the n-th root.  Fails unless every exponent is divisible by n.
func (u Unit) Root(n int) (Unit, error) {
	if u.Wild {
		return u, nil
	}
	dims := u.Dims()
	for d, exp := range dims {
		if exp%n != 0 {
			return Unit{}, fmt.Errorf("cannot take root %d of %s", n, u)
		}
		dims[d] = exp / n
	}
	return New(math.Pow(u.Scale(), 1/float64(n)), dims), nil
}

// String renders a known derived symbol when one matches exactly, else a product of base
// units such as `kg*m^2/s^3`.
func (u Unit) String() string {
	if u.Wild {
		return "?"
	}
	scale := u.Scale()
	if u.IsDimensionless() && scaleEqual(scale, 1) {
		return "1"
	}
	for _, sym := range reverseSymbols {
		named := symbols[sym]
		if !named.SameDimension(u) {
			continue
		}
		if scaleEqual(named.Scale(), scale) {
			return sym
		}
		if sym == "kg" {
			continue
		}
		for _, p := range printPrefixes {
			if scaleEqual(named.Scale()*prefixes[p], scale) {
				return p + sym
			}
		}
	}
	dims := u.Dims()
	var num, den []string
	for _, b := range baseDims {
		switch d := dims[b.dim]; {
		case d == 1:
			num = append(num, b.symbol)
		case d > 1:
			num = append(num, b.symbol+"^"+strconv.Itoa(d))
		case d == -1:
			den = append(den, b.symbol)
		case d < -1:
			den = append(den, b.symbol+"^"+strconv.Itoa(-d))
		}
	}
	out := strings.Join(num, "*")
	if out == "" {
		out = "1"
	}
	if len(den) > 0 {
		out += "/" + strings.Join(den, "/")
	}
	if !scaleEqual(scale, 1) {
		out = strconv.FormatFloat(scale, 'g', -1, 64) + "*" + out
	}
	return out
}

// si builds a unit from exponents of m, kg, s, A, K, mol and cd.
func si(scale float64, exps ...int) Unit {
	dims := unit.Dimensions{}
	for i, e := range exps {
		if e != 0 {
			dims[baseDims[i].dim] = e
		}
	}
	return New(scale, dims)
}

var symbols = map[string]Unit{
	"1":   Dimensionless,
	"m":   si(1, 1),
	"g":   si(1e-3, 0, 1),
	"kg":  si(1, 0, 1),
	"s":   si(1, 0, 0, 1),
	"min": si(60, 0, 0, 1),
	"h":   si(3600, 0, 0, 1),
	"A":   si(1, 0, 0, 0, 1),
	"K":   si(1, 0, 0, 0, 0, 1),
	"mol": si(1, 0, 0, 0, 0, 0, 1),
	"cd":  si(1, 0, 0, 0, 0, 0, 0, 1),
	"rad": Dimensionless,
	"Hz":  si(1, 0, 0, -1),
	"N":   si(1, 1, 1, -2),
	"Pa":  si(1, -1, 1, -2),
	"J":   si(1, 2, 1, -2),
	"W":   si(1, 2, 1, -3),
	"C":   si(1, 0, 0, 1, 1),
	"V":   si(1, 2, 1, -3, -1),
	"F":   si(1, -2, -1, 4, 2),
	"Ω":   si(1, 2, 1, -3, -2),
	"Ohm": si(1, 2, 1, -3, -2),
	"S":   si(1, -2, -1, 3, 2),
	"Wb":  si(1, 2, 1, -2, -1),
	"T":   si(1, 0, 1, -2, -1),
	"H":   si(1, 2, 1, -2, -2),
}

// Preferred symbols when printing, most specific first.
var reverseSymbols = []string{"V", "A", "Ω", "F", "H", "W", "J", "N", "Pa", "C", "S", "Wb", "T", "s", "m", "kg", "K", "mol", "cd"}

var prefixes = map[string]float64{
	"Y": 1e24, "Z": 1e21, "E": 1e18, "P": 1e15, "T": 1e12, "G": 1e9, "M": 1e6, "k": 1e3,
	"h": 1e2, "da": 1e1, "d": 1e-1, "c": 1e-2, "m": 1e-3, "µ": 1e-6, "μ": 1e-6, "u": 1e-6,
	"n": 1e-9, "p": 1e-12, "f": 1e-15, "a": 1e-18,
}

var printPrefixes = []string{"k", "M", "G", "m", "µ", "n", "p"}

// Lookup resolves a single unit symbol with an optional SI prefix, eg `mV`, `kΩ`.
// An exact symbol wins over a prefixed reading (`min` is minutes, not milli-inches).
func Lookup(sym string) (Unit, bool) {
	if u, ok := symbols[sym]; ok {
		return u, true
	}
	for _, plen := range []int{2, 1} {
		runes := []rune(sym)
		if len(runes) <= plen {
			continue
		}
		p, rest := string(runes[:plen]), string(runes[plen:])
		factor, ok := prefixes[p]
		if !ok {
			continue
		}
		base, ok := symbols[rest]
		if !ok || rest == "kg" || rest == "1" {
			continue
		}
		return New(base.Scale()*factor, base.Dims()), true
	}
	return Unit{}, false
}

// Parse reads a unit expression such as `V`, `kg*m^2/s^2`, `m/s`, `1/s` or `A.s`.
// `*` and `.` multiply; `/` divides everything up to the next `/` or `*`.
// The empty string is dimensionless.
func Parse(expr string) (Unit, error) {
	p := &unitParser{input: []rune(strings.TrimSpace(expr))}
	if len(p.input) == 0 {
		return Dimensionless, nil
	}
	return p.parse()
}

type unitParser struct {
	input []rune
	pos   int
}

func (p *unitParser) parse() (Unit, error) {
	out := Dimensionless
	divide := false
	for {
		p.skipSpaces()
		term, err := p.term()
		if err != nil {
			return Unit{}, err
		}
		if divide {
			out = out.Div(term)
		} else {
			out = out.Mul(term)
		}
		p.skipSpaces()
		if p.pos >= len(p.input) {
			return out, nil
		}
		switch p.input[p.pos] {
		case '*', '.', '·':
			divide = false
		case '/':
			divide = true
		default:
			return Unit{}, fmt.Errorf("unexpected %q in unit %q", p.input[p.pos], string(p.input))
		}
		p.pos++
	}
}

func (p *unitParser) skipSpaces() {
	for p.pos < len(p.input) && unicode.IsSpace(p.input[p.pos]) {
		p.pos++
	}
}

func (p *unitParser) term() (Unit, error) {
	start := p.pos
	for p.pos < len(p.input) && (unicode.IsLetter(p.input[p.pos]) || p.input[p.pos] == '1') {
		if p.input[p.pos] == '1' && p.pos > start {
			break
		}
		p.pos++
		if p.input[p.pos-1] == '1' {
			break
		}
	}
	sym := string(p.input[start:p.pos])
	if sym == "" {
		return Unit{}, fmt.Errorf("expected a unit symbol at offset %d in %q", start, string(p.input))
	}
	u, ok := Lookup(sym)
	if !ok {
		return Unit{}, fmt.Errorf("unknown unit %q", sym)
	}
	if p.pos < len(p.input) && p.input[p.pos] == '^' {
		p.pos++
		numStart := p.pos
		if p.pos < len(p.input) && p.input[p.pos] == '-' {
			p.pos++
		}
		for p.pos < len(p.input) && unicode.IsDigit(p.input[p.pos]) {
			p.pos++
		}
		n, err := strconv.Atoi(string(p.input[numStart:p.pos]))
		if err != nil {
			return Unit{}, fmt.Errorf("bad exponent in unit %q", string(p.input))
		}
		u = u.Pow(n)
	}
	return u, nil
}

// MustParse panics on malformed units; meant for tables of known units.
func MustParse(expr string) Unit {
	u, err := Parse(expr)
	if err != nil {
		panic(err)
	}
	return u
}
