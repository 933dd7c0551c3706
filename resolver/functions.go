package resolver

import (
	"fmt"
	"math"

	"github.com/panyam/jsmlc/units"
)

type builtinFunc struct {
	arity int
	// result unit from the argument units
	unit func(args []units.Unit) (units.Unit, error)
	// nil when the function has no constant value (der)
	eval func(args []float64) float64
}

var second = units.MustParse("s")

func dimensionlessArg(name string) func([]units.Unit) (units.Unit, error) {
	return func(args []units.Unit) (units.Unit, error) {
		if !args[0].Wild && !args[0].IsDimensionless() {
			return units.Unit{}, fmt.Errorf("argument of %s must be dimensionless, got %s", name, args[0])
		}
		return units.Dimensionless, nil
	}
}

func sameUnit(args []units.Unit) (units.Unit, error) {
	if !args[0].Equal(args[1]) {
		return units.Unit{}, fmt.Errorf("arguments have different units: %s and %s", args[0], args[1])
	}
	if args[0].Wild {
		return args[1], nil
	}
	return args[0], nil
}

func keepUnit(args []units.Unit) (units.Unit, error) { return args[0], nil }

func unary(f func(float64) float64) func([]float64) float64 {
	return func(args []float64) float64 { return f(args[0]) }
}

func transcendental(name string, f func(float64) float64) builtinFunc {
	return builtinFunc{arity: 1, unit: dimensionlessArg(name), eval: unary(f)}
}

var builtinFunctions = map[string]builtinFunc{
	"der": {arity: 1, unit: func(args []units.Unit) (units.Unit, error) {
		if args[0].Wild {
			return units.Wildcard, nil
		}
		return args[0].Div(second), nil
	}},
	"sin":   transcendental("sin", math.Sin),
	"cos":   transcendental("cos", math.Cos),
	"tan":   transcendental("tan", math.Tan),
	"asin":  transcendental("asin", math.Asin),
	"acos":  transcendental("acos", math.Acos),
	"atan":  transcendental("atan", math.Atan),
	"sinh":  transcendental("sinh", math.Sinh),
	"cosh":  transcendental("cosh", math.Cosh),
	"tanh":  transcendental("tanh", math.Tanh),
	"exp":   transcendental("exp", math.Exp),
	"log":   transcendental("log", math.Log),
	"log10": transcendental("log10", math.Log10),
	"sqrt": {arity: 1, eval: unary(math.Sqrt), unit: func(args []units.Unit) (units.Unit, error) {
		return args[0].Root(2)
	}},
	"abs":   {arity: 1, unit: keepUnit, eval: unary(math.Abs)},
	"floor": {arity: 1, unit: keepUnit, eval: unary(math.Floor)},
	"ceil":  {arity: 1, unit: keepUnit, eval: unary(math.Ceil)},
	"sign": {arity: 1, unit: func([]units.Unit) (units.Unit, error) { return units.Dimensionless, nil }, eval: unary(func(x float64) float64 {
		switch {
		case x > 0:
			return 1
		case x < 0:
			return -1
		}
		return 0
	})},
	"min": {arity: 2, unit: sameUnit, eval: func(a []float64) float64 { return math.Min(a[0], a[1]) }},
	"max": {arity: 2, unit: sameUnit, eval: func(a []float64) float64 { return math.Max(a[0], a[1]) }},
	"atan2": {arity: 2, eval: func(a []float64) float64 { return math.Atan2(a[0], a[1]) }, unit: func(args []units.Unit) (units.Unit, error) {
		if _, err := sameUnit(args); err != nil {
			return units.Unit{}, err
		}
		return units.Dimensionless, nil
	}},
}

// IsBuiltinFunction reports whether name is one of the functions every model can call.
func IsBuiltinFunction(name string) bool {
	_, ok := builtinFunctions[name]
	return ok
}
