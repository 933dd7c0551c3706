package resolver

import (
	"github.com/panyam/jsmlc/decl"
	"github.com/panyam/jsmlc/diag"
	"github.com/panyam/jsmlc/units"
)

// BaseKind is the primitive kind every type alias chain bottoms out in.
type BaseKind int

const (
	Real BaseKind = iota
	Integer
	Boolean
	String
)

var baseKindNames = []string{"Real", "Integer", "Boolean", "String"}

func (k BaseKind) String() string { return baseKindNames[k] }

func (k BaseKind) IsNumeric() bool { return k == Real || k == Integer }

func baseKindByName(name string) (BaseKind, bool) {
	for i, n := range baseKindNames {
		if n == name {
			return BaseKind(i), true
		}
	}
	return 0, false
}

// Type is a type alias chain folded down to its base kind with merged attributes.
type Type struct {
	Name string
	Kind BaseKind
	// Wildcard when no units were declared anywhere along the chain
	Unit     units.Unit
	UnitText string
	Min      *float64
	Max      *float64
	Default  *float64
	Guess    *float64
	Decl     *decl.TypeDecl // nil for base kinds and anonymous refinements
}

func baseType(k BaseKind) *Type {
	return &Type{Name: k.String(), Kind: k, Unit: units.Wildcard}
}

func (t *Type) HasUnit() bool { return !t.Unit.Wild }

func (t *Type) String() string {
	if t.HasUnit() {
		return t.Name + "[" + t.UnitText + "]"
	}
	return t.Name
}

func (t *Type) clone() *Type {
	out := *t
	return &out
}

var typeAttributes = []string{"units", "min", "max", "default", "guess"}

// refine returns a copy of t with the given attributes applied on top.
func (r *Resolver) refine(t *Type, attrs []*decl.NamedArg, file string) (*Type, diag.List) {
	if len(attrs) == 0 {
		return t, nil
	}
	var diags diag.List
	out := t.clone()
	out.Decl = nil
	for _, a := range attrs {
		if a.Name() == "units" {
			lit, ok := a.Value.(*decl.StringLiteral)
			switch {
			case !ok:
				diags = append(diags, errorAt(diag.TypeMismatchError, file, a, "units must be a string literal"))
			case t.Kind != Real:
				diags = append(diags, errorAt(diag.TypeMismatchError, file, a, "units can only be given to Real types, not %s", t.Kind))
			default:
				u, err := units.Parse(lit.Value)
				if err != nil {
					diags = append(diags, errorAt(diag.UnitMismatchError, file, a, "invalid unit %q: %v", lit.Value, err))
					continue
				}
				out.Unit, out.UnitText = u, lit.Value
			}
			continue
		}

		var slot **float64
		switch a.Name() {
		case "min":
			slot = &out.Min
		case "max":
			slot = &out.Max
		case "default":
			slot = &out.Default
		case "guess":
			slot = &out.Guess
		default:
			diags = append(diags, errorAt(diag.UnknownParameterError, file, a, "unknown type attribute %q (expected one of %v)", a.Name(), typeAttributes))
			continue
		}
		if !t.Kind.IsNumeric() {
			diags = append(diags, errorAt(diag.TypeMismatchError, file, a, "attribute %s needs a numeric type, not %s", a.Name(), t.Kind))
			continue
		}
		v, ok := Evaluate(a.Value, nil)
		if !ok {
			diags = append(diags, errorAt(diag.TypeMismatchError, file, a, "attribute %s must be a numeric constant", a.Name()))
			continue
		}
		*slot = &v
	}
	if out.Min != nil && out.Max != nil && *out.Min > *out.Max {
		diags = append(diags, errorAt(diag.ConstraintViolationError, file, attrs[0], "min %g is greater than max %g", *out.Min, *out.Max))
	}
	return out, diags
}

// resolveTypeDecl folds an alias chain.  Results (including failures, stored as nil) are
// memoised so every problem is reported once.
func (r *Resolver) resolveTypeDecl(td *decl.TypeDecl, stack []string) *Type {
	name := td.Name()
	if t, ok := r.types[name]; ok {
		return t
	}
	file := r.files[name]

	var base *Type
	if k, ok := baseKindByName(td.Base.Name); ok {
		base = baseType(k)
	} else if parent, ok := r.typeDecls[td.Base.Name]; ok {
		for idx, s := range stack {
			if s == parent.Name() {
				chain := append(append([]string(nil), stack[idx:]...), name, parent.Name())
				r.diags.Add(errorAt(diag.CyclicDefinitionError, file, td.Base, "cyclic type alias %s", joinPath(chain)))
				r.types[name] = nil
				return nil
			}
		}
		base = r.resolveTypeDecl(parent, append(stack, name))
	} else {
		r.diags.Add(errorAt(diag.UnresolvedReferenceError, file, td.Base, "unknown type %s", td.Base.Name))
	}
	if base == nil {
		r.types[name] = nil
		return nil
	}

	t, diags := r.refine(base, td.Attrs, file)
	r.diags.Add(diags...)
	if t == base {
		t = base.clone()
	}
	t.Name, t.Decl = name, td
	r.types[name] = t
	return t
}

// typeRef resolves a member or field type.  Returns nil after reporting a problem.
func (r *Resolver) typeRef(ref *decl.TypeRef, file string) (*Type, diag.List) {
	var base *Type
	if k, ok := baseKindByName(ref.Name()); ok {
		base = baseType(k)
	} else if t, ok := r.types[ref.Name()]; ok {
		if t == nil {
			// already reported on the alias
			return nil, nil
		}
		base = t
	} else if g, ok := r.Globals.Get(ref.Name()); ok {
		return nil, diag.List{errorAt(diag.TypeMismatchError, file, ref, "%s is a %s, not a type", ref.Name(), g.Kind)}
	} else {
		return nil, diag.List{errorAt(diag.UnresolvedReferenceError, file, ref, "unknown type %s", ref.Name())}
	}
	return r.refine(base, ref.Attrs, file)
}
