package metadata

import (
	"fmt"
	"slices"

	"github.com/panyam/jsmlc/diag"
)

// Reserved keys under the tool namespace.
const (
	ExperimentsKey = "experiments"
	TestsKey       = "tests"
)

const DefaultTolerance = 1e-6

// Annotation is a metadata tree attached to the declaration at Path.
type Annotation struct {
	Path string
	File string
	Line int
	Col  int
	Meta *Value
}

// Override sets the initial value of a variable or parameter path.
type Override struct {
	Path  string  `json:"path" yaml:"path"`
	Value float64 `json:"value" yaml:"value"`
}

// Experiment is a runnable simulation scenario.
type Experiment struct {
	Name      string     `json:"name" yaml:"name"`
	Component string     `json:"component" yaml:"component"`
	Start     float64    `json:"start" yaml:"start"`
	Stop      float64    `json:"stop" yaml:"stop"`
	Initial   []Override `json:"initial,omitempty" yaml:"initial,omitempty"`
}

// Sample points for a check.
const (
	SampleInitial = "initial"
	SampleFinal   = "final"
)

// Check is one approximate-equality assertion.
type Check struct {
	Path      string  `json:"path" yaml:"path"`
	Expected  float64 `json:"expected" yaml:"expected"`
	Tolerance float64 `json:"atol" yaml:"atol"`
	Sample    string  `json:"sample" yaml:"sample"`
}

// TestCase is a scenario plus the assertions to run against its solution.
type TestCase struct {
	Experiment `yaml:",inline"`
	Tolerance  float64 `json:"atol" yaml:"atol"`
	Checks     []Check `json:"checks" yaml:"checks"`
}

// DiagramRecord holds metadata passed through to rendering tools.
type DiagramRecord struct {
	Path string `json:"path" yaml:"path"`
	Data *Value `json:"data" yaml:"data"`
}

// Artifacts is everything extracted from one compiled component.
type Artifacts struct {
	Component   string           `json:"component" yaml:"component"`
	Experiments []*Experiment    `json:"experiments,omitempty" yaml:"experiments,omitempty"`
	Tests       []*TestCase      `json:"tests,omitempty" yaml:"tests,omitempty"`
	Diagrams    []*DiagramRecord `json:"diagrams,omitempty" yaml:"diagrams,omitempty"`
}

// Paths returns every variable/parameter path named by experiments and tests, deduplicated
// in first-seen order.
func (a *Artifacts) Paths() (out []string) {
	add := func(p string) {
		if !slices.Contains(out, p) {
			out = append(out, p)
		}
	}
	for _, e := range a.Experiments {
		for _, o := range e.Initial {
			add(o.Path)
		}
	}
	for _, tc := range a.Tests {
		for _, o := range tc.Initial {
			add(o.Path)
		}
		for _, c := range tc.Checks {
			add(c.Path)
		}
	}
	return
}

// Extractor reads the reserved keys below Namespace.
type Extractor struct {
	Namespace string
}

// Extract builds the artifacts of component.  root is the annotation of the component itself
// (its experiments and tests); annotated holds every annotation in the instance tree,
// including root, whose remaining keys become diagram records.
func (x *Extractor) Extract(component string, root *Annotation, annotated []*Annotation) (*Artifacts, diag.List) {
	out := &Artifacts{Component: component}
	var errs diag.List
	if root != nil && root.Meta != nil {
		ns := root.Meta.Get(x.Namespace)
		if exps := ns.Get(ExperimentsKey); exps != nil {
			if exps.Kind != Object {
				errs = append(errs, x.errorf(root, "%s.%s must be an object of named experiments", x.Namespace, ExperimentsKey))
			} else {
				for _, f := range exps.Fields {
					exp, err := x.experiment("experiment", component, f.Key, f.Value, root)
					if err != nil {
						errs = append(errs, err)
						continue
					}
					out.Experiments = append(out.Experiments, exp)
				}
			}
		}
		if tests := ns.Get(TestsKey); tests != nil {
			if tests.Kind != Object {
				errs = append(errs, x.errorf(root, "%s.%s must be an object of named tests", x.Namespace, TestsKey))
			} else {
				for _, f := range tests.Fields {
					tc, tcErrs := x.testCase(component, f.Key, f.Value, root)
					if len(tcErrs) > 0 {
						errs = append(errs, tcErrs...)
						continue
					}
					out.Tests = append(out.Tests, tc)
				}
			}
		}
	}
	for _, a := range annotated {
		if rec := x.diagram(a); rec != nil {
			out.Diagrams = append(out.Diagrams, rec)
		}
	}
	return out, errs
}

// diagram strips the reserved keys and returns what is left, if anything.
func (x *Extractor) diagram(a *Annotation) *DiagramRecord {
	if a == nil || a.Meta == nil || a.Meta.Kind != Object {
		return nil
	}
	rest := NewObject()
	for _, f := range a.Meta.Fields {
		if f.Key != x.Namespace || f.Value.Kind != Object {
			rest.Fields = append(rest.Fields, f)
			continue
		}
		if trimmed := f.Value.Without(ExperimentsKey, TestsKey); !trimmed.IsEmpty() {
			rest.Fields = append(rest.Fields, &Field{Key: f.Key, Value: trimmed})
		}
	}
	if rest.IsEmpty() {
		return nil
	}
	return &DiagramRecord{Path: a.Path, Data: rest}
}

func (x *Extractor) errorf(a *Annotation, format string, args ...any) *diag.Diagnostic {
	return diag.Errorf(diag.MetadataError, a.File, a.Line, a.Col, format, args...)
}

func (x *Extractor) experiment(label, component, name string, v *Value, a *Annotation) (*Experiment, *diag.Diagnostic) {
	if v.Kind != Object {
		return nil, x.errorf(a, "%s %q must be an object", label, name)
	}
	exp := &Experiment{Name: name, Component: component}
	if err := x.timeSpan(v, &exp.Start, &exp.Stop); err != "" {
		return nil, x.errorf(a, "%s %q: %s", label, name, err)
	}
	initial, err := overrides(v.Get("initial"))
	if err != "" {
		return nil, x.errorf(a, "%s %q: %s", label, name, err)
	}
	exp.Initial = initial
	return exp, nil
}

func (x *Extractor) testCase(component, name string, v *Value, a *Annotation) (*TestCase, diag.List) {
	if v.Kind != Object {
		return nil, diag.List{x.errorf(a, "test %q must be an object", name)}
	}
	exp, d := x.experiment("test", component, name, v, a)
	if d != nil {
		return nil, diag.List{d}
	}
	tc := &TestCase{Experiment: *exp, Tolerance: DefaultTolerance}
	if atol := v.Get("atol"); atol != nil {
		f, ok := atol.Float()
		if !ok || f < 0 {
			return nil, diag.List{x.errorf(a, "test %q: atol must be a non-negative number", name)}
		}
		tc.Tolerance = f
	}
	expect := v.Get("expect")
	if expect == nil {
		return nil, diag.List{x.errorf(a, "test %q has no expect block", name)}
	}
	if expect.Kind != Object {
		return nil, diag.List{x.errorf(a, "test %q: expect must be an object", name)}
	}
	var errs diag.List
	for _, f := range expect.Fields {
		if f.Key != SampleInitial && f.Key != SampleFinal {
			errs = append(errs, x.errorf(a, "test %q: unknown expect key %q (want initial or final)", name, f.Key))
			continue
		}
		if f.Value.Kind != Object {
			errs = append(errs, x.errorf(a, "test %q: expect.%s must map paths to values", name, f.Key))
			continue
		}
		for _, c := range f.Value.Fields {
			check := Check{Path: c.Key, Sample: f.Key, Tolerance: tc.Tolerance}
			if n, ok := c.Value.Float(); ok {
				check.Expected = n
			} else if c.Value.Kind == Object {
				n, ok := c.Value.Get("value").Float()
				if !ok {
					errs = append(errs, x.errorf(a, "test %q: expect.%s.%s needs a numeric value", name, f.Key, c.Key))
					continue
				}
				check.Expected = n
				if atol := c.Value.Get("atol"); atol != nil {
					if check.Tolerance, ok = atol.Float(); !ok || check.Tolerance < 0 {
						errs = append(errs, x.errorf(a, "test %q: expect.%s.%s.atol must be a non-negative number", name, f.Key, c.Key))
						continue
					}
				}
			} else {
				errs = append(errs, x.errorf(a, "test %q: expect.%s.%s must be a number or {\"value\", \"atol\"}", name, f.Key, c.Key))
				continue
			}
			tc.Checks = append(tc.Checks, check)
		}
	}
	if len(errs) > 0 {
		return nil, errs
	}
	return tc, nil
}

func (x *Extractor) timeSpan(v *Value, start, stop *float64) string {
	if s := v.Get("start"); s != nil {
		f, ok := s.Float()
		if !ok {
			return "start must be a number"
		}
		*start = f
	}
	s := v.Get("stop")
	if s == nil {
		return "stop is required"
	}
	f, ok := s.Float()
	if !ok {
		return "stop must be a number"
	}
	if f <= *start {
		return fmt.Sprintf("stop (%g) must be after start (%g)", f, *start)
	}
	*stop = f
	return ""
}

func overrides(v *Value) ([]Override, string) {
	if v == nil {
		return nil, ""
	}
	if v.Kind != Object {
		return nil, "initial must map paths to numbers"
	}
	var out []Override
	for _, f := range v.Fields {
		n, ok := f.Value.Float()
		if !ok {
			return nil, fmt.Sprintf("initial value for %q must be a number", f.Key)
		}
		out = append(out, Override{Path: f.Key, Value: n})
	}
	return out, ""
}
