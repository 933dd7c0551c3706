// Package diag defines compiler diagnostics: kinds, severities, source positions and
// instantiation paths, plus a collector and formatting helpers.
package diag

import (
	"encoding/json"
	"fmt"
	"sort"
	"strings"

	"github.com/fatih/color"
)

// Kind tags a diagnostic with its error class.
type Kind string

const (
	SyntaxError                Kind = "SyntaxError"
	DuplicateSymbolError       Kind = "DuplicateSymbolError"
	UnresolvedReferenceError   Kind = "UnresolvedReferenceError"
	UnitMismatchError          Kind = "UnitMismatchError"
	UnknownParameterError      Kind = "UnknownParameterError"
	InterfaceMismatchError     Kind = "InterfaceMismatchError"
	ConnectorTypeMismatchError Kind = "ConnectorTypeMismatchError"
	CyclicDefinitionError      Kind = "CyclicDefinitionError"
	UnconnectedPinError        Kind = "UnconnectedPinError"
	TypeMismatchError          Kind = "TypeMismatchError"
	ConstraintViolationError   Kind = "ConstraintViolationError"
	UnbalancedConnectorError   Kind = "UnbalancedConnectorError"
	MetadataError              Kind = "MetadataError"
	IOError                    Kind = "IOError"
)

type Severity int

const (
	Error Severity = iota
	Warning
)

func (s Severity) String() string {
	if s == Warning {
		return "warning"
	}
	return "error"
}

func (s Severity) MarshalJSON() ([]byte, error) { return json.Marshal(s.String()) }

func (s *Severity) UnmarshalJSON(data []byte) error {
	var text string
	if err := json.Unmarshal(data, &text); err != nil {
		return err
	}
	switch text {
	case "error":
		*s = Error
	case "warning":
		*s = Warning
	default:
		return fmt.Errorf("unknown severity %q", text)
	}
	return nil
}

// Diagnostic is a single compiler message anchored at a source position.
type Diagnostic struct {
	Kind     Kind     `json:"kind"`
	Severity Severity `json:"severity"`
	File     string   `json:"file,omitempty"`
	Line     int      `json:"line,omitempty"`
	Col      int      `json:"col,omitempty"`
	// Instantiation path, eg RLCModel.resistor
	Path     string   `json:"path,omitempty"`
	Message  string   `json:"message"`
	Expected []string `json:"expected,omitempty"`
}

// Errorf creates an error-severity diagnostic.
func Errorf(kind Kind, file string, line, col int, format string, args ...any) *Diagnostic {
	return &Diagnostic{Kind: kind, File: file, Line: line, Col: col, Message: fmt.Sprintf(format, args...)}
}

// Warnf creates a warning-severity diagnostic.
func Warnf(kind Kind, file string, line, col int, format string, args ...any) *Diagnostic {
	d := Errorf(kind, file, line, col, format, args...)
	d.Severity = Warning
	return d
}

func (d *Diagnostic) IsWarning() bool { return d.Severity == Warning }

// WithPath returns a copy of d carrying the given instantiation path.
func (d *Diagnostic) WithPath(path string) *Diagnostic {
	out := *d
	out.Path = path
	return &out
}

// Location renders file:line:col, omitting the parts that are unknown.
func (d *Diagnostic) Location() string {
	loc := d.File
	if loc == "" {
		loc = "<input>"
	}
	if d.Line > 0 {
		loc = fmt.Sprintf("%s:%d:%d", loc, d.Line, d.Col)
	}
	return loc
}

func (d *Diagnostic) Error() string {
	var sb strings.Builder
	sb.WriteString(d.Location())
	sb.WriteString(": ")
	sb.WriteString(string(d.Kind))
	sb.WriteString(": ")
	if d.Path != "" {
		sb.WriteString(d.Path)
		sb.WriteString(": ")
	}
	sb.WriteString(d.Message)
	if len(d.Expected) > 0 {
		sb.WriteString(" (expected one of: ")
		sb.WriteString(strings.Join(d.Expected, ", "))
		sb.WriteString(")")
	}
	return sb.String()
}

// List is an ordered set of diagnostics that is itself an error.
type List []*Diagnostic

func (l List) Error() string {
	return strings.Join(l.Strings(), "\n")
}

func (l List) Strings() []string {
	out := make([]string, len(l))
	for i, d := range l {
		out[i] = d.Error()
	}
	return out
}

// HasErrors reports whether any diagnostic is fatal.
func (l List) HasErrors() bool {
	for _, d := range l {
		if !d.IsWarning() {
			return true
		}
	}
	return false
}

// Errors returns only the fatal diagnostics.
func (l List) Errors() (out List) {
	for _, d := range l {
		if !d.IsWarning() {
			out = append(out, d)
		}
	}
	return
}

// Warnings returns only the warnings.
func (l List) Warnings() (out List) {
	for _, d := range l {
		if d.IsWarning() {
			out = append(out, d)
		}
	}
	return
}

// OfKind filters by kind.
func (l List) OfKind(kind Kind) (out List) {
	for _, d := range l {
		if d.Kind == kind {
			out = append(out, d)
		}
	}
	return
}

// Sort orders by file, then position, keeping insertion order for ties.
func (l List) Sort() {
	sort.SliceStable(l, func(i, j int) bool {
		a, b := l[i], l[j]
		if a.File != b.File {
			return a.File < b.File
		}
		if a.Line != b.Line {
			return a.Line < b.Line
		}
		return a.Col < b.Col
	})
}

// Err returns l as an error when it contains fatal diagnostics, else nil.
func (l List) Err() error {
	if l.HasErrors() {
		return l
	}
	return nil
}

// Collector gathers diagnostics across a stage.
type Collector struct {
	Diagnostics List

	// Max errors before we stop recording
	// 0 => no limit
	MaxErrors int
}

func (c *Collector) HasErrors() bool { return c.Diagnostics.HasErrors() }

// Add records diagnostics.  Returns false once the error cap has been reached.
func (c *Collector) Add(diags ...*Diagnostic) bool {
	for _, d := range diags {
		if d == nil {
			continue
		}
		if c.MaxErrors > 0 && !d.IsWarning() && len(c.Diagnostics.Errors()) >= c.MaxErrors {
			return false
		}
		c.Diagnostics = append(c.Diagnostics, d)
	}
	return true
}

// Errorf records an error and returns false so callers can `return c.Errorf(...)`.
func (c *Collector) Errorf(kind Kind, file string, line, col int, format string, args ...any) bool {
	c.Add(Errorf(kind, file, line, col, format, args...))
	return false
}

// From converts an arbitrary error into diagnostics.  Errors that are already diagnostics
// (or lists of them) are kept as is; anything else becomes an IOError.
func From(err error) List {
	switch e := err.(type) {
	case nil:
		return nil
	case List:
		return e
	case *Diagnostic:
		return List{e}
	}
	return List{&Diagnostic{Kind: IOError, Message: err.Error()}}
}

// Format renders a diagnostic for terminals.  When colored is false the plain Error() text
// is used.
func Format(d *Diagnostic, colored bool) string {
	if !colored {
		return d.Error()
	}
	sev := color.New(color.FgRed, color.Bold)
	if d.IsWarning() {
		sev = color.New(color.FgYellow, color.Bold)
	}
	loc := color.New(color.FgCyan).Sprint(d.Location())
	msg := d.Message
	if d.Path != "" {
		msg = color.New(color.Faint).Sprint(d.Path+": ") + msg
	}
	out := fmt.Sprintf("%s %s %s", loc, sev.Sprintf("%s[%s]:", d.Severity, d.Kind), msg)
	if len(d.Expected) > 0 {
		out += fmt.Sprintf("\n  expected: %s", strings.Join(d.Expected, ", "))
	}
	return out
}

// FormatAll renders each diagnostic on its own line(s).
func FormatAll(diags List, colored bool) string {
	parts := make([]string, len(diags))
	for i, d := range diags {
		parts[i] = Format(d, colored)
	}
	return strings.Join(parts, "\n")
}
