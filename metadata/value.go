// Package metadata holds the free-form metadata trees attached to JSML declarations and
// extracts experiment, test and diagram artifacts from them.
package metadata

import (
	"bytes"
	"encoding/json"
	"fmt"
	"slices"
	"strconv"
	"strings"

	"google.golang.org/protobuf/types/known/structpb"
	"gopkg.in/yaml.v3"
)

type Kind int

const (
	Null Kind = iota
	Bool
	Number
	String
	List
	Object
)

func (k Kind) String() string {
	switch k {
	case Bool:
		return "bool"
	case Number:
		return "number"
	case String:
		return "string"
	case List:
		return "list"
	case Object:
		return "object"
	}
	return "null"
}

// Field is one key of an object, kept in source order.
type Field struct {
	Key   string
	Value *Value
}

// Value is an ordered JSON-like tree.  Numbers keep their source text so they are passed
// through verbatim.
type Value struct {
	Kind   Kind
	Bool   bool
	Num    float64
	Text   string // string contents, or the source text of a number
	Items  []*Value
	Fields []*Field
}

func NewNull() *Value                { return &Value{Kind: Null} }
func NewBool(b bool) *Value          { return &Value{Kind: Bool, Bool: b} }
func NewString(s string) *Value      { return &Value{Kind: String, Text: s} }
func NewList(items ...*Value) *Value { return &Value{Kind: List, Items: items} }

func NewNumber(v float64) *Value {
	return &Value{Kind: Number, Num: v, Text: strconv.FormatFloat(v, 'g', -1, 64)}
}

// NewNumberText parses a numeric literal keeping its text.
func NewNumberText(text string) (*Value, error) {
	v, err := strconv.ParseFloat(text, 64)
	if err != nil {
		return nil, err
	}
	return &Value{Kind: Number, Num: v, Text: text}, nil
}

func NewObject(fields ...*Field) *Value { return &Value{Kind: Object, Fields: fields} }

// Get returns the value of key in an object, or nil.
func (v *Value) Get(key string) *Value {
	if v == nil || v.Kind != Object {
		return nil
	}
	for _, f := range v.Fields {
		if f.Key == key {
			return f.Value
		}
	}
	return nil
}

// Lookup follows a chain of object keys.
func (v *Value) Lookup(keys ...string) *Value {
	out := v
	for _, k := range keys {
		out = out.Get(k)
	}
	return out
}

// Set replaces or appends key in an object.
func (v *Value) Set(key string, val *Value) {
	for _, f := range v.Fields {
		if f.Key == key {
			f.Value = val
			return
		}
	}
	v.Fields = append(v.Fields, &Field{Key: key, Value: val})
}

// Without returns a shallow copy of an object with the given keys removed.
func (v *Value) Without(keys ...string) *Value {
	out := &Value{Kind: Object}
outer:
	for _, f := range v.Fields {
		for _, k := range keys {
			if f.Key == k {
				continue outer
			}
		}
		out.Fields = append(out.Fields, f)
	}
	return out
}

func (v *Value) IsEmpty() bool {
	if v == nil {
		return true
	}
	switch v.Kind {
	case Object:
		return len(v.Fields) == 0
	case List:
		return len(v.Items) == 0
	case Null:
		return true
	}
	return false
}

// Keys of an object in source order.
func (v *Value) Keys() []string {
	if v == nil {
		return nil
	}
	out := make([]string, len(v.Fields))
	for i, f := range v.Fields {
		out[i] = f.Key
	}
	return out
}

// Float returns the numeric value and whether v is a number.
func (v *Value) Float() (float64, bool) {
	if v == nil || v.Kind != Number {
		return 0, false
	}
	return v.Num, true
}

// String renders v as compact JSML/JSON object syntax.
func (v *Value) String() string {
	var sb strings.Builder
	v.write(&sb)
	return sb.String()
}

func (v *Value) write(sb *strings.Builder) {
	if v == nil {
		sb.WriteString("null")
		return
	}
	switch v.Kind {
	case Null:
		sb.WriteString("null")
	case Bool:
		sb.WriteString(strconv.FormatBool(v.Bool))
	case Number:
		sb.WriteString(v.Text)
	case String:
		sb.WriteString(strconv.Quote(v.Text))
	case List:
		sb.WriteString("[")
		for i, item := range v.Items {
			if i > 0 {
				sb.WriteString(", ")
			}
			item.write(sb)
		}
		sb.WriteString("]")
	case Object:
		sb.WriteString("{")
		for i, f := range v.Fields {
			if i > 0 {
				sb.WriteString(", ")
			}
			sb.WriteString(strconv.Quote(f.Key))
			sb.WriteString(": ")
			f.Value.write(sb)
		}
		sb.WriteString("}")
	}
}

// MarshalJSON keeps object key order and number text.
func (v *Value) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	if err := v.writeJSON(&buf); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// UnmarshalJSON reads any JSON value.  Object keys come back sorted.
func (v *Value) UnmarshalJSON(data []byte) error {
	var raw any
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	out, err := FromAny(raw)
	if err != nil {
		return err
	}
	*v = *out
	return nil
}

func (v *Value) writeJSON(buf *bytes.Buffer) error {
	if v == nil {
		buf.WriteString("null")
		return nil
	}
	switch v.Kind {
	case String:
		b, err := json.Marshal(v.Text)
		if err != nil {
			return err
		}
		buf.Write(b)
	case List:
		buf.WriteByte('[')
		for i, item := range v.Items {
			if i > 0 {
				buf.WriteByte(',')
			}
			if err := item.writeJSON(buf); err != nil {
				return err
			}
		}
		buf.WriteByte(']')
	case Object:
		buf.WriteByte('{')
		for i, f := range v.Fields {
			if i > 0 {
				buf.WriteByte(',')
			}
			k, err := json.Marshal(f.Key)
			if err != nil {
				return err
			}
			buf.Write(k)
			buf.WriteByte(':')
			if err := f.Value.writeJSON(buf); err != nil {
				return err
			}
		}
		buf.WriteByte('}')
	default:
		buf.WriteString(v.String())
	}
	return nil
}

// MarshalYAML emits an ordered mapping node.
func (v *Value) MarshalYAML() (any, error) {
	return v.YAMLNode(), nil
}

func (v *Value) YAMLNode() *yaml.Node {
	if v == nil {
		return &yaml.Node{Kind: yaml.ScalarNode, Tag: "!!null", Value: "null"}
	}
	switch v.Kind {
	case Bool:
		return &yaml.Node{Kind: yaml.ScalarNode, Tag: "!!bool", Value: strconv.FormatBool(v.Bool)}
	case Number:
		tag := "!!float"
		if _, err := strconv.ParseInt(v.Text, 10, 64); err == nil {
			tag = "!!int"
		}
		return &yaml.Node{Kind: yaml.ScalarNode, Tag: tag, Value: v.Text}
	case String:
		return &yaml.Node{Kind: yaml.ScalarNode, Tag: "!!str", Value: v.Text}
	case List:
		out := &yaml.Node{Kind: yaml.SequenceNode, Tag: "!!seq"}
		for _, item := range v.Items {
			out.Content = append(out.Content, item.YAMLNode())
		}
		return out
	case Object:
		out := &yaml.Node{Kind: yaml.MappingNode, Tag: "!!map"}
		for _, f := range v.Fields {
			out.Content = append(out.Content, &yaml.Node{Kind: yaml.ScalarNode, Tag: "!!str", Value: f.Key}, f.Value.YAMLNode())
		}
		return out
	}
	return &yaml.Node{Kind: yaml.ScalarNode, Tag: "!!null", Value: "null"}
}

// ToProto converts to a structpb value.  Object key order is lost.
func (v *Value) ToProto() *structpb.Value {
	if v == nil {
		return structpb.NewNullValue()
	}
	switch v.Kind {
	case Bool:
		return structpb.NewBoolValue(v.Bool)
	case Number:
		return structpb.NewNumberValue(v.Num)
	case String:
		return structpb.NewStringValue(v.Text)
	case List:
		items := make([]*structpb.Value, len(v.Items))
		for i, item := range v.Items {
			items[i] = item.ToProto()
		}
		return structpb.NewListValue(&structpb.ListValue{Values: items})
	case Object:
		fields := make(map[string]*structpb.Value, len(v.Fields))
		for _, f := range v.Fields {
			fields[f.Key] = f.Value.ToProto()
		}
		return structpb.NewStructValue(&structpb.Struct{Fields: fields})
	}
	return structpb.NewNullValue()
}

// FromAny converts decoded JSON (or YAML) data into a Value.  Map keys are sorted since Go
// maps carry no order.
func FromAny(data any) (*Value, error) {
	switch d := data.(type) {
	case nil:
		return NewNull(), nil
	case bool:
		return NewBool(d), nil
	case float64:
		return NewNumber(d), nil
	case int:
		return NewNumber(float64(d)), nil
	case int64:
		return NewNumber(float64(d)), nil
	case string:
		return NewString(d), nil
	case []any:
		out := NewList()
		for _, item := range d {
			v, err := FromAny(item)
			if err != nil {
				return nil, err
			}
			out.Items = append(out.Items, v)
		}
		return out, nil
	case map[string]any:
		out := NewObject()
		keys := make([]string, 0, len(d))
		for k := range d {
			keys = append(keys, k)
		}
		slices.Sort(keys)
		for _, k := range keys {
			v, err := FromAny(d[k])
			if err != nil {
				return nil, err
			}
			out.Fields = append(out.Fields, &Field{Key: k, Value: v})
		}
		return out, nil
	}
	return nil, fmt.Errorf("unsupported metadata value of type %T", data)
}
