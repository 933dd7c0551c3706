package metadata

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"

	"github.com/panyam/jsmlc/diag"
)

func num(t *testing.T, text string) *Value {
	v, err := NewNumberText(text)
	require.NoError(t, err)
	return v
}

func obj(kv ...any) *Value {
	out := NewObject()
	for i := 0; i < len(kv); i += 2 {
		out.Fields = append(out.Fields, &Field{Key: kv[i].(string), Value: kv[i+1].(*Value)})
	}
	return out
}

func TestValueOrderAndText(t *testing.T) {
	v := obj("z", num(t, "1.50"), "a", NewList(NewBool(true), NewNull(), NewString("x")))
	assert.Equal(t, `{"z": 1.50, "a": [true, null, "x"]}`, v.String())

	b, err := json.Marshal(v)
	require.NoError(t, err)
	assert.Equal(t, `{"z":1.50,"a":[true,null,"x"]}`, string(b))

	y, err := yaml.Marshal(v)
	require.NoError(t, err)
	assert.Equal(t, "z: 1.50\na:\n    - true\n    - null\n    - x\n", string(y))
}

func TestValueLookupAndProto(t *testing.T) {
	v := obj("JSML", obj("placement", obj("x", num(t, "10"))))
	x, ok := v.Lookup("JSML", "placement", "x").Float()
	assert.True(t, ok)
	assert.Equal(t, 10.0, x)
	assert.Nil(t, v.Lookup("JSML", "missing", "x"))

	pb := v.ToProto()
	assert.Equal(t, 10.0, pb.GetStructValue().Fields["JSML"].GetStructValue().Fields["placement"].GetStructValue().Fields["x"].GetNumberValue())
}

func TestFromAny(t *testing.T) {
	var data any
	require.NoError(t, json.Unmarshal([]byte(`{"b": [1, "s"], "a": null}`), &data))
	v, err := FromAny(data)
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "b"}, v.Keys())
	assert.Equal(t, `{"a": null, "b": [1, "s"]}`, v.String())

	var back Value
	require.NoError(t, json.Unmarshal([]byte(`{"z": true, "y": {"x": 2}}`), &back))
	assert.Equal(t, []string{"y", "z"}, back.Keys())
	assert.Equal(t, `{"y": {"x": 2}, "z": true}`, back.String())
}

func rlcMeta(t *testing.T) *Value {
	return obj("JSML", obj(
		"experiments", obj("step", obj("start", num(t, "0"), "stop", num(t, "10"), "initial", obj("capacitor.v", num(t, "1")))),
		"tests", obj("decay", obj(
			"stop", num(t, "5"),
			"atol", num(t, "0.01"),
			"expect", obj(
				"initial", obj("capacitor.v", num(t, "0")),
				"final", obj("t", num(t, "5"), "inductor.i", obj("value", num(t, "0.2"), "atol", num(t, "0.1"))),
			),
		)),
		"icon", NewString("rlc.svg"),
	))
}

func TestExtractExperimentsAndTests(t *testing.T) {
	root := &Annotation{Path: "RLCModel", File: "rlc.jsml", Line: 30, Col: 1, Meta: rlcMeta(t)}
	x := &Extractor{Namespace: "JSML"}
	arts, errs := x.Extract("RLCModel", root, []*Annotation{root})
	require.Empty(t, errs)

	require.Len(t, arts.Experiments, 1)
	exp := arts.Experiments[0]
	assert.Equal(t, "step", exp.Name)
	assert.Equal(t, "RLCModel", exp.Component)
	assert.Equal(t, 10.0, exp.Stop)
	assert.Equal(t, []Override{{Path: "capacitor.v", Value: 1}}, exp.Initial)

	require.Len(t, arts.Tests, 1)
	tc := arts.Tests[0]
	assert.Equal(t, 0.01, tc.Tolerance)
	assert.Equal(t, []Check{
		{Path: "capacitor.v", Expected: 0, Tolerance: 0.01, Sample: SampleInitial},
		{Path: "t", Expected: 5, Tolerance: 0.01, Sample: SampleFinal},
		{Path: "inductor.i", Expected: 0.2, Tolerance: 0.1, Sample: SampleFinal},
	}, tc.Checks)

	// only the non reserved keys are passed on
	require.Len(t, arts.Diagrams, 1)
	assert.Equal(t, `{"JSML": {"icon": "rlc.svg"}}`, arts.Diagrams[0].Data.String())
	// and the source tree is untouched
	assert.NotNil(t, root.Meta.Lookup("JSML", "experiments"))

	assert.Equal(t, []string{"capacitor.v", "t", "inductor.i"}, arts.Paths())
}

func TestExtractMalformed(t *testing.T) {
	tests := []struct {
		name     string
		meta     *Value
		contains string
	}{
		{"missing stop", obj("JSML", obj("experiments", obj("e", obj("start", num(t, "0"))))), "stop is required"},
		{"stop before start", obj("JSML", obj("experiments", obj("e", obj("start", num(t, "5"), "stop", num(t, "1"))))), "must be after start"},
		{"experiments not object", obj("JSML", obj("experiments", NewList())), "must be an object"},
		{"test without expect", obj("JSML", obj("tests", obj("t1", obj("stop", num(t, "1"))))), "no expect block"},
		{"bad expect key", obj("JSML", obj("tests", obj("t1", obj("stop", num(t, "1"), "expect", obj("middle", obj()))))), "unknown expect key"},
		{"bad initial", obj("JSML", obj("tests", obj("t1", obj("stop", num(t, "1"), "initial", obj("x", NewString("one")), "expect", obj())))), "must be a number"},
		{"negative test atol", obj("JSML", obj("tests", obj("t1", obj("stop", num(t, "1"), "atol", num(t, "-1"), "expect", obj())))), "atol must be a non-negative number"},
		{"negative check atol", obj("JSML", obj("tests", obj("t1", obj("stop", num(t, "1"),
			"expect", obj("final", obj("x", obj("value", num(t, "1"), "atol", num(t, "-0.5")))))))), "expect.final.x.atol must be a non-negative number"},
		{"string check atol", obj("JSML", obj("tests", obj("t1", obj("stop", num(t, "1"),
			"expect", obj("final", obj("x", obj("value", num(t, "1"), "atol", NewString("tight")))))))), "expect.final.x.atol must be a non-negative number"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			root := &Annotation{Path: "M", Meta: tt.meta}
			_, errs := (&Extractor{Namespace: "JSML"}).Extract("M", root, nil)
			require.NotEmpty(t, errs)
			assert.Equal(t, diag.MetadataError, errs[0].Kind)
			assert.Contains(t, errs[0].Message, tt.contains)
		})
	}
}

func TestDiagramOnlyNamespace(t *testing.T) {
	a := &Annotation{Path: "M.resistor", Meta: obj("JSML", obj("tests", obj()))}
	arts, errs := (&Extractor{Namespace: "JSML"}).Extract("M", nil, []*Annotation{a})
	assert.Empty(t, errs)
	assert.Empty(t, arts.Diagrams)
}
