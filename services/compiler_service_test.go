package services

import (
	"context"
	"net"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"google.golang.org/grpc/test/bufconn"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/panyam/jsmlc/compiler"
)

const lib = `type Voltage = Real(units="V")
type Current = Real(units="A")
type Resistance = Real(units="Ω", min=0)

connector Pin
  potential v::Voltage
  flow i::Current
end

component Resistor
  p = Pin()
  n = Pin()
  parameter R::Resistance = 1
relations
  p.v - n.v = R * p.i
  p.i + n.i = 0
end

component Source
  p = Pin()
  n = Pin()
  parameter V::Voltage = 1
relations
  p.v - n.v = V
  p.i + n.i = 0
end

component Ground
  g = Pin()
relations
  g.v = 0
end
`

const model = `import "lib.jsml"

component Divider
  src = Source(V=12)
  top = Resistor(R=100)
  bottom = Resistor(R=200)
  gnd = Ground()
relations
  connect(src.p, top.p)
  connect(top.n, bottom.p)
  connect(bottom.n, src.n, gnd.g)
end
`

// startServer serves the compiler service over an in-memory listener.
func startServer(t *testing.T) *CompilerClient {
	t.Helper()
	lis := bufconn.Listen(1 << 20)
	ctx, cancel := context.WithCancel(context.Background())
	s := &Server{Defaults: compiler.Options{Parallelism: 2}}
	done := make(chan error, 1)
	go func() { done <- s.Serve(ctx, lis) }()

	conn, err := Dial("passthrough:///bufnet", grpc.WithContextDialer(func(ctx context.Context, _ string) (net.Conn, error) {
		return lis.DialContext(ctx)
	}))
	require.NoError(t, err)
	t.Cleanup(func() {
		conn.Close()
		cancel()
		assert.NoError(t, <-done)
	})
	return NewCompilerClient(conn)
}

func divider(t *testing.T, overrides map[string]string) *structpb.Struct {
	t.Helper()
	req, err := Request("divider.jsml", map[string]string{"lib.jsml": lib, "divider.jsml": model}, overrides)
	require.NoError(t, err)
	return req
}

func parameter(resp *structpb.Struct, path string) *structpb.Struct {
	params := resp.Fields["system"].GetStructValue().Fields["parameters"].GetListValue()
	for _, p := range params.GetValues() {
		if p.GetStructValue().Fields["path"].GetStringValue() == path {
			return p.GetStructValue()
		}
	}
	return nil
}

func TestCompileOverGRPC(t *testing.T) {
	client := startServer(t)
	resp, err := client.Compile(context.Background(), divider(t, map[string]string{"top.R": "2 * 25"}))
	require.NoError(t, err)

	assert.True(t, resp.Fields["ok"].GetBoolValue())
	assert.Equal(t, "Divider", resp.Fields["component"].GetStringValue())
	assert.Empty(t, resp.Fields["diagnostics"].GetListValue().GetValues())

	stats := resp.Fields["stats"].GetStructValue().Fields
	assert.Equal(t, 14.0, stats["variables"].GetNumberValue())
	assert.Equal(t, 14.0, stats["equations"].GetNumberValue())

	top := parameter(resp, "top.R")
	require.NotNil(t, top)
	assert.Equal(t, 50.0, top.Fields["value"].GetNumberValue())
	assert.Equal(t, 200.0, parameter(resp, "bottom.R").Fields["value"].GetNumberValue())
}

func TestCompileReportsDiagnostics(t *testing.T) {
	client := startServer(t)
	req, err := Request("bad.jsml", map[string]string{
		"lib.jsml": lib,
		"bad.jsml": "import \"lib.jsml\"\n\ncomponent Bad\n  r = Resistor()\nrelations\n  r.p.v = q\nend\n",
	}, nil)
	require.NoError(t, err)

	resp, err := client.Compile(context.Background(), req)
	require.NoError(t, err)
	assert.False(t, resp.Fields["ok"].GetBoolValue())
	assert.Nil(t, resp.Fields["system"])

	diags := resp.Fields["diagnostics"].GetListValue().GetValues()
	require.NotEmpty(t, diags)
	first := diags[0].GetStructValue().Fields
	assert.Equal(t, "UnresolvedReferenceError", first["kind"].GetStringValue())
	assert.Equal(t, "bad.jsml", first["file"].GetStringValue())
	assert.Equal(t, 6.0, first["line"].GetNumberValue())
}

func TestCheckOverGRPC(t *testing.T) {
	client := startServer(t)
	resp, err := client.Check(context.Background(), divider(t, nil))
	require.NoError(t, err)
	assert.True(t, resp.Fields["ok"].GetBoolValue())
	assert.Nil(t, resp.Fields["system"])

	var names []string
	for _, v := range resp.Fields["components"].GetListValue().GetValues() {
		names = append(names, v.GetStringValue())
	}
	assert.Equal(t, []string{"Divider", "Ground", "Resistor", "Source"}, names)
}

func TestInvalidRequests(t *testing.T) {
	client := startServer(t)
	tests := []struct {
		name string
		req  map[string]any
		want string
	}{
		{"no files", map[string]any{"root": "a.jsml"}, "files must map"},
		{"missing root", map[string]any{"root": "b.jsml", "files": map[string]any{"a.jsml": ""}}, "not among the files"},
		{"ambiguous root", map[string]any{"files": map[string]any{"a.jsml": "", "b.jsml": ""}}, "root is required"},
		{"file not a string", map[string]any{"files": map[string]any{"a.jsml": 3}}, "must be a string"},
		{"bad override", map[string]any{
			"files":     map[string]any{"a.jsml": ""},
			"overrides": map[string]any{"r.R": "1 +"},
		}, "overrides[\"r.R\"]"},
		{"library not a map", map[string]any{
			"files":     map[string]any{"a.jsml": ""},
			"libraries": map[string]any{"std": "x"},
		}, "libraries[\"std\"] must map paths"},
		{"library name with slash", map[string]any{
			"files":     map[string]any{"a.jsml": ""},
			"libraries": map[string]any{"std/x": map[string]any{}},
		}, "must map paths"},
		{"library file not a string", map[string]any{
			"files":     map[string]any{"a.jsml": ""},
			"libraries": map[string]any{"std": map[string]any{"units.jsml": true}},
		}, "libraries[\"std\"][\"units.jsml\"] must be a string"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req, err := structpb.NewStruct(tt.req)
			require.NoError(t, err)
			_, err = client.Compile(context.Background(), req)
			require.Error(t, err)
			st, ok := status.FromError(err)
			require.True(t, ok)
			assert.Equal(t, codes.InvalidArgument, st.Code())
			assert.Contains(t, st.Message(), tt.want)
		})
	}
}

func TestCompileCancelled(t *testing.T) {
	svc := NewCompilerService(compiler.Options{})
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := svc.Compile(ctx, divider(t, nil))
	require.Error(t, err)
	assert.Equal(t, codes.Canceled, status.Code(err))
}

func TestCompileWithLibraries(t *testing.T) {
	client := startServer(t)
	divider := strings.Replace(model, `import "lib.jsml"`, `import "electrical/lib.jsml"`, 1)
	req, err := Request("models/divider.jsml", map[string]string{"models/divider.jsml": divider}, nil)
	require.NoError(t, err)

	resp, err := client.Compile(context.Background(), req)
	require.NoError(t, err)
	assert.False(t, resp.Fields["ok"].GetBoolValue())

	require.NoError(t, AddLibraries(req, map[string]map[string]string{"electrical": {"lib.jsml": lib}}))
	resp, err = client.Compile(context.Background(), req)
	require.NoError(t, err)
	assert.True(t, resp.Fields["ok"].GetBoolValue())
	assert.Equal(t, 200.0, parameter(resp, "bottom.R").Fields["value"].GetNumberValue())
}

func TestServeListenerError(t *testing.T) {
	lis := bufconn.Listen(1 << 10)
	require.NoError(t, lis.Close())
	err := (&Server{}).Serve(context.Background(), lis)
	assert.ErrorContains(t, err, "grpc server failed to serve")
}
