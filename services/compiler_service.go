package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"strings"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/encoding/protojson"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/panyam/jsmlc/compiler"
	"github.com/panyam/jsmlc/decl"
	"github.com/panyam/jsmlc/diag"
	"github.com/panyam/jsmlc/ir"
	"github.com/panyam/jsmlc/loader"
	"github.com/panyam/jsmlc/metadata"
	"github.com/panyam/jsmlc/parser"
)

// CompilerServiceServer compiles JSML sources sent over the wire.  Requests and responses
// are google.protobuf.Struct messages:
//
//	request:  {files: {path: source}, root: path, component, namespace, parallelism,
//	           overrides: {path: number | expression},
//	           libraries: {name: {path: source}}}
//	response: {ok, component, stats, system, artifacts, diagnostics: [...]}
//
// A failed compile is still a successful call; ok is false and diagnostics say why.
type CompilerServiceServer interface {
	Compile(context.Context, *structpb.Struct) (*structpb.Struct, error)
	Check(context.Context, *structpb.Struct) (*structpb.Struct, error)
}

const compilerServiceName = "jsml.v1.CompilerService"

var CompilerService_ServiceDesc = grpc.ServiceDesc{
	ServiceName: compilerServiceName,
	HandlerType: (*CompilerServiceServer)(nil),
	Methods: []grpc.MethodDesc{
		{MethodName: "Compile", Handler: compileHandler},
		{MethodName: "Check", Handler: checkHandler},
	},
	Streams: []grpc.StreamDesc{},
}

func RegisterCompilerServiceServer(s grpc.ServiceRegistrar, srv CompilerServiceServer) {
	s.RegisterService(&CompilerService_ServiceDesc, srv)
}

type unaryMethod func(CompilerServiceServer, context.Context, *structpb.Struct) (*structpb.Struct, error)

func unaryHandler(name string, call unaryMethod) func(any, context.Context, func(any) error, grpc.UnaryServerInterceptor) (any, error) {
	return func(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
		in := new(structpb.Struct)
		if err := dec(in); err != nil {
			return nil, err
		}
		if interceptor == nil {
			return call(srv.(CompilerServiceServer), ctx, in)
		}
		info := &grpc.UnaryServerInfo{Server: srv, FullMethod: "/" + compilerServiceName + "/" + name}
		handler := func(ctx context.Context, req any) (any, error) {
			return call(srv.(CompilerServiceServer), ctx, req.(*structpb.Struct))
		}
		return interceptor(ctx, in, info, handler)
	}
}

var (
	compileHandler = unaryHandler("Compile", CompilerServiceServer.Compile)
	checkHandler   = unaryHandler("Check", CompilerServiceServer.Check)
)

// CompilerService is the CompilerServiceServer backed by an in-memory loader per request.
type CompilerService struct {
	// Applied when a request leaves namespace or parallelism unset
	Defaults compiler.Options
}

func NewCompilerService(defaults compiler.Options) *CompilerService {
	return &CompilerService{Defaults: defaults}
}

// compileRequest is the decoded request struct.
type compileRequest struct {
	Files     map[string]string
	Libraries []loader.Library
	Root      string
	Options   compiler.Options
}

func (s *CompilerService) Compile(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	return s.run(ctx, req, true)
}

func (s *CompilerService) Check(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	return s.run(ctx, req, false)
}

func (s *CompilerService) run(ctx context.Context, req *structpb.Struct, emit bool) (*structpb.Struct, error) {
	in, err := s.decodeRequest(req)
	if err != nil {
		return nil, status.Error(codes.InvalidArgument, err.Error())
	}
	slog.Info("Compile request", "component", "services", "root", in.Root, "files", len(in.Files), "libraries", len(in.Libraries), "emit", emit)

	c := compiler.New(loader.NewMemoryLoader(in.Files, in.Libraries...), in.Options)
	var res *compiler.Result
	if emit {
		res, err = c.Compile(ctx, in.Root)
	} else {
		res, err = c.Check(ctx, in.Root)
	}
	if err != nil {
		var list diag.List
		if !errors.As(err, &list) {
			if st := status.FromContextError(err); st.Code() != codes.Unknown {
				return nil, st.Err()
			}
			return nil, status.Error(codes.Internal, err.Error())
		}
	}
	return encodeResult(res, err == nil)
}

func (s *CompilerService) decodeRequest(req *structpb.Struct) (*compileRequest, error) {
	fields := req.GetFields()
	out := &compileRequest{Files: map[string]string{}, Options: s.Defaults}

	files := fields["files"].GetStructValue()
	if len(files.GetFields()) == 0 {
		return nil, fmt.Errorf("files must map at least one path to its source")
	}
	for path, v := range files.GetFields() {
		src, ok := v.GetKind().(*structpb.Value_StringValue)
		if !ok {
			return nil, fmt.Errorf("files[%q] must be a string", path)
		}
		out.Files[path] = src.StringValue
	}

	libs, err := decodeLibraries(fields["libraries"].GetStructValue())
	if err != nil {
		return nil, err
	}
	out.Libraries = libs

	out.Root = fields["root"].GetStringValue()
	if out.Root == "" {
		if len(out.Files) != 1 {
			return nil, fmt.Errorf("root is required when more than one file is sent")
		}
		for path := range out.Files {
			out.Root = path
		}
	}
	if _, ok := out.Files[out.Root]; !ok {
		return nil, fmt.Errorf("root %q is not among the files", out.Root)
	}

	if v := fields["component"].GetStringValue(); v != "" {
		out.Options.Root = v
	}
	if v := fields["namespace"].GetStringValue(); v != "" {
		out.Options.Namespace = v
	}
	if v, ok := fields["parallelism"]; ok {
		out.Options.Parallelism = int(v.GetNumberValue())
	}

	overrides := fields["overrides"].GetStructValue().GetFields()
	if len(overrides) > 0 {
		out.Options.Overrides = make(map[string]decl.Expr, len(overrides))
	}
	for path, v := range overrides {
		switch k := v.GetKind().(type) {
		case *structpb.Value_NumberValue:
			out.Options.Overrides[path] = decl.NewNumber(k.NumberValue)
		case *structpb.Value_BoolValue:
			out.Options.Overrides[path] = &decl.BoolLiteral{Value: k.BoolValue}
		case *structpb.Value_StringValue:
			e, err := parser.ParseExpression(k.StringValue)
			if err != nil {
				return nil, fmt.Errorf("overrides[%q]: %w", path, err)
			}
			out.Options.Overrides[path] = e
		default:
			return nil, fmt.Errorf("overrides[%q] must be a number, bool or expression string", path)
		}
	}
	return out, nil
}

// decodeLibraries turns {name: {path: source}} into in-memory libraries, sorted by name.
func decodeLibraries(libs *structpb.Struct) ([]loader.Library, error) {
	names := make([]string, 0, len(libs.GetFields()))
	for name := range libs.GetFields() {
		names = append(names, name)
	}
	sort.Strings(names)

	var out []loader.Library
	for _, name := range names {
		files, ok := libs.GetFields()[name].GetKind().(*structpb.Value_StructValue)
		if !ok || name == "" || strings.ContainsAny(name, `/\`) {
			return nil, fmt.Errorf("libraries[%q] must map paths to sources", name)
		}
		fs := loader.NewMemoryFS()
		for path, v := range files.StructValue.GetFields() {
			src, ok := v.GetKind().(*structpb.Value_StringValue)
			if !ok {
				return nil, fmt.Errorf("libraries[%q][%q] must be a string", name, path)
			}
			if err := fs.WriteFile(path, []byte(src.StringValue)); err != nil {
				return nil, err
			}
		}
		out = append(out, loader.Library{Name: name, FS: fs})
	}
	return out, nil
}

// compileResponse mirrors the response struct; it is encoded to JSON and read back as a
// google.protobuf.Struct.
type compileResponse struct {
	OK          bool                `json:"ok"`
	Component   string              `json:"component,omitempty"`
	Components  []string            `json:"components,omitempty"`
	Stats       *ir.Stats           `json:"stats,omitempty"`
	System      *ir.EquationSystem  `json:"system,omitempty"`
	Artifacts   *metadata.Artifacts `json:"artifacts,omitempty"`
	Diagnostics diag.List           `json:"diagnostics"`
}

func encodeResult(res *compiler.Result, ok bool) (*structpb.Struct, error) {
	resp := compileResponse{OK: ok, Diagnostics: res.Diagnostics}
	if resp.Diagnostics == nil {
		resp.Diagnostics = diag.List{}
	}
	if res.Root != nil {
		resp.Component = res.Root.Name()
	}
	for cd := range res.Components {
		resp.Components = append(resp.Components, cd.Name())
	}
	sort.Strings(resp.Components)
	if res.System != nil && ok {
		stats := res.System.Stats()
		resp.Stats = &stats
		resp.System = res.System
		resp.Artifacts = res.Artifacts
	}

	data, err := json.Marshal(resp)
	if err != nil {
		return nil, status.Error(codes.Internal, err.Error())
	}
	out := &structpb.Struct{}
	if err := protojson.Unmarshal(data, out); err != nil {
		return nil, status.Error(codes.Internal, err.Error())
	}
	return out, nil
}
