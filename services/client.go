package services

import (
	"context"

	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/protobuf/types/known/structpb"
)

// CompilerClient calls a remote CompilerService.
type CompilerClient struct {
	cc grpc.ClientConnInterface
}

func NewCompilerClient(cc grpc.ClientConnInterface) *CompilerClient {
	return &CompilerClient{cc: cc}
}

// Dial connects to addr without transport security.
func Dial(addr string, opts ...grpc.DialOption) (*grpc.ClientConn, error) {
	opts = append([]grpc.DialOption{grpc.WithTransportCredentials(insecure.NewCredentials())}, opts...)
	return grpc.NewClient(addr, opts...)
}

func (c *CompilerClient) Compile(ctx context.Context, in *structpb.Struct, opts ...grpc.CallOption) (*structpb.Struct, error) {
	out := new(structpb.Struct)
	if err := c.cc.Invoke(ctx, "/"+compilerServiceName+"/Compile", in, out, opts...); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *CompilerClient) Check(ctx context.Context, in *structpb.Struct, opts ...grpc.CallOption) (*structpb.Struct, error) {
	out := new(structpb.Struct)
	if err := c.cc.Invoke(ctx, "/"+compilerServiceName+"/Check", in, out, opts...); err != nil {
		return nil, err
	}
	return out, nil
}

// Request builds a request struct for sources keyed by path.  Overrides map instance
// paths to JSML expressions.
func Request(root string, files map[string]string, overrides map[string]string) (*structpb.Struct, error) {
	req := map[string]any{"root": root}
	fs := make(map[string]any, len(files))
	for k, v := range files {
		fs[k] = v
	}
	req["files"] = fs
	if len(overrides) > 0 {
		ov := make(map[string]any, len(overrides))
		for k, v := range overrides {
			ov[k] = v
		}
		req["overrides"] = ov
	}
	return structpb.NewStruct(req)
}

// AddLibraries sets the libraries field of req: library name to {path: source}.
func AddLibraries(req *structpb.Struct, libs map[string]map[string]string) error {
	if len(libs) == 0 {
		return nil
	}
	out := make(map[string]any, len(libs))
	for name, files := range libs {
		fs := make(map[string]any, len(files))
		for k, v := range files {
			fs[k] = v
		}
		out[name] = fs
	}
	v, err := structpb.NewValue(out)
	if err != nil {
		return err
	}
	req.Fields["libraries"] = v
	return nil
}
