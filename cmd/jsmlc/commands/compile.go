package commands

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"
	"google.golang.org/protobuf/encoding/protojson"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/panyam/jsmlc/diag"
	"github.com/panyam/jsmlc/ir"
	"github.com/panyam/jsmlc/loader"
	"github.com/panyam/jsmlc/services"
)

func newCompileCmd(o *rootOptions) *cobra.Command {
	var output, format, artifacts, server string
	cmd := &cobra.Command{
		Use:   "compile <file.jsml>",
		Short: "Compiles a model into its flattened equation system",
		Long: `Compiles the root component of a JSML file (or the one named with --component)
and writes the equation system as JSON or YAML.  With --server the file and its
imports are sent to a running 'jsmlc serve' instead of being compiled locally.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if server != "" {
				return o.compileRemote(cmd, server, args[0], output, format)
			}
			res, err := o.compile(cmd, args[0])
			if err != nil {
				return err
			}
			if artifacts != "" {
				if err := encodeTo(cmd, artifacts, format, res.Artifacts); err != nil {
					return err
				}
			}
			return encodeTo(cmd, output, format, res.System)
		},
	}
	cmd.Flags().StringVarP(&output, "output", "o", "", "Output file (default stdout)")
	cmd.Flags().StringVar(&format, "format", "json", "Output format: json or yaml")
	cmd.Flags().StringVar(&artifacts, "artifacts", "", "Also write experiments and tests to this file")
	cmd.Flags().StringVar(&server, "server", "", "Compile on a jsmlc gRPC server at this address")
	return cmd
}

// compileRemote sends the import graph of path to a compile server.  Files read from a
// --lib mount travel as library files so their canonical names survive on the server.
func (o *rootOptions) compileRemote(cmd *cobra.Command, addr, path, output, format string) error {
	libs, err := o.libraries()
	if err != nil {
		return err
	}
	files, err := loader.NewFileLoader(libs...).LoadRootFile(path)
	if err != nil {
		o.report(cmd, diag.From(err))
		return errFailed
	}
	sources := make(map[string]string, len(files.Order))
	libSources := map[string]map[string]string{}
	for _, p := range files.Order {
		if name, rest, ok := loader.SplitLibraryPath(p, libs); ok {
			if libSources[name] == nil {
				libSources[name] = map[string]string{}
			}
			libSources[name][rest] = files.Sources[p]
			continue
		}
		sources[p] = files.Sources[p]
	}
	if _, err := parseOverrides(o.overrides); err != nil {
		return err
	}
	overrides := map[string]string{}
	for _, s := range o.overrides {
		path, expr, _ := splitOverride(s)
		overrides[path] = expr
	}
	req, err := services.Request(files.RootFile.Path, sources, overrides)
	if err != nil {
		return err
	}
	if err := services.AddLibraries(req, libSources); err != nil {
		return err
	}
	if o.component != "" {
		req.Fields["component"] = structpb.NewStringValue(o.component)
	}
	if o.namespace != "" {
		req.Fields["namespace"] = structpb.NewStringValue(o.namespace)
	}

	conn, err := services.Dial(addr)
	if err != nil {
		return err
	}
	defer conn.Close()
	resp, err := services.NewCompilerClient(conn).Compile(commandContext(cmd), req)
	if err != nil {
		return fmt.Errorf("remote compile failed: %w", err)
	}

	var diags diag.List
	if err := decodeField(resp, "diagnostics", &diags); err != nil {
		return err
	}
	o.report(cmd, diags)
	if !resp.Fields["ok"].GetBoolValue() {
		return errFailed
	}
	var sys ir.EquationSystem
	if err := decodeField(resp, "system", &sys); err != nil {
		return err
	}
	return encodeTo(cmd, output, format, &sys)
}

// decodeField reads one field of a response struct into v through its JSON form.
func decodeField(resp *structpb.Struct, name string, v any) error {
	field, ok := resp.Fields[name]
	if !ok {
		return nil
	}
	data, err := protojson.Marshal(field)
	if err != nil {
		return err
	}
	return json.Unmarshal(data, v)
}
