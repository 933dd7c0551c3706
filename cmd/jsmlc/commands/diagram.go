package commands

import (
	"io"
	"strings"

	"github.com/spf13/cobra"

	"github.com/panyam/jsmlc/compiler"
	"github.com/panyam/jsmlc/ir"
	"github.com/panyam/jsmlc/metadata"
	"github.com/panyam/jsmlc/viz"
)

func newDiagramCmd(o *rootOptions) *cobra.Command {
	var output, format string
	cmd := &cobra.Command{
		Use:   "diagram <file.jsml>",
		Short: "Describes the instance and connection graph of a model",
		Long: `Compiles the model and prints its instances and connection sets as a graph
for Graphviz (dot) or Mermaid.  Instance positions are taken from diagram placement
metadata when present.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			gen, err := viz.NewGenerator(format)
			if err != nil {
				return err
			}
			res, err := o.compile(cmd, args[0])
			if err != nil {
				return err
			}
			return writeDiagram(cmd, output, gen, res.System, res.Artifacts, o.namespace)
		},
	}
	cmd.Flags().StringVarP(&output, "output", "o", "", "Output file (default stdout)")
	cmd.Flags().StringVar(&format, "format", "dot", "Diagram format: "+strings.Join(viz.Formats, " or "))
	return cmd
}

func writeDiagram(cmd *cobra.Command, output string, gen viz.StaticDiagramGenerator, sys *ir.EquationSystem, arts *metadata.Artifacts, namespace string) error {
	if namespace == "" {
		namespace = compiler.DefaultNamespace
	}
	nodes, edges := viz.Graph(sys, arts, namespace)
	text, err := gen.Generate(sys.Component, nodes, edges)
	if err != nil {
		return err
	}
	return writeOutput(cmd, output, func(w io.Writer) error {
		_, err := io.WriteString(w, text)
		return err
	})
}
