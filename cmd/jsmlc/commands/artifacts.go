package commands

import (
	"github.com/spf13/cobra"
)

func newArtifactsCmd(o *rootOptions) *cobra.Command {
	var output, format string
	cmd := &cobra.Command{
		Use:   "artifacts <file.jsml>",
		Short: "Extracts experiments, tests and diagram data from model metadata",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			res, err := o.compile(cmd, args[0])
			if err != nil {
				return err
			}
			return encodeTo(cmd, output, format, res.Artifacts)
		},
	}
	cmd.Flags().StringVarP(&output, "output", "o", "", "Output file (default stdout)")
	cmd.Flags().StringVar(&format, "format", "json", "Output format: json or yaml")
	return cmd
}
