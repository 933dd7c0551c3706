package commands

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"
)

func newCheckCmd(o *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "check <file.jsml...>",
		Short: "Parses, resolves and expands connections without emitting",
		Long: `The check command loads each file with its imports, resolves every component,
checks units and connector compatibility and expands connect() statements.  Nothing
is written; diagnostics go to stderr.`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			opts, err := o.compilerOptions()
			if err != nil {
				return err
			}
			failed := 0
			for _, path := range args {
				res, err := o.run(cmd, path, opts, false)
				if errors.Is(err, errFailed) {
					failed++
					continue
				} else if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "ok   %s (%d components, %d warnings)\n",
					path, len(res.Components), len(res.Diagnostics.Warnings()))
			}
			if failed > 0 {
				return fmt.Errorf("%d of %d files failed", failed, len(args))
			}
			return nil
		},
	}
}
