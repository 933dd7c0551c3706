package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/panyam/jsmlc/decl"
	"github.com/panyam/jsmlc/diag"
	"github.com/panyam/jsmlc/loader"
	"github.com/panyam/jsmlc/parser"
)

func newFmtCmd(o *rootOptions) *cobra.Command {
	var write, list bool
	cmd := &cobra.Command{
		Use:   "fmt <file.jsml...>",
		Short: "Reformats JSML files",
		Long: `Parses each file and prints it back in canonical form.  Imports are not
followed.  With -w files are rewritten in place; with -l only the names of files
whose formatting differs are printed.`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			fs := loader.NewLocalFS("")
			for _, path := range args {
				src, err := fs.ReadFile(path)
				if err != nil {
					return err
				}
				file, err := parser.ParseString(string(src), path)
				if err != nil {
					o.report(cmd, diag.From(err))
					return errFailed
				}
				formatted := decl.Print(file)
				switch {
				case list:
					if formatted != string(src) {
						fmt.Fprintln(cmd.OutOrStdout(), path)
					}
				case write:
					if formatted == string(src) {
						continue
					}
					if err := fs.WriteFile(path, []byte(formatted)); err != nil {
						return err
					}
				default:
					fmt.Fprint(cmd.OutOrStdout(), formatted)
				}
			}
			return nil
		},
	}
	cmd.Flags().BoolVarP(&write, "write", "w", false, "Write result to the source file instead of stdout")
	cmd.Flags().BoolVarP(&list, "list", "l", false, "List files whose formatting differs")
	return cmd
}
