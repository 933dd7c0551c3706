package commands

import (
	"errors"
	"fmt"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/panyam/jsmlc/config"
	"github.com/panyam/jsmlc/decl"
)

func newBuildCmd(o *rootOptions) *cobra.Command {
	var project string
	cmd := &cobra.Command{
		Use:   "build [target...]",
		Short: "Builds the targets of a jsml.hcl project file",
		Long: `Reads the project file and compiles every target, or only the named ones,
writing the equation system, artifacts and diagram each target asks for.  Command
line --namespace, --parallelism, --set and --lib take precedence over the project file.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := commandContext(cmd)
			p, err := config.Load(ctx, project)
			if err != nil {
				return err
			}
			targets, err := p.Select(args...)
			if err != nil {
				return err
			}
			cliOverrides, err := parseOverrides(o.overrides)
			if err != nil {
				return err
			}

			failed := 0
			for _, t := range targets {
				opts, err := p.Options(t)
				if err != nil {
					return err
				}
				if o.namespace != "" {
					opts.Namespace = o.namespace
				}
				if o.parallelism > 0 {
					opts.Parallelism = o.parallelism
				}
				for k, v := range cliOverrides {
					if opts.Overrides == nil {
						opts.Overrides = map[string]decl.Expr{}
					}
					opts.Overrides[k] = v
				}

				res, err := o.run(cmd, p.Path(t.File), opts, true, p.LibraryMounts()...)
				if errors.Is(err, errFailed) {
					slog.Error("Target failed", "target", t.Name)
					failed++
					continue
				} else if err != nil {
					return err
				}

				if err := encodeTo(cmd, p.Path(t.Output), string(t.OutputFormat()), res.System); err != nil {
					return err
				}
				if t.Artifacts != "" {
					if err := encodeTo(cmd, p.Path(t.Artifacts), string(t.OutputFormat()), res.Artifacts); err != nil {
						return err
					}
				}
				if t.Diagram != "" {
					gen, err := t.DiagramGenerator()
					if err != nil {
						return err
					}
					if err := writeDiagram(cmd, p.Path(t.Diagram), gen, res.System, res.Artifacts, opts.Namespace); err != nil {
						return err
					}
				}
				stats := res.System.Stats()
				slog.Info("Built target", "target", t.Name, "component", res.System.Component,
					"variables", stats.Variables, "equations", stats.Equations)
			}
			if failed > 0 {
				return fmt.Errorf("%d of %d targets failed", failed, len(targets))
			}
			return nil
		},
	}
	cmd.Flags().StringVarP(&project, "project", "p", config.DefaultFile, "Project file")
	return cmd
}
