package commands

import (
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/panyam/jsmlc/services"
)

func newServeCmd(o *rootOptions) *cobra.Command {
	var addr string
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Runs the gRPC compile service",
		Long: `Starts a gRPC server exposing jsml.v1.CompilerService with Compile and Check
methods.  Sources are sent in the request, so the server never reads local files.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if !cmd.Flags().Changed("addr") {
				if env := os.Getenv("JSMLC_GRPC_ADDR"); env != "" {
					addr = env
				}
			}
			defaults, err := o.compilerOptions()
			if err != nil {
				return err
			}
			ctx, stop := signal.NotifyContext(commandContext(cmd), os.Interrupt, syscall.SIGTERM)
			defer stop()
			srv := &services.Server{Address: addr, Defaults: defaults}
			return srv.ListenAndServe(ctx)
		},
	}
	cmd.Flags().StringVar(&addr, "addr", services.DefaultAddress, "Listen address (env JSMLC_GRPC_ADDR)")
	return cmd
}
