package commands

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"
)

// Set at build time with -ldflags.
var (
	Version   = "dev"
	GitCommit = "none"
	BuildDate = "unknown"
)

// rootOptions holds the persistent flags shared by every command.
type rootOptions struct {
	logLevel    string
	namespace   string
	component   string
	overrides   []string
	parallelism int
	noColor     bool
	libs        []string
}

// NewRootCmd builds the command tree.  Each call returns fresh flag state.
func NewRootCmd() *cobra.Command {
	o := &rootOptions{}
	rootCmd := &cobra.Command{
		Use:   "jsmlc",
		Short: "jsmlc compiles JSML acausal models into flat equation systems",
		Long: `jsmlc reads JSML model files, resolves their components and connectors,
expands connect() statements into connection equations and emits the flattened
equation system together with the experiments and tests declared in metadata.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			o.applyEnv(cmd)
			return setupLogging(cmd.ErrOrStderr(), o.logLevel)
		},
	}

	flags := rootCmd.PersistentFlags()
	flags.StringVar(&o.logLevel, "log-level", "warn", "Log level: debug, info, warn or error (env JSMLC_LOG_LEVEL)")
	flags.StringVar(&o.namespace, "namespace", "", "Metadata namespace holding experiments and tests (env JSMLC_NAMESPACE, default JSML)")
	flags.StringVarP(&o.component, "component", "c", "", "Component to compile (default: last non-partial component of the file)")
	flags.StringArrayVar(&o.overrides, "set", nil, "Override a parameter, eg --set resistor.R=200 (repeatable)")
	flags.IntVar(&o.parallelism, "parallelism", 0, "Components resolved concurrently (0 for one per CPU)")
	flags.BoolVar(&o.noColor, "no-color", false, "Disable colored diagnostics")
	flags.StringArrayVar(&o.libs, "lib", nil, "Mount library dir as name=dir; imports of name/file.jsml read dir/file.jsml (repeatable, env JSMLC_PATH)")

	rootCmd.AddCommand(
		newCompileCmd(o),
		newCheckCmd(o),
		newFmtCmd(o),
		newArtifactsCmd(o),
		newDiagramCmd(o),
		newBuildCmd(o),
		newServeCmd(o),
		newVersionCmd(),
	)
	return rootCmd
}

// Execute runs the CLI and exits non-zero on failure.  This is called by main.main().
func Execute() {
	if err := NewRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}

// applyEnv fills flags the user did not set from the environment.
func (o *rootOptions) applyEnv(cmd *cobra.Command) {
	if v := os.Getenv("JSMLC_LOG_LEVEL"); v != "" && !cmd.Flags().Changed("log-level") {
		o.logLevel = v
	}
	if v := os.Getenv("JSMLC_NAMESPACE"); v != "" && !cmd.Flags().Changed("namespace") {
		o.namespace = v
	}
	if v := os.Getenv("JSMLC_PATH"); v != "" && !cmd.Flags().Changed("lib") {
		o.libs = filepath.SplitList(v)
	}
}

func setupLogging(w io.Writer, level string) error {
	var lvl slog.Level
	if err := lvl.UnmarshalText([]byte(strings.ToUpper(level))); err != nil {
		return fmt.Errorf("invalid --log-level %q: %w", level, err)
	}
	slog.SetDefault(slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{Level: lvl})))
	return nil
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print jsmlc version information",
		Run: func(cmd *cobra.Command, args []string) {
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "jsmlc %s\n", Version)
			if GitCommit != "none" {
				fmt.Fprintf(out, "Git commit: %s\n", GitCommit)
			}
			if BuildDate != "unknown" {
				fmt.Fprintf(out, "Build date: %s\n", BuildDate)
			}
		},
	}
}
