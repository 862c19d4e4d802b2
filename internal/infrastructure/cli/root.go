package cli

import (
	"context"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/doeshing/opsguard/internal/app"
	"github.com/doeshing/opsguard/internal/infrastructure/cli/commands"
)

// Options holds CLI-level configuration.
type Options struct {
	Verbose    bool
	ConfigPath string
}

// NewRootCmd wires the cobra root command. The container is built in
// PersistentPreRunE, after flags are parsed; subcommands hold a pointer to it
// and only read it from RunE. Callers close the returned container.
func NewRootCmd(ctx context.Context, opts Options) (*cobra.Command, *app.Container) {
	container := &app.Container{}
	var dryRun bool

	root := &cobra.Command{
		Use:   "opsguard",
		Short: "Risk assessment and confirmation gateway for system operations",
		Long: "opsguard classifies tool calls by risk, refuses catastrophic ones, asks a human\n" +
			"to confirm elevated ones, executes the rest and keeps an audit ledger with\n" +
			"rollback commands.",
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if skipContainer(cmd) {
				return nil
			}
			built, err := app.BuildContainer(cmd.Context(), app.Options{
				ConfigPath: opts.ConfigPath,
				Verbose:    opts.Verbose,
				DryRun:     dryRun,
				LogOutput:  cmd.ErrOrStderr(),
				Renderer:   NewPrompter(nil, cmd.ErrOrStderr()),
			})
			if err != nil {
				return err
			}
			*container = *built
			return nil
		},
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.SetContext(ctx)

	root.PersistentFlags().StringVar(&opts.ConfigPath, "config", opts.ConfigPath, "Config file (default ~/.opsguard/config.yaml)")
	root.PersistentFlags().BoolVarP(&opts.Verbose, "verbose", "v", opts.Verbose, "Log at debug level")
	root.PersistentFlags().BoolVar(&dryRun, "dry-run", false, "Assess and confirm, but neither execute nor record operations")

	root.AddCommand(
		commands.NewAssessCommand(container),
		commands.NewRunCommand(container),
		commands.NewHistoryCommand(container),
		commands.NewRollbackCommand(container),
		commands.NewRulesCommand(container),
		commands.NewConfigCommand(container),
		commands.NewDoctorCommand(container),
		commands.NewVersionCommand(),
	)
	return root, container
}

// skipContainer reports commands that work without configuration.
func skipContainer(cmd *cobra.Command) bool {
	for c := cmd; c != nil; c = c.Parent() {
		switch c.Name() {
		case "version", "help", "completion":
			return true
		}
	}
	return false
}

// VerboseFromEnv reports whether OPSGUARD_DEBUG asks for debug logging.
func VerboseFromEnv() bool {
	v := os.Getenv("OPSGUARD_DEBUG")
	return v == "1" || strings.EqualFold(v, "true")
}
