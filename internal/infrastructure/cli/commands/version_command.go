package commands

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/doeshing/opsguard/internal/version"
)

// NewVersionCommand creates the version command. It needs no configuration.
func NewVersionCommand() *cobra.Command {
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "version",
		Short: "Show opsguard version information",
		RunE: func(cmd *cobra.Command, args []string) error {
			info := version.Get()
			if asJSON {
				return writeJSON(cmd.OutOrStdout(), info)
			}
			printVersion(cmd.OutOrStdout(), info)
			return nil
		},
	}

	cmd.Flags().BoolVar(&asJSON, "json", false, "Print version information as JSON")
	return cmd
}

func printVersion(out io.Writer, info version.Info) {
	fmt.Fprintf(out, "opsguard %s (%s)\n", info.Version, info.Platform)
	if info.Commit != "" {
		fmt.Fprintf(out, "Commit: %s\n", info.Commit)
	}
	if info.BuildDate != "" {
		fmt.Fprintf(out, "Built:  %s\n", info.BuildDate)
	}
	fmt.Fprintf(out, "Go:     %s\n", info.GoVersion)
}
