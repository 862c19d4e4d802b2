package commands

import (
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/doeshing/opsguard/internal/app"
	"github.com/doeshing/opsguard/internal/infrastructure/cli/render"
)

// NewDoctorCommand creates the doctor command
func NewDoctorCommand(container *app.Container) *cobra.Command {
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "doctor",
		Short: "Diagnose configuration, rules, ledger and host tools",
		RunE: func(cmd *cobra.Command, args []string) error {
			if container.DoctorService == nil {
				return errors.New(ErrDoctorServiceUnavailable)
			}

			report, err := container.DoctorService.Run(cmd.Context())

			// The report is printed even when a check could not run.
			if asJSON {
				if werr := writeJSON(cmd.OutOrStdout(), report); werr != nil {
					return werr
				}
			} else {
				render.HealthReport(cmd.OutOrStdout(), report)
			}

			if err != nil {
				return fmt.Errorf("diagnostics completed with errors: %w", err)
			}
			if failed := report.Failed(); len(failed) > 0 {
				names := make([]string, 0, len(failed))
				for _, check := range failed {
					names = append(names, check.Name)
				}
				return fmt.Errorf("failed checks: %s", strings.Join(names, ", "))
			}
			return nil
		},
	}

	cmd.Flags().BoolVar(&asJSON, "json", false, "Print the report as JSON")
	return cmd
}
