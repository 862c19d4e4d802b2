package commands

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/doeshing/opsguard/internal/app"
	"github.com/doeshing/opsguard/internal/domain"
	"github.com/doeshing/opsguard/internal/infrastructure/cli/render"
)

// NewRollbackCommand creates the rollback command
func NewRollbackCommand(container *app.Container) *cobra.Command {
	var last int

	cmd := &cobra.Command{
		Use:   "rollback [operation-id]",
		Short: "Run the stored rollback commands of recorded operations",
		Example: `  opsguard rollback op_20260314T150926.000000000
  opsguard rollback --last 3`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if container.Operations == nil {
				return errors.New(ErrOperationsUnavailable)
			}

			var reports []domain.RollbackReport
			switch {
			case len(args) == 1 && last > 0:
				return fmt.Errorf("pass an operation id or --last, not both")
			case len(args) == 1:
				report, err := container.Operations.Rollback(cmd.Context(), args[0])
				if err != nil {
					return err
				}
				reports = append(reports, report)
			case last > 0:
				var err error
				reports, err = container.Operations.RollbackLast(cmd.Context(), last)
				if err != nil {
					return err
				}
			default:
				return errors.New(ErrRollbackTargetRequired)
			}

			failed := 0
			for _, report := range reports {
				render.RollbackReport(cmd.OutOrStdout(), report)
				if !report.Skipped && !report.Succeeded() {
					failed++
				}
			}
			if failed > 0 {
				return fmt.Errorf("%d rollback(s) incomplete", failed)
			}
			return nil
		},
	}

	cmd.Flags().IntVar(&last, "last", 0, "Roll back the N most recent operations, newest first")
	return cmd
}
