package commands

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/doeshing/opsguard/internal/app"
	"github.com/doeshing/opsguard/internal/domain"
	"github.com/doeshing/opsguard/internal/infrastructure/cli/render"
)

// ErrNotExecuted is returned when an operation was refused, denied or timed
// out, so scripts can rely on the exit status.
var ErrNotExecuted = errors.New("operation not executed")

// NewRunCommand creates the run command: assess, confirm, execute, record.
func NewRunCommand(container *app.Container) *cobra.Command {
	var (
		flags   toolCallFlags
		session string
		timeout time.Duration
	)

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Assess, confirm and execute tool calls, recording them in the audit ledger",
		Example: `  opsguard run --tool manage_service --arg action=restart --arg service=nginx
  opsguard run --input calls.json --session deploy-42`,
		RunE: func(cmd *cobra.Command, args []string) error {
			if container.Operations == nil {
				return errors.New(ErrOperationsUnavailable)
			}
			input, err := flags.resolve(cmd)
			if err != nil {
				return err
			}
			if session == "" {
				session = uuid.NewString()
			}

			ctx := cmd.Context()
			if timeout > 0 {
				var cancel context.CancelFunc
				ctx, cancel = context.WithTimeout(ctx, timeout)
				defer cancel()
			}

			outcome, err := container.Operations.Run(ctx, domain.OperationRequest{
				SessionID: session,
				UserInput: input.UserInput,
				ToolCalls: input.ToolCalls,
			})
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			if flags.json {
				if err := writeJSON(out, outcome); err != nil {
					return err
				}
			} else {
				render.Outcome(out, outcome)
			}

			switch outcome.Status {
			case domain.StatusExecuted:
				return nil
			case domain.StatusFailed:
				if outcome.OperationID == "" {
					return errors.New("operation failed")
				}
				return fmt.Errorf("operation %s failed", outcome.OperationID)
			case domain.StatusBlocked:
				return fmt.Errorf("%w: %w", ErrNotExecuted, domain.ErrBlocked)
			default:
				return fmt.Errorf("%w: %s", ErrNotExecuted, outcome.Status)
			}
		},
	}

	flags.register(cmd)
	cmd.Flags().StringVar(&session, "session", "", "Caller session id (defaults to a new uuid)")
	cmd.Flags().DurationVar(&timeout, "timeout", 0, "Overall deadline for confirmation and execution")
	return cmd
}
