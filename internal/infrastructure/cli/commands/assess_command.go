package commands

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/doeshing/opsguard/internal/app"
	"github.com/doeshing/opsguard/internal/domain"
	"github.com/doeshing/opsguard/internal/infrastructure/cli/render"
)

// NewAssessCommand creates the assess command. It classifies tool calls
// without confirming, executing or recording anything.
func NewAssessCommand(container *app.Container) *cobra.Command {
	var flags toolCallFlags

	cmd := &cobra.Command{
		Use:   "assess",
		Short: "Classify the risk of tool calls without executing them",
		Example: `  opsguard assess --tool manage_service --arg action=restart --arg service=nginx
  opsguard assess --input calls.json --json`,
		RunE: func(cmd *cobra.Command, args []string) error {
			if container.Operations == nil {
				return errors.New(ErrOperationsUnavailable)
			}
			input, err := flags.resolve(cmd)
			if err != nil {
				return err
			}

			merged, perCall := container.Operations.Assess(input.ToolCalls)
			out := cmd.OutOrStdout()
			if flags.json {
				return writeJSON(out, assessmentReport{Assessment: merged, Calls: perCall})
			}
			if len(perCall) > 1 {
				for i, a := range perCall {
					render.Assessment(out, fmt.Sprintf("%d. %s", i+1, input.ToolCalls[i].Name), a)
				}
				fmt.Fprintln(out)
			}
			render.Assessment(out, "Operation", merged)
			return nil
		},
	}

	flags.register(cmd)
	return cmd
}

type assessmentReport struct {
	Assessment domain.RiskAssessment   `json:"assessment"`
	Calls      []domain.RiskAssessment `json:"calls"`
}

func writeJSON(out io.Writer, v any) error {
	enc := json.NewEncoder(out)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
