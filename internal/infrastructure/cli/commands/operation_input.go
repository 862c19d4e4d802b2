package commands

import (
	"github.com/spf13/cobra"

	"github.com/doeshing/opsguard/internal/domain"
	"github.com/doeshing/opsguard/internal/infrastructure/cli/helpers"
)

// toolCallFlags are shared by assess and run.
type toolCallFlags struct {
	tool      string
	args      map[string]string
	input     string
	userInput string
	json      bool
}

func (f *toolCallFlags) register(cmd *cobra.Command) {
	cmd.Flags().StringVarP(&f.tool, "tool", "t", "", "Tool name (e.g. manage_service)")
	cmd.Flags().StringToStringVarP(&f.args, "arg", "a", nil, "Tool argument as key=value (repeatable)")
	cmd.Flags().StringVarP(&f.input, "input", "i", "", "JSON file with tool calls (\"-\" for stdin)")
	cmd.Flags().StringVar(&f.userInput, "user-input", "", "Original request text recorded in the ledger")
	cmd.Flags().BoolVar(&f.json, "json", false, "Print JSON instead of text")
}

func (f *toolCallFlags) resolve(cmd *cobra.Command) (helpers.ToolCallInput, error) {
	if f.input != "" {
		input, err := helpers.ReadToolCalls(f.input, cmd.InOrStdin())
		if err != nil {
			return helpers.ToolCallInput{}, err
		}
		if f.userInput != "" {
			input.UserInput = f.userInput
		}
		return input, nil
	}
	call, err := helpers.ToolCallFromFlags(f.tool, f.args)
	if err != nil {
		return helpers.ToolCallInput{}, err
	}
	return helpers.ToolCallInput{UserInput: f.userInput, ToolCalls: []domain.ToolCall{call}}, nil
}
