package helpers

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/doeshing/opsguard/internal/domain"
)

// ToolCallInput is the JSON document accepted by --input.
type ToolCallInput struct {
	UserInput string            `json:"user_input"`
	ToolCalls []domain.ToolCall `json:"tool_calls"`
}

// ReadToolCalls decodes a --input document. "-" reads stdin. A bare JSON array
// of tool calls is accepted as well as the object form.
func ReadToolCalls(path string, stdin io.Reader) (ToolCallInput, error) {
	var data []byte
	var err error
	if path == "-" {
		data, err = io.ReadAll(stdin)
	} else {
		data, err = os.ReadFile(path)
	}
	if err != nil {
		return ToolCallInput{}, err
	}

	var input ToolCallInput
	trimmed := strings.TrimSpace(string(data))
	if strings.HasPrefix(trimmed, "[") {
		err = json.Unmarshal(data, &input.ToolCalls)
	} else {
		err = json.Unmarshal(data, &input)
	}
	if err != nil {
		return ToolCallInput{}, fmt.Errorf("decode tool calls: %w", err)
	}
	if len(input.ToolCalls) == 0 {
		return ToolCallInput{}, fmt.Errorf("no tool calls in %s: %w", path, domain.ErrValidation)
	}
	for i, call := range input.ToolCalls {
		if strings.TrimSpace(call.Name) == "" {
			return ToolCallInput{}, fmt.Errorf("tool call %d has no name: %w", i, domain.ErrValidation)
		}
	}
	return input, nil
}

// ToolCallFromFlags builds a single call from --tool and --arg key=value flags.
// Integer and boolean looking values are typed so numeric arguments validate.
func ToolCallFromFlags(tool string, args map[string]string) (domain.ToolCall, error) {
	tool = strings.TrimSpace(tool)
	if tool == "" {
		return domain.ToolCall{}, fmt.Errorf("--tool or --input is required: %w", domain.ErrValidation)
	}
	call := domain.ToolCall{Name: tool, Arguments: make(map[string]any, len(args))}
	for key, value := range args {
		call.Arguments[key] = typedValue(key, value)
	}
	return call, nil
}

// String-only arguments stay strings even when they look numeric.
var stringArgs = map[string]bool{
	"command": true, "path": true, "target": true, "mode": true,
	"service": true, "service_name": true, "host": true, "filter": true,
}

func typedValue(key, value string) any {
	if stringArgs[key] {
		return value
	}
	if n, err := strconv.Atoi(value); err == nil {
		return n
	}
	if b, err := strconv.ParseBool(value); err == nil {
		return b
	}
	return value
}
