package domain

import (
	"fmt"
	"strconv"
	"strings"
)

// Tool names understood by the assessor and rollback table.
const (
	ToolGetSystemInfo      = "get_system_info"
	ToolMonitorProcesses   = "monitor_processes"
	ToolCheckLogs          = "check_logs"
	ToolManageService      = "manage_service"
	ToolFileOperations     = "file_operations"
	ToolNetworkDiagnostics = "network_diagnostics"
	ToolDiskManagement     = "disk_management"
	ToolExecuteCommand     = "execute_command"
)

// ToolCall is a single (tool, arguments) pair resolved upstream.
type ToolCall struct {
	Name      string         `json:"name" yaml:"name"`
	Arguments map[string]any `json:"arguments" yaml:"arguments"`
}

// NewToolCall builds a ToolCall from alternating key/value pairs.
func NewToolCall(name string, kv ...string) ToolCall {
	args := make(map[string]any, len(kv)/2)
	for i := 0; i+1 < len(kv); i += 2 {
		args[kv[i]] = kv[i+1]
	}
	return ToolCall{Name: name, Arguments: args}
}

// String returns the argument for key. Missing keys yield ok=false; non-string
// values yield an ErrValidation error.
func (c ToolCall) String(key string) (string, bool, error) {
	raw, ok := c.Arguments[key]
	if !ok || raw == nil {
		return "", false, nil
	}
	value, isString := raw.(string)
	if !isString {
		return "", true, fmt.Errorf("argument %q must be a string, got %T: %w", key, raw, ErrValidation)
	}
	return value, true, nil
}

// FirstString returns the first present string argument among keys.
func (c ToolCall) FirstString(keys ...string) (string, error) {
	for _, key := range keys {
		value, ok, err := c.String(key)
		if err != nil {
			return "", err
		}
		if ok {
			return value, nil
		}
	}
	return "", nil
}

// Bool returns a boolean argument, accepting bools and "true"/"false" strings.
func (c ToolCall) Bool(key string) bool {
	switch v := c.Arguments[key].(type) {
	case bool:
		return v
	case string:
		return v == "true" || v == "1" || v == "yes"
	default:
		return false
	}
}

// StringValues returns every string-valued argument, used for structural scans.
func (c ToolCall) StringValues() map[string]string {
	values := make(map[string]string, len(c.Arguments))
	for key, raw := range c.Arguments {
		if s, ok := raw.(string); ok {
			values[key] = s
		}
	}
	return values
}

// Int returns a numeric argument. JSON numbers arrive as float64 and CLI
// arguments as strings; both are accepted. Missing keys yield fallback.
func (c ToolCall) Int(key string, fallback int) (int, error) {
	switch v := c.Arguments[key].(type) {
	case nil:
		return fallback, nil
	case int:
		return v, nil
	case int64:
		return int(v), nil
	case float64:
		if v != float64(int(v)) {
			return 0, fmt.Errorf("argument %q must be an integer: %w", key, ErrValidation)
		}
		return int(v), nil
	case string:
		n, err := strconv.Atoi(strings.TrimSpace(v))
		if err != nil {
			return 0, fmt.Errorf("argument %q must be an integer: %w", key, ErrValidation)
		}
		return n, nil
	default:
		return 0, fmt.Errorf("argument %q must be an integer, got %T: %w", key, v, ErrValidation)
	}
}
