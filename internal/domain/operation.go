package domain

import (
	"encoding/json"
	"time"
)

// OperationRecord captures an attempted operation in the audit ledger. The JSON
// field names are consumed by external audit viewers and must stay stable.
type OperationRecord struct {
	OperationID      string        `json:"operation_id"`
	Timestamp        time.Time     `json:"timestamp"`
	UserInput        string        `json:"user_input"`
	RiskLevel        RiskLevel     `json:"risk_level"`
	ToolCalls        []ToolCall    `json:"tool_calls"`
	Success          bool          `json:"success"`
	ExecutionTime    time.Duration `json:"-"`
	RollbackCommands []string      `json:"rollback_commands"`
	RolledBack       bool          `json:"rolled_back"`
	RolledBackAt     *time.Time    `json:"rolled_back_at,omitempty"`
}

type operationRecordJSON struct {
	OperationID      string     `json:"operation_id"`
	Timestamp        time.Time  `json:"timestamp"`
	UserInput        string     `json:"user_input"`
	RiskLevel        RiskLevel  `json:"risk_level"`
	ToolCalls        []ToolCall `json:"tool_calls"`
	Success          bool       `json:"success"`
	ExecutionTime    float64    `json:"execution_time"`
	RollbackCommands []string   `json:"rollback_commands"`
	RolledBack       bool       `json:"rolled_back"`
	RolledBackAt     *time.Time `json:"rolled_back_at,omitempty"`
}

// MarshalJSON writes execution_time as fractional seconds.
func (r OperationRecord) MarshalJSON() ([]byte, error) {
	out := operationRecordJSON{
		OperationID:      r.OperationID,
		Timestamp:        r.Timestamp,
		UserInput:        r.UserInput,
		RiskLevel:        r.RiskLevel,
		ToolCalls:        r.ToolCalls,
		Success:          r.Success,
		ExecutionTime:    r.ExecutionTime.Seconds(),
		RollbackCommands: r.RollbackCommands,
		RolledBack:       r.RolledBack,
		RolledBackAt:     r.RolledBackAt,
	}
	if out.ToolCalls == nil {
		out.ToolCalls = []ToolCall{}
	}
	if out.RollbackCommands == nil {
		out.RollbackCommands = []string{}
	}
	return json.Marshal(out)
}

// UnmarshalJSON reads execution_time as fractional seconds.
func (r *OperationRecord) UnmarshalJSON(data []byte) error {
	var in operationRecordJSON
	if err := json.Unmarshal(data, &in); err != nil {
		return err
	}
	*r = OperationRecord{
		OperationID:      in.OperationID,
		Timestamp:        in.Timestamp,
		UserInput:        in.UserInput,
		RiskLevel:        in.RiskLevel,
		ToolCalls:        in.ToolCalls,
		Success:          in.Success,
		ExecutionTime:    time.Duration(in.ExecutionTime * float64(time.Second)),
		RollbackCommands: in.RollbackCommands,
		RolledBack:       in.RolledBack,
		RolledBackAt:     in.RolledBackAt,
	}
	return nil
}

// ToolNames lists the tools used by the operation.
func (r OperationRecord) ToolNames() []string {
	names := make([]string, 0, len(r.ToolCalls))
	for _, call := range r.ToolCalls {
		names = append(names, call.Name)
	}
	return names
}

// OperationRequest is a resolved request handed to the gateway.
type OperationRequest struct {
	SessionID string
	UserInput string
	ToolCalls []ToolCall
	Timestamp time.Time
}

// OperationStatus is the terminal status reported to the caller.
type OperationStatus string

const (
	StatusExecuted OperationStatus = "executed"
	StatusFailed   OperationStatus = "failed"
	StatusBlocked  OperationStatus = "blocked"
	StatusDenied   OperationStatus = "denied"
	StatusTimedOut OperationStatus = "timed_out"
)

// ExecutionResult is what the execution sink reports for one tool call.
type ExecutionResult struct {
	ToolCall ToolCall      `json:"tool_call"`
	Command  string        `json:"command,omitempty"`
	Success  bool          `json:"success"`
	Output   string        `json:"output,omitempty"`
	Duration time.Duration `json:"duration"`
	Err      error         `json:"-"`
}

// OperationOutcome is returned to the immediate caller of the gateway.
type OperationOutcome struct {
	Status           OperationStatus   `json:"status"`
	OperationID      string            `json:"operation_id,omitempty"`
	Assessment       RiskAssessment    `json:"assessment"`
	Decision         Decision          `json:"decision,omitempty"`
	Results          []ExecutionResult `json:"results,omitempty"`
	ExecutionTime    time.Duration     `json:"execution_time"`
	RollbackCommands []string          `json:"rollback_commands,omitempty"`
	RollbackNote     string            `json:"rollback_note,omitempty"`
	DryRun           bool              `json:"dry_run,omitempty"`
	AuditError       error             `json:"-"`
}

// Executed reports whether the execution sink was invoked.
func (o OperationOutcome) Executed() bool {
	return o.Status == StatusExecuted || o.Status == StatusFailed
}

// RollbackReport summarizes a rollback run for one operation.
type RollbackReport struct {
	OperationID string
	Commands    []string
	Failed      map[string]error
	Skipped     bool
	Reason      string
	// DryRun is set when the commands were only reported and the record was
	// left unchanged.
	DryRun bool
}

// Succeeded reports whether every rollback command ran cleanly.
func (r RollbackReport) Succeeded() bool {
	return !r.Skipped && len(r.Failed) == 0
}
