// Package ports defines the interfaces (ports) for the hexagonal architecture.
//
// This package establishes the contract between the operation-safety core and
// its adapters. The policy components (rule repository, assessor, confirmation
// gateway, rollback synthesizer, audit ledger) and the external collaborators
// (execution sink, decision source) all meet here, so the application layer
// depends only on abstractions.
//
// Key architectural concepts:
//   - Ports: Interfaces defined here (e.g., SecurityService, AuditLedger)
//   - Adapters: Concrete implementations in the infrastructure layer
//   - Dependency inversion: Application depends on abstractions, not implementations
package ports

import (
	"context"
	"io"
	"time"

	"github.com/doeshing/opsguard/internal/domain"
)

// ConfigProvider loads the latest configuration from persistent storage.
// Implementations typically read from ~/.opsguard/config.yaml.
type ConfigProvider interface {
	Load(context.Context) (domain.Config, error)
}

// RuleRepository holds the ordered set of declarative risk rules.
// Registration is serialized against evaluation; evaluation has no side effects.
type RuleRepository interface {
	Register(rule domain.SecurityRule) error
	Evaluate(text string) []domain.RuleMatch
	Rules() []domain.SecurityRule
	Version() uint64
}

// SecurityService classifies a tool call. Assessment never fails: malformed
// input is reported as elevated risk instead of an error.
type SecurityService interface {
	Assess(call domain.ToolCall) domain.RiskAssessment
}

// PromptRenderer presents a pending confirmation to a human (or any decision
// source). It may answer synchronously through resolve, or later through the
// gateway's Resolve method. Implementations must return when ctx is done.
type PromptRenderer interface {
	Present(ctx context.Context, req domain.ConfirmationRequest, resolve func(domain.Decision)) error
}

// ConfirmationGateway manages pending confirmations keyed by caller session.
type ConfirmationGateway interface {
	Request(ctx context.Context, sessionID string, calls []domain.ToolCall, assessment domain.RiskAssessment, renderer PromptRenderer) (domain.Decision, error)
	Resolve(id string, decision domain.Decision) error
	Cancel(id string) error
	Pending() []domain.ConfirmationRequest
}

// RollbackSynthesizer produces inverse shell commands for executed tool calls.
type RollbackSynthesizer interface {
	Synthesize(calls []domain.ToolCall) ([]string, error)
}

// AuditLedger is the append-only operation record store.
type AuditLedger interface {
	Append(ctx context.Context, record domain.OperationRecord) (string, error)
	Get(ctx context.Context, operationID string) (domain.OperationRecord, error)
	ListRecent(ctx context.Context, n int) ([]domain.OperationRecord, error)
	MarkRolledBack(ctx context.Context, operationID string, at time.Time) error
	Export(ctx context.Context, w io.Writer) error
	Close() error
}

// ToolExecutor is the execution sink that performs an approved tool call and
// reports success and duration back to the core.
type ToolExecutor interface {
	Execute(ctx context.Context, call domain.ToolCall) (domain.ExecutionResult, error)
}

// CommandRunner runs a synthesized rollback command.
type CommandRunner interface {
	Run(ctx context.Context, command string) (domain.ExecutionResult, error)
}

// Logger provides structured logging abstraction for the application layer.
// Implementations can route to different backends (stdout, files, external services).
type Logger interface {
	Debug(msg string, fields map[string]interface{})
	Info(msg string, fields map[string]interface{})
	Warn(msg string, fields map[string]interface{})
	Error(msg string, err error, fields map[string]interface{})
}
