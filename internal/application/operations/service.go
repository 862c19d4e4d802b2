package operations

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/doeshing/opsguard/internal/domain"
	"github.com/doeshing/opsguard/internal/ports"
)

// Service orchestrates the operation lifecycle end-to-end: assess, confirm,
// execute, synthesize rollback, record.
type Service struct {
	ConfigProvider  ports.ConfigProvider
	SecurityService ports.SecurityService
	Gateway         ports.ConfirmationGateway
	Renderer        ports.PromptRenderer
	Executor        ports.ToolExecutor
	Synthesizer     ports.RollbackSynthesizer
	Ledger          ports.AuditLedger
	Runner          ports.CommandRunner
	Limiter         *Limiter
	Logger          ports.Logger
	Now             func() time.Time
	// DryRun keeps the ledger untouched: operations are not appended and
	// rollbacks do not mark their record.
	DryRun bool
}

func (s *Service) ready() error {
	if s.ConfigProvider == nil || s.SecurityService == nil || s.Gateway == nil ||
		s.Executor == nil || s.Synthesizer == nil || s.Ledger == nil || s.Logger == nil {
		return errors.New("operations.Service dependencies not satisfied")
	}
	return nil
}

func (s *Service) now() time.Time {
	if s.Now != nil {
		return s.Now()
	}
	return time.Now()
}

// Assess classifies every call and merges the results into one
// operation-level assessment.
func (s *Service) Assess(calls []domain.ToolCall) (domain.RiskAssessment, []domain.RiskAssessment) {
	perCall := make([]domain.RiskAssessment, 0, len(calls))
	for _, call := range calls {
		perCall = append(perCall, s.SecurityService.Assess(call))
	}
	return domain.Merge(perCall...), perCall
}

// Run processes one operation request. The returned error reports
// infrastructure failures only; policy outcomes (blocked, denied, timed out,
// failed) are carried in the outcome's status.
func (s *Service) Run(ctx context.Context, req domain.OperationRequest) (domain.OperationOutcome, error) {
	if err := s.ready(); err != nil {
		return domain.OperationOutcome{}, err
	}
	if len(req.ToolCalls) == 0 {
		return domain.OperationOutcome{}, fmt.Errorf("operation has no tool calls: %w", domain.ErrValidation)
	}
	cfg, err := s.ConfigProvider.Load(ctx)
	if err != nil {
		return domain.OperationOutcome{}, fmt.Errorf("load config: %w", err)
	}

	assessment, _ := s.Assess(req.ToolCalls)
	if !cfg.IsRiskAssessmentEnabled() {
		// Only a hard block survives with assessment switched off.
		assessment.RequiresConfirmation = false
	}
	outcome := domain.OperationOutcome{Assessment: assessment}
	fields := map[string]interface{}{
		"session": req.SessionID,
		"risk":    string(assessment.Level),
		"tools":   strings.Join(toolNames(req.ToolCalls), ","),
	}
	s.Logger.Debug("operation assessed", fields)

	if assessment.Blocked {
		outcome.Status = domain.StatusBlocked
		s.Logger.Warn("operation blocked", withField(fields, "reasons", strings.Join(assessment.Reasons, "; ")))
		return outcome, nil
	}

	if assessment.RequiresConfirmation && cfg.ShouldRequireConfirmation() {
		decision, err := s.Gateway.Request(ctx, req.SessionID, req.ToolCalls, assessment, s.Renderer)
		if err != nil {
			return outcome, fmt.Errorf("confirmation: %w", err)
		}
		outcome.Decision = decision
		switch decision {
		case domain.DecisionApproved:
		case domain.DecisionTimedOut:
			outcome.Status = domain.StatusTimedOut
			s.Logger.Info("operation confirmation timed out", fields)
			return outcome, nil
		default:
			outcome.Status = domain.StatusDenied
			s.Logger.Info("operation denied", fields)
			return outcome, nil
		}
	}

	if s.Limiter != nil {
		if err := s.Limiter.Acquire(ctx); err != nil {
			return outcome, fmt.Errorf("waiting for execution slot: %w", err)
		}
		defer s.Limiter.Release()
	}

	start := s.now()
	executed := s.execute(ctx, req.ToolCalls, &outcome)
	outcome.ExecutionTime = s.now().Sub(start)
	success := executed == len(req.ToolCalls)
	outcome.Status = domain.StatusExecuted
	if !success {
		outcome.Status = domain.StatusFailed
	}

	commands, err := s.Synthesizer.Synthesize(req.ToolCalls[:executed])
	if err != nil {
		outcome.RollbackNote = err.Error()
		s.Logger.Warn("rollback unavailable", withField(fields, "reason", err.Error()))
	} else {
		outcome.RollbackCommands = commands
	}

	if s.DryRun {
		outcome.DryRun = true
		s.Logger.Info("dry run finished, not recorded", withField(fields, "status", string(outcome.Status)))
		return outcome, nil
	}

	timestamp := req.Timestamp
	if timestamp.IsZero() {
		timestamp = start
	}
	id, err := s.Ledger.Append(ctx, domain.OperationRecord{
		Timestamp:        timestamp,
		UserInput:        req.UserInput,
		RiskLevel:        assessment.Level,
		ToolCalls:        req.ToolCalls,
		Success:          success,
		ExecutionTime:    outcome.ExecutionTime,
		RollbackCommands: outcome.RollbackCommands,
	})
	if err != nil {
		outcome.AuditError = err
		s.Logger.Error("audit append failed", err, fields)
	} else {
		outcome.OperationID = id
	}

	s.Logger.Info("operation finished", withField(withField(fields, "status", string(outcome.Status)), "operation", id))
	return outcome, nil
}

// execute runs calls in order and stops at the first failure. It returns how
// many calls succeeded.
func (s *Service) execute(ctx context.Context, calls []domain.ToolCall, outcome *domain.OperationOutcome) int {
	for i, call := range calls {
		result, err := s.Executor.Execute(ctx, call)
		result.ToolCall = call
		if err != nil && result.Err == nil {
			result.Err = err
		}
		if err != nil {
			result.Success = false
		}
		outcome.Results = append(outcome.Results, result)
		if !result.Success {
			s.Logger.Warn("tool call failed", map[string]interface{}{
				"tool":  call.Name,
				"index": i,
				"error": errString(result.Err),
			})
			return i
		}
	}
	return len(calls)
}

// Rollback runs the stored inverse commands of one operation and marks it
// rolled back when every command succeeds.
func (s *Service) Rollback(ctx context.Context, operationID string) (domain.RollbackReport, error) {
	if s.Ledger == nil || s.Runner == nil || s.Logger == nil {
		return domain.RollbackReport{}, errors.New("operations.Service rollback dependencies not satisfied")
	}
	rec, err := s.Ledger.Get(ctx, operationID)
	if err != nil {
		return domain.RollbackReport{}, err
	}
	return s.rollbackRecord(ctx, rec)
}

// RollbackLast rolls back up to n of the most recent operations, newest first.
// Records already rolled back or without inverse commands are reported as skipped.
func (s *Service) RollbackLast(ctx context.Context, n int) ([]domain.RollbackReport, error) {
	if s.Ledger == nil || s.Runner == nil || s.Logger == nil {
		return nil, errors.New("operations.Service rollback dependencies not satisfied")
	}
	if n <= 0 {
		return nil, fmt.Errorf("rollback count must be positive: %w", domain.ErrValidation)
	}
	records, err := s.Ledger.ListRecent(ctx, n)
	if err != nil {
		return nil, err
	}
	reports := make([]domain.RollbackReport, 0, len(records))
	for _, rec := range records {
		report, err := s.rollbackRecord(ctx, rec)
		if err != nil {
			return reports, err
		}
		reports = append(reports, report)
	}
	return reports, nil
}

func (s *Service) rollbackRecord(ctx context.Context, rec domain.OperationRecord) (domain.RollbackReport, error) {
	report := domain.RollbackReport{OperationID: rec.OperationID, Commands: rec.RollbackCommands}
	switch {
	case rec.RolledBack:
		report.Skipped, report.Reason = true, "already rolled back"
		return report, nil
	case len(rec.RollbackCommands) == 0:
		report.Skipped, report.Reason = true, "no rollback commands recorded"
		return report, nil
	}

	for _, command := range rec.RollbackCommands {
		if _, err := s.Runner.Run(ctx, command); err != nil {
			if report.Failed == nil {
				report.Failed = map[string]error{}
			}
			report.Failed[command] = err
			s.Logger.Error("rollback command failed", err, map[string]interface{}{
				"operation": rec.OperationID,
				"command":   command,
			})
		}
	}
	if len(report.Failed) > 0 {
		return report, nil
	}
	if s.DryRun {
		report.DryRun = true
		return report, nil
	}
	if err := s.Ledger.MarkRolledBack(ctx, rec.OperationID, s.now()); err != nil {
		return report, fmt.Errorf("mark rolled back: %w", err)
	}
	s.Logger.Info("operation rolled back", map[string]interface{}{"operation": rec.OperationID})
	return report, nil
}

func toolNames(calls []domain.ToolCall) []string {
	names := make([]string, 0, len(calls))
	for _, c := range calls {
		names = append(names, c.Name)
	}
	return names
}

func withField(fields map[string]interface{}, key string, value interface{}) map[string]interface{} {
	out := make(map[string]interface{}, len(fields)+1)
	for k, v := range fields {
		out[k] = v
	}
	out[key] = value
	return out
}

func errString(err error) string {
	if err == nil {
		return ""
	}
	return err.Error()
}
