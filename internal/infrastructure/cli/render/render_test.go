package render

import (
	"bytes"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/doeshing/opsguard/internal/domain"
)

func TestOutcomeBlockedStopsEarly(t *testing.T) {
	var buf bytes.Buffer
	Outcome(&buf, domain.OperationOutcome{
		Status:     domain.StatusBlocked,
		Assessment: domain.RiskAssessment{Level: domain.RiskCritical, Blocked: true, Reasons: []string{"Destructive operation on root directory"}},
	})

	out := buf.String()
	assert.Contains(t, out, "CRITICAL")
	assert.Contains(t, out, "Destructive operation on root directory")
	assert.Contains(t, out, "blocked by policy")
	assert.NotContains(t, out, "Status:")
}

func TestOutcomeExecutedShowsRollback(t *testing.T) {
	var buf bytes.Buffer
	Outcome(&buf, domain.OperationOutcome{
		Status:           domain.StatusExecuted,
		OperationID:      "op_20260314T150926.000000000",
		Assessment:       domain.RiskAssessment{Level: domain.RiskMedium},
		Results:          []domain.ExecutionResult{{Command: "systemctl restart nginx", Success: true, Duration: time.Second}},
		RollbackCommands: []string{"systemctl stop nginx"},
		AuditError:       errors.New("disk full"),
	})

	out := buf.String()
	assert.Contains(t, out, "systemctl restart nginx")
	assert.Contains(t, out, "op_20260314T150926.000000000")
	assert.Contains(t, out, "systemctl stop nginx")
	assert.Contains(t, out, "disk full")
}

func TestRollbackReportListsFailures(t *testing.T) {
	var buf bytes.Buffer
	RollbackReport(&buf, domain.RollbackReport{
		OperationID: "op_x",
		Commands:    []string{"systemctl stop app", "rm -f /srv/a"},
		Failed:      map[string]error{"rm -f /srv/a": errors.New("exit status 1")},
	})

	out := buf.String()
	assert.Contains(t, out, "rollback incomplete")
	assert.Contains(t, out, "exit status 1")
}

func TestDryRunOutcomeAndRollbackSayNothingWasRecorded(t *testing.T) {
	var buf bytes.Buffer
	Outcome(&buf, domain.OperationOutcome{
		Status:     domain.StatusExecuted,
		Assessment: domain.RiskAssessment{Level: domain.RiskLow},
		Results:    []domain.ExecutionResult{{Command: "uname -a", Success: true, Output: "dry run: uname -a"}},
		DryRun:     true,
	})
	RollbackReport(&buf, domain.RollbackReport{OperationID: "op_x", Commands: []string{"systemctl stop app"}, DryRun: true})

	out := buf.String()
	assert.Contains(t, out, "not recorded in the audit ledger")
	assert.NotContains(t, out, "Operation:")
	assert.Contains(t, out, "dry run, record left unchanged")
}

func TestFormatArgumentsIsSorted(t *testing.T) {
	assert.Equal(t, "action=stop service=nginx", formatArguments(map[string]any{"service": "nginx", "action": "stop"}))
}
