package cli

import (
	"bytes"
	"context"
	"encoding/json"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/doeshing/opsguard/internal/domain"
	"github.com/doeshing/opsguard/internal/infrastructure/cli/commands"
)

func setupEnv(t *testing.T) {
	t.Helper()
	home := t.TempDir()
	t.Setenv("HOME", home)
	t.Setenv("OPSGUARD_CONFIG", filepath.Join(home, "config.yaml"))
	t.Setenv("OPSGUARD_LEDGER", "jsonl")
	t.Setenv("OPSGUARD_LEDGER_PATH", filepath.Join(home, "ledger.jsonl"))
}

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	root, container := NewRootCmd(context.Background(), Options{})
	defer container.Close()
	var out, errOut bytes.Buffer
	root.SetOut(&out)
	root.SetErr(&errOut)
	root.SetArgs(args)
	err := root.ExecuteContext(context.Background())
	return out.String(), err
}

func TestAssessPrintsJSON(t *testing.T) {
	setupEnv(t)

	out, err := execute(t, "assess", "--tool", "manage_service", "--arg", "action=restart", "--arg", "service=nginx", "--json")

	require.NoError(t, err)
	var report struct {
		Assessment domain.RiskAssessment `json:"assessment"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &report))
	assert.Equal(t, domain.RiskMedium, report.Assessment.Level)
	assert.True(t, report.Assessment.RequiresConfirmation)
	assert.Equal(t, "systemctl restart nginx", report.Assessment.Command)
}

func TestRunBlockedExitsWithError(t *testing.T) {
	setupEnv(t)

	out, err := execute(t, "run", "--tool", "execute_command", "--arg", "command=rm -rf /")

	assert.ErrorIs(t, err, commands.ErrNotExecuted)
	assert.ErrorIs(t, err, domain.ErrBlocked)
	assert.Contains(t, out, "blocked")
}

func TestRunDryRunIsNotRecorded(t *testing.T) {
	setupEnv(t)

	out, err := execute(t, "--dry-run", "run", "--tool", "get_system_info", "--json")
	require.NoError(t, err)
	var outcome struct {
		Status      string `json:"status"`
		OperationID string `json:"operation_id"`
		DryRun      bool   `json:"dry_run"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &outcome))
	assert.Equal(t, "executed", outcome.Status)
	assert.True(t, outcome.DryRun)
	assert.Empty(t, outcome.OperationID)

	out, err = execute(t, "history", "list")
	require.NoError(t, err)
	assert.Contains(t, out, commands.MsgNoHistoryRecorded)
}

func TestRunIsRecordedInHistory(t *testing.T) {
	setupEnv(t)

	out, err := execute(t, "run", "--tool", "get_system_info", "--user-input", "what box is this", "--json")
	require.NoError(t, err)
	var outcome struct {
		Status      string `json:"status"`
		OperationID string `json:"operation_id"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &outcome))
	assert.Equal(t, "executed", outcome.Status)
	require.True(t, strings.HasPrefix(outcome.OperationID, "op_"))

	out, err = execute(t, "history", "list")
	require.NoError(t, err)
	assert.Contains(t, out, outcome.OperationID)

	out, err = execute(t, "history", "show", outcome.OperationID, "--json")
	require.NoError(t, err)
	assert.Contains(t, out, `"user_input": "what box is this"`)
}

func TestRollbackNeedsTarget(t *testing.T) {
	setupEnv(t)

	_, err := execute(t, "rollback")

	require.Error(t, err)
	assert.Contains(t, err.Error(), commands.ErrRollbackTargetRequired)
}

func TestRulesTest(t *testing.T) {
	setupEnv(t)

	out, err := execute(t, "rules", "test", "systemctl stop sshd")

	require.NoError(t, err)
	assert.Contains(t, out, "service_management")
}

func TestVersionNeedsNoConfig(t *testing.T) {
	dir := t.TempDir()
	t.Setenv("OPSGUARD_CONFIG", filepath.Join(dir, "config.yaml"))

	out, err := execute(t, "version")

	require.NoError(t, err)
	assert.Contains(t, out, "opsguard dev")
	assert.NoFileExists(t, filepath.Join(dir, "config.yaml"))
}
