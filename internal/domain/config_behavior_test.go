package domain_test

import (
	"errors"
	"testing"
	"time"

	"github.com/doeshing/opsguard/internal/domain"
)

// TestConfig_AddWhitelistEntry tests adding exact-match bypass entries
func TestConfig_AddWhitelistEntry(t *testing.T) {
	tests := []struct {
		name      string
		config    domain.Config
		entry     string
		wantError bool
	}{
		{
			name:  "adds new entry",
			entry: "rm -rf /tmp/build",
		},
		{
			name: "rejects duplicate entry",
			config: domain.Config{Security: domain.SecuritySettings{
				Whitelist: []string{"rm -rf /tmp/build"},
			}},
			entry:     " rm -rf /tmp/build ",
			wantError: true,
		},
		{
			name:      "rejects blank entry",
			entry:     "   ",
			wantError: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.config.AddWhitelistEntry(tt.entry)

			if tt.wantError {
				if err == nil {
					t.Error("expected error but got none")
				}
				return
			}
			if err != nil {
				t.Errorf("unexpected error: %v", err)
				return
			}
			if !tt.config.HasWhitelistEntry(tt.entry) {
				t.Errorf("entry %q was not added", tt.entry)
			}
		})
	}
}

// TestConfig_RemoveWhitelistEntry tests removing bypass entries
func TestConfig_RemoveWhitelistEntry(t *testing.T) {
	cfg := domain.Config{Security: domain.SecuritySettings{
		Whitelist: []string{"a", "b", "c"},
	}}

	if err := cfg.RemoveWhitelistEntry("b"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.HasWhitelistEntry("b") {
		t.Error("entry b still present")
	}
	if len(cfg.Security.Whitelist) != 2 {
		t.Errorf("got %d entries, want 2", len(cfg.Security.Whitelist))
	}

	err := cfg.RemoveWhitelistEntry("missing")
	if !errors.Is(err, domain.ErrNotFound) {
		t.Errorf("got %v, want ErrNotFound", err)
	}
}

// TestConfig_HasWhitelistEntry checks the match is exact, not a prefix
func TestConfig_HasWhitelistEntry(t *testing.T) {
	cfg := domain.Config{Security: domain.SecuritySettings{
		Whitelist: []string{"rm -rf /tmp/build"},
	}}

	if !cfg.HasWhitelistEntry("rm -rf /tmp/build") {
		t.Error("exact entry not matched")
	}
	if cfg.HasWhitelistEntry("rm -rf /tmp/build/../..") {
		t.Error("extended command matched a whitelist entry")
	}
	if cfg.HasWhitelistEntry("rm -rf /tmp") {
		t.Error("prefix matched a whitelist entry")
	}
}

// TestConfig_Getters tests fallbacks for unset values
func TestConfig_Getters(t *testing.T) {
	var empty domain.Config
	if got := empty.GetConfirmationTimeout(); got != domain.DefaultConfirmationTimeout {
		t.Errorf("confirmation timeout = %v", got)
	}
	if got := empty.GetMaxConcurrent(); got != domain.DefaultMaxConcurrent {
		t.Errorf("max concurrent = %d", got)
	}
	if got := empty.GetCommandTimeout(); got != domain.DefaultCommandTimeout {
		t.Errorf("command timeout = %v", got)
	}
	if got := empty.GetExecutionShell(); got != "/bin/sh" {
		t.Errorf("shell = %q", got)
	}
	if got := empty.GetLedgerBackend(); got != domain.LedgerBackendSQLite {
		t.Errorf("ledger backend = %q", got)
	}

	cfg := domain.Config{
		Confirmation: domain.ConfirmSettings{TimeoutSeconds: 5},
		Execution:    domain.ExecutionSettings{MaxConcurrent: 2, CommandTimeoutSeconds: 3, Shell: "/bin/bash"},
		Ledger:       domain.LedgerSettings{Backend: " JSONL "},
	}
	if got := cfg.GetConfirmationTimeout(); got != 5*time.Second {
		t.Errorf("confirmation timeout = %v", got)
	}
	if got := cfg.GetMaxConcurrent(); got != 2 {
		t.Errorf("max concurrent = %d", got)
	}
	if got := cfg.GetCommandTimeout(); got != 3*time.Second {
		t.Errorf("command timeout = %v", got)
	}
	if got := cfg.GetExecutionShell(); got != "/bin/bash" {
		t.Errorf("shell = %q", got)
	}
	if got := cfg.GetLedgerBackend(); got != domain.LedgerBackendJSONL {
		t.Errorf("ledger backend = %q", got)
	}
}

// TestConfig_ProtectedServiceSet tests that the agent unit is always protected
func TestConfig_ProtectedServiceSet(t *testing.T) {
	cfg := domain.Config{Security: domain.SecuritySettings{ProtectedServices: []string{"sshd"}}}
	got := cfg.ProtectedServiceSet()
	if len(got) != 2 || got[1] != domain.DefaultAgentService {
		t.Errorf("got %v", got)
	}

	cfg.Security.AgentService = "sshd"
	if got := cfg.ProtectedServiceSet(); len(got) != 1 {
		t.Errorf("agent listed twice: %v", got)
	}
}
