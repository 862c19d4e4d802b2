package domain

import (
	"fmt"
	"strings"
	"time"
)

// IsRiskAssessmentEnabled reports whether assessments gate execution.
func (c *Config) IsRiskAssessmentEnabled() bool {
	return c.Security.EnableRiskAssessment
}

// ShouldRequireConfirmation reports whether elevated-risk calls need approval.
func (c *Config) ShouldRequireConfirmation() bool {
	return c.Security.RequireConfirmation
}

// HasWhitelistEntry checks for an exact bypass-whitelist entry.
func (c *Config) HasWhitelistEntry(command string) bool {
	command = strings.TrimSpace(command)
	for _, entry := range c.Security.Whitelist {
		if entry == command {
			return true
		}
	}
	return false
}

// AddWhitelistEntry appends an exact command string to the bypass whitelist.
func (c *Config) AddWhitelistEntry(command string) error {
	command = strings.TrimSpace(command)
	if command == "" {
		return fmt.Errorf("whitelist entry cannot be empty: %w", ErrValidation)
	}
	if c.HasWhitelistEntry(command) {
		return fmt.Errorf("whitelist entry %q already exists", command)
	}
	c.Security.Whitelist = append(c.Security.Whitelist, command)
	return nil
}

// RemoveWhitelistEntry removes an exact command string from the bypass whitelist.
func (c *Config) RemoveWhitelistEntry(command string) error {
	command = strings.TrimSpace(command)
	for i, entry := range c.Security.Whitelist {
		if entry == command {
			c.Security.Whitelist = append(c.Security.Whitelist[:i], c.Security.Whitelist[i+1:]...)
			return nil
		}
	}
	return fmt.Errorf("whitelist entry %q: %w", command, ErrNotFound)
}

// GetConfirmationTimeout returns the confirmation timeout, falling back to the default.
func (c *Config) GetConfirmationTimeout() time.Duration {
	if c.Confirmation.TimeoutSeconds <= 0 {
		return DefaultConfirmationTimeout
	}
	return time.Duration(c.Confirmation.TimeoutSeconds) * time.Second
}

// GetMaxConcurrent returns the in-flight operation bound.
func (c *Config) GetMaxConcurrent() int {
	if c.Execution.MaxConcurrent <= 0 {
		return DefaultMaxConcurrent
	}
	return c.Execution.MaxConcurrent
}

// GetCommandTimeout returns the per-command execution timeout.
func (c *Config) GetCommandTimeout() time.Duration {
	if c.Execution.CommandTimeoutSeconds <= 0 {
		return DefaultCommandTimeout
	}
	return time.Duration(c.Execution.CommandTimeoutSeconds) * time.Second
}

// GetExecutionShell returns the configured shell or /bin/sh.
func (c *Config) GetExecutionShell() string {
	if c.Execution.Shell == "" || c.Execution.Shell == "auto" {
		return "/bin/sh"
	}
	return c.Execution.Shell
}

// GetLedgerBackend normalizes the configured backend name.
func (c *Config) GetLedgerBackend() string {
	backend := strings.ToLower(strings.TrimSpace(c.Ledger.Backend))
	if backend == "" {
		return LedgerBackendSQLite
	}
	return backend
}

// ProtectedServiceSet returns protected services including the agent's own unit.
func (c *Config) ProtectedServiceSet() []string {
	services := append([]string{}, c.Security.ProtectedServices...)
	agent := c.Security.AgentService
	if agent == "" {
		agent = DefaultAgentService
	}
	for _, s := range services {
		if s == agent {
			return services
		}
	}
	return append(services, agent)
}
