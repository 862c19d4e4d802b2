package config

import (
	"errors"
	"fmt"
	"regexp"
	"strings"

	"github.com/doeshing/opsguard/internal/domain"
)

// Validate ensures config structure is consistent. Every problem found is
// reported, joined into one error wrapping domain.ErrValidation.
func Validate(cfg domain.Config) error {
	var errs []error
	errs = append(errs, validateSecurity(cfg.Security)...)
	errs = append(errs, validateExecution(cfg)...)
	errs = append(errs, validateLedger(cfg.Ledger)...)
	errs = append(errs, validateMonitoring(cfg.Monitoring)...)
	errs = append(errs, validateLogging(cfg.Logging)...)
	if len(errs) == 0 {
		return nil
	}
	return fmt.Errorf("%w: %w", domain.ErrValidation, errors.Join(errs...))
}

func validateSecurity(sec domain.SecuritySettings) []error {
	var errs []error
	for _, entry := range sec.Whitelist {
		if strings.TrimSpace(entry) == "" {
			errs = append(errs, fmt.Errorf("security.dangerous_commands_whitelist contains an empty entry"))
		}
	}
	for _, p := range sec.ProtectedPaths {
		if !strings.HasPrefix(p, "/") {
			errs = append(errs, fmt.Errorf("security.protected_paths entry %q must be absolute", p))
		}
	}
	for _, s := range sec.ProtectedServices {
		if strings.TrimSpace(s) == "" {
			errs = append(errs, fmt.Errorf("security.protected_services contains an empty entry"))
		}
	}
	return errs
}

func validateExecution(cfg domain.Config) []error {
	var errs []error
	if cfg.Execution.MaxConcurrent < 0 {
		errs = append(errs, fmt.Errorf("execution.max_concurrent must be > 0, got %d", cfg.Execution.MaxConcurrent))
	}
	if cfg.Execution.CommandTimeoutSeconds < 0 {
		errs = append(errs, fmt.Errorf("execution.command_timeout_seconds must be > 0"))
	}
	if cfg.Confirmation.TimeoutSeconds < 0 {
		errs = append(errs, fmt.Errorf("confirmation.timeout_seconds must be > 0"))
	}
	return errs
}

func validateLedger(ledger domain.LedgerSettings) []error {
	switch strings.ToLower(ledger.Backend) {
	case "", domain.LedgerBackendMemory, domain.LedgerBackendJSONL, domain.LedgerBackendSQLite:
		return nil
	default:
		return []error{fmt.Errorf("ledger.backend must be memory|jsonl|sqlite, got %s", ledger.Backend)}
	}
}

func validateMonitoring(m domain.MonitoringSettings) []error {
	var errs []error
	if m.IntervalSeconds <= 0 {
		errs = append(errs, fmt.Errorf("monitoring.interval_seconds must be > 0"))
	}
	for name, v := range map[string]float64{
		"cpu_threshold":    m.CPUThreshold,
		"memory_threshold": m.MemoryThreshold,
		"disk_threshold":   m.DiskThreshold,
	} {
		if v < 0 || v > 100 {
			errs = append(errs, fmt.Errorf("monitoring.%s must be within 0-100, got %v", name, v))
		}
	}
	return errs
}

var logLevels = regexp.MustCompile(`^(?i)(debug|info|warn|warning|error)$`)

func validateLogging(l domain.LoggingSettings) []error {
	if l.Level != "" && !logLevels.MatchString(l.Level) {
		return []error{fmt.Errorf("logging.level must be debug|info|warn|error, got %s", l.Level)}
	}
	return nil
}
