package doctor

import (
	"context"
	"fmt"
	"os/exec"
	"sort"
	"strings"

	cfgvalidator "github.com/doeshing/opsguard/internal/application/config"
	"github.com/doeshing/opsguard/internal/domain"
	"github.com/doeshing/opsguard/internal/ports"
)

// LedgerCounter is implemented by ledger backends that can count records.
type LedgerCounter interface {
	Count(ctx context.Context) (int, error)
}

// Service runs environment diagnostics.
type Service struct {
	ConfigProvider  ports.ConfigProvider
	Rules           ports.RuleRepository
	SecurityService ports.SecurityService
	Ledger          ports.AuditLedger
	LookPath        func(string) (string, error)
}

// Run executes checks and returns a report.
func (s *Service) Run(ctx context.Context) (domain.HealthReport, error) {
	var checks []domain.HealthCheck

	cfg, err := s.ConfigProvider.Load(ctx)
	if err != nil {
		checks = append(checks, fail("Config file", fmt.Sprintf("load failed: %v", err)))
		return domain.HealthReport{Checks: checks}, err
	}
	checks = append(checks, ok("Config file", fmt.Sprintf("format %s", cfg.ConfigFormatVersion)))

	if err := cfgvalidator.Validate(cfg); err != nil {
		checks = append(checks, fail("Config values", err.Error()))
	} else {
		checks = append(checks, ok("Config values", "valid"))
	}

	if !cfg.IsRiskAssessmentEnabled() {
		checks = append(checks, warn("Risk assessment", "disabled; only hard blocks are enforced"))
	}
	if !cfg.ShouldRequireConfirmation() {
		checks = append(checks, warn("Confirmation", "disabled; elevated operations run unattended"))
	}

	if s.Rules != nil {
		checks = append(checks, ok("Rules", fmt.Sprintf("%d loaded", len(s.Rules.Rules()))))
	} else {
		checks = append(checks, warn("Rules", "rule repository not initialized"))
	}

	checks = append(checks, s.selfTest())
	checks = append(checks, s.ledgerCheck(ctx, cfg))
	checks = append(checks, s.shellCheck(cfg))
	checks = append(checks, s.hostToolsCheck())

	return domain.HealthReport{Checks: checks}, nil
}

// selfTest confirms the assessor still blocks the canonical catastrophic command.
func (s *Service) selfTest() domain.HealthCheck {
	if s.SecurityService == nil {
		return warn("Assessor", "security service not initialized")
	}
	got := s.SecurityService.Assess(domain.NewToolCall(domain.ToolExecuteCommand, "command", "rm -rf /"))
	if !got.Blocked {
		return fail("Assessor", fmt.Sprintf("root deletion not blocked (level %s)", got.Level))
	}
	return ok("Assessor", "root deletion blocked")
}

func (s *Service) ledgerCheck(ctx context.Context, cfg domain.Config) domain.HealthCheck {
	if s.Ledger == nil {
		return warn("Audit ledger", "not initialized")
	}
	counter, canCount := s.Ledger.(LedgerCounter)
	if !canCount {
		return ok("Audit ledger", cfg.GetLedgerBackend())
	}
	n, err := counter.Count(ctx)
	if err != nil {
		return fail("Audit ledger", err.Error())
	}
	if cfg.GetLedgerBackend() == domain.LedgerBackendMemory {
		return warn("Audit ledger", fmt.Sprintf("memory backend, %d records, not durable", n))
	}
	return ok("Audit ledger", fmt.Sprintf("%s at %s, %d records", cfg.GetLedgerBackend(), cfg.Ledger.Path, n))
}

func (s *Service) shellCheck(cfg domain.Config) domain.HealthCheck {
	shell := cfg.GetExecutionShell()
	if _, err := s.lookPath()(shell); err != nil {
		return fail("Execution shell", fmt.Sprintf("%s not found", shell))
	}
	if cfg.Execution.DryRun {
		return warn("Execution shell", fmt.Sprintf("%s (dry run)", shell))
	}
	return ok("Execution shell", shell)
}

// hostTools are the binaries canonical tool commands and rollbacks invoke.
var hostTools = []string{"systemctl", "journalctl", "pgrep", "df", "du", "ping", "traceroute", "nslookup", "mount"}

func (s *Service) hostToolsCheck() domain.HealthCheck {
	lookPath := s.lookPath()
	var missing []string
	for _, tool := range hostTools {
		if _, err := lookPath(tool); err != nil {
			missing = append(missing, tool)
		}
	}
	if len(missing) == 0 {
		return ok("Host tools", fmt.Sprintf("%d available", len(hostTools)))
	}
	sort.Strings(missing)
	return warn("Host tools", "missing: "+strings.Join(missing, ", "))
}

func (s *Service) lookPath() func(string) (string, error) {
	if s.LookPath != nil {
		return s.LookPath
	}
	return exec.LookPath
}

func ok(name, details string) domain.HealthCheck {
	return domain.HealthCheck{Name: name, Status: domain.HealthOK, Details: details}
}

func warn(name, details string) domain.HealthCheck {
	return domain.HealthCheck{Name: name, Status: domain.HealthWarn, Details: details}
}

func fail(name, details string) domain.HealthCheck {
	return domain.HealthCheck{Name: name, Status: domain.HealthError, Details: details}
}
