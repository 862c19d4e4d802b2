package config

import (
	"errors"
	"strings"
	"testing"

	"github.com/doeshing/opsguard/internal/domain"
)

func validConfig() domain.Config {
	return domain.Config{
		Security: domain.SecuritySettings{
			ProtectedPaths:    []string{"/etc"},
			ProtectedServices: []string{"sshd"},
		},
		Ledger:     domain.LedgerSettings{Backend: domain.LedgerBackendSQLite},
		Monitoring: domain.MonitoringSettings{IntervalSeconds: 30, CPUThreshold: 80, MemoryThreshold: 85, DiskThreshold: 90},
		Logging:    domain.LoggingSettings{Level: "INFO"},
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*domain.Config)
		wantErr string
	}{
		{name: "valid", mutate: func(*domain.Config) {}},
		{
			name:    "relative protected path",
			mutate:  func(c *domain.Config) { c.Security.ProtectedPaths = []string{"etc"} },
			wantErr: "must be absolute",
		},
		{
			name:    "blank whitelist entry",
			mutate:  func(c *domain.Config) { c.Security.Whitelist = []string{" "} },
			wantErr: "empty entry",
		},
		{
			name:    "negative concurrency",
			mutate:  func(c *domain.Config) { c.Execution.MaxConcurrent = -1 },
			wantErr: "max_concurrent",
		},
		{
			name:    "unknown ledger backend",
			mutate:  func(c *domain.Config) { c.Ledger.Backend = "postgres" },
			wantErr: "ledger.backend",
		},
		{
			name:    "threshold out of range",
			mutate:  func(c *domain.Config) { c.Monitoring.DiskThreshold = 120 },
			wantErr: "disk_threshold",
		},
		{
			name:    "unknown log level",
			mutate:  func(c *domain.Config) { c.Logging.Level = "trace" },
			wantErr: "logging.level",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := validConfig()
			tt.mutate(&cfg)
			err := Validate(cfg)
			if tt.wantErr == "" {
				if err != nil {
					t.Fatalf("unexpected error: %v", err)
				}
				return
			}
			if err == nil {
				t.Fatal("expected error but got none")
			}
			if !errors.Is(err, domain.ErrValidation) {
				t.Errorf("error does not wrap ErrValidation: %v", err)
			}
			if !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("error %q does not mention %q", err, tt.wantErr)
			}
		})
	}
}

func TestValidateReportsEveryProblem(t *testing.T) {
	cfg := validConfig()
	cfg.Ledger.Backend = "postgres"
	cfg.Monitoring.IntervalSeconds = 0

	err := Validate(cfg)
	if err == nil {
		t.Fatal("expected error")
	}
	for _, want := range []string{"ledger.backend", "interval_seconds"} {
		if !strings.Contains(err.Error(), want) {
			t.Errorf("missing %q in %v", want, err)
		}
	}
}
