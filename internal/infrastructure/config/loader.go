package config

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/doeshing/opsguard/assets"
	"github.com/doeshing/opsguard/internal/domain"
	"github.com/doeshing/opsguard/internal/pkg/filesystem"
	"github.com/doeshing/opsguard/internal/ports"
)

// FileLoader loads YAML configuration from ~/.opsguard/config.yaml (overridable
// via OPSGUARD_CONFIG) and applies environment overrides on top.
type FileLoader struct {
	overridePath string
}

// NewFileLoader builds a new loader.
func NewFileLoader(path string) *FileLoader {
	return &FileLoader{overridePath: path}
}

// Load implements ports.ConfigProvider.
func (l *FileLoader) Load(context.Context) (domain.Config, error) {
	path := l.resolvePath()
	if err := ensureConfigDir(path); err != nil {
		return domain.Config{}, fmt.Errorf("ensure config dir: %w", err)
	}

	cfg := defaultConfig()
	data, err := os.ReadFile(path)
	switch {
	case errors.Is(err, fs.ErrNotExist):
		if err := writeDefault(path); err != nil {
			return domain.Config{}, err
		}
	case err != nil:
		return domain.Config{}, err
	default:
		// Keys missing from the file keep their default values.
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return domain.Config{}, fmt.Errorf("parse %s: %w", path, err)
		}
	}

	if err := applyEnv(&cfg); err != nil {
		return domain.Config{}, err
	}
	return hydrateDefaults(cfg), nil
}

// Path returns the resolved config file path.
func (l *FileLoader) Path() string {
	return l.resolvePath()
}

// Save writes the given config back to disk.
func (l *FileLoader) Save(cfg domain.Config) error {
	raw, err := yaml.Marshal(cfg)
	if err != nil {
		return err
	}
	if err := ensureConfigDir(l.resolvePath()); err != nil {
		return err
	}
	return os.WriteFile(l.resolvePath(), raw, domain.SecureFilePermissions)
}

// Backup copies the current config file to a timestamped backup.
func (l *FileLoader) Backup() (string, error) {
	path := l.resolvePath()
	data, err := os.ReadFile(path)
	if err != nil {
		return "", err
	}
	backup := fmt.Sprintf("%s.%s.bak", path, time.Now().Format("20060102T150405"))
	if err := os.WriteFile(backup, data, domain.SecureFilePermissions); err != nil {
		return "", err
	}
	return backup, nil
}

func (l *FileLoader) resolvePath() string {
	if l.overridePath != "" {
		return ExpandPath(l.overridePath)
	}
	if custom := os.Getenv("OPSGUARD_CONFIG"); custom != "" {
		return ExpandPath(custom)
	}
	return filepath.Join(filesystem.UserHomeDir(), domain.AppDirName, "config.yaml")
}

func ensureConfigDir(path string) error {
	return filesystem.EnsureParentDir(path, domain.DirectoryPermissions)
}

func writeDefault(path string) error {
	return os.WriteFile(path, assets.DefaultConfigYAML, domain.SecureFilePermissions)
}

func defaultConfig() domain.Config {
	var cfg domain.Config
	if err := yaml.Unmarshal(assets.DefaultConfigYAML, &cfg); err != nil {
		// Embedded YAML is compiled in; fall back to a minimal safe config.
		return domain.Config{
			ConfigFormatVersion: "1",
			Security: domain.SecuritySettings{
				EnableRiskAssessment: true,
				RequireConfirmation:  true,
				AgentService:         domain.DefaultAgentService,
			},
			Ledger: domain.LedgerSettings{Backend: domain.LedgerBackendSQLite},
		}
	}
	return cfg
}

// DefaultConfig exposes the bootstrap configuration template.
func DefaultConfig() domain.Config {
	return hydrateDefaults(defaultConfig())
}

func hydrateDefaults(cfg domain.Config) domain.Config {
	if cfg.ConfigFormatVersion == "" {
		cfg.ConfigFormatVersion = "1"
	}
	if cfg.Security.AgentService == "" {
		cfg.Security.AgentService = domain.DefaultAgentService
	}
	if cfg.Security.RulesFile != "" {
		cfg.Security.RulesFile = ExpandPath(cfg.Security.RulesFile)
	}
	if cfg.Ledger.Backend == "" {
		cfg.Ledger.Backend = domain.LedgerBackendSQLite
	}
	if cfg.Ledger.Path == "" {
		name := "ledger.db"
		if cfg.Ledger.Backend == domain.LedgerBackendJSONL {
			name = "ledger.jsonl"
		}
		cfg.Ledger.Path = filepath.Join(filesystem.UserHomeDir(), domain.AppDirName, name)
	} else {
		cfg.Ledger.Path = ExpandPath(cfg.Ledger.Path)
	}
	if cfg.Logging.Level == "" {
		cfg.Logging.Level = "info"
	}
	if cfg.Logging.File != "" {
		cfg.Logging.File = ExpandPath(cfg.Logging.File)
	}
	if cfg.Monitoring.IntervalSeconds == 0 {
		cfg.Monitoring.IntervalSeconds = int(domain.DefaultMonitoringInterval / time.Second)
	}
	return cfg
}

// applyEnv overlays the supported environment variables.
func applyEnv(cfg *domain.Config) error {
	var errs []error
	boolVar := func(name string, dst *bool) {
		if v, ok := lookup(name); ok {
			b, err := strconv.ParseBool(v)
			if err != nil {
				errs = append(errs, fmt.Errorf("%s: %w", name, err))
				return
			}
			*dst = b
		}
	}
	intVar := func(name string, dst *int) {
		if v, ok := lookup(name); ok {
			n, err := strconv.Atoi(v)
			if err != nil {
				errs = append(errs, fmt.Errorf("%s: %w", name, err))
				return
			}
			*dst = n
		}
	}
	floatVar := func(name string, dst *float64) {
		if v, ok := lookup(name); ok {
			f, err := strconv.ParseFloat(v, 64)
			if err != nil {
				errs = append(errs, fmt.Errorf("%s: %w", name, err))
				return
			}
			*dst = f
		}
	}

	boolVar("ENABLE_RISK_ASSESSMENT", &cfg.Security.EnableRiskAssessment)
	boolVar("REQUIRE_CONFIRMATION", &cfg.Security.RequireConfirmation)
	if v, ok := lookup("DANGEROUS_COMMANDS_WHITELIST"); ok {
		cfg.Security.Whitelist = SplitList(v)
	}
	intVar("MONITORING_INTERVAL", &cfg.Monitoring.IntervalSeconds)
	floatVar("CPU_THRESHOLD", &cfg.Monitoring.CPUThreshold)
	floatVar("MEMORY_THRESHOLD", &cfg.Monitoring.MemoryThreshold)
	floatVar("DISK_THRESHOLD", &cfg.Monitoring.DiskThreshold)
	if v, ok := lookup("LOG_LEVEL"); ok {
		cfg.Logging.Level = strings.ToLower(v)
	}
	if v, ok := lookup("LOG_FILE"); ok {
		cfg.Logging.File = v
	}
	intVar("OPSGUARD_MAX_CONCURRENT", &cfg.Execution.MaxConcurrent)
	intVar("OPSGUARD_CONFIRM_TIMEOUT", &cfg.Confirmation.TimeoutSeconds)
	if v, ok := lookup("OPSGUARD_LEDGER"); ok {
		cfg.Ledger.Backend = strings.ToLower(v)
	}
	if v, ok := lookup("OPSGUARD_LEDGER_PATH"); ok {
		cfg.Ledger.Path = v
	}
	return errors.Join(errs...)
}

func lookup(name string) (string, bool) {
	v, ok := os.LookupEnv(name)
	if !ok {
		return "", false
	}
	v = strings.TrimSpace(v)
	return v, v != "" || name == "DANGEROUS_COMMANDS_WHITELIST"
}

// SplitList splits a comma-separated list, dropping blank entries.
func SplitList(value string) []string {
	var out []string
	for _, part := range strings.Split(value, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

// ExpandPath resolves a leading ~/ against the user's home directory.
func ExpandPath(path string) string {
	if filepath.IsAbs(path) {
		return path
	}
	if path == "~" {
		return filesystem.UserHomeDir()
	}
	if strings.HasPrefix(path, "~/") {
		return filepath.Join(filesystem.UserHomeDir(), path[2:])
	}
	return filepath.Clean(path)
}

var _ ports.ConfigProvider = (*FileLoader)(nil)
