package domain

// Config mirrors ~/.opsguard/config.yaml.
type Config struct {
	ConfigFormatVersion string             `yaml:"config_format_version"`
	Security            SecuritySettings   `yaml:"security"`
	Confirmation        ConfirmSettings    `yaml:"confirmation"`
	Execution           ExecutionSettings  `yaml:"execution"`
	Ledger              LedgerSettings     `yaml:"ledger"`
	Monitoring          MonitoringSettings `yaml:"monitoring"`
	Logging             LoggingSettings    `yaml:"logging"`
}

// SecuritySettings defines assessor behavior.
type SecuritySettings struct {
	EnableRiskAssessment bool     `yaml:"enable_risk_assessment"`
	RequireConfirmation  bool     `yaml:"require_confirmation"`
	RulesFile            string   `yaml:"rules_file"`
	Whitelist            []string `yaml:"dangerous_commands_whitelist"`
	ProtectedPaths       []string `yaml:"protected_paths"`
	ProtectedServices    []string `yaml:"protected_services"`
	AgentService         string   `yaml:"agent_service"`
}

// ConfirmSettings controls the confirmation gateway.
type ConfirmSettings struct {
	TimeoutSeconds int `yaml:"timeout_seconds"`
}

// ExecutionSettings controls the bundled executor and throttling.
type ExecutionSettings struct {
	Shell                 string `yaml:"shell"`
	MaxConcurrent         int    `yaml:"max_concurrent"`
	CommandTimeoutSeconds int    `yaml:"command_timeout_seconds"`
	DryRun                bool   `yaml:"dry_run"`
}

// LedgerSettings selects the audit ledger backend.
type LedgerSettings struct {
	Backend string `yaml:"backend"`
	Path    string `yaml:"path"`
}

// MonitoringSettings carries thresholds for the external monitoring collaborator.
type MonitoringSettings struct {
	IntervalSeconds int     `yaml:"interval_seconds"`
	CPUThreshold    float64 `yaml:"cpu_threshold"`
	MemoryThreshold float64 `yaml:"memory_threshold"`
	DiskThreshold   float64 `yaml:"disk_threshold"`
}

// LoggingSettings configures the structured logger.
type LoggingSettings struct {
	Level string `yaml:"level"`
	File  string `yaml:"file"`
}

// Ledger backends.
const (
	LedgerBackendMemory = "memory"
	LedgerBackendJSONL  = "jsonl"
	LedgerBackendSQLite = "sqlite"
)
