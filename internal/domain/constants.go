package domain

import "time"

// File permissions constants
const (
	// DirectoryPermissions is the default permission for directories (rwxr-xr-x)
	DirectoryPermissions = 0o755
	// SecureFilePermissions is the permission for sensitive files (rw-------)
	SecureFilePermissions = 0o600
)

// Timeout and duration constants
const (
	// DefaultConfirmationTimeout is how long a confirmation may stay pending
	DefaultConfirmationTimeout = 60 * time.Second
	// DefaultCommandTimeout bounds a single executed command
	DefaultCommandTimeout = 30 * time.Second
	// DefaultMonitoringInterval is handed to the monitoring collaborator
	DefaultMonitoringInterval = 30 * time.Second
)

// Limit constants
const (
	// DefaultMaxConcurrent is the default bound on in-flight operations
	DefaultMaxConcurrent = 5
	// DefaultCPUThreshold is the CPU usage alert threshold (percent)
	DefaultCPUThreshold = 80.0
	// DefaultMemoryThreshold is the memory usage alert threshold (percent)
	DefaultMemoryThreshold = 85.0
	// DefaultDiskThreshold is the disk usage alert threshold (percent)
	DefaultDiskThreshold = 90.0
)

// Project layout
const (
	// AppDirName is the per-user state directory under $HOME
	AppDirName = ".opsguard"
	// DefaultAgentService is the agent's own systemd unit, always protected
	DefaultAgentService = "opsguard"
)
