package rollback

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/kballard/go-shellquote"

	"github.com/doeshing/opsguard/internal/domain"
	"github.com/doeshing/opsguard/internal/ports"
)

// Synthesizer implements ports.RollbackSynthesizer with a fixed inverse table.
type Synthesizer struct{}

// NewSynthesizer returns the table-driven synthesizer.
func NewSynthesizer() *Synthesizer {
	return &Synthesizer{}
}

var serviceInverse = map[string]string{
	"start":   "stop",
	"stop":    "start",
	"enable":  "disable",
	"disable": "enable",
	// Prior state is not tracked, so the closest inverse of a restart is a stop.
	"restart": "stop",
}

var readOnlyTools = map[string]bool{
	domain.ToolGetSystemInfo:      true,
	domain.ToolMonitorProcesses:   true,
	domain.ToolCheckLogs:          true,
	domain.ToolNetworkDiagnostics: true,
}

// Synthesize returns inverse commands for calls, last call first. It fails
// with domain.ErrNoInverseKnown on the first call it cannot invert.
func (s *Synthesizer) Synthesize(calls []domain.ToolCall) ([]string, error) {
	commands := []string{}
	for i := len(calls) - 1; i >= 0; i-- {
		inverse, err := s.invert(calls[i])
		if err != nil {
			return nil, err
		}
		commands = append(commands, inverse...)
	}
	return commands, nil
}

func (s *Synthesizer) invert(call domain.ToolCall) ([]string, error) {
	if readOnlyTools[call.Name] {
		return nil, nil
	}
	switch call.Name {
	case domain.ToolManageService:
		return invertService(call)
	case domain.ToolFileOperations:
		return invertFile(call)
	case domain.ToolDiskManagement:
		return invertDisk(call)
	}
	return nil, noInverse(call, "")
}

func invertService(call domain.ToolCall) ([]string, error) {
	action, _, err := call.String("action")
	if err != nil {
		return nil, err
	}
	service, err := call.FirstString("service", "service_name")
	if err != nil {
		return nil, err
	}
	action = strings.ToLower(strings.TrimSpace(action))
	switch action {
	case "status", "is-active", "is-enabled":
		return nil, nil
	}
	inverse, ok := serviceInverse[action]
	if !ok || service == "" {
		return nil, noInverse(call, action)
	}
	return []string{shellquote.Join("systemctl", inverse, service)}, nil
}

func invertFile(call domain.ToolCall) ([]string, error) {
	operation, _, err := call.String("operation")
	if err != nil {
		return nil, err
	}
	path, _, err := call.String("path")
	if err != nil {
		return nil, err
	}
	target, _, err := call.String("target")
	if err != nil {
		return nil, err
	}
	workDir, _, err := call.String("working_dir")
	if err != nil {
		return nil, err
	}
	path, target = inDir(workDir, path), inDir(workDir, target)
	switch strings.ToLower(operation) {
	case "list", "read":
		return nil, nil
	case "copy":
		if target == "" {
			break
		}
		return []string{shellquote.Join("rm", "-f", target)}, nil
	case "create":
		if path == "" {
			break
		}
		if strings.HasSuffix(path, "/") {
			return []string{shellquote.Join("rmdir", path)}, nil
		}
		return []string{shellquote.Join("rm", "-f", path)}, nil
	case "move", "rename":
		if path == "" || target == "" {
			break
		}
		return []string{shellquote.Join("mv", target, path)}, nil
	}
	return nil, noInverse(call, operation)
}

func invertDisk(call domain.ToolCall) ([]string, error) {
	operation, _, err := call.String("operation")
	if err != nil {
		return nil, err
	}
	switch operation {
	case "usage", "df", "du", "mounts", "lsblk", "fsck":
		return nil, nil
	case "mount":
		path, _, err := call.String("path")
		if err != nil {
			return nil, err
		}
		workDir, _, err := call.String("working_dir")
		if err != nil {
			return nil, err
		}
		if path != "" {
			return []string{shellquote.Join("umount", inDir(workDir, path))}, nil
		}
	}
	return nil, noInverse(call, operation)
}

// inDir anchors a relative path to the call's working_dir, since inverse
// commands run from wherever the rollback is invoked.
func inDir(dir, path string) string {
	dir = strings.TrimSpace(dir)
	if dir == "" || path == "" || filepath.IsAbs(path) {
		return path
	}
	joined := filepath.Join(dir, path)
	if strings.HasSuffix(path, "/") {
		joined += "/"
	}
	return joined
}

func noInverse(call domain.ToolCall, operation string) error {
	if operation == "" {
		return fmt.Errorf("%s: %w", call.Name, domain.ErrNoInverseKnown)
	}
	return fmt.Errorf("%s %s: %w", call.Name, operation, domain.ErrNoInverseKnown)
}

var _ ports.RollbackSynthesizer = (*Synthesizer)(nil)
