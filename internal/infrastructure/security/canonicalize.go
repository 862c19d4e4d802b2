package security

import (
	"fmt"
	"regexp"
	"sort"
	"strconv"
	"strings"

	"github.com/kballard/go-shellquote"

	"github.com/doeshing/opsguard/internal/domain"
)

// Canonical is the shell-equivalent rendering of a tool call together with the
// facts the structural checkers need.
type Canonical struct {
	Command   string
	Operation string
	Service   string
	// Paths may be relative; WorkDir, when set, is the directory they are
	// relative to.
	Paths       []string
	WorkDir     string
	Destructive bool
	ReadOnly    bool
	Known       bool
}

var (
	serviceNamePattern = regexp.MustCompile(`^[A-Za-z0-9@._:-]+$`)
	octalModePattern   = regexp.MustCompile(`^[0-7]{3,4}$`)
	symbolicMode       = regexp.MustCompile(`^[ugoa]*[+=-][rwxXst]*(,[ugoa]*[+=-][rwxXst]*)*$`)
	destructiveShell   = regexp.MustCompile(`(?i)\b(rm|rmdir|unlink|shred|wipefs|truncate|mkfs(\.\w+)?)\b|\bdd\s.*\bof=`)
	redirectOperator   = regexp.MustCompile(`[0-9&]*[<>]+[|&]?`)
	fdNumber           = regexp.MustCompile(`^[0-9]+-?$`)
)

// redirectSinks are device targets a redirect may write to without touching
// the protected tree.
var redirectSinks = map[string]bool{
	"/dev/null": true, "/dev/stdout": true, "/dev/stderr": true, "/dev/tty": true,
}

var serviceActions = map[string]bool{
	"start": true, "stop": true, "restart": true, "reload": true, "status": true,
	"enable": true, "disable": true, "kill": true, "mask": true, "unmask": true,
	"is-active": true, "is-enabled": true,
}

// ServiceDestructiveActions take a service out of operation.
var ServiceDestructiveActions = map[string]bool{
	"stop": true, "disable": true, "kill": true, "mask": true,
}

// Canonicalize renders a tool call as the shell command it is equivalent to.
// The error describes why the arguments could not be interpreted. An optional
// working_dir argument names the directory the command runs in.
func Canonicalize(call domain.ToolCall) (Canonical, error) {
	workDir, _, err := call.String("working_dir")
	if err != nil {
		return Canonical{}, err
	}
	c, err := canonicalize(call)
	c.WorkDir = strings.TrimSpace(workDir)
	return c, err
}

func canonicalize(call domain.ToolCall) (Canonical, error) {
	switch call.Name {
	case domain.ToolGetSystemInfo:
		return Canonical{Command: "uname -a", ReadOnly: true, Known: true}, nil
	case domain.ToolMonitorProcesses:
		return canonicalProcesses(call)
	case domain.ToolCheckLogs:
		return canonicalLogs(call)
	case domain.ToolManageService:
		return canonicalService(call)
	case domain.ToolFileOperations:
		return canonicalFile(call)
	case domain.ToolNetworkDiagnostics:
		return canonicalNetwork(call)
	case domain.ToolDiskManagement:
		return canonicalDisk(call)
	case domain.ToolExecuteCommand:
		return canonicalShell(call)
	default:
		return canonicalGeneric(call), nil
	}
}

// CanonicalCommand is Canonicalize reduced to the command string.
func CanonicalCommand(call domain.ToolCall) (string, error) {
	c, err := Canonicalize(call)
	if err != nil {
		return "", err
	}
	return c.Command, nil
}

func canonicalProcesses(call domain.ToolCall) (Canonical, error) {
	filter, err := call.FirstString("filter", "name")
	if err != nil {
		return Canonical{}, err
	}
	c := Canonical{Command: "ps aux", ReadOnly: true, Known: true}
	if filter != "" {
		c.Command = shellquote.Join("pgrep", "-a", filter)
	}
	return c, nil
}

func canonicalLogs(call domain.ToolCall) (Canonical, error) {
	lines, err := call.Int("lines", 50)
	if err != nil {
		return Canonical{}, err
	}
	if lines <= 0 {
		return Canonical{}, fmt.Errorf("lines must be positive: %w", domain.ErrValidation)
	}
	args := []string{"journalctl", "--no-pager", "-n", strconv.Itoa(lines)}
	service, err := call.FirstString("service", "service_name", "unit")
	if err != nil {
		return Canonical{}, err
	}
	if service != "" {
		if !serviceNamePattern.MatchString(service) {
			return Canonical{}, fmt.Errorf("invalid service name %q: %w", service, domain.ErrValidation)
		}
		args = append(args, "-u", service)
	}
	priority, _, err := call.String("priority")
	if err != nil {
		return Canonical{}, err
	}
	if priority != "" {
		args = append(args, "-p", priority)
	}
	return Canonical{Command: shellquote.Join(args...), Service: service, ReadOnly: true, Known: true}, nil
}

func canonicalService(call domain.ToolCall) (Canonical, error) {
	service, err := call.FirstString("service", "service_name")
	if err != nil {
		return Canonical{}, err
	}
	action, _, err := call.String("action")
	if err != nil {
		return Canonical{}, err
	}
	action = strings.ToLower(strings.TrimSpace(action))
	service = strings.TrimSpace(service)
	if service == "" {
		return Canonical{}, fmt.Errorf("service name is required: %w", domain.ErrValidation)
	}
	if !serviceNamePattern.MatchString(service) {
		return Canonical{}, fmt.Errorf("invalid service name %q: %w", service, domain.ErrValidation)
	}
	if !serviceActions[action] {
		return Canonical{}, fmt.Errorf("unsupported service action %q: %w", action, domain.ErrValidation)
	}
	readOnly := action == "status" || action == "is-active" || action == "is-enabled"
	return Canonical{
		Command:   shellquote.Join("systemctl", action, service),
		Operation: action,
		Service:   service,
		ReadOnly:  readOnly,
		Known:     true,
	}, nil
}

func canonicalFile(call domain.ToolCall) (Canonical, error) {
	operation, _, err := call.String("operation")
	if err != nil {
		return Canonical{}, err
	}
	operation = strings.ToLower(strings.TrimSpace(operation))
	path, _, err := call.String("path")
	if err != nil {
		return Canonical{}, err
	}
	target, _, err := call.String("target")
	if err != nil {
		return Canonical{}, err
	}
	recursive := call.Bool("recursive")

	c := Canonical{Operation: operation, Known: true}
	needPath := func() error {
		if strings.TrimSpace(path) == "" {
			return fmt.Errorf("file operation %q requires a path: %w", operation, domain.ErrValidation)
		}
		c.Paths = append(c.Paths, path)
		return nil
	}
	needTarget := func() error {
		if strings.TrimSpace(target) == "" {
			return fmt.Errorf("file operation %q requires a target: %w", operation, domain.ErrValidation)
		}
		c.Paths = append(c.Paths, target)
		return nil
	}

	switch operation {
	case "list", "read":
		c.ReadOnly = true
		if path == "" {
			path = "."
		}
		c.Paths = append(c.Paths, path)
		if operation == "read" {
			c.Command = shellquote.Join("cat", path)
		} else {
			c.Command = shellquote.Join("ls", "-la", path)
		}
	case "create":
		if err := needPath(); err != nil {
			return Canonical{}, err
		}
		if strings.HasSuffix(path, "/") {
			c.Command = shellquote.Join("mkdir", "-p", path)
		} else {
			c.Command = shellquote.Join("touch", path)
		}
	case "delete", "remove":
		if err := needPath(); err != nil {
			return Canonical{}, err
		}
		c.Destructive = true
		if recursive {
			c.Command = shellquote.Join("rm", "-r", path)
		} else {
			c.Command = shellquote.Join("rm", path)
		}
	case "copy":
		if err := needPath(); err != nil {
			return Canonical{}, err
		}
		if err := needTarget(); err != nil {
			return Canonical{}, err
		}
		if recursive {
			c.Command = shellquote.Join("cp", "-r", path, target)
		} else {
			c.Command = shellquote.Join("cp", path, target)
		}
	case "move", "rename":
		if err := needPath(); err != nil {
			return Canonical{}, err
		}
		if err := needTarget(); err != nil {
			return Canonical{}, err
		}
		c.Command = shellquote.Join("mv", path, target)
	case "permissions", "chmod":
		if err := needPath(); err != nil {
			return Canonical{}, err
		}
		mode, _, err := call.String("permissions")
		if err != nil {
			return Canonical{}, err
		}
		if !octalModePattern.MatchString(mode) && !symbolicMode.MatchString(mode) {
			return Canonical{}, fmt.Errorf("invalid permissions %q: %w", mode, domain.ErrValidation)
		}
		if recursive {
			c.Command = shellquote.Join("chmod", "-R", mode, path)
		} else {
			c.Command = shellquote.Join("chmod", mode, path)
		}
	case "":
		return Canonical{}, fmt.Errorf("file operation is required: %w", domain.ErrValidation)
	default:
		return Canonical{}, fmt.Errorf("unsupported file operation %q: %w", operation, domain.ErrValidation)
	}
	return c, nil
}

func canonicalNetwork(call domain.ToolCall) (Canonical, error) {
	operation, _, err := call.String("operation")
	if err != nil {
		return Canonical{}, err
	}
	target, _, err := call.String("target")
	if err != nil {
		return Canonical{}, err
	}
	c := Canonical{Operation: operation, ReadOnly: true, Known: true}
	needTarget := func() error {
		if strings.TrimSpace(target) == "" {
			return fmt.Errorf("network operation %q requires a target: %w", operation, domain.ErrValidation)
		}
		return nil
	}
	switch operation {
	case "ping":
		if err := needTarget(); err != nil {
			return Canonical{}, err
		}
		count, err := call.Int("count", 4)
		if err != nil {
			return Canonical{}, err
		}
		c.Command = shellquote.Join("ping", "-c", strconv.Itoa(count), target)
	case "traceroute":
		if err := needTarget(); err != nil {
			return Canonical{}, err
		}
		c.Command = shellquote.Join("traceroute", target)
	case "dns", "nslookup":
		if err := needTarget(); err != nil {
			return Canonical{}, err
		}
		c.Command = shellquote.Join("nslookup", target)
	case "ports", "netstat", "ss":
		c.Command = "ss -tuln"
	case "interfaces":
		c.Command = "ip addr show"
	case "firewall", "iptables_list":
		c.Command = "iptables -L -n"
	case "":
		return Canonical{}, fmt.Errorf("network operation is required: %w", domain.ErrValidation)
	default:
		return Canonical{}, fmt.Errorf("unsupported network operation %q: %w", operation, domain.ErrValidation)
	}
	return c, nil
}

func canonicalDisk(call domain.ToolCall) (Canonical, error) {
	operation, _, err := call.String("operation")
	if err != nil {
		return Canonical{}, err
	}
	path, _, err := call.String("path")
	if err != nil {
		return Canonical{}, err
	}
	device, _, err := call.String("device")
	if err != nil {
		return Canonical{}, err
	}
	c := Canonical{Operation: operation, Known: true}
	for _, p := range []string{path, device} {
		if p != "" {
			c.Paths = append(c.Paths, p)
		}
	}
	switch operation {
	case "usage", "df":
		c.ReadOnly = true
		if path != "" {
			c.Command = shellquote.Join("df", "-h", path)
		} else {
			c.Command = "df -h"
		}
	case "du":
		c.ReadOnly = true
		if path == "" {
			path = "."
		}
		c.Command = shellquote.Join("du", "-sh", path)
	case "mounts", "lsblk":
		c.ReadOnly = true
		c.Command = "lsblk"
	case "mount":
		if device == "" || path == "" {
			return Canonical{}, fmt.Errorf("mount requires device and path: %w", domain.ErrValidation)
		}
		c.Command = shellquote.Join("mount", device, path)
	case "unmount", "umount":
		if device == "" && path == "" {
			return Canonical{}, fmt.Errorf("unmount requires a path or device: %w", domain.ErrValidation)
		}
		c.Command = shellquote.Join("umount", firstNonEmpty(path, device))
	case "fsck":
		if device == "" {
			return Canonical{}, fmt.Errorf("fsck requires a device: %w", domain.ErrValidation)
		}
		c.Command = shellquote.Join("fsck", "-n", device)
	case "format":
		if device == "" {
			return Canonical{}, fmt.Errorf("format requires a device: %w", domain.ErrValidation)
		}
		fstype, _, err := call.String("fstype")
		if err != nil {
			return Canonical{}, err
		}
		if fstype == "" {
			fstype = "ext4"
		}
		c.Destructive = true
		c.Command = shellquote.Join("mkfs."+fstype, device)
	case "":
		return Canonical{}, fmt.Errorf("disk operation is required: %w", domain.ErrValidation)
	default:
		return Canonical{}, fmt.Errorf("unsupported disk operation %q: %w", operation, domain.ErrValidation)
	}
	return c, nil
}

func canonicalShell(call domain.ToolCall) (Canonical, error) {
	command, _, err := call.String("command")
	if err != nil {
		return Canonical{}, err
	}
	command = strings.TrimSpace(command)
	if command == "" {
		return Canonical{}, fmt.Errorf("command is required: %w", domain.ErrValidation)
	}
	words, splitErr := shellquote.Split(command)
	if splitErr != nil {
		words = strings.Fields(command)
	}
	c := Canonical{
		Command:     command,
		Destructive: destructiveShell.MatchString(command),
		Known:       true,
	}
	c.Paths = shellPaths(words, c.Destructive)
	return c, nil
}

// shellPaths picks the words of a raw command that name files. Redirect
// operators are split off first so ">/etc/passwd" and "x>/etc/passwd" yield
// their target. Relative words count when they look like paths, or always
// when the command is destructive.
func shellPaths(words []string, destructive bool) []string {
	var paths []string
	for i, w := range words {
		for j, piece := range redirectOperator.Split(w, -1) {
			redirected := j > 0
			switch {
			case piece == "":
			case redirected && (fdNumber.MatchString(piece) || redirectSinks[piece]):
			case strings.HasPrefix(piece, "/"), strings.HasPrefix(piece, "~"):
				paths = append(paths, piece)
			case strings.Contains(piece, "=/"):
				paths = append(paths, piece[strings.Index(piece, "=/")+1:])
			case redirected:
				paths = append(paths, piece)
			case i == 0 && j == 0, strings.HasPrefix(piece, "-"):
			case destructive, strings.Contains(piece, "/"), piece == ".", piece == "..":
				paths = append(paths, piece)
			}
		}
	}
	return paths
}

// canonicalGeneric renders unknown tools as "tool key=value ..." with sorted keys.
func canonicalGeneric(call domain.ToolCall) Canonical {
	keys := make([]string, 0, len(call.Arguments))
	for k := range call.Arguments {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	parts := []string{call.Name}
	for _, k := range keys {
		parts = append(parts, fmt.Sprintf("%s=%v", k, call.Arguments[k]))
	}
	return Canonical{Command: strings.Join(parts, " ")}
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
