package security

import (
	"path/filepath"
	"strings"

	"github.com/doeshing/opsguard/internal/domain"
)

// Policy holds the structural checker configuration.
type Policy struct {
	ProtectedPaths    []string
	ProtectedServices []string
	// Whitelist lists exact canonical commands whose critical rule matches may be
	// confirmed instead of blocked. Structural findings are never bypassed.
	Whitelist     []string
	RawShellTools []string
	// WorkingDir resolves relative paths of calls without a working_dir
	// argument. NewAssessor defaults it to the process working directory.
	WorkingDir string
}

// DefaultProtectedPaths are the system roots guarded by the critical-path check.
var DefaultProtectedPaths = []string{
	"/etc", "/boot", "/sys", "/proc", "/dev", "/bin", "/sbin", "/usr/bin", "/usr/sbin",
}

// DefaultProtectedServices are units whose loss cuts off remote access.
var DefaultProtectedServices = []string{
	"ssh", "sshd", "networking", "network-manager", "NetworkManager",
	"systemd-networkd", "firewall", "firewalld", "iptables", "ufw",
}

// DefaultPolicy returns the built-in policy with the agent's own unit protected.
func DefaultPolicy() Policy {
	return Policy{
		ProtectedPaths:    append([]string{}, DefaultProtectedPaths...),
		ProtectedServices: append(append([]string{}, DefaultProtectedServices...), domain.DefaultAgentService),
		RawShellTools:     []string{domain.ToolExecuteCommand},
	}
}

// PolicyFromConfig overlays configured values on DefaultPolicy.
func PolicyFromConfig(cfg domain.Config) Policy {
	policy := DefaultPolicy()
	if len(cfg.Security.ProtectedPaths) > 0 {
		policy.ProtectedPaths = append([]string{}, cfg.Security.ProtectedPaths...)
	}
	if len(cfg.Security.ProtectedServices) > 0 || cfg.Security.AgentService != "" {
		if len(cfg.Security.ProtectedServices) == 0 {
			cfg.Security.ProtectedServices = DefaultProtectedServices
		}
		policy.ProtectedServices = cfg.ProtectedServiceSet()
	}
	policy.Whitelist = append([]string{}, cfg.Security.Whitelist...)
	return policy
}

type compiledPolicy struct {
	roots     []string
	services  map[string]struct{}
	whitelist map[string]struct{}
	rawShell  map[string]struct{}
	workDir   string
}

func (p Policy) compile() compiledPolicy {
	c := compiledPolicy{
		services:  toSet(p.ProtectedServices, normalizeService),
		whitelist: toSet(p.Whitelist, strings.TrimSpace),
		rawShell:  toSet(p.RawShellTools, strings.TrimSpace),
	}
	if dir := strings.TrimSpace(p.WorkingDir); filepath.IsAbs(dir) {
		c.workDir = filepath.Clean(dir)
	}
	for _, root := range p.ProtectedPaths {
		root = strings.TrimSpace(root)
		if root == "" {
			continue
		}
		c.roots = append(c.roots, filepath.Clean(root))
	}
	return c
}

func toSet(values []string, norm func(string) string) map[string]struct{} {
	set := make(map[string]struct{}, len(values))
	for _, v := range values {
		v = norm(v)
		if v != "" {
			set[v] = struct{}{}
		}
	}
	return set
}

func normalizeService(name string) string {
	name = strings.ToLower(strings.TrimSpace(name))
	return strings.TrimSuffix(name, ".service")
}
