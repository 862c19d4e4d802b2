package security

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strings"

	"github.com/doeshing/opsguard/internal/domain"
	"github.com/doeshing/opsguard/internal/ports"
)

// Assessor implements the SecurityService port. It is stateless apart from the
// rule repository, so concurrent calls need no coordination.
type Assessor struct {
	rules  ports.RuleRepository
	policy compiledPolicy
}

var shellMetachars = regexp.MustCompile("(;|&&|\\|\\||\\||`|\\$\\(|\\$\\{|\\n|\\r|>|<)")

// NewAssessor wires a rule repository with the structural policy.
func NewAssessor(rules ports.RuleRepository, policy Policy) *Assessor {
	if policy.WorkingDir == "" {
		policy.WorkingDir, _ = os.Getwd()
	}
	return &Assessor{rules: rules, policy: policy.compile()}
}

// Assess implements ports.SecurityService. It never fails: a malformed call is
// reported as a high-risk finding.
func (a *Assessor) Assess(call domain.ToolCall) (assessment domain.RiskAssessment) {
	defer func() {
		if r := recover(); r != nil {
			assessment = domain.NewRiskAssessment("", []domain.Finding{{
				Level:   domain.RiskHigh,
				Reason:  fmt.Sprintf("unable to canonicalize input: %v", r),
				Checker: domain.CheckerCanonical,
			}})
		}
	}()

	canonical, err := Canonicalize(call)
	var findings []domain.Finding
	if err != nil {
		findings = append(findings, domain.Finding{
			Level:   domain.RiskHigh,
			Reason:  "unable to canonicalize input: " + err.Error(),
			Checker: domain.CheckerCanonical,
		})
	}
	patternFindings := a.checkPatterns(canonical)
	findings = append(findings, patternFindings...)
	findings = append(findings, a.checkCriticalPaths(canonical)...)
	findings = append(findings, a.checkInjection(call)...)
	findings = append(findings, a.checkProtectedService(canonical, len(patternFindings) > 0)...)
	findings = append(findings, a.checkToolProfile(call, canonical, err == nil)...)
	return domain.NewRiskAssessment(canonical.Command, findings)
}

func (a *Assessor) whitelisted(command string) bool {
	_, ok := a.policy.whitelist[strings.TrimSpace(command)]
	return ok
}

// checkPatterns runs the rule repository over the canonical command. Critical
// matches block unless whitelisted. Read-only structured tools render their
// own command, so a match there sits in an argument and only asks for
// confirmation.
func (a *Assessor) checkPatterns(c Canonical) []domain.Finding {
	if a.rules == nil || strings.TrimSpace(c.Command) == "" {
		return nil
	}
	bypass := a.whitelisted(c.Command) || c.ReadOnly
	var findings []domain.Finding
	for _, match := range a.rules.Evaluate(c.Command) {
		findings = append(findings, domain.Finding{
			Level:            match.Rule.Level,
			Reason:           "Matches rule: " + match.Rule.Description,
			Checker:          domain.CheckerPattern,
			Rule:             match.Rule.Name,
			NonWhitelistable: match.Rule.Level == domain.RiskCritical && !bypass,
		})
	}
	return findings
}

func (a *Assessor) checkCriticalPaths(c Canonical) []domain.Finding {
	var findings []domain.Finding
	seen := map[string]bool{}
	base := a.baseDir(c.WorkDir)
	for _, raw := range c.Paths {
		path, ok := resolveTarget(raw, base)
		if !ok {
			if !seen[raw] {
				seen[raw] = true
				findings = append(findings, domain.Finding{
					Level:   domain.RiskHigh,
					Reason:  "Relative path escapes working directory: " + raw,
					Checker: domain.CheckerCriticalPath,
				})
			}
			continue
		}
		if path == "" {
			continue
		}
		if path == "/" {
			if c.Destructive && !seen["/"] {
				seen["/"] = true
				findings = append(findings, domain.Finding{
					Level:            domain.RiskCritical,
					Reason:           "Destructive operation on root directory",
					Checker:          domain.CheckerCriticalPath,
					NonWhitelistable: true,
				})
			}
			continue
		}
		for _, root := range a.policy.roots {
			if seen[root] || !underRoot(path, root) {
				continue
			}
			seen[root] = true
			findings = append(findings, domain.Finding{
				Level:   domain.RiskHigh,
				Reason:  "Operation on critical system path: " + root,
				Checker: domain.CheckerCriticalPath,
			})
			if c.Destructive {
				findings = append(findings, domain.Finding{
					Level:            domain.RiskCritical,
					Reason:           "Destructive operation on critical system path: " + root,
					Checker:          domain.CheckerCriticalPath,
					NonWhitelistable: true,
				})
			}
		}
	}
	return findings
}

// baseDir is the absolute directory relative paths of a call resolve against,
// or "" when none is known.
func (a *Assessor) baseDir(workDir string) string {
	switch {
	case workDir == "":
		return a.policy.workDir
	case filepath.IsAbs(workDir):
		return filepath.Clean(workDir)
	case a.policy.workDir != "":
		return filepath.Join(a.policy.workDir, workDir)
	}
	return ""
}

func (a *Assessor) checkInjection(call domain.ToolCall) []domain.Finding {
	values := call.StringValues()
	if _, raw := a.policy.rawShell[call.Name]; raw {
		command := values["command"]
		if shellMetachars.MatchString(command) {
			return []domain.Finding{{
				Level:   domain.RiskMedium,
				Reason:  "Contains shell chaining or redirection",
				Checker: domain.CheckerInjection,
			}}
		}
		return nil
	}
	for _, key := range sortedKeys(values) {
		if shellMetachars.MatchString(values[key]) {
			return []domain.Finding{{
				Level:            domain.RiskCritical,
				Reason:           fmt.Sprintf("Potential command injection in argument %q", key),
				Checker:          domain.CheckerInjection,
				NonWhitelistable: true,
			}}
		}
	}
	return nil
}

func (a *Assessor) checkProtectedService(c Canonical, ruleMatched bool) []domain.Finding {
	if c.Service == "" || c.ReadOnly || c.Operation == "" {
		return nil
	}
	if _, protected := a.policy.services[normalizeService(c.Service)]; protected && ServiceDestructiveActions[c.Operation] {
		return []domain.Finding{{
			Level:   domain.RiskHigh,
			Reason:  fmt.Sprintf("Stopping or disabling critical service: %s", c.Service),
			Checker: domain.CheckerProtectedService,
		}}
	}
	if ruleMatched {
		return nil
	}
	return []domain.Finding{{
		Level:   domain.RiskMedium,
		Reason:  fmt.Sprintf("Service state change: %s %s", c.Operation, c.Service),
		Checker: domain.CheckerProtectedService,
	}}
}

func (a *Assessor) checkToolProfile(call domain.ToolCall, c Canonical, ok bool) []domain.Finding {
	if !ok {
		return nil
	}
	if !c.Known {
		return []domain.Finding{{
			Level:   domain.RiskMedium,
			Reason:  "Unrecognized tool: " + call.Name,
			Checker: domain.CheckerToolProfile,
		}}
	}
	if c.ReadOnly {
		return nil
	}
	switch call.Name {
	case domain.ToolExecuteCommand:
		if a.whitelisted(c.Command) {
			return nil
		}
		return []domain.Finding{{
			Level:   domain.RiskMedium,
			Reason:  "Arbitrary shell command",
			Checker: domain.CheckerToolProfile,
		}}
	case domain.ToolFileOperations, domain.ToolDiskManagement:
		return []domain.Finding{{
			Level:   domain.RiskMedium,
			Reason:  fmt.Sprintf("Modifies the filesystem: %s", c.Operation),
			Checker: domain.CheckerToolProfile,
		}}
	}
	return nil
}

// resolveTarget reduces a path argument to the absolute directory it affects.
// Relative paths are joined to base and trailing glob components widen to
// their parent. Home-relative paths resolve to "". ok is false when raw climbs
// with ".." and there is nothing to resolve it against.
func resolveTarget(raw, base string) (path string, ok bool) {
	raw = strings.TrimSpace(raw)
	switch {
	case raw == "":
		return "", true
	case strings.HasPrefix(raw, "~"):
		return "", !climbs(raw)
	case !filepath.IsAbs(raw):
		if base == "" {
			return "", !climbs(raw)
		}
		raw = filepath.Join(base, raw)
	}
	path = filepath.Clean(raw)
	for path != "/" && strings.ContainsAny(filepath.Base(path), "*?[") {
		path = filepath.Dir(path)
	}
	return path, true
}

func climbs(path string) bool {
	for _, part := range strings.Split(filepath.ToSlash(path), "/") {
		if part == ".." {
			return true
		}
	}
	return false
}

func underRoot(path, root string) bool {
	if root == "/" {
		return false
	}
	return path == root || strings.HasPrefix(path, root+"/")
}

var _ ports.SecurityService = (*Assessor)(nil)

func sortedKeys(values map[string]string) []string {
	keys := make([]string, 0, len(values))
	for k := range values {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
