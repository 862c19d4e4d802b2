package domain

import "strings"

// RiskLevel enumerates assessment outcomes. Levels are totally ordered.
type RiskLevel string

const (
	RiskLow      RiskLevel = "low"
	RiskMedium   RiskLevel = "medium"
	RiskHigh     RiskLevel = "high"
	RiskCritical RiskLevel = "critical"
)

// Rank returns the ordinal position of the level; unknown levels rank as low.
func (l RiskLevel) Rank() int {
	switch l {
	case RiskMedium:
		return 1
	case RiskHigh:
		return 2
	case RiskCritical:
		return 3
	default:
		return 0
	}
}

// AtLeast reports whether l is as severe as other.
func (l RiskLevel) AtLeast(other RiskLevel) bool {
	return l.Rank() >= other.Rank()
}

// Valid reports whether l is one of the four known levels.
func (l RiskLevel) Valid() bool {
	switch l {
	case RiskLow, RiskMedium, RiskHigh, RiskCritical:
		return true
	}
	return false
}

// MaxRisk returns the more severe of a and b.
func MaxRisk(a, b RiskLevel) RiskLevel {
	if b.Rank() > a.Rank() {
		return b
	}
	if !a.Valid() {
		return RiskLow
	}
	return a
}

// ParseRiskLevel converts user input into a RiskLevel.
func ParseRiskLevel(value string) (RiskLevel, bool) {
	level := RiskLevel(strings.ToLower(strings.TrimSpace(value)))
	return level, level.Valid()
}

// SecurityRule describes a regex-based risk rule.
type SecurityRule struct {
	Name        string    `yaml:"name" json:"name"`
	Pattern     string    `yaml:"pattern" json:"pattern"`
	Level       RiskLevel `yaml:"risk_level" json:"risk_level"`
	Description string    `yaml:"description" json:"description"`
	Whitelist   []string  `yaml:"whitelist,omitempty" json:"whitelist,omitempty"`
}

// RuleMatch is a rule together with the span of text it matched.
type RuleMatch struct {
	Rule  SecurityRule
	Start int
	End   int
}

// Checker names the component that produced a finding.
type Checker string

const (
	CheckerCanonical        Checker = "canonical"
	CheckerPattern          Checker = "pattern"
	CheckerCriticalPath     Checker = "critical_path"
	CheckerInjection        Checker = "injection"
	CheckerProtectedService Checker = "protected_service"
	CheckerToolProfile      Checker = "tool_profile"
)

// Finding is a single (level, reason) pair emitted by a checker.
type Finding struct {
	Level            RiskLevel `json:"level"`
	Reason           string    `json:"reason"`
	Checker          Checker   `json:"checker"`
	Rule             string    `json:"rule,omitempty"`
	NonWhitelistable bool      `json:"non_whitelistable"`
}

// RiskAssessment aggregates the findings for one tool call.
type RiskAssessment struct {
	Level                RiskLevel `json:"risk_level"`
	Reasons              []string  `json:"reasons"`
	Blocked              bool      `json:"blocked"`
	RequiresConfirmation bool      `json:"requires_confirmation"`
	Command              string    `json:"command,omitempty"`
	MatchedRules         []string  `json:"matched_rules,omitempty"`
	Findings             []Finding `json:"-"`
}

// NewRiskAssessment aggregates findings: the level is the maximum across findings
// (low when there are none) and reasons keep the findings' order.
func NewRiskAssessment(command string, findings []Finding) RiskAssessment {
	assessment := RiskAssessment{
		Level:    RiskLow,
		Reasons:  []string{},
		Command:  command,
		Findings: findings,
	}
	blocking := false
	for _, f := range findings {
		assessment.Level = MaxRisk(assessment.Level, f.Level)
		assessment.Reasons = append(assessment.Reasons, f.Reason)
		if f.Rule != "" {
			assessment.MatchedRules = append(assessment.MatchedRules, f.Rule)
		}
		if f.NonWhitelistable && f.Level == RiskCritical {
			blocking = true
		}
	}
	assessment.Blocked = blocking && assessment.Level == RiskCritical
	assessment.RequiresConfirmation = !assessment.Blocked && assessment.Level.AtLeast(RiskMedium)
	return assessment
}

// Merge combines per-call assessments into one operation-level assessment.
func Merge(assessments ...RiskAssessment) RiskAssessment {
	merged := RiskAssessment{Level: RiskLow, Reasons: []string{}}
	var commands []string
	for _, a := range assessments {
		merged.Level = MaxRisk(merged.Level, a.Level)
		merged.Reasons = append(merged.Reasons, a.Reasons...)
		merged.MatchedRules = append(merged.MatchedRules, a.MatchedRules...)
		merged.Findings = append(merged.Findings, a.Findings...)
		merged.Blocked = merged.Blocked || a.Blocked
		if a.Command != "" {
			commands = append(commands, a.Command)
		}
	}
	merged.Command = strings.Join(commands, " ; ")
	merged.RequiresConfirmation = !merged.Blocked && merged.Level.AtLeast(RiskMedium)
	return merged
}
