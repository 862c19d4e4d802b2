package security

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"regexp"
	"strings"
	"sync"

	"gopkg.in/yaml.v3"

	"github.com/doeshing/opsguard/assets"
	"github.com/doeshing/opsguard/internal/domain"
	"github.com/doeshing/opsguard/internal/pkg/filesystem"
	"github.com/doeshing/opsguard/internal/ports"
)

// RuleRepository is an ordered, versioned set of risk rules. Evaluation takes a
// read lock; registration is the only writer.
type RuleRepository struct {
	mu      sync.RWMutex
	rules   []compiledRule
	names   map[string]struct{}
	version uint64
}

type compiledRule struct {
	re        *regexp.Regexp
	rule      domain.SecurityRule
	whitelist map[string]struct{}
}

// RulesFile is the YAML schema root.
type RulesFile struct {
	Rules []domain.SecurityRule `yaml:"rules"`
}

// NewRuleRepository builds an empty repository.
func NewRuleRepository() *RuleRepository {
	return &RuleRepository{names: map[string]struct{}{}}
}

// NewDefaultRuleRepository builds a repository preloaded with the embedded rules.
func NewDefaultRuleRepository() (*RuleRepository, error) {
	rules, err := DefaultRules()
	if err != nil {
		return nil, err
	}
	return NewRuleRepositoryFrom(rules)
}

// NewRuleRepositoryFrom registers rules in order.
func NewRuleRepositoryFrom(rules []domain.SecurityRule) (*RuleRepository, error) {
	repo := NewRuleRepository()
	for _, rule := range rules {
		if err := repo.Register(rule); err != nil {
			return nil, err
		}
	}
	return repo, nil
}

// LoadRuleRepository loads rules from a YAML file, falling back to the embedded
// defaults when the file does not exist or lists no rules.
func LoadRuleRepository(path string) (*RuleRepository, error) {
	if path == "" {
		return NewDefaultRuleRepository()
	}
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return NewDefaultRuleRepository()
		}
		return nil, fmt.Errorf("read rules file: %w", err)
	}
	rules, err := ParseRules(data)
	if err != nil {
		return nil, fmt.Errorf("parse rules file %s: %w", path, err)
	}
	if len(rules) == 0 {
		return NewDefaultRuleRepository()
	}
	return NewRuleRepositoryFrom(rules)
}

// ParseRules decodes a rules YAML document.
func ParseRules(data []byte) ([]domain.SecurityRule, error) {
	var file RulesFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, err
	}
	return file.Rules, nil
}

// DefaultRules returns the embedded default rule set.
func DefaultRules() ([]domain.SecurityRule, error) {
	rules, err := ParseRules(assets.DefaultRulesYAML)
	if err != nil {
		return nil, fmt.Errorf("embedded rules: %w", err)
	}
	return rules, nil
}

// SaveRules writes rules to path as YAML.
func SaveRules(path string, rules []domain.SecurityRule) error {
	data, err := yaml.Marshal(RulesFile{Rules: rules})
	if err != nil {
		return err
	}
	if err := filesystem.EnsureParentDir(path, domain.DirectoryPermissions); err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o644)
}

// Register adds a rule at the end of the sequence. The repository is left
// unchanged when the name is taken or the pattern does not compile.
func (r *RuleRepository) Register(rule domain.SecurityRule) error {
	rule.Name = strings.TrimSpace(rule.Name)
	if rule.Name == "" {
		return fmt.Errorf("rule name is required: %w", domain.ErrValidation)
	}
	level, ok := domain.ParseRiskLevel(string(rule.Level))
	if !ok {
		return fmt.Errorf("rule %s: unknown risk level %q: %w", rule.Name, rule.Level, domain.ErrValidation)
	}
	rule.Level = level
	re, err := regexp.Compile("(?i)" + rule.Pattern)
	if err != nil {
		return fmt.Errorf("rule %s: %v: %w", rule.Name, err, domain.ErrValidation)
	}
	rule.Whitelist = append([]string(nil), rule.Whitelist...)
	whitelist := make(map[string]struct{}, len(rule.Whitelist))
	for _, entry := range rule.Whitelist {
		whitelist[strings.TrimSpace(entry)] = struct{}{}
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.names[rule.Name]; exists {
		return fmt.Errorf("rule %s: %w", rule.Name, domain.ErrDuplicateRule)
	}
	r.names[rule.Name] = struct{}{}
	r.rules = append(r.rules, compiledRule{re: re, rule: rule, whitelist: whitelist})
	r.version++
	return nil
}

// Evaluate returns every rule matching text, in registration order.
func (r *RuleRepository) Evaluate(text string) []domain.RuleMatch {
	trimmed := strings.TrimSpace(text)
	r.mu.RLock()
	defer r.mu.RUnlock()
	var matches []domain.RuleMatch
	for _, c := range r.rules {
		if _, exempt := c.whitelist[trimmed]; exempt {
			continue
		}
		loc := c.re.FindStringIndex(text)
		if loc == nil {
			continue
		}
		matches = append(matches, domain.RuleMatch{Rule: c.rule, Start: loc[0], End: loc[1]})
	}
	return matches
}

// Rules returns a snapshot of the registered rules.
func (r *RuleRepository) Rules() []domain.SecurityRule {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]domain.SecurityRule, 0, len(r.rules))
	for _, c := range r.rules {
		out = append(out, c.rule)
	}
	return out
}

// Version increments on every successful registration.
func (r *RuleRepository) Version() uint64 {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.version
}

var _ ports.RuleRepository = (*RuleRepository)(nil)
