package commands

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/doeshing/opsguard/internal/app"
	"github.com/doeshing/opsguard/internal/domain"
	"github.com/doeshing/opsguard/internal/infrastructure/cli/render"
	"github.com/doeshing/opsguard/internal/infrastructure/security"
)

// NewRulesCommand creates the rules command with list/test/add subcommands
func NewRulesCommand(container *app.Container) *cobra.Command {
	rulesCmd := &cobra.Command{
		Use:   "rules",
		Short: "Inspect and extend the risk rule set",
	}

	rulesCmd.AddCommand(
		newRulesListCommand(container),
		newRulesTestCommand(container),
		newRulesAddCommand(container),
	)

	return rulesCmd
}

func newRulesListCommand(container *app.Container) *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List rules in evaluation order",
		RunE: func(cmd *cobra.Command, args []string) error {
			if container.Rules == nil {
				return errors.New("rule repository unavailable")
			}
			out := cmd.OutOrStdout()
			for _, rule := range container.Rules.Rules() {
				fmt.Fprintf(out, "%-22s %-14s %s\n", rule.Name, render.RiskBadge(rule.Level), rule.Description)
			}
			fmt.Fprintf(out, "\n%d rules, version %d, file %s\n", len(container.Rules.Rules()), container.Rules.Version(), container.Config.Security.RulesFile)
			return nil
		},
	}
}

// newRulesTestCommand evaluates raw text against the rules only, with none of
// the structural checks.
func newRulesTestCommand(container *app.Container) *cobra.Command {
	return &cobra.Command{
		Use:   "test <text>",
		Short: "Show which rules match a command string",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if container.Rules == nil {
				return errors.New("rule repository unavailable")
			}
			out := cmd.OutOrStdout()
			matches := container.Rules.Evaluate(args[0])
			if len(matches) == 0 {
				fmt.Fprintln(out, "No rules match.")
				return nil
			}
			for _, m := range matches {
				fmt.Fprintf(out, "%-22s %-14s %q\n", m.Rule.Name, render.RiskBadge(m.Rule.Level), args[0][m.Start:m.End])
			}
			return nil
		},
	}
}

func newRulesAddCommand(container *app.Container) *cobra.Command {
	var rule domain.SecurityRule
	var level string

	cmd := &cobra.Command{
		Use:   "add",
		Short: "Register a rule and persist the rule set",
		Example: `  opsguard rules add --name crontab_wipe --pattern '\bcrontab\s+-r\b' --level high --description "Removes all cron jobs"`,
		RunE: func(cmd *cobra.Command, args []string) error {
			if container.Rules == nil {
				return errors.New("rule repository unavailable")
			}
			rule.Level = domain.RiskLevel(level)
			if err := container.Rules.Register(rule); err != nil {
				return err
			}
			path := container.Config.Security.RulesFile
			if path == "" {
				return errors.New("security.rules_file is not configured; rule not persisted")
			}
			if err := security.SaveRules(path, container.Rules.Rules()); err != nil {
				return fmt.Errorf("failed to save rules: %w", err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Rule %s added to %s\n", rule.Name, path)
			return nil
		},
	}

	cmd.Flags().StringVar(&rule.Name, "name", "", "Unique rule name")
	cmd.Flags().StringVar(&rule.Pattern, "pattern", "", "Regular expression (matched case-insensitively)")
	cmd.Flags().StringVar(&level, "level", "", "Risk level: low|medium|high|critical")
	cmd.Flags().StringVar(&rule.Description, "description", "", "Human readable description")
	cmd.Flags().StringSliceVar(&rule.Whitelist, "whitelist", nil, "Exact commands exempt from this rule")
	cmd.MarkFlagRequired("name")
	cmd.MarkFlagRequired("pattern")
	cmd.MarkFlagRequired("level")
	return cmd
}
