package commands

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/doeshing/opsguard/internal/app"
	configapp "github.com/doeshing/opsguard/internal/application/config"
	"github.com/doeshing/opsguard/internal/infrastructure/cli/helpers"
)

// NewConfigCommand creates the config command with all subcommands
func NewConfigCommand(container *app.Container) *cobra.Command {
	configCmd := &cobra.Command{
		Use:   "config",
		Short: "Inspect opsguard configuration",
	}

	configCmd.AddCommand(
		newConfigShowCommand(container),
		newConfigGetCommand(container),
		newConfigPathCommand(container),
		newConfigValidateCommand(container),
		newWhitelistCommand(container),
	)

	return configCmd
}

func newConfigShowCommand(container *app.Container) *cobra.Command {
	return &cobra.Command{
		Use:   "show",
		Short: "Show the effective configuration",
		RunE: func(cmd *cobra.Command, args []string) error {
			data, err := yaml.Marshal(container.Config)
			if err != nil {
				return err
			}
			fmt.Fprint(cmd.OutOrStdout(), string(data))
			return nil
		},
	}
}

func newConfigGetCommand(container *app.Container) *cobra.Command {
	return &cobra.Command{
		Use:   "get <key>",
		Short: "Get one value by dotted key (e.g. ledger.backend)",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			value, err := helpers.ConfigValue(container.Config, args[0])
			if err != nil {
				return err
			}
			fmt.Fprint(cmd.OutOrStdout(), value)
			return nil
		},
	}
}

func newConfigPathCommand(container *app.Container) *cobra.Command {
	return &cobra.Command{
		Use:   "path",
		Short: "Print the configuration file path",
		RunE: func(cmd *cobra.Command, args []string) error {
			if container.ConfigLoader == nil {
				return errors.New(ErrConfigLoaderUnavailable)
			}
			fmt.Fprintln(cmd.OutOrStdout(), container.ConfigLoader.Path())
			return nil
		},
	}
}

func newConfigValidateCommand(container *app.Container) *cobra.Command {
	return &cobra.Command{
		Use:   "validate",
		Short: "Validate the configuration file",
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := configapp.Validate(container.Config); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), MsgConfigurationValid)
			return nil
		},
	}
}

// newWhitelistCommand manages the exact-match bypass whitelist.
func newWhitelistCommand(container *app.Container) *cobra.Command {
	whitelistCmd := &cobra.Command{
		Use:   "whitelist",
		Short: "Manage exact commands whose critical rule matches may be confirmed",
	}

	listCmd := &cobra.Command{
		Use:   "list",
		Short: "List whitelist entries",
		RunE: func(cmd *cobra.Command, args []string) error {
			entries := container.Config.Security.Whitelist
			if len(entries) == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), MsgWhitelistEmpty)
				return nil
			}
			for _, entry := range entries {
				fmt.Fprintln(cmd.OutOrStdout(), entry)
			}
			return nil
		},
	}

	addCmd := &cobra.Command{
		Use:   "add <command>",
		Short: "Add an exact canonical command",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return updateWhitelist(cmd, container, args[0], true)
		},
	}

	removeCmd := &cobra.Command{
		Use:   "remove <command>",
		Short: "Remove a whitelist entry",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return updateWhitelist(cmd, container, args[0], false)
		},
	}

	whitelistCmd.AddCommand(listCmd, addCmd, removeCmd)
	return whitelistCmd
}

// updateWhitelist edits the whitelist and saves the configuration file.
func updateWhitelist(cmd *cobra.Command, container *app.Container, entry string, add bool) error {
	loader := container.ConfigLoader
	if loader == nil {
		return errors.New(ErrConfigLoaderUnavailable)
	}
	cfg, err := loader.Load(cmd.Context())
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}

	if add {
		err = cfg.AddWhitelistEntry(entry)
	} else {
		err = cfg.RemoveWhitelistEntry(entry)
	}
	if err != nil {
		return err
	}

	backup, err := helpers.SaveConfig(loader, cfg)
	if err != nil {
		return err
	}
	action := "removed from"
	if add {
		action = "added to"
	}
	fmt.Fprintf(cmd.OutOrStdout(), "%q %s whitelist\n", entry, action)
	if backup != "" {
		fmt.Fprintf(cmd.OutOrStdout(), "Previous configuration saved to %s\n", backup)
	}
	return nil
}
