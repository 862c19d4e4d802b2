package commands

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/doeshing/opsguard/internal/app"
	"github.com/doeshing/opsguard/internal/domain"
	"github.com/doeshing/opsguard/internal/infrastructure/cli/helpers"
	"github.com/doeshing/opsguard/internal/infrastructure/cli/render"
	"github.com/doeshing/opsguard/internal/infrastructure/ledger"
)

// NewHistoryCommand creates the history command with all subcommands
func NewHistoryCommand(container *app.Container) *cobra.Command {
	historyCmd := &cobra.Command{
		Use:   "history",
		Short: "Inspect the audit ledger",
	}

	historyCmd.AddCommand(
		newHistoryListCommand(container),
		newHistoryShowCommand(container),
		newHistoryExportCommand(container),
		newHistoryStatsCommand(container),
	)

	return historyCmd
}

// newHistoryListCommand creates the 'history list' subcommand
func newHistoryListCommand(container *app.Container) *cobra.Command {
	var limit int

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List recent operations, newest first",
		RunE: func(cmd *cobra.Command, args []string) error {
			return listOperations(cmd.Context(), cmd.OutOrStdout(), container, limit)
		},
	}

	cmd.Flags().IntVar(&limit, "limit", DefaultHistoryLimit, "Max entries to show (0 for all)")
	return cmd
}

// newHistoryShowCommand creates the 'history show' subcommand
func newHistoryShowCommand(container *app.Container) *cobra.Command {
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "show <operation-id>",
		Short: "Show one operation record",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if container.Ledger == nil {
				return errors.New(ErrLedgerUnavailable)
			}
			rec, err := container.Ledger.Get(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			if asJSON {
				return writeJSON(cmd.OutOrStdout(), rec)
			}
			render.Record(cmd.OutOrStdout(), rec)
			return nil
		},
	}

	cmd.Flags().BoolVar(&asJSON, "json", false, "Print the record as JSON")
	return cmd
}

// newHistoryExportCommand creates the 'history export' subcommand
func newHistoryExportCommand(container *app.Container) *cobra.Command {
	return &cobra.Command{
		Use:   "export [path]",
		Short: "Export the ledger as JSON lines (stdout when no path is given)",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if len(args) == 0 {
				return exportLedger(cmd.Context(), cmd.OutOrStdout(), container)
			}
			f, err := os.OpenFile(args[0], os.O_CREATE|os.O_WRONLY|os.O_TRUNC, domain.SecureFilePermissions)
			if err != nil {
				return err
			}
			if err := exportLedger(cmd.Context(), f, container); err != nil {
				f.Close()
				return fmt.Errorf("failed to export ledger to %s: %w", args[0], err)
			}
			return f.Close()
		},
	}
}

// newHistoryStatsCommand creates the 'history stats' subcommand
func newHistoryStatsCommand(container *app.Container) *cobra.Command {
	return &cobra.Command{
		Use:   "stats",
		Short: "Show success rate, risk distribution and top tools",
		RunE: func(cmd *cobra.Command, args []string) error {
			return showLedgerStats(cmd.Context(), cmd.OutOrStdout(), container)
		},
	}
}

// listOperations lists recent ledger records
func listOperations(ctx context.Context, out io.Writer, container *app.Container, limit int) error {
	if container.Ledger == nil {
		return errors.New(ErrLedgerUnavailable)
	}

	records, err := container.Ledger.ListRecent(ctx, limit)
	if err != nil {
		return fmt.Errorf("failed to retrieve ledger records: %w", err)
	}
	if len(records) == 0 {
		fmt.Fprintln(out, MsgNoHistoryRecorded)
		return nil
	}

	for _, rec := range records {
		render.RecordLine(out, rec)
	}
	return nil
}

// exportLedger writes every record in append order
func exportLedger(ctx context.Context, out io.Writer, container *app.Container) error {
	if container.Ledger == nil {
		return errors.New(ErrLedgerUnavailable)
	}
	return container.Ledger.Export(ctx, out)
}

// showLedgerStats displays success rate, risk distribution and top tools
func showLedgerStats(ctx context.Context, out io.Writer, container *app.Container) error {
	if container.Ledger == nil {
		return errors.New(ErrLedgerUnavailable)
	}

	records, err := container.Ledger.ListRecent(ctx, MaxHistoryAnalysisRecords)
	if err != nil {
		return fmt.Errorf("failed to retrieve ledger for analysis: %w", err)
	}
	if len(records) == 0 {
		fmt.Fprintln(out, MsgNoHistoryRecorded)
		return nil
	}

	stats := helpers.AnalyzeRecords(records)
	if counter, ok := container.Ledger.(ledger.Counter); ok {
		if total, err := counter.Count(ctx); err == nil && total > len(records) {
			fmt.Fprintf(out, "Ledger holds %d records; analyzing the newest %d\n", total, len(records))
		}
	}
	fmt.Fprintf(out, "Operations: %d\nSucceeded: %d\nSuccess rate: %.1f%%\nRolled back: %d\n",
		stats.Total,
		stats.Successful,
		helpers.CalculateSuccessRate(stats.Successful, stats.Total),
		stats.RolledBack)

	fmt.Fprintln(out, "Risk distribution:")
	for _, level := range []domain.RiskLevel{domain.RiskLow, domain.RiskMedium, domain.RiskHigh, domain.RiskCritical} {
		if n := stats.Risk[level]; n > 0 {
			fmt.Fprintf(out, "  %s: %d\n", render.RiskBadge(level), n)
		}
	}

	fmt.Fprintln(out, "Top tools:")
	for _, stat := range stats.Tools {
		fmt.Fprintf(out, "  %s (%d)\n", stat.Tool, stat.Count)
	}
	return nil
}
