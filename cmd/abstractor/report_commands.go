package main

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"abstractor/internal/ipc"
)

func newErrorsCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "errors <id>",
		Short: "Show the error log and recovery options for a search",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseSearchID(args[0])
			if err != nil {
				return err
			}
			return ctx.withClient(func(client *ipc.Client) error {
				resp, err := client.Errors(id)
				if err != nil {
					return err
				}
				if ctx.JSONMode() {
					return writeJSON(cmd, resp)
				}
				report := resp.Report
				out := cmd.OutOrStdout()
				fmt.Fprintf(out, "Search %d: %s\n", id, report.StatusMessage)
				summary := report.Recovery.ErrorSummary
				fmt.Fprintf(out, "Errors: %d total, %d consecutive, %d%% progress saved\n",
					summary.TotalErrors, summary.ConsecutiveFailures, summary.ProgressSaved)

				if len(report.ErrorLog) > 0 {
					rows := make([][]string, 0, len(report.ErrorLog))
					for _, rec := range report.ErrorLog {
						rows = append(rows, []string{
							rec.Timestamp.Format(time.RFC3339),
							rec.StageName,
							string(rec.Category),
							string(rec.Severity),
							rec.RawMessage,
						})
					}
					fmt.Fprintln(out, renderTable(
						[]string{"Time", "Stage", "Category", "Severity", "Message"},
						rows,
						[]columnAlignment{alignLeft, alignLeft, alignLeft, alignLeft, alignLeft},
					))
				}

				if len(report.Recovery.Suggestions) > 0 {
					fmt.Fprintln(out, "Suggestions:")
					for _, suggestion := range report.Recovery.Suggestions {
						fmt.Fprintf(out, "  - %s\n", suggestion)
					}
				}
				if len(report.Recovery.Actions) > 0 {
					fmt.Fprintln(out, "Recovery actions:")
					for _, action := range report.Recovery.Actions {
						fmt.Fprintf(out, "  %-18s %s\n", action.Action, action.Description)
					}
				}
				return nil
			})
		},
	}
}

func newChainCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "chain <id>",
		Short: "Show the chain of title analysis for a search",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseSearchID(args[0])
			if err != nil {
				return err
			}
			return ctx.withClient(func(client *ipc.Client) error {
				resp, err := client.ChainAnalysis(id)
				if err != nil {
					return err
				}
				if ctx.JSONMode() {
					return writeJSON(cmd, resp)
				}
				analysis := resp.Analysis
				out := cmd.OutOrStdout()
				if analysis.IsClear {
					fmt.Fprintf(out, "Search %d: chain of title is clear\n", id)
				} else {
					fmt.Fprintf(out, "Search %d: chain has %d break(s) (%d critical, %d warning)\n",
						id, analysis.TotalBreaks, analysis.CriticalBreaks, analysis.WarningBreaks)
				}

				if len(analysis.OwnershipSummary) > 0 {
					rows := make([][]string, 0, len(analysis.OwnershipSummary))
					for _, period := range analysis.OwnershipSummary {
						rows = append(rows, []string{
							period.Name,
							derefString(period.AcquiredDate),
							derefString(period.SoldDate),
							period.SoldTo,
						})
					}
					fmt.Fprintln(out, renderTable(
						[]string{"Owner", "Acquired", "Sold", "Sold To"},
						rows,
						[]columnAlignment{alignLeft, alignLeft, alignLeft, alignLeft},
					))
				}

				for _, brk := range analysis.Breaks {
					fmt.Fprintf(out, "%s [%s]: %s\n", brk.BreakType, brk.Severity, brk.Description)
					if brk.Recommendation != "" {
						fmt.Fprintf(out, "  recommendation: %s\n", brk.Recommendation)
					}
				}
				for _, note := range analysis.AnalysisNotes {
					fmt.Fprintf(out, "note: %s\n", note)
				}
				return nil
			})
		},
	}
}

func newEncumbrancesCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "encumbrances <id>",
		Short: "List graded encumbrances discovered for a search",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseSearchID(args[0])
			if err != nil {
				return err
			}
			return ctx.withClient(func(client *ipc.Client) error {
				resp, err := client.Encumbrances(id)
				if err != nil {
					return err
				}
				if ctx.JSONMode() {
					return writeJSON(cmd, resp)
				}
				if len(resp.Encumbrances) == 0 {
					fmt.Fprintln(cmd.OutOrStdout(), "No encumbrances recorded")
					return nil
				}
				rows := make([][]string, 0, len(resp.Encumbrances))
				for _, enc := range resp.Encumbrances {
					rows = append(rows, []string{
						enc.EncumbranceType,
						enc.Status,
						enc.HolderName,
						formatAmount(enc.CurrentAmount),
						enc.RiskLevel,
						yesNo(enc.RequiresAction),
					})
				}
				fmt.Fprintln(cmd.OutOrStdout(), renderTable(
					[]string{"Type", "Status", "Holder", "Amount", "Risk", "Action Needed"},
					rows,
					[]columnAlignment{alignLeft, alignLeft, alignLeft, alignRight, alignLeft, alignLeft},
				))
				return nil
			})
		},
	}
}

func derefString(value *string) string {
	if value == nil {
		return ""
	}
	return *value
}

func formatAmount(amount *float64) string {
	if amount == nil {
		return ""
	}
	formatted := strconv.FormatFloat(*amount, 'f', 2, 64)
	return "$" + strings.TrimSuffix(formatted, ".00")
}
