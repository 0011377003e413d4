package main

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"abstractor/internal/ipc"
	"abstractor/internal/queue"
)

func parseSearchID(arg string) (int64, error) {
	id, err := strconv.ParseInt(strings.TrimSpace(arg), 10, 64)
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("invalid search id %q", arg)
	}
	return id, nil
}

func newSubmitCommand(ctx *commandContext) *cobra.Command {
	var county string
	var parcel string
	var now bool

	cmd := &cobra.Command{
		Use:   "submit <property-address>",
		Short: "Register a property title search",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withClient(func(client *ipc.Client) error {
				resp, err := client.Submit(ipc.SubmitRequest{
					PropertyAddress: args[0],
					County:          county,
					ParcelNumber:    parcel,
					Trigger:         now,
				})
				if err != nil {
					return err
				}
				if ctx.JSONMode() {
					return writeJSON(cmd, resp)
				}
				out := cmd.OutOrStdout()
				fmt.Fprintf(out, "Submitted search %d for %s\n", resp.Search.ID, resp.Search.PropertyAddress)
				if now {
					fmt.Fprintln(out, "Queued for processing")
				} else {
					fmt.Fprintf(out, "Run `abstractor trigger %d` to start processing\n", resp.Search.ID)
				}
				return nil
			})
		},
	}

	cmd.Flags().StringVar(&county, "county", "", "County to search records in")
	cmd.Flags().StringVar(&parcel, "parcel", "", "Parcel number for the property")
	cmd.Flags().BoolVar(&now, "now", false, "Queue the search for processing immediately")
	return cmd
}

func newListCommand(ctx *commandContext) *cobra.Command {
	var listStatuses []string

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List title searches",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withClient(func(client *ipc.Client) error {
				resp, err := client.SearchList(listStatuses)
				if err != nil {
					return err
				}
				if ctx.JSONMode() {
					return writeJSON(cmd, resp)
				}
				if len(resp.Searches) == 0 {
					fmt.Fprintln(cmd.OutOrStdout(), "No searches found")
					return nil
				}
				table := renderTable(
					[]string{"ID", "Address", "County", "Status", "Progress", "Created"},
					buildSearchListRows(resp.Searches),
					[]columnAlignment{alignRight, alignLeft, alignLeft, alignLeft, alignRight, alignLeft},
				)
				fmt.Fprintln(cmd.OutOrStdout(), table)
				return nil
			})
		},
	}

	cmd.Flags().StringSliceVarP(&listStatuses, "status", "s", nil, "Filter by search status (repeatable)")
	return cmd
}

func newShowCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "show <id>",
		Short: "Display details for one search",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseSearchID(args[0])
			if err != nil {
				return err
			}
			return ctx.withClient(func(client *ipc.Client) error {
				resp, err := client.SearchDescribe(id)
				if err != nil {
					return err
				}
				if ctx.JSONMode() {
					return writeJSON(cmd, resp)
				}
				search := resp.Search
				out := cmd.OutOrStdout()
				fmt.Fprintf(out, "Search %d\n", search.ID)
				fmt.Fprintf(out, "  Address:  %s\n", search.PropertyAddress)
				if search.County != "" {
					fmt.Fprintf(out, "  County:   %s\n", search.County)
				}
				if search.ParcelNumber != "" {
					fmt.Fprintf(out, "  Parcel:   %s\n", search.ParcelNumber)
				}
				fmt.Fprintf(out, "  Status:   %s\n", search.Status)
				if search.StatusMessage != "" {
					fmt.Fprintf(out, "  Message:  %s\n", search.StatusMessage)
				}
				fmt.Fprintf(out, "  Progress: %.0f%%\n", search.ProgressPercent)
				fmt.Fprintf(out, "  Retries:  %d\n", search.RetryCount)
				if search.Partial {
					fmt.Fprintln(out, "  Partial:  completed with partial results")
				}
				if search.Status == string(queue.StatusFailed) {
					fmt.Fprintf(out, "Run `abstractor errors %d` for recovery options\n", search.ID)
				}
				return nil
			})
		},
	}
}

func newTriggerCommand(ctx *commandContext) *cobra.Command {
	return newActionCommand(ctx, "trigger", "Queue a pending search for processing",
		func(client *ipc.Client, id int64) (*ipc.SearchActionResponse, error) { return client.Trigger(id) },
		func(search ipc.Search) string {
			return fmt.Sprintf("Search %d queued", search.ID)
		})
}

func newRetryCommand(ctx *commandContext) *cobra.Command {
	return newActionCommand(ctx, "retry", "Retry a failed search from its checkpoint",
		func(client *ipc.Client, id int64) (*ipc.SearchActionResponse, error) { return client.Retry(id) },
		func(search ipc.Search) string {
			return fmt.Sprintf("Search %d requeued at %.0f%% progress", search.ID, search.ProgressPercent)
		})
}

func newCancelCommand(ctx *commandContext) *cobra.Command {
	return newActionCommand(ctx, "cancel", "Cancel a search",
		func(client *ipc.Client, id int64) (*ipc.SearchActionResponse, error) { return client.Cancel(id) },
		func(search ipc.Search) string {
			if search.Status == string(queue.StatusCancelled) {
				return fmt.Sprintf("Search %d cancelled", search.ID)
			}
			return fmt.Sprintf("Cancellation requested for search %d; it stops at the next stage boundary", search.ID)
		})
}

func newPartialCommand(ctx *commandContext) *cobra.Command {
	return newActionCommand(ctx, "partial", "Close a failed search keeping its partial results",
		func(client *ipc.Client, id int64) (*ipc.SearchActionResponse, error) { return client.PartialComplete(id) },
		func(search ipc.Search) string {
			return fmt.Sprintf("Search %d completed with partial results", search.ID)
		})
}

func newActionCommand(ctx *commandContext, use, short string, call func(*ipc.Client, int64) (*ipc.SearchActionResponse, error), message func(ipc.Search) string) *cobra.Command {
	return &cobra.Command{
		Use:   use + " <id>",
		Short: short,
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseSearchID(args[0])
			if err != nil {
				return err
			}
			return ctx.withClient(func(client *ipc.Client) error {
				resp, err := call(client, id)
				if err != nil {
					return err
				}
				if ctx.JSONMode() {
					return writeJSON(cmd, resp)
				}
				fmt.Fprintln(cmd.OutOrStdout(), message(resp.Search))
				return nil
			})
		},
	}
}

func buildSearchListRows(searches []ipc.Search) [][]string {
	rows := make([][]string, 0, len(searches))
	for _, search := range searches {
		created := search.CreatedAt
		if len(created) >= 10 {
			created = created[:10]
		}
		rows = append(rows, []string{
			strconv.FormatInt(search.ID, 10),
			search.PropertyAddress,
			search.County,
			search.Status,
			fmt.Sprintf("%.0f%%", search.ProgressPercent),
			created,
		})
	}
	return rows
}

// statusDisplayOrder mirrors pipeline order so queue summaries read top to bottom.
var statusDisplayOrder = []queue.Status{
	queue.StatusPending,
	queue.StatusQueued,
	queue.StatusScraping,
	queue.StatusAnalyzing,
	queue.StatusGenerating,
	queue.StatusCompleted,
	queue.StatusFailed,
	queue.StatusCancelled,
}

func buildQueueStatusRows(stats map[string]int) [][]string {
	rows := make([][]string, 0, len(stats))
	for _, status := range statusDisplayOrder {
		count, ok := stats[string(status)]
		if !ok || count == 0 {
			continue
		}
		rows = append(rows, []string{string(status), strconv.Itoa(count)})
	}
	return rows
}
