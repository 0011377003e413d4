package main

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"abstractor/internal/discovery"
	"abstractor/internal/fileutil"
)

func newIngestCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "ingest <search-id> <records.json>",
		Short: "Stage manually collected records for a search",
		Long: "Copies a JSON record file into the ingest directory so the scraping " +
			"stage picks it up on the next retry. Use this after a manual_upload " +
			"recovery suggestion.",
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseSearchID(args[0])
			if err != nil {
				return err
			}

			data, err := os.ReadFile(args[1])
			if err != nil {
				return fmt.Errorf("read record file: %w", err)
			}
			var records discovery.RecordSet
			if err := json.Unmarshal(data, &records); err != nil {
				return fmt.Errorf("record file is not a valid record set: %w", err)
			}

			cfg := ctx.configValue()
			if cfg == nil {
				return fmt.Errorf("configuration unavailable")
			}
			source := discovery.NewDirectorySource(cfg.Paths.IngestDir)
			if err := os.MkdirAll(cfg.Paths.IngestDir, 0o755); err != nil {
				return fmt.Errorf("create ingest directory: %w", err)
			}
			dest := source.DropPath(id)
			if err := fileutil.CopyFileVerified(args[1], dest); err != nil {
				return fmt.Errorf("stage record file: %w", err)
			}

			stdout := cmd.OutOrStdout()
			fmt.Fprintf(stdout, "Staged %d chain entries and %d encumbrances for search %d\n",
				len(records.ChainEntries), len(records.Encumbrances), id)
			fmt.Fprintf(stdout, "Run `abstractor retry %d` to resume processing\n", id)
			return nil
		},
	}
}
