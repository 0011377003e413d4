package main

import (
	"encoding/json"

	"github.com/spf13/cobra"
)

// writeJSON serves the --json flag: it encodes v as indented JSON to the
// command's stdout. HTML escaping is disabled so addresses and legal
// descriptions containing & or < survive round trips through scripts.
func writeJSON(cmd *cobra.Command, v any) error {
	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	enc.SetEscapeHTML(false)
	return enc.Encode(v)
}
