// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package main

import (
	"bufio"
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/pdiddy/ctgov-connector/internal/normalize"
	"github.com/pdiddy/ctgov-connector/pkg/types"
)

var normalizeCmd = &cobra.Command{
	Use:   "normalize",
	Short: "Stream cleaned study records from page files",
	Long: `Normalize reads page files from a directory (every *.json file, in name
order) or a single file, stamps each study with an _id taken from its NCT
identifier, removes empty and placeholder values, and writes the records to
stdout as a JSON array or, with --jsonl, one record per line.`,
	RunE: runNormalize,
}

func init() {
	addSourceFlags(normalizeCmd)
	normalizeCmd.Flags().Bool("jsonl", false, "write one JSON record per line")
	normalizeCmd.Flags().Bool("no-ids", false, "do not stamp _id")

	rootCmd.AddCommand(normalizeCmd)
}

func addSourceFlags(cmd *cobra.Command) {
	cmd.Flags().String("dir", "", "directory of page files")
	cmd.Flags().String("file", "", "single page file (overrides --dir)")
}

// normalizeConfig loads the normalize section and applies any flags that
// were set.
func normalizeConfig(cmd *cobra.Command) (types.NormalizeConfig, error) {
	cfg, err := loadConfig()
	if err != nil {
		return types.NormalizeConfig{}, err
	}
	nc := cfg.Normalize

	if v, _ := cmd.Flags().GetString("dir"); v != "" {
		nc.Dir = v
	}
	if v, _ := cmd.Flags().GetString("file"); v != "" {
		nc.File = v
	}
	if noIDs, _ := cmd.Flags().GetBool("no-ids"); noIDs {
		nc.StampIDs = false
	}
	return nc, nc.Validate()
}

func runNormalize(cmd *cobra.Command, args []string) error {
	cfg, err := normalizeConfig(cmd)
	if err != nil {
		return err
	}
	skipped := 0
	src, err := normalize.NewSource(cfg, appLog, countSkips(&skipped))
	if err != nil {
		return err
	}
	jsonl, _ := cmd.Flags().GetBool("jsonl")

	w := bufio.NewWriter(os.Stdout)
	defer w.Flush()

	n, err := writeRecords(w, src, jsonl)
	if err != nil {
		return err
	}
	appLog.Info("normalized studies", "count", n, "skipped", skipped)
	fmt.Fprintf(os.Stderr, "normalized: %d, skipped without nctId: %d\n", n, skipped)
	return nil
}

// countSkips counts studies the source drops for lacking an nctId.
func countSkips(n *int) normalize.Option {
	return normalize.OnSkip(func(string) { *n++ })
}

// writeRecords encodes every record of src to w and returns how many were
// written.
func writeRecords(w *bufio.Writer, src normalize.RecordSource, jsonl bool) (int, error) {
	enc := json.NewEncoder(w)
	n := 0

	if !jsonl {
		if _, err := w.WriteString("["); err != nil {
			return 0, err
		}
	}
	for study, err := range src.Records() {
		if err != nil {
			return n, err
		}
		if !jsonl && n > 0 {
			if _, err := w.WriteString(","); err != nil {
				return n, err
			}
		}
		if err := enc.Encode(study); err != nil {
			return n, fmt.Errorf("encoding %s: %w", study.ID(), err)
		}
		n++
	}
	if !jsonl {
		if _, err := w.WriteString("]\n"); err != nil {
			return n, err
		}
	}
	return n, nil
}
