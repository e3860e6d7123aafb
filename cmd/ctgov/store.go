// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package main

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/pdiddy/ctgov-connector/internal/fetch"
	"github.com/pdiddy/ctgov-connector/internal/normalize"
	"github.com/pdiddy/ctgov-connector/internal/store"
	"github.com/pdiddy/ctgov-connector/pkg/types"
)

// --- ingest ---

var ingestCmd = &cobra.Command{
	Use:   "ingest",
	Short: "Load normalized studies into the document store",
	Long: `Ingest normalizes the page files of a run directory (or a single file)
and replaces the store's contents with them. A repeated _id keeps the first
document seen. The release defaults to the run directory's manifest.`,
	RunE: runIngest,
}

func runIngest(cmd *cobra.Command, args []string) error {
	nc, err := normalizeConfig(cmd)
	if err != nil {
		return err
	}
	nc.StampIDs = true
	skipped := 0
	src, err := normalize.NewSource(nc, appLog, countSkips(&skipped))
	if err != nil {
		return err
	}

	release, _ := cmd.Flags().GetString("release")
	if release == "" {
		release = releaseFor(nc)
	}

	s, err := openStore(cmd)
	if err != nil {
		return err
	}
	defer s.Close()

	summary, err := s.Ingest(cmd.Context(), src, release, os.Stdout)
	if err != nil {
		return err
	}
	if skipped > 0 {
		fmt.Fprintf(os.Stdout, "skipped without nctId: %d\n", skipped)
	}
	if summary.Failed > 0 {
		return fmt.Errorf("%d record(s) failed ingest", summary.Failed)
	}
	return nil
}

// releaseFor names the release of a normalize source from its run
// manifest, falling back to the run directory's name.
func releaseFor(nc types.NormalizeConfig) string {
	dir := nc.Dir
	if nc.File != "" {
		dir = filepath.Dir(nc.File)
	}
	if m, err := fetch.ReadManifest(dir); err == nil && m.Release != "" {
		return m.Release
	}
	return filepath.Base(dir)
}

// --- search ---

var searchCmd = &cobra.Command{
	Use:   "search [query]",
	Short: "Search stored studies by brief title",
	Long: `Search lists stored studies whose brief title contains the query,
case-insensitively, ordered by NCT identifier. Use --id to print one stored
document instead.`,
	RunE: runSearch,
}

func runSearch(cmd *cobra.Command, args []string) error {
	s, err := openStore(cmd)
	if err != nil {
		return err
	}
	defer s.Close()

	if id, _ := cmd.Flags().GetString("id"); id != "" {
		study, err := s.Get(cmd.Context(), id)
		if err != nil {
			return err
		}
		return printJSON(study)
	}

	if len(args) == 0 {
		return fmt.Errorf("provide a query or --id")
	}
	limit, _ := cmd.Flags().GetInt("max-results")
	results, err := s.Search(cmd.Context(), strings.Join(args, " "), limit)
	if err != nil {
		return err
	}

	if jsonOutput, _ := cmd.Flags().GetBool("json"); jsonOutput {
		return printJSON(results)
	}
	if len(results) == 0 {
		fmt.Println("No results found.")
		return nil
	}

	fmt.Fprintf(os.Stdout, "%-12s  %s\n", "NCT ID", "Title")
	fmt.Fprintln(os.Stdout, strings.Repeat("-", 80))
	for _, r := range results {
		fmt.Fprintf(os.Stdout, "%-12s  %s\n", r.ID, truncate(r.Title, 66))
	}
	fmt.Fprintf(os.Stdout, "\n%d results\n", len(results))
	return nil
}

// --- export ---

var exportCmd = &cobra.Command{
	Use:   "export",
	Short: "Export the document store to YAML or JSON",
	Long: `Export writes every stored study to <store-dir>/export.yaml or
export.json. The JSON export uses the page file layout, so it can be read
back by normalize.`,
	RunE: runExport,
}

func runExport(cmd *cobra.Command, args []string) error {
	s, err := openStore(cmd)
	if err != nil {
		return err
	}
	defer s.Close()

	format, _ := cmd.Flags().GetString("format")
	var path string
	switch format {
	case "yaml":
		path, err = s.ExportYAML(cmd.Context())
	case "json":
		path, err = s.ExportJSON(cmd.Context())
	default:
		return fmt.Errorf("unknown format %q: use yaml or json", format)
	}
	if err != nil {
		return err
	}
	fmt.Fprintf(os.Stdout, "Exported to %s\n", path)
	return nil
}

// --- mapping ---

var mappingCmd = &cobra.Command{
	Use:   "mapping",
	Short: "Print the search index field mapping",
	RunE: func(cmd *cobra.Command, args []string) error {
		return store.WriteMapping(os.Stdout)
	},
}

func init() {
	for _, cmd := range []*cobra.Command{ingestCmd, searchCmd, exportCmd} {
		cmd.Flags().String("store-dir", "", "document store directory (default "+types.DefaultStoreDir+")")
	}

	addSourceFlags(ingestCmd)
	ingestCmd.Flags().String("release", "", "release marker to record (default: from the run manifest)")

	searchCmd.Flags().Int("max-results", 0, "maximum number of results (default 20)")
	searchCmd.Flags().Bool("json", false, "output results as JSON")
	searchCmd.Flags().String("id", "", "print the stored document for one NCT ID")

	exportCmd.Flags().String("format", "yaml", "export format: yaml or json")

	rootCmd.AddCommand(ingestCmd, searchCmd, exportCmd, mappingCmd)
}

func openStore(cmd *cobra.Command) (*store.Store, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, err
	}
	sc := cfg.Store
	if v, _ := cmd.Flags().GetString("store-dir"); v != "" {
		sc.Dir = v
	}
	return store.Open(sc)
}

// truncate shortens s to at most n runes, marking the cut with "...".
func truncate(s string, n int) string {
	runes := []rune(s)
	if len(runes) <= n {
		return s
	}
	return string(runes[:n-3]) + "..."
}

func printJSON(v any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
