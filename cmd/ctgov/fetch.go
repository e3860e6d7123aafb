// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package main

import (
	"fmt"
	"net/http"
	"os"

	"github.com/spf13/cobra"

	"github.com/pdiddy/ctgov-connector/internal/fetch"
	"github.com/pdiddy/ctgov-connector/internal/registry"
	"github.com/pdiddy/ctgov-connector/pkg/types"
)

var releaseCmd = &cobra.Command{
	Use:   "release",
	Short: "Print the current registry release marker",
	Long: `Release asks the registry for its data timestamp and prints the date part,
which names the run directory fetch and download write into. When the
version endpoint has no timestamp the total study count is used instead.`,
	RunE: runRelease,
}

var planCmd = &cobra.Command{
	Use:   "plan",
	Short: "Plan page downloads for the current release",
	Long: `Plan walks the page cursors with an identifier-only field filter and
writes a manifest listing one download task per page. Cursors are issued per
session, so the tasks should be downloaded soon after planning.`,
	RunE: runPlan,
}

var downloadCmd = &cobra.Command{
	Use:   "download",
	Short: "Plan and download every page of the current release",
	Long: `Download plans the page tasks and fetches each one into the release
directory, writing files atomically. Every run re-fetches from the first
page because the remote copy is always considered newer.`,
	RunE: runDownload,
}

var fetchCmd = &cobra.Command{
	Use:   "fetch",
	Short: "Fetch all studies into one aggregated file",
	Long: `Fetch pages through the registry in a single session, pausing between
requests and retrying each page once after a transport failure, and writes
all studies into <data-dir>/<release>/<output>.json.`,
	RunE: runFetch,
}

func init() {
	for _, cmd := range []*cobra.Command{releaseCmd, planCmd, downloadCmd, fetchCmd} {
		cmd.Flags().String("base-url", "", "registry API root (default "+types.DefaultBaseURL+")")
		cmd.Flags().Duration("timeout", 0, "HTTP request timeout (default 60s)")
	}
	for _, cmd := range []*cobra.Command{planCmd, downloadCmd, fetchCmd} {
		cmd.Flags().String("data-dir", "", "root directory for run output (default "+types.DefaultDataDir+")")
		cmd.Flags().Int("page-size", 0, "studies per page (default 1000)")
		cmd.Flags().Duration("delay", -1, "delay between page requests (default 330ms)")
		cmd.Flags().StringSlice("fields", nil, "restrict returned study fields")
	}
	for _, cmd := range []*cobra.Command{planCmd, downloadCmd} {
		cmd.Flags().Bool("force", false, "plan even if the release was fetched before")
	}
	downloadCmd.Flags().Int("concurrency", 0, "parallel page downloads (default 1)")
	fetchCmd.Flags().String("output", fetch.DefaultAggregateName, "aggregated file base name")

	rootCmd.AddCommand(releaseCmd, planCmd, downloadCmd, fetchCmd)
}

// fetchConfig loads the fetch section and applies any flags that were set.
func fetchConfig(cmd *cobra.Command) (types.FetchConfig, error) {
	cfg, err := loadConfig()
	if err != nil {
		return types.FetchConfig{}, err
	}
	fc := cfg.Fetch

	flags := cmd.Flags()
	if v, _ := flags.GetString("base-url"); v != "" {
		fc.BaseURL = v
	}
	if v, _ := flags.GetDuration("timeout"); v > 0 {
		fc.Timeout = v
	}
	if v, _ := flags.GetString("data-dir"); v != "" {
		fc.DataDir = v
	}
	if v, _ := flags.GetInt("page-size"); v > 0 {
		fc.PageSize = v
	}
	if flags.Changed("delay") {
		fc.RequestDelay, _ = flags.GetDuration("delay")
	}
	if flags.Changed("fields") {
		fc.Fields, _ = flags.GetStringSlice("fields")
	}
	if v, _ := flags.GetInt("concurrency"); v > 0 {
		fc.DownloadConcurrency = v
	}

	fc = fc.WithDefaults()
	return fc, fc.Validate()
}

func newService(cfg types.FetchConfig) (*fetch.Service, *http.Client) {
	client := registry.NewClientFromConfig(cfg)
	return fetch.New(client, cfg, appLog), client.HTTPClient()
}

func runRelease(cmd *cobra.Command, args []string) error {
	cfg, err := fetchConfig(cmd)
	if err != nil {
		return err
	}
	client := registry.NewClientFromConfig(cfg)

	release, err := client.Release(cmd.Context())
	if err != nil {
		return err
	}
	fmt.Println(release)
	return nil
}

func runPlan(cmd *cobra.Command, args []string) error {
	cfg, err := fetchConfig(cmd)
	if err != nil {
		return err
	}
	force, _ := cmd.Flags().GetBool("force")

	svc, _ := newService(cfg)
	m, err := svc.Run(cmd.Context(), nil, fetch.RunOptions{PlanOnly: true, Force: force})
	if err != nil {
		return err
	}

	for _, t := range m.Tasks {
		fmt.Fprintf(os.Stdout, "%s\t%s\n", t.Local, t.Remote)
	}
	fmt.Fprintf(os.Stdout, "\nrelease: %s, studies: %d, pages: %d, tasks: %d\n",
		m.Release, m.TotalStudies, m.TotalPages, len(m.Tasks))
	return nil
}

func runDownload(cmd *cobra.Command, args []string) error {
	cfg, err := fetchConfig(cmd)
	if err != nil {
		return err
	}
	force, _ := cmd.Flags().GetBool("force")

	svc, httpClient := newService(cfg)
	dl := fetch.NewDownloader(httpClient, cfg, appLog)
	m, err := svc.Run(cmd.Context(), dl, fetch.RunOptions{Force: force})
	if err != nil {
		return err
	}

	fmt.Fprintf(os.Stdout, "release: %s, studies: %d, files: %d\n",
		m.Release, m.TotalStudies, len(m.Files))
	return nil
}

func runFetch(cmd *cobra.Command, args []string) error {
	cfg, err := fetchConfig(cmd)
	if err != nil {
		return err
	}
	output, _ := cmd.Flags().GetString("output")

	svc, _ := newService(cfg)
	m, err := svc.Run(cmd.Context(), nil, fetch.RunOptions{Inline: true, OutputName: output})
	if err != nil {
		return err
	}

	fmt.Fprintf(os.Stdout, "release: %s, studies: %d, pages: %d\n",
		m.Release, m.TotalStudies, m.TotalPages)
	for _, f := range m.Files {
		fmt.Fprintln(os.Stdout, f)
	}
	return nil
}
