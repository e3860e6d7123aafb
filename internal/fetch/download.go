// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package fetch

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"

	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"

	"github.com/pdiddy/ctgov-connector/internal/httputil"
	"github.com/pdiddy/ctgov-connector/internal/logger"
	"github.com/pdiddy/ctgov-connector/pkg/types"
)

// Downloader fetches DownloadTasks to disk. Tasks are independent files, so
// the only shared state is the rate limiter.
type Downloader struct {
	Client    *http.Client
	UserAgent string
	// Concurrency caps simultaneous downloads (default 1).
	Concurrency int
	// Retries is how often a failed request is repeated (see httputil.DoWithRetry).
	Retries int
	// Limiter spaces requests; nil disables throttling.
	Limiter *rate.Limiter
	Log     *logger.Logger
}

// NewDownloader builds a downloader from fetch settings.
func NewDownloader(client *http.Client, cfg types.FetchConfig, log *logger.Logger) *Downloader {
	cfg = cfg.WithDefaults()
	var limiter *rate.Limiter
	if cfg.RequestDelay > 0 {
		limiter = rate.NewLimiter(rate.Every(cfg.RequestDelay), 1)
	}
	return &Downloader{
		Client:      client,
		UserAgent:   cfg.UserAgent,
		Concurrency: cfg.DownloadConcurrency,
		Retries:     cfg.PageRetries,
		Limiter:     limiter,
		Log:         log,
	}
}

// Download fetches every task. The first failure cancels the remaining
// downloads and is returned; files already written are left in place.
func (d *Downloader) Download(ctx context.Context, tasks []types.DownloadTask) error {
	log := d.Log
	if log == nil {
		log = logger.Discard()
	}
	limit := d.Concurrency
	if limit < 1 {
		limit = 1
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(limit)

	for i, task := range tasks {
		g.Go(func() error {
			if d.Limiter != nil {
				if err := d.Limiter.Wait(gctx); err != nil {
					return fmt.Errorf("rate limiter: %w", err)
				}
			}
			log.Info("downloading", "task", i+1, "tasks", len(tasks), "local", filepath.Base(task.Local))
			if err := d.downloadFile(gctx, task); err != nil {
				return fmt.Errorf("downloading %s: %w", task.Remote, err)
			}
			return nil
		})
	}
	return g.Wait()
}

// downloadFile fetches task.Remote to task.Local through a temporary file
// that is renamed on success.
func (d *Downloader) downloadFile(ctx context.Context, task types.DownloadTask) error {
	client := d.Client
	if client == nil {
		client = http.DefaultClient
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, task.Remote, nil)
	if err != nil {
		return fmt.Errorf("creating request: %w", err)
	}
	if d.UserAgent != "" {
		req.Header.Set("User-Agent", d.UserAgent)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := httputil.DoWithRetry(ctx, client, req, d.Retries)
	if err != nil {
		return fmt.Errorf("HTTP request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("HTTP %d from %s", resp.StatusCode, task.Remote)
	}

	dir := filepath.Dir(task.Local)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("creating directory %s: %w", dir, err)
	}

	tmpFile, err := os.CreateTemp(dir, ".download-*.tmp")
	if err != nil {
		return fmt.Errorf("creating temp file: %w", err)
	}
	tmpPath := tmpFile.Name()

	_, copyErr := io.Copy(tmpFile, resp.Body)
	closeErr := tmpFile.Close()
	if copyErr != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("writing download: %w", copyErr)
	}
	if closeErr != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("closing temp file: %w", closeErr)
	}

	if err := os.Rename(tmpPath, task.Local); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("renaming temp file: %w", err)
	}
	return nil
}
