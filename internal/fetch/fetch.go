// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package fetch walks the registry's cursor pagination and turns it into
// local page files: either a list of download tasks (one per page) for the
// downloader, or a single aggregated file fetched inline.
//
// Every run starts again from the first page. The registry offers no
// per-record versioning, so the remote copy is always treated as newer than
// anything on disk.
package fetch

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"time"

	"github.com/pdiddy/ctgov-connector/internal/logger"
	"github.com/pdiddy/ctgov-connector/internal/registry"
	"github.com/pdiddy/ctgov-connector/pkg/types"
)

const (
	// FirstPageFile is the local name of the page fetched without a cursor.
	FirstPageFile = "firstPage.json"

	// DefaultAggregateName is the base name of the inline fetch output.
	DefaultAggregateName = "studies"

	// planFields keeps the token walk cheap: only identifiers are returned.
	planFields = "NCTId"
)

// Fetcher determines the page count and produces page files.
type Fetcher interface {
	// PlanDownloads walks the page cursors and returns one DownloadTask per page.
	PlanDownloads(ctx context.Context, force bool) (*Plan, error)
	// FetchAll performs the paginated fetch inline and writes one aggregated file.
	FetchAll(ctx context.Context, dest string) (*Result, error)
}

// Registry is the subset of the registry client the fetcher uses.
type Registry interface {
	TotalStudies(ctx context.Context) (int, error)
	Release(ctx context.Context) (string, error)
	Page(ctx context.Context, req registry.PageRequest) (*registry.Page, error)
	PageURL(req registry.PageRequest) string
}

// Plan is the outcome of PlanDownloads.
type Plan struct {
	Release      string
	TotalStudies int
	TotalPages   int
	Dir          string
	Tasks        []types.DownloadTask
}

// Result is the outcome of FetchAll.
type Result struct {
	Path         string
	TotalStudies int
	Pages        int
	Studies      int
}

// Service implements Fetcher against the registry API.
type Service struct {
	client Registry
	cfg    types.FetchConfig
	log    *logger.Logger
}

var _ Fetcher = (*Service)(nil)

// New creates a fetch service. Zero config fields take their defaults.
func New(client Registry, cfg types.FetchConfig, log *logger.Logger) *Service {
	if log == nil {
		log = logger.Discard()
	}
	return &Service{
		client: client,
		cfg:    cfg.WithDefaults(),
		log:    log.With("stage", "fetch"),
	}
}

// TotalPages returns ceil(total/pageSize), and 0 when there is nothing to fetch.
func TotalPages(total, pageSize int) int {
	if total <= 0 || pageSize <= 0 {
		return 0
	}
	return (total + pageSize - 1) / pageSize
}

// RunDir returns the directory a run for release writes into.
func (s *Service) RunDir(release string) string {
	return filepath.Join(s.cfg.DataDir, release)
}

// PlanDownloads collects page cursors with an identifier-only field filter,
// then returns a task for the first page plus one per cursor. Cursors are
// issued per session, so the tasks should be downloaded soon after planning.
//
// force is accepted for callers that track staleness; the plan is always a
// full plan because the remote copy is always considered newer.
func (s *Service) PlanDownloads(ctx context.Context, force bool) (*Plan, error) {
	release, err := s.client.Release(ctx)
	if err != nil {
		return nil, err
	}
	total, err := s.client.TotalStudies(ctx)
	if err != nil {
		return nil, err
	}

	plan := &Plan{
		Release:      release,
		TotalStudies: total,
		TotalPages:   TotalPages(total, s.cfg.PageSize),
		Dir:          s.RunDir(release),
	}
	s.log.Info("planning downloads", "release", release, "studies", total, "pages", plan.TotalPages, "force", force)

	if plan.TotalPages == 0 {
		return plan, nil
	}

	tokens, err := s.walkTokens(ctx, plan.TotalPages)
	if err != nil {
		return nil, err
	}

	plan.Tasks = append(plan.Tasks, types.DownloadTask{
		Remote: s.client.PageURL(s.pageRequest("")),
		Local:  filepath.Join(plan.Dir, FirstPageFile),
	})
	for _, tok := range tokens {
		plan.Tasks = append(plan.Tasks, types.DownloadTask{
			Remote: s.client.PageURL(s.pageRequest(tok)),
			Local:  filepath.Join(plan.Dir, TokenFileName(tok)),
		})
	}
	return plan, nil
}

// walkTokens requests pages in order and returns every next-page cursor.
// It stops at the first page without a cursor or after maxPages requests.
func (s *Service) walkTokens(ctx context.Context, maxPages int) ([]string, error) {
	var tokens []string
	next := ""
	for p := 1; p <= maxPages; p++ {
		s.log.Debug("walking page", "page", p, "pages", maxPages)
		page, err := s.client.Page(ctx, registry.PageRequest{
			PageSize: s.cfg.PageSize,
			Token:    next,
			Fields:   []string{planFields},
		})
		if err != nil {
			return nil, err
		}
		if !page.HasNext() {
			break
		}
		next = page.NextPageToken
		tokens = append(tokens, next)
	}
	// The walk can end on the page budget with a dangling cursor; that page
	// would be beyond total_pages, so it is not planned.
	if len(tokens) >= maxPages {
		tokens = tokens[:maxPages-1]
	}
	return tokens, nil
}

// FetchAll pages through the registry, accumulating every study, and writes
// {"studies": [...]} to dest. Pages are requested strictly in order; the
// loop ends when a page has no next cursor or the page budget is spent.
func (s *Service) FetchAll(ctx context.Context, dest string) (*Result, error) {
	total, err := s.client.TotalStudies(ctx)
	if err != nil {
		return nil, err
	}

	res := &Result{Path: dest, TotalStudies: total}
	totalPages := TotalPages(total, s.cfg.PageSize)
	s.log.Info("fetching studies", "studies", total, "pages", totalPages, "dest", dest)

	var studies []json.RawMessage
	next := ""
	for p := 1; p <= totalPages; p++ {
		page, err := s.client.Page(ctx, s.pageRequest(next))
		if err != nil {
			return nil, err
		}
		res.Pages++
		studies = append(studies, page.Studies...)
		s.log.Info("fetched page", "page", p, "pages", totalPages, "studies", len(page.Studies))

		if !page.HasNext() {
			break
		}
		next = page.NextPageToken
	}
	res.Studies = len(studies)

	if err := writeAggregate(dest, studies); err != nil {
		return nil, fmt.Errorf("writing %s: %w", dest, err)
	}
	return res, nil
}

func (s *Service) pageRequest(token string) registry.PageRequest {
	return registry.PageRequest{
		PageSize: s.cfg.PageSize,
		Token:    token,
		Fields:   s.cfg.Fields,
	}
}

// RunOptions selects what Run does.
type RunOptions struct {
	// Inline fetches into one aggregated file instead of planning tasks.
	Inline bool
	// PlanOnly stops after planning; the tasks are left for another downloader.
	PlanOnly bool
	// Force is passed through to PlanDownloads.
	Force bool
	// OutputName is the aggregated file's base name (default "studies").
	OutputName string
}

// Run executes one fetch run for the current release and writes its manifest.
func (s *Service) Run(ctx context.Context, dl *Downloader, opts RunOptions) (*types.Manifest, error) {
	m := &types.Manifest{
		Source:    types.ClinicalTrialsGov,
		PageSize:  s.cfg.PageSize,
		FetchedAt: time.Now().UTC(),
	}

	var dir string
	if opts.Inline {
		release, err := s.client.Release(ctx)
		if err != nil {
			return nil, err
		}
		name := opts.OutputName
		if name == "" {
			name = DefaultAggregateName
		}
		dir = s.RunDir(release)
		res, err := s.FetchAll(ctx, filepath.Join(dir, name+".json"))
		if err != nil {
			return nil, err
		}
		m.Release = release
		m.TotalStudies = res.TotalStudies
		m.TotalPages = res.Pages
		m.Files = []string{res.Path}
	} else {
		plan, err := s.PlanDownloads(ctx, opts.Force)
		if err != nil {
			return nil, err
		}
		dir = plan.Dir
		m.Release = plan.Release
		m.TotalStudies = plan.TotalStudies
		m.TotalPages = plan.TotalPages
		m.Tasks = plan.Tasks
		if !opts.PlanOnly && len(plan.Tasks) > 0 {
			if dl == nil {
				return nil, fmt.Errorf("no downloader configured")
			}
			if err := dl.Download(ctx, plan.Tasks); err != nil {
				return nil, err
			}
			for _, t := range plan.Tasks {
				m.Files = append(m.Files, t.Local)
			}
		}
	}

	if err := WriteManifest(dir, m); err != nil {
		return nil, err
	}
	return m, nil
}

var unsafeFileChars = regexp.MustCompile(`[^A-Za-z0-9._-]`)

// TokenFileName maps a page cursor to its local file name.
func TokenFileName(token string) string {
	return unsafeFileChars.ReplaceAllString(token, "_") + ".json"
}

// writeAggregate streams {"studies": [...]} to a temp file next to dest and
// renames it into place.
func writeAggregate(dest string, studies []json.RawMessage) error {
	if err := os.MkdirAll(filepath.Dir(dest), 0o755); err != nil {
		return fmt.Errorf("creating directory: %w", err)
	}

	tmpFile, err := os.CreateTemp(filepath.Dir(dest), ".fetch-*.tmp")
	if err != nil {
		return fmt.Errorf("creating temp file: %w", err)
	}
	tmpPath := tmpFile.Name()

	w := bufio.NewWriter(tmpFile)
	w.WriteString(`{"studies":[`)
	for i, raw := range studies {
		if i > 0 {
			w.WriteByte(',')
		}
		w.Write(raw)
	}
	w.WriteString("]}\n")

	flushErr := w.Flush()
	closeErr := tmpFile.Close()
	if flushErr != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("writing aggregate: %w", flushErr)
	}
	if closeErr != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("closing temp file: %w", closeErr)
	}

	if err := os.Rename(tmpPath, dest); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("renaming temp file: %w", err)
	}
	return nil
}
