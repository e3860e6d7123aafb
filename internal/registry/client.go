// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package registry is a client for the clinical trial registry REST API.
// It covers the three endpoints the connector needs: the study count, the
// data version, and cursor-paginated study pages.
package registry

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"golang.org/x/time/rate"

	"github.com/pdiddy/ctgov-connector/internal/httputil"
	"github.com/pdiddy/ctgov-connector/pkg/types"
)

// Client is a rate-limited HTTP client for the registry API.
type Client struct {
	httpClient  *http.Client
	limiter     *rate.Limiter
	baseURL     string
	userAgent   string
	pageRetries int
}

// ClientOption configures a Client.
type ClientOption func(*Client)

// WithBaseURL sets the API root (for testing or a mirror).
func WithBaseURL(u string) ClientOption {
	return func(c *Client) {
		c.baseURL = strings.TrimRight(u, "/")
	}
}

// WithHTTPClient sets a custom HTTP client.
func WithHTTPClient(hc *http.Client) ClientOption {
	return func(c *Client) {
		c.httpClient = hc
	}
}

// WithUserAgent sets the User-Agent header.
func WithUserAgent(ua string) ClientOption {
	return func(c *Client) {
		c.userAgent = ua
	}
}

// WithRequestDelay spaces page requests at least d apart. Zero disables
// throttling.
func WithRequestDelay(d time.Duration) ClientOption {
	return func(c *Client) {
		c.limiter = newLimiter(d)
	}
}

// WithPageRetries sets how many times a failed page request is repeated.
func WithPageRetries(n int) ClientOption {
	return func(c *Client) {
		c.pageRetries = n
	}
}

// NewClient creates a registry client with the package defaults.
func NewClient(opts ...ClientOption) *Client {
	c := &Client{
		httpClient:  &http.Client{Timeout: types.DefaultTimeout},
		limiter:     newLimiter(types.DefaultRequestDelay),
		baseURL:     types.DefaultBaseURL,
		userAgent:   types.DefaultUserAgent,
		pageRetries: types.DefaultPageRetries,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// NewClientFromConfig builds a client from fetch settings.
func NewClientFromConfig(cfg types.FetchConfig) *Client {
	cfg = cfg.WithDefaults()
	return NewClient(
		WithBaseURL(cfg.BaseURL),
		WithHTTPClient(&http.Client{Timeout: cfg.Timeout}),
		WithUserAgent(cfg.UserAgent),
		WithRequestDelay(cfg.RequestDelay),
		WithPageRetries(cfg.PageRetries),
	)
}

func newLimiter(d time.Duration) *rate.Limiter {
	if d <= 0 {
		return rate.NewLimiter(rate.Inf, 1)
	}
	return rate.NewLimiter(rate.Every(d), 1)
}

// BaseURL returns the API root the client talks to.
func (c *Client) BaseURL() string { return c.baseURL }

// HTTPClient returns the underlying HTTP client, shared with the downloader.
func (c *Client) HTTPClient() *http.Client { return c.httpClient }

// UserAgent returns the User-Agent header value.
func (c *Client) UserAgent() string { return c.userAgent }

// TotalStudies returns the registry's current study count from /stats/size.
// It is not retried: the count gates the whole run.
func (c *Client) TotalStudies(ctx context.Context) (int, error) {
	var size sizeResponse
	if err := c.getJSON(ctx, c.baseURL+"/stats/size", 0, &size); err != nil {
		return 0, fmt.Errorf("fetching study count: %w", err)
	}
	if size.TotalStudies == nil {
		return 0, fmt.Errorf("%w: stats/size has no totalStudies", ErrMalformedResponse)
	}
	return *size.TotalStudies, nil
}

// Version returns the API and data version from /version.
func (c *Client) Version(ctx context.Context) (VersionInfo, error) {
	var v VersionInfo
	if err := c.getJSON(ctx, c.baseURL+"/version", 0, &v); err != nil {
		return VersionInfo{}, fmt.Errorf("fetching version: %w", err)
	}
	return v, nil
}

// Release returns the release marker: the date portion of the data
// timestamp, or the total study count when the version endpoint reports no
// timestamp.
func (c *Client) Release(ctx context.Context) (string, error) {
	v, err := c.Version(ctx)
	if err != nil {
		return "", err
	}
	if r := v.ReleaseDate(); r != "" {
		return r, nil
	}
	total, err := c.TotalStudies(ctx)
	if err != nil {
		return "", err
	}
	return strconv.Itoa(total), nil
}

// Page fetches one page of studies. It waits on the rate limiter first and
// repeats the request after a transport failure up to the configured retry
// count.
func (c *Client) Page(ctx context.Context, req PageRequest) (*Page, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("rate limiter: %w", err)
	}

	var page Page
	if err := c.getJSON(ctx, c.PageURL(req), c.pageRetries, &page); err != nil {
		return nil, fmt.Errorf("fetching page %s: %w", req.label(), err)
	}
	if page.Studies == nil {
		return nil, fmt.Errorf("%w: page %s has no studies array", ErrMalformedResponse, req.label())
	}
	return &page, nil
}

// PageURL builds the /studies URL for req.
func (c *Client) PageURL(req PageRequest) string {
	params := url.Values{}
	params.Set("format", "json")
	if req.PageSize > 0 {
		params.Set("pageSize", strconv.Itoa(req.PageSize))
	}
	if req.Token != "" {
		params.Set("pageToken", req.Token)
	}
	if len(req.Fields) > 0 {
		params.Set("fields", strings.Join(req.Fields, ","))
	}
	return c.baseURL + "/studies?" + params.Encode()
}

func (c *Client) getJSON(ctx context.Context, reqURL string, retries int, v any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("User-Agent", c.userAgent)
	req.Header.Set("Accept", "application/json")

	resp, err := httputil.DoWithRetry(ctx, c.httpClient, req, retries)
	if err != nil {
		return fmt.Errorf("registry API request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return &StatusError{StatusCode: resp.StatusCode, URL: reqURL}
	}

	if err := json.NewDecoder(resp.Body).Decode(v); err != nil {
		return fmt.Errorf("%w: %v", ErrMalformedResponse, err)
	}
	return nil
}
