// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package types

import (
	"errors"
	"time"
)

// Default values for FetchConfig. The registry rate limit is roughly three
// requests per second, hence the 330ms spacing.
const (
	DefaultBaseURL             = "https://clinicaltrials.gov/api/v2"
	DefaultPageSize            = 1000
	DefaultRequestDelay        = 330 * time.Millisecond
	DefaultDataDir             = "data/clinicaltrials_gov"
	DefaultTimeout             = 60 * time.Second
	DefaultUserAgent           = "ctgov-connector/0.1"
	DefaultPageRetries         = 1
	DefaultDownloadConcurrency = 1
	DefaultStoreDir            = "store"
	DefaultLogLevel            = "info"
)

// Configuration validation errors.
var (
	ErrMissingBaseURL         = errors.New("fetch.base_url is required")
	ErrInvalidPageSize        = errors.New("fetch.page_size must be at least 1")
	ErrInvalidRequestDelay    = errors.New("fetch.request_delay must be non-negative")
	ErrMissingDataDir         = errors.New("fetch.data_dir is required")
	ErrInvalidPageRetries     = errors.New("fetch.page_retries must be non-negative")
	ErrInvalidConcurrency     = errors.New("fetch.download_concurrency must be at least 1")
	ErrInvalidLogLevel        = errors.New("log.level must be one of: debug, info, warn, error")
	ErrMissingStoreDir        = errors.New("store.dir is required")
	ErrMissingNormalizeSource = errors.New("normalize.dir or normalize.file is required")
)

// HTTPConfig holds shared HTTP settings used by components that make network requests.
type HTTPConfig struct {
	// Timeout is the HTTP request timeout.
	Timeout time.Duration `json:"timeout" yaml:"timeout" mapstructure:"timeout"`

	// UserAgent is the User-Agent header sent with HTTP requests.
	UserAgent string `json:"user_agent" yaml:"user_agent" mapstructure:"user_agent"`
}

// FetchConfig holds settings for the fetch stage.
type FetchConfig struct {
	HTTPConfig `yaml:",inline" mapstructure:",squash"`

	// BaseURL is the registry API root (e.g. "https://clinicaltrials.gov/api/v2").
	BaseURL string `json:"base_url" yaml:"base_url" mapstructure:"base_url"`

	// PageSize is the number of studies requested per page (default 1000).
	PageSize int `json:"page_size" yaml:"page_size" mapstructure:"page_size"`

	// RequestDelay is the fixed spacing between page requests (default 330ms).
	RequestDelay time.Duration `json:"request_delay" yaml:"request_delay" mapstructure:"request_delay"`

	// DataDir is the root under which each run writes its page files.
	DataDir string `json:"data_dir" yaml:"data_dir" mapstructure:"data_dir"`

	// Fields optionally restricts the study fields returned by the API.
	Fields []string `json:"fields,omitempty" yaml:"fields,omitempty" mapstructure:"fields"`

	// PageRetries is how many times a page request is repeated after a
	// transport failure (default 1).
	PageRetries int `json:"page_retries" yaml:"page_retries" mapstructure:"page_retries"`

	// DownloadConcurrency caps parallel task downloads (default 1).
	DownloadConcurrency int `json:"download_concurrency" yaml:"download_concurrency" mapstructure:"download_concurrency"`
}

// WithDefaults returns a copy of c with zero fields set to their defaults.
// RequestDelay is left alone so callers can disable throttling with 0.
func (c FetchConfig) WithDefaults() FetchConfig {
	if c.BaseURL == "" {
		c.BaseURL = DefaultBaseURL
	}
	if c.PageSize == 0 {
		c.PageSize = DefaultPageSize
	}
	if c.DataDir == "" {
		c.DataDir = DefaultDataDir
	}
	if c.Timeout == 0 {
		c.Timeout = DefaultTimeout
	}
	if c.UserAgent == "" {
		c.UserAgent = DefaultUserAgent
	}
	if c.DownloadConcurrency == 0 {
		c.DownloadConcurrency = DefaultDownloadConcurrency
	}
	return c
}

// Validate checks the fetch settings.
func (c FetchConfig) Validate() error {
	switch {
	case c.BaseURL == "":
		return ErrMissingBaseURL
	case c.PageSize < 1:
		return ErrInvalidPageSize
	case c.RequestDelay < 0:
		return ErrInvalidRequestDelay
	case c.DataDir == "":
		return ErrMissingDataDir
	case c.PageRetries < 0:
		return ErrInvalidPageRetries
	case c.DownloadConcurrency < 1:
		return ErrInvalidConcurrency
	}
	return nil
}

// NormalizeConfig holds settings for the normalize stage.
type NormalizeConfig struct {
	// Dir is a directory whose *.json files are all read.
	Dir string `json:"dir,omitempty" yaml:"dir,omitempty" mapstructure:"dir"`

	// File is a single page file to read instead of Dir.
	File string `json:"file,omitempty" yaml:"file,omitempty" mapstructure:"file"`

	// StampIDs controls whether each study gets a top-level _id.
	StampIDs bool `json:"stamp_ids" yaml:"stamp_ids" mapstructure:"stamp_ids"`
}

// Validate checks that a source was named.
func (c NormalizeConfig) Validate() error {
	if c.Dir == "" && c.File == "" {
		return ErrMissingNormalizeSource
	}
	return nil
}

// StoreConfig holds settings for the document store.
type StoreConfig struct {
	// Dir contains the SQLite database and exports.
	Dir string `json:"dir" yaml:"dir" mapstructure:"dir"`

	// MaxResults is the default search result limit (default 20).
	MaxResults int `json:"max_results" yaml:"max_results" mapstructure:"max_results"`
}

// LogConfig selects the log level.
type LogConfig struct {
	Level string `json:"level" yaml:"level" mapstructure:"level"`
}

// Validate checks the log level name.
func (c LogConfig) Validate() error {
	switch c.Level {
	case "", "debug", "info", "warn", "error":
		return nil
	}
	return ErrInvalidLogLevel
}

// ConnectorConfig groups all stage configurations for the connector.
type ConnectorConfig struct {
	Fetch     FetchConfig     `json:"fetch" yaml:"fetch" mapstructure:"fetch"`
	Normalize NormalizeConfig `json:"normalize" yaml:"normalize" mapstructure:"normalize"`
	Store     StoreConfig     `json:"store" yaml:"store" mapstructure:"store"`
	Log       LogConfig       `json:"log" yaml:"log" mapstructure:"log"`
}

// Validate checks every section that has required fields.
func (c ConnectorConfig) Validate() error {
	if err := c.Fetch.Validate(); err != nil {
		return err
	}
	if c.Store.Dir == "" {
		return ErrMissingStoreDir
	}
	return c.Log.Validate()
}
