// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package types

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestFetchConfigWithDefaults(t *testing.T) {
	cfg := FetchConfig{}.WithDefaults()

	assert.Equal(t, DefaultBaseURL, cfg.BaseURL)
	assert.Equal(t, DefaultPageSize, cfg.PageSize)
	assert.Equal(t, DefaultDataDir, cfg.DataDir)
	assert.Equal(t, DefaultTimeout, cfg.Timeout)
	assert.Equal(t, DefaultUserAgent, cfg.UserAgent)
	assert.Equal(t, DefaultDownloadConcurrency, cfg.DownloadConcurrency)
	// Zero delay means no throttling and is kept.
	assert.Zero(t, cfg.RequestDelay)
	assert.NoError(t, cfg.Validate())
}

func TestFetchConfigValidate(t *testing.T) {
	valid := FetchConfig{RequestDelay: DefaultRequestDelay}.WithDefaults()

	tests := []struct {
		name   string
		mutate func(*FetchConfig)
		want   error
	}{
		{"missing base url", func(c *FetchConfig) { c.BaseURL = "" }, ErrMissingBaseURL},
		{"zero page size", func(c *FetchConfig) { c.PageSize = 0 }, ErrInvalidPageSize},
		{"negative delay", func(c *FetchConfig) { c.RequestDelay = -1 }, ErrInvalidRequestDelay},
		{"missing data dir", func(c *FetchConfig) { c.DataDir = "" }, ErrMissingDataDir},
		{"negative retries", func(c *FetchConfig) { c.PageRetries = -1 }, ErrInvalidPageRetries},
		{"zero concurrency", func(c *FetchConfig) { c.DownloadConcurrency = 0 }, ErrInvalidConcurrency},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := valid
			tt.mutate(&cfg)
			assert.ErrorIs(t, cfg.Validate(), tt.want)
		})
	}
}

func TestConnectorConfigValidate(t *testing.T) {
	cfg := ConnectorConfig{
		Fetch: FetchConfig{}.WithDefaults(),
		Store: StoreConfig{Dir: DefaultStoreDir},
		Log:   LogConfig{Level: "debug"},
	}
	assert.NoError(t, cfg.Validate())

	noStore := cfg
	noStore.Store.Dir = ""
	assert.ErrorIs(t, noStore.Validate(), ErrMissingStoreDir)

	badLevel := cfg
	badLevel.Log.Level = "verbose"
	assert.ErrorIs(t, badLevel.Validate(), ErrInvalidLogLevel)
}

func TestNormalizeConfigValidate(t *testing.T) {
	assert.ErrorIs(t, NormalizeConfig{}.Validate(), ErrMissingNormalizeSource)
	assert.NoError(t, NormalizeConfig{Dir: "data"}.Validate())
	assert.NoError(t, NormalizeConfig{File: "p.json"}.Validate())
}

func TestStudyAccessors(t *testing.T) {
	s := Study{
		"protocolSection": map[string]any{
			"identificationModule": map[string]any{"nctId": "NCT01", "briefTitle": "Title"},
		},
	}
	assert.Equal(t, "NCT01", s.NCTID())
	assert.Equal(t, "Title", s.BriefTitle())
	assert.Empty(t, s.ID())

	s[IDField] = "NCT01"
	assert.Equal(t, "NCT01", s.ID())
	assert.Empty(t, Study{}.NCTID())
}
