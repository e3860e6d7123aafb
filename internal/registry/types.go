// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package registry

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
)

// Sentinel errors.
var (
	ErrUnexpectedStatus  = errors.New("unexpected HTTP status")
	ErrMalformedResponse = errors.New("malformed registry response")
)

// StatusError reports a non-200 response.
type StatusError struct {
	StatusCode int
	URL        string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("registry API returned HTTP %d for %s", e.StatusCode, e.URL)
}

// Is lets errors.Is match ErrUnexpectedStatus.
func (e *StatusError) Is(target error) bool {
	return target == ErrUnexpectedStatus
}

// PageRequest selects one page of /studies.
type PageRequest struct {
	PageSize int
	// Token is the cursor returned by the previous page; empty for the first.
	Token string
	// Fields optionally limits the returned study fields (e.g. "NCTId").
	Fields []string
}

func (r PageRequest) label() string {
	if r.Token == "" {
		return "first"
	}
	return r.Token
}

// Page is one /studies response. Studies stay raw so an aggregate fetch
// can write them back out byte for byte.
type Page struct {
	Studies       []json.RawMessage `json:"studies"`
	NextPageToken string            `json:"nextPageToken,omitempty"`
	TotalCount    int               `json:"totalCount,omitempty"`
}

// HasNext reports whether the server issued a cursor for another page.
func (p *Page) HasNext() bool {
	return p.NextPageToken != ""
}

// VersionInfo is the /version response.
type VersionInfo struct {
	APIVersion    string `json:"apiVersion"`
	DataTimestamp string `json:"dataTimestamp"`
}

// ReleaseDate returns the date portion of DataTimestamp
// ("2024-05-01T09:00:00" -> "2024-05-01").
func (v VersionInfo) ReleaseDate() string {
	date, _, _ := strings.Cut(v.DataTimestamp, "T")
	return strings.TrimSpace(date)
}

type sizeResponse struct {
	TotalStudies *int `json:"totalStudies"`
}
