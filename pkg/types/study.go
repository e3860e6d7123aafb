// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package types

import "time"

// Study is one clinical trial record as returned by the registry. The
// structure is deep and irregular, so it stays a generic JSON object.
type Study map[string]any

// IDField is the top-level key carrying a normalized study's registry identifier.
const IDField = "_id"

// NCTID returns the registry identifier found at
// protocolSection.identificationModule.nctId, or "" when absent.
func (s Study) NCTID() string {
	protocol, ok := s["protocolSection"].(map[string]any)
	if !ok {
		return ""
	}
	ident, ok := protocol["identificationModule"].(map[string]any)
	if !ok {
		return ""
	}
	id, _ := ident["nctId"].(string)
	return id
}

// BriefTitle returns protocolSection.identificationModule.briefTitle, or "".
func (s Study) BriefTitle() string {
	protocol, ok := s["protocolSection"].(map[string]any)
	if !ok {
		return ""
	}
	ident, ok := protocol["identificationModule"].(map[string]any)
	if !ok {
		return ""
	}
	title, _ := ident["briefTitle"].(string)
	return title
}

// ID returns the stamped _id, or "" if the study has not been normalized.
func (s Study) ID() string {
	id, _ := s[IDField].(string)
	return id
}

// DownloadTask pairs a remote URL with the local path it is saved to.
type DownloadTask struct {
	Remote string `json:"remote" yaml:"remote"`
	Local  string `json:"local" yaml:"local"`
}

// SourceMeta describes the upstream data source for provenance.
type SourceMeta struct {
	Name       string `json:"name" yaml:"name"`
	URL        string `json:"url" yaml:"url"`
	LicenseURL string `json:"license_url" yaml:"license_url"`
}

// ClinicalTrialsGov is the provenance record for the public registry.
var ClinicalTrialsGov = SourceMeta{
	Name:       "clinicaltrials_gov",
	URL:        "https://www.clinicaltrials.gov/",
	LicenseURL: "https://www.clinicaltrials.gov/about-site/terms-conditions",
}

// Manifest records what a fetch run produced. It is written next to the
// page files so a run directory can be replayed without the network.
type Manifest struct {
	Source       SourceMeta     `json:"source" yaml:"source"`
	Release      string         `json:"release" yaml:"release"`
	TotalStudies int            `json:"total_studies" yaml:"total_studies"`
	TotalPages   int            `json:"total_pages" yaml:"total_pages"`
	PageSize     int            `json:"page_size" yaml:"page_size"`
	FetchedAt    time.Time      `json:"fetched_at" yaml:"fetched_at"`
	Tasks        []DownloadTask `json:"tasks,omitempty" yaml:"tasks,omitempty"`
	Files        []string       `json:"files,omitempty" yaml:"files,omitempty"`
}
