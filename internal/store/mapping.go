// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package store

import (
	"fmt"
	"io"

	"go.yaml.in/yaml/v3"
)

// Field is one entry of the search index mapping.
type Field struct {
	Type       string           `json:"type,omitempty" yaml:"type,omitempty"`
	Normalizer string           `json:"normalizer,omitempty" yaml:"normalizer,omitempty"`
	CopyTo     []string         `json:"copy_to,omitempty" yaml:"copy_to,omitempty"`
	Fields     map[string]Field `json:"properties,omitempty" yaml:"properties,omitempty"`
}

// keywordNormalizer lowercases keyword fields at index time.
const keywordNormalizer = "keyword_lowercase_normalizer"

// Mapping is the declarative field mapping the downstream search index is
// created with. It describes the fields consumers query; the stored
// documents keep every other field as well.
func Mapping() map[string]Field {
	keyword := Field{Type: "keyword", Normalizer: keywordNormalizer}
	text := Field{Type: "text"}
	date := Field{Type: "keyword"}

	return map[string]Field{
		"protocolSection": {Fields: map[string]Field{
			"identificationModule": {Fields: map[string]Field{
				"nctId":         {Type: "keyword", Normalizer: keywordNormalizer, CopyTo: []string{"all"}},
				"briefTitle":    {Type: "text", CopyTo: []string{"all"}},
				"officialTitle": {Type: "text", CopyTo: []string{"all"}},
				"acronym":       keyword,
				"orgStudyIdInfo": {Fields: map[string]Field{
					"id": keyword,
				}},
			}},
			"statusModule": {Fields: map[string]Field{
				"overallStatus": keyword,
				"startDateStruct": {Fields: map[string]Field{
					"date": date,
				}},
				"completionDateStruct": {Fields: map[string]Field{
					"date": date,
				}},
				"lastUpdatePostDateStruct": {Fields: map[string]Field{
					"date": date,
				}},
			}},
			"sponsorCollaboratorsModule": {Fields: map[string]Field{
				"leadSponsor": {Fields: map[string]Field{
					"name":  text,
					"class": keyword,
				}},
			}},
			"descriptionModule": {Fields: map[string]Field{
				"briefSummary": text,
			}},
			"conditionsModule": {Fields: map[string]Field{
				"conditions": {Type: "text", CopyTo: []string{"all"}},
				"keywords":   text,
			}},
			"designModule": {Fields: map[string]Field{
				"studyType": keyword,
				"phases":    keyword,
				"enrollmentInfo": {Fields: map[string]Field{
					"count": {Type: "integer"},
				}},
			}},
			"armsInterventionsModule": {Fields: map[string]Field{
				"interventions": {Fields: map[string]Field{
					"type": keyword,
					"name": {Type: "text", CopyTo: []string{"all"}},
				}},
			}},
		}},
		"hasResults": {Type: "boolean"},
		"all":        text,
	}
}

// WriteMapping writes the mapping as YAML.
func WriteMapping(w io.Writer) error {
	data, err := yaml.Marshal(Mapping())
	if err != nil {
		return fmt.Errorf("marshaling mapping: %w", err)
	}
	_, err = w.Write(data)
	return err
}
