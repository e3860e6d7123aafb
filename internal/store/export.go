// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package store

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"go.yaml.in/yaml/v3"

	"github.com/pdiddy/ctgov-connector/pkg/types"
)

// exportDoc is the export file layout, matching the page file layout so an
// export can be fed back through the normalizer.
type exportDoc struct {
	Release string        `json:"release" yaml:"release"`
	Studies []types.Study `json:"studies" yaml:"studies"`
}

// ExportJSON writes every stored study to dir/export.json and returns the path.
func (s *Store) ExportJSON(ctx context.Context) (string, error) {
	doc, err := s.exportDoc(ctx)
	if err != nil {
		return "", err
	}
	path := filepath.Join(s.dir, "export.json")
	data, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return "", fmt.Errorf("marshaling JSON: %w", err)
	}
	return path, os.WriteFile(path, data, 0o644)
}

// ExportYAML writes every stored study to dir/export.yaml and returns the path.
func (s *Store) ExportYAML(ctx context.Context) (string, error) {
	doc, err := s.exportDoc(ctx)
	if err != nil {
		return "", err
	}
	path := filepath.Join(s.dir, "export.yaml")
	data, err := yaml.Marshal(doc)
	if err != nil {
		return "", fmt.Errorf("marshaling YAML: %w", err)
	}
	return path, os.WriteFile(path, data, 0o644)
}

func (s *Store) exportDoc(ctx context.Context) (*exportDoc, error) {
	release, err := s.LastRelease(ctx)
	if err != nil {
		return nil, err
	}

	rows, err := s.db.QueryContext(ctx, `SELECT doc FROM studies ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("querying for export: %w", err)
	}
	defer rows.Close()

	out := &exportDoc{Release: release, Studies: []types.Study{}}
	for rows.Next() {
		var raw string
		if err := rows.Scan(&raw); err != nil {
			return nil, fmt.Errorf("scanning document: %w", err)
		}
		study, err := decodeDoc(raw)
		if err != nil {
			return nil, err
		}
		out.Studies = append(out.Studies, study)
	}
	return out, rows.Err()
}
