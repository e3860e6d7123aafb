// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package main

import (
	"bufio"
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pdiddy/ctgov-connector/internal/fetch"
	"github.com/pdiddy/ctgov-connector/internal/normalize"
	"github.com/pdiddy/ctgov-connector/pkg/types"
)

const pageFile = `{"studies": [
	{"protocolSection": {"identificationModule": {"nctId": "NCT01", "acronym": ""}}},
	{"protocolSection": {"identificationModule": {"nctId": "NCT02"}}}
]}`

func writePage(t *testing.T, dir string) string {
	t.Helper()
	path := filepath.Join(dir, fetch.FirstPageFile)
	require.NoError(t, os.WriteFile(path, []byte(pageFile), 0o644))
	return path
}

func TestWriteRecordsArray(t *testing.T) {
	path := writePage(t, t.TempDir())
	var buf bytes.Buffer
	w := bufio.NewWriter(&buf)

	n, err := writeRecords(w, normalize.NewFileSource(path), false)
	require.NoError(t, err)
	require.NoError(t, w.Flush())
	assert.Equal(t, 2, n)

	var got []types.Study
	require.NoError(t, json.Unmarshal(buf.Bytes(), &got))
	require.Len(t, got, 2)
	assert.Equal(t, "NCT01", got[0].ID())
}

func TestWriteRecordsJSONL(t *testing.T) {
	path := writePage(t, t.TempDir())
	var buf bytes.Buffer
	w := bufio.NewWriter(&buf)

	n, err := writeRecords(w, normalize.NewFileSource(path), true)
	require.NoError(t, err)
	require.NoError(t, w.Flush())
	assert.Equal(t, 2, n)

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	require.Len(t, lines, 2)
	assert.JSONEq(t, `{"_id": "NCT02", "protocolSection": {"identificationModule": {"nctId": "NCT02"}}}`, lines[1])
}

func TestWriteRecordsEmptySource(t *testing.T) {
	var buf bytes.Buffer
	w := bufio.NewWriter(&buf)

	n, err := writeRecords(w, normalize.NewDirSource(t.TempDir()), false)
	require.NoError(t, err)
	require.NoError(t, w.Flush())
	assert.Zero(t, n)
	assert.Equal(t, "[]\n", buf.String())
}

func TestReleaseFor(t *testing.T) {
	root := t.TempDir()

	runDir := filepath.Join(root, "2026-10-01")
	require.NoError(t, os.MkdirAll(runDir, 0o755))
	path := writePage(t, runDir)
	assert.Equal(t, "2026-10-01", releaseFor(types.NormalizeConfig{File: path}))

	require.NoError(t, fetch.WriteManifest(runDir, &types.Manifest{Release: "2026-09-30"}))
	assert.Equal(t, "2026-09-30", releaseFor(types.NormalizeConfig{Dir: runDir}))
}

func TestCountSkips(t *testing.T) {
	path := filepath.Join(t.TempDir(), "p.json")
	require.NoError(t, os.WriteFile(path, []byte(`{"studies": [
		{"protocolSection": {"statusModule": {"overallStatus": "RECRUITING"}}},
		{"protocolSection": {"identificationModule": {"nctId": "NCT03"}}},
		{"hasResults": true}
	]}`), 0o644))

	skipped := 0
	studies, err := normalize.Collect(normalize.NewFileSource(path, countSkips(&skipped)))
	require.NoError(t, err)
	assert.Len(t, studies, 1)
	assert.Equal(t, 2, skipped)
}

func TestTruncate(t *testing.T) {
	tests := []struct {
		name string
		in   string
		n    int
		want string
	}{
		{"short", "Asthma", 10, "Asthma"},
		{"exact", "abcdef", 6, "abcdef"},
		{"ascii", "abcdefghij", 6, "abc..."},
		{"multibyte", "Étude über Schlafstörungen", 10, "Étude ü..."},
		{"cjk", "臨床試験の有効性評価", 6, "臨床試..."},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := truncate(tt.in, tt.n)
			assert.Equal(t, tt.want, got)
			assert.True(t, utf8.ValidString(got))
		})
	}
}
