// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package normalize

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pdiddy/ctgov-connector/pkg/types"
)

func parseStudy(t *testing.T, s string) types.Study {
	t.Helper()
	var study types.Study
	require.NoError(t, json.Unmarshal([]byte(s), &study))
	return study
}

func TestIsPlaceholder(t *testing.T) {
	tests := []struct {
		name string
		v    any
		want bool
	}{
		{"nil", nil, true},
		{"empty string", "", true},
		{"null string", "null", true},
		{"N/A", "N/A", true},
		{"empty map", map[string]any{}, true},
		{"empty slice", []any{}, true},
		{"false", false, false},
		{"zero float", float64(0), false},
		{"zero number", json.Number("0"), false},
		{"space", " ", false},
		{"lowercase n/a", "n/a", false},
		{"NULL uppercase", "NULL", false},
		{"text", "Phase 2", false},
		{"map with key", map[string]any{"a": 1}, false},
		{"slice with item", []any{1}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, IsPlaceholder(tt.v))
		})
	}
}

func TestClean(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{
			name: "nested empty removed bottom-up",
			in:   `{"a": {"b": ""}}`,
			want: `{}`,
		},
		{
			name: "all placeholder kinds",
			in:   `{"a": "", "b": "null", "c": "N/A", "d": null, "e": [], "f": {}, "g": "keep"}`,
			want: `{"g": "keep"}`,
		},
		{
			name: "falsy values kept",
			in:   `{"enabled": false, "count": 0, "ratio": 0.0}`,
			want: `{"enabled": false, "count": 0, "ratio": 0.0}`,
		},
		{
			name: "list elements cleaned",
			in:   `{"conditions": ["Asthma", "", null, "N/A", "COPD"]}`,
			want: `{"conditions": ["Asthma", "COPD"]}`,
		},
		{
			name: "list emptied by cleaning removed",
			in:   `{"arms": [{"label": ""}, {"type": null}], "x": 1}`,
			want: `{"x": 1}`,
		},
		{
			name: "list of maps partly cleaned",
			in:   `{"arms": [{"label": "A", "desc": ""}, {"label": ""}]}`,
			want: `{"arms": [{"label": "A"}]}`,
		},
		{
			name: "deep chain collapses",
			in:   `{"p": {"q": {"r": [{"s": {}}]}}, "keep": "y"}`,
			want: `{"keep": "y"}`,
		},
		{
			name: "nested lists",
			in:   `{"m": [[], [""], ["v"]]}`,
			want: `{"m": [["v"]]}`,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := CleanStudy(parseStudy(t, tt.in))
			data, err := json.Marshal(got)
			require.NoError(t, err)
			assert.JSONEq(t, tt.want, string(data))
		})
	}
}

func TestCleanIsIdempotent(t *testing.T) {
	inputs := []string{
		`{"a": {"b": ""}}`,
		`{"arms": [{"label": "A", "desc": ""}, {"label": ""}], "n": 0, "f": false}`,
		`{"p": {"q": [[], [{}], [{"r": "N/A"}], "x"]}, "s": "null"}`,
		`{"protocolSection": {"identificationModule": {"nctId": "NCT01", "acronym": ""}}}`,
	}
	for _, in := range inputs {
		once := CleanStudy(parseStudy(t, in))
		twice := CleanStudy(once)
		assert.Equal(t, once, twice, in)
	}
}

func TestCleanDoesNotMutateInput(t *testing.T) {
	study := parseStudy(t, `{"a": "", "b": {"c": null}}`)
	CleanStudy(study)
	assert.Contains(t, study, "a")
	assert.Contains(t, study, "b")
}

func TestCleanScalarsPassThrough(t *testing.T) {
	assert.Equal(t, "x", Clean("x"))
	assert.Equal(t, true, Clean(true))
	assert.Equal(t, json.Number("12"), Clean(json.Number("12")))
}

func TestStampID(t *testing.T) {
	study := parseStudy(t, `{"protocolSection": {"identificationModule": {"nctId": "NCT00000123"}}}`)
	require.True(t, StampID(study))
	assert.Equal(t, "NCT00000123", study.ID())
	assert.Equal(t, "NCT00000123", study[types.IDField])

	missing := parseStudy(t, `{"protocolSection": {"statusModule": {}}}`)
	assert.False(t, StampID(missing))
	assert.NotContains(t, missing, types.IDField)
}
