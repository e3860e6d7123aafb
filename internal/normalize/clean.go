// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package normalize

import (
	"github.com/pdiddy/ctgov-connector/pkg/types"
)

// placeholderStrings are string values the registry uses for "no data".
var placeholderStrings = map[string]bool{
	"":     true,
	"null": true,
	"N/A":  true,
}

// IsPlaceholder reports whether v is an empty or placeholder value: nil,
// "", "null", "N/A", an empty sequence or an empty mapping. false and 0
// are real values and are not placeholders.
func IsPlaceholder(v any) bool {
	switch x := v.(type) {
	case nil:
		return true
	case string:
		return placeholderStrings[x]
	case map[string]any:
		return len(x) == 0
	case types.Study:
		return len(x) == 0
	case []any:
		return len(x) == 0
	}
	return false
}

// Clean returns a copy of v with placeholder values removed from every
// mapping and sequence. Children are cleaned first, so a container that
// only held placeholders is itself dropped. Clean(Clean(v)) equals Clean(v).
func Clean(v any) any {
	switch x := v.(type) {
	case map[string]any:
		return cleanMap(x)
	case types.Study:
		return types.Study(cleanMap(x))
	case []any:
		out := make([]any, 0, len(x))
		for _, item := range x {
			c := Clean(item)
			if !IsPlaceholder(c) {
				out = append(out, c)
			}
		}
		return out
	}
	return v
}

func cleanMap(m map[string]any) map[string]any {
	out := make(map[string]any, len(m))
	for k, val := range m {
		c := Clean(val)
		if !IsPlaceholder(c) {
			out[k] = c
		}
	}
	return out
}

// CleanStudy cleans a whole study record. The result may be empty.
func CleanStudy(s types.Study) types.Study {
	return types.Study(cleanMap(s))
}

// StampID sets the top-level _id from the study's registry identifier.
// It reports false, leaving s untouched, when the identifier is missing.
func StampID(s types.Study) bool {
	id := s.NCTID()
	if id == "" {
		return false
	}
	s[types.IDField] = id
	return true
}
