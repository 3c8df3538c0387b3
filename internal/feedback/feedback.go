// Package feedback partitions raw reviewer text into named sections.
package feedback

import "strings"

// Headers are the literal section headers the reviewer is instructed to
// use, in prompt order. The prompt builder and the parser both read this
// list so the two cannot drift.
var Headers = []string{
	"ACCURACY ASSESSMENT:",
	"COMPLETENESS:",
	"CLARITY:",
	"IMPROVEMENT SUGGESTIONS:",
	"OVERALL RATING:",
}

// Feedback holds the five review sections. A section whose header was
// not found in the raw text is the empty string.
type Feedback struct {
	AccuracyAssessment     string `json:"accuracy_assessment"`
	Completeness           string `json:"completeness"`
	Clarity                string `json:"clarity"`
	ImprovementSuggestions string `json:"improvement_suggestions"`
	OverallRating          string `json:"overall_rating"`
}

// Sections returns the five section bodies in Headers order.
func (f Feedback) Sections() []string {
	return []string{
		f.AccuracyAssessment,
		f.Completeness,
		f.Clarity,
		f.ImprovementSuggestions,
		f.OverallRating,
	}
}

// Parse splits raw into the five sections.
//
// Each header is located independently at its first case-insensitive
// occurrence. A section runs from just after its header to the
// earliest occurrence of any later header in the Headers sequence, or
// to the end of the text, so a single missing header leaves the
// remaining sections intact. Surrounding whitespace is trimmed.
// Parsing never fails; a missing header yields an empty section, and a
// reviewer that reorders headers may produce sections that bleed into
// each other.
func Parse(raw string) Feedback {
	sections := make([]string, len(Headers))
	for i, header := range Headers {
		idx := indexFold(raw, header, 0)
		if idx < 0 {
			continue
		}
		start := idx + len(header)
		end := len(raw)
		for _, later := range Headers[i+1:] {
			if next := indexFold(raw, later, start); next >= 0 && next < end {
				end = next
			}
		}
		sections[i] = strings.TrimSpace(raw[start:end])
	}
	return Feedback{
		AccuracyAssessment:     sections[0],
		Completeness:           sections[1],
		Clarity:                sections[2],
		ImprovementSuggestions: sections[3],
		OverallRating:          sections[4],
	}
}

// indexFold returns the index of the first case-insensitive occurrence
// of sub in s at or after from, or -1. The headers are plain ASCII, so
// comparing fixed-width byte windows is safe.
func indexFold(s, sub string, from int) int {
	if from < 0 {
		from = 0
	}
	for i := from; i+len(sub) <= len(s); i++ {
		if strings.EqualFold(s[i:i+len(sub)], sub) {
			return i
		}
	}
	return -1
}
