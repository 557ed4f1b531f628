package versioning

import (
	"sort"
	"strings"

	"testctl/internal/testcase"
)

// DefaultDedupThreshold is the similarity at which two cases are reported
// as likely duplicates.
const DefaultDedupThreshold = 0.9

// DuplicatePair is two cases whose steps read alike.
type DuplicatePair struct {
	A          string  `json:"a"`
	B          string  `json:"b"`
	Similarity float64 `json:"similarity"`
}

// detail is the case's steps, lowercased with whitespace collapsed.
func detail(tc testcase.TestCase) string {
	parts := make([]string, 0, len(tc.Steps)+1)
	if tc.Description != "" {
		parts = append(parts, tc.Description)
	}
	for _, s := range tc.Steps {
		parts = append(parts, s.Canonical())
	}
	return strings.Join(strings.Fields(strings.ToLower(strings.Join(parts, "\n"))), " ")
}

// FindExactDuplicates groups identifiers of cases with identical normalized
// details. Groups appear in order of their first member.
func FindExactDuplicates(cases []testcase.TestCase) [][]string {
	index := make(map[string]int)
	var groups [][]string
	for _, tc := range cases {
		d := detail(tc)
		if i, ok := index[d]; ok {
			groups[i] = append(groups[i], tc.Identifier)
			continue
		}
		index[d] = len(groups)
		groups = append(groups, []string{tc.Identifier})
	}

	out := [][]string{}
	for _, g := range groups {
		if len(g) > 1 {
			out = append(out, g)
		}
	}
	return out
}

// FindSemanticDuplicates returns every pair of cases whose TF-IDF cosine
// over their details is at least threshold, most similar first.
func FindSemanticDuplicates(cases []testcase.TestCase, threshold float64) []DuplicatePair {
	if threshold <= 0 {
		threshold = DefaultDedupThreshold
	}
	details := make([]string, len(cases))
	for i, tc := range cases {
		details[i] = detail(tc)
	}
	m := fitTFIDF(details)
	vectors := make([]map[string]float64, len(cases))
	for i, d := range details {
		vectors[i] = m.vector(d)
	}

	out := []DuplicatePair{}
	for i := range cases {
		for j := i + 1; j < len(cases); j++ {
			sim := 1.0
			if details[i] != details[j] {
				sim = clamp(cosine(vectors[i], vectors[j]))
			}
			if sim >= threshold {
				out = append(out, DuplicatePair{A: cases[i].Identifier, B: cases[j].Identifier, Similarity: sim})
			}
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Similarity > out[j].Similarity })
	return out
}
