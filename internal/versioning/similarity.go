package versioning

import (
	"context"
	"math"
	"regexp"
	"strings"

	"github.com/pmezard/go-difflib/difflib"

	"testctl/pkg/logging"
)

// Similarity methods.
const (
	MethodSequence  = "sequence"
	MethodTFIDF     = "tfidf"
	MethodEmbedding = "embedding"
)

// Embedder returns a vector for text, or false when none is available.
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float64, bool)
}

// Scorer compares two collections of item texts. Scores are in [0,1] and
// identical input always scores 1.
type Scorer struct {
	method   string
	embedder Embedder
}

// NewScorer creates a scorer. An unknown method falls back to sequence;
// embedder may be nil.
func NewScorer(method string, embedder Embedder) *Scorer {
	switch method {
	case MethodSequence, MethodTFIDF, MethodEmbedding:
	default:
		logging.Warn("Versioning", "Unknown similarity method %q, using %s", method, MethodSequence)
		method = MethodSequence
	}
	return &Scorer{method: method, embedder: embedder}
}

// Method returns the method in use.
func (s *Scorer) Method() string { return s.method }

// Compare scores old against new. Each slice holds one text per item.
func (s *Scorer) Compare(ctx context.Context, old, new []string) float64 {
	a, b := strings.Join(old, "\n"), strings.Join(new, "\n")
	if a == b {
		return 1
	}
	switch s.method {
	case MethodTFIDF:
		m := fitTFIDF(append(append([]string{}, old...), new...))
		return clamp(cosine(m.vector(a), m.vector(b)))
	case MethodEmbedding:
		if s.embedder != nil {
			va, okA := s.embedder.Embed(ctx, a)
			vb, okB := s.embedder.Embed(ctx, b)
			if okA && okB && len(va) == len(vb) {
				return clamp(denseCosine(va, vb))
			}
		}
		logging.Debug("Versioning", "Embeddings unavailable, using sequence similarity")
	}
	return SequenceRatio(a, b)
}

var tokenRe = regexp.MustCompile(`[\p{L}\p{N}_]+|[^\p{L}\p{N}_\s]`)

// SequenceRatio is the difflib ratio over the word and punctuation tokens
// of a and b.
func SequenceRatio(a, b string) float64 {
	if a == b {
		return 1
	}
	m := difflib.NewMatcherWithJunk(tokenRe.FindAllString(a, -1), tokenRe.FindAllString(b, -1), false, nil)
	return clamp(m.Ratio())
}

var termRe = regexp.MustCompile(`[\p{L}\p{N}_]{2,}`)

func terms(text string) []string {
	return termRe.FindAllString(strings.ToLower(text), -1)
}

// tfidf holds smoothed inverse document frequencies fitted on a corpus.
type tfidf struct {
	idf  map[string]float64
	docs int
}

func fitTFIDF(docs []string) *tfidf {
	df := make(map[string]int)
	for _, d := range docs {
		seen := make(map[string]bool)
		for _, t := range terms(d) {
			if !seen[t] {
				seen[t] = true
				df[t]++
			}
		}
	}
	m := &tfidf{idf: make(map[string]float64, len(df)), docs: len(docs)}
	for t, n := range df {
		m.idf[t] = math.Log(float64(1+m.docs)/float64(1+n)) + 1
	}
	return m
}

// vector returns the L2-normalized tf-idf vector of text. Terms unseen at
// fit time get the idf of a term present in no document.
func (m *tfidf) vector(text string) map[string]float64 {
	v := make(map[string]float64)
	for _, t := range terms(text) {
		v[t]++
	}
	var norm float64
	for t, tf := range v {
		idf, ok := m.idf[t]
		if !ok {
			idf = math.Log(float64(1+m.docs)) + 1
		}
		v[t] = tf * idf
		norm += v[t] * v[t]
	}
	if norm == 0 {
		return v
	}
	norm = math.Sqrt(norm)
	for t := range v {
		v[t] /= norm
	}
	return v
}

func cosine(a, b map[string]float64) float64 {
	if len(a) == 0 || len(b) == 0 {
		return 0
	}
	var dot, na, nb float64
	for t, x := range a {
		dot += x * b[t]
		na += x * x
	}
	for _, y := range b {
		nb += y * y
	}
	if na == 0 || nb == 0 {
		return 0
	}
	return dot / (math.Sqrt(na) * math.Sqrt(nb))
}

func denseCosine(a, b []float64) float64 {
	var dot, na, nb float64
	for i := range a {
		dot += a[i] * b[i]
		na += a[i] * a[i]
		nb += b[i] * b[i]
	}
	if na == 0 || nb == 0 {
		return 0
	}
	return dot / (math.Sqrt(na) * math.Sqrt(nb))
}

func clamp(v float64) float64 {
	switch {
	case math.IsNaN(v), v < 0:
		return 0
	case v > 1:
		return 1
	}
	return v
}
