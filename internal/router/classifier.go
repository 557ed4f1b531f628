package router

import (
	"context"
	"strings"

	"testctl/internal/config"
	"testctl/internal/step"
	"testctl/internal/testcase"
	"testctl/pkg/logging"
)

// DefaultKind is used when nothing else decides.
const DefaultKind = step.KindAPI

// CategoryClassifier is the translator's classification call.
type CategoryClassifier interface {
	Classify(ctx context.Context, text string) (step.Kind, bool)
}

type bucket struct {
	kind     step.Kind
	keywords []string
}

// Classifier picks the backend for a test case.
type Classifier struct {
	tr      CategoryClassifier
	buckets []bucket
}

// NewClassifier creates a classifier. tr may be nil.
func NewClassifier(tr CategoryClassifier, cfg config.RouterConfig) *Classifier {
	lower := func(in []string) []string {
		out := make([]string, 0, len(in))
		for _, k := range in {
			if k = strings.ToLower(k); k != "" {
				out = append(out, k)
			}
		}
		return out
	}
	return &Classifier{
		tr: tr,
		buckets: []bucket{
			{step.KindUI, lower(cfg.UIKeywords)},
			{step.KindAPI, lower(cfg.APIKeywords)},
			{step.KindMobile, lower(cfg.MobileKeywords)},
			{step.KindSQL, lower(cfg.SQLKeywords)},
		},
	}
}

// Classify returns the explicit type, else the translator's answer, else
// the first keyword bucket that matches, else DefaultKind.
func (c *Classifier) Classify(ctx context.Context, tc testcase.TestCase) step.Kind {
	if tc.Type != "" {
		if k, ok := step.ParseKind(tc.Type); ok {
			return k
		}
		logging.Warn("Router", "Ignoring unknown type %q on %s", tc.Type, tc.Identifier)
	}

	text := caseText(tc)
	if c.tr != nil {
		if k, ok := c.tr.Classify(ctx, text); ok {
			logging.Debug("Router", "Translator classified %s as %s", tc.Identifier, k)
			return k
		}
	}

	lowered := strings.ToLower(text)
	for _, b := range c.buckets {
		for _, kw := range b.keywords {
			if strings.Contains(lowered, kw) {
				logging.Debug("Router", "Keyword %q classified %s as %s", kw, tc.Identifier, b.kind)
				return b.kind
			}
		}
	}
	return DefaultKind
}

func caseText(tc testcase.TestCase) string {
	parts := make([]string, 0, len(tc.Steps))
	for _, s := range tc.Steps {
		parts = append(parts, s.Canonical())
	}
	return strings.Join(parts, "\n")
}
