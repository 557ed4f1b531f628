// Package reporting collects test evidence and outcomes.
//
// A Reporter opens one TestScope per test case. Executors attach evidence
// to the scope carried in the context, so they never need to know which
// reporter is active. Every scope must be closed exactly once.
package reporting

import (
	"context"
)

// MIME types used for attachments.
const (
	MIMEText = "text/plain"
	MIMEJSON = "application/json"
	MIMEPNG  = "image/png"
)

// Evidence receives attachments for the current test.
type Evidence interface {
	AttachText(name, text string)
	AttachBytes(name, mimeType string, data []byte)
}

// TestScope is the evidence sink of one running test.
type TestScope interface {
	Evidence
	// Close records the final status. Later calls are ignored.
	Close(status string)
}

// Reporter starts test scopes. Implementations are safe for concurrent
// scopes.
type Reporter interface {
	StartTest(name, backend string) TestScope
}

type evidenceKey struct{}

// WithEvidence returns a context carrying e.
func WithEvidence(ctx context.Context, e Evidence) context.Context {
	return context.WithValue(ctx, evidenceKey{}, e)
}

// EvidenceFrom returns the evidence sink in ctx, or one that drops
// everything.
func EvidenceFrom(ctx context.Context) Evidence {
	if e, ok := ctx.Value(evidenceKey{}).(Evidence); ok && e != nil {
		return e
	}
	return discardScope{}
}

// Discard is a reporter whose scopes drop everything.
var Discard Reporter = discardReporter{}

type discardReporter struct{}

func (discardReporter) StartTest(name, backend string) TestScope { return discardScope{} }

type discardScope struct{}

func (discardScope) AttachText(name, text string)                   {}
func (discardScope) AttachBytes(name, mimeType string, data []byte) {}
func (discardScope) Close(status string)                            {}

// Multi fans out to several reporters.
func Multi(reporters ...Reporter) Reporter {
	var rs []Reporter
	for _, r := range reporters {
		if r != nil {
			rs = append(rs, r)
		}
	}
	if len(rs) == 1 {
		return rs[0]
	}
	return multiReporter(rs)
}

type multiReporter []Reporter

func (m multiReporter) StartTest(name, backend string) TestScope {
	scopes := make(multiScope, len(m))
	for i, r := range m {
		scopes[i] = r.StartTest(name, backend)
	}
	return scopes
}

type multiScope []TestScope

func (m multiScope) AttachText(name, text string) {
	for _, s := range m {
		s.AttachText(name, text)
	}
}

func (m multiScope) AttachBytes(name, mimeType string, data []byte) {
	for _, s := range m {
		s.AttachBytes(name, mimeType, data)
	}
}

func (m multiScope) Close(status string) {
	for _, s := range m {
		s.Close(status)
	}
}
