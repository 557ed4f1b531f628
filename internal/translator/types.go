// Package translator turns steps into action descriptors: backend
// categories, HTTP requests, SQL statements and element selectors.
//
// An LLM reached over MCP is consulted first; deterministic rules take
// over when it is disabled, unreachable or returns something unusable.
// None of the Translator methods fail.
package translator

import (
	"context"

	"testctl/internal/step"
)

// Translator is what the router and executors use.
type Translator interface {
	Classify(ctx context.Context, text string) (step.Kind, bool)
	TranslateAPI(ctx context.Context, command, baseURL string) APIRequest
	TranslateSQL(ctx context.Context, command string) SQLStatement
	SuggestLocator(ctx context.Context, description string) (string, bool)
	Embed(ctx context.Context, text string) ([]float64, bool)
}

// APIRequest is a translated HTTP call. Body is sent as JSON unless it is
// a string, which is sent as-is.
type APIRequest struct {
	Method         string            `json:"method"`
	URL            string            `json:"url"`
	Headers        map[string]string `json:"headers,omitempty"`
	Body           interface{}       `json:"body,omitempty"`
	ExpectedStatus int               `json:"expected_status"`
}

// CountExpectation is what a SQL assertion checks about its count.
type CountExpectation string

const (
	CountPositive CountExpectation = "positive"
	CountZero     CountExpectation = "zero"
)

// Assertion is a follow-up count query checked after a statement runs.
type Assertion struct {
	Query  string           `json:"query"`
	Args   []interface{}    `json:"args,omitempty"`
	Expect CountExpectation `json:"expect"`
}

// SQLStatement is a translated statement with ? placeholders.
type SQLStatement struct {
	SQL       string        `json:"sql"`
	Args      []interface{} `json:"args,omitempty"`
	Assertion *Assertion    `json:"assertion,omitempty"`
}
