// Package testcase defines the test case submitted to the router and loads
// collections of them from YAML or JSON files.
package testcase

import (
	"fmt"

	"testctl/internal/step"
)

// TestCase is an identifier plus ordered steps and an optional backend hint.
// It is not modified once handed to the engine.
type TestCase struct {
	Identifier  string      `json:"identifier" yaml:"identifier"`
	Type        string      `json:"type,omitempty" yaml:"type,omitempty"`
	Steps       []step.Step `json:"steps" yaml:"steps"`
	UserStory   string      `json:"user_story,omitempty" yaml:"user_story,omitempty"`
	TestSet     string      `json:"test_set,omitempty" yaml:"test_set,omitempty"`
	Description string      `json:"description,omitempty" yaml:"description,omitempty"`
	CreatedBy   string      `json:"created_by,omitempty" yaml:"created_by,omitempty"`
	Source      string      `json:"source,omitempty" yaml:"source,omitempty"`
}

// Validate checks the identifier and that every depends_on points to a
// strictly earlier step.
func (tc TestCase) Validate() error {
	if tc.Identifier == "" {
		return fmt.Errorf("test case identifier is required")
	}
	for i, s := range tc.Steps {
		dep, ok, err := s.DependsOn()
		if err != nil {
			return fmt.Errorf("test case %s step %d: %w", tc.Identifier, i, err)
		}
		if ok && (dep < 0 || dep >= i) {
			return fmt.Errorf("test case %s step %d: depends_on %d must refer to an earlier step", tc.Identifier, i, dep)
		}
	}
	return nil
}

// ValidateAll validates each case and rejects duplicate identifiers.
func ValidateAll(cases []TestCase) error {
	seen := make(map[string]bool, len(cases))
	for _, tc := range cases {
		if err := tc.Validate(); err != nil {
			return err
		}
		if seen[tc.Identifier] {
			return fmt.Errorf("duplicate test case identifier %q", tc.Identifier)
		}
		seen[tc.Identifier] = true
	}
	return nil
}
