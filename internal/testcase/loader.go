package testcase

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"testctl/pkg/logging"

	"gopkg.in/yaml.v3"
)

type caseFile struct {
	TestCases []TestCase `json:"test_cases" yaml:"test_cases"`
}

// Parse decodes a list of cases or a {test_cases: [...]} document. JSON is
// a subset of YAML but keeps number types closer to the wire, so it is
// decoded with encoding/json when the input looks like JSON.
func Parse(data []byte) ([]TestCase, error) {
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) == 0 {
		return nil, nil
	}

	var cases []TestCase
	if trimmed[0] == '[' || trimmed[0] == '{' {
		if trimmed[0] == '[' {
			if err := json.Unmarshal(trimmed, &cases); err != nil {
				return nil, fmt.Errorf("failed to parse test cases: %w", err)
			}
		} else {
			var f caseFile
			if err := json.Unmarshal(trimmed, &f); err != nil {
				return nil, fmt.Errorf("failed to parse test cases: %w", err)
			}
			cases = f.TestCases
		}
	} else {
		var node yaml.Node
		if err := yaml.Unmarshal(trimmed, &node); err != nil {
			return nil, fmt.Errorf("failed to parse test cases: %w", err)
		}
		if len(node.Content) > 0 && node.Content[0].Kind == yaml.SequenceNode {
			if err := node.Decode(&cases); err != nil {
				return nil, fmt.Errorf("failed to parse test cases: %w", err)
			}
		} else {
			var f caseFile
			if err := node.Decode(&f); err != nil {
				return nil, fmt.Errorf("failed to parse test cases: %w", err)
			}
			cases = f.TestCases
		}
	}

	if err := ValidateAll(cases); err != nil {
		return nil, err
	}
	return cases, nil
}

// LoadFile reads test cases from a .yaml, .yml or .json file.
func LoadFile(path string) ([]TestCase, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", path, err)
	}
	cases, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	logging.Debug("TestCaseLoader", "Loaded %d test cases from %s", len(cases), path)
	return cases, nil
}

// Load reads a single file or a whole directory.
func Load(path string) ([]TestCase, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, err
	}
	if info.IsDir() {
		return LoadDir(path)
	}
	return LoadFile(path)
}

// LoadDir reads every case file under dir in lexical order. Identifiers
// must be unique across the whole result.
func LoadDir(path string) ([]TestCase, error) {
	var files []string
	err := filepath.WalkDir(path, func(p string, d os.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return nil
		}
		switch strings.ToLower(filepath.Ext(p)) {
		case ".yaml", ".yml", ".json":
			files = append(files, p)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to walk %s: %w", path, err)
	}
	sort.Strings(files)

	var all []TestCase
	for _, f := range files {
		cases, err := LoadFile(f)
		if err != nil {
			return nil, err
		}
		all = append(all, cases...)
	}
	if err := ValidateAll(all); err != nil {
		return nil, err
	}
	return all, nil
}
