package testcase

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"testctl/internal/step"
)

const yamlCases = `
test_cases:
  - identifier: TC-1
    type: ui
    steps:
      - action: navigate
        target: https://example.com
      - action: click
        target: "#login"
        depends_on: 0
  - identifier: TC-2
    steps:
      - command: GET /health
`

func TestParse_YAMLDocument(t *testing.T) {
	cases, err := Parse([]byte(yamlCases))
	require.NoError(t, err)
	require.Len(t, cases, 2)

	assert.Equal(t, "TC-1", cases[0].Identifier)
	assert.Equal(t, "ui", cases[0].Type)
	require.Len(t, cases[0].Steps, 2)
	assert.Equal(t, "click", cases[0].Steps[1].Action())
	dep, ok, err := cases[0].Steps[1].DependsOn()
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, 0, dep)

	assert.Empty(t, cases[1].Type)
}

func TestParse_YAMLList(t *testing.T) {
	cases, err := Parse([]byte("- identifier: A\n  steps: []\n- identifier: B\n"))
	require.NoError(t, err)
	assert.Len(t, cases, 2)
}

func TestParse_JSON(t *testing.T) {
	cases, err := Parse([]byte(`[{"identifier":"TC-9","type":"api","steps":[{"command":"GET /a"},{"command":"GET /b","depends_on":0}]}]`))
	require.NoError(t, err)
	require.Len(t, cases, 1)
	dep, ok, err := cases[0].Steps[1].DependsOn()
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, 0, dep)
}

func TestParse_Invalid(t *testing.T) {
	tests := map[string]string{
		"missing identifier": `[{"steps":[]}]`,
		"duplicate":          `[{"identifier":"A"},{"identifier":"A"}]`,
		"forward dependency": `[{"identifier":"A","steps":[{"action":"x","depends_on":1},{"action":"y"}]}]`,
		"self dependency":    `[{"identifier":"A","steps":[{"action":"x","depends_on":0}]}]`,
		"bad yaml":           "test_cases: [",
	}
	for name, input := range tests {
		t.Run(name, func(t *testing.T) {
			_, err := Parse([]byte(input))
			assert.Error(t, err)
		})
	}
}

func TestLoad_Directory(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "a.yaml"), []byte(yamlCases), 0644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "b.json"), []byte(`[{"identifier":"TC-3","steps":[]}]`), 0644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "notes.txt"), []byte("ignored"), 0644))

	cases, err := Load(dir)
	require.NoError(t, err)
	require.Len(t, cases, 3)
	assert.Equal(t, "TC-3", cases[2].Identifier)

	require.NoError(t, os.WriteFile(filepath.Join(dir, "c.yaml"), []byte("- identifier: TC-1\n"), 0644))
	_, err = Load(dir)
	assert.Error(t, err, "identifiers collide across files")
}

func TestTestCaseValidate(t *testing.T) {
	tc := TestCase{Identifier: "X", Steps: []step.Step{{"action": "a"}, {"action": "b", "depends_on": 0}}}
	assert.NoError(t, tc.Validate())
}
