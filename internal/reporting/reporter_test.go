package reporting

import (
	"bytes"
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFileReporter(t *testing.T) {
	dir := t.TempDir()
	r, err := NewFileReporter(filepath.Join(dir, "results"))
	require.NoError(t, err)

	scope := r.StartTest("TC-1", "api")
	scope.AttachText("api_request", "GET /x")
	scope.AttachBytes("screenshot", MIMEPNG, []byte{1, 2, 3})
	scope.Close("partial")
	scope.Close("passed")
	scope.AttachText("late", "ignored")

	results, err := filepath.Glob(filepath.Join(r.Dir(), "*-result.json"))
	require.NoError(t, err)
	require.Len(t, results, 1)

	data, err := os.ReadFile(results[0])
	require.NoError(t, err)
	var res allureResult
	require.NoError(t, json.Unmarshal(data, &res))

	assert.Equal(t, "TC-1", res.Name)
	assert.Equal(t, "broken", res.Status)
	assert.Equal(t, "finished", res.Stage)
	assert.Contains(t, res.Labels, allureLabel{Name: "backend", Value: "api"})
	require.Len(t, res.Attachments, 2)
	assert.True(t, strings.HasSuffix(res.Attachments[0].Source, ".txt"))
	assert.True(t, strings.HasSuffix(res.Attachments[1].Source, ".png"))

	png, err := os.ReadFile(filepath.Join(r.Dir(), res.Attachments[1].Source))
	require.NoError(t, err)
	assert.Equal(t, []byte{1, 2, 3}, png)
}

func TestAllureStatus(t *testing.T) {
	for in, want := range map[string]string{"passed": "passed", "failed": "failed", "skipped": "skipped", "partial": "broken", "running": "unknown"} {
		got, _ := allureStatus(in)
		assert.Equal(t, want, got, in)
	}
}

func TestConsoleReporter(t *testing.T) {
	var buf bytes.Buffer
	r := NewConsoleReporter(&buf, true)

	scope := r.StartTest("TC-7", "ui")
	scope.AttachBytes("screenshot", MIMEPNG, []byte("abc"))
	scope.Close("failed")
	scope.Close("failed")

	out := buf.String()
	assert.Contains(t, out, "TC-7")
	assert.Contains(t, out, "screenshot")
	assert.Equal(t, 1, strings.Count(out, "failed"))
}

func TestMultiAndMemory(t *testing.T) {
	a, b := NewMemory(), NewMemory()
	r := Multi(a, nil, b)

	scope := r.StartTest("TC-1", "sql")
	scope.AttachText("note", "hello")
	scope.Close("passed")

	for _, m := range []*Memory{a, b} {
		tests := m.Tests()
		require.Len(t, tests, 1)
		assert.True(t, tests[0].Closed)
		assert.Equal(t, "passed", tests[0].Status)
		require.Len(t, tests[0].Attachments, 1)
		assert.Equal(t, "hello", string(tests[0].Attachments[0].Data))
	}

	assert.Same(t, a, Multi(a))
}

func TestEvidenceContext(t *testing.T) {
	EvidenceFrom(context.Background()).AttachText("dropped", "x")

	m := NewMemory()
	scope := m.StartTest("TC", "api")
	ctx := WithEvidence(context.Background(), scope)
	EvidenceFrom(ctx).AttachText("kept", "y")
	assert.Len(t, m.Tests()[0].Attachments, 1)
}
