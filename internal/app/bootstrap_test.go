package app

import (
	"bytes"
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"testctl/internal/config"
	"testctl/internal/recorder"
	"testctl/internal/step"
	"testctl/internal/testcase"
)

func testConfig(t *testing.T) config.Config {
	dir := t.TempDir()
	cfg := config.GetDefaultConfig()
	cfg.Database.Path = filepath.Join(dir, "testctl.db")
	cfg.WaitRepo.Path = filepath.Join(dir, "wait_repo.yaml")
	cfg.Reporting.ResultsDir = filepath.Join(dir, "results")
	cfg.MCP.RetryIntervalSeconds = 0
	cfg.MCP.MaxRetries = 1
	cfg.Alerts.ThrottleSeconds = 0
	return cfg
}

func TestNewRunsCases(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"ok":true}`))
	}))
	defer srv.Close()

	cfg := testConfig(t)
	cfg.API.BaseURL = srv.URL
	var console bytes.Buffer

	a, err := New(context.Background(), cfg, Options{Report: true, Console: &console})
	require.NoError(t, err)
	defer a.Close()

	batch := a.Router.RunAll(context.Background(), []testcase.TestCase{
		{Identifier: "API-1", Steps: []step.Step{{"command": "GET /health"}}},
	}, 1)
	require.Len(t, batch.Summaries, 1)
	assert.Equal(t, recorder.StatusPassed, batch.Summaries[0].Status)
	assert.Equal(t, step.KindAPI, batch.Summaries[0].Backend)
	assert.Contains(t, console.String(), "API-1")

	runs, err := a.Recorder.ListRuns(context.Background(), batch.Summaries[0].CaseID)
	require.NoError(t, err)
	assert.Len(t, runs, 1)

	entries, err := os.ReadDir(cfg.Reporting.ResultsDir)
	require.NoError(t, err)
	assert.NotEmpty(t, entries)

	assert.NotNil(t, a.MCPServer("test"))
}

func TestNewStubOverridesProviders(t *testing.T) {
	cfg := testConfig(t)
	cfg.UI.Provider = config.ProviderMCP

	_, err := New(context.Background(), cfg, Options{})
	assert.Error(t, err, "an mcp provider without an endpoint is rejected")

	a, err := New(context.Background(), cfg, Options{Stub: true})
	require.NoError(t, err)
	assert.Equal(t, config.ProviderStub, a.Config.UI.Provider)
	assert.NoError(t, a.Close())
}

func TestNewRejectsInvalidConfig(t *testing.T) {
	cfg := testConfig(t)
	cfg.Router.Workers = 0
	_, err := New(context.Background(), cfg, Options{})
	assert.ErrorContains(t, err, "router.workers")
}

func TestCloseIsIdempotent(t *testing.T) {
	a, err := New(context.Background(), testConfig(t), Options{})
	require.NoError(t, err)
	assert.NoError(t, a.Close())
	assert.NoError(t, a.Close())
}
