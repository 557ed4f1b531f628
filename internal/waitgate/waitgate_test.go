package waitgate

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"testctl/internal/capability"
)

func TestRepository_MissingFile(t *testing.T) {
	repo, err := NewRepository(filepath.Join(t.TempDir(), "wait_repo.yaml"))
	require.NoError(t, err)

	ind, err := repo.Indicators("ui")
	require.NoError(t, err)
	assert.Empty(t, ind.All())
}

func TestRepository_AddIndicator(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "wait_repo.yaml")
	repo, err := NewRepository(path)
	require.NoError(t, err)

	added, err := repo.AddIndicator("ui", ".spinner")
	require.NoError(t, err)
	assert.True(t, added)

	added, err = repo.AddIndicator("ui", ".spinner")
	require.NoError(t, err)
	assert.False(t, added)

	_, err = repo.AddIndicator("desktop", ".x")
	assert.Error(t, err)

	reloaded, err := NewRepository(path)
	require.NoError(t, err)
	ind, err := reloaded.Indicators("ui")
	require.NoError(t, err)
	assert.Equal(t, []string{".spinner"}, ind.Spinners)
}

func TestRepository_LoadExisting(t *testing.T) {
	path := filepath.Join(t.TempDir(), "wait_repo.yaml")
	content := `
ui:
  spinners: [".loading"]
  overlays: ["#modal-backdrop"]
mobile:
  spinners: ["//ProgressBar", "accessibility_id=busy"]
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))

	repo, err := NewRepository(path)
	require.NoError(t, err)
	ind, err := repo.Indicators("ui")
	require.NoError(t, err)
	assert.Equal(t, []string{".loading", "#modal-backdrop"}, ind.All())

	added, err := repo.AddIndicator("ui", "#modal-backdrop")
	require.NoError(t, err)
	assert.False(t, added, "overlays count as known")

	require.NoError(t, os.WriteFile(path, []byte("ui: ["), 0644))
	assert.Error(t, repo.Load())
}

func TestMobileStrategy(t *testing.T) {
	tests := map[string][2]string{
		"//android.widget.ProgressBar": {"xpath", "//android.widget.ProgressBar"},
		"id=spinner":                   {"id", "spinner"},
		"accessibility_id=Loading":     {"accessibility id", "Loading"},
		"progress":                     {"id", "progress"},
	}
	for in, want := range tests {
		by, value := MobileStrategy(in)
		assert.Equal(t, want[0], by, in)
		assert.Equal(t, want[1], value, in)
	}
}

type recordingBrowser struct {
	capability.StubBrowser
	waits    []string
	timeouts []time.Duration
	loadErr  error
}

func (b *recordingBrowser) WaitForLoadState(ctx context.Context, state string) error {
	b.waits = append(b.waits, "load:"+state)
	return b.loadErr
}

func (b *recordingBrowser) WaitForSelector(ctx context.Context, selector, state string, timeout time.Duration) error {
	b.waits = append(b.waits, state+":"+selector)
	b.timeouts = append(b.timeouts, timeout)
	return errors.New("timeout")
}

type recordingMobile struct {
	capability.StubMobile
	waits []string
}

func (m *recordingMobile) WaitForElement(ctx context.Context, by, value, state string, timeout time.Duration) error {
	m.waits = append(m.waits, by+"="+value)
	return nil
}

func TestGate(t *testing.T) {
	repo, err := NewRepository(filepath.Join(t.TempDir(), "wait_repo.yaml"))
	require.NoError(t, err)
	_, err = repo.AddIndicator("ui", ".spinner")
	require.NoError(t, err)
	_, err = repo.AddIndicator("mobile", "//Busy")
	require.NoError(t, err)

	gate := NewGate(repo, 30*time.Second)

	b := &recordingBrowser{loadErr: errors.New("no network events")}
	gate.WaitUI(context.Background(), b)
	assert.Equal(t, []string{"load:networkidle", "hidden:.spinner"}, b.waits)
	assert.Equal(t, []time.Duration{30 * time.Second}, b.timeouts)

	m := &recordingMobile{}
	gate.WaitMobile(context.Background(), m)
	assert.Equal(t, []string{"xpath=//Busy"}, m.waits)

	var nilGate *Gate
	nilGate.WaitUI(context.Background(), &recordingBrowser{})
}
