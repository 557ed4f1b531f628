package cmd

import (
	"context"
	"errors"
	"testing"

	"github.com/creativeprojects/go-selfupdate"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func stubDetectLatest(t *testing.T, fn func(ctx context.Context, slug string) (*selfupdate.Release, bool, error)) {
	t.Helper()
	orig := detectLatest
	detectLatest = fn
	t.Cleanup(func() { detectLatest = orig })
}

func withVersion(t *testing.T, v string) {
	t.Helper()
	orig := rootCmd.Version
	rootCmd.Version = v
	t.Cleanup(func() { rootCmd.Version = orig })
}

func TestSelfUpdateRefusesDevelopmentBuilds(t *testing.T) {
	stubDetectLatest(t, func(ctx context.Context, slug string) (*selfupdate.Release, bool, error) {
		t.Fatal("development builds must not query GitHub")
		return nil, false, nil
	})

	for _, v := range []string{"", "dev"} {
		withVersion(t, v)
		err := runSelfUpdate(nil, nil)
		require.Error(t, err, v)
		assert.Contains(t, err.Error(), "cannot self-update a development version")
	}
}

func TestSelfUpdateWrapsDetectionError(t *testing.T) {
	withVersion(t, "1.2.0")
	errRateLimited := errors.New("rate limited")
	var gotSlug string
	stubDetectLatest(t, func(ctx context.Context, slug string) (*selfupdate.Release, bool, error) {
		gotSlug = slug
		return nil, false, errRateLimited
	})

	err := runSelfUpdate(newSelfUpdateCmd(), nil)
	require.Error(t, err)
	assert.ErrorIs(t, err, errRateLimited)
	assert.Contains(t, err.Error(), "failed to detect latest release")
	assert.Equal(t, "testctl/testctl", gotSlug)
}

func TestSelfUpdateWithoutRelease(t *testing.T) {
	withVersion(t, "1.2.0")
	stubDetectLatest(t, func(ctx context.Context, slug string) (*selfupdate.Release, bool, error) {
		return nil, false, nil
	})

	err := runSelfUpdate(newSelfUpdateCmd(), nil)
	require.Error(t, err)
	assert.Equal(t, "no release found for testctl/testctl", err.Error())
}
