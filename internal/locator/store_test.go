package locator

import (
	"context"
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"testctl/internal/storage/storagetest"
)

func TestStore_GetActiveMissing(t *testing.T) {
	store := NewStore(storagetest.Open(t))

	loc, err := store.GetActive(context.Background(), ContextUI, "click:#nope")
	require.NoError(t, err)
	assert.Nil(t, loc)
}

func TestStore_SetActiveVersioning(t *testing.T) {
	ctx := context.Background()
	store := NewStore(storagetest.Open(t))

	v1, err := store.SetActive(ctx, ContextUI, "click:login", Locator{Type: "css", Value: "#login"})
	require.NoError(t, err)
	assert.Equal(t, 1, v1)

	v2, err := store.SetActive(ctx, ContextUI, "click:login", Locator{Type: "css", Value: "[data-testid='login']"})
	require.NoError(t, err)
	assert.Equal(t, 2, v2)

	active, err := store.GetActive(ctx, ContextUI, "click:login")
	require.NoError(t, err)
	require.NotNil(t, active)
	assert.Equal(t, "[data-testid='login']", active.Value)

	history, err := store.History(ctx, ContextUI, "click:login")
	require.NoError(t, err)
	require.Len(t, history, 2)
	assert.Equal(t, 2, history[0].Version)
	assert.True(t, history[0].Active)
	assert.Equal(t, 1, history[1].Version)
	assert.False(t, history[1].Active, "previous version is deactivated, not deleted")
}

func TestStore_KeysAreIndependent(t *testing.T) {
	ctx := context.Background()
	store := NewStore(storagetest.Open(t))

	_, err := store.SetActive(ctx, ContextUI, "click:a", Locator{Type: "css", Value: "#a"})
	require.NoError(t, err)
	v, err := store.SetActive(ctx, ContextMobile, "click:a", Locator{Type: "id", Value: "a"})
	require.NoError(t, err)
	assert.Equal(t, 1, v, "versions are per (context, step_key)")

	ui, err := store.List(ctx, ContextUI)
	require.NoError(t, err)
	assert.Len(t, ui, 1)
}

func TestStore_RejectsBadInput(t *testing.T) {
	ctx := context.Background()
	store := NewStore(storagetest.Open(t))

	_, err := store.SetActive(ctx, "desktop", "k", Locator{Type: "css", Value: "#a"})
	assert.ErrorIs(t, err, ErrInvalidContext)

	_, err = store.SetActive(ctx, ContextUI, "k", Locator{Type: "css"})
	assert.Error(t, err)

	_, err = store.GetActive(ctx, "desktop", "k")
	assert.ErrorIs(t, err, ErrInvalidContext)
}

func TestStore_ConcurrentSetActive(t *testing.T) {
	ctx := context.Background()
	store := NewStore(storagetest.Open(t))

	const writers = 20
	var wg sync.WaitGroup
	errs := make(chan error, writers)
	for i := 0; i < writers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, err := store.SetActive(ctx, ContextUI, "fill:email", Locator{Type: "css", Value: fmt.Sprintf("#email-%d", i)})
			errs <- err
		}(i)
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		require.NoError(t, err)
	}

	history, err := store.History(ctx, ContextUI, "fill:email")
	require.NoError(t, err)
	require.Len(t, history, writers)

	active := 0
	for i, r := range history {
		assert.Equal(t, writers-i, r.Version, "versions increase by one per insertion")
		if r.Active {
			active++
		}
	}
	assert.Equal(t, 1, active)
}
