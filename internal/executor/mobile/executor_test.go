package mobile

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"testctl/internal/capability"
	"testctl/internal/locator"
	"testctl/internal/reporting"
	"testctl/internal/step"
	"testctl/internal/storage/storagetest"
)

var errMissing = errors.New("no such element")

type fakeElement struct {
	d     *fakeDriver
	value string
}

func (el fakeElement) Click(ctx context.Context) error {
	el.d.clicked = append(el.d.clicked, el.value)
	return nil
}

func (el fakeElement) SendKeys(ctx context.Context, text string) error {
	el.d.typed = append(el.d.typed, text)
	return nil
}

func (el fakeElement) Text(ctx context.Context) (string, error) { return el.d.text, nil }

// fakeDriver finds only the values in present.
type fakeDriver struct {
	present map[string]bool
	text    string
	clicked []string
	typed   []string
	taps    [][2]int
	swipes  int
	tapErr  error
}

func (d *fakeDriver) FindElement(ctx context.Context, by, value string) (capability.Element, error) {
	if !d.present[by+"="+value] {
		return nil, errMissing
	}
	return fakeElement{d: d, value: value}, nil
}

func (d *fakeDriver) Tap(ctx context.Context, x, y int) error {
	d.taps = append(d.taps, [2]int{x, y})
	return d.tapErr
}

func (d *fakeDriver) Swipe(ctx context.Context, sx, sy, ex, ey int, duration time.Duration) error {
	d.swipes++
	return nil
}

func (d *fakeDriver) Screenshot(ctx context.Context) ([]byte, error) { return []byte("png"), nil }

func (d *fakeDriver) WaitForElement(ctx context.Context, by, value, state string, timeout time.Duration) error {
	if !d.present[by+"="+value] {
		return errMissing
	}
	return nil
}

func (d *fakeDriver) Close() error { return nil }

func TestStrategy(t *testing.T) {
	assert.Equal(t, "accessibility id", Strategy("accessibility_id"))
	assert.Equal(t, "-ios class chain", Strategy("class_chain"))
	assert.Equal(t, "-android uiautomator", Strategy("android_uiautomator"))
	assert.Equal(t, "xpath", Strategy("XPATH"))
	assert.Equal(t, "name", Strategy("name"))
}

func TestTapPersistsWinner(t *testing.T) {
	ctx := context.Background()
	store := locator.NewStore(storagetest.Open(t))
	d := &fakeDriver{present: map[string]bool{"accessibility id=Login": true}}
	e := New(d, store, nil, time.Second)

	s := step.Step{"action": "tap", "locator": map[string]interface{}{"type": "accessibility_id", "value": "Login"}}
	require.NoError(t, e.ExecuteStep(ctx, s))
	assert.Equal(t, []string{"Login"}, d.clicked)

	stored, err := store.GetActive(ctx, locator.ContextMobile, step.Key(s))
	require.NoError(t, err)
	require.NotNil(t, stored)
	assert.Equal(t, locator.Locator{Type: "accessibility_id", Value: "Login"}, *stored)

	// The same winner again is not a new version.
	require.NoError(t, e.ExecuteStep(ctx, s))
	history, err := store.History(ctx, locator.ContextMobile, step.Key(s))
	require.NoError(t, err)
	assert.Len(t, history, 1)
}

func TestStaleStoredLocatorFallsBack(t *testing.T) {
	ctx := context.Background()
	store := locator.NewStore(storagetest.Open(t))
	s := step.Step{"action": "send_keys", "locator": map[string]interface{}{"id": "email"}, "text": "ada@example.com"}
	_, err := store.SetActive(ctx, locator.ContextMobile, step.Key(s), locator.Locator{Type: "id", Value: "old_email"})
	require.NoError(t, err)

	d := &fakeDriver{present: map[string]bool{"id=email": true}}
	e := New(d, store, nil, time.Second)
	require.NoError(t, e.ExecuteStep(ctx, s))
	assert.Equal(t, []string{"ada@example.com"}, d.typed)

	stored, err := store.GetActive(ctx, locator.ContextMobile, step.Key(s))
	require.NoError(t, err)
	assert.Equal(t, "email", stored.Value)
}

func TestCoordinateFallbackIsNotPersisted(t *testing.T) {
	ctx := context.Background()
	store := locator.NewStore(storagetest.Open(t))
	d := &fakeDriver{present: map[string]bool{}}
	e := New(d, store, nil, time.Second)

	s := step.Step{"action": "tap", "locator": "id=gone", "x": 10, "y": 20}
	require.NoError(t, e.ExecuteStep(ctx, s))
	assert.Equal(t, [][2]int{{10, 20}}, d.taps)

	stored, err := store.GetActive(ctx, locator.ContextMobile, step.Key(s))
	require.NoError(t, err)
	assert.Nil(t, stored)
}

func TestAssertText(t *testing.T) {
	d := &fakeDriver{present: map[string]bool{"id=title": true}, text: "Hello, Ada"}
	e := New(d, nil, nil, time.Second)

	require.NoError(t, e.ExecuteStep(context.Background(), step.Step{"action": "assert_text", "locator": "id=title", "text": "Ada"}))

	err := e.ExecuteStep(context.Background(), step.Step{"action": "assert_text", "locator": "id=title", "text": "Bob"})
	var assertion *step.AssertionError
	assert.ErrorAs(t, err, &assertion)
}

func TestSwipeAndTapCoordinates(t *testing.T) {
	d := &fakeDriver{}
	e := New(d, nil, nil, time.Second)

	require.NoError(t, e.ExecuteStep(context.Background(), step.Step{
		"action": "swipe", "start": []interface{}{100, 800}, "end": []interface{}{100, 200},
	}))
	assert.Equal(t, 1, d.swipes)

	require.NoError(t, e.ExecuteStep(context.Background(), step.Step{"action": "tap_coordinates", "x": 5, "y": 6}))
	assert.Equal(t, [][2]int{{5, 6}}, d.taps)
}

func TestMissingElement(t *testing.T) {
	e := New(&fakeDriver{}, nil, nil, time.Second)
	err := e.ExecuteStep(context.Background(), step.Step{"action": "tap", "locator": "id=nope"})
	var transport *step.TransportError
	assert.ErrorAs(t, err, &transport)

	err = e.ExecuteStep(context.Background(), step.Step{"action": "tap"})
	assert.True(t, step.IsValidation(err))
}

func TestAttemptRecovery(t *testing.T) {
	ctx := context.Background()

	d := &fakeDriver{}
	e := New(d, nil, nil, time.Second)
	assert.True(t, e.AttemptRecovery(ctx, step.Step{"action": "tap", "x": 1, "y": 2}, errMissing))

	d.tapErr = errors.New("tap failed")
	assert.False(t, e.AttemptRecovery(ctx, step.Step{"action": "tap", "x": 1, "y": 2}, errMissing))

	m := reporting.NewMemory()
	ctx = reporting.WithEvidence(ctx, m.StartTest("TC", "mobile"))
	assert.False(t, e.AttemptRecovery(ctx, step.Step{"action": "tap", "locator": "id=x"}, errMissing))
	require.Len(t, m.Tests()[0].Attachments, 1)
	assert.Equal(t, reporting.MIMEPNG, m.Tests()[0].Attachments[0].MIMEType)
}

func TestAttemptRecoveryOnlyTapsForTapAndSendKeys(t *testing.T) {
	ctx := context.Background()

	tests := []struct {
		name   string
		action string
		want   bool
	}{
		{"tap", "tap", true},
		{"send_keys", "send_keys", true},
		{"fill is send_keys", "fill", true},
		{"assert_text", "assert_text", false},
		{"swipe", "swipe", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d := &fakeDriver{}
			e := New(d, nil, nil, time.Second)
			s := step.Step{"action": tt.action, "locator": "id=x", "text": "hi", "x": 5, "y": 6}

			assert.Equal(t, tt.want, e.AttemptRecovery(ctx, s, errMissing))
			if tt.want {
				assert.Equal(t, [][2]int{{5, 6}}, d.taps)
			} else {
				assert.Empty(t, d.taps)
			}
		})
	}
}
