package capability

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type mockToolCaller struct {
	mock.Mock
}

func (m *mockToolCaller) CallTool(ctx context.Context, name string, args map[string]interface{}) (*ToolResult, error) {
	ret := m.Called(name, args)
	res, _ := ret.Get(0).(*ToolResult)
	return res, ret.Error(1)
}

func (m *mockToolCaller) Close() error {
	return m.Called().Error(0)
}

func TestMCPBrowser_ToolMapping(t *testing.T) {
	ctx := context.Background()
	caller := &mockToolCaller{}
	b := NewMCPBrowser(caller)

	caller.On("CallTool", "browser_navigate", map[string]interface{}{"url": "https://example.com"}).Return(&ToolResult{}, nil)
	caller.On("CallTool", "browser_fill", map[string]interface{}{"selector": "#q", "value": "go"}).Return(&ToolResult{}, nil)
	caller.On("CallTool", "browser_text_content", map[string]interface{}{"selector": "h1"}).Return(&ToolResult{Text: "Welcome"}, nil)
	caller.On("CallTool", "browser_is_visible", map[string]interface{}{"selector": "h1"}).Return(&ToolResult{Text: "true"}, nil)
	caller.On("CallTool", "browser_wait_for", map[string]interface{}{"selector": ".spinner", "state": StateHidden, "timeout": int64(1500)}).Return(&ToolResult{}, nil)
	caller.On("CallTool", "browser_take_screenshot", map[string]interface{}{}).Return(&ToolResult{Image: []byte("png")}, nil)

	require.NoError(t, b.Goto(ctx, "https://example.com"))
	require.NoError(t, b.Fill(ctx, "#q", "go"))

	text, err := b.TextContent(ctx, "h1")
	require.NoError(t, err)
	assert.Equal(t, "Welcome", text)

	visible, err := b.IsVisible(ctx, "h1")
	require.NoError(t, err)
	assert.True(t, visible)

	require.NoError(t, b.WaitForSelector(ctx, ".spinner", StateHidden, 1500*time.Millisecond))

	shot, err := b.Screenshot(ctx)
	require.NoError(t, err)
	assert.Equal(t, []byte("png"), shot)

	caller.AssertExpectations(t)
}

func TestMCPBrowser_CloseClosesCaller(t *testing.T) {
	caller := &mockToolCaller{}
	caller.On("CallTool", "browser_close", map[string]interface{}{}).Return(nil, errors.New("already closed"))
	caller.On("Close").Return(nil)

	err := NewMCPBrowser(caller).Close()
	assert.Error(t, err)
	caller.AssertCalled(t, "Close")
}

func TestMCPMobile_Session(t *testing.T) {
	ctx := context.Background()
	caller := &mockToolCaller{}
	caller.On("CallTool", "mobile_start_session", map[string]interface{}{"platform_name": "Android", "app": "/tmp/app.apk"}).Return(&ToolResult{}, nil)
	caller.On("CallTool", "mobile_find_element", map[string]interface{}{"by": "accessibility id", "value": "Login"}).Return(&ToolResult{}, nil)
	caller.On("CallTool", "mobile_send_keys", map[string]interface{}{"by": "accessibility id", "value": "Login", "text": "bob"}).Return(&ToolResult{}, nil)
	caller.On("CallTool", "mobile_get_text", map[string]interface{}{"by": "accessibility id", "value": "Login"}).Return(&ToolResult{Text: "Hello bob"}, nil)
	caller.On("CallTool", "mobile_swipe", map[string]interface{}{"start_x": 1, "start_y": 2, "end_x": 3, "end_y": 4, "duration": int64(800)}).Return(&ToolResult{}, nil)

	m, err := NewMCPMobile(ctx, caller, MobileSession{PlatformName: "Android", App: "/tmp/app.apk"})
	require.NoError(t, err)

	el, err := m.FindElement(ctx, "accessibility id", "Login")
	require.NoError(t, err)
	require.NoError(t, el.SendKeys(ctx, "bob"))
	text, err := el.Text(ctx)
	require.NoError(t, err)
	assert.Equal(t, "Hello bob", text)

	require.NoError(t, m.Swipe(ctx, 1, 2, 3, 4, 800*time.Millisecond))
	caller.AssertExpectations(t)
}

func TestStubs(t *testing.T) {
	ctx := context.Background()

	var b Browser = StubBrowser{}
	visible, err := b.IsVisible(ctx, "#anything")
	require.NoError(t, err)
	assert.True(t, visible)
	text, err := b.TextContent(ctx, "#anything")
	require.NoError(t, err)
	assert.Empty(t, text)

	var m MobileDriver = StubMobile{}
	el, err := m.FindElement(ctx, "id", "x")
	require.NoError(t, err)
	text, err = el.Text(ctx)
	require.NoError(t, err)
	assert.Empty(t, text)
}
