package capability

import (
	"context"
	"fmt"
	"time"
)

// MobileSession describes the device session requested on start.
type MobileSession struct {
	PlatformName string
	DeviceName   string
	App          string
}

// MCPMobile drives a device exposed as mobile_* tools.
type MCPMobile struct {
	caller ToolCaller
}

// NewMCPMobile starts a device session over caller. The driver owns the
// caller and closes it.
func NewMCPMobile(ctx context.Context, caller ToolCaller, session MobileSession) (*MCPMobile, error) {
	args := map[string]interface{}{"platform_name": session.PlatformName}
	if session.DeviceName != "" {
		args["device_name"] = session.DeviceName
	}
	if session.App != "" {
		args["app"] = session.App
	}
	if _, err := caller.CallTool(ctx, "mobile_start_session", args); err != nil {
		return nil, fmt.Errorf("failed to start mobile session: %w", err)
	}
	return &MCPMobile{caller: caller}, nil
}

func (m *MCPMobile) FindElement(ctx context.Context, by, value string) (Element, error) {
	if _, err := m.caller.CallTool(ctx, "mobile_find_element", map[string]interface{}{"by": by, "value": value}); err != nil {
		return nil, err
	}
	return &mcpElement{caller: m.caller, by: by, value: value}, nil
}

func (m *MCPMobile) Tap(ctx context.Context, x, y int) error {
	_, err := m.caller.CallTool(ctx, "mobile_tap", map[string]interface{}{"x": x, "y": y})
	return err
}

func (m *MCPMobile) Swipe(ctx context.Context, startX, startY, endX, endY int, duration time.Duration) error {
	_, err := m.caller.CallTool(ctx, "mobile_swipe", map[string]interface{}{
		"start_x":  startX,
		"start_y":  startY,
		"end_x":    endX,
		"end_y":    endY,
		"duration": duration.Milliseconds(),
	})
	return err
}

func (m *MCPMobile) Screenshot(ctx context.Context) ([]byte, error) {
	res, err := m.caller.CallTool(ctx, "mobile_take_screenshot", map[string]interface{}{})
	if err != nil {
		return nil, err
	}
	if res.Image == nil {
		return nil, fmt.Errorf("mobile_take_screenshot returned no image")
	}
	return res.Image, nil
}

func (m *MCPMobile) WaitForElement(ctx context.Context, by, value, state string, timeout time.Duration) error {
	_, err := m.caller.CallTool(ctx, "mobile_wait_for", map[string]interface{}{
		"by":      by,
		"value":   value,
		"state":   state,
		"timeout": timeout.Milliseconds(),
	})
	return err
}

// Close ends the device session and the connection.
func (m *MCPMobile) Close() error {
	_, callErr := m.caller.CallTool(context.Background(), "mobile_close", map[string]interface{}{})
	if err := m.caller.Close(); err != nil {
		return err
	}
	return callErr
}

type mcpElement struct {
	caller ToolCaller
	by     string
	value  string
}

func (e *mcpElement) args() map[string]interface{} {
	return map[string]interface{}{"by": e.by, "value": e.value}
}

func (e *mcpElement) Click(ctx context.Context) error {
	_, err := e.caller.CallTool(ctx, "mobile_click", e.args())
	return err
}

func (e *mcpElement) SendKeys(ctx context.Context, text string) error {
	args := e.args()
	args["text"] = text
	_, err := e.caller.CallTool(ctx, "mobile_send_keys", args)
	return err
}

func (e *mcpElement) Text(ctx context.Context) (string, error) {
	res, err := e.caller.CallTool(ctx, "mobile_get_text", e.args())
	if err != nil {
		return "", err
	}
	return res.Text, nil
}
