package capability

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"
)

// MCPBrowser drives a browser exposed as browser_* tools.
type MCPBrowser struct {
	caller ToolCaller
}

// NewMCPBrowser creates a browser session over caller. The session owns
// the caller and closes it.
func NewMCPBrowser(caller ToolCaller) *MCPBrowser {
	return &MCPBrowser{caller: caller}
}

func (b *MCPBrowser) call(ctx context.Context, tool string, args map[string]interface{}) (*ToolResult, error) {
	if args == nil {
		args = map[string]interface{}{}
	}
	return b.caller.CallTool(ctx, tool, args)
}

func (b *MCPBrowser) Goto(ctx context.Context, url string) error {
	_, err := b.call(ctx, "browser_navigate", map[string]interface{}{"url": url})
	return err
}

func (b *MCPBrowser) Click(ctx context.Context, selector string) error {
	_, err := b.call(ctx, "browser_click", map[string]interface{}{"selector": selector})
	return err
}

func (b *MCPBrowser) Fill(ctx context.Context, selector, value string) error {
	_, err := b.call(ctx, "browser_fill", map[string]interface{}{"selector": selector, "value": value})
	return err
}

func (b *MCPBrowser) Type(ctx context.Context, selector, value string) error {
	_, err := b.call(ctx, "browser_type", map[string]interface{}{"selector": selector, "value": value})
	return err
}

func (b *MCPBrowser) SelectOption(ctx context.Context, selector, value string) error {
	_, err := b.call(ctx, "browser_select_option", map[string]interface{}{"selector": selector, "value": value})
	return err
}

func (b *MCPBrowser) Hover(ctx context.Context, selector string) error {
	_, err := b.call(ctx, "browser_hover", map[string]interface{}{"selector": selector})
	return err
}

func (b *MCPBrowser) Screenshot(ctx context.Context) ([]byte, error) {
	res, err := b.call(ctx, "browser_take_screenshot", nil)
	if err != nil {
		return nil, err
	}
	if res.Image == nil {
		return nil, fmt.Errorf("browser_take_screenshot returned no image")
	}
	return res.Image, nil
}

func (b *MCPBrowser) TextContent(ctx context.Context, selector string) (string, error) {
	res, err := b.call(ctx, "browser_text_content", map[string]interface{}{"selector": selector})
	if err != nil {
		return "", err
	}
	return res.Text, nil
}

func (b *MCPBrowser) IsVisible(ctx context.Context, selector string) (bool, error) {
	res, err := b.call(ctx, "browser_is_visible", map[string]interface{}{"selector": selector})
	if err != nil {
		return false, err
	}
	return parseBool(res.Text)
}

func (b *MCPBrowser) WaitForSelector(ctx context.Context, selector, state string, timeout time.Duration) error {
	_, err := b.call(ctx, "browser_wait_for", map[string]interface{}{
		"selector": selector,
		"state":    state,
		"timeout":  timeout.Milliseconds(),
	})
	return err
}

func (b *MCPBrowser) WaitForLoadState(ctx context.Context, state string) error {
	_, err := b.call(ctx, "browser_wait_for_load_state", map[string]interface{}{"state": state})
	return err
}

// Close ends the browser session and the connection.
func (b *MCPBrowser) Close() error {
	_, callErr := b.call(context.Background(), "browser_close", nil)
	if err := b.caller.Close(); err != nil {
		return err
	}
	return callErr
}

func parseBool(s string) (bool, error) {
	v, err := strconv.ParseBool(strings.TrimSpace(s))
	if err != nil {
		return false, fmt.Errorf("unexpected boolean result %q", s)
	}
	return v, nil
}
