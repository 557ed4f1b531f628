package capability

import (
	"context"
	"time"
)

// Element states accepted by the wait calls.
const (
	StateVisible = "visible"
	StateHidden  = "hidden"
)

// LoadStateNetworkIdle is the load state the wait gate blocks on.
const LoadStateNetworkIdle = "networkidle"

// Browser is one web automation session.
type Browser interface {
	Goto(ctx context.Context, url string) error
	Click(ctx context.Context, selector string) error
	Fill(ctx context.Context, selector, value string) error
	Type(ctx context.Context, selector, value string) error
	SelectOption(ctx context.Context, selector, value string) error
	Hover(ctx context.Context, selector string) error
	Screenshot(ctx context.Context) ([]byte, error)
	TextContent(ctx context.Context, selector string) (string, error)
	IsVisible(ctx context.Context, selector string) (bool, error)
	WaitForSelector(ctx context.Context, selector, state string, timeout time.Duration) error
	WaitForLoadState(ctx context.Context, state string) error
	Close() error
}

// Element is a mobile element addressed by a driver locator strategy.
type Element interface {
	Click(ctx context.Context) error
	SendKeys(ctx context.Context, text string) error
	Text(ctx context.Context) (string, error)
}

// MobileDriver is one mobile automation session. The by argument is a
// driver strategy such as "id", "accessibility id" or "xpath".
type MobileDriver interface {
	FindElement(ctx context.Context, by, value string) (Element, error)
	Tap(ctx context.Context, x, y int) error
	Swipe(ctx context.Context, startX, startY, endX, endY int, duration time.Duration) error
	Screenshot(ctx context.Context) ([]byte, error)
	WaitForElement(ctx context.Context, by, value, state string, timeout time.Duration) error
	Close() error
}
