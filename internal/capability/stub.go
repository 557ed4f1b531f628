package capability

import (
	"context"
	"time"

	"testctl/pkg/logging"
)

// StubBrowser logs every call and succeeds. Text is empty and every
// element is visible.
type StubBrowser struct{}

func (StubBrowser) Goto(ctx context.Context, url string) error {
	logging.Debug("StubBrowser", "goto %s", url)
	return nil
}

func (StubBrowser) Click(ctx context.Context, selector string) error {
	logging.Debug("StubBrowser", "click %s", selector)
	return nil
}

func (StubBrowser) Fill(ctx context.Context, selector, value string) error {
	logging.Debug("StubBrowser", "fill %s", selector)
	return nil
}

func (StubBrowser) Type(ctx context.Context, selector, value string) error {
	logging.Debug("StubBrowser", "type %s", selector)
	return nil
}

func (StubBrowser) SelectOption(ctx context.Context, selector, value string) error {
	logging.Debug("StubBrowser", "select %s=%s", selector, value)
	return nil
}

func (StubBrowser) Hover(ctx context.Context, selector string) error {
	logging.Debug("StubBrowser", "hover %s", selector)
	return nil
}

func (StubBrowser) Screenshot(ctx context.Context) ([]byte, error) {
	return []byte{}, nil
}

func (StubBrowser) TextContent(ctx context.Context, selector string) (string, error) {
	return "", nil
}

func (StubBrowser) IsVisible(ctx context.Context, selector string) (bool, error) {
	return true, nil
}

func (StubBrowser) WaitForSelector(ctx context.Context, selector, state string, timeout time.Duration) error {
	return nil
}

func (StubBrowser) WaitForLoadState(ctx context.Context, state string) error {
	return nil
}

func (StubBrowser) Close() error { return nil }

// StubMobile logs every call and succeeds. Element text is empty.
type StubMobile struct{}

func (StubMobile) FindElement(ctx context.Context, by, value string) (Element, error) {
	logging.Debug("StubMobile", "find %s=%s", by, value)
	return stubElement{}, nil
}

func (StubMobile) Tap(ctx context.Context, x, y int) error {
	logging.Debug("StubMobile", "tap %d,%d", x, y)
	return nil
}

func (StubMobile) Swipe(ctx context.Context, startX, startY, endX, endY int, duration time.Duration) error {
	logging.Debug("StubMobile", "swipe %d,%d -> %d,%d (%s)", startX, startY, endX, endY, duration)
	return nil
}

func (StubMobile) Screenshot(ctx context.Context) ([]byte, error) {
	return []byte{}, nil
}

func (StubMobile) WaitForElement(ctx context.Context, by, value, state string, timeout time.Duration) error {
	return nil
}

func (StubMobile) Close() error { return nil }

type stubElement struct{}

func (stubElement) Click(ctx context.Context) error                 { return nil }
func (stubElement) SendKeys(ctx context.Context, text string) error { return nil }
func (stubElement) Text(ctx context.Context) (string, error)        { return "", nil }
