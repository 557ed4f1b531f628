package waitgate

import (
	"context"
	"strings"
	"time"

	"testctl/internal/capability"
	"testctl/internal/locator"
	"testctl/pkg/logging"
)

// MobileIndicatorTimeout bounds the wait on each mobile indicator.
const MobileIndicatorTimeout = time.Second

// Gate waits for stability using the indicators of a repository.
type Gate struct {
	repo    *Repository
	timeout time.Duration
}

// NewGate creates a gate. timeout bounds each UI indicator wait.
func NewGate(repo *Repository, timeout time.Duration) *Gate {
	return &Gate{repo: repo, timeout: timeout}
}

// WaitUI waits for network idle and for every UI spinner and overlay to
// be hidden. Failures are logged and ignored.
func (g *Gate) WaitUI(ctx context.Context, b capability.Browser) {
	if err := b.WaitForLoadState(ctx, capability.LoadStateNetworkIdle); err != nil {
		logging.Debug("WaitGate", "load state wait ended: %v", err)
	}
	for _, sel := range g.indicators(locator.ContextUI) {
		if ctx.Err() != nil {
			return
		}
		if err := b.WaitForSelector(ctx, sel, capability.StateHidden, g.timeout); err != nil {
			logging.Debug("WaitGate", "indicator %s still present: %v", sel, err)
		}
	}
}

// WaitMobile waits for every mobile indicator to disappear.
func (g *Gate) WaitMobile(ctx context.Context, d capability.MobileDriver) {
	for _, ind := range g.indicators(locator.ContextMobile) {
		if ctx.Err() != nil {
			return
		}
		by, value := MobileStrategy(ind)
		if err := d.WaitForElement(ctx, by, value, capability.StateHidden, MobileIndicatorTimeout); err != nil {
			logging.Debug("WaitGate", "mobile indicator %s still present: %v", ind, err)
		}
	}
}

func (g *Gate) indicators(context string) []string {
	if g == nil || g.repo == nil {
		return nil
	}
	ind, err := g.repo.Indicators(context)
	if err != nil {
		return nil
	}
	return ind.All()
}

// MobileStrategy maps an indicator written as //xpath, id=x,
// accessibility_id=x or a bare id to a driver strategy and value.
func MobileStrategy(indicator string) (string, string) {
	switch {
	case strings.HasPrefix(indicator, "//"):
		return "xpath", indicator
	case strings.HasPrefix(indicator, "accessibility_id="):
		return "accessibility id", strings.TrimPrefix(indicator, "accessibility_id=")
	case strings.HasPrefix(indicator, "id="):
		return "id", strings.TrimPrefix(indicator, "id=")
	}
	return "id", indicator
}
