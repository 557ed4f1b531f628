package capability

import (
	"context"
	"fmt"

	"testctl/internal/config"
	"testctl/pkg/logging"
)

// Provider creates automation sessions. Whether sessions are real or stubs
// is fixed when the provider is built.
type Provider interface {
	NewBrowser(ctx context.Context) (Browser, error)
	NewMobile(ctx context.Context) (MobileDriver, error)
}

// connectFunc is swapped in tests.
type connectFunc func(ctx context.Context, endpoint config.MCPEndpoint, clientName string) (ToolCaller, error)

func defaultConnect(ctx context.Context, endpoint config.MCPEndpoint, clientName string) (ToolCaller, error) {
	return Connect(ctx, endpoint, clientName)
}

type provider struct {
	browserMCP bool
	mobileMCP  bool
	ui         config.UIConfig
	mobile     config.MobileConfig
	connect    connectFunc
}

// NewProvider picks the MCP or stub implementation per backend from cfg.
// An MCP provider without an endpoint is rejected here rather than at the
// first session.
func NewProvider(cfg config.Config) (Provider, error) {
	p := &provider{
		browserMCP: cfg.UI.Provider == config.ProviderMCP,
		mobileMCP:  cfg.Mobile.Provider == config.ProviderMCP,
		ui:         cfg.UI,
		mobile:     cfg.Mobile,
		connect:    defaultConnect,
	}
	if p.browserMCP && cfg.UI.MCPEndpoint.IsZero() {
		return nil, fmt.Errorf("ui.provider is mcp but no ui.mcp_command or ui.mcp_url is set")
	}
	if p.mobileMCP && cfg.Mobile.MCPEndpoint.IsZero() {
		return nil, fmt.Errorf("mobile.provider is mcp but no mobile.mcp_command or mobile.mcp_url is set")
	}
	logging.Debug("Provider", "Browser provider: %s, mobile provider: %s", cfg.UI.Provider, cfg.Mobile.Provider)
	return p, nil
}

// NewStubProvider always returns stub sessions.
func NewStubProvider() Provider {
	return &provider{connect: defaultConnect}
}

func (p *provider) NewBrowser(ctx context.Context) (Browser, error) {
	if !p.browserMCP {
		return StubBrowser{}, nil
	}
	caller, err := p.connect(ctx, p.ui.MCPEndpoint, "testctl-browser")
	if err != nil {
		return nil, fmt.Errorf("failed to connect browser provider: %w", err)
	}
	return NewMCPBrowser(caller), nil
}

func (p *provider) NewMobile(ctx context.Context) (MobileDriver, error) {
	if !p.mobileMCP {
		return StubMobile{}, nil
	}
	caller, err := p.connect(ctx, p.mobile.MCPEndpoint, "testctl-mobile")
	if err != nil {
		return nil, fmt.Errorf("failed to connect mobile provider: %w", err)
	}
	driver, err := NewMCPMobile(ctx, caller, MobileSession{
		PlatformName: p.mobile.PlatformName,
		DeviceName:   p.mobile.DeviceName,
		App:          p.mobile.App,
	})
	if err != nil {
		caller.Close()
		return nil, err
	}
	return driver, nil
}
