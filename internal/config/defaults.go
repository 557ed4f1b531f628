package config

import (
	"fmt"
)

// GetDefaultConfig returns the built-in configuration every other layer is
// merged onto.
func GetDefaultConfig() Config {
	return Config{
		MCP: MCPConfig{
			MaxRetries:           3,
			RetryIntervalSeconds: 2,
			MaxHealsPerStep:      10,
			AIPoweredRecovery:    true,
		},
		API: APIConfig{
			TimeoutSeconds: 30,
		},
		Router: RouterConfig{
			UIKeywords:     []string{"click", "navigate", "browser", "button", "page"},
			APIKeywords:    []string{"get ", "post ", "put ", "delete ", "endpoint", "status code"},
			MobileKeywords: []string{"tap", "swipe", "app", "device"},
			SQLKeywords:    []string{"select ", "insert ", "database", "table", "sql"},
			Workers:        4,
		},
		Versioning: VersioningConfig{
			Method:              "sequence",
			SimilarityThreshold: 0.8,
			DedupThreshold:      0.9,
		},
		Database: DatabaseConfig{Path: "./testctl.db"},
		WaitRepo: WaitRepoConfig{Path: "./wait_repo.yaml"},
		Wait:     WaitConfig{TimeoutMS: 30000},
		UI: UIConfig{
			Browser:             "chromium",
			Headless:            true,
			ScreenshotOnFailure: true,
			SelfHeal:            true,
			Provider:            ProviderStub,
		},
		Mobile: MobileConfig{
			Provider:     ProviderStub,
			PlatformName: "Android",
		},
		LLM: LLMConfig{
			CacheSize: 256,
		},
		SQL: SQLConfig{
			Driver: "sqlite3",
			DSN:    ":memory:",
		},
		Alerts: AlertsConfig{
			Email:           EmailConfig{SMTPPort: 587},
			ThrottleSeconds: 300,
		},
		Reporting: ReportingConfig{ResultsDir: "./test-results"},
	}
}

// Validate checks values that would make the engine or router misbehave.
func (c Config) Validate() error {
	if c.MCP.MaxRetries < 1 {
		return fmt.Errorf("mcp.max_retries must be at least 1, got %d", c.MCP.MaxRetries)
	}
	if c.MCP.RetryIntervalSeconds < 0 {
		return fmt.Errorf("mcp.retry_interval_seconds must not be negative, got %d", c.MCP.RetryIntervalSeconds)
	}
	if c.MCP.MaxHealsPerStep < 0 {
		return fmt.Errorf("mcp.max_heals_per_step must not be negative, got %d", c.MCP.MaxHealsPerStep)
	}
	if c.Router.Workers < 1 {
		return fmt.Errorf("router.workers must be at least 1, got %d", c.Router.Workers)
	}
	switch c.Versioning.Method {
	case "sequence", "tfidf", "embedding":
	default:
		return fmt.Errorf("unknown versioning.method %q", c.Versioning.Method)
	}
	for name, v := range map[string]float64{
		"versioning.similarity_threshold": c.Versioning.SimilarityThreshold,
		"versioning.dedup_threshold":      c.Versioning.DedupThreshold,
	} {
		if v < 0 || v > 1 {
			return fmt.Errorf("%s must be within [0,1], got %v", name, v)
		}
	}
	for name, p := range map[string]string{"ui.provider": c.UI.Provider, "mobile.provider": c.Mobile.Provider} {
		if p != ProviderStub && p != ProviderMCP {
			return fmt.Errorf("unknown %s %q", name, p)
		}
	}
	switch c.SQL.Driver {
	case "sqlite3", "postgres":
	default:
		return fmt.Errorf("unknown sql.driver %q", c.SQL.Driver)
	}
	return nil
}
