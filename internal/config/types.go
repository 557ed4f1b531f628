package config

import (
	"time"
)

// Config is the top-level configuration structure for testctl.
type Config struct {
	MCP        MCPConfig        `yaml:"mcp"`
	API        APIConfig        `yaml:"api"`
	Router     RouterConfig     `yaml:"router"`
	Versioning VersioningConfig `yaml:"versioning"`
	Database   DatabaseConfig   `yaml:"database"`
	WaitRepo   WaitRepoConfig   `yaml:"wait_repo"`
	Wait       WaitConfig       `yaml:"wait"`
	UI         UIConfig         `yaml:"ui"`
	Mobile     MobileConfig     `yaml:"mobile"`
	LLM        LLMConfig        `yaml:"llm"`
	SQL        SQLConfig        `yaml:"sql"`
	Alerts     AlertsConfig     `yaml:"alerts"`
	Reporting  ReportingConfig  `yaml:"reporting"`
}

// MCPConfig controls the step execution engine shared by all backends.
type MCPConfig struct {
	MaxRetries           int  `yaml:"max_retries"`
	RetryIntervalSeconds int  `yaml:"retry_interval_seconds"`
	MaxHealsPerStep      int  `yaml:"max_heals_per_step"`
	AIPoweredRecovery    bool `yaml:"ai_powered_recovery"`
}

// RetryInterval returns the fixed delay between attempts.
func (m MCPConfig) RetryInterval() time.Duration {
	return time.Duration(m.RetryIntervalSeconds) * time.Second
}

type APIConfig struct {
	BaseURL        string `yaml:"base_url"`
	TimeoutSeconds int    `yaml:"timeout_seconds"`
}

// RouterConfig holds the keyword buckets used when the translator cannot
// classify a case, and the size of the batch worker pool.
type RouterConfig struct {
	UIKeywords     []string `yaml:"ui_keywords"`
	APIKeywords    []string `yaml:"api_keywords"`
	MobileKeywords []string `yaml:"mobile_keywords"`
	SQLKeywords    []string `yaml:"sql_keywords"`
	Workers        int      `yaml:"workers"`
}

type VersioningConfig struct {
	Method              string  `yaml:"method"` // sequence, tfidf or embedding
	SimilarityThreshold float64 `yaml:"similarity_threshold"`
	DedupThreshold      float64 `yaml:"dedup_threshold"`
}

type DatabaseConfig struct {
	Path string `yaml:"path"`
}

type WaitRepoConfig struct {
	Path string `yaml:"path"`
}

type WaitConfig struct {
	TimeoutMS int `yaml:"timeout_ms"`
}

// Timeout returns the busy-indicator timeout as a duration.
func (w WaitConfig) Timeout() time.Duration {
	return time.Duration(w.TimeoutMS) * time.Millisecond
}

// Provider kinds for UI and mobile capability surfaces.
const (
	ProviderStub = "stub"
	ProviderMCP  = "mcp"
)

// MCPEndpoint describes how to reach an external MCP server. Command takes
// precedence over URL; an empty endpoint means "not configured".
type MCPEndpoint struct {
	Command string   `yaml:"mcp_command,omitempty"`
	Args    []string `yaml:"mcp_args,omitempty"`
	URL     string   `yaml:"mcp_url,omitempty"`
}

// IsZero reports whether neither a command nor a URL is set.
func (e MCPEndpoint) IsZero() bool {
	return e.Command == "" && e.URL == ""
}

type UIConfig struct {
	Browser             string `yaml:"browser"`
	Headless            bool   `yaml:"headless"`
	ScreenshotOnFailure bool   `yaml:"screenshot_on_failure"`
	SelfHeal            bool   `yaml:"self_heal"`
	Provider            string `yaml:"provider"`
	MCPEndpoint         `yaml:",inline"`
}

type MobileConfig struct {
	Provider     string `yaml:"provider"`
	PlatformName string `yaml:"platform_name"`
	DeviceName   string `yaml:"device_name"`
	App          string `yaml:"app"`
	MCPEndpoint  `yaml:",inline"`
}

type LLMConfig struct {
	Enabled     bool `yaml:"enabled"`
	CacheSize   int  `yaml:"cache_size"`
	MCPEndpoint `yaml:",inline"`
}

// SQLConfig points the SQL backend at the database under test. This is not
// the orchestrator's own database.
type SQLConfig struct {
	Driver string `yaml:"driver"` // sqlite3 or postgres
	DSN    string `yaml:"dsn"`
}

type AlertsConfig struct {
	SlackWebhookURL string      `yaml:"slack_webhook_url"`
	Email           EmailConfig `yaml:"email"`
	ThrottleSeconds int         `yaml:"throttle_seconds"`
}

type EmailConfig struct {
	SMTPServer string `yaml:"smtp_server"`
	SMTPPort   int    `yaml:"smtp_port"`
	Sender     string `yaml:"sender"`
	Recipient  string `yaml:"recipient"`
	Username   string `yaml:"username"`
	Password   string `yaml:"password"`
}

// Configured reports whether enough is set to attempt delivery.
func (e EmailConfig) Configured() bool {
	return e.SMTPServer != "" && e.Sender != "" && e.Recipient != ""
}

type ReportingConfig struct {
	ResultsDir string `yaml:"results_dir"`
}
