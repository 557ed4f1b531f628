package translator

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"testctl/internal/capability"
	"testctl/internal/config"
	"testctl/pkg/logging"
)

// ErrUnavailable means the LLM could not produce a usable answer. It never
// leaves this package.
var ErrUnavailable = errors.New("llm unavailable")

// LLM is the contract of the language model service.
type LLM interface {
	Classify(ctx context.Context, text string) (string, error)
	TranslateAPI(ctx context.Context, command, baseURL string) (APIRequest, error)
	TranslateSQL(ctx context.Context, command string) (SQLStatement, error)
	SuggestLocator(ctx context.Context, description string) (string, error)
	Embed(ctx context.Context, text string) ([]float64, error)
}

const llmCallTimeout = 60 * time.Second

// MCPClient is an LLM spoken to as tools of an MCP server.
type MCPClient struct {
	caller capability.ToolCaller
}

// NewMCPClient wraps a connected tool caller.
func NewMCPClient(caller capability.ToolCaller) *MCPClient {
	return &MCPClient{caller: caller}
}

// ConnectLLM connects to the configured LLM server. It returns nil when the
// LLM is disabled or unreachable; callers then get heuristics only.
func ConnectLLM(ctx context.Context, cfg config.LLMConfig) LLM {
	if !cfg.Enabled {
		return nil
	}
	caller, err := capability.Connect(ctx, cfg.MCPEndpoint, "testctl-llm")
	if err != nil {
		logging.Warn("Translator", "LLM server unavailable, using heuristics: %v", err)
		return nil
	}
	return NewMCPClient(caller)
}

func (c *MCPClient) text(ctx context.Context, tool string, args map[string]interface{}) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, llmCallTimeout)
	defer cancel()

	res, err := c.caller.CallTool(ctx, tool, args)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	text := strings.TrimSpace(res.Text)
	if text == "" {
		return "", fmt.Errorf("%w: %s returned no text", ErrUnavailable, tool)
	}
	return text, nil
}

func (c *MCPClient) decode(ctx context.Context, tool string, args map[string]interface{}, out interface{}) error {
	text, err := c.text(ctx, tool, args)
	if err != nil {
		return err
	}
	if err := json.Unmarshal([]byte(stripCodeFence(text)), out); err != nil {
		return fmt.Errorf("%w: %s returned invalid JSON: %v", ErrUnavailable, tool, err)
	}
	return nil
}

func (c *MCPClient) Classify(ctx context.Context, text string) (string, error) {
	return c.text(ctx, "classify", map[string]interface{}{"text": text})
}

func (c *MCPClient) TranslateAPI(ctx context.Context, command, baseURL string) (APIRequest, error) {
	var req APIRequest
	err := c.decode(ctx, "translate_api", map[string]interface{}{"command": command, "base_url": baseURL}, &req)
	if err != nil {
		return APIRequest{}, err
	}
	if req.URL == "" {
		return APIRequest{}, fmt.Errorf("%w: translate_api returned no url", ErrUnavailable)
	}
	req.Method = normalizeMethod(req.Method)
	req.URL = JoinURL(baseURL, req.URL)
	if req.ExpectedStatus == 0 {
		req.ExpectedStatus = DefaultExpectedStatus
	}
	return req, nil
}

func (c *MCPClient) TranslateSQL(ctx context.Context, command string) (SQLStatement, error) {
	var stmt SQLStatement
	if err := c.decode(ctx, "translate_sql", map[string]interface{}{"command": command}, &stmt); err != nil {
		return SQLStatement{}, err
	}
	if strings.TrimSpace(stmt.SQL) == "" {
		return SQLStatement{}, fmt.Errorf("%w: translate_sql returned no sql", ErrUnavailable)
	}
	if a := stmt.Assertion; a != nil && (a.Query == "" || (a.Expect != CountPositive && a.Expect != CountZero)) {
		return SQLStatement{}, fmt.Errorf("%w: translate_sql returned an invalid assertion", ErrUnavailable)
	}
	return stmt, nil
}

func (c *MCPClient) SuggestLocator(ctx context.Context, description string) (string, error) {
	sel, err := c.text(ctx, "suggest_locator", map[string]interface{}{"description": description})
	if err != nil {
		return "", err
	}
	return strings.Trim(stripCodeFence(sel), "`\"' "), nil
}

func (c *MCPClient) Embed(ctx context.Context, text string) ([]float64, error) {
	var vec []float64
	if err := c.decode(ctx, "embed", map[string]interface{}{"text": text}, &vec); err != nil {
		return nil, err
	}
	if len(vec) == 0 {
		return nil, fmt.Errorf("%w: embed returned an empty vector", ErrUnavailable)
	}
	return vec, nil
}

// Close closes the MCP connection.
func (c *MCPClient) Close() error {
	return c.caller.Close()
}

// stripCodeFence removes a surrounding ``` block that models tend to add.
func stripCodeFence(s string) string {
	s = strings.TrimSpace(s)
	if !strings.HasPrefix(s, "```") {
		return s
	}
	s = strings.TrimPrefix(s, "```")
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		s = s[i+1:]
	}
	return strings.TrimSpace(strings.TrimSuffix(strings.TrimSpace(s), "```"))
}
