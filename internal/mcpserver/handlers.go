package mcpserver

import (
	"context"
	"encoding/json"
	"fmt"
	"math"

	"github.com/mark3labs/mcp-go/mcp"

	"testctl/internal/locator"
	"testctl/internal/step"
	"testctl/internal/testcase"
)

// decodeArg decodes a JSON argument into out. The argument may be a JSON
// string or an already structured value.
func decodeArg(req mcp.CallToolRequest, name string, out interface{}) error {
	raw, ok := req.GetArguments()[name]
	if !ok || raw == nil {
		return fmt.Errorf("%s parameter is required", name)
	}
	var data []byte
	if str, isStr := raw.(string); isStr {
		data = []byte(str)
	} else {
		var err error
		if data, err = json.Marshal(raw); err != nil {
			return fmt.Errorf("invalid %s: %w", name, err)
		}
	}
	if err := json.Unmarshal(data, out); err != nil {
		return fmt.Errorf("invalid %s: %w", name, err)
	}
	return nil
}

// intArg reads a whole number argument. Missing arguments return def.
func intArg(req mcp.CallToolRequest, name string, def int64, required bool) (int64, error) {
	raw, ok := req.GetArguments()[name]
	if !ok || raw == nil {
		if required {
			return 0, fmt.Errorf("%s parameter is required", name)
		}
		return def, nil
	}
	switch v := raw.(type) {
	case float64:
		if v != math.Trunc(v) {
			return 0, fmt.Errorf("%s must be a whole number", name)
		}
		return int64(v), nil
	case int:
		return int64(v), nil
	case int64:
		return v, nil
	case json.Number:
		return v.Int64()
	}
	return 0, fmt.Errorf("%s must be a number", name)
}

func jsonResult(v interface{}) (*mcp.CallToolResult, error) {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("Failed to format result: %v", err)), nil
	}
	return mcp.NewToolResultText(string(data)), nil
}

func (s *Server) handleRunCases(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	var cases []testcase.TestCase
	if err := decodeArg(req, "cases", &cases); err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	if err := testcase.ValidateAll(cases); err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	parallel, err := intArg(req, "parallel", 0, false)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return jsonResult(s.runner.RunAll(ctx, cases, int(parallel)))
}

func (s *Server) handleClassifyCase(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	var tc testcase.TestCase
	if err := decodeArg(req, "case", &tc); err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return jsonResult(map[string]string{
		"identifier": tc.Identifier,
		"backend":    string(s.runner.Classify(ctx, tc)),
	})
}

func locatorKey(req mcp.CallToolRequest) (string, string, error) {
	locContext, err := req.RequireString("context")
	if err != nil {
		return "", "", fmt.Errorf("context parameter is required")
	}
	stepKey, err := req.RequireString("step_key")
	if err != nil || stepKey == "" {
		return "", "", fmt.Errorf("step_key parameter is required")
	}
	return locContext, stepKey, nil
}

func (s *Server) handleGetLocator(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	locContext, stepKey, err := locatorKey(req)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	loc, err := s.locators.GetActive(ctx, locContext, stepKey)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	if loc == nil {
		return mcp.NewToolResultText("null"), nil
	}
	return jsonResult(loc)
}

func (s *Server) handleSetLocator(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	locContext, stepKey, err := locatorKey(req)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	locType, err := req.RequireString("type")
	if err != nil {
		return mcp.NewToolResultError("type parameter is required"), nil
	}
	value, err := req.RequireString("value")
	if err != nil {
		return mcp.NewToolResultError("value parameter is required"), nil
	}

	version, err := s.locators.SetActive(ctx, locContext, stepKey, locator.Locator{Type: locType, Value: value})
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return jsonResult(map[string]interface{}{
		"context":  locContext,
		"step_key": stepKey,
		"version":  version,
	})
}

func (s *Server) handleLocatorHistory(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	locContext, stepKey, err := locatorKey(req)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	records, err := s.locators.History(ctx, locContext, stepKey)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	if records == nil {
		records = []locator.Record{}
	}
	return jsonResult(records)
}

func (s *Server) handleAddVersion(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	userStory, err := req.RequireString("user_story")
	if err != nil || userStory == "" {
		return mcp.NewToolResultError("user_story parameter is required"), nil
	}
	author := "mcp"
	if a, ok := req.GetArguments()["author"].(string); ok && a != "" {
		author = a
	}
	var cases []testcase.TestCase
	if err := decodeArg(req, "cases", &cases); err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	if err := testcase.ValidateAll(cases); err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	res, err := s.versions.AddVersion(ctx, userStory, cases, author)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return jsonResult(res)
}

func (s *Server) handleListVersions(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	userStory, err := req.RequireString("user_story")
	if err != nil {
		return mcp.NewToolResultError("user_story parameter is required"), nil
	}
	versions, err := s.versions.ListVersions(ctx, userStory)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return jsonResult(versions)
}

func (s *Server) handleCompareVersions(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	a, err := intArg(req, "a", 0, true)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	b, err := intArg(req, "b", 0, true)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	cmp, err := s.versions.CompareVersions(ctx, a, b)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return jsonResult(cmp)
}

func (s *Server) handleStepKey(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	var st step.Step
	if err := decodeArg(req, "step", &st); err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return mcp.NewToolResultText(step.Key(st)), nil
}
