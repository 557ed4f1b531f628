package capability

import (
	"context"
	"encoding/base64"
	"errors"
	"testing"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type mockMCPClient struct {
	mock.Mock
}

func (m *mockMCPClient) CallTool(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args := m.Called(req.Params.Name, req.Params.Arguments)
	res, _ := args.Get(0).(*mcp.CallToolResult)
	return res, args.Error(1)
}

func (m *mockMCPClient) Close() error {
	return m.Called().Error(0)
}

func TestMCPToolCaller_CallTool(t *testing.T) {
	png := []byte{0x89, 'P', 'N', 'G'}

	tests := []struct {
		name        string
		result      *mcp.CallToolResult
		callErr     error
		expectError string
		check       func(t *testing.T, res *ToolResult)
	}{
		{
			name: "text content",
			result: &mcp.CallToolResult{Content: []mcp.Content{
				mcp.NewTextContent("first"),
				mcp.NewTextContent("second"),
			}},
			check: func(t *testing.T, res *ToolResult) {
				assert.Equal(t, "first\nsecond", res.Text)
				assert.Equal(t, []string{"first", "second"}, res.Texts)
				assert.Nil(t, res.Image)
			},
		},
		{
			name: "image content is decoded",
			result: &mcp.CallToolResult{Content: []mcp.Content{
				mcp.NewImageContent(base64.StdEncoding.EncodeToString(png), "image/png"),
			}},
			check: func(t *testing.T, res *ToolResult) {
				assert.Equal(t, png, res.Image)
				assert.Equal(t, "image/png", res.ImageMIME)
			},
		},
		{
			name: "tool error carries text",
			result: &mcp.CallToolResult{
				Content: []mcp.Content{mcp.NewTextContent("element not found")},
				IsError: true,
			},
			expectError: "element not found",
		},
		{
			name:        "transport error",
			callErr:     errors.New("broken pipe"),
			expectError: "broken pipe",
		},
		{
			name:        "nil result",
			expectError: "nil result",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			client := &mockMCPClient{}
			args := map[string]interface{}{"selector": "#a"}
			client.On("CallTool", "browser_click", args).Return(tt.result, tt.callErr)

			caller := NewMCPToolCaller(client, "test")
			res, err := caller.CallTool(context.Background(), "browser_click", args)

			if tt.expectError != "" {
				require.Error(t, err)
				assert.Contains(t, err.Error(), tt.expectError)
			} else {
				require.NoError(t, err)
				tt.check(t, res)
			}
			client.AssertExpectations(t)
		})
	}
}

func TestMCPToolCaller_TransportErrorUnwraps(t *testing.T) {
	cause := errors.New("broken pipe")
	client := &mockMCPClient{}
	client.On("CallTool", "x", mock.Anything).Return(nil, cause)

	_, err := NewMCPToolCaller(client, "test").CallTool(context.Background(), "x", nil)
	assert.ErrorIs(t, err, cause)
}

func TestMCPToolCaller_NilClient(t *testing.T) {
	_, err := NewMCPToolCaller(nil, "test").CallTool(context.Background(), "x", nil)
	assert.Error(t, err)
	assert.NoError(t, NewMCPToolCaller(nil, "test").Close())
}
