package translator

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"testctl/internal/capability"
	"testctl/internal/step"
)

func TestParseAPICommand(t *testing.T) {
	tests := []struct {
		name    string
		command string
		base    string
		want    APIRequest
	}{
		{
			name:    "method and relative path",
			command: "GET /status/200",
			base:    "https://api.example.com/",
			want:    APIRequest{Method: "GET", URL: "https://api.example.com/status/200", ExpectedStatus: 200},
		},
		{
			name:    "lower case method with json body",
			command: `post /users with json {"name": "John"}`,
			base:    "http://localhost:8080",
			want: APIRequest{
				Method:         "POST",
				URL:            "http://localhost:8080/users",
				Headers:        map[string]string{"Content-Type": "application/json"},
				Body:           map[string]interface{}{"name": "John"},
				ExpectedStatus: 200,
			},
		},
		{
			name:    "absolute url ignores base",
			command: "DELETE https://other.example.com/items/1",
			base:    "http://localhost",
			want:    APIRequest{Method: "DELETE", URL: "https://other.example.com/items/1", ExpectedStatus: 200},
		},
		{
			name:    "json command",
			command: `{"method": "put", "url": "/items/1", "body": {"qty": 2}, "expected_status": 204}`,
			base:    "http://localhost",
			want: APIRequest{
				Method:         "PUT",
				URL:            "http://localhost/items/1",
				Body:           map[string]interface{}{"qty": float64(2)},
				ExpectedStatus: 204,
			},
		},
		{
			name:    "json command without method",
			command: `{"url": "/health"}`,
			want:    APIRequest{Method: "GET", URL: "/health", ExpectedStatus: 200},
		},
		{
			name:    "literal fallback",
			command: "/health",
			base:    "http://localhost/",
			want:    APIRequest{Method: "GET", URL: "http://localhost/health", ExpectedStatus: 200},
		},
		{
			name:    "invalid json body is dropped",
			command: "PATCH /x with json {nope}",
			want:    APIRequest{Method: "PATCH", URL: "/x", ExpectedStatus: 200},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ParseAPICommand(tt.command, tt.base))
		})
	}
}

func TestTranslateSQLCommand(t *testing.T) {
	stmt := TranslateSQLCommand("insert user john doe")
	assert.Equal(t, "INSERT INTO users (name) VALUES (?)", stmt.SQL)
	assert.Equal(t, []interface{}{"John Doe"}, stmt.Args)
	require.NotNil(t, stmt.Assertion)
	assert.Equal(t, CountPositive, stmt.Assertion.Expect)

	stmt = TranslateSQLCommand("Verify Exists User JOHN DOE")
	assert.Equal(t, userCountQuery, stmt.SQL)
	assert.Equal(t, []interface{}{"John Doe"}, stmt.Args)
	assert.Equal(t, CountPositive, stmt.Assertion.Expect)

	stmt = TranslateSQLCommand("delete user o'brien")
	assert.Equal(t, []interface{}{"O'Brien"}, stmt.Args)
	assert.Equal(t, CountZero, stmt.Assertion.Expect)

	stmt = TranslateSQLCommand(" CREATE TABLE t (id INTEGER) ")
	assert.Equal(t, "CREATE TABLE t (id INTEGER)", stmt.SQL)
	assert.Nil(t, stmt.Assertion)
}

func TestRebind(t *testing.T) {
	assert.Equal(t, "SELECT * FROM t WHERE a = $1 AND b = $2", Rebind("SELECT * FROM t WHERE a = ? AND b = ?"))
	assert.Equal(t, "SELECT '?' FROM t WHERE a = $1", Rebind("SELECT '?' FROM t WHERE a = ?"))
}

type mockLLM struct {
	mock.Mock
}

func (m *mockLLM) Classify(ctx context.Context, text string) (string, error) {
	args := m.Called(text)
	return args.String(0), args.Error(1)
}

func (m *mockLLM) TranslateAPI(ctx context.Context, command, baseURL string) (APIRequest, error) {
	args := m.Called(command, baseURL)
	return args.Get(0).(APIRequest), args.Error(1)
}

func (m *mockLLM) TranslateSQL(ctx context.Context, command string) (SQLStatement, error) {
	args := m.Called(command)
	return args.Get(0).(SQLStatement), args.Error(1)
}

func (m *mockLLM) SuggestLocator(ctx context.Context, description string) (string, error) {
	args := m.Called(description)
	return args.String(0), args.Error(1)
}

func (m *mockLLM) Embed(ctx context.Context, text string) ([]float64, error) {
	args := m.Called(text)
	vec, _ := args.Get(0).([]float64)
	return vec, args.Error(1)
}

func TestService_WithoutLLM(t *testing.T) {
	ctx := context.Background()
	s := NewService(nil, 8)

	_, ok := s.Classify(ctx, "click the button")
	assert.False(t, ok)
	_, ok = s.SuggestLocator(ctx, "login button")
	assert.False(t, ok)
	_, ok = s.Embed(ctx, "x")
	assert.False(t, ok)

	req := s.TranslateAPI(ctx, "GET /a", "http://h")
	assert.Equal(t, "http://h/a", req.URL)
	assert.Equal(t, "INSERT INTO users (name) VALUES (?)", s.TranslateSQL(ctx, "insert user bob").SQL)
	assert.NoError(t, s.Close())
}

func TestService_LLMFirstThenCache(t *testing.T) {
	ctx := context.Background()
	llm := &mockLLM{}
	llm.On("Classify", "text").Return("UI.", nil).Once()
	llm.On("TranslateAPI", "list users", "http://h").Return(APIRequest{Method: "GET", URL: "http://h/users", ExpectedStatus: 200}, nil).Once()
	llm.On("SuggestLocator", "login button").Return("#login", nil).Once()

	s := NewService(llm, 8)
	for i := 0; i < 3; i++ {
		kind, ok := s.Classify(ctx, "text")
		assert.True(t, ok)
		assert.Equal(t, step.KindUI, kind)

		req := s.TranslateAPI(ctx, "list users", "http://h")
		assert.Equal(t, "http://h/users", req.URL)

		sel, ok := s.SuggestLocator(ctx, "login button")
		assert.True(t, ok)
		assert.Equal(t, "#login", sel)
	}
	llm.AssertExpectations(t)
}

func TestService_LLMFailureFallsBack(t *testing.T) {
	ctx := context.Background()
	llm := &mockLLM{}
	llm.On("Classify", "x").Return("", ErrUnavailable)
	llm.On("Classify", "y").Return("desktop", nil)
	llm.On("TranslateAPI", "GET /a", "").Return(APIRequest{}, ErrUnavailable)
	llm.On("TranslateSQL", "delete user ann").Return(SQLStatement{}, ErrUnavailable)
	llm.On("SuggestLocator", "thing").Return("", ErrUnavailable)
	llm.On("Embed", "e").Return(nil, ErrUnavailable)

	s := NewService(llm, 8)
	_, ok := s.Classify(ctx, "x")
	assert.False(t, ok)
	_, ok = s.Classify(ctx, "y")
	assert.False(t, ok)
	assert.Equal(t, "/a", s.TranslateAPI(ctx, "GET /a", "").URL)
	assert.Equal(t, []interface{}{"Ann"}, s.TranslateSQL(ctx, "delete user ann").Args)
	_, ok = s.SuggestLocator(ctx, "thing")
	assert.False(t, ok)
	_, ok = s.Embed(ctx, "e")
	assert.False(t, ok)
}

func TestService_CachedRequestsAreCopies(t *testing.T) {
	s := NewService(nil, 8)
	first := s.TranslateAPI(context.Background(), `POST /u with json {"a":1}`, "")
	first.Headers["X-Mutated"] = "yes"
	second := s.TranslateAPI(context.Background(), `POST /u with json {"a":1}`, "")
	assert.NotContains(t, second.Headers, "X-Mutated")
}

func TestCache_BoundedAndConcurrent(t *testing.T) {
	s := NewService(nil, 4)
	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			s.TranslateAPI(context.Background(), fmt.Sprintf("GET /%d", i), "")
		}(i)
	}
	wg.Wait()
	assert.Equal(t, 4, s.cache.Len())
}

type stubCaller struct {
	results map[string]*capability.ToolResult
	calls   []string
}

func (c *stubCaller) CallTool(ctx context.Context, name string, args map[string]interface{}) (*capability.ToolResult, error) {
	c.calls = append(c.calls, name)
	if r, ok := c.results[name]; ok {
		return r, nil
	}
	return nil, errors.New("tool not found")
}

func (c *stubCaller) Close() error { return nil }

func TestMCPClient(t *testing.T) {
	ctx := context.Background()
	caller := &stubCaller{results: map[string]*capability.ToolResult{
		"classify":        {Text: "api"},
		"translate_api":   {Text: "```json\n{\"method\":\"post\",\"url\":\"/orders\"}\n```"},
		"translate_sql":   {Text: `{"sql":"SELECT 1","assertion":{"query":"SELECT COUNT(*) FROM t","expect":"bogus"}}`},
		"suggest_locator": {Text: "`#submit`"},
		"embed":           {Text: "[0.1, 0.2]"},
	}}
	c := NewMCPClient(caller)

	cat, err := c.Classify(ctx, "anything")
	require.NoError(t, err)
	assert.Equal(t, "api", cat)

	req, err := c.TranslateAPI(ctx, "create order", "http://h")
	require.NoError(t, err)
	assert.Equal(t, APIRequest{Method: "POST", URL: "http://h/orders", ExpectedStatus: 200}, req)

	_, err = c.TranslateSQL(ctx, "x")
	assert.ErrorIs(t, err, ErrUnavailable)

	sel, err := c.SuggestLocator(ctx, "submit")
	require.NoError(t, err)
	assert.Equal(t, "#submit", sel)

	vec, err := c.Embed(ctx, "x")
	require.NoError(t, err)
	assert.Equal(t, []float64{0.1, 0.2}, vec)

	caller.results = nil
	_, err = c.Classify(ctx, "anything")
	assert.ErrorIs(t, err, ErrUnavailable)
}
