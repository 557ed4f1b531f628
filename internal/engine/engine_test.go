package engine

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"testctl/internal/capability"
	"testctl/internal/executor"
	"testctl/internal/executor/api"
	"testctl/internal/executor/ui"
	"testctl/internal/recorder"
	"testctl/internal/reporting"
	"testctl/internal/step"
	"testctl/internal/storage/storagetest"
	"testctl/internal/testcase"
	"testctl/internal/translator"
)

var errBoom = errors.New("boom")

// scriptedExecutor fails each step id (the "id" field) the number of times
// listed in failures, then succeeds.
type scriptedExecutor struct {
	mu         sync.Mutex
	kind       step.Kind
	failures   map[string]int
	heal       bool
	// healScript answers recoveries in order before falling back to heal.
	healScript []bool
	executions map[string]int
	recoveries int
	panicOn    string
}

func newScripted(failures map[string]int) *scriptedExecutor {
	return &scriptedExecutor{kind: step.KindSQL, failures: failures, executions: map[string]int{}}
}

func (x *scriptedExecutor) Kind() step.Kind { return x.kind }
func (x *scriptedExecutor) Close() error    { return nil }

func (x *scriptedExecutor) ExecuteStep(ctx context.Context, s step.Step) error {
	x.mu.Lock()
	defer x.mu.Unlock()
	id, _ := s.String("id")
	if id == x.panicOn {
		panic("driver crashed")
	}
	x.executions[id]++
	if x.executions[id] <= x.failures[id] {
		return errBoom
	}
	return nil
}

func (x *scriptedExecutor) AttemptRecovery(ctx context.Context, s step.Step, err error) bool {
	x.mu.Lock()
	defer x.mu.Unlock()
	x.recoveries++
	if len(x.healScript) > 0 {
		ok := x.healScript[0]
		x.healScript = x.healScript[1:]
		return ok
	}
	return x.heal
}

func sqlStep(id string, extra ...interface{}) step.Step {
	s := step.Step{"id": id, "command": "select 1"}
	for i := 0; i+1 < len(extra); i += 2 {
		s[extra[i].(string)] = extra[i+1]
	}
	return s
}

func newEngine(t *testing.T, x executor.Executor, opts Options) (*Engine, *recorder.Recorder, *reporting.Memory) {
	t.Helper()
	rec := recorder.New(storagetest.Open(t))
	mem := reporting.NewMemory()
	return New(x, mem, rec, opts), rec, mem
}

func TestRunAllPass(t *testing.T) {
	x := newScripted(nil)
	e, rec, mem := newEngine(t, x, Options{MaxRetries: 3})

	sum, err := e.Run(context.Background(), testcase.TestCase{Identifier: "TC-1", Steps: []step.Step{sqlStep("a"), sqlStep("b")}})
	require.NoError(t, err)
	assert.Equal(t, recorder.StatusPassed, sum.Status)
	assert.Len(t, sum.Steps, 2)

	run, err := rec.GetRun(context.Background(), sum.RunID)
	require.NoError(t, err)
	assert.Equal(t, recorder.StatusPassed, run.Status)
	assert.NotNil(t, run.EndedAt)

	tests := mem.Tests()
	require.Len(t, tests, 1)
	assert.Equal(t, "passed", tests[0].Status)
	assert.Equal(t, "sql", tests[0].Backend)
}

func TestRetryThenPass(t *testing.T) {
	x := newScripted(map[string]int{"a": 2})
	e, _, mem := newEngine(t, x, Options{MaxRetries: 3, MaxHealsPerStep: 10})

	sum, err := e.Run(context.Background(), testcase.TestCase{Identifier: "TC", Steps: []step.Step{sqlStep("a")}})
	require.NoError(t, err)
	assert.Equal(t, recorder.StatusPassed, sum.Status)
	assert.Equal(t, 3, x.executions["a"])
	assert.Equal(t, 2, x.recoveries)

	atts := mem.Tests()[0].Attachments
	require.Len(t, atts, 2)
	assert.Contains(t, string(atts[0].Data), "attempt 1: boom")
	assert.Contains(t, string(atts[1].Data), "attempt 2: boom")
}

func TestHealDoesNotCountAttempt(t *testing.T) {
	x := newScripted(map[string]int{"a": 3})
	x.heal = true
	e, _, _ := newEngine(t, x, Options{MaxRetries: 1, MaxHealsPerStep: 10})

	sum, err := e.Run(context.Background(), testcase.TestCase{Identifier: "TC", Steps: []step.Step{sqlStep("a")}})
	require.NoError(t, err)
	assert.Equal(t, recorder.StatusPassed, sum.Status)
	assert.Equal(t, 4, x.executions["a"])
}

func TestHealCap(t *testing.T) {
	x := newScripted(map[string]int{"a": 100})
	x.heal = true
	e, _, _ := newEngine(t, x, Options{MaxRetries: 2, MaxHealsPerStep: 3})

	sum, err := e.Run(context.Background(), testcase.TestCase{Identifier: "TC", Steps: []step.Step{sqlStep("a")}})
	require.Error(t, err)
	assert.ErrorIs(t, err, errBoom)
	assert.Equal(t, recorder.StatusFailed, sum.Status)
	// Each counted attempt follows 3 consecutive heals: (3+1) * 2.
	assert.Equal(t, 8, x.executions["a"])
	assert.Equal(t, 6, x.recoveries)
}

func TestFailedHealsThenSuccessfulHeal(t *testing.T) {
	tests := []struct {
		name           string
		failures       int
		healScript     []bool
		wantStatus     recorder.Status
		wantExecutions int
		wantRecoveries int
	}{
		{
			// Without the heal discount the third failure would exhaust 3 retries.
			name:           "passes on the attempt after the heal",
			failures:       3,
			healScript:     []bool{false, false, true},
			wantStatus:     recorder.StatusPassed,
			wantExecutions: 4,
			wantRecoveries: 3,
		},
		{
			name:           "heal does not consume a retry",
			failures:       100,
			healScript:     []bool{false, true, false, true},
			wantStatus:     recorder.StatusFailed,
			wantExecutions: 5,
			wantRecoveries: 5,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			x := newScripted(map[string]int{"a": tt.failures})
			x.healScript = tt.healScript
			e, _, _ := newEngine(t, x, Options{MaxRetries: 3, MaxHealsPerStep: 10})

			sum, _ := e.Run(context.Background(), testcase.TestCase{Identifier: "TC", Steps: []step.Step{sqlStep("a")}})
			assert.Equal(t, tt.wantStatus, sum.Status)
			assert.Equal(t, tt.wantExecutions, x.executions["a"])
			assert.Equal(t, tt.wantRecoveries, x.recoveries)
		})
	}
}

// healingBrowser only accepts "#good".
type healingBrowser struct {
	capability.StubBrowser
	mu         sync.Mutex
	goodClicks int
}

func (b *healingBrowser) WaitForSelector(ctx context.Context, sel, state string, timeout time.Duration) error {
	if sel != "#good" {
		return errors.New("timeout waiting for " + sel)
	}
	return nil
}

func (b *healingBrowser) Click(ctx context.Context, sel string) error {
	if sel != "#good" {
		return errors.New("no element " + sel)
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	b.goodClicks++
	return nil
}

type fixedSuggester string

func (f fixedSuggester) SuggestLocator(ctx context.Context, description string) (string, bool) {
	return string(f), f != ""
}

func TestUIStepHealedBySuggestionPasses(t *testing.T) {
	b := &healingBrowser{}
	uiExec := ui.New(b, nil, fixedSuggester("#good"), nil, ui.Options{SelfHeal: true, AIRecovery: true, Timeout: time.Millisecond})
	e, _, _ := newEngine(t, uiExec, Options{MaxRetries: 3, MaxHealsPerStep: 10})

	sum, err := e.Run(context.Background(), testcase.TestCase{Identifier: "UI-2", Type: "ui", Steps: []step.Step{
		{"action": "click", "selector": "#broken"},
	}})
	require.NoError(t, err)
	assert.Equal(t, recorder.StatusPassed, sum.Status)
	// Once during recovery and once on the retry with the healed selector.
	assert.Equal(t, 2, b.goodClicks)
}

func TestRecordFailure(t *testing.T) {
	rec := recorder.New(storagetest.Open(t))
	ctx := context.Background()

	sum := RecordFailure(ctx, rec, testcase.TestCase{Identifier: "TC-9"}, step.KindSQL, errBoom)
	assert.Equal(t, recorder.StatusFailed, sum.Status)
	assert.Equal(t, "boom", sum.Error)
	require.NotZero(t, sum.RunID)

	run, err := rec.GetRun(ctx, sum.RunID)
	require.NoError(t, err)
	assert.Equal(t, recorder.StatusFailed, run.Status)
	assert.Equal(t, "boom", run.ErrorMessage)
	assert.NotNil(t, run.EndedAt)

	assert.Equal(t, "TC-9", RecordFailure(ctx, nil, testcase.TestCase{Identifier: "TC-9"}, step.KindSQL, errBoom).Identifier)
}

func TestDependencySkip(t *testing.T) {
	x := newScripted(map[string]int{"a": 10})
	e, rec, _ := newEngine(t, x, Options{MaxRetries: 2})

	tc := testcase.TestCase{Identifier: "TC", Steps: []step.Step{
		sqlStep("a"),
		sqlStep("b", "depends_on", 0),
		sqlStep("c", "depends_on", 1),
		sqlStep("d"),
	}}
	sum, err := e.Run(context.Background(), tc)
	require.Error(t, err)
	assert.Equal(t, recorder.StatusPartial, sum.Status)

	statuses := make([]recorder.Status, len(sum.Steps))
	for i, r := range sum.Steps {
		statuses[i] = r.Status
	}
	assert.Equal(t, []recorder.Status{recorder.StatusFailed, recorder.StatusSkipped, recorder.StatusSkipped, recorder.StatusPassed}, statuses)
	assert.Contains(t, sum.Steps[1].Message, "dependency not satisfied")
	assert.Zero(t, x.executions["b"])
	assert.Zero(t, x.executions["c"])

	stored, err := rec.ListSteps(context.Background(), sum.RunID)
	require.NoError(t, err)
	assert.Len(t, stored, 4)
}

func TestValidationSkip(t *testing.T) {
	x := newScripted(nil)
	e, _, _ := newEngine(t, x, Options{MaxRetries: 3})

	sum, err := e.Run(context.Background(), testcase.TestCase{Identifier: "TC", Steps: []step.Step{{"id": "a"}}})
	require.NoError(t, err)
	assert.Equal(t, recorder.StatusSkipped, sum.Status)
	assert.Zero(t, x.executions["a"])
	assert.Zero(t, x.recoveries)
}

func TestEmptyCaseIsSkipped(t *testing.T) {
	e, _, _ := newEngine(t, newScripted(nil), Options{MaxRetries: 1})
	sum, err := e.Run(context.Background(), testcase.TestCase{Identifier: "TC"})
	require.NoError(t, err)
	assert.Equal(t, recorder.StatusSkipped, sum.Status)
}

func TestPanicBecomesFailed(t *testing.T) {
	x := newScripted(nil)
	x.panicOn = "a"
	e, _, _ := newEngine(t, x, Options{MaxRetries: 1})

	sum, err := e.Run(context.Background(), testcase.TestCase{Identifier: "TC", Steps: []step.Step{sqlStep("a"), sqlStep("b")}})
	require.Error(t, err)
	assert.Equal(t, recorder.StatusPartial, sum.Status)
	assert.Contains(t, sum.Steps[0].Message, "driver crashed")
}

func TestCancelDuringRetrySleep(t *testing.T) {
	x := newScripted(map[string]int{"a": 10})
	e, rec, _ := newEngine(t, x, Options{MaxRetries: 5, RetryInterval: time.Hour})

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	sum, err := e.Run(ctx, testcase.TestCase{Identifier: "TC", Steps: []step.Step{sqlStep("a"), sqlStep("b")}})
	require.Error(t, err)
	assert.Equal(t, recorder.StatusFailed, sum.Status)
	assert.Len(t, sum.Steps, 1)

	run, err := rec.GetRun(context.Background(), sum.RunID)
	require.NoError(t, err)
	assert.Equal(t, recorder.StatusFailed, run.Status)
}

// e2eBrowser only finds "body".
type e2eBrowser struct {
	capability.StubBrowser
}

func (e2eBrowser) WaitForSelector(ctx context.Context, sel, state string, timeout time.Duration) error {
	if state == capability.StateVisible && sel != "body" {
		return errors.New("timeout waiting for " + sel)
	}
	return nil
}

func (e2eBrowser) Click(ctx context.Context, sel string) error {
	if sel != "body" {
		return errors.New("no element " + sel)
	}
	return nil
}

func TestUICaseEndsPartial(t *testing.T) {
	uiExec := ui.New(e2eBrowser{}, nil, nil, nil, ui.Options{SelfHeal: true, Timeout: time.Millisecond})
	e, _, _ := newEngine(t, uiExec, Options{MaxRetries: 2, MaxHealsPerStep: 10})

	tc := testcase.TestCase{Identifier: "UI-1", Type: "ui", Steps: []step.Step{
		{"action": "click", "selector": "missing-selector"},
		{"action": "click", "selector": "body"},
		{"action": "assert_text", "selector": "body", "expected": ""},
	}}
	sum, err := e.Run(context.Background(), tc)
	require.Error(t, err)
	assert.Equal(t, recorder.StatusPartial, sum.Status)
	assert.Equal(t, recorder.StatusFailed, sum.Steps[0].Status)
	assert.Equal(t, recorder.StatusPassed, sum.Steps[1].Status)
	assert.Equal(t, recorder.StatusPassed, sum.Steps[2].Status)
}

func TestAPICaseEndsFailed(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		code, err := strconv.Atoi(strings.TrimPrefix(r.URL.Path, "/status/"))
		if err != nil {
			code = http.StatusNotFound
		}
		w.WriteHeader(code)
	}))
	defer srv.Close()

	apiExec := api.New(translator.NewService(nil, 16), srv.URL, srv.Client(), time.Second)
	e, _, _ := newEngine(t, apiExec, Options{MaxRetries: 2})

	tc := testcase.TestCase{Identifier: "API-1", Type: "api", Steps: []step.Step{
		{"command": "GET /status/400", "expected_status": 200},
		{"command": "GET /status/200", "expected_status": 200, "depends_on": 0},
	}}
	sum, err := e.Run(context.Background(), tc)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "expected status 200, got 400")
	assert.Equal(t, recorder.StatusFailed, sum.Status)
	assert.Equal(t, recorder.StatusFailed, sum.Steps[0].Status)
	assert.Equal(t, recorder.StatusSkipped, sum.Steps[1].Status)
}
