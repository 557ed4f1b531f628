// Package engine runs the steps of one test case against one backend
// executor, retrying and self-healing failed steps and recording every
// outcome.
//
// Per step the engine:
//
//   - skips it when the step it depends on did not pass
//   - skips it when it does not validate for the backend
//   - executes it, and on failure offers the executor a recovery
//   - retries after a fixed interval until max retries is reached
//
// A healed step is retried at once without counting an attempt. A step
// that exhausts its retries is recorded failed; the remaining steps still
// run, and the failure is returned once the run is finished.
package engine

import (
	"context"
	"fmt"
	"time"

	"testctl/internal/config"
	"testctl/internal/executor"
	"testctl/internal/recorder"
	"testctl/internal/reporting"
	"testctl/internal/step"
	"testctl/internal/testcase"
	"testctl/pkg/logging"
)

// Recorder persists cases, runs and step results.
type Recorder interface {
	SaveTestCase(ctx context.Context, tc testcase.TestCase) (int64, error)
	StartRun(ctx context.Context, caseID int64) (int64, error)
	RecordStep(ctx context.Context, runID int64, res recorder.StepResult) error
	FinishRun(ctx context.Context, runID int64, status recorder.Status, errMsg string) error
}

// Options bound retries and healing.
type Options struct {
	MaxRetries      int
	RetryInterval   time.Duration
	MaxHealsPerStep int
}

// OptionsFromConfig reads the mcp section.
func OptionsFromConfig(c config.MCPConfig) Options {
	return Options{
		MaxRetries:      c.MaxRetries,
		RetryInterval:   c.RetryInterval(),
		MaxHealsPerStep: c.MaxHealsPerStep,
	}
}

// Summary is the outcome of one Run.
type Summary struct {
	Identifier string                `json:"identifier"`
	Backend    step.Kind             `json:"backend"`
	CaseID     int64                 `json:"case_id"`
	RunID      int64                 `json:"run_id"`
	Status     recorder.Status       `json:"status"`
	Steps      []recorder.StepResult `json:"steps"`
	Error      string                `json:"error,omitempty"`
}

// Engine executes test cases. It is not safe to run two cases on one
// Engine concurrently because the executor owns a single session.
type Engine struct {
	exec     executor.Executor
	reporter reporting.Reporter
	rec      Recorder
	opts     Options
	now      func() time.Time
}

// New creates an engine. A nil reporter discards evidence.
func New(exec executor.Executor, reporter reporting.Reporter, rec Recorder, opts Options) *Engine {
	if reporter == nil {
		reporter = reporting.Discard
	}
	if opts.MaxRetries < 1 {
		opts.MaxRetries = 1
	}
	return &Engine{exec: exec, reporter: reporter, rec: rec, opts: opts, now: time.Now}
}

// Run executes every step of tc in order.
func (e *Engine) Run(ctx context.Context, tc testcase.TestCase) (Summary, error) {
	kind := e.exec.Kind()
	sum := Summary{Identifier: tc.Identifier, Backend: kind}

	caseID, err := e.rec.SaveTestCase(ctx, tc)
	if err != nil {
		return sum, fmt.Errorf("failed to save test case %s: %w", tc.Identifier, err)
	}
	runID, err := e.rec.StartRun(ctx, caseID)
	if err != nil {
		return sum, fmt.Errorf("failed to start run for %s: %w", tc.Identifier, err)
	}
	sum.CaseID, sum.RunID = caseID, runID

	scope := e.reporter.StartTest(tc.Identifier, string(kind))
	ctx = reporting.WithEvidence(ctx, scope)
	// Persisting must outlive a cancelled run.
	persistCtx := context.WithoutCancel(ctx)

	logging.Info("Engine", "Running %s on %s backend (%d steps)", tc.Identifier, kind, len(tc.Steps))

	statuses := make([]recorder.Status, 0, len(tc.Steps))
	var runErr error
	for i, s := range tc.Steps {
		started := e.now()
		status, stepErr := e.runStep(ctx, kind, i, s, statuses)

		res := recorder.StepResult{Index: i, Status: status, StartedAt: started, EndedAt: e.now()}
		if stepErr != nil {
			res.Message = stepErr.Error()
		}
		if err := e.rec.RecordStep(persistCtx, runID, res); err != nil {
			logging.Error("Engine", err, "Failed to record step %d of %s", i, tc.Identifier)
		}
		statuses = append(statuses, status)
		sum.Steps = append(sum.Steps, res)

		switch status {
		case recorder.StatusFailed:
			logging.Warn("Engine", "Step %d of %s failed: %v", i, tc.Identifier, stepErr)
			if runErr == nil {
				runErr = fmt.Errorf("test case %s: step %d failed: %w", tc.Identifier, i, stepErr)
			}
		case recorder.StatusSkipped:
			logging.Info("Engine", "Step %d of %s skipped: %v", i, tc.Identifier, stepErr)
		default:
			logging.Debug("Engine", "Step %d of %s passed", i, tc.Identifier)
		}

		if ctx.Err() != nil {
			if runErr == nil {
				runErr = fmt.Errorf("test case %s interrupted: %w", tc.Identifier, ctx.Err())
			}
			break
		}
	}

	sum.Status = recorder.Aggregate(statuses)
	if runErr != nil {
		sum.Error = runErr.Error()
	}
	if err := e.rec.FinishRun(persistCtx, runID, sum.Status, sum.Error); err != nil {
		logging.Error("Engine", err, "Failed to finish run %d", runID)
	}
	scope.Close(string(sum.Status))

	logging.Info("Engine", "%s finished: %s", tc.Identifier, sum.Status)
	return sum, runErr
}

// RecordFailure persists a failed run for a case that could not be started,
// for example because no session was available. The cause is kept as the
// run's error message.
func RecordFailure(ctx context.Context, rec Recorder, tc testcase.TestCase, kind step.Kind, cause error) Summary {
	sum := Summary{Identifier: tc.Identifier, Backend: kind, Status: recorder.StatusFailed, Error: cause.Error()}
	if rec == nil {
		return sum
	}
	ctx = context.WithoutCancel(ctx)

	caseID, err := rec.SaveTestCase(ctx, tc)
	if err != nil {
		logging.Error("Engine", err, "Failed to save test case %s", tc.Identifier)
		return sum
	}
	runID, err := rec.StartRun(ctx, caseID)
	if err != nil {
		logging.Error("Engine", err, "Failed to start run for %s", tc.Identifier)
		return sum
	}
	sum.CaseID, sum.RunID = caseID, runID
	if err := rec.FinishRun(ctx, runID, recorder.StatusFailed, sum.Error); err != nil {
		logging.Error("Engine", err, "Failed to finish run %d", runID)
	}
	return sum
}

func (e *Engine) runStep(ctx context.Context, kind step.Kind, i int, s step.Step, prior []recorder.Status) (recorder.Status, error) {
	dep, hasDep, err := s.DependsOn()
	if err != nil {
		return recorder.StatusSkipped, err
	}
	if hasDep {
		if dep < 0 || dep >= len(prior) {
			return recorder.StatusSkipped, &step.ValidationError{Field: "depends_on", Reason: fmt.Sprintf("step %d does not precede step %d", dep, i)}
		}
		if st := prior[dep]; st == recorder.StatusFailed || st == recorder.StatusSkipped {
			return recorder.StatusSkipped, &step.DependencyError{Index: i, DependsOn: dep, Status: string(st)}
		}
	}

	if err := step.Validate(kind, s); err != nil {
		return recorder.StatusSkipped, err
	}

	ev := reporting.EvidenceFrom(ctx)
	attempts, heals := 0, 0
	for {
		err := e.execute(ctx, s)
		if err == nil {
			return recorder.StatusPassed, nil
		}
		if step.IsValidation(err) {
			return recorder.StatusSkipped, err
		}
		if ctx.Err() != nil {
			return recorder.StatusFailed, err
		}

		ev.AttachText(fmt.Sprintf("step_%d_failure", i), fmt.Sprintf("attempt %d: %v\n\n%s", attempts+1, err, s.Canonical()))

		if heals < e.opts.MaxHealsPerStep && e.tryRecovery(ctx, s, err) {
			heals++
			logging.Info("Engine", "Step %d healed (%d/%d), retrying", i, heals, e.opts.MaxHealsPerStep)
			continue
		}

		// The heal cap applies to consecutive heals.
		heals = 0
		attempts++
		if attempts >= e.opts.MaxRetries {
			return recorder.StatusFailed, err
		}
		logging.Debug("Engine", "Step %d attempt %d/%d failed: %v", i, attempts, e.opts.MaxRetries, err)

		select {
		case <-time.After(e.opts.RetryInterval):
		case <-ctx.Done():
			return recorder.StatusFailed, fmt.Errorf("%w (retry interrupted: %v)", err, ctx.Err())
		}
	}
}

// execute turns a panic in the executor into an error.
func (e *Engine) execute(ctx context.Context, s step.Step) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("step panicked: %v", r)
		}
	}()
	return e.exec.ExecuteStep(ctx, s)
}

func (e *Engine) tryRecovery(ctx context.Context, s step.Step, cause error) (ok bool) {
	defer func() {
		if r := recover(); r != nil {
			logging.Warn("Engine", "Recovery panicked: %v", r)
			ok = false
		}
	}()
	return e.exec.AttemptRecovery(ctx, s, cause)
}
