// Package router classifies test cases, hands each one an executor for its
// backend and runs batches on a bounded worker pool.
package router

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sync"

	"github.com/google/uuid"

	"testctl/internal/alerts"
	"testctl/internal/capability"
	"testctl/internal/config"
	"testctl/internal/engine"
	"testctl/internal/locator"
	"testctl/internal/recorder"
	"testctl/internal/reporting"
	"testctl/internal/step"
	"testctl/internal/testcase"
	"testctl/internal/translator"
	"testctl/internal/waitgate"
	"testctl/pkg/logging"
)

// ErrClosed is returned by RunCase after Close.
var ErrClosed = errors.New("router is closed")

// Deps are the collaborators a router needs. Nil optional fields fall back
// to stubs or no-ops.
type Deps struct {
	Config     config.Config
	Translator translator.Translator
	Provider   capability.Provider
	Locators   *locator.Store
	Gate       *waitgate.Gate
	Recorder   engine.Recorder
	Reporter   reporting.Reporter
	Notifier   alerts.Notifier
	HTTPClient *http.Client
}

// Router owns one backend per kind, created on first use.
type Router struct {
	deps       Deps
	classifier *Classifier
	workers    int

	mu       sync.Mutex
	backends map[step.Kind]backend
	closed   bool
	inflight sync.WaitGroup
}

// New creates a router. Recorder is required.
func New(deps Deps) *Router {
	if deps.Translator == nil {
		deps.Translator = translator.NewService(nil, translator.DefaultCacheSize)
	}
	if deps.Provider == nil {
		deps.Provider = capability.NewStubProvider()
	}
	if deps.Notifier == nil {
		deps.Notifier = alerts.Nop{}
	}
	workers := deps.Config.Router.Workers
	if workers < 1 {
		workers = 1
	}
	return &Router{
		deps:       deps,
		classifier: NewClassifier(deps.Translator, deps.Config.Router),
		workers:    workers,
		backends:   make(map[step.Kind]backend),
	}
}

// Classify returns the backend tc would run on.
func (r *Router) Classify(ctx context.Context, tc testcase.TestCase) step.Kind {
	return r.classifier.Classify(ctx, tc)
}

func (r *Router) backend(ctx context.Context, kind step.Kind) (backend, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed {
		return nil, ErrClosed
	}
	if b, ok := r.backends[kind]; ok {
		return b, nil
	}
	b, err := r.newBackend(ctx, kind)
	if err != nil {
		return nil, fmt.Errorf("failed to create %s backend: %w", kind, err)
	}
	logging.Debug("Router", "Created %s backend", kind)
	r.backends[kind] = b
	return b, nil
}

// RunCase classifies tc and runs it. Errors are alerted as well as
// returned.
func (r *Router) RunCase(ctx context.Context, tc testcase.TestCase) (engine.Summary, error) {
	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		return engine.Summary{Identifier: tc.Identifier, Status: recorder.StatusFailed, Error: ErrClosed.Error()}, ErrClosed
	}
	r.inflight.Add(1)
	r.mu.Unlock()
	defer r.inflight.Done()

	sum, err := r.runCase(ctx, tc)
	if err != nil {
		logging.Error("Router", err, "Test case %s did not pass", tc.Identifier)
		alerts.Send(context.WithoutCancel(ctx), r.deps.Notifier,
			fmt.Sprintf("testctl: %s %s", tc.Identifier, statusOr(sum.Status, recorder.StatusFailed)),
			err.Error())
	}
	return sum, err
}

func (r *Router) runCase(ctx context.Context, tc testcase.TestCase) (engine.Summary, error) {
	kind := r.classifier.Classify(ctx, tc)
	failed := func(err error) (engine.Summary, error) {
		return engine.RecordFailure(ctx, r.deps.Recorder, tc, kind, err), err
	}

	b, err := r.backend(ctx, kind)
	if err != nil {
		return failed(err)
	}
	exec, release, err := b.acquire(ctx)
	if err != nil {
		return failed(fmt.Errorf("failed to acquire %s session: %w", kind, err))
	}
	defer release()

	eng := engine.New(exec, r.deps.Reporter, r.deps.Recorder, engine.OptionsFromConfig(r.deps.Config.MCP))
	return eng.Run(ctx, tc)
}

func statusOr(s, fallback recorder.Status) recorder.Status {
	if s == "" {
		return fallback
	}
	return s
}

// Batch is the outcome of RunAll. Summaries are in input order.
type Batch struct {
	ID        string           `json:"id"`
	Summaries []engine.Summary `json:"summaries"`
}

// Counts tallies summaries by status.
func (b Batch) Counts() map[recorder.Status]int {
	out := make(map[recorder.Status]int)
	for _, s := range b.Summaries {
		out[s.Status]++
	}
	return out
}

// OK reports whether every case passed or was skipped.
func (b Batch) OK() bool {
	for _, s := range b.Summaries {
		if s.Status == recorder.StatusFailed || s.Status == recorder.StatusPartial {
			return false
		}
	}
	return true
}

// RunAll runs cases on up to workers goroutines; workers < 1 uses the
// configured pool size. A failing case does not stop the batch.
func (r *Router) RunAll(ctx context.Context, cases []testcase.TestCase, workers int) Batch {
	batch := Batch{ID: uuid.NewString(), Summaries: make([]engine.Summary, len(cases))}
	if len(cases) == 0 {
		return batch
	}
	if workers < 1 {
		workers = r.workers
	}
	if workers > len(cases) {
		workers = len(cases)
	}
	logging.Info("Router", "Batch %s: %d cases on %d workers", batch.ID, len(cases), workers)

	jobs := make(chan int, len(cases))
	for i := range cases {
		jobs <- i
	}
	close(jobs)

	var wg sync.WaitGroup
	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func(workerID int) {
			defer wg.Done()
			for i := range jobs {
				tc := cases[i]
				if ctx.Err() != nil {
					batch.Summaries[i] = engine.Summary{Identifier: tc.Identifier, Status: recorder.StatusSkipped, Error: ctx.Err().Error()}
					continue
				}
				logging.Debug("Router", "Worker %d running %s", workerID, tc.Identifier)
				sum, _ := r.RunCase(ctx, tc)
				batch.Summaries[i] = sum
			}
		}(w)
	}
	wg.Wait()

	logging.Info("Router", "Batch %s finished: %v", batch.ID, batch.Counts())
	return batch
}

// Close waits for in-flight cases and then closes every backend.
func (r *Router) Close() error {
	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		return nil
	}
	r.closed = true
	r.mu.Unlock()

	r.inflight.Wait()

	r.mu.Lock()
	defer r.mu.Unlock()
	var errs []error
	for kind, b := range r.backends {
		if err := b.close(); err != nil {
			errs = append(errs, fmt.Errorf("%s backend: %w", kind, err))
		}
	}
	r.backends = nil
	return errors.Join(errs...)
}
