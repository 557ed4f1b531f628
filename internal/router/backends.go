package router

import (
	"context"
	"time"

	"testctl/internal/capability"
	"testctl/internal/executor"
	"testctl/internal/executor/api"
	"testctl/internal/executor/mobile"
	"testctl/internal/executor/sqlexec"
	"testctl/internal/executor/ui"
	"testctl/internal/step"
	"testctl/internal/waitgate"
)

// backend hands out an executor for one case. release must be called
// when the case is done.
type backend interface {
	acquire(ctx context.Context) (exec executor.Executor, release func(), err error)
	close() error
}

type uiBackend struct {
	pool      *capability.SessionPool[capability.Browser]
	locators  executor.LocatorStore
	suggester executor.LocatorSuggester
	gate      *waitgate.Gate
	opts      ui.Options
}

func (b *uiBackend) acquire(ctx context.Context) (executor.Executor, func(), error) {
	browser, err := b.pool.Checkout(ctx)
	if err != nil {
		return nil, nil, err
	}
	exec := ui.New(browser, b.locators, b.suggester, b.gate, b.opts)
	return exec, func() { b.pool.Checkin(browser) }, nil
}

func (b *uiBackend) close() error { return b.pool.Close() }

type mobileBackend struct {
	pool     *capability.SessionPool[capability.MobileDriver]
	locators executor.LocatorStore
	gate     *waitgate.Gate
	timeout  time.Duration
}

func (b *mobileBackend) acquire(ctx context.Context) (executor.Executor, func(), error) {
	driver, err := b.pool.Checkout(ctx)
	if err != nil {
		return nil, nil, err
	}
	exec := mobile.New(driver, b.locators, b.gate, b.timeout)
	return exec, func() { b.pool.Checkin(driver) }, nil
}

func (b *mobileBackend) close() error { return b.pool.Close() }

// sharedBackend serves one concurrency-safe executor to every case.
type sharedBackend struct {
	exec executor.Executor
}

func (b *sharedBackend) acquire(ctx context.Context) (executor.Executor, func(), error) {
	return b.exec, func() {}, nil
}

func (b *sharedBackend) close() error { return b.exec.Close() }

func (r *Router) newBackend(ctx context.Context, kind step.Kind) (backend, error) {
	cfg := r.deps.Config
	var locators executor.LocatorStore
	if r.deps.Locators != nil {
		locators = r.deps.Locators
	}

	switch kind {
	case step.KindUI:
		return &uiBackend{
			pool:      capability.NewSessionPool(r.workers, r.deps.Provider.NewBrowser),
			locators:  locators,
			suggester: r.deps.Translator,
			gate:      r.deps.Gate,
			opts: ui.Options{
				ScreenshotOnFailure: cfg.UI.ScreenshotOnFailure,
				SelfHeal:            cfg.UI.SelfHeal,
				AIRecovery:          cfg.MCP.AIPoweredRecovery,
				Timeout:             cfg.Wait.Timeout(),
			},
		}, nil
	case step.KindMobile:
		return &mobileBackend{
			pool:     capability.NewSessionPool(r.workers, r.deps.Provider.NewMobile),
			locators: locators,
			gate:     r.deps.Gate,
			timeout:  cfg.Wait.Timeout(),
		}, nil
	case step.KindAPI:
		timeout := time.Duration(cfg.API.TimeoutSeconds) * time.Second
		return &sharedBackend{exec: api.New(r.deps.Translator, cfg.API.BaseURL, r.deps.HTTPClient, timeout)}, nil
	case step.KindSQL:
		exec, err := sqlexec.Open(ctx, cfg.SQL, r.deps.Translator)
		if err != nil {
			return nil, err
		}
		return &sharedBackend{exec: exec}, nil
	}
	return nil, &UnknownBackendError{Kind: kind}
}

// UnknownBackendError reports a kind with no executor.
type UnknownBackendError struct {
	Kind step.Kind
}

func (e *UnknownBackendError) Error() string {
	return "no executor for backend " + string(e.Kind)
}
