// Package app builds the object graph shared by the CLI commands and the
// MCP server.
package app

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"testctl/internal/alerts"
	"testctl/internal/capability"
	"testctl/internal/config"
	"testctl/internal/locator"
	"testctl/internal/mcpserver"
	"testctl/internal/recorder"
	"testctl/internal/reporting"
	"testctl/internal/router"
	"testctl/internal/storage"
	"testctl/internal/translator"
	"testctl/internal/versioning"
	"testctl/internal/waitgate"
	"testctl/pkg/logging"
)

// App holds every long-lived component. Build it with New and release it
// with Close.
type App struct {
	Config     config.Config
	DB         *sql.DB
	Locators   *locator.Store
	Recorder   *recorder.Recorder
	Versions   *versioning.Manager
	Translator *translator.Service
	WaitRepo   *waitgate.Repository
	Reporter   reporting.Reporter
	Notifier   alerts.Notifier
	Router     *router.Router

	// closers run in reverse order on Close.
	closers []func() error
}

// New builds the application from cfg. On error everything already opened
// is released.
func New(ctx context.Context, cfg config.Config, opts Options) (*App, error) {
	if opts.Stub {
		cfg.UI.Provider = config.ProviderStub
		cfg.Mobile.Provider = config.ProviderStub
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	a := &App{Config: cfg}
	ok := false
	defer func() {
		if !ok {
			a.Close()
		}
	}()

	db, err := storage.Open(cfg.Database.Path)
	if err != nil {
		return nil, err
	}
	a.DB = db
	a.closers = append(a.closers, db.Close)
	logging.Debug("Bootstrap", "Opened database %s", cfg.Database.Path)

	a.Locators = locator.NewStore(db)
	a.Recorder = recorder.New(db)

	a.Translator = translator.NewService(translator.ConnectLLM(ctx, cfg.LLM), cfg.LLM.CacheSize)
	a.closers = append(a.closers, a.Translator.Close)

	a.Versions = versioning.NewManager(db, versioning.NewScorer(cfg.Versioning.Method, a.Translator), cfg.Versioning.SimilarityThreshold)

	if a.WaitRepo, err = waitgate.NewRepository(cfg.WaitRepo.Path); err != nil {
		return nil, err
	}

	provider, err := capability.NewProvider(cfg)
	if err != nil {
		return nil, err
	}

	if a.Reporter, err = newReporter(cfg, opts); err != nil {
		return nil, err
	}
	a.Notifier = alerts.FromConfig(cfg.Alerts)

	a.Router = router.New(router.Deps{
		Config:     cfg,
		Translator: a.Translator,
		Provider:   provider,
		Locators:   a.Locators,
		Gate:       waitgate.NewGate(a.WaitRepo, cfg.Wait.Timeout()),
		Recorder:   a.Recorder,
		Reporter:   a.Reporter,
		Notifier:   a.Notifier,
	})
	a.closers = append(a.closers, a.Router.Close)

	ok = true
	logging.Info("Bootstrap", "Ready (ui=%s, mobile=%s, llm=%t)", cfg.UI.Provider, cfg.Mobile.Provider, cfg.LLM.Enabled)
	return a, nil
}

func newReporter(cfg config.Config, opts Options) (reporting.Reporter, error) {
	var rs []reporting.Reporter
	if opts.Console != nil {
		rs = append(rs, reporting.NewConsoleReporter(opts.Console, opts.Verbose))
	}
	if opts.Report {
		dir := opts.ReportDir
		if dir == "" {
			dir = cfg.Reporting.ResultsDir
		}
		fr, err := reporting.NewFileReporter(dir)
		if err != nil {
			return nil, err
		}
		logging.Info("Bootstrap", "Writing results to %s", fr.Dir())
		rs = append(rs, fr)
	}
	if len(rs) == 0 {
		return reporting.Discard, nil
	}
	return reporting.Multi(rs...), nil
}

// MCPServer exposes this application's components as MCP tools.
func (a *App) MCPServer(version string) *mcpserver.Server {
	return mcpserver.New(a.Router, a.Locators, a.Versions, version)
}

// Close releases components in the reverse order they were created.
func (a *App) Close() error {
	var errs []error
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil {
			errs = append(errs, err)
		}
	}
	a.closers = nil
	return errors.Join(errs...)
}
