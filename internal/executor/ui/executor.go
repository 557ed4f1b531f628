// Package ui executes web UI steps against a capability.Browser.
package ui

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"testctl/internal/capability"
	"testctl/internal/executor"
	"testctl/internal/locator"
	"testctl/internal/reporting"
	"testctl/internal/step"
	"testctl/pkg/logging"
)

// Gate waits until the page is stable.
type Gate interface {
	WaitUI(ctx context.Context, b capability.Browser)
}

// Options tune the executor.
type Options struct {
	ScreenshotOnFailure bool
	SelfHeal            bool
	AIRecovery          bool
	// Timeout bounds element visibility waits.
	Timeout time.Duration
}

// Executor runs UI steps in one browser session.
type Executor struct {
	browser   capability.Browser
	locators  executor.LocatorStore
	suggester executor.LocatorSuggester
	gate      Gate
	opts      Options

	mu sync.Mutex
	// healed maps step keys to the selector that last healed them. It is
	// never written to the locator store.
	healed map[string]string
}

var _ executor.Executor = (*Executor)(nil)

// New creates a UI executor. suggester and gate may be nil.
func New(b capability.Browser, locators executor.LocatorStore, suggester executor.LocatorSuggester, gate Gate, opts Options) *Executor {
	if opts.Timeout <= 0 {
		opts.Timeout = 30 * time.Second
	}
	return &Executor{browser: b, locators: locators, suggester: suggester, gate: gate, opts: opts, healed: make(map[string]string)}
}

func (e *Executor) Kind() step.Kind { return step.KindUI }

// Close does not close the browser; the session belongs to its pool.
func (e *Executor) Close() error { return nil }

// ExecuteStep runs one UI step.
func (e *Executor) ExecuteStep(ctx context.Context, s step.Step) error {
	u, err := step.ParseUI(s)
	if err != nil {
		return err
	}

	logging.Debug("UIExecutor", "Executing %s %s", u.Action, u.Selector)
	if err := e.execute(ctx, u, s); err != nil {
		if e.opts.ScreenshotOnFailure && !step.IsValidation(err) {
			e.attachScreenshot(ctx, "failure_screenshot")
		}
		return err
	}
	return nil
}

func (e *Executor) execute(ctx context.Context, u step.UIStep, s step.Step) error {
	switch u.Action {
	case "navigate":
		if err := e.browser.Goto(ctx, u.Selector); err != nil {
			return &step.TransportError{Op: "navigate " + u.Selector, Err: err}
		}
		e.waitStable(ctx)
		return nil
	case "screenshot":
		e.attachScreenshot(ctx, "screenshot")
		return nil
	}

	sel, err := e.resolve(ctx, u, s)
	if err != nil {
		return err
	}

	if interactive(u.Action) {
		e.waitStable(ctx)
	}

	switch u.Action {
	case "click", "fill", "type":
		err = e.actWithAlternatives(ctx, u, sel)
	case "select":
		if err = e.waitForElement(ctx, sel); err == nil {
			err = e.browser.SelectOption(ctx, sel, u.Value)
		}
	case "hover":
		if err = e.waitForElement(ctx, sel); err == nil {
			err = e.browser.Hover(ctx, sel)
		}
	case "assert_text":
		err = e.assertText(ctx, sel, u.Expected)
	case "assert_element":
		err = e.assertElement(ctx, sel)
	case "wait":
		err = e.waitForElement(ctx, sel)
	default:
		err = &step.ValidationError{Field: "action", Reason: "unknown UI action " + u.Action}
	}
	if err != nil {
		return err
	}

	e.waitStable(ctx)
	return nil
}

func interactive(action string) bool {
	switch action {
	case "click", "fill", "type", "select", "hover":
		return true
	}
	return false
}

// selector picks a healed selector, the stored locator, then the step's own
// selector, then a text heuristic. It returns "" when none applies.
func (e *Executor) selector(ctx context.Context, u step.UIStep, s step.Step) string {
	if sel, ok := e.healedSelector(u.Key); ok {
		return sel
	}
	if e.locators != nil {
		stored, err := e.locators.GetActive(ctx, locator.ContextUI, u.Key)
		if err != nil {
			logging.Warn("UIExecutor", "Failed to read stored locator for %q: %v", u.Key, err)
		} else if stored != nil {
			return selectorFor(*stored)
		}
	}
	if u.Selector != "" {
		return u.Selector
	}
	if hint := s.StringOr("text", "label", "value"); hint != "" {
		return "text=" + hint
	}
	return ""
}

// resolve is selector plus a translator suggestion, which is stored as the
// new active locator.
func (e *Executor) resolve(ctx context.Context, u step.UIStep, s step.Step) (string, error) {
	if sel := e.selector(ctx, u, s); sel != "" {
		return sel, nil
	}
	if e.suggester != nil {
		if sel, ok := e.suggester.SuggestLocator(ctx, s.Canonical()); ok {
			if e.locators != nil {
				if _, err := e.locators.SetActive(ctx, locator.ContextUI, u.Key, locator.Locator{Type: "css", Value: sel}); err != nil {
					logging.Warn("UIExecutor", "Failed to store suggested locator for %q: %v", u.Key, err)
				}
			}
			logging.Info("UIExecutor", "Using suggested selector %s for %q", sel, u.Key)
			return sel, nil
		}
	}
	return "", &step.ValidationError{Field: "target", Reason: "no selector could be resolved"}
}

func (e *Executor) act(ctx context.Context, u step.UIStep, sel string) error {
	switch u.Action {
	case "click":
		return e.browser.Click(ctx, sel)
	case "fill":
		return e.browser.Fill(ctx, sel, u.Value)
	case "type":
		return e.browser.Type(ctx, sel, u.Value)
	}
	return fmt.Errorf("action %s cannot be healed", u.Action)
}

func (e *Executor) actWithAlternatives(ctx context.Context, u step.UIStep, sel string) error {
	err := e.waitForElement(ctx, sel)
	if err == nil {
		if err = e.act(ctx, u, sel); err == nil {
			return nil
		}
	}

	logging.Warn("UIExecutor", "%s failed for %s: %v", u.Action, sel, err)
	for _, alt := range Alternatives(sel) {
		if ctx.Err() != nil {
			break
		}
		if e.act(ctx, u, alt) == nil {
			logging.Info("UIExecutor", "%s succeeded with alternative selector %s", u.Action, alt)
			e.setHealed(u.Key, alt)
			return nil
		}
	}
	return &step.TransportError{Op: u.Action + " " + sel, Err: err}
}

func (e *Executor) waitForElement(ctx context.Context, sel string) error {
	if err := e.browser.WaitForSelector(ctx, sel, capability.StateVisible, e.opts.Timeout); err != nil {
		return fmt.Errorf("element %s not visible: %w", sel, err)
	}
	e.waitStable(ctx)
	return nil
}

func (e *Executor) assertText(ctx context.Context, sel, expected string) error {
	if err := e.waitForElement(ctx, sel); err != nil {
		return err
	}
	actual, err := e.browser.TextContent(ctx, sel)
	if err != nil {
		return &step.TransportError{Op: "text of " + sel, Err: err}
	}
	if !strings.Contains(actual, expected) {
		return &step.AssertionError{What: "text containing", Expected: fmt.Sprintf("%q", expected), Actual: fmt.Sprintf("%q", actual)}
	}
	return nil
}

func (e *Executor) assertElement(ctx context.Context, sel string) error {
	if err := e.waitForElement(ctx, sel); err != nil {
		return err
	}
	visible, err := e.browser.IsVisible(ctx, sel)
	if err != nil {
		return &step.TransportError{Op: "visibility of " + sel, Err: err}
	}
	if !visible {
		return &step.AssertionError{What: "element " + sel + " visible", Expected: true, Actual: false}
	}
	return nil
}

func (e *Executor) waitStable(ctx context.Context) {
	if e.gate != nil {
		e.gate.WaitUI(ctx, e.browser)
	}
}

func (e *Executor) attachScreenshot(ctx context.Context, name string) {
	shot, err := e.browser.Screenshot(ctx)
	if err != nil {
		logging.Warn("UIExecutor", "Screenshot failed: %v", err)
		return
	}
	reporting.EvidenceFrom(ctx).AttachBytes(name, reporting.MIMEPNG, shot)
}

// AttemptRecovery retries click, fill and type with alternative selectors
// and then with one translator suggestion. The winner becomes the selector
// for the step key on this executor; unlike a suggestion made during
// resolution it is not stored in the locator store.
func (e *Executor) AttemptRecovery(ctx context.Context, s step.Step, cause error) bool {
	if !e.opts.SelfHeal {
		return false
	}
	u, err := step.ParseUI(s)
	if err != nil {
		return false
	}
	switch u.Action {
	case "click", "fill", "type":
	default:
		return false
	}

	sel := e.selector(ctx, u, s)
	logging.Info("UIExecutor", "Attempting self-healing for %s %s", u.Action, sel)

	if sel != "" {
		for _, alt := range Alternatives(sel) {
			if ctx.Err() != nil {
				return false
			}
			if e.act(ctx, u, alt) == nil {
				logging.Info("UIExecutor", "Self-healing succeeded with selector %s", alt)
				e.setHealed(u.Key, alt)
				return true
			}
		}
	}

	if !e.opts.AIRecovery || e.suggester == nil {
		return false
	}
	description := fmt.Sprintf("%s failed on selector %q: %v. Step: %s", u.Action, sel, cause, s.Canonical())
	suggestion, ok := e.suggester.SuggestLocator(ctx, description)
	if !ok {
		return false
	}
	if err := e.act(ctx, u, suggestion); err != nil {
		logging.Debug("UIExecutor", "Suggested selector %s failed: %v", suggestion, err)
		return false
	}
	logging.Info("UIExecutor", "AI-assisted self-healing succeeded with selector %s", suggestion)
	e.setHealed(u.Key, suggestion)
	return true
}

func (e *Executor) healedSelector(key string) (string, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	sel, ok := e.healed[key]
	return sel, ok
}

func (e *Executor) setHealed(key, sel string) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.healed[key] = sel
}
