// Package mobile executes mobile app steps against a capability.MobileDriver.
package mobile

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"testctl/internal/capability"
	"testctl/internal/executor"
	"testctl/internal/locator"
	"testctl/internal/reporting"
	"testctl/internal/step"
	"testctl/pkg/logging"
)

// Gate waits until the app is stable.
type Gate interface {
	WaitMobile(ctx context.Context, d capability.MobileDriver)
}

var strategies = map[string]string{
	"id":                  "id",
	"accessibility_id":    "accessibility id",
	"xpath":               "xpath",
	"class_chain":         "-ios class chain",
	"android_uiautomator": "-android uiautomator",
}

// Strategy maps a stored or step locator type to a driver strategy. Unknown
// types pass through unchanged.
func Strategy(locType string) string {
	if s, ok := strategies[strings.ToLower(locType)]; ok {
		return s
	}
	return locType
}

// Executor runs mobile steps in one driver session.
type Executor struct {
	driver   capability.MobileDriver
	locators executor.LocatorStore
	gate     Gate
	timeout  time.Duration
}

var _ executor.Executor = (*Executor)(nil)

// New creates a mobile executor. gate may be nil.
func New(d capability.MobileDriver, locators executor.LocatorStore, gate Gate, timeout time.Duration) *Executor {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &Executor{driver: d, locators: locators, gate: gate, timeout: timeout}
}

func (e *Executor) Kind() step.Kind { return step.KindMobile }

func (e *Executor) Close() error { return nil }

type candidate struct {
	loc    *locator.Locator
	coords bool
}

func (c candidate) String() string {
	if c.coords {
		return "coordinates"
	}
	return c.loc.String()
}

// ExecuteStep runs one mobile step.
func (e *Executor) ExecuteStep(ctx context.Context, s step.Step) error {
	m, err := step.ParseMobile(s)
	if err != nil {
		return err
	}
	logging.Debug("MobileExecutor", "Executing %s %s", m.Action, m.Key)

	switch m.Action {
	case "swipe":
		d := time.Duration(m.Duration) * time.Millisecond
		if err := e.driver.Swipe(ctx, m.Start[0], m.Start[1], m.End[0], m.End[1], d); err != nil {
			return &step.TransportError{Op: "swipe", Err: err}
		}
		return nil
	case "tap_coordinates":
		if err := e.driver.Tap(ctx, m.X, m.Y); err != nil {
			return &step.TransportError{Op: fmt.Sprintf("tap %d,%d", m.X, m.Y), Err: err}
		}
		return nil
	}

	stored := e.stored(ctx, m.Key)
	var lastErr error
	for _, c := range e.candidates(m, stored) {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		err := e.try(ctx, m, c)
		if err == nil {
			if !c.coords && (stored == nil || *stored != *c.loc) {
				e.persist(ctx, m.Key, *c.loc)
			}
			return nil
		}
		var assertion *step.AssertionError
		if errors.As(err, &assertion) {
			return err
		}
		logging.Debug("MobileExecutor", "Candidate %s failed: %v", c, err)
		lastErr = err
	}
	if lastErr == nil {
		return &step.ValidationError{Field: "locator", Reason: "no locator could be resolved"}
	}
	return &step.TransportError{Op: m.Action + " " + m.Key, Err: lastErr}
}

func (e *Executor) stored(ctx context.Context, key string) *locator.Locator {
	if e.locators == nil {
		return nil
	}
	loc, err := e.locators.GetActive(ctx, locator.ContextMobile, key)
	if err != nil {
		logging.Warn("MobileExecutor", "Failed to read stored locator for %q: %v", key, err)
		return nil
	}
	return loc
}

func (e *Executor) persist(ctx context.Context, key string, loc locator.Locator) {
	if e.locators == nil {
		return
	}
	if _, err := e.locators.SetActive(ctx, locator.ContextMobile, key, loc); err != nil {
		logging.Warn("MobileExecutor", "Failed to store locator for %q: %v", key, err)
	}
}

func (e *Executor) candidates(m step.MobileStep, stored *locator.Locator) []candidate {
	var out []candidate
	if stored != nil {
		out = append(out, candidate{loc: stored})
	}
	if m.Locator != nil && (stored == nil || *stored != *m.Locator) {
		out = append(out, candidate{loc: m.Locator})
	}
	if m.HasCoords && (m.Action == "tap" || m.Action == "send_keys") {
		out = append(out, candidate{coords: true})
	}
	return out
}

func (e *Executor) try(ctx context.Context, m step.MobileStep, c candidate) error {
	if e.gate != nil {
		e.gate.WaitMobile(ctx, e.driver)
	}
	if c.coords {
		return e.driver.Tap(ctx, m.X, m.Y)
	}

	by := Strategy(c.loc.Type)
	if err := e.driver.WaitForElement(ctx, by, c.loc.Value, capability.StateVisible, e.timeout); err != nil {
		return err
	}
	el, err := e.driver.FindElement(ctx, by, c.loc.Value)
	if err != nil {
		return err
	}

	switch m.Action {
	case "tap":
		return el.Click(ctx)
	case "send_keys":
		return el.SendKeys(ctx, m.Text)
	case "assert_text":
		actual, err := el.Text(ctx)
		if err != nil {
			return err
		}
		if !strings.Contains(actual, m.Text) {
			return &step.AssertionError{What: "text containing", Expected: fmt.Sprintf("%q", m.Text), Actual: fmt.Sprintf("%q", actual)}
		}
		return nil
	}
	return fmt.Errorf("unsupported mobile action %s", m.Action)
}

// AttemptRecovery taps the coordinates of a tap or send_keys step when it
// has them. Otherwise it captures a screenshot as evidence and declines.
func (e *Executor) AttemptRecovery(ctx context.Context, s step.Step, cause error) bool {
	x, okX := s.Int("x")
	y, okY := s.Int("y")
	if action := s.Action(); okX && okY && (action == "tap" || action == "send_keys" || action == "fill") {
		if err := e.driver.Tap(ctx, x, y); err != nil {
			logging.Debug("MobileExecutor", "Coordinate recovery failed: %v", err)
			return false
		}
		logging.Info("MobileExecutor", "Recovered by tapping %d,%d", x, y)
		return true
	}

	shot, err := e.driver.Screenshot(ctx)
	if err != nil {
		logging.Warn("MobileExecutor", "Screenshot failed: %v", err)
		return false
	}
	reporting.EvidenceFrom(ctx).AttachBytes("mobile_failure_screenshot", reporting.MIMEPNG, shot)
	return false
}
