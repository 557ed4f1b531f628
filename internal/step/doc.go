// Package step defines the generic step envelope, its per-backend variants,
// the locator step key and the error taxonomy shared by the engine and the
// executors.
//
// A Step is parsed into a UIStep, MobileStep, APIStep or SQLStep at dispatch
// time. Missing or unusable fields produce a *ValidationError, which the
// engine records as skipped without retrying.
package step
