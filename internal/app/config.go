package app

import (
	"io"
)

// Options are the per-invocation switches that are not part of the
// configuration file.
type Options struct {
	// Stub forces stub browser and mobile sessions regardless of config.
	Stub bool

	// Report writes Allure-compatible results. ReportDir overrides
	// reporting.results_dir when set.
	Report    bool
	ReportDir string

	// Console, when set, receives a line per test start and finish.
	Console io.Writer
	Verbose bool
}
