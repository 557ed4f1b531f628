package recorder

// Status is a step or run outcome.
type Status string

const (
	StatusRunning Status = "running"
	StatusPassed  Status = "passed"
	StatusFailed  Status = "failed"
	StatusPartial Status = "partial"
	StatusSkipped Status = "skipped"
)

// Terminal reports whether a run in this status is finished.
func (s Status) Terminal() bool {
	switch s {
	case StatusPassed, StatusFailed, StatusPartial, StatusSkipped:
		return true
	}
	return false
}

// Aggregate derives a run status from its step statuses. Executed steps
// are the passed plus failed ones; a run with nothing executed is skipped.
func Aggregate(steps []Status) Status {
	var passed, failed, skipped int
	for _, s := range steps {
		switch s {
		case StatusPassed:
			passed++
		case StatusFailed:
			failed++
		case StatusSkipped:
			skipped++
		}
	}

	executed := passed + failed
	switch {
	case executed == 0:
		return StatusSkipped
	case failed == 0 && skipped == 0:
		return StatusPassed
	case failed == executed:
		return StatusFailed
	default:
		return StatusPartial
	}
}
