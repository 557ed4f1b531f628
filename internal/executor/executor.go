// Package executor defines the contract every backend executor fulfils.
//
// The engine calls ExecuteStep for each step and, when it fails,
// AttemptRecovery. A successful recovery means the engine retries the step
// without counting an attempt. Executors that never heal embed NoRecovery.
package executor

import (
	"context"

	"testctl/internal/step"
)

// Executor runs steps against one backend.
type Executor interface {
	Kind() step.Kind
	ExecuteStep(ctx context.Context, s step.Step) error
	AttemptRecovery(ctx context.Context, s step.Step, err error) bool
	Close() error
}

// NoRecovery provides an AttemptRecovery that always declines.
type NoRecovery struct{}

// AttemptRecovery reports false.
func (NoRecovery) AttemptRecovery(ctx context.Context, s step.Step, err error) bool {
	return false
}
