package executor

import (
	"context"

	"testctl/internal/locator"
)

// LocatorStore is the part of the locator store executors use.
type LocatorStore interface {
	GetActive(ctx context.Context, locContext, stepKey string) (*locator.Locator, error)
	SetActive(ctx context.Context, locContext, stepKey string, loc locator.Locator) (int, error)
}

// LocatorSuggester proposes a selector for a described element.
type LocatorSuggester interface {
	SuggestLocator(ctx context.Context, description string) (string, bool)
}
