// Package locator persists versioned element locators for UI and mobile
// steps. Each (context, step_key) pair has at most one active locator; new
// versions deactivate the previous one and history is never deleted.
package locator

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sync"
	"time"

	"testctl/pkg/logging"
)

// Contexts a locator can belong to.
const (
	ContextUI     = "ui"
	ContextMobile = "mobile"
)

// ErrInvalidContext is returned for contexts other than ui and mobile.
var ErrInvalidContext = errors.New("locator context must be ui or mobile")

// Locator identifies an element, e.g. {css, "#login"} or {accessibility_id, "Login"}.
type Locator struct {
	Type  string `json:"type" yaml:"type"`
	Value string `json:"value" yaml:"value"`
}

func (l Locator) String() string {
	return l.Type + "=" + l.Value
}

// Record is one stored version of a locator.
type Record struct {
	ID        int64     `json:"id"`
	Context   string    `json:"context"`
	StepKey   string    `json:"step_key"`
	Locator   Locator   `json:"locator"`
	Version   int       `json:"version"`
	Active    bool      `json:"is_active"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Store is the SQLite-backed locator repository. It is safe for concurrent
// use; writes are serialized by a mutex on top of the database transaction.
type Store struct {
	db  *sql.DB
	mu  sync.Mutex
	now func() time.Time
}

// NewStore creates a locator store over an initialized database.
func NewStore(db *sql.DB) *Store {
	return &Store{db: db, now: time.Now}
}

func validContext(c string) error {
	if c != ContextUI && c != ContextMobile {
		return fmt.Errorf("%w: %q", ErrInvalidContext, c)
	}
	return nil
}

// GetActive returns the active locator for the key, or nil when none exists.
func (s *Store) GetActive(ctx context.Context, locContext, stepKey string) (*Locator, error) {
	if err := validContext(locContext); err != nil {
		return nil, err
	}
	var loc Locator
	err := s.db.QueryRowContext(ctx,
		"SELECT locator_type, locator_value FROM locators WHERE context = ? AND step_key = ? AND is_active = 1",
		locContext, stepKey,
	).Scan(&loc.Type, &loc.Value)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get active locator: %w", err)
	}
	return &loc, nil
}

// SetActive stores loc as the new active version for the key and returns
// its version number.
func (s *Store) SetActive(ctx context.Context, locContext, stepKey string, loc Locator) (int, error) {
	if err := validContext(locContext); err != nil {
		return 0, err
	}
	if loc.Value == "" {
		return 0, fmt.Errorf("locator value must not be empty")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	var maxVersion sql.NullInt64
	err = tx.QueryRowContext(ctx,
		"SELECT MAX(version) FROM locators WHERE context = ? AND step_key = ?",
		locContext, stepKey,
	).Scan(&maxVersion)
	if err != nil {
		return 0, fmt.Errorf("failed to read locator version: %w", err)
	}

	now := s.now()
	if _, err := tx.ExecContext(ctx,
		"UPDATE locators SET is_active = 0, updated_at = ? WHERE context = ? AND step_key = ? AND is_active = 1",
		now, locContext, stepKey,
	); err != nil {
		return 0, fmt.Errorf("failed to deactivate locator: %w", err)
	}

	version := int(maxVersion.Int64) + 1
	if _, err := tx.ExecContext(ctx,
		`INSERT INTO locators (context, step_key, locator_type, locator_value, version, is_active, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, 1, ?, ?)`,
		locContext, stepKey, loc.Type, loc.Value, version, now, now,
	); err != nil {
		return 0, fmt.Errorf("failed to insert locator: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("failed to commit locator: %w", err)
	}

	logging.Debug("LocatorStore", "Stored %s locator %s for %q as version %d", locContext, loc, stepKey, version)
	return version, nil
}

// History returns every version for the key, newest first.
func (s *Store) History(ctx context.Context, locContext, stepKey string) ([]Record, error) {
	if err := validContext(locContext); err != nil {
		return nil, err
	}
	return s.query(ctx,
		`SELECT id, context, step_key, locator_type, locator_value, version, is_active, created_at, updated_at
		 FROM locators WHERE context = ? AND step_key = ? ORDER BY version DESC`,
		locContext, stepKey,
	)
}

// List returns the active locators of a context ordered by step key.
func (s *Store) List(ctx context.Context, locContext string) ([]Record, error) {
	if err := validContext(locContext); err != nil {
		return nil, err
	}
	return s.query(ctx,
		`SELECT id, context, step_key, locator_type, locator_value, version, is_active, created_at, updated_at
		 FROM locators WHERE context = ? AND is_active = 1 ORDER BY step_key ASC`,
		locContext,
	)
}

func (s *Store) query(ctx context.Context, q string, args ...interface{}) ([]Record, error) {
	rows, err := s.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list locators: %w", err)
	}
	defer rows.Close()

	var records []Record
	for rows.Next() {
		var r Record
		if err := rows.Scan(&r.ID, &r.Context, &r.StepKey, &r.Locator.Type, &r.Locator.Value,
			&r.Version, &r.Active, &r.CreatedAt, &r.UpdatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan locator: %w", err)
		}
		records = append(records, r)
	}
	return records, rows.Err()
}
