// Package recorder persists test cases, runs and per-step results.
//
// A run is created in the running state and moved exactly once to a
// terminal state by FinishRun. Step results are append-only; recording the
// same step index twice for a run is an error.
package recorder

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"testctl/internal/testcase"
	"testctl/pkg/logging"
)

// ErrRunNotFound is returned when a run id does not exist.
var ErrRunNotFound = errors.New("run not found")

// ErrRunFinished is returned when finishing a run that is already terminal.
var ErrRunFinished = errors.New("run already finished")

// StepResult is the outcome of one executed step.
type StepResult struct {
	Index     int       `json:"index"`
	Status    Status    `json:"status"`
	Message   string    `json:"message,omitempty"`
	StartedAt time.Time `json:"started_at"`
	EndedAt   time.Time `json:"ended_at"`
}

// Run is one execution of a test case.
type Run struct {
	ID           int64      `json:"id"`
	TestCaseID   int64      `json:"test_case_id"`
	Status       Status     `json:"status"`
	StartedAt    time.Time  `json:"started_at"`
	EndedAt      *time.Time `json:"ended_at,omitempty"`
	ErrorMessage string     `json:"error_message,omitempty"`
}

// Recorder writes runs and step results to the shared database.
type Recorder struct {
	db  *sql.DB
	mu  sync.Mutex
	now func() time.Time
}

// New creates a recorder over an initialized database.
func New(db *sql.DB) *Recorder {
	return &Recorder{db: db, now: time.Now}
}

// SaveTestCase inserts the case, or replaces its steps and metadata if a
// case with the same identifier and user story exists. It returns the row id.
func (r *Recorder) SaveTestCase(ctx context.Context, tc testcase.TestCase) (int64, error) {
	if tc.Identifier == "" {
		return 0, fmt.Errorf("test case identifier is required")
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	var id int64
	err = tx.QueryRowContext(ctx,
		"SELECT id FROM test_cases WHERE identifier = ? AND user_story = ?",
		tc.Identifier, tc.UserStory,
	).Scan(&id)
	switch {
	case err == sql.ErrNoRows:
		res, err := tx.ExecContext(ctx,
			`INSERT INTO test_cases (identifier, user_story, test_set, description, created_by, source, created_at)
			 VALUES (?, ?, ?, ?, ?, ?, ?)`,
			tc.Identifier, tc.UserStory, tc.TestSet, tc.Description, tc.CreatedBy, tc.Source, r.now(),
		)
		if err != nil {
			return 0, fmt.Errorf("failed to insert test case: %w", err)
		}
		if id, err = res.LastInsertId(); err != nil {
			return 0, fmt.Errorf("failed to read test case id: %w", err)
		}
	case err != nil:
		return 0, fmt.Errorf("failed to look up test case: %w", err)
	default:
		if _, err := tx.ExecContext(ctx,
			"UPDATE test_cases SET test_set = ?, description = ?, created_by = ?, source = ?, version = version + 1 WHERE id = ?",
			tc.TestSet, tc.Description, tc.CreatedBy, tc.Source, id,
		); err != nil {
			return 0, fmt.Errorf("failed to update test case: %w", err)
		}
		if _, err := tx.ExecContext(ctx, "DELETE FROM test_steps WHERE test_case_id = ?", id); err != nil {
			return 0, fmt.Errorf("failed to clear test steps: %w", err)
		}
	}

	for i, s := range tc.Steps {
		payload, err := json.Marshal(s)
		if err != nil {
			return 0, fmt.Errorf("failed to encode step %d: %w", i, err)
		}
		if _, err := tx.ExecContext(ctx,
			"INSERT INTO test_steps (test_case_id, step_index, action, payload) VALUES (?, ?, ?, ?)",
			id, i, s.Action(), string(payload),
		); err != nil {
			return 0, fmt.Errorf("failed to insert step %d: %w", i, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("failed to commit test case: %w", err)
	}
	return id, nil
}

// StartRun creates a run in the running state.
func (r *Recorder) StartRun(ctx context.Context, caseID int64) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	res, err := r.db.ExecContext(ctx,
		"INSERT INTO test_runs (test_case_id, status, started_at) VALUES (?, ?, ?)",
		caseID, StatusRunning, r.now(),
	)
	if err != nil {
		return 0, fmt.Errorf("failed to start run: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("failed to read run id: %w", err)
	}
	logging.Debug("Recorder", "Started run %d for test case %d", id, caseID)
	return id, nil
}

// RecordStep appends a step result to a run.
func (r *Recorder) RecordStep(ctx context.Context, runID int64, res StepResult) error {
	if !res.Status.Terminal() || res.Status == StatusPartial {
		return fmt.Errorf("invalid step status %q", res.Status)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	var msg interface{}
	if res.Message != "" {
		msg = res.Message
	}
	if _, err := r.db.ExecContext(ctx,
		`INSERT INTO run_steps (test_run_id, step_index, status, message, started_at, ended_at)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		runID, res.Index, res.Status, msg, res.StartedAt, res.EndedAt,
	); err != nil {
		return fmt.Errorf("failed to record step %d of run %d: %w", res.Index, runID, err)
	}
	return nil
}

// FinishRun moves a running run to its terminal status.
func (r *Recorder) FinishRun(ctx context.Context, runID int64, status Status, errMsg string) error {
	if !status.Terminal() {
		return fmt.Errorf("invalid run status %q", status)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	var msg interface{}
	if errMsg != "" {
		msg = errMsg
	}
	res, err := r.db.ExecContext(ctx,
		"UPDATE test_runs SET status = ?, ended_at = ?, error_message = ? WHERE id = ? AND status = ?",
		status, r.now(), msg, runID, StatusRunning,
	)
	if err != nil {
		return fmt.Errorf("failed to finish run %d: %w", runID, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		var exists int
		if err := r.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM test_runs WHERE id = ?", runID).Scan(&exists); err != nil {
			return fmt.Errorf("failed to check run %d: %w", runID, err)
		}
		if exists == 0 {
			return fmt.Errorf("%w: %d", ErrRunNotFound, runID)
		}
		return fmt.Errorf("%w: %d", ErrRunFinished, runID)
	}
	logging.Debug("Recorder", "Finished run %d as %s", runID, status)
	return nil
}

// GetRun returns a run by id.
func (r *Recorder) GetRun(ctx context.Context, runID int64) (Run, error) {
	runs, err := r.queryRuns(ctx,
		"SELECT id, test_case_id, status, started_at, ended_at, error_message FROM test_runs WHERE id = ?", runID)
	if err != nil {
		return Run{}, err
	}
	if len(runs) == 0 {
		return Run{}, fmt.Errorf("%w: %d", ErrRunNotFound, runID)
	}
	return runs[0], nil
}

// ListRuns returns the runs of a test case, oldest first.
func (r *Recorder) ListRuns(ctx context.Context, caseID int64) ([]Run, error) {
	return r.queryRuns(ctx,
		"SELECT id, test_case_id, status, started_at, ended_at, error_message FROM test_runs WHERE test_case_id = ? ORDER BY id ASC",
		caseID)
}

// ListSteps returns the step results of a run ordered by step index.
func (r *Recorder) ListSteps(ctx context.Context, runID int64) ([]StepResult, error) {
	rows, err := r.db.QueryContext(ctx,
		"SELECT step_index, status, message, started_at, ended_at FROM run_steps WHERE test_run_id = ? ORDER BY step_index ASC",
		runID)
	if err != nil {
		return nil, fmt.Errorf("failed to list steps: %w", err)
	}
	defer rows.Close()

	var results []StepResult
	for rows.Next() {
		var (
			res StepResult
			msg sql.NullString
		)
		if err := rows.Scan(&res.Index, &res.Status, &msg, &res.StartedAt, &res.EndedAt); err != nil {
			return nil, fmt.Errorf("failed to scan step: %w", err)
		}
		res.Message = msg.String
		results = append(results, res)
	}
	return results, rows.Err()
}

func (r *Recorder) queryRuns(ctx context.Context, q string, args ...interface{}) ([]Run, error) {
	rows, err := r.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query runs: %w", err)
	}
	defer rows.Close()

	var runs []Run
	for rows.Next() {
		var (
			run   Run
			ended sql.NullTime
			msg   sql.NullString
		)
		if err := rows.Scan(&run.ID, &run.TestCaseID, &run.Status, &run.StartedAt, &ended, &msg); err != nil {
			return nil, fmt.Errorf("failed to scan run: %w", err)
		}
		if ended.Valid {
			t := ended.Time
			run.EndedAt = &t
		}
		run.ErrorMessage = msg.String
		runs = append(runs, run)
	}
	return runs, rows.Err()
}
