// Package versioning keeps an append-only history of test case collections
// per user story and scores how much each version differs from the last.
package versioning

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"testctl/internal/testcase"
	"testctl/pkg/logging"
)

// ErrVersionNotFound is returned for an unknown version ID.
var ErrVersionNotFound = errors.New("test set version not found")

// Version is one stored snapshot, without its cases.
type Version struct {
	ID         int64     `json:"id"`
	UserStory  string    `json:"user_story"`
	Number     int       `json:"version_number"`
	Author     string    `json:"author"`
	Timestamp  time.Time `json:"timestamp"`
	Similarity float64   `json:"similarity"`
}

// Diff matches cases by identifier. Each list is sorted.
type Diff struct {
	Added     []string `json:"added"`
	Removed   []string `json:"removed"`
	Unchanged []string `json:"unchanged"`
}

// AddResult is what AddVersion stored and how it relates to the previous
// version.
type AddResult struct {
	Version
	Diff Diff `json:"diff"`
}

// Comparison relates two stored versions.
type Comparison struct {
	From       Version `json:"from"`
	To         Version `json:"to"`
	Similarity float64 `json:"similarity"`
	Diff       Diff    `json:"diff"`
}

// Manager stores test set versions in the shared database.
type Manager struct {
	db        *sql.DB
	scorer    *Scorer
	threshold float64

	mu  sync.Mutex
	now func() time.Time
}

// NewManager creates a manager. Similarity at or above threshold is logged
// as a warning; it never prevents a write.
func NewManager(db *sql.DB, scorer *Scorer, threshold float64) *Manager {
	if scorer == nil {
		scorer = NewScorer(MethodSequence, nil)
	}
	return &Manager{db: db, scorer: scorer, threshold: threshold, now: time.Now}
}

// AddVersion stores cases as the next version of userStory. It always
// writes, even when nothing changed.
func (m *Manager) AddVersion(ctx context.Context, userStory string, cases []testcase.TestCase, author string) (AddResult, error) {
	if userStory == "" {
		return AddResult{}, fmt.Errorf("user story is required")
	}
	snapshot, err := json.Marshal(nonNil(cases))
	if err != nil {
		return AddResult{}, fmt.Errorf("failed to encode test cases: %w", err)
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	tx, err := m.db.BeginTx(ctx, nil)
	if err != nil {
		return AddResult{}, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	var (
		prevNumber   int
		prevSnapshot string
	)
	err = tx.QueryRowContext(ctx,
		"SELECT version_number, test_cases_snapshot FROM test_set_versions WHERE user_story = ? ORDER BY version_number DESC LIMIT 1",
		userStory,
	).Scan(&prevNumber, &prevSnapshot)
	if err != nil && err != sql.ErrNoRows {
		return AddResult{}, fmt.Errorf("failed to read latest version: %w", err)
	}
	first := err == sql.ErrNoRows

	var prev []testcase.TestCase
	if !first {
		if err := json.Unmarshal([]byte(prevSnapshot), &prev); err != nil {
			return AddResult{}, fmt.Errorf("failed to decode version %d: %w", prevNumber, err)
		}
	}

	res := AddResult{
		Version: Version{
			UserStory: userStory,
			Number:    prevNumber + 1,
			Author:    author,
			Timestamp: m.now(),
		},
		Diff: diff(prev, cases),
	}
	if !first {
		res.Similarity = m.scorer.Compare(ctx, caseTexts(prev), caseTexts(cases))
	}

	r, err := tx.ExecContext(ctx,
		`INSERT INTO test_set_versions (user_story, version_number, author, timestamp, similarity, test_cases_snapshot)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		userStory, res.Number, author, res.Timestamp, res.Similarity, string(snapshot),
	)
	if err != nil {
		return AddResult{}, fmt.Errorf("failed to insert version: %w", err)
	}
	if res.ID, err = r.LastInsertId(); err != nil {
		return AddResult{}, fmt.Errorf("failed to read version id: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return AddResult{}, fmt.Errorf("failed to commit version: %w", err)
	}

	if !first && res.Similarity >= m.threshold {
		logging.Warn("Versioning", "Version %d of %q is %.0f%% similar to version %d", res.Number, userStory, res.Similarity*100, prevNumber)
	}
	logging.Info("Versioning", "Stored version %d of %q (%d cases, +%d -%d)", res.Number, userStory, len(cases), len(res.Diff.Added), len(res.Diff.Removed))
	return res, nil
}

// ListVersions returns every version of userStory, oldest first.
func (m *Manager) ListVersions(ctx context.Context, userStory string) ([]Version, error) {
	rows, err := m.db.QueryContext(ctx,
		`SELECT id, user_story, version_number, author, timestamp, similarity
		 FROM test_set_versions WHERE user_story = ? ORDER BY version_number ASC`,
		userStory,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list versions: %w", err)
	}
	defer rows.Close()

	var out []Version
	for rows.Next() {
		var v Version
		if err := rows.Scan(&v.ID, &v.UserStory, &v.Number, &v.Author, &v.Timestamp, &v.Similarity); err != nil {
			return nil, fmt.Errorf("failed to scan version: %w", err)
		}
		out = append(out, v)
	}
	return out, rows.Err()
}

// GetTestCases returns the snapshot stored with a version.
func (m *Manager) GetTestCases(ctx context.Context, versionID int64) ([]testcase.TestCase, error) {
	_, cases, err := m.get(ctx, versionID)
	return cases, err
}

// CompareVersions scores and diffs version a against version b.
func (m *Manager) CompareVersions(ctx context.Context, a, b int64) (Comparison, error) {
	va, ca, err := m.get(ctx, a)
	if err != nil {
		return Comparison{}, err
	}
	vb, cb, err := m.get(ctx, b)
	if err != nil {
		return Comparison{}, err
	}
	return Comparison{
		From:       va,
		To:         vb,
		Similarity: m.scorer.Compare(ctx, caseTexts(ca), caseTexts(cb)),
		Diff:       diff(ca, cb),
	}, nil
}

func (m *Manager) get(ctx context.Context, id int64) (Version, []testcase.TestCase, error) {
	var (
		v        Version
		snapshot string
	)
	err := m.db.QueryRowContext(ctx,
		`SELECT id, user_story, version_number, author, timestamp, similarity, test_cases_snapshot
		 FROM test_set_versions WHERE id = ?`,
		id,
	).Scan(&v.ID, &v.UserStory, &v.Number, &v.Author, &v.Timestamp, &v.Similarity, &snapshot)
	if err == sql.ErrNoRows {
		return Version{}, nil, fmt.Errorf("%w: %d", ErrVersionNotFound, id)
	}
	if err != nil {
		return Version{}, nil, fmt.Errorf("failed to read version %d: %w", id, err)
	}
	var cases []testcase.TestCase
	if err := json.Unmarshal([]byte(snapshot), &cases); err != nil {
		return Version{}, nil, fmt.Errorf("failed to decode version %d: %w", id, err)
	}
	return v, cases, nil
}

func diff(old, new []testcase.TestCase) Diff {
	before := make(map[string]bool, len(old))
	for _, tc := range old {
		before[tc.Identifier] = true
	}
	after := make(map[string]bool, len(new))
	d := Diff{Added: []string{}, Removed: []string{}, Unchanged: []string{}}
	for _, tc := range new {
		if after[tc.Identifier] {
			continue
		}
		after[tc.Identifier] = true
		if before[tc.Identifier] {
			d.Unchanged = append(d.Unchanged, tc.Identifier)
		} else {
			d.Added = append(d.Added, tc.Identifier)
		}
	}
	for id := range before {
		if !after[id] {
			d.Removed = append(d.Removed, id)
		}
	}
	sort.Strings(d.Added)
	sort.Strings(d.Removed)
	sort.Strings(d.Unchanged)
	return d
}

// caseTexts serializes each case canonically. Step maps encode with sorted
// keys.
func caseTexts(cases []testcase.TestCase) []string {
	out := make([]string, 0, len(cases))
	for _, tc := range cases {
		b, err := json.Marshal(tc)
		if err != nil {
			out = append(out, tc.Identifier)
			continue
		}
		out = append(out, string(b))
	}
	return out
}

func nonNil(cases []testcase.TestCase) []testcase.TestCase {
	if cases == nil {
		return []testcase.TestCase{}
	}
	return cases
}
