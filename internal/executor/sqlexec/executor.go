// Package sqlexec executes SQL steps against the database under test.
package sqlexec

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	_ "github.com/lib/pq"
	_ "github.com/mattn/go-sqlite3"

	"testctl/internal/config"
	"testctl/internal/executor"
	"testctl/internal/reporting"
	"testctl/internal/step"
	"testctl/internal/translator"
	"testctl/pkg/logging"
)

// Driver names accepted in sql.driver.
const (
	DriverSQLite   = "sqlite3"
	DriverPostgres = "postgres"
)

// Translator turns a command into a statement.
type Translator interface {
	TranslateSQL(ctx context.Context, command string) translator.SQLStatement
}

// Executor runs SQL steps on one database handle.
type Executor struct {
	executor.NoRecovery

	db         *sql.DB
	driver     string
	translator Translator
	owned      bool
}

var _ executor.Executor = (*Executor)(nil)

// New wraps an existing handle. The caller keeps ownership of db.
func New(db *sql.DB, driver string, tr Translator) *Executor {
	return &Executor{db: db, driver: normalizeDriver(driver), translator: tr}
}

// Open connects to the database named by cfg. The executor closes it.
func Open(ctx context.Context, cfg config.SQLConfig, tr Translator) (*Executor, error) {
	driver := normalizeDriver(cfg.Driver)
	switch driver {
	case DriverSQLite, DriverPostgres:
	default:
		return nil, fmt.Errorf("unsupported sql driver %q", cfg.Driver)
	}

	db, err := sql.Open(driver, cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("failed to open %s database: %w", driver, err)
	}
	if driver == DriverSQLite {
		db.SetMaxOpenConns(1)
	}
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to reach %s database: %w", driver, err)
	}
	logging.Info("SQLExecutor", "Connected to %s database", driver)

	e := New(db, driver, tr)
	e.owned = true
	return e, nil
}

func normalizeDriver(d string) string {
	switch strings.ToLower(strings.TrimSpace(d)) {
	case "", "sqlite", "sqlite3":
		return DriverSQLite
	case "postgres", "postgresql", "pq":
		return DriverPostgres
	}
	return d
}

func (e *Executor) Kind() step.Kind { return step.KindSQL }

func (e *Executor) Close() error {
	if e.owned {
		return e.db.Close()
	}
	return nil
}

func (e *Executor) bind(query string) string {
	if e.driver == DriverPostgres {
		return translator.Rebind(query)
	}
	return query
}

// ExecuteStep translates the command, runs it and checks its assertion.
func (e *Executor) ExecuteStep(ctx context.Context, s step.Step) error {
	q, err := step.ParseSQL(s)
	if err != nil {
		return err
	}

	stmt := e.translator.TranslateSQL(ctx, q.Command)
	ev := reporting.EvidenceFrom(ctx)
	ev.AttachText("sql_statement", stmt.SQL)
	logging.Debug("SQLExecutor", "Running %s", stmt.SQL)

	if isQuery(stmt.SQL) {
		n, err := e.countRows(ctx, stmt.SQL, stmt.Args)
		if err != nil {
			return &step.TransportError{Op: "query", Err: err}
		}
		ev.AttachText("sql_result", fmt.Sprintf("%d row(s)", n))
	} else {
		res, err := e.db.ExecContext(ctx, e.bind(stmt.SQL), stmt.Args...)
		if err != nil {
			return &step.TransportError{Op: "exec", Err: err}
		}
		if n, err := res.RowsAffected(); err == nil {
			ev.AttachText("sql_result", fmt.Sprintf("%d row(s) affected", n))
		}
	}

	if stmt.Assertion == nil {
		return nil
	}
	return e.check(ctx, *stmt.Assertion)
}

func (e *Executor) check(ctx context.Context, a translator.Assertion) error {
	var count int64
	if err := e.db.QueryRowContext(ctx, e.bind(a.Query), a.Args...).Scan(&count); err != nil {
		return &step.TransportError{Op: "assertion query", Err: err}
	}
	switch a.Expect {
	case translator.CountPositive:
		if count <= 0 {
			return &step.AssertionError{What: "row count", Expected: "> 0", Actual: count}
		}
	case translator.CountZero:
		if count != 0 {
			return &step.AssertionError{What: "row count", Expected: 0, Actual: count}
		}
	default:
		return fmt.Errorf("unknown count expectation %q", a.Expect)
	}
	return nil
}

func (e *Executor) countRows(ctx context.Context, query string, args []interface{}) (int, error) {
	rows, err := e.db.QueryContext(ctx, e.bind(query), args...)
	if err != nil {
		return 0, err
	}
	defer rows.Close()

	n := 0
	for rows.Next() {
		n++
	}
	return n, rows.Err()
}

func isQuery(sqlText string) bool {
	fields := strings.Fields(sqlText)
	if len(fields) == 0 {
		return false
	}
	switch strings.ToLower(fields[0]) {
	case "select", "with", "pragma", "show", "explain":
		return true
	}
	return false
}
