package storage

// schema is applied on every Open. Statements must stay idempotent.
const schema = `
CREATE TABLE IF NOT EXISTS test_cases (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	identifier TEXT NOT NULL,
	user_story TEXT NOT NULL DEFAULT '',
	test_set TEXT NOT NULL DEFAULT '',
	description TEXT NOT NULL DEFAULT '',
	created_by TEXT NOT NULL DEFAULT '',
	source TEXT NOT NULL DEFAULT '',
	created_at TIMESTAMP NOT NULL,
	version INTEGER NOT NULL DEFAULT 1,
	UNIQUE (identifier, user_story)
);

CREATE TABLE IF NOT EXISTS test_steps (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	test_case_id INTEGER NOT NULL,
	step_index INTEGER NOT NULL,
	action TEXT NOT NULL,
	payload TEXT NOT NULL,
	FOREIGN KEY (test_case_id) REFERENCES test_cases(id) ON DELETE CASCADE
);

CREATE TABLE IF NOT EXISTS test_runs (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	test_case_id INTEGER NOT NULL,
	status TEXT NOT NULL,
	started_at TIMESTAMP NOT NULL,
	ended_at TIMESTAMP,
	error_message TEXT,
	FOREIGN KEY (test_case_id) REFERENCES test_cases(id) ON DELETE CASCADE
);

CREATE TABLE IF NOT EXISTS run_steps (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	test_run_id INTEGER NOT NULL,
	step_index INTEGER NOT NULL,
	status TEXT NOT NULL,
	message TEXT,
	started_at TIMESTAMP NOT NULL,
	ended_at TIMESTAMP NOT NULL,
	FOREIGN KEY (test_run_id) REFERENCES test_runs(id) ON DELETE CASCADE,
	UNIQUE (test_run_id, step_index)
);

CREATE TABLE IF NOT EXISTS locators (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	context TEXT NOT NULL,
	step_key TEXT NOT NULL,
	locator_type TEXT NOT NULL,
	locator_value TEXT NOT NULL,
	version INTEGER NOT NULL,
	is_active INTEGER NOT NULL DEFAULT 1,
	created_at TIMESTAMP NOT NULL,
	updated_at TIMESTAMP NOT NULL,
	UNIQUE (context, step_key, version)
);

CREATE UNIQUE INDEX IF NOT EXISTS idx_locators_active
	ON locators(context, step_key) WHERE is_active = 1;

CREATE TABLE IF NOT EXISTS test_set_versions (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	user_story TEXT NOT NULL,
	version_number INTEGER NOT NULL,
	author TEXT NOT NULL,
	timestamp TIMESTAMP NOT NULL,
	similarity REAL NOT NULL,
	test_cases_snapshot TEXT NOT NULL,
	UNIQUE (user_story, version_number)
);
`
