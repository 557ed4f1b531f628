// Package storagetest provides a schema-initialized in-memory database for
// tests.
package storagetest

import (
	"database/sql"
	"testing"

	"testctl/internal/storage"
)

// Open returns a fresh in-memory database closed on test cleanup.
func Open(t *testing.T) *sql.DB {
	t.Helper()

	db, err := storage.Open(storage.MemoryPath)
	if err != nil {
		t.Fatalf("failed to open test db: %v", err)
	}
	t.Cleanup(func() {
		db.Close()
	})
	return db
}
