package internal

import (
	"database/sql"
	"fmt"

	_ "modernc.org/sqlite"
)

// OpenDatabase opens the event store in read-only mode. The store is owned
// by the record-keeping collaborator; this tool never writes to it.
func OpenDatabase(path string) (*sql.DB, error) {
	db, err := sql.Open("sqlite", "file:"+path+"?mode=ro")
	if err != nil {
		return nil, &StorageError{Path: path, Op: "open", Err: err}
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, &StorageError{Path: path, Op: "open", Err: err}
	}

	return db, nil
}

// TableExists checks for a table in the store, used by healthcheck to
// report schema drift instead of failing on the first query.
func TableExists(db *sql.DB, name string) (bool, error) {
	var exists bool
	err := db.QueryRow(`
		SELECT EXISTS (
			SELECT name FROM sqlite_master
			WHERE type='table' AND name=?
		)
	`, name).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("failed to check for %s table: %w", name, err)
	}
	return exists, nil
}
