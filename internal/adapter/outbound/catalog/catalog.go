// Package catalog indexes saved session files in a small sqlite
// database, so the CLI can answer "what sessions have I captured"
// without re-reading every JSON file on disk.
package catalog

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"
)

// Record is one indexed session file.
type Record struct {
	Path         string
	SessionID    string
	Transport    string
	StartedAt    time.Time
	EndedAt      *time.Time
	MessageCount int
}

// Index is a sqlite-backed catalog of saved session files. Writes are
// additionally serialized with a cross-process flock on a sibling lock
// file, since two CLI invocations run as independent processes and
// sqlite's own busy-retry semantics are not relied on to settle
// concurrent Upserts (each a single INSERT ... ON CONFLICT statement).
type Index struct {
	db       *sql.DB
	lockPath string
}

// Open creates (if needed) and opens the catalog database at path.
func Open(path string) (*Index, error) {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("catalog: mkdir: %w", err)
		}
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("catalog: open: %w", err)
	}

	const schema = `
CREATE TABLE IF NOT EXISTS sessions (
	path          TEXT PRIMARY KEY,
	session_id    TEXT NOT NULL,
	transport     TEXT NOT NULL,
	started_at    DATETIME NOT NULL,
	ended_at      DATETIME,
	message_count INTEGER NOT NULL
);`
	if _, err := db.Exec(schema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("catalog: create schema: %w", err)
	}

	return &Index{db: db, lockPath: path + ".lock"}, nil
}

// Close releases the underlying database handle.
func (idx *Index) Close() error {
	return idx.db.Close()
}

// Upsert records or updates rec's entry, keyed by rec.Path.
func (idx *Index) Upsert(rec Record) error {
	unlock, err := idx.acquireLock()
	if err != nil {
		return err
	}
	defer unlock()

	const stmt = `
INSERT INTO sessions (path, session_id, transport, started_at, ended_at, message_count)
VALUES (?, ?, ?, ?, ?, ?)
ON CONFLICT(path) DO UPDATE SET
	session_id = excluded.session_id,
	transport = excluded.transport,
	started_at = excluded.started_at,
	ended_at = excluded.ended_at,
	message_count = excluded.message_count;`

	if _, err := idx.db.Exec(stmt, rec.Path, rec.SessionID, rec.Transport, rec.StartedAt, rec.EndedAt, rec.MessageCount); err != nil {
		return fmt.Errorf("catalog: upsert: %w", err)
	}
	return nil
}

// List returns every indexed session, most recently started first.
func (idx *Index) List() ([]Record, error) {
	rows, err := idx.db.Query(`SELECT path, session_id, transport, started_at, ended_at, message_count FROM sessions ORDER BY started_at DESC`)
	if err != nil {
		return nil, fmt.Errorf("catalog: list: %w", err)
	}
	defer rows.Close()

	var out []Record
	for rows.Next() {
		var rec Record
		if err := rows.Scan(&rec.Path, &rec.SessionID, &rec.Transport, &rec.StartedAt, &rec.EndedAt, &rec.MessageCount); err != nil {
			return nil, fmt.Errorf("catalog: scan: %w", err)
		}
		out = append(out, rec)
	}
	return out, rows.Err()
}

// acquireLock opens (creating if needed) the sibling lock file and
// takes an exclusive flock on it, returning a function that releases
// the lock and closes the file.
func (idx *Index) acquireLock() (func(), error) {
	f, err := os.OpenFile(idx.lockPath, os.O_CREATE|os.O_RDWR, 0o600)
	if err != nil {
		return nil, fmt.Errorf("catalog: open lock file: %w", err)
	}
	if err := flockLock(f.Fd()); err != nil {
		_ = f.Close()
		return nil, fmt.Errorf("catalog: acquire lock: %w", err)
	}
	return func() {
		_ = flockUnlock(f.Fd())
		_ = f.Close()
	}, nil
}
