package rundb

import (
	"database/sql"
	"time"

	_ "modernc.org/sqlite"
)

// Catalog indexes completed runs in a sqlite database so they can be
// found without walking run directories.
type Catalog struct {
	*sql.DB
}

// NewCatalog opens (or creates) the catalog database at path.
func NewCatalog(path string) (*Catalog, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}

	_, err = db.Exec(`
		CREATE TABLE IF NOT EXISTS runs (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			basedir TEXT,
			run_id INTEGER,
			name TEXT,
			started TIMESTAMP,
			finished TIMESTAMP,
			interrupted BOOLEAN,
			notes TEXT
		);
	`)
	if err != nil {
		db.Close()
		return nil, err
	}

	return &Catalog{db}, nil
}

// Run is one catalog entry.
type Run struct {
	ID          int64
	Basedir     string
	RunID       int
	Name        string
	Started     time.Time
	Finished    time.Time
	Interrupted bool
	Notes       string
}

// RecordRun inserts a completed run into the catalog.
func (c *Catalog) RecordRun(r Run) error {
	_, err := c.Exec(
		"INSERT INTO runs (basedir, run_id, name, started, finished, interrupted, notes) VALUES (?, ?, ?, ?, ?, ?, ?)",
		r.Basedir, r.RunID, r.Name, r.Started, r.Finished, r.Interrupted, r.Notes,
	)
	return err
}

// ListRuns returns the most recently started runs, newest first.
func (c *Catalog) ListRuns(limit int) ([]Run, error) {
	rows, err := c.Query(
		"SELECT id, basedir, run_id, name, started, finished, interrupted, notes FROM runs ORDER BY started DESC LIMIT ?",
		limit,
	)
	if err != nil {
		return nil, err
	}
	return scanRuns(rows)
}

// RunsMatching returns runs whose notes contain the given substring,
// newest first.
func (c *Catalog) RunsMatching(substr string) ([]Run, error) {
	rows, err := c.Query(
		"SELECT id, basedir, run_id, name, started, finished, interrupted, notes FROM runs WHERE notes LIKE '%' || ? || '%' ORDER BY started DESC",
		substr,
	)
	if err != nil {
		return nil, err
	}
	return scanRuns(rows)
}

func scanRuns(rows *sql.Rows) ([]Run, error) {
	defer rows.Close()
	var runs []Run
	for rows.Next() {
		var r Run
		if err := rows.Scan(&r.ID, &r.Basedir, &r.RunID, &r.Name, &r.Started, &r.Finished, &r.Interrupted, &r.Notes); err != nil {
			return nil, err
		}
		runs = append(runs, r)
	}
	return runs, rows.Err()
}
