// Package repo is a thin synchronous boundary around a SQLite-backed
// relational store: a database/sql handle with pragmas and schema applied
// at Open, one CRUD file per entity group. It uses the pure-Go
// modernc.org/sqlite driver so the binaries build without cgo.
package repo

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"

	_ "modernc.org/sqlite"
)

// Store is the database handle used by every repository in this package.
type Store struct {
	DB *sql.DB
}

// Open opens (or creates) the SQLite database at path, applies pragmas and
// the schema, and returns a ready Store.
func Open(ctx context.Context, path string) (*Store, error) {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("repo: creating db dir: %w", err)
		}
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("repo: opening db: %w", err)
	}
	db.SetMaxOpenConns(1) // modernc.org/sqlite serializes writers; avoid SQLITE_BUSY storms

	pragmas := []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA foreign_keys=ON",
		"PRAGMA busy_timeout=5000",
	}
	for _, p := range pragmas {
		if _, err := db.ExecContext(ctx, p); err != nil {
			db.Close()
			return nil, fmt.Errorf("repo: applying pragma %q: %w", p, err)
		}
	}

	if _, err := db.ExecContext(ctx, schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("repo: applying schema: %w", err)
	}

	return &Store{DB: db}, nil
}

func (s *Store) Close() error { return s.DB.Close() }

// schema is the DDL for every entity in the data model. Migrations beyond
// this initial schema are explicitly out of scope (the spec's own ambient
// collaborators cover schema migration tooling); this Open call is the
// module's only schema management.
const schema = `
CREATE TABLE IF NOT EXISTS scan_jobs (
	id TEXT PRIMARY KEY,
	task_id TEXT NOT NULL DEFAULT '',
	domain TEXT NOT NULL,
	status TEXT NOT NULL,
	error_message TEXT NOT NULL DEFAULT '',
	created_at DATETIME NOT NULL,
	updated_at DATETIME NOT NULL,
	completed_at DATETIME
);

CREATE TABLE IF NOT EXISTS subdomains (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	job_id TEXT NOT NULL REFERENCES scan_jobs(id) ON DELETE CASCADE,
	name TEXT NOT NULL,
	source TEXT NOT NULL DEFAULT '',
	status TEXT NOT NULL DEFAULT 'found',
	is_live INTEGER NOT NULL DEFAULT 0,
	url TEXT NOT NULL DEFAULT '',
	http_status INTEGER,
	title TEXT NOT NULL DEFAULT '',
	content_length INTEGER,
	webserver TEXT NOT NULL DEFAULT '',
	final_url TEXT NOT NULL DEFAULT '',
	response_time TEXT NOT NULL DEFAULT '',
	cdn_name TEXT NOT NULL DEFAULT '',
	content_type TEXT NOT NULL DEFAULT '',
	host TEXT NOT NULL DEFAULT '',
	chain_status_codes TEXT NOT NULL DEFAULT '[]',
	ipv4_addresses TEXT NOT NULL DEFAULT '[]',
	ipv6_addresses TEXT NOT NULL DEFAULT '[]',
	UNIQUE(job_id, name)
);

CREATE TABLE IF NOT EXISTS technologies (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	subdomain_id INTEGER NOT NULL REFERENCES subdomains(id) ON DELETE CASCADE,
	name TEXT NOT NULL,
	UNIQUE(subdomain_id, name)
);

CREATE TABLE IF NOT EXISTS screenshots (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	job_id TEXT NOT NULL REFERENCES scan_jobs(id) ON DELETE CASCADE,
	subdomain_id INTEGER REFERENCES subdomains(id) ON DELETE SET NULL,
	url TEXT NOT NULL,
	filename TEXT NOT NULL,
	file_path TEXT NOT NULL,
	file_size INTEGER
);

CREATE TABLE IF NOT EXISTS waf_detections (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	job_id TEXT NOT NULL REFERENCES scan_jobs(id) ON DELETE CASCADE,
	url TEXT NOT NULL,
	detected INTEGER NOT NULL DEFAULT 0,
	firewall TEXT NOT NULL DEFAULT '',
	manufacturer TEXT NOT NULL DEFAULT ''
);

CREATE TABLE IF NOT EXISTS leak_detections (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	job_id TEXT NOT NULL REFERENCES scan_jobs(id) ON DELETE CASCADE,
	base_url TEXT NOT NULL,
	leak_url TEXT NOT NULL,
	file_type TEXT NOT NULL DEFAULT '',
	severity TEXT NOT NULL,
	file_size INTEGER NOT NULL DEFAULT 0,
	http_status INTEGER NOT NULL,
	CHECK (http_status != 404)
);

CREATE INDEX IF NOT EXISTS idx_subdomains_job ON subdomains(job_id);
CREATE INDEX IF NOT EXISTS idx_screenshots_job ON screenshots(job_id);
CREATE INDEX IF NOT EXISTS idx_waf_job ON waf_detections(job_id);
CREATE INDEX IF NOT EXISTS idx_leaks_job ON leak_detections(job_id);
`
