package cache

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "modernc.org/sqlite"
)

// DB wraps the SQLite database holding cached items, comment pages and the
// login session.
type DB struct {
	db  *sql.DB
	now func() time.Time
}

// Open creates or opens the SQLite cache database and runs migrations.
func Open(path string) (*DB, error) {
	db, err := sql.Open("sqlite", path+"?_pragma=journal_mode(wal)&_pragma=busy_timeout(5000)")
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}
	db.SetMaxOpenConns(1)

	if err := migrate(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrating database: %w", err)
	}
	return &DB{db: db, now: time.Now}, nil
}

// Close closes the database connection.
func (d *DB) Close() error {
	return d.db.Close()
}

func migrate(db *sql.DB) error {
	migrations := []string{
		`CREATE TABLE IF NOT EXISTS items (
			id INTEGER PRIMARY KEY,
			type TEXT NOT NULL,
			by_user TEXT,
			time_unix INTEGER,
			text TEXT,
			parent_id INTEGER,
			url TEXT,
			title TEXT,
			score INTEGER DEFAULT 0,
			descendants INTEGER DEFAULT 0,
			kids TEXT,
			dead INTEGER DEFAULT 0,
			deleted INTEGER DEFAULT 0,
			fetched_at INTEGER NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_items_parent ON items(parent_id)`,

		`CREATE TABLE IF NOT EXISTS pages (
			target TEXT NOT NULL,
			ordering INTEGER NOT NULL,
			page INTEGER NOT NULL,
			page_size INTEGER NOT NULL,
			items TEXT NOT NULL,
			has_more INTEGER NOT NULL DEFAULT 0,
			total INTEGER NOT NULL DEFAULT 0,
			fetched_at INTEGER NOT NULL,
			PRIMARY KEY (target, ordering, page, page_size)
		)`,
		`CREATE INDEX IF NOT EXISTS idx_pages_fetched ON pages(fetched_at)`,

		`CREATE TABLE IF NOT EXISTS session (
			key TEXT PRIMARY KEY,
			value TEXT NOT NULL
		)`,
	}

	for _, m := range migrations {
		if _, err := db.Exec(m); err != nil {
			return fmt.Errorf("executing migration: %w\nSQL: %s", err, m)
		}
	}
	return nil
}

// Prune deletes cached pages and items fetched before cutoff.
func (d *DB) Prune(ctx context.Context, cutoff time.Time) (int64, error) {
	var total int64
	for _, q := range []string{
		`DELETE FROM pages WHERE fetched_at < ?`,
		`DELETE FROM items WHERE fetched_at < ?`,
	} {
		res, err := d.db.ExecContext(ctx, q, cutoff.Unix())
		if err != nil {
			return total, fmt.Errorf("pruning cache: %w", err)
		}
		n, _ := res.RowsAffected()
		total += n
	}
	return total, nil
}
