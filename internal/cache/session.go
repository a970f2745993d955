package cache

import (
	"context"
	"database/sql"
	"errors"
)

// GetSession returns the value stored under key, if any.
func (d *DB) GetSession(ctx context.Context, key string) (string, bool, error) {
	var v string
	err := d.db.QueryRowContext(ctx, `SELECT value FROM session WHERE key = ?`, key).Scan(&v)
	if errors.Is(err, sql.ErrNoRows) {
		return "", false, nil
	}
	if err != nil {
		return "", false, err
	}
	return v, true, nil
}

// PutSession stores value under key.
func (d *DB) PutSession(ctx context.Context, key, value string) error {
	_, err := d.db.ExecContext(ctx, `INSERT OR REPLACE INTO session (key, value) VALUES (?, ?)`, key, value)
	return err
}

// DeleteSession removes key.
func (d *DB) DeleteSession(ctx context.Context, key string) error {
	_, err := d.db.ExecContext(ctx, `DELETE FROM session WHERE key = ?`, key)
	return err
}
