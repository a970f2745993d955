package cache

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"time"

	"github.com/fragmede/threadview/internal/api"
	"pkt.systems/pslog"
)

// GetItem retrieves a cached item. Returns (item, isFresh, error).
// isFresh indicates whether the item is within its TTL.
// Returns nil item on cache miss.
func (d *DB) GetItem(ctx context.Context, id int, ttl time.Duration) (*api.Item, bool, error) {
	row := d.db.QueryRowContext(ctx, `SELECT id, type, by_user, time_unix, text, parent_id, url,
		title, score, descendants, kids, dead, deleted, fetched_at
		FROM items WHERE id = ?`, id)

	var item api.Item
	var byUser, text, url, title, kids sql.NullString
	var parentID sql.NullInt64
	var fetchedAt int64
	var dead, deleted int

	err := row.Scan(&item.ID, &item.Type, &byUser, &item.Time, &text, &parentID,
		&url, &title, &item.Score, &item.Descendants, &kids, &dead, &deleted, &fetchedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}

	item.By = byUser.String
	item.Text = text.String
	item.URL = url.String
	item.Title = title.String
	item.Dead = dead != 0
	item.Deleted = deleted != 0
	if parentID.Valid {
		item.Parent = int(parentID.Int64)
	}
	if kids.Valid && kids.String != "" {
		item.RawKids = json.RawMessage(kids.String)
	}

	isFresh := d.now().Sub(time.Unix(fetchedAt, 0)) < ttl
	return &item, isFresh, nil
}

// PutItem stores an item in the cache.
func (d *DB) PutItem(ctx context.Context, item *api.Item) error {
	_, err := d.db.ExecContext(ctx, `INSERT OR REPLACE INTO items
		(id, type, by_user, time_unix, text, parent_id, url, title, score, descendants, kids, dead, deleted, fetched_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		item.ID, item.Type, nullStr(item.By), item.Time, nullStr(item.Text),
		nullInt(item.Parent), nullStr(item.URL), nullStr(item.Title),
		item.Score, item.Descendants, item.KidsJSON(), boolInt(item.Dead), boolInt(item.Deleted), d.now().Unix())
	return err
}

// ItemGetter loads one item from the network.
type ItemGetter interface {
	GetItem(ctx context.Context, id int) (*api.Item, error)
}

// Header returns the thread header item, from cache while fresh. On a
// network failure a stale cached copy is returned when one exists.
func (d *DB) Header(ctx context.Context, src ItemGetter, id int, ttl time.Duration) (*api.Item, error) {
	log := pslog.Ctx(ctx)
	cached, fresh, err := d.GetItem(ctx, id, ttl)
	if err != nil {
		log.Warn("item cache read failed", "id", id, "error", err)
	}
	if cached != nil && fresh {
		return cached, nil
	}
	item, err := src.GetItem(ctx, id)
	if err != nil {
		if cached != nil && !errors.Is(err, context.Canceled) {
			log.Warn("serving stale header", "id", id, "error", err)
			return cached, nil
		}
		return nil, err
	}
	if err := d.PutItem(ctx, item); err != nil {
		log.Warn("item cache write failed", "id", id, "error", err)
	}
	return item, nil
}

func nullStr(s string) sql.NullString {
	if s == "" {
		return sql.NullString{}
	}
	return sql.NullString{String: s, Valid: true}
}

func nullInt(i int) sql.NullInt64 {
	if i == 0 {
		return sql.NullInt64{}
	}
	return sql.NullInt64{Int64: int64(i), Valid: true}
}

func boolInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
