package cache

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/fragmede/threadview/internal/thread"
	"pkt.systems/pslog"
)

// DefaultPageTTL is how long a cached comment page is served without
// asking the network.
const DefaultPageTTL = time.Minute

type storedComment struct {
	ID         string `json:"id"`
	Parent     string `json:"parent,omitempty"`
	Author     string `json:"by,omitempty"`
	Text       string `json:"text,omitempty"`
	CreatedAt  int64  `json:"time"`
	ReplyCount int    `json:"replies,omitempty"`
	RepliedTo  string `json:"replied_to,omitempty"`
	Deleted    bool   `json:"deleted,omitempty"`
}

func encodeComments(cs []thread.Comment) (string, error) {
	out := make([]storedComment, len(cs))
	for i, c := range cs {
		out[i] = storedComment{
			ID:         string(c.ID),
			Parent:     string(c.Parent),
			Author:     c.Author,
			Text:       c.Text,
			CreatedAt:  c.CreatedAt.Unix(),
			ReplyCount: c.ReplyCount,
			RepliedTo:  c.RepliedTo,
			Deleted:    c.Deleted,
		}
	}
	b, err := json.Marshal(out)
	return string(b), err
}

func decodeComments(s string) ([]thread.Comment, error) {
	var in []storedComment
	if err := json.Unmarshal([]byte(s), &in); err != nil {
		return nil, err
	}
	out := make([]thread.Comment, len(in))
	for i, c := range in {
		out[i] = thread.Comment{
			ID:         thread.ID(c.ID),
			Parent:     thread.ID(c.Parent),
			Author:     c.Author,
			Text:       c.Text,
			CreatedAt:  time.Unix(c.CreatedAt, 0),
			ReplyCount: c.ReplyCount,
			RepliedTo:  c.RepliedTo,
			Deleted:    c.Deleted,
		}
	}
	return out, nil
}

// GetPage returns the cached page for req and when it was fetched.
// ok is false on a miss.
func (d *DB) GetPage(ctx context.Context, req thread.FetchRequest) (res thread.FetchResult, at time.Time, ok bool, err error) {
	var items string
	var hasMore, total int
	var fetchedAt int64
	err = d.db.QueryRowContext(ctx, `SELECT items, has_more, total, fetched_at FROM pages
		WHERE target = ? AND ordering = ? AND page = ? AND page_size = ?`,
		string(req.Target), int(req.Ordering), req.Page, req.PageSize).Scan(&items, &hasMore, &total, &fetchedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return res, at, false, nil
	}
	if err != nil {
		return res, at, false, err
	}
	cs, err := decodeComments(items)
	if err != nil {
		return res, at, false, fmt.Errorf("decoding cached page: %w", err)
	}
	return thread.FetchResult{
		Items:      cs,
		HasMore:    hasMore != 0,
		TotalCount: total,
		PageSize:   req.PageSize,
	}, time.Unix(fetchedAt, 0), true, nil
}

// PutPage stores one page response.
func (d *DB) PutPage(ctx context.Context, req thread.FetchRequest, res thread.FetchResult) error {
	items, err := encodeComments(res.Items)
	if err != nil {
		return err
	}
	_, err = d.db.ExecContext(ctx, `INSERT OR REPLACE INTO pages
		(target, ordering, page, page_size, items, has_more, total, fetched_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		string(req.Target), int(req.Ordering), req.Page, req.PageSize, items,
		boolInt(res.HasMore), res.TotalCount, d.now().Unix())
	return err
}

// DeletePages removes every cached page of target.
func (d *DB) DeletePages(ctx context.Context, target thread.ID) error {
	_, err := d.db.ExecContext(ctx, `DELETE FROM pages WHERE target = ?`, string(target))
	return err
}

// PageCache decorates a thread.Fetcher with the sqlite page cache. Fresh
// pages are served locally, complete responses are stored, and a stale
// page stands in for the network when a fetch fails.
type PageCache struct {
	db   *DB
	next thread.Fetcher
	ttl  time.Duration
	log  pslog.Logger
}

// NewPageCache wraps next.
func NewPageCache(db *DB, next thread.Fetcher, ttl time.Duration, log pslog.Logger) *PageCache {
	if ttl <= 0 {
		ttl = DefaultPageTTL
	}
	if log == nil {
		log = pslog.Ctx(context.Background())
	}
	return &PageCache{db: db, next: next, ttl: ttl, log: log}
}

// FetchPage implements thread.Fetcher.
func (c *PageCache) FetchPage(ctx context.Context, req thread.FetchRequest) (thread.FetchResult, error) {
	log := c.log.With("target", req.Target, "ordering", req.Ordering.String(), "page", req.Page)

	cached, at, ok, err := c.db.GetPage(ctx, req)
	if err != nil {
		log.Warn("page cache read failed", "error", err)
		ok = false
	}
	if ok && c.db.now().Sub(at) < c.ttl {
		log.Debug("page cache hit")
		return cached, nil
	}

	res, err := c.next.FetchPage(ctx, req)
	if err != nil {
		if ok && !errors.Is(err, context.Canceled) {
			log.Warn("serving stale page", "age", c.db.now().Sub(at).String(), "error", err)
			return cached, nil
		}
		return res, err
	}

	expected := thread.ExpectedCount(req.Page, req.PageSize, res.TotalCount, res.HasMore, len(res.Items))
	if thread.Classify(len(res.Items), expected) == thread.OutcomeComplete {
		if err := c.db.PutPage(ctx, req, res); err != nil {
			log.Warn("page cache write failed", "error", err)
		}
	}
	return res, nil
}

// Invalidate drops the cached pages of target and forwards to the wrapped
// fetcher when it memoizes too.
func (c *PageCache) Invalidate(target thread.ID) {
	if err := c.db.DeletePages(context.Background(), target); err != nil {
		c.log.Warn("page cache invalidate failed", "target", target, "error", err)
	}
	if inv, ok := c.next.(thread.Invalidator); ok {
		inv.Invalidate(target)
	}
}
