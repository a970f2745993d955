package cache

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"testing"
	"time"

	"github.com/fragmede/threadview/internal/api"
	"github.com/fragmede/threadview/internal/thread"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type clock struct{ t time.Time }

func (c *clock) now() time.Time          { return c.t }
func (c *clock) advance(d time.Duration) { c.t = c.t.Add(d) }

func openTestDB(t *testing.T) (*DB, *clock) {
	t.Helper()
	db, err := Open(filepath.Join(t.TempDir(), "cache.db"))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	c := &clock{t: time.Unix(1_700_000_000, 0)}
	db.now = c.now
	return db, c
}

// stubSource answers pages from a function and counts calls.
type stubSource struct {
	calls       int
	invalidated []thread.ID
	fn          func(req thread.FetchRequest) (thread.FetchResult, error)
}

func (s *stubSource) FetchPage(_ context.Context, req thread.FetchRequest) (thread.FetchResult, error) {
	s.calls++
	return s.fn(req)
}

func (s *stubSource) Invalidate(target thread.ID) {
	s.invalidated = append(s.invalidated, target)
}

func page(n int) []thread.Comment {
	out := make([]thread.Comment, n)
	for i := range out {
		out[i] = thread.Comment{
			ID:        thread.ID(fmt.Sprintf("c%d", i)),
			Parent:    "1",
			Author:    "user",
			Text:      "<p>hi",
			CreatedAt: time.Unix(int64(1000+i), 0),
		}
	}
	return out
}

var errOffline = errors.New("offline")

func TestItemRoundTripAndFreshness(t *testing.T) {
	db, clk := openTestDB(t)
	ctx := context.Background()

	item := &api.Item{ID: 7, Type: "story", By: "op", Title: "Hello", Score: 12, Parent: 0}
	require.NoError(t, db.PutItem(ctx, item))

	got, fresh, err := db.GetItem(ctx, 7, time.Minute)
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.True(t, fresh)
	assert.Equal(t, "Hello", got.Title)
	assert.Equal(t, 12, got.Score)
	assert.Empty(t, got.Kids())

	clk.advance(2 * time.Minute)
	_, fresh, err = db.GetItem(ctx, 7, time.Minute)
	require.NoError(t, err)
	assert.False(t, fresh)

	missing, _, err := db.GetItem(ctx, 8, time.Minute)
	require.NoError(t, err)
	assert.Nil(t, missing)
}

type getterFunc func(ctx context.Context, id int) (*api.Item, error)

func (f getterFunc) GetItem(ctx context.Context, id int) (*api.Item, error) { return f(ctx, id) }

func TestHeaderServesStaleOnError(t *testing.T) {
	db, clk := openTestDB(t)
	ctx := context.Background()
	calls := 0
	online := getterFunc(func(_ context.Context, id int) (*api.Item, error) {
		calls++
		return &api.Item{ID: id, Type: "story", Title: "fresh"}, nil
	})

	it, err := db.Header(ctx, online, 3, time.Minute)
	require.NoError(t, err)
	assert.Equal(t, "fresh", it.Title)
	_, err = db.Header(ctx, online, 3, time.Minute)
	require.NoError(t, err)
	assert.Equal(t, 1, calls)

	clk.advance(time.Hour)
	offline := getterFunc(func(context.Context, int) (*api.Item, error) { return nil, errOffline })
	it, err = db.Header(ctx, offline, 3, time.Minute)
	require.NoError(t, err)
	assert.Equal(t, "fresh", it.Title)

	_, err = db.Header(ctx, offline, 4, time.Minute)
	require.ErrorIs(t, err, errOffline)
}

func TestSessionKV(t *testing.T) {
	db, _ := openTestDB(t)
	ctx := context.Background()

	_, ok, err := db.GetSession(ctx, "hn")
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, db.PutSession(ctx, "hn", "v1"))
	require.NoError(t, db.PutSession(ctx, "hn", "v2"))
	v, ok, err := db.GetSession(ctx, "hn")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "v2", v)

	require.NoError(t, db.DeleteSession(ctx, "hn"))
	_, ok, err = db.GetSession(ctx, "hn")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestPageCacheServesFreshPages(t *testing.T) {
	db, clk := openTestDB(t)
	src := &stubSource{fn: func(thread.FetchRequest) (thread.FetchResult, error) {
		return thread.FetchResult{Items: page(3), HasMore: true, TotalCount: 9, PageSize: 3}, nil
	}}
	pc := NewPageCache(db, src, time.Minute, nil)
	req := thread.FetchRequest{Target: "1", Page: 1, PageSize: 3}
	ctx := context.Background()

	res, err := pc.FetchPage(ctx, req)
	require.NoError(t, err)
	require.Len(t, res.Items, 3)

	res, err = pc.FetchPage(ctx, req)
	require.NoError(t, err)
	assert.Equal(t, 1, src.calls)
	assert.Equal(t, 9, res.TotalCount)
	assert.True(t, res.HasMore)
	assert.Equal(t, thread.ID("c0"), res.Items[0].ID)
	assert.Equal(t, time.Unix(1000, 0), res.Items[0].CreatedAt)

	// Orderings are cached separately.
	_, err = pc.FetchPage(ctx, thread.FetchRequest{Target: "1", Ordering: thread.Chronological, Page: 1, PageSize: 3})
	require.NoError(t, err)
	assert.Equal(t, 2, src.calls)

	clk.advance(2 * time.Minute)
	_, err = pc.FetchPage(ctx, req)
	require.NoError(t, err)
	assert.Equal(t, 3, src.calls)
}

func TestPageCacheSkipsPartialPages(t *testing.T) {
	db, _ := openTestDB(t)
	src := &stubSource{fn: func(thread.FetchRequest) (thread.FetchResult, error) {
		return thread.FetchResult{Items: page(2), HasMore: true, TotalCount: 9, PageSize: 3}, nil
	}}
	pc := NewPageCache(db, src, time.Minute, nil)
	req := thread.FetchRequest{Target: "1", Page: 1, PageSize: 3}

	for range 2 {
		res, err := pc.FetchPage(context.Background(), req)
		require.NoError(t, err)
		assert.Len(t, res.Items, 2)
	}
	assert.Equal(t, 2, src.calls)
}

func TestPageCacheStaleOnError(t *testing.T) {
	db, clk := openTestDB(t)
	fail := false
	src := &stubSource{fn: func(thread.FetchRequest) (thread.FetchResult, error) {
		if fail {
			return thread.FetchResult{}, errOffline
		}
		return thread.FetchResult{Items: page(2), TotalCount: 2, PageSize: 3}, nil
	}}
	pc := NewPageCache(db, src, time.Minute, nil)
	req := thread.FetchRequest{Target: "1", Page: 1, PageSize: 3}
	ctx := context.Background()

	_, err := pc.FetchPage(ctx, req)
	require.NoError(t, err)

	clk.advance(time.Hour)
	fail = true
	res, err := pc.FetchPage(ctx, req)
	require.NoError(t, err)
	assert.Len(t, res.Items, 2)

	_, err = pc.FetchPage(ctx, thread.FetchRequest{Target: "2", Page: 1, PageSize: 3})
	require.ErrorIs(t, err, errOffline)
}

func TestPageCacheInvalidate(t *testing.T) {
	db, _ := openTestDB(t)
	src := &stubSource{fn: func(thread.FetchRequest) (thread.FetchResult, error) {
		return thread.FetchResult{Items: page(1), TotalCount: 1, PageSize: 3}, nil
	}}
	pc := NewPageCache(db, src, time.Minute, nil)
	req := thread.FetchRequest{Target: "1", Page: 1, PageSize: 3}
	ctx := context.Background()

	_, err := pc.FetchPage(ctx, req)
	require.NoError(t, err)
	pc.Invalidate("1")
	_, err = pc.FetchPage(ctx, req)
	require.NoError(t, err)
	assert.Equal(t, 2, src.calls)
	assert.Equal(t, []thread.ID{"1"}, src.invalidated)
}

func TestPrune(t *testing.T) {
	db, clk := openTestDB(t)
	ctx := context.Background()
	require.NoError(t, db.PutItem(ctx, &api.Item{ID: 1, Type: "story"}))
	require.NoError(t, db.PutPage(ctx, thread.FetchRequest{Target: "1", Page: 1, PageSize: 3},
		thread.FetchResult{Items: page(1), TotalCount: 1}))

	clk.advance(48 * time.Hour)
	require.NoError(t, db.PutItem(ctx, &api.Item{ID: 2, Type: "story"}))

	n, err := db.Prune(ctx, clk.now().Add(-24*time.Hour))
	require.NoError(t, err)
	assert.Equal(t, int64(2), n)

	it, _, err := db.GetItem(ctx, 2, time.Hour)
	require.NoError(t, err)
	assert.NotNil(t, it)
}
