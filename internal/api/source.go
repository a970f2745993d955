package api

import (
	"context"
	"fmt"
	"sort"
	"strconv"
	"sync"
	"time"

	"github.com/fragmede/threadview/internal/thread"
	"golang.org/x/sync/singleflight"
	"pkt.systems/pslog"
)

// DefaultTreeTTL is how long a fetched child list is reused across pages.
const DefaultTreeTTL = 30 * time.Second

// ParseID converts a thread identity to an HN item ID.
func ParseID(id thread.ID) (int, error) {
	n, err := strconv.Atoi(string(id))
	if err != nil || n <= 0 {
		return 0, fmt.Errorf("invalid item id %q", id)
	}
	return n, nil
}

// FormatID converts an HN item ID to a thread identity.
func FormatID(id int) thread.ID { return thread.ID(strconv.Itoa(id)) }

// ToComment converts an item to a thread comment. repliedTo is the author
// of the parent comment, empty for top-level comments.
func ToComment(it *Item, repliedTo string) thread.Comment {
	return thread.Comment{
		ID:         FormatID(it.ID),
		Parent:     FormatID(it.Parent),
		Author:     it.By,
		Text:       it.Text,
		CreatedAt:  time.Unix(it.Time, 0),
		ReplyCount: len(it.Kids()),
		RepliedTo:  repliedTo,
		Deleted:    it.Gone(),
	}
}

// memo collapses concurrent loads of one target and reuses the result for
// a short TTL, so consecutive pages of a list see one consistent child set.
type memo[T any] struct {
	ttl   time.Duration
	now   func() time.Time
	group singleflight.Group
	mu    sync.Mutex
	items map[int]memoEntry[T]
}

type memoEntry[T any] struct {
	v  T
	at time.Time
}

func newMemo[T any](ttl time.Duration) *memo[T] {
	return &memo[T]{ttl: ttl, now: time.Now, items: make(map[int]memoEntry[T])}
}

func (m *memo[T]) get(ctx context.Context, id int, load func(context.Context) (T, error)) (T, error) {
	m.mu.Lock()
	if e, ok := m.items[id]; ok && m.now().Sub(e.at) < m.ttl {
		m.mu.Unlock()
		return e.v, nil
	}
	m.mu.Unlock()

	v, err, _ := m.group.Do(strconv.Itoa(id), func() (any, error) {
		v, err := load(ctx)
		if err != nil {
			return nil, err
		}
		m.mu.Lock()
		m.items[id] = memoEntry[T]{v: v, at: m.now()}
		m.mu.Unlock()
		return v, nil
	})
	if err != nil {
		var zero T
		return zero, err
	}
	return v.(T), nil
}

// forget drops the memoized entry of id.
func (m *memo[T]) forget(id int) {
	m.mu.Lock()
	delete(m.items, id)
	m.mu.Unlock()
	m.group.Forget(strconv.Itoa(id))
}

func pageBounds(page, size, n int) (int, int) {
	start := (page - 1) * size
	if start > n {
		start = n
	}
	end := start + size
	if end > n {
		end = n
	}
	return start, end
}

// PopularSource serves the primary ordering: HN's ranked kids of the target,
// hydrated through Firebase one page at a time. Items that fail to load are
// dropped, which yields a partial page the loader retries.
type PopularSource struct {
	client *Client
	parent *memo[rankedKids]
	log    pslog.Logger
}

// rankedKids is a parent item with its kids decoded once. Values are shared
// by concurrent page fetches and never modified after loading.
type rankedKids struct {
	item *Item
	kids []int
}

// NewPopularSource returns a ranked-order source.
func NewPopularSource(c *Client, ttl time.Duration) *PopularSource {
	if ttl <= 0 {
		ttl = DefaultTreeTTL
	}
	return &PopularSource{client: c, parent: newMemo[rankedKids](ttl), log: c.log}
}

// FetchPage implements thread.Fetcher.
func (s *PopularSource) FetchPage(ctx context.Context, req thread.FetchRequest) (thread.FetchResult, error) {
	id, err := ParseID(req.Target)
	if err != nil {
		return thread.FetchResult{}, err
	}
	ranked, err := s.parent.get(ctx, id, func(ctx context.Context) (rankedKids, error) {
		it, err := s.client.GetItem(ctx, id)
		if err != nil {
			return rankedKids{}, err
		}
		return rankedKids{item: it, kids: it.Kids()}, nil
	})
	if err != nil {
		return thread.FetchResult{}, fmt.Errorf("loading %d: %w", id, err)
	}
	parent, kids := ranked.item, ranked.kids
	start, end := pageBounds(req.Page, req.PageSize, len(kids))
	items, err := s.client.BatchGetItems(ctx, kids[start:end])
	if err != nil {
		return thread.FetchResult{}, err
	}

	repliedTo := ""
	if parent.Type == "comment" {
		repliedTo = parent.By
	}
	out := make([]thread.Comment, 0, len(items))
	for _, it := range items {
		if it == nil {
			continue
		}
		out = append(out, ToComment(it, repliedTo))
	}
	if len(out) == 0 && end > start {
		return thread.FetchResult{}, fmt.Errorf("loading page %d of %d: no items", req.Page, id)
	}
	if len(out) < end-start {
		s.log.Debug("short popular page", "target", id, "page", req.Page, "got", len(out), "want", end-start)
	}
	return thread.FetchResult{
		Items:      out,
		HasMore:    end < len(kids),
		TotalCount: len(kids),
		PageSize:   req.PageSize,
	}, nil
}

// Invalidate forgets the memoized kids of target.
func (s *PopularSource) Invalidate(target thread.ID) {
	if id, err := ParseID(target); err == nil {
		s.parent.forget(id)
	}
}

// ChronologicalSource serves the secondary ordering: the direct children of
// the target from the Algolia item tree, oldest first, paged client-side.
type ChronologicalSource struct {
	client *Client
	tree   *memo[chronoList]
}

type chronoList struct {
	children []thread.Comment
}

// NewChronologicalSource returns an oldest-first source.
func NewChronologicalSource(c *Client, ttl time.Duration) *ChronologicalSource {
	if ttl <= 0 {
		ttl = DefaultTreeTTL
	}
	return &ChronologicalSource{client: c, tree: newMemo[chronoList](ttl)}
}

// FetchPage implements thread.Fetcher.
func (s *ChronologicalSource) FetchPage(ctx context.Context, req thread.FetchRequest) (thread.FetchResult, error) {
	id, err := ParseID(req.Target)
	if err != nil {
		return thread.FetchResult{}, err
	}
	list, err := s.tree.get(ctx, id, func(ctx context.Context) (chronoList, error) {
		tree, err := s.client.GetItemTree(ctx, id)
		if err != nil {
			return chronoList{}, err
		}
		return chronoList{children: childrenOf(tree)}, nil
	})
	if err != nil {
		return thread.FetchResult{}, err
	}
	start, end := pageBounds(req.Page, req.PageSize, len(list.children))
	return thread.FetchResult{
		Items:      append([]thread.Comment(nil), list.children[start:end]...),
		HasMore:    end < len(list.children),
		TotalCount: len(list.children),
		PageSize:   req.PageSize,
	}, nil
}

// Invalidate forgets the memoized tree of target.
func (s *ChronologicalSource) Invalidate(target thread.ID) {
	if id, err := ParseID(target); err == nil {
		s.tree.forget(id)
	}
}

func childrenOf(tree *AlgoliaItem) []thread.Comment {
	repliedTo := ""
	if tree.Type == "comment" {
		repliedTo = tree.Author
	}
	kids := append([]AlgoliaItem(nil), tree.Children...)
	sort.SliceStable(kids, func(i, j int) bool {
		if kids[i].CreatedAtI != kids[j].CreatedAtI {
			return kids[i].CreatedAtI < kids[j].CreatedAtI
		}
		return kids[i].ID < kids[j].ID
	})
	out := make([]thread.Comment, 0, len(kids))
	for _, k := range kids {
		c := ToComment(k.ToItem(), repliedTo)
		c.ReplyCount = len(k.Children)
		c.Parent = FormatID(tree.ID)
		out = append(out, c)
	}
	return out
}

// Router dispatches a page request to the source for its ordering.
type Router struct {
	Popular       thread.Fetcher
	Chronological thread.Fetcher
}

// FetchPage implements thread.Fetcher.
func (r Router) FetchPage(ctx context.Context, req thread.FetchRequest) (thread.FetchResult, error) {
	if req.Ordering == thread.Chronological {
		return r.Chronological.FetchPage(ctx, req)
	}
	return r.Popular.FetchPage(ctx, req)
}

// Invalidate drops memoized child sets of target in both sources, so the
// next reload sees fresh data.
func (r Router) Invalidate(target thread.ID) {
	for _, f := range []thread.Fetcher{r.Popular, r.Chronological} {
		if inv, ok := f.(thread.Invalidator); ok {
			inv.Invalidate(target)
		}
	}
}
