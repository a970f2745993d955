package thread

import "context"

// DefaultFallbackGuard bounds how many secondary pages one blended page may
// pull while filling its shortfall.
const DefaultFallbackGuard = 3

// blendState is the sort-fallback bookkeeping of the root list. It is owned
// by the loader goroutine; jobs work on a copy and hand back a successor.
type blendState struct {
	exhaustedAt int       // page where the primary ordering ran dry, 0 before
	tail        []Comment // primary items of the exhaustion page
	cursor      int       // next secondary page
	hasMore     bool      // secondary ordering has more pages
	buffer      []Comment // secondary items pulled beyond a page's need
	version     uint64
	busy        bool
}

func (b *blendState) exhausted() bool { return b != nil && b.exhaustedAt > 0 }

func (b blendState) clone() blendState {
	b.tail = append([]Comment(nil), b.tail...)
	b.buffer = append([]Comment(nil), b.buffer...)
	return b
}

// Blender serves the primary ordering and transparently continues from the
// secondary ordering once the primary is exhausted short of the declared
// total, de-duplicating by identity.
type Blender struct {
	Primary   Fetcher
	Secondary Fetcher
	Guard     int
}

// blendJob is a snapshot of everything a blended fetch needs, taken on the
// owner goroutine at dispatch.
type blendJob struct {
	req      FetchRequest
	state    blendState
	seen     map[ID]struct{}
	placed   []Comment // filled slots of the requested page, in order
	declared int
}

type blendOutcome struct {
	result    FetchResult
	state     blendState
	changed   bool // state differs from the job's snapshot
	secondary bool // secondary ordering contributed
}

// run executes a blended page fetch. It never touches loader state.
func (b Blender) run(ctx context.Context, job blendJob) (blendOutcome, error) {
	st := job.state.clone()
	req := job.req
	req.Ordering = Popularity
	size := req.PageSize
	start := (req.Page - 1) * size
	total := job.declared
	primaryTotal := 0
	changed := false

	var items []Comment
	if !st.exhausted() || req.Page < st.exhaustedAt {
		res, err := b.Primary.FetchPage(ctx, req)
		if err != nil {
			return blendOutcome{}, err
		}
		primaryTotal = res.TotalCount
		if res.TotalCount > 0 && res.TotalCount > total {
			total = res.TotalCount
		}
		if res.HasMore || st.exhausted() || total <= start+len(res.Items) {
			return blendOutcome{result: res, state: st}, nil
		}
		st.exhaustedAt = req.Page
		st.tail = append([]Comment(nil), res.Items...)
		st.cursor = 1
		st.hasMore = true
		st.buffer = nil
		changed = true
		items = append(items, res.Items...)
	} else {
		switch {
		case len(job.placed) > 0:
			items = append(items, job.placed...)
		case req.Page == st.exhaustedAt:
			items = append(items, st.tail...)
		}
	}

	seen := make(map[ID]struct{}, len(job.seen)+len(items))
	for id := range job.seen {
		seen[id] = struct{}{}
	}
	for _, c := range items {
		seen[c.ID] = struct{}{}
	}

	need := ExpectedCount(req.Page, size, total, true, 0) - len(items)

	if len(st.buffer) > 0 {
		keep := st.buffer[:0:0]
		for _, c := range st.buffer {
			if _, dup := seen[c.ID]; dup {
				changed = true
				continue
			}
			if need > 0 {
				items = append(items, c)
				seen[c.ID] = struct{}{}
				need--
				changed = true
				continue
			}
			keep = append(keep, c)
		}
		st.buffer = keep
	}

	guard := b.Guard
	if guard <= 0 {
		guard = DefaultFallbackGuard
	}
	secondaryTotal := 0
	pulled := false
	for i := 0; need > 0 && st.hasMore && i < guard; i++ {
		res, err := b.Secondary.FetchPage(ctx, FetchRequest{
			Target:   req.Target,
			Ordering: Chronological,
			Page:     st.cursor,
			PageSize: size,
		})
		if err != nil {
			return blendOutcome{}, err
		}
		pulled = true
		changed = true
		st.cursor++
		st.hasMore = res.HasMore
		if res.TotalCount > 0 {
			secondaryTotal = res.TotalCount
		}
		for _, c := range res.Items {
			if _, dup := seen[c.ID]; dup {
				continue
			}
			seen[c.ID] = struct{}{}
			if need > 0 {
				items = append(items, c)
				need--
				continue
			}
			st.buffer = append(st.buffer, c)
		}
	}

	best := primaryTotal
	if best == 0 {
		best = job.declared
	}
	if best == 0 {
		best = secondaryTotal
	}
	if need > 0 && !st.hasMore && len(st.buffer) == 0 {
		// Both orderings are dry: the list ends with this page.
		if proven := start + len(items); best == 0 || proven < best {
			best = proven
		}
	}
	return blendOutcome{
		result: FetchResult{
			Items:      items,
			HasMore:    st.hasMore || len(st.buffer) > 0,
			TotalCount: best,
			PageSize:   size,
		},
		state:     st,
		changed:   changed,
		secondary: pulled || len(items) > len(job.placed),
	}, nil
}
