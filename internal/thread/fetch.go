package thread

import (
	"context"
	"fmt"
)

// requestPage dispatches page p of l unless it is already Loading, Loaded,
// Failed, waiting on a backoff timer, or outside a known total.
func (t *Thread) requestPage(l *listState, p int) {
	if t.closed || p < 1 {
		return
	}
	if l.known && l.pages.Start(p) >= l.total {
		return
	}
	serialized := l.blend.exhausted() && p >= l.blend.exhaustedAt
	if serialized && l.blend.busy {
		return
	}
	if !l.pages.Begin(p) {
		return
	}
	gen := t.gen
	req := FetchRequest{
		Target:   l.target,
		Ordering: t.ordering,
		Page:     p,
		PageSize: l.policy.PageSize,
	}
	t.log.Debug("page dispatch", "list", string(l.id), "page", p, "generation", gen, "ordering", req.Ordering.String())

	if l.blend != nil {
		job := blendJob{
			req:      req,
			state:    l.blend.clone(),
			seen:     l.slots.IDs(),
			placed:   l.placedIn(p),
			declared: l.declared(),
		}
		if serialized {
			l.blend.busy = true
		}
		b := t.blender
		t.sched.Go(func(ctx context.Context) func() {
			out, err := b.run(ctx, job)
			return func() { t.completeBlend(l, gen, p, job, serialized, out, err) }
		})
		return
	}

	f := t.fetch
	t.sched.Go(func(ctx context.Context) func() {
		res, err := f.FetchPage(ctx, req)
		return func() { t.complete(l, gen, p, res, err) }
	})
}

// complete handles a plain page response on the owner.
func (t *Thread) complete(l *listState, gen uint64, p int, res FetchResult, err error) {
	if !t.live(l, gen) {
		t.log.Debug("stale page result discarded", "list", string(l.id), "page", p, "generation", gen, "current", t.gen)
		return
	}
	if l.pages.State(p).Status != PageLoading {
		return
	}
	if err != nil {
		t.fetchFailed(l, p, err)
		return
	}
	t.applyResult(l, p, res)
}

// completeBlend handles a blended root page response on the owner. A result
// computed against blend state that has since moved on is not applied; the
// page is released and requested again against the current state.
func (t *Thread) completeBlend(l *listState, gen uint64, p int, job blendJob, serialized bool, out blendOutcome, err error) {
	if !t.live(l, gen) {
		t.log.Debug("stale page result discarded", "list", string(l.id), "page", p, "generation", gen, "current", t.gen)
		return
	}
	if serialized {
		l.blend.busy = false
	}
	if l.pages.State(p).Status != PageLoading {
		t.requeue(l)
		return
	}
	if err != nil {
		t.fetchFailed(l, p, err)
		if serialized {
			t.requeue(l)
		}
		return
	}

	if out.changed {
		cur := l.blend
		switch {
		case !job.state.exhausted() && out.state.exhausted():
			switch {
			case !cur.exhausted():
			case out.state.exhaustedAt < cur.exhaustedAt:
				t.rewindBlend(l, out.state.exhaustedAt)
			default:
				l.pages.Release(p)
				t.requeue(l)
				return
			}
			t.log.Info("primary ordering exhausted, blending secondary", "page", p, "declared", job.declared)
		case cur.version != job.state.version:
			l.pages.Release(p)
			t.requeue(l)
			return
		}
		next := out.state
		next.version = cur.version + 1
		next.busy = cur.busy
		*l.blend = next
	}
	t.applyResult(l, p, out.result)
}

// requeue refreshes l after a blended page was released or dropped without
// being applied, keeping a pending anchor search moving.
func (t *Thread) requeue(l *listState) {
	t.advanceAnchor(l)
	t.refresh(l, true)
}

// rewindBlend discards everything placed after page p, which was filled
// under a later, wrong exhaustion point.
func (t *Thread) rewindBlend(l *listState, p int) {
	start := l.pages.Start(p + 1)
	if start >= l.slots.Len() {
		return
	}
	t.log.Warn("blend exhaustion point moved back", "from", l.blend.exhaustedAt, "to", p)
	l.slots.Clear(start, l.slots.Len())
	for _, pg := range l.pages.Tracked() {
		if pg > p {
			l.pages.Reset(pg)
		}
	}
	t.paintRange(l, start, l.slots.Len())
}

// applyResult classifies a successful response and applies it.
func (t *Thread) applyResult(l *listState, p int, res FetchResult) {
	log := t.log.With("list", string(l.id), "page", p)
	if res.PageSize > 0 && res.PageSize != l.policy.PageSize {
		log.Debug("effective page size differs", "requested", l.policy.PageSize, "effective", res.PageSize)
	}

	if res.TotalCount > 0 {
		l.known = true
	}
	l.hasMore = res.HasMore
	l.fetched = true
	if total := l.resolveTotal(p, res); total != l.total {
		log.Debug("list resized by response", "from", l.total, "to", total)
		t.setTotal(l, total)
	}
	if l.pages.State(p).Status != PageLoading {
		// Trimmed away by the response's own total.
		t.afterApply(l)
		return
	}

	placed := t.applyPage(l, p, res.Items)
	expected := ExpectedCount(p, l.policy.PageSize, l.declared(), res.HasMore, len(res.Items))
	outcome := Classify(placed, expected)
	log.Debug("page classified", "outcome", outcome.String(), "placed", placed, "expected", expected)

	start, end := l.pages.Range(p, l.total)
	if outcome == OutcomeComplete {
		l.pages.Loaded(p)
	} else {
		t.retryLater(l, p, fmt.Errorf("%w: %s page, %d of %d items", ErrTransient, outcome, placed, expected))
	}
	if !l.settle {
		t.paintRange(l, start, end)
	}
	t.afterApply(l)
}

// applyPage writes items into the index range of page p and returns how many
// landed. An item whose identity already sits elsewhere in the list is
// skipped without leaving a gap; items beyond the page range are ignored.
func (t *Thread) applyPage(l *listState, p int, items []Comment) int {
	i, end := l.pages.Range(p, l.total)
	placed := 0
	for _, c := range items {
		if i >= end {
			break
		}
		if l.slots.Set(i, c) || t.reclaim(l, i, c) {
			placed++
			i++
		}
	}
	return placed
}

// reclaim lets a primary-ordered item take its position back from a
// secondary-filled page that picked it up first.
func (t *Thread) reclaim(l *listState, i int, c Comment) bool {
	b := l.blend
	if !b.exhausted() || l.pages.PageOf(i) >= b.exhaustedAt {
		return false
	}
	j, ok := l.slots.IndexOf(c.ID)
	if !ok {
		return false
	}
	owner := l.pages.PageOf(j)
	if owner < b.exhaustedAt {
		return false
	}
	l.slots.Clear(j, j+1)
	l.pages.Reset(owner)
	t.paintRange(l, j, j+1)
	return l.slots.Set(i, c)
}

// fetchFailed handles a transport error.
func (t *Thread) fetchFailed(l *listState, p int, err error) {
	if !IsRetryable(err) {
		l.pages.Release(p)
		return
	}
	t.markFailed(l, p)
	t.retryLater(l, p, err)
	if l.pages.State(p).Status == PageFailed {
		t.advanceAnchor(l)
	}
}

// markFailed turns the unfilled slots of page p into failed placeholders.
func (t *Thread) markFailed(l *listState, p int) {
	start, end := l.pages.Range(p, l.total)
	for i := start; i < end; i++ {
		l.slots.SetPlaceholder(i, PlaceholderFailed)
	}
	t.paintRange(l, start, end)
}

// retryLater counts a failed attempt and either schedules a backoff retry or
// gives the page up as Failed.
func (t *Thread) retryLater(l *listState, p int, cause error) {
	attempts, failed := l.pages.Failure(p, l.policy.MaxAttempts)
	log := t.log.With("list", string(l.id), "page", p, "attempt", attempts)
	if failed {
		log.Error("page failed", "error", fmt.Errorf("%w: %w", ErrExhausted, cause))
		t.markFailed(l, p)
		return
	}
	delay := l.policy.Delay(attempts)
	log.Warn("page retry scheduled", "delay", delay.String(), "error", cause)
	gen := t.gen
	t.sched.After(delay, func() { t.retryDue(l, gen, p) })
}

func (t *Thread) retryDue(l *listState, gen uint64, p int) {
	if !t.live(l, gen) || !l.pages.RetryDue(p) {
		return
	}
	t.unfail(l, p)
	t.requestPage(l, p)
}

// unfail turns failed placeholders of page p back into loading ones.
func (t *Thread) unfail(l *listState, p int) {
	start, end := l.pages.Range(p, l.total)
	for i := start; i < end; i++ {
		if k, ok := l.slots.At(i).Placeholder(); ok && k == PlaceholderFailed {
			l.slots.SetPlaceholder(i, PlaceholderLoading)
		}
	}
	t.paintRange(l, start, end)
}

// OnRetryRequested resets the attempt counter of page p and fetches it
// immediately.
func (t *Thread) OnRetryRequested(list ListID, p int) error {
	l, err := t.list(list)
	if err != nil {
		return err
	}
	if !l.pages.Reset(p) {
		return nil
	}
	t.log.Info("manual page retry", "list", string(l.id), "page", p)
	t.unfail(l, p)
	t.requestPage(l, p)
	return nil
}

// afterApply runs once a page response of l has been applied: anchor
// resolution, load-more settling and window upkeep.
func (t *Thread) afterApply(l *listState) {
	t.advanceAnchor(l)
	if l.settle {
		l.settle = false
		gen := t.gen
		t.sched.After(t.opts.SettleDelay, func() {
			if !t.live(l, gen) {
				return
			}
			l.window = Window{}
			t.refresh(l, true)
		})
		return
	}
	t.refresh(l, true)
}

// advanceAnchor moves a pending snapshot forward after a page of l settled.
func (t *Thread) advanceAnchor(l *listState) {
	a := t.anchor
	switch {
	case a == nil:
	case a.stage == 0 && l.id.IsRoot():
		t.resolveAnchor()
	case a.stage == 1 && l.id == ListID(a.snap.Path[0]):
		t.resolveReplyAnchor(l)
	}
}

// resolveAnchor resolves the pending snapshot against the root list once an
// identity on its path is present, or once every root page has settled
// without one. Until then the root list is searched page by page, outside
// the render window if need be. A snapshot pointing into an expanded reply
// list selects the root comment and moves on to that list.
func (t *Thread) resolveAnchor() {
	a := t.anchor
	if !t.anchorPresent(a.snap) {
		next, open := t.root.searchProgress()
		if open {
			if next > 0 {
				t.requestPage(t.root, next)
			}
			return
		}
		t.log.Debug("anchor identity gone, using position", "fallback", a.snap.Fallback)
	}
	t.anchor = nil
	pos, ok := Resolve(a.snap, threadLookup{t})
	if !ok {
		t.selValid = false
		return
	}
	t.selectPos(pos)
	if len(a.snap.Path) < 2 || !pos.List.IsRoot() {
		return
	}
	root := a.snap.Path[0]
	if i, ok := t.root.slots.IndexOf(root); !ok || i != pos.Index {
		return
	}
	if _, ok := t.expanded[root]; !ok {
		return
	}
	c, _ := t.root.slots.At(pos.Index).Comment()
	a.stage = 1
	t.anchor = a
	if !t.openReplies(c) {
		t.anchor = nil
		return
	}
	if l := t.replies[ListID(root)]; l.fetched {
		t.resolveReplyAnchor(l)
	}
}

// anchorPresent reports whether the root list, or for a lone identity any
// live reply list, already holds an identity of the snapshot path.
func (t *Thread) anchorPresent(s Snapshot) bool {
	if len(s.Path) == 0 {
		return true
	}
	if _, ok := t.root.slots.IndexOf(s.Path[0]); ok {
		return true
	}
	if len(s.Path) == 1 {
		_, ok := threadLookup{t}.FindReply(s.Path[0])
		return ok
	}
	return false
}

// resolveReplyAnchor selects the snapshot leaf inside the reply list l,
// searching its pages until the leaf appears or every page has settled. A
// leaf that is gone leaves the root comment selected.
func (t *Thread) resolveReplyAnchor(l *listState) {
	leaf, _ := t.anchor.snap.Leaf()
	if j, ok := l.slots.IndexOf(leaf); ok {
		t.anchor = nil
		t.selectPos(Position{List: l.id, Index: j})
		return
	}
	next, open := l.searchProgress()
	if !open {
		t.anchor = nil
		return
	}
	if next > 0 {
		t.requestPage(l, next)
	}
}

// threadLookup resolves snapshots against live lists.
type threadLookup struct{ t *Thread }

func (lk threadLookup) RootLen() int { return lk.t.root.total }

func (lk threadLookup) RootIndex(id ID) (int, bool) { return lk.t.root.slots.IndexOf(id) }

func (lk threadLookup) ReplyIndex(root, id ID) (int, bool) {
	l, ok := lk.t.replies[ListID(root)]
	if !ok {
		return 0, false
	}
	return l.slots.IndexOf(id)
}

func (lk threadLookup) FindReply(id ID) (Position, bool) {
	for lid, l := range lk.t.replies {
		if j, ok := l.slots.IndexOf(id); ok {
			return Position{List: lid, Index: j}, true
		}
	}
	return Position{}, false
}

// locate finds the live position of id.
func (t *Thread) locate(id ID) (Position, bool) {
	if t.root == nil || t.closed {
		return Position{}, false
	}
	return Resolve(Snapshot{Path: []ID{id}, Fallback: -1}, exactLookup{threadLookup{t}})
}

// exactLookup disables positional fallback.
type exactLookup struct{ threadLookup }

func (exactLookup) RootLen() int { return 0 }
