package thread

// OnExpand expands a root comment, creating its reply sub-loader on first
// use. The expansion is remembered across reloads.
func (t *Thread) OnExpand(id ID) error {
	if t.closed {
		return ErrClosed
	}
	if t.root == nil {
		return ErrUnknownList
	}
	i, ok := t.root.slots.IndexOf(id)
	if !ok {
		return ErrUnknownComment
	}
	c, _ := t.root.slots.At(i).Comment()
	t.expanded[id] = struct{}{}
	t.openReplies(c)
	return nil
}

// Collapse forgets the expansion of a root comment and destroys its reply
// sub-loader. A selection inside the reply list moves to the root comment.
func (t *Thread) Collapse(id ID) error {
	if t.closed {
		return ErrClosed
	}
	if t.root == nil {
		return ErrUnknownList
	}
	delete(t.expanded, id)
	l, ok := t.replies[ListID(id)]
	if !ok {
		return nil
	}
	t.dropReplies(l)
	if t.selValid && t.sel.List == l.id {
		if i, ok := t.root.slots.IndexOf(id); ok {
			t.selectPos(Position{List: RootList, Index: i})
		} else {
			t.selValid = false
		}
	}
	return nil
}

// Expanded reports whether a root comment is expanded.
func (t *Thread) Expanded(id ID) bool {
	_, ok := t.expanded[id]
	return ok
}

// Replies returns the ListIDs of live reply sub-loaders.
func (t *Thread) Replies() []ListID {
	out := make([]ListID, 0, len(t.replies))
	for id := range t.replies {
		out = append(out, id)
	}
	return out
}

// openReplies creates the reply sub-loader of c if it has replies and none
// exists yet. It reports whether a sub-loader exists afterwards.
func (t *Thread) openReplies(c Comment) bool {
	if t.closed {
		return false
	}
	id := ListID(c.ID)
	if _, ok := t.replies[id]; ok {
		return true
	}
	if c.ReplyCount <= 0 {
		return false
	}
	l := newListState(id, c.ID, t.opts.ReplyPolicy, c.ReplyCount)
	t.replies[id] = l
	t.log.Debug("reply list opened", "root", string(c.ID), "replies", c.ReplyCount)
	t.resized(id, l.total)
	t.refresh(l, true)
	return true
}

func (t *Thread) dropReplies(l *listState) {
	if a := t.anchor; a != nil && a.stage == 1 && ListID(a.snap.Path[0]) == l.id {
		t.anchor = nil
	}
	delete(t.replies, l.id)
	t.resized(l.id, 0)
	t.log.Debug("reply list closed", "root", string(l.id))
}

// LoadMore requests the next unloaded page of an expanded reply list. A
// Failed page is reset first, as with a manual retry.
func (t *Thread) LoadMore(id ID) error {
	l, err := t.list(ListID(id))
	if err != nil || l.id.IsRoot() {
		return ErrUnknownList
	}
	p, ok := l.nextUnloadedPage()
	if !ok {
		return nil
	}
	if l.pages.State(p).Status == PageFailed {
		l.pages.Reset(p)
		t.unfail(l, p)
	}
	if !l.pages.RetryDue(p) && l.pages.State(p).Status != PageNotLoaded {
		return nil
	}
	_, end := l.pages.Range(p, l.total)
	if !l.visible || end-1 > l.visEnd {
		if !l.visible {
			l.visStart = 0
		}
		l.visEnd = end - 1
		l.visible = true
	}
	l.settle = true
	t.requestPage(l, p)
	if l.pages.State(p).Status != PageLoading {
		l.settle = false
	}
	return nil
}

// CanLoadMore reports whether the tail affordance of a reply list should be
// offered.
func (t *Thread) CanLoadMore(id ID) bool {
	l, err := t.list(ListID(id))
	if err != nil || l.id.IsRoot() {
		return false
	}
	if !l.hasMore && l.slots.Filled() >= l.total && l.fetched {
		return false
	}
	_, ok := l.nextUnloadedPage()
	return ok
}
