package thread

// Phase is the coarse lifecycle state of a list.
type Phase uint8

const (
	PhaseEmpty Phase = iota
	PhaseSkeletonized
	PhasePartiallyLoaded
	PhaseFullyLoaded
)

func (p Phase) String() string {
	switch p {
	case PhaseSkeletonized:
		return "skeletonized"
	case PhasePartiallyLoaded:
		return "partial"
	case PhaseFullyLoaded:
		return "full"
	default:
		return "empty"
	}
}

// listState is one paginated, orderable collection: the root list or the
// replies of one root comment.
type listState struct {
	id      ListID
	target  ID
	policy  Policy
	total   int
	known   bool // total came from a seed or a source, not from counting
	hasMore bool
	fetched bool // at least one page response applied

	slots *SlotStore
	pages *PageTracker

	visStart, visEnd int
	visible          bool
	window           Window

	blend *blendState // root list under the primary ordering only

	settle bool // a load-more page is in flight
}

func newListState(id ListID, target ID, policy Policy, total int) *listState {
	l := &listState{
		id:     id,
		target: target,
		policy: policy,
		slots:  NewSlotStore(),
		pages:  NewPageTracker(policy.PageSize),
	}
	l.resize(total)
	l.known = total > 0
	return l
}

// resize makes the slot space match total. Shrinking drops pages whose start
// index is at or beyond total before truncating slots, so in-flight results
// for them are discarded on arrival.
func (l *listState) resize(total int) (grew, trimmed bool) {
	if total < 0 {
		total = 0
	}
	switch {
	case total > l.slots.Len():
		l.slots.EnsureCapacity(total)
		grew = true
	case total < l.slots.Len():
		l.pages.TrimFrom(total)
		l.slots.Trim(total)
		trimmed = true
	}
	if total < l.total && l.window.Valid && l.window.End >= total {
		l.window = Window{}
	}
	l.total = total
	return grew, trimmed
}

// resolveTotal picks the authoritative total after a page response: the
// reported total when known, otherwise the previous total, otherwise what the
// response proves exists.
func (l *listState) resolveTotal(page int, res FetchResult) int {
	if res.TotalCount > 0 {
		return res.TotalCount
	}
	seen := l.pages.Start(page) + len(res.Items)
	if l.total > 0 {
		if seen > l.total {
			return seen
		}
		return l.total
	}
	if seen < l.slots.Len() {
		return l.slots.Len()
	}
	return seen
}

// declared returns the total classification is measured against, or zero
// while the total is unknown.
func (l *listState) declared() int {
	if l.known {
		return l.total
	}
	return 0
}

// placedIn returns the comments already filled in page p, in index order.
func (l *listState) placedIn(p int) []Comment {
	start, end := l.pages.Range(p, l.total)
	var out []Comment
	for i := start; i < end; i++ {
		c, ok := l.slots.At(i).Comment()
		if !ok {
			break
		}
		out = append(out, c)
	}
	return out
}

func (l *listState) phase() Phase {
	switch {
	case l.total == 0:
		return PhaseEmpty
	case l.slots.Filled() == 0:
		return PhaseSkeletonized
	case l.slots.Filled() >= l.total && !l.hasMore:
		return PhaseFullyLoaded
	default:
		return PhasePartiallyLoaded
	}
}

// nextUnloadedPage returns the first page that is neither Loaded nor
// Loading, scanning up to the page after the last known index.
func (l *listState) nextUnloadedPage() (int, bool) {
	last := l.pages.PageOf(l.total - 1)
	if l.hasMore || l.total == 0 {
		last++
	}
	for p := 1; p <= last; p++ {
		switch l.pages.State(p).Status {
		case PageLoaded, PageLoading:
			continue
		}
		return p, true
	}
	return 0, false
}

// searchProgress reports whether some page of l that could still hold an
// identity has not settled as Loaded or Failed, and the first such page
// that is free to be requested now (zero when every open page is in flight
// or waiting on a retry timer).
func (l *listState) searchProgress() (next int, open bool) {
	last := 0
	if l.total > 0 {
		last = l.pages.PageOf(l.total - 1)
	}
	if l.hasMore && !l.known {
		last = l.pages.PageOf(l.total)
	}
	for p := 1; p <= last; p++ {
		st := l.pages.State(p)
		switch {
		case st.Status == PageLoaded, st.Status == PageFailed:
			continue
		case st.Status == PageNotLoaded && !st.Scheduled && next == 0:
			next = p
		}
		open = true
	}
	return next, open
}
