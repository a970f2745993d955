package thread

import "sort"

// PageStatus is the fetch status of one page.
type PageStatus uint8

const (
	PageNotLoaded PageStatus = iota
	PageLoading
	PageLoaded
	PageFailed
)

func (s PageStatus) String() string {
	switch s {
	case PageLoading:
		return "loading"
	case PageLoaded:
		return "loaded"
	case PageFailed:
		return "failed"
	default:
		return "not_loaded"
	}
}

// PageState tracks one page. Scheduled is set while a backoff retry timer is
// pending; such a page is NotLoaded but must not be dispatched again until
// the timer fires.
type PageState struct {
	Status    PageStatus
	Attempts  int
	Scheduled bool
}

// PageTracker holds the PageState of every referenced page of a list.
type PageTracker struct {
	size  int
	pages map[int]*PageState
}

// NewPageTracker returns a tracker for pages of the given size.
func NewPageTracker(size int) *PageTracker {
	if size <= 0 {
		size = 1
	}
	return &PageTracker{size: size, pages: make(map[int]*PageState)}
}

// Size returns the page size.
func (t *PageTracker) Size() int { return t.size }

// State returns the state of page p; unreferenced pages are NotLoaded.
func (t *PageTracker) State(p int) PageState {
	if st, ok := t.pages[p]; ok {
		return *st
	}
	return PageState{}
}

func (t *PageTracker) get(p int) *PageState {
	st, ok := t.pages[p]
	if !ok {
		st = &PageState{}
		t.pages[p] = st
	}
	return st
}

// Begin marks p Loading and reports true, unless p is already Loading,
// Loaded, Failed or waiting on a scheduled retry.
func (t *PageTracker) Begin(p int) bool {
	if p < 1 {
		return false
	}
	st := t.get(p)
	if st.Status != PageNotLoaded || st.Scheduled {
		return false
	}
	st.Status = PageLoading
	return true
}

// Loaded marks p Loaded and clears its attempt counter.
func (t *PageTracker) Loaded(p int) {
	st := t.get(p)
	st.Status = PageLoaded
	st.Attempts = 0
	st.Scheduled = false
}

// Failure records a failed attempt for p. It returns the new attempt count
// and whether the cap has been reached, in which case p is marked Failed.
// Otherwise p returns to NotLoaded with a scheduled retry.
func (t *PageTracker) Failure(p, maxAttempts int) (int, bool) {
	st := t.get(p)
	st.Attempts++
	if maxAttempts > 0 && st.Attempts >= maxAttempts {
		st.Status = PageFailed
		st.Scheduled = false
		return st.Attempts, true
	}
	st.Status = PageNotLoaded
	st.Scheduled = true
	return st.Attempts, false
}

// Release returns a Loading page to NotLoaded without counting an attempt.
func (t *PageTracker) Release(p int) {
	if st, ok := t.pages[p]; ok && st.Status == PageLoading {
		st.Status = PageNotLoaded
	}
}

// RetryDue clears the scheduled flag of p so it may be dispatched again.
func (t *PageTracker) RetryDue(p int) bool {
	st, ok := t.pages[p]
	if !ok || !st.Scheduled {
		return false
	}
	st.Scheduled = false
	return true
}

// Reset clears the attempt counter of p and returns it to NotLoaded. A page
// that is currently Loading is left as is.
func (t *PageTracker) Reset(p int) bool {
	st := t.get(p)
	if st.Status == PageLoading {
		return false
	}
	st.Status = PageNotLoaded
	st.Attempts = 0
	st.Scheduled = false
	return true
}

// TrimFrom removes every page whose start index is at or beyond total.
func (t *PageTracker) TrimFrom(total int) []int {
	var removed []int
	for p := range t.pages {
		if t.Start(p) >= total {
			removed = append(removed, p)
		}
	}
	for _, p := range removed {
		delete(t.pages, p)
	}
	sort.Ints(removed)
	return removed
}

// Start returns the first index covered by page p.
func (t *PageTracker) Start(p int) int { return (p - 1) * t.size }

// Range returns the half-open index range [start, end) of page p clamped to
// total when total is positive.
func (t *PageTracker) Range(p, total int) (int, int) {
	start := t.Start(p)
	end := start + t.size
	if total > 0 && end > total {
		end = total
	}
	if end < start {
		end = start
	}
	return start, end
}

// PageOf returns the page containing index i.
func (t *PageTracker) PageOf(i int) int {
	if i < 0 {
		return 1
	}
	return i/t.size + 1
}

// PagesFor returns the pages intersecting the inclusive index range.
func (t *PageTracker) PagesFor(start, end int) []int {
	if end < start {
		return nil
	}
	first, last := t.PageOf(start), t.PageOf(end)
	pages := make([]int, 0, last-first+1)
	for p := first; p <= last; p++ {
		pages = append(pages, p)
	}
	return pages
}

// Tracked returns every referenced page number in ascending order.
func (t *PageTracker) Tracked() []int {
	out := make([]int, 0, len(t.pages))
	for p := range t.pages {
		out = append(out, p)
	}
	sort.Ints(out)
	return out
}

// Count returns how many tracked pages have status s.
func (t *PageTracker) Count(s PageStatus) int {
	n := 0
	for _, st := range t.pages {
		if st.Status == s {
			n++
		}
	}
	return n
}

// Pages returns the tracked page numbers with status s in ascending order.
func (t *PageTracker) Pages(s PageStatus) []int {
	var out []int
	for p, st := range t.pages {
		if st.Status == s {
			out = append(out, p)
		}
	}
	sort.Ints(out)
	return out
}

// ExpectedCount is the number of items page p of size s should hold against
// total. With an unknown total it is s while the source reports more, and
// the actual count otherwise.
func ExpectedCount(p, s, total int, hasMore bool, actual int) int {
	if total > 0 {
		remaining := total - (p-1)*s
		if remaining < 0 {
			remaining = 0
		}
		if remaining < s {
			return remaining
		}
		return s
	}
	if hasMore {
		return s
	}
	return actual
}

// PageOutcome classifies a page response.
type PageOutcome uint8

const (
	OutcomeComplete PageOutcome = iota
	OutcomePartial
	OutcomeEmpty
)

func (o PageOutcome) String() string {
	switch o {
	case OutcomePartial:
		return "partial"
	case OutcomeEmpty:
		return "empty"
	default:
		return "complete"
	}
}

// Classify compares the actual item count with the expected one.
func Classify(actual, expected int) PageOutcome {
	switch {
	case actual >= expected:
		return OutcomeComplete
	case actual == 0:
		return OutcomeEmpty
	default:
		return OutcomePartial
	}
}
