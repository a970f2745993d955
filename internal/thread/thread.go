package thread

import (
	"context"
	"errors"
	"time"

	"pkt.systems/pslog"
)

// DefaultPadding is the number of rows hydrated on each side of the visible
// range.
const DefaultPadding = 10

// DefaultSettleDelay is the pause between applying a load-more page and
// re-materializing its reply list.
const DefaultSettleDelay = 150 * time.Millisecond

// Options configures a Thread.
type Options struct {
	Target   ID
	Ordering Ordering

	// Fetcher serves every ordering; requests carry the ordering they want.
	Fetcher Fetcher
	// Mutator is optional; without it mutations fail with ErrNoMutator.
	Mutator   Mutator
	Scheduler Scheduler
	Surface   Surface
	Logger    pslog.Logger

	RootPolicy  Policy
	ReplyPolicy Policy

	Padding       int
	FallbackGuard int
	SettleDelay   time.Duration
	// SeedTotal is the root count known before the first fetch, if any.
	SeedTotal       int
	DisableBlending bool
}

// Selector is optionally implemented by a Surface that wants to follow
// selection changes made by the loader (anchor resolution, collapse).
type Selector interface {
	Select(list ListID, index int)
}

// Thread is the incremental loader for one comment thread: a root list and
// one reply sub-loader per expanded root comment. All methods must be called
// on the goroutine that runs the Scheduler's continuations.
type Thread struct {
	opts    Options
	sched   Scheduler
	surface Surface
	fetch   Fetcher
	blender Blender
	log     pslog.Logger

	gen      uint64
	opened   bool
	closed   bool
	ordering Ordering

	root     *listState
	replies  map[ListID]*listState
	expanded map[ID]struct{}

	sel      Position
	selValid bool
	anchor   *pendingAnchor
}

// New validates opts and returns an unopened Thread.
func New(opts Options) (*Thread, error) {
	if opts.Fetcher == nil {
		return nil, errors.New("thread: fetcher is required")
	}
	if opts.Scheduler == nil {
		return nil, errors.New("thread: scheduler is required")
	}
	if opts.Target == "" {
		return nil, errors.New("thread: target is required")
	}
	opts.RootPolicy = opts.RootPolicy.withDefaults(DefaultRootPolicy())
	opts.ReplyPolicy = opts.ReplyPolicy.withDefaults(DefaultReplyPolicy())
	if opts.Padding <= 0 {
		opts.Padding = DefaultPadding
	}
	if opts.FallbackGuard <= 0 {
		opts.FallbackGuard = DefaultFallbackGuard
	}
	if opts.SettleDelay <= 0 {
		opts.SettleDelay = DefaultSettleDelay
	}
	surface := opts.Surface
	if surface == nil {
		surface = nopSurface{}
	}
	log := opts.Logger
	if log == nil {
		log = pslog.Ctx(context.Background())
	}
	return &Thread{
		opts:    opts,
		sched:   opts.Scheduler,
		surface: surface,
		fetch:   opts.Fetcher,
		blender: Blender{
			Primary:   opts.Fetcher,
			Secondary: opts.Fetcher,
			Guard:     opts.FallbackGuard,
		},
		log:      log.With("target", opts.Target),
		ordering: opts.Ordering,
		replies:  make(map[ListID]*listState),
		expanded: make(map[ID]struct{}),
	}, nil
}

// Target returns the thread identity.
func (t *Thread) Target() ID { return t.opts.Target }

// Generation returns the current reload generation.
func (t *Thread) Generation() uint64 { return t.gen }

// Ordering returns the active ordering.
func (t *Thread) Ordering() Ordering { return t.ordering }

// Open starts the first generation.
func (t *Thread) Open() error {
	if t.closed {
		return ErrClosed
	}
	if t.opened {
		return nil
	}
	t.opened = true
	t.reload(nil)
	return nil
}

// Reload discards all loaded state and starts a new generation, restoring
// the current selection once its identity is found again.
func (t *Thread) Reload() error {
	if t.closed {
		return ErrClosed
	}
	snap := t.Capture("")
	t.opened = true
	t.reload(&snap)
	return nil
}

// Resort switches ordering and reloads.
func (t *Thread) Resort(o Ordering) error {
	if t.closed {
		return ErrClosed
	}
	snap := t.Capture("")
	t.ordering = o
	t.opened = true
	t.reload(&snap)
	return nil
}

// Close permanently cancels the thread. Results still in flight are
// discarded on arrival.
func (t *Thread) Close() {
	if t.closed {
		return
	}
	t.closed = true
	t.gen++
	t.anchor = nil
	t.replies = make(map[ListID]*listState)
	t.log.Debug("thread closed", "generation", t.gen)
}

// Closed reports whether Close has been called.
func (t *Thread) Closed() bool { return t.closed }

func (t *Thread) reload(snap *Snapshot) {
	t.gen++
	total := t.opts.SeedTotal
	var prev *listState
	if t.root != nil {
		prev = t.root
		if prev.total > 0 {
			total = prev.total
		}
	}
	for id, l := range t.replies {
		delete(t.replies, id)
		t.resized(l.id, 0)
	}
	if inv, ok := t.fetch.(Invalidator); ok && prev != nil {
		inv.Invalidate(t.opts.Target)
		for id := range t.expanded {
			inv.Invalidate(id)
		}
	}

	root := newListState(RootList, t.opts.Target, t.opts.RootPolicy, total)
	if prev != nil {
		root.visStart, root.visEnd, root.visible = prev.visStart, prev.visEnd, prev.visible
	}
	if t.ordering == Popularity && !t.opts.DisableBlending {
		root.blend = &blendState{}
	}
	t.root = root

	t.anchor = nil
	t.selValid = false
	if snap != nil {
		t.anchor = &pendingAnchor{snap: *snap}
		t.sel = Position{List: RootList, Index: snap.Fallback}
		t.selValid = true
	}

	t.log.Info("thread reload", "generation", t.gen, "ordering", t.ordering.String(), "total", total)
	t.resized(RootList, root.total)
	t.refresh(root, true)
}

// list returns the live list named by id.
func (t *Thread) list(id ListID) (*listState, error) {
	if t.closed {
		return nil, ErrClosed
	}
	if id.IsRoot() {
		if t.root == nil {
			return nil, ErrUnknownList
		}
		return t.root, nil
	}
	l, ok := t.replies[id]
	if !ok {
		return nil, ErrUnknownList
	}
	return l, nil
}

// live reports whether a continuation captured for l in generation gen may
// still mutate state.
func (t *Thread) live(l *listState, gen uint64) bool {
	if t.closed || gen != t.gen {
		return false
	}
	if l.id.IsRoot() {
		return t.root == l
	}
	return t.replies[l.id] == l
}

// OnWindowChanged records the visible range of a list and hydrates the new
// render window.
func (t *Thread) OnWindowChanged(list ListID, visStart, visEnd int) error {
	l, err := t.list(list)
	if err != nil {
		return err
	}
	if visEnd < visStart {
		visStart, visEnd = visEnd, visStart
	}
	l.visStart, l.visEnd, l.visible = visStart, visEnd, true
	t.refresh(l, false)
	return nil
}

// OnSelect moves the selection to index of list.
func (t *Thread) OnSelect(list ListID, index int) error {
	l, err := t.list(list)
	if err != nil {
		return err
	}
	if index < 0 || index >= l.total {
		return ErrUnknownComment
	}
	t.sel = Position{List: list, Index: index}
	t.selValid = true
	t.refreshSelection()
	return nil
}

// OnSelectID moves the selection to the node holding id.
func (t *Thread) OnSelectID(id ID) error {
	pos, ok := t.locate(id)
	if !ok {
		return ErrUnknownComment
	}
	return t.OnSelect(pos.List, pos.Index)
}

// Selected returns the current selection.
func (t *Thread) Selected() (Position, bool) {
	return t.sel, t.selValid && !t.closed
}

func (t *Thread) selectPos(pos Position) {
	t.sel = pos
	t.selValid = true
	if s, ok := t.surface.(Selector); ok {
		s.Select(pos.List, pos.Index)
	}
	t.refreshSelection()
}

func (t *Thread) refreshSelection() {
	if l, ok := t.replies[t.sel.List]; ok {
		t.refresh(l, false)
	}
	if t.root != nil {
		t.refresh(t.root, false)
	}
}

// selectedIndex returns the index in l the render window must cover.
func (t *Thread) selectedIndex(l *listState) int {
	if !t.selValid {
		return -1
	}
	if t.sel.List == l.id {
		return t.sel.Index
	}
	if l.id.IsRoot() {
		if i, ok := l.slots.IndexOf(ID(t.sel.List)); ok {
			return i
		}
	}
	return -1
}

// refresh recomputes the render window of l, materializes positions that
// entered it and requests the pages it covers. Without force an unchanged
// window is a no-op.
func (t *Thread) refresh(l *listState, force bool) {
	if t.closed {
		return
	}
	if l.total == 0 && !l.fetched {
		t.requestPage(l, 1)
		return
	}
	vs, ve := l.visStart, l.visEnd
	if !l.visible {
		vs, ve = 0, l.policy.PageSize-1
	}
	w := ComputeWindow(vs, ve, t.opts.Padding, l.total, t.selectedIndex(l))
	if w == l.window && !force {
		return
	}
	old := l.window
	l.window = w
	if w.Valid {
		for i := w.Start; i <= w.End; i++ {
			if !old.Contains(i) {
				t.paint(l, i)
			}
		}
	}
	t.hydrate(l)
}

// hydrate requests every page intersecting the window, and the page after
// the tail while the total is still being discovered.
func (t *Thread) hydrate(l *listState) {
	if !l.window.Valid {
		if l.hasMore && !l.known {
			t.requestPage(l, l.pages.PageOf(l.total))
		}
		return
	}
	for _, p := range l.pages.PagesFor(l.window.Start, l.window.End) {
		t.requestPage(l, p)
	}
	if l.hasMore && !l.known && l.window.End >= l.total-1 {
		t.requestPage(l, l.pages.PageOf(l.total))
	}
}

// paint writes position i of l to the surface.
func (t *Thread) paint(l *listState, i int) {
	slot := l.slots.At(i)
	switch slot.Kind() {
	case SlotFilled:
		c, _ := slot.Comment()
		t.surface.Materialize(l.id, i, c)
		if l.id.IsRoot() {
			if _, ok := t.expanded[c.ID]; ok {
				t.openReplies(c)
			}
		}
	case SlotPlaceholder:
		k, _ := slot.Placeholder()
		t.surface.SetPlaceholder(l.id, i, k)
	default:
		t.surface.SetPlaceholder(l.id, i, PlaceholderLoading)
	}
}

// paintRange repaints [start, end) clipped to the window.
func (t *Thread) paintRange(l *listState, start, end int) {
	start, end, ok := l.window.Intersect(start, end)
	if !ok {
		return
	}
	for i := start; i < end; i++ {
		t.paint(l, i)
	}
}

func (t *Thread) resized(list ListID, length int) {
	if r, ok := t.surface.(Resizer); ok {
		r.Resize(list, length)
	}
}

// SyncTotal applies an authoritative total reported outside of a page fetch,
// growing or trimming the list.
func (t *Thread) SyncTotal(list ListID, total int) error {
	l, err := t.list(list)
	if err != nil {
		return err
	}
	if total < 0 {
		total = 0
	}
	l.known = total > 0
	if total == l.total {
		return nil
	}
	t.log.Info("list total changed", "list", string(l.id), "from", l.total, "to", total)
	t.setTotal(l, total)
	t.refresh(l, true)
	return nil
}

// setTotal resizes l and repairs everything that pointed past the new end.
func (t *Thread) setTotal(l *listState, total int) {
	_, trimmed := l.resize(total)
	t.resized(l.id, l.total)
	if !trimmed {
		return
	}
	if t.selValid && t.sel.List == l.id && t.sel.Index >= l.total {
		if l.total == 0 {
			t.selValid = false
		} else {
			t.selectPos(Position{List: l.id, Index: l.total - 1})
		}
	}
	if l.id.IsRoot() {
		t.pruneReplies()
	}
}

// pruneReplies destroys reply lists whose root comment left the root list.
func (t *Thread) pruneReplies() {
	for id, l := range t.replies {
		if _, ok := t.root.slots.IndexOf(ID(id)); ok {
			continue
		}
		t.dropReplies(l)
	}
}

// Len returns the slot count of a list, or zero for an unknown list.
func (t *Thread) Len(list ListID) int {
	l, err := t.list(list)
	if err != nil {
		return 0
	}
	return l.total
}

// Slot returns position i of a list.
func (t *Thread) Slot(list ListID, i int) Slot {
	l, err := t.list(list)
	if err != nil {
		return Slot{}
	}
	return l.slots.At(i)
}

// Window returns the current render window of a list.
func (t *Thread) Window(list ListID) Window {
	l, err := t.list(list)
	if err != nil {
		return Window{}
	}
	return l.window
}

// PageState returns the state of page p of a list.
func (t *Thread) PageState(list ListID, p int) PageState {
	l, err := t.list(list)
	if err != nil {
		return PageState{}
	}
	return l.pages.State(p)
}

// PageOf returns the page of a list holding position i.
func (t *Thread) PageOf(list ListID, i int) int {
	l, err := t.list(list)
	if err != nil {
		return 0
	}
	return l.pages.PageOf(i)
}

// Stats is a point-in-time summary of the root list.
type Stats struct {
	Generation   uint64
	Ordering     Ordering
	Phase        Phase
	Total        int
	Filled       int
	HasMore      bool
	LoadingPages int
	LoadedPages  int
	FailedPages  int
	Blending     bool
	ExhaustedAt  int
	Replies      int
	Closed       bool
}

// Stats summarizes the loader.
func (t *Thread) Stats() Stats {
	s := Stats{
		Generation: t.gen,
		Ordering:   t.ordering,
		Replies:    len(t.replies),
		Closed:     t.closed,
	}
	if t.root == nil {
		return s
	}
	l := t.root
	s.Phase = l.phase()
	s.Total = l.total
	s.Filled = l.slots.Filled()
	s.HasMore = l.hasMore
	s.LoadingPages = l.pages.Count(PageLoading)
	s.LoadedPages = l.pages.Count(PageLoaded)
	s.FailedPages = l.pages.Count(PageFailed)
	if l.blend.exhausted() {
		s.Blending = true
		s.ExhaustedAt = l.blend.exhaustedAt
	}
	return s
}

// ListPhase returns the lifecycle phase of a list.
func (t *Thread) ListPhase(list ListID) Phase {
	l, err := t.list(list)
	if err != nil {
		return PhaseEmpty
	}
	return l.phase()
}

type nopSurface struct{}

func (nopSurface) Materialize(ListID, int, Comment)          {}
func (nopSurface) SetPlaceholder(ListID, int, PlaceholderKind) {}
