package monitor

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/fragmede/threadview/internal/api"
	"github.com/fragmede/threadview/internal/thread"
	"pkt.systems/pslog"
)

// DefaultInterval is the polling period used when Options.Interval is zero.
const DefaultInterval = 30 * time.Second

// Monitor polls watched items (the open thread and its expanded comments)
// and reports when their authoritative child count changes.
type Monitor struct {
	opts Options
	log  pslog.Logger

	mu      sync.Mutex
	watched map[int]int
	started bool

	stopOnce sync.Once
	stopCh   chan struct{}
	done     chan struct{}
}

// New creates a new background monitor.
func New(opts Options) *Monitor {
	if opts.Interval <= 0 {
		opts.Interval = DefaultInterval
	}
	if opts.Report == nil {
		opts.Report = func(Update) {}
	}
	log := opts.Logger
	if log == nil {
		log = pslog.Ctx(context.Background())
	}
	return &Monitor{
		opts:    opts,
		log:     log,
		watched: make(map[int]int),
		stopCh:  make(chan struct{}),
		done:    make(chan struct{}),
	}
}

// Watch starts tracking id, whose child count is currently known.
func (m *Monitor) Watch(id thread.ID, known int) {
	n, err := api.ParseID(id)
	if err != nil {
		return
	}
	m.mu.Lock()
	m.watched[n] = known
	m.mu.Unlock()
}

// Unwatch stops tracking id.
func (m *Monitor) Unwatch(id thread.ID) {
	n, err := api.ParseID(id)
	if err != nil {
		return
	}
	m.mu.Lock()
	delete(m.watched, n)
	m.mu.Unlock()
}

// Start begins the background polling loop. It ends on Stop or when ctx is
// done.
func (m *Monitor) Start(ctx context.Context) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.started {
		return
	}
	m.started = true
	go m.loop(ctx)
}

// Stop halts the background polling and waits for the loop to exit.
func (m *Monitor) Stop() {
	m.stopOnce.Do(func() { close(m.stopCh) })
	m.mu.Lock()
	started := m.started
	m.mu.Unlock()
	if started {
		<-m.done
	}
}

func (m *Monitor) loop(ctx context.Context) {
	defer close(m.done)
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	go func() {
		select {
		case <-m.stopCh:
			cancel()
		case <-ctx.Done():
		}
	}()

	ticker := time.NewTicker(m.opts.Interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			m.Poll(ctx)
		}
	}
}

// Poll runs one polling round.
func (m *Monitor) Poll(ctx context.Context) {
	m.mu.Lock()
	ids := make([]int, 0, len(m.watched))
	for id := range m.watched {
		ids = append(ids, id)
	}
	m.mu.Unlock()
	if len(ids) == 0 {
		return
	}
	sort.Ints(ids)

	items, err := m.opts.Source.BatchGetItems(ctx, ids)
	if err != nil {
		m.log.Debug("monitor poll failed", "error", err)
		return
	}
	for _, item := range items {
		if item == nil {
			continue
		}
		if m.opts.Store != nil {
			if err := m.opts.Store.PutItem(ctx, item); err != nil {
				m.log.Warn("monitor cache write failed", "id", item.ID, "error", err)
			}
		}
		count := len(item.Kids())
		m.mu.Lock()
		known, ok := m.watched[item.ID]
		if ok {
			m.watched[item.ID] = count
		}
		m.mu.Unlock()
		if !ok || known == count {
			continue
		}
		m.log.Info("child count changed", "id", item.ID, "was", known, "now", count)
		m.opts.Report(Update{ID: api.FormatID(item.ID), Count: count, Item: item})
	}
}
