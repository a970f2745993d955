package auth

import (
	"context"
	"sort"
	"time"

	"github.com/fragmede/threadview/internal/api"
	"github.com/fragmede/threadview/internal/thread"
	"pkt.systems/pslog"
)

// ItemGetter loads one item, bypassing any cache.
type ItemGetter interface {
	GetItem(ctx context.Context, id int) (*api.Item, error)
}

// Mutator adapts a Session to thread.Mutator. HN does not return the
// identity of a new comment, so it is found by polling the parent's kids
// for one posted by the session user that was not there before.
type Mutator struct {
	Session *Session
	Items   ItemGetter
	Log     pslog.Logger

	// Attempts and Interval bound the search for a new comment.
	Attempts int
	Interval time.Duration
}

// AddComment implements thread.Mutator.
func (m *Mutator) AddComment(ctx context.Context, target thread.ID, text string) (thread.ID, error) {
	return m.post(ctx, target, text)
}

// ReplyComment implements thread.Mutator.
func (m *Mutator) ReplyComment(ctx context.Context, parent thread.ID, text string) (thread.ID, error) {
	return m.post(ctx, parent, text)
}

// DeleteComment implements thread.Mutator.
func (m *Mutator) DeleteComment(ctx context.Context, id thread.ID) error {
	n, err := api.ParseID(id)
	if err != nil {
		return err
	}
	return m.Session.Delete(ctx, n)
}

func (m *Mutator) post(ctx context.Context, parent thread.ID, text string) (thread.ID, error) {
	pid, err := api.ParseID(parent)
	if err != nil {
		return "", err
	}
	if !m.Session.LoggedIn {
		return "", ErrNotLoggedIn
	}
	before := make(map[int]bool)
	if it, err := m.Items.GetItem(ctx, pid); err == nil {
		for _, k := range it.Kids() {
			before[k] = true
		}
	}
	if err := m.Session.Reply(ctx, pid, text); err != nil {
		return "", err
	}
	return m.findNew(ctx, pid, before), nil
}

// findNew returns the newest kid of parent authored by the session user
// that is not in before, or "" when none shows up in time.
func (m *Mutator) findNew(ctx context.Context, parent int, before map[int]bool) thread.ID {
	log := m.Log
	if log == nil {
		log = pslog.Ctx(ctx)
	}
	attempts, interval := m.Attempts, m.Interval
	if attempts <= 0 {
		attempts = 5
	}
	if interval <= 0 {
		interval = time.Second
	}

	for i := 0; i < attempts; i++ {
		if i > 0 {
			select {
			case <-ctx.Done():
				return ""
			case <-time.After(interval):
			}
		}
		it, err := m.Items.GetItem(ctx, parent)
		if err != nil {
			log.Debug("new comment lookup failed", "parent", parent, "error", err)
			continue
		}
		var fresh []int
		for _, k := range it.Kids() {
			if !before[k] {
				fresh = append(fresh, k)
			}
		}
		sort.Sort(sort.Reverse(sort.IntSlice(fresh)))
		for _, k := range fresh {
			kid, err := m.Items.GetItem(ctx, k)
			if err != nil {
				continue
			}
			if kid.By == m.Session.Username {
				return api.FormatID(k)
			}
		}
	}
	log.Warn("posted comment not visible yet", "parent", parent, "user", m.Session.Username)
	return ""
}

var _ thread.Mutator = (*Mutator)(nil)
