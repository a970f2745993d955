package monitor

import (
	"context"
	"time"

	"github.com/fragmede/threadview/internal/api"
	"github.com/fragmede/threadview/internal/thread"
	"pkt.systems/pslog"
)

// Update reports a changed child count of a watched item.
type Update struct {
	ID    thread.ID
	Count int
	Item  *api.Item
}

// Source loads the current state of watched items.
type Source interface {
	BatchGetItems(ctx context.Context, ids []int) ([]*api.Item, error)
}

// Store receives every item the monitor fetched.
type Store interface {
	PutItem(ctx context.Context, item *api.Item) error
}

// Options configures a Monitor.
type Options struct {
	Source   Source
	Store    Store // optional
	Interval time.Duration
	// Report is called from the monitor goroutine.
	Report func(Update)
	Logger pslog.Logger
}
