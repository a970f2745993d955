package monitor

import (
	"context"
	"encoding/json"
	"sync"
	"testing"
	"time"

	"github.com/fragmede/threadview/internal/api"
	"github.com/fragmede/threadview/internal/thread"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

type fakeSource struct {
	mu   sync.Mutex
	kids map[int][]int
}

func (f *fakeSource) set(id int, kids ...int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.kids[id] = kids
}

func (f *fakeSource) BatchGetItems(_ context.Context, ids []int) ([]*api.Item, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]*api.Item, len(ids))
	for i, id := range ids {
		kids, ok := f.kids[id]
		if !ok {
			continue
		}
		raw, _ := json.Marshal(kids)
		out[i] = &api.Item{ID: id, Type: "story", RawKids: raw}
	}
	return out, nil
}

type storeFunc func(*api.Item)

func (f storeFunc) PutItem(_ context.Context, it *api.Item) error {
	f(it)
	return nil
}

func TestPollReportsChangedCounts(t *testing.T) {
	src := &fakeSource{kids: map[int][]int{1: {10, 11}, 2: {20}}}
	var stored []int
	var updates []Update
	m := New(Options{
		Source: src,
		Store:  storeFunc(func(it *api.Item) { stored = append(stored, it.ID) }),
		Report: func(u Update) { updates = append(updates, u) },
	})
	m.Watch("1", 2)
	m.Watch("2", 0)
	m.Watch("bogus", 5)

	m.Poll(context.Background())
	require.Len(t, updates, 1)
	assert.Equal(t, thread.ID("2"), updates[0].ID)
	assert.Equal(t, 1, updates[0].Count)
	assert.ElementsMatch(t, []int{1, 2}, stored)

	src.set(1, 10)
	m.Poll(context.Background())
	require.Len(t, updates, 2)
	assert.Equal(t, Update{ID: "1", Count: 1}, Update{ID: updates[1].ID, Count: updates[1].Count})

	m.Unwatch("1")
	src.set(1, 10, 11, 12)
	m.Poll(context.Background())
	assert.Len(t, updates, 2)
}

func TestStartStop(t *testing.T) {
	src := &fakeSource{kids: map[int][]int{1: {10}}}
	got := make(chan Update, 1)
	m := New(Options{
		Source:   src,
		Interval: 5 * time.Millisecond,
		Report: func(u Update) {
			select {
			case got <- u:
			default:
			}
		},
	})
	m.Watch("1", 0)
	m.Start(context.Background())

	select {
	case u := <-got:
		assert.Equal(t, 1, u.Count)
	case <-time.After(2 * time.Second):
		t.Fatal("no update reported")
	}
	m.Stop()
	m.Stop()
}
