package thread

import (
	"context"
	"fmt"
)

// Capture snapshots the current focus. An explicit identity yields a
// single-element path; otherwise the path runs from the selected root
// comment to the selected reply. Fallback is the root position of the
// selection.
func (t *Thread) Capture(explicit ID) Snapshot {
	snap := Snapshot{}
	if t.root == nil {
		if explicit != "" {
			snap.Path = []ID{explicit}
		}
		return snap
	}
	if t.selValid {
		if t.sel.List.IsRoot() {
			snap.Fallback = t.sel.Index
		} else if i, ok := t.root.slots.IndexOf(ID(t.sel.List)); ok {
			snap.Fallback = i
		}
	}
	if explicit != "" {
		snap.Path = []ID{explicit}
		return snap
	}
	if !t.selValid {
		return snap
	}
	if t.sel.List.IsRoot() {
		if c, ok := t.root.slots.At(t.sel.Index).Comment(); ok {
			snap.Path = []ID{c.ID}
		}
		return snap
	}
	snap.Path = []ID{ID(t.sel.List)}
	if l, ok := t.replies[t.sel.List]; ok {
		if c, ok := l.slots.At(t.sel.Index).Comment(); ok {
			snap.Path = append(snap.Path, c.ID)
		}
	}
	return snap
}

// AddComment posts a top-level comment. On success the thread reloads and
// selects the new comment; done runs on the owner either way.
func (t *Thread) AddComment(text string, done func(MutationResult)) {
	target := t.opts.Target
	t.mutate("comment", done, func(ctx context.Context, m Mutator) (ID, error) {
		return m.AddComment(ctx, target, text)
	}, func(id ID) Snapshot {
		return t.Capture(id)
	})
}

// Reply posts a reply to parent. On success the parent's root comment is
// expanded and the reload selects the new reply.
func (t *Thread) Reply(parent ID, text string, done func(MutationResult)) {
	root := t.rootOf(parent)
	t.mutate("reply", done, func(ctx context.Context, m Mutator) (ID, error) {
		return m.ReplyComment(ctx, parent, text)
	}, func(id ID) Snapshot {
		snap := t.Capture("")
		if root == "" {
			snap.Path = []ID{id}
			return snap
		}
		t.expanded[root] = struct{}{}
		snap.Path = []ID{root, id}
		return snap
	})
}

// Delete removes a comment and reloads, keeping the current selection.
func (t *Thread) Delete(id ID, done func(MutationResult)) {
	t.mutate("delete", done, func(ctx context.Context, m Mutator) (ID, error) {
		return id, m.DeleteComment(ctx, id)
	}, func(ID) Snapshot {
		return t.Capture("")
	})
}

// rootOf returns the root comment owning id: id itself for a root comment,
// the list owner for a reply.
func (t *Thread) rootOf(id ID) ID {
	if t.root == nil {
		return ""
	}
	if _, ok := t.root.slots.IndexOf(id); ok {
		return id
	}
	if pos, ok := (threadLookup{t}).FindReply(id); ok {
		return ID(pos.List)
	}
	return ""
}

func (t *Thread) mutate(kind string, done func(MutationResult), call func(context.Context, Mutator) (ID, error), anchor func(ID) Snapshot) {
	if done == nil {
		done = func(MutationResult) {}
	}
	if t.closed {
		done(MutationResult{Err: ErrClosed, Message: kind + " failed: thread closed"})
		return
	}
	m := t.opts.Mutator
	if m == nil {
		done(MutationResult{Err: ErrNoMutator, Message: kind + " failed: not logged in"})
		return
	}
	t.sched.Go(func(ctx context.Context) func() {
		id, err := call(ctx, m)
		return func() {
			if err != nil {
				t.log.Warn("mutation failed", "kind", kind, "error", err)
				done(MutationResult{Err: err, Message: fmt.Sprintf("%s failed: %v", kind, err)})
				return
			}
			if t.closed {
				done(MutationResult{ID: id, Message: kind + " sent"})
				return
			}
			t.log.Info("mutation applied", "kind", kind, "id", string(id))
			snap := anchor(id)
			t.opened = true
			t.reload(&snap)
			done(MutationResult{ID: id, Message: kind + " sent"})
		}
	})
}
