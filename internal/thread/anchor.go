package thread

// Position addresses one slot of one list.
type Position struct {
	List  ListID
	Index int
}

// Snapshot is a point of focus to restore after a reload. Path holds
// identities from the root comment down to the focused node; Fallback is the
// root position used when no identity on the path can be found.
type Snapshot struct {
	Path     []ID
	Fallback int
}

// Empty reports whether the snapshot carries no identities.
func (s Snapshot) Empty() bool { return len(s.Path) == 0 }

// Leaf returns the last identity on the path.
func (s Snapshot) Leaf() (ID, bool) {
	if len(s.Path) == 0 {
		return "", false
	}
	return s.Path[len(s.Path)-1], true
}

// Lookup is the identity index a snapshot is resolved against.
type Lookup interface {
	RootLen() int
	RootIndex(id ID) (int, bool)
	ReplyIndex(root, id ID) (int, bool)
	// FindReply searches every live reply list for id.
	FindReply(id ID) (Position, bool)
}

// Resolve finds the best match for s: the exact path, then its parent, then
// the fallback index clamped to the root list. It reports false only when
// the root list is empty.
func Resolve(s Snapshot, lk Lookup) (Position, bool) {
	for path := s.Path; len(path) > 0; path = path[:len(path)-1] {
		if pos, ok := resolvePath(path, lk); ok {
			return pos, true
		}
	}
	n := lk.RootLen()
	if n == 0 {
		return Position{}, false
	}
	idx := s.Fallback
	if idx < 0 {
		idx = 0
	}
	if idx > n-1 {
		idx = n - 1
	}
	return Position{List: RootList, Index: idx}, true
}

func resolvePath(path []ID, lk Lookup) (Position, bool) {
	if len(path) == 1 {
		if i, ok := lk.RootIndex(path[0]); ok {
			return Position{List: RootList, Index: i}, true
		}
		return lk.FindReply(path[0])
	}
	if _, ok := lk.RootIndex(path[0]); !ok {
		return Position{}, false
	}
	j, ok := lk.ReplyIndex(path[0], path[len(path)-1])
	if !ok {
		return Position{}, false
	}
	return Position{List: ListID(path[0]), Index: j}, true
}

// pendingAnchor is a snapshot waiting for the reload it was captured for.
// Stage zero searches the root list; stage one searches the reply list under
// Path[0] for the leaf.
type pendingAnchor struct {
	snap  Snapshot
	stage int
}
