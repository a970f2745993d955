package thread

// SlotKind tags the state of a Slot.
type SlotKind uint8

const (
	SlotEmpty SlotKind = iota
	SlotPlaceholder
	SlotFilled
)

// PlaceholderKind is what an unresolved position displays.
type PlaceholderKind uint8

const (
	PlaceholderLoading PlaceholderKind = iota
	PlaceholderFailed
)

func (k PlaceholderKind) String() string {
	if k == PlaceholderFailed {
		return "failed"
	}
	return "loading"
}

// Slot is one position in a list's index space. The zero value is an empty
// slot. Fields are unexported so a slot is exactly one of empty, placeholder
// or filled.
type Slot struct {
	kind        SlotKind
	placeholder PlaceholderKind
	comment     Comment
}

// PlaceholderSlot returns a slot showing kind.
func PlaceholderSlot(kind PlaceholderKind) Slot {
	return Slot{kind: SlotPlaceholder, placeholder: kind}
}

// FilledSlot returns a slot holding c.
func FilledSlot(c Comment) Slot {
	return Slot{kind: SlotFilled, comment: c}
}

// Kind returns the slot tag.
func (s Slot) Kind() SlotKind { return s.kind }

// Comment returns the held comment, if filled.
func (s Slot) Comment() (Comment, bool) {
	if s.kind != SlotFilled {
		return Comment{}, false
	}
	return s.comment, true
}

// Placeholder returns the placeholder kind, if the slot is a placeholder.
func (s Slot) Placeholder() (PlaceholderKind, bool) {
	if s.kind != SlotPlaceholder {
		return 0, false
	}
	return s.placeholder, true
}

// SlotStore is the growable position space of one list plus an
// identity-to-index lookup over its filled slots.
type SlotStore struct {
	slots []Slot
	index map[ID]int
}

// NewSlotStore returns an empty store.
func NewSlotStore() *SlotStore {
	return &SlotStore{index: make(map[ID]int)}
}

// Len returns the number of slots.
func (s *SlotStore) Len() int { return len(s.slots) }

// At returns the slot at i, or an empty slot when out of range.
func (s *SlotStore) At(i int) Slot {
	if i < 0 || i >= len(s.slots) {
		return Slot{}
	}
	return s.slots[i]
}

// EnsureCapacity grows the store with empty slots to length n. It never
// shrinks.
func (s *SlotStore) EnsureCapacity(n int) {
	if n <= len(s.slots) {
		return
	}
	if old := len(s.slots); cap(s.slots) >= n {
		s.slots = s.slots[:n]
		for i := old; i < n; i++ {
			s.slots[i] = Slot{}
		}
		return
	}
	grown := make([]Slot, n)
	copy(grown, s.slots)
	s.slots = grown
}

// Set fills slot i with c. An identity already filled at a different index
// is left where it is and Set reports false; identities are unique per list.
func (s *SlotStore) Set(i int, c Comment) bool {
	if i < 0 || i >= len(s.slots) {
		return false
	}
	if j, ok := s.index[c.ID]; ok && j != i {
		return false
	}
	if prev, ok := s.slots[i].Comment(); ok && prev.ID != c.ID {
		delete(s.index, prev.ID)
	}
	s.slots[i] = FilledSlot(c)
	s.index[c.ID] = i
	return true
}

// SetPlaceholder marks slot i as a placeholder. Filled slots are left alone.
func (s *SlotStore) SetPlaceholder(i int, kind PlaceholderKind) bool {
	if i < 0 || i >= len(s.slots) || s.slots[i].kind == SlotFilled {
		return false
	}
	s.slots[i] = PlaceholderSlot(kind)
	return true
}

// Trim removes trailing slots so the store has length n and rebuilds the
// identity index.
func (s *SlotStore) Trim(n int) {
	if n < 0 {
		n = 0
	}
	if n >= len(s.slots) {
		return
	}
	for i := n; i < len(s.slots); i++ {
		s.slots[i] = Slot{}
	}
	s.slots = s.slots[:n]
	s.index = make(map[ID]int, len(s.index))
	for i, slot := range s.slots {
		if c, ok := slot.Comment(); ok {
			s.index[c.ID] = i
		}
	}
}

// IndexOf returns the index holding id.
func (s *SlotStore) IndexOf(id ID) (int, bool) {
	i, ok := s.index[id]
	return i, ok
}

// Filled returns how many slots hold a comment.
func (s *SlotStore) Filled() int { return len(s.index) }

// FilledIn counts filled slots in [start, end).
func (s *SlotStore) FilledIn(start, end int) int {
	if start < 0 {
		start = 0
	}
	if end > len(s.slots) {
		end = len(s.slots)
	}
	n := 0
	for i := start; i < end; i++ {
		if s.slots[i].kind == SlotFilled {
			n++
		}
	}
	return n
}

// IDs returns the set of identities currently filled.
func (s *SlotStore) IDs() map[ID]struct{} {
	out := make(map[ID]struct{}, len(s.index))
	for id := range s.index {
		out[id] = struct{}{}
	}
	return out
}

// Clear empties the slots in [start, end) and drops their identities.
func (s *SlotStore) Clear(start, end int) {
	if start < 0 {
		start = 0
	}
	if end > len(s.slots) {
		end = len(s.slots)
	}
	for i := start; i < end; i++ {
		if c, ok := s.slots[i].Comment(); ok {
			delete(s.index, c.ID)
		}
		s.slots[i] = Slot{}
	}
}
