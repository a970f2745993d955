package threadview

import (
	"github.com/fragmede/threadview/internal/thread"
)

type rowState uint8

const (
	rowUnset rowState = iota
	rowPlaceholder
	rowFilled
)

type row struct {
	state   rowState
	kind    thread.PlaceholderKind
	comment thread.Comment
}

// Surface is the thread.Surface the view renders from. It mirrors what the
// loader painted, list by list.
type Surface struct {
	lists map[thread.ListID][]row

	sel     thread.Position
	selNew  bool
	version uint64
}

// NewSurface returns an empty surface.
func NewSurface() *Surface {
	return &Surface{lists: make(map[thread.ListID][]row)}
}

func (s *Surface) at(list thread.ListID, i int) *row {
	rows := s.lists[list]
	if i < 0 {
		return nil
	}
	if i >= len(rows) {
		rows = append(rows, make([]row, i+1-len(rows))...)
		s.lists[list] = rows
	}
	return &rows[i]
}

// Materialize implements thread.Surface.
func (s *Surface) Materialize(list thread.ListID, i int, c thread.Comment) {
	if r := s.at(list, i); r != nil {
		*r = row{state: rowFilled, comment: c}
		s.version++
	}
}

// SetPlaceholder implements thread.Surface.
func (s *Surface) SetPlaceholder(list thread.ListID, i int, kind thread.PlaceholderKind) {
	if r := s.at(list, i); r != nil {
		*r = row{state: rowPlaceholder, kind: kind}
		s.version++
	}
}

// Resize implements thread.Resizer. A zero length forgets the list.
func (s *Surface) Resize(list thread.ListID, n int) {
	s.version++
	if n <= 0 {
		delete(s.lists, list)
		if list.IsRoot() {
			s.lists[list] = nil
		}
		return
	}
	rows := s.lists[list]
	if n < len(rows) {
		s.lists[list] = rows[:n:n]
		return
	}
	s.lists[list] = append(rows, make([]row, n-len(rows))...)
}

// Select implements thread.Selector.
func (s *Surface) Select(list thread.ListID, i int) {
	s.sel = thread.Position{List: list, Index: i}
	s.selNew = true
}

// takeSelection returns a selection made by the loader since the last call.
func (s *Surface) takeSelection() (thread.Position, bool) {
	if !s.selNew {
		return thread.Position{}, false
	}
	s.selNew = false
	return s.sel, true
}

// Len returns the row count of list.
func (s *Surface) Len(list thread.ListID) int { return len(s.lists[list]) }

// Comment returns the comment painted at i of list.
func (s *Surface) Comment(list thread.ListID, i int) (thread.Comment, bool) {
	rows := s.lists[list]
	if i < 0 || i >= len(rows) || rows[i].state != rowFilled {
		return thread.Comment{}, false
	}
	return rows[i].comment, true
}

// painted returns the number of leading rows of list up to the last one
// the loader painted.
func (s *Surface) painted(list thread.ListID) int {
	rows := s.lists[list]
	for i := len(rows) - 1; i >= 0; i-- {
		if rows[i].state != rowUnset {
			return i + 1
		}
	}
	return 0
}

// Has reports whether list is known to the surface.
func (s *Surface) Has(list thread.ListID) bool {
	_, ok := s.lists[list]
	return ok
}

func (s *Surface) row(list thread.ListID, i int) row {
	rows := s.lists[list]
	if i < 0 || i >= len(rows) {
		return row{}
	}
	return rows[i]
}
