package threadview

import (
	"github.com/fragmede/threadview/internal/thread"
)

// LineKind tags one display row.
type LineKind uint8

const (
	LineComment LineKind = iota
	// LineMore is the load-more affordance closing a reply list.
	LineMore
)

// Line is one selectable display row: a root comment, a reply, or the
// load-more affordance of an expanded root.
type Line struct {
	Kind  LineKind
	List  thread.ListID
	Index int
	// Root and RootIndex locate the root comment owning a reply or
	// load-more row.
	Root      thread.ID
	RootIndex int
}

// Depth is 0 for root rows and 1 for reply rows.
func (l Line) Depth() int {
	if l.List.IsRoot() {
		return 0
	}
	return 1
}

// Flatten lays out the root list with each open reply list inserted under
// its root comment. Root rows span the whole list; reply rows stop at the
// last row the loader painted.
func Flatten(s *Surface, canLoadMore func(thread.ID) bool) []Line {
	n := s.Len(thread.RootList)
	lines := make([]Line, 0, n)
	for i := 0; i < n; i++ {
		lines = append(lines, Line{Kind: LineComment, List: thread.RootList, Index: i})
		c, ok := s.Comment(thread.RootList, i)
		if !ok {
			continue
		}
		list := thread.ListID(c.ID)
		if !s.Has(list) {
			continue
		}
		for j := 0; j < s.painted(list); j++ {
			lines = append(lines, Line{Kind: LineComment, List: list, Index: j, Root: c.ID, RootIndex: i})
		}
		if canLoadMore != nil && canLoadMore(c.ID) {
			lines = append(lines, Line{Kind: LineMore, List: list, Index: -1, Root: c.ID, RootIndex: i})
		}
	}
	return lines
}

// find returns the line showing pos.
func find(lines []Line, pos thread.Position) (int, bool) {
	for i, l := range lines {
		if l.Kind == LineComment && l.List == pos.List && l.Index == pos.Index {
			return i, true
		}
	}
	return 0, false
}

// relocate finds the line that took the place of prev after a relayout:
// the same row, or its root comment when the reply list went away.
func relocate(lines []Line, prev Line) (int, bool) {
	for i, l := range lines {
		if l.Kind == prev.Kind && l.List == prev.List && l.Index == prev.Index {
			return i, true
		}
	}
	if prev.List.IsRoot() {
		return 0, false
	}
	return find(lines, thread.Position{List: thread.RootList, Index: prev.RootIndex})
}

// visibleRanges maps each list to the inclusive index range of its rows
// in lines[first:last+1]. A visible reply row keeps its root row in range.
func visibleRanges(lines []Line, first, last int) map[thread.ListID][2]int {
	out := make(map[thread.ListID][2]int)
	add := func(list thread.ListID, i int) {
		r, ok := out[list]
		if !ok {
			out[list] = [2]int{i, i}
			return
		}
		if i < r[0] {
			r[0] = i
		}
		if i > r[1] {
			r[1] = i
		}
		out[list] = r
	}
	if first < 0 {
		first = 0
	}
	for i := first; i <= last && i < len(lines); i++ {
		l := lines[i]
		if l.Kind == LineComment {
			add(l.List, l.Index)
		}
		if !l.List.IsRoot() {
			add(thread.RootList, l.RootIndex)
		}
	}
	return out
}
