package thread

// Window is an inclusive index range materialized into the surface.
type Window struct {
	Start, End int
	Valid      bool
}

// Contains reports whether i lies inside the window.
func (w Window) Contains(i int) bool {
	return w.Valid && i >= w.Start && i <= w.End
}

// Intersect clips the half-open range [start, end) to the window and returns
// it as a half-open range.
func (w Window) Intersect(start, end int) (int, int, bool) {
	if !w.Valid {
		return 0, 0, false
	}
	if start < w.Start {
		start = w.Start
	}
	if end > w.End+1 {
		end = w.End + 1
	}
	return start, end, start < end
}

// ComputeWindow pads the visible range, clamps it to [0, total-1] and
// extends it to cover selected when selected is a valid index.
func ComputeWindow(visStart, visEnd, padding, total, selected int) Window {
	if total <= 0 {
		return Window{}
	}
	if visEnd < visStart {
		visStart, visEnd = visEnd, visStart
	}
	if padding < 0 {
		padding = 0
	}
	start := visStart - padding
	end := visEnd + padding
	if start < 0 {
		start = 0
	}
	if end > total-1 {
		end = total - 1
	}
	if start > end {
		// Visible range lies past the end of a shrunken list; keep the tail.
		span := visEnd - visStart + 2*padding
		start = end - span
		if start < 0 {
			start = 0
		}
	}
	if selected >= 0 && selected < total {
		if selected < start {
			start = selected
		}
		if selected > end {
			end = selected
		}
	}
	return Window{Start: start, End: end, Valid: true}
}
