// Package tui provides a Bubble Tea terminal UI for the Jianghu engine.
package tui

import "github.com/nathoo/jianghu/types"

// History remembers what the player typed, kept apart per scene mode:
// Up in a dialogue recalls earlier spoken lines, Up in combat earlier moves.
type History struct {
	limit  int
	lines  map[types.UIMode][]string
	mode   types.UIMode // mode being browsed
	cursor int          // -1 when not browsing
}

// NewHistory keeps up to limit lines for each mode.
func NewHistory(limit int) *History {
	return &History{
		limit:  limit,
		lines:  make(map[types.UIMode][]string),
		cursor: -1,
	}
}

// Push records a line typed in mode. Repeating the previous line of that
// mode is not recorded twice.
func (h *History) Push(mode types.UIMode, line string) {
	ls := h.lines[mode]
	if len(ls) > 0 && ls[len(ls)-1] == line {
		return
	}
	ls = append(ls, line)
	if len(ls) > h.limit {
		ls = ls[1:]
	}
	h.lines[mode] = ls
}

// Prev steps back through the lines typed in mode. Switching mode while
// browsing starts again from that mode's newest line.
func (h *History) Prev(mode types.UIMode) (string, bool) {
	ls := h.lines[mode]
	if len(ls) == 0 {
		return "", false
	}
	if h.cursor == -1 || h.mode != mode {
		h.mode = mode
		h.cursor = len(ls) - 1
	} else if h.cursor > 0 {
		h.cursor--
	}
	return ls[h.cursor], true
}

// Next steps forward. Past the newest line it stops browsing and reports
// false so the caller can clear the input.
func (h *History) Next() (string, bool) {
	if h.cursor == -1 {
		return "", false
	}
	ls := h.lines[h.mode]
	h.cursor++
	if h.cursor >= len(ls) {
		h.cursor = -1
		return "", false
	}
	return ls[h.cursor], true
}

// ResetCursor stops browsing.
func (h *History) ResetCursor() {
	h.cursor = -1
}
