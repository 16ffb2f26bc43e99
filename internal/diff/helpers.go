package diff

import (
	"fmt"

	"github.com/zeebo/xxh3"
)

// Hunk represents a continuous section of changes with surrounding context
type Hunk struct {
	OldStart int
	OldLines int
	NewStart int
	NewLines int
	Lines    []Line
}

// Header returns the "@@ -a,b +c,d @@" range line.
func (h Hunk) Header() string {
	return fmt.Sprintf("@@ -%d,%d +%d,%d @@", h.OldStart, h.OldLines, h.NewStart, h.NewLines)
}

// Hunks groups an edit script into hunks keeping up to context unchanged
// lines around each change. Changes separated by at most 2*context unchanged
// lines share a hunk.
func Hunks(lines []Line, context int) []Hunk {
	if context < 0 {
		context = 0
	}

	var changes []int
	for i, line := range lines {
		if line.Type != Unchanged {
			changes = append(changes, i)
		}
	}
	if len(changes) == 0 {
		return nil
	}

	var hunks []Hunk
	first, last := changes[0], changes[0]
	flush := func() {
		lo := max(0, first-context)
		hi := min(len(lines)-1, last+context)
		hunks = append(hunks, newHunk(lines, lo, hi))
	}

	for _, idx := range changes[1:] {
		if idx-last-1 <= 2*context {
			last = idx
			continue
		}
		flush()
		first, last = idx, idx
	}
	flush()

	return hunks
}

func newHunk(lines []Line, lo, hi int) Hunk {
	oldBefore, newBefore := 0, 0
	for _, line := range lines[:lo] {
		if line.Type != Added {
			oldBefore++
		}
		if line.Type != Removed {
			newBefore++
		}
	}

	h := Hunk{Lines: append([]Line(nil), lines[lo:hi+1]...)}
	for _, line := range h.Lines {
		if line.Type != Added {
			h.OldLines++
		}
		if line.Type != Removed {
			h.NewLines++
		}
	}

	// An empty side points at the line before the hunk, as unified diffs do.
	h.OldStart = oldBefore
	if h.OldLines > 0 {
		h.OldStart++
	}
	h.NewStart = newBefore
	if h.NewLines > 0 {
		h.NewStart++
	}
	return h
}

// splitLines breaks text on \n, \r\n and \r. A trailing terminator does not
// produce an extra empty line, and empty text has no lines.
func splitLines(text string) []string {
	var lines []string
	start := 0
	for i := 0; i < len(text); i++ {
		switch text[i] {
		case '\n':
			lines = append(lines, text[start:i])
			start = i + 1
		case '\r':
			lines = append(lines, text[start:i])
			if i+1 < len(text) && text[i+1] == '\n' {
				i++
			}
			start = i + 1
		}
	}
	if start < len(text) {
		lines = append(lines, text[start:])
	}
	return lines
}

func fingerprints(lines []string) []uint64 {
	keys := make([]uint64, len(lines))
	for i, line := range lines {
		keys[i] = xxh3.HashString(line)
	}
	return keys
}
