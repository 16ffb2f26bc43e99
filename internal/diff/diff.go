// internal/diff/diff.go
package diff

import (
	"fmt"
	"strings"
)

// LineType indicates whether a line was added, removed, or is unchanged
type LineType int

const (
	Unchanged LineType = iota
	Added
	Removed
)

// Symbol returns the one-character marker used when printing a line.
func (t LineType) Symbol() string {
	switch t {
	case Added:
		return "+"
	case Removed:
		return "-"
	default:
		return " "
	}
}

func (t LineType) String() string {
	switch t {
	case Added:
		return "added"
	case Removed:
		return "removed"
	default:
		return "unchanged"
	}
}

// Line represents a single line in a diff with its type and content.
// OldNum is set for unchanged and removed lines, NewNum for unchanged and
// added lines. Both are 1-based.
type Line struct {
	Type    LineType
	Content string
	OldNum  int
	NewNum  int
}

// Number returns the line's position in the text it was taken from.
func (l Line) Number() int {
	if l.Type == Added {
		return l.NewNum
	}
	return l.OldNum
}

func (l Line) String() string {
	return l.Type.Symbol() + " " + l.Content
}

// Result contains the complete diff information
type Result struct {
	Lines []Line
	Hunks []Hunk
	Stats struct {
		Additions int
		Deletions int
		Changes   int
	}
}

// Engine provides diffing capabilities
type Engine struct {
	contextLines int
}

// NewEngine creates a new diff engine with specified context lines
func NewEngine(contextLines int) *Engine {
	if contextLines < 0 {
		contextLines = 0
	}
	return &Engine{
		contextLines: contextLines,
	}
}

// Diff generates the line-by-line edit script from oldContent to newContent
// and groups it into hunks.
func (e *Engine) Diff(oldContent, newContent string) *Result {
	result := &Result{Lines: Compute(oldContent, newContent)}
	result.Hunks = Hunks(result.Lines, e.contextLines)
	result.Stats.Additions, result.Stats.Deletions = Stats(result.Lines)
	result.Stats.Changes = result.Stats.Additions + result.Stats.Deletions
	return result
}

// Compute returns the full edit script from a to b, every line of both texts
// included, in forward order.
func Compute(a, b string) []Line {
	oldLines := splitLines(a)
	newLines := splitLines(b)
	if len(oldLines) == 0 && len(newLines) == 0 {
		return nil
	}

	oldKeys := fingerprints(oldLines)
	newKeys := fingerprints(newLines)
	equal := func(i, j int) bool {
		return oldKeys[i] == newKeys[j] && oldLines[i] == newLines[j]
	}

	lcs := buildLCSMatrix(len(oldLines), len(newLines), equal)
	return backtrack(oldLines, newLines, lcs, equal)
}

// buildLCSMatrix fills an (m+1)x(n+1) table where cell (i,j) holds the LCS
// length of the first i old lines and the first j new lines.
func buildLCSMatrix(m, n int, equal func(i, j int) bool) [][]int {
	matrix := make([][]int, m+1)
	for i := range matrix {
		matrix[i] = make([]int, n+1)
	}

	for i := 1; i <= m; i++ {
		for j := 1; j <= n; j++ {
			if equal(i-1, j-1) {
				matrix[i][j] = matrix[i-1][j-1] + 1
			} else {
				matrix[i][j] = max(matrix[i-1][j], matrix[i][j-1])
			}
		}
	}

	return matrix
}

// backtrack walks the matrix from (m,n) back to the origin. When both
// directions keep the same LCS length it emits the addition first, which puts
// removals ahead of additions once the script is reversed.
func backtrack(oldLines, newLines []string, lcs [][]int, equal func(i, j int) bool) []Line {
	lines := make([]Line, 0, max(len(oldLines), len(newLines)))

	i, j := len(oldLines), len(newLines)
	for i > 0 || j > 0 {
		switch {
		case i > 0 && j > 0 && equal(i-1, j-1):
			lines = append(lines, Line{Type: Unchanged, Content: oldLines[i-1], OldNum: i, NewNum: j})
			i--
			j--
		case j > 0 && (i == 0 || lcs[i][j-1] >= lcs[i-1][j]):
			lines = append(lines, Line{Type: Added, Content: newLines[j-1], NewNum: j})
			j--
		default:
			lines = append(lines, Line{Type: Removed, Content: oldLines[i-1], OldNum: i})
			i--
		}
	}

	for l, r := 0, len(lines)-1; l < r; l, r = l+1, r-1 {
		lines[l], lines[r] = lines[r], lines[l]
	}
	return lines
}

// Format renders one "<symbol> <content>" row per line.
func Format(lines []Line) string {
	if len(lines) == 0 {
		return "No changes"
	}

	rows := make([]string, len(lines))
	for i, line := range lines {
		rows[i] = line.String()
	}
	return strings.Join(rows, "\n")
}

// Stats counts added and removed lines.
func Stats(lines []Line) (additions, deletions int) {
	for _, line := range lines {
		switch line.Type {
		case Added:
			additions++
		case Removed:
			deletions++
		}
	}
	return additions, deletions
}

// HasChanges reports whether any line was added or removed.
func HasChanges(lines []Line) bool {
	for _, line := range lines {
		if line.Type != Unchanged {
			return true
		}
	}
	return false
}

// Format returns the unified rendering of the result's hunks
func (r *Result) Format() string {
	var buf strings.Builder
	for _, hunk := range r.Hunks {
		buf.WriteString(hunk.Header())
		buf.WriteString("\n")
		for _, line := range hunk.Lines {
			buf.WriteString(line.String())
			buf.WriteString("\n")
		}
	}
	return buf.String()
}

// Summary describes the change counts, e.g. "2 insertions(+), 1 deletion(-)".
func (r *Result) Summary() string {
	return fmt.Sprintf("%d %s(+), %d %s(-)",
		r.Stats.Additions, plural(r.Stats.Additions, "insertion"),
		r.Stats.Deletions, plural(r.Stats.Deletions, "deletion"))
}

func plural(n int, word string) string {
	if n == 1 {
		return word
	}
	return word + "s"
}
