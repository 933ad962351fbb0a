package items

import (
	"strings"

	"github.com/sergi/go-diff/diffmatchpatch"
)

// DiffText computes a line-level diff from before to after
func DiffText(before, after string) []diffmatchpatch.Diff {
	dmp := diffmatchpatch.New()

	// Line-mode diff (more efficient for text)
	a, b, lineArray := dmp.DiffLinesToChars(before, after)
	diffs := dmp.DiffMain(a, b, false)
	return dmp.DiffCharsToLines(diffs, lineArray)
}

// FormatDiff renders diffs as "-"/"+" prefixed lines. Unchanged lines are
// omitted. Returns "" when nothing changed.
func FormatDiff(diffs []diffmatchpatch.Diff) string {
	var b strings.Builder
	for _, d := range diffs {
		var prefix string
		switch d.Type {
		case diffmatchpatch.DiffDelete:
			prefix = "- "
		case diffmatchpatch.DiffInsert:
			prefix = "+ "
		default:
			continue
		}
		for _, line := range strings.SplitAfter(d.Text, "\n") {
			if line == "" {
				continue
			}
			b.WriteString(prefix)
			b.WriteString(line)
			if !strings.HasSuffix(line, "\n") {
				b.WriteByte('\n')
			}
		}
	}
	return b.String()
}

// DescribeChange summarises how the text of a note changed between two versions
func DescribeChange(prev, next *Item) string {
	var oldText string
	if prev != nil {
		oldText = prev.Content.Text
	}
	return FormatDiff(DiffText(oldText, next.Content.Text))
}
