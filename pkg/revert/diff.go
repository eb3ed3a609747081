package revert

import (
	"fmt"
	"strings"

	"github.com/sergi/go-diff/diffmatchpatch"
)

// maxPreviewLines caps the rendered diff so a full-document restore preview
// stays readable in a terminal.
const maxPreviewLines = 200

// DiffPreview renders a line diff between two document serializations, with
// "-"/"+" prefixes and a one-line summary. Used by the CLI and TUI to show
// what a checkpoint restore would change.
func DiffPreview(before, after string) string {
	dmp := diffmatchpatch.New()
	beforeChars, afterChars, lineArray := dmp.DiffLinesToChars(before, after)
	diffs := dmp.DiffMain(beforeChars, afterChars, false)
	diffs = dmp.DiffCharsToLines(diffs, lineArray)

	var b strings.Builder
	added, removed, rendered := 0, 0, 0
	truncated := false

	for _, d := range diffs {
		lines := strings.Split(d.Text, "\n")
		if len(lines) > 0 && lines[len(lines)-1] == "" {
			lines = lines[:len(lines)-1]
		}
		for _, line := range lines {
			var prefix string
			switch d.Type {
			case diffmatchpatch.DiffDelete:
				prefix = "-"
				removed++
			case diffmatchpatch.DiffInsert:
				prefix = "+"
				added++
			default:
				prefix = " "
			}
			if rendered < maxPreviewLines {
				b.WriteString(prefix)
				b.WriteString(line)
				b.WriteString("\n")
				rendered++
			} else {
				truncated = true
			}
		}
	}

	if added == 0 && removed == 0 {
		return "no changes\n"
	}
	if truncated {
		fmt.Fprintf(&b, "... (truncated)\n")
	}
	fmt.Fprintf(&b, "%d line(s) added, %d removed\n", added, removed)
	return b.String()
}
