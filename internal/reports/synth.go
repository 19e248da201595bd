package reports

import (
	"regexp"
	"strings"
)

var objectObjectRE = regexp.MustCompile(`\[object Object\]`)
var multiBlankLineRE = regexp.MustCompile(`\n{3,}`)

// Synthesize implements spec §4.12 step 3: strip stray `[object Object]`
// artifacts a naive template interpolation can leave behind, collapse
// runs of blank lines, prepend a follow-up label when this run answers a
// follow-up question, and append at most one critical limitation or
// assumption note.
func Synthesize(report Report, followUpLabel string) Report {
	markdown := objectObjectRE.ReplaceAllString(report.Markdown, "")
	markdown = multiBlankLineRE.ReplaceAllString(markdown, "\n\n")
	markdown = strings.TrimSpace(markdown)

	if followUpLabel != "" {
		markdown = "**" + followUpLabel + "**\n\n" + markdown
	}

	if note := criticalNote(report); note != "" {
		markdown += "\n\n> " + note
	}

	report.Markdown = markdown
	return report
}

// criticalNote returns at most one note to append: the first limitation
// if any exist, else the first assumption, else empty.
func criticalNote(report Report) string {
	if len(report.Limitations) > 0 {
		return report.Limitations[0]
	}
	if len(report.Assumptions) > 0 {
		return report.Assumptions[0]
	}
	return ""
}
