package graph

import (
	"fmt"
	"strings"
)

const noNotesSentence = "No setup notes were found in this workflow."

// BuildInstructions composes the setup guide for a workflow from the
// extractor output. The document always has the same sections: title,
// import steps, optional key integrations, and setup notes.
func BuildInstructions(name, fileName string, integrations, notes []string) string {
	title := name
	if title == "" {
		title = fileName
	}

	var b strings.Builder
	fmt.Fprintf(&b, "# %s\n\n", title)

	b.WriteString("## Import\n\n")
	b.WriteString("1. Open your automation platform and choose **Import from File**.\n")
	fmt.Fprintf(&b, "2. Select `%s` and save the imported workflow.\n\n", fileName)

	if len(integrations) > 0 {
		b.WriteString("## Key Integrations\n\n")
		for _, name := range integrations {
			fmt.Fprintf(&b, "- %s\n", name)
		}
		b.WriteString("\n")
	}

	b.WriteString("## Setup Notes\n\n")
	if len(notes) == 0 {
		b.WriteString(noNotesSentence + "\n")
		return b.String()
	}
	for i, note := range notes {
		fmt.Fprintf(&b, "### Note %d\n\n%s\n\n", i+1, note)
	}
	return strings.TrimRight(b.String(), "\n") + "\n"
}

// NoteDescription derives the candidate workflow description from the
// first sticky note: its first line with leading '#'/'**' emphasis
// markers and a trailing '**' stripped. This is the only place a
// description is synthesized when the catalog omitted one.
func NoteDescription(notes []string) string {
	if len(notes) == 0 {
		return ""
	}
	line := notes[0]
	if i := strings.IndexByte(line, '\n'); i >= 0 {
		line = line[:i]
	}
	line = strings.TrimSpace(line)
	line = strings.TrimLeft(line, "#")
	line = strings.TrimSpace(line)
	line = strings.TrimPrefix(line, "**")
	line = strings.TrimSuffix(line, "**")
	return strings.TrimSpace(line)
}
