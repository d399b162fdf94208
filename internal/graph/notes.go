package graph

import "strings"

const stickyNoteType = "stickyNote"

// StickyNotes returns the trimmed, non-empty free-text annotations of a
// graph, in node array order.
func StickyNotes(nodes []Node) []string {
	var out []string
	for _, node := range nodes {
		if simpleName(node.Type) != stickyNoteType {
			continue
		}
		if content := strings.TrimSpace(node.Parameters.Content); content != "" {
			out = append(out, content)
		}
	}
	return out
}
