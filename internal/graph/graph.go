// Package graph reads workflow definition documents produced by the
// workflow-authoring tool and extracts the metadata the catalog needs:
// integration names, sticky-note annotations, and a setup guide.
package graph

import (
	"encoding/json"
	"fmt"
	"strings"
)

// Graph is the subset of a workflow definition this backend consumes.
type Graph struct {
	Name  string `json:"name"`
	Nodes []Node `json:"nodes"`
}

// Node is a single node of the automation graph.
type Node struct {
	Type       string     `json:"type"`
	Parameters Parameters `json:"parameters"`
}

// Parameters carries the one node parameter we read: sticky-note text.
type Parameters struct {
	Content string `json:"content"`
}

// Decode parses a workflow definition document.
func Decode(data []byte) (*Graph, error) {
	var g Graph
	if err := json.Unmarshal(data, &g); err != nil {
		return nil, fmt.Errorf("decode workflow graph: %w", err)
	}
	return &g, nil
}

// simpleName returns the last dot-separated segment of a node type,
// e.g. "n8n-nodes-base.googleSheets" -> "googleSheets".
func simpleName(nodeType string) string {
	if i := strings.LastIndexByte(nodeType, '.'); i >= 0 {
		return nodeType[i+1:]
	}
	return nodeType
}
