package graph

import (
	"strings"
	"unicode"

	"flowstore/backend/pkg/models"
)

// Classifier turns raw node type strings into human-readable integration
// names. Node types are an unversioned, ad hoc taxonomy, so this is a
// best-effort heuristic classifier driven by an explicit rule table
// rather than a schema.
type Classifier struct {
	// namespaceMarker gates which node types are considered at all.
	namespaceMarker string
	// aiNamespace marks the AI-orchestration sub-namespace whose nodes
	// get keyword-based canonical labels on top of the generic one.
	aiNamespace string
	// structural denies node types that are wiring, not integrations.
	structural map[string]bool
	aiKeywords []keywordRule
}

type keywordRule struct {
	Keyword string // case-insensitive substring of the simple name
	Label   string
}

// NewClassifier builds the default rule table.
func NewClassifier() *Classifier {
	structural := []string{
		"if", "switch", "merge", "filter", "noOp", "set", "code",
		"httpRequest", "webhook", "respondToWebhook", "stickyNote",
		"wait", "splitInBatches", "splitOut", "aggregate", "limit",
		"executeWorkflow", "executeWorkflowTrigger", "cron", "form",
		"formTrigger", "manualTrigger", "scheduleTrigger", "chatTrigger",
		"errorTrigger",
	}
	deny := make(map[string]bool, len(structural))
	for _, t := range structural {
		deny[t] = true
	}
	return &Classifier{
		namespaceMarker: "n8n-nodes-",
		aiNamespace:     "n8n-nodes-langchain",
		structural:      deny,
		aiKeywords: []keywordRule{
			{Keyword: "openai", Label: "OpenAI"},
			{Keyword: "anthropic", Label: "Anthropic"},
			{Keyword: "gemini", Label: "Google Gemini"},
			{Keyword: "ollama", Label: "Ollama"},
			{Keyword: "memory", Label: "AI Memory"},
			{Keyword: "agent", Label: "AI Agent"},
			{Keyword: "embeddings", Label: "Embeddings"},
			{Keyword: "vectorstore", Label: "Vector Store"},
		},
	}
}

// Integrations classifies the nodes of a graph into an ordered,
// deduplicated list of at most models.MaxIntegrations names. Insertion
// order follows node order; the cap truncates from first-seen order.
func (c *Classifier) Integrations(nodes []Node) []string {
	var out []string
	for _, node := range nodes {
		if !strings.Contains(node.Type, c.namespaceMarker) {
			continue
		}
		simple := simpleName(node.Type)
		if c.structural[simple] || strings.HasSuffix(simple, "Trigger") {
			continue
		}
		out = append(out, humanize(simple))
		if strings.Contains(node.Type, c.aiNamespace) {
			lower := strings.ToLower(simple)
			for _, rule := range c.aiKeywords {
				if strings.Contains(lower, rule.Keyword) {
					out = append(out, rule.Label)
				}
			}
		}
	}
	return models.ClampIntegrations(out)
}

// humanize splits camelCase and snake_case into space-separated words
// and capitalizes the first letter: "googleSheets" -> "Google Sheets".
func humanize(name string) string {
	var b strings.Builder
	b.Grow(len(name) + 4)
	prev := rune(0)
	for _, r := range name {
		switch {
		case r == '_' || r == '-':
			r = ' '
		case unicode.IsUpper(r) && prev != 0 && !unicode.IsUpper(prev) && prev != ' ':
			b.WriteByte(' ')
		}
		b.WriteRune(r)
		prev = r
	}
	s := strings.TrimSpace(b.String())
	if s == "" {
		return s
	}
	runes := []rune(s)
	runes[0] = unicode.ToUpper(runes[0])
	return string(runes)
}
