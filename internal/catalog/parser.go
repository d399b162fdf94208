// Package catalog parses the hand-authored workflow catalog document
// into category and workflow records.
package catalog

import (
	"path"
	"regexp"
	"strconv"
	"strings"
	"sync"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/ast"
	"github.com/yuin/goldmark/extension"
	extast "github.com/yuin/goldmark/extension/ast"
	"github.com/yuin/goldmark/text"

	"flowstore/backend/pkg/models"
)

// WorkflowDraft is a workflow entry as parsed from the catalog document:
// no id, no price, no graph yet.
type WorkflowDraft struct {
	CategorySlug  string
	CategoryTitle string
	WorkflowSlug  string
	Name          string
	FileName      string
	Description   string
	Integrations  []string
}

// Document is the parsed catalog: categories in body order, workflow
// drafts in document order, plus the count of headings that missed the
// index and fell back to self-normalized slugs.
type Document struct {
	Categories []models.Category
	Workflows  []WorkflowDraft
	Warnings   int
}

const indexHeading = "Categories"

type indexEntry struct {
	title string
	slug  string
	count *int
}

// markdownParser is initialized once and reused. The parser
// configuration never changes and the goldmark Parser is safe to share;
// parsing creates per-call state via Parse(reader).
var (
	markdownParser     goldmark.Markdown
	markdownParserOnce sync.Once
)

func getMarkdownParser() goldmark.Markdown {
	markdownParserOnce.Do(func() {
		markdownParser = goldmark.New(
			goldmark.WithExtensions(extension.GFM),
		)
	})
	return markdownParser
}

var declaredCountRe = regexp.MustCompile(`\((\d+)\s+workflows?\)`)

// Parse reads the catalog document. Malformed input degrades to fewer
// records; Parse never fails. The document is hand-edited prose, so
// anything that doesn't match the expected shape is skipped.
func Parse(source []byte) *Document {
	root := getMarkdownParser().Parser().Parse(text.NewReader(source))

	byAnchor, byTitle := parseIndex(root, source)

	doc := &Document{}
	var current *models.Category
	catIndex := map[string]int{}
	seen := map[string]map[string]bool{} // category slug -> file names

	for node := root.FirstChild(); node != nil; node = node.NextSibling() {
		if h, ok := node.(*ast.Heading); ok {
			if h.Level != 2 {
				continue
			}
			title := strings.TrimSpace(nodeText(h, source))
			if strings.EqualFold(title, indexHeading) {
				// the index is never a data section
				current = nil
				continue
			}
			cat := resolveCategory(title, byAnchor, byTitle, &doc.Warnings)
			if i, ok := catIndex[cat.Slug]; ok {
				current = &doc.Categories[i]
			} else {
				catIndex[cat.Slug] = len(doc.Categories)
				doc.Categories = append(doc.Categories, cat)
				current = &doc.Categories[len(doc.Categories)-1]
				seen[cat.Slug] = map[string]bool{}
			}
			continue
		}
		if current == nil {
			continue
		}
		doc.collectEntries(node, source, current, seen[current.Slug])
	}
	return doc
}

// parseIndex builds lookup maps from the "## Categories" section: one
// keyed by the declared anchor slug, one by the normalized title. Body
// headings are matched against both, anchors first.
func parseIndex(root ast.Node, source []byte) (byAnchor, byTitle map[string]indexEntry) {
	byAnchor = map[string]indexEntry{}
	byTitle = map[string]indexEntry{}

	inIndex := false
	for node := root.FirstChild(); node != nil; node = node.NextSibling() {
		if h, ok := node.(*ast.Heading); ok {
			if h.Level != 2 {
				continue
			}
			inIndex = strings.EqualFold(strings.TrimSpace(nodeText(h, source)), indexHeading)
			continue
		}
		if !inIndex {
			continue
		}
		list, ok := node.(*ast.List)
		if !ok {
			continue
		}
		for item := list.FirstChild(); item != nil; item = item.NextSibling() {
			link := findLink(item, func(dest string) bool {
				return strings.HasPrefix(dest, "#")
			})
			if link == nil {
				continue
			}
			slug := Slugify(string(link.Destination))
			if slug == "" {
				continue
			}
			entry := indexEntry{
				title: strings.TrimSpace(nodeText(link, source)),
				slug:  slug,
			}
			if m := declaredCountRe.FindStringSubmatch(nodeText(item, source)); m != nil {
				if n, err := strconv.Atoi(m[1]); err == nil {
					entry.count = &n
				}
			}
			byAnchor[slug] = entry
			byTitle[Slugify(entry.title)] = entry
		}
	}
	return byAnchor, byTitle
}

// resolveCategory maps a body heading onto its index entry. A heading
// that misses the index entirely falls back to its own normalized slug
// so a stale index never hides a whole section; the miss is counted.
func resolveCategory(title string, byAnchor, byTitle map[string]indexEntry, warnings *int) models.Category {
	headingSlug := Slugify(title)
	if e, ok := byAnchor[headingSlug]; ok {
		return models.Category{Slug: e.slug, Title: title, DeclaredCount: e.count}
	}
	if e, ok := byTitle[headingSlug]; ok {
		return models.Category{Slug: e.slug, Title: title, DeclaredCount: e.count}
	}
	*warnings++
	return models.Category{Slug: headingSlug, Title: title}
}

// collectEntries pulls workflow links out of one block node of a
// category section. Tables are handled specially so that the two cells
// after the link cell become description and integrations; links found
// anywhere else yield bare entries.
func (d *Document) collectEntries(node ast.Node, source []byte, cat *models.Category, seen map[string]bool) {
	ast.Walk(node, func(n ast.Node, entering bool) (ast.WalkStatus, error) {
		if !entering {
			return ast.WalkContinue, nil
		}
		switch n.Kind() {
		case extast.KindTable:
			d.collectTableEntries(n, source, cat, seen)
			return ast.WalkSkipChildren, nil
		case ast.KindLink:
			link := n.(*ast.Link)
			if file := workflowFile(link); file != "" {
				d.addWorkflow(cat, seen, strings.TrimSpace(nodeText(link, source)), file, "", nil)
			}
			return ast.WalkSkipChildren, nil
		}
		return ast.WalkContinue, nil
	})
}

func (d *Document) collectTableEntries(table ast.Node, source []byte, cat *models.Category, seen map[string]bool) {
	for group := table.FirstChild(); group != nil; group = group.NextSibling() {
		// TableHeader and TableRow both hold cells directly
		var cells []ast.Node
		for cell := group.FirstChild(); cell != nil; cell = cell.NextSibling() {
			cells = append(cells, cell)
		}
		for i, cell := range cells {
			link := findLink(cell, func(dest string) bool {
				return strings.HasSuffix(strings.ToLower(dest), ".json")
			})
			if link == nil {
				continue
			}
			file := workflowFile(link)
			if file == "" {
				continue
			}
			var desc string
			var integrations []string
			if i+1 < len(cells) {
				desc = strings.TrimSpace(nodeText(cells[i+1], source))
			}
			if i+2 < len(cells) {
				integrations = splitIntegrations(nodeText(cells[i+2], source))
			}
			d.addWorkflow(cat, seen, strings.TrimSpace(nodeText(link, source)), file, desc, integrations)
			break
		}
	}
}

// addWorkflow appends a draft unless the file name was already seen in
// this category. First occurrence wins.
func (d *Document) addWorkflow(cat *models.Category, seen map[string]bool, name, fileName, desc string, integrations []string) {
	if seen[fileName] {
		return
	}
	seen[fileName] = true

	slug := Slugify(strings.TrimSuffix(fileName, path.Ext(fileName)))
	if slug == "" {
		slug = Slugify(name)
	}
	d.Workflows = append(d.Workflows, WorkflowDraft{
		CategorySlug:  cat.Slug,
		CategoryTitle: cat.Title,
		WorkflowSlug:  slug,
		Name:          name,
		FileName:      fileName,
		Description:   desc,
		Integrations:  models.ClampIntegrations(integrations),
	})
}

func workflowFile(link *ast.Link) string {
	dest := strings.TrimSpace(string(link.Destination))
	if !strings.HasSuffix(strings.ToLower(dest), ".json") {
		return ""
	}
	return path.Base(dest)
}

func splitIntegrations(raw string) []string {
	parts := strings.Split(raw, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

// findLink returns the first descendant link whose destination matches.
func findLink(node ast.Node, match func(dest string) bool) *ast.Link {
	var found *ast.Link
	ast.Walk(node, func(n ast.Node, entering bool) (ast.WalkStatus, error) {
		if !entering || found != nil {
			return ast.WalkContinue, nil
		}
		if link, ok := n.(*ast.Link); ok && match(string(link.Destination)) {
			found = link
			return ast.WalkStop, nil
		}
		return ast.WalkContinue, nil
	})
	return found
}

// nodeText flattens all text content under a node.
func nodeText(node ast.Node, source []byte) string {
	var b strings.Builder
	ast.Walk(node, func(n ast.Node, entering bool) (ast.WalkStatus, error) {
		if !entering {
			return ast.WalkContinue, nil
		}
		switch t := n.(type) {
		case *ast.Text:
			b.Write(t.Segment.Value(source))
			if t.SoftLineBreak() || t.HardLineBreak() {
				b.WriteByte(' ')
			}
		case *ast.String:
			b.Write(t.Value)
		}
		return ast.WalkContinue, nil
	})
	return b.String()
}
