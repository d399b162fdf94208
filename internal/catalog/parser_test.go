package catalog

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const sampleCatalog = `# Workflow Catalog

## Categories

- [Sales](#sales-automation) (2 workflows)
- [Marketing](#marketing) (1 workflows)

## Sales

| Name | Description | Integrations |
|------|-------------|--------------|
| [Lead Scorer](lead_scorer.json) | Scores inbound leads | HubSpot, Slack |
| [CRM Sync](crm_sync.json) | Mirrors deals | Pipedrive |
| [Lead Scorer Again](lead_scorer.json) | duplicate row | HubSpot |

## Marketing

Some prose around a bare link to [Newsletter Digest](newsletter_digest.json) works too.

## Community

- [Forum Watcher](forum_watcher.json)
`

func TestParseIndexAndSections(t *testing.T) {
	doc := Parse([]byte(sampleCatalog))

	require.Len(t, doc.Categories, 3)

	// heading "Sales" self-normalizes to "sales", but the index entry
	// [Sales](#sales-automation) must win
	sales := doc.Categories[0]
	assert.Equal(t, "sales-automation", sales.Slug)
	assert.Equal(t, "Sales", sales.Title)
	require.NotNil(t, sales.DeclaredCount)
	assert.Equal(t, 2, *sales.DeclaredCount)

	marketing := doc.Categories[1]
	assert.Equal(t, "marketing", marketing.Slug)

	// "Community" is absent from the index: self-normalized, counted
	community := doc.Categories[2]
	assert.Equal(t, "community", community.Slug)
	assert.Nil(t, community.DeclaredCount)
	assert.Equal(t, 1, doc.Warnings)
}

func TestParseWorkflowEntries(t *testing.T) {
	doc := Parse([]byte(sampleCatalog))

	require.Len(t, doc.Workflows, 4)

	lead := doc.Workflows[0]
	assert.Equal(t, "Lead Scorer", lead.Name)
	assert.Equal(t, "lead_scorer.json", lead.FileName)
	assert.Equal(t, "sales-automation", lead.CategorySlug)
	assert.Equal(t, "Scores inbound leads", lead.Description)
	assert.Equal(t, []string{"HubSpot", "Slack"}, lead.Integrations)
	assert.Equal(t, "leadscorer", lead.WorkflowSlug)

	// first occurrence wins; the duplicate table row is dropped
	assert.Equal(t, "CRM Sync", doc.Workflows[1].Name)
	assert.Equal(t, "crm_sync.json", doc.Workflows[1].FileName)

	// links outside tables yield bare entries
	digest := doc.Workflows[2]
	assert.Equal(t, "Newsletter Digest", digest.Name)
	assert.Equal(t, "newsletter_digest.json", digest.FileName)
	assert.Empty(t, digest.Description)
	assert.Empty(t, digest.Integrations)

	// list-item links count too
	assert.Equal(t, "forum_watcher.json", doc.Workflows[3].FileName)
	assert.Equal(t, "community", doc.Workflows[3].CategorySlug)
}

func TestParseSkipsIndexAsData(t *testing.T) {
	doc := Parse([]byte("## Categories\n\n- [Fake](fake.json)\n"))
	assert.Empty(t, doc.Workflows)
	assert.Empty(t, doc.Categories)
}

func TestParseMalformedInputDegrades(t *testing.T) {
	doc := Parse([]byte("just some prose\n\nno headings, no links"))
	assert.Empty(t, doc.Workflows)
	assert.Empty(t, doc.Categories)

	doc = Parse(nil)
	assert.Empty(t, doc.Workflows)
}
