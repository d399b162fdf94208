package ingest

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"flowstore/backend/internal/logging"
	"flowstore/backend/internal/repository"
	"flowstore/backend/pkg/models"
)

const testCatalog = `## Categories

- [Sales](#sales) (1 workflows)

## Sales

| Name | Description | Integrations |
|------|-------------|--------------|
| [Lead Scorer](lead_scorer.json) | Scores inbound leads | HubSpot |
`

const leadScorerJSON = `{
	"name": "Lead Scorer",
	"nodes": [
		{"type": "n8n-nodes-base.scheduleTrigger", "parameters": {}},
		{"type": "n8n-nodes-base.hubspot", "parameters": {}},
		{"type": "n8n-nodes-base.slack", "parameters": {}},
		{"type": "n8n-nodes-base.stickyNote", "parameters": {"content": "**Scores leads nightly**\nConnect HubSpot first."}}
	]
}`

func newTestEngine() (*Engine, *repository.MemoryStore) {
	store := repository.NewMemoryStore()
	return NewEngine(store, logging.NewLogger(), 1999, "usd"), store
}

func TestSeedCatalogIdempotent(t *testing.T) {
	ctx := context.Background()
	engine, store := newTestEngine()

	report, err := engine.SeedCatalog(ctx, []byte(testCatalog), Options{})
	require.NoError(t, err)
	assert.Equal(t, 1, report.Created)
	assert.Equal(t, 0, report.Updated)

	w, err := store.GetWorkflowByFileName(ctx, "lead_scorer.json")
	require.NoError(t, err)
	assert.Equal(t, "Lead Scorer", w.Name)
	assert.Equal(t, "sales", w.CategorySlug)
	assert.Equal(t, 1999, w.PriceCents)
	assert.True(t, w.IsActive)

	// second run with identical input and flags writes nothing
	report, err = engine.SeedCatalog(ctx, []byte(testCatalog), Options{})
	require.NoError(t, err)
	assert.Equal(t, 0, report.Created)
	assert.Equal(t, 0, report.Updated)
	assert.Equal(t, 1, report.Skipped)
}

func TestSeedCatalogPreservesDescriptionUnlessFlagged(t *testing.T) {
	ctx := context.Background()
	engine, store := newTestEngine()

	_, err := engine.SeedCatalog(ctx, []byte(testCatalog), Options{})
	require.NoError(t, err)

	edited := []byte(`## Categories

- [Sales](#sales) (1 workflows)

## Sales

| Name | Description | Integrations |
|------|-------------|--------------|
| [Lead Scorer](lead_scorer.json) | A different description | HubSpot |
`)

	// without the flag the stored description survives
	report, err := engine.SeedCatalog(ctx, edited, Options{})
	require.NoError(t, err)
	assert.Equal(t, 1, report.Skipped)
	w, _ := store.GetWorkflowByFileName(ctx, "lead_scorer.json")
	assert.Equal(t, "Scores inbound leads", w.Description)

	// with the flag it follows the catalog
	report, err = engine.SeedCatalog(ctx, edited, Options{OverwriteDescription: true})
	require.NoError(t, err)
	assert.Equal(t, 1, report.Updated)
	w, _ = store.GetWorkflowByFileName(ctx, "lead_scorer.json")
	assert.Equal(t, "A different description", w.Description)
}

func TestEnrichFromDir(t *testing.T) {
	ctx := context.Background()
	engine, store := newTestEngine()

	_, err := engine.SeedCatalog(ctx, []byte(testCatalog), Options{})
	require.NoError(t, err)

	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "lead_scorer.json"), []byte(leadScorerJSON), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "unseeded.json"), []byte(`{"name":"x","nodes":[]}`), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "broken.json"), []byte(`{nope`), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "readme.txt"), []byte("skip me"), 0o644))

	report, err := engine.EnrichFromDir(ctx, dir, Options{})
	require.NoError(t, err)
	assert.Equal(t, 1, report.Updated)
	assert.Equal(t, 1, report.NotFound)
	assert.Equal(t, 1, report.Errors)

	w, err := store.GetWorkflowByFileName(ctx, "lead_scorer.json")
	require.NoError(t, err)
	// catalog description survives; instructions and graph backfilled
	assert.Equal(t, "Scores inbound leads", w.Description)
	assert.Contains(t, w.InstructionsMarkdown, "# Lead Scorer")
	assert.Contains(t, w.InstructionsMarkdown, "### Note 1")
	assert.Equal(t, []string{"HubSpot"}, w.Integrations) // preserved, not overwritten
	assert.NotEmpty(t, w.WorkflowJSON)

	// the enrichment pass never inserts
	_, err = store.GetWorkflowByFileName(ctx, "unseeded.json")
	assert.ErrorIs(t, err, models.ErrWorkflowNotFound)

	// identical rerun writes nothing
	report, err = engine.EnrichFromDir(ctx, dir, Options{})
	require.NoError(t, err)
	assert.Equal(t, 0, report.Updated)
	assert.Equal(t, 1, report.Skipped)
}

func TestEnrichOverwriteIntegrations(t *testing.T) {
	ctx := context.Background()
	engine, store := newTestEngine()

	_, err := engine.SeedCatalog(ctx, []byte(testCatalog), Options{})
	require.NoError(t, err)

	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "lead_scorer.json"), []byte(leadScorerJSON), 0o644))

	_, err = engine.EnrichFromDir(ctx, dir, Options{OverwriteIntegrations: true})
	require.NoError(t, err)

	w, err := store.GetWorkflowByFileName(ctx, "lead_scorer.json")
	require.NoError(t, err)
	assert.Equal(t, []string{"Hubspot", "Slack"}, w.Integrations)
}

func TestSeedCatalogPruneMissing(t *testing.T) {
	ctx := context.Background()
	engine, store := newTestEngine()

	_, err := engine.SeedCatalog(ctx, []byte(testCatalog), Options{})
	require.NoError(t, err)

	// the workflow disappeared from the document
	edited := `## Categories

- [Sales](#sales) (1 workflows)

## Sales

| Name | Description | Integrations |
|------|-------------|--------------|
| [CRM Sync](crm_sync.json) | Syncs contacts | HubSpot |
`

	// without the flag the removed row stays active
	_, err = engine.SeedCatalog(ctx, []byte(edited), Options{})
	require.NoError(t, err)
	w, err := store.GetWorkflowByFileName(ctx, "lead_scorer.json")
	require.NoError(t, err)
	assert.True(t, w.IsActive)

	report, err := engine.SeedCatalog(ctx, []byte(edited), Options{PruneMissing: true})
	require.NoError(t, err)
	assert.Equal(t, 1, report.Pruned)

	w, err = store.GetWorkflowByFileName(ctx, "lead_scorer.json")
	require.NoError(t, err)
	assert.False(t, w.IsActive)

	kept, err := store.GetWorkflowByFileName(ctx, "crm_sync.json")
	require.NoError(t, err)
	assert.True(t, kept.IsActive)
}
