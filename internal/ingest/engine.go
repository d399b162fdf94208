// Package ingest reconciles parsed catalog records and extracted graph
// metadata into the persistent store, idempotently.
package ingest

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strings"

	"github.com/google/uuid"

	"flowstore/backend/internal/catalog"
	"flowstore/backend/internal/graph"
	"flowstore/backend/internal/logging"
	"flowstore/backend/internal/repository"
	"flowstore/backend/pkg/models"
)

// maxErrorLogs caps per-record error logging so a systematically broken
// input doesn't flood the log; failures are still counted.
const maxErrorLogs = 10

// Options are the operator-set flags for one run. PruneMissing only
// applies to the seed path.
type Options struct {
	OverwriteDescription  bool
	OverwriteInstructions bool
	OverwriteIntegrations bool
	PruneMissing          bool
}

// Report is the contract of a run: counts, not exceptions.
type Report struct {
	Created  int
	Updated  int
	Skipped  int
	NotFound int
	Pruned   int
	Errors   int
	Warnings int
}

func (r *Report) String() string {
	return fmt.Sprintf("created=%d updated=%d skipped=%d not_found=%d pruned=%d errors=%d warnings=%d",
		r.Created, r.Updated, r.Skipped, r.NotFound, r.Pruned, r.Errors, r.Warnings)
}

// Engine runs catalog seeding and graph-metadata enrichment.
type Engine struct {
	store      repository.Store
	classifier *graph.Classifier
	log        *logging.Logger

	defaultPriceCents int
	currency          string
}

// NewEngine creates an Engine with the default taxonomy rules.
func NewEngine(store repository.Store, log *logging.Logger, defaultPriceCents int, currency string) *Engine {
	return &Engine{
		store:             store,
		classifier:        graph.NewClassifier(),
		log:               log,
		defaultPriceCents: defaultPriceCents,
		currency:          currency,
	}
}

// SeedCatalog parses the catalog document and upserts every category
// and workflow entry. A failure on one record is counted and the run
// continues; the run itself only fails on a broken store connection
// surfaced by every record.
func (e *Engine) SeedCatalog(ctx context.Context, source []byte, opts Options) (*Report, error) {
	doc := catalog.Parse(source)
	report := &Report{Warnings: doc.Warnings}
	if doc.Warnings > 0 {
		e.log.Warn("%d category heading(s) missing from the index, using self-derived slugs", doc.Warnings)
	}

	for i := range doc.Categories {
		if err := e.store.UpsertCategory(ctx, &doc.Categories[i]); err != nil {
			e.recordError(report, fmt.Errorf("category %q: %w", doc.Categories[i].Slug, err))
		}
	}

	for _, draft := range doc.Workflows {
		w := &models.Workflow{
			ID:            uuid.New().String(),
			CategorySlug:  draft.CategorySlug,
			CategoryTitle: draft.CategoryTitle,
			WorkflowSlug:  draft.WorkflowSlug,
			Name:          draft.Name,
			FileName:      draft.FileName,
			Description:   draft.Description,
			Integrations:  draft.Integrations,
			PriceCents:    e.defaultPriceCents,
			Currency:      e.currency,
			IsActive:      true,
		}
		outcome, err := e.store.SeedWorkflow(ctx, w, opts.OverwriteDescription, opts.OverwriteIntegrations)
		if err != nil {
			e.recordError(report, fmt.Errorf("seed %q: %w", draft.FileName, err))
			continue
		}
		switch outcome {
		case repository.SeedInserted:
			report.Created++
		case repository.SeedUpdated:
			report.Updated++
		default:
			report.Skipped++
		}
	}

	if opts.PruneMissing {
		keep := make([]string, 0, len(doc.Workflows))
		for _, draft := range doc.Workflows {
			keep = append(keep, draft.FileName)
		}
		pruned, err := e.store.DeactivateWorkflowsExcept(ctx, keep)
		if err != nil {
			e.recordError(report, fmt.Errorf("prune missing: %w", err))
		} else {
			report.Pruned = pruned
		}
	}

	e.log.Info("catalog seed finished: %s", report)
	return report, nil
}

// EnrichFromDir runs the JSON backfill pass: every *.json file in dir is
// parsed, its metadata extracted, and the matching pre-seeded catalog
// row augmented. Files without a matching row are counted as not found
// and never inserted.
func (e *Engine) EnrichFromDir(ctx context.Context, dir string, opts Options) (*Report, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("read workflow dir: %w", err)
	}

	report := &Report{}
	for _, entry := range entries {
		if entry.IsDir() || !strings.EqualFold(filepath.Ext(entry.Name()), ".json") {
			continue
		}
		if err := e.enrichOne(ctx, dir, entry.Name(), opts, report); err != nil {
			e.recordError(report, fmt.Errorf("enrich %q: %w", entry.Name(), err))
		}
	}

	e.log.Info("enrichment finished: %s", report)
	return report, nil
}

func (e *Engine) enrichOne(ctx context.Context, dir, fileName string, opts Options, report *Report) error {
	raw, err := os.ReadFile(filepath.Join(dir, fileName))
	if err != nil {
		return err
	}
	g, err := graph.Decode(raw)
	if err != nil {
		return err
	}

	stored, err := e.store.GetWorkflowByFileName(ctx, fileName)
	if errors.Is(err, models.ErrWorkflowNotFound) {
		report.NotFound++
		return nil
	}
	if err != nil {
		return err
	}

	integrations := e.classifier.Integrations(g.Nodes)
	notes := graph.StickyNotes(g.Nodes)

	name := stored.Name
	if name == "" {
		name = g.Name
	}
	instructions := graph.BuildInstructions(name, fileName, integrations, notes)

	next := *stored
	next.Description = mergeField(stored.Description, graph.NoteDescription(notes), opts.OverwriteDescription)
	next.InstructionsMarkdown = mergeField(stored.InstructionsMarkdown, instructions, opts.OverwriteInstructions)
	next.Integrations = mergeList(stored.Integrations, integrations, opts.OverwriteIntegrations)
	next.WorkflowJSON = raw

	if !workflowChanged(stored, &next) {
		report.Skipped++
		return nil
	}
	if err := e.store.UpdateWorkflowContent(ctx, fileName,
		next.Description, next.InstructionsMarkdown, next.Integrations, next.WorkflowJSON); err != nil {
		return err
	}
	report.Updated++
	return nil
}

func workflowChanged(current, next *models.Workflow) bool {
	return current.Description != next.Description ||
		current.InstructionsMarkdown != next.InstructionsMarkdown ||
		!slices.Equal(current.Integrations, next.Integrations) ||
		!jsonEqual(current.WorkflowJSON, next.WorkflowJSON)
}

// jsonEqual compares two JSON documents structurally. The stored copy
// comes back from jsonb with Postgres's own formatting, so byte equality
// would re-write every row on every run.
func jsonEqual(a, b []byte) bool {
	if len(a) == 0 || len(b) == 0 {
		return len(a) == 0 && len(b) == 0
	}
	ca, errA := canonicalJSON(a)
	cb, errB := canonicalJSON(b)
	if errA != nil || errB != nil {
		return bytes.Equal(a, b)
	}
	return bytes.Equal(ca, cb)
}

func canonicalJSON(raw []byte) ([]byte, error) {
	var v interface{}
	if err := json.Unmarshal(raw, &v); err != nil {
		return nil, err
	}
	return json.Marshal(v)
}

func (e *Engine) recordError(report *Report, err error) {
	report.Errors++
	if report.Errors <= maxErrorLogs {
		e.log.Error("%v", err)
	}
	if report.Errors == maxErrorLogs {
		e.log.Error("further record errors suppressed")
	}
}
