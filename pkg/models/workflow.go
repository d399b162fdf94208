// Package models defines the domain models for the workflow store backend.
package models

import (
	"time"
)

// MaxIntegrations bounds the integrations list stored per workflow.
const MaxIntegrations = 25

// Workflow is the central catalog entity. FileName is the sole external
// identity: ingestion is keyed on it, never on Name or ID.
type Workflow struct {
	ID                   string    `json:"id"`
	CategorySlug         string    `json:"category_slug"`
	CategoryTitle        string    `json:"category_title"`
	WorkflowSlug         string    `json:"workflow_slug"`
	Name                 string    `json:"name"`
	FileName             string    `json:"file_name"`
	Description          string    `json:"description"`
	InstructionsMarkdown string    `json:"instructions_md,omitempty"`
	Integrations         []string  `json:"integrations"`
	PriceCents           int       `json:"price_cents"`
	Currency             string    `json:"currency"`
	WorkflowJSON         []byte    `json:"-"` // raw graph document, nil when not yet backfilled
	IsActive             bool      `json:"is_active"`
	CreatedAt            time.Time `json:"created_at"`
	UpdatedAt            time.Time `json:"updated_at"`
}

// HasArtifact reports whether the stored row can serve the given artifact.
func (w *Workflow) HasArtifact(a Artifact) bool {
	switch a {
	case ArtifactJSON:
		return len(w.WorkflowJSON) > 0
	case ArtifactInstructions:
		return w.InstructionsMarkdown != ""
	}
	return false
}
