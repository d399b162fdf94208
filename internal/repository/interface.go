package repository

import (
	"context"
	"time"

	"flowstore/backend/pkg/models"
)

// SeedOutcome reports what a seed upsert did to the row.
type SeedOutcome int

const (
	SeedSkipped SeedOutcome = iota // row already matched, no write
	SeedInserted
	SeedUpdated
)

// Store is the persistence boundary of the catalog backend.
type Store interface {
	// Migrate applies the embedded schema. Idempotent.
	Migrate(ctx context.Context) error
	Ping(ctx context.Context) error

	// UpsertCategory creates or refreshes a catalog category.
	UpsertCategory(ctx context.Context, cat *models.Category) error

	// SeedWorkflow upserts a catalog row keyed on file_name. Category,
	// name, price, currency and active flag always follow the input;
	// description and integrations are preserved unless the matching
	// overwrite flag is set or the stored value is empty.
	SeedWorkflow(ctx context.Context, w *models.Workflow, overwriteDescription, overwriteIntegrations bool) (SeedOutcome, error)

	GetWorkflowByFileName(ctx context.Context, fileName string) (*models.Workflow, error)
	GetWorkflowByID(ctx context.Context, id string) (*models.Workflow, error)
	GetWorkflowBySlug(ctx context.Context, slug string) (*models.Workflow, error)
	ListWorkflows(ctx context.Context) ([]*models.Workflow, error)

	// UpdateWorkflowContent rewrites the enrichable fields of the row
	// keyed by file_name. The caller decides what changed; this is a
	// plain write.
	UpdateWorkflowContent(ctx context.Context, fileName, description, instructions string, integrations []string, workflowJSON []byte) error

	// DeactivateWorkflowsExcept clears is_active on every row whose
	// file_name is not in keep. Rows are never deleted; purchases keep
	// pointing at them. Returns the number of rows deactivated.
	DeactivateWorkflowsExcept(ctx context.Context, keep []string) (int, error)

	// HasPurchase reports whether a committed purchase row exists.
	HasPurchase(ctx context.Context, userID, workflowID string) (bool, error)
	CreatePurchase(ctx context.Context, p *models.Purchase) error

	// InsertToken persists a freshly issued download token.
	InsertToken(ctx context.Context, t *models.DownloadToken) error

	// ConsumeToken atomically marks an unconsumed, unexpired token of
	// the given artifact kind as consumed and returns it. Exactly one
	// of two concurrent calls for the same token succeeds. Failures are
	// models.ErrTokenUnknown (including artifact mismatch, which leaves
	// the token untouched), models.ErrTokenExpired (which wins over
	// consumption state), or models.ErrTokenConsumed.
	ConsumeToken(ctx context.Context, token string, artifact models.Artifact, now time.Time) (*models.DownloadToken, error)
}
