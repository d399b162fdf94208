package repository

import (
	"context"
	_ "embed"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"flowstore/backend/pkg/models"
)

//go:embed schema.sql
var schemaSQL string

// PostgresStore is the PostgreSQL implementation of the Store interface.
type PostgresStore struct {
	db *pgxpool.Pool
}

// NewPostgresStore creates a new PostgresStore.
func NewPostgresStore(db *pgxpool.Pool) *PostgresStore {
	return &PostgresStore{db: db}
}

// Migrate applies the embedded schema.
func (s *PostgresStore) Migrate(ctx context.Context) error {
	_, err := s.db.Exec(ctx, schemaSQL)
	return err
}

// Ping verifies the database connection.
func (s *PostgresStore) Ping(ctx context.Context) error {
	return s.db.Ping(ctx)
}

// UpsertCategory creates or refreshes a catalog category.
func (s *PostgresStore) UpsertCategory(ctx context.Context, cat *models.Category) error {
	_, err := s.db.Exec(ctx, `
		INSERT INTO store_categories (slug, title, declared_count)
		VALUES ($1, $2, $3)
		ON CONFLICT (slug) DO UPDATE SET
			title = EXCLUDED.title,
			declared_count = EXCLUDED.declared_count,
			updated_at = now()`,
		cat.Slug, cat.Title, cat.DeclaredCount)
	return err
}

// SeedWorkflow upserts a catalog row keyed on file_name. The WHERE guard
// makes a no-op run skip the write entirely, which is what keeps repeated
// ingestion at zero updates. xmax = 0 distinguishes insert from update.
func (s *PostgresStore) SeedWorkflow(ctx context.Context, w *models.Workflow, overwriteDescription, overwriteIntegrations bool) (SeedOutcome, error) {
	var inserted bool
	err := s.db.QueryRow(ctx, `
		INSERT INTO store_workflows (
			id, category_slug, category_title, workflow_slug, name,
			file_name, description, integrations, price_cents, currency, is_active
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
		ON CONFLICT (file_name) DO UPDATE SET
			category_slug = EXCLUDED.category_slug,
			category_title = EXCLUDED.category_title,
			workflow_slug = EXCLUDED.workflow_slug,
			name = EXCLUDED.name,
			price_cents = EXCLUDED.price_cents,
			currency = EXCLUDED.currency,
			is_active = EXCLUDED.is_active,
			description = CASE
				WHEN $12 OR store_workflows.description = '' THEN EXCLUDED.description
				ELSE store_workflows.description END,
			integrations = CASE
				WHEN $13 OR cardinality(store_workflows.integrations) = 0 THEN EXCLUDED.integrations
				ELSE store_workflows.integrations END,
			updated_at = now()
		WHERE ROW(
			store_workflows.category_slug, store_workflows.category_title,
			store_workflows.workflow_slug, store_workflows.name,
			store_workflows.price_cents, store_workflows.currency,
			store_workflows.is_active, store_workflows.description,
			store_workflows.integrations
		) IS DISTINCT FROM ROW(
			EXCLUDED.category_slug, EXCLUDED.category_title,
			EXCLUDED.workflow_slug, EXCLUDED.name,
			EXCLUDED.price_cents, EXCLUDED.currency, EXCLUDED.is_active,
			CASE WHEN $12 OR store_workflows.description = '' THEN EXCLUDED.description
				ELSE store_workflows.description END,
			CASE WHEN $13 OR cardinality(store_workflows.integrations) = 0 THEN EXCLUDED.integrations
				ELSE store_workflows.integrations END
		)
		RETURNING (xmax = 0)`,
		w.ID, w.CategorySlug, w.CategoryTitle, w.WorkflowSlug, w.Name,
		w.FileName, w.Description, w.Integrations, w.PriceCents, w.Currency, w.IsActive,
		overwriteDescription, overwriteIntegrations,
	).Scan(&inserted)
	if errors.Is(err, pgx.ErrNoRows) {
		return SeedSkipped, nil
	}
	if err != nil {
		return SeedSkipped, err
	}
	if inserted {
		return SeedInserted, nil
	}
	return SeedUpdated, nil
}

const workflowColumns = `
	id, category_slug, category_title, workflow_slug, name, file_name,
	description, instructions_md, integrations, price_cents, currency,
	workflow_json, is_active, created_at, updated_at`

func scanWorkflow(row pgx.Row) (*models.Workflow, error) {
	var w models.Workflow
	err := row.Scan(
		&w.ID, &w.CategorySlug, &w.CategoryTitle, &w.WorkflowSlug, &w.Name,
		&w.FileName, &w.Description, &w.InstructionsMarkdown, &w.Integrations,
		&w.PriceCents, &w.Currency, &w.WorkflowJSON, &w.IsActive,
		&w.CreatedAt, &w.UpdatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, models.ErrWorkflowNotFound
	}
	if err != nil {
		return nil, err
	}
	return &w, nil
}

// GetWorkflowByFileName retrieves a workflow by its natural key.
func (s *PostgresStore) GetWorkflowByFileName(ctx context.Context, fileName string) (*models.Workflow, error) {
	return scanWorkflow(s.db.QueryRow(ctx,
		"SELECT"+workflowColumns+" FROM store_workflows WHERE file_name = $1", fileName))
}

// GetWorkflowByID retrieves a workflow by its row id.
func (s *PostgresStore) GetWorkflowByID(ctx context.Context, id string) (*models.Workflow, error) {
	return scanWorkflow(s.db.QueryRow(ctx,
		"SELECT"+workflowColumns+" FROM store_workflows WHERE id = $1", id))
}

// GetWorkflowBySlug retrieves an active workflow by its public slug.
func (s *PostgresStore) GetWorkflowBySlug(ctx context.Context, slug string) (*models.Workflow, error) {
	return scanWorkflow(s.db.QueryRow(ctx,
		"SELECT"+workflowColumns+" FROM store_workflows WHERE workflow_slug = $1 AND is_active", slug))
}

// ListWorkflows returns all active workflows in catalog order.
func (s *PostgresStore) ListWorkflows(ctx context.Context) ([]*models.Workflow, error) {
	rows, err := s.db.Query(ctx,
		"SELECT"+workflowColumns+" FROM store_workflows WHERE is_active ORDER BY category_slug, name")
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var workflows []*models.Workflow
	for rows.Next() {
		w, err := scanWorkflow(rows)
		if err != nil {
			return nil, err
		}
		workflows = append(workflows, w)
	}
	return workflows, rows.Err()
}

// UpdateWorkflowContent rewrites the enrichable fields of a row.
func (s *PostgresStore) UpdateWorkflowContent(ctx context.Context, fileName, description, instructions string, integrations []string, workflowJSON []byte) error {
	tag, err := s.db.Exec(ctx, `
		UPDATE store_workflows
		SET description = $2, instructions_md = $3, integrations = $4,
			workflow_json = $5, updated_at = now()
		WHERE file_name = $1`,
		fileName, description, instructions, integrations, workflowJSON)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return models.ErrWorkflowNotFound
	}
	return nil
}

// HasPurchase reports whether a committed purchase row exists.
// DeactivateWorkflowsExcept retires rows removed from the catalog
// document. Deactivated rows stay readable by id for purchase history.
func (s *PostgresStore) DeactivateWorkflowsExcept(ctx context.Context, keep []string) (int, error) {
	tag, err := s.db.Exec(ctx, `
		UPDATE store_workflows
		SET is_active = FALSE, updated_at = now()
		WHERE is_active AND NOT (file_name = ANY($1))`,
		keep)
	if err != nil {
		return 0, err
	}
	return int(tag.RowsAffected()), nil
}

func (s *PostgresStore) HasPurchase(ctx context.Context, userID, workflowID string) (bool, error) {
	var exists bool
	err := s.db.QueryRow(ctx,
		"SELECT EXISTS (SELECT 1 FROM store_purchases WHERE user_id = $1 AND workflow_id = $2)",
		userID, workflowID).Scan(&exists)
	return exists, err
}

// CreatePurchase records a purchase. The payment flow owns these rows;
// this backend only writes them from seed tooling and tests.
func (s *PostgresStore) CreatePurchase(ctx context.Context, p *models.Purchase) error {
	_, err := s.db.Exec(ctx, `
		INSERT INTO store_purchases (user_id, workflow_id, purchased_at)
		VALUES ($1, $2, $3)
		ON CONFLICT (user_id, workflow_id) DO NOTHING`,
		p.UserID, p.WorkflowID, p.PurchasedAt)
	return err
}

// InsertToken persists a freshly issued download token.
func (s *PostgresStore) InsertToken(ctx context.Context, t *models.DownloadToken) error {
	_, err := s.db.Exec(ctx, `
		INSERT INTO store_download_tokens (token, user_id, workflow_id, artifact, issued_at, expires_at, consumed)
		VALUES ($1, $2, $3, $4, $5, $6, FALSE)`,
		t.Token, t.UserID, t.WorkflowID, string(t.Artifact), t.IssuedAt, t.ExpiresAt)
	return err
}

// ConsumeToken is a single conditional update so that two concurrent
// redemptions of the same token resolve to exactly one success at the
// storage layer, not in application memory. The artifact predicate
// keeps a token from being burned at the wrong download endpoint.
func (s *PostgresStore) ConsumeToken(ctx context.Context, token string, artifact models.Artifact, now time.Time) (*models.DownloadToken, error) {
	t := models.DownloadToken{Token: token, Artifact: artifact, Consumed: true}
	err := s.db.QueryRow(ctx, `
		UPDATE store_download_tokens
		SET consumed = TRUE
		WHERE token = $1 AND artifact = $2 AND consumed = FALSE AND expires_at > $3
		RETURNING user_id, workflow_id, issued_at, expires_at`,
		token, string(artifact), now).Scan(&t.UserID, &t.WorkflowID, &t.IssuedAt, &t.ExpiresAt)
	if err == nil {
		return &t, nil
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return nil, err
	}

	// Classify the failure. Expiry wins over consumption state.
	var consumed bool
	var expiresAt time.Time
	err = s.db.QueryRow(ctx,
		"SELECT consumed, expires_at FROM store_download_tokens WHERE token = $1 AND artifact = $2",
		token, string(artifact)).Scan(&consumed, &expiresAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, models.ErrTokenUnknown
	}
	if err != nil {
		return nil, err
	}
	if !expiresAt.After(now) {
		return nil, models.ErrTokenExpired
	}
	return nil, models.ErrTokenConsumed
}
