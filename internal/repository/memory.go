package repository

import (
	"context"
	"slices"
	"sort"
	"sync"
	"time"

	"flowstore/backend/pkg/models"
)

// MemoryStore is an in-memory Store used by tests and local tooling.
// It mirrors the PostgresStore semantics, including the atomic
// check-and-consume on token redemption and the preserve-unless-flagged
// seed merge.
type MemoryStore struct {
	mu         sync.Mutex
	categories map[string]models.Category
	workflows  map[string]*models.Workflow // keyed by file_name
	purchases  map[string]models.Purchase  // keyed by user_id + "\x00" + workflow_id
	tokens     map[string]*models.DownloadToken
}

// NewMemoryStore creates an empty MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		categories: map[string]models.Category{},
		workflows:  map[string]*models.Workflow{},
		purchases:  map[string]models.Purchase{},
		tokens:     map[string]*models.DownloadToken{},
	}
}

func (s *MemoryStore) Migrate(ctx context.Context) error { return nil }
func (s *MemoryStore) Ping(ctx context.Context) error    { return nil }

func (s *MemoryStore) UpsertCategory(ctx context.Context, cat *models.Category) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.categories[cat.Slug] = *cat
	return nil
}

func (s *MemoryStore) SeedWorkflow(ctx context.Context, w *models.Workflow, overwriteDescription, overwriteIntegrations bool) (SeedOutcome, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	current, ok := s.workflows[w.FileName]
	if !ok {
		clone := *w
		clone.CreatedAt = time.Now()
		clone.UpdatedAt = clone.CreatedAt
		s.workflows[w.FileName] = &clone
		return SeedInserted, nil
	}

	nextDescription := current.Description
	if overwriteDescription || current.Description == "" {
		nextDescription = w.Description
	}
	nextIntegrations := current.Integrations
	if overwriteIntegrations || len(current.Integrations) == 0 {
		nextIntegrations = w.Integrations
	}

	if current.CategorySlug == w.CategorySlug &&
		current.CategoryTitle == w.CategoryTitle &&
		current.WorkflowSlug == w.WorkflowSlug &&
		current.Name == w.Name &&
		current.PriceCents == w.PriceCents &&
		current.Currency == w.Currency &&
		current.IsActive == w.IsActive &&
		current.Description == nextDescription &&
		slices.Equal(current.Integrations, nextIntegrations) {
		return SeedSkipped, nil
	}

	current.CategorySlug = w.CategorySlug
	current.CategoryTitle = w.CategoryTitle
	current.WorkflowSlug = w.WorkflowSlug
	current.Name = w.Name
	current.PriceCents = w.PriceCents
	current.Currency = w.Currency
	current.IsActive = w.IsActive
	current.Description = nextDescription
	current.Integrations = nextIntegrations
	current.UpdatedAt = time.Now()
	return SeedUpdated, nil
}

func (s *MemoryStore) GetWorkflowByFileName(ctx context.Context, fileName string) (*models.Workflow, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if w, ok := s.workflows[fileName]; ok {
		clone := *w
		return &clone, nil
	}
	return nil, models.ErrWorkflowNotFound
}

func (s *MemoryStore) GetWorkflowByID(ctx context.Context, id string) (*models.Workflow, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, w := range s.workflows {
		if w.ID == id {
			clone := *w
			return &clone, nil
		}
	}
	return nil, models.ErrWorkflowNotFound
}

func (s *MemoryStore) GetWorkflowBySlug(ctx context.Context, slug string) (*models.Workflow, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, w := range s.workflows {
		if w.WorkflowSlug == slug && w.IsActive {
			clone := *w
			return &clone, nil
		}
	}
	return nil, models.ErrWorkflowNotFound
}

func (s *MemoryStore) ListWorkflows(ctx context.Context) ([]*models.Workflow, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []*models.Workflow
	for _, w := range s.workflows {
		if !w.IsActive {
			continue
		}
		clone := *w
		out = append(out, &clone)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].CategorySlug != out[j].CategorySlug {
			return out[i].CategorySlug < out[j].CategorySlug
		}
		return out[i].Name < out[j].Name
	})
	return out, nil
}

func (s *MemoryStore) UpdateWorkflowContent(ctx context.Context, fileName, description, instructions string, integrations []string, workflowJSON []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	w, ok := s.workflows[fileName]
	if !ok {
		return models.ErrWorkflowNotFound
	}
	w.Description = description
	w.InstructionsMarkdown = instructions
	w.Integrations = integrations
	w.WorkflowJSON = workflowJSON
	w.UpdatedAt = time.Now()
	return nil
}

func (s *MemoryStore) DeactivateWorkflowsExcept(ctx context.Context, keep []string) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	count := 0
	for fileName, w := range s.workflows {
		if w.IsActive && !slices.Contains(keep, fileName) {
			w.IsActive = false
			w.UpdatedAt = time.Now()
			count++
		}
	}
	return count, nil
}

func purchaseKey(userID, workflowID string) string {
	return userID + "\x00" + workflowID
}

func (s *MemoryStore) HasPurchase(ctx context.Context, userID, workflowID string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.purchases[purchaseKey(userID, workflowID)]
	return ok, nil
}

func (s *MemoryStore) CreatePurchase(ctx context.Context, p *models.Purchase) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.purchases[purchaseKey(p.UserID, p.WorkflowID)] = *p
	return nil
}

func (s *MemoryStore) InsertToken(ctx context.Context, t *models.DownloadToken) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	clone := *t
	s.tokens[t.Token] = &clone
	return nil
}

func (s *MemoryStore) ConsumeToken(ctx context.Context, token string, artifact models.Artifact, now time.Time) (*models.DownloadToken, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	t, ok := s.tokens[token]
	if !ok || t.Artifact != artifact {
		return nil, models.ErrTokenUnknown
	}
	if !t.ExpiresAt.After(now) {
		return nil, models.ErrTokenExpired
	}
	if t.Consumed {
		return nil, models.ErrTokenConsumed
	}
	t.Consumed = true
	clone := *t
	return &clone, nil
}
