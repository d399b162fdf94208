package services

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"flowstore/backend/internal/repository"
	"flowstore/backend/pkg/models"
)

func seedWorkflow(t *testing.T, store *repository.MemoryStore, withArtifacts bool) *models.Workflow {
	t.Helper()
	w := &models.Workflow{
		ID:           uuid.New().String(),
		WorkflowSlug: "lead-scorer",
		Name:         "Lead Scorer",
		FileName:     "lead_scorer.json",
		Currency:     "usd",
		IsActive:     true,
	}
	_, err := store.SeedWorkflow(context.Background(), w, false, false)
	require.NoError(t, err)
	if withArtifacts {
		require.NoError(t, store.UpdateWorkflowContent(context.Background(), w.FileName,
			"desc", "# Lead Scorer\ninstructions", []string{"HubSpot"}, []byte(`{"name":"Lead Scorer","nodes":[]}`)))
	}
	return w
}

func purchase(t *testing.T, store *repository.MemoryStore, userID, workflowID string) {
	t.Helper()
	require.NoError(t, store.CreatePurchase(context.Background(), &models.Purchase{
		UserID: userID, WorkflowID: workflowID, PurchasedAt: time.Now(),
	}))
}

func newServices(store *repository.MemoryStore, ttl time.Duration) *DownloadService {
	return NewDownloadService(store, NewEntitlementService(store), ttl)
}

func TestIssueRequiresPurchase(t *testing.T) {
	ctx := context.Background()
	store := repository.NewMemoryStore()
	w := seedWorkflow(t, store, true)
	svc := newServices(store, time.Minute)

	// no purchase row: NotEntitled regardless of artifact availability
	_, err := svc.Issue(ctx, "user-1", w.ID, models.ArtifactJSON)
	assert.ErrorIs(t, err, models.ErrNotEntitled)
	_, err = svc.Issue(ctx, "user-1", w.ID, models.ArtifactInstructions)
	assert.ErrorIs(t, err, models.ErrNotEntitled)
}

func TestIssueRequiresArtifact(t *testing.T) {
	ctx := context.Background()
	store := repository.NewMemoryStore()
	w := seedWorkflow(t, store, false) // no json, no instructions stored
	purchase(t, store, "user-1", w.ID)
	svc := newServices(store, time.Minute)

	_, err := svc.Issue(ctx, "user-1", w.ID, models.ArtifactJSON)
	assert.ErrorIs(t, err, models.ErrArtifactUnavailable)
	_, err = svc.Issue(ctx, "user-1", w.ID, models.ArtifactInstructions)
	assert.ErrorIs(t, err, models.ErrArtifactUnavailable)
}

func TestIssueAndRedeem(t *testing.T) {
	ctx := context.Background()
	store := repository.NewMemoryStore()
	w := seedWorkflow(t, store, true)
	purchase(t, store, "user-1", w.ID)
	svc := newServices(store, time.Minute)

	token, err := svc.Issue(ctx, "user-1", w.ID, models.ArtifactJSON)
	require.NoError(t, err)
	assert.NotEmpty(t, token.Token)
	assert.Equal(t, models.ArtifactJSON, token.Artifact)

	download, err := svc.Redeem(ctx, token.Token, models.ArtifactJSON)
	require.NoError(t, err)
	assert.Equal(t, "lead_scorer.json", download.FileName)
	assert.Equal(t, "application/json", download.ContentType)
	assert.NotEmpty(t, download.Data)

	// single use
	_, err = svc.Redeem(ctx, token.Token, models.ArtifactJSON)
	assert.ErrorIs(t, err, models.ErrTokenConsumed)
}

func TestRedeemUnknownToken(t *testing.T) {
	ctx := context.Background()
	store := repository.NewMemoryStore()
	seedWorkflow(t, store, true)
	svc := newServices(store, time.Minute)

	_, err := svc.Redeem(ctx, "no-such-token", models.ArtifactJSON)
	assert.ErrorIs(t, err, models.ErrTokenUnknown)
}

func TestRedeemWrongEndpointDoesNotBurnToken(t *testing.T) {
	ctx := context.Background()
	store := repository.NewMemoryStore()
	w := seedWorkflow(t, store, true)
	purchase(t, store, "user-1", w.ID)
	svc := newServices(store, time.Minute)

	token, err := svc.Issue(ctx, "user-1", w.ID, models.ArtifactJSON)
	require.NoError(t, err)

	_, err = svc.Redeem(ctx, token.Token, models.ArtifactInstructions)
	assert.ErrorIs(t, err, models.ErrTokenUnknown)

	// still redeemable at the matching endpoint
	_, err = svc.Redeem(ctx, token.Token, models.ArtifactJSON)
	assert.NoError(t, err)
}

func TestRedeemExpiryWinsOverConsumption(t *testing.T) {
	ctx := context.Background()
	store := repository.NewMemoryStore()
	w := seedWorkflow(t, store, true)
	purchase(t, store, "user-1", w.ID)
	svc := newServices(store, time.Minute)

	token, err := svc.Issue(ctx, "user-1", w.ID, models.ArtifactJSON)
	require.NoError(t, err)

	// move the clock past expiry; the token is unconsumed but must
	// fail with Expired, never succeed
	svc.now = func() time.Time { return time.Now().Add(2 * time.Minute) }
	_, err = svc.Redeem(ctx, token.Token, models.ArtifactJSON)
	assert.ErrorIs(t, err, models.ErrTokenExpired)
}

func TestRedeemConcurrentSingleUse(t *testing.T) {
	ctx := context.Background()
	store := repository.NewMemoryStore()
	w := seedWorkflow(t, store, true)
	purchase(t, store, "user-1", w.ID)
	svc := newServices(store, time.Minute)

	token, err := svc.Issue(ctx, "user-1", w.ID, models.ArtifactJSON)
	require.NoError(t, err)

	const attempts = 8
	var wg sync.WaitGroup
	errs := make([]error, attempts)
	for i := 0; i < attempts; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, errs[i] = svc.Redeem(ctx, token.Token, models.ArtifactJSON)
		}(i)
	}
	wg.Wait()

	successes, consumed := 0, 0
	for _, err := range errs {
		switch {
		case err == nil:
			successes++
		case errors.Is(err, models.ErrTokenConsumed):
			consumed++
		}
	}
	assert.Equal(t, 1, successes)
	assert.Equal(t, attempts-1, consumed)
}
