package api

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"flowstore/backend/internal/auth"
	"flowstore/backend/internal/config"
	"flowstore/backend/internal/repository"
	"flowstore/backend/internal/services"
	"flowstore/backend/pkg/models"
)

// devPrincipal is the fixed id the auth bypass injects when no issuer
// is configured.
const devPrincipal = "dev@localhost"

func newTestServer(t *testing.T) (*echo.Echo, *repository.MemoryStore) {
	t.Helper()

	store := repository.NewMemoryStore()
	entitlements := services.NewEntitlementService(store)
	downloads := services.NewDownloadService(store, entitlements, 10*time.Minute)

	authz, err := auth.New(context.Background(), &config.Config{}, nil)
	require.NoError(t, err)

	e := echo.New()
	NewServer(store, entitlements, downloads).Register(e, authz)
	return e, store
}

func seedStoreWorkflow(t *testing.T, store *repository.MemoryStore, withArtifacts bool) *models.Workflow {
	t.Helper()

	w := &models.Workflow{
		ID:            "wf-1",
		CategorySlug:  "sales",
		CategoryTitle: "Sales",
		WorkflowSlug:  "lead-scorer",
		Name:          "Lead Scorer",
		FileName:      "lead_scorer.json",
		Description:   "Scores inbound leads",
		Integrations:  []string{"HubSpot"},
		PriceCents:    1999,
		Currency:      "usd",
		IsActive:      true,
	}
	_, err := store.SeedWorkflow(context.Background(), w, false, false)
	require.NoError(t, err)

	if withArtifacts {
		err = store.UpdateWorkflowContent(context.Background(), w.FileName,
			w.Description, "# Lead Scorer\n", w.Integrations,
			[]byte(`{"name":"Lead Scorer","nodes":[]}`))
		require.NoError(t, err)
	}
	return w
}

func doRequest(e *echo.Echo, method, target string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, target, nil)
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)
	return rec
}

func TestHealthz(t *testing.T) {
	e, _ := newTestServer(t)

	rec := doRequest(e, http.MethodGet, "/healthz")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "ok")
}

func TestCatalogEndpoints(t *testing.T) {
	e, store := newTestServer(t)
	seedStoreWorkflow(t, store, false)

	rec := doRequest(e, http.MethodGet, "/store/workflows")
	require.Equal(t, http.StatusOK, rec.Code)
	var list []models.Workflow
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &list))
	require.Len(t, list, 1)
	assert.Equal(t, "lead-scorer", list[0].WorkflowSlug)

	rec = doRequest(e, http.MethodGet, "/store/workflows/lead-scorer")
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = doRequest(e, http.MethodGet, "/store/workflows/nope")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestPurchaseStatus(t *testing.T) {
	e, store := newTestServer(t)
	w := seedStoreWorkflow(t, store, false)

	rec := doRequest(e, http.MethodGet, "/store/purchase-status/"+w.ID)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"purchased":false}`, rec.Body.String())

	require.NoError(t, store.CreatePurchase(context.Background(), &models.Purchase{
		UserID: devPrincipal, WorkflowID: w.ID, PurchasedAt: time.Now(),
	}))

	rec = doRequest(e, http.MethodGet, "/store/purchase-status/"+w.ID)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"purchased":true}`, rec.Body.String())
}

func TestIssueDownloadToken(t *testing.T) {
	e, store := newTestServer(t)
	w := seedStoreWorkflow(t, store, true)

	// not purchased yet
	rec := doRequest(e, http.MethodPost, "/store/download-token/"+w.ID)
	assert.Equal(t, http.StatusForbidden, rec.Code)

	require.NoError(t, store.CreatePurchase(context.Background(), &models.Purchase{
		UserID: devPrincipal, WorkflowID: w.ID, PurchasedAt: time.Now(),
	}))

	rec = doRequest(e, http.MethodPost, "/store/download-token/"+w.ID)
	require.Equal(t, http.StatusOK, rec.Code)
	var issued struct {
		Token     string `json:"token"`
		ExpiresAt string `json:"expires_at"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &issued))
	assert.NotEmpty(t, issued.Token)
	assert.NotEmpty(t, issued.ExpiresAt)

	rec = doRequest(e, http.MethodPost, "/store/download-token/"+w.ID+"?artifact=bogus")
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = doRequest(e, http.MethodPost, "/store/download-token/missing")
	assert.Equal(t, http.StatusForbidden, rec.Code)
}

func TestDownloadFlow(t *testing.T) {
	e, store := newTestServer(t)
	w := seedStoreWorkflow(t, store, true)
	require.NoError(t, store.CreatePurchase(context.Background(), &models.Purchase{
		UserID: devPrincipal, WorkflowID: w.ID, PurchasedAt: time.Now(),
	}))

	issueToken := func(artifact string) string {
		rec := doRequest(e, http.MethodPost, "/store/download-token/"+w.ID+"?artifact="+artifact)
		require.Equal(t, http.StatusOK, rec.Code)
		var issued struct {
			Token string `json:"token"`
		}
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &issued))
		return issued.Token
	}

	t.Run("json artifact", func(t *testing.T) {
		token := issueToken("json")

		rec := doRequest(e, http.MethodGet, "/store/download/"+token)
		require.Equal(t, http.StatusOK, rec.Code)
		assert.Contains(t, rec.Header().Get(echo.HeaderContentType), "application/json")
		assert.Contains(t, rec.Header().Get(echo.HeaderContentDisposition), "lead_scorer.json")
		assert.JSONEq(t, `{"name":"Lead Scorer","nodes":[]}`, rec.Body.String())

		// tokens are single use
		rec = doRequest(e, http.MethodGet, "/store/download/"+token)
		assert.Equal(t, http.StatusGone, rec.Code)
	})

	t.Run("instructions artifact", func(t *testing.T) {
		token := issueToken("instructions")

		rec := doRequest(e, http.MethodGet, "/store/download-instructions/"+token)
		require.Equal(t, http.StatusOK, rec.Code)
		assert.Contains(t, rec.Header().Get(echo.HeaderContentDisposition), "lead_scorer.md")
		assert.Contains(t, rec.Body.String(), "# Lead Scorer")
	})

	t.Run("wrong endpoint does not burn the token", func(t *testing.T) {
		token := issueToken("json")

		rec := doRequest(e, http.MethodGet, "/store/download-instructions/"+token)
		assert.Equal(t, http.StatusNotFound, rec.Code)

		rec = doRequest(e, http.MethodGet, "/store/download/"+token)
		assert.Equal(t, http.StatusOK, rec.Code)
	})

	t.Run("unknown token", func(t *testing.T) {
		rec := doRequest(e, http.MethodGet, "/store/download/not-a-token")
		assert.Equal(t, http.StatusNotFound, rec.Code)
	})
}
