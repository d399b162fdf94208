package api

import (
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"

	"flowstore/backend/internal/auth"
	"flowstore/backend/internal/repository"
	"flowstore/backend/internal/services"
	"flowstore/backend/pkg/models"
)

// Server holds the dependencies for the store API.
type Server struct {
	Repo         repository.Store
	Entitlements *services.EntitlementService
	Downloads    *services.DownloadService
}

// NewServer creates a new Server.
func NewServer(repo repository.Store, entitlements *services.EntitlementService, downloads *services.DownloadService) *Server {
	return &Server{Repo: repo, Entitlements: entitlements, Downloads: downloads}
}

// Register mounts all store routes. Download redemption is token-
// authenticated by nature; token issuance and purchase status require
// an authenticated principal.
func (s *Server) Register(e *echo.Echo, authz *auth.Auth) {
	e.GET("/healthz", s.HandleHealth)
	e.GET("/store/workflows", s.ListWorkflows)
	e.GET("/store/workflows/:slug", s.GetWorkflow)
	e.GET("/store/download/:token", s.Download)
	e.GET("/store/download-instructions/:token", s.DownloadInstructions)

	authed := e.Group("/store")
	authed.Use(echo.WrapMiddleware(authz.RequireAuth))
	authed.POST("/download-token/:workflowId", s.IssueDownloadToken)
	authed.GET("/purchase-status/:workflowId", s.PurchaseStatus)
}

// ListWorkflows returns the active catalog.
// (GET /store/workflows)
func (s *Server) ListWorkflows(c echo.Context) error {
	workflows, err := s.Repo.ListWorkflows(c.Request().Context())
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return c.JSON(http.StatusOK, workflows)
}

// GetWorkflow returns one active catalog entry by slug.
// (GET /store/workflows/:slug)
func (s *Server) GetWorkflow(c echo.Context) error {
	workflow, err := s.Repo.GetWorkflowBySlug(c.Request().Context(), c.Param("slug"))
	if errors.Is(err, models.ErrWorkflowNotFound) {
		return echo.NewHTTPError(http.StatusNotFound, "workflow not found")
	}
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return c.JSON(http.StatusOK, workflow)
}

// PurchaseStatus reports whether the caller owns the workflow.
// (GET /store/purchase-status/:workflowId)
func (s *Server) PurchaseStatus(c echo.Context) error {
	userID, ok := auth.UserID(c.Request().Context())
	if !ok {
		return echo.NewHTTPError(http.StatusUnauthorized, "principal id not found in context")
	}
	purchased, err := s.Entitlements.IsPurchased(c.Request().Context(), userID, c.Param("workflowId"))
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return c.JSON(http.StatusOK, map[string]bool{"purchased": purchased})
}

// IssueDownloadToken mints a single-use download token for a purchased
// workflow. artifact defaults to json.
// (POST /store/download-token/:workflowId?artifact=json|instructions)
func (s *Server) IssueDownloadToken(c echo.Context) error {
	userID, ok := auth.UserID(c.Request().Context())
	if !ok {
		return echo.NewHTTPError(http.StatusUnauthorized, "principal id not found in context")
	}

	raw := c.QueryParam("artifact")
	if raw == "" {
		raw = string(models.ArtifactJSON)
	}
	artifact, ok := models.ParseArtifact(raw)
	if !ok {
		return echo.NewHTTPError(http.StatusBadRequest, "unknown artifact kind: "+raw)
	}

	token, err := s.Downloads.Issue(c.Request().Context(), userID, c.Param("workflowId"), artifact)
	switch {
	case errors.Is(err, models.ErrNotEntitled):
		return echo.NewHTTPError(http.StatusForbidden, "workflow not purchased")
	case errors.Is(err, models.ErrArtifactUnavailable):
		return echo.NewHTTPError(http.StatusNotFound, "artifact not available for this workflow")
	case errors.Is(err, models.ErrWorkflowNotFound):
		return echo.NewHTTPError(http.StatusNotFound, "workflow not found")
	case err != nil:
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}

	return c.JSON(http.StatusOK, map[string]any{
		"token":      token.Token,
		"expires_at": token.ExpiresAt.Format(time.RFC3339),
	})
}

// Download streams the workflow definition a token grants.
// (GET /store/download/:token)
func (s *Server) Download(c echo.Context) error {
	return s.redeem(c, models.ArtifactJSON)
}

// DownloadInstructions streams the setup guide a token grants.
// (GET /store/download-instructions/:token)
func (s *Server) DownloadInstructions(c echo.Context) error {
	return s.redeem(c, models.ArtifactInstructions)
}

func (s *Server) redeem(c echo.Context, artifact models.Artifact) error {
	download, err := s.Downloads.Redeem(c.Request().Context(), c.Param("token"), artifact)
	switch {
	case errors.Is(err, models.ErrTokenUnknown):
		return echo.NewHTTPError(http.StatusNotFound, "unknown download token")
	case errors.Is(err, models.ErrTokenExpired):
		return echo.NewHTTPError(http.StatusGone, "download token expired")
	case errors.Is(err, models.ErrTokenConsumed):
		return echo.NewHTTPError(http.StatusGone, "download token already used")
	case errors.Is(err, models.ErrArtifactUnavailable):
		return echo.NewHTTPError(http.StatusNotFound, "artifact not available")
	case err != nil:
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}

	c.Response().Header().Set(echo.HeaderContentDisposition,
		fmt.Sprintf(`attachment; filename=%q`, download.FileName))
	return c.Blob(http.StatusOK, download.ContentType, download.Data)
}
