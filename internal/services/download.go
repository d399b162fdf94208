package services

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"fmt"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"

	"flowstore/backend/internal/repository"
	"flowstore/backend/pkg/models"
)

// tokenBytes is the entropy of a download token before encoding.
const tokenBytes = 32

// Download is a redeemed artifact ready to stream to the client.
type Download struct {
	FileName    string
	ContentType string
	Data        []byte
}

// DownloadService issues and redeems single-use, time-limited download
// tokens. The single-use guarantee lives in the storage layer, so the
// service stays correct when run as multiple stateless instances.
type DownloadService struct {
	store        repository.Store
	entitlements *EntitlementService
	ttl          time.Duration
	now          func() time.Time

	issued   metric.Int64Counter
	redeemed metric.Int64Counter
}

// NewDownloadService creates a DownloadService with the given token TTL.
func NewDownloadService(store repository.Store, entitlements *EntitlementService, ttl time.Duration) *DownloadService {
	meter := otel.Meter("flowstore/backend/downloads")
	issued, _ := meter.Int64Counter("download_tokens_issued")
	redeemed, _ := meter.Int64Counter("download_tokens_redeemed")
	return &DownloadService{
		store:        store,
		entitlements: entitlements,
		ttl:          ttl,
		now:          time.Now,
		issued:       issued,
		redeemed:     redeemed,
	}
}

// Issue mints a token for one artifact of one purchased workflow. The
// entitlement gate comes first: an unpurchased workflow is NotEntitled
// no matter what artifacts exist. A failed issuance writes no row.
func (s *DownloadService) Issue(ctx context.Context, userID, workflowID string, artifact models.Artifact) (*models.DownloadToken, error) {
	purchased, err := s.entitlements.IsPurchased(ctx, userID, workflowID)
	if err != nil {
		return nil, fmt.Errorf("check entitlement: %w", err)
	}
	if !purchased {
		return nil, models.ErrNotEntitled
	}

	workflow, err := s.store.GetWorkflowByID(ctx, workflowID)
	if err != nil {
		return nil, err
	}
	if !workflow.HasArtifact(artifact) {
		return nil, models.ErrArtifactUnavailable
	}

	opaque, err := mintToken()
	if err != nil {
		return nil, err
	}
	issuedAt := s.now()
	token := &models.DownloadToken{
		Token:      opaque,
		UserID:     userID,
		WorkflowID: workflowID,
		Artifact:   artifact,
		IssuedAt:   issuedAt,
		ExpiresAt:  issuedAt.Add(s.ttl),
	}
	if err := s.store.InsertToken(ctx, token); err != nil {
		return nil, fmt.Errorf("persist token: %w", err)
	}
	s.issued.Add(ctx, 1, metric.WithAttributes(attribute.String("artifact", string(artifact))))
	return token, nil
}

// Redeem consumes a token and returns the artifact it grants. The
// consume is atomic at the storage layer: concurrent redemptions of the
// same token yield exactly one success. A failed redemption never marks
// a valid token consumed, and a token presented at the wrong artifact
// endpoint is rejected without being burned.
func (s *DownloadService) Redeem(ctx context.Context, opaque string, artifact models.Artifact) (*Download, error) {
	token, err := s.store.ConsumeToken(ctx, opaque, artifact, s.now())
	if err != nil {
		s.redeemed.Add(ctx, 1, metric.WithAttributes(attribute.String("outcome", "rejected")))
		return nil, err
	}

	workflow, err := s.store.GetWorkflowByID(ctx, token.WorkflowID)
	if err != nil {
		return nil, err
	}

	var download *Download
	switch token.Artifact {
	case models.ArtifactJSON:
		download = &Download{
			FileName:    workflow.FileName,
			ContentType: "application/json",
			Data:        workflow.WorkflowJSON,
		}
	case models.ArtifactInstructions:
		download = &Download{
			FileName:    strings.TrimSuffix(workflow.FileName, ".json") + ".md",
			ContentType: "text/markdown; charset=utf-8",
			Data:        []byte(workflow.InstructionsMarkdown),
		}
	default:
		return nil, models.ErrArtifactUnavailable
	}
	if len(download.Data) == 0 {
		return nil, models.ErrArtifactUnavailable
	}
	s.redeemed.Add(ctx, 1, metric.WithAttributes(attribute.String("outcome", "ok")))
	return download, nil
}

// mintToken returns a cryptographically unguessable opaque token.
func mintToken() (string, error) {
	buf := make([]byte, tokenBytes)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("mint token: %w", err)
	}
	return base64.RawURLEncoding.EncodeToString(buf), nil
}
