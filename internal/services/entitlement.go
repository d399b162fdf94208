// Package services holds the store-facing business logic: entitlement
// checks and single-use download tokens.
package services

import (
	"context"

	"flowstore/backend/internal/repository"
)

// EntitlementService answers whether a principal has purchased a
// workflow. It always reads the committed purchase state; entitlement
// is never cached beyond the request.
type EntitlementService struct {
	store repository.Store
}

// NewEntitlementService creates a new EntitlementService.
func NewEntitlementService(store repository.Store) *EntitlementService {
	return &EntitlementService{store: store}
}

// IsPurchased reports whether a purchase row exists for the pair.
func (s *EntitlementService) IsPurchased(ctx context.Context, userID, workflowID string) (bool, error) {
	return s.store.HasPurchase(ctx, userID, workflowID)
}
