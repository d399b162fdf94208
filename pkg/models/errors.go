package models

import "errors"

// Typed failures surfaced by the store and download services. Callers
// branch with errors.Is; none of these carry partial side effects.
var (
	ErrWorkflowNotFound    = errors.New("workflow not found")
	ErrNotEntitled         = errors.New("workflow not purchased")
	ErrArtifactUnavailable = errors.New("requested artifact is not available")
	ErrTokenUnknown        = errors.New("unknown download token")
	ErrTokenExpired        = errors.New("download token expired")
	ErrTokenConsumed       = errors.New("download token already consumed")
)
