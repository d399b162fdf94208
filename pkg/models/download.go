package models

import "time"

// Artifact identifies which stored representation a download token grants.
type Artifact string

const (
	ArtifactJSON         Artifact = "json"
	ArtifactInstructions Artifact = "instructions"
)

// ParseArtifact validates a client-supplied artifact name.
func ParseArtifact(s string) (Artifact, bool) {
	switch Artifact(s) {
	case ArtifactJSON, ArtifactInstructions:
		return Artifact(s), true
	}
	return "", false
}

// Purchase records that a user owns a workflow. Created by the payment
// flow; this backend only ever reads it.
type Purchase struct {
	UserID      string    `json:"user_id"`
	WorkflowID  string    `json:"workflow_id"`
	PurchasedAt time.Time `json:"purchased_at"`
}

// DownloadToken is a single-use, time-limited grant for one artifact of
// one workflow, bound to the purchasing user.
type DownloadToken struct {
	Token      string    `json:"token"`
	UserID     string    `json:"user_id"`
	WorkflowID string    `json:"workflow_id"`
	Artifact   Artifact  `json:"artifact"`
	IssuedAt   time.Time `json:"issued_at"`
	ExpiresAt  time.Time `json:"expires_at"`
	Consumed   bool      `json:"consumed"`
}
