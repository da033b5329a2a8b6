package model

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// AuditEntry is an immutable record of a privileged action. Once written it is
// never updated or deleted.
type AuditEntry struct {
	ID        uuid.UUID       `json:"id" db:"id"`
	SubjectID uuid.UUID       `json:"subject_id" db:"subject_id"`
	ActorID   uuid.UUID       `json:"actor_id" db:"actor_id"`
	Action    string          `json:"action" db:"action"`
	Details   json.RawMessage `json:"details" db:"details"`
	IPAddress string          `json:"ip_address" db:"ip_address"`
	UserAgent string          `json:"user_agent" db:"user_agent"`
	CreatedAt time.Time       `json:"created_at" db:"created_at"`
}

const (
	// Identity actions
	AuditActionStatusUpdated = "STATUS_UPDATED"
	AuditActionVerified      = "VERIFIED"
	AuditActionUnverified    = "UNVERIFIED"

	// Consent actions
	AuditActionConsentRequested = "CONSENT_REQUESTED"
	AuditActionConsentApproved  = "CONSENT_APPROVED"
	AuditActionConsentRevoked   = "CONSENT_REVOKED"
	AuditActionConsentExpired   = "CONSENT_EXPIRED"
)

// BulkStatusAction returns the audit tag for a bulk status change,
// e.g. "BULK status suspended".
func BulkStatusAction(status string) string {
	return fmt.Sprintf("BULK status %s", status)
}

// BulkVerifiedAction returns the audit tag for a bulk verification change,
// e.g. "BULK verified true".
func BulkVerifiedAction(verified bool) string {
	return fmt.Sprintf("BULK verified %v", verified)
}

// Audit list limits
const (
	DefaultAuditListLimit = 50
	MaxAuditListLimit     = 200
)

// AuditFilter represents audit log query parameters. Each optional field is
// translated to a predicate by the storage adapter.
type AuditFilter struct {
	SubjectID *uuid.UUID `json:"subject_id" form:"subject_id"`
	ActorID   *uuid.UUID `json:"actor_id" form:"actor_id"`
	Action    string     `json:"action" form:"action"`
	Since     *time.Time `json:"since" form:"since"`
	Until     *time.Time `json:"until" form:"until"`
	Limit     int        `json:"limit" form:"limit"`
}
