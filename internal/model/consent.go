package model

import (
	"time"

	"github.com/google/uuid"
)

// Consent grant status constants. REQUESTED is the only entry state; REVOKED
// and EXPIRED are terminal and retained forever for audit completeness.
const (
	ConsentStatusRequested = "REQUESTED"
	ConsentStatusActive    = "ACTIVE"
	ConsentStatusRevoked   = "REVOKED"
	ConsentStatusExpired   = "EXPIRED"
)

// ConsentGrant is a patient's authorization for a provider to access their
// records.
type ConsentGrant struct {
	Base
	PatientID  uuid.UUID  `json:"patient_id" db:"patient_id"`
	ProviderID uuid.UUID  `json:"provider_id" db:"provider_id"`
	Status     string     `json:"status" db:"status"`
	ExpiresAt  *time.Time `json:"expires_at" db:"expires_at"`
}

// EffectiveStatus returns the grant's status as of now. An ACTIVE grant whose
// expiry has passed is logically EXPIRED even before the sweeper persists it.
func (g *ConsentGrant) EffectiveStatus(now time.Time) string {
	if g.Status == ConsentStatusActive && g.ExpiresAt != nil && now.After(*g.ExpiresAt) {
		return ConsentStatusExpired
	}
	return g.Status
}

// ConsentFilter represents consent grant search parameters
type ConsentFilter struct {
	PatientID  *uuid.UUID `json:"patient_id" form:"patient_id"`
	ProviderID *uuid.UUID `json:"provider_id" form:"provider_id"`
	Status     string     `json:"status" form:"status"`
}

// CreateConsentRequest represents a new data-sharing request
type CreateConsentRequest struct {
	PatientID  uuid.UUID  `json:"patient_id" binding:"required"`
	ProviderID uuid.UUID  `json:"provider_id" binding:"required"`
	ExpiresAt  *time.Time `json:"expires_at"`
}
