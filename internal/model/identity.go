package model

import (
	"time"

	"github.com/google/uuid"
)

// Identity status constants. Any status may be set to any other by an
// authorized actor; the flat set with no adjacency graph is deliberate so
// administrators can always override a stuck account.
const (
	IdentityStatusActive              = "active"
	IdentityStatusSuspended           = "suspended"
	IdentityStatusPendingVerification = "pending_verification"
	IdentityStatusPendingApproval     = "pending_approval"
)

// Identity role constants
const (
	RolePatient = "patient"
	RoleDoctor  = "doctor"
	RoleAdmin   = "admin"
)

// Identity represents a user account. Identities are never deleted, only
// status-transitioned.
type Identity struct {
	Base
	Email    *string `json:"email" db:"email"`
	Role     string  `json:"role" db:"role"`
	Status   string  `json:"status" db:"status"`
	Verified bool    `json:"verified" db:"verified"`
}

// DoctorProfile carries the profile-level verification stamp required for
// doctor-role identities.
type DoctorProfile struct {
	IdentityID uuid.UUID  `json:"identity_id" db:"identity_id"`
	VerifiedAt *time.Time `json:"verified_at" db:"verified_at"`
	UpdatedAt  time.Time  `json:"updated_at" db:"updated_at"`
}

// IdentityFilter represents identity search parameters
type IdentityFilter struct {
	Role     string `json:"role" form:"role"`
	Status   string `json:"status" form:"status"`
	Verified *bool  `json:"verified" form:"verified"`
}

// ValidIdentityStatus reports whether s is one of the enumerated statuses.
func ValidIdentityStatus(s string) bool {
	switch s {
	case IdentityStatusActive, IdentityStatusSuspended,
		IdentityStatusPendingVerification, IdentityStatusPendingApproval:
		return true
	}
	return false
}

// UpdateStatusRequest represents a single-identity status change
type UpdateStatusRequest struct {
	Status string `json:"status" binding:"required"`
	Reason string `json:"reason"`
}

// UpdateVerificationRequest represents a single-identity verification change
type UpdateVerificationRequest struct {
	Verified *bool  `json:"verified" binding:"required"`
	Notes    string `json:"notes"`
}
