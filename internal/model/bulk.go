package model

import (
	"github.com/google/uuid"
)

// Bulk action constants
const (
	BulkActionSuspend  = "suspend"
	BulkActionActivate = "activate"
	BulkActionVerify   = "verify"
	BulkActionUnverify = "unverify"
)

// BulkActionRequest applies one action to many identities atomically.
type BulkActionRequest struct {
	Action     string      `json:"action" binding:"required,bulkaction"`
	SubjectIDs []uuid.UUID `json:"subject_ids" binding:"required,min=1"`
	Reason     string      `json:"reason"`
}

// BulkResult reports the outcome of a bulk action.
type BulkResult struct {
	Action   string `json:"action"`
	Affected int    `json:"affected"`
}

// ValidBulkAction reports whether a is one of the supported bulk actions.
func ValidBulkAction(a string) bool {
	switch a {
	case BulkActionSuspend, BulkActionActivate, BulkActionVerify, BulkActionUnverify:
		return true
	}
	return false
}
