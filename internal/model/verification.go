package model

import (
	"time"

	"github.com/google/uuid"
)

// VerificationCode is one issued one-time code. Only the one-way hash of the
// code is ever stored. A code is usable at most once; attempts only increase.
type VerificationCode struct {
	ID          uuid.UUID  `json:"id" db:"id"`
	SubjectID   uuid.UUID  `json:"subject_id" db:"subject_id"`
	TargetValue string     `json:"target_value" db:"target_value"`
	CodeHash    string     `json:"-" db:"code_hash"`
	ExpiresAt   time.Time  `json:"expires_at" db:"expires_at"`
	UsedAt      *time.Time `json:"used_at" db:"used_at"`
	Attempts    int        `json:"attempts" db:"attempts"`
	CreatedAt   time.Time  `json:"created_at" db:"created_at"`
}

// IssueCodeRequest asks for a new code to be delivered to the target address.
type IssueCodeRequest struct {
	SubjectID   uuid.UUID `json:"subject_id" binding:"required"`
	TargetValue string    `json:"target_value" binding:"required,email"`
}

// VerifyCodeRequest supplies a code for verification.
type VerifyCodeRequest struct {
	SubjectID   uuid.UUID `json:"subject_id" binding:"required"`
	TargetValue string    `json:"target_value" binding:"required,email"`
	Code        string    `json:"code" binding:"required,len=6,numeric"`
}
