package email

import (
	"context"
)

// Service delivers verification codes out of band. Issuance and delivery are
// one operation from the caller's perspective: a stored-but-undelivered code
// must fail the issuance call.
type Service interface {
	SendVerificationCode(ctx context.Context, to string, code string) error
}
