package recovery

import "context"

// VerifyRequest is the claim submitted to check whether recovery would be
// allowed.
type VerifyRequest struct {
	Email string
	Name  string
	Phone string
}

// ResetRequest is the claim submitted to set a new password.
type ResetRequest struct {
	Email       string
	Name        string
	Phone       string
	NewPassword string
}

// VerifyResult is the only thing a caller learns from Verify.
type VerifyResult struct {
	Found bool
}

// Reason is the internal classification of a chain outcome. It is logged and
// audited but never returned to callers.
type Reason string

const (
	ReasonMatched           Reason = "matched"
	ReasonAccountNotFound   Reason = "account_not_found"
	ReasonRoleLinkMissing   Reason = "role_link_missing"
	ReasonRoleLinkInvalid   Reason = "role_link_invalid"
	ReasonProfileMissing    Reason = "profile_missing"
	ReasonProfileIncomplete Reason = "profile_incomplete"
	ReasonDetailsMismatch   Reason = "details_mismatch"
	ReasonDependencyFault   Reason = "dependency_fault"
)

// Audit outcomes beyond the chain reasons.
const (
	outcomeValidationFailed = "validation_failed"
	outcomeMutationFailed   = "mutation_failed"
	outcomePasswordReset    = "password_reset"
)

// chainFailure reports whether r comes from an unresolved lookup rather than
// a completed comparison.
func (r Reason) chainFailure() bool {
	switch r {
	case ReasonRoleLinkMissing, ReasonRoleLinkInvalid, ReasonProfileMissing, ReasonProfileIncomplete:
		return true
	default:
		return false
	}
}

type ctxKey int

const ctxKeyRequestID ctxKey = iota

// ContextWithRequestID attaches a request id that is copied into audit events.
func ContextWithRequestID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, ctxKeyRequestID, id)
}

// RequestIDFromContext returns the request id set by ContextWithRequestID.
func RequestIDFromContext(ctx context.Context) string {
	id, _ := ctx.Value(ctxKeyRequestID).(string)
	return id
}
