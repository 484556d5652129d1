package recovery

import (
	"errors"
	"fmt"
)

var (
	// ErrNotAuthorized is the uniform authorization failure. Every negative
	// chain outcome satisfies errors.Is(err, ErrNotAuthorized).
	ErrNotAuthorized = errors.New("recovery: unable to verify account details")
	// ErrIncompleteProfile is returned by Reset in detailed-disclosure mode when
	// the account's role link or profile could not be resolved.
	ErrIncompleteProfile error = &disclosedError{msg: "account has incomplete profile data"}
	// ErrDetailsMismatch is returned by Reset in detailed-disclosure mode when a
	// fully resolved profile did not match the claim.
	ErrDetailsMismatch error = &disclosedError{msg: "details do not match our records"}
	// ErrMutationFailed signals the directory rejected the password update
	// after authorization succeeded. It is never retried.
	ErrMutationFailed = errors.New("recovery: failed to update password")
)

// ValidationError names the request field the caller has to fix.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("recovery: %s %s", e.Field, e.Reason)
}

// Message is the caller-facing text.
func (e *ValidationError) Message() string {
	return fmt.Sprintf("%s %s", e.Field, e.Reason)
}

type disclosedError struct {
	msg string
}

func (e *disclosedError) Error() string {
	return "recovery: " + e.msg
}

// Message is the caller-facing text.
func (e *disclosedError) Message() string {
	return e.msg
}

func (e *disclosedError) Is(target error) bool {
	return target == ErrNotAuthorized
}
