package recovery

import (
	"context"
	"errors"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"propmarket/identity"
	"propmarket/profile"
)

// resolution is the tagged outcome of the lookup chain shared by Verify and
// Reset. AccountID is set once the directory lookup succeeded and is only used
// internally.
type resolution struct {
	Reason    Reason
	AccountID string
	Role      profile.Role
	Step      string
	Err       error
}

func (r resolution) authorized() bool {
	return r.Reason == ReasonMatched
}

// resolve walks directory -> role link -> profile -> verifier. Every call is
// bounded by the service call timeout and any error that is not a plain
// "not found" is a dependency fault.
func (s *Service) resolve(ctx context.Context, email, name, phone string) resolution {
	accountID, err := callStep(ctx, s, "lookup_account", func(ctx context.Context) (string, error) {
		return s.directory.LookupAccountID(ctx, email)
	})
	switch {
	case errors.Is(err, identity.ErrAccountNotFound):
		return resolution{Reason: ReasonAccountNotFound, Step: "lookup_account"}
	case err != nil:
		return resolution{Reason: ReasonDependencyFault, Step: "lookup_account", Err: err}
	}

	link, err := callStep(ctx, s, "lookup_role_link", func(ctx context.Context) (profile.RoleLink, error) {
		return s.roleLinks.GetRoleLink(ctx, accountID)
	})
	switch {
	case errors.Is(err, profile.ErrRoleLinkNotFound):
		return resolution{Reason: ReasonRoleLinkMissing, AccountID: accountID, Step: "lookup_role_link"}
	case err != nil:
		return resolution{Reason: ReasonDependencyFault, AccountID: accountID, Step: "lookup_role_link", Err: err}
	case !link.Valid():
		return resolution{Reason: ReasonRoleLinkInvalid, AccountID: accountID, Role: link.Role, Step: "lookup_role_link"}
	}

	rec, err := callStep(ctx, s, "lookup_profile", func(ctx context.Context) (profile.Record, error) {
		if link.Role == profile.RoleOwner {
			return s.profiles.GetOwner(ctx, link.ProfileID())
		}
		return s.profiles.GetAgent(ctx, link.ProfileID())
	})
	switch {
	case errors.Is(err, profile.ErrProfileNotFound):
		return resolution{Reason: ReasonProfileMissing, AccountID: accountID, Role: link.Role, Step: "lookup_profile"}
	case err != nil:
		return resolution{Reason: ReasonDependencyFault, AccountID: accountID, Role: link.Role, Step: "lookup_profile", Err: err}
	case !Complete(rec):
		return resolution{Reason: ReasonProfileIncomplete, AccountID: accountID, Role: link.Role, Step: "lookup_profile"}
	}

	if !Matches(name, phone, rec) {
		return resolution{Reason: ReasonDetailsMismatch, AccountID: accountID, Role: link.Role, Step: "verify"}
	}
	return resolution{Reason: ReasonMatched, AccountID: accountID, Role: link.Role, Step: "verify"}
}

// callStep runs one external call under the call timeout inside its own span.
// A deadline hit by the step surfaces as an error like any other fault.
func callStep[T any](ctx context.Context, s *Service, step string, fn func(context.Context) (T, error)) (T, error) {
	ctx, span := s.tracer.Start(ctx, "recovery."+step, trace.WithSpanKind(trace.SpanKindClient))
	defer span.End()

	if s.callTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.callTimeout)
		defer cancel()
	}

	out, err := fn(ctx)
	if err == nil && ctx.Err() != nil {
		err = ctx.Err()
	}
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	span.SetAttributes(attribute.Bool("recovery.found", err == nil))
	return out, err
}
