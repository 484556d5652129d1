package recovery

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"

	"propmarket/audit"
	"propmarket/identity"
	"propmarket/profile"
	"propmarket/telemetry"
)

const instrumentationName = "propmarket/recovery"

// Directory is the subset of the identity directory the recovery flow needs.
type Directory interface {
	LookupAccountID(ctx context.Context, email string) (string, error)
	SetPassword(ctx context.Context, accountID, newPassword string) error
}

// RoleLinks resolves the business role attached to an account.
type RoleLinks interface {
	GetRoleLink(ctx context.Context, accountID string) (profile.RoleLink, error)
}

// Profiles loads owner and agent profiles.
type Profiles interface {
	GetOwner(ctx context.Context, id string) (profile.Record, error)
	GetAgent(ctx context.Context, id string) (profile.Record, error)
}

// Dependencies are the collaborators injected into NewService. Recorder,
// Hasher and Logger are optional.
type Dependencies struct {
	Directory Directory
	RoleLinks RoleLinks
	Profiles  Profiles
	Recorder  audit.Recorder
	Hasher    *audit.Hasher
	Logger    *slog.Logger
}

// Service answers verify and reset requests for password recovery by
// knowledge-based verification. It holds no per-request state.
type Service struct {
	directory Directory
	roleLinks RoleLinks
	profiles  Profiles
	recorder  audit.Recorder
	hasher    *audit.Hasher
	logger    *slog.Logger

	callTimeout    time.Duration
	minResponse    time.Duration
	detailedResets bool
	now            func() time.Time
	idGen          func() string
	wait           func(ctx context.Context, d time.Duration)

	tracer   trace.Tracer
	outcomes metric.Int64Counter
	duration metric.Float64Histogram
}

// NewService wires the recovery flow. It panics when a required dependency is
// missing since that is a programming error.
func NewService(deps Dependencies) *Service {
	if deps.Directory == nil || deps.RoleLinks == nil || deps.Profiles == nil {
		panic("recovery: directory, role links and profiles are required")
	}
	s := &Service{
		directory:   deps.Directory,
		roleLinks:   deps.RoleLinks,
		profiles:    deps.Profiles,
		recorder:    deps.Recorder,
		hasher:      deps.Hasher,
		logger:      deps.Logger,
		callTimeout: 5 * time.Second,
		now:         time.Now,
		idGen:       uuid.NewString,
		wait:        waitFor,
		tracer:      telemetry.Tracer(instrumentationName),
	}
	if s.logger == nil {
		s.logger = slog.Default()
	}
	if s.hasher == nil {
		s.hasher, _ = audit.NewHasher(nil)
	}

	meter := telemetry.Meter(instrumentationName)
	var err error
	s.outcomes, err = meter.Int64Counter("recovery.outcomes",
		metric.WithDescription("Recovery requests by operation and outcome"))
	if err != nil {
		s.logger.Warn("recovery: create outcome counter", slog.Any("err", err))
	}
	s.duration, err = meter.Float64Histogram("recovery.duration",
		metric.WithDescription("Recovery request duration"), metric.WithUnit("s"))
	if err != nil {
		s.logger.Warn("recovery: create duration histogram", slog.Any("err", err))
	}
	return s
}

// WithCallTimeout bounds every individual directory or profile call. Zero
// disables the bound.
func (s *Service) WithCallTimeout(d time.Duration) *Service {
	s.callTimeout = d
	return s
}

// WithMinResponse sets the minimum time a verify or reset takes once the
// request passed validation.
func (s *Service) WithMinResponse(d time.Duration) *Service {
	s.minResponse = d
	return s
}

// WithDetailedResetErrors makes Reset distinguish unresolved profiles from
// mismatched details.
func (s *Service) WithDetailedResetErrors(enabled bool) *Service {
	s.detailedResets = enabled
	return s
}

// WithClock overrides the audit timestamp source.
func (s *Service) WithClock(now func() time.Time) *Service {
	s.now = now
	return s
}

// WithIDGenerator overrides the audit event id source.
func (s *Service) WithIDGenerator(gen func() string) *Service {
	s.idGen = gen
	return s
}

// Verify reports whether the claim would authorize a reset. The only error
// it returns is a *ValidationError. Unknown accounts, mismatches and
// dependency faults all yield Found=false.
func (s *Service) Verify(ctx context.Context, req VerifyRequest) (VerifyResult, error) {
	start := time.Now()
	ctx, span := s.tracer.Start(ctx, "recovery.Verify")
	defer span.End()

	if err := validate(map[string]string{"email": req.Email, "name": req.Name, "phone": req.Phone},
		"email", "name", "phone"); err != nil {
		s.emit(ctx, audit.OperationVerify, outcomeValidationFailed, req.Email, "",
			map[string]any{"field": err.Field})
		s.observe(ctx, audit.OperationVerify, outcomeValidationFailed, start)
		return VerifyResult{}, err
	}

	res := s.resolve(ctx, req.Email, req.Name, req.Phone)
	s.logResolution(ctx, audit.OperationVerify, res)
	s.emit(ctx, audit.OperationVerify, string(res.Reason), req.Email, res.AccountID, res.detail())
	span.SetAttributes(attribute.String("recovery.outcome", string(res.Reason)))

	s.wait(ctx, s.minResponse-time.Since(start))
	s.observe(ctx, audit.OperationVerify, string(res.Reason), start)
	return VerifyResult{Found: res.authorized()}, nil
}

// Reset sets a new password when the claim authorizes it. The directory
// mutation is attempted at most once per call and only after the full chain
// matched. Returned errors are *ValidationError, ErrNotAuthorized (or one of
// the detailed variants) and ErrMutationFailed.
func (s *Service) Reset(ctx context.Context, req ResetRequest) error {
	start := time.Now()
	ctx, span := s.tracer.Start(ctx, "recovery.Reset")
	defer span.End()

	fields := map[string]string{
		"email": req.Email, "name": req.Name, "phone": req.Phone, "newPassword": req.NewPassword,
	}
	verr := validate(fields, "email", "name", "phone", "newPassword")
	if verr == nil && len(req.NewPassword) < identity.MinPasswordLength {
		verr = &ValidationError{
			Field:  "newPassword",
			Reason: fmt.Sprintf("must be at least %d characters", identity.MinPasswordLength),
		}
	}
	if verr != nil {
		s.emit(ctx, audit.OperationReset, outcomeValidationFailed, req.Email, "",
			map[string]any{"field": verr.Field})
		s.observe(ctx, audit.OperationReset, outcomeValidationFailed, start)
		return verr
	}

	res := s.resolve(ctx, req.Email, req.Name, req.Phone)
	s.logResolution(ctx, audit.OperationReset, res)
	span.SetAttributes(attribute.String("recovery.outcome", string(res.Reason)))

	if !res.authorized() {
		s.emit(ctx, audit.OperationReset, string(res.Reason), req.Email, res.AccountID, res.detail())
		s.wait(ctx, s.minResponse-time.Since(start))
		s.observe(ctx, audit.OperationReset, string(res.Reason), start)
		return s.rejection(res.Reason)
	}

	// The caller going away must not leave the mutation half issued.
	mctx := context.WithoutCancel(ctx)
	if s.callTimeout > 0 {
		var cancel context.CancelFunc
		mctx, cancel = context.WithTimeout(mctx, s.callTimeout)
		defer cancel()
	}
	mctx, mspan := s.tracer.Start(mctx, "recovery.set_password", trace.WithSpanKind(trace.SpanKindClient))
	err := s.directory.SetPassword(mctx, res.AccountID, req.NewPassword)
	mspan.End()

	if err != nil {
		span.RecordError(err)
		s.logger.LogAttrs(ctx, slog.LevelError, "recovery: password update failed",
			slog.String("request_id", RequestIDFromContext(ctx)),
			slog.String("account_id", res.AccountID),
			slog.Any("err", err))
		s.emit(ctx, audit.OperationReset, outcomeMutationFailed, req.Email, res.AccountID,
			map[string]any{"error": err.Error()})
		s.wait(ctx, s.minResponse-time.Since(start))
		s.observe(ctx, audit.OperationReset, outcomeMutationFailed, start)
		return fmt.Errorf("%w: %w", ErrMutationFailed, err)
	}

	s.logger.LogAttrs(ctx, slog.LevelInfo, "recovery: password reset",
		slog.String("request_id", RequestIDFromContext(ctx)),
		slog.String("account_id", res.AccountID))
	s.emit(ctx, audit.OperationReset, outcomePasswordReset, req.Email, res.AccountID,
		map[string]any{"role": string(res.Role)})
	s.wait(ctx, s.minResponse-time.Since(start))
	s.observe(ctx, audit.OperationReset, outcomePasswordReset, start)
	return nil
}

func (s *Service) rejection(reason Reason) error {
	if !s.detailedResets {
		return ErrNotAuthorized
	}
	switch {
	case reason.chainFailure():
		return ErrIncompleteProfile
	case reason == ReasonDetailsMismatch:
		return ErrDetailsMismatch
	default:
		return ErrNotAuthorized
	}
}

func (s *Service) logResolution(ctx context.Context, op audit.Operation, res resolution) {
	attrs := []slog.Attr{
		slog.String("operation", string(op)),
		slog.String("reason", string(res.Reason)),
		slog.String("step", res.Step),
		slog.String("request_id", RequestIDFromContext(ctx)),
	}
	if res.AccountID != "" {
		attrs = append(attrs, slog.String("account_id", res.AccountID))
	}
	level := slog.LevelInfo
	msg := "recovery: chain resolved"
	if res.Reason == ReasonDependencyFault {
		level = slog.LevelError
		msg = "recovery: dependency fault"
		attrs = append(attrs, slog.Any("err", res.Err))
	}
	s.logger.LogAttrs(ctx, level, msg, attrs...)
}

// emit records exactly one audit event. The recorder gets its own deadline
// detached from the caller so a dropped connection still leaves a trace.
func (s *Service) emit(ctx context.Context, op audit.Operation, outcome, email, accountID string, detail map[string]any) {
	if s.recorder == nil {
		return
	}
	ev := audit.Event{
		ID:         s.idGen(),
		Operation:  op,
		Outcome:    outcome,
		EmailHash:  s.hasher.HashEmail(email),
		AccountID:  accountID,
		RequestID:  RequestIDFromContext(ctx),
		Detail:     detail,
		OccurredAt: s.now().UTC(),
	}

	rctx := context.WithoutCancel(ctx)
	if s.callTimeout > 0 {
		var cancel context.CancelFunc
		rctx, cancel = context.WithTimeout(rctx, s.callTimeout)
		defer cancel()
	}
	if err := s.recorder.Record(rctx, ev); err != nil {
		s.logger.LogAttrs(ctx, slog.LevelError, "recovery: audit record failed",
			slog.String("event_id", ev.ID),
			slog.String("operation", string(op)),
			slog.String("outcome", outcome),
			slog.Any("err", err))
	}
}

func (s *Service) observe(ctx context.Context, op audit.Operation, outcome string, start time.Time) {
	attrs := metric.WithAttributes(
		attribute.String("operation", string(op)),
		attribute.String("outcome", outcome),
	)
	if s.outcomes != nil {
		s.outcomes.Add(ctx, 1, attrs)
	}
	if s.duration != nil {
		s.duration.Record(ctx, time.Since(start).Seconds(), attrs)
	}
}

func (r resolution) detail() map[string]any {
	d := map[string]any{"step": r.Step}
	if r.Role != "" {
		d["role"] = string(r.Role)
	}
	if r.Err != nil {
		d["error"] = r.Err.Error()
	}
	return d
}

// validate returns the first field, in order, that is empty after trimming.
func validate(values map[string]string, order ...string) *ValidationError {
	for _, field := range order {
		if strings.TrimSpace(values[field]) == "" {
			return &ValidationError{Field: field, Reason: "is required"}
		}
	}
	return nil
}

// waitFor blocks for d or until ctx is done.
func waitFor(ctx context.Context, d time.Duration) {
	if d <= 0 {
		return
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
	case <-ctx.Done():
	}
}
