package tokenauth

import (
	"context"
	"errors"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/MrEthical07/tokenauth/identity"
	"github.com/MrEthical07/tokenauth/jwt"
)

// IssueToken signs a token of the given kind for id, embedding its current
// revocation counter. It performs no I/O.
func (e *Engine) IssueToken(id PublicIdentity, kind TokenKind) (string, error) {
	if e == nil || e.jwtManager == nil {
		return "", ErrEngineNotReady
	}
	return e.jwtManager.Issue(kind, id.ID, id.RevocationCounter)
}

// VerifyToken checks signature, kind and expiry of token without consulting
// the identity store. Errors are jwt.ErrMalformed, jwt.ErrBadSignature or
// jwt.ErrExpired.
func (e *Engine) VerifyToken(token string, kind TokenKind) (RequestIdentity, error) {
	if e == nil || e.jwtManager == nil {
		return RequestIdentity{}, ErrEngineNotReady
	}
	claims, err := e.jwtManager.Verify(token, kind)
	if err != nil {
		e.tokenFailure(err)
		return RequestIdentity{}, err
	}
	return RequestIdentity{SubjectID: claims.Subject, RevocationCounter: claims.Counter}, nil
}

// VerifyAndAuthorize verifies an access token and checks that its embedded
// revocation counter still equals the live counter in the identity store.
// Every failure, including a store timeout, returns ErrUnauthenticated.
func (e *Engine) VerifyAndAuthorize(ctx context.Context, token string) (RequestIdentity, error) {
	id, _, err := e.authorize(ctx, token, ModeStrict)
	if err != nil {
		return RequestIdentity{}, ErrUnauthenticated
	}
	return id, nil
}

// Validate authorizes an access token under routeMode. ModeInherit resolves to
// the engine's configured mode. Failures return ErrUnauthenticated, or
// ErrInvalidRouteMode for an unknown mode.
func (e *Engine) Validate(ctx context.Context, token string, routeMode RouteMode) (RequestIdentity, error) {
	mode, err := e.resolveMode(routeMode)
	if err != nil {
		return RequestIdentity{}, err
	}
	id, _, err := e.authorize(ctx, token, mode)
	if err != nil {
		return RequestIdentity{}, ErrUnauthenticated
	}
	return id, nil
}

// CurrentIdentity returns the identity named by the Authorization header
// value, or nil on any failure. The reason is never exposed to the caller.
func (e *Engine) CurrentIdentity(ctx context.Context, authorization string) *PublicIdentity {
	token, ok := BearerToken(authorization)
	if !ok {
		return nil
	}
	_, user, err := e.authorize(ctx, token, ModeStrict)
	if err != nil {
		return nil
	}
	return publicIdentity(user)
}

func (e *Engine) resolveMode(routeMode RouteMode) (ValidationMode, error) {
	if e == nil {
		return 0, ErrEngineNotReady
	}
	switch routeMode {
	case ModeInherit:
		return e.config.ValidationMode, nil
	case ModeStateless, ModeStrict:
		return routeMode, nil
	default:
		return 0, ErrInvalidRouteMode
	}
}

// authorize is the single verification routine behind the gate,
// VerifyAndAuthorize and CurrentIdentity. In ModeStrict it loads the identity
// and returns it; in ModeStateless the returned identity is nil.
// The returned error carries the internal reason for audit and metrics.
func (e *Engine) authorize(ctx context.Context, token string, mode ValidationMode) (RequestIdentity, *identity.UserIdentity, error) {
	if !e.ready() {
		return RequestIdentity{}, nil, ErrEngineNotReady
	}

	var start time.Time
	if e.metrics.LatencyEnabled() {
		start = time.Now()
		defer func() { e.metricObserve(MetricValidateLatency, time.Since(start)) }()
	}

	id, err := e.VerifyToken(token, jwt.KindAccess)
	if err != nil {
		e.gateRejected(ctx, "", err)
		return RequestIdentity{}, nil, err
	}

	if mode == ModeStateless {
		e.metricInc(MetricGateAllowed)
		return id, nil, nil
	}

	user, err := e.loadCurrent(ctx, id)
	if err != nil {
		e.gateRejected(ctx, id.SubjectID, err)
		return RequestIdentity{}, nil, err
	}

	e.metricInc(MetricGateAllowed)
	return id, user, nil
}

// loadCurrent fetches the identity named by a verified token and checks the
// embedded counter against the live one.
func (e *Engine) loadCurrent(ctx context.Context, id RequestIdentity) (*identity.UserIdentity, error) {
	sctx, cancel := e.storeCtx(ctx)
	user, err := e.store.FindByID(sctx, id.SubjectID)
	cancel()
	if err != nil {
		if errors.Is(err, identity.ErrNotFound) {
			return nil, err
		}
		e.metricInc(MetricStoreFailure)
		e.logger.Warn("identity lookup failed during authorization",
			zap.String("subject_id", id.SubjectID), zap.Error(err))
		return nil, ErrStoreUnavailable
	}
	if user.RevocationCounter != id.RevocationCounter {
		e.metricInc(MetricCounterMismatch)
		return nil, errCounterMismatch
	}
	return user, nil
}

func (e *Engine) tokenFailure(err error) {
	switch {
	case errors.Is(err, jwt.ErrExpired):
		e.metricInc(MetricTokenExpired)
	case errors.Is(err, jwt.ErrBadSignature):
		e.metricInc(MetricTokenBadSignature)
	default:
		e.metricInc(MetricTokenMalformed)
	}
}

func (e *Engine) gateRejected(ctx context.Context, subjectID string, err error) {
	e.metricInc(MetricGateRejected)
	e.emitAudit(ctx, auditEventGateRejected, false, subjectID, err, nil)
}

// BearerToken extracts the token from an "Authorization: Bearer <token>"
// header value. The scheme is matched case-insensitively.
func BearerToken(header string) (string, bool) {
	const scheme = "bearer "
	if len(header) < len(scheme) || !strings.EqualFold(header[:len(scheme)], scheme) {
		return "", false
	}
	token := strings.TrimSpace(header[len(scheme):])
	if token == "" || strings.ContainsAny(token, " \t") {
		return "", false
	}
	return token, true
}
