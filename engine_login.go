package tokenauth

import (
	"context"
	"errors"

	"go.uber.org/zap"

	"github.com/MrEthical07/tokenauth/identity"
	"github.com/MrEthical07/tokenauth/internal/rate"
	"github.com/MrEthical07/tokenauth/jwt"
)

// Login authenticates email and secret and, on success, issues an access and
// a refresh token embedding the identity's current revocation counter.
//
// An unknown email and a wrong secret produce the same LoginInvalidCredentials
// result and cost the same hash verification. Login never writes to the
// identity store.
func (e *Engine) Login(ctx context.Context, email, secret string) LoginResult {
	if !e.ready() {
		return LoginResult{Outcome: LoginUnavailable}
	}

	email = identity.NormalizeEmail(email)
	ip := clientIPFromContext(ctx)

	if e.rateLimiter != nil {
		if err := e.rateLimiter.CheckLogin(ctx, email, ip); err != nil {
			if errors.Is(err, rate.ErrRateLimited) {
				e.metricInc(MetricLoginRateLimited)
				e.emitRateLimit(ctx, "login", nil)
				e.emitAudit(ctx, auditEventLoginRateLimited, false, "", ErrLoginRateLimited, nil)
				return LoginResult{Outcome: LoginRateLimited}
			}
			e.logger.Error("login throttle check failed", zap.Error(err))
			e.metricInc(MetricLoginUnavailable)
			e.emitAudit(ctx, auditEventLoginFailure, false, "", ErrStoreUnavailable, nil)
			return LoginResult{Outcome: LoginUnavailable}
		}
	}

	sctx, cancel := e.storeCtx(ctx)
	user, err := e.store.FindByEmail(sctx, email)
	cancel()
	if err != nil && !errors.Is(err, identity.ErrNotFound) {
		e.logger.Error("identity lookup failed", zap.Error(err))
		e.metricInc(MetricStoreFailure)
		e.metricInc(MetricLoginUnavailable)
		e.emitAudit(ctx, auditEventLoginFailure, false, "", ErrStoreUnavailable, nil)
		return LoginResult{Outcome: LoginUnavailable}
	}

	hash := e.dummyHash
	if user != nil {
		hash = user.CredentialHash
	}
	ok, verr := e.hasher.Verify(secret, hash)
	if verr != nil {
		// Overlong secrets and unparseable stored hashes land here; both are
		// reported as bad credentials.
		e.logger.Debug("credential verify error", zap.Error(verr))
		ok = false
	}

	if user == nil || !ok {
		e.recordLoginFailure(ctx, email, ip)
		return LoginResult{Outcome: LoginInvalidCredentials}
	}

	access, refresh, err := e.issuePair(user.ID, user.RevocationCounter)
	if err != nil {
		e.logger.Error("token issue failed", zap.String("subject_id", user.ID), zap.Error(err))
		e.metricInc(MetricLoginUnavailable)
		e.emitAudit(ctx, auditEventLoginFailure, false, user.ID, err, nil)
		return LoginResult{Outcome: LoginUnavailable}
	}

	if e.rateLimiter != nil {
		if err := e.rateLimiter.ResetLogin(ctx, email, ip); err != nil {
			e.logger.Warn("login throttle reset failed", zap.Error(err))
		}
	}

	e.metricInc(MetricLoginSuccess)
	e.emitAudit(ctx, auditEventLoginSuccess, true, user.ID, nil, nil)

	return LoginResult{
		Outcome:      LoginSucceeded,
		AccessToken:  access,
		RefreshToken: refresh,
		Identity:     publicIdentity(user),
	}
}

func (e *Engine) recordLoginFailure(ctx context.Context, email, ip string) {
	e.metricInc(MetricLoginFailure)
	e.emitAudit(ctx, auditEventLoginFailure, false, "", ErrInvalidCredentials, nil)

	if e.rateLimiter == nil {
		return
	}
	if err := e.rateLimiter.IncrementLogin(ctx, email, ip); err != nil {
		if errors.Is(err, rate.ErrRateLimited) {
			e.emitRateLimit(ctx, "login", nil)
			return
		}
		e.logger.Warn("login throttle increment failed", zap.Error(err))
	}
}

func (e *Engine) issuePair(subjectID string, counter uint64) (string, string, error) {
	access, err := e.jwtManager.Issue(jwt.KindAccess, subjectID, counter)
	if err != nil {
		return "", "", err
	}
	refresh, err := e.jwtManager.Issue(jwt.KindRefresh, subjectID, counter)
	if err != nil {
		return "", "", err
	}
	return access, refresh, nil
}
