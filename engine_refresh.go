package tokenauth

import (
	"context"

	"go.uber.org/zap"

	"github.com/MrEthical07/tokenauth/jwt"
)

// Refresh exchanges a valid refresh token for a new access and refresh token.
//
// The refresh token's counter must equal the identity's live counter, so a
// Revoke invalidates outstanding refresh tokens as well. Every failure
// returns ErrUnauthenticated.
func (e *Engine) Refresh(ctx context.Context, refreshToken string) (TokenPair, error) {
	if !e.ready() {
		return TokenPair{}, ErrEngineNotReady
	}

	id, err := e.VerifyToken(refreshToken, jwt.KindRefresh)
	if err != nil {
		e.refreshFailed(ctx, "", err)
		return TokenPair{}, ErrUnauthenticated
	}

	user, err := e.loadCurrent(ctx, id)
	if err != nil {
		e.refreshFailed(ctx, id.SubjectID, err)
		return TokenPair{}, ErrUnauthenticated
	}

	access, refresh, err := e.issuePair(user.ID, user.RevocationCounter)
	if err != nil {
		e.logger.Error("token issue failed", zap.String("subject_id", user.ID), zap.Error(err))
		e.refreshFailed(ctx, user.ID, err)
		return TokenPair{}, ErrUnauthenticated
	}

	e.metricInc(MetricRefreshSuccess)
	e.emitAudit(ctx, auditEventRefreshSuccess, true, user.ID, nil, nil)

	return TokenPair{AccessToken: access, RefreshToken: refresh}, nil
}

func (e *Engine) refreshFailed(ctx context.Context, subjectID string, err error) {
	e.metricInc(MetricRefreshFailure)
	e.emitAudit(ctx, auditEventRefreshInvalid, false, subjectID, err, nil)
}
