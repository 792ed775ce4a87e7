package tokenauth

import (
	"context"
	"errors"
	"strconv"

	"go.uber.org/zap"

	"github.com/MrEthical07/tokenauth/identity"
)

// Revoke invalidates every outstanding token of subjectID by atomically
// incrementing its revocation counter, and returns the new value.
//
// Tokens issued before the call fail strict verification from then on.
// N concurrent calls raise the counter by exactly N. Revoke returns
// ErrRevocationTargetNotFound for an unknown subject and ErrStoreUnavailable
// when the store fails.
func (e *Engine) Revoke(ctx context.Context, subjectID string) (uint64, error) {
	if !e.ready() {
		return 0, ErrEngineNotReady
	}
	if subjectID == "" {
		e.metricInc(MetricRevokeNotFound)
		return 0, ErrRevocationTargetNotFound
	}

	sctx, cancel := e.storeCtx(ctx)
	counter, err := e.store.IncrementRevocationCounter(sctx, subjectID)
	cancel()
	if err != nil {
		if errors.Is(err, identity.ErrNotFound) {
			e.metricInc(MetricRevokeNotFound)
			e.emitAudit(ctx, auditEventRevokeFailure, false, subjectID, ErrRevocationTargetNotFound, nil)
			return 0, ErrRevocationTargetNotFound
		}
		e.logger.Error("revocation counter increment failed",
			zap.String("subject_id", subjectID), zap.Error(err))
		e.metricInc(MetricRevokeFailure)
		e.metricInc(MetricStoreFailure)
		e.emitAudit(ctx, auditEventRevokeFailure, false, subjectID, ErrStoreUnavailable, nil)
		return 0, ErrStoreUnavailable
	}

	e.metricInc(MetricRevokeSuccess)
	e.emitAudit(ctx, auditEventRevokeSuccess, true, subjectID, nil, func() map[string]string {
		return map[string]string{"revocation_counter": strconv.FormatUint(counter, 10)}
	})

	return counter, nil
}
