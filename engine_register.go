package tokenauth

import (
	"context"
	"errors"
	"strings"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/MrEthical07/tokenauth/identity"
)

// Register validates req, checks that the email is free, hashes the secret
// and inserts a new identity with revocation counter 0.
//
// Store and hash failures are logged and reported as RegisterFailed without
// detail. A concurrent insert of the same email resolves to exactly one
// RegisterCreated; the others get RegisterDuplicate.
func (e *Engine) Register(ctx context.Context, req RegisterRequest) RegisterResult {
	if !e.ready() {
		return RegisterResult{Outcome: RegisterFailed}
	}

	req.Email = identity.NormalizeEmail(req.Email)
	req.Username = strings.TrimSpace(req.Username)

	if err := e.validate.Struct(req); err != nil {
		fields := validationFields(err)
		e.metricInc(MetricRegisterInvalid)
		e.emitAudit(ctx, auditEventRegisterFailure, false, "", ErrRegistrationInvalid, func() map[string]string {
			return map[string]string{"fields": strings.Join(fields, ",")}
		})
		return RegisterResult{Outcome: RegisterInvalid, Fields: fields}
	}

	sctx, cancel := e.storeCtx(ctx)
	existing, err := e.store.FindByEmail(sctx, req.Email)
	cancel()
	switch {
	case err == nil && existing != nil:
		return e.registerDuplicate(ctx)
	case err != nil && !errors.Is(err, identity.ErrNotFound):
		return e.registerFailed(ctx, "identity lookup failed", err, true)
	}

	hash, err := e.hasher.Hash(req.Secret)
	if err != nil {
		return e.registerFailed(ctx, "credential hash failed", err, false)
	}

	sctx, cancel = e.storeCtx(ctx)
	created, err := e.store.Insert(sctx, identity.UserIdentity{
		Email:          req.Email,
		Username:       req.Username,
		CredentialHash: hash,
	})
	cancel()
	if err != nil {
		if errors.Is(err, identity.ErrDuplicate) {
			return e.registerDuplicate(ctx)
		}
		return e.registerFailed(ctx, "identity insert failed", err, true)
	}

	e.metricInc(MetricRegisterSuccess)
	e.emitAudit(ctx, auditEventRegisterSuccess, true, created.ID, nil, nil)

	return RegisterResult{Outcome: RegisterCreated, Identity: publicIdentity(created)}
}

func (e *Engine) registerDuplicate(ctx context.Context) RegisterResult {
	e.metricInc(MetricRegisterDuplicate)
	e.emitAudit(ctx, auditEventRegisterDuplicate, false, "", ErrDuplicateIdentity, nil)
	return RegisterResult{Outcome: RegisterDuplicate}
}

func (e *Engine) registerFailed(ctx context.Context, msg string, err error, storeErr bool) RegisterResult {
	e.logger.Error(msg, zap.Error(err))
	e.metricInc(MetricRegisterFailure)
	if storeErr {
		e.metricInc(MetricStoreFailure)
	}
	e.emitAudit(ctx, auditEventRegisterFailure, false, "", ErrStoreUnavailable, nil)
	return RegisterResult{Outcome: RegisterFailed}
}

func validationFields(err error) []string {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return nil
	}
	fields := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		fields = append(fields, fe.Field())
	}
	return fields
}
