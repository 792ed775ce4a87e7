package tokenauth

import (
	"io"

	"go.uber.org/zap"

	"github.com/MrEthical07/tokenauth/identity"
	internalaudit "github.com/MrEthical07/tokenauth/internal/audit"
	"github.com/MrEthical07/tokenauth/jwt"
)

// TokenKind selects the lifetime and secret of a token.
type TokenKind = jwt.Kind

const (
	// AccessToken is presented as "Authorization: Bearer <token>" on every request.
	AccessToken = jwt.KindAccess
	// RefreshToken travels only in the refresh cookie.
	RefreshToken = jwt.KindRefresh
)

// CredentialHasher hashes and verifies credential secrets.
// password.Argon2 is the default implementation.
type CredentialHasher interface {
	Hash(secret string) (string, error)
	Verify(secret, encodedHash string) (bool, error)
}

// PublicIdentity is the caller-facing view of an identity. It never carries
// the credential hash.
type PublicIdentity struct {
	ID                string `json:"id"`
	Email             string `json:"email"`
	Username          string `json:"username"`
	RevocationCounter uint64 `json:"revocation_counter"`
}

func publicIdentity(u *identity.UserIdentity) *PublicIdentity {
	if u == nil {
		return nil
	}
	return &PublicIdentity{
		ID:                u.ID,
		Email:             u.Email,
		Username:          u.Username,
		RevocationCounter: u.RevocationCounter,
	}
}

// RequestIdentity is the request-scoped result of a successful gate check.
type RequestIdentity struct {
	SubjectID         string
	RevocationCounter uint64
}

// TokenPair is a freshly minted access and refresh token.
type TokenPair struct {
	AccessToken  string
	RefreshToken string
}

// LoginOutcome classifies a login attempt.
type LoginOutcome int

const (
	// LoginSucceeded carries a token pair and the identity.
	LoginSucceeded LoginOutcome = iota
	// LoginInvalidCredentials covers both unknown email and wrong secret.
	LoginInvalidCredentials
	// LoginRateLimited means the throttle rejected the attempt before any lookup.
	LoginRateLimited
	// LoginUnavailable means the store or hasher failed.
	LoginUnavailable
)

// String returns the outcome name used in audit metadata.
func (o LoginOutcome) String() string {
	switch o {
	case LoginSucceeded:
		return "succeeded"
	case LoginInvalidCredentials:
		return "invalid_credentials"
	case LoginRateLimited:
		return "rate_limited"
	case LoginUnavailable:
		return "unavailable"
	default:
		return "unknown"
	}
}

// LoginResult is returned by Engine.Login.
type LoginResult struct {
	Outcome      LoginOutcome
	AccessToken  string
	RefreshToken string
	Identity     *PublicIdentity
}

// Err maps the outcome onto a sentinel error; nil on success.
func (r LoginResult) Err() error {
	switch r.Outcome {
	case LoginSucceeded:
		return nil
	case LoginInvalidCredentials:
		return ErrInvalidCredentials
	case LoginRateLimited:
		return ErrLoginRateLimited
	default:
		return ErrStoreUnavailable
	}
}

// RegisterRequest is the input to Engine.Register.
type RegisterRequest struct {
	Email    string `json:"email" validate:"required,email,max=254"`
	Username string `json:"username"`
	Secret   string `json:"password"`
}

// RegisterOutcome classifies a registration attempt.
type RegisterOutcome int

const (
	// RegisterCreated means a new identity was persisted.
	RegisterCreated RegisterOutcome = iota
	// RegisterDuplicate means the email is already registered.
	RegisterDuplicate
	// RegisterInvalid means the request failed validation.
	RegisterInvalid
	// RegisterFailed means hashing or storage failed.
	RegisterFailed
)

// String returns the outcome name used in audit metadata.
func (o RegisterOutcome) String() string {
	switch o {
	case RegisterCreated:
		return "created"
	case RegisterDuplicate:
		return "duplicate"
	case RegisterInvalid:
		return "invalid"
	case RegisterFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// RegisterResult is returned by Engine.Register.
type RegisterResult struct {
	Outcome  RegisterOutcome
	Identity *PublicIdentity
	// Fields lists the request fields that failed validation.
	Fields []string
}

// OK reports whether the identity was created.
func (r RegisterResult) OK() bool {
	return r.Outcome == RegisterCreated
}

// Err maps the outcome onto a sentinel error; nil on success.
func (r RegisterResult) Err() error {
	switch r.Outcome {
	case RegisterCreated:
		return nil
	case RegisterDuplicate:
		return ErrDuplicateIdentity
	case RegisterInvalid:
		return ErrRegistrationInvalid
	default:
		return ErrRegistrationFailed
	}
}

// AuditEvent is a structured audit record emitted by the engine.
type AuditEvent = internalaudit.Event

// AuditSink receives [AuditEvent] values from the engine's audit dispatcher.
type AuditSink = internalaudit.Sink

// NoOpSink is an [AuditSink] that silently discards all events.
type NoOpSink = internalaudit.NoOpSink

// ChannelSink is a buffered channel-based [AuditSink].
type ChannelSink = internalaudit.ChannelSink

// JSONWriterSink is an [AuditSink] that writes JSON lines to an [io.Writer].
type JSONWriterSink = internalaudit.JSONWriterSink

// ZapSink is an [AuditSink] that logs events through zap.
type ZapSink = internalaudit.ZapSink

// NewChannelSink creates a [ChannelSink] with the given buffer capacity.
func NewChannelSink(buffer int) *ChannelSink {
	return internalaudit.NewChannelSink(buffer)
}

// NewJSONWriterSink creates a [JSONWriterSink] that writes to w.
func NewJSONWriterSink(w io.Writer) *JSONWriterSink {
	return internalaudit.NewJSONWriterSink(w)
}

// NewZapSink creates a [ZapSink] on logger.
func NewZapSink(logger *zap.Logger) *ZapSink {
	return internalaudit.NewZapSink(logger)
}
