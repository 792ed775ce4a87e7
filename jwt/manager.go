package jwt

import (
	"bytes"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

const minSecretBytes = 32

var (
	// ErrMalformed is returned when a token cannot be decoded or its claims are structurally wrong.
	ErrMalformed = errors.New("token malformed")
	// ErrBadSignature is returned when the signature does not match the kind-specific secret.
	ErrBadSignature = errors.New("token signature invalid")
	// ErrExpired is returned when the verification clock is at or past the token's expiry.
	ErrExpired = errors.New("token expired")
)

// Kind selects the TTL and signing secret of a token.
type Kind string

const (
	// KindAccess marks short-lived tokens presented on every request.
	KindAccess Kind = "access"
	// KindRefresh marks long-lived tokens used only to mint new access tokens.
	KindRefresh Kind = "refresh"
)

// Valid reports whether k is one of the known kinds.
func (k Kind) Valid() bool {
	return k == KindAccess || k == KindRefresh
}

// Config holds the signing material and lifetimes for both token kinds.
//
// Config instances are intended to be configured during initialization and then treated as immutable.
type Config struct {
	AccessTTL     time.Duration
	RefreshTTL    time.Duration
	AccessSecret  []byte
	RefreshSecret []byte
	Issuer        string
	Leeway        time.Duration
	// Now overrides the clock used for iat/exp and for expiry checks. Defaults to time.Now.
	Now func() time.Time
}

// Claims is the payload shared by access and refresh tokens.
type Claims struct {
	Kind    Kind   `json:"knd"`
	Counter uint64 `json:"rc"`
	jwt.RegisteredClaims
}

// Manager issues and verifies HS256 tokens with one secret per kind.
type Manager struct {
	config Config
}

// NewManager validates cfg and returns a Manager.
//
// NewManager does not mutate shared global state and the returned Manager can be used concurrently.
func NewManager(cfg Config) (*Manager, error) {
	if cfg.AccessTTL <= 0 || cfg.RefreshTTL <= 0 {
		return nil, errors.New("invalid TTL configuration")
	}
	if cfg.AccessTTL >= cfg.RefreshTTL {
		return nil, errors.New("access TTL must be shorter than refresh TTL")
	}
	if cfg.Leeway < 0 || cfg.Leeway > 2*time.Minute {
		return nil, errors.New("invalid leeway configuration")
	}
	if len(cfg.AccessSecret) < minSecretBytes {
		return nil, fmt.Errorf("access secret must be at least %d bytes", minSecretBytes)
	}
	if len(cfg.RefreshSecret) < minSecretBytes {
		return nil, fmt.Errorf("refresh secret must be at least %d bytes", minSecretBytes)
	}
	if bytes.Equal(cfg.AccessSecret, cfg.RefreshSecret) {
		return nil, errors.New("access and refresh secrets must differ")
	}
	cfg.Issuer = strings.TrimSpace(cfg.Issuer)
	cfg.AccessSecret = append([]byte(nil), cfg.AccessSecret...)
	cfg.RefreshSecret = append([]byte(nil), cfg.RefreshSecret...)
	if cfg.Now == nil {
		cfg.Now = time.Now
	}

	return &Manager{config: cfg}, nil
}

// TTL returns the configured lifetime for kind, or zero for an unknown kind.
func (m *Manager) TTL(kind Kind) time.Duration {
	switch kind {
	case KindAccess:
		return m.config.AccessTTL
	case KindRefresh:
		return m.config.RefreshTTL
	default:
		return 0
	}
}

// Issue signs a token of the given kind for subject, embedding counter.
// The expiry is now + TTL(kind). Issue performs no I/O.
func (m *Manager) Issue(kind Kind, subject string, counter uint64) (string, error) {
	secret, err := m.secret(kind)
	if err != nil {
		return "", err
	}
	if subject == "" {
		return "", errors.New("subject required")
	}

	now := m.config.Now()
	claims := Claims{
		Kind:    kind,
		Counter: counter,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   subject,
			Issuer:    m.config.Issuer,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(m.TTL(kind))),
		},
	}

	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(secret)
}

// Verify checks signature, expiry and structure of tokenStr against the secret
// for kind. Errors are always one of ErrMalformed, ErrBadSignature or ErrExpired.
func (m *Manager) Verify(tokenStr string, kind Kind) (*Claims, error) {
	secret, err := m.secret(kind)
	if err != nil {
		return nil, ErrMalformed
	}
	if tokenStr == "" {
		return nil, ErrMalformed
	}

	options := []jwt.ParserOption{
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(m.config.Now),
	}
	if m.config.Leeway > 0 {
		options = append(options, jwt.WithLeeway(m.config.Leeway))
	}
	if m.config.Issuer != "" {
		options = append(options, jwt.WithIssuer(m.config.Issuer))
	}

	claims := &Claims{}
	token, err := jwt.NewParser(options...).ParseWithClaims(tokenStr, claims, func(*jwt.Token) (interface{}, error) {
		return secret, nil
	})
	if err != nil {
		return nil, classify(err)
	}
	if !token.Valid {
		return nil, ErrMalformed
	}
	if claims.Kind != kind || claims.Subject == "" {
		return nil, ErrMalformed
	}

	return claims, nil
}

func (m *Manager) secret(kind Kind) ([]byte, error) {
	switch kind {
	case KindAccess:
		return m.config.AccessSecret, nil
	case KindRefresh:
		return m.config.RefreshSecret, nil
	default:
		return nil, fmt.Errorf("unknown token kind %q", kind)
	}
}

// classify maps golang-jwt parse errors onto the three verification failures.
func classify(err error) error {
	switch {
	case errors.Is(err, jwt.ErrTokenSignatureInvalid),
		errors.Is(err, jwt.ErrTokenUnverifiable):
		return ErrBadSignature
	case errors.Is(err, jwt.ErrTokenExpired):
		return ErrExpired
	default:
		return ErrMalformed
	}
}
