package tokenauth

import "errors"

var (
	// ErrInvalidCredentials is returned for both an unknown email and a wrong secret.
	ErrInvalidCredentials = errors.New("invalid credentials")
	// ErrUnauthenticated is returned by the gate and by Refresh for every token or lookup failure.
	ErrUnauthenticated = errors.New("unauthenticated")
	// ErrDuplicateIdentity is returned when registering an email that is already taken.
	ErrDuplicateIdentity = errors.New("identity already exists")
	// ErrRevocationTargetNotFound is returned by Revoke for an unknown subject.
	ErrRevocationTargetNotFound = errors.New("revocation target not found")
	// ErrLoginRateLimited is returned when login throttling rejects the attempt.
	ErrLoginRateLimited = errors.New("login rate limited")
	// ErrRegistrationInvalid is returned when a registration request fails validation.
	ErrRegistrationInvalid = errors.New("invalid registration request")
	// ErrRegistrationFailed is returned when registration could not be completed.
	ErrRegistrationFailed = errors.New("registration failed")
	// ErrStoreUnavailable is returned when the identity store fails or times out.
	ErrStoreUnavailable = errors.New("identity store unavailable")
	// ErrEngineNotReady is returned by methods called on a nil or unbuilt Engine.
	ErrEngineNotReady = errors.New("engine not initialized")
	// ErrInvalidRouteMode is returned when a gate is configured with an unknown validation mode.
	ErrInvalidRouteMode = errors.New("invalid route validation mode")
)
