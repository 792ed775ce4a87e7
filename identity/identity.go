package identity

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
)

var (
	// ErrNotFound is returned when no identity matches the lookup key.
	ErrNotFound = errors.New("identity not found")
	// ErrDuplicate is returned by Insert when the email or ID is already taken.
	ErrDuplicate = errors.New("identity already exists")
)

// UserIdentity is the persisted record of a registered user.
//
// RevocationCounter starts at zero on Insert and only ever grows through
// Store.IncrementRevocationCounter.
type UserIdentity struct {
	ID                string
	Email             string
	Username          string
	CredentialHash    string
	RevocationCounter uint64
	CreatedAt         time.Time
}

// Clone returns a copy that shares no state with u.
func (u *UserIdentity) Clone() *UserIdentity {
	if u == nil {
		return nil
	}
	c := *u
	return &c
}

// Store is the persistence contract the engine depends on.
//
// Implementations must be safe for concurrent use, and
// IncrementRevocationCounter must be a single atomic read-modify-write so
// that N concurrent calls advance the counter by exactly N.
type Store interface {
	FindByID(ctx context.Context, id string) (*UserIdentity, error)
	FindByEmail(ctx context.Context, email string) (*UserIdentity, error)
	Insert(ctx context.Context, u UserIdentity) (*UserIdentity, error)
	IncrementRevocationCounter(ctx context.Context, id string) (uint64, error)
}

// NormalizeEmail trims surrounding whitespace and lower-cases the address.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// PrepareInsert returns the record a store should persist for u: email
// normalized, ID assigned when empty, counter reset, CreatedAt stamped when zero.
func PrepareInsert(u UserIdentity, now time.Time) (UserIdentity, error) {
	u.Email = NormalizeEmail(u.Email)
	if u.Email == "" {
		return UserIdentity{}, errors.New("identity email required")
	}
	if u.CredentialHash == "" {
		return UserIdentity{}, errors.New("identity credential hash required")
	}
	if u.ID == "" {
		u.ID = uuid.NewString()
	}
	u.RevocationCounter = 0
	if u.CreatedAt.IsZero() {
		u.CreatedAt = now
	}
	u.CreatedAt = u.CreatedAt.UTC()
	return u, nil
}
