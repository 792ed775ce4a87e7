// Package memstore is a process-local identity.Store for tests, examples and
// single-instance deployments. All state is lost on restart.
package memstore

import (
	"context"
	"sync"
	"time"

	"github.com/MrEthical07/tokenauth/identity"
)

// Store keeps identities in maps guarded by a single RWMutex.
type Store struct {
	mu      sync.RWMutex
	byID    map[string]*identity.UserIdentity
	byEmail map[string]string
	now     func() time.Time
}

// New returns an empty Store.
func New() *Store {
	return &Store{
		byID:    make(map[string]*identity.UserIdentity),
		byEmail: make(map[string]string),
		now:     time.Now,
	}
}

// FindByID returns a copy of the identity with the given ID.
func (s *Store) FindByID(ctx context.Context, id string) (*identity.UserIdentity, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()

	u, ok := s.byID[id]
	if !ok {
		return nil, identity.ErrNotFound
	}
	return u.Clone(), nil
}

// FindByEmail returns a copy of the identity registered under email.
func (s *Store) FindByEmail(ctx context.Context, email string) (*identity.UserIdentity, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()

	id, ok := s.byEmail[identity.NormalizeEmail(email)]
	if !ok {
		return nil, identity.ErrNotFound
	}
	return s.byID[id].Clone(), nil
}

// Insert stores u and returns the persisted copy.
func (s *Store) Insert(ctx context.Context, u identity.UserIdentity) (*identity.UserIdentity, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	prepared, err := identity.PrepareInsert(u, s.now())
	if err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, taken := s.byEmail[prepared.Email]; taken {
		return nil, identity.ErrDuplicate
	}
	if _, taken := s.byID[prepared.ID]; taken {
		return nil, identity.ErrDuplicate
	}
	s.byID[prepared.ID] = &prepared
	s.byEmail[prepared.Email] = prepared.ID
	return prepared.Clone(), nil
}

// IncrementRevocationCounter adds one to the counter under the write lock.
func (s *Store) IncrementRevocationCounter(ctx context.Context, id string) (uint64, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	u, ok := s.byID[id]
	if !ok {
		return 0, identity.ErrNotFound
	}
	u.RevocationCounter++
	return u.RevocationCounter, nil
}

// Len reports the number of stored identities.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.byID)
}

var _ identity.Store = (*Store)(nil)
