// Package storetest holds the behavioural checks every identity.Store adapter
// must pass. Adapter tests call Run with a constructor for a fresh, empty store.
package storetest

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/MrEthical07/tokenauth/identity"
)

// Factory returns an empty store. Cleanup belongs on t.
type Factory func(t *testing.T) identity.Store

// Run executes the conformance suite as subtests of t.
func Run(t *testing.T, newStore Factory) {
	t.Run("InsertAndFind", func(t *testing.T) { testInsertAndFind(t, newStore(t)) })
	t.Run("NotFound", func(t *testing.T) { testNotFound(t, newStore(t)) })
	t.Run("DuplicateEmail", func(t *testing.T) { testDuplicateEmail(t, newStore(t)) })
	t.Run("ConcurrentDuplicateInsert", func(t *testing.T) { testConcurrentDuplicateInsert(t, newStore(t)) })
	t.Run("IncrementRevocationCounter", func(t *testing.T) { testIncrement(t, newStore(t)) })
	t.Run("ConcurrentIncrement", func(t *testing.T) { testConcurrentIncrement(t, newStore(t)) })
}

func sample(email string) identity.UserIdentity {
	return identity.UserIdentity{
		Email:          email,
		Username:       "user",
		CredentialHash: "$argon2id$v=19$m=8192,t=1,p=1$c2FsdHNhbHRzYWx0c2FsdA$aGFzaGhhc2hoYXNoaGFzaA",
	}
}

func mustInsert(t *testing.T, s identity.Store, email string) *identity.UserIdentity {
	t.Helper()
	u, err := s.Insert(context.Background(), sample(email))
	if err != nil {
		t.Fatalf("insert %s: %v", email, err)
	}
	return u
}

func testInsertAndFind(t *testing.T, s identity.Store) {
	ctx := context.Background()
	created := mustInsert(t, s, "  Alice@Example.com ")

	if created.ID == "" {
		t.Fatal("expected store to assign an ID")
	}
	if created.Email != "alice@example.com" {
		t.Fatalf("expected normalized email, got %q", created.Email)
	}
	if created.RevocationCounter != 0 {
		t.Fatalf("expected counter 0, got %d", created.RevocationCounter)
	}

	byID, err := s.FindByID(ctx, created.ID)
	if err != nil {
		t.Fatalf("find by id: %v", err)
	}
	byEmail, err := s.FindByEmail(ctx, "ALICE@example.com")
	if err != nil {
		t.Fatalf("find by email: %v", err)
	}
	for name, got := range map[string]*identity.UserIdentity{"id": byID, "email": byEmail} {
		if got.ID != created.ID || got.Email != created.Email || got.Username != "user" ||
			got.CredentialHash != created.CredentialHash || got.RevocationCounter != 0 {
			t.Fatalf("lookup by %s returned %+v, want %+v", name, got, created)
		}
	}

	// returned records are copies
	byID.RevocationCounter = 42
	again, err := s.FindByID(ctx, created.ID)
	if err != nil {
		t.Fatalf("find by id: %v", err)
	}
	if again.RevocationCounter != 0 {
		t.Fatal("mutating a returned record changed the stored one")
	}
}

func testNotFound(t *testing.T, s identity.Store) {
	ctx := context.Background()
	if _, err := s.FindByID(ctx, "missing"); !errors.Is(err, identity.ErrNotFound) {
		t.Fatalf("FindByID: expected ErrNotFound, got %v", err)
	}
	if _, err := s.FindByEmail(ctx, "nobody@example.com"); !errors.Is(err, identity.ErrNotFound) {
		t.Fatalf("FindByEmail: expected ErrNotFound, got %v", err)
	}
	if _, err := s.IncrementRevocationCounter(ctx, "missing"); !errors.Is(err, identity.ErrNotFound) {
		t.Fatalf("IncrementRevocationCounter: expected ErrNotFound, got %v", err)
	}
}

func testDuplicateEmail(t *testing.T, s identity.Store) {
	first := mustInsert(t, s, "dup@example.com")

	if _, err := s.Insert(context.Background(), sample("DUP@example.com")); !errors.Is(err, identity.ErrDuplicate) {
		t.Fatalf("expected ErrDuplicate, got %v", err)
	}

	got, err := s.FindByEmail(context.Background(), "dup@example.com")
	if err != nil {
		t.Fatalf("find: %v", err)
	}
	if got.ID != first.ID {
		t.Fatalf("duplicate insert replaced the original record: %s != %s", got.ID, first.ID)
	}
}

func testConcurrentDuplicateInsert(t *testing.T, s identity.Store) {
	const workers = 16

	var wg sync.WaitGroup
	results := make(chan error, workers)
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := s.Insert(context.Background(), sample("race@example.com"))
			results <- err
		}()
	}
	wg.Wait()
	close(results)

	var created, duplicates int
	for err := range results {
		switch {
		case err == nil:
			created++
		case errors.Is(err, identity.ErrDuplicate):
			duplicates++
		default:
			t.Fatalf("unexpected insert error: %v", err)
		}
	}
	if created != 1 || duplicates != workers-1 {
		t.Fatalf("expected exactly one insert to win, got created=%d duplicates=%d", created, duplicates)
	}
}

func testIncrement(t *testing.T, s identity.Store) {
	ctx := context.Background()
	u := mustInsert(t, s, "inc@example.com")

	for want := uint64(1); want <= 3; want++ {
		got, err := s.IncrementRevocationCounter(ctx, u.ID)
		if err != nil {
			t.Fatalf("increment: %v", err)
		}
		if got != want {
			t.Fatalf("expected counter %d, got %d", want, got)
		}
	}

	stored, err := s.FindByID(ctx, u.ID)
	if err != nil {
		t.Fatalf("find: %v", err)
	}
	if stored.RevocationCounter != 3 {
		t.Fatalf("expected stored counter 3, got %d", stored.RevocationCounter)
	}
}

func testConcurrentIncrement(t *testing.T, s identity.Store) {
	const n = 50
	ctx := context.Background()
	u := mustInsert(t, s, "many@example.com")

	var wg sync.WaitGroup
	results := make(chan error, n)
	seen := make(chan uint64, n)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			v, err := s.IncrementRevocationCounter(ctx, u.ID)
			if err != nil {
				results <- err
				return
			}
			seen <- v
		}()
	}
	wg.Wait()
	close(results)
	close(seen)

	for err := range results {
		t.Fatalf("increment error: %v", err)
	}

	unique := make(map[uint64]struct{}, n)
	for v := range seen {
		if _, dup := unique[v]; dup {
			t.Fatalf("counter value %d returned twice", v)
		}
		unique[v] = struct{}{}
	}
	for v := uint64(1); v <= n; v++ {
		if _, ok := unique[v]; !ok {
			t.Fatalf("counter value %d never returned", v)
		}
	}

	stored, err := s.FindByID(ctx, u.ID)
	if err != nil {
		t.Fatalf("find: %v", err)
	}
	if stored.RevocationCounter != n {
		t.Fatalf("expected counter %d after %d concurrent increments, got %d", n, n, stored.RevocationCounter)
	}
}
