package redisstore

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/MrEthical07/tokenauth/identity"
)

// ErrUnavailable wraps any Redis failure other than a missing key.
var ErrUnavailable = errors.New("redis unavailable")

// DefaultPrefix is the key namespace used when New is given an empty prefix.
const DefaultPrefix = "ta"

const (
	fieldEmail    = "email"
	fieldUsername = "username"
	fieldHash     = "hash"
	fieldCounter  = "rc"
	fieldCreated  = "created"
)

const insertScript = `
if redis.call("EXISTS", KEYS[2]) == 1 or redis.call("EXISTS", KEYS[1]) == 1 then
  return 0
end
redis.call("HSET", KEYS[1], "email", ARGV[1], "username", ARGV[2], "hash", ARGV[3], "rc", "0", "created", ARGV[4])
redis.call("SET", KEYS[2], ARGV[5])
return 1
`

var insertLua = redis.NewScript(insertScript)

const incrementScript = `
if redis.call("EXISTS", KEYS[1]) == 0 then
  return -1
end
return redis.call("HINCRBY", KEYS[1], "rc", 1)
`

var incrementLua = redis.NewScript(incrementScript)

// Store persists identities as Redis hashes with a string index from
// normalized email to ID.
//
//	<prefix>:id:<id>        HASH  email, username, hash, rc, created
//	<prefix>:email:<email>  STRING id
type Store struct {
	redis  redis.UniversalClient
	prefix string
	now    func() time.Time
}

// New creates a Store on the given client. An empty prefix selects DefaultPrefix.
func New(rdb redis.UniversalClient, prefix string) *Store {
	if prefix == "" {
		prefix = DefaultPrefix
	}
	return &Store{redis: rdb, prefix: prefix, now: time.Now}
}

func (s *Store) idKey(id string) string {
	return s.prefix + ":id:" + id
}

func (s *Store) emailKey(email string) string {
	return s.prefix + ":email:" + email
}

// FindByID loads the identity hash for id.
func (s *Store) FindByID(ctx context.Context, id string) (*identity.UserIdentity, error) {
	fields, err := s.redis.HGetAll(ctx, s.idKey(id)).Result()
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	if len(fields) == 0 {
		return nil, identity.ErrNotFound
	}
	return decode(id, fields)
}

// FindByEmail resolves the email index and loads the referenced hash.
func (s *Store) FindByEmail(ctx context.Context, email string) (*identity.UserIdentity, error) {
	id, err := s.redis.Get(ctx, s.emailKey(identity.NormalizeEmail(email))).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, identity.ErrNotFound
		}
		return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	return s.FindByID(ctx, id)
}

// Insert writes the hash and the email index in one script so a concurrent
// insert for the same email observes the index and fails with ErrDuplicate.
func (s *Store) Insert(ctx context.Context, u identity.UserIdentity) (*identity.UserIdentity, error) {
	prepared, err := identity.PrepareInsert(u, s.now())
	if err != nil {
		return nil, err
	}

	created, err := insertLua.Run(ctx, s.redis,
		[]string{s.idKey(prepared.ID), s.emailKey(prepared.Email)},
		prepared.Email,
		prepared.Username,
		prepared.CredentialHash,
		strconv.FormatInt(prepared.CreatedAt.UnixNano(), 10),
		prepared.ID,
	).Int64()
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	if created == 0 {
		return nil, identity.ErrDuplicate
	}
	return &prepared, nil
}

// IncrementRevocationCounter runs HINCRBY behind an existence check so a
// missing identity is never materialized by the increment.
func (s *Store) IncrementRevocationCounter(ctx context.Context, id string) (uint64, error) {
	v, err := incrementLua.Run(ctx, s.redis, []string{s.idKey(id)}).Int64()
	if err != nil {
		return 0, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	if v < 0 {
		return 0, identity.ErrNotFound
	}
	return uint64(v), nil
}

func decode(id string, fields map[string]string) (*identity.UserIdentity, error) {
	counter, err := strconv.ParseUint(fields[fieldCounter], 10, 64)
	if err != nil {
		return nil, fmt.Errorf("identity %s: corrupt counter: %w", id, err)
	}
	createdNano, err := strconv.ParseInt(fields[fieldCreated], 10, 64)
	if err != nil {
		return nil, fmt.Errorf("identity %s: corrupt created_at: %w", id, err)
	}

	return &identity.UserIdentity{
		ID:                id,
		Email:             fields[fieldEmail],
		Username:          fields[fieldUsername],
		CredentialHash:    fields[fieldHash],
		RevocationCounter: counter,
		CreatedAt:         time.Unix(0, createdNano).UTC(),
	}, nil
}

var _ identity.Store = (*Store)(nil)
