package password

import (
	"crypto/rand"
	"crypto/subtle"
	"encoding/base64"
	"errors"
	"fmt"
	"strings"

	"golang.org/x/crypto/argon2"
)

const (
	minMemoryKB    uint32 = 8 * 1024
	minTimeCost    uint32 = 1
	minParallelism uint8  = 1
	minSaltLength  uint32 = 16
	minKeyLength   uint32 = 16
	algorithmID           = "argon2id"

	// DefaultMinSecretBytes is applied when Config.MinSecretBytes is zero.
	DefaultMinSecretBytes = 8
	// DefaultMaxSecretBytes is applied when Config.MaxSecretBytes is zero.
	DefaultMaxSecretBytes = 1024
)

var (
	// ErrSecretLength is returned by Hash and Verify when the secret is outside the configured bounds.
	ErrSecretLength = errors.New("secret length out of bounds")
	// ErrInvalidHash is returned by Verify and NeedsUpgrade for hashes that are not argon2id PHC strings.
	ErrInvalidHash = errors.New("invalid argon2id hash")
)

// Config holds the argon2id cost parameters and the accepted secret length range.
type Config struct {
	Memory      uint32
	Time        uint32
	Parallelism uint8
	SaltLength  uint32
	KeyLength   uint32

	// MinSecretBytes and MaxSecretBytes bound the raw byte length of secrets.
	MinSecretBytes int
	MaxSecretBytes int
}

// DefaultConfig returns argon2id parameters suitable for interactive logins.
func DefaultConfig() Config {
	return Config{
		Memory:         64 * 1024,
		Time:           3,
		Parallelism:    2,
		SaltLength:     16,
		KeyLength:      32,
		MinSecretBytes: DefaultMinSecretBytes,
		MaxSecretBytes: DefaultMaxSecretBytes,
	}
}

func (c Config) validate() error {
	switch {
	case c.Memory < minMemoryKB:
		return fmt.Errorf("password memory must be >= %d KB", minMemoryKB)
	case c.Time < minTimeCost:
		return errors.New("password time must be >= 1")
	case c.Parallelism < minParallelism:
		return errors.New("password parallelism must be >= 1")
	case c.SaltLength < minSaltLength:
		return fmt.Errorf("password salt length must be >= %d", minSaltLength)
	case c.KeyLength < minKeyLength:
		return fmt.Errorf("password key length must be >= %d", minKeyLength)
	case c.MinSecretBytes < 1:
		return errors.New("password minimum secret length must be >= 1")
	case c.MaxSecretBytes < c.MinSecretBytes:
		return errors.New("password maximum secret length must be >= minimum")
	}
	return nil
}

// params are the cost settings recorded in a PHC string.
type params struct {
	memory      uint32
	time        uint32
	parallelism uint8
}

// phc is a decoded "$argon2id$v=19$m=..,t=..,p=..$salt$key" credential hash.
type phc struct {
	params
	salt []byte
	key  []byte
}

func (p params) derive(secret string, salt []byte, keyLen uint32) []byte {
	return argon2.IDKey([]byte(secret), salt, p.time, p.memory, p.parallelism, keyLen)
}

func (p params) String() string {
	return fmt.Sprintf("m=%d,t=%d,p=%d", p.memory, p.time, p.parallelism)
}

func (h phc) String() string {
	return fmt.Sprintf("$%s$v=%d$%s$%s$%s",
		algorithmID, argon2.Version, h.params,
		base64.RawStdEncoding.EncodeToString(h.salt),
		base64.RawStdEncoding.EncodeToString(h.key))
}

// Argon2 hashes and verifies credential secrets. It is safe for concurrent use.
type Argon2 struct {
	config Config
	params params
}

// NewArgon2 validates cfg, fills zero length bounds with defaults and returns a hasher.
func NewArgon2(cfg Config) (*Argon2, error) {
	if cfg.MinSecretBytes == 0 {
		cfg.MinSecretBytes = DefaultMinSecretBytes
	}
	if cfg.MaxSecretBytes == 0 {
		cfg.MaxSecretBytes = DefaultMaxSecretBytes
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &Argon2{
		config: cfg,
		params: params{memory: cfg.Memory, time: cfg.Time, parallelism: cfg.Parallelism},
	}, nil
}

// MinSecretBytes reports the effective lower bound on secret length.
func (a *Argon2) MinSecretBytes() int { return a.config.MinSecretBytes }

// MaxSecretBytes reports the effective upper bound on secret length.
func (a *Argon2) MaxSecretBytes() int { return a.config.MaxSecretBytes }

// Hash returns the PHC encoding of secret under a fresh random salt.
//
// Secrets are hashed as raw bytes; no Unicode normalization is applied.
func (a *Argon2) Hash(secret string) (string, error) {
	if len(secret) < a.config.MinSecretBytes || len(secret) > a.config.MaxSecretBytes {
		return "", ErrSecretLength
	}

	salt := make([]byte, a.config.SaltLength)
	if _, err := rand.Read(salt); err != nil {
		return "", fmt.Errorf("read salt: %w", err)
	}

	h := phc{params: a.params, salt: salt}
	h.key = h.derive(secret, salt, a.config.KeyLength)
	return h.String(), nil
}

// Verify recomputes the hash of secret with the parameters embedded in encodedHash
// and compares in constant time.
//
// Overlong secrets are rejected before any key derivation. Secrets shorter than
// MinSecretBytes are still verified so that a policy change never locks out
// existing identities.
func (a *Argon2) Verify(secret string, encodedHash string) (bool, error) {
	if len(secret) > a.config.MaxSecretBytes {
		return false, ErrSecretLength
	}

	h, err := parsePHC(encodedHash)
	if err != nil {
		return false, err
	}
	got := h.derive(secret, h.salt, uint32(len(h.key)))
	return subtle.ConstantTimeCompare(got, h.key) == 1, nil
}

// NeedsUpgrade reports whether encodedHash was produced with weaker parameters
// than the hasher's current configuration.
func (a *Argon2) NeedsUpgrade(encodedHash string) (bool, error) {
	h, err := parsePHC(encodedHash)
	if err != nil {
		return false, err
	}
	return a.params.memory > h.memory ||
		a.params.time > h.time ||
		a.params.parallelism > h.parallelism ||
		a.config.KeyLength != uint32(len(h.key)), nil
}

func invalidHash(reason string) error {
	return fmt.Errorf("%w: %s", ErrInvalidHash, reason)
}

// decodeB64 accepts both the unpadded PHC form and padded standard base64.
func decodeB64(s string) ([]byte, error) {
	if b, err := base64.RawStdEncoding.Strict().DecodeString(s); err == nil {
		return b, nil
	}
	return base64.StdEncoding.DecodeString(s)
}

func parsePHC(encoded string) (phc, error) {
	var h phc

	fields := strings.Split(encoded, "$")
	if len(fields) != 6 || fields[0] != "" {
		return h, invalidHash("format")
	}
	if fields[1] != algorithmID {
		return h, invalidHash("algorithm")
	}

	var version int
	if _, err := fmt.Sscanf(fields[2], "v=%d", &version); err != nil || version != argon2.Version {
		return h, invalidHash("version")
	}

	var p params
	n, err := fmt.Sscanf(fields[3], "m=%d,t=%d,p=%d", &p.memory, &p.time, &p.parallelism)
	// re-rendering rejects reordered, padded or trailing parameters
	if err != nil || n != 3 || p.String() != fields[3] {
		return h, invalidHash("parameters")
	}
	switch {
	case p.memory < minMemoryKB:
		return h, invalidHash("memory")
	case p.time < minTimeCost:
		return h, invalidHash("time")
	case p.parallelism < minParallelism:
		return h, invalidHash("parallelism")
	}
	h.params = p

	if h.salt, err = decodeB64(fields[4]); err != nil || len(h.salt) < int(minSaltLength) {
		return h, invalidHash("salt")
	}
	if h.key, err = decodeB64(fields[5]); err != nil || len(h.key) == 0 {
		return h, invalidHash("digest")
	}
	return h, nil
}
