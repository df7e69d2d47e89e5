package security

import (
	"crypto/rand"
	"crypto/subtle"
	"encoding/base64"
	"errors"
	"fmt"
	"strings"

	"golang.org/x/crypto/argon2"
	"golang.org/x/crypto/bcrypt"
)

// ErrPasswordMismatch is returned by Compare when the password does not match the stored hash.
var ErrPasswordMismatch = errors.New("password does not match")

// ErrUnsupportedHash is returned by Compare when the stored hash is in an unknown format.
var ErrUnsupportedHash = errors.New("unsupported password hash format")

const (
	argon2SaltLength = 16
	argon2KeyLength  = 32
)

// Argon2Params holds the cost parameters for new Argon2id hashes.
type Argon2Params struct {
	Memory      uint32 // KiB
	Iterations  uint32
	Parallelism uint8
}

// DefaultArgon2Params are used when a zero Argon2Params is passed to NewHasher.
var DefaultArgon2Params = Argon2Params{Memory: 64 * 1024, Iterations: 3, Parallelism: 2}

// Hasher hashes passwords with Argon2id and verifies both Argon2id and legacy
// bcrypt hashes. Callers must not log or persist plaintext passwords.
type Hasher struct {
	Params Argon2Params
}

// NewHasher returns a Hasher with the given Argon2id parameters; zero fields fall back to DefaultArgon2Params.
func NewHasher(p Argon2Params) *Hasher {
	if p.Memory == 0 {
		p.Memory = DefaultArgon2Params.Memory
	}
	if p.Iterations == 0 {
		p.Iterations = DefaultArgon2Params.Iterations
	}
	if p.Parallelism == 0 {
		p.Parallelism = DefaultArgon2Params.Parallelism
	}
	return &Hasher{Params: p}
}

// Hash produces an encoded Argon2id hash of password:
// $argon2id$v=19$m=<memory>,t=<iterations>,p=<parallelism>$<salt>$<hash>
func (h *Hasher) Hash(password []byte) (string, error) {
	salt := make([]byte, argon2SaltLength)
	if _, err := rand.Read(salt); err != nil {
		return "", fmt.Errorf("generate salt: %w", err)
	}
	key := argon2.IDKey(password, salt, h.Params.Iterations, h.Params.Memory, h.Params.Parallelism, argon2KeyLength)
	return fmt.Sprintf("$argon2id$v=%d$m=%d,t=%d,p=%d$%s$%s",
		argon2.Version, h.Params.Memory, h.Params.Iterations, h.Params.Parallelism,
		base64.RawStdEncoding.EncodeToString(salt),
		base64.RawStdEncoding.EncodeToString(key)), nil
}

// Compare verifies password against the stored hash in constant time. Returns nil on match,
// ErrPasswordMismatch on mismatch, or another error if the stored hash cannot be parsed.
func (h *Hasher) Compare(hash string, password []byte) error {
	switch {
	case strings.HasPrefix(hash, "$argon2id$"):
		return compareArgon2id(hash, password)
	case strings.HasPrefix(hash, "$2a$"), strings.HasPrefix(hash, "$2b$"), strings.HasPrefix(hash, "$2y$"):
		err := bcrypt.CompareHashAndPassword([]byte(hash), password)
		if errors.Is(err, bcrypt.ErrMismatchedHashAndPassword) {
			return ErrPasswordMismatch
		}
		return err
	default:
		return ErrUnsupportedHash
	}
}

func compareArgon2id(encoded string, password []byte) error {
	parts := strings.Split(encoded, "$")
	if len(parts) != 6 {
		return ErrUnsupportedHash
	}
	var version int
	if _, err := fmt.Sscanf(parts[2], "v=%d", &version); err != nil || version != argon2.Version {
		return ErrUnsupportedHash
	}
	var memory, iterations uint32
	var parallelism uint8
	if _, err := fmt.Sscanf(parts[3], "m=%d,t=%d,p=%d", &memory, &iterations, &parallelism); err != nil {
		return fmt.Errorf("%w: %v", ErrUnsupportedHash, err)
	}
	salt, err := base64.RawStdEncoding.DecodeString(parts[4])
	if err != nil {
		return fmt.Errorf("%w: salt: %v", ErrUnsupportedHash, err)
	}
	want, err := base64.RawStdEncoding.DecodeString(parts[5])
	if err != nil {
		return fmt.Errorf("%w: key: %v", ErrUnsupportedHash, err)
	}
	// Parameters come from the stored hash so older hashes keep verifying after a config change.
	got := argon2.IDKey(password, salt, iterations, memory, parallelism, uint32(len(want)))
	if subtle.ConstantTimeCompare(want, got) != 1 {
		return ErrPasswordMismatch
	}
	return nil
}
