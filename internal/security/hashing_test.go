package security

import (
	"errors"
	"strings"
	"testing"

	"golang.org/x/crypto/bcrypt"
)

// Cheap parameters keep the suite fast.
var testArgon2Params = Argon2Params{Memory: 1024, Iterations: 1, Parallelism: 1}

func TestHasher_HashAndCompare(t *testing.T) {
	h := NewHasher(testArgon2Params)
	password := []byte("secret123")
	hash, err := h.Hash(password)
	if err != nil {
		t.Fatalf("Hash: %v", err)
	}
	if !strings.HasPrefix(hash, "$argon2id$v=19$m=1024,t=1,p=1$") {
		t.Fatalf("unexpected hash encoding: %q", hash)
	}
	if err := h.Compare(hash, password); err != nil {
		t.Fatalf("Compare: %v", err)
	}
}

func TestHasher_SaltIsRandom(t *testing.T) {
	h := NewHasher(testArgon2Params)
	a, _ := h.Hash([]byte("same"))
	b, _ := h.Hash([]byte("same"))
	if a == b {
		t.Fatal("two hashes of the same password should differ")
	}
}

func TestHasher_CompareWrongPassword(t *testing.T) {
	h := NewHasher(testArgon2Params)
	hash, _ := h.Hash([]byte("secret123"))
	if err := h.Compare(hash, []byte("wrong")); !errors.Is(err, ErrPasswordMismatch) {
		t.Fatalf("Compare wrong password: want ErrPasswordMismatch, got %v", err)
	}
}

func TestHasher_CompareUsesStoredParams(t *testing.T) {
	old := NewHasher(testArgon2Params)
	hash, _ := old.Hash([]byte("secret123"))

	upgraded := NewHasher(Argon2Params{Memory: 2048, Iterations: 2, Parallelism: 1})
	if err := upgraded.Compare(hash, []byte("secret123")); err != nil {
		t.Fatalf("Compare with changed params: %v", err)
	}
}

func TestHasher_CompareLegacyBcrypt(t *testing.T) {
	legacy, err := bcrypt.GenerateFromPassword([]byte("secret123"), bcrypt.MinCost)
	if err != nil {
		t.Fatalf("bcrypt: %v", err)
	}
	h := NewHasher(testArgon2Params)
	if err := h.Compare(string(legacy), []byte("secret123")); err != nil {
		t.Fatalf("Compare bcrypt: %v", err)
	}
	if err := h.Compare(string(legacy), []byte("nope")); !errors.Is(err, ErrPasswordMismatch) {
		t.Fatalf("Compare bcrypt wrong password: want ErrPasswordMismatch, got %v", err)
	}
}

func TestHasher_CompareMalformed(t *testing.T) {
	h := NewHasher(testArgon2Params)
	cases := []string{
		"",
		"plaintext",
		"$argon2id$v=19$m=1024,t=1,p=1$onlysalt",
		"$argon2id$v=18$m=1024,t=1,p=1$c2FsdA$aGFzaA",
		"$argon2id$v=19$m=x,t=1,p=1$c2FsdA$aGFzaA",
		"$argon2id$v=19$m=1024,t=1,p=1$!!!$aGFzaA",
	}
	for _, c := range cases {
		if err := h.Compare(c, []byte("pw")); !errors.Is(err, ErrUnsupportedHash) {
			t.Errorf("Compare(%q): want ErrUnsupportedHash, got %v", c, err)
		}
	}
}

func TestNewHasher_Defaults(t *testing.T) {
	h := NewHasher(Argon2Params{})
	if h.Params != DefaultArgon2Params {
		t.Errorf("Params = %+v, want %+v", h.Params, DefaultArgon2Params)
	}
}
