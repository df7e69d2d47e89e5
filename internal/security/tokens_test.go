package security

import (
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

var testSubject = AccessSubject{AccountID: "acc-1", Name: "Alice", Email: "alice@example.com", Role: "User"}

func newHMACProvider(t *testing.T) *TokenProvider {
	t.Helper()
	p, err := NewHMACTokenProvider([]byte("test-secret"), "test-issuer", "test-audience", TestAccessTTL)
	if err != nil {
		t.Fatalf("NewHMACTokenProvider: %v", err)
	}
	return p
}

func TestTokenProvider_IssueAndValidateAccess(t *testing.T) {
	providers := map[string]func(t *testing.T) *TokenProvider{
		"RS256": func(t *testing.T) *TokenProvider {
			p, err := NewTestTokenProvider()
			if err != nil {
				t.Fatalf("NewTestTokenProvider: %v", err)
			}
			return p
		},
		"HS256": newHMACProvider,
	}
	for name, mk := range providers {
		t.Run(name, func(t *testing.T) {
			p := mk(t)
			token, iat, exp, err := p.IssueAccess(testSubject)
			if err != nil {
				t.Fatalf("IssueAccess: %v", err)
			}
			if token == "" {
				t.Fatal("access token empty")
			}
			if got := exp.Sub(iat); got != TestAccessTTL {
				t.Errorf("exp - iat = %v, want %v", got, TestAccessTTL)
			}

			claims, err := p.ValidateAccess(token)
			if err != nil {
				t.Fatalf("ValidateAccess: %v", err)
			}
			if claims.AccountID() != "acc-1" || claims.Name != "Alice" || claims.Email != "alice@example.com" || claims.Role != "User" {
				t.Errorf("unexpected claims: %+v", claims)
			}
			if !claims.IssuedAtTime().Equal(iat) {
				t.Errorf("iat = %v, want %v", claims.IssuedAtTime(), iat)
			}
		})
	}
}

func TestTokenProvider_ValidateAccessInvalid(t *testing.T) {
	p := newHMACProvider(t)
	for _, tok := range []string{"", "invalid-token", "a.b.c"} {
		if _, err := p.ValidateAccess(tok); !errors.Is(err, ErrInvalidToken) {
			t.Errorf("ValidateAccess(%q): want ErrInvalidToken, got %v", tok, err)
		}
	}
}

func TestTokenProvider_ValidateAccessExpired(t *testing.T) {
	p := newHMACProvider(t)
	past := time.Now().Add(-time.Hour)
	token, _, _, err := p.WithClock(func() time.Time { return past }).IssueAccess(testSubject)
	if err != nil {
		t.Fatalf("IssueAccess: %v", err)
	}
	_, err = p.ValidateAccess(token)
	if !errors.Is(err, ErrInvalidToken) || !errors.Is(err, ErrTokenExpired) {
		t.Fatalf("ValidateAccess expired: want ErrInvalidToken+ErrTokenExpired, got %v", err)
	}
}

func TestTokenProvider_ValidateAccessWrongKey(t *testing.T) {
	p := newHMACProvider(t)
	other, _ := NewHMACTokenProvider([]byte("other-secret"), "test-issuer", "test-audience", TestAccessTTL)
	token, _, _, _ := other.IssueAccess(testSubject)
	if _, err := p.ValidateAccess(token); !errors.Is(err, ErrInvalidToken) {
		t.Fatalf("ValidateAccess foreign signature: want ErrInvalidToken, got %v", err)
	}
}

func TestTokenProvider_ValidateAccessClaimMismatch(t *testing.T) {
	p := newHMACProvider(t)
	cases := map[string]*TokenProvider{}
	cases["issuer"], _ = NewHMACTokenProvider([]byte("test-secret"), "other-issuer", "test-audience", TestAccessTTL)
	cases["audience"], _ = NewHMACTokenProvider([]byte("test-secret"), "test-issuer", "other-audience", TestAccessTTL)
	for name, issuer := range cases {
		t.Run(name, func(t *testing.T) {
			token, _, _, _ := issuer.IssueAccess(testSubject)
			if _, err := p.ValidateAccess(token); !errors.Is(err, ErrInvalidToken) {
				t.Fatalf("want ErrInvalidToken, got %v", err)
			}
		})
	}
}

func TestTokenProvider_RejectsAlgorithmSwitch(t *testing.T) {
	rs, err := NewTestTokenProvider()
	if err != nil {
		t.Fatalf("NewTestTokenProvider: %v", err)
	}
	// An HS256 token signed with the RSA public key bytes must not pass RS256 validation.
	claims := AccessClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   "acc-1",
			Issuer:    "test-issuer",
			Audience:  jwt.ClaimStrings{"test-audience"},
			IssuedAt:  jwt.NewNumericDate(time.Now()),
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Minute)),
		},
		Scope: accessScope,
	}
	forged, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(testPublicKeyPEM))
	if err != nil {
		t.Fatalf("sign: %v", err)
	}
	if _, err := rs.ValidateAccess(forged); !errors.Is(err, ErrInvalidToken) {
		t.Fatalf("want ErrInvalidToken, got %v", err)
	}

	none, err := jwt.NewWithClaims(jwt.SigningMethodNone, claims).SignedString(jwt.UnsafeAllowNoneSignatureType)
	if err != nil {
		t.Fatalf("sign none: %v", err)
	}
	if _, err := rs.ValidateAccess(none); !errors.Is(err, ErrInvalidToken) {
		t.Fatalf("alg=none: want ErrInvalidToken, got %v", err)
	}
}

func TestTokenProvider_RejectsMissingScope(t *testing.T) {
	p := newHMACProvider(t)
	claims := AccessClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   "acc-1",
			Issuer:    "test-issuer",
			Audience:  jwt.ClaimStrings{"test-audience"},
			IssuedAt:  jwt.NewNumericDate(time.Now()),
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Minute)),
		},
	}
	token, _ := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte("test-secret"))
	if _, err := p.ValidateAccess(token); !errors.Is(err, ErrInvalidToken) {
		t.Fatalf("want ErrInvalidToken, got %v", err)
	}
}

func TestNewHMACTokenProvider_EmptySecret(t *testing.T) {
	if _, err := NewHMACTokenProvider(nil, "i", "a", time.Minute); !errors.Is(err, ErrInvalidKey) {
		t.Fatalf("want ErrInvalidKey, got %v", err)
	}
}

func TestTokenProvider_DistinctTokens(t *testing.T) {
	p := newHMACProvider(t)
	a, _, _, _ := p.IssueAccess(testSubject)
	b, _, _, _ := p.IssueAccess(testSubject)
	if a == b {
		t.Fatal("two access tokens issued in the same second should still differ by jti")
	}
	if strings.Count(a, ".") != 2 {
		t.Errorf("access token is not a compact JWS: %q", a)
	}
}
