package security

import (
	"crypto"
	"crypto/ecdsa"
	"crypto/rand"
	"crypto/rsa"
	"encoding/hex"
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

var (
	// ErrInvalidToken is returned when a token is malformed, unsigned, or fails claim validation.
	ErrInvalidToken = errors.New("invalid token")
	// ErrTokenExpired is returned together with ErrInvalidToken when exp is in the past.
	ErrTokenExpired = errors.New("token expired")
)

const accessScope = "access"

// AccessClaims holds JWT claims for the access token.
type AccessClaims struct {
	jwt.RegisteredClaims
	Name  string `json:"name"`
	Email string `json:"email"`
	Role  string `json:"role"`
	Scope string `json:"scope"`
}

// AccountID returns the subject of the token.
func (c *AccessClaims) AccountID() string { return c.Subject }

// IssuedAtTime returns iat, or the zero time if absent.
func (c *AccessClaims) IssuedAtTime() time.Time {
	if c.IssuedAt == nil {
		return time.Time{}
	}
	return c.IssuedAt.Time
}

// AccessSubject is the account data embedded in an access token.
type AccessSubject struct {
	AccountID string
	Name      string
	Email     string
	Role      string
}

// TokenProvider issues and validates short-lived access JWTs. It signs with RS256 or ES256 when
// built from a key pair, or HS256 when built from a shared secret. Safe for concurrent use.
type TokenProvider struct {
	method    jwt.SigningMethod
	signKey   any
	verifyKey any
	issuer    string
	audience  string
	accessTTL time.Duration
	now       func() time.Time
}

// NewTokenProvider returns a TokenProvider that signs with the given private key (RS256 or ES256).
func NewTokenProvider(privateKey crypto.Signer, publicKey crypto.PublicKey, issuer, audience string, accessTTL time.Duration) (*TokenProvider, error) {
	var method jwt.SigningMethod
	switch privateKey.Public().(type) {
	case *rsa.PublicKey:
		method = jwt.SigningMethodRS256
	case *ecdsa.PublicKey:
		method = jwt.SigningMethodES256
	default:
		return nil, ErrInvalidKey
	}
	if KeyAlg(publicKey) != method.Alg() {
		return nil, fmt.Errorf("%w: public key does not match private key type", ErrInvalidKey)
	}
	return newProvider(method, privateKey, publicKey, issuer, audience, accessTTL), nil
}

// NewHMACTokenProvider returns a TokenProvider that signs with HS256 using secret.
func NewHMACTokenProvider(secret []byte, issuer, audience string, accessTTL time.Duration) (*TokenProvider, error) {
	if len(secret) == 0 {
		return nil, fmt.Errorf("%w: empty HMAC secret", ErrInvalidKey)
	}
	return newProvider(jwt.SigningMethodHS256, secret, secret, issuer, audience, accessTTL), nil
}

func newProvider(method jwt.SigningMethod, signKey, verifyKey any, issuer, audience string, accessTTL time.Duration) *TokenProvider {
	return &TokenProvider{
		method:    method,
		signKey:   signKey,
		verifyKey: verifyKey,
		issuer:    issuer,
		audience:  audience,
		accessTTL: accessTTL,
		now:       time.Now,
	}
}

// AccessTTL returns the lifetime of issued access tokens.
func (p *TokenProvider) AccessTTL() time.Duration { return p.accessTTL }

// IssueAccess issues a short-lived access JWT for the given account.
// Returns the token string, its iat, and expiration time.
func (p *TokenProvider) IssueAccess(sub AccessSubject) (token string, issuedAt, expiresAt time.Time, err error) {
	jti, err := generateJTI()
	if err != nil {
		return "", time.Time{}, time.Time{}, err
	}
	issuedAt = p.now().UTC().Truncate(jwt.TimePrecision)
	expiresAt = issuedAt.Add(p.accessTTL)
	claims := AccessClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        jti,
			Subject:   sub.AccountID,
			Issuer:    p.issuer,
			Audience:  jwt.ClaimStrings{p.audience},
			IssuedAt:  jwt.NewNumericDate(issuedAt),
			ExpiresAt: jwt.NewNumericDate(expiresAt),
		},
		Name:  sub.Name,
		Email: sub.Email,
		Role:  sub.Role,
		Scope: accessScope,
	}
	token, err = jwt.NewWithClaims(p.method, claims).SignedString(p.signKey)
	if err != nil {
		return "", time.Time{}, time.Time{}, err
	}
	return token, issuedAt, expiresAt, nil
}

// ValidateAccess parses and validates the access token (algorithm, signature, exp, iss, aud, scope).
// Every failure wraps ErrInvalidToken; expiry additionally wraps ErrTokenExpired.
func (p *TokenProvider) ValidateAccess(tokenString string) (*AccessClaims, error) {
	if tokenString == "" {
		return nil, ErrInvalidToken
	}
	token, err := jwt.ParseWithClaims(tokenString, &AccessClaims{}, func(*jwt.Token) (any, error) {
		return p.verifyKey, nil
	},
		jwt.WithValidMethods([]string{p.method.Alg()}),
		jwt.WithIssuer(p.issuer),
		jwt.WithAudience(p.audience),
		jwt.WithExpirationRequired(),
		jwt.WithIssuedAt(),
		jwt.WithTimeFunc(p.now),
	)
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, fmt.Errorf("%w: %w", ErrInvalidToken, ErrTokenExpired)
		}
		return nil, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}
	claims, ok := token.Claims.(*AccessClaims)
	if !ok || !token.Valid {
		return nil, ErrInvalidToken
	}
	if claims.Scope != accessScope || claims.Subject == "" || claims.IssuedAt == nil {
		return nil, ErrInvalidToken
	}
	return claims, nil
}

func generateJTI() (string, error) {
	b := make([]byte, 16)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return hex.EncodeToString(b), nil
}
