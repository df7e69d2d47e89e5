package service

import "errors"

// Sentinel errors for the auth service; handlers map them to HTTP status codes.
var (
	ErrInvalidCredentials = errors.New("invalid credentials")
	// ErrSessionNotFound: the refresh token is not the current token of any session.
	ErrSessionNotFound = errors.New("session not found")
	// ErrSessionClosed: the refresh token belongs to a Compromised or LoggedOut session.
	ErrSessionClosed = errors.New("session compromised or closed")
	// ErrRefreshTokenReuse: a rotated-away token was replayed, or a concurrent refresh won.
	ErrRefreshTokenReuse = errors.New("refresh token reuse detected")
	// ErrSessionRevoked: the account cutoff is after the session's last grant.
	ErrSessionRevoked = errors.New("session revoked")
	// ErrAccountNotActive: the account is missing, pending approval or suspended.
	ErrAccountNotActive = errors.New("account not active")
	// ErrUnauthorized wraps every Authorize denial.
	ErrUnauthorized = errors.New("unauthorized")
	// ErrTokenRevoked: the access token was issued before the account's cutoff.
	ErrTokenRevoked = errors.New("token revoked")
)
