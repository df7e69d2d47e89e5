package domain

import "time"

// Session is a login instance: one device's chain of refresh tokens for an account.
// Only the hash of the current refresh token is stored.
type Session struct {
	ID               string
	AccountID        string
	RefreshTokenHash string
	Device           DeviceInfo
	IPAddress        string
	State            State
	CreatedAt        time.Time
	LastGrantedAt    time.Time  // time of the last login or refresh grant
	ClosedAt         *time.Time // set when the session leaves Valid
}

// DeviceInfo describes the client that opened the session.
type DeviceInfo struct {
	Name  string
	Agent string
	OS    string
}

// State is the session lifecycle state. Compromised and LoggedOut are terminal.
type State string

const (
	StateValid       State = "Valid"
	StateCompromised State = "Compromised"
	StateLoggedOut   State = "LoggedOut"
)

// RotatedToken records a refresh token hash that was replaced by a rotation.
// Presenting such a token again is a replay.
type RotatedToken struct {
	TokenHash string
	SessionID string
	AccountID string
	RotatedAt time.Time
}
