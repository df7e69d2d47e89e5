package domain

import "time"

// AuditLog is one recorded security-relevant event. AccountID is empty when the
// actor could not be identified (e.g. a failed login for an unknown email).
type AuditLog struct {
	ID        string
	AccountID string
	Action    string
	Resource  string
	IP        string
	Metadata  string
	CreatedAt time.Time
}

// Actions recorded by the auth and account services.
const (
	ActionLoginSuccess = "login_success"
	ActionLoginFailure = "login_failure"
	ActionRefresh      = "refresh"
	ActionLogout       = "logout"
	ActionCompromise   = "session_compromise"
	ActionStateChange  = "state_change"
	ActionRegister     = "register"
)
