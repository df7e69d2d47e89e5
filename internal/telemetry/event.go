package telemetry

import "time"

// Security event types.
const (
	EventRefreshTokenReuse = "refresh_token_reuse"
	EventClosedSessionUse  = "closed_session_use"
	EventRotationConflict  = "rotation_conflict"
	EventAccountSuspended  = "account_suspended"
	EventLoginFailure      = "login_failure"
)

// SecurityEvent is a notable authentication event. It is serialized as JSON onto the
// security events topic and pushed to Loki by the worker.
type SecurityEvent struct {
	Type           string    `json:"eventType"`
	Source         string    `json:"source"`
	AccountID      string    `json:"accountId,omitempty"`
	SessionID      string    `json:"sessionId,omitempty"`
	IP             string    `json:"ip,omitempty"`
	SessionsClosed int64     `json:"sessionsClosed,omitempty"`
	CreatedAt      time.Time `json:"createdAt"`
}
