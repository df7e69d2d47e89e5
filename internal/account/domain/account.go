package domain

import (
	"errors"
	"fmt"
	"regexp"
	"strings"
	"time"
	"unicode/utf8"
)

// Account is a registered player or administrator.
type Account struct {
	ID           string
	Name         string
	Email        string // lower-cased and trimmed
	PasswordHash string
	Role         Role
	State        State
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// Role is the authorization role of an account.
type Role string

const (
	RoleUser  Role = "User"
	RoleAdmin Role = "Admin"
)

// State is the lifecycle state of an account.
type State string

const (
	StatePendingApproval State = "PendingApproval"
	StateActive          State = "Active"
	StateSuspended       State = "Suspended"
)

// ParseState returns the State named by s (case-insensitive).
func ParseState(s string) (State, error) {
	for _, st := range []State{StatePendingApproval, StateActive, StateSuspended} {
		if strings.EqualFold(s, string(st)) {
			return st, nil
		}
	}
	return "", fmt.Errorf("unknown account state %q", s)
}

// ErrInvalidStateTransition is returned when a state change targets PendingApproval.
// An account leaves PendingApproval once and never re-enters it.
var ErrInvalidStateTransition = errors.New("invalid account state transition")

// CanTransitionTo reports whether an admin may move an account into target. Staying in
// the current state is always allowed.
func (s State) CanTransitionTo(target State) bool {
	return s == target || target == StateActive || target == StateSuspended
}

// Registration field limits.
const (
	MaxNameLength     = 1000
	MinPasswordLength = 6
	MaxPasswordLength = 300
)

// ValidationError describes the first invalid registration field.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return e.Field + ": " + e.Message
}

var emailPattern = regexp.MustCompile(`^[a-zA-Z0-9._%+-]+@[a-zA-Z0-9.-]+\.[a-zA-Z]{2,}$`)

// NormalizeEmail trims and lower-cases an email address.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// ValidateRegistration checks name, email, and password for a new account.
// email is expected to be normalized.
func ValidateRegistration(name, email, password string) error {
	n := utf8.RuneCountInString(strings.TrimSpace(name))
	if n == 0 || n > MaxNameLength {
		return &ValidationError{Field: "name", Message: fmt.Sprintf("must be 1 to %d characters", MaxNameLength)}
	}
	if email == "" {
		return &ValidationError{Field: "email", Message: "is required"}
	}
	if !emailPattern.MatchString(email) {
		return &ValidationError{Field: "email", Message: "is not a valid address"}
	}
	p := utf8.RuneCountInString(password)
	if p < MinPasswordLength || p > MaxPasswordLength {
		return &ValidationError{Field: "password", Message: fmt.Sprintf("must be %d to %d characters", MinPasswordLength, MaxPasswordLength)}
	}
	return nil
}
