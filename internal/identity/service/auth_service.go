package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/cenkalti/backoff/v5"
	"github.com/google/uuid"

	accountdomain "github.com/CCodeCommunity/CardGameBackend/internal/account/domain"
	"github.com/CCodeCommunity/CardGameBackend/internal/audit"
	auditdomain "github.com/CCodeCommunity/CardGameBackend/internal/audit/domain"
	identitydomain "github.com/CCodeCommunity/CardGameBackend/internal/identity/domain"
	"github.com/CCodeCommunity/CardGameBackend/internal/logging"
	"github.com/CCodeCommunity/CardGameBackend/internal/revocation"
	"github.com/CCodeCommunity/CardGameBackend/internal/security"
	sessiondomain "github.com/CCodeCommunity/CardGameBackend/internal/session/domain"
	"github.com/CCodeCommunity/CardGameBackend/internal/telemetry"
	telemetryotel "github.com/CCodeCommunity/CardGameBackend/internal/telemetry/otel"
)

// compromiseTries bounds the attempts of the compromise fan-out before the storage error
// is surfaced to the caller.
const (
	compromiseTries   = 3
	compromiseTimeout = 10 * time.Second
)

// AuthResult holds the token pair returned by Login and Refresh.
type AuthResult struct {
	AccessToken  string
	RefreshToken string
	ExpiresAt    time.Time
	AccountID    string
	SessionID    string
}

// LoginRequest carries credentials and the client description recorded on the session.
type LoginRequest struct {
	Email    string
	Password string
	Device   sessiondomain.DeviceInfo
	IP       string
}

// AccountRepo is the minimal account repository needed by the auth service.
type AccountRepo interface {
	GetByEmail(ctx context.Context, email string) (*accountdomain.Account, error)
	GetByID(ctx context.Context, id string) (*accountdomain.Account, error)
}

// SessionRepo is the minimal session repository needed by the auth service.
type SessionRepo interface {
	GetByTokenHash(ctx context.Context, tokenHash string) (*sessiondomain.Session, error)
	GetRotatedToken(ctx context.Context, tokenHash string) (*sessiondomain.RotatedToken, error)
	ListByAccount(ctx context.Context, accountID string) ([]*sessiondomain.Session, error)
	Create(ctx context.Context, s *sessiondomain.Session) error
	Rotate(ctx context.Context, sessionID, oldHash, newHash string, at time.Time) (bool, error)
	MarkLoggedOut(ctx context.Context, tokenHash string, at time.Time) (bool, error)
	CompromiseAllByAccount(ctx context.Context, accountID string, at time.Time) (int64, error)
}

// StateGate answers whether an account may act. See accountstate.Gate.
type StateGate interface {
	IsActive(ctx context.Context, accountID string) (bool, error)
}

// PasswordVerifier checks a password against a stored hash. See security.Hasher.
type PasswordVerifier interface {
	Compare(hash string, password []byte) error
}

// AuthService implements login, refresh-token rotation with replay detection, logout,
// and per-request authorization.
type AuthService struct {
	accounts AccountRepo
	sessions SessionRepo
	tracker  revocation.Tracker
	gate     StateGate
	hasher   PasswordVerifier
	tokens   *security.TokenProvider

	audit   audit.AuditLogger
	events  telemetry.EventEmitter
	metrics *telemetryotel.AuthMetrics
	log     logging.Logger
	now     func() time.Time

	newBackOff func() backoff.BackOff
}

// Option configures optional AuthService collaborators.
type Option func(*AuthService)

func WithAuditLogger(a audit.AuditLogger) Option {
	return func(s *AuthService) { s.audit = a }
}

func WithEventEmitter(e telemetry.EventEmitter) Option {
	return func(s *AuthService) { s.events = e }
}

func WithMetrics(m *telemetryotel.AuthMetrics) Option {
	return func(s *AuthService) { s.metrics = m }
}

func WithLogger(l logging.Logger) Option {
	return func(s *AuthService) { s.log = l }
}

// WithClock overrides the time used for session timestamps.
func WithClock(now func() time.Time) Option {
	return func(s *AuthService) { s.now = now }
}

// NewAuthService returns an AuthService with the given dependencies.
func NewAuthService(
	accounts AccountRepo,
	sessions SessionRepo,
	tracker revocation.Tracker,
	gate StateGate,
	hasher PasswordVerifier,
	tokens *security.TokenProvider,
	opts ...Option,
) *AuthService {
	s := &AuthService{
		accounts: accounts,
		sessions: sessions,
		tracker:  tracker,
		gate:     gate,
		hasher:   hasher,
		tokens:   tokens,
		audit:    audit.Nop{},
		log:      logging.Nop(),
		now:      time.Now,

		newBackOff: func() backoff.BackOff { return backoff.NewExponentialBackOff() },
	}
	for _, o := range opts {
		o(s)
	}
	return s
}

// Login verifies credentials, opens a Valid session and returns the first token pair.
// Account state is not checked here; an inactive account's tokens fail Authorize and Refresh.
func (s *AuthService) Login(ctx context.Context, req LoginRequest) (*AuthResult, error) {
	email := accountdomain.NormalizeEmail(req.Email)
	if email == "" || req.Password == "" {
		return nil, ErrInvalidCredentials
	}
	acc, err := s.accounts.GetByEmail(ctx, email)
	if err != nil {
		return nil, err
	}
	if acc == nil {
		s.loginFailed(ctx, "", req.IP)
		return nil, ErrInvalidCredentials
	}
	if err := s.hasher.Compare(acc.PasswordHash, []byte(req.Password)); err != nil {
		if !errors.Is(err, security.ErrPasswordMismatch) {
			s.log.Warn(ctx, "stored password hash unusable", "account_id", acc.ID, "error", err)
		}
		s.loginFailed(ctx, acc.ID, req.IP)
		return nil, ErrInvalidCredentials
	}

	refreshToken, err := security.NewRefreshToken()
	if err != nil {
		return nil, err
	}
	accessToken, _, expiresAt, err := s.tokens.IssueAccess(subjectOf(acc))
	if err != nil {
		return nil, err
	}
	now := s.now().UTC()
	sess := &sessiondomain.Session{
		ID:               uuid.New().String(),
		AccountID:        acc.ID,
		RefreshTokenHash: security.HashRefreshToken(refreshToken),
		Device:           req.Device,
		IPAddress:        req.IP,
		State:            sessiondomain.StateValid,
		CreatedAt:        now,
		LastGrantedAt:    now,
	}
	if err := s.sessions.Create(ctx, sess); err != nil {
		return nil, err
	}
	s.metrics.Login(ctx, "success")
	s.audit.LogEvent(ctx, acc.ID, auditdomain.ActionLoginSuccess, "account", "session="+sess.ID)
	return &AuthResult{
		AccessToken:  accessToken,
		RefreshToken: refreshToken,
		ExpiresAt:    expiresAt,
		AccountID:    acc.ID,
		SessionID:    sess.ID,
	}, nil
}

func (s *AuthService) loginFailed(ctx context.Context, accountID, ip string) {
	s.metrics.Login(ctx, "invalid_credentials")
	s.audit.LogEvent(ctx, accountID, auditdomain.ActionLoginFailure, "account", "")
	telemetry.EmitAsync(ctx, s.events, &telemetry.SecurityEvent{
		Type:      telemetry.EventLoginFailure,
		Source:    "auth",
		AccountID: accountID,
		IP:        ip,
		CreatedAt: s.now().UTC(),
	}, s.log)
}

// Refresh consumes the current refresh token of a session and returns a new pair.
//
// Presenting a token that was rotated away, a token of a closed session, or losing the
// rotation race to a concurrent refresh is treated as theft: every Valid session of the
// account is marked Compromised and its access tokens are revoked before the error returns.
func (s *AuthService) Refresh(ctx context.Context, refreshToken string) (*AuthResult, error) {
	if refreshToken == "" {
		s.metrics.Refresh(ctx, "not_found")
		return nil, ErrSessionNotFound
	}
	hash := security.HashRefreshToken(refreshToken)
	sess, err := s.sessions.GetByTokenHash(ctx, hash)
	if err != nil {
		return nil, err
	}
	if sess == nil {
		rotated, err := s.sessions.GetRotatedToken(ctx, hash)
		if err != nil {
			return nil, err
		}
		if rotated == nil {
			s.metrics.Refresh(ctx, "not_found")
			return nil, ErrSessionNotFound
		}
		if err := s.respondToCompromise(ctx, rotated.AccountID, rotated.SessionID, telemetry.EventRefreshTokenReuse); err != nil {
			return nil, err
		}
		s.metrics.Refresh(ctx, "reuse")
		return nil, ErrRefreshTokenReuse
	}
	if sess.State != sessiondomain.StateValid {
		if err := s.respondToCompromise(ctx, sess.AccountID, sess.ID, telemetry.EventClosedSessionUse); err != nil {
			return nil, err
		}
		s.metrics.Refresh(ctx, "closed")
		return nil, ErrSessionClosed
	}

	acc, err := s.accounts.GetByID(ctx, sess.AccountID)
	if err != nil {
		return nil, err
	}
	active, err := s.gate.IsActive(ctx, sess.AccountID)
	if err != nil {
		return nil, err
	}
	if acc == nil || !active {
		s.metrics.Refresh(ctx, "inactive")
		return nil, ErrAccountNotActive
	}
	revoked, err := s.tracker.IsBlacklisted(ctx, sess.AccountID, sess.LastGrantedAt)
	if err != nil {
		return nil, err
	}
	if revoked {
		s.metrics.Refresh(ctx, "revoked")
		return nil, ErrSessionRevoked
	}

	newRefresh, err := security.NewRefreshToken()
	if err != nil {
		return nil, err
	}
	accessToken, _, expiresAt, err := s.tokens.IssueAccess(subjectOf(acc))
	if err != nil {
		return nil, err
	}
	ok, err := s.sessions.Rotate(ctx, sess.ID, hash, security.HashRefreshToken(newRefresh), s.now().UTC())
	if err != nil {
		return nil, err
	}
	if !ok {
		if err := s.respondToCompromise(ctx, sess.AccountID, sess.ID, telemetry.EventRotationConflict); err != nil {
			return nil, err
		}
		s.metrics.Refresh(ctx, "reuse")
		return nil, ErrRefreshTokenReuse
	}
	s.metrics.Refresh(ctx, "success")
	s.audit.LogEvent(ctx, acc.ID, auditdomain.ActionRefresh, "session", "session="+sess.ID)
	return &AuthResult{
		AccessToken:  accessToken,
		RefreshToken: newRefresh,
		ExpiresAt:    expiresAt,
		AccountID:    acc.ID,
		SessionID:    sess.ID,
	}, nil
}

// respondToCompromise raises the account's revocation cutoff, then closes every Valid
// session of the account in one atomic step. Both are retried; the call returns only
// once they have taken effect or the retries are exhausted. A caller that disconnects
// does not abort the fan-out.
func (s *AuthService) respondToCompromise(ctx context.Context, accountID, sessionID, reason string) error {
	at := s.now().UTC()
	fanoutCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), compromiseTimeout)
	defer cancel()
	closed, err := backoff.Retry(fanoutCtx, func() (int64, error) {
		if _, err := s.tracker.Blacklist(fanoutCtx, accountID); err != nil {
			return 0, fmt.Errorf("blacklist account: %w", err)
		}
		return s.sessions.CompromiseAllByAccount(fanoutCtx, accountID, at)
	}, backoff.WithBackOff(s.newBackOff()), backoff.WithMaxTries(compromiseTries))
	if err != nil {
		s.log.Error(ctx, "compromise response failed", "account_id", accountID, "reason", reason, "error", err)
		return err
	}

	s.log.Warn(ctx, "refresh token compromise detected",
		"account_id", accountID, "session_id", sessionID, "reason", reason, "sessions_closed", closed)
	s.metrics.Compromise(ctx, reason)
	s.audit.LogEvent(ctx, accountID, auditdomain.ActionCompromise, "session",
		fmt.Sprintf("reason=%s session=%s closed=%d", reason, sessionID, closed))
	telemetry.EmitAsync(ctx, s.events, &telemetry.SecurityEvent{
		Type:           reason,
		Source:         "auth",
		AccountID:      accountID,
		SessionID:      sessionID,
		SessionsClosed: closed,
		CreatedAt:      at,
	}, s.log)
	return nil
}

// Logout moves the session holding refreshToken from Valid to LoggedOut. A second call
// with the same token fails with ErrSessionNotFound.
func (s *AuthService) Logout(ctx context.Context, refreshToken string) error {
	if refreshToken == "" {
		return ErrSessionNotFound
	}
	hash := security.HashRefreshToken(refreshToken)
	sess, err := s.sessions.GetByTokenHash(ctx, hash)
	if err != nil {
		return err
	}
	ok, err := s.sessions.MarkLoggedOut(ctx, hash, s.now().UTC())
	if err != nil {
		return err
	}
	if !ok {
		return ErrSessionNotFound
	}
	if sess != nil {
		s.audit.LogEvent(ctx, sess.AccountID, auditdomain.ActionLogout, "session", "session="+sess.ID)
	}
	return nil
}

// Authorize validates an access token and checks the account's revocation cutoff and
// state. Denials wrap ErrUnauthorized; storage failures are returned as is.
func (s *AuthService) Authorize(ctx context.Context, accessToken string) (*identitydomain.Principal, error) {
	claims, err := s.tokens.ValidateAccess(accessToken)
	if err != nil {
		s.metrics.AuthorizeDenied(ctx, "invalid_token")
		return nil, fmt.Errorf("%w: %w", ErrUnauthorized, err)
	}
	accountID := claims.AccountID()
	revoked, err := s.tracker.IsBlacklisted(ctx, accountID, claims.IssuedAtTime())
	if err != nil {
		return nil, err
	}
	if revoked {
		s.metrics.AuthorizeDenied(ctx, "revoked")
		return nil, fmt.Errorf("%w: %w", ErrUnauthorized, ErrTokenRevoked)
	}
	active, err := s.gate.IsActive(ctx, accountID)
	if err != nil {
		return nil, err
	}
	if !active {
		s.metrics.AuthorizeDenied(ctx, "inactive")
		return nil, fmt.Errorf("%w: %w", ErrUnauthorized, ErrAccountNotActive)
	}
	p := &identitydomain.Principal{
		AccountID: accountID,
		Name:      claims.Name,
		Email:     claims.Email,
		Role:      claims.Role,
		TokenID:   claims.ID,
		IssuedAt:  claims.IssuedAtTime(),
	}
	if claims.ExpiresAt != nil {
		p.ExpiresAt = claims.ExpiresAt.Time
	}
	return p, nil
}

// ListSessions returns the account's sessions, newest first. Token hashes are cleared.
func (s *AuthService) ListSessions(ctx context.Context, accountID string) ([]*sessiondomain.Session, error) {
	list, err := s.sessions.ListByAccount(ctx, accountID)
	if err != nil {
		return nil, err
	}
	for _, sess := range list {
		sess.RefreshTokenHash = ""
	}
	return list, nil
}

func subjectOf(a *accountdomain.Account) security.AccessSubject {
	return security.AccessSubject{AccountID: a.ID, Name: a.Name, Email: a.Email, Role: string(a.Role)}
}
