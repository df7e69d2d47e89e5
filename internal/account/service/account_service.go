package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/CCodeCommunity/CardGameBackend/internal/account/domain"
	"github.com/CCodeCommunity/CardGameBackend/internal/account/repository"
	"github.com/CCodeCommunity/CardGameBackend/internal/audit"
	auditdomain "github.com/CCodeCommunity/CardGameBackend/internal/audit/domain"
	"github.com/CCodeCommunity/CardGameBackend/internal/logging"
	"github.com/CCodeCommunity/CardGameBackend/internal/revocation"
	"github.com/CCodeCommunity/CardGameBackend/internal/telemetry"
)

var (
	ErrEmailAlreadyRegistered = errors.New("email already registered")
	ErrAccountNotFound        = errors.New("account not found")
)

// PasswordHasher produces a stored hash for a new password. See security.Hasher.
type PasswordHasher interface {
	Hash(password []byte) (string, error)
}

// StateInvalidator drops cached account state. See accountstate.Gate.
type StateInvalidator interface {
	Invalidate(accountID string)
}

// RegisterRequest holds the fields of a new account.
type RegisterRequest struct {
	Name     string
	Email    string
	Password string
}

// AccountService manages registration, listing and admin state changes.
type AccountService struct {
	accounts repository.Repository
	hasher   PasswordHasher
	gate     StateInvalidator
	tracker  revocation.Tracker

	audit  audit.AuditLogger
	events telemetry.EventEmitter
	log    logging.Logger
	now    func() time.Time
}

// Option configures optional AccountService collaborators.
type Option func(*AccountService)

func WithAuditLogger(a audit.AuditLogger) Option {
	return func(s *AccountService) { s.audit = a }
}

func WithEventEmitter(e telemetry.EventEmitter) Option {
	return func(s *AccountService) { s.events = e }
}

func WithLogger(l logging.Logger) Option {
	return func(s *AccountService) { s.log = l }
}

func WithClock(now func() time.Time) Option {
	return func(s *AccountService) { s.now = now }
}

// NewAccountService returns an AccountService.
func NewAccountService(accounts repository.Repository, hasher PasswordHasher, gate StateInvalidator, tracker revocation.Tracker, opts ...Option) *AccountService {
	s := &AccountService{
		accounts: accounts,
		hasher:   hasher,
		gate:     gate,
		tracker:  tracker,
		audit:    audit.Nop{},
		log:      logging.Nop(),
		now:      time.Now,
	}
	for _, o := range opts {
		o(s)
	}
	return s
}

// Register creates a User account in PendingApproval. Validation failures are returned
// as *domain.ValidationError.
func (s *AccountService) Register(ctx context.Context, req RegisterRequest) (*domain.Account, error) {
	email := domain.NormalizeEmail(req.Email)
	if err := domain.ValidateRegistration(req.Name, email, req.Password); err != nil {
		return nil, err
	}
	existing, err := s.accounts.GetByEmail(ctx, email)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		return nil, ErrEmailAlreadyRegistered
	}
	hash, err := s.hasher.Hash([]byte(req.Password))
	if err != nil {
		return nil, fmt.Errorf("hash password: %w", err)
	}
	now := s.now().UTC()
	a := &domain.Account{
		ID:           uuid.New().String(),
		Name:         req.Name,
		Email:        email,
		PasswordHash: hash,
		Role:         domain.RoleUser,
		State:        domain.StatePendingApproval,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if err := s.accounts.Create(ctx, a); err != nil {
		// Lost a race with a concurrent registration of the same email.
		if errors.Is(err, repository.ErrDuplicateEmail) {
			return nil, ErrEmailAlreadyRegistered
		}
		return nil, err
	}
	s.audit.LogEvent(ctx, a.ID, auditdomain.ActionRegister, "account", "")
	return a, nil
}

// Get returns the account or ErrAccountNotFound.
func (s *AccountService) Get(ctx context.Context, id string) (*domain.Account, error) {
	a, err := s.accounts.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if a == nil {
		return nil, ErrAccountNotFound
	}
	return a, nil
}

// List returns one page of accounts ordered by creation time. page is 1-based; out of
// range values are clamped.
func (s *AccountService) List(ctx context.Context, page, pageSize int) (*domain.PagedResult, error) {
	page, pageSize = domain.NormalizePage(page, pageSize)
	total, err := s.accounts.Count(ctx)
	if err != nil {
		return nil, err
	}
	list, err := s.accounts.List(ctx, pageSize, (page-1)*pageSize)
	if err != nil {
		return nil, err
	}
	return domain.NewPagedResult(page, pageSize, total, list), nil
}

// ChangeState moves an account to Active or Suspended. Requesting the current state is a
// no-op. Otherwise the new state is persisted, the cached state is dropped, and on
// suspension the account's revocation cutoff is raised so access tokens already issued
// stop working on their next use.
func (s *AccountService) ChangeState(ctx context.Context, id string, target domain.State) error {
	acc, err := s.accounts.GetByID(ctx, id)
	if err != nil {
		return err
	}
	if acc == nil {
		return ErrAccountNotFound
	}
	if acc.State == target {
		return nil
	}
	if !acc.State.CanTransitionTo(target) {
		return domain.ErrInvalidStateTransition
	}
	now := s.now().UTC()
	ok, err := s.accounts.UpdateState(ctx, id, target, now)
	if err != nil {
		return err
	}
	if !ok {
		return ErrAccountNotFound
	}
	s.gate.Invalidate(id)

	if target == domain.StateSuspended {
		cutoff, err := s.tracker.Blacklist(ctx, id)
		if err != nil {
			return fmt.Errorf("blacklist suspended account: %w", err)
		}
		s.log.Info(ctx, "account suspended", "account_id", id, "cutoff", cutoff)
		telemetry.EmitAsync(ctx, s.events, &telemetry.SecurityEvent{
			Type:      telemetry.EventAccountSuspended,
			Source:    "accounts",
			AccountID: id,
			CreatedAt: now,
		}, s.log)
		return nil
	}
	s.log.Info(ctx, "account state changed", "account_id", id, "from", acc.State, "to", target)
	return nil
}
