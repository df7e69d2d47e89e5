package service

import (
	"context"
	"errors"
	"math"
	"sync"
	"testing"
	"time"

	"github.com/CCodeCommunity/CardGameBackend/internal/account/domain"
	"github.com/CCodeCommunity/CardGameBackend/internal/accountstate"
	"github.com/CCodeCommunity/CardGameBackend/internal/revocation"
	"github.com/CCodeCommunity/CardGameBackend/internal/security"
	"github.com/CCodeCommunity/CardGameBackend/internal/storage/memory"
)

type stepClock struct {
	mu  sync.Mutex
	now time.Time
}

// Now returns the current time and advances it by one second.
func (c *stepClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	t := c.now
	c.now = c.now.Add(time.Second)
	return t
}

type accountFixture struct {
	svc      *AccountService
	accounts *memory.AccountRepository
	gate     *accountstate.Gate
	tracker  *revocation.MemoryTracker
}

func newAccountFixture(t *testing.T) *accountFixture {
	t.Helper()
	clock := &stepClock{now: time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)}
	f := &accountFixture{
		accounts: memory.NewAccountRepository(),
		tracker:  revocation.NewMemoryTracker(revocation.DefaultGrace, security.TestAccessTTL),
	}
	f.gate = accountstate.NewGate(f.accounts)
	hasher := security.NewHasher(security.Argon2Params{Memory: 1024, Iterations: 1, Parallelism: 1})
	f.svc = NewAccountService(f.accounts, hasher, f.gate, f.tracker, WithClock(clock.Now))
	return f
}

func TestRegister_CreatesPendingUser(t *testing.T) {
	f := newAccountFixture(t)
	a, err := f.svc.Register(context.Background(), RegisterRequest{Name: "Alice", Email: " Alice@Example.COM", Password: "secret1"})
	if err != nil {
		t.Fatalf("Register: %v", err)
	}
	if a.Email != "alice@example.com" {
		t.Errorf("Email = %q, want normalized", a.Email)
	}
	if a.Role != domain.RoleUser || a.State != domain.StatePendingApproval {
		t.Errorf("role/state = %s/%s", a.Role, a.State)
	}
	if a.PasswordHash == "" || a.PasswordHash == "secret1" {
		t.Error("password not hashed")
	}
	stored, _ := f.accounts.GetByID(context.Background(), a.ID)
	if stored == nil {
		t.Fatal("account not stored")
	}
}

func TestRegister_DuplicateEmail(t *testing.T) {
	f := newAccountFixture(t)
	ctx := context.Background()

	if _, err := f.svc.Register(ctx, RegisterRequest{Name: "One", Email: "same@example.com", Password: "secret1"}); err != nil {
		t.Fatalf("first Register: %v", err)
	}
	_, err := f.svc.Register(ctx, RegisterRequest{Name: "Two", Email: "SAME@example.com", Password: "secret2"})
	if !errors.Is(err, ErrEmailAlreadyRegistered) {
		t.Errorf("second Register err = %v, want ErrEmailAlreadyRegistered", err)
	}
	if _, err := f.svc.Register(ctx, RegisterRequest{Name: "Three", Email: "other@example.com", Password: "secret3"}); err != nil {
		t.Errorf("distinct email Register: %v", err)
	}
	if n, _ := f.accounts.Count(ctx); n != 2 {
		t.Errorf("accounts = %d, want 2", n)
	}
}

func TestRegister_Validation(t *testing.T) {
	f := newAccountFixture(t)
	cases := []struct {
		name  string
		req   RegisterRequest
		field string
	}{
		{"empty name", RegisterRequest{Email: "a@example.com", Password: "secret1"}, "name"},
		{"bad email", RegisterRequest{Name: "A", Email: "not-an-email", Password: "secret1"}, "email"},
		{"short password", RegisterRequest{Name: "A", Email: "a@example.com", Password: "12345"}, "password"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := f.svc.Register(context.Background(), tc.req)
			var ve *domain.ValidationError
			if !errors.As(err, &ve) {
				t.Fatalf("err = %v, want *ValidationError", err)
			}
			if ve.Field != tc.field {
				t.Errorf("Field = %q, want %q", ve.Field, tc.field)
			}
		})
	}
}

func TestList_PagesInCreationOrder(t *testing.T) {
	f := newAccountFixture(t)
	ctx := context.Background()
	first, _ := f.svc.Register(ctx, RegisterRequest{Name: "First", Email: "first@example.com", Password: "secret1"})
	second, _ := f.svc.Register(ctx, RegisterRequest{Name: "Second", Email: "second@example.com", Password: "secret2"})

	res, err := f.svc.List(ctx, 1, 5)
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if res.RowCount != 2 || len(res.Results) != 2 {
		t.Fatalf("RowCount = %d, results = %d, want 2", res.RowCount, len(res.Results))
	}
	if res.Results[0].ID != first.ID || res.Results[1].ID != second.ID {
		t.Error("results not in creation order")
	}
	if res.CurrentPage != 1 || res.PageSize != 5 || res.PageCount != 1 || res.FirstRowOnPage != 1 || res.LastRowOnPage != 2 {
		t.Errorf("paging = %+v", res)
	}

	res, err = f.svc.List(ctx, 2, 5)
	if err != nil {
		t.Fatalf("List page 2: %v", err)
	}
	if len(res.Results) != 0 || res.RowCount != 2 {
		t.Errorf("page 2 = %+v", res)
	}
}

func TestChangeState_ApproveAndSuspend(t *testing.T) {
	f := newAccountFixture(t)
	ctx := context.Background()
	a, _ := f.svc.Register(ctx, RegisterRequest{Name: "Alice", Email: "alice@example.com", Password: "secret1"})

	if ok, _ := f.gate.IsActive(ctx, a.ID); ok {
		t.Fatal("pending account reported active")
	}
	if err := f.svc.ChangeState(ctx, a.ID, domain.StateActive); err != nil {
		t.Fatalf("approve: %v", err)
	}
	if ok, _ := f.gate.IsActive(ctx, a.ID); !ok {
		t.Fatal("approved account not active; gate not invalidated")
	}
	issuedBefore := time.Now()

	if err := f.svc.ChangeState(ctx, a.ID, domain.StateSuspended); err != nil {
		t.Fatalf("suspend: %v", err)
	}
	if ok, _ := f.gate.IsActive(ctx, a.ID); ok {
		t.Error("suspended account still active")
	}
	if ok, _ := f.tracker.IsBlacklisted(ctx, a.ID, issuedBefore); !ok {
		t.Error("tokens issued before suspension are not blacklisted")
	}
}

func TestChangeState_Rejections(t *testing.T) {
	f := newAccountFixture(t)
	ctx := context.Background()
	a, _ := f.svc.Register(ctx, RegisterRequest{Name: "Alice", Email: "alice@example.com", Password: "secret1"})

	if err := f.svc.ChangeState(ctx, a.ID, domain.StateActive); err != nil {
		t.Fatalf("approve: %v", err)
	}
	if err := f.svc.ChangeState(ctx, a.ID, domain.StatePendingApproval); !errors.Is(err, domain.ErrInvalidStateTransition) {
		t.Errorf("PendingApproval target err = %v", err)
	}
	if err := f.svc.ChangeState(ctx, "missing", domain.StateActive); !errors.Is(err, ErrAccountNotFound) {
		t.Errorf("missing account err = %v", err)
	}
	if _, ok := f.tracker.Cutoff(a.ID); ok {
		t.Error("rejected change must not touch the tracker")
	}
}

func TestGet(t *testing.T) {
	f := newAccountFixture(t)
	ctx := context.Background()
	a, _ := f.svc.Register(ctx, RegisterRequest{Name: "Alice", Email: "alice@example.com", Password: "secret1"})

	got, err := f.svc.Get(ctx, a.ID)
	if err != nil || got.ID != a.ID {
		t.Errorf("Get = %v, %v", got, err)
	}
	if _, err := f.svc.Get(ctx, "missing"); !errors.Is(err, ErrAccountNotFound) {
		t.Errorf("missing err = %v", err)
	}
}

func TestChangeState_SameStateIsNoOp(t *testing.T) {
	f := newAccountFixture(t)
	ctx := context.Background()
	a, _ := f.svc.Register(ctx, RegisterRequest{Name: "Alice", Email: "alice@example.com", Password: "secret1"})

	if err := f.svc.ChangeState(ctx, a.ID, domain.StatePendingApproval); err != nil {
		t.Errorf("PendingApproval -> PendingApproval err = %v, want nil", err)
	}
	stored, _ := f.accounts.GetByID(ctx, a.ID)
	if !stored.UpdatedAt.Equal(a.UpdatedAt) {
		t.Error("no-op change must not touch the stored account")
	}

	if err := f.svc.ChangeState(ctx, a.ID, domain.StateSuspended); err != nil {
		t.Fatalf("suspend: %v", err)
	}
	first, ok := f.tracker.Cutoff(a.ID)
	if !ok {
		t.Fatal("suspension left no cutoff")
	}
	if err := f.svc.ChangeState(ctx, a.ID, domain.StateSuspended); err != nil {
		t.Errorf("second suspend err = %v, want nil", err)
	}
	if again, _ := f.tracker.Cutoff(a.ID); !again.Equal(first) {
		t.Errorf("cutoff moved from %v to %v on a repeated suspension", first, again)
	}
}

func TestList_HugePageDoesNotOverflow(t *testing.T) {
	f := newAccountFixture(t)
	ctx := context.Background()
	_, _ = f.svc.Register(ctx, RegisterRequest{Name: "Alice", Email: "alice@example.com", Password: "secret1"})

	res, err := f.svc.List(ctx, math.MaxInt/50, 100)
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(res.Results) != 0 || res.RowCount != 1 {
		t.Errorf("page = %+v", res)
	}
	if res.CurrentPage != domain.MaxPage {
		t.Errorf("CurrentPage = %d, want %d", res.CurrentPage, domain.MaxPage)
	}
}
