package rbac

import (
	"context"
	"errors"
	"testing"

	identitydomain "github.com/CCodeCommunity/CardGameBackend/internal/identity/domain"
)

func newEngine(t *testing.T) *Engine {
	t.Helper()
	e, err := NewEngine(context.Background())
	if err != nil {
		t.Fatalf("NewEngine: %v", err)
	}
	return e
}

func TestEngine_HealthCheck(t *testing.T) {
	if err := newEngine(t).HealthCheck(context.Background()); err != nil {
		t.Fatalf("HealthCheck: %v", err)
	}
}

func TestAdminOnly(t *testing.T) {
	e := newEngine(t)
	ctx := context.Background()
	admin := &identitydomain.Principal{AccountID: "a-1", Role: "Admin"}
	user := &identitydomain.Principal{AccountID: "u-1", Role: "User"}

	if err := e.AdminOnly()(ctx, Request{Principal: admin}); err != nil {
		t.Errorf("admin denied: %v", err)
	}
	if err := e.AdminOnly()(ctx, Request{Principal: user}); !errors.Is(err, ErrForbidden) {
		t.Errorf("user err = %v, want ErrForbidden", err)
	}
	if err := e.AdminOnly()(ctx, Request{}); !errors.Is(err, ErrUnauthenticated) {
		t.Errorf("anonymous err = %v, want ErrUnauthenticated", err)
	}
}

func TestAccountIdentity(t *testing.T) {
	e := newEngine(t)
	ctx := context.Background()
	tests := []struct {
		name    string
		req     Request
		allowed bool
	}{
		{"owner", Request{Principal: &identitydomain.Principal{AccountID: "u-1", Role: "User"}, AccountID: "u-1"}, true},
		{"other account", Request{Principal: &identitydomain.Principal{AccountID: "u-1", Role: "User"}, AccountID: "u-2"}, false},
		{"no route account", Request{Principal: &identitydomain.Principal{AccountID: "u-1", Role: "User"}}, false},
		// Admins are excluded even from their own account's owner routes.
		{"admin on own account", Request{Principal: &identitydomain.Principal{AccountID: "a-1", Role: "Admin"}, AccountID: "a-1"}, false},
		{"admin on other account", Request{Principal: &identitydomain.Principal{AccountID: "a-1", Role: "Admin"}, AccountID: "u-1"}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := e.AccountIdentity()(ctx, tt.req)
			if tt.allowed && err != nil {
				t.Errorf("err = %v, want allowed", err)
			}
			if !tt.allowed && !errors.Is(err, ErrForbidden) {
				t.Errorf("err = %v, want ErrForbidden", err)
			}
		})
	}
}

func TestAllowed_UnknownRule(t *testing.T) {
	if _, err := newEngine(t).Allowed(context.Background(), "nope", Request{}); err == nil {
		t.Fatal("expected error for unknown rule")
	}
}
