// Package rbac authorizes requests by running a chain of policies against the caller.
package rbac

import (
	"context"
	"errors"

	identitydomain "github.com/CCodeCommunity/CardGameBackend/internal/identity/domain"
)

var (
	// ErrUnauthenticated is returned when a policy runs without a principal.
	ErrUnauthenticated = errors.New("authentication required")
	// ErrForbidden is returned when the principal is not allowed to perform the request.
	ErrForbidden = errors.New("forbidden")
)

// Request is what a policy decides on: the caller and the account the route targets.
type Request struct {
	Principal *identitydomain.Principal
	// AccountID is the {accountId} route parameter, empty on routes without one.
	AccountID string
}

// Policy allows a request by returning nil. Denials return ErrUnauthenticated or
// ErrForbidden; any other error means the decision could not be made.
type Policy func(ctx context.Context, req Request) error

// All returns a policy that passes only when every policy passes. Policies run in
// order and the first failure is returned.
func All(policies ...Policy) Policy {
	return func(ctx context.Context, req Request) error {
		for _, p := range policies {
			if err := p(ctx, req); err != nil {
				return err
			}
		}
		return nil
	}
}

// Authenticated requires a principal and nothing else.
func Authenticated(_ context.Context, req Request) error {
	if req.Principal == nil {
		return ErrUnauthenticated
	}
	return nil
}
