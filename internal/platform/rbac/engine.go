package rbac

import (
	"context"
	"fmt"

	"github.com/open-policy-agent/opa/v1/rego"
)

// Rule names in the authorization policy.
const (
	RuleAdminOnly       = "admin_only"
	RuleAccountIdentity = "account_identity"
)

const policyPackage = "data.cardgame.authz"

// account_identity never holds for admins, including on their own account.
const authzPolicy = `package cardgame.authz

default admin_only := false

default account_identity := false

admin_only if {
	input.principal.role == "Admin"
}

account_identity if {
	input.resource.account_id != ""
	input.resource.account_id == input.principal.account_id
	input.principal.role != "Admin"
}
`

// Engine evaluates the authorization rules with OPA. Queries are prepared once; Engine
// is safe for concurrent use.
type Engine struct {
	queries map[string]rego.PreparedEvalQuery
}

// NewEngine compiles the authorization policy.
func NewEngine(ctx context.Context) (*Engine, error) {
	e := &Engine{queries: make(map[string]rego.PreparedEvalQuery)}
	for _, rule := range []string{RuleAdminOnly, RuleAccountIdentity} {
		q, err := rego.New(
			rego.Query(policyPackage+"."+rule),
			rego.Module("authz.rego", authzPolicy),
		).PrepareForEval(ctx)
		if err != nil {
			return nil, fmt.Errorf("prepare %s: %w", rule, err)
		}
		e.queries[rule] = q
	}
	return e, nil
}

// Allowed evaluates rule for req.
func (e *Engine) Allowed(ctx context.Context, rule string, req Request) (bool, error) {
	q, ok := e.queries[rule]
	if !ok {
		return false, fmt.Errorf("unknown rule %q", rule)
	}
	rs, err := q.Eval(ctx, rego.EvalInput(buildInput(req)))
	if err != nil {
		return false, fmt.Errorf("eval %s: %w", rule, err)
	}
	return rs.Allowed(), nil
}

// Require returns a policy that passes when rule allows the request.
func (e *Engine) Require(rule string) Policy {
	return func(ctx context.Context, req Request) error {
		if req.Principal == nil {
			return ErrUnauthenticated
		}
		ok, err := e.Allowed(ctx, rule, req)
		if err != nil {
			return err
		}
		if !ok {
			return ErrForbidden
		}
		return nil
	}
}

// AdminOnly allows principals with the Admin role.
func (e *Engine) AdminOnly() Policy { return e.Require(RuleAdminOnly) }

// AccountIdentity allows a non-admin principal whose account id matches the route's.
func (e *Engine) AccountIdentity() Policy { return e.Require(RuleAccountIdentity) }

// HealthCheck evaluates a rule against an empty principal.
func (e *Engine) HealthCheck(ctx context.Context) error {
	_, err := e.Allowed(ctx, RuleAdminOnly, Request{})
	return err
}

func buildInput(req Request) map[string]interface{} {
	principal := map[string]interface{}{
		"account_id": "",
		"role":       "",
	}
	if req.Principal != nil {
		principal["account_id"] = req.Principal.AccountID
		principal["role"] = req.Principal.Role
	}
	return map[string]interface{}{
		"principal": principal,
		"resource": map[string]interface{}{
			"account_id": req.AccountID,
		},
	}
}
