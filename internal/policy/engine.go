// Package policy holds the authoritative access rules for sessions and the admin view.
package policy

import (
	"context"
	"fmt"

	"github.com/open-policy-agent/opa/rego"

	"github.com/markdave123-py/dsa-galaxy/internal/core"
	"github.com/markdave123-py/dsa-galaxy/internal/models"
)

// Actions understood by the policy.
const (
	ActionSessionRead   = "session.read"
	ActionSessionWrite  = "session.write"
	ActionSessionUpdate = "session.update"
	ActionSessionDelete = "session.delete"
	ActionAdminView     = "admin.view"
)

// Engine is the OPA policy engine.
type Engine struct {
	query rego.PreparedEvalQuery
}

// NewEngine prepares the given rego module. Pass DefaultPolicy unless overriding the rules.
func NewEngine(ctx context.Context, policyContent string) (*Engine, error) {
	r := rego.New(
		rego.Query("data.dsagalaxy.authz.allow"),
		rego.Module("authz.rego", policyContent),
	)

	query, err := r.PrepareForEval(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to prepare rego: %w", err)
	}

	return &Engine{query: query}, nil
}

// Allow evaluates the policy for caller performing action on a resource owned by ownerID.
func (e *Engine) Allow(ctx context.Context, caller models.Caller, action, ownerID string) (bool, error) {
	input := map[string]interface{}{
		"action": action,
		"caller": map[string]interface{}{
			"id":   caller.ID,
			"role": string(caller.Role),
		},
		"resource": map[string]interface{}{
			"owner_id": ownerID,
		},
	}

	results, err := e.query.Eval(ctx, rego.EvalInput(input))
	if err != nil {
		return false, fmt.Errorf("failed to evaluate policy: %w", err)
	}
	if len(results) == 0 || len(results[0].Expressions) == 0 {
		return false, nil
	}

	allowed, ok := results[0].Expressions[0].Value.(bool)
	if !ok {
		return false, fmt.Errorf("policy returned %T, want bool", results[0].Expressions[0].Value)
	}
	return allowed, nil
}

var _ core.Authorizer = (*Engine)(nil)

// DefaultPolicy grants owners full access to their sessions, admins read/update/delete
// on every session plus the admin view. Writing turns into a session is owner-only.
const DefaultPolicy = `
package dsagalaxy.authz

default allow = false

managed_actions = {"session.read", "session.update", "session.delete"}

owner {
	input.resource.owner_id != ""
	input.resource.owner_id == input.caller.id
}

admin {
	input.caller.id != ""
	input.caller.role == "admin"
}

allow {
	input.action == "session.write"
	owner
}

allow {
	managed_actions[input.action]
	owner
}

allow {
	managed_actions[input.action]
	admin
}

allow {
	input.action == "admin.view"
	admin
}
`
