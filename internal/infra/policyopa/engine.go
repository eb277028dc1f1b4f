// Package policyopa decides role and ownership questions with a rego policy.
package policyopa

import (
	"context"
	_ "embed"
	"errors"
	"fmt"
	"time"

	"certus/internal/domain"

	"github.com/open-policy-agent/opa/rego"
)

const defaultQuery = "data.certus.authz.allow"

//go:embed authz.rego
var defaultPolicy string

type Engine struct {
	query rego.PreparedEvalQuery
	now   func() time.Time
}

var _ domain.Authorizer = (*Engine)(nil)

// NewEngine prepares the built-in authorization policy.
func NewEngine(ctx context.Context) (*Engine, error) {
	return prepare(ctx, rego.Module("authz.rego", defaultPolicy))
}

// NewEngineFromPath loads policy files from path instead. They must define
// data.certus.authz.allow.
func NewEngineFromPath(ctx context.Context, path string) (*Engine, error) {
	return prepare(ctx, rego.Load([]string{path}, nil))
}

func prepare(ctx context.Context, source func(*rego.Rego)) (*Engine, error) {
	compiler := restrictedCompiler()
	r := rego.New(
		rego.Query(defaultQuery),
		rego.Compiler(compiler),
		rego.StrictBuiltinErrors(true),
		source,
	)
	prepared, err := r.PrepareForEval(ctx)
	if err != nil {
		return nil, fmt.Errorf("prepare policy: %w", err)
	}
	if err := assertNoForbiddenBuiltins(compiler); err != nil {
		return nil, err
	}
	return &Engine{query: prepared, now: time.Now}, nil
}

// Authorize rejects invalid or expired sessions before consulting the policy.
func (e *Engine) Authorize(ctx context.Context, session domain.Session, action, resourceOwner string) error {
	if e == nil {
		return errors.New("policy engine is nil")
	}
	if err := session.Valid(e.now()); err != nil {
		return err
	}
	allowed, err := e.evaluate(ctx, session, action, resourceOwner)
	if err != nil {
		return err
	}
	if !allowed {
		return fmt.Errorf("%w: %s may not %s", domain.ErrForbidden, session.Role, action)
	}
	return nil
}

func (e *Engine) evaluate(ctx context.Context, session domain.Session, action, resourceOwner string) (bool, error) {
	input := map[string]any{
		"action":         action,
		"resource_owner": resourceOwner,
		"session": map[string]any{
			"sub":  session.Subject,
			"role": string(session.Role),
		},
	}
	results, err := e.query.Eval(ctx, rego.EvalInput(input))
	if err != nil {
		return false, fmt.Errorf("evaluate policy: %w", err)
	}
	if len(results) == 0 || len(results[0].Expressions) == 0 {
		return false, errors.New("empty policy result")
	}
	allowed, ok := results[0].Expressions[0].Value.(bool)
	if !ok {
		return false, fmt.Errorf("policy result is %T, want bool", results[0].Expressions[0].Value)
	}
	return allowed, nil
}
