// Package privacy evaluates access policies over composed operations.
//
// A Policy is a chain of rules split into a read and a write side. Rules
// return one of three decisions: Allow terminates the chain and permits the
// operation, Deny terminates it and rejects, and Skip hands over to the next
// rule. A chain that runs out of rules permits the operation, so a policy
// that should be closed by default ends with AlwaysDenyRule.
//
// Policies attach to resources through Secure, which wraps every operation
// of a compose.Descriptor:
//
//	res := compose.MustResource(privacy.Secure(compose.Descriptor{
//		Service: svc,
//	}, privacy.Policy{
//		Write: privacy.Rules{
//			privacy.DenyIfNoViewer(),
//			privacy.HasRole("admin"),
//			privacy.AlwaysDenyRule(),
//		},
//	}))
package privacy

import (
	"context"
	"errors"
	"fmt"

	"github.com/crudox/crudox/compose"
)

// Policy decision sentinels. Rules return them directly or wrapped; check
// with errors.Is.
var (
	// Allow terminates policy evaluation with a permit.
	Allow = errors.New("crudox/privacy: allow rule")

	// Deny terminates policy evaluation with a rejection.
	Deny = errors.New("crudox/privacy: deny rule")

	// Skip abstains and hands evaluation to the next rule.
	Skip = errors.New("crudox/privacy: skip rule")
)

// Allowf returns a formatted wrapped Allow decision.
func Allowf(format string, a ...any) error {
	return fmt.Errorf(format+": %w", append(a, Allow)...)
}

// Denyf returns a formatted wrapped Deny decision.
func Denyf(format string, a ...any) error {
	return fmt.Errorf(format+": %w", append(a, Deny)...)
}

// Skipf returns a formatted wrapped Skip decision.
func Skipf(format string, a ...any) error {
	return fmt.Errorf(format+": %w", append(a, Skip)...)
}

// IsDeny reports whether the error is a policy rejection. Transports use it
// to map denials to their forbidden status.
func IsDeny(err error) bool { return errors.Is(err, Deny) }

// Rule decides whether one operation may proceed.
type Rule interface {
	Eval(ctx context.Context, op compose.Operation, req compose.Request) error
}

// RuleFunc adapts a function to the Rule interface.
type RuleFunc func(ctx context.Context, op compose.Operation, req compose.Request) error

// Eval returns f(ctx, op, req).
func (f RuleFunc) Eval(ctx context.Context, op compose.Operation, req compose.Request) error {
	return f(ctx, op, req)
}

// Rules is an ordered rule chain.
type Rules []Rule

// Eval runs the chain. The first Allow or Deny decision wins; a chain
// exhausted without a decision permits.
func (rules Rules) Eval(ctx context.Context, op compose.Operation, req compose.Request) error {
	for _, rule := range rules {
		switch decision := rule.Eval(ctx, op, req); {
		case decision == nil || errors.Is(decision, Skip):
		case errors.Is(decision, Allow):
			return nil
		default:
			return decision
		}
	}
	return nil
}

// ReadOperation reports whether the operation only reads data.
func ReadOperation(op compose.Operation) bool {
	switch op {
	case compose.OpList, compose.OpGet, compose.OpPaginate, compose.OpGroupedList:
		return true
	}
	return false
}

// Policy groups the read and write rule chains of a resource.
type Policy struct {
	Read  Rules
	Write Rules
}

// Eval evaluates the chain matching the operation. A decision already
// attached to the context overrides the chains.
func (p Policy) Eval(ctx context.Context, op compose.Operation, req compose.Request) error {
	if decision, ok := DecisionFromContext(ctx); ok {
		return decision
	}
	if ReadOperation(op) {
		return p.Read.Eval(ctx, op, req)
	}
	return p.Write.Eval(ctx, op, req)
}

// Middleware returns a compose middleware enforcing the policy for the
// operation.
func (p Policy) Middleware(op compose.Operation) compose.Middleware {
	return func(next compose.Handler) compose.Handler {
		return func(ctx context.Context, req compose.Request) (*compose.Result, error) {
			if err := p.Eval(ctx, op, req); err != nil {
				return nil, err
			}
			return next(ctx, req)
		}
	}
}

// Secure returns a copy of the descriptor with the policy enforced on every
// operation. The policy middleware runs before the descriptor's own
// per-operation wrappers.
func Secure(d compose.Descriptor, p Policy) compose.Descriptor {
	ops := make(map[compose.Operation]compose.OpConfig, len(compose.AllOperations))
	for _, op := range compose.AllOperations {
		cfg := d.Operations[op]
		cfg.Wrappers = append([]compose.Middleware{p.Middleware(op)}, cfg.Wrappers...)
		ops[op] = cfg
	}
	d.Operations = ops
	return d
}

type decisionCtxKey struct{}

// DecisionContext returns a context carrying a fixed policy decision. Skip
// and nil leave the parent untouched.
func DecisionContext(parent context.Context, decision error) context.Context {
	if decision == nil || errors.Is(decision, Skip) {
		return parent
	}
	return context.WithValue(parent, decisionCtxKey{}, decision)
}

// DecisionFromContext retrieves the policy decision attached to the context.
func DecisionFromContext(ctx context.Context) (error, bool) {
	decision, ok := ctx.Value(decisionCtxKey{}).(error)
	if ok && errors.Is(decision, Allow) {
		decision = nil
	}
	return decision, ok
}

// AlwaysAllowRule returns a rule that permits unconditionally.
func AlwaysAllowRule() Rule {
	return fixedDecision{Allow}
}

// AlwaysDenyRule returns a rule that rejects unconditionally.
func AlwaysDenyRule() Rule {
	return fixedDecision{Deny}
}

// ContextRule builds a rule from a context-only evaluation function. A nil
// return counts as Skip.
func ContextRule(eval func(context.Context) error) Rule {
	return RuleFunc(func(ctx context.Context, _ compose.Operation, _ compose.Request) error {
		return eval(ctx)
	})
}

// OnOperations evaluates the rule only for the listed operations and skips
// otherwise.
func OnOperations(rule Rule, ops ...compose.Operation) Rule {
	return RuleFunc(func(ctx context.Context, op compose.Operation, req compose.Request) error {
		for _, o := range ops {
			if o == op {
				return rule.Eval(ctx, op, req)
			}
		}
		return Skip
	})
}

// DenyOperationsRule rejects the listed operations.
func DenyOperationsRule(ops ...compose.Operation) Rule {
	rule := RuleFunc(func(_ context.Context, op compose.Operation, _ compose.Request) error {
		return Denyf("crudox/privacy: operation %s is not allowed", op)
	})
	return OnOperations(rule, ops...)
}

type fixedDecision struct {
	decision error
}

func (f fixedDecision) Eval(context.Context, compose.Operation, compose.Request) error {
	return f.decision
}
