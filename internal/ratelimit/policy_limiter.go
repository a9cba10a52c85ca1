package ratelimit

import (
	"context"
	"fmt"
)

// LimitExceeded describes the limit that denied a request.
type LimitExceeded struct {
	Scope   Scope
	Verdict Verdict
}

// PolicyLimiter enforces a policy's limits for the scopes resolved for a request.
type PolicyLimiter struct {
	limiter Limiter
	policy  *Policy
}

// NewPolicyLimiter creates a new policy-based rate limiter.
func NewPolicyLimiter(limiter Limiter, policy *Policy) *PolicyLimiter {
	return &PolicyLimiter{
		limiter: limiter,
		policy:  policy,
	}
}

// Allow checks every limit configured for the given scopes and returns the
// first one that denies, or nil when the request may proceed.
func (l *PolicyLimiter) Allow(ctx context.Context, clientKey string, scopes []Scope) *LimitExceeded {
	for _, scope := range scopes {
		limits, ok := l.policy.Limits[scope]
		if !ok {
			continue
		}

		for _, limit := range limits {
			verdict := l.limiter.Check(ctx, buildKey(clientKey, string(scope), limit), limit)
			if !verdict.Allowed {
				return &LimitExceeded{Scope: scope, Verdict: verdict}
			}
		}
	}

	return nil
}

// AllowLimits checks explicit limits under a caller-chosen route class.
func (l *PolicyLimiter) AllowLimits(
	ctx context.Context, clientKey, routeClass string, limits []LimitConfig,
) *LimitExceeded {
	for _, limit := range limits {
		verdict := l.limiter.Check(ctx, buildKey(clientKey, "custom:"+routeClass, limit), limit)
		if !verdict.Allowed {
			return &LimitExceeded{Verdict: verdict}
		}
	}

	return nil
}

// Policy returns the policy being enforced.
func (l *PolicyLimiter) Policy() *Policy {
	return l.policy
}

// buildKey creates a unique counter key for the client, route class and window.
func buildKey(clientKey, class string, limit LimitConfig) string {
	return fmt.Sprintf("%s:%s:%d", clientKey, class, limit.Window.Milliseconds())
}
