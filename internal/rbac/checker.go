package rbac

import (
	"context"
	"sort"
	"strings"
)

// Policy maps a role to permission patterns. A pattern is an exact
// permission, "*", or a prefix ending in "*" such as "template:*".
type Policy map[string][]string

// Merge returns a copy of p with the roles of o replacing p's.
func (p Policy) Merge(o Policy) Policy {
	out := make(Policy, len(p)+len(o))
	for role, perms := range p {
		out[role] = perms
	}
	for role, perms := range o {
		out[role] = perms
	}
	return out
}

// Roles lists the roles of p in name order.
func (p Policy) Roles() []string {
	out := make([]string, 0, len(p))
	for role := range p {
		out = append(out, role)
	}
	sort.Strings(out)
	return out
}

type Checker struct {
	policy Policy
}

// NewChecker checks against DefaultPolicy overlaid with extra.
func NewChecker(extra Policy) *Checker {
	return &Checker{policy: DefaultPolicy.Merge(extra)}
}

func (c *Checker) Policy() Policy { return c.policy }

func (c *Checker) Has(role, perm string) bool {
	if role == "" {
		return false
	}
	for _, pattern := range c.policy[role] {
		if prefix, ok := strings.CutSuffix(pattern, "*"); ok {
			if strings.HasPrefix(perm, prefix) {
				return true
			}
		} else if pattern == perm {
			return true
		}
	}
	return false
}

func (c *Checker) Any(role string, perms ...string) bool {
	for _, p := range perms {
		if c.Has(role, p) {
			return true
		}
	}
	return false
}

type roleKey struct{}

func WithRole(ctx context.Context, role string) context.Context {
	return context.WithValue(ctx, roleKey{}, role)
}

func RoleFromContext(ctx context.Context) string {
	role, _ := ctx.Value(roleKey{}).(string)
	return role
}
