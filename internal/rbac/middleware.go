package rbac

import "net/http"

// Require lets the request through when the caller's role grants perm.
func (c *Checker) Require(perm string) func(http.Handler) http.Handler {
	return c.RequireAny(perm)
}

// RequireAny lets the request through when the role grants one of perms.
func (c *Checker) RequireAny(perms ...string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if !c.Any(RoleFromContext(r.Context()), perms...) {
				http.Error(w, "forbidden", http.StatusForbidden)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
