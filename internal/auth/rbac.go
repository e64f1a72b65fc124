package auth

import (
	"net/http"

	"github.com/nikhilbhutani/tableside/internal/models"
)

// RequireRole admits principals holding any of roles. It must run after
// JWTMiddleware.Authenticate.
func RequireRole(roles ...models.Role) func(http.Handler) http.Handler {
	allowed := make(map[models.Role]struct{}, len(roles))
	for _, r := range roles {
		allowed[r] = struct{}{}
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
			p := PrincipalFromContext(req.Context())
			if p == nil {
				writeError(w, http.StatusForbidden, "no user in context")
				return
			}
			if _, ok := allowed[p.Role]; !ok {
				writeError(w, http.StatusForbidden, "insufficient permissions")
				return
			}
			next.ServeHTTP(w, req)
		})
	}
}
