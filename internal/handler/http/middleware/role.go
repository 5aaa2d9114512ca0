package middleware

import (
	"fmt"
	"net/http"

	"github.com/cmlabs-hris/compliance-engine/internal/domain/compliance"
	"github.com/cmlabs-hris/compliance-engine/internal/handler/http/response"
	"github.com/cmlabs-hris/compliance-engine/internal/pkg/jwt"
	"github.com/go-chi/jwtauth/v5"
)

// RequirePermission checks that the caller's role tier carries permission.
// An unknown tier has no permissions.
func RequirePermission(permission compliance.Permission) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			_, claims, err := jwtauth.FromContext(r.Context())
			if err != nil {
				response.Forbidden(w, fmt.Sprintf("Insufficient permissions: required '%s'", permission))
				return
			}

			tierStr, ok := claims[jwt.ClaimRoleTier].(string)
			if !ok {
				response.Forbidden(w, fmt.Sprintf("Insufficient permissions: required '%s'", permission))
				return
			}

			tier := compliance.RoleTier(tierStr)
			if !compliance.HasPermission(tier, permission) {
				response.Forbidden(w, fmt.Sprintf("Insufficient permissions: required '%s', but role tier is '%s'", permission, tier))
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}
