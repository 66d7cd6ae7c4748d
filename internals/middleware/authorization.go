package middle

import (
	"net/http"

	"pulsewatch/pkg/apperror"
	"pulsewatch/pkg/utils"

	"github.com/go-chi/chi/v5/middleware"
)

// RequireScope rejects authenticated users whose token lacks scope. Tokens
// without any scope are accepted as full read tokens.
func RequireScope(scope string) Middleware {
	return func(next http.Handler) http.Handler {
		fn := func(w http.ResponseWriter, r *http.Request) {
			ctx := r.Context()
			reqID := middleware.GetReqID(ctx)
			user, ok := UserFromContext(ctx)
			if !ok {
				utils.WriteError(w, http.StatusUnauthorized, reqID, apperror.Unauthorised, "user is unauthorised")
				return
			}

			if user.Claims != nil && user.Claims.Scope != "" && !user.Claims.HasScope(scope) {
				utils.WriteError(w, http.StatusForbidden, reqID, apperror.Forbidden, "token does not grant "+scope)
				return
			}

			next.ServeHTTP(w, r)
		}

		return http.HandlerFunc(fn)
	}
}
