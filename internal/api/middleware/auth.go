package middleware

import (
	"errors"
	"net/http"

	"github.com/relayworks/server/internal/api/problem"
	"github.com/relayworks/server/internal/auth"
	"github.com/relayworks/server/internal/tenant"
)

// TokenVerifier is the slice of the token authority the middleware needs.
type TokenVerifier interface {
	VerifyAccess(token string) (*auth.Claims, error)
}

// RequireAuth verifies the bearer token and installs the resulting tenant
// scope on the request context. Every handler behind it can assume a
// scope is present.
func RequireAuth(verifier TokenVerifier, env string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token, err := auth.TokenFromHeader(r.Header.Get("Authorization"))
			if err != nil {
				problem.Write(w, r, http.StatusUnauthorized, problem.CodeTokenMissing, "missing bearer token", err, env)
				return
			}

			claims, err := verifier.VerifyAccess(token)
			if err != nil {
				code := problem.CodeTokenInvalid
				title := "invalid token"
				if errors.Is(err, auth.ErrTokenExpired) {
					code = problem.CodeTokenExpired
					title = "token expired"
				}
				problem.Write(w, r, http.StatusUnauthorized, code, title, err, env)
				return
			}

			ctx := tenant.WithScope(r.Context(), claims.Scope())
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}
