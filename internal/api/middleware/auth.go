package middleware

import (
	"context"
	"errors"
	"net/http"

	"github.com/unisphere-campus/server/internal/auth"
)

// Authenticator validates a bearer access token, including revocation.
type Authenticator interface {
	Authenticate(ctx context.Context, token string) (*auth.Claims, error)
}

type contextKeyAuth string

const claimsKey contextKeyAuth = "claims"

// RequireAuth rejects requests without a valid, unrevoked access token and
// stores the claims in the request context.
func RequireAuth(authenticator Authenticator) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token, err := auth.TokenFromHeader(r.Header.Get("Authorization"))
			if err != nil {
				w.Header().Set("WWW-Authenticate", `Bearer realm="unisphere"`)
				writeProblem(w, r, http.StatusUnauthorized, "Could not validate credentials")
				return
			}

			claims, err := authenticator.Authenticate(r.Context(), token)
			if err != nil {
				logger := LoggerFromContext(r.Context())
				if !errors.Is(err, auth.ErrInvalidToken) {
					logger.Warn().Err(err).Msg("token rejected")
				}
				w.Header().Set("WWW-Authenticate", `Bearer realm="unisphere", error="invalid_token"`)
				writeProblem(w, r, http.StatusUnauthorized, "Could not validate credentials")
				return
			}

			userID, err := claims.UserID()
			if err != nil {
				w.Header().Set("WWW-Authenticate", `Bearer realm="unisphere", error="invalid_token"`)
				writeProblem(w, r, http.StatusUnauthorized, "Could not validate credentials")
				return
			}
			logger := LoggerFromContext(r.Context()).With().Int64("user_id", userID).Logger()
			ctx := context.WithValue(r.Context(), claimsKey, claims)
			ctx = logger.WithContext(ctx)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// RequireAdmin must run after RequireAuth.
func RequireAdmin(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		claims := ClaimsFromContext(r.Context())
		if claims == nil {
			writeProblem(w, r, http.StatusUnauthorized, "Could not validate credentials")
			return
		}
		if !auth.IsAdmin(claims.Role) {
			writeProblem(w, r, http.StatusForbidden, "Admin access required")
			return
		}
		next.ServeHTTP(w, r)
	})
}

func ClaimsFromContext(ctx context.Context) *auth.Claims {
	claims, _ := ctx.Value(claimsKey).(*auth.Claims)
	return claims
}

func UserIDFromContext(ctx context.Context) (int64, bool) {
	claims := ClaimsFromContext(ctx)
	if claims == nil {
		return 0, false
	}
	id, err := claims.UserID()
	if err != nil {
		return 0, false
	}
	return id, true
}

// WithClaims stores claims in ctx. Handler tests use it to skip token
// validation.
func WithClaims(ctx context.Context, claims *auth.Claims) context.Context {
	return context.WithValue(ctx, claimsKey, claims)
}
