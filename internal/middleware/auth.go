package middleware

import (
	"net/http"

	"github.com/dukerupert/mercato/internal/auth"
	"github.com/dukerupert/mercato/internal/domain"
	"github.com/dukerupert/mercato/internal/telemetry"
)

// RequireAuth verifies the bearer access token and stores the caller's
// principal in the request context. Missing, invalid and expired tokens are
// rejected with 401.
func RequireAuth(tokens *auth.TokenManager) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			claims, err := tokens.Verify(auth.BearerToken(r.Header.Get("Authorization")))
			if err != nil {
				respondWithError(w, r, err)
				return
			}

			ctx := domain.NewContextWithPrincipal(r.Context(), &domain.Principal{UserID: claims.UserID})
			telemetry.SetRequestUser(ctx, claims.UserID, "")
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// RequireAdmin looks the authenticated user up and refuses non-admins with
// 403. The admin flag always comes from the user store, never from the token.
// It must run after RequireAuth.
func RequireAdmin(users domain.UserStore) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			principal := domain.PrincipalFromContext(r.Context())
			if principal == nil {
				respondWithError(w, r, auth.ErrTokenMissing)
				return
			}

			user, err := users.FindUserByID(r.Context(), principal.UserID)
			if err != nil && !domain.IsCode(err, domain.ENOTFOUND) {
				respondWithError(w, r, err)
				return
			}
			if user == nil || !user.IsAdmin {
				respondWithError(w, r, domain.ErrNotAdmin)
				return
			}

			ctx := domain.NewContextWithPrincipal(r.Context(), &domain.Principal{
				UserID:  user.ID,
				Email:   user.Email,
				IsAdmin: true,
			})
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}
