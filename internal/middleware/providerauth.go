package middleware

import (
	"net/http"
	"strings"

	"github.com/AHasnain3/mamamia/internal/auth"
	"github.com/AHasnain3/mamamia/pkg/utils"
)

// ProviderAuth requires a valid bearer token on provider endpoints. A nil
// issuer disables the check (dev mode without AUTH_TOKEN_SECRET).
func ProviderAuth(issuer *auth.TokenIssuer) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if issuer == nil {
				next.ServeHTTP(w, r)
				return
			}
			header := r.Header.Get("Authorization")
			token, ok := strings.CutPrefix(header, "Bearer ")
			if !ok || token == "" {
				utils.RespondError(w, http.StatusUnauthorized, "missing bearer token")
				return
			}
			if _, err := issuer.Verify(token); err != nil {
				utils.RespondError(w, http.StatusUnauthorized, "invalid token")
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
