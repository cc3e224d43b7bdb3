package auth

import (
	"context"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/cinesync/cinesync/internal/httputil"
)

type contextKey string

const hostPartyKey contextKey = "hostPartyID"

// TokenFromRequest returns the bearer token from the Authorization header,
// falling back to the token query parameter used by websocket clients.
func TokenFromRequest(r *http.Request) string {
	if tokenStr, found := strings.CutPrefix(r.Header.Get("Authorization"), "Bearer "); found {
		return strings.TrimSpace(tokenStr)
	}
	return r.URL.Query().Get("token")
}

// RequireHost rejects requests that do not carry a host token for the party
// named by the {id} route parameter.
func RequireHost(secret string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			tokenStr := TokenFromRequest(r)
			if tokenStr == "" {
				httputil.WriteError(w, http.StatusUnauthorized, "host token required")
				return
			}

			partyID := chi.URLParam(r, "id")
			if !IsHostOf(secret, tokenStr, partyID) {
				httputil.WriteError(w, http.StatusForbidden, "only the host can do that")
				return
			}

			ctx := context.WithValue(r.Context(), hostPartyKey, partyID)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// HostPartyFromContext returns the party whose host token authorised the
// request, or "".
func HostPartyFromContext(ctx context.Context) string {
	partyID, _ := ctx.Value(hostPartyKey).(string)
	return partyID
}
