package server

import (
	"fmt"
	"net/http"
	"strings"

	"github.com/cinesync/cinesync/internal/httputil"
)

type SecurityConfig struct {
	BaseURL               string
	StorageEndpoint       string
	AllowedFrameAncestors string
}

func securityHeaders(cfg SecurityConfig) func(http.Handler) http.Handler {
	strictTransport := strings.HasPrefix(cfg.BaseURL, "https://")

	storage := ""
	if cfg.StorageEndpoint != "" {
		storage = " " + cfg.StorageEndpoint
	}
	ancestors := "'self'"
	if cfg.AllowedFrameAncestors != "" {
		ancestors += " " + cfg.AllowedFrameAncestors
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			nonce := httputil.GenerateNonce()
			ctx := httputil.ContextWithNonce(r.Context(), nonce)

			w.Header().Set("Referrer-Policy", "no-referrer")
			w.Header().Set("X-Content-Type-Options", "nosniff")
			w.Header().Set("Permissions-Policy", "camera=(self), microphone=(self), display-capture=(self), fullscreen=(self), geolocation=()")

			// Local files play from blob: URLs and captures from mediastream:.
			csp := fmt.Sprintf(
				"default-src 'self'; img-src 'self' data:%s; media-src 'self' blob: mediastream:%s; script-src 'self' 'nonce-%s'; style-src 'self' 'nonce-%s'; connect-src 'self'%s; frame-ancestors %s;",
				storage, storage, nonce, nonce, storage, ancestors,
			)
			w.Header().Set("Content-Security-Policy", csp)

			if strictTransport {
				w.Header().Set("Strict-Transport-Security", "max-age=31536000; includeSubDomains")
			}

			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}
