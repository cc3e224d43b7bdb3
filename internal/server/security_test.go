package server

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/cinesync/cinesync/internal/httputil"
)

func serveWithHeaders(cfg SecurityConfig, inner http.HandlerFunc) *httptest.ResponseRecorder {
	if inner == nil {
		inner = func(w http.ResponseWriter, r *http.Request) {}
	}
	rec := httptest.NewRecorder()
	securityHeaders(cfg)(inner).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	return rec
}

func TestSecurityHeaders_CSPContainsNonce(t *testing.T) {
	var nonce string
	rec := serveWithHeaders(SecurityConfig{BaseURL: "https://watch.test"}, func(w http.ResponseWriter, r *http.Request) {
		nonce = httputil.NonceFromContext(r.Context())
	})

	if nonce == "" {
		t.Fatal("expected non-empty nonce in context")
	}
	csp := rec.Header().Get("Content-Security-Policy")
	if !strings.Contains(csp, "'nonce-"+nonce+"'") {
		t.Errorf("CSP should contain nonce, got: %s", csp)
	}
	if strings.Contains(csp, "'unsafe-inline'") {
		t.Errorf("CSP should not contain 'unsafe-inline', got: %s", csp)
	}
}

func TestSecurityHeaders_UniqueNoncePerRequest(t *testing.T) {
	seen := map[string]bool{}
	for i := 0; i < 3; i++ {
		serveWithHeaders(SecurityConfig{}, func(w http.ResponseWriter, r *http.Request) {
			seen[httputil.NonceFromContext(r.Context())] = true
		})
	}
	if len(seen) != 3 {
		t.Errorf("expected 3 unique nonces, got %d", len(seen))
	}
}

func TestSecurityHeaders_MediaSources(t *testing.T) {
	rec := serveWithHeaders(SecurityConfig{
		BaseURL:         "https://watch.test",
		StorageEndpoint: "https://storage.example.com",
	}, nil)

	csp := rec.Header().Get("Content-Security-Policy")
	for _, want := range []string{
		"media-src 'self' blob: mediastream: https://storage.example.com",
		"connect-src 'self' https://storage.example.com",
		"img-src 'self' data: https://storage.example.com",
	} {
		if !strings.Contains(csp, want) {
			t.Errorf("CSP missing %q, got: %s", want, csp)
		}
	}
}

func TestSecurityHeaders_OmitsStorageWhenEmpty(t *testing.T) {
	csp := serveWithHeaders(SecurityConfig{}, nil).Header().Get("Content-Security-Policy")
	if !strings.Contains(csp, "connect-src 'self';") {
		t.Errorf("connect-src should be just 'self', got: %s", csp)
	}
}

func TestSecurityHeaders_PermissionsPolicyAllowsCapture(t *testing.T) {
	pp := serveWithHeaders(SecurityConfig{}, nil).Header().Get("Permissions-Policy")
	for _, want := range []string{"display-capture=(self)", "camera=(self)", "fullscreen=(self)"} {
		if !strings.Contains(pp, want) {
			t.Errorf("Permissions-Policy missing %q, got: %s", want, pp)
		}
	}
}

func TestSecurityHeaders_HSTS(t *testing.T) {
	if hsts := serveWithHeaders(SecurityConfig{BaseURL: "https://watch.test"}, nil).Header().Get("Strict-Transport-Security"); hsts == "" {
		t.Error("expected HSTS header for HTTPS base URL")
	}
	if hsts := serveWithHeaders(SecurityConfig{BaseURL: "http://localhost:8080"}, nil).Header().Get("Strict-Transport-Security"); hsts != "" {
		t.Errorf("expected no HSTS for HTTP base URL, got: %s", hsts)
	}
}

func TestSecurityHeaders_FrameAncestors(t *testing.T) {
	csp := serveWithHeaders(SecurityConfig{}, nil).Header().Get("Content-Security-Policy")
	if !strings.Contains(csp, "frame-ancestors 'self';") {
		t.Errorf("default frame-ancestors should be 'self', got: %s", csp)
	}

	csp = serveWithHeaders(SecurityConfig{AllowedFrameAncestors: "https://club.example.com"}, nil).Header().Get("Content-Security-Policy")
	if !strings.Contains(csp, "frame-ancestors 'self' https://club.example.com;") {
		t.Errorf("custom frame-ancestors missing, got: %s", csp)
	}
}
