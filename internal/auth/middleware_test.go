package auth

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
)

func newHostRouter(secret string) (*chi.Mux, *string) {
	var seen string
	r := chi.NewRouter()
	r.With(RequireHost(secret)).Delete("/api/parties/{id}", func(w http.ResponseWriter, r *http.Request) {
		seen = HostPartyFromContext(r.Context())
		w.WriteHeader(http.StatusNoContent)
	})
	return r, &seen
}

func TestRequireHost_AllowsHostBearer(t *testing.T) {
	router, seen := newHostRouter("test-secret")
	token, _ := GenerateHostToken("test-secret", "party-1")

	req := httptest.NewRequest(http.MethodDelete, "/api/parties/party-1", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusNoContent {
		t.Fatalf("status = %d, want 204", rec.Code)
	}
	if *seen != "party-1" {
		t.Errorf("host party = %q, want party-1", *seen)
	}
}

func TestRequireHost_AllowsQueryToken(t *testing.T) {
	router, _ := newHostRouter("test-secret")
	token, _ := GenerateHostToken("test-secret", "party-1")

	req := httptest.NewRequest(http.MethodDelete, "/api/parties/party-1?token="+token, nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusNoContent {
		t.Errorf("status = %d, want 204", rec.Code)
	}
}

func TestRequireHost_MissingToken(t *testing.T) {
	router, _ := newHostRouter("test-secret")

	req := httptest.NewRequest(http.MethodDelete, "/api/parties/party-1", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusUnauthorized {
		t.Errorf("status = %d, want 401", rec.Code)
	}
}

func TestRequireHost_TokenForOtherParty(t *testing.T) {
	router, _ := newHostRouter("test-secret")
	token, _ := GenerateHostToken("test-secret", "party-2")

	req := httptest.NewRequest(http.MethodDelete, "/api/parties/party-1", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusForbidden {
		t.Errorf("status = %d, want 403", rec.Code)
	}
}

func TestTokenFromRequest_PrefersHeader(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/sync?token=query", nil)
	req.Header.Set("Authorization", "Bearer header")
	if got := TokenFromRequest(req); got != "header" {
		t.Errorf("token = %q, want header", got)
	}

	req = httptest.NewRequest(http.MethodGet, "/sync?token=query", nil)
	req.Header.Set("Authorization", "Basic abc")
	if got := TokenFromRequest(req); got != "query" {
		t.Errorf("token = %q, want query", got)
	}
}
