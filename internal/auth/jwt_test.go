package auth

import (
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

func TestGenerateHostToken_ReturnsValidToken(t *testing.T) {
	token, err := GenerateHostToken("test-secret", "party-123")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if token == "" {
		t.Fatal("expected non-empty token")
	}

	claims, err := ValidateToken("test-secret", token)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if claims.TokenType != "host" {
		t.Errorf("expected token type %q, got %q", "host", claims.TokenType)
	}
	if claims.PartyID != "party-123" {
		t.Errorf("expected partyID %q, got %q", "party-123", claims.PartyID)
	}
}

func TestGenerateHostToken_RequiresPartyID(t *testing.T) {
	if _, err := GenerateHostToken("test-secret", ""); err == nil {
		t.Error("expected error for empty party id")
	}
}

func TestValidateToken_WrongSecret(t *testing.T) {
	token, _ := GenerateHostToken("secret-one", "party-123")

	_, err := ValidateToken("secret-two", token)
	if err == nil {
		t.Error("expected error for wrong secret, got nil")
	}
}

func TestValidateToken_ExpiredToken(t *testing.T) {
	claims := &Claims{
		PartyID:   "party-123",
		TokenType: "host",
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(-1 * time.Hour)),
			IssuedAt:  jwt.NewNumericDate(time.Now().Add(-2 * time.Hour)),
		},
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString([]byte("test-secret"))
	if err != nil {
		t.Fatalf("unexpected error signing token: %v", err)
	}

	_, err = ValidateToken("test-secret", signed)
	if err == nil {
		t.Error("expected error for expired token, got nil")
	}
}

func TestValidateToken_InvalidString(t *testing.T) {
	_, err := ValidateToken("test-secret", "not-a-valid-jwt")
	if err == nil {
		t.Error("expected error for invalid token string, got nil")
	}
}

func TestHostToken_HasCorrectDuration(t *testing.T) {
	token, _ := GenerateHostToken("test-secret", "party-123")

	claims, err := ValidateToken("test-secret", token)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	expectedExpiry := time.Now().Add(HostTokenDuration)
	delta := expectedExpiry.Sub(claims.ExpiresAt.Time).Abs()
	if delta > 2*time.Second {
		t.Errorf("host token expiry off by %v", delta)
	}
}

func TestValidateToken_RejectsNonHMACSigning(t *testing.T) {
	claims := &Claims{
		PartyID:   "party-123",
		TokenType: "host",
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(15 * time.Minute)),
			IssuedAt:  jwt.NewNumericDate(time.Now()),
		},
	}
	token := jwt.NewWithClaims(jwt.SigningMethodNone, claims)
	signed, err := token.SignedString(jwt.UnsafeAllowNoneSignatureType)
	if err != nil {
		t.Fatalf("unexpected error signing token: %v", err)
	}

	_, err = ValidateToken("test-secret", signed)
	if err == nil {
		t.Error("expected error for non-HMAC signing method, got nil")
	}
}

func TestIsHostOf(t *testing.T) {
	token, _ := GenerateHostToken("test-secret", "party-a")

	tests := []struct {
		name    string
		secret  string
		token   string
		partyID string
		want    bool
	}{
		{"matching party", "test-secret", token, "party-a", true},
		{"other party", "test-secret", token, "party-b", false},
		{"wrong secret", "other", token, "party-a", false},
		{"empty token", "test-secret", "", "party-a", false},
		{"empty party", "test-secret", token, "", false},
	}
	for _, tt := range tests {
		if got := IsHostOf(tt.secret, tt.token, tt.partyID); got != tt.want {
			t.Errorf("%s: IsHostOf = %v, want %v", tt.name, got, tt.want)
		}
	}
}

func TestIsHostOf_RejectsOtherTokenTypes(t *testing.T) {
	claims := &Claims{
		PartyID:   "party-a",
		TokenType: "viewer",
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
		},
	}
	signed, _ := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte("test-secret"))

	if IsHostOf("test-secret", signed, "party-a") {
		t.Error("non-host token must not grant host rights")
	}
}
