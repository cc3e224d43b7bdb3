package auth

import (
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// HostTokenDuration bounds how long a host token stays valid. Parties can be
// scheduled weeks ahead, so it is long.
const HostTokenDuration = 30 * 24 * time.Hour

const hostTokenType = "host"

type Claims struct {
	PartyID   string `json:"partyId"`
	TokenType string `json:"type"`
	jwt.RegisteredClaims
}

// GenerateHostToken issues the capability that lets its bearer control
// playback for partyID.
func GenerateHostToken(secret, partyID string) (string, error) {
	if partyID == "" {
		return "", fmt.Errorf("party id is required")
	}
	now := time.Now()
	claims := &Claims{
		PartyID:   partyID,
		TokenType: hostTokenType,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   partyID,
			ExpiresAt: jwt.NewNumericDate(now.Add(HostTokenDuration)),
			IssuedAt:  jwt.NewNumericDate(now),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString([]byte(secret))
}

func ValidateToken(secret string, tokenStr string) (*Claims, error) {
	token, err := jwt.ParseWithClaims(tokenStr, &Claims{}, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		return []byte(secret), nil
	})
	if err != nil {
		return nil, fmt.Errorf("parse token: %w", err)
	}

	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid {
		return nil, fmt.Errorf("invalid token")
	}
	return claims, nil
}

// IsHostOf reports whether tokenStr is a valid host token for partyID.
func IsHostOf(secret, tokenStr, partyID string) bool {
	if tokenStr == "" || partyID == "" {
		return false
	}
	claims, err := ValidateToken(secret, tokenStr)
	if err != nil {
		return false
	}
	return claims.TokenType == hostTokenType && claims.PartyID == partyID
}
