package auth

import (
	"fmt"

	"golang.org/x/crypto/bcrypt"
)

// HashPasscode hashes a party passcode for storage. An empty passcode yields
// an empty hash, meaning the party is open.
func HashPasscode(passcode string) (string, error) {
	if passcode == "" {
		return "", nil
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(passcode), bcrypt.DefaultCost)
	if err != nil {
		return "", fmt.Errorf("hash passcode: %w", err)
	}
	return string(hash), nil
}

// CheckPasscode reports whether passcode opens a party stored with hash.
func CheckPasscode(hash, passcode string) bool {
	if hash == "" {
		return true
	}
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(passcode)) == nil
}
