package auth

import "testing"

func TestHashPasscode_EmptyMeansOpen(t *testing.T) {
	hash, err := HashPasscode("")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if hash != "" {
		t.Errorf("hash = %q, want empty", hash)
	}
	if !CheckPasscode("", "anything") {
		t.Error("open party should accept any passcode")
	}
}

func TestCheckPasscode(t *testing.T) {
	hash, err := HashPasscode("popcorn")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if hash == "popcorn" {
		t.Fatal("passcode stored in plain text")
	}
	if !CheckPasscode(hash, "popcorn") {
		t.Error("correct passcode rejected")
	}
	if CheckPasscode(hash, "nachos") {
		t.Error("wrong passcode accepted")
	}
	if CheckPasscode(hash, "") {
		t.Error("empty passcode accepted for protected party")
	}
}
